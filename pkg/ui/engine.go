package ui

import (
	"time"

	"github.com/gibbs-codes/projectorUIv2/pkg/model"
)

// Tile is one live dashboard tile: a placement from the current layout
// joined with the latest card payload and health entry for that id.
type Tile struct {
	ID        string
	Title     string
	Placement model.Placement
	Card      *model.Card
	Health    *model.CardHealth
	Status    Status
	Message   string
	UpdatedAt time.Time
	FromCache bool
}

func (t *Tile) deriveStatus() {
	t.Status = DeriveStatus(t.Card, t.Health)
	t.Message = StatusMessage(t.Card, t.Health)
}

// Engine reconciles incoming layouts against the live tile set. Existing
// tiles survive layout changes: only their placement and title are updated,
// so card payloads, derived status, and timestamps carry across a layout
// poll unchanged. New placements append in layout order; tiles absent from
// the new layout are dropped.
//
// The engine is not safe for concurrent use. It is owned by the Bubble Tea
// model and only touched from Update.
type Engine struct {
	grid        model.Grid
	view        string
	tiles       map[string]*Tile
	order       []string
	emptyReason string
}

// NewEngine creates an empty engine.
func NewEngine() *Engine {
	return &Engine{
		grid:        model.DefaultGrid(),
		tiles:       make(map[string]*Tile),
		emptyReason: "waiting for layout",
	}
}

// ApplyLayout reconciles the engine against a new layout. Returns how many
// tiles were added and removed; zero/zero means the layout was structurally
// identical (modulo placement moves and renames, which are applied in
// place).
func (e *Engine) ApplyLayout(layout *model.Layout) (added, removed int) {
	if layout == nil || len(layout.Placements) == 0 {
		removed = len(e.order)
		e.clear("layout has no tiles")
		return 0, removed
	}

	e.grid = layout.Grid
	e.view = layout.View
	e.emptyReason = ""

	incoming := make(map[string]model.Placement, len(layout.Placements))
	for _, p := range layout.Placements {
		if p.ID == "" {
			continue
		}
		incoming[p.ID] = p
	}

	// Pass 1: keep survivors in their existing order, updating placement
	// and title only.
	kept := e.order[:0]
	for _, id := range e.order {
		p, ok := incoming[id]
		if !ok {
			delete(e.tiles, id)
			removed++
			continue
		}
		tile := e.tiles[id]
		tile.Placement = p
		if p.Title != "" {
			tile.Title = p.Title
		}
		kept = append(kept, id)
	}
	e.order = kept

	// Pass 2: append tiles new to this layout, in layout order.
	for _, p := range layout.Placements {
		if p.ID == "" {
			continue
		}
		if _, exists := e.tiles[p.ID]; exists {
			continue
		}
		tile := &Tile{ID: p.ID, Title: p.Title, Placement: p}
		if tile.Title == "" {
			tile.Title = p.ID
		}
		tile.deriveStatus()
		e.tiles[p.ID] = tile
		e.order = append(e.order, p.ID)
		added++
	}

	return added, removed
}

// ApplyProfile projects a profile into a layout and reconciles against it.
// Zones failing validity are dropped before projection; a profile with no
// valid zones clears the engine and records the reason.
func (e *Engine) ApplyProfile(p *model.Profile) (added, removed int) {
	if p == nil {
		removed = len(e.order)
		e.clear("no profile")
		return 0, removed
	}
	if len(p.ValidZones()) == 0 {
		removed = len(e.order)
		e.clear("no valid zones")
		return 0, removed
	}

	layout := p.Layout()
	added, removed = e.ApplyLayout(layout)
	for id, card := range p.Cards {
		e.UpdateCard(id, card)
	}
	return added, removed
}

// ApplyState folds a combined state snapshot into the live tiles. Cards in
// the snapshot that have no tile are ignored; tiles missing from the
// snapshot keep their last payload.
func (e *Engine) ApplyState(state *model.State) {
	if state == nil {
		return
	}
	for id, card := range state.Cards {
		e.UpdateCard(id, card)
	}
}

// UpdateCard replaces one tile's card payload. A card for an id not in the
// current layout is dropped; reports whether the update landed.
func (e *Engine) UpdateCard(id string, card *model.Card) bool {
	tile, ok := e.tiles[id]
	if !ok {
		return false
	}
	tile.Card = card
	tile.UpdatedAt = time.Now()
	if card != nil && card.Title != "" && tile.Placement.Title == "" {
		tile.Title = card.Title
	}
	tile.deriveStatus()
	return true
}

// ApplyHealth joins a health snapshot onto the live tiles and re-derives
// every status.
func (e *Engine) ApplyHealth(h *model.Health) {
	for _, id := range e.order {
		tile := e.tiles[id]
		if h != nil {
			tile.Health = h.Card(id)
		} else {
			tile.Health = nil
		}
		tile.deriveStatus()
	}
}

// SetFromCache flags every live tile as cache-served or live.
func (e *Engine) SetFromCache(fromCache bool) {
	for _, id := range e.order {
		e.tiles[id].FromCache = fromCache
	}
}

// Tiles returns the live tiles in reconciliation order.
func (e *Engine) Tiles() []*Tile {
	out := make([]*Tile, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.tiles[id])
	}
	return out
}

// Get returns the tile for id, or nil.
func (e *Engine) Get(id string) *Tile {
	return e.tiles[id]
}

// Len returns the live tile count.
func (e *Engine) Len() int {
	return len(e.order)
}

// Empty reports whether no tiles are live.
func (e *Engine) Empty() bool {
	return len(e.order) == 0
}

// EmptyReason explains an empty engine, for the placeholder screen.
func (e *Engine) EmptyReason() string {
	return e.emptyReason
}

// Grid returns the active grid definition.
func (e *Engine) Grid() model.Grid {
	return e.grid
}

// View returns the view name of the applied layout.
func (e *Engine) View() string {
	return e.view
}

// OverallStatus aggregates tile statuses to the worst severity present.
func (e *Engine) OverallStatus() Status {
	if len(e.order) == 0 {
		return StatusUnknown
	}
	worst := StatusOK
	for _, id := range e.order {
		if s := e.tiles[id].Status; StatusRank(s) > StatusRank(worst) {
			worst = s
		}
	}
	return worst
}

func (e *Engine) clear(reason string) {
	e.tiles = make(map[string]*Tile)
	e.order = nil
	e.emptyReason = reason
}
