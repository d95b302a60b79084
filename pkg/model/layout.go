package model

import (
	"time"

	json "github.com/goccy/go-json"
)

// Grid describes the dashboard grid: a column/row count plus an optional
// named-area matrix. Named areas win over coordinates when both are present.
type Grid struct {
	Columns int        `json:"columns"`
	Rows    int        `json:"rows"`
	Areas   [][]string `json:"areas,omitempty"`
	Gap     int        `json:"gap,omitempty"`
}

// DefaultGrid is used whenever a layout or profile arrives without usable
// grid dimensions.
func DefaultGrid() Grid {
	return Grid{Columns: 12, Rows: 6}
}

// AreaRect resolves a named grid area to its bounding cell rectangle
// (1-based, spans inclusive). Returns false if the area is not in the matrix.
func (g Grid) AreaRect(area string) (col, row, colSpan, rowSpan int, ok bool) {
	if area == "" || len(g.Areas) == 0 {
		return 0, 0, 0, 0, false
	}
	minCol, minRow := -1, -1
	maxCol, maxRow := -1, -1
	for r, rowCells := range g.Areas {
		for c, cell := range rowCells {
			if cell != area {
				continue
			}
			if minRow == -1 || r < minRow {
				minRow = r
			}
			if minCol == -1 || c < minCol {
				minCol = c
			}
			if r > maxRow {
				maxRow = r
			}
			if c > maxCol {
				maxCol = c
			}
		}
	}
	if minRow == -1 {
		return 0, 0, 0, 0, false
	}
	return minCol + 1, minRow + 1, maxCol - minCol + 1, maxRow - minRow + 1, true
}

// Placement positions one card in the grid. Either GridArea or the
// coordinate fields are set; unset coordinates default to 1.
type Placement struct {
	ID         string `json:"id"`
	Title      string `json:"title,omitempty"`
	Column     int    `json:"column,omitempty"`
	Row        int    `json:"row,omitempty"`
	ColumnSpan int    `json:"columnSpan,omitempty"`
	RowSpan    int    `json:"rowSpan,omitempty"`
	GridArea   string `json:"gridArea,omitempty"`
}

// Rect returns the placement's cell rectangle, resolving a named area
// against the grid when set and falling back to coordinates otherwise.
func (p Placement) Rect(g Grid) (col, row, colSpan, rowSpan int) {
	if c, r, cs, rs, ok := g.AreaRect(p.GridArea); ok {
		return c, r, cs, rs
	}
	col, row, colSpan, rowSpan = p.Column, p.Row, p.ColumnSpan, p.RowSpan
	if col <= 0 {
		col = 1
	}
	if row <= 0 {
		row = 1
	}
	if colSpan <= 0 {
		colSpan = 1
	}
	if rowSpan <= 0 {
		rowSpan = 1
	}
	return col, row, colSpan, rowSpan
}

// Layout is the declarative arrangement of cards for one view.
type Layout struct {
	View       string
	Grid       Grid
	Placements []Placement
}

type wirePlacement struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Column     int    `json:"column"`
	Row        int    `json:"row"`
	ColumnSpan int    `json:"columnSpan"`
	RowSpan    int    `json:"rowSpan"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	GridArea   string `json:"gridArea"`
}

type wireLayout struct {
	View  string          `json:"view"`
	Grid  Grid            `json:"grid"`
	Tiles []wirePlacement `json:"tiles"`
}

// UnmarshalJSON decodes the layout wire format. The backend uses
// columnSpan/rowSpan in new payloads and width/height in old ones; both are
// accepted, with the span fields winning.
func (l *Layout) UnmarshalJSON(data []byte) error {
	var w wireLayout
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	l.View = w.View
	l.Grid = w.Grid
	if l.Grid.Columns <= 0 {
		l.Grid.Columns = DefaultGrid().Columns
	}
	if l.Grid.Rows <= 0 {
		l.Grid.Rows = DefaultGrid().Rows
	}
	l.Placements = make([]Placement, 0, len(w.Tiles))
	for _, t := range w.Tiles {
		colSpan := t.ColumnSpan
		if colSpan <= 0 {
			colSpan = t.Width
		}
		rowSpan := t.RowSpan
		if rowSpan <= 0 {
			rowSpan = t.Height
		}
		l.Placements = append(l.Placements, Placement{
			ID:         t.ID,
			Title:      t.Title,
			Column:     t.Column,
			Row:        t.Row,
			ColumnSpan: colSpan,
			RowSpan:    rowSpan,
			GridArea:   t.GridArea,
		})
	}
	return nil
}

// MarshalJSON emits the canonical wire shape (span field names only).
func (l Layout) MarshalJSON() ([]byte, error) {
	w := wireLayout{View: l.View, Grid: l.Grid, Tiles: make([]wirePlacement, 0, len(l.Placements))}
	for _, p := range l.Placements {
		w.Tiles = append(w.Tiles, wirePlacement{
			ID:         p.ID,
			Title:      p.Title,
			Column:     p.Column,
			Row:        p.Row,
			ColumnSpan: p.ColumnSpan,
			RowSpan:    p.RowSpan,
			GridArea:   p.GridArea,
		})
	}
	return json.Marshal(w)
}

// Placement returns the placement for id, or nil.
func (l *Layout) Placement(id string) *Placement {
	if l == nil {
		return nil
	}
	for i := range l.Placements {
		if l.Placements[i].ID == id {
			return &l.Placements[i]
		}
	}
	return nil
}

// State is the combined dashboard state feed: the server-selected view,
// a last-updated stamp, and the current per-card data.
type State struct {
	View        string
	LastUpdated time.Time
	Cards       map[string]*Card
}

type wireState struct {
	View        string           `json:"view"`
	LastUpdated any              `json:"lastUpdated"`
	Tiles       map[string]*Card `json:"tiles"`
}

func (s *State) UnmarshalJSON(data []byte) error {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.View = w.View
	s.Cards = w.Tiles
	if ts, ok := ParseTimestamp(w.LastUpdated); ok {
		s.LastUpdated = ts
	}
	for id, card := range s.Cards {
		if card != nil && card.ID == "" {
			card.ID = id
		}
	}
	return nil
}

func (s State) MarshalJSON() ([]byte, error) {
	w := wireState{View: s.View, Tiles: s.Cards}
	if !s.LastUpdated.IsZero() {
		w.LastUpdated = s.LastUpdated.Format(time.RFC3339)
	}
	return json.Marshal(w)
}
