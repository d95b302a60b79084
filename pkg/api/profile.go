package api

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/gibbs-codes/projectorUIv2/pkg/debug"
	"github.com/gibbs-codes/projectorUIv2/pkg/model"
)

// The profile wire format nests cards by reference id inside zone
// definitions:
//
//	{"profileId": "...", "profile": {"name": "...", "zones": {
//	    "main": {"name": "Main", "width": 2, "cards": ["card-a", "card-b"]}}}}
//
// Older backends emit a flat shape with inline card objects instead:
//
//	{"id": "...", "name": "...", "gridConfig": {...}, "zones": [
//	    {"id": "main", "gridArea": "main", "cards": [{...}, {...}]}]}
//
// Both are accepted. Referenced cards not inlined are fetched individually
// (there is no bulk endpoint); a failed card fetch yields a placeholder, not
// a failed profile.

type wireGridConfig struct {
	Columns any               `json:"columns"`
	Rows    any               `json:"rows"`
	Areas   []json.RawMessage `json:"areas"`
	Gap     any               `json:"gap"`
}

type wireNestedZone struct {
	Name     string            `json:"name"`
	GridArea string            `json:"gridArea"`
	Width    int               `json:"width"`
	Cards    []json.RawMessage `json:"cards"`
}

type wireFlatZone struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	GridArea string            `json:"gridArea"`
	Cards    []json.RawMessage `json:"cards"`
}

type wireProfileDoc struct {
	ProfileID string `json:"profileId"`
	Profile   *struct {
		Name       string                    `json:"name"`
		GridConfig *wireGridConfig           `json:"gridConfig"`
		Zones      map[string]wireNestedZone `json:"zones"`
	} `json:"profile"`

	ID         string            `json:"id"`
	Name       string            `json:"name"`
	GridConfig *wireGridConfig   `json:"gridConfig"`
	Zones      []json.RawMessage `json:"zones"`
}

// profileDoc is the shape-agnostic intermediate both wire variants decode
// into before repair and card resolution run.
type profileDoc struct {
	ID      string
	Name    string
	Grid    model.Grid
	HasGrid bool
	Zones   []model.Zone
	Cards   map[string]*model.Card
}

// GetActiveProfile fetches the active profile, flattens it into the
// internal model, and resolves all referenced cards. A payload that fails
// top-level shape validation returns *MalformedResponseError with the raw
// body attached so the caller can run RepairProfile on it; no partial
// transformation is attempted here.
func (c *Client) GetActiveProfile(ctx context.Context) (*model.Profile, error) {
	var raw json.RawMessage
	found, err := c.do(ctx, http.MethodGet, "/api/profile/active", nil, &raw)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	profile, err := ParseProfile(raw)
	if err != nil {
		return nil, err
	}
	c.ResolveProfileCards(ctx, profile)
	return profile, nil
}

// ParseProfile decodes a raw profile payload under strict top-level
// validation. Shared by the live gateway and fixture-backed mock sources so
// both enforce the same shape rules.
func ParseProfile(raw []byte) (*model.Profile, error) {
	doc, err := decodeProfileDoc(raw)
	if err != nil {
		return nil, err
	}
	if !doc.HasGrid {
		return nil, &MalformedResponseError{Reason: "profile missing gridConfig", Raw: raw}
	}
	if len(doc.Zones) == 0 {
		return nil, &MalformedResponseError{Reason: "profile has no zones", Raw: raw}
	}
	return doc.toProfile(), nil
}

// GetCard fetches one card's detail payload by id.
func (c *Client) GetCard(ctx context.Context, id string) (*model.Card, error) {
	path := "/api/cards/" + url.PathEscape(id)
	var card model.Card
	found, err := c.do(ctx, http.MethodGet, path, nil, &card)
	if err != nil || !found {
		return nil, err
	}
	if card.ID == "" {
		card.ID = id
	}
	return &card, nil
}

// ResolveProfileCards fetches every card the profile references but does
// not yet hold, fanning out one request per card id. Failures are isolated
// per card: a placeholder is substituted and the rest of the profile is
// unaffected.
func (c *Client) ResolveProfileCards(ctx context.Context, p *model.Profile) {
	if p == nil {
		return
	}
	if p.Cards == nil {
		p.Cards = make(map[string]*model.Card)
	}

	var missing []string
	seen := make(map[string]bool)
	for _, z := range p.Zones {
		for _, id := range z.CardIDs {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			if _, ok := p.Cards[id]; !ok {
				missing = append(missing, id)
			}
		}
	}
	if len(missing) == 0 {
		return
	}

	results := make([]*model.Card, len(missing))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cardFanOut)
	for i, id := range missing {
		g.Go(func() error {
			card, err := c.GetCard(gctx, id)
			if err != nil || card == nil {
				debug.Log("profile: card %s unresolved: %v", id, err)
				card = model.PlaceholderCard(id, err)
			}
			results[i] = card
			return nil
		})
	}
	_ = g.Wait()

	for i, id := range missing {
		p.Cards[id] = results[i]
	}
}

func decodeProfileDoc(raw []byte) (*profileDoc, error) {
	var w wireProfileDoc
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, &MalformedResponseError{Reason: "profile is not a JSON object", Raw: raw}
	}

	doc := &profileDoc{Cards: make(map[string]*model.Card)}

	switch {
	case w.Profile != nil:
		doc.ID = w.ProfileID
		doc.Name = w.Profile.Name
		if w.Profile.GridConfig != nil {
			doc.Grid = gridFromConfig(w.Profile.GridConfig)
			doc.HasGrid = true
		}
		// Map iteration order is random; sort zone keys so the flattened
		// zone order is stable across polls.
		keys := make([]string, 0, len(w.Profile.Zones))
		for k := range w.Profile.Zones {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			entry := w.Profile.Zones[key]
			area := entry.GridArea
			if area == "" {
				area = key
			}
			zone := model.Zone{ID: key, Name: entry.Name, GridArea: area}
			zone.CardIDs = doc.collectZoneCards(entry.Cards)
			doc.Zones = append(doc.Zones, zone)
		}
	case w.Zones != nil:
		doc.ID = w.ID
		doc.Name = w.Name
		if w.GridConfig != nil {
			doc.Grid = gridFromConfig(w.GridConfig)
			doc.HasGrid = true
		}
		for _, rawZone := range w.Zones {
			var fz wireFlatZone
			if err := json.Unmarshal(rawZone, &fz); err != nil {
				continue
			}
			zone := model.Zone{ID: fz.ID, Name: fz.Name, GridArea: fz.GridArea}
			zone.CardIDs = doc.collectZoneCards(fz.Cards)
			doc.Zones = append(doc.Zones, zone)
		}
	default:
		return nil, &MalformedResponseError{Reason: "profile missing zones", Raw: raw}
	}

	return doc, nil
}

// collectZoneCards accepts the two card entry shapes (a bare reference id
// or an inline card object), registering inline cards and returning the
// ordered id list.
func (d *profileDoc) collectZoneCards(entries []json.RawMessage) []string {
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		var ref string
		if err := json.Unmarshal(entry, &ref); err == nil {
			if ref != "" {
				ids = append(ids, ref)
			}
			continue
		}
		var card model.Card
		if err := json.Unmarshal(entry, &card); err != nil || card.ID == "" {
			continue
		}
		d.Cards[card.ID] = &card
		ids = append(ids, card.ID)
	}
	return ids
}

func (d *profileDoc) toProfile() *model.Profile {
	return &model.Profile{
		ID:    d.ID,
		Name:  d.Name,
		Grid:  d.Grid,
		Zones: d.Zones,
		Cards: d.Cards,
	}
}

// gridFromConfig normalizes the CSS-flavored grid config ("1fr 1fr"
// template strings, area matrices with string or array rows) into cell
// counts and a named-area matrix.
func gridFromConfig(cfg *wireGridConfig) model.Grid {
	g := model.Grid{
		Columns: trackCount(cfg.Columns),
		Rows:    trackCount(cfg.Rows),
	}
	for _, rawRow := range cfg.Areas {
		var cells []string
		if err := json.Unmarshal(rawRow, &cells); err != nil {
			var line string
			if err := json.Unmarshal(rawRow, &line); err != nil {
				continue
			}
			cells = strings.Fields(line)
		}
		if len(cells) > 0 {
			g.Areas = append(g.Areas, cells)
		}
	}
	if len(g.Areas) > 0 {
		if g.Rows < len(g.Areas) {
			g.Rows = len(g.Areas)
		}
		for _, row := range g.Areas {
			if g.Columns < len(row) {
				g.Columns = len(row)
			}
		}
	}
	if g.Columns <= 0 {
		g.Columns = 1
	}
	if g.Rows <= 0 {
		g.Rows = 1
	}
	if f, ok := cfg.Gap.(float64); ok {
		g.Gap = int(f)
	}
	return g
}

// trackCount counts grid tracks: a template string like "1fr 2fr 1fr" has
// one track per field, a bare number is taken as the count directly.
func trackCount(v any) int {
	switch t := v.(type) {
	case string:
		return len(strings.Fields(t))
	case float64:
		return int(t)
	default:
		return 0
	}
}
