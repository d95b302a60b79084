package model

// Zone is a named region of a profile's grid holding an ordered set of
// cards. Zones missing an ID or grid area are excluded from rendering
// entirely rather than partially rendered.
type Zone struct {
	ID       string   `json:"id"`
	Name     string   `json:"name,omitempty"`
	GridArea string   `json:"gridArea"`
	CardIDs  []string `json:"cards,omitempty"`
}

// Valid reports whether the zone carries the fields required to render it.
func (z Zone) Valid() bool {
	return z.ID != "" && z.GridArea != ""
}

// Profile is the flattened internal form of the profile wire format: grid
// config, valid zones, and the card data keyed by id.
type Profile struct {
	ID    string
	Name  string
	Grid  Grid
	Zones []Zone
	Cards map[string]*Card
}

// ValidZones returns the zones that survived validity filtering, in
// declared order.
func (p *Profile) ValidZones() []Zone {
	if p == nil {
		return nil
	}
	out := make([]Zone, 0, len(p.Zones))
	for _, z := range p.Zones {
		if z.Valid() {
			out = append(out, z)
		}
	}
	return out
}

// Layout projects the profile onto the common layout model consumed by the
// reconciliation engine. Each card is placed in its zone's grid area; the
// view stacks cards sharing an area in zone order. Placement titles come
// from the card data so relabeling flows through layout application.
func (p *Profile) Layout() *Layout {
	l := &Layout{View: p.Name, Grid: p.Grid}
	for _, z := range p.ValidZones() {
		for _, id := range z.CardIDs {
			title := id
			if c := p.Cards[id]; c != nil && c.Title != "" {
				title = c.Title
			}
			l.Placements = append(l.Placements, Placement{
				ID:       id,
				Title:    title,
				GridArea: z.GridArea,
			})
		}
	}
	return l
}
