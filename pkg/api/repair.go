package api

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/gibbs-codes/projectorUIv2/pkg/debug"
	"github.com/gibbs-codes/projectorUIv2/pkg/model"
)

// RepairOutcome classifies what the repair pass had to do.
type RepairOutcome int

const (
	// RepairOK means the payload needed no fixes.
	RepairOK RepairOutcome = iota
	// Repaired means the payload was usable after fixes were applied.
	Repaired
	// Unrecoverable means nothing displayable survived; callers should fall
	// back to FallbackProfile.
	Unrecoverable
)

// RepairReport records every fix the repair pass applied, for the status
// line and the debug log.
type RepairReport struct {
	Outcome      RepairOutcome
	Applied      []string
	DroppedZones []string
}

func (r *RepairReport) applied(format string, args ...any) {
	r.Applied = append(r.Applied, fmt.Sprintf(format, args...))
}

// RepairProfile takes a raw profile payload that failed strict validation
// and tries to salvage a displayable profile from it. Each rule fills or
// drops one class of defect; the report lists everything that was touched.
// When the outcome is Unrecoverable the returned profile is nil.
func RepairProfile(raw []byte) (*model.Profile, *RepairReport) {
	report := &RepairReport{Outcome: Repaired}

	doc, err := decodeProfileDoc(raw)
	if err != nil {
		// Not even the loose decode could find zones. Try one last shape: a
		// bare card list with no profile envelope at all.
		doc = orphanCardDoc(raw)
		if doc == nil {
			report.Outcome = Unrecoverable
			return nil, report
		}
		report.applied("wrapped %d orphan cards in a synthesized zone", len(doc.Cards))
	}

	if doc.ID == "" {
		doc.ID = "recovered"
		report.applied("filled missing profile id")
	}
	if doc.Name == "" {
		doc.Name = "Recovered profile"
		report.applied("filled missing profile name")
	}

	repairZones(doc, report)

	if len(doc.Zones) == 0 {
		report.Outcome = Unrecoverable
		return nil, report
	}

	if !doc.HasGrid {
		doc.Grid = synthesizeGrid(doc.Zones)
		report.applied("synthesized grid for %d zones", len(doc.Zones))
	}

	if len(report.Applied) == 0 && len(report.DroppedZones) == 0 {
		report.Outcome = RepairOK
	}
	for _, fix := range report.Applied {
		debug.Log("profile repair: %s", fix)
	}
	return doc.toProfile(), report
}

// repairZones fills recoverable zone defects in place and drops zones that
// remain invalid. A zone missing only its id or only its grid area can
// borrow the other field; a zone missing both is dropped whole, cards
// included.
func repairZones(doc *profileDoc, report *RepairReport) {
	kept := doc.Zones[:0]
	for _, z := range doc.Zones {
		switch {
		case z.ID == "" && z.GridArea != "":
			z.ID = z.GridArea
			report.applied("zone %q: borrowed id from grid area", z.ID)
		case z.GridArea == "" && z.ID != "":
			z.GridArea = z.ID
			report.applied("zone %q: borrowed grid area from id", z.ID)
		}
		if !z.Valid() {
			report.DroppedZones = append(report.DroppedZones, zoneLabel(z))
			continue
		}
		kept = append(kept, z)
	}
	doc.Zones = kept
}

func zoneLabel(z model.Zone) string {
	if z.ID != "" {
		return z.ID
	}
	if z.Name != "" {
		return z.Name
	}
	return "(unnamed)"
}

// orphanCardDoc handles the degenerate payload that is just an array of
// cards, or an object holding only a cards array. All cards land in one
// synthesized zone.
func orphanCardDoc(raw []byte) *profileDoc {
	cards := decodeCardList(raw)
	if len(cards) == 0 {
		var envelope struct {
			Cards []*model.Card `json:"cards"`
		}
		if err := json.Unmarshal(raw, &envelope); err == nil {
			cards = envelope.Cards
		}
	}

	doc := &profileDoc{Cards: make(map[string]*model.Card)}
	zone := model.Zone{ID: "main", Name: "Main", GridArea: "main"}
	for _, card := range cards {
		if card == nil || card.ID == "" {
			continue
		}
		doc.Cards[card.ID] = card
		zone.CardIDs = append(zone.CardIDs, card.ID)
	}
	if len(zone.CardIDs) == 0 {
		return nil
	}
	doc.Zones = []model.Zone{zone}
	return doc
}

func decodeCardList(raw []byte) []*model.Card {
	var cards []*model.Card
	if err := json.Unmarshal(raw, &cards); err != nil {
		return nil
	}
	return cards
}

// synthesizeGrid lays zones out one per row in a single column. Plain but
// always displayable, which is all a recovered profile promises.
func synthesizeGrid(zones []model.Zone) model.Grid {
	g := model.Grid{Columns: 1, Rows: len(zones)}
	for _, z := range zones {
		g.Areas = append(g.Areas, []string{z.GridArea})
	}
	return g
}

// FallbackProfile is the built-in profile shown when the backend's profile
// is unrecoverable. It never touches the network: every card is inline.
func FallbackProfile() *model.Profile {
	clock := &model.Card{
		ID:    "fallback-clock",
		Type:  model.CardClock,
		Title: "Clock",
		Fields: map[string]any{
			"format": "15:04",
		},
	}
	notice := &model.Card{
		ID:    "fallback-notice",
		Type:  model.CardText,
		Title: "Profile unavailable",
		Fields: map[string]any{
			"content": "The active profile could not be loaded.\n\n" +
				"Showing the built-in fallback. The dashboard keeps polling " +
				"and will switch back as soon as a valid profile arrives.",
		},
	}
	status := &model.Card{
		ID:    "fallback-status",
		Type:  model.CardStatus,
		Title: "Backend",
		Fields: map[string]any{
			"status": "degraded",
		},
	}

	return &model.Profile{
		ID:   "fallback",
		Name: "Fallback",
		Grid: model.Grid{
			Columns: 2,
			Rows:    2,
			Areas: [][]string{
				{"header", "header"},
				{"main", "side"},
			},
		},
		Zones: []model.Zone{
			{ID: "header", Name: "Header", GridArea: "header", CardIDs: []string{"fallback-clock"}},
			{ID: "main", Name: "Main", GridArea: "main", CardIDs: []string{"fallback-notice"}},
			{ID: "side", Name: "Side", GridArea: "side", CardIDs: []string{"fallback-status"}},
		},
		Cards: map[string]*model.Card{
			"fallback-clock":  clock,
			"fallback-notice": notice,
			"fallback-status": status,
		},
	}
}
