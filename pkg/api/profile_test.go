package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/gibbs-codes/projectorUIv2/pkg/model"
)

const nestedProfileBody = `{
	"profileId": "morning-routine",
	"profile": {
		"name": "Morning",
		"gridConfig": {
			"columns": "1fr 1fr",
			"rows": "1fr",
			"areas": [["left", "right"]]
		},
		"zones": {
			"left":  {"name": "Left", "cards": ["clock-now", "weather-local"]},
			"right": {"name": "Right", "cards": ["tasks-today"]}
		}
	}
}`

func profileServer(t *testing.T, profileBody string, cards map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/profile/active":
			w.Write([]byte(profileBody))
		case strings.HasPrefix(r.URL.Path, "/api/cards/"):
			id := strings.TrimPrefix(r.URL.Path, "/api/cards/")
			body, ok := cards[id]
			if !ok {
				http.NotFound(w, r)
				return
			}
			w.Write([]byte(body))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestGetActiveProfileNestedWire(t *testing.T) {
	srv := profileServer(t, nestedProfileBody, map[string]string{
		"clock-now":     `{"id":"clock-now","type":"clock","title":"Clock"}`,
		"weather-local": `{"id":"weather-local","type":"weather","title":"Weather","temperature":18.5}`,
		"tasks-today":   `{"id":"tasks-today","type":"tasks","title":"Tasks","items":[]}`,
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	p, err := c.GetActiveProfile(context.Background())
	if err != nil {
		t.Fatalf("GetActiveProfile: %v", err)
	}
	if p.ID != "morning-routine" || p.Name != "Morning" {
		t.Errorf("identity = %q/%q", p.ID, p.Name)
	}
	if p.Grid.Columns != 2 {
		t.Errorf("Columns = %d, want 2 from template string", p.Grid.Columns)
	}
	if len(p.Zones) != 2 {
		t.Fatalf("zones = %d, want 2", len(p.Zones))
	}
	// Map-shaped zones flatten in sorted key order.
	if p.Zones[0].ID != "left" || p.Zones[1].ID != "right" {
		t.Errorf("zone order = %q, %q", p.Zones[0].ID, p.Zones[1].ID)
	}
	if p.Zones[0].GridArea != "left" {
		t.Errorf("grid area not defaulted from zone key: %q", p.Zones[0].GridArea)
	}
	for _, id := range []string{"clock-now", "weather-local", "tasks-today"} {
		if _, ok := p.Cards[id]; !ok {
			t.Errorf("referenced card %s not resolved", id)
		}
	}
	if got, ok := p.Cards["weather-local"].Number("temperature"); !ok || got != 18.5 {
		t.Errorf("temperature = %v, %v", got, ok)
	}
}

func TestGetActiveProfileFailedCardBecomesPlaceholder(t *testing.T) {
	srv := profileServer(t, nestedProfileBody, map[string]string{
		"clock-now":   `{"id":"clock-now","type":"clock","title":"Clock"}`,
		"tasks-today": `{"id":"tasks-today","type":"tasks","title":"Tasks"}`,
		// weather-local deliberately missing: 404 from the card endpoint.
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	p, err := c.GetActiveProfile(context.Background())
	if err != nil {
		t.Fatalf("one failed card must not fail the profile: %v", err)
	}
	card, ok := p.Cards["weather-local"]
	if !ok {
		t.Fatal("failed card missing entirely, want placeholder")
	}
	if !card.IsPlaceholder() {
		t.Errorf("want placeholder, got %+v", card)
	}
	if p.Cards["clock-now"].IsPlaceholder() {
		t.Error("placeholder substitution leaked to healthy cards")
	}
}

func TestGetActiveProfileFlatWire(t *testing.T) {
	const flat = `{
		"id": "work",
		"name": "Work",
		"gridConfig": {"columns": 3, "rows": 2},
		"zones": [
			{"id": "main", "gridArea": "main", "cards": [
				{"id": "calendar-day", "type": "calendar", "title": "Today"}
			]},
			{"id": "side", "gridArea": "side", "cards": ["status-ci"]}
		]
	}`
	srv := profileServer(t, flat, map[string]string{
		"status-ci": `{"id":"status-ci","type":"status","title":"CI","status":"ok"}`,
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	p, err := c.GetActiveProfile(context.Background())
	if err != nil {
		t.Fatalf("GetActiveProfile: %v", err)
	}
	if p.Grid.Columns != 3 || p.Grid.Rows != 2 {
		t.Errorf("grid = %dx%d, want 3x2", p.Grid.Columns, p.Grid.Rows)
	}
	// Inline card must be used as-is, not re-fetched.
	if card := p.Cards["calendar-day"]; card == nil || card.Type != model.CardCalendar {
		t.Errorf("inline card lost: %+v", card)
	}
	if card := p.Cards["status-ci"]; card == nil || card.String("status") != "ok" {
		t.Errorf("referenced card not resolved: %+v", card)
	}
	if p.Zones[0].ID != "main" || p.Zones[1].ID != "side" {
		t.Error("flat zone order not preserved")
	}
}

func TestGetActiveProfileMissingGridIsMalformed(t *testing.T) {
	const body = `{"id":"x","name":"X","zones":[{"id":"a","gridArea":"a","cards":[]}]}`
	srv := profileServer(t, body, nil)
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.GetActiveProfile(context.Background())
	m, ok := IsMalformed(err)
	if !ok {
		t.Fatalf("want malformed, got %v", err)
	}
	if len(m.Raw) == 0 {
		t.Fatal("raw payload must be attached for the repair pass")
	}

	// The attached payload must be salvageable.
	p, report := RepairProfile(m.Raw)
	if report.Outcome != Repaired {
		t.Fatalf("outcome = %v, want Repaired", report.Outcome)
	}
	if p.Grid.Columns < 1 || p.Grid.Rows < 1 {
		t.Errorf("synthesized grid unusable: %+v", p.Grid)
	}
}

func TestGetActiveProfileNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	p, err := c.GetActiveProfile(context.Background())
	if err != nil || p != nil {
		t.Errorf("204 must yield (nil, nil), got (%+v, %v)", p, err)
	}
}

func TestGridFromConfigAreaStrings(t *testing.T) {
	g := gridFromConfig(&wireGridConfig{
		Areas: []json.RawMessage{
			json.RawMessage(`"header header"`),
			json.RawMessage(`"main side"`),
		},
	})
	if g.Columns != 2 || g.Rows != 2 {
		t.Errorf("grid = %dx%d, want 2x2 inferred from areas", g.Columns, g.Rows)
	}
	if g.Areas[1][1] != "side" {
		t.Errorf("area matrix wrong: %v", g.Areas)
	}
}
