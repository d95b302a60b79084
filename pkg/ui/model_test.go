package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gibbs-codes/projectorUIv2/pkg/api"
	"github.com/gibbs-codes/projectorUIv2/pkg/config"
	"github.com/gibbs-codes/projectorUIv2/pkg/model"
	"github.com/gibbs-codes/projectorUIv2/pkg/poller"
)

// fakeGateway serves canned payloads and records refresh calls.
type fakeGateway struct {
	refreshed  []string
	refreshErr error
}

func (f *fakeGateway) GetState(context.Context) (*model.State, error)   { return nil, nil }
func (f *fakeGateway) GetHealth(context.Context) (*model.Health, error) { return nil, nil }
func (f *fakeGateway) GetLayout(context.Context, string) (*model.Layout, error) {
	return nil, nil
}
func (f *fakeGateway) GetTile(_ context.Context, id string) (*model.Card, error) {
	return &model.Card{ID: id}, nil
}
func (f *fakeGateway) RefreshTile(_ context.Context, id string) (*model.Card, error) {
	f.refreshed = append(f.refreshed, id)
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &model.Card{ID: id, Title: "fresh"}, nil
}
func (f *fakeGateway) GetActiveProfile(context.Context) (*model.Profile, error) {
	return nil, nil
}

func newTestModel(t *testing.T) (*Model, *fakeGateway) {
	t.Helper()
	gw := &fakeGateway{}
	pol, err := poller.New(poller.Config{Sources: []poller.SourceSpec{{
		Source:   poller.SourceState,
		Interval: time.Hour,
		Fetch: func(context.Context) (any, bool, error) {
			return &model.State{}, false, nil
		},
	}}})
	if err != nil {
		t.Fatalf("poller.New: %v", err)
	}
	cfg := config.DefaultConfig()
	m := NewModel(cfg, gw, pol, nil, nil)
	return m, gw
}

func applyLayoutResult(m *Model, ids ...string) {
	l := layoutOf(ids...)
	l.View = m.CurrentView()
	m.Update(poller.ResultMsg{
		Source:     poller.SourceLayout,
		Generation: m.pol.Generation(),
		Payload:    l,
	})
}

func key(s string) tea.KeyMsg {
	if len(s) == 1 {
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	}
	panic("unhandled key " + s)
}

func TestHandleResultAppliesLayout(t *testing.T) {
	m, _ := newTestModel(t)
	applyLayoutResult(m, "a", "b")
	if m.Engine().Len() != 2 {
		t.Fatalf("tiles = %d, want 2", m.Engine().Len())
	}
}

func TestHandleResultDropsStaleGeneration(t *testing.T) {
	m, _ := newTestModel(t)

	l := layoutOf("a")
	l.View = m.CurrentView()
	m.Update(poller.ResultMsg{
		Source:     poller.SourceLayout,
		Generation: m.pol.Generation() + 1,
		Payload:    l,
	})
	if !m.Engine().Empty() {
		t.Error("result from another generation must be dropped")
	}
}

func TestHandleResultDropsLayoutForOtherView(t *testing.T) {
	m, _ := newTestModel(t)

	l := layoutOf("a")
	l.View = "somewhere-else"
	m.Update(poller.ResultMsg{
		Source:     poller.SourceLayout,
		Generation: m.pol.Generation(),
		Payload:    l,
	})
	if !m.Engine().Empty() {
		t.Error("layout for a different view must be dropped")
	}
}

func TestTransportErrorFlipsOffline(t *testing.T) {
	m, _ := newTestModel(t)
	if !m.online {
		t.Fatal("model should start online")
	}

	m.Update(poller.ResultMsg{
		Source:     poller.SourceState,
		Generation: m.pol.Generation(),
		Err:        &api.TransportError{Err: errors.New("connection refused")},
	})
	if m.online {
		t.Fatal("transport error should flip the model offline")
	}
	if m.lastErr == "" {
		t.Error("error text should be recorded for the footer")
	}

	// First live result flips back and raises the reconnect toast.
	m.Update(poller.ResultMsg{
		Source:     poller.SourceState,
		Generation: m.pol.Generation(),
		Payload:    &model.State{},
		FetchedAt:  time.Now(),
	})
	if !m.online || m.lastErr != "" {
		t.Error("live result should clear the offline state")
	}
	if len(m.toasts) == 0 || m.toasts[len(m.toasts)-1].text != "back online" {
		t.Errorf("toasts = %+v, want back online", m.toasts)
	}
}

func TestCachedResultKeepsOfflineState(t *testing.T) {
	m, _ := newTestModel(t)
	m.online = false

	m.Update(poller.ResultMsg{
		Source:     poller.SourceState,
		Generation: m.pol.Generation(),
		Payload:    &model.State{},
		FromCache:  true,
	})
	if m.online {
		t.Error("a cache-served result must not report the backend online")
	}
}

func TestServerPushedViewChange(t *testing.T) {
	m, _ := newTestModel(t)
	if len(m.cfg.Views) < 2 {
		t.Skip("default config has fewer than two views")
	}
	target := m.cfg.Views[1]

	m.Update(poller.ResultMsg{
		Source:     poller.SourceState,
		Generation: m.pol.Generation(),
		Payload:    &model.State{View: target},
	})
	if m.CurrentView() != target {
		t.Errorf("view = %q, want the server-pushed %q", m.CurrentView(), target)
	}

	// A view the config does not know stays put.
	m.Update(poller.ResultMsg{
		Source:     poller.SourceState,
		Generation: m.pol.Generation(),
		Payload:    &model.State{View: "atlantis"},
	})
	if m.CurrentView() != target {
		t.Errorf("unknown server view should be ignored, got %q", m.CurrentView())
	}
}

func TestSwitchViewByKey(t *testing.T) {
	m, _ := newTestModel(t)
	if len(m.cfg.Views) < 2 {
		t.Skip("default config has fewer than two views")
	}
	start := m.CurrentView()

	var seen string
	m.onViewChange = func(v string) { seen = v }

	m.Update(key("tab"))
	if m.CurrentView() == start {
		t.Fatal("tab should advance the view")
	}
	if seen != m.CurrentView() {
		t.Errorf("onViewChange saw %q, view is %q", seen, m.CurrentView())
	}

	m.Update(key("shift+tab"))
	if m.CurrentView() != start {
		t.Errorf("shift+tab should return to %q, got %q", start, m.CurrentView())
	}
}

func TestDigitSelectsView(t *testing.T) {
	m, _ := newTestModel(t)
	if len(m.cfg.Views) < 2 {
		t.Skip("default config has fewer than two views")
	}
	m.Update(key("2"))
	if m.CurrentView() != m.cfg.Views[1] {
		t.Errorf("view = %q, want %q", m.CurrentView(), m.cfg.Views[1])
	}

	// A digit past the configured views is a no-op.
	before := m.CurrentView()
	m.Update(key("9"))
	if m.CurrentView() != before {
		t.Error("out-of-range digit should not switch views")
	}
}

func TestRefreshLockout(t *testing.T) {
	m, gw := newTestModel(t)
	applyLayoutResult(m, "a")

	cmd := m.refreshFocused()
	if cmd == nil {
		t.Fatal("first refresh should produce a command")
	}
	msg := cmd()
	done, ok := msg.(refreshDoneMsg)
	if !ok {
		t.Fatalf("msg = %T, want refreshDoneMsg", msg)
	}
	if len(gw.refreshed) != 1 || gw.refreshed[0] != "a" {
		t.Fatalf("refreshed = %v", gw.refreshed)
	}
	m.Update(done)
	if tile := m.Engine().Get("a"); tile.Card == nil || tile.Card.Title != "fresh" {
		t.Error("refresh result should land on the tile")
	}

	// Within the lockout the second attempt is denied with a toast.
	before := len(gw.refreshed)
	m.refreshFocused()
	if len(gw.refreshed) != before {
		t.Error("locked-out refresh must not hit the gateway")
	}
	if len(m.toasts) == 0 {
		t.Error("denied refresh should toast the wait time")
	}
}

func TestFailedRefreshReleasesLockout(t *testing.T) {
	m, gw := newTestModel(t)
	applyLayoutResult(m, "a")
	gw.refreshErr = errors.New("backend sad")

	cmd := m.refreshFocused()
	m.Update(cmd())

	// The failure released the claim, so a retry goes straight through.
	gw.refreshErr = nil
	cmd = m.refreshFocused()
	if cmd == nil {
		t.Fatal("retry after failure should not be locked out")
	}
	if msg := cmd(); msg == nil {
		t.Fatal("retry command returned nil msg")
	}
	if len(gw.refreshed) != 2 {
		t.Errorf("gateway calls = %d, want 2", len(gw.refreshed))
	}
}

func TestMoveFocusGeometry(t *testing.T) {
	m, _ := newTestModel(t)
	applyLayoutResult(m, "a", "b", "c")

	if m.focusIdx != 0 {
		t.Fatalf("focus starts at %d", m.focusIdx)
	}
	m.Update(key("right"))
	if m.focusIdx != 1 {
		t.Errorf("focus = %d after right, want 1", m.focusIdx)
	}
	m.Update(key("left"))
	if m.focusIdx != 0 {
		t.Errorf("focus = %d after left, want 0", m.focusIdx)
	}
	// No tile above; focus stays put.
	m.Update(key("up"))
	if m.focusIdx != 0 {
		t.Errorf("focus = %d after up, want 0", m.focusIdx)
	}
}

func TestViewRendersWithoutSize(t *testing.T) {
	m, _ := newTestModel(t)
	if got := m.View(); got != "starting…" {
		t.Errorf("View before WindowSizeMsg = %q", got)
	}

	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	applyLayoutResult(m, "a")
	if got := m.View(); got == "" {
		t.Error("sized View should render")
	}
}
