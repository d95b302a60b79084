// Package ui is the terminal front end: a Bubble Tea model that owns the
// reconciliation engine and consumes poller results. All mutation happens
// inside Update, so the engine needs no locking.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	json "github.com/goccy/go-json"

	"github.com/gibbs-codes/projectorUIv2/pkg/api"
	"github.com/gibbs-codes/projectorUIv2/pkg/config"
	"github.com/gibbs-codes/projectorUIv2/pkg/debug"
	"github.com/gibbs-codes/projectorUIv2/pkg/model"
	"github.com/gibbs-codes/projectorUIv2/pkg/poller"
)

// Gateway is the data source surface the UI needs. Satisfied by the live
// HTTP client and the fixture-backed mock source.
type Gateway interface {
	GetState(ctx context.Context) (*model.State, error)
	GetLayout(ctx context.Context, view string) (*model.Layout, error)
	GetHealth(ctx context.Context) (*model.Health, error)
	GetTile(ctx context.Context, id string) (*model.Card, error)
	RefreshTile(ctx context.Context, id string) (*model.Card, error)
	GetActiveProfile(ctx context.Context) (*model.Profile, error)
}

const toastDuration = 4 * time.Second

type toast struct {
	text  string
	until time.Time
}

type toastGCMsg struct{}

type refreshDoneMsg struct {
	id   string
	card *model.Card
	err  error
}

type fixturesChangedMsg struct{}

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	cfg       config.Config
	gateway   Gateway
	pol       *poller.Poller
	refresher *poller.RefreshCoordinator
	engine    *Engine

	view    string
	viewIdx int

	width  int
	height int

	spin     spinner.Model
	focusIdx int
	toasts   []toast

	online   bool
	lastSync time.Time
	lastErr  string

	watcherCh    <-chan struct{}
	onViewChange func(string)
}

// NewModel wires the model. The poller must already hold fetch specs; the
// model starts it in Init. onViewChange, if non-nil, is invoked on every
// view switch so fetch closures running off-thread can read the current
// view without touching the model.
func NewModel(cfg config.Config, gw Gateway, pol *poller.Poller, watcherCh <-chan struct{}, onViewChange func(string)) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(ColorPrimary)

	viewIdx := 0
	for i, v := range cfg.Views {
		if strings.EqualFold(v, cfg.DefaultView) {
			viewIdx = i
			break
		}
	}

	m := &Model{
		cfg:          cfg,
		gateway:      gw,
		pol:          pol,
		refresher:    poller.NewRefreshCoordinator(cfg.Intervals.Refresh()),
		engine:       NewEngine(),
		view:         cfg.Views[viewIdx],
		viewIdx:      viewIdx,
		spin:         sp,
		online:       true,
		watcherCh:    watcherCh,
		onViewChange: onViewChange,
	}
	if m.onViewChange != nil {
		m.onViewChange(m.view)
	}
	return m
}

// CurrentView returns the active view name. The layout fetch closure reads
// it so view switches take effect on the next poll without rebuilding the
// poller.
func (m *Model) CurrentView() string {
	return m.view
}

// Engine exposes the reconciliation engine, primarily for tests.
func (m *Model) Engine() *Engine {
	return m.engine
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spin.Tick, listenPoller(m.pol)}
	if err := m.pol.Start(); err != nil {
		cmds = append(cmds, m.addToast("poller failed to start: "+err.Error()))
	}
	if m.watcherCh != nil {
		cmds = append(cmds, listenWatcher(m.watcherCh, m.pol))
	}
	return tea.Batch(cmds...)
}

func listenPoller(p *poller.Poller) tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-p.Messages():
			return msg
		case <-p.Done():
			return nil
		}
	}
}

func listenWatcher(ch <-chan struct{}, p *poller.Poller) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ch:
			return fixturesChangedMsg{}
		case <-p.Done():
			return nil
		}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.FocusMsg:
		m.pol.SetVisible(true)
		return m, nil

	case tea.BlurMsg:
		m.pol.SetVisible(false)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case poller.ResultMsg:
		cmd := m.handleResult(msg)
		return m, tea.Batch(cmd, listenPoller(m.pol))

	case refreshDoneMsg:
		return m, m.handleRefreshDone(msg)

	case fixturesChangedMsg:
		for _, src := range []poller.Source{poller.SourceState, poller.SourceLayout, poller.SourceHealth, poller.SourceProfile} {
			m.pol.ForceRefresh(src)
		}
		return m, tea.Batch(m.addToast("fixtures changed, reloading"), listenWatcher(m.watcherCh, m.pol))

	case toastGCMsg:
		m.expireToasts()
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.pol.Stop()
		return m, tea.Quit

	case "tab":
		return m, m.switchView((m.viewIdx + 1) % len(m.cfg.Views))
	case "shift+tab":
		return m, m.switchView((m.viewIdx + len(m.cfg.Views) - 1) % len(m.cfg.Views))

	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		n, _ := strconv.Atoi(msg.String())
		if n >= 1 && n <= len(m.cfg.Views) {
			return m, m.switchView(n - 1)
		}
		return m, nil

	case "left":
		m.moveFocus(-1, 0)
	case "right":
		m.moveFocus(1, 0)
	case "up":
		m.moveFocus(0, -1)
	case "down":
		m.moveFocus(0, 1)

	case "r", "enter":
		return m, m.refreshFocused()

	case "y":
		return m, m.yankFocused()

	case "g":
		m.pol.NotifyOnline()
		return m, m.addToast("forcing refresh")
	}
	return m, nil
}

// switchView changes the active view. The generation bump invalidates any
// in-flight results for the old view; the forced fetches repopulate.
func (m *Model) switchView(idx int) tea.Cmd {
	if idx == m.viewIdx || idx < 0 || idx >= len(m.cfg.Views) {
		return nil
	}
	m.viewIdx = idx
	m.view = m.cfg.Views[idx]
	m.focusIdx = 0
	if m.onViewChange != nil {
		m.onViewChange(m.view)
	}
	m.pol.BumpGeneration()
	if m.cfg.Mode == config.ModeProfile {
		m.pol.ForceRefresh(poller.SourceProfile)
	} else {
		m.pol.ForceRefresh(poller.SourceLayout)
	}
	m.pol.ForceRefresh(poller.SourceState)
	return m.addToast("view: " + m.view)
}

// moveFocus walks the focus geometrically: among tiles in the requested
// direction from the focused tile's center, pick the nearest.
func (m *Model) moveFocus(dx, dy int) {
	tiles := m.engine.Tiles()
	if len(tiles) == 0 {
		return
	}
	if m.focusIdx >= len(tiles) {
		m.focusIdx = len(tiles) - 1
	}
	cur := tiles[m.focusIdx]
	curCol, curRow, curCS, curRS := cur.Placement.Rect(m.engine.Grid())
	curX := float64(curCol) + float64(curCS)/2
	curY := float64(curRow) + float64(curRS)/2

	best := -1
	bestDist := 0.0
	for i, t := range tiles {
		if i == m.focusIdx {
			continue
		}
		col, row, cs, rs := t.Placement.Rect(m.engine.Grid())
		x := float64(col) + float64(cs)/2
		y := float64(row) + float64(rs)/2
		if dx > 0 && x <= curX {
			continue
		}
		if dx < 0 && x >= curX {
			continue
		}
		if dy > 0 && y <= curY {
			continue
		}
		if dy < 0 && y >= curY {
			continue
		}
		dist := (x-curX)*(x-curX) + (y-curY)*(y-curY)
		if best == -1 || dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	if best >= 0 {
		m.focusIdx = best
	}
}

// refreshFocused manually refreshes the focused card, subject to the
// per-card lockout.
func (m *Model) refreshFocused() tea.Cmd {
	tiles := m.engine.Tiles()
	if len(tiles) == 0 || m.focusIdx >= len(tiles) {
		return nil
	}
	id := tiles[m.focusIdx].ID

	ok, wait := m.refresher.Acquire(id)
	if !ok {
		return m.addToast(fmt.Sprintf("%s refreshed recently, retry in %ds", id, int(wait.Seconds())+1))
	}

	gw := m.gateway
	return func() tea.Msg {
		card, err := gw.RefreshTile(context.Background(), id)
		return refreshDoneMsg{id: id, card: card, err: err}
	}
}

func (m *Model) handleRefreshDone(msg refreshDoneMsg) tea.Cmd {
	if msg.err != nil {
		m.refresher.Release(msg.id, false)
		return m.addToast("refresh failed: " + compactError(msg.err))
	}
	m.refresher.Release(msg.id, true)
	if msg.card != nil {
		m.engine.UpdateCard(msg.id, msg.card)
	}
	return m.addToast(msg.id + " refreshed")
}

// yankFocused copies the focused card's raw payload to the clipboard.
func (m *Model) yankFocused() tea.Cmd {
	tiles := m.engine.Tiles()
	if len(tiles) == 0 || m.focusIdx >= len(tiles) {
		return nil
	}
	tile := tiles[m.focusIdx]
	if tile.Card == nil {
		return m.addToast("nothing to copy yet")
	}

	payload := tile.Card.Raw
	if len(payload) == 0 {
		b, err := json.Marshal(tile.Card)
		if err != nil {
			return m.addToast("copy failed: " + err.Error())
		}
		payload = b
	}
	if err := clipboard.WriteAll(string(payload)); err != nil {
		debug.Log("clipboard write failed: %v", err)
		return m.addToast("clipboard unavailable")
	}
	return m.addToast("copied " + tile.ID)
}

// handleResult folds one poller result into the engine. Results from a
// superseded generation are dropped outright: a slow response from the
// previous view must never overwrite the current one.
func (m *Model) handleResult(msg poller.ResultMsg) tea.Cmd {
	if msg.Generation != m.pol.Generation() {
		debug.Log("dropping stale %s result (gen %d, now %d)", msg.Source, msg.Generation, m.pol.Generation())
		return nil
	}

	if msg.Err != nil {
		m.lastErr = compactError(msg.Err)
		var te *api.TransportError
		if errors.As(msg.Err, &te) {
			m.online = false
		}
		return nil
	}

	wasOffline := !m.online
	if !msg.FromCache {
		m.online = true
		m.lastSync = msg.FetchedAt
		m.lastErr = ""
	}

	var cmd tea.Cmd
	switch msg.Source {
	case poller.SourceState:
		if state, ok := msg.Payload.(*model.State); ok {
			m.engine.ApplyState(state)
			// The server can push a view change through the state feed.
			if state.View != "" && !strings.EqualFold(state.View, m.view) {
				for i, v := range m.cfg.Views {
					if strings.EqualFold(v, state.View) {
						cmd = m.switchView(i)
						break
					}
				}
			}
		}
	case poller.SourceLayout:
		if layout, ok := msg.Payload.(*model.Layout); ok {
			if layout.View != "" && !strings.EqualFold(layout.View, m.view) {
				debug.Log("dropping layout for %s, current view is %s", layout.View, m.view)
				return nil
			}
			m.engine.ApplyLayout(layout)
			m.clampFocus()
		}
	case poller.SourceHealth:
		if health, ok := msg.Payload.(*model.Health); ok {
			m.engine.ApplyHealth(health)
		}
	case poller.SourceProfile:
		if profile, ok := msg.Payload.(*model.Profile); ok {
			m.engine.ApplyProfile(profile)
			m.clampFocus()
		}
	}
	m.engine.SetFromCache(msg.FromCache)

	if wasOffline && !msg.FromCache {
		m.pol.NotifyOnline()
		return tea.Batch(cmd, m.addToast("back online"))
	}
	return cmd
}

func (m *Model) clampFocus() {
	if n := m.engine.Len(); m.focusIdx >= n && n > 0 {
		m.focusIdx = n - 1
	}
}

func (m *Model) addToast(text string) tea.Cmd {
	m.toasts = append(m.toasts, toast{text: text, until: time.Now().Add(toastDuration)})
	return tea.Tick(toastDuration, func(time.Time) tea.Msg { return toastGCMsg{} })
}

func (m *Model) expireToasts() {
	now := time.Now()
	kept := m.toasts[:0]
	for _, t := range m.toasts {
		if t.until.After(now) {
			kept = append(kept, t)
		}
	}
	m.toasts = kept
}

func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "starting…"
	}

	header := m.renderHeader()
	footer := m.renderFooter()
	bodyH := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if bodyH < 3 {
		bodyH = 3
	}

	focusID := ""
	if tiles := m.engine.Tiles(); len(tiles) > 0 && m.focusIdx < len(tiles) {
		focusID = tiles[m.focusIdx].ID
	}
	body := RenderGrid(m.engine, m.width, bodyH, focusID)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m *Model) renderHeader() string {
	var tabs []string
	for i, v := range m.cfg.Views {
		style := StatusLineStyle
		if i == m.viewIdx {
			style = TileTitleStyle.Foreground(ColorPrimary)
		}
		tabs = append(tabs, style.Render(fmt.Sprintf("%d:%s", i+1, v)))
	}

	conn := lipgloss.NewStyle().Foreground(ColorSuccess).Render("●")
	if !m.online {
		conn = lipgloss.NewStyle().Foreground(ColorDanger).Render("● offline")
	}
	activity := ""
	if m.pol.InFlight() > 0 {
		activity = " " + m.spin.View()
	}
	sync := ""
	if !m.lastSync.IsZero() {
		sync = StatusLineStyle.Render(" synced " + FormatTimeRel(m.lastSync))
	}

	left := strings.Join(tabs, "  ")
	right := conn + activity + sync
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m *Model) renderFooter() string {
	if len(m.toasts) > 0 {
		return ToastStyle.Render(m.toasts[len(m.toasts)-1].text)
	}
	if m.lastErr != "" {
		return lipgloss.NewStyle().Foreground(ColorDanger).Render(truncate(m.lastErr, m.width))
	}
	hints := "tab:view  arrows:focus  r:refresh  y:copy  g:sync  q:quit"
	return StatusLineStyle.Render(truncate(hints, m.width))
}

func compactError(err error) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	if i := strings.IndexByte(s, '\n'); i > 0 {
		s = s[:i]
	}
	return truncate(s, 120)
}
