package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gibbs-codes/projectorUIv2/pkg/api"
	"github.com/gibbs-codes/projectorUIv2/pkg/cache"
	"github.com/gibbs-codes/projectorUIv2/pkg/config"
	"github.com/gibbs-codes/projectorUIv2/pkg/debug"
	"github.com/gibbs-codes/projectorUIv2/pkg/mock"
	"github.com/gibbs-codes/projectorUIv2/pkg/model"
	"github.com/gibbs-codes/projectorUIv2/pkg/poller"
)

// App bundles everything Run needs to tear down cleanly.
type App struct {
	Model   *Model
	Poller  *poller.Poller
	Store   *cache.Store
	watcher *mock.Watcher
}

// NewApp wires gateway, cache, poller, and model from config.
func NewApp(cfg config.Config) (*App, error) {
	gw, watcher, err := buildGateway(cfg)
	if err != nil {
		return nil, err
	}

	// A broken cache degrades to no cache; the dashboard still runs.
	var store *cache.Store
	if path := cfg.ResolvedCachePath(); path != "" {
		store, err = cache.Open(path)
		if err != nil {
			debug.Log("cache unavailable: %v", err)
			store = nil
		}
	}

	var currentView atomic.Value
	currentView.Store(cfg.DefaultView)
	viewFn := func() string { return currentView.Load().(string) }

	pol, err := buildPoller(cfg, gw, store, viewFn)
	if err != nil {
		return nil, err
	}

	var watcherCh <-chan struct{}
	if watcher != nil {
		if err := watcher.Start(); err != nil {
			debug.Log("fixture watcher unavailable: %v", err)
		} else {
			watcherCh = watcher.Changed()
		}
	}

	m := NewModel(cfg, gw, pol, watcherCh, func(view string) {
		currentView.Store(view)
	})

	return &App{Model: m, Poller: pol, Store: store, watcher: watcher}, nil
}

// Run starts the Bubble Tea program and blocks until it exits. SIGINT and
// SIGTERM quit the program gracefully; a second signal or a 5s stall kills
// it.
func (a *App) Run() error {
	defer a.Close()

	p := tea.NewProgram(
		a.Model,
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}

// Close releases background resources.
func (a *App) Close() {
	a.Poller.Stop()
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.Store != nil {
		_ = a.Store.Close()
	}
}

func buildGateway(cfg config.Config) (Gateway, *mock.Watcher, error) {
	if cfg.MockDir != "" {
		src, err := mock.NewSource(cfg.MockDir)
		if err != nil {
			return nil, nil, err
		}
		watcher, err := mock.NewWatcher(cfg.MockDir)
		if err != nil {
			debug.Log("fixture watcher setup failed: %v", err)
			return src, nil, nil
		}
		return src, watcher, nil
	}

	if cfg.BaseURL == "" {
		return nil, nil, fmt.Errorf("no base URL configured")
	}
	var opts []api.Option
	if cfg.DashKey != "" {
		opts = append(opts, api.WithDashKey(cfg.DashKey))
	}
	return api.NewClient(cfg.BaseURL, opts...), nil, nil
}

func buildPoller(cfg config.Config, gw Gateway, store *cache.Store, viewFn func() string) (*poller.Poller, error) {
	return poller.New(poller.Config{Sources: buildSpecs(cfg, gw, store, viewFn)})
}

// buildSpecs assembles the source specs for the configured mode. Every
// fetch closure follows the same shape: try live, persist on success, fall
// back to the snapshot cache on failure.
func buildSpecs(cfg config.Config, gw Gateway, store *cache.Store, viewFn func() string) []poller.SourceSpec {
	health := poller.SourceSpec{
		Source:   poller.SourceHealth,
		Interval: cfg.Intervals.Health(),
		Fetch: func(ctx context.Context) (any, bool, error) {
			h, err := gw.GetHealth(ctx)
			if err != nil {
				var cached model.Health
				if store.Load(cache.KeyHealth, &cached) {
					return &cached, true, nil
				}
				return nil, false, err
			}
			if h != nil {
				store.Save(cache.KeyHealth, h)
			}
			return h, false, nil
		},
	}

	if cfg.Mode == config.ModeProfile {
		profile := poller.SourceSpec{
			Source:   poller.SourceProfile,
			Interval: cfg.Intervals.Profile(),
			Primary:  true,
			Fetch:    profileFetch(gw, store),
		}
		return []poller.SourceSpec{profile, health}
	}

	state := poller.SourceSpec{
		Source:   poller.SourceState,
		Interval: cfg.Intervals.State(),
		Primary:  true,
		Fetch: func(ctx context.Context) (any, bool, error) {
			s, err := gw.GetState(ctx)
			if err != nil {
				var cached model.State
				if store.Load(cache.KeyState, &cached) {
					return &cached, true, nil
				}
				return nil, false, err
			}
			if s != nil {
				store.Save(cache.KeyState, s)
			}
			return s, false, nil
		},
	}

	layout := poller.SourceSpec{
		Source:   poller.SourceLayout,
		Interval: cfg.Intervals.Layout(),
		Primary:  true,
		Fetch: func(ctx context.Context) (any, bool, error) {
			view := viewFn()
			l, err := gw.GetLayout(ctx, view)
			if err != nil {
				var cached model.Layout
				if store.Load(cache.LayoutKey(view), &cached) {
					return &cached, true, nil
				}
				return nil, false, err
			}
			if l != nil {
				store.Save(cache.LayoutKey(view), l)
			}
			return l, false, nil
		},
	}

	return []poller.SourceSpec{state, layout, health}
}

// profileFetch wraps the profile chain: live fetch, then cache, then the
// repair pipeline on malformed payloads, then the built-in fallback. The
// dashboard always gets something displayable out of this.
func profileFetch(gw Gateway, store *cache.Store) poller.FetchFunc {
	return func(ctx context.Context) (any, bool, error) {
		p, err := gw.GetActiveProfile(ctx)
		if err == nil {
			if p == nil {
				return api.FallbackProfile(), false, nil
			}
			store.Save(cache.KeyProfile, p)
			return p, false, nil
		}

		if m, ok := api.IsMalformed(err); ok {
			repaired, report := api.RepairProfile(m.Raw)
			if report.Outcome != api.Unrecoverable {
				debug.Log("profile repaired: %d fixes, %d zones dropped",
					len(report.Applied), len(report.DroppedZones))
				resolveCards(ctx, gw, repaired)
				return repaired, false, nil
			}
			debug.Log("profile unrecoverable, using fallback")
			return api.FallbackProfile(), false, nil
		}

		var cached model.Profile
		if store.Load(cache.KeyProfile, &cached) {
			return &cached, true, nil
		}
		return nil, false, err
	}
}

// resolveCards fills card references a repaired profile could not inline.
// Sequential on purpose: repair is the rare path and order is stable.
func resolveCards(ctx context.Context, gw Gateway, p *model.Profile) {
	if p == nil {
		return
	}
	if p.Cards == nil {
		p.Cards = make(map[string]*model.Card)
	}
	for _, zone := range p.Zones {
		for _, id := range zone.CardIDs {
			if _, ok := p.Cards[id]; ok {
				continue
			}
			card, err := gw.GetTile(ctx, id)
			if err != nil || card == nil {
				card = model.PlaceholderCard(id, err)
			}
			p.Cards[id] = card
		}
	}
}
