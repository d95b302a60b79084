// Package poller drives the periodic fetch cycle. Each data source runs on
// its own ticker in its own goroutine and publishes results as Bubble Tea
// messages; the UI model never fetches on its own thread.
package poller

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	json "github.com/goccy/go-json"
)

// Source identifies one polled data source.
type Source string

const (
	SourceState   Source = "state"
	SourceLayout  Source = "layout"
	SourceHealth  Source = "health"
	SourceProfile Source = "profile"
)

// Default polling intervals per source.
const (
	DefaultStateInterval   = 15 * time.Second
	DefaultLayoutInterval  = 60 * time.Second
	DefaultHealthInterval  = 30 * time.Second
	DefaultProfileInterval = 10 * time.Second
)

// FetchFunc produces one result for a source. Implementations report
// fromCache=true when the payload came from the local fallback cache rather
// than a live response.
type FetchFunc func(ctx context.Context) (payload any, fromCache bool, err error)

// SourceSpec binds a source to its interval and fetch function. Primary
// sources are re-fetched immediately when the poller regains visibility or
// connectivity.
type SourceSpec struct {
	Source   Source
	Interval time.Duration
	Primary  bool
	Fetch    FetchFunc
}

// ResultMsg is published for every completed fetch, success or failure.
// Generation is the poller generation captured when the fetch started;
// consumers must discard results whose generation no longer matches.
type ResultMsg struct {
	Source     Source
	Generation uint64
	Payload    any
	FromCache  bool
	Forced     bool
	Err        error
	FetchedAt  time.Time
}

// PollerState represents the poller lifecycle.
type PollerState int

const (
	PollerIdle PollerState = iota
	PollerRunning
	PollerStopped
)

// LogLevel controls poller log verbosity, set via PJ_POLLER_LOG_LEVEL.
type LogLevel int

const (
	LogLevelNone LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "error"
	case LogLevelWarn:
		return "warn"
	case LogLevelInfo:
		return "info"
	case LogLevelDebug:
		return "debug"
	default:
		return "none"
	}
}

func parseLogLevel(raw string) LogLevel {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "none", "off", "0":
		return LogLevelNone
	case "error", "err", "1":
		return LogLevelError
	case "warn", "warning", "2":
		return LogLevelWarn
	case "info", "3":
		return LogLevelInfo
	case "debug", "4":
		return LogLevelDebug
	default:
		return LogLevelWarn
	}
}

// Config configures a Poller.
type Config struct {
	Sources       []SourceSpec
	MessageBuffer int // default 8, override with PJ_CHANNEL_BUFFER
}

// Poller owns the fetch goroutines. It starts visible; SetVisible(false)
// suppresses ticker-driven fetches without stopping the tickers, so hiding
// the dashboard accumulates no backlog.
type Poller struct {
	mu      sync.RWMutex
	state   PollerState
	visible bool
	specs   []SourceSpec
	kicks   map[Source]chan bool // payload: forced

	generation atomic.Uint64
	inFlight   atomic.Int64

	logLevel LogLevel
	msgCh    chan tea.Msg

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
}

// New creates a poller for the given sources. Sources with a nil Fetch or
// non-positive Interval are rejected.
func New(cfg Config) (*Poller, error) {
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("poller needs at least one source")
	}
	for _, spec := range cfg.Sources {
		if spec.Fetch == nil {
			return nil, fmt.Errorf("source %s has no fetch function", spec.Source)
		}
		if spec.Interval <= 0 {
			return nil, fmt.Errorf("source %s has interval %s", spec.Source, spec.Interval)
		}
	}
	if cfg.MessageBuffer <= 0 {
		cfg.MessageBuffer = envPositiveIntOr("PJ_CHANNEL_BUFFER", 8)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Poller{
		state:    PollerIdle,
		visible:  true,
		specs:    cfg.Sources,
		kicks:    make(map[Source]chan bool, len(cfg.Sources)),
		logLevel: parseLogLevel(os.Getenv("PJ_POLLER_LOG_LEVEL")),
		msgCh:    make(chan tea.Msg, cfg.MessageBuffer),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, spec := range cfg.Sources {
		p.kicks[spec.Source] = make(chan bool, 1)
	}
	return p, nil
}

// Messages returns the poller's message channel. The channel is owned by
// the poller and never closed; use Done() to stop waiting.
func (p *Poller) Messages() <-chan tea.Msg {
	if p == nil {
		return nil
	}
	return p.msgCh
}

// Done is closed when the poller has stopped.
func (p *Poller) Done() <-chan struct{} {
	if p == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return p.ctx.Done()
}

// Start launches one goroutine per source, each fetching immediately and
// then on its interval. Idempotent; returns an error after Stop.
func (p *Poller) Start() error {
	p.mu.Lock()
	if p.state == PollerStopped {
		p.mu.Unlock()
		return fmt.Errorf("poller has been stopped")
	}
	if p.state == PollerRunning {
		p.mu.Unlock()
		return nil
	}
	p.state = PollerRunning
	specs := p.specs
	p.mu.Unlock()

	p.logEvent(LogLevelInfo, "poller_start", map[string]any{
		"sources": len(specs),
	})

	for _, spec := range specs {
		p.wg.Add(1)
		go p.runSource(spec)
	}
	go func() {
		p.wg.Wait()
		close(p.done)
	}()
	return nil
}

// Stop halts all fetch goroutines. Idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.state == PollerStopped {
		p.mu.Unlock()
		return
	}
	wasRunning := p.state == PollerRunning
	p.state = PollerStopped
	p.mu.Unlock()

	p.cancel()
	if wasRunning {
		select {
		case <-p.done:
		case <-time.After(5 * time.Second):
			p.logEvent(LogLevelWarn, "shutdown_timeout", nil)
		}
	}
	p.logEvent(LogLevelInfo, "poller_stop", nil)
}

// State returns the current lifecycle state.
func (p *Poller) State() PollerState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// SetVisible toggles the visibility gate. While hidden, interval ticks are
// skipped outright; nothing queues up. Regaining visibility forces an
// immediate refresh of the primary sources so stale content is replaced at
// once instead of on the next tick.
func (p *Poller) SetVisible(visible bool) {
	p.mu.Lock()
	if p.visible == visible || p.state == PollerStopped {
		p.mu.Unlock()
		return
	}
	p.visible = visible
	p.mu.Unlock()

	p.logEvent(LogLevelInfo, "visibility_change", map[string]any{
		"visible": visible,
	})
	if visible {
		p.forcePrimary()
	}
}

// Visible reports the current visibility gate.
func (p *Poller) Visible() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.visible
}

// NotifyOnline signals that connectivity returned. Primary sources refresh
// immediately rather than waiting for their next tick.
func (p *Poller) NotifyOnline() {
	p.logEvent(LogLevelInfo, "online", nil)
	p.forcePrimary()
}

// ForceRefresh fetches one source now, bypassing the visibility gate. A
// force while a forced fetch is already pending coalesces into it.
func (p *Poller) ForceRefresh(src Source) {
	p.mu.RLock()
	kick, ok := p.kicks[src]
	stopped := p.state == PollerStopped
	p.mu.RUnlock()
	if !ok || stopped {
		return
	}
	select {
	case kick <- true:
	default:
		p.logEvent(LogLevelDebug, "coalesce", map[string]any{
			"source": string(src),
		})
	}
}

func (p *Poller) forcePrimary() {
	for _, spec := range p.specs {
		if spec.Primary {
			p.ForceRefresh(spec.Source)
		}
	}
}

// BumpGeneration invalidates every in-flight fetch: results already being
// produced carry the old generation and will be discarded on arrival.
// Returns the new generation.
func (p *Poller) BumpGeneration() uint64 {
	gen := p.generation.Add(1)
	p.logEvent(LogLevelDebug, "generation_bump", map[string]any{
		"generation": gen,
	})
	return gen
}

// Generation returns the current generation.
func (p *Poller) Generation() uint64 {
	return p.generation.Load()
}

// InFlight returns the number of fetches currently running. Non-zero means
// the dashboard should show its activity indicator.
func (p *Poller) InFlight() int64 {
	return p.inFlight.Load()
}

func (p *Poller) runSource(spec SourceSpec) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			p.logEvent(LogLevelError, "source_loop_panic", map[string]any{
				"source": string(spec.Source),
				"panic":  fmt.Sprintf("%v", r),
				"stack":  string(debug.Stack()),
			})
		}
	}()

	kick := p.kicks[spec.Source]
	ticker := time.NewTicker(spec.Interval)
	defer ticker.Stop()

	p.fetch(spec, false)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if !p.Visible() {
				p.logEvent(LogLevelDebug, "tick_skipped_hidden", map[string]any{
					"source": string(spec.Source),
				})
				continue
			}
			p.fetch(spec, false)
		case forced := <-kick:
			p.fetch(spec, forced)
		}
	}
}

// fetch runs one fetch and publishes the result. The activity counter is
// incremented before the fetch starts and decremented when the result is
// in, failure included, so it can never stick.
func (p *Poller) fetch(spec SourceSpec, forced bool) {
	p.inFlight.Add(1)
	defer p.inFlight.Add(-1)

	gen := p.generation.Load()
	start := time.Now()

	payload, fromCache, err := p.safeFetch(spec)

	if err != nil {
		p.logEvent(LogLevelError, "fetch_failed", map[string]any{
			"source":   string(spec.Source),
			"error":    err.Error(),
			"forced":   forced,
			"fetch_ms": float64(time.Since(start).Microseconds()) / 1000.0,
		})
	} else {
		p.logEvent(LogLevelInfo, "fetch_done", map[string]any{
			"source":     string(spec.Source),
			"from_cache": fromCache,
			"forced":     forced,
			"fetch_ms":   float64(time.Since(start).Microseconds()) / 1000.0,
		})
	}

	p.send(ResultMsg{
		Source:     spec.Source,
		Generation: gen,
		Payload:    payload,
		FromCache:  fromCache,
		Forced:     forced,
		Err:        err,
		FetchedAt:  time.Now(),
	})
}

// safeFetch executes the fetch function with panic recovery so one bad
// payload cannot take down the source loop.
func (p *Poller) safeFetch(spec SourceSpec) (payload any, fromCache bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload = nil
			fromCache = false
			err = fmt.Errorf("fetch panic: %v", r)
			p.logEvent(LogLevelError, "fetch_panic", map[string]any{
				"source": string(spec.Source),
				"panic":  fmt.Sprintf("%v", r),
				"stack":  string(debug.Stack()),
			})
		}
	}()
	return spec.Fetch(p.ctx)
}

func (p *Poller) send(msg tea.Msg) {
	if p == nil || msg == nil {
		return
	}
	for {
		select {
		case p.msgCh <- msg:
			return
		case <-p.ctx.Done():
			return
		default:
		}

		// Channel is full; drop an older message so the newest wins.
		select {
		case <-p.msgCh:
		default:
		}
	}
}

func (p *Poller) logEvent(level LogLevel, event string, fields map[string]any) {
	if p == nil || level == LogLevelNone {
		return
	}
	if p.logLevel == LogLevelNone || level > p.logLevel {
		return
	}

	payload := map[string]any{
		"ts":        time.Now().UTC().Format(time.RFC3339Nano),
		"level":     level.String(),
		"component": "poller",
		"event":     event,
	}
	for k, v := range fields {
		payload[k] = v
	}
	b, err := json.Marshal(payload)
	if err != nil {
		log.Printf("poller: failed to marshal log event %s: %v", event, err)
		return
	}
	log.Printf("%s", b)
}

func envPositiveIntOr(name string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
