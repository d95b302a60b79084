package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func staticFetch(payload any) FetchFunc {
	return func(ctx context.Context) (any, bool, error) {
		return payload, false, nil
	}
}

func newTestPoller(t *testing.T, specs ...SourceSpec) *Poller {
	t.Helper()
	p, err := New(Config{Sources: specs, MessageBuffer: 64})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(p.Stop)
	return p
}

func waitForResult(t *testing.T, p *Poller, timeout time.Duration, match func(ResultMsg) bool) ResultMsg {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case msg := <-p.Messages():
			if res, ok := msg.(ResultMsg); ok && match(res) {
				return res
			}
		case <-deadline:
			t.Fatal("timed out waiting for result")
		}
	}
}

func TestNewRejectsBadSpecs(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("no sources must be rejected")
	}
	if _, err := New(Config{Sources: []SourceSpec{{Source: SourceState, Interval: time.Second}}}); err == nil {
		t.Error("nil fetch must be rejected")
	}
	if _, err := New(Config{Sources: []SourceSpec{{Source: SourceState, Fetch: staticFetch(nil)}}}); err == nil {
		t.Error("zero interval must be rejected")
	}
}

func TestStartFetchesImmediately(t *testing.T) {
	p := newTestPoller(t, SourceSpec{
		Source:   SourceState,
		Interval: time.Hour, // only the initial fetch can fire
		Fetch:    staticFetch("payload"),
	})
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	res := waitForResult(t, p, 2*time.Second, func(r ResultMsg) bool {
		return r.Source == SourceState
	})
	if res.Payload != "payload" {
		t.Errorf("payload = %v", res.Payload)
	}
	if res.Err != nil || res.FromCache || res.Forced {
		t.Errorf("unexpected flags: %+v", res)
	}
}

func TestStartIsIdempotentAndStopIsFinal(t *testing.T) {
	p := newTestPoller(t, SourceSpec{
		Source: SourceState, Interval: time.Hour, Fetch: staticFetch(nil),
	})
	if err := p.Start(); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := p.Start(); err != nil {
		t.Fatalf("second Start must be a no-op: %v", err)
	}
	p.Stop()
	p.Stop()
	if err := p.Start(); err == nil {
		t.Error("Start after Stop must fail")
	}
	if p.State() != PollerStopped {
		t.Errorf("state = %v, want stopped", p.State())
	}
}

func TestHiddenTicksAreSkipped(t *testing.T) {
	var calls atomic.Int64
	p := newTestPoller(t, SourceSpec{
		Source:   SourceHealth,
		Interval: 10 * time.Millisecond,
		Fetch: func(ctx context.Context) (any, bool, error) {
			calls.Add(1)
			return nil, false, nil
		},
	})
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Let the initial fetch land, then hide.
	waitForResult(t, p, 2*time.Second, func(r ResultMsg) bool { return true })
	p.SetVisible(false)
	base := calls.Load()

	time.Sleep(100 * time.Millisecond)
	if got := calls.Load(); got > base+1 {
		// One in-flight tick may race the gate; a stream of them means the
		// gate is not holding.
		t.Errorf("fetches while hidden: %d", got-base)
	}
}

func TestVisibilityReturnForcesPrimary(t *testing.T) {
	p := newTestPoller(t, SourceSpec{
		Source:   SourceState,
		Interval: time.Hour,
		Primary:  true,
		Fetch:    staticFetch("fresh"),
	})
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForResult(t, p, 2*time.Second, func(r ResultMsg) bool { return !r.Forced })

	p.SetVisible(false)
	p.SetVisible(true)
	res := waitForResult(t, p, 2*time.Second, func(r ResultMsg) bool { return r.Forced })
	if res.Source != SourceState {
		t.Errorf("forced source = %s", res.Source)
	}
}

func TestNotifyOnlineForcesPrimaryOnly(t *testing.T) {
	p := newTestPoller(t,
		SourceSpec{Source: SourceState, Interval: time.Hour, Primary: true, Fetch: staticFetch("s")},
		SourceSpec{Source: SourceHealth, Interval: time.Hour, Fetch: staticFetch("h")},
	)
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Drain the two initial fetches.
	for i := 0; i < 2; i++ {
		waitForResult(t, p, 2*time.Second, func(r ResultMsg) bool { return !r.Forced })
	}

	p.NotifyOnline()
	res := waitForResult(t, p, 2*time.Second, func(r ResultMsg) bool { return r.Forced })
	if res.Source != SourceState {
		t.Errorf("forced source = %s, want the primary one", res.Source)
	}
}

func TestResultsCarryGenerationAtFetchStart(t *testing.T) {
	release := make(chan struct{})
	p := newTestPoller(t, SourceSpec{
		Source:   SourceLayout,
		Interval: time.Hour,
		Fetch: func(ctx context.Context) (any, bool, error) {
			<-release
			return "slow", false, nil
		},
	})
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Bump while the initial fetch is blocked: its result must carry the
	// old generation so the consumer can discard it.
	time.Sleep(20 * time.Millisecond)
	newGen := p.BumpGeneration()
	close(release)

	res := waitForResult(t, p, 2*time.Second, func(r ResultMsg) bool {
		return r.Source == SourceLayout
	})
	if res.Generation >= newGen {
		t.Errorf("stale fetch carries generation %d, want < %d", res.Generation, newGen)
	}
}

func TestFetchErrorIsPublishedNotFatal(t *testing.T) {
	boom := errors.New("backend down")
	var calls atomic.Int64
	p := newTestPoller(t, SourceSpec{
		Source:   SourceState,
		Interval: 20 * time.Millisecond,
		Fetch: func(ctx context.Context) (any, bool, error) {
			if calls.Add(1) == 1 {
				return nil, false, boom
			}
			return "recovered", true, nil
		},
	})
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	failed := waitForResult(t, p, 2*time.Second, func(r ResultMsg) bool { return r.Err != nil })
	if !errors.Is(failed.Err, boom) {
		t.Errorf("err = %v", failed.Err)
	}
	ok := waitForResult(t, p, 2*time.Second, func(r ResultMsg) bool { return r.Err == nil })
	if !ok.FromCache {
		t.Error("cache flag lost on recovery result")
	}
}

func TestFetchPanicIsRecovered(t *testing.T) {
	var calls atomic.Int64
	p := newTestPoller(t, SourceSpec{
		Source:   SourceProfile,
		Interval: 20 * time.Millisecond,
		Fetch: func(ctx context.Context) (any, bool, error) {
			if calls.Add(1) == 1 {
				panic("bad payload")
			}
			return "alive", false, nil
		},
	})
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	res := waitForResult(t, p, 2*time.Second, func(r ResultMsg) bool { return r.Err != nil })
	if res.Err == nil {
		t.Fatal("panic must surface as an error result")
	}
	// The loop must survive and keep polling.
	waitForResult(t, p, 2*time.Second, func(r ResultMsg) bool { return r.Err == nil })
}

func TestInFlightReturnsToZero(t *testing.T) {
	p := newTestPoller(t, SourceSpec{
		Source:   SourceState,
		Interval: time.Hour,
		Fetch: func(ctx context.Context) (any, bool, error) {
			return nil, false, errors.New("fails every time")
		},
	})
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForResult(t, p, 2*time.Second, func(r ResultMsg) bool { return r.Err != nil })

	deadline := time.Now().Add(time.Second)
	for p.InFlight() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("in-flight counter stuck at %d after a failed fetch", p.InFlight())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSendDropsOldestWhenFull(t *testing.T) {
	p, err := New(Config{
		Sources:       []SourceSpec{{Source: SourceState, Interval: time.Hour, Fetch: staticFetch(nil)}},
		MessageBuffer: 1,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(p.Stop)

	for i := 0; i < 5; i++ {
		p.send(ResultMsg{Source: SourceState, Generation: uint64(i)})
	}

	var last tea.Msg
	select {
	case last = <-p.Messages():
	default:
		t.Fatal("channel empty after sends")
	}
	if res := last.(ResultMsg); res.Generation != 4 {
		t.Errorf("surviving generation = %d, want the newest (4)", res.Generation)
	}
}
