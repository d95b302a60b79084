package poller

import (
	"sync"
	"time"
)

// DefaultRefreshInterval is the per-card manual refresh lockout.
const DefaultRefreshInterval = 20 * time.Second

// RefreshCoordinator rate-limits manual per-card refreshes. Acquiring a
// card's lock claims the whole interval up front; a failed refresh releases
// it immediately so the user can retry without waiting out the lockout.
type RefreshCoordinator struct {
	mu       sync.Mutex
	interval time.Duration
	next     map[string]time.Time
	now      func() time.Time
}

// NewRefreshCoordinator creates a coordinator with the given lockout
// interval. Non-positive intervals fall back to the default.
func NewRefreshCoordinator(interval time.Duration) *RefreshCoordinator {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &RefreshCoordinator{
		interval: interval,
		next:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// Acquire attempts to claim the refresh slot for a card. On success the
// slot is held until the interval elapses or Release reports a failure. On
// denial, wait is how long until the slot frees up.
func (r *RefreshCoordinator) Acquire(id string) (ok bool, wait time.Duration) {
	if id == "" {
		return false, 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if until, held := r.next[id]; held && now.Before(until) {
		return false, until.Sub(now)
	}
	r.next[id] = now.Add(r.interval)
	return true, 0
}

// Release reports the outcome of a refresh acquired earlier. A failure
// resets the card's slot so the next attempt is allowed immediately; a
// success leaves the lockout in place.
func (r *RefreshCoordinator) Release(id string, succeeded bool) {
	if id == "" || succeeded {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next[id] = r.now()
}

// NextAllowed returns when the card may next be refreshed. The zero time
// means it has never been refreshed.
func (r *RefreshCoordinator) NextAllowed(id string) time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next[id]
}

// Forget drops a card's slot entirely, for cards removed from the layout.
func (r *RefreshCoordinator) Forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.next, id)
}
