package session

import (
	"sync"
	"time"
)

// DefaultGrace is how long a disconnected membership survives before removal,
// absorbing reconnect churn such as page reloads.
const DefaultGrace = time.Second

// Tracker follows each connection through CONNECTED -> GRACE -> REMOVED.
// It is the Liveness source for the directory and owns the grace timers.
type Tracker struct {
	grace time.Duration

	mu     sync.Mutex
	live   map[string]bool
	timers map[string]*time.Timer
}

func NewTracker(grace time.Duration) *Tracker {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Tracker{
		grace:  grace,
		live:   make(map[string]bool),
		timers: make(map[string]*time.Timer),
	}
}

// Connected marks the connection live and cancels any pending removal for it.
func (t *Tracker) Connected(connectionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.live[connectionID] = true
	if timer, ok := t.timers[connectionID]; ok {
		timer.Stop()
		delete(t.timers, connectionID)
	}
}

func (t *Tracker) IsLive(connectionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live[connectionID]
}

// Disconnected marks the connection dead and schedules removeFn after the
// grace period. A Connected or Cancel for the same id stops the timer.
func (t *Tracker) Disconnected(connectionID string, removeFn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.live, connectionID)
	if timer, ok := t.timers[connectionID]; ok {
		timer.Stop()
	}
	t.timers[connectionID] = time.AfterFunc(t.grace, func() {
		t.mu.Lock()
		delete(t.timers, connectionID)
		t.mu.Unlock()
		removeFn()
	})
}

// Cancel stops a pending removal, e.g. when the membership rebinds to a new
// connection before the timer fires.
func (t *Tracker) Cancel(connectionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.timers[connectionID]; ok {
		timer.Stop()
		delete(t.timers, connectionID)
	}
}

// Stop cancels every pending timer (shutdown path).
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}
