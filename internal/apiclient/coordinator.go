// AngelaMos | 2026
// coordinator.go

package apiclient

import (
	"sync"
	"time"
)

// DefaultRefreshCooldown is the minimum spacing between refresh attempts.
// A 401 landing inside the window is terminal rather than retried, which
// stops refresh storms when the refresh endpoint itself is failing.
const DefaultRefreshCooldown = 5 * time.Second

type refreshOutcome struct {
	token string
	err   error
}

// coordinator serializes token refreshes for one client. At most one
// refresh is in flight; callers that hit a 401 while it runs enqueue a
// continuation and are replayed in arrival order. The state is owned by
// the client instance, so independent clients never share refresh state.
type coordinator struct {
	mu          sync.Mutex
	refreshing  bool
	waiters     []chan refreshOutcome
	lastAttempt time.Time
	cooldown    time.Duration
}

func newCoordinator(cooldown time.Duration) *coordinator {
	if cooldown <= 0 {
		cooldown = DefaultRefreshCooldown
	}
	return &coordinator{cooldown: cooldown}
}

type beginResult int

const (
	beginLeader beginResult = iota
	beginWait
	beginCooled
)

// begin decides this caller's role in the current expiry event. A caller
// arriving while a refresh is in flight always waits: the cooldown only
// guards the start of a new refresh attempt, never the waiters of an
// existing one.
func (c *coordinator) begin(now time.Time) (beginResult, <-chan refreshOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refreshing {
		ch := make(chan refreshOutcome, 1)
		c.waiters = append(c.waiters, ch)
		return beginWait, ch
	}

	if !c.lastAttempt.IsZero() && now.Sub(c.lastAttempt) < c.cooldown {
		return beginCooled, nil
	}

	c.refreshing = true
	c.lastAttempt = now
	return beginLeader, nil
}

// finish publishes the refresh outcome to every waiter in arrival order
// and returns the coordinator to idle.
func (c *coordinator) finish(outcome refreshOutcome) {
	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.refreshing = false
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- outcome
	}
}

// reset clears all coordinator state, rejecting any queued waiters.
// Called on sign-out.
func (c *coordinator) reset(err error) {
	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.refreshing = false
	c.lastAttempt = time.Time{}
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- refreshOutcome{err: err}
	}
}
