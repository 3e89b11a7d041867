package provider

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// outcomeWindow is how many recent calls feed the error rate and latency.
const outcomeWindow = 50

// maxErrorRate above which a provider stops being offered to callers.
const maxErrorRate = 0.5

var throttleMarkers = []string{
	"rate limit",
	"too many requests",
	"request count exceeded",
	"quota exceeded",
}

// isThrottleMessage reports whether an error body reads like a quota complaint rather
// than a real failure.
func isThrottleMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, m := range throttleMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

type outcome struct {
	ok      bool
	latency time.Duration
}

// BaseProvider keeps a rolling record of call outcomes and any back-off the endpoint
// asked for. HTTPProvider embeds it.
type BaseProvider struct {
	Name string

	mu           sync.RWMutex
	outcomes     [outcomeWindow]outcome
	next         int
	filled       int
	lastSuccess  time.Time
	lastFailure  time.Time
	backoffUntil time.Time
}

// NewBaseProvider creates a BaseProvider with an empty history.
func NewBaseProvider(name string) *BaseProvider {
	return &BaseProvider{Name: name, lastSuccess: time.Now()}
}

// GetName returns the provider's name.
func (p *BaseProvider) GetName() string {
	return p.Name
}

// GetHealth summarizes the recent call window.
func (p *BaseProvider) GetHealth() HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var failures, successes int
	var latency time.Duration
	for _, o := range p.outcomes[:p.filled] {
		if o.ok {
			successes++
			latency += o.latency
		} else {
			failures++
		}
	}

	h := HealthStatus{
		Available:     true,
		LastSuccessAt: p.lastSuccess,
		LastFailureAt: p.lastFailure,
	}
	if p.filled > 0 {
		h.ErrorRate = float64(failures) / float64(p.filled)
		h.Available = h.ErrorRate <= maxErrorRate
	}
	if successes > 0 {
		h.Latency = latency / time.Duration(successes)
	}
	return h
}

// IsAvailable reports whether the provider is usable right now.
func (p *BaseProvider) IsAvailable() bool {
	return p.Backoff() == 0 && p.GetHealth().Available
}

// Backoff returns how long the endpoint asked us to stay away, or zero.
func (p *BaseProvider) Backoff() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if d := time.Until(p.backoffUntil); d > 0 {
		return d
	}
	return 0
}

func (p *BaseProvider) record(o outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.outcomes[p.next] = o
	p.next = (p.next + 1) % outcomeWindow
	if p.filled < outcomeWindow {
		p.filled++
	}
	if o.ok {
		p.lastSuccess = time.Now()
	} else {
		p.lastFailure = time.Now()
	}
}

func (p *BaseProvider) recordSuccess(latency time.Duration) {
	p.record(outcome{ok: true, latency: latency})
}

func (p *BaseProvider) recordFailure() {
	p.record(outcome{})
}

// throttle starts a back-off period. A 429 honours Retry-After given in seconds and
// defaults to one minute; a 403 usually means an exhausted key, so it waits longer.
func (p *BaseProvider) throttle(status int, retryAfter string) {
	wait := time.Minute
	switch status {
	case 429:
		if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs > 0 {
			wait = time.Duration(secs) * time.Second
		}
	case 403:
		wait = 10 * time.Minute
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if until := time.Now().Add(wait); until.After(p.backoffUntil) {
		p.backoffUntil = until
	}
}
