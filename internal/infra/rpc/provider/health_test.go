package provider

import (
	"testing"
	"time"
)

func TestBaseProvider_ErrorRateUsesRecentWindow(t *testing.T) {
	p := NewBaseProvider("node")

	for i := 0; i < outcomeWindow; i++ {
		p.recordFailure()
	}
	if p.IsAvailable() {
		t.Fatal("provider failing every call should be unavailable")
	}

	// A full window of successes pushes the old failures out.
	for i := 0; i < outcomeWindow; i++ {
		p.recordSuccess(20 * time.Millisecond)
	}
	h := p.GetHealth()
	if !h.Available || h.ErrorRate != 0 {
		t.Errorf("expected recovered provider, got %+v", h)
	}
	if h.Latency != 20*time.Millisecond {
		t.Errorf("expected 20ms latency, got %v", h.Latency)
	}
}

func TestBaseProvider_Throttle(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		retryAfter string
		min, max   time.Duration
	}{
		{"retry after header", 429, "30", 29 * time.Second, 30 * time.Second},
		{"missing header", 429, "", 59 * time.Second, time.Minute},
		{"malformed header", 429, "soon", 59 * time.Second, time.Minute},
		{"forbidden", 403, "", 9 * time.Minute, 10 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewBaseProvider("node")
			if p.Backoff() != 0 {
				t.Fatal("fresh provider should not be backing off")
			}
			p.throttle(tt.status, tt.retryAfter)
			got := p.Backoff()
			if got < tt.min || got > tt.max {
				t.Errorf("backoff %v outside [%v, %v]", got, tt.min, tt.max)
			}
			if p.IsAvailable() {
				t.Error("throttled provider should be unavailable")
			}
		})
	}
}

func TestBaseProvider_ShorterThrottleKeepsLongerBackoff(t *testing.T) {
	p := NewBaseProvider("node")
	p.throttle(403, "")
	p.throttle(429, "5")
	if got := p.Backoff(); got < 9*time.Minute {
		t.Errorf("expected the 403 back-off to stand, got %v", got)
	}
}

func TestIsThrottleMessage(t *testing.T) {
	if !isThrottleMessage("Project Rate Limit hit") {
		t.Error("expected rate limit message to match")
	}
	if !isThrottleMessage("daily request count exceeded") {
		t.Error("expected request count message to match")
	}
	if isThrottleMessage("execution reverted") {
		t.Error("revert should not look like a throttle")
	}
}
