package api

import (
	"context"
	"sync"
	"time"
)

// SystemStatus represents the health state of the service or one of its dependencies.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// Check probes one dependency. Critical checks turn the whole service critical when they
// fail; the others only degrade it.
type Check struct {
	Name     string
	Critical bool
	Probe    func(ctx context.Context) error
}

// ComponentHealth is the result of one check.
type ComponentHealth struct {
	Status SystemStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// HealthReport contains the full health report.
type HealthReport struct {
	SystemStatus SystemStatus               `json:"system_status"`
	Components   map[string]ComponentHealth `json:"components"`
	CheckedAt    time.Time                  `json:"checked_at"`
}

// Monitor runs checks and caches the report so health probes do not hammer the chain
// node or the cache backend.
type Monitor struct {
	checks []Check
	ttl    time.Duration

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport *HealthReport
}

// NewMonitor creates a monitor. A zero ttl re-runs the checks on every call.
func NewMonitor(ttl time.Duration, checks ...Check) *Monitor {
	return &Monitor{checks: checks, ttl: ttl}
}

// CheckHealth runs every check unless a report younger than the ttl exists.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && time.Since(m.lastCheck) < m.ttl {
		return *m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth, len(m.checks)),
		CheckedAt:    time.Now(),
	}
	for _, c := range m.checks {
		h := ComponentHealth{Status: StatusHealthy}
		if err := c.Probe(ctx); err != nil {
			h.Error = err.Error()
			h.Status = StatusDegraded
			if c.Critical {
				h.Status = StatusCritical
			}
		}
		report.Components[c.Name] = h
		report.SystemStatus = worst(report.SystemStatus, h.Status)
	}

	m.lastCheck = report.CheckedAt
	m.lastReport = &report
	return report
}

func worst(a, b SystemStatus) SystemStatus {
	if a == StatusCritical || b == StatusCritical {
		return StatusCritical
	}
	if a == StatusDegraded || b == StatusDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}
