// Package provider implements RPC provider interfaces.
//
// This package contains:
//   - Provider interface: core abstraction for remote endpoints
//   - HTTPProvider: JSON-RPC and REST over HTTP
//   - BaseProvider: rolling call health and endpoint back-off
package provider

import (
	"context"
	"net/url"
	"time"
)

// Operation represents a REST call to execute.
type Operation struct {
	// Name is the request path relative to the endpoint (e.g., "creators/0xabc/posts")
	Name string

	// Method is the HTTP method. Empty means GET.
	Method string

	// Query is appended to the request URL.
	Query url.Values

	// Body is JSON-encoded for non-GET requests.
	Body any

	// Result, when set, receives the decoded response body. Otherwise Execute returns
	// the body decoded into an any.
	Result any
}

// Provider defines the core interface for any remote provider.
type Provider interface {
	// GetName returns provider identifier (e.g., "alchemy", "gateway")
	GetName() string

	// GetHealth returns current health metrics
	GetHealth() HealthStatus

	// IsAvailable checks if the provider is healthy enough to use
	IsAvailable() bool

	// Execute performs a REST operation with monitoring and error handling
	Execute(ctx context.Context, op Operation) (any, error)

	// Close cleans up resources
	Close() error
}

// RPCProvider is a provider that speaks JSON-RPC.
type RPCProvider interface {
	GetName() string

	// Call makes a single RPC request
	Call(ctx context.Context, method string, params []any) (any, error)
}

// HealthStatus represents the health state of a provider.
type HealthStatus struct {
	Available     bool          `json:"available"`
	Latency       time.Duration `json:"latency"`
	ErrorRate     float64       `json:"error_rate"`
	LastSuccessAt time.Time     `json:"last_success_at"`
	LastFailureAt time.Time     `json:"last_failure_at"`
}
