package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vietddude/feedsync/internal/infra/rpc/provider"
)

// RetryConfig defines retry behavior for a single provider.
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig keeps interactive page loads short.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     3,
	InitialDelay:    250 * time.Millisecond,
	MaxDelay:        5 * time.Second,
	BackoffMultiple: 2.0,
}

// delay returns the wait before retry number attempt (zero based).
func (c RetryConfig) delay(attempt int) time.Duration {
	d := float64(c.InitialDelay)
	for range attempt {
		d *= c.BackoffMultiple
		if d >= float64(c.MaxDelay) {
			return c.MaxDelay
		}
	}
	return min(time.Duration(d), c.MaxDelay)
}

// ErrorAction determines how to handle an error.
type ErrorAction int

const (
	ActionRetry ErrorAction = iota
	ActionFailover
	ActionFatal
)

func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFailover:
		return "failover"
	default:
		return "fatal"
	}
}

// JSON-RPC codes for malformed requests. Another node will reject them the same way.
var fatalCodes = []string{"-32700", "-32600", "-32601", "-32602"}

// Messages meaning this node will not serve us for a while, or not with this range.
var failoverMarkers = []string{
	"429", "too many requests",
	"403", "forbidden", "unauthorized",
	"quota", "plan limit", "rate limit", "count exceeded",
	"query returned more than", "block range",
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// ClassifyError determines the action for a given error. Anything unrecognized is treated
// as transient.
func ClassifyError(err error) ErrorAction {
	switch {
	case err == nil:
		return ActionRetry
	case errors.Is(err, context.Canceled):
		return ActionFatal
	}

	var se *provider.StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == 403 || se.Code == 429:
			return ActionFailover
		case se.Code == 408 || se.Code >= 500:
			return ActionRetry
		case se.Code >= 400:
			return ActionFatal
		}
	}

	msg := strings.ToLower(err.Error())
	if containsAny(msg, fatalCodes) {
		return ActionFatal
	}
	if containsAny(msg, failoverMarkers) {
		return ActionFailover
	}
	return ActionRetry
}

// CallWithRetry executes an RPC call, backing off exponentially between transient failures.
// Failover and fatal errors return immediately.
func CallWithRetry(
	ctx context.Context,
	p provider.RPCProvider,
	method string,
	params []any,
	config RetryConfig,
) (any, error) {
	attempts := max(config.MaxAttempts, 1)

	var err error
	for attempt := range attempts {
		var result any
		if result, err = p.Call(ctx, method, params); err == nil {
			return result, nil
		}
		if ClassifyError(err) != ActionRetry {
			return nil, err
		}
		if attempt+1 == attempts {
			break
		}

		wait := config.delay(attempt)
		slog.Debug("Retrying RPC call",
			"provider", p.GetName(), "method", method, "attempt", attempt+1, "delay", wait, "error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("failed after %d attempts: %w", attempts, err)
}

type availability interface {
	IsAvailable() bool
}

// ordered puts providers that report themselves available ahead of those backing off,
// keeping the configured order inside each group.
func ordered(providers []provider.RPCProvider) []provider.RPCProvider {
	ready := make([]provider.RPCProvider, 0, len(providers))
	var resting []provider.RPCProvider
	for _, p := range providers {
		if a, ok := p.(availability); ok && !a.IsAvailable() {
			resting = append(resting, p)
			continue
		}
		ready = append(ready, p)
	}
	return append(ready, resting...)
}

// CallWithFailover tries providers in turn, retrying each, until one succeeds.
func CallWithFailover(
	ctx context.Context,
	providers []provider.RPCProvider,
	method string,
	params []any,
	config RetryConfig,
) (any, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers for %s", method)
	}

	var errs []error
	for _, p := range ordered(providers) {
		result, err := CallWithRetry(ctx, p, method, params, config)
		if err == nil {
			return result, nil
		}
		if ClassifyError(err) == ActionFatal {
			return nil, fmt.Errorf("fatal error from provider %s: %w", p.GetName(), err)
		}
		slog.Warn("Provider failed, trying next", "provider", p.GetName(), "method", method, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", p.GetName(), err))
	}
	return nil, fmt.Errorf("all providers failed: %w", errors.Join(errs...))
}
