// Package throttle provides the rate gate that paces remote calls.
//
// The remote transaction store and the classification service are both
// rate-limited, so every caller waits on a shared Gate before issuing a
// request. Tests inject None.
package throttle

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Gate blocks until the next remote call is allowed to proceed.
type Gate interface {
	Wait(ctx context.Context) error
}

// IntervalGate spaces calls at a fixed interval.
type IntervalGate struct {
	limiter *rate.Limiter
}

// NewInterval returns a gate allowing one call per interval. The first call
// passes immediately.
func NewInterval(interval time.Duration) *IntervalGate {
	return &IntervalGate{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the gate opens or the context is done.
func (g *IntervalGate) Wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}

// None is a no-op gate.
type None struct{}

// Wait returns immediately.
func (None) Wait(context.Context) error { return nil }
