package broker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig holds the four tunables from §4.6.
type RateLimiterConfig struct {
	MaxRate float64 // messages/sec, also the starting rate
	MinRate float64
	Step    float64
	Period  time.Duration
}

// RateLimiter gates the Scheduler's forwarding rate. The ramp/reset
// policy (§4.6) is ours; the actual gate is golang.org/x/time/rate,
// which internally tracks an absolute "last event" timestamp rather than
// a relative sleep, satisfying the no-drift requirement called out for
// both the Scheduler (§4.4) and this component without hand-rolling the
// deadline bookkeeping.
type RateLimiter struct {
	cfg RateLimiterConfig

	mu      sync.Mutex
	current float64
	limiter *rate.Limiter
}

// NewRateLimiter builds a limiter starting at cfg.MaxRate.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		cfg:     cfg,
		current: cfg.MaxRate,
	}
	rl.limiter = rate.NewLimiter(rate.Limit(cfg.MaxRate), 1)
	return rl
}

// wait blocks the Scheduler until the next send is permitted.
func (rl *RateLimiter) wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}

// CurrentRate returns the presently-enforced rate, for the Metrics
// Sampler and tests.
func (rl *RateLimiter) CurrentRate() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.current
}

// run ticks every cfg.Period, stepping the rate down and wrapping back
// to MaxRate per §4.6, until ctx is cancelled. Meant to be launched as
// one goroutine in the Broker's errgroup.
func (rl *RateLimiter) run(ctx context.Context) error {
	ticker := time.NewTicker(rl.cfg.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rl.step()
		}
	}
}

func (rl *RateLimiter) step() {
	rl.mu.Lock()
	next := rl.current - rl.cfg.Step
	if next < rl.cfg.MinRate {
		next = rl.cfg.MaxRate
	}
	rl.current = next
	rl.mu.Unlock()
	rl.limiter.SetLimit(rate.Limit(next))
}
