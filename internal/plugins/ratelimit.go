package plugins

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/observability"
)

// RateLimiter spaces events at least a minimum interval apart. It wraps a
// rate.Limiter with burst 1, so the first event passes immediately and every
// later event waits until the interval since the previous one has elapsed.
// It is safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter allowing one event per minDelay.
// A non-positive minDelay disables spacing.
func NewRateLimiter(minDelay time.Duration) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(intervalLimit(minDelay), 1),
	}
}

func intervalLimit(d time.Duration) rate.Limit {
	if d <= 0 {
		return rate.Inf
	}
	return rate.Every(d)
}

// Wait blocks until the next event is allowed or ctx is done, and reports how
// long it waited. On cancellation the reserved slot is returned.
func (r *RateLimiter) Wait(ctx context.Context) (time.Duration, error) {
	res := r.limiter.Reserve()
	delay := res.Delay()
	if delay == 0 {
		return 0, nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		res.Cancel()
		return 0, ctx.Err()
	case <-timer.C:
		return delay, nil
	}
}

// Allow returns true if an event may happen now, consuming the slot.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// DefaultDelay applies to plugins without a configured delay.
const DefaultDelay = time.Second

// DefaultDelays are the minimum inter-request delays for the built-in
// plugins. ADS allows thousands of daily requests; arXiv asks for three
// seconds between calls; INSPIRE allows 15 requests per 5 seconds.
var DefaultDelays = map[string]time.Duration{
	"ads":     100 * time.Millisecond,
	"arxiv":   3 * time.Second,
	"inspire": 350 * time.Millisecond,
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	// DefaultDelay applies to plugins missing from Delays. Zero means DefaultDelay.
	DefaultDelay time.Duration

	// Delays overrides the per-plugin minimum delay. Missing entries fall back
	// to DefaultDelays, then DefaultDelay.
	Delays map[string]time.Duration

	// Metrics records waits. May be nil.
	Metrics *observability.Metrics
}

// Scheduler paces dispatches to each plugin. It is advisory: it only keeps
// the Manager itself from exceeding known limits and never retries.
type Scheduler struct {
	mu           sync.Mutex
	defaultDelay time.Duration
	delays       map[string]time.Duration
	limiters     map[string]*RateLimiter
	metrics      *observability.Metrics
}

// NewScheduler creates a scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.DefaultDelay == 0 {
		cfg.DefaultDelay = DefaultDelay
	}
	delays := make(map[string]time.Duration, len(DefaultDelays)+len(cfg.Delays))
	for id, d := range DefaultDelays {
		delays[id] = d
	}
	for id, d := range cfg.Delays {
		delays[id] = d
	}
	return &Scheduler{
		defaultDelay: cfg.DefaultDelay,
		delays:       delays,
		limiters:     make(map[string]*RateLimiter),
		metrics:      cfg.Metrics,
	}
}

// Delay returns the minimum delay for a plugin.
func (s *Scheduler) Delay(pluginID string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delayLocked(pluginID)
}

func (s *Scheduler) delayLocked(pluginID string) time.Duration {
	if d, ok := s.delays[pluginID]; ok {
		return d
	}
	return s.defaultDelay
}

func (s *Scheduler) limiter(pluginID string) *RateLimiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[pluginID]
	if !ok {
		l = NewRateLimiter(s.delayLocked(pluginID))
		s.limiters[pluginID] = l
	}
	return l
}

// Forget drops the pacing state of a plugin.
func (s *Scheduler) Forget(pluginID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.limiters, pluginID)
}

// Wait must be called before every dispatched call to a plugin. When the
// plugin reports an exhausted quota with a RetryAfter, the caller sleeps for
// RetryAfter first; then the call is spaced at least the plugin's minimum
// delay after the previous dispatch.
func (s *Scheduler) Wait(ctx context.Context, pluginID string, status domain.RateLimitStatus) error {
	var waited time.Duration

	if status.Exhausted() {
		if err := sleep(ctx, status.RetryAfter); err != nil {
			return err
		}
		waited += status.RetryAfter
	}

	d, err := s.limiter(pluginID).Wait(ctx)
	if err != nil {
		return err
	}
	waited += d

	if waited > 0 {
		s.metrics.RecordRateLimitWait(pluginID, waited.Seconds())
	}
	return nil
}

// sleep waits for d, respecting context cancellation.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
