// Package throttle enforces a minimum spacing between successive calls of the
// same quota category.
package throttle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/sheetsync/internal/core/clock"
	"github.com/vietddude/sheetsync/internal/core/config"
	"github.com/vietddude/sheetsync/internal/infra/quota"
	"github.com/vietddude/sheetsync/internal/metrics"
)

// Governor remembers when each category last issued a call.
type Governor struct {
	mu        sync.Mutex
	intervals map[quota.Category]time.Duration
	lastCall  map[quota.Category]time.Time

	now   clock.NowFunc
	sleep clock.SleepFunc
}

// Option configures a Governor.
type Option func(*Governor)

// WithNow overrides the time source.
func WithNow(fn clock.NowFunc) Option {
	return func(g *Governor) { g.now = fn }
}

// WithSleep overrides how the governor blocks.
func WithSleep(fn clock.SleepFunc) Option {
	return func(g *Governor) { g.sleep = fn }
}

// NewGovernor creates a governor with a fixed minimum interval per category.
// Categories without an interval are never delayed.
func NewGovernor(intervals map[quota.Category]time.Duration, opts ...Option) *Governor {
	g := &Governor{
		intervals: make(map[quota.Category]time.Duration, len(intervals)),
		lastCall:  make(map[quota.Category]time.Time),
		now:       time.Now,
		sleep:     clock.Sleep,
	}
	for cat, interval := range intervals {
		g.intervals[cat] = interval
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewGovernorFromConfig uses the Drive and Sheets intervals from cfg.
func NewGovernorFromConfig(cfg config.QuotaConfig, opts ...Option) *Governor {
	return NewGovernor(map[quota.Category]time.Duration{
		quota.Drive:  cfg.DriveInterval,
		quota.Sheets: cfg.SheetsInterval,
	}, opts...)
}

// Wait blocks until at least the category's interval has passed since its
// previous call, then stamps the current call.
func (g *Governor) Wait(ctx context.Context, cat quota.Category) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	interval := g.intervals[cat]
	if last, ok := g.lastCall[cat]; ok && interval > 0 {
		if wait := interval - g.now().Sub(last); wait > 0 {
			slog.Debug("Spacing delay", "category", cat, "delay", wait, "min_interval", interval)
			metrics.SpacingDelay.WithLabelValues(string(cat)).Observe(wait.Seconds())
			if err := g.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	g.lastCall[cat] = g.now()
	return nil
}

// Interval returns the configured minimum interval for cat.
func (g *Governor) Interval(cat quota.Category) time.Duration {
	return g.intervals[cat]
}
