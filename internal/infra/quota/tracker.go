// Package quota tracks remote API consumption against sliding windows and a
// daily weighted budget.
//
// Window rollover is lazy: it is evaluated only when RecordCall runs, so a long
// idle gap is resolved by the next call, which logs the summary of the window
// that just ended before counting itself.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/sheetsync/internal/core/clock"
	"github.com/vietddude/sheetsync/internal/core/config"
	"github.com/vietddude/sheetsync/internal/metrics"
)

// pauseMargin is added to every near-limit pause.
const pauseMargin = time.Second

// progressEvery controls how often per-category progress is logged.
const progressEvery = 10

// storeBackoff is how long a failing DailyStore is left alone.
const storeBackoff = 30 * time.Second

// DailyStore persists the daily weighted total across process restarts.
type DailyStore interface {
	LoadDaily(ctx context.Context, day string) (int64, error)
	AddDaily(ctx context.Context, day string, units int64) error
}

// Usage holds the raw counters. It is only mutated by Tracker.
type Usage struct {
	DriveRequests     int
	DriveQueries      int
	SheetsRequests    int
	DailyUnits        int64
	DriveWindowStart  time.Time
	SheetsWindowStart time.Time
	LastReset         time.Time
}

// Status is a point-in-time snapshot of all counters.
type Status struct {
	DriveRequests       int
	DriveQueries        int
	SheetsRequests      int
	DailyUnits          int64
	DailyUsagePercent   float64
	DriveWindowElapsed  time.Duration
	SheetsWindowElapsed time.Duration
	LastReset           time.Time
	Limits              config.QuotaConfig
}

// Tracker counts calls per category and window.
type Tracker struct {
	mu    sync.Mutex
	cfg   config.QuotaConfig
	usage Usage
	now   clock.NowFunc

	store        DailyStore
	storeTimeout time.Duration
	pending      map[string]int64 // units not yet persisted, by day
	flushing     bool
	storeRetryAt time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithNow overrides the time source.
func WithNow(fn clock.NowFunc) Option {
	return func(t *Tracker) { t.now = fn }
}

// WithDailyStore persists the daily total to store and restores it on start.
func WithDailyStore(store DailyStore) Option {
	return func(t *Tracker) { t.store = store }
}

// NewTracker creates a tracker whose windows all start now.
func NewTracker(cfg config.QuotaConfig, opts ...Option) *Tracker {
	t := &Tracker{
		cfg:          cfg,
		now:          time.Now,
		storeTimeout: 2 * time.Second,
		pending:      make(map[string]int64),
	}
	for _, opt := range opts {
		opt(t)
	}

	now := t.now()
	t.usage = Usage{
		DriveWindowStart:  now,
		SheetsWindowStart: now,
		LastReset:         now,
	}

	if t.store != nil {
		t.restoreDaily(now)
	}
	return t
}

// RecordCall counts a successful call of the given category and kind.
// Persistence to the DailyStore happens after the counters are released.
func (t *Tracker) RecordCall(cat Category, kind OpKind) {
	t.record(cat, kind)
	t.Flush()
}

func (t *Tracker) record(cat Category, kind OpKind) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.rolloverLocked(now)

	var count int
	switch cat {
	case Drive:
		t.usage.DriveRequests++
		count = t.usage.DriveRequests
		if count == t.cfg.DrivePauseThreshold+1 {
			slog.Warn("Approaching Drive API request limit",
				"requests", count, "limit", t.cfg.DriveLimit, "window", t.cfg.DriveWindow)
		}

		if kind == OpQuery {
			t.usage.DriveQueries++
			if t.usage.DriveQueries == t.cfg.DriveQueryWarn+1 {
				slog.Warn("Approaching Drive API query limit",
					"queries", t.usage.DriveQueries, "limit", t.cfg.DriveQueryLimit, "window", t.cfg.DriveWindow)
			}
		}

		t.addDailyLocked(now, int64(Weight(cat, kind)))

	case Sheets:
		t.usage.SheetsRequests++
		count = t.usage.SheetsRequests
		if count == t.cfg.SheetsPauseThreshold+1 {
			slog.Warn("Approaching Sheets API request limit",
				"requests", count, "limit", t.cfg.SheetsLimit, "window", t.cfg.SheetsWindow)
		}

	default:
		slog.Warn("Ignoring call with unknown quota category", "category", cat, "op", kind)
		return
	}

	metrics.APICallsTotal.WithLabelValues(string(cat), string(kind)).Inc()
	metrics.QuotaWindowRequests.WithLabelValues(string(cat)).Set(float64(count))

	if count%progressEvery == 0 {
		slog.Debug("Quota progress", "category", cat, "requests", count)
	}
}

func (t *Tracker) addDailyLocked(now time.Time, units int64) {
	warnAt := int64(float64(t.cfg.DailyLimit) * t.cfg.DailyWarnRatio)
	prev := t.usage.DailyUnits
	t.usage.DailyUnits += units

	if prev <= warnAt && t.usage.DailyUnits > warnAt {
		slog.Warn("Approaching daily Drive API quota",
			"units", t.usage.DailyUnits, "limit", t.cfg.DailyLimit)
	}
	metrics.QuotaDailyUnits.Set(float64(t.usage.DailyUnits))

	if t.store != nil {
		t.pending[dayKey(now)] += units
	}
}

// Flush persists pending daily units. Only one flush runs at a time, and a
// store that failed is skipped until its backoff has passed; the units stay
// pending and go out with the next successful flush.
func (t *Tracker) Flush() {
	t.mu.Lock()
	if t.store == nil || t.flushing || len(t.pending) == 0 || t.now().Before(t.storeRetryAt) {
		t.mu.Unlock()
		return
	}
	batch := t.pending
	t.pending = make(map[string]int64)
	t.flushing = true
	t.mu.Unlock()

	failed := make(map[string]int64)
	var lastErr error
	for day, units := range batch {
		if lastErr != nil {
			failed[day] = units
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), t.storeTimeout)
		if err := t.store.AddDaily(ctx, day, units); err != nil {
			failed[day] = units
			lastErr = err
		}
		cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.flushing = false
	if lastErr == nil {
		return
	}

	var pending int64
	for day, units := range failed {
		t.pending[day] += units
	}
	for _, units := range t.pending {
		pending += units
	}
	t.storeRetryAt = t.now().Add(storeBackoff)
	slog.Warn("Failed to persist daily quota usage",
		"pending_units", pending, "retry_in", storeBackoff, "error", lastErr)
}

// loadShared reads today's total from the store, which includes usage
// recorded by other processes sharing it.
func (t *Tracker) loadShared() (int64, string, bool) {
	t.mu.Lock()
	if t.store == nil || t.now().Before(t.storeRetryAt) {
		t.mu.Unlock()
		return 0, "", false
	}
	day := dayKey(t.now())
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), t.storeTimeout)
	defer cancel()
	units, err := t.store.LoadDaily(ctx, day)
	if err != nil {
		t.mu.Lock()
		t.storeRetryAt = t.now().Add(storeBackoff)
		t.mu.Unlock()
		slog.Warn("Failed to read shared daily quota usage", "retry_in", storeBackoff, "error", err)
		return 0, "", false
	}
	return units, day, true
}

// rolloverLocked resets every window that has elapsed. Each reset restarts
// only its own clock.
func (t *Tracker) rolloverLocked(now time.Time) {
	u := &t.usage

	if elapsed := now.Sub(u.SheetsWindowStart); elapsed >= t.cfg.SheetsWindow {
		if u.SheetsRequests > t.cfg.SheetsPauseThreshold {
			slog.Warn("Sheets window closed near limit",
				"requests", u.SheetsRequests, "limit", t.cfg.SheetsLimit)
		}
		if u.SheetsRequests > 0 {
			slog.Info("Sheets window closed",
				"requests", u.SheetsRequests, "elapsed", elapsed.Round(time.Second))
		}
		u.SheetsRequests = 0
		u.SheetsWindowStart = now
		metrics.QuotaRolloversTotal.WithLabelValues(string(Sheets)).Inc()
		metrics.QuotaWindowRequests.WithLabelValues(string(Sheets)).Set(0)
	}

	if elapsed := now.Sub(u.DriveWindowStart); elapsed >= t.cfg.DriveWindow {
		if u.DriveRequests > t.cfg.DrivePauseThreshold {
			slog.Warn("Drive window closed near request limit",
				"requests", u.DriveRequests, "limit", t.cfg.DriveLimit)
		}
		if u.DriveQueries > t.cfg.DriveQueryWarn {
			slog.Warn("Drive window closed near query limit",
				"queries", u.DriveQueries, "limit", t.cfg.DriveQueryLimit)
		}
		if u.DriveRequests > 0 || u.DriveQueries > 0 {
			slog.Info("Drive window closed",
				"requests", u.DriveRequests, "queries", u.DriveQueries,
				"elapsed", elapsed.Round(time.Second))
		}
		u.DriveRequests = 0
		u.DriveQueries = 0
		u.DriveWindowStart = now
		metrics.QuotaRolloversTotal.WithLabelValues(string(Drive)).Inc()
		metrics.QuotaWindowRequests.WithLabelValues(string(Drive)).Set(0)
	}

	if isNewDay(u.LastReset, now) {
		slog.Info("Daily quota reset", "units_used", u.DailyUnits, "previous_day", dayKey(u.LastReset))
		u.DailyUnits = 0
		u.LastReset = now
		metrics.QuotaRolloversTotal.WithLabelValues("daily").Inc()
		metrics.QuotaDailyUnits.Set(0)
	}
}

// ShouldPause returns how long to wait before the next call of cat when its
// window count has crossed the pause threshold.
func (t *Tracker) ShouldPause(cat Category) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var (
		count, threshold int
		start            time.Time
		window           time.Duration
	)
	switch cat {
	case Drive:
		count, threshold = t.usage.DriveRequests, t.cfg.DrivePauseThreshold
		start, window = t.usage.DriveWindowStart, t.cfg.DriveWindow
	case Sheets:
		count, threshold = t.usage.SheetsRequests, t.cfg.SheetsPauseThreshold
		start, window = t.usage.SheetsWindowStart, t.cfg.SheetsWindow
	default:
		return 0, false
	}

	if count <= threshold {
		return 0, false
	}

	remaining := window - t.now().Sub(start)
	if remaining < 0 {
		remaining = 0
	}
	wait := remaining.Truncate(time.Second) + pauseMargin
	if wait > window {
		wait = window
	}
	return wait, true
}

// Status returns a snapshot of the current counters. With a DailyStore the
// daily total is the shared one; window counts are always this process's own.
func (t *Tracker) Status() Status {
	shared, sharedDay, haveShared := t.loadShared()

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	daily := t.usage.DailyUnits
	if haveShared && sharedDay == dayKey(now) {
		total := shared + t.pending[sharedDay]
		if sharedDay == dayKey(t.usage.LastReset) {
			// keep warnings in step with usage from other processes
			if total > t.usage.DailyUnits {
				t.usage.DailyUnits = total
				metrics.QuotaDailyUnits.Set(float64(total))
			}
			daily = t.usage.DailyUnits
		} else {
			// the local day has not rolled over yet
			daily = total
		}
	}

	usagePercentage := 0.0
	if t.cfg.DailyLimit > 0 {
		usagePercentage = float64(daily) / float64(t.cfg.DailyLimit) * 100
	}

	return Status{
		DriveRequests:       t.usage.DriveRequests,
		DriveQueries:        t.usage.DriveQueries,
		SheetsRequests:      t.usage.SheetsRequests,
		DailyUnits:          daily,
		DailyUsagePercent:   usagePercentage,
		DriveWindowElapsed:  now.Sub(t.usage.DriveWindowStart),
		SheetsWindowElapsed: now.Sub(t.usage.SheetsWindowStart),
		LastReset:           t.usage.LastReset,
		Limits:              t.cfg,
	}
}

// Summary renders the current usage for operators.
func (t *Tracker) Summary() string {
	s := t.Status()

	var b strings.Builder
	b.WriteString("Quota usage\n")
	fmt.Fprintf(&b, "  Drive requests (per %s): %d/%d\n", s.Limits.DriveWindow, s.DriveRequests, s.Limits.DriveLimit)
	fmt.Fprintf(&b, "  Drive queries (per %s): %d/%d\n", s.Limits.DriveWindow, s.DriveQueries, s.Limits.DriveQueryLimit)
	fmt.Fprintf(&b, "  Sheets requests (per %s): %d/%d\n", s.Limits.SheetsWindow, s.SheetsRequests, s.Limits.SheetsLimit)
	fmt.Fprintf(&b, "  Daily Drive units: %d/%d (%.1f%%)\n", s.DailyUnits, s.Limits.DailyLimit, s.DailyUsagePercent)
	return b.String()
}

func (t *Tracker) restoreDaily(now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), t.storeTimeout)
	defer cancel()

	units, err := t.store.LoadDaily(ctx, dayKey(now))
	if err != nil {
		slog.Warn("Failed to restore daily quota usage", "error", err)
		return
	}
	t.usage.DailyUnits = units
	metrics.QuotaDailyUnits.Set(float64(units))
	if units > 0 {
		slog.Info("Restored daily quota usage", "units", units, "day", dayKey(now))
	}
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// isNewDay reports whether now falls on a later calendar date than last.
func isNewDay(last, now time.Time) bool {
	ly, lm, ld := last.Date()
	ny, nm, nd := now.Date()
	lastDay := time.Date(ly, lm, ld, 0, 0, 0, 0, time.UTC)
	nowDay := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return nowDay.After(lastDay)
}
