package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/sheetsync/internal/infra/quota"
)

// minReportInterval bounds how chatty the reporter can be.
const minReportInterval = time.Second

// Snapshotter provides quota usage snapshots.
type Snapshotter interface {
	Status() quota.Status
}

// Reporter periodically logs quota usage while a long-running process is up.
type Reporter struct {
	source   Snapshotter
	interval time.Duration
}

// NewReporter creates a new Reporter worker.
func NewReporter(source Snapshotter, interval time.Duration) *Reporter {
	return &Reporter{
		source:   source,
		interval: interval,
	}
}

// Start runs the reporter loop until ctx is cancelled.
func (r *Reporter) Start(ctx context.Context) {
	if r.interval <= 0 {
		return // Reporting disabled
	}

	ticker := time.NewTicker(max(r.interval, minReportInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.report()
		}
	}
}

func (r *Reporter) report() {
	s := r.source.Status()
	slog.Info("Quota usage",
		"drive_requests", s.DriveRequests,
		"drive_limit", s.Limits.DriveLimit,
		"drive_queries", s.DriveQueries,
		"sheets_requests", s.SheetsRequests,
		"sheets_limit", s.Limits.SheetsLimit,
		"daily_units", s.DailyUnits,
		"daily_percent", s.DailyUsagePercent,
	)
}
