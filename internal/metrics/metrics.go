package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QuotaWindowRequests tracks the request count in the current window per category
	QuotaWindowRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sheetsync_quota_window_requests",
			Help: "Requests counted in the current quota window",
		},
		[]string{"category"},
	)

	// QuotaDailyUnits tracks weighted quota units used today
	QuotaDailyUnits = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sheetsync_quota_daily_units",
			Help: "Weighted quota units used since the last daily reset",
		},
	)

	// QuotaRolloversTotal counts window resets
	QuotaRolloversTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsync_quota_rollovers_total",
			Help: "Total number of quota window resets",
		},
		[]string{"window"},
	)

	// QuotaPausesTotal counts near-limit pauses
	QuotaPausesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsync_quota_pauses_total",
			Help: "Total number of near-limit quota pauses",
		},
		[]string{"category"},
	)

	// SpacingDelay tracks inter-call spacing delays
	SpacingDelay = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sheetsync_spacing_delay_seconds",
			Help:    "Delay inserted between successive calls of a category",
			Buckets: []float64{.01, .025, .05, .1, .2, .5},
		},
		[]string{"category"},
	)

	// APICallsTotal tracks successful remote calls per category and op kind
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsync_api_calls_total",
			Help: "Total number of successful remote API calls",
		},
		[]string{"category", "op"},
	)

	// APIErrorsTotal tracks failed attempts by classification
	APIErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsync_api_errors_total",
			Help: "Total number of failed remote API attempts",
		},
		[]string{"category", "class"},
	)

	// DeliveriesTotal tracks artifact deliveries by route and result
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsync_deliveries_total",
			Help: "Total number of artifact deliveries",
		},
		[]string{"route", "result"},
	)
)
