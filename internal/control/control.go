// Package control builds the governance services once at process start and
// hands them to callers by reference.
package control

import (
	"log/slog"

	"github.com/vietddude/sheetsync/internal/core/config"
	"github.com/vietddude/sheetsync/internal/delivery"
	redisclient "github.com/vietddude/sheetsync/internal/infra/redis"
	"github.com/vietddude/sheetsync/internal/infra/quota"
	"github.com/vietddude/sheetsync/internal/infra/retry"
	"github.com/vietddude/sheetsync/internal/infra/throttle"
)

// Services is the shared state of one process: a single tracker and governor
// feeding the executor, plus the output resolver and deliverer.
type Services struct {
	Tracker   *quota.Tracker
	Governor  *throttle.Governor
	Executor  *retry.Executor
	Resolver  *delivery.Resolver
	Deliverer *delivery.Deliverer

	redis *redisclient.Client
}

// Options overrides construction details, mostly for tests.
type Options struct {
	TrackerOptions   []quota.Option
	GovernorOptions  []throttle.Option
	ExecutorOptions  []retry.Option
	ResolverOptions  []delivery.ResolverOption
	DelivererOptions []delivery.Option
}

// New wires all services from cfg. Redis persistence is optional: when it is
// configured but unreachable, the tracker runs in memory only.
func New(cfg *config.AppConfig, opts Options) *Services {
	s := &Services{}

	trackerOpts := opts.TrackerOptions
	if cfg.Redis.Enabled() {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Daily usage persistence disabled", "error", err)
		} else {
			s.redis = client
			store := redisclient.NewUsageStore(client.Cmdable())
			trackerOpts = append([]quota.Option{quota.WithDailyStore(store)}, trackerOpts...)
		}
	}

	s.Tracker = quota.NewTracker(cfg.Quota, trackerOpts...)
	s.Governor = throttle.NewGovernorFromConfig(cfg.Quota, opts.GovernorOptions...)
	s.Executor = retry.NewExecutor(s.Tracker, s.Governor, retry.PolicyFromConfig(cfg.Retry), opts.ExecutorOptions...)
	s.Resolver = delivery.NewResolver(cfg.Output, opts.ResolverOptions...)
	s.Deliverer = delivery.NewDeliverer(s.Resolver, opts.DelivererOptions...)

	slog.Debug("Services initialized",
		"network_delivery", cfg.Output.NetworkEnabled,
		"max_retries", cfg.Retry.MaxRetries,
		"daily_persistence", s.redis != nil,
	)
	return s
}

// Close persists pending usage and releases external connections.
func (s *Services) Close() error {
	s.Tracker.Flush()
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
