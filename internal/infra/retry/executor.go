// Package retry wraps remote calls with quota-aware pacing and
// classification-driven exponential backoff.
//
// Each attempt runs through a fixed pipeline: pause check, spacing check,
// the operation itself, then usage recording on success.
package retry

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/vietddude/sheetsync/internal/core/clock"
	"github.com/vietddude/sheetsync/internal/core/config"
	"github.com/vietddude/sheetsync/internal/infra/quota"
	"github.com/vietddude/sheetsync/internal/metrics"
)

// Policy defines retry behavior.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Multiplier float64
}

// DefaultPolicy retries 3 times after the first try, waiting 1s, 2s, 4s.
func DefaultPolicy() Policy {
	return PolicyFromConfig(config.DefaultRetry())
}

// PolicyFromConfig builds a Policy from the retry section of the config.
func PolicyFromConfig(cfg config.RetryConfig) Policy {
	return Policy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.BaseDelay,
		Multiplier: cfg.Multiplier,
	}
}

// MaxAttempts is the total number of tries.
func (p Policy) MaxAttempts() int {
	return p.MaxRetries + 1
}

// Backoff returns the delay before retrying after the 0-indexed attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	return time.Duration(float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt)))
}

// Tracker is the part of the quota tracker the executor needs.
type Tracker interface {
	Pauser
	Recorder
}

// Executor runs operations through the pipeline with retries.
type Executor struct {
	pipeline *Pipeline
	policy   Policy
	sleep    clock.SleepFunc
}

// Option configures an Executor.
type Option func(*executorOptions)

type executorOptions struct {
	sleep clock.SleepFunc
}

// WithSleep overrides how the executor blocks for quota pauses and backoff.
func WithSleep(fn clock.SleepFunc) Option {
	return func(o *executorOptions) { o.sleep = fn }
}

// NewExecutor wires tracker and spacer into the standard pipeline.
func NewExecutor(tracker Tracker, spacer Spacer, policy Policy, opts ...Option) *Executor {
	o := executorOptions{sleep: clock.Sleep}
	for _, opt := range opts {
		opt(&o)
	}

	return &Executor{
		pipeline: NewPipeline(
			PauseStage{Pauser: tracker, Sleep: o.sleep},
			SpacingStage{Spacer: spacer},
			RecordStage{Recorder: tracker},
		),
		policy: policy,
		sleep:  o.sleep,
	}
}

// Policy returns the executor's retry policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// Do executes op, retrying rate-limit and transient server failures.
// Fatal errors are returned unchanged on first occurrence. When all attempts
// fail, the last retryable error is returned wrapped in *ExhaustedError.
func (e *Executor) Do(ctx context.Context, cat quota.Category, kind quota.OpKind, op Operation) (any, error) {
	maxAttempts := e.policy.MaxAttempts()
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		call := &Call{Category: cat, Kind: kind, Attempt: attempt, Op: op}
		result, err := e.pipeline.Invoke(ctx, call)
		if err == nil {
			return result, nil
		}

		class := Classify(err)
		metrics.APIErrorsTotal.WithLabelValues(string(cat), class.String()).Inc()
		if !class.Retryable() {
			return nil, err
		}
		lastErr = err

		if attempt == maxAttempts-1 {
			break
		}

		delay := e.policy.Backoff(attempt)
		slog.Warn("Retryable API error",
			"category", cat,
			"op", kind,
			"class", class,
			"attempt", attempt+1,
			"max_attempts", maxAttempts,
			"backoff", delay,
			"error", err,
		)
		if err := e.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	slog.Error("All attempts failed", "category", cat, "op", kind, "attempts", maxAttempts, "error", lastErr)
	return nil, &ExhaustedError{Attempts: maxAttempts, Err: lastErr}
}

// Run is a typed wrapper around Executor.Do.
func Run[T any](
	ctx context.Context,
	e *Executor,
	cat quota.Category,
	kind quota.OpKind,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	result, err := e.Do(ctx, cat, kind, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	v, _ := result.(T)
	return v, nil
}
