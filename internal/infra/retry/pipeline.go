package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/sheetsync/internal/core/clock"
	"github.com/vietddude/sheetsync/internal/infra/quota"
	"github.com/vietddude/sheetsync/internal/metrics"
)

// Operation is a single remote call.
type Operation func(ctx context.Context) (any, error)

// Call carries one attempt through the pipeline.
type Call struct {
	Category quota.Category
	Kind     quota.OpKind
	Attempt  int // 0-indexed
	Op       Operation
}

// Invoker runs the remainder of the pipeline.
type Invoker func(ctx context.Context, call *Call) (any, error)

// Stage is one step of the per-attempt pipeline. A stage must call next
// exactly once to let the attempt proceed, or return without calling it.
type Stage interface {
	Invoke(ctx context.Context, call *Call, next Invoker) (any, error)
}

// StageFunc adapts a function to Stage.
type StageFunc func(ctx context.Context, call *Call, next Invoker) (any, error)

// Invoke implements Stage.
func (f StageFunc) Invoke(ctx context.Context, call *Call, next Invoker) (any, error) {
	return f(ctx, call, next)
}

// Pipeline runs its stages in order, then the call's operation.
type Pipeline struct {
	stages []Stage
}

// NewPipeline creates a pipeline; stages run in the order given.
func NewPipeline(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Invoke runs one attempt.
func (p *Pipeline) Invoke(ctx context.Context, call *Call) (any, error) {
	return p.invokeFrom(0)(ctx, call)
}

func (p *Pipeline) invokeFrom(i int) Invoker {
	if i == len(p.stages) {
		return func(ctx context.Context, call *Call) (any, error) {
			return call.Op(ctx)
		}
	}
	return func(ctx context.Context, call *Call) (any, error) {
		return p.stages[i].Invoke(ctx, call, p.invokeFrom(i+1))
	}
}

// Pauser decides whether a category is close enough to its ceiling to wait.
type Pauser interface {
	ShouldPause(cat quota.Category) (time.Duration, bool)
}

// Spacer enforces the minimum interval between calls.
type Spacer interface {
	Wait(ctx context.Context, cat quota.Category) error
}

// Recorder counts successful calls.
type Recorder interface {
	RecordCall(cat quota.Category, kind quota.OpKind)
}

// PauseStage blocks while the category is over its near-limit threshold.
type PauseStage struct {
	Pauser Pauser
	Sleep  clock.SleepFunc
}

// Invoke implements Stage.
func (s PauseStage) Invoke(ctx context.Context, call *Call, next Invoker) (any, error) {
	if wait, ok := s.Pauser.ShouldPause(call.Category); ok {
		slog.Info("Pausing to avoid quota limits", "category", call.Category, "pause", wait)
		metrics.QuotaPausesTotal.WithLabelValues(string(call.Category)).Inc()
		if err := s.Sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return next(ctx, call)
}

// SpacingStage enforces the per-category call interval.
type SpacingStage struct {
	Spacer Spacer
}

// Invoke implements Stage.
func (s SpacingStage) Invoke(ctx context.Context, call *Call, next Invoker) (any, error) {
	if err := s.Spacer.Wait(ctx, call.Category); err != nil {
		return nil, err
	}
	return next(ctx, call)
}

// RecordStage records usage after a successful attempt.
type RecordStage struct {
	Recorder Recorder
}

// Invoke implements Stage.
func (s RecordStage) Invoke(ctx context.Context, call *Call, next Invoker) (any, error) {
	result, err := next(ctx, call)
	if err != nil {
		return nil, err
	}
	s.Recorder.RecordCall(call.Category, call.Kind)
	return result, nil
}
