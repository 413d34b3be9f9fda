package throttle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/sheetsync/internal/core/config"
	"github.com/vietddude/sheetsync/internal/infra/quota"
)

type fakeClock struct {
	t      time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.t = c.t.Add(d)
	return nil
}

func newTestGovernor() (*Governor, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	g := NewGovernorFromConfig(config.DefaultQuota(), WithNow(clk.Now), WithSleep(clk.Sleep))
	return g, clk
}

func TestWait_FirstCallNeverDelayed(t *testing.T) {
	g, clk := newTestGovernor()

	require.NoError(t, g.Wait(context.Background(), quota.Sheets))
	require.NoError(t, g.Wait(context.Background(), quota.Drive))
	assert.Empty(t, clk.sleeps)
}

func TestWait_EnforcesRemainingInterval(t *testing.T) {
	g, clk := newTestGovernor()
	ctx := context.Background()

	require.NoError(t, g.Wait(ctx, quota.Sheets))
	clk.t = clk.t.Add(50 * time.Millisecond)
	require.NoError(t, g.Wait(ctx, quota.Sheets))

	assert.Equal(t, []time.Duration{150 * time.Millisecond}, clk.sleeps)
}

func TestWait_NoDelayAfterInterval(t *testing.T) {
	g, clk := newTestGovernor()
	ctx := context.Background()

	require.NoError(t, g.Wait(ctx, quota.Drive))
	clk.t = clk.t.Add(150 * time.Millisecond)
	require.NoError(t, g.Wait(ctx, quota.Drive))

	assert.Empty(t, clk.sleeps)
}

func TestWait_CategoriesAreIndependent(t *testing.T) {
	g, clk := newTestGovernor()
	ctx := context.Background()

	require.NoError(t, g.Wait(ctx, quota.Drive))
	require.NoError(t, g.Wait(ctx, quota.Sheets))
	assert.Empty(t, clk.sleeps)

	require.NoError(t, g.Wait(ctx, quota.Drive))
	assert.Equal(t, []time.Duration{100 * time.Millisecond}, clk.sleeps)
}

func TestWait_PropagatesSleepError(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	g := NewGovernor(
		map[quota.Category]time.Duration{quota.Sheets: time.Second},
		WithNow(clk.Now),
		WithSleep(func(context.Context, time.Duration) error { return context.Canceled }),
	)

	require.NoError(t, g.Wait(context.Background(), quota.Sheets))
	err := g.Wait(context.Background(), quota.Sheets)
	assert.True(t, errors.Is(err, context.Canceled))
}
