package delivery

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/sheetsync/internal/core/config"
)

const artifact = "workbook-bytes"

// shareEnv simulates a network share with a directory tree and a network
// prefix pointing at it.
type shareEnv struct {
	cfg     config.OutputConfig
	base    string
	local   string
	tempDir string
	copies  map[string]int
}

func newShareEnv(t *testing.T) *shareEnv {
	t.Helper()
	shareRoot := t.TempDir()
	localDir := t.TempDir()

	cfg := config.DefaultOutput()
	cfg.NetworkEnabled = true
	cfg.NetworkBasePath = filepath.Join(shareRoot, "reports")
	cfg.FilenameTemplate = "combined_{date}.xlsx"
	cfg.DefaultLocal = filepath.Join(localDir, "out", "combined.xlsx")
	cfg.Security.NetworkPrefix = shareRoot

	return &shareEnv{
		cfg:     cfg,
		base:    cfg.NetworkBasePath,
		local:   cfg.DefaultLocal,
		tempDir: t.TempDir(),
		copies:  make(map[string]int),
	}
}

// deliverer counts copies per destination and fails those failing reports true.
func (e *shareEnv) deliverer(failing func(dst string) bool) *Deliverer {
	resolver := NewResolver(e.cfg, WithNow(func() time.Time { return fixedNow }))
	return NewDeliverer(resolver,
		WithTempDir(e.tempDir),
		WithCopyFunc(func(src, dst string) error {
			e.copies[dst]++
			if failing != nil && failing(dst) {
				return errors.New("simulated copy failure")
			}
			return copyFile(src, dst)
		}),
	)
}

func (e *shareEnv) networkTarget() string {
	return filepath.Join(e.base, "combined_2026-03-10.xlsx")
}

func writeArtifact(w io.Writer) error {
	_, err := io.WriteString(w, artifact)
	return err
}

func assertTempDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary artifact must be removed")
}

func assertFileContent(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, artifact, string(data))
}

func TestDeliver_NetworkSuccessWithBackup(t *testing.T) {
	env := newShareEnv(t)

	out := env.deliverer(nil).Deliver(context.Background(), writeArtifact, Request{})

	require.True(t, out.Success)
	assert.NoError(t, out.Err)
	assert.Equal(t, RoutePrimary, out.Route)
	assert.Equal(t, env.networkTarget(), out.Path)
	assert.NotEmpty(t, out.ID)
	assertFileContent(t, env.networkTarget())

	assert.True(t, out.BackedUp)
	assert.Equal(t, env.local, out.BackupPath)
	assertFileContent(t, env.local)
	assertTempDirEmpty(t, env.tempDir)
}

func TestDeliver_BackupDisabled(t *testing.T) {
	env := newShareEnv(t)
	env.cfg.BackupToLocal = false

	out := env.deliverer(nil).Deliver(context.Background(), writeArtifact, Request{})

	require.True(t, out.Success)
	assert.False(t, out.BackedUp)
	assert.NoFileExists(t, env.local)
}

func TestDeliver_BackupFailureDoesNotChangeOutcome(t *testing.T) {
	env := newShareEnv(t)

	out := env.deliverer(func(dst string) bool { return dst == env.local }).
		Deliver(context.Background(), writeArtifact, Request{})

	require.True(t, out.Success)
	assert.Equal(t, RoutePrimary, out.Route)
	assert.False(t, out.BackedUp)
	assert.Equal(t, 1, env.copies[env.local])
}

func TestDeliver_ProbeFailureFallsBackLocally(t *testing.T) {
	env := newShareEnv(t)
	env.cfg.Fallback.CreateMissingDirectories = false

	out := env.deliverer(nil).Deliver(context.Background(), writeArtifact, Request{})

	require.True(t, out.Success)
	assert.Equal(t, RouteFallback, out.Route)
	assert.Equal(t, env.local, out.Path)
	assert.ErrorIs(t, out.Err, ErrPathUnreachable)
	assertFileContent(t, env.local)

	assert.Zero(t, env.copies[env.networkTarget()], "network destination must not be retried after a failed probe")
	assert.NoDirExists(t, env.base)
	assertTempDirEmpty(t, env.tempDir)
}

func TestDeliver_InvalidPathFallsBackLocally(t *testing.T) {
	env := newShareEnv(t)
	env.cfg.Security.AllowedPatterns = []string{`\\approved\*`}

	out := env.deliverer(nil).Deliver(context.Background(), writeArtifact, Request{})

	require.True(t, out.Success)
	assert.Equal(t, RouteFallback, out.Route)
	assert.ErrorIs(t, out.Err, ErrPathInvalid)
	assert.Zero(t, env.copies[env.networkTarget()])
	assertFileContent(t, env.local)
}

func TestDeliver_AllAttemptsFailWithoutFallback(t *testing.T) {
	env := newShareEnv(t)
	env.cfg.Fallback.UseLocalOnFailure = false

	target := env.networkTarget()
	out := env.deliverer(func(dst string) bool { return dst == target }).
		Deliver(context.Background(), writeArtifact, Request{})

	assert.False(t, out.Success)
	assert.Equal(t, RouteNone, out.Route)
	assert.ErrorIs(t, out.Err, ErrDeliveryExhausted)
	assert.Equal(t, 3, env.copies[target])
	assert.NoFileExists(t, env.local)
	assertTempDirEmpty(t, env.tempDir)
}

func TestDeliver_AllAttemptsFailThenFallback(t *testing.T) {
	env := newShareEnv(t)
	env.cfg.Fallback.RetryAttempts = 5

	target := env.networkTarget()
	out := env.deliverer(func(dst string) bool { return dst == target }).
		Deliver(context.Background(), writeArtifact, Request{})

	require.True(t, out.Success)
	assert.Equal(t, RouteFallback, out.Route)
	assert.ErrorIs(t, out.Err, ErrDeliveryExhausted)
	assert.Equal(t, 5, env.copies[target])
	assert.Equal(t, 1, env.copies[env.local])
}

func TestDeliver_RetrySucceedsOnSecondAttempt(t *testing.T) {
	env := newShareEnv(t)

	target := env.networkTarget()
	failed := false
	out := env.deliverer(func(dst string) bool {
		if dst == target && !failed {
			failed = true
			return true
		}
		return false
	}).Deliver(context.Background(), writeArtifact, Request{})

	require.True(t, out.Success)
	assert.Equal(t, RoutePrimary, out.Route)
	assert.Equal(t, 2, env.copies[target])
	assertFileContent(t, target)
}

func TestDeliver_FallbackFailureIsTerminal(t *testing.T) {
	env := newShareEnv(t)
	env.cfg.Fallback.CreateMissingDirectories = false

	out := env.deliverer(func(string) bool { return true }).
		Deliver(context.Background(), writeArtifact, Request{})

	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, ErrFallbackFailed)
	assert.ErrorIs(t, out.Err, ErrPathUnreachable)
	assert.Equal(t, 1, env.copies[env.local])
	assertTempDirEmpty(t, env.tempDir)
}

func TestDeliver_ProduceFailure(t *testing.T) {
	env := newShareEnv(t)

	out := env.deliverer(nil).Deliver(context.Background(), func(io.Writer) error {
		return errors.New("workbook assembly failed")
	}, Request{})

	assert.False(t, out.Success)
	assert.ErrorContains(t, out.Err, "workbook assembly failed")
	assert.Empty(t, env.copies)
	assertTempDirEmpty(t, env.tempDir)
}

func TestDeliver_ExplicitTarget(t *testing.T) {
	env := newShareEnv(t)
	target := filepath.Join(env.cfg.Security.NetworkPrefix, "adhoc", "special.xlsx")

	out := env.deliverer(nil).Deliver(context.Background(), writeArtifact, Request{Target: target})

	require.True(t, out.Success)
	assert.Equal(t, target, out.Path)
	assertFileContent(t, target)
}

func TestDeliver_LocalOnly(t *testing.T) {
	env := newShareEnv(t)
	env.cfg.NetworkEnabled = false

	out := env.deliverer(nil).Deliver(context.Background(), writeArtifact, Request{Override: "weekly.xlsx"})

	want := filepath.Join(filepath.Dir(env.local), "weekly.xlsx")
	require.True(t, out.Success)
	assert.Equal(t, RoutePrimary, out.Route)
	assert.Equal(t, want, out.Path)
	assert.False(t, out.BackedUp)
	assertFileContent(t, want)
}

func TestDeliver_CancelledContextSkipsAttempts(t *testing.T) {
	env := newShareEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := env.deliverer(nil).Deliver(ctx, writeArtifact, Request{})

	require.True(t, out.Success)
	assert.Equal(t, RouteFallback, out.Route)
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.Zero(t, env.copies[env.networkTarget()])
}

func TestDeliverFile(t *testing.T) {
	env := newShareEnv(t)
	src := filepath.Join(t.TempDir(), "built.xlsx")
	require.NoError(t, os.WriteFile(src, []byte(artifact), 0o644))

	out := env.deliverer(nil).DeliverFile(context.Background(), src, Request{})

	require.True(t, out.Success)
	assertFileContent(t, env.networkTarget())
	assert.FileExists(t, src, "the source file is left in place")
	assert.True(t, strings.HasSuffix(out.Path, ".xlsx"))
}
