package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EnvSubstitution(t *testing.T) {
	t.Setenv("TEST_SHARE_PATH", `\\fileserver\reports`)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
output:
  network_enabled: true
  network_base_path: ${TEST_SHARE_PATH}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := Load(path)
	assert.True(t, cfg.Output.NetworkEnabled)
	assert.Equal(t, `\\fileserver\reports`, cfg.Output.NetworkBasePath)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, Default(), *cfg)
}

func TestLoad_MalformedFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output: [this is: not: valid"), 0o600))

	cfg := Load(path)
	assert.Equal(t, Default(), *cfg)
}

func TestParse_PartialKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
retry:
  max_retries: 5
  base_delay: 500ms
output:
  backup_to_local: false
  fallback:
    retry_attempts: 0
  security:
    allowed_patterns:
      - '\\fileserver\*'
`))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, 2.0, cfg.Retry.Multiplier)

	// explicit false survives, zero attempts falls back to the default
	assert.False(t, cfg.Output.BackupToLocal)
	assert.True(t, cfg.Output.Fallback.UseLocalOnFailure)
	assert.Equal(t, 3, cfg.Output.Fallback.RetryAttempts)
	assert.Equal(t, []string{`\\fileserver\*`}, cfg.Output.Security.AllowedPatterns)
	assert.Equal(t, `\\`, cfg.Output.Security.NetworkPrefix)

	assert.Equal(t, DefaultQuota(), cfg.Quota)
}

func TestParse_ThresholdsClampedToLimits(t *testing.T) {
	cfg, err := Parse([]byte(`
quota:
  sheets_limit: 100
  sheets_pause_threshold: 500
  drive_limit: 200
  drive_pause_threshold: 0
`))
	require.NoError(t, err)

	assert.Equal(t, 93, cfg.Quota.SheetsPauseThreshold)
	assert.Equal(t, 190, cfg.Quota.DrivePauseThreshold)
}

func TestParse_MissingThresholdMatchesDefault(t *testing.T) {
	cfg, err := Parse([]byte(`
quota:
  sheets_pause_threshold: 0
  drive_pause_threshold: 0
  drive_query_warn: 0
`))
	require.NoError(t, err)

	def := DefaultQuota()
	assert.Equal(t, def.SheetsPauseThreshold, cfg.Quota.SheetsPauseThreshold)
	assert.Equal(t, def.DrivePauseThreshold, cfg.Quota.DrivePauseThreshold)
	assert.Equal(t, def.DriveQueryWarn, cfg.Quota.DriveQueryWarn)
}
