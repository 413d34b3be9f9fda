package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file. A missing or unparseable file is
// never fatal: the built-in defaults are returned instead.
func Load(path string) *AppConfig {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Info("No config file found, using defaults", "path", path)
		} else {
			slog.Warn("Could not read config file, using defaults", "path", path, "error", err)
		}
		cfg := Default()
		return &cfg
	}

	cfg, err := Parse(data)
	if err != nil {
		slog.Warn("Could not parse config file, using defaults", "path", path, "error", err)
		def := Default()
		return &def
	}
	return cfg
}

// Parse decodes YAML over the defaults, so omitted keys keep their default
// values. Environment variables in the content are expanded first.
func Parse(data []byte) (*AppConfig, error) {
	cfg := Default()

	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults replaces zero or out-of-range values with defaults.
func applyDefaults(cfg *AppConfig) {
	def := Default()

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = def.Server.Port
	}

	q, dq := &cfg.Quota, def.Quota
	if q.DriveWindow <= 0 {
		q.DriveWindow = dq.DriveWindow
	}
	if q.DriveLimit <= 0 {
		q.DriveLimit = dq.DriveLimit
	}
	if q.DrivePauseThreshold <= 0 || q.DrivePauseThreshold > q.DriveLimit {
		q.DrivePauseThreshold = scaledThreshold(q.DriveLimit, dq.DrivePauseThreshold, dq.DriveLimit)
	}
	if q.DriveQueryLimit <= 0 {
		q.DriveQueryLimit = dq.DriveQueryLimit
	}
	if q.DriveQueryWarn <= 0 || q.DriveQueryWarn > q.DriveQueryLimit {
		q.DriveQueryWarn = scaledThreshold(q.DriveQueryLimit, dq.DriveQueryWarn, dq.DriveQueryLimit)
	}
	if q.DriveInterval < 0 {
		q.DriveInterval = dq.DriveInterval
	}
	if q.SheetsWindow <= 0 {
		q.SheetsWindow = dq.SheetsWindow
	}
	if q.SheetsLimit <= 0 {
		q.SheetsLimit = dq.SheetsLimit
	}
	if q.SheetsPauseThreshold <= 0 || q.SheetsPauseThreshold > q.SheetsLimit {
		q.SheetsPauseThreshold = scaledThreshold(q.SheetsLimit, dq.SheetsPauseThreshold, dq.SheetsLimit)
	}
	if q.SheetsInterval < 0 {
		q.SheetsInterval = dq.SheetsInterval
	}
	if q.DailyLimit <= 0 {
		q.DailyLimit = dq.DailyLimit
	}
	if q.DailyWarnRatio <= 0 || q.DailyWarnRatio > 1 {
		q.DailyWarnRatio = dq.DailyWarnRatio
	}

	r := &cfg.Retry
	if r.MaxRetries < 0 {
		r.MaxRetries = def.Retry.MaxRetries
	}
	if r.BaseDelay <= 0 {
		r.BaseDelay = def.Retry.BaseDelay
	}
	if r.Multiplier < 1 {
		r.Multiplier = def.Retry.Multiplier
	}

	o := &cfg.Output
	if o.DefaultLocal == "" {
		o.DefaultLocal = def.Output.DefaultLocal
	}
	if o.FilenameTemplate == "" {
		o.FilenameTemplate = def.Output.FilenameTemplate
	}
	if o.Fallback.RetryAttempts <= 0 {
		o.Fallback.RetryAttempts = def.Output.Fallback.RetryAttempts
	}
	if o.Security.NetworkPrefix == "" {
		o.Security.NetworkPrefix = def.Output.Security.NetworkPrefix
	}
}

// scaledThreshold keeps the default threshold-to-limit ratio for a custom limit.
func scaledThreshold(limit, defThreshold, defLimit int) int {
	return limit * defThreshold / defLimit
}
