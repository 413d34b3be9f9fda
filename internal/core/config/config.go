package config

import (
	"time"

	redisclient "github.com/vietddude/sheetsync/internal/infra/redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server  ServerConfig       `yaml:"server"`
	Logging LoggingConfig      `yaml:"logging"`
	Quota   QuotaConfig        `yaml:"quota"`
	Retry   RetryConfig        `yaml:"retry"`
	Output  OutputConfig       `yaml:"output"`
	Redis   redisclient.Config `yaml:"redis"`
}

// ServerConfig holds the status HTTP server settings.
type ServerConfig struct {
	Port           int           `yaml:"port"`
	ReportInterval time.Duration `yaml:"report_interval"` // 0 disables periodic usage logs
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// QuotaConfig holds the remote API ceilings and the thresholds derived from them.
type QuotaConfig struct {
	// Drive calls: counted per 100s window and weighted into the daily budget.
	DriveWindow         time.Duration `yaml:"drive_window"`
	DriveLimit          int           `yaml:"drive_limit"`
	DrivePauseThreshold int           `yaml:"drive_pause_threshold"`
	DriveQueryLimit     int           `yaml:"drive_query_limit"`
	DriveQueryWarn      int           `yaml:"drive_query_warn"`
	DriveInterval       time.Duration `yaml:"drive_interval"`

	// Sheets calls: counted per 60s window.
	SheetsWindow         time.Duration `yaml:"sheets_window"`
	SheetsLimit          int           `yaml:"sheets_limit"`
	SheetsPauseThreshold int           `yaml:"sheets_pause_threshold"`
	SheetsInterval       time.Duration `yaml:"sheets_interval"`

	DailyLimit     int64   `yaml:"daily_limit"`
	DailyWarnRatio float64 `yaml:"daily_warn_ratio"`
}

// RetryConfig holds the backoff policy applied to every remote call.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"` // retries after the first try
	BaseDelay  time.Duration `yaml:"base_delay"`
	Multiplier float64       `yaml:"multiplier"`
}

// OutputConfig describes where the combined artifact is delivered.
type OutputConfig struct {
	DefaultLocal     string `yaml:"default_local"`
	NetworkEnabled   bool   `yaml:"network_enabled"`
	NetworkBasePath  string `yaml:"network_base_path"`
	FilenameTemplate string `yaml:"filename_template"`
	BackupToLocal    bool   `yaml:"backup_to_local"`

	Fallback FallbackConfig `yaml:"fallback"`
	Security SecurityConfig `yaml:"security"`
}

// FallbackConfig controls probing, retries and the local fallback route.
type FallbackConfig struct {
	UseLocalOnFailure        bool `yaml:"use_local_on_failure"`
	CreateMissingDirectories bool `yaml:"create_missing_directories"`
	VerifyPathAccessibility  bool `yaml:"verify_path_accessibility"`
	RetryAttempts            int  `yaml:"retry_attempts"`
}

// SecurityConfig restricts which network destinations are accepted.
type SecurityConfig struct {
	NetworkPrefix   string   `yaml:"network_prefix"`   // default `\\`
	AllowedPatterns []string `yaml:"allowed_patterns"` // glob, case-insensitive; empty = any
}

// Default returns the built-in configuration used when no file is available.
func Default() AppConfig {
	return AppConfig{
		Server:  ServerConfig{Port: 9090, ReportInterval: 5 * time.Minute},
		Logging: LoggingConfig{Level: "info"},
		Quota:   DefaultQuota(),
		Retry:   DefaultRetry(),
		Output:  DefaultOutput(),
	}
}

// DefaultQuota returns the free-tier Google API ceilings.
func DefaultQuota() QuotaConfig {
	return QuotaConfig{
		DriveWindow:          100 * time.Second,
		DriveLimit:           1000,
		DrivePauseThreshold:  950,
		DriveQueryLimit:      20000,
		DriveQueryWarn:       19000,
		DriveInterval:        100 * time.Millisecond,
		SheetsWindow:         60 * time.Second,
		SheetsLimit:          300,
		SheetsPauseThreshold: 280,
		SheetsInterval:       200 * time.Millisecond,
		DailyLimit:           1_000_000_000,
		DailyWarnRatio:       0.9,
	}
}

// DefaultRetry returns 3 retries (4 tries) with a 1s, 2s, 4s schedule.
func DefaultRetry() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		Multiplier: 2.0,
	}
}

// DefaultOutput returns local-only delivery with fallback enabled.
func DefaultOutput() OutputConfig {
	return OutputConfig{
		DefaultLocal:     "output/combined_sheets.xlsx",
		NetworkEnabled:   false,
		FilenameTemplate: "combined_sheets_{timestamp}.xlsx",
		BackupToLocal:    true,
		Fallback: FallbackConfig{
			UseLocalOnFailure:        true,
			CreateMissingDirectories: true,
			VerifyPathAccessibility:  true,
			RetryAttempts:            3,
		},
		Security: SecurityConfig{
			NetworkPrefix: `\\`,
		},
	}
}
