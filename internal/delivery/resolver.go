// Package delivery resolves the output destination for the combined workbook
// and delivers it with bounded retries and a one-shot local fallback.
package delivery

import (
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/vietddude/sheetsync/internal/core/clock"
	"github.com/vietddude/sheetsync/internal/core/config"
)

// Kind is where a target lives.
type Kind int

const (
	KindLocal Kind = iota
	KindNetwork
)

func (k Kind) String() string {
	if k == KindNetwork {
		return "network"
	}
	return "local"
}

// Target is a resolved destination and the inputs used to derive it.
type Target struct {
	Path     string
	Kind     Kind
	Template string
	Vars     map[string]string
	Override string
}

var templateVar = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Resolver turns output configuration into destination paths.
type Resolver struct {
	cfg config.OutputConfig
	now clock.NowFunc
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithNow overrides the time used for template variables.
func WithNow(fn clock.NowFunc) ResolverOption {
	return func(r *Resolver) { r.now = fn }
}

// NewResolver creates a resolver over an immutable output config.
func NewResolver(cfg config.OutputConfig, opts ...ResolverOption) *Resolver {
	r := &Resolver{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the output configuration.
func (r *Resolver) Config() config.OutputConfig {
	return r.cfg
}

// IsNetwork reports whether path addresses the network share.
func (r *Resolver) IsNetwork(path string) bool {
	return strings.HasPrefix(path, r.cfg.Security.NetworkPrefix)
}

// LocalDefault returns the absolute local default destination.
func (r *Resolver) LocalDefault() string {
	return absPath(r.cfg.DefaultLocal)
}

// Resolve computes the destination for one delivery. override replaces the
// filename; vars take precedence over the built-in template variables.
func (r *Resolver) Resolve(override string, vars map[string]string) Target {
	t := Target{
		Kind:     KindLocal,
		Template: r.cfg.FilenameTemplate,
		Override: override,
	}

	if !r.cfg.NetworkEnabled {
		t.Path = r.localPath(override)
		return t
	}

	if r.cfg.NetworkBasePath == "" {
		slog.Warn("Network delivery enabled but no base path configured, using local path",
			"path", r.cfg.DefaultLocal)
		t.Path = r.localPath(override)
		return t
	}

	t.Vars = r.templateVars(vars)
	filename := shareRelative(override)
	if filename == "" {
		var err error
		filename, err = renderTemplate(r.cfg.FilenameTemplate, t.Vars)
		if err != nil {
			filename = fmt.Sprintf("combined_sheets_%s.xlsx", t.Vars["timestamp"])
			slog.Warn("Filename template could not be rendered, using default filename",
				"template", r.cfg.FilenameTemplate, "filename", filename, "error", err)
		}
	}

	t.Path = joinPath(r.cfg.NetworkBasePath, filename)
	t.Kind = KindNetwork
	return t
}

// shareRelative makes an override usable under the network base path. An
// absolute local path keeps only its filename.
func shareRelative(override string) string {
	slashed := strings.ReplaceAll(override, `\`, "/")
	if strings.HasPrefix(slashed, "/") || (len(slashed) >= 2 && slashed[1] == ':') {
		return path.Base(slashed)
	}
	return override
}

// localPath applies override to the local default. A bare filename replaces
// only the filename portion of the default.
func (r *Resolver) localPath(override string) string {
	switch {
	case override == "":
		return r.LocalDefault()
	case filepath.Base(override) == override:
		return absPath(filepath.Join(filepath.Dir(r.cfg.DefaultLocal), override))
	default:
		return absPath(override)
	}
}

func (r *Resolver) templateVars(extra map[string]string) map[string]string {
	now := r.now()
	vars := map[string]string{
		"timestamp": now.Format("20060102_150405"),
		"date":      now.Format("2006-01-02"),
		"year":      now.Format("2006"),
		"month":     now.Format("01"),
		"day":       now.Format("02"),
	}
	for k, v := range extra {
		vars[k] = v
	}
	return vars
}

// renderTemplate substitutes {name} placeholders.
func renderTemplate(tmpl string, vars map[string]string) (string, error) {
	var missing []string
	out := templateVar.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("template variable missing: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// ConfigurationSummary renders the output configuration for operators.
func (r *Resolver) ConfigurationSummary() string {
	c := r.cfg

	var b strings.Builder
	b.WriteString("Output path configuration\n")
	fmt.Fprintf(&b, "  Network delivery enabled: %t\n", c.NetworkEnabled)
	if c.NetworkEnabled {
		base := c.NetworkBasePath
		if base == "" {
			base = "Not configured"
		}
		fmt.Fprintf(&b, "  Network base path: %s\n", base)
		fmt.Fprintf(&b, "  Filename template: %s\n", c.FilenameTemplate)
		fmt.Fprintf(&b, "  Backup to local: %t\n", c.BackupToLocal)
		if len(c.Security.AllowedPatterns) > 0 {
			fmt.Fprintf(&b, "  Allowed patterns: %s\n", strings.Join(c.Security.AllowedPatterns, ", "))
		}
	}
	fmt.Fprintf(&b, "  Default local path: %s\n", c.DefaultLocal)
	fmt.Fprintf(&b, "  Fallback to local: %t\n", c.Fallback.UseLocalOnFailure)
	fmt.Fprintf(&b, "  Verify accessibility: %t\n", c.Fallback.VerifyPathAccessibility)
	fmt.Fprintf(&b, "  Retry attempts: %d\n", c.Fallback.RetryAttempts)
	return b.String()
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
