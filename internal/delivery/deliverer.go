package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/vietddude/sheetsync/internal/metrics"
)

// Route is the path an artifact took to its destination.
type Route string

const (
	RouteNone     Route = "none"
	RoutePrimary  Route = "primary"
	RouteFallback Route = "fallback"
	RouteBackup   Route = "backup-copy"
)

// Request describes one delivery.
type Request struct {
	Override string            // filename override
	Vars     map[string]string // extra template variables
	Target   string            // explicit destination; skips resolution
}

// Outcome reports how a delivery ended.
type Outcome struct {
	ID         string
	Success    bool
	Route      Route
	Path       string
	BackedUp   bool
	BackupPath string
	Err        error
}

// CopyFunc copies the file at src to dst.
type CopyFunc func(src, dst string) error

// Deliverer moves produced artifacts to their destination.
type Deliverer struct {
	resolver *Resolver
	tempDir  string
	copy     CopyFunc
}

// Option configures a Deliverer.
type Option func(*Deliverer)

// WithTempDir sets where artifacts are produced before delivery.
func WithTempDir(dir string) Option {
	return func(d *Deliverer) { d.tempDir = dir }
}

// WithCopyFunc overrides how files are copied to destinations.
func WithCopyFunc(fn CopyFunc) Option {
	return func(d *Deliverer) { d.copy = fn }
}

// NewDeliverer creates a deliverer using resolver's configuration.
func NewDeliverer(resolver *Resolver, opts ...Option) *Deliverer {
	d := &Deliverer{
		resolver: resolver,
		tempDir:  os.TempDir(),
		copy:     copyFile,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DeliverFile delivers a copy of an existing file.
func (d *Deliverer) DeliverFile(ctx context.Context, src string, req Request) Outcome {
	return d.Deliver(ctx, func(w io.Writer) error {
		f, err := os.Open(src)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	}, req)
}

// Deliver writes the artifact via produce to a private temporary file, then
// delivers it. It never returns an error: the outcome carries the result and
// every decision is logged. The temporary file is removed on every path.
func (d *Deliverer) Deliver(ctx context.Context, produce func(w io.Writer) error, req Request) Outcome {
	out := Outcome{ID: uuid.NewString(), Route: RouteNone}
	log := slog.With("delivery_id", out.ID)
	defer func() { d.record(out) }()

	target := req.Target
	if target != "" {
		log.Info("Using explicit destination", "path", target)
	} else {
		resolved := d.resolver.Resolve(req.Override, req.Vars)
		target = resolved.Path
		log.Info("Resolved destination", "path", target, "kind", resolved.Kind)
	}

	tmp, err := d.produceTemp(produce, filepath.Ext(strings.ReplaceAll(target, `\`, "/")))
	if err != nil {
		log.Error("Failed to produce artifact", "error", err)
		out.Err = err
		return out
	}
	defer func() {
		if err := os.Remove(tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn("Failed to remove temporary artifact", "path", tmp, "error", err)
		}
	}()

	if err := d.deliverPrimary(ctx, log, tmp, target); err != nil {
		out = d.fallback(log, tmp, out, err)
		return out
	}

	out.Success, out.Route, out.Path = true, RoutePrimary, target

	cfg := d.resolver.Config()
	if d.resolver.IsNetwork(target) && cfg.BackupToLocal {
		backup := d.resolver.LocalDefault()
		if err := d.writeTo(tmp, backup, true); err != nil {
			log.Warn("Could not create local backup", "path", backup, "error", err)
		} else {
			log.Info("Local backup created", "path", backup)
			out.BackedUp, out.BackupPath = true, backup
		}
	}
	return out
}

func (d *Deliverer) deliverPrimary(ctx context.Context, log *slog.Logger, tmp, target string) error {
	cfg := d.resolver.Config()

	if d.resolver.IsNetwork(target) {
		if err := d.resolver.Validate(target); err != nil {
			log.Error("Invalid network destination", "path", target, "error", err)
			return err
		}
		if cfg.Fallback.VerifyPathAccessibility {
			if err := d.resolver.Probe(target); err != nil {
				log.Error("Network destination not accessible", "path", target, "error", err)
				return err
			}
		}
	}

	attempts := max(cfg.Fallback.RetryAttempts, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		if err := d.writeTo(tmp, target, cfg.Fallback.CreateMissingDirectories); err != nil {
			lastErr = err
			log.Warn("Delivery attempt failed",
				"attempt", attempt, "max_attempts", attempts, "path", target, "error", err)
			continue
		}
		log.Info("Artifact delivered", "path", target, "attempt", attempt)
		return nil
	}

	log.Error("All delivery attempts failed", "path", target, "attempts", attempts)
	return fmt.Errorf("%w: %s: %w", ErrDeliveryExhausted, target, lastErr)
}

// fallback makes the single local copy after the primary route failed.
func (d *Deliverer) fallback(log *slog.Logger, tmp string, out Outcome, cause error) Outcome {
	out.Err = cause
	if !d.resolver.Config().Fallback.UseLocalOnFailure {
		log.Error("Delivery failed and local fallback is disabled", "error", cause)
		return out
	}

	local := d.resolver.LocalDefault()
	log.Warn("Falling back to local destination", "path", local, "reason", cause)
	if err := d.writeTo(tmp, local, true); err != nil {
		log.Error("Local fallback also failed", "path", local, "error", err)
		out.Err = fmt.Errorf("%w: %w (primary: %w)", ErrFallbackFailed, err, cause)
		return out
	}

	log.Info("Fallback: artifact saved locally", "path", local)
	out.Success, out.Route, out.Path = true, RouteFallback, local
	return out
}

func (d *Deliverer) writeTo(src, dst string, createDirs bool) error {
	if err := ensureDir(dirOf(dst), createDirs); err != nil {
		return err
	}
	return d.copy(src, dst)
}

func (d *Deliverer) produceTemp(produce func(w io.Writer) error, ext string) (string, error) {
	f, err := os.CreateTemp(d.tempDir, "sheetsync-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temporary artifact: %w", err)
	}

	if err := produce(f); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("produce artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close temporary artifact: %w", err)
	}
	return f.Name(), nil
}

func (d *Deliverer) record(out Outcome) {
	result := "success"
	if !out.Success {
		result = "failure"
	}
	metrics.DeliveriesTotal.WithLabelValues(string(out.Route), result).Inc()
	if out.BackedUp {
		metrics.DeliveriesTotal.WithLabelValues(string(RouteBackup), "success").Inc()
	}
}

// copyFile copies src to dst, keeping the source's modification time.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
