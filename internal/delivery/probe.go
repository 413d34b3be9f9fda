package delivery

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

// probeMarker is created and removed to confirm write access.
const probeMarker = ".write_test_temp"

// Probe confirms the destination directory exists (creating it when allowed)
// and is writable. Any failure is reported as ErrPathUnreachable.
func (r *Resolver) Probe(path string) error {
	dir := dirOf(path)
	if err := ensureDir(dir, r.cfg.Fallback.CreateMissingDirectories); err != nil {
		return fmt.Errorf("%w: %v", ErrPathUnreachable, err)
	}

	marker := joinPath(dir, probeMarker)
	if err := os.WriteFile(marker, []byte("test"), 0o644); err != nil {
		return fmt.Errorf("%w: no write permission to %s: %v", ErrPathUnreachable, dir, err)
	}
	if err := os.Remove(marker); err != nil {
		return fmt.Errorf("%w: cannot remove probe file in %s: %v", ErrPathUnreachable, dir, err)
	}
	return nil
}

// ensureDir makes sure dir exists, creating it when create is set.
func ensureDir(dir string, create bool) error {
	if err := checkAddressable(dir); err != nil {
		return err
	}

	info, err := os.Stat(dir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return err
	case !create:
		return fmt.Errorf("directory %s does not exist", dir)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create directory %s: %w", dir, err)
	}
	slog.Info("Created destination directory", "dir", dir)
	return nil
}
