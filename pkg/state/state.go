// Package state owns the runtime folder layout under the configured data
// path: the Pebble store, retention bookkeeping and crash markers each get
// their own directory with restrictive permissions.
package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// StorePath returns the directory holding the Pebble database.
func StorePath(dataPath string) string {
	return filepath.Join(dataPath, "store")
}

// CrashPath returns the directory receiving exit markers written on
// abnormal termination.
func CrashPath(dataPath string) string {
	return filepath.Join(dataPath, "state", "crash")
}

// TmpPath returns the scratch directory for writability probes and
// temporary artifacts.
func TmpPath(dataPath string) string {
	return filepath.Join(dataPath, "state", "tmp")
}

// EnsureStateDirs creates the canonical layout under dataPath. Paths must
// not be symlinks, and each directory is probed for writability so a
// permission problem surfaces at startup instead of mid-write.
func EnsureStateDirs(dataPath string) error {
	paths := []string{StorePath(dataPath), CrashPath(dataPath), TmpPath(dataPath)}
	for _, p := range paths {
		if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
			return fmt.Errorf("cannot create parent for %s: %w", p, err)
		}
		if fi, err := os.Lstat(p); err == nil {
			if fi.Mode()&os.ModeSymlink != 0 {
				return fmt.Errorf("state path %s is a symlink", p)
			}
			if !fi.IsDir() {
				return fmt.Errorf("state path %s exists and is not a directory", p)
			}
		}
		if err := os.MkdirAll(p, 0o700); err != nil {
			return fmt.Errorf("cannot create %s: %w", p, err)
		}
		probe, err := os.CreateTemp(p, ".probe-*")
		if err != nil {
			return fmt.Errorf("state path %s is not writable: %w", p, err)
		}
		name := probe.Name()
		_ = probe.Close()
		_ = os.Remove(name)
	}
	return nil
}
