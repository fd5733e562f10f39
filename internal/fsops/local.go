package fsops

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Local lists and moves files on the local filesystem. Completed moves are
// appended to Journal when one is set.
type Local struct {
	Journal *Journal
}

// NewLocal returns a Local executor writing to journal (may be nil).
func NewLocal(journal *Journal) *Local {
	return &Local{Journal: journal}
}

// ListFiles returns the names of regular files directly inside dir, sorted.
// Symlinks are followed; directories and broken links are skipped.
func (l *Local) ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
			continue
		}
		if e.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(filepath.Join(dir, e.Name()))
			if err == nil && info.Mode().IsRegular() {
				names = append(names, e.Name())
			}
		}
	}

	sort.Strings(names)
	return names, nil
}

// Exists reports whether anything (file, directory or dangling link) occupies path.
func (l *Local) Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// EnsureDir creates dir and its parents if needed.
func (l *Local) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// Move renames src to dst without ever replacing an existing dst. An occupied
// destination yields an error matching fs.ErrExist; a cross-device rename a
// *CrossDeviceError.
func (l *Local) Move(src, dst string) error {
	if err := validatePath(src); err != nil {
		return fmt.Errorf("invalid source path: %w", err)
	}
	if err := validatePath(dst); err != nil {
		return fmt.Errorf("invalid destination path: %w", err)
	}

	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}

	if l.Journal != nil {
		l.Journal.Record("move", src, dst)
	}
	return nil
}

// validatePath rejects relative paths and traversal sequences
func validatePath(path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("must be absolute path: %s", path)
	}
	// Clean would fold ".." away, so inspect the raw path
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("contains path traversal (..) sequence: %s", path)
		}
	}
	return nil
}

// CrossDeviceError marks a rename that failed because source and destination
// live on different filesystems. No copy+delete fallback is attempted.
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("cross-device move %q -> %q (source and destination must be on the same filesystem): %v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice reports whether err is a CrossDeviceError.
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}
