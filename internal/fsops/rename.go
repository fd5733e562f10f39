package fsops

import (
	"errors"
	"io/fs"
	"os"
)

// renameChecked refuses to replace an existing newpath. The check and the
// rename are not atomic.
func renameChecked(oldpath, newpath string) error {
	if _, err := os.Lstat(newpath); err == nil {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: fs.ErrExist}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.Rename(oldpath, newpath)
}
