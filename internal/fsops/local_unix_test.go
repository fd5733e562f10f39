//go:build unix

package fsops

import (
	"errors"
	"io/fs"
	"os"
	"syscall"
	"testing"
)

func TestMoveCrossDevice(t *testing.T) {
	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EXDEV}
	}
	defer func() { renameFunc = old }()

	err := NewLocal(nil).Move("/a/in.mp4", "/b/out.mp4")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !IsCrossDevice(err) {
		t.Fatalf("expected CrossDeviceError, got %T %v", err, err)
	}
	if errors.Is(err, fs.ErrExist) {
		t.Error("cross-device error must not look like a collision")
	}
}
