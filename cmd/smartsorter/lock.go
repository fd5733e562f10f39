package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// lockPath returns the advisory lock file guarding root. The lock lives in
// the temp dir so the sorted directory gains no extra files.
func lockPath(root string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(root)))
	return filepath.Join(os.TempDir(), "smartsorter-"+hex.EncodeToString(sum[:8])+".lock")
}

// acquireLock takes the per-directory lock without waiting.
func acquireLock(root string) (*flock.Flock, error) {
	lock := flock.New(lockPath(root))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another smartsorter run is already processing %s", root)
	}
	return lock, nil
}
