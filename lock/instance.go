// Package lock provides the single-instance advisory file lock the auto-sync
// engine (C5) takes before starting any file watcher or worker, so two
// processes never race to upload the same save. Grounded on
// original_source's AutoSyncLock, reimplemented on top of gofrs/flock in
// place of a raw fcntl call so it behaves the same on every platform the
// teacher's stack already targets.
package lock

import (
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"
)

// Instance is an exclusive, non-blocking advisory lock over a single file.
type Instance struct {
	path  string
	label string
	fl    *flock.Flock
}

// New creates an Instance bound to <dir>/autosync.lock. label identifies
// this process in the lock file's diagnostic payload (e.g. "daemon_1234").
func New(dir, label string) (*Instance, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	path := dir + "/autosync.lock"
	return &Instance{path: path, label: label, fl: flock.New(path)}, nil
}

// Acquire attempts to take the lock without blocking. A false return with a
// nil error means another instance already holds it.
func (i *Instance) Acquire() (bool, error) {
	ok, err := i.fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire auto-sync lock: %w", err)
	}
	if !ok {
		return false, nil
	}

	payload := fmt.Sprintf("%d:%s:%d\n", os.Getpid(), i.label, time.Now().Unix())
	if err := os.WriteFile(i.path, []byte(payload), 0o644); err != nil {
		i.fl.Unlock()
		return false, fmt.Errorf("failed to write lock diagnostic payload: %w", err)
	}
	return true, nil
}

// Release unlocks and best-effort removes the lock file, mirroring
// AutoSyncLock.release's unlink-ignoring-not-found behavior.
func (i *Instance) Release() error {
	if err := i.fl.Unlock(); err != nil {
		return fmt.Errorf("failed to release auto-sync lock: %w", err)
	}
	if err := os.Remove(i.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// Locked reports whether this Instance currently holds the lock.
func (i *Instance) Locked() bool {
	return i.fl.Locked()
}
