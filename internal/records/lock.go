package records

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"appkeeper/internal/api"

	"golang.org/x/sys/unix"
)

// Locker hands out per-instance advisory locks so that two lifecycle
// operations never run on the same instance at once.
type Locker struct {
	dir string
}

// NewLocker keeps its lock files in dir.
func NewLocker(dir string) *Locker {
	return &Locker{dir: dir}
}

// Lock is a held advisory lock.
type Lock struct {
	id string
	f  *os.File
}

// TryLock acquires the lock of id without waiting. When another process
// holds it, the error is an operation_in_progress ValidationError.
func (l *Locker) TryLock(id string) (*Lock, error) {
	if err := os.MkdirAll(l.dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create lock directory %s: %w", l.dir, err)
	}
	path := filepath.Join(l.dir, id+".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, api.NewValidationError(api.KeyOperationInProgress,
				"another operation is already running on %s", id)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	return &Lock{id: id, f: f}, nil
}

// TryLockAll acquires every lock in order, releasing those already held
// when one fails.
func (l *Locker) TryLockAll(ids ...string) (func(), error) {
	held := make([]*Lock, 0, len(ids))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		lock, err := l.TryLock(id)
		if err != nil {
			release()
			return nil, err
		}
		held = append(held, lock)
	}
	return release, nil
}

// Unlock releases the lock. The lock file is left in place.
func (k *Lock) Unlock() {
	if k == nil || k.f == nil {
		return
	}
	_ = unix.Flock(int(k.f.Fd()), unix.LOCK_UN)
	_ = k.f.Close()
	k.f = nil
}
