package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// LockManager hands out per-workspace advisory locks backed by flock(2) on
// files under a shared lock directory. The lock serializes mutating
// sequences on one (pool, name) key across concurrent invocations; since no
// operation ever holds more than one key lock, there is no lock ordering to
// get wrong.
type LockManager struct {
	dir string
}

// NewLockManager creates the lock directory if needed.
func NewLockManager(dir string) (*LockManager, error) {
	if dir == "" {
		return nil, fmt.Errorf("lock directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	return &LockManager{dir: dir}, nil
}

func (m *LockManager) lockPath(pool, name string) string {
	return filepath.Join(m.dir, fmt.Sprintf("%s.%s.lock", pool, name))
}

// WithLock runs fn while holding the exclusive lock for (pool, name),
// blocking until the lock is available. The lock is released on every exit
// path, including a panic inside fn.
func (m *LockManager) WithLock(pool, name string, fn func() error) error {
	return m.withLock(pool, name, 0, fn)
}

// TryWithLock is WithLock with a non-blocking acquisition. It returns
// false without running fn when another invocation holds the lock.
func (m *LockManager) TryWithLock(pool, name string, fn func() error) (bool, error) {
	err := m.withLock(pool, name, syscall.LOCK_NB, fn)
	if err == syscall.EWOULDBLOCK {
		return false, nil
	}
	return true, err
}

func (m *LockManager) withLock(pool, name string, flags int, fn func() error) error {
	f, err := os.OpenFile(m.lockPath(pool, name), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|flags); err != nil {
		if err == syscall.EWOULDBLOCK {
			return err
		}
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	}()

	return fn()
}
