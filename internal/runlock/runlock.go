// Package runlock keeps two xmlsort processes from working on the same tree
// at the same time. The lock is advisory and is released by the kernel when
// the process exits.
package runlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the lock file created in the locked directory.
const FileName = ".xmlsort.lock"

// ErrHeld indicates another process holds the lock.
var ErrHeld = errors.New("another xmlsort run holds the lock")

// Lock is an exclusive, cross-process lock on a file.
type Lock struct {
	path string
	file *os.File
}

// New creates a lock on path. Nothing is opened until the lock is taken.
func New(path string) *Lock {
	return &Lock{path: path}
}

// ForDir returns the lock guarding dir.
func ForDir(dir string) *Lock {
	return New(filepath.Join(dir, FileName))
}

// TryLock takes the lock without waiting. It returns false when another
// process holds it; errors are reserved for unexpected failures.
func (l *Lock) TryLock() (bool, error) {
	if err := l.open(); err != nil {
		return false, err
	}
	ok, err := tryLockFile(l.file)
	if err != nil || !ok {
		l.closeFile()
		if err != nil {
			return false, fmt.Errorf("lock failed: %w", err)
		}
		return false, nil
	}
	return true, nil
}

// Acquire takes the lock, failing with ErrHeld right away when another
// process has it.
func (l *Lock) Acquire() error {
	ok, err := l.TryLock()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrHeld, l.path)
	}
	return nil
}

// Unlock releases the lock. Unlocking an unheld lock is a no-op.
func (l *Lock) Unlock() error {
	if l.file == nil {
		return nil
	}
	err := unlockFile(l.file)
	closeErr := l.file.Close()
	l.file = nil

	if err != nil {
		return fmt.Errorf("unlock failed: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("close failed: %w", closeErr)
	}
	return nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

func (l *Lock) open() error {
	if l.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	l.file = f
	return nil
}

func (l *Lock) closeFile() {
	_ = l.file.Close()
	l.file = nil
}
