package lockfile

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Lock is an exclusive advisory flock held for the duration of one mutating
// operation against the registry. It protects two independently launched
// processes from racing on the same store; it is not a crash marker, so the
// lock file itself is left in place on release.
type Lock struct {
	file *os.File
	path string
}

// Acquire opens (creating if needed) the lock file and takes an exclusive
// flock, blocking until any other holder releases it.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("acquire lock on %s: %w", path, err)
	}

	return &Lock{file: f, path: path}, nil
}

// TryAcquire is the non-blocking variant; it fails immediately when another
// process holds the lock.
func TryAcquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("store is locked by another process (%s): %w", path, err)
	}

	return &Lock{file: f, path: path}, nil
}

// Release drops the flock and closes the file. Safe to call once on every
// exit path; the kernel drops the lock on close regardless.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlockErr := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if unlockErr != nil {
		return fmt.Errorf("release lock: %w", unlockErr)
	}
	return closeErr
}

// Path returns the lock file path
func (l *Lock) Path() string {
	return l.path
}
