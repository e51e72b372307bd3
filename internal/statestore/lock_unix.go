//go:build unix

package statestore

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Lock wraps an open, flock(2)-held file descriptor. Unlock is idempotent
// and safe to call from both a defer and an explicit call site.
type Lock struct {
	f    *os.File
	once sync.Once
}

func lockFile(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock: %w", err)
	}
	return &Lock{f: f}, nil
}

// Unlock releases the lock and closes the underlying descriptor.
func (l *Lock) Unlock() error {
	var err error
	l.once.Do(func() {
		if unlockErr := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); unlockErr != nil {
			err = fmt.Errorf("funlock: %w", unlockErr)
		}
		l.f.Close()
	})
	return err
}
