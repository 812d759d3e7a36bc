// Package synclock serializes sync cycles of one (device, app) pair, within
// the process and across livesync processes.
package synclock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/openmined/livesync/internal/utils"
)

var ErrLocked = errors.New("sync already running for this device and app")

const retryDelay = 100 * time.Millisecond

type Lock struct {
	mu    sync.Mutex
	flock *flock.Flock
}

func New(lockFilePath string) *Lock {
	return &Lock{flock: flock.New(lockFilePath)}
}

// TryLock takes the lock without waiting. It returns ErrLocked when another
// cycle holds it.
func (l *Lock) TryLock() error {
	if !l.mu.TryLock() {
		return ErrLocked
	}
	if err := l.lockFile(func() (bool, error) { return l.flock.TryLock() }); err != nil {
		l.mu.Unlock()
		return err
	}
	return nil
}

// Lock waits for the lock until ctx is done
func (l *Lock) Lock(ctx context.Context) error {
	l.mu.Lock()
	err := l.lockFile(func() (bool, error) { return l.flock.TryLockContext(ctx, retryDelay) })
	if err != nil {
		l.mu.Unlock()
		return err
	}
	return nil
}

func (l *Lock) lockFile(try func() (bool, error)) error {
	if err := utils.EnsureParent(l.flock.Path()); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	locked, err := try()
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", l.flock.Path(), err)
	}
	if !locked {
		return ErrLocked
	}
	return nil
}

func (l *Lock) Unlock() error {
	defer l.mu.Unlock()

	// if this process hasn't locked the file, then don't delete it
	if !l.flock.Locked() {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", l.flock.Path(), err)
	}
	return os.Remove(l.flock.Path())
}

func (l *Lock) Path() string {
	return l.flock.Path()
}
