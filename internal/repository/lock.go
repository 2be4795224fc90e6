package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"
)

// ErrLocked is returned when another process holds the catalog lock.
var ErrLocked = errors.New("catalog locked")

// lockStaleAfter is how long a holder may keep the catalog lock before
// another writer takes it over.
const lockStaleAfter = 30 * time.Minute

// LockHolder identifies the process holding a catalog lock. It is stored
// as JSON inside the lock file.
type LockHolder struct {
	PID      int       `json:"pid"`
	Hostname string    `json:"hostname"`
	Owner    string    `json:"owner"` // "cli" or "server"
	Since    time.Time `json:"since"`
}

func (h LockHolder) String() string {
	return fmt.Sprintf("%s (PID %d, %v ago)", h.Owner, h.PID, time.Since(h.Since).Round(time.Second))
}

// stale reports whether the holder process is gone or has held the lock
// longer than lockStaleAfter.
func (h LockHolder) stale() bool {
	proc, err := os.FindProcess(h.PID)
	if err != nil {
		return true
	}
	// FindProcess always succeeds on Unix; signal 0 probes liveness.
	if proc.Signal(syscall.Signal(0)) != nil {
		return true
	}
	return time.Since(h.Since) > lockStaleAfter
}

// FileLock is an advisory flock guarding catalog writes.
type FileLock struct {
	path  string
	owner string
	file  *os.File
}

func NewFileLock(path, owner string) *FileLock {
	return &FileLock{path: path, owner: owner}
}

// Acquire takes the lock without blocking. A stale holder is displaced
// once; live contention returns ErrLocked.
func (l *FileLock) Acquire() error {
	for attempt := 0; ; attempt++ {
		file, err := l.tryLock()
		if err == nil {
			l.file = file
			return l.writeHolder()
		}
		if !errors.Is(err, ErrLocked) {
			return err
		}

		holder, readErr := l.holder()
		if readErr != nil {
			return err
		}
		if attempt > 0 || !holder.stale() {
			return fmt.Errorf("%w by %s", ErrLocked, holder)
		}
		slog.Warn("Taking over stale catalog lock", "owner", holder.Owner, "pid", holder.PID, "since", holder.Since)
		if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale lock: %w", err)
		}
	}
}

// tryLock opens the lock file and flocks it. The returned file is only
// valid if it still names l.path; an unlinked inode guards nothing.
func (l *FileLock) tryLock() (*os.File, error) {
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %v", ErrLocked, err)
	}

	opened, statErr := file.Stat()
	current, pathErr := os.Stat(l.path)
	if statErr != nil || pathErr != nil || !os.SameFile(opened, current) {
		_ = file.Close()
		return nil, fmt.Errorf("%w: lock file replaced during acquire", ErrLocked)
	}
	return file, nil
}

func (l *FileLock) writeHolder() error {
	hostname, _ := os.Hostname()
	data, err := json.Marshal(LockHolder{
		PID:      os.Getpid(),
		Hostname: hostname,
		Owner:    l.owner,
		Since:    time.Now(),
	})
	if err != nil {
		return err
	}
	if err := l.file.Truncate(0); err != nil {
		return fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := l.file.WriteAt(data, 0); err != nil {
		return fmt.Errorf("write lock holder: %w", err)
	}
	return nil
}

func (l *FileLock) holder() (LockHolder, error) {
	var h LockHolder
	data, err := os.ReadFile(l.path)
	if err != nil {
		return h, err
	}
	err = json.Unmarshal(data, &h)
	return h, err
}

// AcquireContext polls Acquire every interval until it succeeds, fails
// for a reason other than contention, or ctx is done.
func (l *FileLock) AcquireContext(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		err := l.Acquire()
		if !errors.Is(err, ErrLocked) {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for catalog lock: %w (%v)", ctx.Err(), err)
		case <-ticker.C:
		}
	}
}

// Release drops the lock and removes the lock file. Releasing an unheld
// lock is a no-op.
func (l *FileLock) Release() error {
	if l.file == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to remove lock file", "path", l.path, "error", err)
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Warn("Failed to release flock", "error", err)
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *FileLock) Held() bool {
	return l.file != nil
}
