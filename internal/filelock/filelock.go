// Package filelock implements the workspace's advisory exclusive file lock:
// a beads.lock sibling file, exponential-backoff polling on contention, and
// stale-owner reclaim based on pid liveness.
package filelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// ErrLockTimeout is returned when the lock could not be acquired before the
// caller's deadline.
var ErrLockTimeout = errors.New("filelock: timed out waiting for lock")

// ErrLockFilesystemUnsupported is returned when the underlying filesystem
// does not support advisory locking (e.g. some network filesystems).
var ErrLockFilesystemUnsupported = errors.New("filelock: filesystem does not support advisory locks")

// StaleAfter is the minimum recorded age of a lock file before a holder
// whose pid is no longer running is considered stale and reclaimable.
const StaleAfter = 10 * time.Second

// Guard represents a held lock. Release must be called exactly once,
// typically via defer immediately after a successful Acquire.
type Guard struct {
	file *os.File
}

// Release unlocks and closes the lock file. Safe to call on a nil Guard.
func (g *Guard) Release() error {
	if g == nil || g.file == nil {
		return nil
	}
	err := unix.Flock(int(g.file.Fd()), unix.LOCK_UN)
	closeErr := g.file.Close()
	g.file = nil
	if err != nil {
		return fmt.Errorf("filelock: release: %w", err)
	}
	return closeErr
}

// Acquire acquires the exclusive lock at path, polling with exponential
// backoff (10ms to 500ms) until ctx is done, at which point it fails with
// ErrLockTimeout. If an existing lock file names a pid that is no longer
// running and is older than StaleAfter, it is forcibly reclaimed.
func Acquire(ctx context.Context, path string) (*Guard, error) {
	backoff := 10 * time.Millisecond
	const maxBackoff = 500 * time.Millisecond

	for {
		guard, err := tryAcquire(path)
		if err == nil {
			return guard, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EAGAIN) {
			return nil, err
		}

		if stale, staleErr := isStale(path); staleErr == nil && stale {
			if guard, err := forceReclaim(path); err == nil {
				return guard, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ErrLockTimeout
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func tryAcquire(path string) (*Guard, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("filelock: open %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.ENOSYS) {
			return nil, fmt.Errorf("%w: %s", ErrLockFilesystemUnsupported, path)
		}
		return nil, err
	}
	if err := writeOwner(f); err != nil {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		return nil, err
	}
	return &Guard{file: f}, nil
}

func writeOwner(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	line := fmt.Sprintf("%d %d\n", os.Getpid(), time.Now().Unix())
	if _, err := f.WriteString(line); err != nil {
		return err
	}
	return f.Sync()
}

// isStale reads the lock file's recorded pid and start time, and reports
// whether that pid is no longer running and the recorded age exceeds
// StaleAfter.
func isStale(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if time.Since(info.ModTime()) < StaleAfter {
		return false, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return false, nil
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return false, nil
	}
	return !processRunning(pid), nil
}

// forceReclaim reopens and locks the file after a stale owner was detected.
// The flock call itself is what adjudicates the race against a concurrent
// reclaimer: only one of them will win LOCK_EX|LOCK_NB.
func forceReclaim(path string) (*Guard, error) {
	return tryAcquire(path)
}

func processRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	return unix.Kill(pid, 0) == nil
}
