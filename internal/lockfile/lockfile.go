// Package lockfile keeps a second pfortnerd off the same runtime directory.
// The lock is an exclusively created file holding the owner's pid and
// acquisition time; a leftover file whose owner is gone, or that is over an
// hour old, is treated as stale and reclaimed.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrLocked means a live owner already holds the lock.
var ErrLocked = errors.New("lockfile: held by a running process")

// staleAge is how old a lock may get before it is reclaimed even when its
// owner pid still resolves (pid reuse after a crash).
const staleAge = time.Hour

// Lock is a filesystem lock owned by at most one process.
type Lock struct {
	path   string
	file   *os.File
	pid    int
	locked bool
}

// New returns an unacquired lock at path.
func New(path string) *Lock {
	return &Lock{path: path}
}

// TryAcquire claims the lock or fails with ErrLocked. A stale lock left by a
// dead or crashed instance is removed and re-claimed in the same call.
func (l *Lock) TryAcquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("lockfile: create directory: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err == nil {
		return l.claim(file)
	}
	if !os.IsExist(err) {
		return fmt.Errorf("lockfile: create: %w", err)
	}

	stale, reason := l.stale()
	if !stale {
		return fmt.Errorf("%w: %s", ErrLocked, reason)
	}
	if err := os.Remove(l.path); err != nil {
		return fmt.Errorf("lockfile: remove stale lock (%s): %w", reason, err)
	}
	file, err = os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		// Lost the race against another starting instance.
		return fmt.Errorf("%w: reclaimed by another process", ErrLocked)
	}
	return l.claim(file)
}

// claim records ownership in the freshly created file.
func (l *Lock) claim(file *os.File) error {
	l.file = file
	l.pid = os.Getpid()
	l.locked = true

	content := fmt.Sprintf("%d\n%s\n", l.pid, time.Now().Format(time.RFC3339))
	if _, err := l.file.WriteString(content); err != nil {
		l.Release()
		return fmt.Errorf("lockfile: write owner: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		l.Release()
		return fmt.Errorf("lockfile: sync: %w", err)
	}
	return nil
}

// stale decides whether the existing lock may be reclaimed, returning a
// human-readable reason either way.
func (l *Lock) stale() (bool, string) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return true, "unreadable lock"
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return true, "malformed lock"
	}

	if running, reason := isProcessRunning(pid); !running {
		return true, reason
	}

	if len(lines) >= 2 {
		when, err := time.Parse(time.RFC3339, strings.TrimSpace(lines[1]))
		if err == nil && time.Since(when) > staleAge {
			return true, fmt.Sprintf("older than %s", staleAge)
		}
	}

	return false, fmt.Sprintf("pid %d is running", pid)
}

// Release drops the lock and removes the file. Releasing an unheld lock is a
// no-op.
func (l *Lock) Release() error {
	if !l.locked {
		return nil
	}

	var err error
	if l.file != nil {
		err = l.file.Close()
		l.file = nil
	}
	if removeErr := os.Remove(l.path); removeErr != nil && !os.IsNotExist(removeErr) {
		if err != nil {
			err = fmt.Errorf("%v; lockfile: remove: %w", err, removeErr)
		} else {
			err = fmt.Errorf("lockfile: remove: %w", removeErr)
		}
	}

	l.locked = false
	return err
}

// PID returns the pid that acquired the lock, 0 before acquisition.
func (l *Lock) PID() int {
	return l.pid
}

// Locked reports whether this process holds the lock.
func (l *Lock) Locked() bool {
	return l.locked
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}
