// Package jsonstore implements the atomic JSON document store that every
// higher layer reads and writes through: no component opens a JSON file
// directly.
package jsonstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/moby/sys/atomicwriter"
)

// DefaultLockDeadline is the bounded retry window every tool operation's
// lock acquisition uses unless a caller needs a different deadline.
const DefaultLockDeadline = 10 * time.Second

// LockMode selects shared (read) or exclusive (write) advisory locking.
type LockMode int

const (
	LockShared LockMode = iota
	LockExclusive
)

// Corrupt wraps a JSON decode failure with the offending path, matching the
// loader's Corrupt{path} error kind.
type Corrupt struct {
	Path string
	Err  error
}

func (e *Corrupt) Error() string {
	return fmt.Sprintf("corrupt document %s: %v", e.Path, e.Err)
}

func (e *Corrupt) Unwrap() error { return e.Err }

// ReadJSON decodes path into v. A missing file is not an error: v is left
// at its zero value (callers that need "empty object" semantics should
// pass a pointer to an already-zeroed struct or map).
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("jsonstore: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &Corrupt{Path: path, Err: err}
	}
	return nil
}

// WriteJSON marshals v and commits it to path via write-temp-fsync-rename.
// The rename is the commit point: readers observe either the previous
// document or the new one, never a partial file.
func WriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("jsonstore: mkdir %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonstore: marshal %s: %w", path, err)
	}
	data = append(data, '\n')
	if err := atomicwriter.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("jsonstore: atomic write %s: %w", path, err)
	}
	return nil
}

// WithLock acquires a per-file advisory lock (shared for LockShared,
// exclusive for LockExclusive) on a sidecar ".lock" file next to path,
// runs fn, and releases the lock on every exit path, including panics
// propagated from fn.
func WithLock(path string, mode LockMode, fn func() error) error {
	lockPath := path + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return fmt.Errorf("jsonstore: mkdir for lock %s: %w", lockPath, err)
	}
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("jsonstore: open lock %s: %w", lockPath, err)
	}
	defer f.Close()

	how := syscall.LOCK_SH
	if mode == LockExclusive {
		how = syscall.LOCK_EX
	}
	if err := syscall.Flock(int(f.Fd()), how); err != nil {
		return fmt.Errorf("jsonstore: flock %s: %w", lockPath, err)
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN)

	return fn()
}

// WithLockRetry behaves like WithLock but retries with exponential backoff
// until deadline elapses, surfacing ErrConflict on expiry instead of
// blocking forever, per the runtime's bounded-retry concurrency model.
func WithLockRetry(path string, mode LockMode, deadline time.Duration, fn func() error) error {
	lockPath := path + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return fmt.Errorf("jsonstore: mkdir for lock %s: %w", lockPath, err)
	}
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("jsonstore: open lock %s: %w", lockPath, err)
	}
	defer f.Close()

	how := syscall.LOCK_SH | syscall.LOCK_NB
	if mode == LockExclusive {
		how = syscall.LOCK_EX | syscall.LOCK_NB
	}

	start := time.Now()
	backoff := 5 * time.Millisecond
	for {
		err := syscall.Flock(int(f.Fd()), how)
		if err == nil {
			break
		}
		if time.Since(start) >= deadline {
			return ErrConflict
		}
		time.Sleep(backoff)
		backoff *= 2
		if backoff > 200*time.Millisecond {
			backoff = 200 * time.Millisecond
		}
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN)

	return fn()
}

// ErrConflict is returned when a lock could not be acquired before the
// caller's deadline elapsed.
var ErrConflict = fmt.Errorf("jsonstore: lock conflict")
