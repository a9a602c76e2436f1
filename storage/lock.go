// OS-level file locking for cross-process table coordination. Adapted
// from the teacher's document-store file lock: the same flock(2)/
// LockFileEx primitive, repurposed from "whole database file lock" to
// "one table's resource lock" — acquired for the duration of one
// operator call around the table's heap and index files, on top of the
// engine's in-process per-database mutex (spec §5/§7's concurrency
// model: serialize handlers, scope every file handle to one call).
package storage

import (
	"os"
	"sync"
)

// LockMode selects shared (read) or exclusive (write) locking.
type LockMode int

const (
	LockShared LockMode = iota
	LockExclusive
)

// TableLock coordinates OS-level file locks with safe handle teardown.
// mu serializes flock syscalls against Close so a concurrent close cannot
// invalidate the fd mid-syscall.
type TableLock struct {
	mu sync.Mutex
	f  *os.File
}

// OpenTableLock opens (creating if absent) the lock file at path and
// returns a TableLock bound to it.
func OpenTableLock(path string) (*TableLock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	return &TableLock{f: f}, nil
}

// Lock acquires a shared or exclusive flock, blocking until available.
func (l *TableLock) Lock(mode LockMode) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	return l.lock(mode)
}

// Unlock releases the flock.
func (l *TableLock) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	return l.unlock()
}

// Close releases the lock and closes the backing file. Safe to call
// after Unlock; further Lock/Unlock calls become no-ops.
func (l *TableLock) Close() error {
	l.mu.Lock()
	f := l.f
	l.f = nil
	l.mu.Unlock()
	if f == nil {
		return nil
	}
	return f.Close()
}
