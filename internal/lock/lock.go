// Package lock provides the per-post mutual exclusion used by overlapping
// sweeps.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockLost is returned by Lease.Extend when the lock expired and may now
// belong to someone else.
var ErrLockLost = errors.New("lock lost")

// Locker acquires a named lock for at most ttl. When ok is false the lock is
// held elsewhere and the lease is nil.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (lease Lease, ok bool, err error)
}

// Lease is a held lock. Extend pushes the expiry out to ttl from now and
// fails with ErrLockLost once the lock is no longer ours. Release is a no-op
// for a lost lock.
type Lease interface {
	Extend(ctx context.Context, ttl time.Duration) error
	Release()
}

type localEntry struct {
	token   uint64
	expires time.Time
}

// LocalLocker is an in-process Locker for single-worker deployments and tests.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]localEntry
	next uint64
	now  func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localEntry), now: time.Now}
}

func (l *LocalLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if entry, ok := l.held[key]; ok && now.Before(entry.expires) {
		return nil, false, nil
	}
	l.next++
	l.held[key] = localEntry{token: l.next, expires: now.Add(ttl)}

	return &localLease{l: l, key: key, token: l.next}, true, nil
}

type localLease struct {
	l     *LocalLocker
	key   string
	token uint64
}

func (ls *localLease) Extend(ctx context.Context, ttl time.Duration) error {
	ls.l.mu.Lock()
	defer ls.l.mu.Unlock()

	now := ls.l.now()
	entry, ok := ls.l.held[ls.key]
	if !ok || entry.token != ls.token || !now.Before(entry.expires) {
		return ErrLockLost
	}
	entry.expires = now.Add(ttl)
	ls.l.held[ls.key] = entry
	return nil
}

func (ls *localLease) Release() {
	ls.l.mu.Lock()
	defer ls.l.mu.Unlock()
	if entry, ok := ls.l.held[ls.key]; ok && entry.token == ls.token {
		delete(ls.l.held, ls.key)
	}
}
