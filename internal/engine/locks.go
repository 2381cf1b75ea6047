package engine

import (
	"context"
	"sync"
)

// LockRegistry serializes unit transactions that target the same base
// name. Distinct base names never contend. The registry holds no global
// lock while a unit lock is held, so a stuck transaction blocks only
// conflicting requests for the same base name.
type LockRegistry struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	ch chan struct{} // capacity 1: holding the token means holding the lock
	// refs counts the holder plus all waiters so the entry can be dropped
	// once nobody references it.
	refs int
}

func NewLockRegistry() *LockRegistry {
	return &LockRegistry{entries: make(map[string]*lockEntry)}
}

// Acquire blocks until the lock for baseName is free or ctx is canceled.
// Canceling ctx abandons only the wait; it never interrupts a holder.
// No timeout is imposed. Re-entrant acquisition by the same transaction
// is a programming error and deadlocks the calling goroutine.
func (r *LockRegistry) Acquire(ctx context.Context, baseName string) (*UnitGuard, error) {
	r.mu.Lock()
	e, ok := r.entries[baseName]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		r.entries[baseName] = e
	}
	e.refs++
	r.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return &UnitGuard{registry: r, baseName: baseName, entry: e}, nil
	case <-ctx.Done():
		r.drop(baseName, e)
		return nil, ctx.Err()
	}
}

func (r *LockRegistry) drop(baseName string, e *lockEntry) {
	r.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(r.entries, baseName)
	}
	r.mu.Unlock()
}

// UnitGuard represents a held unit lock. Release is idempotent and must
// be called on every exit path, typically via defer.
type UnitGuard struct {
	registry *LockRegistry
	baseName string
	entry    *lockEntry
	once     sync.Once
}

// Release frees the lock and removes the registry entry once no other
// transaction references it.
func (g *UnitGuard) Release() {
	g.once.Do(func() {
		<-g.entry.ch
		g.registry.drop(g.baseName, g.entry)
	})
}
