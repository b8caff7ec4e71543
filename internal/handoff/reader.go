package handoff

import (
	"sync"
	"time"
)

// Reader gives one consumer non-blocking access to a Latest.
//
// Get never waits longer than the read bound. When the lock is busy it
// returns the snapshot from the previous successful read, which is empty
// before the first publish. A Reader may be shared, but each consumer loop
// normally owns its own.
type Reader[T any] struct {
	src  *Latest[T]
	wait time.Duration

	mu     sync.Mutex
	last   Snapshot[T]
	misses uint64
}

// NewReader creates a reader over l. A non-positive wait uses DefaultReadWait.
func (l *Latest[T]) NewReader(wait time.Duration) *Reader[T] {
	if wait <= 0 {
		wait = DefaultReadWait
	}
	return &Reader[T]{
		src:  l,
		wait: wait,
		last: Snapshot[T]{Items: []T{}},
	}
}

// Get returns the latest published list.
//
// The returned slice belongs to the reader and is replaced, not modified, by
// later calls. Callers must not modify it.
func (r *Reader[T]) Get() []T {
	return r.Snapshot().Items
}

// Snapshot is Get plus the generation and publish time.
func (r *Reader[T]) Snapshot() Snapshot[T] {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, changed, ok := r.src.loadSince(r.last.Generation, r.wait)
	switch {
	case !ok:
		r.misses++
	case changed:
		r.last = snap
	}
	return r.last
}

// Misses returns how many reads fell back to the previous snapshot.
func (r *Reader[T]) Misses() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.misses
}
