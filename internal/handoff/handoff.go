// Package handoff moves the latest fetch result from the producer to any
// number of consumers without letting either side stall the other.
//
// The producer replaces the published list wholesale with Publish. Consumers
// read through a Reader, which waits only briefly for the lock and otherwise
// keeps showing what it saw last. Values are copied on the way in and out, so
// a reader never observes a list while it is being replaced.
package handoff

import (
	"sync/atomic"
	"time"
)

const (
	// DefaultPublishWait bounds how long Publish waits for the lock.
	DefaultPublishWait = 200 * time.Millisecond

	// DefaultReadWait bounds how long a Reader waits for the lock.
	DefaultReadWait = 5 * time.Millisecond
)

// Snapshot is one published value.
type Snapshot[T any] struct {
	Items       []T
	Generation  uint64 // 0 before the first publish
	PublishedAt time.Time
}

// Latest holds the most recently published list.
//
// The lock is a one-slot channel rather than a sync.Mutex so that both sides
// can give up after a bounded wait.
type Latest[T any] struct {
	lock chan struct{}

	items       []T
	generation  uint64
	publishedAt time.Time

	dropped atomic.Uint64
}

// New creates an empty Latest.
func New[T any]() *Latest[T] {
	return &Latest[T]{lock: make(chan struct{}, 1)}
}

func (l *Latest[T]) acquire(wait time.Duration) bool {
	select {
	case l.lock <- struct{}{}:
		return true
	default:
	}
	if wait <= 0 {
		return false
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case l.lock <- struct{}{}:
		return true
	case <-timer.C:
		return false
	}
}

func (l *Latest[T]) release() {
	<-l.lock
}

// Publish replaces the published list with a copy of items. It returns false,
// leaving the previous value in place, if the lock was not acquired within wait.
func (l *Latest[T]) Publish(items []T, wait time.Duration) bool {
	next := clone(items)

	if !l.acquire(wait) {
		l.dropped.Add(1)
		return false
	}
	defer l.release()

	l.items = next
	l.generation++
	l.publishedAt = time.Now()
	return true
}

// Load returns a copy of the current snapshot, or ok=false if the lock was
// not acquired within wait.
func (l *Latest[T]) Load(wait time.Duration) (Snapshot[T], bool) {
	snap, _, ok := l.loadSince(^uint64(0), wait)
	return snap, ok
}

// loadSince copies the snapshot only when its generation differs from gen.
// changed reports whether a copy was made.
func (l *Latest[T]) loadSince(gen uint64, wait time.Duration) (snap Snapshot[T], changed, ok bool) {
	if !l.acquire(wait) {
		return Snapshot[T]{}, false, false
	}
	defer l.release()

	if l.generation == gen {
		return Snapshot[T]{Generation: gen}, false, true
	}
	return Snapshot[T]{
		Items:       clone(l.items),
		Generation:  l.generation,
		PublishedAt: l.publishedAt,
	}, true, true
}

// Generation returns the number of successful publishes, or false if the
// lock was not acquired within wait.
func (l *Latest[T]) Generation(wait time.Duration) (uint64, bool) {
	if !l.acquire(wait) {
		return 0, false
	}
	defer l.release()
	return l.generation, true
}

// Dropped returns the number of publishes abandoned on lock timeout.
func (l *Latest[T]) Dropped() uint64 {
	return l.dropped.Load()
}

func clone[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}
