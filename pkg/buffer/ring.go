package buffer

import (
	"sync"
)

// Ring is a fixed-capacity, insertion-ordered buffer that drops its oldest
// element when a new one would exceed the capacity.
type Ring[T any] struct {
	entries []T
	maxSize int
	mu      sync.Mutex
}

func NewRing[T any](maxSize int) *Ring[T] {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Ring[T]{
		entries: make([]T, 0, maxSize),
		maxSize: maxSize,
	}
}

// Add appends entry and reports how many entries were evicted to make room.
func (b *Ring[T]) Add(entry T) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	evicted := 0
	for len(b.entries) >= b.maxSize {
		copy(b.entries, b.entries[1:])
		var zero T
		b.entries[len(b.entries)-1] = zero
		b.entries = b.entries[:len(b.entries)-1]
		evicted++
	}

	b.entries = append(b.entries, entry)
	return evicted
}

// Snapshot returns a copy of the entries, oldest first.
func (b *Ring[T]) Snapshot() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]T, len(b.entries))
	copy(out, b.entries)
	return out
}

// Last returns a copy of the n most recent entries, oldest first.
func (b *Ring[T]) Last(n int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n <= 0 || n >= len(b.entries) {
		n = len(b.entries)
	}
	out := make([]T, n)
	copy(out, b.entries[len(b.entries)-n:])
	return out
}

// Update applies fn to the most recent entry matching match. It reports
// whether an entry was found; evicted entries cannot be updated.
func (b *Ring[T]) Update(match func(T) bool, fn func(*T)) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := len(b.entries) - 1; i >= 0; i-- {
		if match(b.entries[i]) {
			fn(&b.entries[i])
			return true
		}
	}
	return false
}

func (b *Ring[T]) Flush() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) == 0 {
		return nil
	}

	entries := make([]T, len(b.entries))
	copy(entries, b.entries)
	b.entries = b.entries[:0]

	return entries
}

func (b *Ring[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.entries)
	b.entries = b.entries[:0]
}

// Resize changes the capacity, trimming the oldest entries if needed.
func (b *Ring[T]) Resize(maxSize int) int {
	if maxSize <= 0 {
		maxSize = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.maxSize = maxSize
	trimmed := 0
	if len(b.entries) > maxSize {
		trimmed = len(b.entries) - maxSize
		kept := make([]T, maxSize, maxSize)
		copy(kept, b.entries[trimmed:])
		b.entries = kept
	}
	return trimmed
}

func (b *Ring[T]) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *Ring[T]) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxSize
}

func (b *Ring[T]) IsFull() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries) >= b.maxSize
}
