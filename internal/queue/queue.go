// Package queue provides an unbounded, order-preserving FIFO that hands
// values from producer goroutines to a consumer that only polls.
//
// Push never blocks and TryPop never blocks. Consumers that need to sleep
// until work arrives select on Ready, which holds at most one pending signal;
// a consumer woken by Ready must drain with TryPop until it reports empty.
package queue

import "sync"

type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	closed bool

	ready chan struct{}
	done  chan struct{}
}

func New[T any]() *Queue[T] {
	return &Queue[T]{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Push appends v. It reports false if the queue has been closed, in which
// case v is dropped.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// TryPop removes the oldest value. Returns false if the queue is empty.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.head == len(q.items) {
		return zero, false
	}
	v := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	// Compact once the consumed prefix dominates the backing array.
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return v, true
}

// Len returns the number of values waiting.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Ready fires after a Push. Signals coalesce.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.ready
}

// Close stops further pushes. Values already queued remain poppable.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

// Done is closed once Close has been called.
func (q *Queue[T]) Done() <-chan struct{} {
	return q.done
}
