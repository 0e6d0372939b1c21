// Package queue provides the bounded FIFOs and the per-pipe credit table
// shared by the ACI session. Nothing here blocks or locks: a queue is owned by
// exactly one thread of control.
package queue

// Queue is a fixed-capacity FIFO ring
type Queue[T any] struct {
	buf   []T
	head  int
	count int
}

// New creates a queue holding at most capacity entries
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{buf: make([]T, capacity)}
}

// Enqueue appends v, or returns ErrQueueFull without touching the queue
func (q *Queue[T]) Enqueue(v T) error {
	if q.count == len(q.buf) {
		return ErrQueueFull
	}
	q.buf[(q.head+q.count)%len(q.buf)] = v
	q.count++
	return nil
}

// Dequeue removes and returns the oldest entry
func (q *Queue[T]) Dequeue() (T, bool) {
	var zero T
	if q.count == 0 {
		return zero, false
	}
	v := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return v, true
}

// Peek returns the oldest entry without removing it
func (q *Queue[T]) Peek() (T, bool) {
	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.buf[q.head], true
}

// Len returns the number of queued entries
func (q *Queue[T]) Len() int { return q.count }

// Cap returns the fixed capacity
func (q *Queue[T]) Cap() int { return len(q.buf) }

func (q *Queue[T]) IsEmpty() bool { return q.count == 0 }
func (q *Queue[T]) IsFull() bool  { return q.count == len(q.buf) }

// Flush drops every entry
func (q *Queue[T]) Flush() {
	var zero T
	for i := range q.buf {
		q.buf[i] = zero
	}
	q.head = 0
	q.count = 0
}

// Filter keeps the entries for which keep returns true and returns the rest,
// both in their original order.
func (q *Queue[T]) Filter(keep func(T) bool) []T {
	var removed []T
	n := q.count
	for i := 0; i < n; i++ {
		v, _ := q.Dequeue()
		if keep(v) {
			q.buf[(q.head+q.count)%len(q.buf)] = v
			q.count++
		} else {
			removed = append(removed, v)
		}
	}
	return removed
}
