// Package ringbuf provides a fixed-capacity FIFO ring that evicts its oldest
// element when full. It is not safe for concurrent use; callers hold their
// own lock.
package ringbuf

// Ring is a bounded FIFO of T.
type Ring[T any] struct {
	buf     []T
	head    int // index of the oldest element
	size    int
	dropped uint64
}

// New creates a ring holding at most capacity elements. Minimum capacity is 1.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v. When the ring is full the oldest element is overwritten
// and returned with evicted=true.
func (r *Ring[T]) Push(v T) (old T, evicted bool) {
	if r.size == len(r.buf) {
		old = r.buf[r.head]
		r.buf[r.head] = v
		r.head = (r.head + 1) % len(r.buf)
		r.dropped++
		return old, true
	}
	r.buf[(r.head+r.size)%len(r.buf)] = v
	r.size++
	return old, false
}

// Pop removes and returns the oldest element.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}
	v := r.buf[r.head]
	r.buf[r.head] = zero
	r.head = (r.head + 1) % len(r.buf)
	r.size--
	return v, true
}

// Drain empties the ring and returns its elements oldest first.
func (r *Ring[T]) Drain() []T {
	out := make([]T, 0, r.size)
	for {
		v, ok := r.Pop()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

// Len returns the number of buffered elements.
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Dropped returns how many elements were evicted by Push since creation.
func (r *Ring[T]) Dropped() uint64 { return r.dropped }
