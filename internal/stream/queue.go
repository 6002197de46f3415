// ABOUTME: Unbounded FIFO queue used to connect producers and consumers of a stream
// ABOUTME: Push never blocks; Recv blocks until an item arrives, the queue closes, or ctx ends

package stream

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrClosed is returned when writing to a queue or writer that has been closed.
var ErrClosed = errors.New("write channel closed")

// Source is a pull-based stream. Recv returns io.EOF after the last item.
type Source[T any] interface {
	Recv(ctx context.Context) (T, error)
}

// Writer is a push-based sink. Write returns ErrClosed once the sink is closed.
type Writer[T any] interface {
	Write(ctx context.Context, v T) error
}

// Queue is an unbounded multi-producer, multi-consumer FIFO.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	err    error
	notify chan struct{}
}

// NewQueue creates an empty open queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{notify: make(chan struct{})}
}

// Push appends v. It returns ErrClosed if the queue was closed.
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, v)
	q.wake()
	return nil
}

// Write implements Writer.
func (q *Queue[T]) Write(_ context.Context, v T) error {
	return q.Push(v)
}

// Close ends the queue. Items already pushed are still delivered.
func (q *Queue[T]) Close() {
	q.CloseWithError(nil)
}

// CloseWithError ends the queue; once drained, Recv returns err instead of io.EOF.
// Only the first close has any effect.
func (q *Queue[T]) CloseWithError(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.err = err
	q.wake()
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Recv returns the next item in push order.
func (q *Queue[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			q.items[0] = zero
			q.items = q.items[1:]
			q.mu.Unlock()
			return v, nil
		}
		if q.closed {
			err := q.err
			q.mu.Unlock()
			if err == nil {
				err = io.EOF
			}
			return zero, err
		}
		wait := q.notify
		q.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// wake releases every waiting Recv. Callers must hold q.mu.
func (q *Queue[T]) wake() {
	close(q.notify)
	q.notify = make(chan struct{})
}

// Collect drains src until io.EOF and returns everything received.
func Collect[T any](ctx context.Context, src Source[T]) ([]T, error) {
	var out []T
	for {
		v, err := src.Recv(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}
