// ABOUTME: Writer adapters that transform values before forwarding them to another writer
// ABOUTME: MapWriter owns a closed flag so one producer can be cut off without closing the sink

package stream

import (
	"context"
	"sync"
)

// WriterFunc adapts a function to the Writer interface.
type WriterFunc[T any] func(ctx context.Context, v T) error

// Write implements Writer.
func (f WriterFunc[T]) Write(ctx context.Context, v T) error { return f(ctx, v) }

// MapWriter converts each value with fn and writes the result to the inner writer.
type MapWriter[In, Out any] struct {
	inner Writer[Out]
	fn    func(In) Out

	mu     sync.RWMutex
	closed bool
}

// NewMapWriter wraps inner with the conversion fn.
func NewMapWriter[In, Out any](inner Writer[Out], fn func(In) Out) *MapWriter[In, Out] {
	return &MapWriter[In, Out]{inner: inner, fn: fn}
}

// Write converts v and forwards it. It returns ErrClosed after Close.
func (w *MapWriter[In, Out]) Write(ctx context.Context, v In) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}
	return w.inner.Write(ctx, w.fn(v))
}

// Close stops forwarding. The inner writer is left open.
func (w *MapWriter[In, Out]) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}
