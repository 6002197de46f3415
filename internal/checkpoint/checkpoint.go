// ABOUTME: Consumes the checkpoint sub-stream and hands every checkpoint to a Handler.
// ABOUTME: Checkpoints are persisted one at a time in arrival order; none are skipped.

package checkpoint

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/2389/coven-link/internal/metrics"
	"github.com/2389/coven-link/internal/stream"
	"github.com/2389/coven-link/internal/wire"
)

// Handler persists checkpoints. HandleCheckpoint must not return until the
// checkpoint is durable; LatestCheckpoint returns nil when none is held.
type Handler interface {
	HandleCheckpoint(ctx context.Context, state *wire.ConversationState) error
	LatestCheckpoint() *wire.ConversationState
}

// Controller drives a Handler from the checkpoint sub-stream.
type Controller struct {
	handler Handler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewController creates a Controller. logger and m may be nil.
func NewController(h Handler, logger *slog.Logger, m *metrics.Metrics) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{handler: h, logger: logger.With("component", "checkpoint"), metrics: m}
}

// Run handles every checkpoint from in until it ends. A failing checkpoint
// does not stop the ones after it; the first failure is returned at the end.
func (c *Controller) Run(ctx context.Context, in stream.Source[*wire.ConversationState]) error {
	var firstErr error
	for {
		state, err := in.Recv(ctx)
		if errors.Is(err, io.EOF) {
			return firstErr
		}
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return firstErr
		}

		err = c.handler.HandleCheckpoint(ctx, state)
		c.metrics.RecordCheckpoint(err)
		if err != nil {
			c.logger.Error("handling checkpoint", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
}

// Tracker wraps a Handler and remembers whether it has persisted a checkpoint.
type Tracker struct {
	Handler
	received atomic.Bool
}

// NewTracker wraps h.
func NewTracker(h Handler) *Tracker {
	return &Tracker{Handler: h}
}

// HandleCheckpoint forwards to the wrapped handler and records success.
func (t *Tracker) HandleCheckpoint(ctx context.Context, state *wire.ConversationState) error {
	if err := t.Handler.HandleCheckpoint(ctx, state); err != nil {
		return err
	}
	t.received.Store(true)
	return nil
}

// Received reports whether a checkpoint was persisted through this tracker.
func (t *Tracker) Received() bool {
	return t.received.Load()
}

// Memory is a Handler that only keeps the latest checkpoint in memory.
type Memory struct {
	latest atomic.Pointer[wire.ConversationState]
}

// HandleCheckpoint replaces the held checkpoint.
func (m *Memory) HandleCheckpoint(_ context.Context, state *wire.ConversationState) error {
	m.latest.Store(state)
	return nil
}

// LatestCheckpoint returns the held checkpoint, or nil.
func (m *Memory) LatestCheckpoint() *wire.ConversationState {
	return m.latest.Load()
}
