// ABOUTME: Consumes the interaction sub-stream: updates go through one ordered pipeline,
// ABOUTME: queries are answered concurrently and their responses written back to the server.

package interaction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/2389/coven-link/internal/split"
	"github.com/2389/coven-link/internal/stream"
	"github.com/2389/coven-link/internal/wire"
)

// Listener receives updates for the running turn and answers server queries.
type Listener interface {
	SendUpdate(ctx context.Context, update wire.UpdateEvent) error
	Query(ctx context.Context, q Query) (Response, error)
}

// Controller routes interaction messages to a Listener.
type Controller struct {
	listener Listener
	out      stream.Writer[*wire.InteractionResponse]
	logger   *slog.Logger
}

// NewController creates a Controller that writes query responses to out.
func NewController(listener Listener, out stream.Writer[*wire.InteractionResponse], logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{listener: listener, out: out, logger: logger.With("component", "interaction")}
}

// Run consumes in until it ends. Updates are delivered in arrival order; a
// failed update is remembered and does not stop later ones. After in ends the
// pipeline is drained and the first update failure is returned. Queries are
// not awaited.
func (c *Controller) Run(ctx context.Context, in stream.Source[split.InteractionMessage]) error {
	updates := stream.NewQueue[*wire.InteractionUpdate]()
	pipelineDone := make(chan error, 1)
	go func() { pipelineDone <- c.pipeline(ctx, updates) }()

	var recvErr error
	for {
		msg, err := in.Recv(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			recvErr = err
			break
		}

		switch {
		case msg.Update != nil:
			_ = updates.Push(msg.Update)
		case msg.Query != nil:
			go c.answer(ctx, msg.Query)
		}
	}
	updates.Close()

	if err := <-pipelineDone; err != nil {
		return err
	}
	return recvErr
}

func (c *Controller) pipeline(ctx context.Context, updates *stream.Queue[*wire.InteractionUpdate]) error {
	var firstErr error
	for {
		// The pipeline drains everything queued even if ctx ends.
		u, err := updates.Recv(context.WithoutCancel(ctx))
		if err != nil {
			return firstErr
		}
		event, ok := ConvertUpdate(u)
		if !ok {
			continue
		}
		if err := c.listener.SendUpdate(ctx, event); err != nil {
			c.logger.Error("handling interaction update", "case", event.WireCase(), "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("interaction update %s: %w", event.WireCase(), err)
			}
		}
	}
}

func (c *Controller) answer(ctx context.Context, wq *wire.InteractionQuery) {
	logger := c.logger.With("query_id", wq.ID, "case", wq.Case)

	q, err := ConvertQuery(wq)
	if err != nil {
		logger.Error("handling interaction query", "error", err)
		return
	}
	resp, err := c.listener.Query(ctx, q)
	if err != nil {
		logger.Error("handling interaction query", "error", err)
		return
	}
	msg, err := EncodeResponse(q, resp)
	if err != nil {
		logger.Error("handling interaction query", "error", err)
		return
	}
	if err := c.out.Write(ctx, msg); err != nil {
		logger.Error("handling interaction query", "error", err)
	}
}
