// ABOUTME: Consumes the exec sub-stream and runs every request concurrently through the Manager.
// ABOUTME: Waits for in-flight execs when the sub-stream ends and classifies the first failure.

package exec

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/2389/coven-link/internal/split"
	"github.com/2389/coven-link/internal/stream"
	"github.com/2389/coven-link/internal/wire"
)

// Controller feeds exec requests to a Manager and writes the output to the server.
type Controller struct {
	manager *Manager
	out     stream.Writer[wire.ExecOutput]
	logger  *slog.Logger
}

// NewController creates a Controller writing to out.
func NewController(manager *Manager, out stream.Writer[wire.ExecOutput], logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{manager: manager, out: out, logger: logger.With("component", "exec_controller")}
}

// Run consumes in until it ends. Control messages are applied inline and
// requests are registered before the next message is read, so an abort that
// directly follows its request still finds it. Each request then runs on its
// own goroutine.
func (c *Controller) Run(ctx context.Context, in stream.Source[split.ExecMessage]) error {
	var g errgroup.Group

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
		case msg.Control != nil:
			c.manager.HandleControl(msg.Control)
		case msg.Request != nil:
			g.Go(c.manager.Start(ctx, msg.Request, c.out))
		}
	}

	if err := g.Wait(); err != nil {
		return Classify(err)
	}
	return Classify(recvErr)
}
