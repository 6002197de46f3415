// ABOUTME: Runs exec requests against the registry and frames their output for the server.
// ABOUTME: Tracks running execs for abort, sends exec heartbeats, and always ends with a terminal frame.

package exec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/2389/coven-link/internal/heartbeat"
	"github.com/2389/coven-link/internal/metrics"
	"github.com/2389/coven-link/internal/stream"
	"github.com/2389/coven-link/internal/wire"
)

// DefaultHeartbeatInterval is how often a running exec reports that it is alive.
const DefaultHeartbeatInterval = 3 * time.Second

// ManagerOptions configures a Manager. Zero values use defaults.
type ManagerOptions struct {
	HeartbeatInterval time.Duration
	Logger            *slog.Logger
	Metrics           *metrics.Metrics
}

// Manager dispatches exec requests to registered executors.
type Manager struct {
	registry          *Registry
	heartbeatInterval time.Duration
	logger            *slog.Logger
	metrics           *metrics.Metrics

	mu      sync.Mutex
	running map[uint32]context.CancelFunc
}

// NewManager creates a Manager over reg.
func NewManager(reg *Registry, opts ManagerOptions) *Manager {
	if reg == nil {
		reg = NewRegistry()
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		registry:          reg,
		heartbeatInterval: opts.HeartbeatInterval,
		logger:            opts.Logger.With("component", "exec"),
		metrics:           opts.Metrics,
		running:           make(map[uint32]context.CancelFunc),
	}
}

// HandleControl applies a control message. It reports whether a running exec was aborted.
func (m *Manager) HandleControl(msg *wire.ExecServerControlMessage) bool {
	abort, ok := msg.Control.(*wire.ExecAbort)
	if !ok {
		m.logger.Debug("ignoring exec control message", "case", msg.Control)
		return false
	}

	m.mu.Lock()
	cancel, found := m.running[abort.ID]
	m.mu.Unlock()
	if !found {
		m.logger.Debug("abort for exec that is not running", "id", abort.ID)
		return false
	}
	m.logger.Info("aborting exec", "id", abort.ID)
	cancel()
	return true
}

// Running reports whether an exec with id is in flight.
func (m *Manager) Running(id uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.running[id]
	return ok
}

// NoHandlerOutput is the frame sequence sent for a request nobody can serve.
func NoHandlerOutput(msg *wire.ExecServerMessage) []wire.ExecOutput {
	return []wire.ExecOutput{
		wire.NewThrow(msg.ID, "No handler found for server message of type "+msg.Case, ""),
		wire.NewStreamClose(msg.ID),
	}
}

// Handle runs one exec request and writes its frames to out: zero or more
// results, then either streamClose, or throw followed by streamClose.
// The exec keeps running if ctx is cancelled; only an abort stops it.
// The returned error is a failure to write to out.
func (m *Manager) Handle(ctx context.Context, msg *wire.ExecServerMessage, out stream.Writer[wire.ExecOutput]) error {
	return m.Start(ctx, msg, out)()
}

// Start registers msg as running, so an abort for its id takes effect from
// this point on, and returns the function that executes it.
func (m *Manager) Start(ctx context.Context, msg *wire.ExecServerMessage, out stream.Writer[wire.ExecOutput]) func() error {
	e, err := m.registry.lookup(msg.Case)
	if errors.Is(err, ErrNoHandler) {
		return func() error {
			m.logger.Warn("no exec handler", "id", msg.ID, "case", msg.Case)
			for _, frame := range NoHandlerOutput(msg) {
				if err := out.Write(ctx, frame); err != nil {
					return err
				}
			}
			return nil
		}
	}

	execCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.track(msg.ID, cancel)
	return func() error {
		defer cancel()
		defer m.untrack(msg.ID)
		return m.run(execCtx, e, msg, out)
	}
}

func (m *Manager) run(execCtx context.Context, e entry, msg *wire.ExecServerMessage, out stream.Writer[wire.ExecOutput]) error {
	beat := heartbeat.Start(m.heartbeatInterval, func() error {
		return out.Write(execCtx, wire.NewExecHeartbeat(msg.ID))
	})
	defer beat.Stop()

	logger := m.logger.With("id", msg.ID, "case", msg.Case)
	logger.Debug("exec started")

	spanCtx, span := metrics.StartSpan(execCtx, "exec."+e.resource.ArgsCase,
		attribute.Int64("exec.id", int64(msg.ID)),
		attribute.String("exec.exec_id", msg.ExecID),
		attribute.Bool("exec.streaming", e.resource.Streaming),
	)
	finished := m.metrics.ExecStarted(e.resource.ArgsCase)

	var writeErr error
	var runErr error
	if err := execCtx.Err(); err != nil {
		// aborted before the executor got to run
		runErr = err
	} else {
		runErr = safeRun(func() error {
			return e.handle(spanCtx, msg, func(res *wire.ExecClientMessage) error {
				if err := out.Write(execCtx, res); err != nil {
					writeErr = err
					return err
				}
				return nil
			})
		})
	}

	metrics.EndSpan(span, runErr)
	finished(runErr)
	beat.Stop()

	if writeErr != nil {
		logger.Debug("exec output closed", "error", writeErr)
		return writeErr
	}

	if runErr != nil {
		logger.Warn("exec failed", "error", runErr)
		var stack string
		var pe *panicError
		if errors.As(runErr, &pe) {
			stack = string(pe.stack)
		}
		if err := out.Write(execCtx, wire.NewThrow(msg.ID, runErr.Error(), stack)); err != nil {
			return err
		}
	} else {
		logger.Debug("exec finished")
	}
	return out.Write(execCtx, wire.NewStreamClose(msg.ID))
}

func (m *Manager) track(id uint32, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running[id] = cancel
}

func (m *Manager) untrack(id uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.running, id)
}

type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string { return fmt.Sprintf("exec panicked: %v", p.value) }

// safeRun turns a panicking executor into an ordinary exec failure.
func safeRun(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	return fn()
}
