// ABOUTME: Connect client: runs one logical turn over a duplex stream with resume and retry
// ABOUTME: Each attempt wires the splitter, the four controllers and a heartbeat onto one outbox

package connect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/coven-link/internal/checkpoint"
	"github.com/2389/coven-link/internal/exec"
	"github.com/2389/coven-link/internal/heartbeat"
	"github.com/2389/coven-link/internal/interaction"
	"github.com/2389/coven-link/internal/kv"
	"github.com/2389/coven-link/internal/metrics"
	"github.com/2389/coven-link/internal/split"
	"github.com/2389/coven-link/internal/stream"
	"github.com/2389/coven-link/internal/wire"
)

// Defaults for Options.
const (
	DefaultHeartbeatInterval = 5 * time.Second
	DefaultMaxRetries        = 5
	DefaultBackoffBase       = time.Second
	DefaultBackoffMax        = 30 * time.Second
)

// ErrCancelled is returned when the run's context ends before it completes.
var ErrCancelled = errors.New("request cancelled")

// Transport opens one duplex Run stream.
type Transport interface {
	Run(ctx context.Context, outbound stream.Source[*wire.ClientMessage], headers map[string]string) (stream.Source[*wire.ServerMessage], error)
}

// ConnectionState is reported through RunOptions.OnConnectionState.
type ConnectionState string

const (
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
)

// Options configures a Client. Zero values use the defaults above.
type Options struct {
	HeartbeatInterval     time.Duration
	ExecHeartbeatInterval time.Duration
	MaxRetries            int
	BackoffBase           time.Duration
	BackoffMax            time.Duration
	Logger                *slog.Logger
	Metrics               *metrics.Metrics
}

// RunOptions are the per-run collaborators.
type RunOptions struct {
	Listener    interaction.Listener
	Resources   *exec.Registry
	Blobs       kv.BlobStore
	Checkpoints checkpoint.Handler
	Headers     map[string]string

	// StallDetector defaults to the metrics detector.
	StallDetector     split.StallDetector
	OnConnectionState func(ConnectionState)
}

// Client orchestrates attempts of a run against a Transport.
type Client struct {
	transport Transport
	opts      Options
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration)
}

// NewClient creates a Client over t.
func NewClient(t Transport, opts Options) *Client {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.ExecHeartbeatInterval <= 0 {
		opts.ExecHeartbeatInterval = exec.DefaultHeartbeatInterval
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultBackoffBase
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = DefaultBackoffMax
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		transport: t,
		opts:      opts,
		logger:    opts.Logger.With("component", "connect"),
		sleep:     sleepContext,
	}
}

// Run drives req to completion. Retriable failures are retried up to
// MaxRetries times with exponential backoff. When an attempt received a
// checkpoint before failing, the next attempt resumes from the latest
// checkpoint instead of resending the original action.
func (c *Client) Run(ctx context.Context, req *wire.RunRequest, ro RunOptions) error {
	if req == nil {
		return errors.New("run request is required")
	}
	if ro.Checkpoints == nil {
		ro.Checkpoints = &checkpoint.Memory{}
	}
	if ro.Blobs == nil {
		ro.Blobs = kv.NewMemoryBlobStore()
	}
	if ro.Listener == nil {
		ro.Listener = interaction.Discard{}
	}

	request := req
	attempt := 0
	for {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}

		tracker := checkpoint.NewTracker(ro.Checkpoints)
		logger := c.logger.With("attempt", attempt+1, "conversation_id", request.ConversationID)
		logger.Debug("starting attempt", "resume", request.Action.IsResume())

		err := c.attempt(ctx, request, ro, tracker, logger)
		if err == nil {
			c.opts.Metrics.RecordAttempt(metrics.OutcomeSuccess)
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}
		if !IsRetriable(err) || attempt >= c.opts.MaxRetries {
			c.opts.Metrics.RecordAttempt(metrics.OutcomeFatal)
			logger.Warn("run failed", "error", err, "retriable", IsRetriable(err))
			return err
		}

		c.opts.Metrics.RecordAttempt(metrics.OutcomeRetry)
		if ro.OnConnectionState != nil {
			ro.OnConnectionState(StateReconnecting)
		}
		if tracker.Received() {
			if latest := ro.Checkpoints.LatestCheckpoint(); latest != nil {
				request = resumeRequest(request, latest)
			}
		}

		attempt++
		delay := Backoff(attempt, c.opts.BackoffBase, c.opts.BackoffMax)
		logger.Info("connection lost, retrying", "error", err, "delay", delay, "resume", request.Action.IsResume())
		c.sleep(ctx, delay)
	}
}

// resumeRequest copies req with a resume action carrying state.
func resumeRequest(req *wire.RunRequest, state *wire.ConversationState) *wire.RunRequest {
	next := *req
	next.ConversationState = state
	next.Action = &wire.ConversationAction{Action: &wire.ResumeAction{}}
	return &next
}

// attempt runs one stream from open to close.
func (c *Client) attempt(ctx context.Context, req *wire.RunRequest, ro RunOptions, tracker *checkpoint.Tracker, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outbox := stream.NewQueue[*wire.ClientMessage]()
	var beat *heartbeat.Ticker
	defer func() {
		beat.Stop()
		outbox.Close()
	}()

	if err := outbox.Push(&wire.ClientMessage{Payload: req}); err != nil {
		return err
	}

	inbound, err := c.transport.Run(ctx, outbox, ro.Headers)
	if err != nil {
		return err
	}

	detector := ro.StallDetector
	if detector == nil {
		detector = c.opts.Metrics.Detector()
	}
	var onFirst func()
	if ro.OnConnectionState != nil {
		onFirst = func() { ro.OnConnectionState(StateConnected) }
	}
	channels := split.Split(ctx, inbound, detector, onFirst, logger)

	beat = heartbeat.Start(c.opts.HeartbeatInterval, func() error {
		return outbox.Push(&wire.ClientMessage{Payload: &wire.ClientHeartbeat{}})
	})

	execOut := stream.NewMapWriter(stream.Writer[*wire.ClientMessage](outbox), func(o wire.ExecOutput) *wire.ClientMessage {
		return &wire.ClientMessage{Payload: o}
	})
	kvOut := stream.NewMapWriter(stream.Writer[*wire.ClientMessage](outbox), func(m *wire.KvClientMessage) *wire.ClientMessage {
		return &wire.ClientMessage{Payload: m}
	})
	responses := stream.NewMapWriter(stream.Writer[*wire.ClientMessage](outbox), func(r *wire.InteractionResponse) *wire.ClientMessage {
		return &wire.ClientMessage{Payload: r}
	})

	manager := exec.NewManager(ro.Resources, exec.ManagerOptions{
		HeartbeatInterval: c.opts.ExecHeartbeatInterval,
		Logger:            logger,
		Metrics:           c.opts.Metrics,
	})

	tasks := []func() error{
		func() error {
			<-channels.Done()
			beat.Stop()
			execOut.Close()
			return channels.Err()
		},
		func() error {
			return exec.NewController(manager, execOut, logger).Run(ctx, channels.Exec)
		},
		func() error {
			return interaction.NewController(ro.Listener, responses, logger).Run(ctx, channels.Interaction)
		},
		func() error {
			return checkpoint.NewController(tracker, logger, c.opts.Metrics).Run(ctx, channels.Checkpoint)
		},
		func() error {
			return kv.NewManager(ro.Blobs, kvOut, logger, c.opts.Metrics).Run(ctx, channels.Kv)
		},
	}

	// Every task runs to completion. The reported failure is the first in
	// task order, so the inbound stream's own error outranks a write that
	// failed because the stream went away.
	errs := make([]error, len(tasks))
	var g errgroup.Group
	for i, task := range tasks {
		g.Go(func() error {
			errs[i] = task()
			return nil
		})
	}
	_ = g.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
