// ABOUTME: Demultiplexes the inbound server stream into interaction, exec, checkpoint and kv sub-streams.
// ABOUTME: Feeds the stall detector and fires the first-message callback once per stream.

package split

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/2389/coven-link/internal/stream"
	"github.com/2389/coven-link/internal/wire"
)

// ActivityInbound is the activity type reported to the stall detector for every inbound frame.
const ActivityInbound = "inbound_message"

// StallDetector observes inbound traffic to judge whether the stream is still productive.
type StallDetector interface {
	// ServerHeartbeat is called for server keep-alives, in addition to Reset.
	ServerHeartbeat()
	// Reset is called for every inbound message.
	Reset(activity, label string)
	// StreamEnded is called when the inbound stream finishes without error.
	StreamEnded()
}

// Noop is a StallDetector that ignores everything.
type Noop struct{}

func (Noop) ServerHeartbeat()     {}
func (Noop) Reset(string, string) {}
func (Noop) StreamEnded()         {}

// InteractionMessage carries either an update or a query. Exactly one field is set.
type InteractionMessage struct {
	Update *wire.InteractionUpdate
	Query  *wire.InteractionQuery
}

// ExecMessage carries either an exec request or a control message. Exactly one field is set.
type ExecMessage struct {
	Request *wire.ExecServerMessage
	Control *wire.ExecServerControlMessage
}

// Channels holds the four sub-streams and the completion signal of one inbound stream.
type Channels struct {
	Interaction *stream.Queue[InteractionMessage]
	Exec        *stream.Queue[ExecMessage]
	Checkpoint  *stream.Queue[*wire.ConversationState]
	Kv          *stream.Queue[*wire.KvServerMessage]

	done chan struct{}
	err  error
}

// Done is closed when the inbound stream has ended and every sub-stream is closed.
func (c *Channels) Done() <-chan struct{} { return c.done }

// Err blocks until the inbound stream ends and returns its failure, or nil
// when it ended normally.
func (c *Channels) Err() error {
	<-c.done
	return c.err
}

// Split starts consuming src in a background goroutine and routes every
// message to exactly one sub-stream. onFirst may be nil.
func Split(ctx context.Context, src stream.Source[*wire.ServerMessage], detector StallDetector, onFirst func(), logger *slog.Logger) *Channels {
	if detector == nil {
		detector = Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Channels{
		Interaction: stream.NewQueue[InteractionMessage](),
		Exec:        stream.NewQueue[ExecMessage](),
		Checkpoint:  stream.NewQueue[*wire.ConversationState](),
		Kv:          stream.NewQueue[*wire.KvServerMessage](),
		done:        make(chan struct{}),
	}
	go c.run(ctx, src, detector, onFirst, logger)
	return c
}

func (c *Channels) run(ctx context.Context, src stream.Source[*wire.ServerMessage], detector StallDetector, onFirst func(), logger *slog.Logger) {
	defer close(c.done)
	defer func() {
		c.Interaction.Close()
		c.Exec.Close()
		c.Checkpoint.Close()
		c.Kv.Close()
	}()

	first := true
	for {
		msg, err := src.Recv(ctx)
		if errors.Is(err, io.EOF) {
			detector.StreamEnded()
			return
		}
		if err != nil {
			c.err = err
			return
		}
		if msg == nil || msg.Payload == nil {
			continue
		}

		if first {
			first = false
			if onFirst != nil {
				onFirst()
			}
		}

		if u, ok := msg.Payload.(*wire.InteractionUpdate); ok && u.IsHeartbeat() {
			detector.ServerHeartbeat()
			detector.Reset(ActivityInbound, wire.UpdateHeartbeat)
		} else {
			detector.Reset(ActivityInbound, Label(msg))
		}

		if err := c.route(msg.Payload); err != nil {
			logger.Debug("dropping inbound message", "case", msg.Payload.WireCase(), "error", err)
		}
	}
}

// route delivers the payload to its sub-stream. A closed sub-stream is reported, never fatal.
func (c *Channels) route(p wire.ServerPayload) error {
	switch v := p.(type) {
	case *wire.InteractionUpdate:
		return c.Interaction.Push(InteractionMessage{Update: v})
	case *wire.InteractionQuery:
		return c.Interaction.Push(InteractionMessage{Query: v})
	case *wire.ExecServerMessage:
		return c.Exec.Push(ExecMessage{Request: v})
	case *wire.ExecServerControlMessage:
		return c.Exec.Push(ExecMessage{Control: v})
	case *wire.ConversationState:
		return c.Checkpoint.Push(v)
	case *wire.KvServerMessage:
		return c.Kv.Push(v)
	default:
		return errUnroutable
	}
}

var errUnroutable = errors.New("no sub-stream for message case")

// Label names a message for stall diagnostics as "<case>:<inner case>".
func Label(msg *wire.ServerMessage) string {
	if msg == nil || msg.Payload == nil {
		return ""
	}
	top := msg.Payload.WireCase()
	var inner string
	switch v := msg.Payload.(type) {
	case *wire.InteractionUpdate:
		if v.Event != nil {
			inner = v.Event.WireCase()
		}
	case *wire.InteractionQuery:
		inner = v.Case
	case *wire.ExecServerMessage:
		inner = v.Case
	case *wire.ExecServerControlMessage:
		if v.Control != nil {
			inner = v.Control.WireCase()
		}
	case *wire.KvServerMessage:
		if v.Payload != nil {
			inner = v.Payload.WireCase()
		}
	}
	if inner == "" {
		return top
	}
	return top + ":" + inner
}
