// ABOUTME: scriptedBackend plays one fixed turn: text, an ls exec, a blob round trip, a checkpoint
// ABOUTME: Resumed turns skip straight to the reply so reconnects are visible in the transcript

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/2389/coven-link/internal/kv"
	"github.com/2389/coven-link/internal/transport"
	"github.com/2389/coven-link/internal/wire"
)

type scriptedBackend struct {
	logger *slog.Logger

	// dropOnce fails the first stream right after its checkpoint.
	dropOnce atomic.Bool
	streams  atomic.Int32
}

func newScriptedBackend(logger *slog.Logger) *scriptedBackend {
	return &scriptedBackend{logger: logger}
}

// turn is one Run stream from the backend's point of view.
type turn struct {
	rpc    transport.AgentRunServer
	logger *slog.Logger
}

// Run implements transport.AgentServer.
func (b *scriptedBackend) Run(rpc transport.AgentRunServer) error {
	n := b.streams.Add(1)
	t := &turn{rpc: rpc, logger: b.logger.With("stream", n)}

	first, err := rpc.Recv()
	if err != nil {
		return err
	}
	req, ok := first.Payload.(*wire.RunRequest)
	if !ok {
		return status.Errorf(codes.InvalidArgument, "first frame must be a run request, got %s", first.Payload.WireCase())
	}

	state := req.ConversationState
	if state == nil {
		state = &wire.ConversationState{}
	}

	if req.Action.IsResume() {
		t.logger.Info("resuming turn", "turns", len(state.Turns))
		if err := t.text("(resumed) "); err != nil {
			return err
		}
		return t.finish(state)
	}

	text := ""
	if req.Action != nil {
		if a, ok := req.Action.Action.(*wire.UserMessageAction); ok {
			text = a.UserMessage.Text
		}
	}
	t.logger.Info("received message", "text", text, "conversation", req.ConversationID)

	if err := t.text(fmt.Sprintf("You said: **%s**\n\nLet me look around. ", text)); err != nil {
		return err
	}
	entries, err := t.listWorkspace()
	if err != nil {
		return err
	}
	if err := t.text(fmt.Sprintf("The workspace has %d entries. ", entries)); err != nil {
		return err
	}

	blob, err := json.Marshal(map[string]string{"user": text})
	if err != nil {
		return err
	}
	blobID := kv.BlobID(blob)
	if err := t.setBlob(1, blobID, blob); err != nil {
		return err
	}
	state.Turns = append(state.Turns, blobID)
	if err := t.send(state); err != nil {
		return err
	}

	if b.dropOnce.CompareAndSwap(true, false) {
		t.logger.Warn("dropping stream after checkpoint")
		return status.Error(codes.Unavailable, "simulated connection drop")
	}
	return t.finish(state)
}

func (t *turn) finish(state *wire.ConversationState) error {
	if err := t.text("Done."); err != nil {
		return err
	}
	if err := t.send(&wire.InteractionUpdate{Event: &wire.TokenDelta{Tokens: 42}}); err != nil {
		return err
	}
	return t.send(&wire.InteractionUpdate{Event: &wire.TurnEnded{}})
}

func (t *turn) send(p wire.ServerPayload) error {
	return t.rpc.Send(&wire.ServerMessage{Payload: p})
}

func (t *turn) text(s string) error {
	return t.send(&wire.InteractionUpdate{Event: &wire.TextDelta{Text: s}})
}

// await reads client frames until match returns true. Heartbeats are skipped.
func (t *turn) await(match func(wire.ClientPayload) bool) error {
	for {
		msg, err := t.rpc.Recv()
		if errors.Is(err, io.EOF) {
			return status.Error(codes.Aborted, "client closed the stream mid-turn")
		}
		if err != nil {
			return err
		}
		if match(msg.Payload) {
			return nil
		}
	}
}

// listWorkspace asks the client to run ls and returns the number of entries.
func (t *turn) listWorkspace() (int, error) {
	const execID = 1
	if err := t.send(&wire.ExecServerMessage{
		ID:     execID,
		ExecID: uuid.NewString(),
		Case:   "lsArgs",
		Value:  json.RawMessage(`{"path":"."}`),
	}); err != nil {
		return 0, err
	}

	var entries int
	var thrown string
	err := t.await(func(p wire.ClientPayload) bool {
		switch m := p.(type) {
		case *wire.ExecClientMessage:
			if m.ID == execID && m.Case == "lsResult" {
				var res struct {
					Entries []json.RawMessage `json:"entries"`
				}
				if err := json.Unmarshal(m.Value, &res); err == nil {
					entries = len(res.Entries)
				}
			}
		case *wire.ExecClientControlMessage:
			if m.CorrelationID() != execID {
				return false
			}
			switch c := m.Control.(type) {
			case *wire.ExecThrow:
				thrown = c.Error
			case *wire.ExecStreamClose:
				return true
			}
		}
		return false
	})
	if err != nil {
		return 0, err
	}
	if thrown != "" {
		t.logger.Warn("ls failed on client", "error", thrown)
	}
	return entries, nil
}

// setBlob stores a blob on the client and waits for the acknowledgement.
func (t *turn) setBlob(id uint32, blobID, data []byte) error {
	if err := t.send(&wire.KvServerMessage{ID: id, Payload: &wire.SetBlobArgs{BlobID: blobID, BlobData: data}}); err != nil {
		return err
	}
	var kvErr *wire.KvError
	err := t.await(func(p wire.ClientPayload) bool {
		m, ok := p.(*wire.KvClientMessage)
		if !ok || m.ID != id {
			return false
		}
		if r, ok := m.Payload.(*wire.SetBlobResult); ok {
			kvErr = r.Error
		}
		return true
	})
	if err != nil {
		return err
	}
	if kvErr != nil {
		return status.Errorf(codes.Internal, "client failed to store blob: %s", kvErr.Message)
	}
	return nil
}
