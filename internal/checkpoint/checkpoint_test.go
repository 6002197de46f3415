// ABOUTME: Tests for the checkpoint controller and tracker.
// ABOUTME: Verifies ordering, no dropped checkpoints and first-error reporting.

package checkpoint

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-link/internal/stream"
	"github.com/2389/coven-link/internal/wire"
)

type recordingHandler struct {
	Memory
	mu    sync.Mutex
	modes []string
	fail  map[string]error
}

func (r *recordingHandler) HandleCheckpoint(ctx context.Context, s *wire.ConversationState) error {
	r.mu.Lock()
	r.modes = append(r.modes, s.Mode)
	err := r.fail[s.Mode]
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.Memory.HandleCheckpoint(ctx, s)
}

func queueOf(modes ...string) *stream.Queue[*wire.ConversationState] {
	q := stream.NewQueue[*wire.ConversationState]()
	for _, m := range modes {
		_ = q.Push(&wire.ConversationState{Mode: m})
	}
	q.Close()
	return q
}

func TestEveryCheckpointHandledInOrder(t *testing.T) {
	h := &recordingHandler{}
	require.NoError(t, NewController(h, nil, nil).Run(context.Background(), queueOf("1", "2", "3", "4", "5")))
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, h.modes)
	assert.Equal(t, "5", h.LatestCheckpoint().Mode)
}

func TestFirstFailureReturnedAfterAll(t *testing.T) {
	first := errors.New("disk full")
	h := &recordingHandler{fail: map[string]error{"2": first, "3": errors.New("later")}}
	err := NewController(h, nil, nil).Run(context.Background(), queueOf("1", "2", "3", "4"))
	assert.ErrorIs(t, err, first)
	assert.Equal(t, []string{"1", "2", "3", "4"}, h.modes)
	assert.Equal(t, "4", h.LatestCheckpoint().Mode)
}

func TestTracker(t *testing.T) {
	h := &recordingHandler{fail: map[string]error{"bad": errors.New("no")}}
	tr := NewTracker(h)
	assert.False(t, tr.Received())
	assert.Nil(t, tr.LatestCheckpoint())

	require.Error(t, tr.HandleCheckpoint(context.Background(), &wire.ConversationState{Mode: "bad"}))
	assert.False(t, tr.Received())

	require.NoError(t, tr.HandleCheckpoint(context.Background(), &wire.ConversationState{Mode: "good"}))
	assert.True(t, tr.Received())
	assert.Equal(t, "good", tr.LatestCheckpoint().Mode)
}
