// ABOUTME: Tests for the inbound stream splitter.
// ABOUTME: Covers routing exclusivity, detector notifications, first-message callback and shutdown.

package split

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

type recordingDetector struct {
	mu         sync.Mutex
	heartbeats int
	resets     []string
	ended      int
}

func (d *recordingDetector) ServerHeartbeat() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.heartbeats++
}

func (d *recordingDetector) Reset(activity, label string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets = append(d.resets, activity+"/"+label)
}

func (d *recordingDetector) StreamEnded() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ended++
}

func feed(msgs ...wire.ServerPayload) *stream.Queue[*wire.ServerMessage] {
	q := stream.NewQueue[*wire.ServerMessage]()
	for _, m := range msgs {
		_ = q.Push(&wire.ServerMessage{Payload: m})
	}
	q.Close()
	return q
}

func drain[T any](t *testing.T, q *stream.Queue[T]) []T {
	t.Helper()
	out, err := stream.Collect[T](context.Background(), q)
	require.NoError(t, err)
	return out
}

func TestSplitRoutesEachMessageOnce(t *testing.T) {
	src := feed(
		&wire.InteractionUpdate{Event: &wire.TextDelta{Text: "a"}},
		&wire.ExecServerMessage{ID: 1, Case: "readArgs"},
		&wire.InteractionQuery{ID: 2, Case: "webSearchRequestQuery"},
		&wire.ConversationState{Mode: "plan"},
		&wire.KvServerMessage{ID: 3, Payload: &wire.GetBlobArgs{BlobID: []byte{1}}},
		&wire.ExecServerControlMessage{Control: &wire.ExecAbort{ID: 1}},
		&wire.KvServerMessage{ID: 4, Payload: &wire.SetBlobArgs{BlobID: []byte{2}}},
	)

	ch := Split(context.Background(), src, nil, nil, nil)
	require.NoError(t, ch.Err())

	interaction := drain(t, ch.Interaction)
	exec := drain(t, ch.Exec)
	checkpoints := drain(t, ch.Checkpoint)
	kv := drain(t, ch.Kv)

	assert.Len(t, interaction, 2)
	assert.NotNil(t, interaction[0].Update)
	assert.Nil(t, interaction[0].Query)
	assert.NotNil(t, interaction[1].Query)
	assert.Nil(t, interaction[1].Update)

	require.Len(t, exec, 2)
	assert.Equal(t, uint32(1), exec[0].Request.ID)
	assert.NotNil(t, exec[1].Control)

	require.Len(t, checkpoints, 1)
	assert.Equal(t, "plan", checkpoints[0].Mode)

	require.Len(t, kv, 2)
	assert.Equal(t, uint32(3), kv[0].ID)
	assert.Equal(t, uint32(4), kv[1].ID)

	assert.Equal(t, 7, len(interaction)+len(exec)+len(checkpoints)+len(kv))
}

func TestSplitDetectorNotifications(t *testing.T) {
	det := &recordingDetector{}
	src := feed(
		&wire.InteractionUpdate{Event: &wire.Heartbeat{}},
		&wire.ExecServerMessage{ID: 1, Case: "shellArgs"},
		&wire.InteractionUpdate{Event: &wire.TextDelta{Text: "x"}},
		&wire.ConversationState{},
	)

	ch := Split(context.Background(), src, det, nil, nil)
	require.NoError(t, ch.Err())

	det.mu.Lock()
	defer det.mu.Unlock()
	assert.Equal(t, 1, det.heartbeats)
	assert.Equal(t, []string{
		"inbound_message/heartbeat",
		"inbound_message/execServerMessage:shellArgs",
		"inbound_message/interactionUpdate:textDelta",
		"inbound_message/conversationCheckpointUpdate",
	}, det.resets)
	assert.Equal(t, 1, det.ended)
}

func TestSplitFirstMessageCallbackOnce(t *testing.T) {
	calls := 0
	src := feed(
		&wire.KvServerMessage{ID: 1, Payload: &wire.GetBlobArgs{}},
		&wire.KvServerMessage{ID: 2, Payload: &wire.GetBlobArgs{}},
	)
	ch := Split(context.Background(), src, nil, func() { calls++ }, nil)
	require.NoError(t, ch.Err())
	assert.Equal(t, 1, calls)
}

func TestSplitNoFirstCallbackOnEmptyStream(t *testing.T) {
	calls := 0
	ch := Split(context.Background(), feed(), nil, func() { calls++ }, nil)
	require.NoError(t, ch.Err())
	assert.Equal(t, 0, calls)
}

func TestSplitPropagatesInboundError(t *testing.T) {
	boom := errors.New("transport reset")
	q := stream.NewQueue[*wire.ServerMessage]()
	_ = q.Push(&wire.ServerMessage{Payload: &wire.ConversationState{}})
	q.CloseWithError(boom)

	det := &recordingDetector{}
	ch := Split(context.Background(), q, det, nil, nil)
	assert.ErrorIs(t, ch.Err(), boom)

	<-ch.Done()
	assert.True(t, ch.Interaction.Closed())
	assert.True(t, ch.Exec.Closed())
	assert.True(t, ch.Checkpoint.Closed())
	assert.True(t, ch.Kv.Closed())
	assert.Len(t, drain(t, ch.Checkpoint), 1)
	assert.Equal(t, 0, det.ended)
}

func TestSplitSwallowsClosedSubStream(t *testing.T) {
	q := stream.NewQueue[*wire.ServerMessage]()
	ch := Split(context.Background(), q, nil, nil, nil)

	ch.Kv.Close()
	require.NoError(t, q.Push(&wire.ServerMessage{Payload: &wire.KvServerMessage{ID: 1, Payload: &wire.GetBlobArgs{}}}))
	require.NoError(t, q.Push(&wire.ServerMessage{Payload: &wire.ConversationState{}}))
	q.Close()

	require.NoError(t, ch.Err())
	assert.Len(t, drain(t, ch.Checkpoint), 1)
}

func TestSplitIgnoresUnknownCases(t *testing.T) {
	src := feed(&wire.Unknown{Case: "brandNew"}, &wire.ConversationState{})
	ch := Split(context.Background(), src, nil, nil, nil)
	require.NoError(t, ch.Err())
	assert.Len(t, drain(t, ch.Checkpoint), 1)
	assert.Empty(t, drain(t, ch.Interaction))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "kvServerMessage:setBlobArgs", Label(&wire.ServerMessage{Payload: &wire.KvServerMessage{Payload: &wire.SetBlobArgs{}}}))
	assert.Equal(t, "execServerControlMessage:abort", Label(&wire.ServerMessage{Payload: &wire.ExecServerControlMessage{Control: &wire.ExecAbort{}}}))
	assert.Equal(t, "interactionQuery:askQuestionInteractionQuery", Label(&wire.ServerMessage{Payload: &wire.InteractionQuery{Case: "askQuestionInteractionQuery"}}))
	assert.Equal(t, "", Label(nil))
}
