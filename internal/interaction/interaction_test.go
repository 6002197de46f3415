// ABOUTME: Tests for interaction conversion and the interaction controller.
// ABOUTME: Covers update ordering, first-error reporting, incomplete updates and query responses.

package interaction

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-link/internal/split"
	"github.com/2389/coven-link/internal/stream"
	"github.com/2389/coven-link/internal/wire"
)

type fakeListener struct {
	mu      sync.Mutex
	updates []string
	failOn  map[string]error
	answer  func(Query) (Response, error)
}

func (f *fakeListener) SendUpdate(_ context.Context, e wire.UpdateEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	text := e.WireCase()
	if d, ok := e.(*wire.TextDelta); ok {
		text = d.Text
	}
	f.updates = append(f.updates, text)
	return f.failOn[text]
}

func (f *fakeListener) Query(_ context.Context, q Query) (Response, error) {
	if f.answer == nil {
		return Approve(), nil
	}
	return f.answer(q)
}

func (f *fakeListener) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.updates...)
}

func textUpdate(s string) split.InteractionMessage {
	return split.InteractionMessage{Update: &wire.InteractionUpdate{Event: &wire.TextDelta{Text: s}}}
}

func TestUpdatesDeliveredInOrder(t *testing.T) {
	l := &fakeListener{}
	in := stream.NewQueue[split.InteractionMessage]()
	for _, s := range []string{"a", "b", "c", "d"} {
		require.NoError(t, in.Push(textUpdate(s)))
	}
	in.Close()

	out := stream.NewQueue[*wire.InteractionResponse]()
	require.NoError(t, NewController(l, out, nil).Run(context.Background(), in))
	assert.Equal(t, []string{"a", "b", "c", "d"}, l.seen())
}

func TestFirstUpdateErrorWinsAndProcessingContinues(t *testing.T) {
	first := errors.New("first")
	l := &fakeListener{failOn: map[string]error{"b": first, "c": errors.New("second")}}
	in := stream.NewQueue[split.InteractionMessage]()
	for _, s := range []string{"a", "b", "c", "d"} {
		require.NoError(t, in.Push(textUpdate(s)))
	}
	in.Close()

	err := NewController(l, stream.NewQueue[*wire.InteractionResponse](), nil).Run(context.Background(), in)
	assert.ErrorIs(t, err, first)
	assert.Equal(t, []string{"a", "b", "c", "d"}, l.seen())
}

func TestIncompleteUpdatesDropped(t *testing.T) {
	l := &fakeListener{}
	in := stream.NewQueue[split.InteractionMessage]()
	push := func(e wire.UpdateEvent) {
		require.NoError(t, in.Push(split.InteractionMessage{Update: &wire.InteractionUpdate{Event: e}}))
	}
	push(&wire.ToolCallStarted{ToolCallEvent: wire.ToolCallEvent{CallID: "c1"}})
	push(&wire.ToolCallCompleted{ToolCallEvent: wire.ToolCallEvent{CallID: "c1", ToolCall: json.RawMessage(`{}`), ModelCallID: "m1"}})
	push(&wire.UserMessageAppended{})
	push(&wire.ToolCallDelta{CallID: "c1", ModelCallID: "m1"})
	push(&wire.Unknown{Case: "futureThing"})
	push(&wire.TurnEnded{})
	in.Close()

	require.NoError(t, NewController(l, stream.NewQueue[*wire.InteractionResponse](), nil).Run(context.Background(), in))
	assert.Equal(t, []string{wire.UpdateToolCallCompleted, wire.UpdateTurnEnded}, l.seen())
}

func TestQueryAnswered(t *testing.T) {
	l := &fakeListener{answer: func(q Query) (Response, error) {
		if q.Kind == KindWebFetch {
			return Reject("no network"), nil
		}
		return Approve(), nil
	}}
	in := stream.NewQueue[split.InteractionMessage]()
	require.NoError(t, in.Push(split.InteractionMessage{Query: &wire.InteractionQuery{
		ID: 4, Case: "webFetchRequestQuery", Value: wire.QueryValue{Args: json.RawMessage(`{"url":"x"}`)},
	}}))
	in.Close()

	out := stream.NewQueue[*wire.InteractionResponse]()
	require.NoError(t, NewController(l, out, nil).Run(context.Background(), in))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := out.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), resp.ID)
	assert.Equal(t, "webFetchRequestResponse", resp.Case)
	assert.JSONEq(t, `{"result":{"case":"rejected","value":{"reason":"no network"}}}`, string(resp.Value))
}

func TestQueriesDoNotBlockUpdates(t *testing.T) {
	release := make(chan struct{})
	l := &fakeListener{answer: func(Query) (Response, error) {
		<-release
		return Approve(), nil
	}}
	in := stream.NewQueue[split.InteractionMessage]()
	require.NoError(t, in.Push(split.InteractionMessage{Query: &wire.InteractionQuery{
		ID: 1, Case: "webSearchRequestQuery", Value: wire.QueryValue{Args: json.RawMessage(`{}`)},
	}}))
	require.NoError(t, in.Push(textUpdate("after")))
	in.Close()

	out := stream.NewQueue[*wire.InteractionResponse]()
	require.NoError(t, NewController(l, out, nil).Run(context.Background(), in))
	assert.Equal(t, []string{"after"}, l.seen())
	assert.Equal(t, 0, out.Len())

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := out.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "webSearchRequestResponse", resp.Case)
}

func TestQueryFailureIsNotFatal(t *testing.T) {
	l := &fakeListener{answer: func(Query) (Response, error) { return Response{}, errors.New("listener down") }}
	in := stream.NewQueue[split.InteractionMessage]()
	require.NoError(t, in.Push(split.InteractionMessage{Query: &wire.InteractionQuery{ID: 1, Case: "exaSearchRequestQuery", Value: wire.QueryValue{Args: json.RawMessage(`{}`)}}}))
	require.NoError(t, in.Push(split.InteractionMessage{Query: &wire.InteractionQuery{ID: 2, Case: "askQuestionInteractionQuery"}}))
	require.NoError(t, in.Push(textUpdate("ok")))
	in.Close()

	assert.NoError(t, NewController(l, stream.NewQueue[*wire.InteractionResponse](), nil).Run(context.Background(), in))
	assert.Equal(t, []string{"ok"}, l.seen())
}

func TestConvertQuery(t *testing.T) {
	q, err := ConvertQuery(&wire.InteractionQuery{ID: 3, Case: "switchModeRequestQuery", Value: wire.QueryValue{Args: json.RawMessage(`{"toolCallId":"tc-9","mode":"plan"}`)}})
	require.NoError(t, err)
	assert.Equal(t, KindSwitchMode, q.Kind)
	assert.Equal(t, "tc-9", q.ToolCallID)

	_, err = ConvertQuery(&wire.InteractionQuery{ID: 4, Case: "createPlanRequestQuery", Value: wire.QueryValue{Args: json.RawMessage(`{}`)}})
	assert.Error(t, err)

	_, err = ConvertQuery(&wire.InteractionQuery{ID: 5, Case: "webSearchRequestQuery"})
	assert.Error(t, err)

	_, err = ConvertQuery(&wire.InteractionQuery{ID: 6, Case: "neverHeardOfIt", Value: wire.QueryValue{Args: json.RawMessage(`{}`)}})
	assert.Error(t, err)

	q, err = ConvertQuery(&wire.InteractionQuery{ID: 7, Case: "setupVmEnvironmentArgs"})
	require.NoError(t, err)
	assert.Equal(t, KindSetupVMEnvironment, q.Kind)
}

func TestEncodeResponseShapes(t *testing.T) {
	ask, err := ConvertQuery(&wire.InteractionQuery{ID: 1, Case: "askQuestionInteractionQuery", Value: wire.QueryValue{Args: json.RawMessage(`{}`), ToolCallID: "t"}})
	require.NoError(t, err)
	resp, err := EncodeResponse(ask, Result(json.RawMessage(`{"answers":["yes"]}`)))
	require.NoError(t, err)
	assert.Equal(t, "askQuestionInteractionResponse", resp.Case)
	assert.JSONEq(t, `{"result":{"answers":["yes"]}}`, string(resp.Value))

	search, err := ConvertQuery(&wire.InteractionQuery{ID: 2, Case: "webSearchRequestQuery", Value: wire.QueryValue{Args: json.RawMessage(`{}`)}})
	require.NoError(t, err)
	resp, err = EncodeResponse(search, Approve())
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":{"case":"approved","value":{}}}`, string(resp.Value))

	vm, err := ConvertQuery(&wire.InteractionQuery{ID: 3, Case: "setupVmEnvironmentArgs"})
	require.NoError(t, err)
	resp, err = EncodeResponse(vm, Reject("ignored"))
	require.NoError(t, err)
	assert.Equal(t, "setupVmEnvironmentResult", resp.Case)
	assert.JSONEq(t, `{"result":{"case":"success","value":{}}}`, string(resp.Value))
}
