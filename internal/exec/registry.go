// ABOUTME: Typed registration table mapping an args case to a decoder, executor and encoder.
// ABOUTME: Unary executors return one result; stream executors emit any number of results.

package exec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/2389/coven-link/internal/wire"
)

// ErrNoHandler is returned when no executor is registered for an args case.
var ErrNoHandler = errors.New("no handler registered")

// Executor runs a unary exec.
type Executor[A, R any] interface {
	Execute(ctx context.Context, args A) (R, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc[A, R any] func(ctx context.Context, args A) (R, error)

// Execute implements Executor.
func (f ExecutorFunc[A, R]) Execute(ctx context.Context, args A) (R, error) { return f(ctx, args) }

// StreamExecutor runs an exec that produces a sequence of results.
// Each call to emit sends one result; an error from emit should end the exec.
type StreamExecutor[A, S any] interface {
	Execute(ctx context.Context, args A, emit func(S) error) error
}

// StreamExecutorFunc adapts a function to StreamExecutor.
type StreamExecutorFunc[A, S any] func(ctx context.Context, args A, emit func(S) error) error

// Execute implements StreamExecutor.
func (f StreamExecutorFunc[A, S]) Execute(ctx context.Context, args A, emit func(S) error) error {
	return f(ctx, args, emit)
}

// handlerFunc decodes the request, runs the executor and emits encoded results.
type handlerFunc func(ctx context.Context, msg *wire.ExecServerMessage, emit func(*wire.ExecClientMessage) error) error

type entry struct {
	resource Resource
	handle   handlerFunc
}

// Registry holds the executors available to the exec manager.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register binds a unary executor to res. It panics if res is already registered.
func Register[A, R any](r *Registry, res Resource, ex Executor[A, R]) {
	r.add(res, func(ctx context.Context, msg *wire.ExecServerMessage, emit func(*wire.ExecClientMessage) error) error {
		args, err := decodeArgs[A](msg)
		if err != nil {
			return err
		}
		result, err := ex.Execute(ctx, args)
		if err != nil {
			return err
		}
		out, err := encodeResult(res, msg, result)
		if err != nil {
			return err
		}
		return emit(out)
	})
}

// RegisterStream binds a stream executor to res. It panics if res is already registered.
func RegisterStream[A, S any](r *Registry, res Resource, ex StreamExecutor[A, S]) {
	r.add(res, func(ctx context.Context, msg *wire.ExecServerMessage, emit func(*wire.ExecClientMessage) error) error {
		args, err := decodeArgs[A](msg)
		if err != nil {
			return err
		}
		return ex.Execute(ctx, args, func(item S) error {
			out, err := encodeResult(res, msg, item)
			if err != nil {
				return err
			}
			return emit(out)
		})
	})
}

func (r *Registry) add(res Resource, h handlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.entries[res.ArgsCase]; dup {
		panic(fmt.Sprintf("exec: resource %s registered twice", res.ArgsCase))
	}
	r.entries[res.ArgsCase] = entry{resource: res, handle: h}
}

func (r *Registry) lookup(argsCase string) (entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[argsCase]
	if !ok {
		return entry{}, fmt.Errorf("%w: %s", ErrNoHandler, argsCase)
	}
	return e, nil
}

// Resources returns the registered resources sorted by args case.
func (r *Registry) Resources() []Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Resource, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.resource)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArgsCase < out[j].ArgsCase })
	return out
}

func decodeArgs[A any](msg *wire.ExecServerMessage) (A, error) {
	var args A
	if len(msg.Value) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(msg.Value, &args); err != nil {
		return args, fmt.Errorf("decoding %s: %w", msg.Case, err)
	}
	return args, nil
}

func encodeResult(res Resource, msg *wire.ExecServerMessage, v any) (*wire.ExecClientMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", res.ResultCase, err)
	}
	return &wire.ExecClientMessage{
		ID:     msg.ID,
		ExecID: msg.ExecID,
		Case:   res.ResultCase,
		Value:  raw,
	}, nil
}
