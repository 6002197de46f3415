// ABOUTME: Serves blob get/set requests from the server against a local BlobStore.
// ABOUTME: Each request runs in its own goroutine; store failures become setBlobResult errors.

package kv

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/2389/coven-link/internal/metrics"
	"github.com/2389/coven-link/internal/stream"
	"github.com/2389/coven-link/internal/wire"
)

// Manager answers KvServerMessages with KvClientMessages.
type Manager struct {
	store   BlobStore
	out     stream.Writer[*wire.KvClientMessage]
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewManager creates a Manager. logger and m may be nil.
func NewManager(store BlobStore, out stream.Writer[*wire.KvClientMessage], logger *slog.Logger, m *metrics.Metrics) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:   store,
		out:     out,
		logger:  logger.With("component", "kv"),
		metrics: m,
	}
}

// Run consumes in until it ends, then waits for every request in flight.
// It only fails when reading from in fails.
func (m *Manager) Run(ctx context.Context, in stream.Source[*wire.KvServerMessage]) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		msg, err := in.Recv(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			m.handle(ctx, msg)
		}()
	}
}

func (m *Manager) handle(ctx context.Context, msg *wire.KvServerMessage) {
	var reply wire.KvClientPayload

	switch args := msg.Payload.(type) {
	case *wire.GetBlobArgs:
		ctx, span := metrics.StartSpan(ctx, "kv.get_blob",
			attribute.Int64("kv.request_id", int64(msg.ID)),
			attribute.String("kv.blob_id", Key(args.BlobID)),
		)
		data, err := m.store.GetBlob(ctx, args.BlobID)
		metrics.EndSpan(span, err)
		m.metrics.RecordBlob("get", err)
		if err != nil {
			// The reply has no error field; a failed read looks like a miss.
			m.logger.Warn("get blob failed", "id", msg.ID, "blob_id", Key(args.BlobID), "error", err)
			data = nil
		}
		reply = &wire.GetBlobResult{BlobData: data}

	case *wire.SetBlobArgs:
		ctx, span := metrics.StartSpan(ctx, "kv.set_blob",
			attribute.Int64("kv.request_id", int64(msg.ID)),
			attribute.String("kv.blob_id", Key(args.BlobID)),
			attribute.Int("kv.blob_size", len(args.BlobData)),
		)
		err := m.store.SetBlob(ctx, args.BlobID, args.BlobData)
		metrics.EndSpan(span, err)
		m.metrics.RecordBlob("set", err)
		res := &wire.SetBlobResult{}
		if err != nil {
			res.Error = &wire.KvError{Message: err.Error()}
		}
		reply = res

	default:
		m.logger.Debug("ignoring kv request", "id", msg.ID, "case", msg.Payload)
		return
	}

	if err := m.out.Write(ctx, &wire.KvClientMessage{ID: msg.ID, Payload: reply}); err != nil {
		m.logger.Debug("dropping kv result", "id", msg.ID, "error", err)
	}
}
