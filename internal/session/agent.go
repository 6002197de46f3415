// ABOUTME: AgentStore holds one session's conversation state and persists checkpoints
// ABOUTME: It is both the checkpoint handler and the kv blob store for a run

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-link/internal/kv"
	"github.com/2389/coven-link/internal/store"
	"github.com/2389/coven-link/internal/wire"
)

// Agent modes.
const (
	ModeDefault    = "default"
	ModeAutoRun    = "auto-run"
	ModePlan       = "plan"
	ModeBackground = "background"
	ModeSearch     = "search"
)

// DefaultName is given to agents that were never renamed.
const DefaultName = "New Agent"

// ValidMode reports whether mode is one of the known agent modes.
func ValidMode(mode string) bool {
	switch mode {
	case ModeDefault, ModeAutoRun, ModePlan, ModeBackground, ModeSearch:
		return true
	}
	return false
}

// DefaultMetadata returns metadata for a new agent. An empty agentID gets a fresh UUID.
func DefaultMetadata(agentID string) *store.Metadata {
	if agentID == "" {
		agentID = uuid.NewString()
	}
	return &store.Metadata{
		AgentID:   agentID,
		Name:      DefaultName,
		Mode:      ModeDefault,
		CreatedAt: time.Now().UTC(),
	}
}

// AgentStore is the durable state of one session. It implements
// checkpoint.Handler and kv.BlobStore.
type AgentStore struct {
	sessionID string
	store     store.Store
	logger    *slog.Logger

	mu    sync.RWMutex
	meta  *store.Metadata
	state *wire.ConversationState
}

func newAgentStore(sessionID string, s store.Store, meta *store.Metadata, logger *slog.Logger) *AgentStore {
	return &AgentStore{
		sessionID: sessionID,
		store:     s,
		logger:    logger.With("session_id", sessionID, "agent_id", meta.AgentID),
		meta:      meta,
		state:     &wire.ConversationState{},
	}
}

// SessionID returns the session this store belongs to.
func (a *AgentStore) SessionID() string { return a.sessionID }

// AgentID returns the agent ID from the metadata.
func (a *AgentStore) AgentID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.meta.AgentID
}

// Metadata returns a copy of the current metadata.
func (a *AgentStore) Metadata() store.Metadata {
	a.mu.RLock()
	defer a.mu.RUnlock()
	md := *a.meta
	md.LatestRootBlobID = append([]byte(nil), a.meta.LatestRootBlobID...)
	return md
}

// UpdateMetadata applies fn to the metadata and saves it.
func (a *AgentStore) UpdateMetadata(ctx context.Context, fn func(*store.Metadata)) error {
	a.mu.Lock()
	md := *a.meta
	fn(&md)
	if !ValidMode(md.Mode) {
		a.mu.Unlock()
		return fmt.Errorf("invalid agent mode %q", md.Mode)
	}
	*a.meta = md
	a.mu.Unlock()

	return a.store.SaveMetadata(ctx, a.sessionID, &md)
}

// GetBlob implements kv.BlobStore. A missing blob is reported as nil data.
func (a *AgentStore) GetBlob(ctx context.Context, id []byte) ([]byte, error) {
	data, err := a.store.GetBlob(ctx, a.sessionID, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

// SetBlob implements kv.BlobStore.
func (a *AgentStore) SetBlob(ctx context.Context, id, data []byte) error {
	return a.store.SetBlob(ctx, a.sessionID, id, data)
}

// LatestCheckpoint implements checkpoint.Handler.
func (a *AgentStore) LatestCheckpoint() *wire.ConversationState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// HandleCheckpoint implements checkpoint.Handler. The checkpoint becomes the
// current state, is stored under its content hash and recorded as the latest root.
func (a *AgentStore) HandleCheckpoint(ctx context.Context, state *wire.ConversationState) error {
	a.mu.Lock()
	a.state = state
	a.mu.Unlock()

	data, err := wire.EncodeState(state)
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}
	id := kv.BlobID(data)
	if err := a.SetBlob(ctx, id, data); err != nil {
		return fmt.Errorf("storing checkpoint: %w", err)
	}

	a.mu.Lock()
	a.meta.LatestRootBlobID = id
	md := *a.meta
	a.mu.Unlock()

	if err := a.store.SaveMetadata(ctx, a.sessionID, &md); err != nil {
		return fmt.Errorf("saving latest root: %w", err)
	}
	a.logger.Debug("checkpoint persisted", "root", kv.Key(id), "size", len(data))
	return nil
}

// ResetFromStore reloads the conversation state from the latest root blob.
// A missing or unreadable root leaves an empty state.
func (a *AgentStore) ResetFromStore(ctx context.Context) {
	a.mu.RLock()
	root := append([]byte(nil), a.meta.LatestRootBlobID...)
	a.mu.RUnlock()

	state := &wire.ConversationState{}
	if len(root) > 0 {
		data, err := a.GetBlob(ctx, root)
		switch {
		case err != nil:
			a.logger.Warn("failed to load root blob", "root", kv.Key(root), "error", err)
		case data == nil:
			a.logger.Warn("root blob missing", "root", kv.Key(root))
		default:
			decoded, err := wire.DecodeState(data)
			if err != nil {
				a.logger.Warn("failed to decode root blob", "root", kv.Key(root), "error", err)
			} else {
				state = decoded
			}
		}
	}

	a.mu.Lock()
	a.state = state
	a.mu.Unlock()
}

func (a *AgentStore) setState(state *wire.ConversationState) {
	a.mu.Lock()
	a.state = state
	a.mu.Unlock()
}
