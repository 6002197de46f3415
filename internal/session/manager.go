// ABOUTME: Session manager owning the AgentStore of every open session
// ABOUTME: Loads, persists and restores sessions through portable snapshots

package session

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/coven-link/internal/store"
	"github.com/2389/coven-link/internal/wire"
)

// SnapshotVersion is the only snapshot format understood by ApplySnapshot.
const SnapshotVersion = 1

// Snapshot is the portable pointer to a session's state, suitable for
// embedding in a host's own session log.
type Snapshot struct {
	Version          int    `json:"version"`
	AgentID          string `json:"agentId"`
	LatestRootBlobID string `json:"latestRootBlobId"`
	// ConversationState is the base64 encoded state, kept as a fallback
	// when the root blob is unavailable.
	ConversationState string `json:"conversationState,omitempty"`
}

// ParseSnapshot decodes and validates a snapshot.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	if s.Version != SnapshotVersion || s.AgentID == "" {
		return nil, fmt.Errorf("unsupported snapshot (version %d)", s.Version)
	}
	return &s, nil
}

// Manager hands out one AgentStore per session ID.
type Manager struct {
	store  store.Store
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*AgentStore
}

// NewManager creates a Manager over s.
func NewManager(s store.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:    s,
		logger:   logger.With("component", "session"),
		sessions: make(map[string]*AgentStore),
	}
}

// Ensure returns the AgentStore for sessionID, loading it from the backend
// the first time. A session with no saved metadata starts with defaults.
func (m *Manager) Ensure(ctx context.Context, sessionID string) (*AgentStore, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.sessions[sessionID]; ok {
		return a, nil
	}

	meta, err := m.store.GetMetadata(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		meta = DefaultMetadata("")
	} else if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", sessionID, err)
	}

	a := newAgentStore(sessionID, m.store, meta, m.logger)
	if len(meta.LatestRootBlobID) > 0 {
		a.ResetFromStore(ctx)
	}
	m.sessions[sessionID] = a
	m.logger.Debug("session loaded", "session_id", sessionID, "agent_id", meta.AgentID)
	return a, nil
}

// Persist saves the session's metadata and returns its snapshot. It returns
// nil without error when the session was never loaded.
func (m *Manager) Persist(ctx context.Context, sessionID string) (*Snapshot, error) {
	m.mu.Lock()
	a, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}

	md := a.Metadata()
	if err := m.store.SaveMetadata(ctx, sessionID, &md); err != nil {
		return nil, fmt.Errorf("persisting session %s: %w", sessionID, err)
	}

	snap := &Snapshot{
		Version:          SnapshotVersion,
		AgentID:          md.AgentID,
		LatestRootBlobID: hex.EncodeToString(md.LatestRootBlobID),
	}
	if data, err := wire.EncodeState(a.LatestCheckpoint()); err == nil && !isEmptyState(data) {
		snap.ConversationState = base64.StdEncoding.EncodeToString(data)
	}
	return snap, nil
}

// ApplySnapshot points the session at the snapshot's agent and state.
// A root blob ID takes precedence; otherwise the inline state is used when present.
func (m *Manager) ApplySnapshot(ctx context.Context, sessionID string, snap *Snapshot) error {
	if snap == nil {
		return nil
	}
	a, err := m.Ensure(ctx, sessionID)
	if err != nil {
		return err
	}

	var root []byte
	if snap.LatestRootBlobID != "" {
		root, err = hex.DecodeString(snap.LatestRootBlobID)
		if err != nil {
			return fmt.Errorf("decoding snapshot root: %w", err)
		}
	}

	if len(root) > 0 {
		if err := a.UpdateMetadata(ctx, func(md *store.Metadata) {
			md.AgentID = snap.AgentID
			md.LatestRootBlobID = root
		}); err != nil {
			return err
		}
		a.ResetFromStore(ctx)
		return nil
	}

	if snap.ConversationState == "" {
		return nil
	}
	if err := a.UpdateMetadata(ctx, func(md *store.Metadata) { md.AgentID = snap.AgentID }); err != nil {
		return err
	}
	data, err := base64.StdEncoding.DecodeString(snap.ConversationState)
	if err != nil {
		m.logger.Warn("ignoring undecodable snapshot state", "session_id", sessionID, "error", err)
		return nil
	}
	state, err := wire.DecodeState(data)
	if err != nil {
		m.logger.Warn("ignoring unreadable snapshot state", "session_id", sessionID, "error", err)
		return nil
	}
	a.setState(state)
	return nil
}

// Forget drops the in-memory AgentStore of sessionID. Stored data is kept.
func (m *Manager) Forget(sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
}

func isEmptyState(data []byte) bool {
	return string(data) == "{}"
}
