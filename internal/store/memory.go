// ABOUTME: In-memory Store implementation for tests and throwaway sessions
// ABOUTME: Data is lost when the process exits

package store

import (
	"context"
	"encoding/hex"
	"sync"
)

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu       sync.RWMutex
	blobs    map[string][]byte    // keyed by "sessionID:hex(blobID)"
	metadata map[string]*Metadata // keyed by session ID
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs:    make(map[string][]byte),
		metadata: make(map[string]*Metadata),
	}
}

func blobKey(sessionID string, blobID []byte) string {
	return sessionID + ":" + hex.EncodeToString(blobID)
}

// GetBlob retrieves a blob.
func (m *MemoryStore) GetBlob(_ context.Context, sessionID string, blobID []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blobs[blobKey(sessionID, blobID)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// SetBlob stores a blob.
func (m *MemoryStore) SetBlob(_ context.Context, sessionID string, blobID, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Make a copy to avoid external modification
	m.blobs[blobKey(sessionID, blobID)] = append([]byte(nil), data...)
	return nil
}

// GetMetadata retrieves session metadata.
func (m *MemoryStore) GetMetadata(_ context.Context, sessionID string) (*Metadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	md, ok := m.metadata[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneMetadata(md), nil
}

// SaveMetadata stores session metadata.
func (m *MemoryStore) SaveMetadata(_ context.Context, sessionID string, md *Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.metadata[sessionID] = cloneMetadata(md)
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
