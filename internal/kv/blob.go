// ABOUTME: Content-addressed blob store boundary and an in-memory implementation.
// ABOUTME: Blob IDs are the SHA-256 digest of the blob contents.

package kv

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// BlobStore reads and writes immutable blobs keyed by content hash.
// GetBlob returns (nil, nil) when the blob does not exist.
type BlobStore interface {
	GetBlob(ctx context.Context, id []byte) ([]byte, error)
	SetBlob(ctx context.Context, id, data []byte) error
}

// BlobID returns the content hash of data.
func BlobID(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// Key renders a blob ID as lowercase hex, for maps and storage keys.
func Key(id []byte) string {
	return hex.EncodeToString(id)
}

// MemoryBlobStore keeps blobs in a map. Safe for concurrent use.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryBlobStore creates an empty store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

// GetBlob returns a copy of the blob, or nil if absent.
func (s *MemoryBlobStore) GetBlob(_ context.Context, id []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[Key(id)]
	if !ok {
		return nil, nil
	}
	return append([]byte{}, data...), nil
}

// SetBlob stores a copy of data. Rewriting an existing ID is a no-op in effect.
func (s *MemoryBlobStore) SetBlob(_ context.Context, id, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[Key(id)] = append([]byte{}, data...)
	return nil
}

// Len returns the number of stored blobs.
func (s *MemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
