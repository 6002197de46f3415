// ABOUTME: Store interface and data types for session blobs and agent metadata
// ABOUTME: Open selects a backend from Options

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrClosed is returned by operations on a closed store
var ErrClosed = errors.New("store closed")

// Metadata is the persisted description of one session's agent.
type Metadata struct {
	AgentID          string    `json:"agentId"`
	LatestRootBlobID []byte    `json:"latestRootBlobId,omitempty"`
	Name             string    `json:"name"`
	CreatedAt        time.Time `json:"createdAt"`
	Mode             string    `json:"mode"`
	LastUsedModel    string    `json:"lastUsedModel,omitempty"`
}

// Store persists blobs and metadata, both scoped by session ID.
type Store interface {
	// GetBlob returns ErrNotFound if the session has no blob with that ID.
	GetBlob(ctx context.Context, sessionID string, blobID []byte) ([]byte, error)
	SetBlob(ctx context.Context, sessionID string, blobID, data []byte) error

	// GetMetadata returns ErrNotFound for a session that was never saved.
	GetMetadata(ctx context.Context, sessionID string) (*Metadata, error)
	SaveMetadata(ctx context.Context, sessionID string, md *Metadata) error

	Close() error
}

// Backend kinds accepted by Open.
const (
	KindSQLite = "sqlite"
	KindRedis  = "redis"
	KindMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Kind         string
	DatabasePath string
	Redis        RedisConfig
}

// Open creates the backend named by opts.Kind.
func Open(opts Options) (Store, error) {
	switch opts.Kind {
	case KindSQLite, "":
		return NewSQLiteStore(opts.DatabasePath)
	case KindRedis:
		return NewRedisStore(opts.Redis)
	case KindMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", opts.Kind)
	}
}

func cloneMetadata(md *Metadata) *Metadata {
	c := *md
	c.LatestRootBlobID = append([]byte(nil), md.LatestRootBlobID...)
	return &c
}
