// ABOUTME: Redis implementation of the Store interface using go-redis
// ABOUTME: Lets several hosts share one set of sessions

package store

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store using Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
	mu     sync.RWMutex
	closed bool
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string
	// Password is the Redis password (optional).
	Password string
	// DB is the Redis database number.
	DB int
	// Prefix is the key prefix for all keys (default: "coven-link:").
	Prefix string
}

const defaultRedisPrefix = "coven-link:"

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisStoreFromClient(client, cfg.Prefix), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) blobKey(sessionID string, blobID []byte) string {
	return s.prefix + "blob:" + sessionID + ":" + hex.EncodeToString(blobID)
}

func (s *RedisStore) metaKey(sessionID string) string {
	return s.prefix + "meta:" + sessionID
}

func (s *RedisStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// GetBlob retrieves a blob.
func (s *RedisStore) GetBlob(ctx context.Context, sessionID string, blobID []byte) ([]byte, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, s.blobKey(sessionID, blobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get blob: %w", err)
	}
	return data, nil
}

// SetBlob stores a blob. An existing key is left untouched.
func (s *RedisStore) SetBlob(ctx context.Context, sessionID string, blobID, data []byte) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	if err := s.client.SetNX(ctx, s.blobKey(sessionID, blobID), data, 0).Err(); err != nil {
		return fmt.Errorf("set blob: %w", err)
	}
	return nil
}

// GetMetadata retrieves session metadata.
func (s *RedisStore) GetMetadata(ctx context.Context, sessionID string) (*Metadata, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, s.metaKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get metadata: %w", err)
	}

	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &md, nil
}

// SaveMetadata stores session metadata.
func (s *RedisStore) SaveMetadata(ctx context.Context, sessionID string, md *Metadata) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	data, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := s.client.Set(ctx, s.metaKey(sessionID), data, 0).Err(); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
