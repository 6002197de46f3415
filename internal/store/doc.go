// Package store provides durable storage for agent sessions.
//
// # Architecture
//
// A session owns two kinds of data:
//
//   - Blobs: content-addressed byte strings. The ID of a blob is the SHA-256
//     of its data, so writing the same blob twice is a no-op.
//   - Metadata: one record per session naming the agent, the latest root blob
//     (the serialized conversation checkpoint) and a few display fields.
//
// Three implementations satisfy Store:
//
//   - SQLiteStore: a single file database using modernc.org/sqlite (no cgo)
//   - RedisStore: shared storage for several hosts using go-redis
//   - MemoryStore: process-local maps for tests and throwaway sessions
//
// # Errors
//
// GetBlob and GetMetadata return ErrNotFound when nothing is stored under the
// requested key. Callers that treat a missing blob as a cache miss should check
// for it with errors.Is.
package store
