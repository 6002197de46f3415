// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers file creation, persistence across reopen, and metadata round trips

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	// Verify the database file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}

	blobID := []byte{0xde, 0xad, 0xbe, 0xef}
	if err := store.SetBlob(ctx, "s1", blobID, []byte("state")); err != nil {
		t.Fatalf("SetBlob failed: %v", err)
	}
	md := &Metadata{
		AgentID:          "agent-1",
		LatestRootBlobID: blobID,
		Name:             "New Agent",
		Mode:             "plan",
		LastUsedModel:    "model-x",
		CreatedAt:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := store.SaveMetadata(ctx, "s1", md); err != nil {
		t.Fatalf("SaveMetadata failed: %v", err)
	}
	store.Close()

	store, err = NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer store.Close()

	data, err := store.GetBlob(ctx, "s1", blobID)
	if err != nil {
		t.Fatalf("GetBlob failed: %v", err)
	}
	if string(data) != "state" {
		t.Errorf("blob = %q, want %q", data, "state")
	}

	got, err := store.GetMetadata(ctx, "s1")
	if err != nil {
		t.Fatalf("GetMetadata failed: %v", err)
	}
	if got.AgentID != md.AgentID || got.Mode != md.Mode || got.LastUsedModel != md.LastUsedModel {
		t.Errorf("metadata mismatch: got %+v, want %+v", got, md)
	}
	if string(got.LatestRootBlobID) != string(blobID) {
		t.Errorf("root blob id = %x, want %x", got.LatestRootBlobID, blobID)
	}
	if !got.CreatedAt.Equal(md.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, md.CreatedAt)
	}
}

func TestSQLiteStore_EmptyBlob(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()
	ctx := context.Background()

	if err := store.SetBlob(ctx, "s1", []byte{1}, nil); err != nil {
		t.Fatalf("SetBlob failed: %v", err)
	}
	data, err := store.GetBlob(ctx, "s1", []byte{1})
	if err != nil {
		t.Fatalf("GetBlob failed: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("expected empty blob, got %d bytes", len(data))
	}
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}

	return store
}
