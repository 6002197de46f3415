// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides blob and session metadata persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// A single connection serializes concurrent kv writes instead of failing with SQLITE_BUSY
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS blobs (
			session_id TEXT NOT NULL,
			blob_id TEXT NOT NULL,
			data BLOB NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (session_id, blob_id)
		);

		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			latest_root_blob_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			mode TEXT NOT NULL,
			last_used_model TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_agent_id ON sessions(agent_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// GetBlob retrieves a blob.
// Returns ErrNotFound if the session has no blob with that ID.
func (s *SQLiteStore) GetBlob(ctx context.Context, sessionID string, blobID []byte) ([]byte, error) {
	query := `SELECT data FROM blobs WHERE session_id = ? AND blob_id = ?`

	var data []byte
	err := s.db.QueryRowContext(ctx, query, sessionID, hex.EncodeToString(blobID)).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying blob: %w", err)
	}

	return data, nil
}

// SetBlob stores a blob.
// Blobs are content addressed, so an existing row is left untouched.
func (s *SQLiteStore) SetBlob(ctx context.Context, sessionID string, blobID, data []byte) error {
	query := `
		INSERT OR IGNORE INTO blobs (session_id, blob_id, data, created_at)
		VALUES (?, ?, ?, ?)
	`

	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(ctx, query,
		sessionID,
		hex.EncodeToString(blobID),
		data,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving blob: %w", err)
	}

	s.logger.Debug("saved blob", "session_id", sessionID, "size", len(data))
	return nil
}

// GetMetadata retrieves session metadata.
// Returns ErrNotFound if the session was never saved.
func (s *SQLiteStore) GetMetadata(ctx context.Context, sessionID string) (*Metadata, error) {
	query := `
		SELECT agent_id, latest_root_blob_id, name, mode, last_used_model, created_at
		FROM sessions
		WHERE session_id = ?
	`

	var md Metadata
	var rootHex, createdAt string
	var lastUsedModel sql.NullString

	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&md.AgentID,
		&rootHex,
		&md.Name,
		&md.Mode,
		&lastUsedModel,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	if rootHex != "" {
		md.LatestRootBlobID, err = hex.DecodeString(rootHex)
		if err != nil {
			return nil, fmt.Errorf("decoding latest root blob id: %w", err)
		}
	}
	if lastUsedModel.Valid {
		md.LastUsedModel = lastUsedModel.String
	}
	md.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &md, nil
}

// SaveMetadata saves or updates session metadata.
// Uses INSERT OR REPLACE to handle both insert and update cases.
func (s *SQLiteStore) SaveMetadata(ctx context.Context, sessionID string, md *Metadata) error {
	query := `
		INSERT OR REPLACE INTO sessions
			(session_id, agent_id, latest_root_blob_id, name, mode, last_used_model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var lastUsedModel sql.NullString
	if md.LastUsedModel != "" {
		lastUsedModel = sql.NullString{String: md.LastUsedModel, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		sessionID,
		md.AgentID,
		hex.EncodeToString(md.LatestRootBlobID),
		md.Name,
		md.Mode,
		lastUsedModel,
		md.CreatedAt.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	s.logger.Debug("saved session metadata", "session_id", sessionID, "agent_id", md.AgentID)
	return nil
}
