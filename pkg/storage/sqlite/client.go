// Package sqlite provides the SQLite implementation of storage.MemoryStore.
//
// SQLite suits local development and the single-user CLI. Embeddings are
// stored as JSON in TEXT columns and similarity is computed in process.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/oceanbase/vira-go/pkg/storage"
)

// Client implements storage.MemoryStore using SQLite.
type Client struct {
	db         *sql.DB
	ids        storage.IDGenerator
	dimensions int
	tables     tableNames
}

// Config contains configuration for the SQLite store.
type Config struct {
	// DBPath is the path to the database file. Parent directories are created.
	DBPath string

	// TablePrefix is prepended to every table name (default "vira_").
	TablePrefix string

	// EmbeddingModelDims is the expected embedding length (0 disables the check).
	EmbeddingModelDims int
}

// NewClient opens (and if needed creates) the database and its tables.
//
// Parameters:
//   - cfg: database path, table prefix and embedding dimensions
//   - ids: record ID generator
//
// Returns:
//   - *Client: the store
//   - error: if the connection or schema creation fails
func NewClient(cfg *Config, ids storage.IDGenerator) (*Client, error) {
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("NewSQLiteClient: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	client := &Client{
		db:         db,
		ids:        ids,
		dimensions: cfg.EmbeddingModelDims,
		tables:     newTableNames(cfg.TablePrefix),
	}

	if err := client.initTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return client, nil
}

func (c *Client) initTables(ctx context.Context) error {
	t := c.tables
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL
		)`, t.users),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES %s(id),
			content TEXT NOT NULL,
			embedding TEXT NOT NULL,
			metadata TEXT,
			created_at DATETIME NOT NULL
		)`, t.longTerm, t.users),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_user ON %s(user_id)`, t.longTerm, t.longTerm),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			session_id TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`, t.shortTerm),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_session ON %s(session_id, created_at)`, t.shortTerm, t.shortTerm),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES %s(id),
			message TEXT NOT NULL,
			response TEXT NOT NULL,
			intent_type TEXT,
			created_at DATETIME NOT NULL
		)`, t.interactions, t.users),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_user ON %s(user_id, created_at)`, t.interactions, t.interactions),
	}

	for _, stmt := range statements {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("initTables: %w", err)
		}
	}
	return nil
}

// EnsureUser registers userID. Registering an existing user is a no-op.
func (c *Client) EnsureUser(ctx context.Context, userID string) error {
	if userID == "" {
		return storage.ErrUserRequired
	}
	query := fmt.Sprintf(`INSERT OR IGNORE INTO %s (id, created_at) VALUES (?, ?)`, c.tables.users)
	if _, err := c.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("EnsureUser: %w", err)
	}
	return nil
}

// StoreLongTerm writes a long-term memory. The embedding is stored as JSON.
func (c *Client) StoreLongTerm(ctx context.Context, userID, content string, embedding []float64, metadata map[string]interface{}) (int64, error) {
	if userID == "" {
		return 0, storage.ErrUserRequired
	}
	if err := storage.CheckDimensions(embedding, c.dimensions); err != nil {
		return 0, fmt.Errorf("StoreLongTerm: %w", err)
	}

	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return 0, fmt.Errorf("StoreLongTerm: %w", err)
	}
	metadataJSON, err := storage.EncodeMetadata(metadata)
	if err != nil {
		return 0, fmt.Errorf("StoreLongTerm: %w", err)
	}

	id := c.ids.Generate()
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, content, embedding, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.tables.longTerm)

	_, err = c.db.ExecContext(ctx, query, id, userID, content, string(embeddingJSON), metadataJSON, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("StoreLongTerm: %w", translateError(err))
	}
	return id, nil
}

// StoreShortTerm writes a session-scoped memory.
func (c *Client) StoreShortTerm(ctx context.Context, sessionID, content string) (int64, error) {
	if sessionID == "" {
		return 0, storage.ErrSessionRequired
	}

	id := c.ids.Generate()
	query := fmt.Sprintf(`INSERT INTO %s (id, session_id, content, created_at) VALUES (?, ?, ?, ?)`, c.tables.shortTerm)
	if _, err := c.db.ExecContext(ctx, query, id, sessionID, content, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("StoreShortTerm: %w", err)
	}
	return id, nil
}

// StoreInteraction writes an interaction log entry.
func (c *Client) StoreInteraction(ctx context.Context, userID, message, response, intent string) (int64, error) {
	if userID == "" {
		return 0, storage.ErrUserRequired
	}

	id := c.ids.Generate()
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, message, response, intent_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.tables.interactions)

	if _, err := c.db.ExecContext(ctx, query, id, userID, message, response, intent, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("StoreInteraction: %w", translateError(err))
	}
	return id, nil
}

// SimilaritySearch loads the user's memories and ranks them by cosine similarity.
func (c *Client) SimilaritySearch(ctx context.Context, userID string, embedding []float64, topK int) ([]*storage.LongTermRecord, error) {
	if userID == "" {
		return nil, storage.ErrUserRequired
	}
	if err := storage.CheckDimensions(embedding, c.dimensions); err != nil {
		return nil, fmt.Errorf("SimilaritySearch: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, content, embedding, metadata, created_at
		FROM %s WHERE user_id = ?
	`, c.tables.longTerm)

	rows, err := c.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("SimilaritySearch: %w", err)
	}
	defer rows.Close()

	var records []*storage.LongTermRecord
	for rows.Next() {
		rec, err := scanLongTerm(rows)
		if err != nil {
			return nil, fmt.Errorf("SimilaritySearch: %w", err)
		}
		rec.Similarity = storage.CosineSimilarity(embedding, rec.Embedding)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SimilaritySearch: %w", err)
	}

	return storage.RankBySimilarity(records, topK), nil
}

// RecentShortTerm returns the newest short-term records of a session.
func (c *Client) RecentShortTerm(ctx context.Context, sessionID string, limit int) ([]*storage.ShortTermRecord, error) {
	if sessionID == "" {
		return nil, storage.ErrSessionRequired
	}

	query := fmt.Sprintf(`
		SELECT id, session_id, content, created_at FROM %s
		WHERE session_id = ? ORDER BY created_at DESC, id DESC%s
	`, c.tables.shortTerm, limitClause(limit))

	rows, err := c.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("RecentShortTerm: %w", err)
	}
	defer rows.Close()

	var records []*storage.ShortTermRecord
	for rows.Next() {
		var rec storage.ShortTermRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Content, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("RecentShortTerm: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// RecentInteractions returns the newest interactions of a user.
func (c *Client) RecentInteractions(ctx context.Context, userID string, limit int) ([]*storage.InteractionRecord, error) {
	if userID == "" {
		return nil, storage.ErrUserRequired
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, message, response, intent_type, created_at FROM %s
		WHERE user_id = ? ORDER BY created_at DESC, id DESC%s
	`, c.tables.interactions, limitClause(limit))

	rows, err := c.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("RecentInteractions: %w", err)
	}
	defer rows.Close()

	var records []*storage.InteractionRecord
	for rows.Next() {
		var rec storage.InteractionRecord
		var intent sql.NullString
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Message, &rec.Response, &intent, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("RecentInteractions: %w", err)
		}
		rec.IntentType = intent.String
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Close closes the database connection.
func (c *Client) Close() error {
	return c.db.Close()
}

func scanLongTerm(rows *sql.Rows) (*storage.LongTermRecord, error) {
	var rec storage.LongTermRecord
	var embeddingStr string
	var metadataStr sql.NullString

	if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Content, &embeddingStr, &metadataStr, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(embeddingStr), &rec.Embedding); err != nil {
		return nil, fmt.Errorf("parse embedding: %w", err)
	}
	metadata, err := storage.DecodeMetadata(metadataStr.String)
	if err != nil {
		return nil, err
	}
	rec.Metadata = metadata
	return &rec, nil
}

// translateError maps foreign key violations to storage.ErrUnknownUser.
func translateError(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
		return storage.ErrUnknownUser
	}
	return err
}
