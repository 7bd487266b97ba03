// Package postgres provides the PostgreSQL + pgvector implementation of
// storage.MemoryStore. Similarity search runs in the database using the
// cosine distance operator (<=>).
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/oceanbase/vira-go/pkg/storage"
	"github.com/pgvector/pgvector-go"
)

// foreignKeyViolation is the PostgreSQL SQLSTATE for FK violations.
const foreignKeyViolation = "23503"

// Client is a PostgreSQL + pgvector store.
type Client struct {
	db         *sql.DB
	ids        storage.IDGenerator
	dimensions int
	tables     tableNames
}

// Config contains PostgreSQL configuration.
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	DBName             string
	TablePrefix        string
	EmbeddingModelDims int
	SSLMode            string
}

// NewClient connects and creates the extension, tables and indexes.
func NewClient(cfg *Config, ids storage.IDGenerator) (*Client, error) {
	if cfg.EmbeddingModelDims <= 0 {
		return nil, fmt.Errorf("NewPostgresClient: embedding dimensions are required")
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
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
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(255) PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, t.users),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL REFERENCES %s(id),
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, t.longTerm, t.users, c.dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_user ON %s(user_id)`, t.longTerm, t.longTerm),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_embedding ON %s USING hnsw (embedding vector_cosine_ops)`, t.longTerm, t.longTerm),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			session_id VARCHAR(255) NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, t.shortTerm),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_session ON %s(session_id, created_at DESC)`, t.shortTerm, t.shortTerm),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL REFERENCES %s(id),
			message TEXT NOT NULL,
			response TEXT NOT NULL,
			intent_type VARCHAR(64),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, t.interactions, t.users),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_user ON %s(user_id, created_at DESC)`, t.interactions, t.interactions),
	}

	for _, stmt := range statements {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("initTables: %w", err)
		}
	}
	return nil
}

// EnsureUser registers userID.
func (c *Client) EnsureUser(ctx context.Context, userID string) error {
	if userID == "" {
		return storage.ErrUserRequired
	}
	query := fmt.Sprintf(`INSERT INTO %s (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, c.tables.users)
	if _, err := c.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("EnsureUser: %w", err)
	}
	return nil
}

// StoreLongTerm writes a long-term memory with a pgvector embedding.
func (c *Client) StoreLongTerm(ctx context.Context, userID, content string, embedding []float64, metadata map[string]interface{}) (int64, error) {
	if userID == "" {
		return 0, storage.ErrUserRequired
	}
	if err := storage.CheckDimensions(embedding, c.dimensions); err != nil {
		return 0, fmt.Errorf("StoreLongTerm: %w", err)
	}

	metadataJSON, err := storage.EncodeMetadata(metadata)
	if err != nil {
		return 0, fmt.Errorf("StoreLongTerm: %w", err)
	}

	id := c.ids.Generate()
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, content, embedding, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.tables.longTerm)

	_, err = c.db.ExecContext(ctx, query, id, userID, content, toVector(embedding), metadataJSON, time.Now().UTC())
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
	query := fmt.Sprintf(`INSERT INTO %s (id, session_id, content, created_at) VALUES ($1, $2, $3, $4)`, c.tables.shortTerm)
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
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.tables.interactions)

	if _, err := c.db.ExecContext(ctx, query, id, userID, message, response, intent, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("StoreInteraction: %w", translateError(err))
	}
	return id, nil
}

// SimilaritySearch orders by cosine distance in the database; similarity is
// reported as 1 - distance.
func (c *Client) SimilaritySearch(ctx context.Context, userID string, embedding []float64, topK int) ([]*storage.LongTermRecord, error) {
	if userID == "" {
		return nil, storage.ErrUserRequired
	}
	if err := storage.CheckDimensions(embedding, c.dimensions); err != nil {
		return nil, fmt.Errorf("SimilaritySearch: %w", err)
	}
	if topK <= 0 {
		topK = 5
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, content, embedding, metadata, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM %s
		WHERE user_id = $2
		ORDER BY embedding <=> $1, created_at DESC, id DESC
		LIMIT $3
	`, c.tables.longTerm)

	rows, err := c.db.QueryContext(ctx, query, toVector(embedding), userID, topK)
	if err != nil {
		return nil, fmt.Errorf("SimilaritySearch: %w", err)
	}
	defer rows.Close()

	var records []*storage.LongTermRecord
	for rows.Next() {
		var rec storage.LongTermRecord
		var vec pgvector.Vector
		var metadataStr sql.NullString

		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Content, &vec, &metadataStr, &rec.CreatedAt, &rec.Similarity); err != nil {
			return nil, fmt.Errorf("SimilaritySearch: %w", err)
		}
		rec.Embedding = fromVector(vec)
		if rec.Metadata, err = storage.DecodeMetadata(metadataStr.String); err != nil {
			return nil, fmt.Errorf("SimilaritySearch: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SimilaritySearch: %w", err)
	}
	return records, nil
}

// RecentShortTerm returns the newest short-term records of a session.
func (c *Client) RecentShortTerm(ctx context.Context, sessionID string, limit int) ([]*storage.ShortTermRecord, error) {
	if sessionID == "" {
		return nil, storage.ErrSessionRequired
	}

	query := fmt.Sprintf(`
		SELECT id, session_id, content, created_at FROM %s
		WHERE session_id = $1 ORDER BY created_at DESC, id DESC%s
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
		WHERE user_id = $1 ORDER BY created_at DESC, id DESC%s
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

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

func translateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		return storage.ErrUnknownUser
	}
	return err
}
