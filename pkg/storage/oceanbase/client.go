// Package oceanbase provides the OceanBase implementation of
// storage.MemoryStore using the MySQL protocol and OceanBase's native VECTOR
// type. Similarity search runs in the database with cosine_distance.
package oceanbase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/oceanbase/vira-go/pkg/storage"
)

// errNoReferencedRow is the MySQL error number for FK violations on insert.
const errNoReferencedRow = 1452

// Client is an OceanBase store.
type Client struct {
	db         *sql.DB
	ids        storage.IDGenerator
	dimensions int
	tables     tableNames
}

// Config contains OceanBase configuration.
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	DBName             string
	TablePrefix        string
	EmbeddingModelDims int
}

// NewClient connects and creates the tables.
func NewClient(cfg *Config, ids storage.IDGenerator) (*Client, error) {
	if cfg.EmbeddingModelDims <= 0 {
		return nil, fmt.Errorf("NewOceanBaseClient: embedding dimensions are required")
	}

	dsnConfig := mysql.NewConfig()
	dsnConfig.User = cfg.User
	dsnConfig.Passwd = cfg.Password
	dsnConfig.Net = "tcp"
	dsnConfig.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	dsnConfig.DBName = cfg.DBName
	dsnConfig.ParseTime = true
	dsnConfig.Loc = time.UTC

	db, err := sql.Open("mysql", dsnConfig.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("NewOceanBaseClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewOceanBaseClient: %w", err)
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
			id VARCHAR(255) PRIMARY KEY,
			created_at DATETIME(6) NOT NULL
		)`, t.users),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			content LONGTEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			metadata JSON,
			created_at DATETIME(6) NOT NULL,
			INDEX idx_user (user_id),
			FOREIGN KEY (user_id) REFERENCES %s(id)
		)`, t.longTerm, c.dimensions, t.users),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			session_id VARCHAR(255) NOT NULL,
			content LONGTEXT NOT NULL,
			created_at DATETIME(6) NOT NULL,
			INDEX idx_session (session_id, created_at)
		)`, t.shortTerm),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			message LONGTEXT NOT NULL,
			response LONGTEXT NOT NULL,
			intent_type VARCHAR(64),
			created_at DATETIME(6) NOT NULL,
			INDEX idx_user (user_id, created_at),
			FOREIGN KEY (user_id) REFERENCES %s(id)
		)`, t.interactions, t.users),
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
	query := fmt.Sprintf(`INSERT IGNORE INTO %s (id, created_at) VALUES (?, ?)`, c.tables.users)
	if _, err := c.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("EnsureUser: %w", err)
	}
	return nil
}

// StoreLongTerm writes a long-term memory.
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
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.tables.longTerm)

	_, err = c.db.ExecContext(ctx, query, id, userID, content, vectorToString(embedding), metadataJSON, time.Now().UTC())
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

// SimilaritySearch orders by cosine_distance in the database.
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
		       cosine_distance(embedding, ?) AS distance
		FROM %s
		WHERE user_id = ?
		ORDER BY distance ASC, created_at DESC, id DESC
		LIMIT ?
	`, c.tables.longTerm)

	rows, err := c.db.QueryContext(ctx, query, vectorToString(embedding), userID, topK)
	if err != nil {
		return nil, fmt.Errorf("SimilaritySearch: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*storage.LongTermRecord
	for rows.Next() {
		var rec storage.LongTermRecord
		var embeddingStr string
		var metadataStr sql.NullString
		var distance float64

		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Content, &embeddingStr, &metadataStr, &rec.CreatedAt, &distance); err != nil {
			return nil, fmt.Errorf("SimilaritySearch: %w", err)
		}
		if rec.Embedding, err = stringToVector(embeddingStr); err != nil {
			return nil, fmt.Errorf("SimilaritySearch: %w", err)
		}
		if rec.Metadata, err = storage.DecodeMetadata(metadataStr.String); err != nil {
			return nil, fmt.Errorf("SimilaritySearch: %w", err)
		}
		rec.Similarity = 1 - distance
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
		WHERE session_id = ? ORDER BY created_at DESC, id DESC%s
	`, c.tables.shortTerm, limitClause(limit))

	rows, err := c.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("RecentShortTerm: %w", err)
	}
	defer func() { _ = rows.Close() }()

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
	defer func() { _ = rows.Close() }()

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
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == errNoReferencedRow {
		return storage.ErrUnknownUser
	}
	return err
}
