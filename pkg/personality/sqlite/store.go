// Package sqlite provides a SQLite implementation of personality.Store.
//
// Vectors live in one row per user; every update is appended to a history
// table with the old vector, the new vector, the delta and a reason.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/oceanbase/vira-go/pkg/personality"
)

// Store implements personality.Store using SQLite as the backend.
type Store struct {
	// db is the SQLite database connection.
	db *sql.DB

	// tableName stores the current vector per user.
	tableName string

	// historyTable stores one row per change.
	historyTable string
}

// Config contains configuration for creating a SQLite personality store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// TableName is the vector table (default: "vira_personality_vectors").
	// The history table is TableName + "_history".
	TableName string
}

// NewStore creates a new SQLite personality store.
//
// Parameters:
//   - cfg: Configuration containing database path and table name
//
// Returns:
//   - *Store: The store instance
//   - error: Error if database connection or table creation fails
func NewStore(cfg *Config) (*Store, error) {
	tableName := cfg.TableName
	if tableName == "" {
		tableName = "vira_personality_vectors"
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:           db,
		tableName:    tableName,
		historyTable: tableName + "_history",
	}

	if err := store.initTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) initTables(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				user_id TEXT PRIMARY KEY,
				vector TEXT NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)
		`, s.tableName),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id TEXT NOT NULL,
				old_vector TEXT,
				new_vector TEXT NOT NULL,
				delta TEXT,
				reason TEXT,
				created_at TIMESTAMP NOT NULL
			)
		`, s.historyTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_user ON %s(user_id, id)`, s.historyTable, s.historyTable),
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Get returns the stored vector of userID, or personality.Default().
func (s *Store) Get(ctx context.Context, userID string) (personality.Vector, error) {
	query := fmt.Sprintf("SELECT vector FROM %s WHERE user_id = ?", s.tableName)

	var raw string
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&raw)
	if err == sql.ErrNoRows {
		return personality.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vector: %w", err)
	}

	return decodeVector(raw)
}

// Save upserts the new vector and appends the change to the history, in
// one transaction.
//
// Parameters:
//   - ctx: Context for cancellation
//   - userID: User identifier
//   - change: The update; change.New is stored
func (s *Store) Save(ctx context.Context, userID string, change personality.Change) error {
	if change.At.IsZero() {
		change.At = time.Now().UTC()
	}

	newJSON, err := encodeVector(change.New)
	if err != nil {
		return err
	}
	oldJSON, err := encodeVector(change.Old)
	if err != nil {
		return err
	}
	deltaJSON, err := encodeVector(change.Delta)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	upsert := fmt.Sprintf(`
		INSERT INTO %s (user_id, vector, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET vector = excluded.vector, updated_at = excluded.updated_at
	`, s.tableName)
	if _, err := tx.ExecContext(ctx, upsert, userID, newJSON, change.At); err != nil {
		return fmt.Errorf("failed to save vector: %w", err)
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (user_id, old_vector, new_vector, delta, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.historyTable)
	if _, err := tx.ExecContext(ctx, insert, userID, oldJSON, newJSON, deltaJSON, change.Reason, change.At); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}

	return tx.Commit()
}

// History returns up to limit changes of userID, newest first.
func (s *Store) History(ctx context.Context, userID string, limit int) ([]personality.Change, error) {
	query := fmt.Sprintf(`
		SELECT old_vector, new_vector, delta, reason, created_at
		FROM %s
		WHERE user_id = ?
		ORDER BY id DESC
	`, s.historyTable)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var changes []personality.Change
	for rows.Next() {
		var oldJSON, newJSON, deltaJSON, reason sql.NullString
		var change personality.Change
		if err := rows.Scan(&oldJSON, &newJSON, &deltaJSON, &reason, &change.At); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		if change.Old, err = decodeVector(oldJSON.String); err != nil {
			return nil, err
		}
		if change.New, err = decodeVector(newJSON.String); err != nil {
			return nil, err
		}
		if change.Delta, err = decodeVector(deltaJSON.String); err != nil {
			return nil, err
		}
		change.Reason = reason.String
		changes = append(changes, change)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return changes, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func encodeVector(v personality.Vector) (string, error) {
	if v == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal vector: %w", err)
	}
	return string(raw), nil
}

func decodeVector(raw string) (personality.Vector, error) {
	v := personality.Vector{}
	if raw == "" {
		return v, nil
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vector: %w", err)
	}
	return v, nil
}
