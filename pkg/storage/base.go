// Package storage defines the memory store used by the assistant.
//
// A store persists three record kinds: long-term memories (text + embedding +
// metadata, searched by vector similarity), short-term memories (session
// scoped text, read by recency) and the interaction log (one row per turn).
// Backends live in sub-packages: sqlite, postgres, oceanbase and memory.
package storage

import (
	"context"
	"errors"
	"time"
)

// Errors shared by all backends.
var (
	// ErrUserRequired is returned when a user-scoped call has an empty user ID.
	ErrUserRequired = errors.New("user id is required")

	// ErrSessionRequired is returned when a session-scoped call has an empty session ID.
	ErrSessionRequired = errors.New("session id is required")

	// ErrUnknownUser is returned when a record references a user that was never registered.
	ErrUnknownUser = errors.New("user does not exist")

	// ErrDimensionMismatch is returned when an embedding has the wrong length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// LongTermRecord is a durable, semantically searchable memory.
type LongTermRecord struct {
	// ID is the unique identifier of the record.
	ID int64

	// UserID identifies the owner.
	UserID string

	// Content is the remembered text.
	Content string

	// Embedding is the vector used for similarity search.
	Embedding []float64

	// Metadata holds user_id, importance_score, memory_type, tags and more.
	Metadata map[string]interface{}

	// CreatedAt is when the record was written.
	CreatedAt time.Time

	// Similarity is the cosine similarity to the query (search results only).
	Similarity float64
}

// ShortTermRecord is one exchange in a session.
type ShortTermRecord struct {
	ID        int64
	SessionID string
	Content   string
	CreatedAt time.Time
}

// InteractionRecord is the audit log entry of one turn.
type InteractionRecord struct {
	ID         int64
	UserID     string
	Message    string
	Response   string
	IntentType string
	CreatedAt  time.Time
}

// MemoryStore is the persistence contract of the assistant.
//
// Every method is its own atomic unit and is safe for concurrent use.
// Recent* methods return the newest records first.
type MemoryStore interface {
	// EnsureUser registers userID if it is not known yet. Records can only
	// be written for registered users.
	EnsureUser(ctx context.Context, userID string) error

	// StoreLongTerm writes a long-term memory and returns its ID.
	StoreLongTerm(ctx context.Context, userID, content string, embedding []float64, metadata map[string]interface{}) (int64, error)

	// StoreShortTerm writes a session-scoped memory and returns its ID.
	StoreShortTerm(ctx context.Context, sessionID, content string) (int64, error)

	// StoreInteraction writes an interaction log entry and returns its ID.
	StoreInteraction(ctx context.Context, userID, message, response, intent string) (int64, error)

	// SimilaritySearch returns up to topK long-term memories of userID,
	// ordered by descending cosine similarity.
	SimilaritySearch(ctx context.Context, userID string, embedding []float64, topK int) ([]*LongTermRecord, error)

	// RecentShortTerm returns up to limit short-term records of sessionID.
	RecentShortTerm(ctx context.Context, sessionID string, limit int) ([]*ShortTermRecord, error)

	// RecentInteractions returns up to limit interactions of userID.
	RecentInteractions(ctx context.Context, userID string, limit int) ([]*InteractionRecord, error)

	// Close releases the store's resources.
	Close() error
}
