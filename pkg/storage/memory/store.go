// Package memory provides an in-process storage.MemoryStore.
//
// It keeps everything in maps guarded by a RWMutex and computes similarity
// in process. Used by tests and by single-process deployments that do not
// need durability.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oceanbase/vira-go/pkg/storage"
)

// Store is an in-memory storage.MemoryStore.
type Store struct {
	mu sync.RWMutex

	ids        storage.IDGenerator
	dimensions int
	now        func() time.Time

	users        map[string]struct{}
	longTerm     map[string][]*storage.LongTermRecord
	shortTerm    map[string][]*storage.ShortTermRecord
	interactions map[string][]*storage.InteractionRecord
}

// Option configures a Store.
type Option func(*Store)

// WithDimensions enforces the embedding length on writes and searches.
func WithDimensions(dims int) Option {
	return func(s *Store) { s.dimensions = dims }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store using ids for record IDs.
func NewStore(ids storage.IDGenerator, opts ...Option) *Store {
	s := &Store{
		ids:          ids,
		now:          time.Now,
		users:        make(map[string]struct{}),
		longTerm:     make(map[string][]*storage.LongTermRecord),
		shortTerm:    make(map[string][]*storage.ShortTermRecord),
		interactions: make(map[string][]*storage.InteractionRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureUser records userID; repeated calls are no-ops.
func (s *Store) EnsureUser(ctx context.Context, userID string) error {
	if userID == "" {
		return storage.ErrUserRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = struct{}{}
	return nil
}

// StoreLongTerm saves a long-term memory with its embedding and returns its id.
func (s *Store) StoreLongTerm(ctx context.Context, userID, content string, embedding []float64, metadata map[string]interface{}) (int64, error) {
	if userID == "" {
		return 0, storage.ErrUserRequired
	}
	if err := storage.CheckDimensions(embedding, s.dimensions); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return 0, storage.ErrUnknownUser
	}

	rec := &storage.LongTermRecord{
		ID:        s.ids.Generate(),
		UserID:    userID,
		Content:   content,
		Embedding: append([]float64(nil), embedding...),
		Metadata:  storage.CopyMetadata(metadata),
		CreatedAt: s.now(),
	}
	s.longTerm[userID] = append(s.longTerm[userID], rec)
	return rec.ID, nil
}

// StoreShortTerm appends a message to the session's short-term memory.
func (s *Store) StoreShortTerm(ctx context.Context, sessionID, content string) (int64, error) {
	if sessionID == "" {
		return 0, storage.ErrSessionRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &storage.ShortTermRecord{
		ID:        s.ids.Generate(),
		SessionID: sessionID,
		Content:   content,
		CreatedAt: s.now(),
	}
	s.shortTerm[sessionID] = append(s.shortTerm[sessionID], rec)
	return rec.ID, nil
}

// StoreInteraction logs one message/response exchange.
func (s *Store) StoreInteraction(ctx context.Context, userID, message, response, intent string) (int64, error) {
	if userID == "" {
		return 0, storage.ErrUserRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return 0, storage.ErrUnknownUser
	}

	rec := &storage.InteractionRecord{
		ID:         s.ids.Generate(),
		UserID:     userID,
		Message:    message,
		Response:   response,
		IntentType: intent,
		CreatedAt:  s.now(),
	}
	s.interactions[userID] = append(s.interactions[userID], rec)
	return rec.ID, nil
}

// SimilaritySearch returns up to topK of userID's long-term memories ranked by
// cosine similarity to embedding.
func (s *Store) SimilaritySearch(ctx context.Context, userID string, embedding []float64, topK int) ([]*storage.LongTermRecord, error) {
	if userID == "" {
		return nil, storage.ErrUserRequired
	}
	if err := storage.CheckDimensions(embedding, s.dimensions); err != nil {
		return nil, err
	}

	s.mu.RLock()
	results := make([]*storage.LongTermRecord, 0, len(s.longTerm[userID]))
	for _, rec := range s.longTerm[userID] {
		out := *rec
		out.Metadata = storage.CopyMetadata(rec.Metadata)
		out.Similarity = storage.CosineSimilarity(embedding, rec.Embedding)
		results = append(results, &out)
	}
	s.mu.RUnlock()

	return storage.RankBySimilarity(results, topK), nil
}

// RecentShortTerm returns up to limit short-term entries of the session, newest first.
func (s *Store) RecentShortTerm(ctx context.Context, sessionID string, limit int) ([]*storage.ShortTermRecord, error) {
	if sessionID == "" {
		return nil, storage.ErrSessionRequired
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.shortTerm[sessionID]
	out := make([]*storage.ShortTermRecord, 0, len(records))
	for i := len(records) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		rec := *records[i]
		out = append(out, &rec)
	}
	return out, nil
}

// RecentInteractions returns up to limit interactions of userID, newest first.
func (s *Store) RecentInteractions(ctx context.Context, userID string, limit int) ([]*storage.InteractionRecord, error) {
	if userID == "" {
		return nil, storage.ErrUserRequired
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.interactions[userID]
	out := make([]*storage.InteractionRecord, 0, len(records))
	for i := len(records) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		rec := *records[i]
		out = append(out, &rec)
	}
	return out, nil
}

// Counts returns the number of long-term, short-term and interaction records.
func (s *Store) Counts() (longTerm, shortTerm, interactions int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, recs := range s.longTerm {
		longTerm += len(recs)
	}
	for _, recs := range s.shortTerm {
		shortTerm += len(recs)
	}
	for _, recs := range s.interactions {
		interactions += len(recs)
	}
	return longTerm, shortTerm, interactions
}

// Close is a no-op; the store holds no external resources.
func (s *Store) Close() error {
	return nil
}
