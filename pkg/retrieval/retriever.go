// Package retrieval fetches the memory context of a turn: semantically
// similar long-term memories plus the recent conversation.
package retrieval

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oceanbase/vira-go/pkg/embedder"
	"github.com/oceanbase/vira-go/pkg/storage"
)

// Defaults.
const (
	DefaultTopK                = 5
	DefaultSimilarityThreshold = 0.7
	DefaultRecentLimit         = 5
)

// Memory is one retrieved long-term memory.
type Memory struct {
	Content    string
	Similarity float64
	Timestamp  time.Time
	Metadata   map[string]interface{}
}

// RecentEntry is one recent exchange. Short-term records fill Content;
// interactions fill Message and Response.
type RecentEntry struct {
	Content  string
	Message  string
	Response string
	At       time.Time
}

// Result is the outcome of one retrieval.
type Result struct {
	// Context is the formatted block for the prompt; empty when nothing
	// was found.
	Context string

	// Memories is the unfiltered top-K, most similar first.
	Memories []Memory

	// Recent is the recency context, newest first.
	Recent []RecentEntry
}

// Config configures a Retriever.
type Config struct {
	TopK                int
	SimilarityThreshold float64
	RecentLimit         int
}

// Retriever combines similarity search and recency lookups.
type Retriever struct {
	embedder embedder.Provider
	store    storage.MemoryStore
	cfg      Config
	logger   *zap.Logger
}

// NewRetriever creates a Retriever. Zero config values take the defaults.
func NewRetriever(emb embedder.Provider, store storage.MemoryStore, cfg Config, logger *zap.Logger) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = DefaultRecentLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{embedder: emb, store: store, cfg: cfg, logger: logger}
}

// Retrieve returns the memory context for query. topK <= 0 uses the
// configured value. Every sub-step fails independently; a missing user or
// empty query returns an empty Result without touching any collaborator.
func (r *Retriever) Retrieve(ctx context.Context, userID, query, sessionID string, topK int) Result {
	if userID == "" || strings.TrimSpace(query) == "" {
		return Result{}
	}
	if topK <= 0 {
		topK = r.cfg.TopK
	}

	log := r.logger.With(zap.String("user_id", userID))
	var res Result

	if vec, err := r.embedder.Embed(ctx, query); err != nil {
		log.Warn("query embedding failed", zap.Error(err))
	} else if records, err := r.store.SimilaritySearch(ctx, userID, vec, topK); err != nil {
		log.Warn("similarity search failed", zap.Error(err))
	} else {
		res.Memories = toMemories(records)
	}

	res.Recent = r.recent(ctx, log, userID, sessionID)

	res.Context = Compose(
		FormatMemories(res.Memories, r.cfg.SimilarityThreshold),
		FormatRecent(res.Recent),
	)
	log.Debug("memory retrieved",
		zap.Int("long_term", len(res.Memories)),
		zap.Int("recent", len(res.Recent)),
	)
	return res
}

func (r *Retriever) recent(ctx context.Context, log *zap.Logger, userID, sessionID string) []RecentEntry {
	if sessionID != "" {
		records, err := r.store.RecentShortTerm(ctx, sessionID, r.cfg.RecentLimit)
		if err != nil {
			log.Warn("short-term lookup failed", zap.Error(err))
		} else if len(records) > 0 {
			entries := make([]RecentEntry, 0, len(records))
			for _, rec := range records {
				entries = append(entries, RecentEntry{Content: rec.Content, At: rec.CreatedAt})
			}
			return entries
		}
	}

	interactions, err := r.store.RecentInteractions(ctx, userID, r.cfg.RecentLimit)
	if err != nil {
		log.Warn("interaction lookup failed", zap.Error(err))
		return nil
	}
	entries := make([]RecentEntry, 0, len(interactions))
	for _, rec := range interactions {
		entries = append(entries, RecentEntry{Message: rec.Message, Response: rec.Response, At: rec.CreatedAt})
	}
	return entries
}

func toMemories(records []*storage.LongTermRecord) []Memory {
	memories := make([]Memory, 0, len(records))
	for _, rec := range records {
		memories = append(memories, Memory{
			Content:    rec.Content,
			Similarity: rec.Similarity,
			Timestamp:  rec.CreatedAt,
			Metadata:   rec.Metadata,
		})
	}
	return memories
}
