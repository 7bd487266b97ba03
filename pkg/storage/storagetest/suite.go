// Package storagetest holds the behavior every storage.MemoryStore backend
// must satisfy, run against each backend from its own tests.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/vira-go/pkg/storage"
)

// Factory creates a fresh, empty store for one subtest. The store must
// accept 3-dimensional embeddings.
type Factory func(t *testing.T) storage.MemoryStore

// Run executes the shared store behavior against factory.
func Run(t *testing.T, factory Factory) {
	t.Run("LongTermRequiresRegisteredUser", func(t *testing.T) {
		store := factory(t)
		_, err := store.StoreLongTerm(context.Background(), "ghost", "x", []float64{1, 0, 0}, nil)
		assert.ErrorIs(t, err, storage.ErrUnknownUser)
	})

	t.Run("InteractionRequiresRegisteredUser", func(t *testing.T) {
		store := factory(t)
		_, err := store.StoreInteraction(context.Background(), "ghost", "m", "r", "unknown")
		assert.ErrorIs(t, err, storage.ErrUnknownUser)
	})

	t.Run("EmptyIdentifiersRejected", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		assert.ErrorIs(t, store.EnsureUser(ctx, ""), storage.ErrUserRequired)
		_, err := store.StoreShortTerm(ctx, "", "x")
		assert.ErrorIs(t, err, storage.ErrSessionRequired)
		_, err = store.SimilaritySearch(ctx, "", []float64{1, 0, 0}, 5)
		assert.ErrorIs(t, err, storage.ErrUserRequired)
	})

	t.Run("EnsureUserIsIdempotent", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		require.NoError(t, store.EnsureUser(ctx, "u1"))
		require.NoError(t, store.EnsureUser(ctx, "u1"))
	})

	t.Run("SimilaritySearchOrdersAndLimits", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		require.NoError(t, store.EnsureUser(ctx, "u1"))
		require.NoError(t, store.EnsureUser(ctx, "u2"))

		_, err := store.StoreLongTerm(ctx, "u1", "far", []float64{0, 1, 0}, nil)
		require.NoError(t, err)
		_, err = store.StoreLongTerm(ctx, "u1", "exact", []float64{1, 0, 0}, map[string]interface{}{"memory_type": "factual"})
		require.NoError(t, err)
		_, err = store.StoreLongTerm(ctx, "u1", "close", []float64{0.9, 0.1, 0}, nil)
		require.NoError(t, err)
		_, err = store.StoreLongTerm(ctx, "u2", "other user", []float64{1, 0, 0}, nil)
		require.NoError(t, err)

		results, err := store.SimilaritySearch(ctx, "u1", []float64{1, 0, 0}, 5)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "exact", results[0].Content)
		assert.Equal(t, "close", results[1].Content)
		assert.Equal(t, "far", results[2].Content)
		assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
		assert.Equal(t, "factual", results[0].Metadata["memory_type"])
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
		}

		limited, err := store.SimilaritySearch(ctx, "u1", []float64{1, 0, 0}, 2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})

	t.Run("RecentShortTermNewestFirst", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		for i := 0; i < 4; i++ {
			_, err := store.StoreShortTerm(ctx, "s1", fmt.Sprintf("turn %d", i))
			require.NoError(t, err)
		}
		_, err := store.StoreShortTerm(ctx, "s2", "elsewhere")
		require.NoError(t, err)

		recent, err := store.RecentShortTerm(ctx, "s1", 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, "turn 3", recent[0].Content)
		assert.Equal(t, "turn 2", recent[1].Content)

		none, err := store.RecentShortTerm(ctx, "missing", 5)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("RecentInteractionsNewestFirst", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		require.NoError(t, store.EnsureUser(ctx, "u1"))
		for i := 0; i < 3; i++ {
			_, err := store.StoreInteraction(ctx, "u1", fmt.Sprintf("m%d", i), fmt.Sprintf("r%d", i), "question")
			require.NoError(t, err)
		}

		recent, err := store.RecentInteractions(ctx, "u1", 5)
		require.NoError(t, err)
		require.Len(t, recent, 3)
		assert.Equal(t, "m2", recent[0].Message)
		assert.Equal(t, "r2", recent[0].Response)
		assert.Equal(t, "question", recent[0].IntentType)
	})

	t.Run("ConcurrentWritesAcrossUsers", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		for u := 0; u < 4; u++ {
			userID := fmt.Sprintf("user-%d", u)
			require.NoError(t, store.EnsureUser(ctx, userID))
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 5; i++ {
					_, err := store.StoreInteraction(ctx, userID, "m", "r", "unknown")
					assert.NoError(t, err)
				}
			}()
		}
		wg.Wait()

		for u := 0; u < 4; u++ {
			recent, err := store.RecentInteractions(ctx, fmt.Sprintf("user-%d", u), 0)
			require.NoError(t, err)
			assert.Len(t, recent, 5)
		}
	})
}
