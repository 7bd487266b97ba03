package retrieval_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/vira-go/pkg/embedder/embeddertest"
	"github.com/oceanbase/vira-go/pkg/retrieval"
	"github.com/oceanbase/vira-go/pkg/storage"
	"github.com/oceanbase/vira-go/pkg/storage/memory"
)

func tickingClock(start time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return start.Add(time.Duration(n) * time.Minute)
	}
}

func newStore(t *testing.T) *memory.Store {
	ids, err := storage.NewSnowflakeGenerator(1)
	require.NoError(t, err)
	return memory.NewStore(ids, memory.WithDimensions(3),
		memory.WithClock(tickingClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))))
}

func TestRetrieve_OrdersAndLimits(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureUser(ctx, "u1"))

	for _, rec := range []struct {
		content string
		vec     []float64
	}{
		{"uzak", []float64{0, 1, 0}},
		{"tam", []float64{1, 0, 0}},
		{"yakın", []float64{1, 1, 0}},
	} {
		_, err := store.StoreLongTerm(ctx, "u1", rec.content, rec.vec, map[string]interface{}{"memory_type": "factual", "importance_score": 0.5})
		require.NoError(t, err)
	}

	emb := &embeddertest.Static{Default: []float64{1, 0, 0}}
	r := retrieval.NewRetriever(emb, store, retrieval.Config{}, nil)

	res := r.Retrieve(ctx, "u1", "sorgu", "", 5)

	require.Len(t, res.Memories, 3)
	assert.Equal(t, "tam", res.Memories[0].Content)
	assert.Equal(t, "yakın", res.Memories[1].Content)
	assert.Equal(t, "uzak", res.Memories[2].Content)
	assert.GreaterOrEqual(t, res.Memories[0].Similarity, res.Memories[1].Similarity)
	assert.GreaterOrEqual(t, res.Memories[1].Similarity, res.Memories[2].Similarity)

	assert.Contains(t, res.Context, `1. 💡 "tam" (Benzerlik: 100.0%, Önem: 50%, Tarih: 01/03/2025 10:02)`)
	assert.Contains(t, res.Context, `2. 💡 "yakın" (Benzerlik: 70.7%`)
	assert.NotContains(t, res.Context, "uzak", "below threshold is not formatted")
}

func TestRetrieve_RecentFallsBackToInteractions(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureUser(ctx, "u1"))
	_, err := store.StoreInteraction(ctx, "u1", "ilk", "cevap1", "greeting")
	require.NoError(t, err)
	_, err = store.StoreInteraction(ctx, "u1", "ikinci", "cevap2", "question")
	require.NoError(t, err)

	r := retrieval.NewRetriever(&embeddertest.Static{Default: []float64{1, 0, 0}}, store, retrieval.Config{}, nil)
	res := r.Retrieve(ctx, "u1", "sorgu", "yeni-oturum", 0)

	require.Len(t, res.Recent, 2)
	assert.Equal(t, "ikinci", res.Recent[0].Message)
	assert.Contains(t, res.Context, "💬 Son konuşmalarımız:")
	assert.Contains(t, res.Context, "1. Sen: ikinci\n   Ben: cevap2")
	assert.NotContains(t, res.Context, "🧠")
}

func TestRetrieve_SessionShortTerm(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureUser(ctx, "u1"))
	_, err := store.StoreInteraction(ctx, "u1", "eski", "eski", "greeting")
	require.NoError(t, err)
	_, err = store.StoreShortTerm(ctx, "s1", "Kullanıcı: selam\nVira: merhaba")
	require.NoError(t, err)

	r := retrieval.NewRetriever(&embeddertest.Static{Default: []float64{1, 0, 0}}, store, retrieval.Config{}, nil)
	res := r.Retrieve(ctx, "u1", "sorgu", "s1", 0)

	require.Len(t, res.Recent, 1)
	assert.Contains(t, res.Context, "1. Kullanıcı: selam\n   Vira: merhaba")
	assert.NotContains(t, res.Context, "eski")
}

func TestRetrieve_EmbeddingFailureKeepsRecent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureUser(ctx, "u1"))
	_, err := store.StoreShortTerm(ctx, "s1", "kısa kayıt")
	require.NoError(t, err)

	emb := embeddertest.NewHashing(3)
	emb.Err = errors.New("embedding down")
	r := retrieval.NewRetriever(emb, store, retrieval.Config{}, nil)

	res := r.Retrieve(ctx, "u1", "sorgu", "s1", 0)
	assert.Empty(t, res.Memories)
	assert.Len(t, res.Recent, 1)
	assert.Contains(t, res.Context, "kısa kayıt")
}

func TestRetrieve_MissingInput(t *testing.T) {
	emb := embeddertest.NewHashing(3)
	r := retrieval.NewRetriever(emb, newStore(t), retrieval.Config{}, nil)

	assert.Equal(t, retrieval.Result{}, r.Retrieve(context.Background(), "", "sorgu", "s", 5))
	assert.Equal(t, retrieval.Result{}, r.Retrieve(context.Background(), "u1", "  ", "s", 5))
	assert.Zero(t, emb.Calls())
}

func TestFormatMemories(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC)
	memories := []retrieval.Memory{
		{Content: "düşük", Similarity: 0.75, Timestamp: at, Metadata: map[string]interface{}{"memory_type": "casual"}},
		{Content: " önemli ", Similarity: 0.9, Timestamp: at, Metadata: map[string]interface{}{"memory_type": "important", "importance_score": 0.85}},
		{Content: "başka", Similarity: 0.8, Timestamp: at, Metadata: map[string]interface{}{"memory_type": "insight"}},
		{Content: "elenen", Similarity: 0.2, Timestamp: at},
	}

	want := "🧠 Geçmişten hatırladıklarım:\n\n" +
		"1. ⭐ \"önemli\" (Benzerlik: 90.0%, Önem: 85%, Tarih: 02/01/2025 03:04)\n\n" +
		"2. 🔍 \"başka\" (Benzerlik: 80.0%, Önem: 0%, Tarih: 02/01/2025 03:04)\n\n" +
		"3. 💭 \"düşük\" (Benzerlik: 75.0%, Önem: 0%, Tarih: 02/01/2025 03:04)"

	got := retrieval.FormatMemories(memories, 0.7)
	assert.Equal(t, want, got)
	assert.Equal(t, got, retrieval.FormatMemories(memories, 0.7), "formatting is deterministic")
	assert.Equal(t, "düşük", memories[0].Content, "input order untouched")

	assert.Empty(t, retrieval.FormatMemories(nil, 0.7))
	assert.Empty(t, retrieval.FormatMemories(memories[3:], 0.7))
	assert.Empty(t, retrieval.FormatRecent(nil))
	assert.Empty(t, retrieval.Compose("", ""))
}
