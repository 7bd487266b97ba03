package storage_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/oceanbase/vira-go/pkg/storage"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"length mismatch", []float64{1, 0}, []float64{1, 0, 0}, 0},
		{"zero vector", []float64{0, 0}, []float64{1, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, storage.CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestRankBySimilarity_TieBreak(t *testing.T) {
	now := time.Now()
	records := []*storage.LongTermRecord{
		{ID: 1, Similarity: 0.5, CreatedAt: now},
		{ID: 2, Similarity: 0.9, CreatedAt: now},
		{ID: 3, Similarity: 0.5, CreatedAt: now.Add(time.Second)},
		{ID: 4, Similarity: 0.5, CreatedAt: now},
	}

	ranked := storage.RankBySimilarity(records, 3)

	ids := make([]int64, len(ranked))
	for i, r := range ranked {
		ids[i] = r.ID
	}
	assert.Equal(t, []int64{2, 3, 4}, ids)
}

func TestCheckDimensions(t *testing.T) {
	assert.NoError(t, storage.CheckDimensions([]float64{1, 2}, 2))
	assert.NoError(t, storage.CheckDimensions([]float64{1, 2}, 0))
	assert.ErrorIs(t, storage.CheckDimensions([]float64{1}, 2), storage.ErrDimensionMismatch)
}

func TestMetadataCodec(t *testing.T) {
	raw, err := storage.EncodeMetadata(nil)
	assert.NoError(t, err)
	assert.Equal(t, "{}", raw)

	decoded, err := storage.DecodeMetadata(`{"memory_type":"factual"}`)
	assert.NoError(t, err)
	assert.Equal(t, "factual", decoded["memory_type"])

	empty, err := storage.DecodeMetadata("")
	assert.NoError(t, err)
	assert.Empty(t, empty)
}
