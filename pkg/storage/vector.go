package storage

import (
	"math"
	"sort"
)

// CosineSimilarity returns the cosine similarity of a and b, or 0 when the
// lengths differ or either vector is zero.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// RankBySimilarity sorts records by descending Similarity and keeps the
// first topK (all when topK <= 0). Ties are broken by newer CreatedAt, then
// higher ID, so ranking is deterministic.
func RankBySimilarity(records []*LongTermRecord, topK int) []*LongTermRecord {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})

	if topK > 0 && len(records) > topK {
		return records[:topK]
	}
	return records
}

// CheckDimensions returns ErrDimensionMismatch when want > 0 and the vector
// length differs.
func CheckDimensions(embedding []float64, want int) error {
	if want > 0 && len(embedding) != want {
		return ErrDimensionMismatch
	}
	return nil
}
