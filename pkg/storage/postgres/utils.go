package postgres

import (
	"fmt"

	"github.com/pgvector/pgvector-go"
)

type tableNames struct {
	users        string
	longTerm     string
	shortTerm    string
	interactions string
}

func newTableNames(prefix string) tableNames {
	if prefix == "" {
		prefix = "vira_"
	}
	return tableNames{
		users:        prefix + "users",
		longTerm:     prefix + "long_term_memories",
		shortTerm:    prefix + "short_term_memories",
		interactions: prefix + "interactions",
	}
}

func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}

// toVector converts to pgvector's float32 representation.
func toVector(embedding []float64) pgvector.Vector {
	f32 := make([]float32, len(embedding))
	for i, v := range embedding {
		f32[i] = float32(v)
	}
	return pgvector.NewVector(f32)
}

func fromVector(vec pgvector.Vector) []float64 {
	f32 := vec.Slice()
	out := make([]float64, len(f32))
	for i, v := range f32 {
		out[i] = float64(v)
	}
	return out
}
