package oceanbase

import (
	"fmt"
	"strconv"
	"strings"
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

// vectorToString renders the OceanBase VECTOR literal, e.g. "[0.1,0.2,0.3]".
func vectorToString(vector []float64) string {
	parts := make([]string, len(vector))
	for i, v := range vector {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// stringToVector parses a VECTOR literal.
func stringToVector(s string) ([]float64, error) {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return []float64{}, nil
	}

	parts := strings.Split(s, ",")
	result := make([]float64, len(parts))
	for i, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("parse vector: %w", err)
		}
		result[i] = val
	}
	return result, nil
}
