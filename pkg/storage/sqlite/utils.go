package sqlite

import "fmt"

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

// limitClause renders " LIMIT n" for positive n and nothing otherwise.
func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}
