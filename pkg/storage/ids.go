package storage

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// IDGenerator produces unique, roughly time-ordered record IDs.
type IDGenerator interface {
	Generate() int64
}

// SnowflakeGenerator generates IDs with a snowflake node.
type SnowflakeGenerator struct {
	node *snowflake.Node
}

// NewSnowflakeGenerator creates a generator for the given node number (0-1023).
// Processes writing to the same database must use different node numbers.
func NewSnowflakeGenerator(node int64) (*SnowflakeGenerator, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("NewSnowflakeGenerator: %w", err)
	}
	return &SnowflakeGenerator{node: n}, nil
}

// Generate returns the next ID.
func (g *SnowflakeGenerator) Generate() int64 {
	return g.node.Generate().Int64()
}
