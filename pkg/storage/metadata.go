package storage

import (
	"encoding/json"
	"fmt"
)

// EncodeMetadata serializes metadata for a TEXT/JSON column. Nil encodes as "{}".
func EncodeMetadata(metadata map[string]interface{}) (string, error) {
	if metadata == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(raw), nil
}

// DecodeMetadata parses a metadata column. Empty input yields an empty map.
func DecodeMetadata(raw string) (map[string]interface{}, error) {
	metadata := map[string]interface{}{}
	if raw == "" {
		return metadata, nil
	}
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return metadata, nil
}

// CopyMetadata returns a shallow copy of metadata.
func CopyMetadata(metadata map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
