package intelligence

import (
	"fmt"
	"strings"

	"github.com/oceanbase/vira-go/pkg/intent"
)

// Memory types stored in long-term metadata.
const (
	MemoryTypeImportant = "important"
	MemoryTypeFactual   = "factual"
	MemoryTypeCasual    = "casual"
)

var factualIntents = map[intent.Label]bool{
	intent.Information:   true,
	intent.Question:      true,
	intent.Command:       true,
	intent.TechnicalHelp: true,
	intent.Learning:      true,
}

// ClassifyMemoryType returns important for scores above 0.8, factual for
// informational intents and casual otherwise. A semantic type, when given,
// replaces the intent-based choice but never overrides important.
func ClassifyMemoryType(score float64, label intent.Label, semantic *SemanticResult) string {
	if score > 0.8 {
		return MemoryTypeImportant
	}
	if semantic != nil && semantic.MemoryType != "" {
		return semantic.MemoryType
	}
	if factualIntents[label] {
		return MemoryTypeFactual
	}
	return MemoryTypeCasual
}

// Tags returns the tag list stored with a long-term memory.
func Tags(label intent.Label, emotion string, score float64, memoryType string) []string {
	tags := []string{fmt.Sprintf("intent_%s", label)}
	if emotion != "" {
		tags = append(tags, "emotion_"+emotion)
	}

	switch {
	case score > 0.8:
		tags = append(tags, "high_importance")
	case score > 0.6:
		tags = append(tags, "medium_importance")
	default:
		tags = append(tags, "low_importance")
	}

	if memoryType != "" {
		tags = append(tags, "memory_type_"+memoryType)
	}
	if label == intent.Omega {
		tags = append(tags, "omega_command")
	}
	return tags
}

func normalizeMemoryType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	switch t {
	case "fact", "factual_info":
		return MemoryTypeFactual
	}
	return t
}
