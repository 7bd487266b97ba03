package retrieval

import (
	"fmt"
	"sort"
	"strings"
)

const (
	memoryHeader = "🧠 Geçmişten hatırladıklarım:"
	recentHeader = "💬 Son konuşmalarımız:"
	dateLayout   = "02/01/2006 15:04"
)

// FormatMemories renders memories at or above threshold, most similar
// first. It returns "" when none qualify. The input slice is not modified.
func FormatMemories(memories []Memory, threshold float64) string {
	sorted := append([]Memory(nil), memories...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Similarity > sorted[j].Similarity
	})

	var lines []string
	for _, m := range sorted {
		if m.Similarity < threshold {
			continue
		}
		memoryType, _ := m.Metadata["memory_type"].(string)
		if memoryType == "" {
			memoryType = "casual"
		}
		lines = append(lines, fmt.Sprintf("%d. %s \"%s\" (Benzerlik: %.1f%%, Önem: %.0f%%, Tarih: %s)",
			len(lines)+1,
			memoryEmoji(memoryType),
			strings.TrimSpace(m.Content),
			m.Similarity*100,
			number(m.Metadata["importance_score"])*100,
			m.Timestamp.Format(dateLayout),
		))
	}

	if len(lines) == 0 {
		return ""
	}
	return memoryHeader + "\n\n" + strings.Join(lines, "\n\n")
}

// FormatRecent renders the recent conversation in the given order.
func FormatRecent(entries []RecentEntry) string {
	if len(entries) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(entries))
	for i, e := range entries {
		date := e.At.Format(dateLayout)
		if e.Content != "" {
			blocks = append(blocks, fmt.Sprintf("%d. %s\n   (%s)", i+1, indent(strings.TrimSpace(e.Content)), date))
			continue
		}
		blocks = append(blocks, fmt.Sprintf("%d. Sen: %s\n   Ben: %s\n   (%s)",
			i+1, strings.TrimSpace(e.Message), strings.TrimSpace(e.Response), date))
	}
	return recentHeader + "\n\n" + strings.Join(blocks, "\n\n")
}

// Compose joins the non-empty sections with a blank line.
func Compose(sections ...string) string {
	var parts []string
	for _, s := range sections {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

func memoryEmoji(memoryType string) string {
	switch memoryType {
	case "factual":
		return "💡"
	case "casual":
		return "💭"
	case "important":
		return "⭐"
	default:
		return "🔍"
	}
}

func indent(s string) string {
	return strings.ReplaceAll(s, "\n", "\n   ")
}

func number(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
