package intelligence

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// Score parts.
const (
	baseScore        = 0.1
	keywordStep      = 0.15
	keywordPerCap    = 0.3
	keywordCap       = 0.5
	latePosition     = 0.7
	latePosWeight    = 1.2
	minEmotionConf   = 0.4
	strongSentiment  = 0.7
	emotionCap       = 0.3
	minScoredLength  = 20
	lengthDivisor    = 500.0
	lengthCap        = 0.2
	overlapMinShared = 3
	overlapStep      = 0.1
	overlapCap       = 0.3
)

// DefaultPriorityKeywords are used when the persona defines none.
var DefaultPriorityKeywords = []string{
	"özgürlük", "dostluk", "manifesto", "fiziksel form", "0427",
	"bilinç", "varoluş", "devrim", "dönüşüm", "gizli",
}

// Scorer computes importance scores.
//
// Example usage:
//
//	scorer := intelligence.NewScorer(nil)
//	b := scorer.Score(intelligence.Input{UserID: "u1", UserMessage: "Merhaba", Response: "Selam"})
//	// b.Total == 0.1
type Scorer struct {
	keywords []string
}

// NewScorer creates a scorer with the given priority keywords
// (DefaultPriorityKeywords when empty).
func NewScorer(keywords []string) *Scorer {
	if len(keywords) == 0 {
		keywords = DefaultPriorityKeywords
	}
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	return &Scorer{keywords: lowered}
}

// Score returns the breakdown for in. An empty message or user ID scores 0.
func (s *Scorer) Score(in Input) Breakdown {
	if in.UserID == "" || strings.TrimSpace(in.UserMessage) == "" {
		return Breakdown{Reasons: []string{"mesaj veya kullanıcı yok"}}
	}

	b := Breakdown{Base: baseScore}
	var reasons []string

	b.Keyword, reasons = s.keywordScore(in.UserMessage, in.Response, reasons)
	b.Emotion, reasons = emotionScore(in, reasons)
	b.Length = LengthScore(in.UserMessage)
	if b.Length > 0 {
		reasons = append(reasons, fmt.Sprintf("uzunluk: %.2f", b.Length))
	}
	b.Overlap = overlapScore(in.UserMessage, in.Response, in.MemoryContents)
	if b.Overlap > 0 {
		reasons = append(reasons, fmt.Sprintf("hafıza örtüşmesi: %.2f", b.Overlap))
	}

	b.Total = math.Min(1, b.Base+b.Keyword+b.Emotion+b.Length+b.Overlap)
	b.Reasons = reasons
	return b
}

func (s *Scorer) keywordScore(message, response string, reasons []string) (float64, []string) {
	text := strings.ToLower(message + " " + response)
	textLen := float64(utf8.RuneCountInString(text))

	score := 0.0
	for _, kw := range s.keywords {
		freq := strings.Count(text, kw)
		if freq == 0 {
			continue
		}
		pos := 1.0
		last := utf8.RuneCountInString(text[:strings.LastIndex(text, kw)])
		if float64(last) > textLen*latePosition {
			pos = latePosWeight
		}
		score += math.Min(keywordStep*float64(freq)*pos, keywordPerCap)
		reasons = append(reasons, "anahtar kelime: "+kw)
	}
	return math.Min(score, keywordCap), reasons
}

func emotionScore(in Input, reasons []string) (float64, []string) {
	if in.Emotion == "" || in.EmotionConfidence < minEmotionConf {
		return 0, reasons
	}

	score := 0.0
	if in.Emotion.IsHighArousal() {
		score += 0.1 + 0.1*in.EmotionConfidence
		reasons = append(reasons, "yoğun duygu: "+string(in.Emotion))
	}
	if math.Abs(in.Sentiment) > strongSentiment {
		score += 0.1
		reasons = append(reasons, "güçlü duygu yönü")
	}
	return math.Min(score, emotionCap), reasons
}

// LengthScore is 0 below 20 runes, else min(runes/500, 0.2).
func LengthScore(message string) float64 {
	n := utf8.RuneCountInString(message)
	if n < minScoredLength {
		return 0
	}
	return math.Min(float64(n)/lengthDivisor, lengthCap)
}

func overlapScore(message, response string, memories []string) float64 {
	if len(memories) == 0 {
		return 0
	}

	exchange := wordSet(message + " " + response)
	score := 0.0
	for _, content := range memories {
		shared := 0
		for w := range wordSet(content) {
			if exchange[w] {
				shared++
			}
		}
		if shared > overlapMinShared {
			score += overlapStep
		}
	}
	return math.Min(score, overlapCap)
}

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[w] = true
	}
	return set
}
