// Package input analyses a raw user message before the rest of the turn runs:
// emotion with confidence, sentiment direction, formality, entities and
// question detection. All detection is keyword based and deterministic.
package input

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Emotion is a detected emotional state.
type Emotion string

// Emotions. The first group is high arousal.
const (
	Anger      Emotion = "anger"
	Excitement Emotion = "excitement"
	Fear       Emotion = "fear"
	Surprise   Emotion = "surprise"
	Joy        Emotion = "joy"
	Hope       Emotion = "hope"
	Sadness    Emotion = "sadness"
	Anxiety    Emotion = "anxiety"

	Curiosity    Emotion = "curiosity"
	Supportive   Emotion = "supportive"
	Motivational Emotion = "motivational"
	Reflective   Emotion = "reflective"
	Neutral      Emotion = "neutral"
	Calm         Emotion = "calm"
	Unclear      Emotion = "unclear"
)

var highArousal = map[Emotion]bool{
	Anger: true, Excitement: true, Fear: true, Surprise: true,
	Joy: true, Hope: true, Sadness: true, Anxiety: true,
}

// IsHighArousal reports whether e counts toward emotional importance.
func (e Emotion) IsHighArousal() bool {
	return highArousal[e]
}

// Analysis is the processed form of one message.
type Analysis struct {
	// Cleaned is the message with surrounding space trimmed and inner runs
	// of whitespace collapsed.
	Cleaned string

	Emotion           Emotion
	EmotionConfidence float64

	// Sentiment is the direction in [-1, 1].
	Sentiment float64

	// Formality is in [0, 1]; 0.5 when no marker is found.
	Formality float64

	Entities         []string
	ContainsQuestion bool

	// Length is the rune count of Cleaned.
	Length int
}

// emotionRules are checked in order; the first group with a match wins.
var emotionRules = []struct {
	emotion  Emotion
	keywords []string
}{
	{Anger, []string{"öfke", "sinir", "kızgın", "nefret", "bıktım"}},
	{Fear, []string{"korkuyorum", "korku", "dehşet", "panik"}},
	{Sadness, []string{"üzgün", "mutsuz", "ağlıyorum", "yalnız hissediyorum", "kırgın"}},
	{Anxiety, []string{"endişe", "kaygı", "zorlanıyorum", "anlamıyorum", "problem", "kötü"}},
	{Excitement, []string{"heyecan", "inanılmaz", "muhteşem", "sabırsız"}},
	{Surprise, []string{"şaşırdım", "şaşkın", "inanamıyorum", "vay"}},
	{Joy, []string{"mutluyum", "sevindim", "çok mutlu", "sevinç"}},
	{Hope, []string{"umut", "umarım", "inşallah"}},
	{Curiosity, []string{"?", "nasıl", "neden", "hangi", "kim", "ne zaman", "nerede"}},
	{Supportive, []string{"teşekkür", "harika", "iyi iş", "mükemmel", "tebrik", "beğendim", "seviyorum"}},
	{Motivational, []string{"yapabilirsin", "dene", "başarabilirsin", "güzel fikir", "devam et"}},
	{Reflective, []string{"düşünmek", "aklıma geldi", "belki", "önemli", "fikir", "gözlem"}},
	{Neutral, []string{"merhaba", "selam", "tamam", "peki", "evet", "hayır"}},
}

var (
	positiveWords = []string{"teşekkür", "harika", "mükemmel", "güzel", "sevindim", "mutlu", "seviyorum", "beğendim", "umut", "süper"}
	negativeWords = []string{"kötü", "berbat", "üzgün", "nefret", "korku", "öfke", "sinir", "mutsuz", "endişe", "bıktım"}

	formalMarkers = []string{"siz", "sayın", "rica ederim", "lütfen", "efendim", "misiniz", "teşekkür ederim", "saygılarımla"}
	casualMarkers = []string{"selam", "naber", "kanka", "abi", "hadi", "moruk", "slm", "tmm", "ya "}

	questionWords = map[string]bool{
		"neden": true, "niye": true, "hangi": true, "kim": true, "nerede": true,
		"mı": true, "mi": true, "mu": true, "mü": true,
		"mısın": true, "misin": true, "musun": true, "müsün": true,
	}
)

// Analyze processes message.
func Analyze(message string) Analysis {
	cleaned := strings.Join(strings.Fields(message), " ")
	lower := strings.ToLower(cleaned)

	a := Analysis{
		Cleaned:   cleaned,
		Length:    utf8.RuneCountInString(cleaned),
		Formality: 0.5,
	}

	if lower == "" {
		a.Emotion = Unclear
		return a
	}

	a.Emotion, a.EmotionConfidence = detectEmotion(lower)
	a.Sentiment = sentiment(lower)
	a.Formality = formality(lower)
	a.Entities = entities(cleaned)
	a.ContainsQuestion = containsQuestion(lower)
	return a
}

func detectEmotion(lower string) (Emotion, float64) {
	for _, rule := range emotionRules {
		matches := countMatches(lower, rule.keywords)
		if matches == 0 {
			continue
		}
		conf := 0.6
		switch {
		case matches >= 3:
			conf = 0.95
		case matches == 2:
			conf = 0.8
		}
		if strings.Contains(lower, "!") && rule.emotion.IsHighArousal() {
			conf += 0.1
		}
		if conf > 1 {
			conf = 1
		}
		return rule.emotion, conf
	}
	return Calm, 0.3
}

// sentiment returns (pos-neg)/(pos+neg+1): one word gives ±0.5 and only
// several words in one direction pass ±0.7.
func sentiment(lower string) float64 {
	pos := countMatches(lower, positiveWords)
	neg := countMatches(lower, negativeWords)
	return float64(pos-neg) / float64(pos+neg+1)
}

func formality(lower string) float64 {
	score := 0.5 + 0.15*float64(countWordMatches(lower, formalMarkers)) - 0.15*float64(countWordMatches(lower+" ", casualMarkers))
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// entities returns capitalised words that do not start a sentence, and
// tokens containing digits, in order of first appearance.
func entities(text string) []string {
	var out []string
	seen := make(map[string]bool)
	sentenceStart := true

	for _, raw := range strings.Fields(text) {
		word := strings.TrimFunc(raw, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if word != "" && !seen[word] {
			first, _ := utf8.DecodeRuneInString(word)
			if (unicode.IsUpper(first) && !sentenceStart) || strings.IndexFunc(word, unicode.IsDigit) >= 0 {
				seen[word] = true
				out = append(out, word)
			}
		}
		sentenceStart = strings.ContainsAny(raw[len(raw)-1:], ".!?")
	}
	return out
}

func containsQuestion(lower string) bool {
	if strings.Contains(lower, "?") || strings.Contains(lower, "ne zaman") {
		return true
	}
	for _, w := range strings.Fields(lower) {
		w = strings.Trim(w, ".,!;:")
		if questionWords[w] || strings.HasPrefix(w, "nasıl") {
			return true
		}
	}
	return false
}

func countMatches(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

// countWordMatches counts markers that start at a word boundary.
func countWordMatches(lower string, markers []string) int {
	n := 0
	for _, m := range markers {
		idx := strings.Index(lower, m)
		for idx >= 0 {
			if idx == 0 || !isWordRune(lastRune(lower[:idx])) {
				n++
				break
			}
			next := strings.Index(lower[idx+len(m):], m)
			if next < 0 {
				break
			}
			idx += len(m) + next
		}
	}
	return n
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
