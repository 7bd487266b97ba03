package intent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/oceanbase/vira-go/pkg/llm"
)

// DefaultHistoryTurns is how many history messages the fallback sees.
const DefaultHistoryTurns = 4

// word wraps alternatives in Unicode-aware word boundaries. RE2's \b is
// ASCII only and would split Turkish words.
func word(alternatives string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])(?:` + alternatives + `)(?:[^\p{L}\p{N}_]|$)`)
}

var omegaPattern = word(`0427`)

// rules are evaluated in order after the omega check.
var rules = []struct {
	label   Label
	pattern *regexp.Regexp
}{
	{Greeting, word(`merhaba|selam|selamlar|günaydın|iyi\s*günler|hey|sa|selamün aleyküm`)},
	{Farewell, word(`hoşça\s*kal|görüşürüz|bay\s*bay|iyi\s*geceler|iyi\s*akşamlar|kendine iyi bak`)},
	{Question, regexp.MustCompile(`\?`)},
	{Question, word(`ne|neden|niye|nasıl|kim|nerede|hangi|kaç|mı|mi|mu|mü`)},
	{Request, word(`lütfen|rica\s*etsem|mısın|misin|musun|müsün|yapar\s*mısın`)},
	{Command, word(`yap|bul|göster|aç|kapat|hesapla|çalıştır|oluştur|getir`)},
}

const classifierSystemPrompt = "Sen kullanıcı mesajlarını kategorilere ayıran bir niyet sınıflandırma uzmanısın. Yanıtın yalnızca tek bir etiket olmalı."

// Classifier assigns intent labels.
type Classifier struct {
	provider     llm.Provider
	historyTurns int
	logger       *zap.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Classifier) {
		c.logger = logger
	}
}

// WithHistoryTurns overrides DefaultHistoryTurns.
func WithHistoryTurns(n int) Option {
	return func(c *Classifier) {
		c.historyTurns = n
	}
}

// NewClassifier creates a Classifier. provider may be nil, in which case
// messages no rule matches are Unknown.
func NewClassifier(provider llm.Provider, opts ...Option) *Classifier {
	c := &Classifier{
		provider:     provider,
		historyTurns: DefaultHistoryTurns,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsOmega reports whether message contains the activation token as a
// standalone word.
func IsOmega(message string) bool {
	return omegaPattern.MatchString(message)
}

// MatchRules returns the first matching rule label. Omega has priority over
// every other rule.
func MatchRules(message string) (Label, bool) {
	if IsOmega(message) {
		return Omega, true
	}
	lower := strings.ToLower(message)
	for _, r := range rules {
		if r.pattern.MatchString(lower) {
			return r.label, true
		}
	}
	return "", false
}

// Classify returns the label of message. It never fails: empty input,
// provider errors and invalid answers all yield Unknown.
func (c *Classifier) Classify(ctx context.Context, message string, history []llm.Message) Label {
	message = strings.TrimSpace(message)
	if message == "" {
		return Unknown
	}

	if label, ok := MatchRules(message); ok {
		c.logger.Debug("intent matched by rule", zap.String("intent", label.String()))
		return label
	}

	if c.provider == nil {
		return Unknown
	}

	raw, err := c.provider.GenerateWithMessages(ctx, c.buildMessages(message, history),
		llm.WithTemperature(0),
		llm.WithMaxTokens(20),
	)
	if err != nil {
		c.logger.Warn("intent fallback failed", zap.Error(err))
		return Unknown
	}

	label, ok := Parse(raw)
	if !ok {
		c.logger.Warn("intent fallback returned invalid label", zap.String("raw", raw))
		return Unknown
	}
	c.logger.Debug("intent classified by provider", zap.String("intent", label.String()))
	return label
}

func (c *Classifier) buildMessages(message string, history []llm.Message) []llm.Message {
	if len(history) > c.historyTurns {
		history = history[len(history)-c.historyTurns:]
	}

	var hist strings.Builder
	for _, m := range history {
		fmt.Fprintf(&hist, "%s: %s\n", m.Role, m.Content)
	}
	histText := strings.TrimSpace(hist.String())
	if histText == "" {
		histText = "Yok"
	}

	labels := make([]string, 0, len(all))
	for _, l := range all {
		labels = append(labels, l.String())
	}

	prompt := fmt.Sprintf(`Kullanıcının mesajının niyetini konuşma geçmişini dikkate alarak sınıflandır.
Mesaj: %q

Konuşma geçmişi:
---
%s
---

Olası niyetler: %s

Listeden en uygun niyeti seç ve yalnızca adını yaz. Örnek: question`, message, histText, strings.Join(labels, ", "))

	return []llm.Message{
		{Role: llm.RoleSystem, Content: classifierSystemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	}
}
