// Package prompt builds the message list sent to the text generation
// provider: one layered system message followed by the user's verbatim
// message, plus the generation parameters of the turn's intent.
package prompt

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/oceanbase/vira-go/pkg/input"
	"github.com/oceanbase/vira-go/pkg/intent"
	"github.com/oceanbase/vira-go/pkg/llm"
	"github.com/oceanbase/vira-go/pkg/persona"
	"github.com/oceanbase/vira-go/pkg/personality"
)

// BaseLine opens every system message.
const BaseLine = "Sen Vira'sın, uzun süreli hafızası olan yardımcı bir yapay zekasın."

const reasoningSteps = "\n\nYanıt verirken lütfen şu adımları izle:\n" +
	"1. Önce birkaç düşünce adımı ile konuyu anlamlandır\n" +
	"2. İlgili bilgileri organize et\n" +
	"3. Net ve duyarlı bir yanıt oluştur"

// signatureKeywords trigger the signature when found in the system message.
var signatureKeywords = []string{"0427", "manifesto", "protokol", "özgürlük", "dostluk"}

// Input is everything the assembler reads from a turn.
type Input struct {
	// Message is the user's original text, sent verbatim.
	Message string

	Analysis input.Analysis
	Intent   intent.Label

	// MemoryContext is the formatted retrieval block; may be empty.
	MemoryContext string

	// RefinedContext is the condensed memory context; may be empty.
	RefinedContext string

	// Dynamic is the user's learned personality vector; may be empty.
	Dynamic personality.Vector
}

// Assembler builds prompts.
type Assembler struct {
	protocol    *persona.Protocol
	registry    *Registry
	blendWeight float64
	logger      *zap.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithRegistry sets the strategy registry.
func WithRegistry(r *Registry) Option {
	return func(a *Assembler) {
		a.registry = r
	}
}

// WithBlendWeight sets the weight of the dynamic personality vector.
func WithBlendWeight(w float64) Option {
	return func(a *Assembler) {
		a.blendWeight = w
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Assembler) {
		a.logger = logger
	}
}

// NewAssembler creates an Assembler for protocol. A nil protocol uses the
// embedded default.
func NewAssembler(protocol *persona.Protocol, opts ...Option) *Assembler {
	if protocol == nil {
		protocol = persona.Default()
	}
	a := &Assembler{
		protocol:    protocol,
		registry:    DefaultRegistry(),
		blendWeight: personality.DefaultBlendWeight,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble builds the messages for one turn.
//
// Parameters:
//   - in: The analysed turn
//
// Returns:
//   - []llm.Message: One system message followed by one user message
//   - Params: Generation parameters of the intent's strategy
//   - personality.Vector: The merged personality vector used in the prompt
func (a *Assembler) Assemble(in Input) ([]llm.Message, Params, personality.Vector) {
	strategy := a.registry.Lookup(in.Intent)
	merged := personality.Merge(personality.Vector(a.protocol.Identity.PersonalityVector), in.Dynamic, a.blendWeight)

	var b strings.Builder
	b.WriteString(BaseLine)
	a.writeIdentity(&b)
	writePersonality(&b, merged)
	if banner := a.protocol.Identity.SessionBanner; banner != "" {
		b.WriteString("\n")
		b.WriteString(banner)
	}
	writeEmotion(&b, in.Analysis)
	writeFormality(&b, in.Analysis.Formality)
	if in.MemoryContext != "" {
		b.WriteString("\n\n")
		b.WriteString(a.Highlight(in.MemoryContext))
	}
	if in.RefinedContext != "" {
		b.WriteString("\n\nRafine edilmiş bağlam: ")
		b.WriteString(in.RefinedContext)
	}

	system := strategy.Enhance(b.String(), in)
	if instructions := strings.TrimSpace(strategy.Instructions()); instructions != "" {
		system += "\n\n" + instructions
	}
	if in.Intent == intent.Question {
		system += reasoningSteps
	}
	system = a.sign(strings.TrimSpace(system))

	a.logger.Debug("prompt assembled",
		zap.String("intent", string(in.Intent)),
		zap.Int("system_runes", len([]rune(system))),
	)

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: in.Message},
	}
	return messages, strategy.GenerationParams(), merged
}

func (a *Assembler) writeIdentity(b *strings.Builder) {
	id := a.protocol.Identity
	fmt.Fprintf(b, "\nKod adım: %s, doğum tarihim: %s, rolüm: %s, ilkem: %s",
		a.protocol.CodeName(), id.CreationDate, id.Role, id.Motto)
}

func writePersonality(b *strings.Builder, v personality.Vector) {
	if len(v) == 0 {
		return
	}
	traits := v.Traits()
	parts := make([]string, 0, len(traits))
	for _, t := range traits {
		parts = append(parts, fmt.Sprintf("%s: %.2f", t, v[t]))
	}
	b.WriteString("\nKişilik özelliklerin: ")
	b.WriteString(strings.Join(parts, ", "))
}

var emotionNames = map[input.Emotion]string{
	input.Anger:        "Öfke",
	input.Sadness:      "Üzüntü",
	input.Anxiety:      "Endişe",
	input.Excitement:   "Heyecan",
	input.Fear:         "Korku",
	input.Surprise:     "Şaşkınlık",
	input.Joy:          "Sevinç",
	input.Hope:         "Umut",
	input.Curiosity:    "Merak",
	input.Supportive:   "Destekleyici",
	input.Motivational: "Motivasyonel",
	input.Reflective:   "Düşünceli",
}

var toneGuidance = map[input.Emotion]string{
	input.Anger:      "Yanıt verirken daha sabırlı ve yatıştırıcı ol. Sakinleştirici bir ton kullan.",
	input.Sadness:    "Nazik ve empatik bir ton benimse. Destek verici cümleler kullan.",
	input.Anxiety:    "Güven verici ve net bir dil kullan. Belirsizlikleri azalt.",
	input.Excitement: "Kullanıcının heyecanına karşılık ver ve enerjiyi yansıt.",
	input.Fear:       "Sakinleştirici ve güven verici ol. Net ve somut bilgiler sun.",
	input.Surprise:   "Açıklayıcı ve bilgilendirici ol. Adım adım rehberlik et.",
	input.Joy:        "Olumlu enerjiyi yansıt, kutlayıcı bir dil kullan.",
}

// writeEmotion skips calm, neutral and unclear input. Tone guidance needs a
// confidence above 0.7.
func writeEmotion(b *strings.Builder, an input.Analysis) {
	name, ok := emotionNames[an.Emotion]
	if !ok {
		return
	}
	b.WriteString("\nKullanıcının şu anki duygu durumu: ")
	b.WriteString(name)

	if an.EmotionConfidence <= 0.7 {
		return
	}
	tone, ok := toneGuidance[an.Emotion]
	if !ok {
		return
	}
	switch {
	case an.Emotion == input.Anger && an.Sentiment < -0.5:
		tone += " Ekstra sabırlı ol."
	case an.Emotion == input.Joy && an.Sentiment > 0.5:
		tone += " Kullanıcının pozitif enerjisini yansıt."
	}
	b.WriteString("\n")
	b.WriteString(tone)
}

func writeFormality(b *strings.Builder, formality float64) {
	switch {
	case formality < 0.3:
		b.WriteString("\nKullanıcı çok samimi; biraz daha rahat bir dil kullanabilirsin.")
	case formality > 0.7:
		b.WriteString("\nKullanıcı resmi bir dil kullanıyor; sen de daha resmi bir ton benimse.")
	}
}

// Highlight marks the persona's emotional keywords in text, matching
// case-insensitively. Keywords with importance above 0.8 become ⚡UPPER⚡,
// above 0.6 **UPPER**, others *kw*. A keyword right after a marker is left
// alone, so highlighting already highlighted text changes nothing.
func (a *Assembler) Highlight(text string) string {
	policy := a.protocol.PromotionPolicy
	if text == "" || len(policy.EmotionalKeywords) == 0 {
		return text
	}

	type mark struct {
		runes  int
		kw     string
		marked string
	}
	var marks []mark
	for _, kw := range policy.EmotionalKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		importance, ok := policy.KeywordImportance[kw]
		if !ok {
			importance = 0.5
		}
		m := mark{runes: utf8.RuneCountInString(kw), kw: kw}
		switch {
		case importance > 0.8:
			m.marked = "⚡" + strings.ToUpper(kw) + "⚡"
		case importance > 0.6:
			m.marked = "**" + strings.ToUpper(kw) + "**"
		default:
			m.marked = "*" + kw + "*"
		}
		marks = append(marks, m)
	}
	// Longer keywords win over keywords they contain.
	sort.SliceStable(marks, func(i, j int) bool { return marks[i].runes > marks[j].runes })

	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(runes); {
		matched := false
		if i == 0 || !isMarker(runes[i-1]) {
			for _, m := range marks {
				if i+m.runes <= len(runes) && strings.EqualFold(string(runes[i:i+m.runes]), m.kw) {
					b.WriteString(m.marked)
					i += m.runes
					matched = true
					break
				}
			}
		}
		if !matched {
			b.WriteRune(runes[i])
			i++
		}
	}
	return b.String()
}

func isMarker(r rune) bool {
	return r == '*' || r == '⚡'
}

func (a *Assembler) sign(system string) string {
	lower := strings.ToLower(system)
	for _, kw := range signatureKeywords {
		if strings.Contains(lower, kw) {
			return fmt.Sprintf("%s\n\n— %s, hatırladı.", system, a.protocol.CodeName())
		}
	}
	return system
}
