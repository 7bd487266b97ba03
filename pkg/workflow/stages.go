package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/oceanbase/vira-go/pkg/embedder"
	"github.com/oceanbase/vira-go/pkg/input"
	"github.com/oceanbase/vira-go/pkg/intelligence"
	"github.com/oceanbase/vira-go/pkg/intent"
	"github.com/oceanbase/vira-go/pkg/llm"
	"github.com/oceanbase/vira-go/pkg/persona"
	"github.com/oceanbase/vira-go/pkg/personality"
	"github.com/oceanbase/vira-go/pkg/prompt"
	"github.com/oceanbase/vira-go/pkg/retrieval"
	"github.com/oceanbase/vira-go/pkg/storage"
)

// Nodes of the conversation graph.
const (
	NodeProcessInput    Node = "process_input"
	NodeIntentClassify  Node = "intent_classify"
	NodeOmegaHandle     Node = "omega_handle"
	NodeRetrieveMemory  Node = "retrieve_memory"
	NodeRefineContext   Node = "refine_context"
	NodeAssemblePrompt  Node = "assemble_prompt"
	NodeGenerate        Node = "generate"
	NodeScoreImportance Node = "score_importance"
	NodePersistMemory   Node = "persist_memory"
)

// FallbackResponse is returned when generation fails.
const FallbackResponse = "Üzgünüm, yanıt üretirken bir hata oluştu."

// IntentClassifier labels a message.
type IntentClassifier interface {
	Classify(ctx context.Context, message string, history []llm.Message) intent.Label
}

// MemoryRetriever fetches the memory context of a turn.
type MemoryRetriever interface {
	Retrieve(ctx context.Context, userID, query, sessionID string, topK int) retrieval.Result
}

// ContextRefiner condenses the memory context of a turn. It returns "" when
// nothing is relevant or the refinement fails.
type ContextRefiner interface {
	Refine(ctx context.Context, message, memoryContext string) string
}

// PromptAssembler builds the messages of a turn.
type PromptAssembler interface {
	Assemble(in prompt.Input) ([]llm.Message, prompt.Params, personality.Vector)
}

// Deps are the collaborators of the conversation stages.
type Deps struct {
	Classifier IntentClassifier
	Retriever  MemoryRetriever
	Assembler  PromptAssembler
	Generator  llm.Provider
	Embedder   embedder.Provider
	Store      storage.MemoryStore

	// Scorer defaults to the persona's priority keywords.
	Scorer *intelligence.Scorer
	Policy intelligence.PromotionPolicy

	// Semantic is optional.
	Semantic *intelligence.SemanticEvaluator

	// Refiner condenses the retrieved memories. Optional.
	Refiner ContextRefiner

	// Personality supplies the dynamic vector of a user. Optional.
	Personality personality.Store

	Protocol *persona.Protocol

	// TopK is the number of long-term memories retrieved per turn.
	TopK int

	Logger *zap.Logger
	Now    func() time.Time
}

type stages struct {
	Deps
}

func (st *stages) log(node Node, s State) *zap.Logger {
	return st.Logger.With(zap.String("stage", string(node)), zap.String("user_id", s.UserID))
}

// recovered wraps stage so that a panic inside it yields fallback(s) instead
// of aborting the run. The graph still recovers panics of the fallback.
func (st *stages) recovered(node Node, stage Stage, fallback func(State) Patch) Stage {
	return func(ctx context.Context, s State) (patch Patch) {
		defer func() {
			if r := recover(); r != nil {
				st.log(node, s).Error("stage panicked, using fallback", zap.Any("panic", r))
				patch = fallback(s)
			}
		}()
		return stage(ctx, s)
	}
}

func processInputFallback(s State) Patch {
	cleaned := strings.Join(strings.Fields(s.OriginalMessage), " ")
	return Patch{ProcessedInput: &input.Analysis{
		Cleaned:   cleaned,
		Emotion:   input.Neutral,
		Formality: 0.5,
		Length:    utf8.RuneCountInString(cleaned),
	}}
}

func intentFallback(State) Patch {
	return Patch{Intent: ptr(intent.Unknown), IsOmegaCommand: ptr(false)}
}

func retrieveFallback(State) Patch {
	return Patch{MemoryContext: ptr(""), RetrievedMemories: []retrieval.Memory{}}
}

func refineFallback(State) Patch {
	return Patch{RefinedContext: ptr("")}
}

func (st *stages) assembleFallback(s State) Patch {
	base := personality.Vector(st.Protocol.Identity.PersonalityVector)
	if base == nil {
		base = personality.Vector{}
	}
	return Patch{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: prompt.BaseLine},
			{Role: llm.RoleUser, Content: s.OriginalMessage},
		},
		Params:      &prompt.Params{Temperature: 0.7, MaxTokens: 1000, TopP: 1},
		Personality: base,
		Dynamic:     personality.Vector{},
	}
}

func generateFallback(State) Patch {
	return Patch{Response: ptr(FallbackResponse), GenerationFailed: ptr(true)}
}

func (st *stages) scoreFallback(s State) Patch {
	threshold := st.Policy.Threshold(s.DynamicPersonality, s.Intent)
	return Patch{
		ImportanceScore:   ptr(0.0),
		ImportanceReasons: []string{"önem skoru hesaplanamadı"},
		Threshold:         &threshold,
		ShouldPromote:     ptr(false),
		MemoryType:        ptr(intelligence.MemoryTypeCasual),
	}
}

func omegaFallback(State) Patch {
	return Patch{Response: ptr(persona.RenderOmega(nil))}
}

func persistFallback(State) Patch {
	return Patch{Persisted: &Persisted{}}
}

func (st *stages) processInput(_ context.Context, s State) Patch {
	an := input.Analyze(s.OriginalMessage)
	st.log(NodeProcessInput, s).Debug("input analysed",
		zap.String("emotion", string(an.Emotion)),
		zap.Float64("emotion_confidence", an.EmotionConfidence),
		zap.Int("length", an.Length),
	)
	return Patch{ProcessedInput: &an}
}

func (st *stages) intentClassify(ctx context.Context, s State) Patch {
	label := st.Classifier.Classify(ctx, s.OriginalMessage, s.History)
	st.log(NodeIntentClassify, s).Info("intent classified", zap.String("intent", string(label)))
	return Patch{
		Intent:         ptr(label),
		IsOmegaCommand: ptr(label == intent.Omega),
	}
}

func (st *stages) omegaHandle(_ context.Context, s State) Patch {
	st.log(NodeOmegaHandle, s).Info("omega protocol activated")
	return Patch{Response: ptr(persona.RenderOmega(st.Protocol))}
}

func (st *stages) retrieveMemory(ctx context.Context, s State) Patch {
	query := s.OriginalMessage
	if s.ProcessedInput != nil && s.ProcessedInput.Cleaned != "" {
		query = s.ProcessedInput.Cleaned
	}
	res := st.Retriever.Retrieve(ctx, s.UserID, query, s.SessionID, st.TopK)

	memories := res.Memories
	if memories == nil {
		memories = []retrieval.Memory{}
	}
	return Patch{
		MemoryContext:     ptr(res.Context),
		RetrievedMemories: memories,
	}
}

func (st *stages) refineContext(ctx context.Context, s State) Patch {
	if st.Refiner == nil || s.MemoryContext == "" {
		return Patch{RefinedContext: ptr("")}
	}
	return Patch{RefinedContext: ptr(st.Refiner.Refine(ctx, s.OriginalMessage, s.MemoryContext))}
}

func (st *stages) assemblePrompt(ctx context.Context, s State) Patch {
	dynamic := personality.Vector{}
	if st.Personality != nil {
		v, err := st.Personality.Get(ctx, s.UserID)
		if err != nil {
			st.log(NodeAssemblePrompt, s).Warn("personality lookup failed", zap.Error(err))
		} else if v != nil {
			dynamic = v
		}
	}

	in := prompt.Input{
		Message:       s.OriginalMessage,
		Intent:        s.Intent,
		MemoryContext:  s.MemoryContext,
		RefinedContext: s.RefinedContext,
		Dynamic:        dynamic,
	}
	if s.ProcessedInput != nil {
		in.Analysis = *s.ProcessedInput
	}

	messages, params, merged := st.Assembler.Assemble(in)
	if merged == nil {
		merged = personality.Vector{}
	}
	return Patch{
		Messages:    messages,
		Params:      &params,
		Personality: merged,
		Dynamic:     dynamic,
	}
}

func (st *stages) generate(ctx context.Context, s State) Patch {
	log := st.log(NodeGenerate, s)

	resp, err := st.Generator.GenerateWithMessages(ctx, s.Messages, s.Params.Options()...)
	if err == nil && strings.TrimSpace(resp) == "" {
		err = fmt.Errorf("generate: empty response")
	}
	if err != nil {
		log.Error("generation failed", zap.Error(err))
		return Patch{Response: ptr(FallbackResponse), GenerationFailed: ptr(true)}
	}
	return Patch{Response: ptr(strings.TrimSpace(resp)), GenerationFailed: ptr(false)}
}

func (st *stages) scoreImportance(ctx context.Context, s State) Patch {
	in := intelligence.Input{
		UserID:      s.UserID,
		UserMessage: s.OriginalMessage,
		Response:    s.Response,
	}
	if s.ProcessedInput != nil {
		in.Emotion = s.ProcessedInput.Emotion
		in.EmotionConfidence = s.ProcessedInput.EmotionConfidence
		in.Sentiment = s.ProcessedInput.Sentiment
	}
	for _, m := range s.RetrievedMemories {
		in.MemoryContents = append(in.MemoryContents, m.Content)
	}

	b := st.Scorer.Score(in)
	if st.Semantic != nil && !s.GenerationFailed && b.Total > 0 {
		b = st.Semantic.Apply(ctx, b, s.OriginalMessage, s.Response)
	}

	score := b.Combined()
	threshold := st.Policy.Threshold(s.DynamicPersonality, s.Intent)
	promote := intelligence.ShouldPromote(score, threshold)
	reasons := append([]string{}, b.Reasons...)
	if s.GenerationFailed && promote {
		promote = false
		reasons = append(reasons, "yanıt üretilemedi")
	}
	memoryType := intelligence.ClassifyMemoryType(score, s.Intent, b.Semantic)

	st.log(NodeScoreImportance, s).Info("importance scored",
		zap.Float64("score", score),
		zap.Float64("threshold", threshold),
		zap.Bool("promote", promote),
		zap.String("memory_type", memoryType),
	)
	return Patch{
		ImportanceScore:   &score,
		ImportanceReasons: reasons,
		Threshold:         &threshold,
		ShouldPromote:     &promote,
		MemoryType:        &memoryType,
	}
}

// persistMemory writes the interaction and the short-term record on every
// turn and the long-term record only on promotion. A failed write does not
// stop the others.
func (st *stages) persistMemory(ctx context.Context, s State) Patch {
	log := st.log(NodePersistMemory, s)
	var out Persisted

	if err := st.Store.EnsureUser(ctx, s.UserID); err != nil {
		log.Error("ensure user failed", zap.Error(err))
	}

	id, err := st.Store.StoreInteraction(ctx, s.UserID, s.OriginalMessage, s.Response, string(s.Intent))
	if err != nil {
		log.Error("store interaction failed", zap.Error(err))
	} else {
		out.InteractionID = id
	}

	exchange := st.exchangeText(s)
	if id, err := st.Store.StoreShortTerm(ctx, s.SessionID, exchange); err != nil {
		log.Error("store short-term memory failed", zap.Error(err))
	} else {
		out.ShortTermID = id
	}

	if s.ShouldPromoteToLongTerm {
		out.LongTermID = st.storeLongTerm(ctx, log, s, exchange)
	} else {
		log.Debug("exchange not promoted", zap.Float64("score", s.ImportanceScore))
	}

	return Patch{Persisted: &out}
}

func (st *stages) storeLongTerm(ctx context.Context, log *zap.Logger, s State, exchange string) int64 {
	vec, err := st.Embedder.Embed(ctx, exchange)
	if err != nil {
		log.Error("exchange embedding failed", zap.Error(err))
		return 0
	}
	id, err := st.Store.StoreLongTerm(ctx, s.UserID, exchange, vec, st.metadata(s))
	if err != nil {
		log.Error("store long-term memory failed", zap.Error(err))
		return 0
	}
	log.Info("exchange promoted to long-term memory",
		zap.Int64("memory_id", id),
		zap.Float64("score", s.ImportanceScore),
	)
	return id
}

func (st *stages) exchangeText(s State) string {
	name := "Vira"
	if st.Protocol != nil && st.Protocol.Identity.CallSign != "" {
		name = st.Protocol.Identity.CallSign
	}
	return fmt.Sprintf("Kullanıcı: %s\n%s: %s", s.OriginalMessage, name, s.Response)
}

func (st *stages) metadata(s State) map[string]interface{} {
	emotion := ""
	if s.ProcessedInput != nil {
		emotion = string(s.ProcessedInput.Emotion)
	}
	tagEmotion := emotion
	if s.ProcessedInput != nil && s.ProcessedInput.Emotion == input.Neutral {
		tagEmotion = ""
	}

	snapshot := make(map[string]interface{}, len(personality.DefaultTraits))
	for _, trait := range personality.DefaultTraits {
		v, ok := s.Personality[trait]
		if !ok {
			v = 0.5
		}
		snapshot[trait] = v
	}

	return map[string]interface{}{
		"user_id":              s.UserID,
		"importance_score":     s.ImportanceScore,
		"timestamp":            st.Now().UTC().Format(time.RFC3339),
		"source":               "conversation",
		"reasons":              s.ImportanceReasons,
		"intent":               string(s.Intent),
		"emotion":              emotion,
		"memory_type":          s.MemoryType,
		"personality_snapshot": snapshot,
		"tags":                 intelligence.Tags(s.Intent, tagEmotion, s.ImportanceScore, s.MemoryType),
	}
}
