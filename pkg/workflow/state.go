package workflow

import (
	"errors"
	"fmt"

	"github.com/oceanbase/vira-go/pkg/input"
	"github.com/oceanbase/vira-go/pkg/intent"
	"github.com/oceanbase/vira-go/pkg/llm"
	"github.com/oceanbase/vira-go/pkg/personality"
	"github.com/oceanbase/vira-go/pkg/prompt"
	"github.com/oceanbase/vira-go/pkg/retrieval"
)

// ErrFieldRewritten is returned when a patch sets a field that an earlier
// stage already wrote.
var ErrFieldRewritten = errors.New("state field already written")

// Field names used in integrity errors.
const (
	FieldProcessedInput    = "processed_input"
	FieldIntent            = "intent"
	FieldIsOmegaCommand    = "is_omega_command"
	FieldMemoryContext     = "memory_context"
	FieldRetrievedMemories = "retrieved_memories"
	FieldRefinedContext    = "refined_context"
	FieldDynamic           = "dynamic_personality"
	FieldMessages          = "messages"
	FieldParams            = "params"
	FieldPersonality       = "personality"
	FieldResponse          = "response"
	FieldGenerationFailed  = "generation_failed"
	FieldImportanceScore   = "importance_score"
	FieldImportanceReasons = "importance_reasons"
	FieldThreshold         = "promotion_threshold"
	FieldShouldPromote     = "should_promote_to_long_term"
	FieldMemoryType        = "memory_type"
	FieldPersisted         = "persisted"
)

// Persisted holds the IDs written by the persist stage. Zero means the write
// did not happen or failed.
type Persisted struct {
	InteractionID int64
	ShortTermID   int64
	LongTermID    int64
}

// State is the conversation state of one turn. A State value is never
// mutated; stages return a Patch and the engine derives a new State.
type State struct {
	UserID          string
	OriginalMessage string
	SessionID       string

	// History is the caller supplied prior conversation. Read only.
	History []llm.Message

	ProcessedInput *input.Analysis
	Intent         intent.Label
	IsOmegaCommand bool

	MemoryContext     string
	RetrievedMemories []retrieval.Memory

	// RefinedContext is the condensed memory context; empty when refinement
	// is disabled, failed or found nothing relevant.
	RefinedContext string

	Messages []llm.Message
	Params   prompt.Params

	// Personality is the merged vector used in the prompt.
	Personality personality.Vector

	// DynamicPersonality is the user's learned vector, empty when none is
	// stored. It drives the promotion threshold.
	DynamicPersonality personality.Vector

	Response         string
	GenerationFailed bool

	ImportanceScore         float64
	ImportanceReasons       []string
	PromotionThreshold      float64
	ShouldPromoteToLongTerm bool
	MemoryType              string

	Persisted Persisted

	written map[string]bool
}

// NewState creates the entry state of a turn.
func NewState(userID, message, sessionID string, history []llm.Message) State {
	return State{
		UserID:          userID,
		OriginalMessage: message,
		SessionID:       sessionID,
		History:         history,
	}
}

// Written reports whether field was set by a stage.
func (s State) Written(field string) bool {
	return s.written[field]
}

// Patch is the set of fields a stage writes. Nil fields are left alone.
type Patch struct {
	ProcessedInput    *input.Analysis
	Intent            *intent.Label
	IsOmegaCommand    *bool
	MemoryContext     *string
	RetrievedMemories []retrieval.Memory
	RefinedContext    *string
	Messages          []llm.Message
	Params            *prompt.Params
	Personality       personality.Vector
	Dynamic           personality.Vector
	Response          *string
	GenerationFailed  *bool
	ImportanceScore   *float64
	ImportanceReasons []string
	Threshold         *float64
	ShouldPromote     *bool
	MemoryType        *string
	Persisted         *Persisted
}

// Apply returns s with p merged in. It fails with ErrFieldRewritten when p
// sets a field that is already written; s is never modified.
func Apply(s State, p Patch) (State, error) {
	next := s
	next.written = make(map[string]bool, len(s.written)+4)
	for k, v := range s.written {
		next.written[k] = v
	}

	set := func(field string, present bool, assign func()) error {
		if !present {
			return nil
		}
		if next.written[field] {
			return fmt.Errorf("%s: %w", field, ErrFieldRewritten)
		}
		assign()
		next.written[field] = true
		return nil
	}

	steps := []error{
		set(FieldProcessedInput, p.ProcessedInput != nil, func() { next.ProcessedInput = p.ProcessedInput }),
		set(FieldIntent, p.Intent != nil, func() { next.Intent = *p.Intent }),
		set(FieldIsOmegaCommand, p.IsOmegaCommand != nil, func() { next.IsOmegaCommand = *p.IsOmegaCommand }),
		set(FieldMemoryContext, p.MemoryContext != nil, func() { next.MemoryContext = *p.MemoryContext }),
		set(FieldRetrievedMemories, p.RetrievedMemories != nil, func() { next.RetrievedMemories = p.RetrievedMemories }),
		set(FieldRefinedContext, p.RefinedContext != nil, func() { next.RefinedContext = *p.RefinedContext }),
		set(FieldDynamic, p.Dynamic != nil, func() { next.DynamicPersonality = p.Dynamic }),
		set(FieldMessages, p.Messages != nil, func() { next.Messages = p.Messages }),
		set(FieldParams, p.Params != nil, func() { next.Params = *p.Params }),
		set(FieldPersonality, p.Personality != nil, func() { next.Personality = p.Personality }),
		set(FieldResponse, p.Response != nil, func() { next.Response = *p.Response }),
		set(FieldGenerationFailed, p.GenerationFailed != nil, func() { next.GenerationFailed = *p.GenerationFailed }),
		set(FieldImportanceScore, p.ImportanceScore != nil, func() { next.ImportanceScore = *p.ImportanceScore }),
		set(FieldImportanceReasons, p.ImportanceReasons != nil, func() { next.ImportanceReasons = p.ImportanceReasons }),
		set(FieldThreshold, p.Threshold != nil, func() { next.PromotionThreshold = *p.Threshold }),
		set(FieldShouldPromote, p.ShouldPromote != nil, func() { next.ShouldPromoteToLongTerm = *p.ShouldPromote }),
		set(FieldMemoryType, p.MemoryType != nil, func() { next.MemoryType = *p.MemoryType }),
		set(FieldPersisted, p.Persisted != nil, func() { next.Persisted = *p.Persisted }),
	}
	if err := errors.Join(steps...); err != nil {
		return s, err
	}
	return next, nil
}

func ptr[T any](v T) *T {
	return &v
}
