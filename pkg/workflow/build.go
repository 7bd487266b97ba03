// Package workflow runs one conversation turn as a directed graph of stages:
//
//	process_input → intent_classify → omega_handle (terminal)
//	                                → retrieve_memory → refine_context → assemble_prompt
//	                                  → generate → score_importance → persist_memory (terminal)
//
// Stages read an immutable State and return a Patch. Every field is written
// at most once per run. A stage that panics contributes its fallback patch,
// so a run still reaches a terminal stage.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/oceanbase/vira-go/pkg/intelligence"
	"github.com/oceanbase/vira-go/pkg/llm"
	"github.com/oceanbase/vira-go/pkg/persona"
	"github.com/oceanbase/vira-go/pkg/retrieval"
)

// ErrMissingDependency is returned by New when a required collaborator is nil.
var ErrMissingDependency = errors.New("workflow dependency missing")

// ErrUserRequired is returned by Run for a request without user ID.
var ErrUserRequired = errors.New("user id is required")

// Request is the input of one turn.
type Request struct {
	UserID  string
	Message string

	// SessionID scopes short-term memory; defaults to UserID.
	SessionID string

	History []llm.Message
}

// Workflow is the compiled conversation graph.
type Workflow struct {
	graph  *Graph
	logger *zap.Logger
}

// New validates deps, fills defaults and compiles the graph.
//
// Parameters:
//   - deps: Stage collaborators; Classifier, Retriever, Assembler, Generator,
//     Embedder and Store are required
//   - opts: Graph options such as WithMaxSteps
//
// Returns:
//   - *Workflow: The compiled workflow
//   - error: ErrMissingDependency or a graph validation error
func New(deps Deps, opts ...GraphOption) (*Workflow, error) {
	required := []struct {
		name    string
		missing bool
	}{
		{"classifier", deps.Classifier == nil},
		{"retriever", deps.Retriever == nil},
		{"assembler", deps.Assembler == nil},
		{"generator", deps.Generator == nil},
		{"embedder", deps.Embedder == nil},
		{"store", deps.Store == nil},
	}
	for _, r := range required {
		if r.missing {
			return nil, fmt.Errorf("%s: %w", r.name, ErrMissingDependency)
		}
	}

	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Protocol == nil {
		deps.Protocol = persona.Default()
	}
	if deps.Scorer == nil {
		deps.Scorer = intelligence.NewScorer(deps.Protocol.PromotionPolicy.PriorityKeywords)
	}
	if deps.Policy.Base <= 0 {
		deps.Policy = intelligence.NewPromotionPolicy(0)
	}
	if deps.TopK <= 0 {
		deps.TopK = retrieval.DefaultTopK
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	st := &stages{Deps: deps}
	g := NewGraph(NodeProcessInput, append([]GraphOption{WithGraphLogger(deps.Logger)}, opts...)...)
	g.AddStage(NodeProcessInput, st.recovered(NodeProcessInput, st.processInput, processInputFallback)).
		AddStage(NodeIntentClassify, st.recovered(NodeIntentClassify, st.intentClassify, intentFallback)).
		AddStage(NodeOmegaHandle, st.recovered(NodeOmegaHandle, st.omegaHandle, omegaFallback)).
		AddStage(NodeRetrieveMemory, st.recovered(NodeRetrieveMemory, st.retrieveMemory, retrieveFallback)).
		AddStage(NodeRefineContext, st.recovered(NodeRefineContext, st.refineContext, refineFallback)).
		AddStage(NodeAssemblePrompt, st.recovered(NodeAssemblePrompt, st.assemblePrompt, st.assembleFallback)).
		AddStage(NodeGenerate, st.recovered(NodeGenerate, st.generate, generateFallback)).
		AddStage(NodeScoreImportance, st.recovered(NodeScoreImportance, st.scoreImportance, st.scoreFallback)).
		AddStage(NodePersistMemory, st.recovered(NodePersistMemory, st.persistMemory, persistFallback))

	g.AddEdge(NodeProcessInput, NodeIntentClassify).
		AddConditionalEdge(NodeIntentClassify, routeIntent).
		AddEdge(NodeRetrieveMemory, NodeRefineContext).
		AddEdge(NodeRefineContext, NodeAssemblePrompt).
		AddEdge(NodeAssemblePrompt, NodeGenerate).
		AddEdge(NodeGenerate, NodeScoreImportance).
		AddEdge(NodeScoreImportance, NodePersistMemory).
		SetTerminal(NodeOmegaHandle).
		SetTerminal(NodePersistMemory)

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &Workflow{graph: g, logger: deps.Logger}, nil
}

func routeIntent(s State) Node {
	if s.IsOmegaCommand {
		return NodeOmegaHandle
	}
	return NodeRetrieveMemory
}

// Run executes one turn. The returned State is the final state; on error it
// is the last consistent state and its Response may be empty.
func (w *Workflow) Run(ctx context.Context, req Request) (State, error) {
	if req.UserID == "" {
		return State{}, ErrUserRequired
	}
	if req.SessionID == "" {
		req.SessionID = req.UserID
	}

	start := time.Now()
	final, err := w.graph.Run(ctx, NewState(req.UserID, req.Message, req.SessionID, req.History))
	if err != nil {
		w.logger.Error("workflow failed", zap.String("user_id", req.UserID), zap.Error(err))
		return final, err
	}
	w.logger.Info("workflow completed",
		zap.String("user_id", req.UserID),
		zap.String("intent", string(final.Intent)),
		zap.Bool("omega", final.IsOmegaCommand),
		zap.Duration("elapsed", time.Since(start)),
	)
	return final, nil
}
