package workflow

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// DefaultMaxSteps is the default step ceiling of a run.
const DefaultMaxSteps = 25

var (
	// ErrStepLimit is returned when a run exceeds the step ceiling.
	ErrStepLimit = errors.New("workflow step limit exceeded")

	// ErrStagePanic is returned when a stage panics.
	ErrStagePanic = errors.New("workflow stage panicked")

	// ErrNoTransition is returned when a non-terminal node has no outgoing edge.
	ErrNoTransition = errors.New("workflow node has no transition")

	// ErrUnknownNode is returned when an edge or router targets an unknown node.
	ErrUnknownNode = errors.New("workflow node is not registered")
)

// Node names a stage in the graph.
type Node string

// Stage computes the patch of one node. It must not modify s.
type Stage func(ctx context.Context, s State) Patch

// Router picks the next node from the state.
type Router func(s State) Node

// Graph is a directed graph of stages with one entry node.
type Graph struct {
	entry    Node
	stages   map[Node]Stage
	edges    map[Node]Node
	routers  map[Node]Router
	terminal map[Node]bool
	maxSteps int
	logger   *zap.Logger
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithMaxSteps sets the step ceiling.
func WithMaxSteps(n int) GraphOption {
	return func(g *Graph) {
		if n > 0 {
			g.maxSteps = n
		}
	}
}

// WithGraphLogger sets the logger.
func WithGraphLogger(logger *zap.Logger) GraphOption {
	return func(g *Graph) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGraph creates an empty graph that starts at entry.
func NewGraph(entry Node, opts ...GraphOption) *Graph {
	g := &Graph{
		entry:    entry,
		stages:   make(map[Node]Stage),
		edges:    make(map[Node]Node),
		routers:  make(map[Node]Router),
		terminal: make(map[Node]bool),
		maxSteps: DefaultMaxSteps,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddStage registers the stage of node.
func (g *Graph) AddStage(node Node, stage Stage) *Graph {
	g.stages[node] = stage
	return g
}

// AddEdge adds an unconditional transition.
func (g *Graph) AddEdge(from, to Node) *Graph {
	g.edges[from] = to
	return g
}

// AddConditionalEdge routes from to whatever router returns.
func (g *Graph) AddConditionalEdge(from Node, router Router) *Graph {
	g.routers[from] = router
	return g
}

// SetTerminal marks node as an exit of the graph.
func (g *Graph) SetTerminal(node Node) *Graph {
	g.terminal[node] = true
	return g
}

// Validate checks that every node reached by an edge is registered and
// that every non-terminal node has a way out.
func (g *Graph) Validate() error {
	if _, ok := g.stages[g.entry]; !ok {
		return fmt.Errorf("entry %q: %w", g.entry, ErrUnknownNode)
	}
	for from, to := range g.edges {
		if _, ok := g.stages[to]; !ok {
			return fmt.Errorf("edge %s -> %s: %w", from, to, ErrUnknownNode)
		}
	}
	for node := range g.stages {
		if g.terminal[node] {
			continue
		}
		_, hasEdge := g.edges[node]
		_, hasRouter := g.routers[node]
		if !hasEdge && !hasRouter {
			return fmt.Errorf("node %q: %w", node, ErrNoTransition)
		}
	}
	return nil
}

// Run executes the graph from the entry node until a terminal node has run.
//
// Parameters:
//   - ctx: Context passed to every stage
//   - initial: The entry state
//
// Returns:
//   - State: The last consistent state, also on error
//   - error: ErrStepLimit, ErrStagePanic, ErrFieldRewritten or a routing error
func (g *Graph) Run(ctx context.Context, initial State) (State, error) {
	state := initial
	node := g.entry

	for step := 1; ; step++ {
		if step > g.maxSteps {
			return state, fmt.Errorf("after %d steps: %w", g.maxSteps, ErrStepLimit)
		}

		stage, ok := g.stages[node]
		if !ok {
			return state, fmt.Errorf("node %q: %w", node, ErrUnknownNode)
		}

		patch, err := g.runStage(ctx, node, stage, state)
		if err != nil {
			return state, err
		}

		next, err := Apply(state, patch)
		if err != nil {
			g.logger.Error("state integrity violation", zap.String("stage", string(node)), zap.Error(err))
			return state, fmt.Errorf("stage %s: %w", node, err)
		}
		state = next

		if g.terminal[node] {
			return state, nil
		}

		node, err = g.next(node, state)
		if err != nil {
			return state, err
		}
	}
}

func (g *Graph) runStage(ctx context.Context, node Node, stage Stage, s State) (patch Patch, err error) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("stage panicked", zap.String("stage", string(node)), zap.Any("panic", r))
			err = fmt.Errorf("stage %s: %v: %w", node, r, ErrStagePanic)
		}
	}()
	g.logger.Debug("stage started", zap.String("stage", string(node)), zap.String("user_id", s.UserID))
	return stage(ctx, s), nil
}

func (g *Graph) next(node Node, s State) (Node, error) {
	if router, ok := g.routers[node]; ok {
		to := router(s)
		if _, ok := g.stages[to]; !ok {
			return "", fmt.Errorf("router of %s chose %q: %w", node, to, ErrUnknownNode)
		}
		return to, nil
	}
	if to, ok := g.edges[node]; ok {
		return to, nil
	}
	return "", fmt.Errorf("node %q: %w", node, ErrNoTransition)
}
