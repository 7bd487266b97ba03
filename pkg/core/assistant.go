package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oceanbase/vira-go/pkg/embedder"
	openaiEmbedder "github.com/oceanbase/vira-go/pkg/embedder/openai"
	qwenEmbedder "github.com/oceanbase/vira-go/pkg/embedder/qwen"
	"github.com/oceanbase/vira-go/pkg/intelligence"
	"github.com/oceanbase/vira-go/pkg/intent"
	"github.com/oceanbase/vira-go/pkg/llm"
	anthropicLLM "github.com/oceanbase/vira-go/pkg/llm/anthropic"
	deepseekLLM "github.com/oceanbase/vira-go/pkg/llm/deepseek"
	ollamaLLM "github.com/oceanbase/vira-go/pkg/llm/ollama"
	openaiLLM "github.com/oceanbase/vira-go/pkg/llm/openai"
	qwenLLM "github.com/oceanbase/vira-go/pkg/llm/qwen"
	"github.com/oceanbase/vira-go/pkg/persona"
	"github.com/oceanbase/vira-go/pkg/personality"
	personalitySQLite "github.com/oceanbase/vira-go/pkg/personality/sqlite"
	"github.com/oceanbase/vira-go/pkg/prompt"
	"github.com/oceanbase/vira-go/pkg/resilience"
	"github.com/oceanbase/vira-go/pkg/retrieval"
	"github.com/oceanbase/vira-go/pkg/storage"
	memoryStore "github.com/oceanbase/vira-go/pkg/storage/memory"
	"github.com/oceanbase/vira-go/pkg/storage/oceanbase"
	postgresStore "github.com/oceanbase/vira-go/pkg/storage/postgres"
	sqliteStore "github.com/oceanbase/vira-go/pkg/storage/sqlite"
	"github.com/oceanbase/vira-go/pkg/workflow"
)

// Version is reported by Health.
const Version = "1.0.0"

// GenericFailureResponse is returned when a turn cannot finish.
const GenericFailureResponse = "Üzgünüm, bir hata oluştu ve yanıt üretemedim. Teknik ekibimiz bilgilendirildi."

// ChatResult is the answer of one turn.
type ChatResult struct {
	Response      string `json:"response"`
	MemoryContext string `json:"memory_context"`

	// State is the final workflow state, for callers that need more than
	// the response.
	State workflow.State `json:"-"`
}

// HealthStatus reports whether the assistant can serve turns.
type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Store   string `json:"store,omitempty"`
	Breaker string `json:"breaker,omitempty"`
}

// Assistant runs conversation turns.
//
// It owns the memory store, the providers and the compiled workflow. It is
// safe for concurrent use; concurrent turns share only the store and the
// providers.
//
// Example usage:
//
//	config, _ := core.LoadConfigFromEnv()
//	assistant, _ := core.NewAssistant(config)
//	defer assistant.Close()
//
//	result, _ := assistant.Chat(ctx, "user_001", "Merhaba, nasılsın?",
//	    core.WithSessionID("session_42"),
//	)
type Assistant struct {
	config   *Config
	logger   *zap.Logger
	protocol *persona.Protocol

	store       storage.MemoryStore
	llm         llm.Provider
	embedder    embedder.Provider
	personality personality.Store
	refiner     *personality.LLMRefiner
	breaker     *resilience.Breaker

	workflow *workflow.Workflow

	// background tracks personality refinements started by Chat.
	background sync.WaitGroup
	// mu guards closing so no refinement joins background after Close.
	mu        sync.Mutex
	closing   bool
	closeOnce sync.Once
	closeErr  error
}

// NewAssistant creates an assistant from cfg.
//
// The assistant is initialized with:
//   - Memory store (SQLite, PostgreSQL, OceanBase or in-memory)
//   - Generation provider (OpenAI, DeepSeek, Qwen, Anthropic, Ollama)
//   - Embedding provider (OpenAI, Qwen)
//   - Persona protocol (embedded default or Persona.File)
//   - Personality store and refiner (if enabled)
//
// Providers are wrapped with retries, a circuit breaker and a rate limit.
//
// Parameters:
//   - cfg: Configuration; nil means DefaultConfig()
//   - opts: Injected collaborators and logger
//
// Returns a new Assistant, or an error if initialization fails.
func NewAssistant(cfg *Config, opts ...Option) (*Assistant, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	o := &assistantOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Assistant{config: cfg, logger: o.logger}
	if err := a.init(o); err != nil {
		_ = a.closeResources()
		return nil, err
	}
	return a, nil
}

func (a *Assistant) init(o *assistantOptions) error {
	cfg := a.config

	a.protocol = o.protocol
	if a.protocol == nil {
		p, err := persona.Load(cfg.Persona.File)
		if err != nil {
			return NewViraError("NewAssistant", fmt.Errorf("%w: %v", ErrInvalidConfig, err))
		}
		a.protocol = p
	}

	a.store = o.store
	if a.store == nil {
		ids, err := storage.NewSnowflakeGenerator(cfg.VectorStore.NodeID)
		if err != nil {
			return NewViraError("NewAssistant", err)
		}
		store, err := initStorage(cfg.VectorStore, cfg.Embedder.Dimensions, ids)
		if err != nil {
			return err
		}
		a.store = store
	}

	var guard *resilience.Guard
	if !o.skipGuarding {
		guard = a.newGuard()
	}

	generator := o.llm
	if generator == nil {
		p, err := initLLM(cfg.LLM, a.httpClient())
		if err != nil {
			return err
		}
		generator = p
	}
	a.llm = generator
	if guard != nil {
		a.llm = llm.NewResilientProvider(generator, *guard)
	}

	emb := o.embedder
	if emb == nil {
		p, err := initEmbedder(cfg.Embedder, a.httpClient())
		if err != nil {
			return err
		}
		emb = p
	}
	a.embedder = emb
	if guard != nil {
		a.embedder = embedder.NewResilientProvider(emb, *guard)
	}

	if err := a.initPersonality(o); err != nil {
		return err
	}

	deps := workflow.Deps{
		Classifier: intent.NewClassifier(a.llm,
			intent.WithLogger(a.logger.Named("intent")),
			intent.WithHistoryTurns(cfg.Workflow.HistoryTurns),
		),
		Retriever: retrieval.NewRetriever(a.embedder, a.store, retrieval.Config{
			TopK:                cfg.Workflow.TopK,
			SimilarityThreshold: cfg.Workflow.SimilarityThreshold,
			RecentLimit:         cfg.Workflow.RecentLimit,
		}, a.logger.Named("retrieval")),
		Assembler: prompt.NewAssembler(a.protocol,
			prompt.WithBlendWeight(cfg.Intelligence.BlendWeight),
			prompt.WithLogger(a.logger.Named("prompt")),
		),
		Generator:   a.llm,
		Embedder:    a.embedder,
		Store:       a.store,
		Policy:      intelligence.NewPromotionPolicy(cfg.Intelligence.PromotionThreshold),
		Personality: a.personality,
		Protocol:    a.protocol,
		TopK:        cfg.Workflow.TopK,
		Logger:      a.logger.Named("workflow"),
		Now:         o.now,
	}
	if cfg.Intelligence.SemanticEnabled {
		deps.Semantic = intelligence.NewSemanticEvaluator(a.llm, cfg.Intelligence.SemanticWeight, a.logger.Named("semantic"))
	}
	if cfg.Workflow.ContextRefinement {
		deps.Refiner = retrieval.NewContextRefiner(a.llm, a.logger.Named("refiner"))
	}

	wf, err := workflow.New(deps, workflow.WithMaxSteps(cfg.Workflow.MaxSteps))
	if err != nil {
		return NewViraError("NewAssistant", err)
	}
	a.workflow = wf
	return nil
}

func (a *Assistant) initPersonality(o *assistantOptions) error {
	cfg := a.config.Intelligence
	a.personality = o.personality
	if a.personality == nil && cfg.PersonalityEnabled {
		if cfg.PersonalityDBPath != "" {
			store, err := personalitySQLite.NewStore(&personalitySQLite.Config{DBPath: cfg.PersonalityDBPath})
			if err != nil {
				return NewViraError("NewAssistant", fmt.Errorf("%w: %v", ErrStorageOperation, err))
			}
			a.personality = store
		} else {
			a.personality = personality.NewMemoryStore()
		}
	}
	if a.personality != nil && cfg.PersonalityEnabled {
		a.refiner = personality.NewLLMRefiner(a.personality, a.llm,
			personality.WithLearningRate(cfg.LearningRate),
			personality.WithLogger(a.logger.Named("personality")),
		)
	}
	return nil
}

func (a *Assistant) newGuard() *resilience.Guard {
	rc := a.config.Resilience
	policy := resilience.DefaultPolicy()
	if rc.MaxAttempts > 0 {
		policy.MaxAttempts = rc.MaxAttempts
	}
	if rc.InitialBackoffMS > 0 {
		policy.InitialBackoff = time.Duration(rc.InitialBackoffMS) * time.Millisecond
	}

	breakerCfg := resilience.DefaultBreakerConfig()
	if rc.BreakerMaxFailures > 0 {
		breakerCfg.MaxFailures = rc.BreakerMaxFailures
	}
	if rc.BreakerOpenSeconds > 0 {
		breakerCfg.OpenTimeout = time.Duration(rc.BreakerOpenSeconds) * time.Second
	}
	a.breaker = resilience.NewBreaker("providers", breakerCfg, a.logger.Named("breaker"))

	return &resilience.Guard{
		Policy:  policy,
		Breaker: a.breaker,
		Limiter: resilience.NewLimiter(rc.RateLimitPerSecond, rc.RateLimitBurst),
		Timeout: time.Duration(rc.TimeoutSeconds) * time.Second,
	}
}

// httpClient has no timeout of its own; each attempt is bounded by the guard.
func (a *Assistant) httpClient() *http.Client {
	return &http.Client{}
}

// Chat runs one conversation turn.
//
// The result is never nil when err is nil or wraps a workflow failure: in
// that case Response is GenericFailureResponse and MemoryContext is empty.
//
// Parameters:
//   - ctx: Context for cancellation
//   - userID: The user (required)
//   - message: The user's message
//   - opts: Session and history
//
// Returns the turn's result and an error wrapping ErrInvalidInput,
// ErrStepLimitExceeded or the workflow error.
func (a *Assistant) Chat(ctx context.Context, userID, message string, opts ...ChatOption) (*ChatResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, NewViraError("Chat", fmt.Errorf("%w: user id is required", ErrInvalidInput))
	}
	options := applyChatOptions(opts)

	final, err := a.workflow.Run(ctx, workflow.Request{
		UserID:    userID,
		Message:   message,
		SessionID: options.SessionID,
		History:   options.History,
	})
	if err != nil {
		if errors.Is(err, workflow.ErrStepLimit) {
			err = fmt.Errorf("%w: %w", ErrStepLimitExceeded, err)
		}
		a.logger.Error("turn failed", zap.String("user_id", userID), zap.Error(err))
		return &ChatResult{Response: GenericFailureResponse, State: final}, NewViraError("Chat", err)
	}

	if a.refiner != nil && !final.IsOmegaCommand && !final.GenerationFailed {
		a.refine(userID, message, final.Response)
	}

	return &ChatResult{
		Response:      final.Response,
		MemoryContext: final.MemoryContext,
		State:         final,
	}, nil
}

// refine applies the keyword nudge now and the LLM analysis in the
// background. Close waits for running analyses; once Close has begun no
// refinement starts.
func (a *Assistant) refine(userID, message, response string) {
	log := a.logger.With(zap.String("user_id", userID))

	a.mu.Lock()
	if a.closing {
		a.mu.Unlock()
		log.Debug("assistant closing, personality refinement skipped")
		return
	}
	a.background.Add(1)
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if _, err := a.refiner.Nudge(ctx, userID, message); err != nil {
		log.Warn("personality nudge failed", zap.Error(err))
	}
	cancel()

	go func() {
		defer a.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := a.refiner.Refine(ctx, userID, message, response); err != nil {
			log.Warn("personality refinement failed", zap.Error(err))
		}
	}()
}

// Personality returns the dynamic personality vector of userID. It returns
// ErrNotFound when personality refinement is disabled.
func (a *Assistant) Personality(ctx context.Context, userID string) (personality.Vector, error) {
	if a.personality == nil {
		return nil, NewViraError("Personality", ErrNotFound)
	}
	v, err := a.personality.Get(ctx, userID)
	if err != nil {
		return nil, NewViraError("Personality", fmt.Errorf("%w: %v", ErrStorageOperation, err))
	}
	return v, nil
}

// Health probes the store and reports the provider breaker state.
func (a *Assistant) Health(ctx context.Context) HealthStatus {
	status := HealthStatus{Status: "healthy", Version: Version, Store: "ok"}
	if _, err := a.store.RecentInteractions(ctx, "__health__", 1); err != nil {
		a.logger.Warn("health probe failed", zap.Error(err))
		status.Status = "degraded"
		status.Store = "unavailable"
	}
	if a.breaker != nil {
		status.Breaker = a.breaker.State()
		if status.Breaker == "open" {
			status.Status = "degraded"
		}
	}
	return status
}

// Close waits for background refinements and closes the store and providers.
//
// Example:
//
//	defer assistant.Close()
func (a *Assistant) Close() error {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closing = true
		a.mu.Unlock()
		a.background.Wait()
		a.closeErr = a.closeResources()
	})
	return a.closeErr
}

func (a *Assistant) closeResources() error {
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.personality != nil {
		if err := a.personality.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.llm != nil {
		if err := a.llm.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.embedder != nil {
		if err := a.embedder.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return NewViraError("Close", errors.Join(errs...))
	}
	return nil
}

// initStorage initializes the memory store.
func initStorage(cfg VectorStoreConfig, dims int, ids storage.IDGenerator) (storage.MemoryStore, error) {
	var (
		store storage.MemoryStore
		err   error
	)
	switch cfg.Provider {
	case "sqlite":
		store, err = sqliteStore.NewClient(&sqliteStore.Config{
			DBPath:             storeString(cfg.Config, "db_path", "./vira.db"),
			TablePrefix:        storeString(cfg.Config, "table_prefix", ""),
			EmbeddingModelDims: dims,
		}, ids)
	case "postgres":
		store, err = postgresStore.NewClient(&postgresStore.Config{
			Host:               storeString(cfg.Config, "host", "localhost"),
			Port:               storeInt(cfg.Config, "port", 5432),
			User:               storeString(cfg.Config, "user", "postgres"),
			Password:           storeString(cfg.Config, "password", ""),
			DBName:             storeString(cfg.Config, "db_name", "vira"),
			TablePrefix:        storeString(cfg.Config, "table_prefix", ""),
			EmbeddingModelDims: dims,
			SSLMode:            storeString(cfg.Config, "ssl_mode", "disable"),
		}, ids)
	case "oceanbase":
		store, err = oceanbase.NewClient(&oceanbase.Config{
			Host:               storeString(cfg.Config, "host", "127.0.0.1"),
			Port:               storeInt(cfg.Config, "port", 2881),
			User:               storeString(cfg.Config, "user", "root@sys"),
			Password:           storeString(cfg.Config, "password", ""),
			DBName:             storeString(cfg.Config, "db_name", "vira"),
			TablePrefix:        storeString(cfg.Config, "table_prefix", ""),
			EmbeddingModelDims: dims,
		}, ids)
	case "memory":
		return memoryStore.NewStore(ids, memoryStore.WithDimensions(dims)), nil
	default:
		return nil, NewViraError("initStorage", fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, cfg.Provider))
	}
	if err != nil {
		return nil, NewViraError("initStorage", fmt.Errorf("%w: %v", ErrStorageOperation, err))
	}
	return store, nil
}

// initLLM initializes the generation provider.
func initLLM(cfg LLMConfig, client *http.Client) (llm.Provider, error) {
	var (
		provider llm.Provider
		err      error
	)
	switch cfg.Provider {
	case "openai":
		provider, err = openaiLLM.NewClient(&openaiLLM.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			HTTPClient: client,
		})
	case "deepseek":
		provider, err = deepseekLLM.NewClient(&deepseekLLM.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			HTTPClient: client,
		})
	case "qwen":
		provider, err = qwenLLM.NewClient(&qwenLLM.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			HTTPClient: client,
		})
	case "anthropic":
		provider, err = anthropicLLM.NewClient(&anthropicLLM.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			HTTPClient: client,
		})
	case "ollama":
		provider, err = ollamaLLM.NewClient(&ollamaLLM.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			HTTPClient: client,
		})
	default:
		return nil, NewViraError("initLLM", fmt.Errorf("%w: unknown llm provider %q", ErrInvalidConfig, cfg.Provider))
	}
	if err != nil {
		return nil, NewViraError("initLLM", fmt.Errorf("%w: %v", ErrLLMOperation, err))
	}
	return provider, nil
}

// initEmbedder initializes the embedding provider.
func initEmbedder(cfg EmbedderConfig, client *http.Client) (embedder.Provider, error) {
	var (
		provider embedder.Provider
		err      error
	)
	switch cfg.Provider {
	case "openai":
		provider, err = openaiEmbedder.NewClient(&openaiEmbedder.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
			HTTPClient: client,
		})
	case "qwen":
		provider, err = qwenEmbedder.NewClient(&qwenEmbedder.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
			HTTPClient: client,
		})
	default:
		return nil, NewViraError("initEmbedder", fmt.Errorf("%w: unknown embedder %q", ErrInvalidConfig, cfg.Provider))
	}
	if err != nil {
		return nil, NewViraError("initEmbedder", fmt.Errorf("%w: %v", ErrEmbeddingFailed, err))
	}
	return provider, nil
}
