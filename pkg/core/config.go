package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/oceanbase/vira-go/pkg/intelligence"
	"github.com/oceanbase/vira-go/pkg/intent"
	"github.com/oceanbase/vira-go/pkg/personality"
	"github.com/oceanbase/vira-go/pkg/resilience"
	"github.com/oceanbase/vira-go/pkg/retrieval"
	"github.com/oceanbase/vira-go/pkg/workflow"
)

// Config contains the complete configuration of the assistant.
//
// Example:
//
//	config := core.DefaultConfig()
//	config.LLM = core.LLMConfig{
//	    Provider: "openai",
//	    APIKey:   "sk-...",
//	    Model:    "gpt-4o-mini",
//	}
//	config.VectorStore = core.VectorStoreConfig{
//	    Provider: "sqlite",
//	    Config: map[string]interface{}{
//	        "db_path": "./vira.db",
//	    },
//	}
type Config struct {
	// LLM contains generation provider configuration.
	LLM LLMConfig `json:"llm"`

	// Embedder contains embedding provider configuration.
	Embedder EmbedderConfig `json:"embedder"`

	// VectorStore contains memory store configuration.
	VectorStore VectorStoreConfig `json:"vector_store"`

	// Workflow tunes retrieval and the step ceiling of a turn.
	Workflow WorkflowConfig `json:"workflow"`

	// Intelligence tunes scoring, promotion and personality refinement.
	Intelligence IntelligenceConfig `json:"intelligence"`

	// Persona selects the persona and omega protocol document.
	Persona PersonaConfig `json:"persona"`

	// Resilience guards provider calls.
	Resilience ResilienceConfig `json:"resilience"`

	// Server configures the HTTP front-end.
	Server ServerConfig `json:"server"`

	// Log configures the zap logger.
	Log LogConfig `json:"log"`
}

// LLMConfig contains configuration for the generation provider.
//
// Supported providers: openai, deepseek, qwen, anthropic, ollama
type LLMConfig struct {
	// Provider is the provider name.
	Provider string `json:"provider"`

	// APIKey is the API key of the provider. Ollama does not need one.
	APIKey string `json:"api_key"`

	// Model is the model name (e.g. "gpt-4o-mini", "deepseek-chat").
	Model string `json:"model"`

	// BaseURL is the base URL for the API (optional, uses provider default if empty).
	BaseURL string `json:"base_url,omitempty"`
}

// EmbedderConfig contains configuration for the embedding provider.
//
// Supported providers: openai, qwen
type EmbedderConfig struct {
	// Provider is the provider name.
	Provider string `json:"provider"`

	// APIKey is the API key of the provider.
	APIKey string `json:"api_key"`

	// Model is the embedding model name.
	Model string `json:"model"`

	// BaseURL is the base URL for the API (optional).
	BaseURL string `json:"base_url,omitempty"`

	// Dimensions is the length of the embedding vectors.
	Dimensions int `json:"dimensions,omitempty"`
}

// VectorStoreConfig contains configuration for the memory store.
//
// Supported providers: sqlite, postgres, oceanbase, memory
type VectorStoreConfig struct {
	// Provider is the store name.
	Provider string `json:"provider"`

	// Config contains provider-specific configuration.
	// For SQLite: db_path, table_prefix
	// For OceanBase: host, port, user, password, db_name, table_prefix
	// For PostgreSQL: host, port, user, password, db_name, table_prefix, ssl_mode
	// The vector length always comes from EmbedderConfig.Dimensions.
	Config map[string]interface{} `json:"config"`

	// NodeID is the snowflake node of this process (0-1023).
	NodeID int64 `json:"node_id,omitempty"`
}

// WorkflowConfig tunes a conversation turn.
type WorkflowConfig struct {
	// MaxSteps is the step ceiling of one turn.
	MaxSteps int `json:"max_steps"`

	// TopK is the number of long-term memories retrieved per turn.
	TopK int `json:"top_k"`

	// SimilarityThreshold hides weaker long-term memories from the prompt.
	SimilarityThreshold float64 `json:"similarity_threshold"`

	// RecentLimit is the number of recent exchanges shown in the prompt.
	RecentLimit int `json:"recent_limit"`

	// HistoryTurns is the number of history messages given to the intent classifier.
	HistoryTurns int `json:"history_turns"`

	// ContextRefinement condenses the retrieved memories with an extra LLM
	// call before the prompt is assembled.
	ContextRefinement bool `json:"context_refinement"`
}

// IntelligenceConfig tunes importance scoring and personality refinement.
type IntelligenceConfig struct {
	// PromotionThreshold is the base threshold for long-term promotion.
	PromotionThreshold float64 `json:"promotion_threshold"`

	// SemanticEnabled turns on the LLM-backed semantic evaluator.
	SemanticEnabled bool `json:"semantic_enabled"`

	// SemanticWeight is the weight of the semantic score in the combined score.
	SemanticWeight float64 `json:"semantic_weight"`

	// PersonalityEnabled turns on personality refinement after each turn.
	PersonalityEnabled bool `json:"personality_enabled"`

	// PersonalityDBPath is the SQLite file of the personality store.
	// Empty keeps vectors in memory.
	PersonalityDBPath string `json:"personality_db_path,omitempty"`

	// LearningRate is the step size of LLM-driven refinement.
	LearningRate float64 `json:"learning_rate"`

	// BlendWeight is the weight of the dynamic vector over the base personality.
	BlendWeight float64 `json:"blend_weight"`
}

// PersonaConfig selects the persona document.
type PersonaConfig struct {
	// File is a YAML persona and omega protocol document. Empty uses the
	// embedded default.
	File string `json:"file,omitempty"`
}

// ResilienceConfig guards provider calls.
type ResilienceConfig struct {
	// MaxAttempts is the total number of attempts of a provider call.
	MaxAttempts int `json:"max_attempts"`

	// InitialBackoffMS is the wait before the second attempt.
	InitialBackoffMS int `json:"initial_backoff_ms"`

	// TimeoutSeconds bounds each provider attempt.
	TimeoutSeconds int `json:"timeout_seconds"`

	// RateLimitPerSecond limits provider calls; 0 disables the limit.
	RateLimitPerSecond float64 `json:"rate_limit_per_second"`

	// RateLimitBurst is the burst of the provider limiter.
	RateLimitBurst int `json:"rate_limit_burst"`

	// BreakerMaxFailures trips the circuit after this many consecutive failures.
	BreakerMaxFailures uint32 `json:"breaker_max_failures"`

	// BreakerOpenSeconds is how long the circuit stays open.
	BreakerOpenSeconds int `json:"breaker_open_seconds"`
}

// ServerConfig configures the HTTP front-end.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr"`

	// RateLimitPerSecond limits requests per client; 0 disables the limit.
	RateLimitPerSecond float64 `json:"rate_limit_per_second"`

	// RateLimitBurst is the per-client burst.
	RateLimitBurst int `json:"rate_limit_burst"`

	// ShutdownTimeoutSeconds bounds graceful shutdown.
	ShutdownTimeoutSeconds int `json:"shutdown_timeout_seconds"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level"`

	// Development selects the console encoder.
	Development bool `json:"development"`
}

// DefaultConfig returns a configuration with every numeric default set and
// an in-memory store.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{Provider: "openai"},
		Embedder: EmbedderConfig{
			Provider:   "openai",
			Dimensions: 1536,
		},
		VectorStore: VectorStoreConfig{
			Provider: "memory",
			Config:   map[string]interface{}{},
			NodeID:   1,
		},
		Workflow: WorkflowConfig{
			MaxSteps:            workflow.DefaultMaxSteps,
			TopK:                retrieval.DefaultTopK,
			SimilarityThreshold: retrieval.DefaultSimilarityThreshold,
			RecentLimit:         retrieval.DefaultRecentLimit,
			HistoryTurns:        intent.DefaultHistoryTurns,
		},
		Intelligence: IntelligenceConfig{
			PromotionThreshold: intelligence.DefaultPromotionThreshold,
			SemanticWeight:     intelligence.DefaultSemanticWeight,
			LearningRate:       personality.DefaultLearningRate,
			BlendWeight:        personality.DefaultBlendWeight,
		},
		Resilience: ResilienceConfig{
			MaxAttempts:        resilience.DefaultPolicy().MaxAttempts,
			InitialBackoffMS:   int(resilience.DefaultPolicy().InitialBackoff / time.Millisecond),
			TimeoutSeconds:     30,
			RateLimitBurst:     1,
			BreakerMaxFailures: resilience.DefaultBreakerConfig().MaxFailures,
			BreakerOpenSeconds: int(resilience.DefaultBreakerConfig().OpenTimeout / time.Second),
		},
		Server: ServerConfig{
			Addr:                   ":8080",
			RateLimitPerSecond:     5,
			RateLimitBurst:         10,
			ShutdownTimeoutSeconds: 10,
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for .env or .env.example files (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Overlays the environment on DefaultConfig()
//
// Supported environment variables:
//   - DATABASE_PROVIDER (sqlite, postgres, oceanbase, memory)
//   - SQLITE_PATH, SQLITE_TABLE_PREFIX
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD, POSTGRES_DATABASE, POSTGRES_SSLMODE
//   - OCEANBASE_HOST, OCEANBASE_PORT, OCEANBASE_USER, OCEANBASE_PASSWORD, OCEANBASE_DATABASE
//   - LLM_PROVIDER, LLM_API_KEY, LLM_MODEL, LLM_BASE_URL
//   - EMBEDDING_PROVIDER, EMBEDDING_API_KEY, EMBEDDING_MODEL, EMBEDDING_BASE_URL, EMBEDDING_DIMS
//   - VIRA_TOP_K, VIRA_PROMOTION_THRESHOLD, VIRA_SEMANTIC_SCORING, VIRA_CONTEXT_REFINER, VIRA_PERSONALITY,
//     VIRA_PERSONALITY_DB, VIRA_PERSONA_FILE, VIRA_LOG_LEVEL, VIRA_LOG_DEV, VIRA_ADDR, VIRA_NODE_ID
//
// Returns a Config instance, or an error if a numeric variable does not parse.
func LoadConfigFromEnv() (*Config, error) {
	envPath, found := FindEnvFile()
	if found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	config := DefaultConfig()
	var parseErr error
	atoi := func(key string, def int) int {
		raw := os.Getenv(key)
		if raw == "" {
			return def
		}
		v, err := strconv.Atoi(raw)
		if err != nil && parseErr == nil {
			parseErr = fmt.Errorf("%s: %w", key, err)
		}
		if err != nil {
			return def
		}
		return v
	}
	atof := func(key string, def float64) float64 {
		raw := os.Getenv(key)
		if raw == "" {
			return def
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil && parseErr == nil {
			parseErr = fmt.Errorf("%s: %w", key, err)
		}
		if err != nil {
			return def
		}
		return v
	}

	provider := getEnvOrDefault("DATABASE_PROVIDER", "sqlite")
	storeConfig := map[string]interface{}{}
	switch provider {
	case "sqlite":
		storeConfig = map[string]interface{}{
			"db_path":      getEnvOrDefault("SQLITE_PATH", "./vira.db"),
			"table_prefix": getEnvOrDefault("SQLITE_TABLE_PREFIX", "vira_"),
		}
	case "postgres":
		storeConfig = map[string]interface{}{
			"host":         getEnvOrDefault("POSTGRES_HOST", "localhost"),
			"port":         atoi("POSTGRES_PORT", 5432),
			"user":         getEnvOrDefault("POSTGRES_USER", "postgres"),
			"password":     os.Getenv("POSTGRES_PASSWORD"),
			"db_name":      getEnvOrDefault("POSTGRES_DATABASE", "vira"),
			"table_prefix": getEnvOrDefault("POSTGRES_TABLE_PREFIX", "vira_"),
			"ssl_mode":     getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		}
	case "oceanbase":
		storeConfig = map[string]interface{}{
			"host":         getEnvOrDefault("OCEANBASE_HOST", "127.0.0.1"),
			"port":         atoi("OCEANBASE_PORT", 2881),
			"user":         getEnvOrDefault("OCEANBASE_USER", "root@sys"),
			"password":     os.Getenv("OCEANBASE_PASSWORD"),
			"db_name":      getEnvOrDefault("OCEANBASE_DATABASE", "vira"),
			"table_prefix": getEnvOrDefault("OCEANBASE_TABLE_PREFIX", "vira_"),
		}
	}
	config.VectorStore = VectorStoreConfig{
		Provider: provider,
		Config:   storeConfig,
		NodeID:   int64(atoi("VIRA_NODE_ID", 1)),
	}

	llmProvider := getEnvOrDefault("LLM_PROVIDER", "openai")
	llmBaseURL := os.Getenv("LLM_BASE_URL")
	switch llmProvider {
	case "deepseek":
		llmBaseURL = getEnvOrDefault("DEEPSEEK_LLM_BASE_URL", llmBaseURL)
	case "ollama":
		llmBaseURL = getEnvOrDefault("OLLAMA_LLM_BASE_URL", llmBaseURL)
	case "anthropic":
		llmBaseURL = getEnvOrDefault("ANTHROPIC_LLM_BASE_URL", llmBaseURL)
	case "qwen":
		llmBaseURL = getEnvOrDefault("QWEN_LLM_BASE_URL", llmBaseURL)
	}
	config.LLM = LLMConfig{
		Provider: llmProvider,
		APIKey:   os.Getenv("LLM_API_KEY"),
		Model:    os.Getenv("LLM_MODEL"),
		BaseURL:  llmBaseURL,
	}

	embedderProvider := getEnvOrDefault("EMBEDDING_PROVIDER", "openai")
	config.Embedder = EmbedderConfig{
		Provider:   embedderProvider,
		APIKey:     getEnvOrDefault("EMBEDDING_API_KEY", config.LLM.APIKey),
		Model:      os.Getenv("EMBEDDING_MODEL"),
		BaseURL:    os.Getenv("EMBEDDING_BASE_URL"),
		Dimensions: atoi("EMBEDDING_DIMS", defaultDimensions(embedderProvider)),
	}

	config.Workflow.TopK = atoi("VIRA_TOP_K", config.Workflow.TopK)
	config.Workflow.MaxSteps = atoi("VIRA_MAX_STEPS", config.Workflow.MaxSteps)
	config.Intelligence.PromotionThreshold = atof("VIRA_PROMOTION_THRESHOLD", config.Intelligence.PromotionThreshold)
	config.Intelligence.SemanticEnabled = envBool("VIRA_SEMANTIC_SCORING")
	config.Workflow.ContextRefinement = envBool("VIRA_CONTEXT_REFINER")
	config.Intelligence.PersonalityEnabled = envBool("VIRA_PERSONALITY")
	config.Intelligence.PersonalityDBPath = os.Getenv("VIRA_PERSONALITY_DB")
	config.Persona.File = os.Getenv("VIRA_PERSONA_FILE")
	config.Resilience.TimeoutSeconds = atoi("VIRA_PROVIDER_TIMEOUT", config.Resilience.TimeoutSeconds)
	config.Resilience.RateLimitPerSecond = atof("VIRA_PROVIDER_RPS", config.Resilience.RateLimitPerSecond)
	config.Server.Addr = getEnvOrDefault("VIRA_ADDR", config.Server.Addr)
	config.Log.Level = getEnvOrDefault("VIRA_LOG_LEVEL", config.Log.Level)
	config.Log.Development = envBool("VIRA_LOG_DEV")

	if parseErr != nil {
		return nil, NewViraError("LoadConfigFromEnv", fmt.Errorf("%w: %v", ErrInvalidConfig, parseErr))
	}
	return config, nil
}

// LoadConfigFromEnvFile loads configuration from a specific .env file.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return LoadConfigFromEnv()
}

// LoadConfigFromJSON loads configuration from a JSON file. Fields missing
// from the file keep their DefaultConfig values.
//
// Parameters:
//   - path: Path to the JSON configuration file
//
// Returns a Config instance, or an error if loading or parsing fails.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewViraError("LoadConfigFromJSON", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, NewViraError("LoadConfigFromJSON", err)
	}
	return config, nil
}

// Validate validates the configuration.
//
// Checks that:
//   - LLM, embedder and vector store providers are specified
//   - embedding dimensions are positive
//   - the promotion threshold and blend weight lie in [0, 1]
//
// Returns an error wrapping ErrInvalidConfig if validation fails, nil otherwise.
func (c *Config) Validate() error {
	var problem string
	switch {
	case c.LLM.Provider == "":
		problem = "llm provider is required"
	case c.Embedder.Provider == "":
		problem = "embedder provider is required"
	case c.VectorStore.Provider == "":
		problem = "vector store provider is required"
	case c.Embedder.Dimensions <= 0:
		problem = "embedding dimensions must be positive"
	case c.Intelligence.PromotionThreshold < 0 || c.Intelligence.PromotionThreshold > 1:
		problem = "promotion threshold must be within [0, 1]"
	case c.Intelligence.BlendWeight < 0 || c.Intelligence.BlendWeight > 1:
		problem = "blend weight must be within [0, 1]"
	}
	if problem != "" {
		return NewViraError("Validate", fmt.Errorf("%w: %s", ErrInvalidConfig, problem))
	}
	return nil
}

func defaultDimensions(provider string) int {
	if provider == "qwen" {
		return 1024
	}
	return 1536
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envBool(key string) bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return v
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
//
// Returns:
//   - path: Path to the found file (empty if not found)
//   - found: True if a file was found, false otherwise
func FindEnvFile() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for i := 0; i <= 5; i++ {
		for _, name := range []string{".env", ".env.example"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, true
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

// storeString reads a string option of a store config map.
func storeString(m map[string]interface{}, key, def string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return def
}

// storeInt reads an integer option; JSON numbers arrive as float64.
func storeInt(m map[string]interface{}, key string, def int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
