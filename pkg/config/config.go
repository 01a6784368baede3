package config

import (
	"context"
	"time"
)

// Config is the application configuration, resolved from defaults and
// environment variables. Field defaults follow the embedding model in use:
// mxbai-embed-large accepts 512 tokens, so the chunking ceiling stays at a
// conservative 500 characters.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	LLM       LLMConfig       `koanf:"llm"`
	Knowledge KnowledgeConfig `koanf:"knowledge"`
	GitHub    GitHubConfig    `koanf:"github"`
}

// ServerConfig controls the HTTP agent server.
type ServerConfig struct {
	Host string `koanf:"host" env:"SERVER_HOST" validate:"required"`
	Port int    `koanf:"port" env:"SERVER_PORT" validate:"min=1,max=65535"`
}

// DatabaseConfig carries the Postgres connection string for pgvector.
type DatabaseConfig struct {
	URL string `koanf:"url" env:"DATABASE_URL"`
}

// EmbeddingConfig selects the embedding provider and model.
type EmbeddingConfig struct {
	Provider  string `koanf:"provider"  env:"EMBEDDING_PROVIDER"  validate:"oneof=ollama openai"`
	Model     string `koanf:"model"     env:"EMBEDDING_MODEL"     validate:"required"`
	Dimension int    `koanf:"dimension" env:"EMBEDDING_DIMENSION" validate:"gt=0"`
	BaseURL   string `koanf:"base_url"  env:"OLLAMA_BASE_URL"`
	APIKey    string `koanf:"api_key"   env:"OPENAI_API_KEY"`
}

// LLMConfig selects the chat model provider used by the agent.
type LLMConfig struct {
	Provider string `koanf:"provider" env:"LLM_PROVIDER" validate:"oneof=ollama openai"`
	Model    string `koanf:"model"    env:"LLM_MODEL"    validate:"required"`
}

// KnowledgeConfig tunes chunking, batching, and retrieval.
type KnowledgeConfig struct {
	// MaxChars is the hard per-chunk character ceiling tied to the
	// embedding model input limit. Chunk size and overlap derive from it
	// unless overridden by the caller.
	MaxChars             int     `koanf:"max_chars"              env:"EMBED_MAX_CHARS"        validate:"gt=0"`
	BatchSize            int     `koanf:"batch_size"             env:"EMBED_BATCH_SIZE"       validate:"gt=0"`
	HeartbeatIntervalSec int     `koanf:"heartbeat_interval_sec" env:"HEARTBEAT_INTERVAL_SEC" validate:"gte=0"`
	Collection           string  `koanf:"collection"             env:"KB_COLLECTION"          validate:"required"`
	RetrievalTopK        int     `koanf:"retrieval_top_k"        env:"RETRIEVAL_TOP_K"        validate:"gt=0"`
	RetrievalMinScore    float64 `koanf:"retrieval_min_score"    env:"RETRIEVAL_MIN_SCORE"    validate:"gte=0,lte=1"`
}

// GitHubConfig carries credentials for the github_repo source loader.
type GitHubConfig struct {
	Token string `koanf:"token" env:"GITHUB_PERSONAL_ACCESS_TOKEN"`
}

// HeartbeatInterval returns the heartbeat period as a duration.
func (k KnowledgeConfig) HeartbeatInterval() time.Duration {
	return time.Duration(k.HeartbeatIntervalSec) * time.Second
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8123,
		},
		Embedding: EmbeddingConfig{
			Provider:  "ollama",
			Model:     "mxbai-embed-large",
			Dimension: 1024,
			BaseURL:   "http://localhost:11434",
		},
		LLM: LLMConfig{
			Provider: "ollama",
			Model:    "llama3.2",
		},
		Knowledge: KnowledgeConfig{
			MaxChars:             500,
			BatchSize:            50,
			HeartbeatIntervalSec: 15,
			Collection:           "kb_engine_playground",
			RetrievalTopK:        4,
		},
	}
}

type ctxKey struct{}

// ContextWithConfig returns a context carrying the resolved configuration.
func ContextWithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext returns the configuration stored in ctx, or nil.
func FromContext(ctx context.Context) *Config {
	if ctx == nil {
		return nil
	}
	cfg, _ := ctx.Value(ctxKey{}).(*Config)
	return cfg
}
