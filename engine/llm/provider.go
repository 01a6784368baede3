package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider enumerates supported chat model backends.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderOllama Provider = "ollama"
)

// DefaultKeepAlive keeps the ollama chat model loaded between turns.
const DefaultKeepAlive = "5m"

// Config captures normalized chat model settings.
type Config struct {
	Provider  Provider
	Model     string
	APIKey    string
	BaseURL   string
	KeepAlive string
}

var (
	errMissingProvider = errors.New("llm provider is required")
	errMissingModel    = errors.New("llm model is required")
	errMissingAPIKey   = errors.New("llm api key is required")
)

// New constructs a chat model for the configured provider.
func New(cfg *Config) (llms.Model, error) {
	if cfg == nil {
		return nil, errors.New("llm config is required")
	}
	if strings.TrimSpace(string(cfg.Provider)) == "" {
		return nil, errMissingProvider
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errMissingModel
	}
	switch cfg.Provider {
	case ProviderOpenAI:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errMissingAPIKey
		}
		opts := []openai.Option{
			openai.WithModel(cfg.Model),
			openai.WithToken(cfg.APIKey),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("llm: initialize openai model: %w", err)
		}
		return model, nil
	case ProviderOllama:
		keepAlive := cfg.KeepAlive
		if keepAlive == "" {
			keepAlive = DefaultKeepAlive
		}
		opts := []ollama.Option{
			ollama.WithModel(cfg.Model),
			ollama.WithKeepAlive(keepAlive),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		model, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("llm: initialize ollama model: %w", err)
		}
		return model, nil
	default:
		return nil, fmt.Errorf("llm: provider %q is not supported", cfg.Provider)
	}
}
