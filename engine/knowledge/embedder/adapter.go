package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider enumerates supported embedding backends.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderOllama Provider = "ollama"
)

// DefaultKeepAlive keeps the ollama model resident between batches so a
// long ingestion run does not pay the model load cost per request.
const DefaultKeepAlive = "5m"

// Config captures normalized embedder settings.
type Config struct {
	ID            string
	Provider      Provider
	Model         string
	APIKey        string
	BaseURL       string
	KeepAlive     string
	Dimension     int
	BatchSize     int
	StripNewLines bool
}

// Embedder is the contract the ingestion pipeline and retriever depend on.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	BatchSize() int
}

var (
	errMissingID        = errors.New("embedder id is required")
	errMissingProvider  = errors.New("embedder provider is required")
	errMissingModel     = errors.New("embedder model is required")
	errMissingAPIKey    = errors.New("embedder api key is required")
	errInvalidDimension = errors.New("embedder dimension must be greater than zero")
	errInvalidBatchSize = errors.New("embedder batch size must be greater than zero")
)

// Adapter wraps a langchaingo embedder and augments error reporting.
type Adapter struct {
	id        string
	provider  Provider
	model     string
	dimension int
	batchSize int
	impl      embeddings.Embedder
	cacheMu   sync.Mutex
	cache     *lru.Cache[string, []float32]
}

// New constructs a provider-backed embedder adapter.
func New(cfg *Config) (*Adapter, error) {
	if cfg == nil {
		return nil, errors.New("embedder config is required")
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	client, err := buildProviderClient(cfg)
	if err != nil {
		return nil, err
	}
	impl, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(cfg.BatchSize),
		embeddings.WithStripNewLines(cfg.StripNewLines),
	)
	if err != nil {
		return nil, fmt.Errorf("embedder %q: construct embedder: %w", cfg.ID, err)
	}
	return newAdapter(cfg, impl), nil
}

// Wrap constructs an adapter around an existing langchaingo embedder.
func Wrap(cfg *Config, impl embeddings.Embedder) (*Adapter, error) {
	if cfg == nil {
		return nil, errors.New("embedder config is required")
	}
	if impl == nil {
		return nil, fmt.Errorf("embedder %q: implementation is required", cfg.ID)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return newAdapter(cfg, impl), nil
}

func newAdapter(cfg *Config, impl embeddings.Embedder) *Adapter {
	return &Adapter{
		id:        cfg.ID,
		provider:  cfg.Provider,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		batchSize: cfg.BatchSize,
		impl:      impl,
	}
}

// Dimension returns the configured vector dimension.
func (a *Adapter) Dimension() int {
	return a.dimension
}

// BatchSize returns the configured batch size.
func (a *Adapter) BatchSize() int {
	return a.batchSize
}

// EnableCache initializes an LRU cache for query embeddings. Repeated
// questions against the same knowledge base then skip the provider call.
func (a *Adapter) EnableCache(size int) error {
	if size <= 0 {
		return fmt.Errorf("embedder %q: cache size must be greater than zero", a.id)
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return fmt.Errorf("embedder %q: init cache: %w", a.id, err)
	}
	a.cacheMu.Lock()
	a.cache = cache
	a.cacheMu.Unlock()
	return nil
}

// EmbedDocuments delegates to the underlying implementation with contextual errors.
func (a *Adapter) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := a.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, a.withContext(err)
	}
	if len(vectors) != len(texts) {
		return nil, a.withContext(fmt.Errorf("received %d embeddings for %d texts", len(vectors), len(texts)))
	}
	return vectors, nil
}

// EmbedQuery delegates to the underlying implementation, consulting the
// cache when one is enabled.
func (a *Adapter) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if vector, ok := a.lookupCache(key); ok {
		return vector, nil
	}
	vector, err := a.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, a.withContext(err)
	}
	a.storeCache(key, vector)
	return vector, nil
}

func (a *Adapter) lookupCache(key string) ([]float32, bool) {
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()
	if a.cache == nil {
		return nil, false
	}
	value, ok := a.cache.Get(key)
	if !ok {
		return nil, false
	}
	return cloneVector(value), true
}

func (a *Adapter) storeCache(key string, vector []float32) {
	if len(vector) == 0 {
		return
	}
	a.cacheMu.Lock()
	if a.cache != nil {
		a.cache.Add(key, cloneVector(vector))
	}
	a.cacheMu.Unlock()
}

func (a *Adapter) withContext(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("embedder %q: %w", a.id, err)
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func cloneVector(src []float32) []float32 {
	if len(src) == 0 {
		return nil
	}
	dst := make([]float32, len(src))
	copy(dst, src)
	return dst
}

func validateConfig(cfg *Config) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return errMissingID
	}
	if strings.TrimSpace(string(cfg.Provider)) == "" {
		return fmt.Errorf("embedder %q: %w", cfg.ID, errMissingProvider)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return fmt.Errorf("embedder %q: %w", cfg.ID, errMissingModel)
	}
	if cfg.Provider == ProviderOpenAI && strings.TrimSpace(cfg.APIKey) == "" {
		return fmt.Errorf("embedder %q: %w", cfg.ID, errMissingAPIKey)
	}
	if cfg.Dimension <= 0 {
		return fmt.Errorf("embedder %q: %w", cfg.ID, errInvalidDimension)
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("embedder %q: %w", cfg.ID, errInvalidBatchSize)
	}
	return nil
}

func buildProviderClient(cfg *Config) (embeddings.EmbedderClient, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		opts := []openai.Option{
			openai.WithEmbeddingModel(cfg.Model),
			openai.WithToken(cfg.APIKey),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		client, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("embedder %q: initialize openai client: %w", cfg.ID, err)
		}
		return client, nil
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
		client, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("embedder %q: initialize ollama client: %w", cfg.ID, err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("embedder %q: provider %q is not supported", cfg.ID, cfg.Provider)
	}
}
