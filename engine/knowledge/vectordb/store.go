package vectordb

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	errMissingID        = errors.New("vector store id is required")
	errMissingProvider  = errors.New("vector store provider is required")
	errMissingDSN       = errors.New("vector store dsn is required")
	errInvalidDimension = errors.New("vector store dimension must be greater than zero")
)

// New instantiates a vector store backed by the requested provider.
func New(ctx context.Context, cfg *Config) (Store, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case ProviderPGVector:
		return newPGStore(ctx, cfg)
	case ProviderMemory:
		return newMemoryStore(cfg), nil
	default:
		return nil, fmt.Errorf("vector store %q: provider %q is not supported", cfg.ID, cfg.Provider)
	}
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("vector store config is required")
	}
	if strings.TrimSpace(cfg.ID) == "" {
		return errMissingID
	}
	if strings.TrimSpace(string(cfg.Provider)) == "" {
		return fmt.Errorf("vector store %q: %w", cfg.ID, errMissingProvider)
	}
	cfg.DSN = strings.TrimSpace(cfg.DSN)
	if cfg.Provider == ProviderPGVector && cfg.DSN == "" {
		return fmt.Errorf("vector store %q: %w", cfg.ID, errMissingDSN)
	}
	if cfg.Dimension <= 0 {
		return fmt.Errorf("vector store %q: %w", cfg.ID, errInvalidDimension)
	}
	if cfg.MaxTopK < 0 {
		return fmt.Errorf("vector store %q: max_top_k must be non-negative", cfg.ID)
	}
	return nil
}
