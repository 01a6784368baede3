package cli

import (
	"context"
	"errors"

	"github.com/cesarhb/kb-engine-playground/engine/agent"
	"github.com/cesarhb/kb-engine-playground/engine/knowledge/embedder"
	"github.com/cesarhb/kb-engine-playground/engine/knowledge/retriever"
	"github.com/cesarhb/kb-engine-playground/engine/knowledge/vectordb"
	"github.com/cesarhb/kb-engine-playground/engine/llm"
	"github.com/cesarhb/kb-engine-playground/pkg/config"
)

// queryEmbedderCacheSize bounds the LRU used for repeated questions.
const queryEmbedderCacheSize = 256

func requireConfig(ctx context.Context) (*config.Config, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return nil, errors.New("configuration missing from context")
	}
	return cfg, nil
}

func buildEmbedder(cfg *config.Config) (*embedder.Adapter, error) {
	baseURL := ""
	if cfg.Embedding.Provider == string(embedder.ProviderOllama) {
		baseURL = cfg.Embedding.BaseURL
	}
	adapter, err := embedder.New(&embedder.Config{
		ID:            cfg.Knowledge.Collection,
		Provider:      embedder.Provider(cfg.Embedding.Provider),
		Model:         cfg.Embedding.Model,
		APIKey:        cfg.Embedding.APIKey,
		BaseURL:       baseURL,
		Dimension:     cfg.Embedding.Dimension,
		BatchSize:     cfg.Knowledge.BatchSize,
		StripNewLines: true,
	})
	if err != nil {
		return nil, err
	}
	if err := adapter.EnableCache(queryEmbedderCacheSize); err != nil {
		return nil, err
	}
	return adapter, nil
}

func buildStore(ctx context.Context, cfg *config.Config, collection string) (vectordb.Store, error) {
	provider := vectordb.ProviderPGVector
	if cfg.Database.URL == "" {
		provider = vectordb.ProviderMemory
	}
	return vectordb.New(ctx, &vectordb.Config{
		ID:          collection,
		Provider:    provider,
		DSN:         cfg.Database.URL,
		Collection:  collection,
		EnsureIndex: true,
		Metric:      "cosine",
		Dimension:   cfg.Embedding.Dimension,
	})
}

func buildRetriever(
	cfg *config.Config,
	collection string,
	topK int,
	emb embedder.Embedder,
	store vectordb.Store,
) (*retriever.Service, error) {
	if topK <= 0 {
		topK = cfg.Knowledge.RetrievalTopK
	}
	return retriever.NewService(retriever.Config{
		Collection: collection,
		TopK:       topK,
		MinScore:   cfg.Knowledge.RetrievalMinScore,
	}, emb, store, nil)
}

func buildAgent(cfg *config.Config, ret agent.Retriever) (*agent.Agent, error) {
	baseURL := ""
	if cfg.LLM.Provider == string(llm.ProviderOllama) {
		baseURL = cfg.Embedding.BaseURL
	}
	model, err := llm.New(&llm.Config{
		Provider: llm.Provider(cfg.LLM.Provider),
		Model:    cfg.LLM.Model,
		APIKey:   cfg.Embedding.APIKey,
		BaseURL:  baseURL,
	})
	if err != nil {
		return nil, err
	}
	return agent.New(model, ret)
}
