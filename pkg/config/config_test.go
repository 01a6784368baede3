package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("ShouldApplyDefaults", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 500, cfg.Knowledge.MaxChars)
		assert.Equal(t, 50, cfg.Knowledge.BatchSize)
		assert.Equal(t, "kb_engine_playground", cfg.Knowledge.Collection)
		assert.Equal(t, 4, cfg.Knowledge.RetrievalTopK)
		assert.Equal(t, "ollama", cfg.Embedding.Provider)
		assert.Equal(t, "mxbai-embed-large", cfg.Embedding.Model)
		assert.Equal(t, 1024, cfg.Embedding.Dimension)
		assert.Equal(t, 8123, cfg.Server.Port)
		assert.Equal(t, 15*time.Second, cfg.Knowledge.HeartbeatInterval())
	})

	t.Run("ShouldOverrideFromEnvironment", func(t *testing.T) {
		t.Setenv("EMBED_MAX_CHARS", "300")
		t.Setenv("EMBED_BATCH_SIZE", "10")
		t.Setenv("EMBEDDING_PROVIDER", "openai")
		t.Setenv("EMBEDDING_MODEL", "text-embedding-3-small")
		t.Setenv("KB_COLLECTION", "docs")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 300, cfg.Knowledge.MaxChars)
		assert.Equal(t, 10, cfg.Knowledge.BatchSize)
		assert.Equal(t, "openai", cfg.Embedding.Provider)
		assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
		assert.Equal(t, "docs", cfg.Knowledge.Collection)
	})

	t.Run("ShouldRejectUnsupportedProvider", func(t *testing.T) {
		t.Setenv("EMBEDDING_PROVIDER", "huggingface")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("ShouldRejectNonPositiveCeiling", func(t *testing.T) {
		t.Setenv("EMBED_MAX_CHARS", "0")
		_, err := Load()
		require.Error(t, err)
	})
}

func TestGenerateEnvMappings(t *testing.T) {
	mappings := GenerateEnvMappings()
	byEnv := make(map[string]string, len(mappings))
	for _, m := range mappings {
		byEnv[m.EnvVar] = m.ConfigPath
	}
	assert.Equal(t, "knowledge.max_chars", byEnv["EMBED_MAX_CHARS"])
	assert.Equal(t, "database.url", byEnv["DATABASE_URL"])
	assert.Equal(t, "embedding.provider", byEnv["EMBEDDING_PROVIDER"])
	assert.Equal(t, "llm.model", byEnv["LLM_MODEL"])
}

func TestContextRoundTrip(t *testing.T) {
	cfg := Default()
	ctx := ContextWithConfig(context.Background(), cfg)
	assert.Equal(t, cfg, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
}
