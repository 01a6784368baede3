package vectordb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(&Config{Dimension: 4})

	t.Run("Should upsert and search by cosine similarity", func(t *testing.T) {
		records := []Record{
			{ID: "a", Text: "alpha", Embedding: []float32{1, 0, 0, 0}, Metadata: map[string]any{"kind": "one"}},
			{ID: "b", Text: "bravo", Embedding: []float32{0, 1, 0, 0}, Metadata: map[string]any{"kind": "two"}},
		}
		require.NoError(t, store.Upsert(ctx, records))
		matches, err := store.Search(ctx, []float32{1, 0, 0, 0}, SearchOptions{TopK: 1})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "a", matches[0].ID)
		assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
	})

	t.Run("Should filter by metadata", func(t *testing.T) {
		matches, err := store.Search(
			ctx,
			[]float32{0, 1, 0, 0},
			SearchOptions{TopK: 2, Filters: map[string]string{"kind": "two"}},
		)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "b", matches[0].ID)
	})

	t.Run("Should honor the minimum score", func(t *testing.T) {
		matches, err := store.Search(ctx, []float32{1, 0, 0, 0}, SearchOptions{TopK: 5, MinScore: 0.5})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "a", matches[0].ID)
	})

	t.Run("Should delete by id", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, Filter{IDs: []string{"a"}}))
		matches, err := store.Search(ctx, []float32{1, 0, 0, 0}, SearchOptions{TopK: 2, MinScore: 0.1})
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("Should delete by metadata", func(t *testing.T) {
		local := newMemoryStore(&Config{Dimension: 2})
		require.NoError(t, local.Upsert(ctx, []Record{
			{ID: "x", Embedding: []float32{1, 0}, Metadata: map[string]any{"source_id": "docs"}},
			{ID: "y", Embedding: []float32{0, 1}, Metadata: map[string]any{"source_id": "blog"}},
		}))
		require.NoError(t, local.Delete(ctx, Filter{Metadata: map[string]string{"source_id": "docs"}}))
		count, err := local.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("Should fail upsert on dimension mismatch", func(t *testing.T) {
		mismatchStore := newMemoryStore(&Config{Dimension: 4})
		err := mismatchStore.Upsert(ctx, []Record{{ID: "bad", Embedding: []float32{1, 1, 1}}})
		require.Error(t, err)
	})

	t.Run("Should fail search on query dimension mismatch", func(t *testing.T) {
		otherStore := newMemoryStore(&Config{Dimension: 2})
		require.NoError(t, otherStore.Upsert(ctx, []Record{{ID: "c", Embedding: []float32{1, 0}}}))
		_, err := otherStore.Search(ctx, []float32{1, 0, 0}, SearchOptions{TopK: 1})
		require.Error(t, err)
	})

	t.Run("Should cap results at the available records", func(t *testing.T) {
		limitedStore := newMemoryStore(&Config{Dimension: 2})
		require.NoError(t, limitedStore.Upsert(ctx, []Record{
			{ID: "d", Text: "delta", Embedding: []float32{1, 0}},
			{ID: "e", Text: "echo", Embedding: []float32{0, 1}},
		}))
		matches, err := limitedStore.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 10})
		require.NoError(t, err)
		require.Len(t, matches, 2)
	})

	t.Run("Should clamp top k to the configured maximum", func(t *testing.T) {
		capped := newMemoryStore(&Config{Dimension: 2, MaxTopK: 1})
		require.NoError(t, capped.Upsert(ctx, []Record{
			{ID: "f", Embedding: []float32{1, 0}},
			{ID: "g", Embedding: []float32{0.9, 0.1}},
		}))
		matches, err := capped.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 5})
		require.NoError(t, err)
		require.Len(t, matches, 1)
	})
}

func TestValidateConfig(t *testing.T) {
	t.Run("Should reject a nil config", func(t *testing.T) {
		require.Error(t, validateConfig(nil))
	})
	t.Run("Should require an id", func(t *testing.T) {
		err := validateConfig(&Config{Provider: ProviderMemory, Dimension: 4})
		assert.ErrorIs(t, err, errMissingID)
	})
	t.Run("Should require a dsn for pgvector", func(t *testing.T) {
		err := validateConfig(&Config{ID: "kb", Provider: ProviderPGVector, Dimension: 4})
		assert.ErrorIs(t, err, errMissingDSN)
	})
	t.Run("Should require a positive dimension", func(t *testing.T) {
		err := validateConfig(&Config{ID: "kb", Provider: ProviderMemory})
		assert.ErrorIs(t, err, errInvalidDimension)
	})
	t.Run("Should accept a memory store without a dsn", func(t *testing.T) {
		require.NoError(t, validateConfig(&Config{ID: "kb", Provider: ProviderMemory, Dimension: 4}))
	})
}
