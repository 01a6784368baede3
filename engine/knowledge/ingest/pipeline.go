package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cesarhb/kb-engine-playground/engine/knowledge"
	"github.com/cesarhb/kb-engine-playground/engine/knowledge/chunk"
	"github.com/cesarhb/kb-engine-playground/engine/knowledge/embedder"
	"github.com/cesarhb/kb-engine-playground/engine/knowledge/vectordb"
	"github.com/cesarhb/kb-engine-playground/pkg/logger"
)

// DefaultBatchSize is the number of chunks embedded and persisted per batch.
const DefaultBatchSize = 50

// Pipeline loads sources, chunks them, embeds the chunks in batches, and
// persists the vectors. A batch failure aborts the run immediately;
// batches already persisted stay in the store, so re-running the same
// ingestion converges through deterministic chunk IDs.
type Pipeline struct {
	collection string
	sources    []knowledge.SourceConfig
	chunker    *chunk.Processor
	embedder   embedder.Embedder
	store      vectordb.Store
	options    Options
	batchSize  int
	heartbeat  time.Duration
}

// Result summarizes an ingestion run.
type Result struct {
	Collection string
	Documents  int
	Chunks     int
	Persisted  int
	Duration   time.Duration
}

// Settings configures pipeline construction.
type Settings struct {
	Collection        string
	Chunking          chunk.Settings
	BatchSize         int
	HeartbeatInterval time.Duration
}

func NewPipeline(
	settings Settings,
	sources []knowledge.SourceConfig,
	emb embedder.Embedder,
	store vectordb.Store,
	opts Options,
) (*Pipeline, error) {
	if settings.Collection == "" {
		return nil, errors.New("ingest: collection is required")
	}
	if emb == nil {
		return nil, errors.New("ingest: embedder implementation is required")
	}
	if store == nil {
		return nil, errors.New("ingest: vector store is required")
	}
	chunker, err := chunk.NewProcessor(settings.Chunking)
	if err != nil {
		return nil, err
	}
	batchSize := settings.BatchSize
	if batchSize <= 0 {
		batchSize = emb.BatchSize()
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Pipeline{
		collection: settings.Collection,
		sources:    sources,
		chunker:    chunker,
		embedder:   emb,
		store:      store,
		options:    opts,
		batchSize:  batchSize,
		heartbeat:  settings.HeartbeatInterval,
	}, nil
}

func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	log := logger.FromContext(ctx)
	started := time.Now()

	stopLoad := startHeartbeat(ctx, p.heartbeat, "loading documents")
	docs, err := enumerateSources(ctx, p.sources, &p.options)
	stopLoad()
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		log.Warn("no documents loaded", "collection", p.collection)
		return &Result{Collection: p.collection, Duration: time.Since(started)}, nil
	}
	log.Info("documents loaded", "collection", p.collection, "documents", len(docs))

	split, err := p.chunker.Split(p.collection, docs)
	if err != nil {
		return nil, err
	}
	maxChars := p.chunker.Settings().MaxChars
	chunks := chunk.ResplitOversize(split, maxChars)
	if err := chunk.VerifyLimit(chunks, maxChars); err != nil {
		return nil, err
	}
	log.Info("documents chunked",
		"collection", p.collection,
		"chunks", len(split),
		"after_resplit", len(chunks),
		"max_chars", maxChars,
	)
	if len(chunks) == 0 {
		return &Result{Collection: p.collection, Documents: len(docs), Duration: time.Since(started)}, nil
	}

	stopEmbed := startHeartbeat(ctx, p.heartbeat, "embedding and storing")
	persisted, err := p.persistChunks(ctx, chunks)
	stopEmbed()
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(started)
	knowledge.RecordIngestDuration(ctx, p.collection, elapsed)
	knowledge.RecordIngestChunks(ctx, p.collection, persisted)
	log.Info("ingestion completed",
		"collection", p.collection,
		"documents", len(docs),
		"chunks", len(chunks),
		"persisted", persisted,
		"duration", elapsed.Round(time.Millisecond),
	)
	return &Result{
		Collection: p.collection,
		Documents:  len(docs),
		Chunks:     len(chunks),
		Persisted:  persisted,
		Duration:   elapsed,
	}, nil
}

// persistChunks embeds and upserts chunks batch by batch. The first
// failing batch aborts the run; earlier batches are already durable.
func (p *Pipeline) persistChunks(ctx context.Context, chunks []chunk.Chunk) (int, error) {
	total := 0
	batches := (len(chunks) + p.batchSize - 1) / p.batchSize
	for start := 0; start < len(chunks); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		batchNum := start/p.batchSize + 1
		if err := p.persistBatch(ctx, batch); err != nil {
			return total, fmt.Errorf("ingest: batch %d/%d (size %d): %w", batchNum, batches, len(batch), err)
		}
		total += len(batch)
	}
	return total, nil
}

func (p *Pipeline) persistBatch(ctx context.Context, batch []chunk.Chunk) error {
	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].Text
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
	}
	records := make([]vectordb.Record, len(batch))
	for i := range batch {
		meta := batch[i].Metadata.ToMap()
		meta["collection"] = p.collection
		meta["chunk_hash"] = batch[i].Hash
		records[i] = vectordb.Record{
			ID:        batch[i].ID,
			Text:      batch[i].Text,
			Embedding: vectors[i],
			Metadata:  meta,
		}
	}
	return p.store.Upsert(ctx, records)
}
