package vectordb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

const defaultSearchTopK = 4

type pgStore struct {
	pool       *pgxpool.Pool
	tableIdent string
	indexIdent string
	dimension  int
	metric     string
	ensureIdx  bool
}

func newPGStore(ctx context.Context, cfg *Config) (Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("vector store %q: connect to postgres: %w", cfg.ID, err)
	}
	table := cfg.Table
	if table == "" {
		table = cfg.Collection
	}
	if table == "" {
		table = "kb_chunks"
	}
	index := cfg.Index
	if index == "" {
		index = table + "_embedding_idx"
	}
	store := &pgStore{
		pool:       pool,
		tableIdent: pgx.Identifier{table}.Sanitize(),
		indexIdent: pgx.Identifier{index}.Sanitize(),
		dimension:  cfg.Dimension,
		metric:     strings.ToLower(strings.TrimSpace(cfg.Metric)),
		ensureIdx:  cfg.EnsureIndex,
	}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (p *pgStore) ensureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("pgvector: enable extension: %w", err)
	}
	createTable := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		embedding vector(%d),
		document TEXT,
		metadata JSONB,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`, p.tableIdent, p.dimension)
	if _, err := p.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("pgvector: create table: %w", err)
	}
	if !p.ensureIdx {
		return nil
	}
	distance := p.metric
	if distance == "" {
		distance = "cosine"
	}
	createIndex := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s USING ivfflat (embedding vector_%s_ops)",
		p.indexIdent, p.tableIdent, distance,
	)
	if _, err := p.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("pgvector: create index: %w", err)
	}
	return nil
}

func (p *pgStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	stmt := fmt.Sprintf(`INSERT INTO %s (id, embedding, document, metadata, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    embedding = excluded.embedding,
    document = excluded.document,
    metadata = excluded.metadata,
    updated_at = excluded.updated_at`, p.tableIdent)
	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for i := range records {
		rec := records[i]
		if len(rec.Embedding) != p.dimension {
			return fmt.Errorf(
				"pgvector: record %q dimension mismatch (got %d want %d)",
				rec.ID, len(rec.Embedding), p.dimension,
			)
		}
		metadata, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("pgvector: marshal metadata for %q: %w", rec.ID, err)
		}
		batch.Queue(stmt, rec.ID, pgvector.NewVector(rec.Embedding), rec.Text, metadata, now)
	}
	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()
	for i := range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("pgvector: upsert %q: %w", records[i].ID, err)
		}
	}
	return nil
}

func (p *pgStore) Search(ctx context.Context, query []float32, opts SearchOptions) ([]Match, error) {
	if len(query) != p.dimension {
		return nil, errors.New("pgvector: query dimension mismatch")
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultSearchTopK
	}
	var sb strings.Builder
	sb.WriteString("SELECT id, document, metadata, 1 - (embedding <=> $1) AS score FROM ")
	sb.WriteString(p.tableIdent)
	sb.WriteString(" WHERE 1=1")
	args := []any{pgvector.NewVector(query)}
	argPos := 2
	for key, value := range opts.Filters {
		fmt.Fprintf(&sb, " AND metadata ->> $%d = $%d", argPos, argPos+1)
		args = append(args, key, value)
		argPos += 2
	}
	if opts.MinScore > 0 {
		fmt.Fprintf(&sb, " AND 1 - (embedding <=> $1) >= $%d", argPos)
		args = append(args, opts.MinScore)
		argPos++
	}
	fmt.Fprintf(&sb, " ORDER BY embedding <=> $1 ASC LIMIT $%d", argPos)
	args = append(args, topK)
	rows, err := p.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("pgvector: search: %w", err)
	}
	defer rows.Close()
	matches := make([]Match, 0, topK)
	for rows.Next() {
		var (
			id       string
			document string
			metaRaw  []byte
			score    float64
		)
		if err := rows.Scan(&id, &document, &metaRaw, &score); err != nil {
			return nil, fmt.Errorf("pgvector: scan: %w", err)
		}
		meta := make(map[string]any)
		if len(metaRaw) > 0 {
			if err := json.Unmarshal(metaRaw, &meta); err != nil {
				return nil, fmt.Errorf("pgvector: decode metadata: %w", err)
			}
		}
		matches = append(matches, Match{ID: id, Score: score, Text: document, Metadata: meta})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector: search rows: %w", err)
	}
	return matches, nil
}

func (p *pgStore) Delete(ctx context.Context, filter Filter) error {
	if len(filter.IDs) == 0 && len(filter.Metadata) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(p.tableIdent)
	sb.WriteString(" WHERE 1=1")
	args := make([]any, 0, 4)
	argPos := 1
	if len(filter.IDs) > 0 {
		fmt.Fprintf(&sb, " AND id = ANY($%d)", argPos)
		args = append(args, filter.IDs)
		argPos++
	}
	for key, value := range filter.Metadata {
		fmt.Fprintf(&sb, " AND metadata ->> $%d = $%d", argPos, argPos+1)
		args = append(args, key, value)
		argPos += 2
	}
	if _, err := p.pool.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("pgvector: delete: %w", err)
	}
	return nil
}

func (p *pgStore) Count(ctx context.Context) (int, error) {
	var count int
	row := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+p.tableIdent)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("pgvector: count: %w", err)
	}
	return count, nil
}

func (p *pgStore) Close(_ context.Context) error {
	p.pool.Close()
	return nil
}
