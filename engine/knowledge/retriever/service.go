package retriever

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cesarhb/kb-engine-playground/engine/knowledge"
	"github.com/cesarhb/kb-engine-playground/engine/knowledge/embedder"
	"github.com/cesarhb/kb-engine-playground/engine/knowledge/vectordb"
	"github.com/cesarhb/kb-engine-playground/pkg/logger"
)

// DefaultTopK bounds a query when the caller does not ask for a count.
const DefaultTopK = 4

// Config scopes a retrieval service to one collection.
type Config struct {
	Collection string
	TopK       int
	MinScore   float64
	// MaxTokens trims lower-ranked contexts once the estimated total
	// exceeds it. Zero disables trimming.
	MaxTokens int
	Filters   map[string]string
}

// TokenEstimator approximates the token cost of a context.
type TokenEstimator interface {
	EstimateTokens(ctx context.Context, text string) int
}

type runeEstimator struct{}

func (runeEstimator) EstimateTokens(_ context.Context, text string) int {
	count := len([]rune(text))
	if count == 0 {
		return 0
	}
	tokens := count / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}

// Service embeds a query and returns the best matching contexts.
type Service struct {
	config    Config
	embedder  embedder.Embedder
	store     vectordb.Store
	estimator TokenEstimator
	tracer    trace.Tracer
}

func NewService(cfg Config, emb embedder.Embedder, store vectordb.Store, estimator TokenEstimator) (*Service, error) {
	if strings.TrimSpace(cfg.Collection) == "" {
		return nil, errors.New("retriever: collection is required")
	}
	if emb == nil {
		return nil, errors.New("retriever: embedder is required")
	}
	if store == nil {
		return nil, errors.New("retriever: vector store is required")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if estimator == nil {
		estimator = runeEstimator{}
	}
	return &Service{
		config:    cfg,
		embedder:  emb,
		store:     store,
		estimator: estimator,
		tracer:    otel.Tracer("kbplayground.knowledge.retriever"),
	}, nil
}

// Retrieve returns the contexts most similar to the query, best first.
func (s *Service) Retrieve(ctx context.Context, query string) (contexts []knowledge.RetrievedContext, err error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("retriever: query is required")
	}
	log := logger.FromContext(ctx).With("collection", s.config.Collection)
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "knowledge.retriever.retrieve", trace.WithAttributes(
		attribute.String("collection", s.config.Collection),
	))
	defer s.finishRetrieve(ctx, span, start, &contexts, &err)

	log.Debug("retrieval started", "query_length", len(query))
	vector, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	matches, err := s.searchMatches(ctx, vector)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		knowledge.RecordRetrievalEmpty(ctx, s.config.Collection)
		return nil, nil
	}
	sortMatches(matches)
	contexts = s.buildContexts(ctx, matches)
	return contexts, nil
}

func (s *Service) embedQuery(ctx context.Context, query string) ([]float32, error) {
	spanCtx, span := s.tracer.Start(ctx, "knowledge.retriever.embed_query")
	defer span.End()
	vector, err := s.embedder.EmbedQuery(spanCtx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return vector, nil
}

func (s *Service) searchMatches(ctx context.Context, vector []float32) ([]vectordb.Match, error) {
	opts := vectordb.SearchOptions{
		TopK:     s.config.TopK,
		MinScore: s.config.MinScore,
		Filters:  s.config.Filters,
	}
	spanCtx, span := s.tracer.Start(ctx, "knowledge.retriever.vector_search", trace.WithAttributes(
		attribute.Int("top_k", opts.TopK),
	))
	defer span.End()
	matches, err := s.store.Search(spanCtx, vector, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("matches", len(matches)))
	return matches, nil
}

func (s *Service) buildContexts(ctx context.Context, matches []vectordb.Match) []knowledge.RetrievedContext {
	contexts := make([]knowledge.RetrievedContext, len(matches))
	tokenCounts := make([]int, len(matches))
	totalTokens := 0
	for i := range matches {
		tokens := s.estimator.EstimateTokens(ctx, matches[i].Text)
		totalTokens += tokens
		tokenCounts[i] = tokens
		contexts[i] = knowledge.RetrievedContext{
			Collection:    s.config.Collection,
			Content:       matches[i].Text,
			Score:         matches[i].Score,
			TokenEstimate: tokens,
			Metadata:      matches[i].Metadata,
		}
	}
	return trimContexts(s.config.MaxTokens, contexts, tokenCounts, totalTokens)
}

func trimContexts(
	maxTokens int,
	contexts []knowledge.RetrievedContext,
	tokenCounts []int,
	totalTokens int,
) []knowledge.RetrievedContext {
	if maxTokens <= 0 {
		return contexts
	}
	for totalTokens > maxTokens && len(contexts) > 0 {
		last := len(contexts) - 1
		totalTokens -= tokenCounts[last]
		contexts = contexts[:last]
		tokenCounts = tokenCounts[:last]
	}
	return contexts
}

func (s *Service) finishRetrieve(
	ctx context.Context,
	span trace.Span,
	start time.Time,
	contexts *[]knowledge.RetrievedContext,
	runErr *error,
) {
	duration := time.Since(start)
	knowledge.RecordQueryLatency(ctx, s.config.Collection, duration)
	log := logger.FromContext(ctx).With("collection", s.config.Collection)
	if runErr != nil && *runErr != nil {
		err := *runErr
		log.Error("retrieval failed", "error", err, "duration_seconds", duration.Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return
	}
	total := 0
	if contexts != nil {
		total = len(*contexts)
	}
	log.Info("retrieval finished", "results", total, "duration_seconds", duration.Seconds())
	span.SetAttributes(attribute.Int("results", total))
	span.End()
}

func sortMatches(matches []vectordb.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Score > matches[j].Score
	})
}
