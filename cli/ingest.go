package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cesarhb/kb-engine-playground/engine/knowledge"
	"github.com/cesarhb/kb-engine-playground/engine/knowledge/chunk"
	"github.com/cesarhb/kb-engine-playground/engine/knowledge/ingest"
	"github.com/cesarhb/kb-engine-playground/pkg/logger"
)

const defaultManifestPath = "config/doc_sources.yaml"

func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run the ingestion pipeline (fetch, chunk, embed, store)",
		RunE:  runIngest,
	}
	cmd.Flags().String("config", defaultManifestPath, "document source manifest")
	cmd.Flags().String("collection", "", "vector store collection (defaults to KB_COLLECTION)")
	cmd.Flags().Int("chunk-size", 0, "chunk size in characters (defaults to the embedding ceiling)")
	cmd.Flags().Int("chunk-overlap", 0, "chunk overlap in characters")
	return cmd
}

func runIngest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := requireConfig(ctx)
	if err != nil {
		return err
	}
	manifestPath, _ := cmd.Flags().GetString("config")
	collection, _ := cmd.Flags().GetString("collection")
	chunkSize, _ := cmd.Flags().GetInt("chunk-size")
	chunkOverlap, _ := cmd.Flags().GetInt("chunk-overlap")
	if collection == "" {
		collection = cfg.Knowledge.Collection
	}

	sources, err := knowledge.LoadSources(manifestPath)
	if err != nil {
		return err
	}
	emb, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	store, err := buildStore(ctx, cfg, collection)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}
	pipeline, err := ingest.NewPipeline(
		ingest.Settings{
			Collection: collection,
			Chunking: chunk.Settings{
				Size:     chunkSize,
				Overlap:  chunkOverlap,
				MaxChars: cfg.Knowledge.MaxChars,
			},
			BatchSize:         cfg.Knowledge.BatchSize,
			HeartbeatInterval: cfg.Knowledge.HeartbeatInterval(),
		},
		sources,
		emb,
		store,
		ingest.Options{CWD: cwd, GitHubToken: cfg.GitHub.Token},
	)
	if err != nil {
		return err
	}
	result, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info("ingestion summary",
		"collection", result.Collection,
		"documents", result.Documents,
		"chunks", result.Chunks,
		"persisted", result.Persisted,
	)
	fmt.Fprintf(cmd.OutOrStdout(),
		"Ingested %d document(s) into %q: %d chunk(s) persisted in %s\n",
		result.Documents, result.Collection, result.Persisted, result.Duration.Round(10*time.Millisecond),
	)
	return nil
}
