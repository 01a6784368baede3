package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cesarhb/kb-engine-playground/engine/knowledge/vectordb"
)

// searchPreviewChars bounds how much of each chunk is printed.
const searchPreviewChars = 500

func SearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Search the vector store directly; with no query, check connectivity",
		RunE:  runSearch,
	}
	cmd.Flags().String("collection", "", "vector store collection (defaults to KB_COLLECTION)")
	cmd.Flags().IntP("top-k", "k", 5, "number of results to return")
	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := requireConfig(ctx)
	if err != nil {
		return err
	}
	collection, _ := cmd.Flags().GetString("collection")
	topK, _ := cmd.Flags().GetInt("top-k")
	if collection == "" {
		collection = cfg.Knowledge.Collection
	}

	store, err := buildStore(ctx, cfg, collection)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	query := strings.TrimSpace(strings.Join(args, " "))
	out := cmd.OutOrStdout()
	if query == "" {
		count, err := store.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Collection %q holds %d chunk(s)\n", collection, count)
		return nil
	}

	emb, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	vectors, err := emb.EmbedQuery(ctx, query)
	if err != nil {
		return err
	}
	matches, err := store.Search(ctx, vectors, vectordb.SearchOptions{TopK: topK})
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Fprintln(out, "No results.")
		return nil
	}
	for i, match := range matches {
		fmt.Fprintf(out, "--- Result %d (score: %.4f, source: %s) ---\n", i+1, match.Score, matchSource(match))
		fmt.Fprintln(out, previewText(match.Text, searchPreviewChars))
	}
	return nil
}

func matchSource(match vectordb.Match) string {
	for _, key := range []string{"source_id", "source_url", "source"} {
		if val, ok := match.Metadata[key].(string); ok && val != "" {
			return val
		}
	}
	return "unknown"
}

func previewText(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
