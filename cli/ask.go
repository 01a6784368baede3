package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func AskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask the knowledge base a question",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}
	cmd.Flags().String("collection", "", "vector store collection (defaults to KB_COLLECTION)")
	cmd.Flags().Int("top-k", 0, "number of chunks to retrieve (defaults to RETRIEVAL_TOP_K)")
	cmd.Flags().Bool("tools", false, "let the model decide when to search instead of always retrieving")
	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := requireConfig(ctx)
	if err != nil {
		return err
	}
	question := strings.TrimSpace(strings.Join(args, " "))
	collection, _ := cmd.Flags().GetString("collection")
	topK, _ := cmd.Flags().GetInt("top-k")
	useTools, _ := cmd.Flags().GetBool("tools")
	if collection == "" {
		collection = cfg.Knowledge.Collection
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

	ret, err := buildRetriever(cfg, collection, topK, emb, store)
	if err != nil {
		return err
	}
	ag, err := buildAgent(cfg, ret)
	if err != nil {
		return err
	}

	var answer string
	if useTools {
		answer, err = ag.AnswerWithTools(ctx, question)
	} else {
		answer, err = ag.Answer(ctx, question)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), answer)
	return nil
}
