package cli

import (
	"github.com/spf13/cobra"

	"github.com/cesarhb/kb-engine-playground/server"
)

func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the RAG agent over HTTP",
		RunE:  runServe,
	}
	cmd.Flags().String("host", "", "listen host (defaults to SERVER_HOST)")
	cmd.Flags().Int("port", 0, "listen port (defaults to SERVER_PORT)")
	cmd.Flags().String("collection", "", "vector store collection (defaults to KB_COLLECTION)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := requireConfig(ctx)
	if err != nil {
		return err
	}
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	collection, _ := cmd.Flags().GetString("collection")
	if host == "" {
		host = cfg.Server.Host
	}
	if port == 0 {
		port = cfg.Server.Port
	}
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

	ret, err := buildRetriever(cfg, collection, 0, emb, store)
	if err != nil {
		return err
	}
	ag, err := buildAgent(cfg, ret)
	if err != nil {
		return err
	}
	srv, err := server.New(server.Config{Host: host, Port: port}, ag)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
