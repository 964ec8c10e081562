package cmd

import (
	"log"
	"log/slog"

	"github.com/Bookworm370/interpunctbot/interpunct"
	"github.com/spf13/cobra"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Documentation generator and preview server",
}

var docsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render .dg content files into HTML and Discord markdown",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		gen := interpunct.NewDocsGenerator(cfg.Docs, slog.Default())
		if err := gen.Generate(); err != nil {
			log.Fatalf("error generating docs: %s", err.Error())
		}
	},
}

var docsServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the generated documentation site",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		server, err := interpunct.NewDocsServer(cfg.Docs, slog.Default())
		if err != nil {
			log.Fatalf("error creating docs server: %s", err.Error())
		}
		if err := server.Serve(cmd.Context()); err != nil {
			log.Fatalf("error serving docs: %s", err.Error())
		}
	},
}

func init() {
	docsCmd.AddCommand(docsGenerateCmd)
	docsCmd.AddCommand(docsServeCmd)
	rootCmd.AddCommand(docsCmd)
}
