package cli

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"brand-rag/internal/config"
	"brand-rag/internal/helper"
	"brand-rag/internal/rag"
)

// NewIngestCmd builds `ingest` and its `stats` subcommand.
func NewIngestCmd(deps Deps) *cobra.Command {
	var (
		flags    commonFlags
		docsDir  string
		manifest string
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:           "ingest",
		Short:         "Chunk, embed and upsert the brand documents into the vector index",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load(deps)
			if err != nil {
				return err
			}
			if docsDir != "" {
				cfg.DocsDir = docsDir
			}
			if manifest != "" {
				cfg.Manifest = manifest
			}

			docs, err := config.LoadDocuments(cfg.Manifest)
			if err != nil {
				return err
			}

			ingestor := rag.NewIngestor(cfg, nil, nil)
			if !dryRun {
				embedder, err := deps.NewEmbedder(&cfg.EmbedLLM)
				if err != nil {
					return err
				}
				index, err := deps.OpenIndex(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer index.Close()
				ingestor = rag.NewIngestor(cfg, embedder, index)
			}
			ingestor.SetOutput(deps.Out)

			summary, err := ingestor.Run(cmd.Context(), docs, dryRun)
			if err != nil {
				return err
			}
			fmt.Fprintf(deps.Out, "Total chunks processed: %d\n", summary.Total)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&docsDir, "docs-dir", "", "directory holding the documents; overrides docs_dir")
	cmd.Flags().StringVar(&manifest, "manifest", "", "YAML document list; defaults to the built-in list")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "chunk and print without embedding or upserting")

	cmd.AddCommand(newStatsCmd(deps, &flags))
	return cmd
}

func newStatsCmd(deps Deps, flags *commonFlags) *cobra.Command {
	return &cobra.Command{
		Use:           "stats",
		Short:         "Print vector index statistics",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load(deps)
			if err != nil {
				return err
			}
			index, err := deps.OpenIndex(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer index.Close()

			stats, err := index.DescribeStats(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to describe index: %w", err)
			}
			log.Debug().Str("backend", cfg.Index.Backend).Str("index", cfg.Index.Name).Msg("Described index")
			helper.PrettyFprint(deps.Out, stats)
			return nil
		},
	}
}
