package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"brand-rag/internal/models"
	"brand-rag/internal/rag"
)

const (
	defaultTopK    = 10
	sectionPreview = 80
	textPreview    = 500
)

var errQueryUsage = errors.New("usage: query 'your query here' [top_k]")

// NewQueryCmd builds `query <text> [top_k]`.
func NewQueryCmd(deps Deps) *cobra.Command {
	var (
		flags   commonFlags
		docType string
		source  string
		answer  bool
	)

	cmd := &cobra.Command{
		Use:           "query <text> [top_k]",
		Short:         "Search the brand documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 || strings.TrimSpace(args[0]) == "" || len(args) > 2 {
				return errQueryUsage
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			topK, err := parseTopK(args)
			if err != nil {
				return err
			}

			cfg, err := flags.load(deps)
			if err != nil {
				return err
			}
			embedder, err := deps.NewEmbedder(&cfg.EmbedLLM)
			if err != nil {
				return err
			}
			index, err := deps.OpenIndex(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer index.Close()

			filter := models.Filter{}
			if docType != "" {
				filter["doc_type"] = docType
			}
			if source != "" {
				filter["source"] = source
			}
			if len(filter) == 0 {
				filter = nil
			}

			query := args[0]
			fmt.Fprintf(deps.Out, "Query: %s\n", query)
			fmt.Fprintf(deps.Out, "Top K: %d\n", topK)
			fmt.Fprintln(deps.Out, strings.Repeat("=", 60))

			results, err := rag.NewSearcher(embedder, index).Query(cmd.Context(), query, topK, filter)
			if err != nil {
				return err
			}
			PrintResults(deps.Out, results)

			if !answer {
				return nil
			}
			llm, err := deps.NewModel(&cfg.InferLLM)
			if err != nil {
				return err
			}
			resp, err := rag.Answer(cmd.Context(), llm, query, results)
			if err != nil {
				return err
			}
			printAnswer(deps.Out, resp)
			return nil
		},
	}

	cmd.SetFlagErrorFunc(topKFlagError)
	flags.register(cmd)
	cmd.Flags().StringVar(&docType, "doc-type", "", "only match this doc_type")
	cmd.Flags().StringVar(&source, "source", "", "only match this source file")
	cmd.Flags().BoolVar(&answer, "answer", false, "generate an answer from the matches with the inference model")
	return cmd
}

func parseTopK(args []string) (int, error) {
	if len(args) < 2 {
		return defaultTopK, nil
	}
	topK, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("top_k must be an integer: %q", args[1])
	}
	if topK < 1 {
		return 0, fmt.Errorf("top_k must be at least 1, got %d", topK)
	}
	return topK, nil
}

// topKFlagError reports a negative top_k, which pflag reads as a shorthand
// flag, as a top_k error.
func topKFlagError(_ *cobra.Command, err error) error {
	msg := err.Error()
	if i := strings.LastIndex(msg, " in -"); i >= 0 && strings.HasPrefix(msg, "unknown shorthand flag") {
		arg := msg[i+len(" in "):]
		if _, convErr := strconv.Atoi(arg); convErr == nil {
			return fmt.Errorf("top_k must be at least 1, got %s", arg)
		}
	}
	return err
}

// PrintResults renders matches in score order.
func PrintResults(w io.Writer, results []models.QueryResult) {
	header := color.New(color.FgCyan, color.Bold)
	label := color.New(color.FgYellow)

	for i, r := range results {
		fmt.Fprintln(w)
		header.Fprintf(w, "--- Result %d (Score: %.3f) ---\n", i+1, r.Score)
		field(w, label, "Source", orNA(r.Metadata.Source))
		field(w, label, "Doc Type", orNA(r.Metadata.DocType))
		field(w, label, "Section", models.Truncate(orNA(r.Metadata.Section), sectionPreview))
		field(w, label, "Page", pageLabel(r.Metadata.PageNum))
		field(w, label, "Text", models.Truncate(orNA(r.Metadata.Text), textPreview)+"...")
	}
}

func printAnswer(w io.Writer, resp *models.PromptResponse) {
	fmt.Fprintln(w)
	color.New(color.FgGreen, color.Bold).Fprintln(w, "Answer:")
	fmt.Fprintln(w, resp.Content)
	color.New(color.FgHiBlack).Fprintf(w, "Sources: %s\n", resp.Source)
}

func field(w io.Writer, label *color.Color, name, value string) {
	label.Fprintf(w, "%s:", name)
	fmt.Fprintf(w, " %s\n", value)
}

func pageLabel(n int) string {
	if n <= 0 {
		return orNA("")
	}
	return strconv.Itoa(n)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
