package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"brand-rag/internal/config"
	"brand-rag/internal/embedding"
	"brand-rag/internal/helper"
	"brand-rag/internal/llmservice"
	"brand-rag/internal/vectorindex"
)

// Deps are the factories the commands build their clients with.
type Deps struct {
	LoadConfig  func(path string) (*config.Config, error)
	NewEmbedder func(cfg *config.LLMConfig) (embeddings.Embedder, error)
	OpenIndex   func(ctx context.Context, cfg *config.Config) (vectorindex.Index, error)
	NewModel    func(cfg *config.LLMConfig) (llms.Model, error)
	Out         io.Writer
}

func DefaultDeps() Deps {
	return Deps{
		LoadConfig:  config.LoadConfig,
		NewEmbedder: embedding.NewEmbedder,
		OpenIndex:   vectorindex.Open,
		NewModel:    llmservice.NewModel,
		Out:         os.Stdout,
	}
}

// commonFlags are shared by both tools.
type commonFlags struct {
	configPath string
	logLevel   string
}

func (f *commonFlags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&f.configPath, "config", "c", config.DefaultConfigPath, "config file")
	cmd.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides log.level")
}

// load reads the config and initializes the global logger from it.
func (f *commonFlags) load(deps Deps) (*config.Config, error) {
	cfg, err := deps.LoadConfig(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	helper.InitLogger(cfg.Log.Level, cfg.Log.JSON)
	return cfg, nil
}
