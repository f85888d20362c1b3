package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultConfigPath = "./configs/config.yaml"
	envPrefix         = "BRANDRAG"
)

type Config struct {
	DocsDir  string `mapstructure:"docs_dir"`
	Manifest string `mapstructure:"manifest"`

	EmbedLLM LLMConfig      `mapstructure:"embed_llm"`
	InferLLM LLMConfig      `mapstructure:"infer_llm"`
	RAG      RAGConfig      `mapstructure:"rag"`
	Index    IndexConfig    `mapstructure:"index"`
	Pinecone PineconeConfig `mapstructure:"pinecone"`
	Qdrant   QdrantConfig   `mapstructure:"qdrant"`
	Chromem  ChromemConfig  `mapstructure:"chromem"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

type LLMConfig struct {
	Provider       string  `mapstructure:"provider"`
	BaseURL        string  `mapstructure:"base_url"`
	Key            string  `mapstructure:"key"`
	Model          string  `mapstructure:"model"`
	Dimensions     int     `mapstructure:"dimensions"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	CacheSize      int     `mapstructure:"cache_size"`
	CacheTTL       int     `mapstructure:"cache_ttl_seconds"`
}

type RAGConfig struct {
	ChunkSize      int `mapstructure:"chunk_size"`
	ChunkOverlap   int `mapstructure:"chunk_overlap"`
	MinChunkLength int `mapstructure:"min_chunk_length"`
	BatchSize      int `mapstructure:"batch_size"`
	TopK           int `mapstructure:"top_k"`
}

type IndexConfig struct {
	// pinecone | qdrant | chromem | pgvector
	Backend   string `mapstructure:"backend"`
	Name      string `mapstructure:"name"`
	Namespace string `mapstructure:"namespace"`
}

type PineconeConfig struct {
	APIKey        string `mapstructure:"api_key"`
	Host          string `mapstructure:"host"`
	ControllerURL string `mapstructure:"controller_url"`
}

type QdrantConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
	UseTLS bool   `mapstructure:"use_tls"`
}

type ChromemConfig struct {
	Path          string `mapstructure:"path"`
	InMemory      bool   `mapstructure:"in_memory"`
	Compress      bool   `mapstructure:"compress"`
	EncryptionKey string `mapstructure:"encryption_key"`
}

type DatabaseConfig struct {
	// pgdriver | pq
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Password string `mapstructure:"password"`
	Debug    bool   `mapstructure:"debug"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("docs_dir", "~/social-content-manager/docs")
	v.SetDefault("manifest", "")

	v.SetDefault("embed_llm.provider", "openai")
	v.SetDefault("embed_llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("embed_llm.key", "")
	v.SetDefault("embed_llm.model", "text-embedding-3-small")
	v.SetDefault("embed_llm.dimensions", 1536)
	v.SetDefault("embed_llm.timeout_seconds", 60)
	v.SetDefault("embed_llm.rate_limit", 0)
	v.SetDefault("embed_llm.cache_size", 512)
	v.SetDefault("embed_llm.cache_ttl_seconds", 3600)

	v.SetDefault("infer_llm.provider", "openai")
	v.SetDefault("infer_llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("infer_llm.key", "")
	v.SetDefault("infer_llm.model", "gpt-4o-mini")
	v.SetDefault("infer_llm.timeout_seconds", 120)

	v.SetDefault("rag.chunk_size", 1500)
	v.SetDefault("rag.chunk_overlap", 200)
	v.SetDefault("rag.min_chunk_length", 100)
	v.SetDefault("rag.batch_size", 50)
	v.SetDefault("rag.top_k", 10)

	v.SetDefault("index.backend", "pinecone")
	v.SetDefault("index.name", "spyder-brand")
	v.SetDefault("index.namespace", "")

	v.SetDefault("pinecone.api_key", "")
	v.SetDefault("pinecone.host", "")
	v.SetDefault("pinecone.controller_url", "https://api.pinecone.io")

	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.api_key", "")
	v.SetDefault("qdrant.use_tls", false)

	v.SetDefault("chromem.path", "./chromemdb")
	v.SetDefault("chromem.in_memory", false)
	v.SetDefault("chromem.compress", false)
	v.SetDefault("chromem.encryption_key", "")

	v.SetDefault("database.driver", "pgdriver")
	v.SetDefault("database.dsn", "postgres://postgres@localhost:5432/postgres?sslmode=disable")
	v.SetDefault("database.password", "")
	v.SetDefault("database.debug", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

// credentials keep the env names the scripts have always used
var credentialEnv = map[string]string{
	"embed_llm.key":     "OPENAI_API_KEY",
	"infer_llm.key":     "OPENAI_API_KEY",
	"pinecone.api_key":  "PINECONE_API_KEY",
	"qdrant.api_key":    "QDRANT_API_KEY",
	"database.password": "DATABASE_PASSWORD",
}

// LoadConfig reads the YAML file at path (a missing file is not an error),
// then applies BRANDRAG_* and credential environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range credentialEnv {
		if err := v.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.DocsDir = expandHome(cfg.DocsDir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Index.Backend {
	case "pinecone", "qdrant", "chromem", "pgvector":
	default:
		return fmt.Errorf("unsupported index backend: %q", c.Index.Backend)
	}
	switch c.EmbedLLM.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("unsupported embedding provider: %q", c.EmbedLLM.Provider)
	}
	if c.EmbedLLM.Dimensions <= 0 {
		return fmt.Errorf("embed_llm.dimensions must be positive, got %d", c.EmbedLLM.Dimensions)
	}
	if c.RAG.BatchSize <= 0 {
		return fmt.Errorf("rag.batch_size must be positive, got %d", c.RAG.BatchSize)
	}
	if c.Index.Name == "" {
		return errors.New("index.name is required")
	}
	return nil
}
