package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"kanun/llm"
)

// Config is the single explicit configuration record for the whole process.
// It is loaded once at startup, validated before any I/O, and passed by
// reference into component constructors. Secrets never live in the file;
// each one names the environment variable it is read from.
type Config struct {
	Provider string `yaml:"provider"` // openai | gemini

	ChatModel    ModelConfig `yaml:"chat_model"`
	SummaryModel ModelConfig `yaml:"summary_model"`

	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Store     StoreConfig     `yaml:"store"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

// ModelConfig configures one chat model endpoint.
type ModelConfig struct {
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// EmbeddingConfig configures the embedding model endpoint.
type EmbeddingConfig struct {
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Dim       int    `yaml:"dim"`
}

// ChunkerConfig configures document splitting.
type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// RetrievalConfig configures the query-time retrieval round.
type RetrievalConfig struct {
	Mode           string  `yaml:"mode"` // namespace | reranked
	TopK           int     `yaml:"top_k"`
	ScoreThreshold float32 `yaml:"score_threshold"`
	TimeoutSecs    int     `yaml:"timeout_secs"`
}

// Timeout returns the retrieval timeout as a duration.
func (c RetrievalConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// StoreConfig selects and configures the vector store implementation.
type StoreConfig struct {
	Type  string      `yaml:"type"` // redis | memory
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig contains connection details for the Redis vector store.
type RedisConfig struct {
	Addr           string `yaml:"addr"`
	PasswordEnv    string `yaml:"password_env"`
	DB             int    `yaml:"db"`
	PoolSize       int    `yaml:"pool_size"`
	IndexName      string `yaml:"index_name"`
	EFConstruction int    `yaml:"ef_construction"`
	M              int    `yaml:"m"`
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	DocsPath        string `yaml:"docs_path"`         // directory of OCR JSON batch files
	ArtifactsPath   string `yaml:"artifacts_path"`    // where chunk/vector batch files land
	CategoriesPath  string `yaml:"categories_path"`   // namespace -> description JSON
	UpsertBatchSize int    `yaml:"upsert_batch_size"` // vectors per upsert call
}

// Load reads configuration from path, falling back to defaults for anything
// unset. A missing file yields pure defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", llm.ErrConfiguration, path, err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Provider: "openai",
		ChatModel: ModelConfig{
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		SummaryModel: ModelConfig{
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Embedding: EmbeddingConfig{
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dim:       1536,
		},
		Chunker: ChunkerConfig{
			ChunkSize:    2000,
			ChunkOverlap: 200,
		},
		Retrieval: RetrievalConfig{
			Mode:           "reranked",
			TopK:           5,
			ScoreThreshold: 0.75,
			TimeoutSecs:    30,
		},
		Store: StoreConfig{
			Type: "redis",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				PoolSize:  10,
				IndexName: "kanun-laws",
			},
		},
		Ingest: IngestConfig{
			DocsPath:        "data/ocr",
			ArtifactsPath:   "data/artifacts",
			CategoriesPath:  "data/namespace_desc.json",
			UpsertBatchSize: 100,
		},
	}
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Provider == "" {
		cfg.Provider = def.Provider
	}
	if cfg.ChatModel.APIKeyEnv == "" {
		cfg.ChatModel.APIKeyEnv = def.ChatModel.APIKeyEnv
	}
	if cfg.SummaryModel.APIKeyEnv == "" {
		cfg.SummaryModel.APIKeyEnv = def.SummaryModel.APIKeyEnv
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = def.Embedding.APIKeyEnv
	}
	if cfg.Embedding.Dim == 0 {
		cfg.Embedding.Dim = def.Embedding.Dim
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = def.Chunker.ChunkSize
	}
	if cfg.Retrieval.Mode == "" {
		cfg.Retrieval.Mode = def.Retrieval.Mode
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = def.Retrieval.TopK
	}
	if cfg.Retrieval.TimeoutSecs == 0 {
		cfg.Retrieval.TimeoutSecs = def.Retrieval.TimeoutSecs
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = def.Store.Type
	}
	if cfg.Store.Redis.Addr == "" {
		cfg.Store.Redis.Addr = def.Store.Redis.Addr
	}
	if cfg.Store.Redis.IndexName == "" {
		cfg.Store.Redis.IndexName = def.Store.Redis.IndexName
	}
	if cfg.Store.Redis.PoolSize == 0 {
		cfg.Store.Redis.PoolSize = def.Store.Redis.PoolSize
	}
	if cfg.Ingest.UpsertBatchSize == 0 {
		cfg.Ingest.UpsertBatchSize = def.Ingest.UpsertBatchSize
	}
}

// Validate fails fast on configuration the pipeline cannot run with. It is
// called once at startup, before any connection is opened.
func (c *Config) Validate() error {
	switch c.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("%w: unknown provider %q", llm.ErrConfiguration, c.Provider)
	}
	if c.Chunker.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", llm.ErrConfiguration, c.Chunker.ChunkSize)
	}
	if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be in [0, chunk size %d)", llm.ErrConfiguration, c.Chunker.ChunkOverlap, c.Chunker.ChunkSize)
	}
	switch c.Retrieval.Mode {
	case "namespace", "reranked":
	default:
		return fmt.Errorf("%w: unknown retrieval mode %q", llm.ErrConfiguration, c.Retrieval.Mode)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", llm.ErrConfiguration, c.Retrieval.TopK)
	}
	if c.Retrieval.ScoreThreshold < 0 || c.Retrieval.ScoreThreshold > 1 {
		return fmt.Errorf("%w: score threshold %v out of [0,1]", llm.ErrConfiguration, c.Retrieval.ScoreThreshold)
	}
	switch c.Store.Type {
	case "redis", "memory":
	default:
		return fmt.Errorf("%w: unknown store type %q", llm.ErrConfiguration, c.Store.Type)
	}
	if c.Embedding.Dim <= 0 {
		return fmt.Errorf("%w: embedding dim must be positive, got %d", llm.ErrConfiguration, c.Embedding.Dim)
	}
	return nil
}
