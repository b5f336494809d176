package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"kanun/config"
	"kanun/ingest"
	"kanun/llm"
	"kanun/llm/agent"
	"kanun/llm/providers"
	"kanun/llm/retriever"
	"kanun/llm/vector"
	"kanun/tui/chat"
)

func init() {
	// Load .env file if exists
	_ = godotenv.Load()
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "chat"
	}

	cfg, err := config.Load(*configPath)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := context.Background()

	switch cmd {
	case "chat":
		err = runChat(ctx, cfg)
	case "ingest":
		err = runIngest(ctx, cfg)
	default:
		err = fmt.Errorf("unknown command %q, expected chat or ingest", cmd)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runChat starts the interactive terminal chat.
func runChat(ctx context.Context, cfg *config.Config) error {
	// The chat screen owns the terminal, so logs go to a file.
	log, err := newLogger("kanun.log")
	if err != nil {
		return err
	}
	defer log.Sync()

	chatModel, err := newChatModel(ctx, cfg, cfg.ChatModel)
	if err != nil {
		return err
	}

	store, err := newStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	embedder, err := providers.NewEmbeddingModel(ctx, &providers.EmbeddingConfig{
		APIKey:  os.Getenv(cfg.Embedding.APIKeyEnv),
		BaseURL: cfg.Embedding.BaseURL,
		Model:   cfg.Embedding.Model,
	})
	if err != nil {
		return err
	}
	embeddings := vector.NewEmbeddingService(embedder, cfg.Embedding.Dim)

	var reranker retriever.Reranker
	if retriever.Mode(cfg.Retrieval.Mode) == retriever.ModeReranked {
		reranker = retriever.NewModelReranker(chatModel, log)
	}
	orchestrator, err := retriever.NewOrchestrator(store, embeddings, reranker, retriever.OrchestratorConfig{
		Mode:           retriever.Mode(cfg.Retrieval.Mode),
		TopK:           cfg.Retrieval.TopK,
		ScoreThreshold: cfg.Retrieval.ScoreThreshold,
		Timeout:        cfg.Retrieval.Timeout(),
	}, log)
	if err != nil {
		return err
	}

	catalog, err := config.LoadCatalog(cfg.Ingest.CategoriesPath)
	if err != nil {
		log.Warn("loading category catalog failed, reformulation runs without categories", zap.Error(err))
	}

	reformulator := retriever.NewReformulator(chatModel, catalog, log)
	composer := retriever.NewComposer(chatModel, log)
	history := agent.NewMemoryStore()

	search := func(ctx context.Context, req *agent.SearchRequest) (*llm.AnswerRecord, error) {
		formatted, _, err := orchestrator.Retrieve(ctx, req.ReformulatedQuestion, req.Categories)
		if err != nil {
			return nil, err
		}
		hist, _ := history.List(ctx)
		record, err := composer.Compose(ctx, req.UserQuestion, formatted, hist)
		if err != nil {
			return nil, err
		}
		return &record, nil
	}
	converse := func(ctx context.Context, req *agent.ConversationRequest) (*llm.AnswerRecord, error) {
		hist, _ := history.List(ctx)
		record, err := composer.Converse(ctx, req.UserQuestion, hist)
		if err != nil {
			return nil, err
		}
		return &record, nil
	}

	router, err := agent.NewRouter(chatModel, search, converse, log)
	if err != nil {
		return err
	}
	pipeline := retriever.NewPipeline(reformulator, router, history, log)

	runtime := agent.NewRuntime(pipeline, log)
	defer runtime.Shutdown()

	program := tea.NewProgram(
		chat.InitialModel(runtime),
		tea.WithAltScreen(),
	)
	_, err = program.Run()
	return err
}

// runIngest chunks, embeds, and indexes the OCR document batches.
func runIngest(ctx context.Context, cfg *config.Config) error {
	log, err := newLogger("")
	if err != nil {
		return err
	}
	defer log.Sync()

	summaryModel, err := newChatModel(ctx, cfg, cfg.SummaryModel)
	if err != nil {
		return err
	}

	store, err := newStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	embedder, err := providers.NewEmbeddingModel(ctx, &providers.EmbeddingConfig{
		APIKey:  os.Getenv(cfg.Embedding.APIKeyEnv),
		BaseURL: cfg.Embedding.BaseURL,
		Model:   cfg.Embedding.Model,
	})
	if err != nil {
		return err
	}
	embeddings := vector.NewEmbeddingService(embedder, cfg.Embedding.Dim)

	pipeline, err := ingest.NewPipeline(
		embeddings,
		store,
		ingest.NewSummarizer(summaryModel),
		vector.ChunkConfig{ChunkSize: cfg.Chunker.ChunkSize, ChunkOverlap: cfg.Chunker.ChunkOverlap},
		cfg.Ingest,
		log,
	)
	if err != nil {
		return err
	}
	return pipeline.Run(ctx)
}

func newChatModel(ctx context.Context, cfg *config.Config, mc config.ModelConfig) (model.ToolCallingChatModel, error) {
	provider, err := providers.ParseProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}
	return providers.NewChatModel(ctx, &providers.ChatModelConfig{
		Provider: provider,
		APIKey:   os.Getenv(mc.APIKeyEnv),
		BaseURL:  mc.BaseURL,
		Model:    mc.Model,
	})
}

func newStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (vector.Store, error) {
	switch cfg.Store.Type {
	case "memory":
		return vector.NewMemoryStore(), nil
	case "redis":
		return vector.NewRedisStore(ctx, vector.RedisConfig{
			Addr:           cfg.Store.Redis.Addr,
			Password:       os.Getenv(cfg.Store.Redis.PasswordEnv),
			DB:             cfg.Store.Redis.DB,
			PoolSize:       cfg.Store.Redis.PoolSize,
			IndexName:      cfg.Store.Redis.IndexName,
			VectorDim:      cfg.Embedding.Dim,
			EFConstruction: cfg.Store.Redis.EFConstruction,
			M:              cfg.Store.Redis.M,
		}, log)
	default:
		return nil, fmt.Errorf("%w: unknown store type %q", llm.ErrConfiguration, cfg.Store.Type)
	}
}

// newLogger builds the process logger. An empty path logs to stderr.
func newLogger(path string) (*zap.Logger, error) {
	c := zap.NewProductionConfig()
	if path != "" {
		c.OutputPaths = []string{path}
		c.ErrorOutputPaths = []string{path}
	}
	return c.Build()
}
