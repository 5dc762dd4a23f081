package app

import (
	"context"
	"fmt"

	"github.com/docuchat/backend/config"
	"github.com/docuchat/backend/repositories"
	"github.com/docuchat/backend/repositories/postgres"
	"github.com/docuchat/backend/services/chat"
	"github.com/docuchat/backend/services/chunker"
	"github.com/docuchat/backend/services/embeddings"
	"github.com/docuchat/backend/services/ingest"
	"github.com/docuchat/backend/services/providers"
	"github.com/docuchat/backend/services/providers/ollama"
	"github.com/docuchat/backend/services/rag"
	"github.com/docuchat/backend/services/vectorstore"
	"github.com/docuchat/backend/services/vectorstore/memory"
	"github.com/docuchat/backend/services/vectorstore/milvus"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Repositories *repositories.Repositories
	TxManager    repositories.TransactionManager

	// Provider Registry
	ProviderRegistry *providers.Registry

	// Domain services
	Embedder      embeddings.Embedder
	VectorStore   vectorstore.Store
	ChunkService  *chunker.Service
	RAGService    *rag.Service
	IngestService *ingest.Service
	ChatService   *chat.Service

	// closeVectorStore releases the Milvus client when one is in use
	closeVectorStore func(ctx context.Context) error
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initProviders(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	if err := deps.initVectorStore(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	if err := deps.initServices(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL connection, schema and repositories
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := d.DB.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.Repositories = factory.NewRepositories()
	d.TxManager = factory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
	return nil
}

// initProviders initializes the provider registry with configured backends
func (d *Dependencies) initProviders(ctx context.Context, cfg *config.Config) error {
	registry := providers.NewRegistry()

	adapter := ollama.NewOllamaAdapter(cfg.Ollama.Host, cfg.Ollama.Timeout)
	if err := registry.RegisterProvider(adapter); err != nil {
		return err
	}

	if !adapter.IsAvailable(ctx) {
		// Not fatal: the backend may come up later
		d.Logger.Warn("ollama is not reachable", zap.String("host", cfg.Ollama.Host))
	}

	d.ProviderRegistry = registry
	d.Logger.Info("registered ollama provider", zap.String("host", cfg.Ollama.Host))
	return nil
}

// initVectorStore selects the Milvus-backed store when an address is
// configured, falling back to the in-memory store otherwise
func (d *Dependencies) initVectorStore(ctx context.Context, cfg *config.Config) error {
	if cfg.Milvus.Address == "" {
		d.VectorStore = memory.NewStore(d.Logger)
		d.Logger.Info("using in-memory vector store")
		return nil
	}

	store, err := milvus.NewStore(ctx, cfg.Milvus.Address, cfg.Ollama.EmbeddingDim, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect to milvus: %w", err)
	}

	d.VectorStore = store
	d.closeVectorStore = store.Close
	d.Logger.Info("using milvus vector store", zap.String("address", cfg.Milvus.Address))
	return nil
}

// initServices wires up the domain services
func (d *Dependencies) initServices(cfg *config.Config) error {
	tokenizer, err := chunker.NewTiktokenTokenizer(cfg.RAG.TokenEncoding)
	if err != nil {
		// Fall back to rune-based chunking
		d.Logger.Warn("tokenizer unavailable, chunking by characters", zap.Error(err))
		tokenizer = nil
	}

	chunkSvc, err := chunker.NewService(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap, tokenizer, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create chunker: %w", err)
	}
	d.ChunkService = chunkSvc

	d.Embedder = embeddings.NewOllamaEmbedder(
		cfg.Ollama.Host,
		cfg.Ollama.EmbeddingModel,
		cfg.Ollama.EmbeddingDim,
		cfg.Ollama.Timeout,
		d.Logger,
	)

	d.RAGService = rag.NewService(d.Embedder, d.VectorStore, d.ProviderRegistry, rag.Config{
		TopK:              cfg.RAG.TopK,
		MinRelevanceScore: cfg.RAG.MinRelevanceScore,
		MaxHistory:        cfg.RAG.MaxHistory,
		DefaultModel:      cfg.Ollama.Model,
	}, d.Logger)

	d.IngestService = ingest.NewService(
		d.Repositories.Documents,
		d.ChunkService,
		d.Embedder,
		d.VectorStore,
		d.Logger,
	)

	d.ChatService = chat.NewService(
		d.Repositories.Chats,
		d.Repositories.Messages,
		d.TxManager,
		d.RAGService,
		d.Logger,
	)

	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.closeVectorStore != nil {
		if err := d.closeVectorStore(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close vector store: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
