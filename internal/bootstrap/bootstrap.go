package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/finsightlab/hybrid-retrieval/internal/config"
	"github.com/finsightlab/hybrid-retrieval/internal/core/domain"
	"github.com/finsightlab/hybrid-retrieval/internal/core/ports"
	"github.com/finsightlab/hybrid-retrieval/internal/core/usecase"
	"github.com/finsightlab/hybrid-retrieval/internal/infrastructure/compiler/ollama"
	"github.com/finsightlab/hybrid-retrieval/internal/infrastructure/queue/nats"
	"github.com/finsightlab/hybrid-retrieval/internal/infrastructure/repository/postgres"
	"github.com/finsightlab/hybrid-retrieval/internal/infrastructure/resilience"
	"github.com/finsightlab/hybrid-retrieval/internal/infrastructure/vector/qdrant"
	"github.com/finsightlab/hybrid-retrieval/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Engine         ports.RetrievalEngine
	Metrics        *metrics.RetrievalMetrics
	FusionDefaults domain.FusionConfig

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	executor := resilience.NewExecutor(resilience.DefaultConfig())

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	store := postgres.NewFactStore(db, executor, postgres.FactStoreConfig{MinMatchScore: cfg.MinMatchScore}, logger)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	ollamaClient := ollama.New(ollama.Config{
		BaseURL:    cfg.OllamaURL,
		GenModel:   cfg.OllamaGenModel,
		EmbedModel: cfg.OllamaEmbedModel,
	}, executor)
	compiler := ollama.NewCompiler(ollamaClient)
	embedder := ollama.NewEmbedder(ollamaClient)

	semantic := qdrant.New(qdrant.Config{
		BaseURL:           cfg.QdrantURL,
		Collection:        cfg.QdrantCollection,
		RequestsPerSecond: cfg.QdrantRPS,
	}, embedder, executor, logger)

	rules := usecase.DefaultClassifierRules()
	if cfg.ClassifierRulesPath != "" {
		rules, err = usecase.LoadClassifierRules(cfg.ClassifierRulesPath)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("load classifier rules: %w", err)
		}
	}
	classifier := usecase.NewRuleClassifier(compiler, rules, logger)

	retrievalMetrics := metrics.NewRetrievalMetrics("hybrid-retrieval")

	opts := []usecase.EngineOption{
		usecase.WithLogger(logger),
		usecase.WithMetrics(retrievalMetrics),
	}
	if cfg.EnrichmentEnabled {
		opts = append(opts, usecase.WithFilterEnricher(ollama.NewEnricher(ollamaClient, cfg.EnrichmentMinConfidence)))
	}

	closeFn := func() { _ = db.Close() }
	if cfg.NATSEnabled {
		publisher, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		opts = append(opts, usecase.WithEventPublisher(publisher))
		closeFn = func() {
			publisher.Close()
			_ = db.Close()
		}
	}

	engine := usecase.NewEngine(classifier, store, semantic, opts...)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Engine:  engine,
		Metrics: retrievalMetrics,
		FusionDefaults: domain.FusionConfig{
			Alpha:            cfg.FusionAlpha,
			TopK:             cfg.FusionTopK,
			RRFK:             cfg.FusionRRFK,
			PerSourceTimeout: cfg.PerSourceTimeout,
			OverallTimeout:   cfg.OverallTimeout,
		}.Normalize(),
		closeFn: closeFn,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
