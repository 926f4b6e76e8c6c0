// Package app wires the leaflet pipelines from configuration.
// The HTTP server and the leafletctl command share it.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/giygas/leaflet-api/config"
	"github.com/giygas/leaflet-api/data"
	"github.com/giygas/leaflet-api/handlers"
	"github.com/giygas/leaflet-api/health"
	"github.com/giygas/leaflet-api/identify"
	"github.com/giygas/leaflet-api/leafletparser"
	"github.com/giygas/leaflet-api/logging"
	"github.com/giygas/leaflet-api/portal"
	"github.com/giygas/leaflet-api/qa"
	"github.com/giygas/leaflet-api/retrieval"
	"github.com/giygas/leaflet-api/scheduler"
	"github.com/giygas/leaflet-api/validation"
	"github.com/giygas/leaflet-api/vectorindex"
)

// App holds the assembled components
type App struct {
	Config     *config.Config
	Status     *data.StatusTracker
	Cache      *data.IndexCache
	Fetcher    *retrieval.Orchestrator
	Indexer    *leafletparser.Indexer
	Answerer   *qa.Answerer
	Identifier *identify.Identifier
	Validator  *validation.InputValidator
	Scheduler  *scheduler.Scheduler
}

// New builds every component. Without an API key the language model is left
// unset: answers and identification then fail softly.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	status := data.NewStatusTracker()
	status.SetServerStartTime(time.Now())

	factory := portal.NewBrowserFactory(portal.Options{
		SearchURL:         cfg.PortalSearchURL,
		NavigationTimeout: cfg.PortalNavigationTimeout,
		ResultsTimeout:    cfg.PortalNavigationTimeout,
		Headless:          cfg.BrowserHeadless,
		ExecPath:          cfg.BrowserExecPath,
	})

	fetcher := retrieval.NewOrchestrator(factory,
		retrieval.WithColumns(retrieval.ColumnConfig{
			NameColumn:      cfg.PortalNameColumn,
			SubstanceColumn: cfg.PortalSubstanceColumn,
		}),
		retrieval.WithCaptureTimeout(cfg.PDFCaptureTimeout),
		retrieval.WithLowConfidenceThreshold(cfg.LowConfidenceThreshold),
		retrieval.WithMaxSessions(int64(cfg.MaxBrowserSessions)),
		retrieval.WithStatus(status),
	)

	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}

	chat, vision, err := newChatModels(ctx, cfg)
	if err != nil {
		return nil, err
	}

	cache := data.NewIndexCache(cfg.IndexCacheTTL)

	return &App{
		Config:  cfg,
		Status:  status,
		Cache:   cache,
		Fetcher: fetcher,
		Indexer: leafletparser.NewIndexer(
			leafletparser.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
			embedder,
			leafletparser.DefaultSourceTag,
		),
		Answerer: qa.NewAnswerer(chat,
			qa.WithRetrieval(vectorindex.MMROptions{
				K:      cfg.RetrievalK,
				FetchK: cfg.RetrievalFetchK,
				Lambda: cfg.MMRLambda,
			}),
			qa.WithTemperature(float32(cfg.LLMTemperature)),
			qa.WithDefaultLanguage(cfg.Language),
		),
		Identifier: identify.NewIdentifier(vision),
		Validator:  validation.NewInputValidator(0, 0),
		Scheduler:  scheduler.NewScheduler(cache, status, cfg.IndexCacheTTL),
	}, nil
}

// Handler returns the HTTP handler over the assembled components
func (a *App) Handler() *handlers.HTTPHandlerImpl {
	return handlers.NewHTTPHandler(handlers.Dependencies{
		Fetcher:    a.Fetcher,
		Indexer:    a.Indexer,
		Indexes:    a.Cache,
		Answerer:   a.Answerer,
		Identifier: a.Identifier,
		Validator:  a.Validator,
		Health:     health.NewHealthChecker(a.Status, a.Cache, a.Config.LLMConfigured(), int64(a.Config.MaxBrowserSessions)),
		Status:     a.Status,
		Language:   a.Config.Language,
	})
}

func newEmbedder(ctx context.Context, cfg *config.Config) (embedding.Embedder, error) {
	if cfg.EmbeddingProvider == "hashing" || !cfg.LLMConfigured() {
		if cfg.EmbeddingProvider != "hashing" {
			logging.Warn("OPENAI_API_KEY not set, falling back to local hashing embeddings")
		}
		return vectorindex.NewHashingEmbedder(0), nil
	}

	embedder, err := vectorindex.NewOpenAIEmbedder(ctx, vectorindex.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.EmbeddingModel,
		Timeout: cfg.LLMTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

func newChatModels(ctx context.Context, cfg *config.Config) (chat, vision model.BaseChatModel, err error) {
	if !cfg.LLMConfigured() {
		logging.Warn("OPENAI_API_KEY not set, question answering and identification are disabled")
		return nil, nil, nil
	}

	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.ChatModel,
		BaseURL: cfg.OpenAIBaseURL,
		Timeout: cfg.LLMTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	if cfg.VisionModel == cfg.ChatModel {
		return chatModel, chatModel, nil
	}

	visionModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.VisionModel,
		BaseURL: cfg.OpenAIBaseURL,
		Timeout: cfg.LLMTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create vision model: %w", err)
	}
	return chatModel, visionModel, nil
}
