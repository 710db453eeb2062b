package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	appconfig "github.com/ca-srg/legalrag/internal/config"
	"github.com/ca-srg/legalrag/internal/embedding"
	"github.com/ca-srg/legalrag/internal/llm"
	"github.com/ca-srg/legalrag/internal/localstore"
	"github.com/ca-srg/legalrag/internal/metrics"
	"github.com/ca-srg/legalrag/internal/observability"
	"github.com/ca-srg/legalrag/internal/opensearch"
	"github.com/ca-srg/legalrag/internal/search"
	"github.com/ca-srg/legalrag/internal/types"
)

type (
	appConfigLoader  func(envFiles ...string) (*types.Config, error)
	storeFactory     func(ctx context.Context, cfg *types.Config) (search.DocumentStore, func() error, error)
	embedderFactory  func(cfg *types.Config) (search.QueryEmbedder, error)
	generatorFactory func(ctx context.Context, cfg *types.Config) (llm.Generator, error)
)

// Package-level factories so command tests can swap in fakes.
var (
	loadAppConfig appConfigLoader  = appconfig.Load
	newStore      storeFactory     = openDocumentStore
	newEmbedder   embedderFactory  = openEmbedder
	newGenerator  generatorFactory = llm.NewGenerator
)

// application holds everything a command needs to serve queries.
type application struct {
	config    *types.Config
	store     search.DocumentStore
	embedder  search.QueryEmbedder
	generator llm.Generator
	service   *search.Service
	usage     *metrics.Recorder
	cleanup   []func() error
}

func newApplication(ctx context.Context) (*application, error) {
	cfg, err := loadAppConfig(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	app := &application{config: cfg}

	if cfg.UsageStatsEnabled {
		recorder, err := openUsageRecorder(cfg)
		if err != nil {
			log.Printf("Usage statistics disabled: %v", err)
		} else {
			app.usage = recorder
			app.cleanup = append(app.cleanup, recorder.Close)
		}
	}

	otelCfg, err := observability.LoadConfig(cfg)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("invalid observability configuration: %w", err)
	}
	shutdown, err := observability.Init(ctx, otelCfg)
	if err != nil {
		log.Printf("Observability disabled: %v", err)
	} else {
		app.cleanup = append(app.cleanup, func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return shutdown(shutdownCtx)
		})
	}

	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}
	app.store = store
	if closeStore != nil {
		app.cleanup = append(app.cleanup, closeStore)
	}

	if app.embedder, err = newEmbedder(cfg); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	if app.generator, err = newGenerator(ctx, cfg); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}

	app.service, err = search.NewService(ctx, app.store, app.embedder, app.generator, search.OptionsFromConfig(cfg))
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create search service: %w", err)
	}
	return app, nil
}

func (a *application) record(ctx context.Context, mode metrics.Mode) {
	a.usage.Record(ctx, mode)
}

// Close releases resources in reverse order of acquisition.
func (a *application) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		if err := a.cleanup[i](); err != nil {
			log.Printf("Cleanup failed: %v", err)
		}
	}
	a.cleanup = nil
}

func openDocumentStore(ctx context.Context, cfg *types.Config) (search.DocumentStore, func() error, error) {
	switch cfg.StoreBackend {
	case appconfig.StoreBackendLocal:
		store, err := localstore.Open(cfg.LocalCorpusPath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case appconfig.StoreBackendOpenSearch:
		osConfig, err := opensearch.NewConfigFromTypes(cfg)
		if err != nil {
			return nil, nil, err
		}

		var awsCfg *aws.Config
		if osConfig.UsesSigV4() {
			loaded, err := appconfig.LoadAWSConfig(ctx, cfg, osConfig.Region)
			if err != nil {
				return nil, nil, err
			}
			awsCfg = &loaded
		}

		client, err := opensearch.NewClient(osConfig, awsCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OpenSearch client: %w", err)
		}
		store, err := opensearch.NewStore(client)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
}

func openEmbedder(cfg *types.Config) (search.QueryEmbedder, error) {
	return embedding.NewProviderFromConfig(cfg)
}

func openUsageRecorder(cfg *types.Config) (*metrics.Recorder, error) {
	path, err := usageStatsPath(cfg)
	if err != nil {
		return nil, err
	}
	store, err := metrics.NewStore(path)
	if err != nil {
		return nil, err
	}
	recorder, err := metrics.NewRecorder(store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return recorder, nil
}

func usageStatsPath(cfg *types.Config) (string, error) {
	if cfg.UsageStatsPath != "" {
		return cfg.UsageStatsPath, nil
	}
	return metrics.DefaultPath()
}
