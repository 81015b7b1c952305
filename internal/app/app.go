// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/journal-harvester/internal/config"
	collyfetcher "github.com/JakeFAU/journal-harvester/internal/fetcher/colly"
	"github.com/JakeFAU/journal-harvester/internal/fetcher/ratelimit"
	"github.com/JakeFAU/journal-harvester/internal/fetcher/retry"
	"github.com/JakeFAU/journal-harvester/internal/harvest"
	"github.com/JakeFAU/journal-harvester/internal/metrics"
	"github.com/JakeFAU/journal-harvester/internal/storage/csvstore"
	"github.com/JakeFAU/journal-harvester/internal/storage/gcs"
	"github.com/JakeFAU/journal-harvester/internal/storage/local"
	"github.com/JakeFAU/journal-harvester/internal/storage/memory"
	"github.com/JakeFAU/journal-harvester/internal/storage/postgres"
)

// App holds the services shared by one harvester run.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	fetcher   harvest.Fetcher
	store     harvest.RecordStore
	artifacts harvest.ArtifactStore

	gcsClient     *gcstorage.Client
	metricsServer *http.Server
}

// Option overrides a component built by New; tests use it to inject fakes.
type Option func(*App)

// WithFetcher replaces the network fetcher; rate limiting and retries still apply.
func WithFetcher(f harvest.Fetcher) Option {
	return func(a *App) { a.fetcher = f }
}

// WithRecordStore replaces the configured record store.
func WithRecordStore(s harvest.RecordStore) Option {
	return func(a *App) { a.store = s }
}

// WithArtifactStore replaces the configured artifact store.
func WithArtifactStore(s harvest.ArtifactStore) Option {
	return func(a *App) { a.artifacts = s }
}

// New creates the services named by cfg. It fails fast if any of them
// cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}

	if a.fetcher == nil {
		a.fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent:     cfg.HTTP.UserAgent,
			RespectRobots: cfg.HTTP.RespectRobots,
			Timeout:       cfg.Timeout(),
			MaxBodySize:   cfg.HTTP.MaxBodyBytes,
		})
	}
	a.fetcher = ratelimit.New(a.fetcher, ratelimit.Config{
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
		Burst:             cfg.HTTP.Burst,
	})
	a.fetcher = retry.New(a.fetcher, retry.Policy{
		MaxAttempts: cfg.HTTP.MaxAttempts,
		Base:        cfg.Backoff(),
	}, logger.Named("fetch"))

	if a.store == nil {
		store, err := openRecordStore(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		a.store = store
	}

	if a.artifacts == nil {
		if err := a.openArtifactStore(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	if cfg.Metrics.Addr != "" {
		a.startMetricsServer()
	}
	return a, nil
}

func openRecordStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (harvest.RecordStore, error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		logger.Info("using postgres record store", zap.String("articles_table", cfg.DB.ArticlesTable))
		store, err := postgres.Open(ctx, postgres.Config{
			DSN:           cfg.DB.DSN,
			ArticlesTable: cfg.DB.ArticlesTable,
			IssuesTable:   cfg.DB.IssuesTable,
			MaxConns:      cfg.DB.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize record store: %w", err)
		}
		return store, nil
	case config.BackendCSV:
		logger.Info("using csv record store",
			zap.String("articles", cfg.Store.ArticlesFile),
			zap.String("issues", cfg.Store.IssuesFile),
		)
		store, err := csvstore.Open(csvstore.Config{
			ArticlesPath: cfg.Store.ArticlesFile,
			IssuesPath:   cfg.Store.IssuesFile,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize record store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown record store backend: %s", cfg.Store.Backend)
	}
}

func (a *App) openArtifactStore(ctx context.Context) error {
	cfg := a.cfg.Artifacts
	switch cfg.Backend {
	case config.BackendGCS:
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("failed to create gcs client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.GCSBucket, Prefix: cfg.Prefix})
		if err != nil {
			_ = client.Close()
			return fmt.Errorf("failed to initialize artifact store: %w", err)
		}
		a.gcsClient = client
		a.artifacts = store
		a.logger.Info("using gcs artifact store", zap.String("bucket", cfg.GCSBucket))
	case config.BackendMemory:
		a.artifacts = memory.NewBlobStore()
		a.logger.Info("using in-memory artifact store; downloads are discarded on exit")
	case config.BackendLocal:
		store, err := local.New(local.Config{BaseDir: cfg.Dir})
		if err != nil {
			return fmt.Errorf("failed to initialize artifact store: %w", err)
		}
		a.artifacts = store
		a.logger.Info("using local artifact store", zap.String("dir", cfg.Dir))
	default:
		return fmt.Errorf("unknown artifact backend: %s", cfg.Backend)
	}
	return nil
}

func (a *App) startMetricsServer() {
	a.metricsServer = &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           metrics.NewRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("metrics server started", zap.String("addr", a.cfg.Metrics.Addr))
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Store returns the record store.
func (a *App) Store() harvest.RecordStore {
	return a.store
}

// Walker assembles the crawl pipeline around the shared services.
func (a *App) Walker(logger *zap.Logger) *harvest.ArchiveWalker {
	if logger == nil {
		logger = a.logger
	}
	resolver := harvest.NewResolver(a.fetcher, a.artifacts, logger.Named("resolver"))
	articles := harvest.NewArticleCrawler(a.fetcher, a.store, resolver, logger.Named("article"))
	issues := harvest.NewIssueCrawler(a.fetcher, a.store, articles, logger.Named("issue"))
	return harvest.NewArchiveWalker(a.cfg.Archive.BaseURL, a.fetcher, a.store, issues, logger.Named("archive"))
}

// Close shuts down the services in reverse order of creation.
func (a *App) Close() {
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Warn("error stopping metrics server", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("error closing gcs client", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("error closing record store", zap.Error(err))
		}
	}
}
