package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/upb/ai-orchestrator/config"
	"github.com/upb/ai-orchestrator/internal/observability"
	"github.com/upb/ai-orchestrator/repositories/postgres"
	"github.com/upb/ai-orchestrator/services/content"
	"github.com/upb/ai-orchestrator/services/ledger"
	"github.com/upb/ai-orchestrator/services/orchestrator"
	"github.com/upb/ai-orchestrator/services/providers"
	"github.com/upb/ai-orchestrator/services/providers/anthropic"
	"github.com/upb/ai-orchestrator/services/providers/cohere"
	"github.com/upb/ai-orchestrator/services/providers/deepseek"
	"github.com/upb/ai-orchestrator/services/providers/gemini"
	"github.com/upb/ai-orchestrator/services/providers/grok"
	"github.com/upb/ai-orchestrator/services/providers/groq"
	"github.com/upb/ai-orchestrator/services/providers/mistral"
	"github.com/upb/ai-orchestrator/services/providers/openai"
	"github.com/upb/ai-orchestrator/services/providers/openrouter"
	"github.com/upb/ai-orchestrator/services/store"
	"go.uber.org/zap"
)

// adapterFactories builds each vendor adapter from its settings
var adapterFactories = map[string]func(providers.ProviderConfig) providers.Adapter{
	"groq":       func(c providers.ProviderConfig) providers.Adapter { return groq.NewAdapter(c) },
	"deepseek":   func(c providers.ProviderConfig) providers.Adapter { return deepseek.NewAdapter(c) },
	"gemini":     func(c providers.ProviderConfig) providers.Adapter { return gemini.NewAdapter(c) },
	"mistral":    func(c providers.ProviderConfig) providers.Adapter { return mistral.NewAdapter(c) },
	"openai":     func(c providers.ProviderConfig) providers.Adapter { return openai.NewAdapter(c) },
	"anthropic":  func(c providers.ProviderConfig) providers.Adapter { return anthropic.NewAdapter(c) },
	"cohere":     func(c providers.ProviderConfig) providers.Adapter { return cohere.NewAdapter(c) },
	"grok":       func(c providers.ProviderConfig) providers.Adapter { return grok.NewAdapter(c) },
	"openrouter": func(c providers.ProviderConfig) providers.Adapter { return openrouter.NewAdapter(c) },
}

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB
	Logger  *zap.Logger
	Metrics *observability.PrometheusMetrics

	// Shared state
	Store  store.Store
	Ledger ledger.Ledger

	// AI
	Registry     *providers.Registry
	Orchestrator *orchestrator.Orchestrator

	// Content
	Content      *content.Service
	ContentCache content.Cache

	stopCleanup chan struct{}
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		stopCleanup: make(chan struct{}),
	}

	if cfg.Observability.MetricsEnabled {
		deps.Metrics = observability.NewPrometheusMetrics(cfg.Observability.MetricsNamespace)
	}

	if cfg.Database != nil {
		if err := deps.initDatabase(ctx, cfg); err != nil {
			deps.closeQuietly(ctx)
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	if err := deps.initStore(ctx, cfg); err != nil {
		deps.closeQuietly(ctx)
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	if err := deps.initLedger(cfg); err != nil {
		deps.closeQuietly(ctx)
		return nil, fmt.Errorf("failed to initialize ledger: %w", err)
	}

	if err := deps.initProviders(cfg); err != nil {
		deps.closeQuietly(ctx)
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	if err := deps.initOrchestrator(cfg); err != nil {
		deps.closeQuietly(ctx)
		return nil, fmt.Errorf("failed to initialize orchestrator: %w", err)
	}

	if err := deps.initContent(cfg); err != nil {
		deps.closeQuietly(ctx)
		return nil, fmt.Errorf("failed to initialize content: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// metrics returns the recorder handed to services
func (d *Dependencies) metrics() observability.Metrics {
	if d.Metrics == nil {
		return observability.NopMetrics{}
	}
	return d.Metrics
}

// initDatabase opens the PostgreSQL pool and creates the ledger table
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	db, err := postgres.NewDB(*cfg.Database, d.Logger)
	if err != nil {
		return err
	}
	d.DB = db

	if err := db.InitSchema(ctx); err != nil {
		return err
	}
	return nil
}

// initStore selects the key-value backend for usage counters and health
func (d *Dependencies) initStore(ctx context.Context, cfg *config.Config) error {
	switch cfg.Store.Backend {
	case config.StoreRedis:
		redisStore := store.NewRedisStore(store.RedisConfig{
			Addr:      cfg.Store.Redis.Addr,
			Password:  cfg.Store.Redis.Password,
			DB:        cfg.Store.Redis.DB,
			KeyPrefix: cfg.Store.Redis.KeyPrefix,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := redisStore.Ping(pingCtx); err != nil {
			_ = redisStore.Close()
			return err
		}
		d.Store = redisStore
	default:
		d.Store = store.NewMemoryStore()
	}

	d.Logger.Info("store initialized", zap.String("backend", cfg.Store.Backend))
	return nil
}

// initLedger picks where daily usage lives
func (d *Dependencies) initLedger(cfg *config.Config) error {
	switch cfg.Store.LedgerBackend {
	case config.LedgerPostgres:
		if d.DB == nil {
			return errors.New("postgres ledger requires a database")
		}
		d.Ledger = ledger.NewPostgresLedger(d.DB.DB, d.Logger)
	default:
		d.Ledger = ledger.NewKVLedger(d.Store, cfg.Store.Retention)
	}

	d.Logger.Info("usage ledger initialized", zap.String("backend", cfg.Store.LedgerBackend))
	return nil
}

// initProviders registers every enabled adapter. Adapters without a key are
// still registered so that they show up in listings as unconfigured.
func (d *Dependencies) initProviders(cfg *config.Config) error {
	registry := providers.NewRegistry()

	for _, id := range config.ProviderIDs {
		settings, ok := cfg.Providers[id]
		if ok && !settings.Enabled {
			d.Logger.Info("provider disabled", zap.String("provider", id))
			continue
		}

		factory, ok := adapterFactories[id]
		if !ok {
			return fmt.Errorf("no adapter for provider %q", id)
		}

		adapter := factory(providers.ProviderConfig{
			APIKey:      settings.APIKey,
			Model:       settings.Model,
			BaseURL:     settings.BaseURL,
			Priority:    settings.Priority,
			Timeout:     cfg.AI.RequestTimeout,
			MaxTokens:   cfg.AI.MaxTokens,
			Temperature: cfg.AI.Temperature,
		})
		if err := registry.Register(adapter); err != nil {
			return err
		}

		if adapter.IsConfigured() {
			d.Logger.Info("registered provider",
				zap.String("provider", id),
				zap.Int("priority", adapter.Priority()),
				zap.String("model", adapter.DefaultModel()))
		}
	}

	if len(registry.Configured()) == 0 {
		d.Logger.Warn("no AI providers configured, content falls back to templates")
	}

	d.Registry = registry
	return nil
}

func (d *Dependencies) initOrchestrator(cfg *config.Config) error {
	loc, err := cfg.AI.Location()
	if err != nil {
		return err
	}

	d.Orchestrator = orchestrator.NewOrchestrator(orchestrator.Config{
		DailyCostLimit:  cfg.AI.DailyCostLimit,
		FailoverEnabled: cfg.AI.FailoverEnabled,
		SmartSelection:  cfg.AI.SmartSelection,
		HealthTTL:       cfg.AI.HealthTTL,
		Location:        loc,
	}, d.Registry, d.Ledger, d.Store, d.metrics(), d.Logger)
	return nil
}

// initContent selects the content cache and builds the content service
func (d *Dependencies) initContent(cfg *config.Config) error {
	switch cfg.Content.CacheBackend {
	case config.CacheSQLite:
		cache, err := content.NewSQLiteCache(cfg.Content.CachePath)
		if err != nil {
			return err
		}
		d.ContentCache = cache
		go d.purgeSQLiteCache(cache, cfg.Content.CacheTTL, d.stopCleanup)
	default:
		d.ContentCache = content.NewMemoryCache(cfg.Content.CacheSize, cfg.Content.CacheTTL)
	}

	d.Content = content.NewService(content.Config{
		CacheTTL:    cfg.Content.CacheTTL,
		MaxTokens:   cfg.Content.MaxTokens,
		Temperature: cfg.AI.Temperature,
	}, d.Orchestrator, d.ContentCache, d.metrics(), d.Logger)

	d.Logger.Info("content service initialized",
		zap.String("cache", cfg.Content.CacheBackend),
		zap.Duration("ttl", cfg.Content.CacheTTL))
	return nil
}

func (d *Dependencies) purgeSQLiteCache(cache *content.SQLiteCache, ttl time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(cleanupInterval(ttl))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			removed, err := cache.PurgeExpired(ctx)
			cancel()
			if err != nil {
				d.Logger.Warn("content cache purge failed", zap.Error(err))
			} else if removed > 0 {
				d.Logger.Debug("content cache purged", zap.Int64("removed", removed))
			}
		case <-stopCh:
			return
		}
	}
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > 10*time.Minute {
		return 10 * time.Minute
	}
	return ttl
}

func (d *Dependencies) closeQuietly(ctx context.Context) {
	if err := d.Close(ctx); err != nil {
		d.Logger.Warn("cleanup after failed initialization", zap.Error(err))
	}
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.stopCleanup != nil {
		close(d.stopCleanup)
		d.stopCleanup = nil
	}

	if closer, ok := d.ContentCache.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close content cache: %w", err))
		}
	}

	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close store: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %w", errors.Join(errs...))
	}

	return nil
}
