package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/aretw0/agentwright"
	"github.com/aretw0/agentwright/internal/config"
	"github.com/aretw0/agentwright/internal/logging"
	"github.com/aretw0/agentwright/pkg/adapters/anthropic"
	"github.com/aretw0/agentwright/pkg/adapters/docs"
	"github.com/aretw0/agentwright/pkg/adapters/file"
	"github.com/aretw0/agentwright/pkg/adapters/memory"
	"github.com/aretw0/agentwright/pkg/adapters/openai"
	"github.com/aretw0/agentwright/pkg/adapters/redis"
	"github.com/aretw0/agentwright/pkg/observability"
	"github.com/aretw0/agentwright/pkg/persistence/middleware"
	"github.com/aretw0/agentwright/pkg/ports"
	"github.com/aretw0/agentwright/pkg/reasoning"
)

// App bundles the engine with the resources a command needs to release.
type App struct {
	Config   *config.Config
	Engine   *agentwright.Engine
	Logger   *slog.Logger
	Registry *prometheus.Registry

	closers []func() error
}

// Close releases connections opened by NewApp.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// NewApp wires an engine from configuration. Logs go to logOut.
func NewApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*App, error) {
	logger, err := createLogger(cfg.Log, logOut)
	if err != nil {
		return nil, err
	}
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}

	store, locker, err := app.createStore(ctx)
	if err != nil {
		return nil, err
	}

	reasoner, err := createReasoner(cfg.Reasoning)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	metrics := observability.NewMetrics(app.Registry)
	engineOpts := []agentwright.Option{
		agentwright.WithLogger(logger),
		agentwright.WithLifecycleHooks(observability.LogHooks(logger).Merge(metrics.Hooks())),
		agentwright.WithMaxSteps(cfg.Engine.MaxSteps),
		agentwright.WithMaxInputSize(cfg.Engine.MaxInputSize),
		agentwright.WithTracer(otel.Tracer("github.com/aretw0/agentwright")),
	}
	if locker != nil {
		engineOpts = append(engineOpts,
			agentwright.WithLocker(locker),
			agentwright.WithLockTTL(cfg.Store.Redis.LockTTL),
		)
	}
	if cfg.Workbench != "" {
		engineOpts = append(engineOpts, agentwright.WithArtifactSink(file.NewWorkbench(cfg.Workbench)))
	}

	mws, err := storeMiddleware(cfg.Store)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	if len(mws) > 0 {
		engineOpts = append(engineOpts, agentwright.WithStoreMiddleware(mws...))
	}

	if cfg.Docs.Corpus != "" {
		index, err := createIndex(ctx, cfg, logger)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		engineOpts = append(engineOpts, agentwright.WithDocumentIndex(index))
	}

	engine, err := agentwright.New(store, reasoner, engineOpts...)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	app.Engine = engine
	return app, nil
}

// createLogger configures the application logger.
// It writes to logOut (stderr in the binary) to keep stdout for chat output.
func createLogger(cfg config.LogConfig, logOut io.Writer) (*slog.Logger, error) {
	if logOut == nil {
		return logging.NewNop(), nil
	}
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	format := logging.Format(cfg.Format)
	switch format {
	case logging.FormatText, logging.FormatJSON:
	case "":
		format = logging.FormatText
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return logging.NewWithFormat(logOut, level, format), nil
}

func (a *App) createStore(ctx context.Context) (ports.SnapshotStore, ports.DistributedLocker, error) {
	cfg := a.Config.Store
	switch cfg.Kind {
	case config.StoreMemory:
		return memory.NewStore(), nil, nil
	case config.StoreFile:
		return file.New(cfg.Dir), nil, nil
	case config.StoreRedis:
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		a.closers = append(a.closers, client.Close)

		opts := []redis.Option{redis.WithTTL(cfg.Redis.TTL)}
		if cfg.Redis.Prefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.Redis.Prefix))
		}
		a.Logger.Debug("Using redis store", "addr", cfg.Redis.Addr, "prefix", cfg.Redis.Prefix)
		return redis.NewFromClient(client, opts...), redis.NewLocker(client, cfg.Redis.Prefix), nil
	}
	return nil, nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
}

// storeMiddleware masks PII before sealing, so the encrypted payload never
// holds the raw values either.
func storeMiddleware(cfg config.StoreConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if cfg.MaskPII {
		mws = append(mws, middleware.NewPIIMiddleware(middleware.DefaultPIIPatterns))
	}
	key, err := cfg.Key()
	if err != nil {
		return nil, err
	}
	if key != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}
	return mws, nil
}

func createReasoner(cfg config.ReasoningConfig) (ports.Reasoner, error) {
	var reasoner ports.Reasoner
	switch cfg.Provider {
	case config.ProviderScripted:
		return reasoning.Offline(), nil
	case config.ProviderOpenAI:
		reasoner = openai.NewReasoner(cfg.OpenAIAPIKey, func(o *openai.Options) {
			overrideModels(&o.Models, cfg)
		})
	case config.ProviderAnthropic:
		reasoner = anthropic.NewReasoner(cfg.AnthropicAPIKey, func(o *anthropic.Options) {
			overrideModels(&o.Models, cfg)
		})
	default:
		return nil, fmt.Errorf("unknown reasoning provider %q", cfg.Provider)
	}
	if cfg.RateLimit > 0 {
		return reasoning.Limit(reasoner, cfg.RateLimit, cfg.Burst), nil
	}
	return reasoner, nil
}

func overrideModels(m *reasoning.Models, cfg config.ReasoningConfig) {
	if cfg.ReasonerModel != "" {
		m.Reasoner = cfg.ReasonerModel
	}
	if cfg.PrimaryModel != "" {
		m.Primary = cfg.PrimaryModel
	}
	if cfg.SmallModel != "" {
		m.Small = cfg.SmallModel
	}
}

func createIndex(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*docs.Index, error) {
	opts := []docs.Option{docs.WithLogger(logger)}
	if cfg.Docs.Embed {
		opts = append(opts, docs.WithEmbedder(openai.NewEmbedder(cfg.Reasoning.OpenAIAPIKey)))
	}
	index, err := docs.Open(cfg.Docs.Corpus, opts...)
	if err != nil {
		return nil, fmt.Errorf("open documentation corpus: %w", err)
	}
	if cfg.Docs.Embed {
		n, err := index.EmbedMissing(ctx)
		if err != nil {
			// Keyword ranking still works without vectors.
			logger.Warn("Embedding documentation failed", "err", err)
		} else if n > 0 {
			logger.Info("Embedded documentation chunks", "count", n)
		}
	}
	return index, nil
}
