package main

import (
	"context"
	"fmt"
	"io"

	"github.com/uiforge/uiforge/internal/brain"
	"github.com/uiforge/uiforge/internal/config"
	"github.com/uiforge/uiforge/internal/genui"
	"github.com/uiforge/uiforge/internal/observability"
	"github.com/uiforge/uiforge/internal/security"
	"github.com/uiforge/uiforge/internal/session"
	"github.com/uiforge/uiforge/internal/storage"
	"github.com/uiforge/uiforge/internal/web"
)

// app is a fully wired server and the resources it owns.
type app struct {
	cfg     *config.Config
	logger  *observability.Logger
	metrics *observability.Metrics
	store   *storage.SQLiteStore
	session *session.Session
	server  *web.Server
}

// newApp wires every component from cfg. The caller must Close the app.
func newApp(cfg *config.Config, logOut io.Writer) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := observability.NewLoggerWithOptions(appName, logOut, observability.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, err
	}

	pc := cfg.ProviderConfig()
	llm, err := brain.NewProvider(pc)
	if err != nil {
		return nil, fmt.Errorf("create llm provider: %w", err)
	}
	metrics := observability.NewMetrics(nil)
	planner := genui.NewPlanner(llm,
		genui.WithPlannerModel(pc.Model),
		genui.WithPlannerTemperature(cfg.LLM.Temperature),
		genui.WithPlannerMaxTokens(cfg.LLM.MaxTokens),
		genui.WithPlannerUsage(metrics.ObserveTokens),
	)

	store, err := storage.NewSQLiteStore(cfg.Diagnostics.Path, storage.WithRetain(cfg.Diagnostics.Retain))
	if err != nil {
		return nil, fmt.Errorf("open diagnostics store: %w", err)
	}

	guard := security.NewPromptGuard(security.GuardConfig{
		MaxLength:      cfg.Generation.MaxPromptLength,
		ExtraBlocklist: cfg.Generation.Blocklist,
	})
	opts := []session.Option{
		session.WithGuard(guard),
		session.WithDiagnostics(store),
		session.WithLogger(logger.Named("session")),
		session.WithMetrics(metrics),
		session.WithSecrets(security.NewSecretRegistry(cfg.LLM.APIKey)),
		session.WithProviderName(llm.Name()),
	}
	if cfg.Generation.Strict {
		strict, err := genui.NewStrictValidator()
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("compile strict schema: %w", err)
		}
		opts = append(opts, session.WithStrict(strict))
	}
	sess := session.New(planner, opts...)

	server := web.NewServer(cfg.Server.Addr, sess,
		web.WithStore(store),
		web.WithMetrics(metrics),
		web.WithRateLimiter(security.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)),
		web.WithLogger(logger.Named("web")),
	)

	logger.Info("configured",
		"provider", llm.Name(),
		"model", pc.Model,
		"strict", cfg.Generation.Strict,
		"diagnostics", cfg.Diagnostics.Path,
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		store:   store,
		session: sess,
		server:  server,
	}, nil
}

// Run serves until ctx is cancelled.
func (a *app) Run(ctx context.Context) error {
	return a.server.Start(ctx)
}

// Close releases the diagnostics store.
func (a *app) Close() error {
	return a.store.Close()
}
