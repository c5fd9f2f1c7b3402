package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/katakuxiko/agrochat/internal/api"
	"github.com/katakuxiko/agrochat/internal/config"
	"github.com/katakuxiko/agrochat/internal/logger"
	"github.com/katakuxiko/agrochat/internal/memory"
	"github.com/katakuxiko/agrochat/internal/metrics"
	"github.com/katakuxiko/agrochat/internal/service"
	"github.com/katakuxiko/agrochat/internal/store"
)

func main() {
	if err := run(); err != nil {
		logger.Default().Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// config
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(cfg.LogLevel),
		Output: os.Stderr,
		JSON:   cfg.LogJSON,
	})
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.ContextWithLogger(ctx, log)

	// store
	index, err := store.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("vector index: %w", err)
	}
	defer index.Close()
	log.Info("vector index configured", "provider", cfg.VectorProvider)

	sessions, err := memory.New(ctx, cfg)
	if err != nil {
		return err
	}
	if c, ok := sessions.(io.Closer); ok {
		defer c.Close()
	}

	guard, err := newGuard(cfg)
	if err != nil {
		return err
	}

	// services
	llm, err := service.NewLLMClient(cfg)
	if err != nil {
		return err
	}
	m := metrics.New()
	opts := []service.Option{service.WithMetrics(m)}
	if cfg.MaxContextTokens > 0 {
		opts = append(opts, service.WithEstimator(service.NewEstimator()))
	}
	rag := service.NewRAGService(llm, index, llm, sessions, guard, service.RAGOptions{
		TopK:             cfg.TopK,
		HistoryTurns:     cfg.HistoryTurns,
		MaxContextTokens: cfg.MaxContextTokens,
		RewriteFallback:  cfg.RewriteFallback,
		Persona:          cfg.Persona,
	}, opts...)

	// api
	h := api.NewHandler(rag, llm, sessions, cfg.RequestTimeout, log)
	app := api.NewApp(h, api.AppConfig{Metrics: m, AccessLog: os.Stderr})

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", "addr", cfg.Addr())
		errCh <- app.Listen(cfg.Addr())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newGuard prefers the keyword file, then CRISIS_KEYWORDS, then the defaults.
func newGuard(cfg *config.Config) (*service.Guard, error) {
	if cfg.CrisisKeywordsFile != "" {
		kw, err := service.LoadKeywords(cfg.CrisisKeywordsFile)
		if err != nil {
			return nil, err
		}
		return service.NewGuard(kw), nil
	}
	return service.NewGuard(cfg.CrisisKeywords), nil
}
