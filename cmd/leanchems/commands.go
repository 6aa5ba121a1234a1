package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/comigor/leanchems-go/internal/agent"
	"github.com/comigor/leanchems-go/internal/config"
	"github.com/comigor/leanchems-go/internal/llm"
	"github.com/comigor/leanchems-go/internal/logger"
	"github.com/comigor/leanchems-go/internal/search"
	"github.com/comigor/leanchems-go/internal/server"
	"github.com/comigor/leanchems-go/internal/session"
)

const shutdownTimeout = 10 * time.Second

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "leanchems",
		Usage: "Business idea advisor chat backend for Leanchems",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (defaults to ./config.yaml)",
				Sources: cli.EnvVars("CONFIG_PATH"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP server",
				Action: runServe,
			},
			{
				Name:   "cleanup",
				Usage:  "Remove expired sessions from the configured backend and exit",
				Action: runCleanup,
			},
		},
		Action: runServe,
	}
}

// loadConfig applies the global flags and loads configuration.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	if path := cmd.String("config"); path != "" {
		if err := os.Setenv("CONFIG_PATH", path); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logger.SetLevel(cfg.Log.Level)
	if cmd.Bool("debug") {
		logger.SetLevel("debug")
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg config.SessionConfig) (*session.Store, error) {
	backend, err := session.OpenBackend(cfg)
	if err != nil {
		return nil, fmt.Errorf("open session backend: %w", err)
	}
	store := session.NewStore(backend, cfg.Timeout)
	store.LoadAll(ctx)
	return store, nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.LLM.APIKey == "" {
		logger.L.Warn("no LLM API key configured, every turn will use the fallback response")
	}

	store, err := openStore(ctx, cfg.Session)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.L.Warn("session backend close error", "error", err)
		}
	}()

	cleanup := session.NewCleanupService(store, cfg.Session.CleanupInterval)
	cleanup.Start(ctx)
	defer cleanup.Stop()

	var opts []agent.Option
	if cfg.Search.Enabled {
		provider, err := search.New(ctx, cfg.Search)
		if err != nil {
			logger.L.Error("web search disabled", "error", err)
		} else {
			defer func() {
				if err := provider.Close(); err != nil {
					logger.L.Warn("search provider close error", "error", err)
				}
			}()
			opts = append(opts, agent.WithSearch(provider))
		}
	}

	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return err
	}
	a := agent.New(llmClient, cfg.LLM, store, opts...)
	srv := server.NewServer(cfg.Server, a, store)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.L.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func runCleanup(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg.Session)
	if err != nil {
		return err
	}
	defer store.Close()

	removed, err := store.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	logger.L.Info("cleanup finished", "removed", removed, "remaining", store.Len())
	return nil
}
