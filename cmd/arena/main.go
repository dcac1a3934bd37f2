package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prompt-clan/prompt-arena/internal/api"
	"github.com/prompt-clan/prompt-arena/internal/auth"
	"github.com/prompt-clan/prompt-arena/internal/cache"
	"github.com/prompt-clan/prompt-arena/internal/cleanup"
	"github.com/prompt-clan/prompt-arena/internal/config"
	"github.com/prompt-clan/prompt-arena/internal/curriculum"
	"github.com/prompt-clan/prompt-arena/internal/game"
	"github.com/prompt-clan/prompt-arena/internal/llm"
	"github.com/prompt-clan/prompt-arena/internal/storage"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting prompt-arena",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Persistence: PostgreSQL when a DSN is set, local files otherwise
	var (
		repo  storage.Repository
		users cleanup.UserLister
	)
	if cfg.Database.DSN != "" {
		pgRepo, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
			DSN:          cfg.Database.DSN,
			MaxOpenConns: int32(cfg.Database.MaxOpenConns),
			MaxIdleConns: int32(cfg.Database.MaxIdleConns),
		})
		if err != nil {
			slog.Error("failed to create database repository", "error", err)
			os.Exit(1)
		}

		slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
		if err := storage.RunMigrations(initCtx, pgRepo.Pool(), cfg.Database.MigrationsDir); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}

		repo = pgRepo
		users = pgRepo
		slog.Info("database connected successfully")
	} else {
		localRepo, err := storage.NewLocalRepository(cfg.Database.LocalDataDir)
		if err != nil {
			slog.Error("failed to create local repository", "error", err)
			os.Exit(1)
		}
		repo = localRepo
		users = localRepo
		slog.Info("using local file persistence", "dir", cfg.Database.LocalDataDir)
	}
	defer repo.Close()

	// Leaderboard cache is optional; a nil cache is a permanent miss
	var leaderboardCache *cache.Cache
	if cfg.Redis.Address != "" {
		leaderboardCache, err = cache.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.CacheTTL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer leaderboardCache.Close()
		slog.Info("redis connected successfully")
	}

	// Curriculum
	catalog := curriculum.NewCatalog()
	if err := catalog.LoadFromDir(cfg.Curriculum.Dir); err != nil {
		slog.Error("failed to load curriculum", "dir", cfg.Curriculum.Dir, "error", err)
		os.Exit(1)
	}

	// Provider configuration: env plus runtime overrides. Without a
	// configured path the overrides live in memory and reset on restart.
	var overrides config.OverrideStore
	if cfg.LLM.OverridesPath != "" {
		fileOverrides, err := config.NewFileOverrides(cfg.LLM.OverridesPath)
		if err != nil {
			slog.Error("failed to open overrides file", "path", cfg.LLM.OverridesPath, "error", err)
			os.Exit(1)
		}
		overrides = fileOverrides
	} else {
		overrides = config.NewMemoryOverrides()
	}
	resolver := config.NewResolver(overrides)

	engine := llm.NewEngine(resolver, llm.Options{
		Timeout:    cfg.LLM.RequestTimeout,
		JudgeModel: cfg.LLM.JudgeModel,
	})
	runner := game.NewRunner(engine, repo)

	// Auth
	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	if err != nil {
		slog.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}
	oauth := auth.NewLinuxDoService(cfg.Auth, cfg.Server.PublicURL, repo, tokens)
	magic := auth.NewMagicLinkService(cfg.Auth.MagicLinkTTL, repo, tokens)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background flag recount
	recounter := cleanup.NewRecounter(repo, users, leaderboardCache, cfg.Recount.Interval)
	recounter.Start(ctx)

	// HTTP server
	server := api.NewServer(cfg.Server, api.Deps{
		Catalog:   catalog,
		Runner:    runner,
		Resolver:  resolver,
		Overrides: overrides,
		Repo:      repo,
		Cache:     leaderboardCache,
		Tokens:    tokens,
		OAuth:     oauth,
		Magic:     magic,
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: server.Router(),
		// Read/write timeouts stay above the LLM call budget so a slow
		// judge cannot be cut off mid-response
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("prompt-arena stopped")
}
