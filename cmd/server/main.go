package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/actuallystonmai/movie-recommender/internal/cache"
	"github.com/actuallystonmai/movie-recommender/internal/config"
	"github.com/actuallystonmai/movie-recommender/internal/handler"
	"github.com/actuallystonmai/movie-recommender/internal/logging"
	"github.com/actuallystonmai/movie-recommender/internal/model"
	"github.com/actuallystonmai/movie-recommender/internal/repository"
	"github.com/actuallystonmai/movie-recommender/internal/router"
	"github.com/actuallystonmai/movie-recommender/internal/service"
)

const cachePrefix = "movie-recommender:"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, logger, os.Args[1:]); err != nil {
		logger.Fatal().Err(err).Msg("exiting")
	}
}

func run(cfg *config.Config, logger zerolog.Logger, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ------------ PostgreSQL ---------------
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.DBPoolSize)
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := waitForDB(ctx, pool, logger); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	logger.Info().Msg("connected to PostgreSQL")

	// ------------ Run Migrations ---------------
	// for migrate-down using CLI command
	if len(args) > 0 && args[0] == "migrate-down" {
		return migrateDown(ctx, pool, logger)
	}

	if err := migrateUp(ctx, pool, logger); err != nil {
		return err
	}

	// ------------ Setup Seed Data ---------------
	if err := checkSeed(ctx, pool, logger); err != nil {
		return fmt.Errorf("check seed: %w", err)
	}

	// ------------ Redis ---------------
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	store := cache.NewRedisStore(rdb, cachePrefix)
	if err := store.Ping(ctx); err != nil {
		// Cache failures degrade to misses, so keep going.
		logger.Warn().Err(err).Msg("redis unavailable, every request will miss the cache")
	}

	// ------------ Recommendation service ---------------
	svc := service.NewService(
		logger,
		repository.NewRepository(pool),
		cache.NewCache(store),
		model.NewFileStore(cfg.ModelPath),
		serviceOptions(cfg),
	)

	if len(args) > 0 {
		return runCommand(ctx, svc, logger, args)
	}

	if err := svc.Initialize(ctx); err != nil {
		logger.Warn().Err(err).Msg("no model available yet, serving fallback recommendations")
	}

	// ---------------- Server --------------------
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.Setup(handler.NewHandler(svc, logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server running")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
	return nil
}

func serviceOptions(cfg *config.Config) service.Options {
	opts := service.DefaultOptions()
	opts.CacheTTL = cfg.CacheTTL
	opts.FallbackCacheTTL = cfg.FallbackCacheTTL
	opts.StaleAfter = cfg.StaleAfter
	opts.TrainWaitTimeout = cfg.TrainWaitTimeout
	opts.BatchConcurrency = cfg.BatchConcurrency
	opts.Model.ContentWeight = cfg.ContentWeight
	opts.Model.CollaborativeWeight = cfg.CollaborativeWeight
	opts.Model.Factors = cfg.Factors
	return opts
}
