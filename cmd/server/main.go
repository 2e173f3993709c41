package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/brainduel/api/internal/config"
	"github.com/brainduel/api/internal/database"
	"github.com/brainduel/api/internal/game"
	"github.com/brainduel/api/internal/migrations"
	"github.com/brainduel/api/internal/selector"
	"github.com/brainduel/api/internal/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	// --- Redis (optional: analytics relay off when unset) ---
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		logger.Info("connected to redis")
	}

	// --- Engine ---
	store := game.NewStore(db)
	bank := selector.NewBank(db)
	energy := game.NewSQLiteEnergyGate(store, loc)
	access := game.NewSQLiteAccessGate(db)
	svc := game.New(store, bank, energy, access, game.OutboxSink{}, logger, loc).
		WithTTLs(game.TTLs{
			Pending:     game.DefaultTTLs.Pending,
			Accepted:    game.DefaultTTLs.Accepted,
			LastChance:  game.DefaultTTLs.LastChance,
			ReaperBatch: cfg.ReaperBatchSize,
		})

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, svc, store, db, rdb)

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	g.Go(func() error {
		logger.Info("starting duel reaper", "interval", cfg.ReaperInterval)
		err := svc.RunReaper(gctx, cfg.ReaperInterval)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if rdb != nil {
		relay := game.NewRelay(store, rdb, logger)
		g.Go(func() error {
			logger.Info("starting analytics relay", "interval", cfg.OutboxInterval)
			err := relay.Run(gctx, cfg.OutboxInterval)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	return g.Wait()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}
