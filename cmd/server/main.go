package main

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/annapurna-pos/api/internal/config"
	"github.com/annapurna-pos/api/internal/database"
	"github.com/annapurna-pos/api/internal/logger"
	"github.com/annapurna-pos/api/internal/router"
	"github.com/annapurna-pos/api/internal/terminal"
	"github.com/annapurna-pos/api/internal/terminal/memory"
	"github.com/annapurna-pos/api/internal/terminal/redisstore"
	"github.com/annapurna-pos/api/internal/ws"
)

func main() {
	godotenv.Load() //nolint:errcheck

	cfg := config.Load()

	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("connect database", zap.Error(err))
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatal("ping database", zap.Error(err))
	}
	queries := database.New(pool)

	var term terminal.Store
	if cfg.RedisURL != "" {
		rs, err := redisstore.New(cfg.RedisURL, cfg.HotelID, cfg.TerminalID)
		if err != nil {
			log.Fatal("redis terminal store", zap.Error(err))
		}
		if err := rs.Ping(ctx); err != nil {
			log.Fatal("ping redis", zap.Error(err))
		}
		defer rs.Close()
		term = rs
	} else {
		log.Info("REDIS_URL not set, terminal state is in-memory only")
		term = memory.New()
	}

	hub := ws.NewHub(snapshotApplier{store: term}, log)
	go hub.Run()

	r := router.New(cfg, queries, pool, term, hub, log)

	log.Info("server listening", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

// snapshotApplier writes inbound relay snapshots into this register's
// terminal store before the hub rebroadcasts them. Last writer wins.
type snapshotApplier struct {
	store terminal.Store
}

func (a snapshotApplier) ApplySnapshot(ctx context.Context, _ uuid.UUID, snap terminal.Snapshot) error {
	return a.store.ReplaceSnapshot(ctx, snap)
}
