package cli

import (
	"context"
	"fmt"
	"log/slog"

	"classquiz-service/internal/config"
	"classquiz-service/internal/docstore"
	"classquiz-service/internal/infra/badger"
	"classquiz-service/internal/infra/memory"
	"classquiz-service/internal/infra/postgres"
	redisstore "classquiz-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

// openStore connects the configured document store backend. The postgres
// backend is migrated before use.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (docstore.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return redisstore.NewStore(client, redisstore.WithPrefix(cfg.Redis.Prefix)), nil

	case config.BackendPostgres:
		if err := runMigrations(ctx, cfg, log); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		return postgres.NewStore(pool), nil

	case config.BackendBadger:
		store, err := badger.Open(badger.Config{
			Path:       cfg.Badger.Path,
			InMemory:   cfg.Badger.InMemory,
			Logger:     log.With(slog.String("component", "badger")),
			GCInterval: config.Duration(cfg.Badger.GCInterval, 0),
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.BackendMemory:
		log.Warn("using in-memory store; data is lost on exit")
		return memory.NewStore(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
