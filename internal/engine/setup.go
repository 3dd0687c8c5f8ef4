package engine

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/finover/riskengine/internal/cache"
	"github.com/finover/riskengine/internal/config"
	"github.com/finover/riskengine/internal/events"
	"github.com/finover/riskengine/internal/history"
)

// Backends holds the connections opened by Connect
type Backends struct {
	Pool      *pgxpool.Pool
	Redis     *redis.Client
	Publisher *events.Publisher
}

// Connect opens every enabled backend and builds a Service on top of them.
// A backend that cannot be reached is logged and left out; the service then
// runs without it.
func Connect(ctx context.Context, cfg *config.Config, source string) (*Service, *Backends) {
	backends := &Backends{}
	opts := Options{Risk: cfg.Risk, Source: source}

	if cfg.Database.Enabled {
		pool, err := history.Open(ctx, cfg.Database)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize database, continuing without history")
		} else {
			backends.Pool = pool
			opts.Store = history.NewStore(pool, nil)
		}
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetRedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Error().Err(err).Msg("Failed to connect to Redis, continuing without cache")
			_ = client.Close()
		} else {
			backends.Redis = client
			opts.Cache = cache.NewResultCache(client, cfg.Cache.TTL, cfg.Cache.KeyPrefix)
		}
	}

	if cfg.NATS.Enabled {
		publisher, err := events.NewPublisher(events.PublisherConfig{
			NATSURL: cfg.NATS.URL,
			Prefix:  cfg.NATS.SubjectPrefix,
			Name:    source,
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to connect to NATS, continuing without alerts")
		} else {
			backends.Publisher = publisher
			opts.Publisher = publisher
		}
	}

	return NewService(opts), backends
}

// Close releases every open backend
func (b *Backends) Close() {
	if b == nil {
		return
	}
	if b.Publisher != nil {
		if err := b.Publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close alert publisher")
		}
	}
	if b.Redis != nil {
		if err := b.Redis.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
	if b.Pool != nil {
		b.Pool.Close()
	}
}
