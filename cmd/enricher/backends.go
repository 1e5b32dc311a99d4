package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hakivo/enricher/internal/config"
	"github.com/hakivo/enricher/internal/queue"
	"github.com/hakivo/enricher/internal/storage"
)

// backends holds the store and queue endpoints selected by configuration.
type backends struct {
	store     *storage.Store
	source    queue.Source
	publisher queue.Publisher
	stats     queue.StatsReporter
	redis     *redis.Client
	recover   func(ctx context.Context) (int, error) // nil for the SQL queue
}

func (b *backends) Close() error {
	var err error
	if b.redis != nil {
		err = b.redis.Close()
	}
	if cerr := b.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func openStore(ctx context.Context, cfg config.Config) (*storage.Store, error) {
	switch cfg.Storage.Driver {
	case "", "sqlite":
		return storage.Open(cfg.Storage.DataDir)
	case "postgres":
		return storage.OpenPostgres(ctx, cfg.Storage.DSN)
	default:
		return nil, fmt.Errorf("unknown storage.driver %q", cfg.Storage.Driver)
	}
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	b := &backends{store: store}

	switch cfg.Queue.Transport {
	case "", "sqlite":
		src := queue.NewDBSource(store, cfg.Queue.Lease)
		b.source = src
		b.stats = src
		b.publisher = queue.NewDBPublisher(store, cfg.Queue.MaxAttempts)
	case "redis":
		client, err := queue.NewRedisClient(ctx, cfg.Queue.RedisURL)
		if err != nil {
			store.Close()
			return nil, err
		}
		src := queue.NewRedisSource(client, queue.RedisOptions{
			Key:           cfg.Queue.RedisKey,
			DeadLetterKey: cfg.Queue.DeadLetterKey,
			Wait:          cfg.Queue.PollInterval,
			MaxAttempts:   cfg.Queue.MaxAttempts,
		})
		b.redis = client
		b.source = src
		b.stats = src
		b.publisher = queue.NewRedisPublisher(client, cfg.Queue.RedisKey)
		b.recover = src.Recover
	default:
		store.Close()
		return nil, fmt.Errorf("unknown queue.transport %q", cfg.Queue.Transport)
	}
	return b, nil
}
