// Package persistence selects and opens the configured activity store backend.
package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/mergington/internal/config"
	"example.com/mergington/internal/domain"
	"example.com/mergington/internal/persistence/memory"
	"example.com/mergington/internal/persistence/mongo"
	"example.com/mergington/internal/persistence/postgres"
)

// Handle bundles an opened store with the resources behind it.
type Handle struct {
	Store domain.Store
	// Pool is set only for the postgres backend; the outbox dispatcher shares it.
	Pool  *pgxpool.Pool
	close func()
}

// Close releases the backend connection.
func (h *Handle) Close() {
	if h.close != nil {
		h.close()
	}
}

// Open connects to the backend named by cfg.StoreBackend.
func Open(ctx context.Context, cfg config.Config) (*Handle, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		var opts []postgres.Option
		if cfg.OutboxEnabled {
			opts = append(opts, postgres.WithOutbox())
		}
		return &Handle{Store: postgres.NewRepository(pool, opts...), Pool: pool, close: pool.Close}, nil

	case config.BackendMongo:
		store, client, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
		if err != nil {
			return nil, fmt.Errorf("connect to mongo: %w", err)
		}
		return &Handle{Store: store, close: func() { _ = client.Disconnect(context.Background()) }}, nil

	case config.BackendMemory:
		return &Handle{Store: memory.NewStore()}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
