// Package registration assembles the registration stack from configuration:
// the store backend selected by config.Store.Backend and the service on top
// of it.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"regform/internal/platform/config"
	"regform/internal/platform/postgres"
	platformredis "regform/internal/platform/redis"
	"regform/internal/platform/sqlite"
	"regform/internal/registration/remote"
	"regform/internal/registration/service"
	"regform/internal/registration/store"
)

// Backend is an opened store and the functions that probe and release it.
type Backend struct {
	Store service.Store
	Name  string
	ping  func(context.Context) error
	close func() error
}

// Health checks the backend's connection. In-memory and remote backends
// always report healthy; the remote API is probed by real traffic only.
func (b *Backend) Health(ctx context.Context) error {
	if b.ping == nil {
		return nil
	}
	return b.ping(ctx)
}

// Close releases the backend's connections.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// OpenBackend connects the store selected by cfg. Relational stores get
// their schema created on open.
func OpenBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Backend, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory, "":
		return &Backend{Store: store.NewInMemoryStore(), Name: config.BackendMemory}, nil

	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st := store.NewPostgres(db, store.WithTable(cfg.Store.Table))
		if err := st.EnsureSchema(ctx); err != nil {
			return nil, errors.Join(err, db.Close())
		}
		return &Backend{Store: st, Name: config.BackendPostgres, ping: db.PingContext, close: db.Close}, nil

	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		st := store.NewSQLite(db)
		if err := st.EnsureSchema(ctx); err != nil {
			return nil, errors.Join(err, db.Close())
		}
		return &Backend{Store: st, Name: config.BackendSQLite, ping: db.PingContext, close: db.Close}, nil

	case config.BackendRedis:
		client, err := platformredis.New(ctx, cfg.Redis)
		if errors.Is(err, platformredis.ErrNotConfigured) {
			return nil, fmt.Errorf("store backend %q requires REDIS_URL", cfg.Store.Backend)
		}
		if err != nil {
			return nil, err
		}
		st := store.NewRedis(client.Client, store.WithPrefix(cfg.Redis.Prefix))
		return &Backend{Store: st, Name: config.BackendRedis, ping: client.Health, close: client.Close}, nil

	case config.BackendRemote:
		client := remote.New(cfg.API.URL,
			remote.WithToken(cfg.API.Token),
			remote.WithTimeout(cfg.API.Timeout.Duration),
			remote.WithLogger(logger),
		)
		return &Backend{Store: client, Name: config.BackendRemote}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
