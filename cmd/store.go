package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/civicgraph/orgscope/internal/store"
)

// initStore opens the configured profile store backend.
func initStore(ctx context.Context) (store.ProfileStore, error) {
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store.database_url required for postgres driver")
		}
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		zap.L().Info("using postgres store")
		return st, nil
	case "sqlite", "":
		path := cfg.Store.Path
		if path == "" {
			path = "orgscope.db"
		}
		st, err := store.NewSQLite(path)
		if err != nil {
			return nil, err
		}
		zap.L().Info("using sqlite store", zap.String("path", path))
		return st, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
