package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/oasis-community/opsbot/internal/config"
	"github.com/oasis-community/opsbot/internal/persistence"
	"github.com/oasis-community/opsbot/internal/repository"
	sqlitestore "github.com/oasis-community/opsbot/internal/repository/sqlite"
)

// openStore connects the configured backend and applies migrations.
func openStore(ctx context.Context, cfg *config.Config, forceMigrations bool, logger *zap.Logger) (repository.Repositories, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pgCfg := cfg.Postgres
		pgCfg.RunMigrations = pgCfg.RunMigrations || forceMigrations
		pg, err := persistence.NewPostgres(ctx, pgCfg, logger)
		if err != nil {
			return repository.Repositories{}, nil, fmt.Errorf("open postgres: %w", err)
		}
		return repository.NewPostgres(pg.PoolHandle()), pg.Close, nil
	case config.DriverSQLite:
		db, err := persistence.OpenSQLite(ctx, cfg.Store.SQLitePath, logger)
		if err != nil {
			return repository.Repositories{}, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return sqlitestore.New(db.DB), db.Close, nil
	default:
		return repository.Repositories{}, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
