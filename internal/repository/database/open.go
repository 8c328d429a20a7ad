// Package database selects the repository implementation for the configured driver.
package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prn-tf/bugtracker/internal/config"
	"github.com/prn-tf/bugtracker/internal/repository"
	"github.com/prn-tf/bugtracker/internal/repository/mysql"
	"github.com/prn-tf/bugtracker/internal/repository/postgres"
	"github.com/prn-tf/bugtracker/internal/repository/sqlite"
)

// Open connects to the configured database and builds the repositories.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*repository.OpenResult, error) {
	logger = logger.With().Str("driver", cfg.Driver).Logger()

	switch cfg.Driver {
	case config.DriverSQLite:
		return sqlite.Open(ctx, cfg, logger)
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg, logger)
	case config.DriverMySQL:
		return mysql.Open(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
}
