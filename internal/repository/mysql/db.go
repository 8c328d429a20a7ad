// Package mysql provides MySQL repositories built on gorm.
package mysql

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/prn-tf/bugtracker/internal/config"
	"github.com/prn-tf/bugtracker/internal/repository"
)

// DB wraps a gorm connection to MySQL.
type DB struct {
	gorm   *gorm.DB
	logger zerolog.Logger
}

var (
	_ repository.DatabaseHealth = (*DB)(nil)
	_ repository.Migrator       = (*DB)(nil)
)

// NewDB connects to MySQL.
func NewDB(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*DB, error) {
	gdb, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping MySQL database: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("connected to MySQL")

	return &DB{gorm: gdb, logger: log}, nil
}

// Open connects, optionally migrates, and builds the repositories.
func Open(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*repository.OpenResult, error) {
	db, err := NewDB(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &repository.OpenResult{
		Repos: &repository.Repositories{
			User: NewUserRepository(db),
			Bug:  NewBugRepository(db),
		},
		Database: db,
	}, nil
}

// Migrate creates or updates the tables from the record models.
func (db *DB) Migrate(ctx context.Context) error {
	if err := db.gorm.WithContext(ctx).AutoMigrate(&userRecord{}, &bugRecord{}); err != nil {
		return fmt.Errorf("failed to migrate MySQL schema: %w", err)
	}
	db.logger.Info().Msg("database schema up to date")
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	sqlDB, err := db.gorm.DB()
	if err != nil {
		return err
	}
	db.logger.Info().Msg("closing MySQL connection")
	return sqlDB.Close()
}

// Ping checks the database connection.
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Health checks the database connection health.
func (db *DB) Health(ctx context.Context) error {
	return db.Ping(ctx)
}
