package repository

import (
	"context"
)

// Repositories holds all repository instances.
type Repositories struct {
	User UserRepository
	Bug  BugRepository
}

// DatabaseHealth is an interface for database health checks.
// This interface satisfies handler.DatabaseChecker for health endpoints.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}

// Migrator is implemented by databases that can apply their embedded schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// VersionedMigrator is implemented by databases whose schema is managed by
// numbered goose migrations.
type VersionedMigrator interface {
	Migrator
	MigrateDown(ctx context.Context) error
	MigrationStatus(ctx context.Context) error
	SchemaVersion(ctx context.Context) (int64, error)
}

// OpenResult contains the created repositories and database connection.
type OpenResult struct {
	Repos    *Repositories
	Database DatabaseHealth
}

// Close releases the database connection.
func (r *OpenResult) Close() error {
	if r == nil || r.Database == nil {
		return nil
	}
	return r.Database.Close()
}
