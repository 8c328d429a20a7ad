package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/bugtracker/internal/config"
	"github.com/prn-tf/bugtracker/internal/domain"
)

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.DatabaseConfig{
		Driver:      config.DriverSQLite,
		Path:        filepath.Join(t.TempDir(), "data", "bugs.db"),
		AutoMigrate: true,
	}

	res, err := Open(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { res.Close() })

	require.NoError(t, res.Database.Ping(ctx))
	require.NoError(t, res.Repos.User.Create(ctx, domain.NewUser("user1", "hash")))

	users, err := res.Repos.User.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle"}, zerolog.Nop())
	require.ErrorContains(t, err, "unsupported database driver")
}
