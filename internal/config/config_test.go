package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithSecretFromEnv(t *testing.T) {
	t.Setenv("BUGTRACKER_SESSION_SECRET", "0123456789abcdef0123")
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 3000, cfg.Server.Port)
	require.Equal(t, DriverSQLite, cfg.Database.Driver)
	require.Equal(t, 24*time.Hour, cfg.Session.TTL)
	require.Equal(t, int64(5*1024*1024), cfg.Upload.MaxSize)
	require.Equal(t, UploadBackendFilesystem, cfg.Upload.Backend)
	require.False(t, cfg.Redis.Enabled)
}

func TestLoad_FileAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("BUGTRACKER_SESSION_SECRET=from-dotenv-secret-value\n"), 0o600))

	cfgPath := filepath.Join(dir, "bugtracker.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
server:
  port: 8080
database:
  driver: postgres
  host: db.internal
  user: tracker
  database: bugs
logging:
  level: debug
`), 0o600))
	t.Cleanup(func() { os.Unsetenv("BUGTRACKER_SESSION_SECRET") })

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, DriverPostgres, cfg.Database.Driver)
	require.Equal(t, "from-dotenv-secret-value", cfg.Session.Secret)
	pg, err := pgconn.ParseConfig(cfg.Database.DSN())
	require.NoError(t, err)
	require.Equal(t, "db.internal", pg.Host)
	require.Equal(t, "tracker", pg.User)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 3000},
			Database: DatabaseConfig{Driver: DriverSQLite, Path: "bugs.db"},
			Session:  SessionConfig{Secret: "0123456789abcdef", TTL: time.Hour},
			Upload:   UploadConfig{Backend: UploadBackendFilesystem, Dir: "uploads", MaxSize: 1},
			Logging:  LoggingConfig{Level: "info"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port"},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "oracle" }, wantErr: "database.driver"},
		{name: "mysql without host", mutate: func(c *Config) { c.Database.Driver = DriverMySQL }, wantErr: "database.host"},
		{name: "short secret", mutate: func(c *Config) { c.Session.Secret = "short" }, wantErr: "session.secret"},
		{name: "s3 without bucket", mutate: func(c *Config) { c.Upload.Backend = UploadBackendS3 }, wantErr: "upload.s3.bucket"},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, wantErr: "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	passwords := []string{"p", "with space", "qu'o\"te", "sl/ash@at:colon?q=1"}

	for _, pw := range passwords {
		t.Run(pw, func(t *testing.T) {
			mcfg := DatabaseConfig{Driver: DriverMySQL, Host: "h", Port: 3306, User: "u", Password: pw, Database: "d"}
			mc, err := mysqldriver.ParseDSN(mcfg.DSN())
			require.NoError(t, err)
			require.Equal(t, "u", mc.User)
			require.Equal(t, pw, mc.Passwd)
			require.Equal(t, "h:3306", mc.Addr)
			require.Equal(t, "d", mc.DBName)
			require.True(t, mc.ParseTime)
			require.Equal(t, "utf8mb4", mc.Params["charset"])

			pcfg := DatabaseConfig{Driver: DriverPostgres, Host: "h", Port: 5432, User: "u", Password: pw, Database: "d", SSLMode: "disable"}
			pc, err := pgconn.ParseConfig(pcfg.DSN())
			require.NoError(t, err)
			require.Equal(t, "u", pc.User)
			require.Equal(t, pw, pc.Password)
			require.Equal(t, "h", pc.Host)
			require.Equal(t, uint16(5432), pc.Port)
			require.Equal(t, "d", pc.Database)
			require.Nil(t, pc.TLSConfig)
		})
	}
}
