// Package config provides configuration management for the bug tracker server.
// Configuration can be loaded from YAML files, a .env file and environment variables.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Supported upload backends.
const (
	UploadBackendFilesystem = "filesystem"
	UploadBackendS3         = "s3"
)

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Session  SessionConfig  `mapstructure:"session"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// StaticDir overrides the embedded /images and /js assets when set.
	StaticDir string `mapstructure:"static_dir"`
}

// Addr returns the listen address in host:port format.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database connection settings.
// Supports SQLite, PostgreSQL and MySQL backends.
type DatabaseConfig struct {
	// Driver specifies the database driver: "sqlite", "postgres" or "mysql".
	Driver string `mapstructure:"driver"`

	// Network settings (used when Driver is "postgres" or "mysql")
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`

	// SQLite settings (used when Driver is "sqlite")
	Path        string `mapstructure:"path"`         // Path to SQLite database file
	JournalMode string `mapstructure:"journal_mode"` // WAL, DELETE, TRUNCATE, etc.
	BusyTimeout int    `mapstructure:"busy_timeout"` // Milliseconds to wait for locks

	// AutoMigrate applies the embedded schema on startup.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// DSN returns the connection string for the configured network driver.
// Credentials are escaped, so they may contain any character.
func (c DatabaseConfig) DSN() string {
	addr := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))

	switch c.Driver {
	case DriverMySQL:
		mc := mysqldriver.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = addr
		mc.DBName = c.Database
		mc.ParseTime = true
		mc.Loc = time.UTC
		mc.Params = map[string]string{"charset": "utf8mb4"}
		return mc.FormatDSN()
	default:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.User, c.Password),
			Host:   addr,
			Path:   "/" + c.Database,
		}
		if c.SSLMode != "" {
			u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
		}
		return u.String()
	}
}

// IsEmbedded returns true if using an embedded database (SQLite).
func (c DatabaseConfig) IsEmbedded() bool {
	return c.Driver == DriverSQLite
}

// RedisConfig holds Redis connection settings.
// When enabled, sessions and registration locks are kept in Redis
// instead of process memory.
type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Enabled     bool          `mapstructure:"enabled"`
}

// Addr returns the Redis address in host:port format.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SessionConfig holds session cookie settings.
type SessionConfig struct {
	// Secret signs session tokens. Must be at least 16 characters.
	Secret string `mapstructure:"secret"`

	// CookieName is the name of the session cookie.
	CookieName string `mapstructure:"cookie_name"`

	// TTL is how long an idle session stays valid.
	TTL time.Duration `mapstructure:"ttl"`

	// Secure marks the cookie as HTTPS-only.
	Secure bool `mapstructure:"secure"`
}

// UploadConfig holds screenshot upload settings.
type UploadConfig struct {
	// Backend selects where attachments are stored: "filesystem" or "s3".
	Backend string `mapstructure:"backend"`

	// Dir is the root directory of the filesystem backend.
	Dir string `mapstructure:"dir"`

	// URLPrefix is the public path attachments are served under.
	URLPrefix string `mapstructure:"url_prefix"`

	// MaxSize is the largest accepted attachment in bytes.
	MaxSize int64 `mapstructure:"max_size"`

	S3 S3UploadConfig `mapstructure:"s3"`
}

// S3UploadConfig holds S3 backend settings.
type S3UploadConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`

	// PublicBaseURL is prepended to object keys to form the stored image URL.
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled determines if metrics collection is active.
	Enabled bool `mapstructure:"enabled"`

	// Path is the URL path for the metrics endpoint.
	Path string `mapstructure:"path"`
}

// Load reads configuration from the specified file and environment variables.
// Environment variables take precedence over file values.
// Environment variables are prefixed with BUGTRACKER_ and use _ as separator.
// A .env file in the working directory is loaded first when present.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Environment variable configuration
	v.SetEnvPrefix("BUGTRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file configuration
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/bugtracker")
	}

	// Read config file (optional - environment variables can be used instead)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv loads ./.env into the process environment if it exists.
// Variables already set in the environment win.
func loadDotEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.static_dir", "")

	// Database defaults
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "bugtracker")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "bugtracker")
	v.SetDefault("database.ssl_mode", "prefer")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 5*time.Minute)
	v.SetDefault("database.path", "./data/bugtracker.db")
	v.SetDefault("database.journal_mode", "WAL")
	v.SetDefault("database.busy_timeout", 5000)
	v.SetDefault("database.auto_migrate", true)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.enabled", false)

	// Session defaults
	v.SetDefault("session.secret", "")
	v.SetDefault("session.cookie_name", "bugtracker_session")
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.secure", false)

	// Upload defaults
	v.SetDefault("upload.backend", UploadBackendFilesystem)
	v.SetDefault("upload.dir", "./data/uploads")
	v.SetDefault("upload.url_prefix", "/uploads")
	v.SetDefault("upload.max_size", 5*1024*1024) // 5MB
	v.SetDefault("upload.s3.region", "us-east-1")
	v.SetDefault("upload.s3.use_path_style", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks the configuration for required values and valid ranges.
func (c *Config) Validate() error {
	// Validate server configuration
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	// Validate database configuration
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite driver")
		}
	case DriverPostgres, DriverMySQL:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required for %s driver", c.Database.Driver)
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required for %s driver", c.Database.Driver)
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database.database is required for %s driver", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver must be 'sqlite', 'postgres' or 'mysql'")
	}

	// Validate session configuration
	if len(c.Session.Secret) < 16 {
		return fmt.Errorf("session.secret must be at least 16 characters")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}

	// Validate upload configuration
	switch c.Upload.Backend {
	case UploadBackendFilesystem:
		if c.Upload.Dir == "" {
			return fmt.Errorf("upload.dir is required for filesystem backend")
		}
	case UploadBackendS3:
		if c.Upload.S3.Bucket == "" {
			return fmt.Errorf("upload.s3.bucket is required for s3 backend")
		}
		if c.Upload.S3.PublicBaseURL == "" {
			return fmt.Errorf("upload.s3.public_base_url is required for s3 backend")
		}
	default:
		return fmt.Errorf("upload.backend must be 'filesystem' or 's3'")
	}
	if c.Upload.MaxSize <= 0 {
		return fmt.Errorf("upload.max_size must be positive")
	}

	// Validate logging configuration
	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error, fatal, panic")
	}

	return nil
}

// MustLoad loads configuration or panics on error.
// Useful for main function initialization.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
