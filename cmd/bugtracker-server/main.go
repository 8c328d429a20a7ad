// Package main is the entry point for the bug tracker web server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/prn-tf/bugtracker/internal/auth"
	"github.com/prn-tf/bugtracker/internal/cache/memory"
	rediscache "github.com/prn-tf/bugtracker/internal/cache/redis"
	"github.com/prn-tf/bugtracker/internal/config"
	"github.com/prn-tf/bugtracker/internal/handler"
	"github.com/prn-tf/bugtracker/internal/lock"
	"github.com/prn-tf/bugtracker/internal/logging"
	"github.com/prn-tf/bugtracker/internal/metrics"
	"github.com/prn-tf/bugtracker/internal/repository"
	"github.com/prn-tf/bugtracker/internal/repository/database"
	"github.com/prn-tf/bugtracker/internal/service"
	"github.com/prn-tf/bugtracker/internal/session"
	"github.com/prn-tf/bugtracker/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to configuration file")
	showVersion := pflag.BoolP("version", "v", false, "print version information and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Printf("bugtracker-server %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("Starting bug tracker server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
	logger.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	opened, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer opened.Close()

	cache, locker, closeCache, err := openSessionStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	uploads, err := storage.New(ctx, cfg.Upload, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize upload storage: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	authService := service.NewAuthService(opened.Repos.User, service.AuthServiceConfig{
		Locker:  locker,
		Metrics: m,
	}, logger)
	bugService := service.NewBugService(opened.Repos.Bug, uploads, m, logger)
	userService := service.NewUserService(opened.Repos.User, m, logger)

	sessions := session.NewManager(cache, []byte(cfg.Session.Secret), cfg.Session.TTL, logger)
	mw := auth.NewMiddleware(sessions, authService, auth.Config{
		CookieName: cfg.Session.CookieName,
		Secure:     cfg.Session.Secure,
	}, logger)

	web, err := handler.NewWebHandler(handler.WebConfig{
		AuthService:   authService,
		BugService:    bugService,
		UserService:   userService,
		Sessions:      mw,
		MaxUploadSize: cfg.Upload.MaxSize,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize handlers: %w", err)
	}

	routerCfg := handler.RouterConfig{
		Web:         web,
		Health:      handler.NewHealthHandler(opened.Database, Version, logger),
		Sessions:    mw,
		Metrics:     m,
		MetricsPath: cfg.Metrics.Path,
		StaticDir:   cfg.Server.StaticDir,
		Logger:      logger,
	}
	if fs, ok := uploads.(*storage.FilesystemBackend); ok {
		routerCfg.UploadDir = fs.Root()
		routerCfg.UploadPrefix = fs.URLPrefix()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler.NewRouter(routerCfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openSessionStore selects Redis or process memory for sessions and
// registration locks.
func openSessionStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.Cache, lock.Locker, func(), error) {
	if cfg.Redis.Enabled {
		client, err := rediscache.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info().Str("addr", cfg.Redis.Addr()).Msg("using redis for sessions and locks")
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Warn().Err(err).Msg("failed to close redis client")
			}
		}
		return rediscache.NewCache(client, "bugtracker:"), lock.NewRedisLocker(client), closeFn, nil
	}

	cache := memory.NewCache(time.Minute)
	return cache, lock.NewMemoryLocker(), func() { _ = cache.Close() }, nil
}
