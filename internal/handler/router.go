package handler

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/prn-tf/bugtracker/internal/auth"
	"github.com/prn-tf/bugtracker/internal/metrics"
)

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	Web      *WebHandler
	Health   *HealthHandler
	Sessions *auth.Middleware

	// Metrics enables /metrics and request instrumentation when non-nil.
	Metrics     *metrics.Metrics
	MetricsPath string

	// UploadDir and UploadPrefix serve filesystem-backend attachments.
	// Empty UploadDir disables the route.
	UploadDir    string
	UploadPrefix string

	// StaticDir overrides the embedded assets when non-empty.
	StaticDir string

	Logger zerolog.Logger
}

// NewRouter builds the application's HTTP handler.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(cfg.Logger.With().Str("component", "http").Logger())...)
	r.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(MethodOverride)

	// Unauthenticated infrastructure routes.
	if cfg.Health != nil {
		r.Method(http.MethodGet, "/health", cfg.Health)
	}
	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, cfg.Metrics.Handler())
	}

	assets := staticAssets()
	if cfg.StaticDir != "" {
		if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
			assets = http.Dir(cfg.StaticDir)
		}
	}
	static := http.FileServer(assets)
	r.Method(http.MethodGet, "/images/*", static)
	r.Method(http.MethodGet, "/js/*", static)

	if cfg.UploadDir != "" {
		prefix := cfg.UploadPrefix
		if prefix == "" {
			prefix = "/uploads"
		}
		r.Method(http.MethodGet, prefix+"/*", http.StripPrefix(prefix, http.FileServer(http.Dir(cfg.UploadDir))))
	}

	r.Group(func(r chi.Router) {
		r.Use(cfg.Sessions.Handler)
		cfg.Web.RegisterRoutes(r)
	})

	return r
}
