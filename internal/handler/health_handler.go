package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// DatabaseChecker is satisfied by repository.DatabaseHealth.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports process and database health.
type HealthHandler struct {
	db      DatabaseChecker
	version string
	logger  zerolog.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db DatabaseChecker, version string, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		db:      db,
		version: version,
		logger:  logger.With().Str("handler", "health").Logger(),
	}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Version  string `json:"version,omitempty"`
}

// ServeHTTP handles GET /health.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "healthy", Database: "ok", Version: h.version}
	status := http.StatusOK

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Warn().Err(err).Msg("database ping failed")
			resp.Status = "unhealthy"
			resp.Database = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
