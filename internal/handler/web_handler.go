// Package handler provides the HTTP handlers of the bug tracker web UI.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/bugtracker/internal/auth"
	"github.com/prn-tf/bugtracker/internal/domain"
	"github.com/prn-tf/bugtracker/internal/service"
	"github.com/prn-tf/bugtracker/internal/session"
	"github.com/prn-tf/bugtracker/internal/storage"
)

// AuthService is the authentication policy used by the login and register pages.
type AuthService interface {
	Register(ctx context.Context, input service.RegisterInput) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.Principal, error)
}

// BugService is the bug store access used by the bug pages.
type BugService interface {
	Create(ctx context.Context, p *domain.Principal, input service.CreateBugInput) (*domain.Bug, error)
	List(ctx context.Context, p *domain.Principal) ([]*domain.Bug, error)
	Get(ctx context.Context, p *domain.Principal, id uuid.UUID) (*domain.Bug, error)
	UpdateStatus(ctx context.Context, p *domain.Principal, input service.UpdateStatusInput) (*domain.Bug, error)
}

// UserService is the user management used by the admin pages.
type UserService interface {
	List(ctx context.Context, p *domain.Principal) ([]*domain.User, error)
	SetAdmin(ctx context.Context, p *domain.Principal, targetID uuid.UUID, isAdmin bool) error
}

var (
	_ AuthService = (*service.AuthService)(nil)
	_ BugService  = (*service.BugService)(nil)
	_ UserService = (*service.UserService)(nil)
)

// WebHandler serves every HTML page of the application.
type WebHandler struct {
	authService AuthService
	bugService  BugService
	userService UserService
	sessions    *auth.Middleware
	pages       *renderer
	maxUpload   int64
	logger      zerolog.Logger
}

// WebConfig contains the dependencies of WebHandler.
type WebConfig struct {
	AuthService AuthService
	BugService  BugService
	UserService UserService
	Sessions    *auth.Middleware

	// MaxUploadSize defaults to storage.DefaultMaxSize.
	MaxUploadSize int64

	Logger zerolog.Logger
}

// NewWebHandler creates a new WebHandler.
func NewWebHandler(cfg WebConfig) (*WebHandler, error) {
	logger := cfg.Logger.With().Str("handler", "web").Logger()

	pages, err := newRenderer(logger)
	if err != nil {
		return nil, err
	}

	maxUpload := cfg.MaxUploadSize
	if maxUpload <= 0 {
		maxUpload = storage.DefaultMaxSize
	}

	return &WebHandler{
		authService: cfg.AuthService,
		bugService:  cfg.BugService,
		userService: cfg.UserService,
		sessions:    cfg.Sessions,
		pages:       pages,
		maxUpload:   maxUpload,
		logger:      logger,
	}, nil
}

// =============================================================================
// Route Registration
// =============================================================================

// RegisterRoutes registers all page routes. r must already run the session
// middleware.
func (h *WebHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Get("/login", h.handleLoginPage)
	r.Post("/login", h.handleLogin)
	r.Get("/logout", h.handleLogout)
	r.Get("/register", h.handleRegisterPage)
	r.Post("/register", h.handleRegister)

	r.Group(func(r chi.Router) {
		r.Use(h.sessions.RequireAuth)

		r.Get("/dashboard", h.handleDashboard)
		r.Get("/bugs/new", h.handleNewBugPage)
		r.Post("/bugs", h.handleCreateBug)
		r.Get("/bugs/{id}", h.handleBugDetail)
		r.Put("/bugs/{id}/status", h.handleUpdateStatus)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.sessions.RequireAdmin)

		r.Get("/admin", h.handleAdminDashboard)
		r.Put("/users/{id}/role", h.handleUpdateRole)
	})
}

// =============================================================================
// Helpers
// =============================================================================

// page builds the common page data and consumes pending flashes.
func (h *WebHandler) page(w http.ResponseWriter, r *http.Request, title string) PageData {
	return PageData{
		Title:   title,
		User:    auth.PrincipalFrom(r.Context()),
		Flashes: h.sessions.TakeFlashes(w, r),
	}
}

func (h *WebHandler) success(w http.ResponseWriter, r *http.Request, text, url string) {
	h.sessions.Redirect(w, r, session.FlashSuccess, text, url)
}

func (h *WebHandler) fail(w http.ResponseWriter, r *http.Request, text, url string) {
	h.sessions.Redirect(w, r, session.FlashError, text, url)
}

// urlID parses the {id} route parameter. Malformed ids yield uuid.Nil,
// which no record carries.
func urlID(r *http.Request) uuid.UUID {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil
	}
	return id
}
