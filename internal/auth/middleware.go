package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/bugtracker/internal/domain"
	"github.com/prn-tf/bugtracker/internal/session"
)

// SessionStore is the session collaborator. *session.Manager implements it.
type SessionStore interface {
	Load(ctx context.Context, token string) (*session.Data, error)
	Store(ctx context.Context, userID string) (string, error)
	Save(ctx context.Context, token string, data *session.Data) (string, error)
	Destroy(ctx context.Context, token string) error
	TTL() time.Duration
}

// PrincipalResolver reconstitutes the principal for a session's user id.
// It returns (nil, nil) when the user no longer exists.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, userID uuid.UUID) (*domain.Principal, error)
}

// Config contains configuration for the session middleware.
type Config struct {
	// CookieName names the session cookie.
	CookieName string

	// Secure marks the cookie HTTPS-only.
	Secure bool

	// LoginPath is where unauthenticated requests are sent.
	LoginPath string

	// HomePath is where authenticated users without permission are sent.
	HomePath string
}

// DefaultConfig returns the default middleware configuration.
func DefaultConfig() Config {
	return Config{
		CookieName: "bugtracker_session",
		LoginPath:  "/login",
		HomePath:   "/dashboard",
	}
}

// Middleware resolves sessions into principals and manages the session cookie.
type Middleware struct {
	sessions SessionStore
	resolver PrincipalResolver
	config   Config
	logger   zerolog.Logger
}

// NewMiddleware creates a new session middleware.
func NewMiddleware(sessions SessionStore, resolver PrincipalResolver, config Config, logger zerolog.Logger) *Middleware {
	def := DefaultConfig()
	if config.CookieName == "" {
		config.CookieName = def.CookieName
	}
	if config.LoginPath == "" {
		config.LoginPath = def.LoginPath
	}
	if config.HomePath == "" {
		config.HomePath = def.HomePath
	}
	return &Middleware{
		sessions: sessions,
		resolver: resolver,
		config:   config,
		logger:   logger.With().Str("component", "auth").Logger(),
	}
}

// Handler loads the session named by the cookie and attaches an AuthContext.
// Requests without a usable session continue anonymously.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ac := &AuthContext{Session: &session.Data{}}

		if cookie, err := r.Cookie(m.config.CookieName); err == nil && cookie.Value != "" {
			data, err := m.sessions.Load(ctx, cookie.Value)
			switch {
			case err == nil:
				ac.Token = cookie.Value
				ac.Session = data
			case errors.Is(err, session.ErrNoSession):
			default:
				m.logger.Error().Err(err).Msg("failed to load session")
			}
		}

		if ac.Session.UserID != "" {
			ac.Principal = m.resolve(ctx, ac.Session.UserID)
		}

		next.ServeHTTP(w, r.WithContext(WithAuthContext(ctx, ac)))
	})
}

func (m *Middleware) resolve(ctx context.Context, rawID string) *domain.Principal {
	id, err := uuid.Parse(rawID)
	if err != nil {
		m.logger.Warn().Str("user_id", rawID).Msg("session carries malformed user id")
		return nil
	}
	p, err := m.resolver.ResolvePrincipal(ctx, id)
	if err != nil {
		m.logger.Error().Err(err).Str("user_id", rawID).Msg("failed to resolve session user")
		return nil
	}
	return p
}

// RequireAuth redirects anonymous requests to the login page.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !PrincipalFrom(r.Context()).IsAuthenticated() {
			m.Redirect(w, r, session.FlashError, MsgLoginRequired, m.config.LoginPath)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin redirects anonymous requests to the login page and
// non-admins to the home page.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFrom(r.Context())
		if !p.IsAuthenticated() {
			m.Redirect(w, r, session.FlashError, MsgLoginRequired, m.config.LoginPath)
			return
		}
		if !p.IsAdmin {
			m.Redirect(w, r, session.FlashError, MsgAdminRequired, m.config.HomePath)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Flash queues a message for the next rendered page.
func (m *Middleware) Flash(w http.ResponseWriter, r *http.Request, kind session.FlashKind, text string) {
	ac := GetAuthContext(r.Context())
	if ac == nil {
		return
	}
	ac.Session.AddFlash(kind, text)
	m.save(w, r, ac)
}

// Redirect queues a flash and redirects with 302 Found.
func (m *Middleware) Redirect(w http.ResponseWriter, r *http.Request, kind session.FlashKind, text, url string) {
	m.Flash(w, r, kind, text)
	http.Redirect(w, r, url, http.StatusFound)
}

// TakeFlashes returns and consumes the pending messages.
func (m *Middleware) TakeFlashes(w http.ResponseWriter, r *http.Request) []session.Flash {
	ac := GetAuthContext(r.Context())
	if ac == nil || len(ac.Session.Flashes) == 0 {
		return nil
	}
	flashes := ac.Session.TakeFlashes()
	m.save(w, r, ac)
	return flashes
}

// Login binds a fresh session to p and replaces the previous one.
func (m *Middleware) Login(w http.ResponseWriter, r *http.Request, p *domain.Principal) error {
	ctx := r.Context()
	ac := GetAuthContext(ctx)

	token, err := m.sessions.Store(ctx, p.ID.String())
	if err != nil {
		return err
	}
	if ac != nil && ac.Token != "" {
		if err := m.sessions.Destroy(ctx, ac.Token); err != nil {
			m.logger.Warn().Err(err).Msg("failed to destroy previous session")
		}
	}
	if ac != nil {
		ac.Token = token
		ac.Session = &session.Data{UserID: p.ID.String()}
		ac.Principal = p
	}

	m.setCookie(w, token)
	return nil
}

// Logout destroys the session. The stale cookie is replaced by the next
// flash or simply fails to load.
func (m *Middleware) Logout(r *http.Request) {
	ctx := r.Context()
	ac := GetAuthContext(ctx)
	if ac == nil {
		return
	}
	if ac.Token != "" {
		if err := m.sessions.Destroy(ctx, ac.Token); err != nil {
			m.logger.Warn().Err(err).Msg("failed to destroy session")
		}
	}
	ac.Token = ""
	ac.Principal = nil
	ac.Session = &session.Data{}
}

func (m *Middleware) save(w http.ResponseWriter, r *http.Request, ac *AuthContext) {
	token, err := m.sessions.Save(r.Context(), ac.Token, ac.Session)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to save session")
		return
	}
	if token != ac.Token {
		ac.Token = token
		m.setCookie(w, token)
	}
}

func (m *Middleware) setCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.config.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.config.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(m.sessions.TTL() / time.Second),
	})
}
