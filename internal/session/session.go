// Package session keeps per-browser session state in a repository.Cache.
//
// The client only ever holds a signed token naming an opaque session id;
// the user id and pending flash messages live server-side.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/bugtracker/internal/pkg/crypto"
	"github.com/prn-tf/bugtracker/internal/repository"
)

// DefaultTTL is how long an idle session lives.
const DefaultTTL = 24 * time.Hour

// ErrNoSession indicates the token does not name a live session.
var ErrNoSession = errors.New("no session")

// FlashKind classifies a flash message for rendering.
type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
)

// Flash is a one-shot notification shown on the next rendered page.
type Flash struct {
	Kind FlashKind `json:"kind"`
	Text string    `json:"text"`
}

// Data is the server-side state of one session.
type Data struct {
	// UserID is empty for anonymous sessions.
	UserID  string  `json:"user_id,omitempty"`
	Flashes []Flash `json:"flashes,omitempty"`
}

// AddFlash queues a message for the next rendered page.
func (d *Data) AddFlash(kind FlashKind, text string) {
	d.Flashes = append(d.Flashes, Flash{Kind: kind, Text: text})
}

// TakeFlashes returns and clears the pending messages.
func (d *Data) TakeFlashes() []Flash {
	flashes := d.Flashes
	d.Flashes = nil
	return flashes
}

// Claims are the signed contents of a session token.
type Claims struct {
	jwt.RegisteredClaims
}

// Manager issues, loads and destroys sessions.
type Manager struct {
	cache  repository.Cache
	secret []byte
	ttl    time.Duration
	keys   repository.CacheKey
	logger zerolog.Logger
}

// NewManager creates a session manager. A non-positive ttl uses DefaultTTL.
func NewManager(cache repository.Cache, secret []byte, ttl time.Duration, logger zerolog.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		cache:  cache,
		secret: secret,
		ttl:    ttl,
		logger: logger.With().Str("component", "session").Logger(),
	}
}

// TTL returns the session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Store creates a fresh session bound to userID and returns its token.
func (m *Manager) Store(ctx context.Context, userID string) (string, error) {
	return m.create(ctx, &Data{UserID: userID})
}

// Load returns the session named by token and slides its expiry.
// Returns ErrNoSession for malformed, forged, expired or unknown tokens.
func (m *Manager) Load(ctx context.Context, token string) (*Data, error) {
	sid, err := m.parse(token)
	if err != nil {
		return nil, ErrNoSession
	}

	raw, err := m.cache.Get(ctx, m.keys.Session(sid))
	if err != nil {
		if errors.Is(err, repository.ErrCacheMiss) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		m.logger.Warn().Err(err).Msg("discarding corrupt session")
		return nil, ErrNoSession
	}

	if err := m.cache.Expire(ctx, m.keys.Session(sid), m.ttl); err != nil {
		m.logger.Warn().Err(err).Msg("failed to refresh session expiry")
	}
	return &data, nil
}

// Save writes data back to the session named by token.
// If token does not name a live session, for example because it was
// destroyed by a concurrent logout, a new anonymous session carrying only
// the flashes is created. Only Store binds a user to a session.
// The returned token must be sent to the client.
func (m *Manager) Save(ctx context.Context, token string, data *Data) (string, error) {
	if sid, err := m.parse(token); err == nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return "", fmt.Errorf("failed to encode session: %w", err)
		}
		ok, err := m.cache.SetXX(ctx, m.keys.Session(sid), raw, m.ttl)
		if err != nil {
			return "", fmt.Errorf("failed to store session: %w", err)
		}
		if ok {
			return token, nil
		}
	}
	return m.create(ctx, &Data{Flashes: data.Flashes})
}

// Destroy deletes the session named by token. Unknown tokens are ignored.
func (m *Manager) Destroy(ctx context.Context, token string) error {
	sid, err := m.parse(token)
	if err != nil {
		return nil
	}
	if err := m.cache.Delete(ctx, m.keys.Session(sid)); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

func (m *Manager) create(ctx context.Context, data *Data) (string, error) {
	sid, err := crypto.GenerateSessionID()
	if err != nil {
		return "", err
	}
	if err := m.put(ctx, sid, data); err != nil {
		return "", err
	}
	return m.sign(sid)
}

func (m *Manager) put(ctx context.Context, sid string, data *Data) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := m.cache.Set(ctx, m.keys.Session(sid), raw, m.ttl); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (m *Manager) sign(sid string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       sid,
			IssuedAt: jwt.NewNumericDate(now),
		},
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// parse verifies token and returns the session id it carries.
// Expiry is enforced by the cache TTL, not by the token.
func (m *Manager) parse(token string) (string, error) {
	if token == "" {
		return "", ErrNoSession
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !parsed.Valid || claims.ID == "" {
		return "", ErrNoSession
	}
	return claims.ID, nil
}
