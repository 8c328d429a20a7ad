package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/bugtracker/internal/cache/memory"
)

func newTestManager(t *testing.T) (*Manager, *memory.Cache) {
	t.Helper()

	cache := memory.NewCache(time.Hour)
	t.Cleanup(func() { cache.Close() })
	return NewManager(cache, []byte("0123456789abcdef"), time.Hour, zerolog.Nop()), cache
}

func TestManager_StoreLoadDestroy(t *testing.T) {
	ctx := context.Background()
	m, cache := newTestManager(t)

	token, err := m.Store(ctx, "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	data, err := m.Load(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "user-1", data.UserID)
	require.Equal(t, 1, cache.Len())

	require.NoError(t, m.Destroy(ctx, token))
	_, err = m.Load(ctx, token)
	require.ErrorIs(t, err, ErrNoSession)
	require.Equal(t, 0, cache.Len())
}

func TestManager_TokenCarriesOnlySessionID(t *testing.T) {
	m, _ := newTestManager(t)

	token, err := m.Store(context.Background(), "user-1")
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	require.NotContains(t, claims, "user_id")
	require.NotEmpty(t, claims["jti"])
}

func TestManager_RejectsForgedAndGarbageTokens(t *testing.T) {
	ctx := context.Background()
	m, cache := newTestManager(t)

	other := NewManager(cache, []byte("another-secret-value"), time.Hour, zerolog.Nop())
	forged, err := other.Store(ctx, "admin")
	require.NoError(t, err)

	for _, token := range []string{"", "garbage", forged} {
		_, err := m.Load(ctx, token)
		require.ErrorIs(t, err, ErrNoSession)
	}
}

func TestManager_SaveAfterDestroyDoesNotRestoreUser(t *testing.T) {
	ctx := context.Background()
	m, cache := newTestManager(t)

	token, err := m.Store(ctx, "user-1")
	require.NoError(t, err)

	// A request loaded the session before logout destroyed it.
	inFlight, err := m.Load(ctx, token)
	require.NoError(t, err)
	require.NoError(t, m.Destroy(ctx, token))

	inFlight.AddFlash(FlashSuccess, "Bug reported successfully")
	newToken, err := m.Save(ctx, token, inFlight)
	require.NoError(t, err)
	require.NotEqual(t, token, newToken)

	_, err = m.Load(ctx, token)
	require.ErrorIs(t, err, ErrNoSession)

	fresh, err := m.Load(ctx, newToken)
	require.NoError(t, err)
	require.Empty(t, fresh.UserID)
	require.Equal(t, []Flash{{Kind: FlashSuccess, Text: "Bug reported successfully"}}, fresh.Flashes)
	require.Equal(t, 1, cache.Len())
}

func TestManager_FlashesAcrossRequests(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	// Anonymous visitor: Save with no token mints a session.
	data := &Data{}
	data.AddFlash(FlashError, "Please log in to view this resource")
	token, err := m.Save(ctx, "", data)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	loaded, err := m.Load(ctx, token)
	require.NoError(t, err)
	require.Empty(t, loaded.UserID)

	flashes := loaded.TakeFlashes()
	require.Equal(t, []Flash{{Kind: FlashError, Text: "Please log in to view this resource"}}, flashes)

	same, err := m.Save(ctx, token, loaded)
	require.NoError(t, err)
	require.Equal(t, token, same)

	loaded, err = m.Load(ctx, token)
	require.NoError(t, err)
	require.Empty(t, loaded.Flashes)
}
