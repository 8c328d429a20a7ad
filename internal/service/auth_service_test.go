package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/prn-tf/bugtracker/internal/domain"
	"github.com/prn-tf/bugtracker/internal/lock"
	"github.com/prn-tf/bugtracker/internal/metrics"
	"github.com/prn-tf/bugtracker/internal/pkg/crypto"
)

func newTestAuthService(repo *MockUserRepository, locker lock.Locker) *AuthService {
	return NewAuthService(repo, AuthServiceConfig{
		Locker:     locker,
		Metrics:    metrics.New(),
		BcryptCost: bcrypt.MinCost,
	}, zerolog.Nop())
}

func TestAuthService_RegisterValidation(t *testing.T) {
	tests := []struct {
		name     string
		input    RegisterInput
		wantMsgs []string
	}{
		{
			name:     "missing fields",
			input:    RegisterInput{Username: "bob", Password: "secret1"},
			wantMsgs: []string{MsgFillAllFields, MsgPasswordMismatch},
		},
		{
			name:     "mismatch",
			input:    RegisterInput{Username: "bob", Password: "secret1", Password2: "secret2"},
			wantMsgs: []string{MsgPasswordMismatch},
		},
		{
			name:     "too short",
			input:    RegisterInput{Username: "bob", Password: "abc", Password2: "abc"},
			wantMsgs: []string{MsgPasswordTooShort},
		},
		{
			name:     "too short counted in characters",
			input:    RegisterInput{Username: "bob", Password: "ééé", Password2: "ééé"},
			wantMsgs: []string{MsgPasswordTooShort},
		},
		{
			name:     "everything wrong",
			input:    RegisterInput{Username: "", Password: "abc", Password2: ""},
			wantMsgs: []string{MsgFillAllFields, MsgPasswordMismatch, MsgPasswordTooShort},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockUserRepository()
			svc := newTestAuthService(repo, nil)

			_, err := svc.Register(context.Background(), tt.input)
			require.ErrorIs(t, err, domain.ErrValidation)

			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			require.Equal(t, tt.wantMsgs, verr.Messages)
			require.Empty(t, repo.users)
		})
	}
}

func TestAuthService_RegisterCreatesNonAdmin(t *testing.T) {
	repo := NewMockUserRepository()
	svc := newTestAuthService(repo, lock.NewMemoryLocker())

	user, err := svc.Register(context.Background(), RegisterInput{
		Username: "alice", Password: "pw1234", Password2: "pw1234",
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, user.ID)
	require.False(t, user.IsAdmin)
	require.NotEqual(t, "pw1234", user.PasswordHash)
	require.NoError(t, crypto.ComparePassword(user.PasswordHash, "pw1234"))
}

func TestAuthService_RegisterLongPassword(t *testing.T) {
	repo := NewMockUserRepository()
	svc := newTestAuthService(repo, nil)
	ctx := context.Background()
	password := strings.Repeat("a", 80)

	_, err := svc.Register(ctx, RegisterInput{Username: "longpw", Password: password, Password2: password})
	require.NoError(t, err)

	p, err := svc.Authenticate(ctx, "longpw", password)
	require.NoError(t, err)
	require.Equal(t, "longpw", p.Username)

	_, err = svc.Authenticate(ctx, "longpw", password[:72])
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	repo := NewMockUserRepository()
	svc := newTestAuthService(repo, nil)
	ctx := context.Background()
	in := RegisterInput{Username: "alice", Password: "pw1234", Password2: "pw1234"}

	_, err := svc.Register(ctx, in)
	require.NoError(t, err)

	_, err = svc.Register(ctx, in)
	require.ErrorIs(t, err, domain.ErrDuplicateUsername)
	require.ErrorIs(t, err, domain.ErrValidation)

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, []string{MsgUsernameTaken}, verr.Messages)
	require.Len(t, repo.users, 1)
}

func TestAuthService_RegisterConcurrentSameUsername(t *testing.T) {
	repo := NewMockUserRepository()
	svc := newTestAuthService(repo, lock.NewMemoryLocker())
	in := RegisterInput{Username: "race", Password: "pw1234", Password2: "pw1234"}

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Register(context.Background(), in)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, domain.ErrDuplicateUsername)
	}
	require.Equal(t, 1, succeeded)
	require.Len(t, repo.users, 1)
}

func TestAuthService_RegisterStoreFailure(t *testing.T) {
	repo := NewMockUserRepository()
	repo.createErr = errors.New("disk full")
	svc := newTestAuthService(repo, nil)

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "alice", Password: "pw1234", Password2: "pw1234",
	})
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	require.NotErrorIs(t, err, domain.ErrValidation)
}

func TestAuthService_Authenticate(t *testing.T) {
	repo := NewMockUserRepository()
	svc := newTestAuthService(repo, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "alice", Password: "pw1234", Password2: "pw1234"})
	require.NoError(t, err)

	p, err := svc.Authenticate(ctx, "alice", "pw1234")
	require.NoError(t, err)
	require.Equal(t, "alice", p.Username)
	require.False(t, p.IsAdmin)
	require.True(t, p.IsAuthenticated())

	_, wrongPassword := svc.Authenticate(ctx, "alice", "nope")
	_, unknownUser := svc.Authenticate(ctx, "bob", "pw1234")
	_, wrongCase := svc.Authenticate(ctx, "Alice", "pw1234")

	require.ErrorIs(t, wrongPassword, domain.ErrInvalidCredentials)
	require.ErrorIs(t, unknownUser, domain.ErrInvalidCredentials)
	require.ErrorIs(t, wrongCase, domain.ErrInvalidCredentials)
	require.Equal(t, wrongPassword.Error(), unknownUser.Error())
}

func TestAuthService_AuthenticateStoreFailure(t *testing.T) {
	repo := NewMockUserRepository()
	repo.getErr = errors.New("connection reset")
	svc := newTestAuthService(repo, nil)

	_, err := svc.Authenticate(context.Background(), "alice", "pw1234")
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestAuthService_ResolvePrincipal(t *testing.T) {
	repo := NewMockUserRepository()
	admin := repo.add("admin", true)
	svc := newTestAuthService(repo, nil)
	ctx := context.Background()

	p, err := svc.ResolvePrincipal(ctx, admin.ID)
	require.NoError(t, err)
	require.Equal(t, admin.ID, p.ID)
	require.True(t, p.IsAdmin)

	// Role changes are visible on the next request.
	require.NoError(t, repo.UpdateRole(ctx, admin.ID, false))
	p, err = svc.ResolvePrincipal(ctx, admin.ID)
	require.NoError(t, err)
	require.False(t, p.IsAdmin)

	p, err = svc.ResolvePrincipal(ctx, uuid.New())
	require.NoError(t, err)
	require.Nil(t, p)

	p, err = svc.ResolvePrincipal(ctx, uuid.Nil)
	require.NoError(t, err)
	require.Nil(t, p)
}
