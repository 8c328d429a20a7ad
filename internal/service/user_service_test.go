package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/bugtracker/internal/domain"
)

func TestUserService_SetAdmin(t *testing.T) {
	repo := NewMockUserRepository()
	admin := repo.add("admin", true)
	user1 := repo.add("user1", false)
	user2 := repo.add("user2", false)

	tests := []struct {
		name    string
		actor   *domain.Principal
		target  uuid.UUID
		isAdmin bool
		wantErr error
	}{
		{name: "admin promotes", actor: admin.Principal(), target: user1.ID, isAdmin: true},
		{name: "admin demotes", actor: admin.Principal(), target: user1.ID, isAdmin: false},
		{name: "admin changes own role", actor: admin.Principal(), target: admin.ID, isAdmin: false, wantErr: domain.ErrPermissionDenied},
		{name: "non-admin promotes other", actor: user2.Principal(), target: user1.ID, isAdmin: true, wantErr: domain.ErrPermissionDenied},
		{name: "non-admin promotes self", actor: user2.Principal(), target: user2.ID, isAdmin: true, wantErr: domain.ErrPermissionDenied},
		{name: "anonymous", actor: nil, target: user1.ID, isAdmin: true, wantErr: domain.ErrPermissionDenied},
		{name: "unknown target", actor: admin.Principal(), target: uuid.New(), isAdmin: true, wantErr: domain.ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewUserService(repo, nil, zerolog.Nop())
			before, _ := repo.GetByID(context.Background(), tt.target)

			err := svc.SetAdmin(context.Background(), tt.actor, tt.target, tt.isAdmin)
			after, _ := repo.GetByID(context.Background(), tt.target)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				if before != nil {
					require.Equal(t, before.IsAdmin, after.IsAdmin)
				}
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.isAdmin, after.IsAdmin)
		})
	}
}

func TestUserService_List(t *testing.T) {
	repo := NewMockUserRepository()
	admin := repo.add("admin", true)
	user1 := repo.add("user1", false)
	svc := NewUserService(repo, nil, zerolog.Nop())
	ctx := context.Background()

	users, err := svc.List(ctx, admin.Principal())
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "admin", users[0].Username)

	_, err = svc.List(ctx, user1.Principal())
	require.ErrorIs(t, err, domain.ErrPermissionDenied)

	repo.getErr = errors.New("gone")
	_, err = svc.List(ctx, admin.Principal())
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
