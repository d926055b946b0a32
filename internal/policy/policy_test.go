package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maplocate/api/internal/apperror"
	"maplocate/api/internal/config"
	"maplocate/api/internal/models"
	"maplocate/api/internal/permissions"
	"maplocate/api/internal/session"
)

type fakeStore struct {
	superusers map[int64]bool
	roles      map[int64][][]string
	err        error
	calls      int
}

func (f *fakeStore) IsSuperuser(_ context.Context, userID int64) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.superusers[userID], nil
}

func (f *fakeStore) PermissionSets(_ context.Context, userID int64) ([][]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.roles[userID], nil
}

func newStore() *fakeStore {
	return &fakeStore{
		superusers: map[int64]bool{1: true},
		roles: map[int64][][]string{
			2: {{"users_view"}, {"roles_view", "roles_edit"}},
			3: {},
		},
	}
}

func TestCheckPermission(t *testing.T) {
	store := newStore()
	p := New(store, store, nil)
	ctx := context.Background()

	for _, info := range permissions.All() {
		assert.NoError(t, p.CheckPermission(ctx, 1, info.Name), "superuser %s", info.Name)
	}

	assert.NoError(t, p.CheckPermission(ctx, 2, permissions.UsersView))
	assert.NoError(t, p.CheckPermission(ctx, 2, permissions.RolesEdit))

	err := p.CheckPermission(ctx, 2, permissions.UsersAdd)
	require.True(t, apperror.HasCode(err, apperror.PermissionDenied))
	appErr, _ := apperror.As(err)
	assert.Equal(t, map[string]any{"permission": "users_add"}, appErr.Fields)

	assert.True(t, apperror.HasCode(p.CheckPermission(ctx, 3, permissions.UsersView), apperror.PermissionDenied))
	assert.True(t, apperror.HasCode(p.CheckPermission(ctx, 404, permissions.UsersView), apperror.PermissionDenied))
}

func TestCheckUnknownPermissionSkipsLookups(t *testing.T) {
	store := newStore()
	p := New(store, store, nil)

	err := p.CheckPermission(context.Background(), 1, permissions.Permission("fly"))
	assert.ErrorIs(t, err, permissions.ErrUnknownPermission)
	assert.Zero(t, store.calls)
}

func TestLookupFailure(t *testing.T) {
	store := newStore()
	store.err = errors.New("connection reset")
	p := New(store, store, nil)

	err := p.CheckPermission(context.Background(), 2, permissions.UsersView)
	require.Error(t, err)
	_, isAppErr := apperror.As(err)
	assert.False(t, isAppErr)

	ok, err := p.IsSuperuser(context.Background(), 1)
	assert.Error(t, err)
	assert.False(t, ok)
}

func setupSessions(t *testing.T) *session.Manager {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return session.NewManager(client, config.SecurityConfig{}, zerolog.Nop())
}

func TestTiers(t *testing.T) {
	sessions := setupSessions(t)
	store := newStore()
	p := New(store, store, sessions)
	ctx := context.Background()

	rootToken, err := sessions.Issue(ctx, models.Session{UID: 1, Username: "root@example.com"})
	require.NoError(t, err)
	viewerToken, err := sessions.Issue(ctx, models.Session{UID: 2, Username: "viewer@example.com"})
	require.NoError(t, err)

	s, err := p.Superadmin(ctx, rootToken)
	require.NoError(t, err)
	assert.Equal(t, "root@example.com", s.Username)

	_, err = p.Superadmin(ctx, "Bearer "+viewerToken)
	assert.True(t, apperror.HasCode(err, apperror.PermissionDenied))
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, "Must be superadmin", appErr.Reason)

	s, err = p.Admin(ctx, viewerToken, permissions.UsersView)
	require.NoError(t, err)
	assert.EqualValues(t, 2, s.UID)

	_, err = p.Admin(ctx, viewerToken, permissions.UsersRolesEdit)
	assert.True(t, apperror.HasCode(err, apperror.PermissionDenied))

	_, err = p.Admin(ctx, "", permissions.UsersView)
	assert.True(t, apperror.HasCode(err, apperror.NoAccessToken))

	_, err = p.Superadmin(ctx, "deadbeef")
	assert.True(t, apperror.HasCode(err, apperror.InvalidAccessToken))
}
