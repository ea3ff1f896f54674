package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier-driver/internal/domain/user"
	"courier-driver/internal/general/backend"
	"courier-driver/internal/general/contracts"
	"courier-driver/internal/general/jwt"
	"courier-driver/internal/general/kvstore"
	"courier-driver/internal/general/logger"
	"courier-driver/internal/ports"
	"courier-driver/internal/software/notify"
)

type fakeAuth struct {
	res   *contracts.LoginResponse
	err   error
	calls int
}

func (f *fakeAuth) Login(_ context.Context, _, _ string) (*contracts.LoginResponse, error) {
	f.calls++
	return f.res, f.err
}

type fixture struct {
	store *kvstore.MemoryStore
	auth  *fakeAuth
	notes *notify.Recorder
	nav   *notify.RouteRecorder
	mgr   *Manager
}

func newFixture() *fixture {
	f := &fixture{
		store: kvstore.NewMemoryStore(),
		auth:  &fakeAuth{},
		notes: &notify.Recorder{},
		nav:   &notify.RouteRecorder{},
	}
	f.mgr = NewManager(logger.Nop(), f.store, f.auth, f.notes, f.nav)
	return f
}

func token(t *testing.T, id string, role user.Role) string {
	t.Helper()
	tok, _, err := jwt.NewManager("test-secret", time.Hour).IssueUserToken(id, role)
	require.NoError(t, err)
	return tok
}

func profileJSON(t *testing.T, p user.Profile) string {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return string(raw)
}

func TestRestoreValidSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tok := token(t, "u1", user.RoleDriver)
	require.NoError(t, f.store.Set(ctx, contracts.KeyAuthToken, tok))
	require.NoError(t, f.store.Set(ctx, contracts.KeyUser, profileJSON(t, user.Profile{ID: "u1", Role: user.RoleDriver, Name: "Awa"})))

	require.NoError(t, f.mgr.Restore(ctx))
	s := f.mgr.Current()
	require.NotNil(t, s)
	assert.Equal(t, "u1", s.UserID())
	assert.Equal(t, tok, f.mgr.Token())
}

func TestRestoreReadsLegacyTokenKey(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, contracts.KeyTokenLegacy, token(t, "u1", user.RoleLivreur)))
	require.NoError(t, f.store.Set(ctx, contracts.KeyUser, profileJSON(t, user.Profile{ID: "u1", Role: user.RoleLivreur})))

	require.NoError(t, f.mgr.Restore(ctx))
	assert.NotNil(t, f.mgr.Current())
}

func TestRestoreCorruptedClearsKeys(t *testing.T) {
	cases := map[string]struct {
		token   string
		profile string
	}{
		"profile not json":   {token: "", profile: "{oops"},
		"token with spaces":  {token: "not a token", profile: `{"id":"u1","role":"driver"}`},
		"profile without id": {token: "", profile: `{"role":"driver"}`},
		"profile not driver": {token: "", profile: `{"id":"u1","role":"admin"}`},
		"token without user": {token: "", profile: ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			ctx := context.Background()
			tok := tc.token
			if tok == "" {
				tok = token(t, "u1", user.RoleDriver)
			}
			require.NoError(t, f.store.Set(ctx, contracts.KeyAuthToken, tok))
			require.NoError(t, f.store.Set(ctx, contracts.KeyAuthTokenLegacy, tok))
			if tc.profile != "" {
				require.NoError(t, f.store.Set(ctx, contracts.KeyUser, tc.profile))
			}
			require.NoError(t, f.store.Set(ctx, contracts.KeyOnlineStatus, "true"))

			require.NoError(t, f.mgr.Restore(ctx))
			assert.Nil(t, f.mgr.Current())
			assert.Empty(t, f.mgr.Token())

			snap := f.store.Snapshot()
			assert.NotContains(t, snap, contracts.KeyAuthToken)
			assert.NotContains(t, snap, contracts.KeyAuthTokenLegacy)
			assert.NotContains(t, snap, contracts.KeyUser)
			assert.Equal(t, "true", snap[contracts.KeyOnlineStatus])
		})
	}
}

func TestOpaqueTokenIsAccepted(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.auth.res = &contracts.LoginResponse{Token: "opaque-7f3a9c", User: user.Profile{ID: "u1", Role: user.RoleDriver}}

	require.NoError(t, f.mgr.Login(ctx, Credentials{Email: "a@b.c", Password: "pw"}))
	require.NotNil(t, f.mgr.Current())
	assert.Equal(t, "opaque-7f3a9c", f.mgr.Token())

	restored := NewManager(logger.Nop(), f.store, f.auth, f.notes, f.nav)
	require.NoError(t, restored.Restore(ctx))
	require.NotNil(t, restored.Current())
	assert.Equal(t, "opaque-7f3a9c", restored.Token())
}

func TestRestoreWithNothingPersisted(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.mgr.Restore(context.Background()))
	assert.Nil(t, f.mgr.Current())
	assert.Zero(t, f.mgr.Epoch())
}

func TestLoginSuccessPersistsAndNotifies(t *testing.T) {
	f := newFixture()
	tok := token(t, "u1", user.RoleLivreur)
	f.auth.res = &contracts.LoginResponse{Token: tok, User: user.Profile{ID: "u1", Role: user.RoleLivreur, Email: "a@b.c"}}

	var seen []*Session
	f.mgr.Subscribe(func(_ context.Context, s *Session) { seen = append(seen, s) })

	require.NoError(t, f.mgr.Login(context.Background(), Credentials{Email: " a@b.c ", Password: "pw"}))

	require.NotNil(t, f.mgr.Current())
	assert.EqualValues(t, 1, f.mgr.Epoch())
	require.Len(t, seen, 1)
	assert.Equal(t, tok, seen[0].Token)

	snap := f.store.Snapshot()
	assert.Equal(t, tok, snap[contracts.KeyAuthToken])
	assert.Contains(t, snap[contracts.KeyUser], `"id":"u1"`)

	last, _ := f.notes.Last()
	assert.Equal(t, notify.LevelSuccess, last.Level)
}

func TestLoginRejectsNonDriverRole(t *testing.T) {
	for _, role := range []user.Role{user.RoleAdmin, user.RoleRequester, user.RoleSupplier} {
		t.Run(string(role), func(t *testing.T) {
			f := newFixture()
			f.auth.res = &contracts.LoginResponse{
				Token: token(t, "u1", role),
				User:  user.Profile{ID: "u1", Role: role},
			}

			err := f.mgr.Login(context.Background(), Credentials{Email: "a@b.c", Password: "pw"})
			assert.ErrorIs(t, err, ErrRoleForbidden)
			assert.Nil(t, f.mgr.Current())
			assert.Empty(t, f.store.Snapshot())
			assert.Zero(t, f.mgr.Epoch())

			last, _ := f.notes.Last()
			assert.Equal(t, ErrRoleForbidden.Error(), last.Text)
		})
	}
}

func TestLoginFailuresAreClassified(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"401", &backend.APIError{Status: http.StatusUnauthorized, Message: "bad"}, ErrInvalidCredentials},
		{"403", &backend.APIError{Status: http.StatusForbidden}, ErrAccessDenied},
		{"transport", fmt.Errorf("%w: dial tcp", backend.ErrTransport), ErrTransport},
		{"500", &backend.APIError{Status: http.StatusInternalServerError}, ErrTransport},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.auth.err = tc.err

			err := f.mgr.Login(context.Background(), Credentials{Email: "a@b.c", Password: "pw"})
			assert.ErrorIs(t, err, tc.want)
			assert.Nil(t, f.mgr.Current())

			last, ok := f.notes.Last()
			require.True(t, ok)
			assert.Equal(t, notify.LevelError, last.Level)
			assert.Equal(t, tc.want.Error(), last.Text)
		})
	}
}

func TestLoginKeepsExistingSessionOnFailure(t *testing.T) {
	f := newFixture()
	f.auth.res = &contracts.LoginResponse{Token: token(t, "u1", user.RoleDriver), User: user.Profile{ID: "u1", Role: user.RoleDriver}}
	require.NoError(t, f.mgr.Login(context.Background(), Credentials{Email: "a@b.c", Password: "pw"}))

	f.auth.res, f.auth.err = nil, &backend.APIError{Status: http.StatusUnauthorized}
	require.Error(t, f.mgr.Login(context.Background(), Credentials{Email: "a@b.c", Password: "bad"}))
	require.NotNil(t, f.mgr.Current())
	assert.Equal(t, "u1", f.mgr.Current().UserID())
}

func TestLoginRequiresCredentials(t *testing.T) {
	f := newFixture()
	assert.ErrorIs(t, f.mgr.Login(context.Background(), Credentials{Email: " "}), ErrMissingCredentials)
	assert.Zero(t, f.auth.calls)
}

func TestLogoutClearsEveryTokenVariantButKeepsPresence(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.auth.res = &contracts.LoginResponse{Token: token(t, "u1", user.RoleDriver), User: user.Profile{ID: "u1", Role: user.RoleDriver}}
	require.NoError(t, f.mgr.Login(ctx, Credentials{Email: "a@b.c", Password: "pw"}))
	require.NoError(t, f.store.Set(ctx, contracts.KeyAuthTokenLegacy, "old"))
	require.NoError(t, f.store.Set(ctx, contracts.KeyTokenLegacy, "older"))
	require.NoError(t, f.store.Set(ctx, contracts.KeyOnlineStatus, "true"))

	var hookSawSession bool
	f.mgr.OnBeforeLogout(func(context.Context) { hookSawSession = f.mgr.Current() != nil })
	last := &Session{}
	f.mgr.Subscribe(func(_ context.Context, s *Session) { last = s })
	epoch := f.mgr.Epoch()

	f.mgr.Logout(ctx)

	assert.True(t, hookSawSession)
	assert.Nil(t, last)
	assert.Nil(t, f.mgr.Current())
	assert.Greater(t, f.mgr.Epoch(), epoch)
	assert.Equal(t, map[string]string{contracts.KeyOnlineStatus: "true"}, f.store.Snapshot())
	assert.Equal(t, ports.RouteLogin, f.nav.Last())
}

func TestHandleUnauthorizedForcesLogout(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.auth.res = &contracts.LoginResponse{Token: token(t, "u1", user.RoleDriver), User: user.Profile{ID: "u1", Role: user.RoleDriver}}
	require.NoError(t, f.mgr.Login(ctx, Credentials{Email: "a@b.c", Password: "pw"}))

	f.mgr.HandleUnauthorized(ctx)
	assert.Nil(t, f.mgr.Current())
	assert.Empty(t, f.store.Snapshot())
	assert.Equal(t, []string{ports.RouteLogin}, f.nav.Routes())

	// a second 401 after teardown is a no-op
	f.mgr.HandleUnauthorized(ctx)
	assert.Len(t, f.nav.Routes(), 1)
}

func TestUnsubscribe(t *testing.T) {
	f := newFixture()
	calls := 0
	cancel := f.mgr.Subscribe(func(context.Context, *Session) { calls++ })
	cancel()
	f.mgr.Logout(context.Background())
	assert.Zero(t, calls)
}
