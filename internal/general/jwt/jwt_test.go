package jwt

import (
	"encoding/json"
	"testing"
	"time"

	"courier-driver/internal/domain/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspectAcceptsIssuedToken(t *testing.T) {
	mgr := NewManager("test-secret", time.Hour)
	raw, _, err := mgr.IssueUserToken("driver-1", user.RoleDriver)
	require.NoError(t, err)

	claims, err := Inspect(raw)
	require.NoError(t, err)
	assert.Equal(t, "driver-1", claims.Subject)
	assert.Equal(t, user.RoleDriver, claims.Role)
	assert.False(t, claims.Expired(time.Now()))
}

func TestInspectRejectsGarbage(t *testing.T) {
	_, err := Inspect("")
	assert.ErrorIs(t, err, ErrEmptyToken)

	_, err = Inspect("not-a-jwt")
	assert.ErrorIs(t, err, ErrMalformedToken)

	_, err = Inspect("a.b.c")
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestInspectDoesNotEnforceExpiry(t *testing.T) {
	mgr := NewManager("test-secret", -time.Minute)
	raw, _, err := mgr.IssueUserToken("driver-1", user.RoleDriver)
	require.NoError(t, err)

	claims, err := Inspect(raw)
	require.NoError(t, err)
	assert.True(t, claims.Expired(time.Now()))
}

func TestValidateWSAuth(t *testing.T) {
	mgr := NewManager("test-secret", time.Hour)
	raw, _, err := mgr.IssueUserToken("driver-1", user.RoleLivreur)
	require.NoError(t, err)

	frame, err := json.Marshal(NewAuthMessage(raw))
	require.NoError(t, err)

	res, err := ValidateWSAuth(frame, mgr, user.DriverRoles...)
	require.NoError(t, err)
	assert.Equal(t, "driver-1", res.Claims.Subject)

	_, err = ValidateWSAuth(frame, mgr, user.RoleAdmin)
	assert.ErrorIs(t, err, ErrRoleForbidden)

	_, err = ValidateWSAuth([]byte(`{"type":"auth","token":"`+raw+`"}`), mgr)
	assert.ErrorIs(t, err, ErrBadTokenWrap)

	_, err = ValidateWSAuth([]byte(`{"type":"hello"}`), mgr)
	assert.ErrorIs(t, err, ErrBadAuthMsg)
}

func TestCheckBearer(t *testing.T) {
	raw, _, err := NewManager("secret", time.Hour).IssueUserToken("u1", user.RoleDriver)
	require.NoError(t, err)
	claims, err := CheckBearer(raw)
	require.NoError(t, err)
	require.NotNil(t, claims)
	assert.Equal(t, "u1", claims.Subject)

	claims, err = CheckBearer("opaque-token")
	require.NoError(t, err)
	assert.Nil(t, claims)

	_, err = CheckBearer("  ")
	assert.ErrorIs(t, err, ErrEmptyToken)
	_, err = CheckBearer("two words")
	assert.ErrorIs(t, err, ErrMalformedToken)
}
