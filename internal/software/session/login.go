package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"courier-driver/internal/general/backend"
	"courier-driver/internal/general/contracts"
	"courier-driver/internal/general/jwt"
)

// Login exchanges credentials for a session. On any failure the current session
// is left untouched and the driver sees why.
func (m *Manager) Login(ctx context.Context, creds Credentials) error {
	email := strings.TrimSpace(creds.Email)
	if email == "" || creds.Password == "" {
		m.notifier.Error(ctx, ErrMissingCredentials.Error())
		return ErrMissingCredentials
	}

	res, err := m.auth.Login(ctx, email, creds.Password)
	if err != nil {
		kind := classifyLoginError(err)
		m.logger.Warn(ctx, "login_failed", "Login rejected", map[string]any{"email": email, "reason": kind.Error(), "status": backend.StatusOf(err)})
		m.notifier.Error(ctx, kind.Error())
		return fmt.Errorf("%w: %v", kind, err)
	}

	claims, err := jwt.CheckBearer(res.Token)
	if err != nil {
		m.logger.Error(ctx, "login_bad_token", "Login returned an unusable token", err, map[string]any{"email": email})
		m.notifier.Error(ctx, ErrTransport.Error())
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := res.User.Validate(); err != nil {
		m.logger.Error(ctx, "login_bad_profile", "Login returned an unusable profile", err, map[string]any{"email": email})
		m.notifier.Error(ctx, ErrTransport.Error())
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !res.User.IsDriver() {
		m.logger.Warn(ctx, "login_role_forbidden", "Non-driver account refused", map[string]any{"email": email, "role": res.User.Role})
		m.notifier.Error(ctx, ErrRoleForbidden.Error())
		return ErrRoleForbidden
	}

	profile, err := json.Marshal(res.User)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := m.store.Set(ctx, contracts.KeyAuthToken, res.Token); err != nil {
		m.notifier.Error(ctx, "Could not save the session")
		return fmt.Errorf("persist token: %w", err)
	}
	if err := m.store.Set(ctx, contracts.KeyUser, string(profile)); err != nil {
		_ = m.store.Delete(ctx, contracts.KeyAuthToken)
		m.notifier.Error(ctx, "Could not save the session")
		return fmt.Errorf("persist profile: %w", err)
	}

	s := &Session{Token: res.Token, Profile: res.User}
	m.set(ctx, s)

	details := map[string]any{"user_id": s.UserID(), "role": s.Role(), "jwt": claims != nil}
	if claims != nil && claims.ExpiresAt != nil {
		details["expires_at"] = claims.ExpiresAt.Time.UTC()
	}
	m.logger.Info(ctx, "login_succeeded", "Driver logged in", details)
	m.notifier.Success(ctx, "Login successful")
	return nil
}

func classifyLoginError(err error) error {
	switch {
	case backend.IsUnauthorized(err):
		return ErrInvalidCredentials
	case backend.IsForbidden(err):
		return ErrAccessDenied
	case errors.Is(err, backend.ErrTransport):
		return ErrTransport
	default:
		return ErrTransport
	}
}
