package session

import (
	"context"
	"encoding/json"
	"fmt"

	"courier-driver/internal/domain/user"
	"courier-driver/internal/general/contracts"
	"courier-driver/internal/general/jwt"
)

// Restore loads a persisted session. Anything malformed is cleared and the
// driver starts logged out; only store failures are returned.
func (m *Manager) Restore(ctx context.Context) error {
	token, err := m.persistedToken(ctx)
	if err != nil {
		return err
	}
	rawProfile, hasProfile, err := m.store.Get(ctx, contracts.KeyUser)
	if err != nil {
		return fmt.Errorf("read %s: %w", contracts.KeyUser, err)
	}

	if token == "" && !hasProfile {
		m.logger.Debug(ctx, "session_restore_empty", "No persisted session", nil)
		return nil
	}

	s, reason := decodePersisted(token, rawProfile)
	if s == nil {
		m.logger.Warn(ctx, "session_restore_discarded", "Persisted session is malformed; clearing it", map[string]any{"reason": reason})
		return m.clearCredentials(ctx)
	}

	m.set(ctx, s)
	m.logger.Info(ctx, "session_restored", "Session restored", map[string]any{"user_id": s.UserID(), "role": s.Role()})
	return nil
}

// persistedToken returns the first non-empty token among the known key names.
func (m *Manager) persistedToken(ctx context.Context) (string, error) {
	for _, key := range contracts.TokenKeys {
		v, ok, err := m.store.Get(ctx, key)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", key, err)
		}
		if ok && v != "" {
			return v, nil
		}
	}
	return "", nil
}

func decodePersisted(token, rawProfile string) (*Session, string) {
	if _, err := jwt.CheckBearer(token); err != nil {
		return nil, err.Error()
	}
	var p user.Profile
	if err := json.Unmarshal([]byte(rawProfile), &p); err != nil {
		return nil, "profile is not valid JSON"
	}
	if err := p.Validate(); err != nil {
		return nil, err.Error()
	}
	if !p.IsDriver() {
		return nil, user.ErrRoleForbidden.Error()
	}
	return &Session{Token: token, Profile: p}, ""
}

func (m *Manager) clearCredentials(ctx context.Context) error {
	keys := append([]string{contracts.KeyUser}, contracts.TokenKeys...)
	if err := m.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}
