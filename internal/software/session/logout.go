package session

import (
	"context"

	"courier-driver/internal/ports"
)

// Logout tears the session down: before-logout hooks run first, then every
// credential key is cleared, observers see a nil session and the login screen
// is shown. The online-status flag is deliberately left in place.
func (m *Manager) Logout(ctx context.Context) {
	m.teardown(ctx, "logout")
	m.notifier.Success(ctx, "Logged out")
}

// HandleUnauthorized is the central reaction to a 401 from any authenticated
// call: the same teardown as Logout without the farewell toast.
func (m *Manager) HandleUnauthorized(ctx context.Context) {
	if m.Current() == nil {
		return
	}
	m.logger.Warn(ctx, "session_unauthorized", "Backend rejected the token; forcing logout", nil)
	m.teardown(ctx, "unauthorized")
	m.notifier.Error(ctx, "Your session has expired, please log in again")
}

func (m *Manager) teardown(ctx context.Context, reason string) {
	m.hookMu.Lock()
	hooks := make([]func(context.Context), len(m.beforeLogout))
	copy(hooks, m.beforeLogout)
	m.hookMu.Unlock()

	if m.Current() != nil {
		for _, h := range hooks {
			h(ctx)
		}
	}

	if err := m.clearCredentials(ctx); err != nil {
		m.logger.Error(ctx, "logout_clear_failed", "Failed to clear persisted credentials", err, nil)
	}

	m.set(ctx, nil)
	m.logger.Info(ctx, "session_closed", "Session closed", map[string]any{"reason": reason})
	m.nav.Navigate(ctx, ports.RouteLogin)
}
