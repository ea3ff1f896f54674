package session

import (
	"context"
	"errors"
	"sync"

	"courier-driver/internal/domain/user"
	"courier-driver/internal/general/logger"
	"courier-driver/internal/ports"
)

var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccessDenied       = errors.New("access not authorized")
	ErrRoleForbidden      = errors.New("access reserved for drivers")
	ErrTransport          = errors.New("could not reach the server")
	ErrMalformedResponse  = errors.New("login response is missing token or profile")
)

// Session is the authenticated driver. A non-nil Session always has a token.
type Session struct {
	Token   string
	Profile user.Profile
}

func (s *Session) UserID() string  { return s.Profile.ID }
func (s *Session) Role() user.Role { return s.Profile.Role }

// Credentials are what the driver types on the login screen.
type Credentials struct {
	Email    string
	Password string
}

// Observer is told about every session change; s is nil after logout.
type Observer func(ctx context.Context, s *Session)

// Manager owns the session: it is the only writer of the persisted credential keys.
type Manager struct {
	logger   *logger.Logger
	store    ports.KeyValueStore
	auth     ports.AuthAPI
	notifier ports.Notifier
	nav      ports.Navigator

	mu      sync.RWMutex
	current *Session
	epoch   uint64

	hookMu       sync.Mutex
	observers    []*Observer
	beforeLogout []func(ctx context.Context)
}

func NewManager(log *logger.Logger, store ports.KeyValueStore, auth ports.AuthAPI, notifier ports.Notifier, nav ports.Navigator) *Manager {
	return &Manager{
		logger:   log,
		store:    store,
		auth:     auth,
		notifier: notifier,
		nav:      nav,
	}
}

// Current returns a copy of the session, or nil.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	cp := *m.current
	return &cp
}

// Token returns the bearer token, or "" with no session.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return ""
	}
	return m.current.Token
}

// Epoch increases on every session change. Work started under an older epoch
// must not be applied.
func (m *Manager) Epoch() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.epoch
}

// Subscribe registers fn for session changes and returns its cancel func.
func (m *Manager) Subscribe(fn Observer) func() {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	p := &fn
	m.observers = append(m.observers, p)
	return func() {
		m.hookMu.Lock()
		defer m.hookMu.Unlock()
		for i, o := range m.observers {
			if o == p {
				m.observers = append(m.observers[:i], m.observers[i+1:]...)
				return
			}
		}
	}
}

// OnBeforeLogout registers fn to run while the session is still live, right
// before it is torn down.
func (m *Manager) OnBeforeLogout(fn func(ctx context.Context)) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	m.beforeLogout = append(m.beforeLogout, fn)
}

// set swaps the session, bumps the epoch and notifies observers synchronously.
func (m *Manager) set(ctx context.Context, s *Session) {
	m.mu.Lock()
	m.current = s
	m.epoch++
	m.mu.Unlock()

	m.hookMu.Lock()
	observers := make([]*Observer, len(m.observers))
	copy(observers, m.observers)
	m.hookMu.Unlock()

	var snapshot *Session
	if s != nil {
		cp := *s
		snapshot = &cp
	}
	for _, o := range observers {
		(*o)(ctx, snapshot)
	}
}
