// Package presence keeps the driver's online intent, the location tracker and
// the realtime channel consistent. The intent is persisted and survives both
// reloads and logout; it is re-applied every time the channel opens.
package presence

import (
	"context"
	"errors"
	"sync"

	"courier-driver/internal/domain/geo"
	"courier-driver/internal/general/contracts"
	"courier-driver/internal/general/logger"
	"courier-driver/internal/ports"
	"courier-driver/internal/software/location"
	"courier-driver/internal/software/realtime"
	"courier-driver/internal/software/session"
)

var (
	ErrNoSession        = errors.New("sign in before going online")
	ErrLocationRequired = errors.New("location is required to go online")
	ErrAlreadyOnline    = errors.New("already online")
	ErrAlreadyOffline   = errors.New("already offline")
)

// Tracker is the part of the location tracker presence drives.
type Tracker interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)
	State() location.State
	Current() (geo.Sample, bool)
	RequestPermission(ctx context.Context) (location.Permission, error)
	Subscribe(o location.Observer) func()
}

// Channel is the part of the realtime channel presence drives.
type Channel interface {
	AnnouncePresence(ctx context.Context, online bool) bool
	ReportLocation(ctx context.Context, s geo.Sample) bool
}

// SessionView is what presence needs from the session manager.
type SessionView interface {
	Current() *session.Session
}

// Controller owns the online flag.
type Controller struct {
	logger   *logger.Logger
	store    ports.KeyValueStore
	tracker  Tracker
	channel  Channel
	sessions SessionView
	notifier ports.Notifier
	journal  ports.Journal

	mu     sync.Mutex
	online bool

	unsubscribe func()
}

// NewController wires presence and starts forwarding tracker samples to the
// channel. journal may be nil.
func NewController(
	log *logger.Logger,
	store ports.KeyValueStore,
	tracker Tracker,
	channel Channel,
	sessions SessionView,
	notifier ports.Notifier,
	journal ports.Journal,
) *Controller {
	c := &Controller{
		logger:   log,
		store:    store,
		tracker:  tracker,
		channel:  channel,
		sessions: sessions,
		notifier: notifier,
		journal:  journal,
	}
	c.unsubscribe = tracker.Subscribe(location.Observer{
		OnSample: c.onSample,
		OnFatal:  c.onFatal,
	})
	return c
}

// Close stops forwarding samples.
func (c *Controller) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

// Online reports the driver's declared availability.
func (c *Controller) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

// Restore reads the persisted flag. A missing or unreadable value means offline.
func (c *Controller) Restore(ctx context.Context) error {
	v, ok, err := c.store.Get(ctx, contracts.KeyOnlineStatus)
	if err != nil {
		return err
	}
	online := ok && v == "true"

	c.mu.Lock()
	c.online = online
	c.mu.Unlock()

	c.logger.Debug(ctx, "presence_restored", "Online flag restored", map[string]any{"online": online})
	return nil
}

// Listener returns the channel hook that reconciles presence on every open.
func (c *Controller) Listener() realtime.Listener {
	return realtime.Listener{
		OnState: func(ctx context.Context, state realtime.State) {
			if state == realtime.StateOpen {
				c.Reconcile(ctx)
			}
		},
	}
}

func (c *Controller) driverID() string {
	if s := c.sessions.Current(); s != nil {
		return s.UserID()
	}
	return ""
}

func (c *Controller) persist(ctx context.Context, online bool) {
	v := "false"
	if online {
		v = "true"
	}
	if err := c.store.Set(ctx, contracts.KeyOnlineStatus, v); err != nil {
		c.logger.Error(ctx, "presence_persist_failed", "Failed to persist online flag", err, map[string]any{"online": online})
	}
}

func (c *Controller) onSample(ctx context.Context, s geo.Sample) {
	if !c.Online() {
		return
	}
	c.channel.ReportLocation(ctx, s)
}

func (c *Controller) onFatal(ctx context.Context, err *location.Error) {
	c.logger.Warn(ctx, "presence_location_lost", "Location permission lost while online", map[string]any{"online": c.Online(), "kind": err.Kind.String()})
	c.notifier.Error(ctx, "Location permission denied")
}
