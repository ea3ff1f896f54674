// Package lifecycle drives one open delivery from pending to delivered. Every
// guard runs before any network call, remote calls are serialized so a refresh
// never races a transition, and results that arrive after the session ended
// are dropped.
package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"courier-driver/internal/domain/delivery"
	"courier-driver/internal/general/logger"
	"courier-driver/internal/ports"
	"courier-driver/internal/software/confirm"
	"courier-driver/internal/software/session"
)

var (
	ErrNoDelivery     = errors.New("no delivery is open")
	ErrDeliveryClosed = errors.New("this delivery is closed")
	ErrProofRequired  = errors.New("confirm the handoff before continuing")
	ErrSessionEnded   = errors.New("session ended before the response arrived")
)

// SessionView is what the controller needs from the session manager.
type SessionView interface {
	Current() *session.Session
	Epoch() uint64
}

// Observer is told about every change to the open delivery.
type Observer func(ctx context.Context, d *delivery.Delivery)

// Config tunes the controller.
type Config struct {
	// CloseDelay is how long a delivered delivery stays on screen before the
	// controller closes it and moves to the history view.
	CloseDelay time.Duration
}

// Controller owns the cached copy of the open delivery.
type Controller struct {
	logger   *logger.Logger
	api      ports.DeliveryAPI
	gate     *confirm.Gate
	sessions SessionView
	notifier ports.Notifier
	nav      ports.Navigator
	journal  ports.Journal
	cfg      Config

	// txMu serializes remote calls: a transition's status update always
	// resolves before a refresh is issued.
	txMu sync.Mutex

	mu         sync.RWMutex
	current    *delivery.Delivery
	rejected   bool
	closed     bool
	gen        uint64 // bumps whenever a different delivery is loaded or the controller is reset
	closeTimer *time.Timer

	omu       sync.RWMutex
	observers []*Observer

	bg sync.WaitGroup
}

// NewController wires the controller. journal may be nil.
func NewController(
	log *logger.Logger,
	api ports.DeliveryAPI,
	gate *confirm.Gate,
	sessions SessionView,
	notifier ports.Notifier,
	nav ports.Navigator,
	journal ports.Journal,
	cfg Config,
) *Controller {
	if cfg.CloseDelay <= 0 {
		cfg.CloseDelay = 1500 * time.Millisecond
	}
	return &Controller{
		logger:   log,
		api:      api,
		gate:     gate,
		sessions: sessions,
		notifier: notifier,
		nav:      nav,
		journal:  journal,
		cfg:      cfg,
	}
}

// Subscribe registers fn and returns its cancel func.
func (c *Controller) Subscribe(fn Observer) func() {
	c.omu.Lock()
	defer c.omu.Unlock()
	p := &fn
	c.observers = append(c.observers, p)
	return func() {
		c.omu.Lock()
		defer c.omu.Unlock()
		for i, x := range c.observers {
			if x == p {
				c.observers = append(c.observers[:i], c.observers[i+1:]...)
				return
			}
		}
	}
}

// Delivery returns a copy of the open delivery, or nil.
func (c *Controller) Delivery() *delivery.Delivery {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.Clone()
}

// Rejected reports whether the driver declined the open delivery.
func (c *Controller) Rejected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rejected
}

// Closed reports whether the open delivery's lifecycle has ended.
func (c *Controller) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Reset forgets the open delivery and any pending confirmation. It is called
// when the session ends.
func (c *Controller) Reset(ctx context.Context) {
	c.gate.Reset(ctx)

	c.mu.Lock()
	had := c.current != nil
	c.resetLocked()
	c.mu.Unlock()
	if had {
		c.logger.Debug(ctx, "lifecycle_reset", "Open delivery forgotten", nil)
		c.notify(ctx, nil)
	}
}

// Wait blocks until background refreshes triggered by realtime events finish.
func (c *Controller) Wait() {
	c.bg.Wait()
}

func (c *Controller) resetLocked() {
	c.gen++
	c.current = nil
	c.rejected = false
	c.closed = false
	if c.closeTimer != nil {
		c.closeTimer.Stop()
		c.closeTimer = nil
	}
}

// snapshot captures the state a remote call's result will be checked against.
type snapshot struct {
	gen   uint64
	epoch uint64
	id    string
}

func (c *Controller) snapshotLocked() snapshot {
	s := snapshot{gen: c.gen, epoch: c.sessions.Epoch()}
	if c.current != nil {
		s.id = c.current.ID
	}
	return s
}

// stale reports whether the world moved on while a remote call was in flight.
// Callers hold c.mu.
func (c *Controller) staleLocked(s snapshot) bool {
	return s.gen != c.gen || s.epoch != c.sessions.Epoch() || c.current == nil || c.current.ID != s.id
}

func (c *Controller) driverID() string {
	if s := c.sessions.Current(); s != nil {
		return s.UserID()
	}
	return ""
}

func (c *Controller) notify(ctx context.Context, d *delivery.Delivery) {
	c.omu.RLock()
	obs := make([]*Observer, len(c.observers))
	copy(obs, c.observers)
	c.omu.RUnlock()
	for _, o := range obs {
		(*o)(ctx, d.Clone())
	}
}
