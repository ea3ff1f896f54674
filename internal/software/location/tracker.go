package location

import (
	"context"
	"fmt"
	"sync"

	"courier-driver/internal/domain/geo"
	"courier-driver/internal/general/logger"
)

// State of the tracker.
type State int

const (
	StateIdle State = iota
	StateTracking
)

func (s State) String() string {
	if s == StateTracking {
		return "tracking"
	}
	return "idle"
}

// Observer receives fixes and the fatal error. Callbacks must not call Stop.
type Observer struct {
	OnSample func(ctx context.Context, s geo.Sample)
	OnFatal  func(ctx context.Context, err *Error)
}

// Tracker owns the single platform subscription and the current location.
type Tracker struct {
	logger *logger.Logger
	source Source
	opts   Options

	mu              sync.Mutex
	state           State
	watchID         WatchID
	gen             uint64
	ctx             context.Context
	current         *geo.Sample
	lastErr         *Error
	needsPermission bool

	// held while a callback is delivered; Stop takes it to wait out an in-flight delivery
	deliverMu sync.Mutex

	omu       sync.RWMutex
	observers []*Observer
}

func NewTracker(source Source, opts Options, log *logger.Logger) *Tracker {
	return &Tracker{logger: log, source: source, opts: opts}
}

// Subscribe registers o and returns its cancel func.
func (t *Tracker) Subscribe(o Observer) func() {
	t.omu.Lock()
	defer t.omu.Unlock()
	p := &o
	t.observers = append(t.observers, p)
	return func() {
		t.omu.Lock()
		defer t.omu.Unlock()
		for i, x := range t.observers {
			if x == p {
				t.observers = append(t.observers[:i], t.observers[i+1:]...)
				return
			}
		}
	}
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Current is the latest fix, if any.
func (t *Tracker) Current() (geo.Sample, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return geo.Sample{}, false
	}
	return *t.current, true
}

// LastError is the most recent non-cleared platform error.
func (t *Tracker) LastError() *Error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// RequestPermission asks the platform for access. A grant clears the
// re-permission requirement left by a fatal error.
func (t *Tracker) RequestPermission(ctx context.Context) (Permission, error) {
	p, err := t.source.Permission(ctx)
	if err != nil {
		return "", fmt.Errorf("query location permission: %w", err)
	}
	if p == PermissionPrompt {
		if p, err = t.source.RequestPermission(ctx); err != nil {
			return "", fmt.Errorf("request location permission: %w", err)
		}
	}

	t.mu.Lock()
	if p == PermissionGranted {
		t.needsPermission = false
	}
	t.mu.Unlock()

	t.logger.Info(ctx, "location_permission", "Location permission checked", map[string]any{"permission": string(p)})
	return p, nil
}

// Start opens the platform subscription. A second Start while tracking is a no-op.
// The source may deliver its first fix synchronously from inside Watch.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.state == StateTracking {
		t.mu.Unlock()
		return nil
	}
	if t.needsPermission {
		t.mu.Unlock()
		return ErrPermissionRequired
	}
	t.gen++
	gen := t.gen
	t.state = StateTracking
	t.watchID = 0
	t.ctx = context.WithoutCancel(ctx)
	t.mu.Unlock()

	id, err := t.source.Watch(t.opts,
		func(s geo.Sample) { t.deliverFix(gen, s) },
		func(e *Error) { t.deliverError(gen, e) },
	)

	t.mu.Lock()
	superseded := t.gen != gen
	if err != nil {
		if !superseded {
			t.stopLocked()
		}
		t.mu.Unlock()
		t.logger.Error(ctx, "location_watch_failed", "Platform refused the position subscription", err, nil)
		return fmt.Errorf("start location watch: %w", err)
	}
	if superseded {
		// Stop or a fatal error ran while Watch was in flight and had no id to clear
		denied := t.needsPermission
		t.mu.Unlock()
		t.source.ClearWatch(id)
		if denied {
			return ErrPermissionRequired
		}
		return nil
	}
	t.watchID = id
	t.mu.Unlock()

	t.logger.Info(ctx, "location_tracking_started", "Location tracking started", map[string]any{
		"high_accuracy": t.opts.HighAccuracy, "maximum_age": t.opts.MaximumAge.String(), "timeout": t.opts.Timeout.String(),
	})
	return nil
}

// Stop cancels the subscription. When it returns no observer callback is
// running and none will run. Stopping an idle tracker is a no-op.
func (t *Tracker) Stop(ctx context.Context) {
	t.mu.Lock()
	if t.state != StateTracking {
		t.mu.Unlock()
		return
	}
	id := t.stopLocked()
	t.mu.Unlock()

	if id != 0 {
		t.source.ClearWatch(id)
	}

	// wait out a delivery that passed its generation check before we bumped gen
	t.deliverMu.Lock()
	t.deliverMu.Unlock()

	t.logger.Info(ctx, "location_tracking_stopped", "Location tracking stopped", nil)
}

func (t *Tracker) stopLocked() WatchID {
	t.gen++
	t.state = StateIdle
	id := t.watchID
	t.watchID = 0
	return id
}

func (t *Tracker) deliverFix(gen uint64, s geo.Sample) {
	t.deliverMu.Lock()
	defer t.deliverMu.Unlock()

	t.mu.Lock()
	if t.gen != gen || t.state != StateTracking {
		t.mu.Unlock()
		return
	}
	if err := s.Validate(); err != nil {
		ctx := t.ctx
		t.mu.Unlock()
		t.logger.Warn(ctx, "location_fix_invalid", "Dropping invalid fix", map[string]any{"error": err.Error()})
		return
	}
	cp := s
	t.current = &cp
	t.lastErr = nil
	ctx := t.ctx
	t.mu.Unlock()

	for _, o := range t.snapshotObservers() {
		if o.OnSample != nil {
			o.OnSample(ctx, s)
		}
	}
}

func (t *Tracker) deliverError(gen uint64, e *Error) {
	t.deliverMu.Lock()
	defer t.deliverMu.Unlock()

	t.mu.Lock()
	if t.gen != gen || t.state != StateTracking {
		t.mu.Unlock()
		return
	}
	t.lastErr = e
	ctx := t.ctx

	if !e.Kind.Fatal() {
		t.mu.Unlock()
		t.logger.Warn(ctx, "location_error_transient", "Transient location error; still tracking", map[string]any{
			"kind": e.Kind.String(), "message": e.Message,
		})
		return
	}

	id := t.stopLocked()
	t.needsPermission = true
	t.mu.Unlock()

	// the platform is told synchronously; we are already past the generation check
	if id != 0 {
		t.source.ClearWatch(id)
	}
	t.logger.Error(ctx, "location_permission_denied", "Location permission denied; tracking stopped", e, nil)

	for _, o := range t.snapshotObservers() {
		if o.OnFatal != nil {
			o.OnFatal(ctx, e)
		}
	}
}

func (t *Tracker) snapshotObservers() []*Observer {
	t.omu.RLock()
	defer t.omu.RUnlock()
	out := make([]*Observer, len(t.observers))
	copy(out, t.observers)
	return out
}
