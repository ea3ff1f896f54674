package confirm

import (
	"context"
	"errors"
	"sync"

	"courier-driver/internal/domain/delivery"
	"courier-driver/internal/general/logger"
)

var (
	ErrGateBusy       = errors.New("a confirmation is already in progress")
	ErrGateClosed     = errors.New("confirmation is no longer open")
	ErrIncorrectCode  = errors.New("incorrect code")
	ErrEmptyCode      = errors.New("please enter the code")
	ErrEmptySignature = errors.New("please sign before confirming")
	ErrUnknownStage   = errors.New("unknown confirmation stage")
)

// Gate hands out at most one open confirmation at a time.
type Gate struct {
	logger *logger.Logger

	mu      sync.Mutex
	current *Session
}

func NewGate(log *logger.Logger) *Gate {
	return &Gate{logger: log}
}

// Open starts a confirmation for d at stage. The expected code is captured now;
// nothing from a previous, abandoned session carries over.
func (g *Gate) Open(ctx context.Context, d *delivery.Delivery, stage delivery.Stage) (*Session, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if stage != delivery.StagePickup && stage != delivery.StageDelivery {
		return nil, ErrUnknownStage
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current != nil {
		g.logger.Warn(ctx, "confirm_gate_busy", "Second confirmation rejected while one is open", map[string]any{
			"open_delivery": g.current.deliveryID, "open_stage": g.current.stage,
			"delivery_id": d.ID, "stage": stage,
		})
		return nil, ErrGateBusy
	}

	s := &Session{
		gate:       g,
		deliveryID: d.ID,
		stage:      stage,
		expected:   CodeAttempt{Value: d.ExpectedCode(stage)}.Normalized(),
	}
	g.current = s
	g.logger.Debug(logger.WithDeliveryID(ctx, d.ID), "confirm_gate_opened", "Confirmation opened", map[string]any{"stage": stage})
	return s, nil
}

// Busy reports whether a confirmation is open.
func (g *Gate) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current != nil
}

// Reset closes any open confirmation. Its holder sees ErrGateClosed on the
// next Submit.
func (g *Gate) Reset(ctx context.Context) {
	g.mu.Lock()
	s := g.current
	g.current = nil
	g.mu.Unlock()
	if s == nil {
		return
	}

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	g.logger.Debug(logger.WithDeliveryID(ctx, s.deliveryID), "confirm_gate_reset", "Open confirmation discarded", map[string]any{"stage": s.stage})
}

func (g *Gate) release(s *Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == s {
		g.current = nil
	}
}

// Session is one open confirmation. It is closed by a successful Submit or by
// Cancel; failed submissions leave it open for another try.
type Session struct {
	gate       *Gate
	deliveryID string
	stage      delivery.Stage
	expected   string

	mu     sync.Mutex
	closed bool
}

func (s *Session) DeliveryID() string    { return s.deliveryID }
func (s *Session) Stage() delivery.Stage { return s.stage }

// Submit checks one attempt. There is no attempt limit.
func (s *Session) Submit(ctx context.Context, a Attempt) (Proof, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Proof{}, ErrGateClosed
	}

	ctx = logger.WithDeliveryID(ctx, s.deliveryID)
	var value string
	switch a := a.(type) {
	case CodeAttempt:
		value = a.Normalized()
		if value == "" {
			return Proof{}, ErrEmptyCode
		}
		if s.expected == "" {
			return Proof{}, delivery.ErrNoExpectedCode
		}
		if value != s.expected {
			s.gate.logger.Info(ctx, "confirm_code_mismatch", "Confirmation code did not match", map[string]any{"stage": s.stage})
			return Proof{}, ErrIncorrectCode
		}
	case SignatureAttempt:
		if a.Payload == "" {
			return Proof{}, ErrEmptySignature
		}
		value = a.Payload
	default:
		return Proof{}, errors.New("unsupported confirmation method")
	}

	s.closed = true
	s.gate.release(s)
	s.gate.logger.Info(ctx, "confirm_succeeded", "Handoff confirmed", map[string]any{"stage": s.stage, "method": a.Method()})
	return Proof{deliveryID: s.deliveryID, stage: s.stage, method: a.Method(), value: value}, nil
}

// Cancel abandons the session. Safe to call after success or twice.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.gate.release(s)
}
