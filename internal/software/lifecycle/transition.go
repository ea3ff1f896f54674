package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"courier-driver/internal/domain/delivery"
	"courier-driver/internal/general/backend"
	"courier-driver/internal/general/logger"
	"courier-driver/internal/software/confirm"
)

// step describes one remote transition.
type step struct {
	next    delivery.Status
	proof   *confirm.Proof
	action  string
	success string
	failure string
	call    func(ctx context.Context, id string) (*delivery.Delivery, error)
}

// guardLocked checks that next may be requested now. Callers hold c.mu.
func (c *Controller) guardLocked(next delivery.Status, proof *confirm.Proof) error {
	if c.current == nil {
		return ErrNoDelivery
	}
	if c.closed || c.rejected {
		return ErrDeliveryClosed
	}
	from := c.current.Status
	if !from.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", delivery.ErrInvalidStatusSwitch, from, next)
	}
	if stage, gated := delivery.RequiredStage(next); gated {
		if proof == nil || !proof.Matches(c.current.ID, stage) {
			return ErrProofRequired
		}
	}
	return nil
}

func (c *Controller) checkGuard(ctx context.Context, st step) error {
	c.mu.RLock()
	err := c.guardLocked(st.next, st.proof)
	var from delivery.Status
	if c.current != nil {
		from = c.current.Status
	}
	c.mu.RUnlock()
	if err == nil {
		return nil
	}
	c.logger.Warn(ctx, st.action+"_rejected", "Transition refused before contacting the backend", map[string]any{
		"from": from, "to": st.next, "reason": err.Error(),
	})
	c.notifier.Error(ctx, guardMessage(err))
	return err
}

// run executes st: guard, one remote call, then the local advance. Local state
// changes only after the backend confirmed.
func (c *Controller) run(ctx context.Context, st step) (*delivery.Delivery, error) {
	if err := c.checkGuard(ctx, st); err != nil {
		return nil, err
	}

	c.txMu.Lock()
	defer c.txMu.Unlock()

	// the state may have moved while we waited for an earlier call
	if err := c.checkGuard(ctx, st); err != nil {
		return nil, err
	}

	c.mu.RLock()
	snap := c.snapshotLocked()
	c.mu.RUnlock()
	ctx = logger.WithDeliveryID(ctx, snap.id)

	resp, err := st.call(ctx, snap.id)
	if err != nil {
		if c.sessions.Epoch() != snap.epoch {
			return nil, ErrSessionEnded
		}
		c.logger.Error(ctx, st.action+"_failed", "Backend refused the transition", err, map[string]any{"to": st.next})
		c.notifier.Error(ctx, backend.Message(err, st.failure))
		return nil, fmt.Errorf("%s: %w", st.action, err)
	}

	c.mu.Lock()
	if c.staleLocked(snap) {
		c.mu.Unlock()
		c.logger.Info(ctx, st.action+"_discarded", "Transition result arrived after the session changed", nil)
		return nil, ErrSessionEnded
	}
	from := c.current.Status
	updated := c.current.Clone()
	if resp != nil && resp.ID == snap.id && resp.Status.Is(st.next) && resp.Validate() == nil {
		updated = resp.Clone()
	} else if err := updated.Advance(st.next); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.current = updated
	c.mu.Unlock()

	proofType := ""
	if st.proof != nil {
		proofType = st.proof.Method().String()
	}
	c.logger.Info(ctx, st.action, st.success, map[string]any{"from": from, "to": updated.Status, "proof": proofType})
	if c.journal != nil {
		c.journal.DeliveryStatusChanged(ctx, c.driverID(), snap.id, st.next, proofType)
	}
	c.notifier.Success(ctx, st.success)
	c.notify(ctx, updated)
	return updated.Clone(), nil
}

// guardMessage is the driver-facing text for a refused transition.
func guardMessage(err error) string {
	switch {
	case errors.Is(err, ErrNoDelivery):
		return "No delivery is open"
	case errors.Is(err, ErrDeliveryClosed):
		return "This delivery is closed"
	case errors.Is(err, ErrProofRequired):
		return "Please confirm the handoff first"
	default:
		return "This action is not available for the delivery's current status"
	}
}
