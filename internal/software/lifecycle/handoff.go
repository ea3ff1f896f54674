package lifecycle

import (
	"context"
	"time"

	"courier-driver/internal/domain/delivery"
	"courier-driver/internal/general/contracts"
	"courier-driver/internal/general/logger"
	"courier-driver/internal/ports"
	"courier-driver/internal/software/confirm"
)

// BeginPickupConfirmation opens the gate for the pickup handoff. It is refused
// unless the delivery is assigned.
func (c *Controller) BeginPickupConfirmation(ctx context.Context) (*confirm.Session, error) {
	return c.openGate(ctx, delivery.StatusPickedUp, delivery.StagePickup)
}

// BeginDeliveryConfirmation opens the gate for the drop-off handoff. It is
// refused unless the delivery is in transit.
func (c *Controller) BeginDeliveryConfirmation(ctx context.Context) (*confirm.Session, error) {
	return c.openGate(ctx, delivery.StatusDelivered, delivery.StageDelivery)
}

func (c *Controller) openGate(ctx context.Context, next delivery.Status, stage delivery.Stage) (*confirm.Session, error) {
	c.mu.RLock()
	var err error
	switch {
	case c.current == nil:
		err = ErrNoDelivery
	case c.closed || c.rejected:
		err = ErrDeliveryClosed
	case !c.current.Status.CanTransitionTo(next):
		err = delivery.ErrInvalidStatusSwitch
	}
	d := c.current.Clone()
	c.mu.RUnlock()

	if err != nil {
		c.notifier.Error(ctx, guardMessage(err))
		return nil, err
	}
	return c.gate.Open(ctx, d, stage)
}

// ConfirmPickup marks the delivery picked up. proof must come from a pickup
// gate session for this delivery; it is sent with the status update.
func (c *Controller) ConfirmPickup(ctx context.Context, proof confirm.Proof) error {
	_, err := c.run(ctx, step{
		next:    delivery.StatusPickedUp,
		proof:   &proof,
		action:  "delivery_pickup_confirmed",
		success: "Pickup confirmed",
		failure: "Failed to confirm pickup",
		call:    c.statusCall(delivery.StatusPickedUp, &proof),
	})
	return err
}

// Start puts a picked-up delivery in transit and opens the live map.
func (c *Controller) Start(ctx context.Context) error {
	d, err := c.run(ctx, step{
		next:    delivery.StatusInTransit,
		action:  "delivery_started",
		success: "Delivery started",
		failure: "Failed to start delivery",
		call:    c.statusCall(delivery.StatusInTransit, nil),
	})
	if err != nil {
		return err
	}
	c.nav.Navigate(logger.WithDeliveryID(ctx, d.ID), ports.RouteMap(d.ID))
	return nil
}

// ConfirmDelivery marks the delivery delivered. After the close delay the
// lifecycle ends and the driver is sent to the history view.
func (c *Controller) ConfirmDelivery(ctx context.Context, proof confirm.Proof) error {
	d, err := c.run(ctx, step{
		next:    delivery.StatusDelivered,
		proof:   &proof,
		action:  "delivery_completed",
		success: "Delivery completed",
		failure: "Failed to confirm delivery",
		call:    c.statusCall(delivery.StatusDelivered, &proof),
	})
	if err != nil {
		return err
	}
	c.scheduleClose(logger.WithDeliveryID(ctx, d.ID), d.ID)
	return nil
}

func (c *Controller) statusCall(next delivery.Status, proof *confirm.Proof) func(context.Context, string) (*delivery.Delivery, error) {
	return func(ctx context.Context, id string) (*delivery.Delivery, error) {
		req := contracts.StatusUpdateRequest{Status: next}
		if proof != nil {
			proof.Attach(&req)
		}
		return c.api.UpdateStatus(ctx, id, req)
	}
}

func (c *Controller) scheduleClose(ctx context.Context, id string) {
	ctx = context.WithoutCancel(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.gen
	if c.closeTimer != nil {
		c.closeTimer.Stop()
	}
	c.closeTimer = time.AfterFunc(c.cfg.CloseDelay, func() {
		c.mu.Lock()
		if c.gen != gen || c.current == nil || c.current.ID != id {
			c.mu.Unlock()
			return
		}
		c.closed = true
		c.closeTimer = nil
		c.mu.Unlock()

		c.logger.Info(ctx, "delivery_closed", "Delivery lifecycle closed", nil)
		c.nav.Navigate(ctx, ports.RouteHistory)
	})
}
