package lifecycle

import (
	"context"

	"courier-driver/internal/domain/delivery"
	"courier-driver/internal/general/logger"
	"courier-driver/internal/ports"
)

// Accept takes a pending delivery. On success the delivery is assigned and the
// cached copy is re-read before the call returns.
func (c *Controller) Accept(ctx context.Context) error {
	_, err := c.run(ctx, step{
		next:    delivery.StatusAssigned,
		action:  "delivery_accepted",
		success: "Delivery accepted",
		failure: "Failed to accept delivery",
		call: func(ctx context.Context, id string) (*delivery.Delivery, error) {
			d, err := c.api.AcceptDelivery(ctx, id)
			if err != nil {
				return nil, err
			}
			// still under txMu, so the re-read is ordered after the accept
			fresh, rerr := c.api.GetDelivery(ctx, id)
			if rerr == nil && fresh.Validate() == nil && fresh.ID == id {
				return fresh, nil
			}
			if rerr == nil {
				rerr = delivery.ErrEmptyDeliveryID
			}
			c.logger.Warn(ctx, "delivery_accept_refresh_failed", "Accepted, but the refreshed copy is unavailable", map[string]any{"error": rerr.Error()})
			return d, nil
		},
	})
	return err
}

// Reject declines a pending delivery. Nothing is sent to the backend: the
// delivery is hidden locally and the driver goes back to the delivery list.
func (c *Controller) Reject(ctx context.Context) error {
	c.mu.Lock()
	var err error
	switch {
	case c.current == nil:
		err = ErrNoDelivery
	case c.closed || c.rejected:
		err = ErrDeliveryClosed
	case !c.current.Status.Is(delivery.StatusPending):
		err = delivery.ErrInvalidStatusSwitch
	}
	if err != nil {
		c.mu.Unlock()
		c.notifier.Error(ctx, guardMessage(err))
		return err
	}
	c.rejected = true
	id := c.current.ID
	c.mu.Unlock()

	ctx = logger.WithDeliveryID(ctx, id)
	c.logger.Info(ctx, "delivery_rejected", "Delivery declined locally", nil)
	c.notifier.Info(ctx, "Delivery declined")
	c.nav.Navigate(ctx, ports.RouteDeliveries)
	return nil
}
