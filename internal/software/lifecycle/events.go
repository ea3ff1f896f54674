package lifecycle

import (
	"context"
	"errors"

	"courier-driver/internal/general/contracts"
	"courier-driver/internal/general/logger"
	"courier-driver/internal/software/realtime"
)

// Listener returns the realtime hooks that invalidate the open delivery when
// the backend reports a change to it.
func (c *Controller) Listener() realtime.Listener {
	return realtime.Listener{
		OnDeliveryAssigned:  c.onDeliveryEvent,
		OnDeliveryCancelled: c.onDeliveryEvent,
	}
}

func (c *Controller) onDeliveryEvent(ctx context.Context, n contracts.DeliveryNotice) {
	id := n.ID()
	c.mu.RLock()
	open := c.current != nil && c.current.ID == id && !c.closed
	c.mu.RUnlock()
	if !open {
		return
	}

	// refresh off the reader goroutine; it may wait behind a transition
	ctx = logger.WithDeliveryID(context.WithoutCancel(ctx), id)
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		if err := c.Refresh(ctx); err != nil && !errors.Is(err, ErrSessionEnded) {
			c.logger.Warn(ctx, "delivery_event_refresh_failed", "Refresh after realtime event failed", map[string]any{"error": err.Error()})
		}
	}()
}
