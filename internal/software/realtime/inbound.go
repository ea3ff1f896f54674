package realtime

import (
	"context"
	"encoding/json"

	"courier-driver/internal/general/contracts"
)

// dispatch decodes one frame and hands it to listeners exactly once.
func (c *Channel) dispatch(ctx context.Context, f contracts.Frame) {
	switch f.Event {
	case contracts.EventNewDelivery:
		var n contracts.NewDeliveryNotice
		if !c.decode(ctx, f, &n) {
			return
		}
		c.logger.Info(ctx, "realtime_new_delivery", "New delivery available", map[string]any{"delivery_id": n.ID})
		for _, l := range c.snapshotListeners() {
			if l.OnNewDelivery != nil {
				l.OnNewDelivery(ctx, n)
			}
		}

	case contracts.EventDeliveryAssigned, contracts.EventDeliveryCancelled:
		var n contracts.DeliveryNotice
		if !c.decode(ctx, f, &n) {
			return
		}
		c.logger.Info(ctx, "realtime_delivery_event", "Delivery event received", map[string]any{"event": f.Event, "delivery_id": n.ID()})
		for _, l := range c.snapshotListeners() {
			if f.Event == contracts.EventDeliveryAssigned && l.OnDeliveryAssigned != nil {
				l.OnDeliveryAssigned(ctx, n)
			}
			if f.Event == contracts.EventDeliveryCancelled && l.OnDeliveryCancelled != nil {
				l.OnDeliveryCancelled(ctx, n)
			}
		}

	case contracts.EventError:
		var n contracts.ErrorNotice
		if !c.decode(ctx, f, &n) {
			return
		}
		c.logger.Warn(ctx, "realtime_error_frame", "Realtime endpoint reported an error", map[string]any{"message": n.Message, "code": n.Code})
		for _, l := range c.snapshotListeners() {
			if l.OnError != nil {
				l.OnError(ctx, n)
			}
		}

	default:
		c.logger.Debug(ctx, "realtime_unknown_event", "Ignoring unknown realtime event", map[string]any{"event": f.Event})
	}
}

func (c *Channel) decode(ctx context.Context, f contracts.Frame, v any) bool {
	if len(f.Data) == 0 {
		f.Data = []byte("{}")
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		c.logger.Warn(ctx, "realtime_bad_payload", "Dropping realtime event with an undecodable payload", map[string]any{"event": f.Event, "error": err.Error()})
		return false
	}
	return true
}
