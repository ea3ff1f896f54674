package realtime

import (
	"context"

	"courier-driver/internal/domain/geo"
	"courier-driver/internal/general/contracts"
)

// AnnouncePresence sends driver-online or driver-offline. It reports whether
// the frame was written; when the channel is not Open it is dropped.
func (c *Channel) AnnouncePresence(ctx context.Context, online bool) bool {
	event := contracts.EventDriverOffline
	if online {
		event = contracts.EventDriverOnline
	}
	return c.send(ctx, event, func(driverID string) any {
		return contracts.DriverPresence{DriverID: driverID}
	})
}

// ReportLocation sends one location-update. Dropped unless Open; there is no queue.
func (c *Channel) ReportLocation(ctx context.Context, s geo.Sample) bool {
	return c.send(ctx, contracts.EventLocationUpdate, func(driverID string) any {
		return contracts.LocationUpdate{
			DriverID:  driverID,
			Location:  s.Point,
			Accuracy:  s.AccuracyMeters,
			Timestamp: s.CapturedAt,
		}
	})
}

func (c *Channel) send(ctx context.Context, event string, build func(driverID string) any) bool {
	c.mu.Lock()
	conn, state, driverID := c.conn, c.state, c.driverID
	c.mu.Unlock()

	if state != StateOpen || conn == nil {
		c.logger.Debug(ctx, "realtime_send_dropped", "Outbound event dropped; channel not open", map[string]any{"event": event, "state": state.String()})
		return false
	}
	if err := conn.Send(event, build(driverID)); err != nil {
		c.logger.Warn(ctx, "realtime_send_failed", "Failed to write outbound event", map[string]any{"event": event, "error": err.Error()})
		return false
	}
	return true
}
