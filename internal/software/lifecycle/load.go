package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"courier-driver/internal/domain/delivery"
	"courier-driver/internal/general/backend"
	"courier-driver/internal/general/logger"
)

// Load fetches id and makes it the open delivery.
func (c *Controller) Load(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return delivery.ErrEmptyDeliveryID
	}
	ctx = logger.WithDeliveryID(ctx, id)

	c.txMu.Lock()
	defer c.txMu.Unlock()

	c.mu.Lock()
	if c.current == nil || c.current.ID != id {
		c.resetLocked()
	}
	snap := c.snapshotLocked()
	snap.id = id
	c.mu.Unlock()

	d, err := c.api.GetDelivery(ctx, id)
	if err != nil {
		if c.sessions.Epoch() != snap.epoch {
			return ErrSessionEnded
		}
		c.logger.Error(ctx, "delivery_load_failed", "Failed to load delivery", err, nil)
		c.notifier.Error(ctx, backend.Message(err, "Failed to load delivery"))
		return fmt.Errorf("load delivery: %w", err)
	}
	if err := d.Validate(); err != nil {
		c.logger.Error(ctx, "delivery_load_invalid", "Backend returned an unusable delivery", err, nil)
		c.notifier.Error(ctx, "Failed to load delivery")
		return fmt.Errorf("load delivery: %w", err)
	}

	c.mu.Lock()
	if snap.gen != c.gen || snap.epoch != c.sessions.Epoch() {
		c.mu.Unlock()
		return ErrSessionEnded
	}
	c.current = d.Clone()
	c.mu.Unlock()

	c.logger.Info(ctx, "delivery_loaded", "Delivery loaded", map[string]any{"status": d.Status})
	c.notify(ctx, d)
	return nil
}

// Refresh re-reads the open delivery from the backend and overwrites the cached
// copy, status included. It waits for any in-flight transition first.
func (c *Controller) Refresh(ctx context.Context) error {
	c.txMu.Lock()
	defer c.txMu.Unlock()
	return c.refreshLocked(ctx)
}

// refreshLocked is Refresh for callers already holding txMu.
func (c *Controller) refreshLocked(ctx context.Context) error {
	c.mu.RLock()
	if c.current == nil {
		c.mu.RUnlock()
		return ErrNoDelivery
	}
	if c.closed {
		c.mu.RUnlock()
		return ErrDeliveryClosed
	}
	snap := c.snapshotLocked()
	c.mu.RUnlock()

	ctx = logger.WithDeliveryID(ctx, snap.id)
	d, err := c.api.GetDelivery(ctx, snap.id)
	if err != nil {
		c.logger.Warn(ctx, "delivery_refresh_failed", "Failed to refresh delivery", map[string]any{"error": err.Error()})
		return fmt.Errorf("refresh delivery: %w", err)
	}
	if err := d.Validate(); err != nil || d.ID != snap.id {
		if err == nil {
			err = errors.New("backend returned a different delivery")
		}
		c.logger.Warn(ctx, "delivery_refresh_invalid", "Ignoring unusable refresh result", map[string]any{"error": err.Error()})
		return fmt.Errorf("refresh delivery: %w", err)
	}

	c.mu.Lock()
	if c.staleLocked(snap) {
		c.mu.Unlock()
		return ErrSessionEnded
	}
	prev := c.current.Status
	c.current = d.Clone()
	c.mu.Unlock()

	c.logger.Debug(ctx, "delivery_refreshed", "Delivery refreshed", map[string]any{"from": prev, "to": d.Status})
	c.notify(ctx, d)
	return nil
}
