package presence

import (
	"context"
	"errors"

	"courier-driver/internal/software/location"
)

// GoOnline makes sure tracking runs, announces the driver online and persists
// the intent. Without location access the driver stays offline.
func (c *Controller) GoOnline(ctx context.Context) error {
	s := c.sessions.Current()
	if s == nil {
		return ErrNoSession
	}
	if c.Online() {
		return ErrAlreadyOnline
	}

	if c.tracker.State() != location.StateTracking {
		if err := c.startTracking(ctx); err != nil {
			c.notifier.Error(ctx, "Location is required to go online")
			return err
		}
	}

	c.mu.Lock()
	c.online = true
	c.mu.Unlock()

	c.channel.AnnouncePresence(ctx, true)
	if cur, ok := c.tracker.Current(); ok {
		c.channel.ReportLocation(ctx, cur)
	}
	c.persist(ctx, true)
	if c.journal != nil {
		c.journal.PresenceChanged(ctx, s.UserID(), true)
	}

	c.logger.Info(ctx, "driver_online", "Driver went online", map[string]any{"driver_id": s.UserID()})
	c.notifier.Success(ctx, "You are now online")
	return nil
}

// GoOffline announces the driver offline, stops tracking and persists the intent.
func (c *Controller) GoOffline(ctx context.Context) error {
	if !c.Online() {
		return ErrAlreadyOffline
	}

	c.channel.AnnouncePresence(ctx, false)
	c.tracker.Stop(ctx)

	c.mu.Lock()
	c.online = false
	c.mu.Unlock()

	c.persist(ctx, false)
	driverID := c.driverID()
	if c.journal != nil && driverID != "" {
		c.journal.PresenceChanged(ctx, driverID, false)
	}

	c.logger.Info(ctx, "driver_offline", "Driver went offline", map[string]any{"driver_id": driverID})
	c.notifier.Success(ctx, "You are now offline")
	return nil
}

// Reconcile re-applies the online intent after the channel (re)opens: the
// announcement is repeated and tracking restarted if it stopped.
func (c *Controller) Reconcile(ctx context.Context) {
	if !c.Online() || c.sessions.Current() == nil {
		return
	}

	if c.tracker.State() != location.StateTracking {
		if err := c.tracker.Start(ctx); err != nil {
			c.logger.Warn(ctx, "presence_reconcile_tracking_failed", "Could not restart tracking while online", map[string]any{"error": err.Error()})
		}
	}
	c.channel.AnnouncePresence(ctx, true)
	if cur, ok := c.tracker.Current(); ok {
		c.channel.ReportLocation(ctx, cur)
	}
	c.logger.Info(ctx, "presence_reconciled", "Online intent re-announced", map[string]any{"driver_id": c.driverID()})
}

// BeforeLogout tells the backend the driver is leaving and stops tracking. The
// persisted flag is kept so the next login comes back online.
func (c *Controller) BeforeLogout(ctx context.Context) {
	if !c.Online() {
		return
	}
	c.channel.AnnouncePresence(ctx, false)
	c.tracker.Stop(ctx)
	c.logger.Info(ctx, "presence_logout", "Announced offline before logout; online intent kept", nil)
}

func (c *Controller) startTracking(ctx context.Context) error {
	p, err := c.tracker.RequestPermission(ctx)
	if err != nil {
		c.logger.Error(ctx, "presence_permission_failed", "Location permission check failed", err, nil)
		return errors.Join(ErrLocationRequired, err)
	}
	if p != location.PermissionGranted {
		c.logger.Warn(ctx, "presence_permission_denied", "Location permission not granted", map[string]any{"permission": string(p)})
		return ErrLocationRequired
	}
	if err := c.tracker.Start(ctx); err != nil {
		return errors.Join(ErrLocationRequired, err)
	}
	return nil
}
