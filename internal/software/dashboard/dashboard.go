// Package dashboard feeds the driver's home screen: periodic stats, delivery
// lists, waybill links and the notifications raised by realtime events.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"courier-driver/internal/domain/delivery"
	"courier-driver/internal/general/contracts"
	"courier-driver/internal/general/logger"
	"courier-driver/internal/ports"
	"courier-driver/internal/software/realtime"
	"courier-driver/internal/software/session"
)

// ErrStaleStats is returned when the session changed while stats were loading.
var ErrStaleStats = errors.New("stats belong to an ended session")

// WaybillLinker builds the printable waybill URL.
type WaybillLinker interface {
	WaybillURL(id string) (string, error)
}

// SessionView is what the dashboard needs from the session manager.
type SessionView interface {
	Current() *session.Session
	Epoch() uint64
}

// Board is the dashboard state.
type Board struct {
	logger   *logger.Logger
	api      ports.DashboardAPI
	waybills WaybillLinker
	sessions SessionView
	notifier ports.Notifier
	interval time.Duration

	mu      sync.RWMutex
	stats   contracts.DriverStats
	loaded  bool
	wasOpen bool
}

func NewBoard(log *logger.Logger, api ports.DashboardAPI, waybills WaybillLinker, sessions SessionView, notifier ports.Notifier, interval time.Duration) *Board {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Board{
		logger:   log,
		api:      api,
		waybills: waybills,
		sessions: sessions,
		notifier: notifier,
		interval: interval,
	}
}

// Stats returns the last loaded stats and whether any load succeeded.
func (b *Board) Stats() (contracts.DriverStats, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stats, b.loaded
}

// OnSession drops the cached stats when the session ends. It matches
// session.Observer.
func (b *Board) OnSession(ctx context.Context, s *session.Session) {
	if s != nil {
		return
	}
	b.mu.Lock()
	b.stats = contracts.DriverStats{}
	b.loaded = false
	b.mu.Unlock()
	b.logger.Debug(ctx, "dashboard_stats_cleared", "Driver stats cleared", nil)
}

// LoadStats fetches the stats once. Failures are logged, never shown. A
// response that arrives after the session changed is dropped.
func (b *Board) LoadStats(ctx context.Context) error {
	epoch := b.sessions.Epoch()
	s, err := b.api.GetStats(ctx)
	if err != nil {
		b.logger.Warn(ctx, "dashboard_stats_failed", "Failed to load driver stats", map[string]any{"error": err.Error()})
		return fmt.Errorf("load stats: %w", err)
	}

	b.mu.Lock()
	if b.sessions.Epoch() != epoch {
		b.mu.Unlock()
		b.logger.Debug(ctx, "dashboard_stats_stale", "Dropping stats from an ended session", nil)
		return ErrStaleStats
	}
	b.stats = *s
	b.loaded = true
	b.mu.Unlock()

	b.logger.Debug(ctx, "dashboard_stats_loaded", "Driver stats loaded", map[string]any{
		"today_deliveries": s.Today.Deliveries, "today_earnings": s.Today.Earnings,
	})
	return nil
}

// RunStatsPoller loads stats now and then every interval until ctx ends.
// Ticks without a session are skipped.
func (b *Board) RunStatsPoller(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		if b.sessions.Current() != nil {
			_ = b.LoadStats(ctx)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Available lists deliveries open for acceptance.
func (b *Board) Available(ctx context.Context) ([]delivery.Delivery, error) {
	ds, err := b.api.ListAvailable(ctx)
	if err != nil {
		return nil, b.listFailed(ctx, err)
	}
	return ds, nil
}

// Mine lists the driver's deliveries, all statuses.
func (b *Board) Mine(ctx context.Context) ([]delivery.Delivery, error) {
	ds, err := b.api.ListMyDeliveries(ctx, "")
	if err != nil {
		return nil, b.listFailed(ctx, err)
	}
	return ds, nil
}

// History lists the driver's delivered deliveries.
func (b *Board) History(ctx context.Context) ([]delivery.Delivery, error) {
	ds, err := b.api.ListMyDeliveries(ctx, delivery.StatusDelivered)
	if err != nil {
		return nil, b.listFailed(ctx, err)
	}
	return ds, nil
}

func (b *Board) listFailed(ctx context.Context, err error) error {
	b.logger.Error(ctx, "dashboard_list_failed", "Failed to load deliveries", err, nil)
	b.notifier.Error(ctx, "Failed to load deliveries")
	return fmt.Errorf("list deliveries: %w", err)
}

// Waybill returns the printable waybill link for id.
func (b *Board) Waybill(ctx context.Context, id string) (string, error) {
	u, err := b.waybills.WaybillURL(id)
	if err != nil {
		b.logger.Warn(logger.WithDeliveryID(ctx, id), "dashboard_waybill_failed", "Cannot build waybill link", map[string]any{"error": err.Error()})
		b.notifier.Error(ctx, "Could not open the waybill")
		return "", err
	}
	return u, nil
}

// Listener returns the realtime hooks that notify the driver.
func (b *Board) Listener() realtime.Listener {
	return realtime.Listener{
		OnState:             b.onState,
		OnNewDelivery:       b.onNewDelivery,
		OnDeliveryAssigned:  b.onAssigned,
		OnDeliveryCancelled: b.onCancelled,
		OnError:             b.onError,
	}
}

func (b *Board) onState(ctx context.Context, state realtime.State) {
	b.mu.Lock()
	wasOpen := b.wasOpen
	b.wasOpen = state == realtime.StateOpen
	b.mu.Unlock()

	switch {
	case state == realtime.StateOpen:
		b.notifier.Success(ctx, "Realtime connection established")
	case state == realtime.StateClosed && wasOpen && b.sessions.Current() != nil:
		b.notifier.Error(ctx, "Realtime connection lost")
	}
}

func (b *Board) onNewDelivery(ctx context.Context, n contracts.NewDeliveryNotice) {
	b.notifier.Success(ctx, "New delivery available!")
	b.notifier.Info(ctx, newDeliverySummary(n))
	b.logger.Info(logger.WithDeliveryID(ctx, n.ID), "dashboard_new_delivery", "New delivery announced", map[string]any{"distance": n.Distance})
}

func (b *Board) onAssigned(ctx context.Context, n contracts.DeliveryNotice) {
	b.notifier.Success(ctx, "Delivery accepted!")
	b.logger.Info(logger.WithDeliveryID(ctx, n.ID()), "dashboard_delivery_assigned", "Delivery assigned to driver", nil)
}

func (b *Board) onCancelled(ctx context.Context, n contracts.DeliveryNotice) {
	b.notifier.Error(ctx, "Delivery cancelled")
	b.logger.Info(logger.WithDeliveryID(ctx, n.ID()), "dashboard_delivery_cancelled", "Delivery cancelled", map[string]any{"message": n.Message})
}

func (b *Board) onError(ctx context.Context, n contracts.ErrorNotice) {
	b.notifier.Error(ctx, "Realtime connection error")
	b.logger.Warn(ctx, "dashboard_realtime_error", "Realtime error frame", map[string]any{"message": n.Message, "code": n.Code})
}

// newDeliverySummary is "<pickup city> • <distance> km", with placeholders for
// missing parts.
func newDeliverySummary(n contracts.NewDeliveryNotice) string {
	city := strings.TrimSpace(n.PickupAddress.City)
	if city == "" {
		city = "Delivery"
	}
	dist := "?"
	if n.Distance != nil {
		dist = fmt.Sprintf("%.1f", *n.Distance)
	}
	return city + " • " + dist + " km"
}
