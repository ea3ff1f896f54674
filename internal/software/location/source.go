package location

import (
	"context"
	"time"

	"courier-driver/internal/domain/geo"
)

// Options mirror the platform watch options.
type Options struct {
	HighAccuracy bool
	MaximumAge   time.Duration // accept a cached fix up to this old
	Timeout      time.Duration // per-fix acquisition budget
}

// DefaultOptions trade a little staleness for battery: cached fixes up to 10s,
// generous 30s acquisition timeout, highest accuracy.
func DefaultOptions() Options {
	return Options{HighAccuracy: true, MaximumAge: 10 * time.Second, Timeout: 30 * time.Second}
}

// Permission is the platform's answer for location access.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionPrompt  Permission = "prompt"
)

// WatchID identifies one platform subscription.
type WatchID int64

// Source is the platform position provider. Callbacks may arrive on any
// goroutine until ClearWatch returns.
type Source interface {
	Watch(opts Options, onFix func(geo.Sample), onErr func(*Error)) (WatchID, error)
	ClearWatch(id WatchID)
	Permission(ctx context.Context) (Permission, error)
	// RequestPermission prompts when the answer is still open and returns the outcome.
	RequestPermission(ctx context.Context) (Permission, error)
}
