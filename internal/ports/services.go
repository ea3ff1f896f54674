package ports

import (
	"context"

	"courier-driver/internal/domain/delivery"
	"courier-driver/internal/general/contracts"
)

// ----- Backend -----

// AuthAPI exchanges credentials for a token.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*contracts.LoginResponse, error)
}

// DeliveryAPI is the part of the backend the lifecycle controller drives.
type DeliveryAPI interface {
	GetDelivery(ctx context.Context, id string) (*delivery.Delivery, error)
	AcceptDelivery(ctx context.Context, id string) (*delivery.Delivery, error)
	UpdateStatus(ctx context.Context, id string, req contracts.StatusUpdateRequest) (*delivery.Delivery, error)
}

// DashboardAPI feeds the driver's home screen.
type DashboardAPI interface {
	ListMyDeliveries(ctx context.Context, status delivery.Status) ([]delivery.Delivery, error)
	ListAvailable(ctx context.Context) ([]delivery.Delivery, error)
	GetStats(ctx context.Context) (*contracts.DriverStats, error)
}

// ----- Presentation -----

// Notifier shows short transient messages to the driver.
type Notifier interface {
	Success(ctx context.Context, msg string)
	Error(ctx context.Context, msg string)
	Info(ctx context.Context, msg string)
}

// Navigator switches the active screen.
type Navigator interface {
	Navigate(ctx context.Context, route string)
}

// ----- Journal -----

// Journal publishes presence and delivery transitions for other services.
// Implementations must not block the caller on broker trouble.
type Journal interface {
	PresenceChanged(ctx context.Context, driverID string, online bool)
	DeliveryStatusChanged(ctx context.Context, driverID, deliveryID string, status delivery.Status, proofType string)
}
