package realtime

import (
	"context"

	"courier-driver/internal/general/contracts"
)

// Listener receives channel events. Nil fields are skipped. Callbacks run on the
// channel's reader goroutine (or the caller's, for state changes it causes) and
// must not block for long.
type Listener struct {
	OnState             func(ctx context.Context, state State)
	OnNewDelivery       func(ctx context.Context, n contracts.NewDeliveryNotice)
	OnDeliveryAssigned  func(ctx context.Context, n contracts.DeliveryNotice)
	OnDeliveryCancelled func(ctx context.Context, n contracts.DeliveryNotice)
	OnError             func(ctx context.Context, n contracts.ErrorNotice)
}
