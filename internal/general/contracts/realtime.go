package contracts

import (
	"encoding/json"
	"time"

	"courier-driver/internal/domain/delivery"
	"courier-driver/internal/domain/geo"
)

// Realtime event names.
const (
	EventDriverOnline   = "driver-online"
	EventDriverOffline  = "driver-offline"
	EventLocationUpdate = "location-update"

	EventNewDelivery       = "new-delivery"
	EventDeliveryAssigned  = "delivery-assigned"
	EventDeliveryCancelled = "delivery-cancelled"
	EventError             = "error"
)

// Frame is one realtime message: {"event": "...", "data": {...}}.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame marshals data under event.
func NewFrame(event string, data any) (Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Data: raw}, nil
}

// DriverPresence is the payload of driver-online / driver-offline.
type DriverPresence struct {
	DriverID string `json:"driverId"`
}

// LocationUpdate is the payload of location-update.
type LocationUpdate struct {
	DriverID  string    `json:"driverId"`
	Location  geo.Point `json:"location"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDeliveryNotice is the payload of new-delivery: the delivery plus the distance
// the backend computed for this driver.
type NewDeliveryNotice struct {
	delivery.Delivery
	Distance *float64 `json:"distance,omitempty"`
}

// DeliveryNotice is the payload of delivery-assigned / delivery-cancelled. The backend
// sends either a bare id or the whole record.
type DeliveryNotice struct {
	DeliveryID string             `json:"deliveryId,omitempty"`
	Delivery   *delivery.Delivery `json:"delivery,omitempty"`
	RawID      string             `json:"_id,omitempty"`
	Status     delivery.Status    `json:"status,omitempty"`
	Message    string             `json:"message,omitempty"`
}

// ID returns whichever identifier the notice carries.
func (n DeliveryNotice) ID() string {
	switch {
	case n.DeliveryID != "":
		return n.DeliveryID
	case n.Delivery != nil && n.Delivery.ID != "":
		return n.Delivery.ID
	default:
		return n.RawID
	}
}

// ErrorNotice is the payload of a transport-level error frame.
type ErrorNotice struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
