package contracts

import "time"

// DriverStatusMessage is published when the driver's presence changes.
// Routing key: "driver.status.{driver_id}" on ExchangeDriverTopic.
type DriverStatusMessage struct {
	DriverID  string    `json:"driver_id"`
	Status    string    `json:"status"` // ONLINE|OFFLINE
	Timestamp time.Time `json:"timestamp"`
	Envelope
}

// DeliveryStatusMessage is published after a confirmed lifecycle transition.
// Routing key: "delivery.status.{status}" on ExchangeDriverTopic.
type DeliveryStatusMessage struct {
	DeliveryID string    `json:"delivery_id"`
	DriverID   string    `json:"driver_id"`
	Status     string    `json:"status"`
	ProofType  string    `json:"proof_type,omitempty"` // code|signature
	Timestamp  time.Time `json:"timestamp"`
	Envelope
}
