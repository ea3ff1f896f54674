package contracts

import (
	"courier-driver/internal/domain/delivery"
	"courier-driver/internal/domain/user"
)

// LoginRequest is POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token and the account profile.
type LoginResponse struct {
	Token string       `json:"token"`
	User  user.Profile `json:"user"`
}

// StatusUpdateRequest is PUT /livreur/update-status/{id}. The proof for a gated
// transition travels in the same request.
type StatusUpdateRequest struct {
	Status            delivery.Status `json:"status"`
	PickupCode        string          `json:"pickupCode,omitempty"`
	PickupSignature   string          `json:"pickupSignature,omitempty"`
	DeliveryCode      string          `json:"deliveryCode,omitempty"`
	DeliverySignature string          `json:"deliverySignature,omitempty"`
}

// DeliveryResponse is the common envelope for delivery endpoints.
type DeliveryResponse struct {
	Success    bool                `json:"success"`
	Delivery   *delivery.Delivery  `json:"delivery,omitempty"`
	Deliveries []delivery.Delivery `json:"deliveries,omitempty"`
	Message    string              `json:"message,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// ErrorResponse is the body of a rejected call.
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

type TodayStats struct {
	Deliveries int     `json:"deliveries"`
	Earnings   float64 `json:"earnings"`
	Distance   float64 `json:"distance"` // km
	Rating     float64 `json:"rating"`
}

type TotalStats struct {
	Deliveries int     `json:"deliveries"`
	Earnings   float64 `json:"earnings"`
}

// DriverStats is GET /tms/driver/stats (under "data").
type DriverStats struct {
	Today TodayStats `json:"today"`
	Total TotalStats `json:"total"`
}

type StatsResponse struct {
	Data DriverStats `json:"data"`
}
