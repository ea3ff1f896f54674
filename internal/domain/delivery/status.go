package delivery

import (
	"errors"
	"strings"
)

// Status is a delivery status as reported by the backend.
type Status string

const (
	StatusPending       Status = "pending"
	StatusAssigned      Status = "assigned"
	StatusPickupPending Status = "pickup_pending"
	StatusPickedUp      Status = "picked_up"
	StatusInTransit     Status = "in_transit"
	StatusDelivered     Status = "delivered"
	StatusCancelled     Status = "cancelled"
	StatusFailed        Status = "failed"
)

var (
	ErrInvalidStatus       = errors.New("invalid delivery status")
	ErrInvalidStatusSwitch = errors.New("invalid delivery status transition")
)

// ParseStatus normalizes (lowercases+trims) and validates a status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the allowed status constants.
func (status Status) Valid() bool {
	switch status {
	case StatusPending, StatusAssigned, StatusPickupPending, StatusPickedUp,
		StatusInTransit, StatusDelivered, StatusCancelled, StatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}

// Canonical folds aliases onto one state: pickup_pending is the same state as assigned.
func (status Status) Canonical() Status {
	if status == StatusPickupPending {
		return StatusAssigned
	}
	return status
}

// Is compares two statuses after alias folding.
func (status Status) Is(other Status) bool {
	return status.Canonical() == other.Canonical()
}

// IsTerminal reports whether no further driver action is possible.
func (status Status) IsTerminal() bool {
	switch status.Canonical() {
	case StatusDelivered, StatusCancelled, StatusFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the driver may move the delivery from status to next.
// Cancellation and failure are decided by the backend and never requested locally.
func (status Status) CanTransitionTo(next Status) bool {
	switch status.Canonical() {
	case StatusPending:
		return next.Canonical() == StatusAssigned
	case StatusAssigned:
		return next == StatusPickedUp
	case StatusPickedUp:
		return next == StatusInTransit
	case StatusInTransit:
		return next == StatusDelivered
	default:
		return false
	}
}

// Stage identifies which handoff a confirmation proves.
type Stage string

const (
	StagePickup   Stage = "pickup"
	StageDelivery Stage = "delivery"
)

// RequiredStage returns the proof stage needed to enter next, if any.
func RequiredStage(next Status) (Stage, bool) {
	switch next {
	case StatusPickedUp:
		return StagePickup, true
	case StatusDelivered:
		return StageDelivery, true
	default:
		return "", false
	}
}
