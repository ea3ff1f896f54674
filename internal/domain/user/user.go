package user

import (
	"errors"
	"strings"
)

// Vehicle describes the driver's registered vehicle.
type Vehicle struct {
	Type  string `json:"type,omitempty"`
	Model string `json:"model,omitempty"`
	Plate string `json:"plate,omitempty"`
}

// Profile is the display profile returned alongside the token and persisted under the
// "user" key.
type Profile struct {
	ID      string   `json:"id"`
	Email   string   `json:"email"`
	Name    string   `json:"name"`
	Role    Role     `json:"role"`
	Phone   string   `json:"phone,omitempty"`
	Vehicle *Vehicle `json:"vehicle,omitempty"`
}

var (
	ErrEmptyUserID = errors.New("user id cannot be empty")
	ErrEmptyRole   = errors.New("role cannot be empty")
)

// Validate checks the invariants a persisted or freshly issued profile must hold.
func (p *Profile) Validate() error {
	if p == nil || strings.TrimSpace(p.ID) == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(string(p.Role)) == "" {
		return ErrEmptyRole
	}
	return nil
}

// IsDriver reports whether the profile's role is a driver-equivalent role.
func (p *Profile) IsDriver() bool { return p != nil && p.Role.IsDriver() }
