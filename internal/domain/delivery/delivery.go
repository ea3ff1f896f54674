package delivery

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"courier-driver/internal/domain/geo"
)

// Address is either a free-form string or a structured postal address; the backend
// sends both shapes.
type Address struct {
	Raw          string   `json:"-"`
	Street       string   `json:"street,omitempty"`
	City         string   `json:"city,omitempty"`
	PostalCode   string   `json:"postalCode,omitempty"`
	Country      string   `json:"country,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	ContactName  string   `json:"contactName,omitempty"`
	ContactPhone string   `json:"contactPhone,omitempty"`
}

type addressObject Address

// UnmarshalJSON accepts a JSON string or object.
func (a *Address) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Address{Raw: s}
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*a = Address{}
		return nil
	}
	var obj addressObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*a = Address(obj)
	return nil
}

// MarshalJSON writes the raw string back when the address came in as one.
func (a Address) MarshalJSON() ([]byte, error) {
	if a.Raw != "" {
		return json.Marshal(a.Raw)
	}
	return json.Marshal(addressObject(a))
}

// String formats the address for display: "street, city".
func (a Address) String() string {
	if a.Raw != "" {
		return a.Raw
	}
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(a.Street); s != "" {
		parts = append(parts, s)
	}
	if c := strings.TrimSpace(a.City); c != "" {
		parts = append(parts, c)
	}
	return strings.Join(parts, ", ")
}

// Point returns the address coordinates when both are known.
func (a Address) Point() (geo.Point, bool) {
	if a.Latitude == nil || a.Longitude == nil {
		return geo.Point{}, false
	}
	return geo.Point{Lat: *a.Latitude, Lng: *a.Longitude}, true
}

type Item struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

type TrackingEntry struct {
	Status    Status     `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
	Location  *geo.Point `json:"location,omitempty"`
	Note      string     `json:"note,omitempty"`
}

type Pricing struct {
	DeliveryFee float64 `json:"deliveryFee"`
}

// Delivery is the client's read-mostly copy of a backend delivery record.
type Delivery struct {
	ID                  string          `json:"_id"`
	Number              string          `json:"deliveryNumber,omitempty"`
	RequesterID         string          `json:"requesterId,omitempty"`
	SupplierID          string          `json:"supplierId,omitempty"`
	DriverID            string          `json:"driverId,omitempty"`
	Status              Status          `json:"status"`
	PickupAddress       Address         `json:"pickupAddress"`
	DeliveryAddress     Address         `json:"deliveryAddress"`
	PickupCoordinates   *geo.Point      `json:"pickupCoordinates,omitempty"`
	DeliveryCoordinates *geo.Point      `json:"deliveryCoordinates,omitempty"`
	Items               []Item          `json:"items,omitempty"`
	Notes               string          `json:"notes,omitempty"`
	TrackingHistory     []TrackingEntry `json:"trackingHistory,omitempty"`
	PickupCode          string          `json:"pickupCode,omitempty"`
	DeliveryCode        string          `json:"deliveryCode,omitempty"`
	DeliveryFee         *float64        `json:"deliveryFee,omitempty"`
	Pricing             *Pricing        `json:"pricing,omitempty"`
	EstimatedDuration   *int            `json:"estimatedDuration,omitempty"` // minutes
	EstimatedDistance   *float64        `json:"estimatedDistance,omitempty"` // km
	CreatedAt           time.Time       `json:"createdAt,omitzero"`
	UpdatedAt           time.Time       `json:"updatedAt,omitzero"`
}

var (
	ErrEmptyDeliveryID = errors.New("delivery id cannot be empty")
	ErrNoExpectedCode  = errors.New("no confirmation code bound to this delivery")
)

// Validate checks the invariants the client relies on.
func (d *Delivery) Validate() error {
	if d == nil || strings.TrimSpace(d.ID) == "" {
		return ErrEmptyDeliveryID
	}
	if !d.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// Fee returns the delivery fee from whichever field the backend filled.
func (d *Delivery) Fee() (float64, bool) {
	switch {
	case d.DeliveryFee != nil:
		return *d.DeliveryFee, true
	case d.Pricing != nil:
		return d.Pricing.DeliveryFee, true
	default:
		return 0, false
	}
}

// ExpectedCode returns the handoff code bound to stage.
func (d *Delivery) ExpectedCode(stage Stage) string {
	switch stage {
	case StagePickup:
		return d.PickupCode
	case StageDelivery:
		return d.DeliveryCode
	default:
		return ""
	}
}

// Clone returns a copy safe to hand to observers.
func (d *Delivery) Clone() *Delivery {
	if d == nil {
		return nil
	}
	cp := *d
	cp.Items = append([]Item(nil), d.Items...)
	cp.TrackingHistory = append([]TrackingEntry(nil), d.TrackingHistory...)
	return &cp
}

// Advance moves the cached status to next if the transition is allowed.
func (d *Delivery) Advance(next Status) error {
	if !d.Status.CanTransitionTo(next) {
		return ErrInvalidStatusSwitch
	}
	d.Status = next
	d.UpdatedAt = time.Now().UTC()
	return nil
}
