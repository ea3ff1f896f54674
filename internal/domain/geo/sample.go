package geo

import (
	"errors"
	"math"
	"time"
)

// Point is a plain latitude/longitude pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Sample is one location fix. Only the most recent sample is ever retained.
type Sample struct {
	Point
	AccuracyMeters *float64  `json:"accuracy,omitempty"`
	CapturedAt     time.Time `json:"timestamp"`
}

var (
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
	ErrNegativeAccuracy = errors.New("accuracy cannot be negative")
)

// NewSample builds a validated sample captured at the given time (UTC).
func NewSample(lat, lng float64, accuracy *float64, capturedAt time.Time) (Sample, error) {
	s := Sample{
		Point:          Point{Lat: lat, Lng: lng},
		AccuracyMeters: accuracy,
		CapturedAt:     capturedAt.UTC(),
	}
	if err := s.Validate(); err != nil {
		return Sample{}, err
	}
	return s, nil
}

// Validate checks coordinate ranges and accuracy sign.
func (p Point) Validate() error {
	if p.Lat < -90 || p.Lat > 90 || math.IsNaN(p.Lat) {
		return ErrInvalidLatitude
	}
	if p.Lng < -180 || p.Lng > 180 || math.IsNaN(p.Lng) {
		return ErrInvalidLongitude
	}
	return nil
}

// Validate checks the point and the optional accuracy.
func (s Sample) Validate() error {
	if err := s.Point.Validate(); err != nil {
		return err
	}
	if s.AccuracyMeters != nil && *s.AccuracyMeters < 0 {
		return ErrNegativeAccuracy
	}
	return nil
}

// Age returns how old the sample is relative to now.
func (s Sample) Age(now time.Time) time.Duration {
	return now.Sub(s.CapturedAt)
}

// HaversineKM returns the great-circle distance between two points in kilometers.
func HaversineKM(a, b Point) float64 {
	const R = 6371.0 // Earth radius in km
	a1 := a.Lat * math.Pi / 180
	a2 := b.Lat * math.Pi / 180
	da := (b.Lat - a.Lat) * math.Pi / 180
	db := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(da/2)*math.Sin(da/2) +
		math.Cos(a1)*math.Cos(a2)*math.Sin(db/2)*math.Sin(db/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return R * c
}

// Interpolate returns the point at fraction t (0..1) along the straight segment a→b.
func Interpolate(a, b Point, t float64) Point {
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	return Point{
		Lat: a.Lat + (b.Lat-a.Lat)*t,
		Lng: a.Lng + (b.Lng-a.Lng)*t,
	}
}
