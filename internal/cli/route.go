package cli

import (
	"fmt"
	"strconv"
	"strings"

	"courier-driver/internal/domain/geo"
)

// ParseRoute reads "lat,lng;lat,lng;..." into validated points.
func ParseRoute(s string) ([]geo.Point, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var out []geo.Point
	for i, part := range strings.Split(s, ";") {
		lat, lng, ok := strings.Cut(strings.TrimSpace(part), ",")
		if !ok {
			return nil, fmt.Errorf("route point %d: want lat,lng, got %q", i+1, part)
		}
		p := geo.Point{}
		var err error
		if p.Lat, err = strconv.ParseFloat(strings.TrimSpace(lat), 64); err != nil {
			return nil, fmt.Errorf("route point %d: latitude: %w", i+1, err)
		}
		if p.Lng, err = strconv.ParseFloat(strings.TrimSpace(lng), 64); err != nil {
			return nil, fmt.Errorf("route point %d: longitude: %w", i+1, err)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("route point %d: %w", i+1, err)
		}
		out = append(out, p)
	}
	return out, nil
}
