package models

import "math"

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether both axes are finite and in range.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// NormalizeLocation keeps a coordinate pair only when both values are present
// and valid. Out-of-range input is dropped rather than rejected: the record is
// stored without a location and never becomes a map marker.
func NormalizeLocation(lat, lng *float64) (*Coordinates, bool) {
	if lat == nil || lng == nil {
		return nil, false
	}
	c := Coordinates{Lat: *lat, Lng: *lng}
	if !c.Valid() {
		return nil, false
	}
	return &c, true
}
