package models

import (
	"encoding/json"

	dErrors "canopy/pkg/domain-errors"
)

// Point is a single vertex of a claim boundary.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Polygon is a claim's land boundary: one or more rings of points.
// Ring and point order are preserved as given; callers are responsible
// for closing each ring.
type Polygon [][]Point

// Clone returns a deep copy of the polygon.
func (p Polygon) Clone() Polygon {
	if p == nil {
		return nil
	}
	out := make(Polygon, len(p))
	for i, ring := range p {
		out[i] = append([]Point(nil), ring...)
	}
	return out
}

// Canonical returns the polygon's canonical structural serialization used as
// fingerprint input. JSON with fixed field order (lat before lng) and Go's
// shortest float encoding, which is stable for any given value.
func (p Polygon) Canonical() string {
	if len(p) == 0 {
		return "[]"
	}
	b, err := json.Marshal(p)
	if err != nil {
		// Marshalling [][]Point cannot fail for finite coordinates;
		// Validate rejects NaN/Inf before canonicalization is reached.
		return "[]"
	}
	return string(b)
}

// Validate checks structural and coordinate constraints.
func (p Polygon) Validate() error {
	if len(p) == 0 {
		return dErrors.New(dErrors.CodeValidation, "boundary must have at least one ring")
	}
	for _, ring := range p {
		if len(ring) < 4 {
			return dErrors.New(dErrors.CodeValidation, "boundary ring must have at least four points (closed ring)")
		}
		for _, pt := range ring {
			if pt.Lat < -90 || pt.Lat > 90 || pt.Lat != pt.Lat {
				return dErrors.New(dErrors.CodeValidation, "latitude out of range")
			}
			if pt.Lng < -180 || pt.Lng > 180 || pt.Lng != pt.Lng {
				return dErrors.New(dErrors.CodeValidation, "longitude out of range")
			}
		}
	}
	return nil
}
