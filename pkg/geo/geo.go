// Package geo provides geographic utility functions for shipment tracking.
//
// Distances use the Haversine formula on WGS-84 coordinates. Positions are
// interpolated linearly in lat/lng space, not along the geodesic; the map
// front-end draws straight segments and the two must agree.
package geo

import (
	"math"

	"github.com/shiva/shiptrack/internal/model"
)

// ─── Constants ──────────────────────────────────────────────

const (
	// EarthRadiusKm is the mean radius of Earth in kilometers.
	EarthRadiusKm = 6371.0
)

// WorldCenter is the fallback position when neither endpoint is known.
var WorldCenter = model.Location{Lat: 0, Lng: 0}

// ─── Distance ───────────────────────────────────────────────

// HaversineKm returns the great-circle distance between two points in kilometers.
//
// Complexity: O(1)
func HaversineKm(a, b model.Location) float64 {
	dLat := degToRad(b.Lat - a.Lat)
	dLng := degToRad(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat +
		math.Cos(degToRad(a.Lat))*math.Cos(degToRad(b.Lat))*sinLng*sinLng

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// ─── Interpolation ──────────────────────────────────────────

// Interpolate returns origin + t*(dest - origin), applied to latitude and
// longitude independently. t is clamped to [0, 1].
func Interpolate(origin, dest model.Location, t float64) model.Location {
	t = Clamp01(t)
	// Endpoints are returned verbatim; o + 1*(d-o) is not always d in floating point.
	switch t {
	case 0:
		return origin
	case 1:
		return dest
	}
	return model.Location{
		Lat: origin.Lat + t*(dest.Lat-origin.Lat),
		Lng: origin.Lng + t*(dest.Lng-origin.Lng),
	}
}

// PositionAlong is Interpolate with optional endpoints. A missing endpoint
// collapses the segment onto the one that is present; with both missing the
// result is WorldCenter.
func PositionAlong(origin, dest *model.Location, t float64) model.Location {
	switch {
	case origin != nil && dest != nil:
		return Interpolate(*origin, *dest, t)
	case origin != nil:
		return *origin
	case dest != nil:
		return *dest
	default:
		return WorldCenter
	}
}

// Valid reports whether loc is a finite point within WGS-84 bounds.
func Valid(loc model.Location) bool {
	if math.IsNaN(loc.Lat) || math.IsNaN(loc.Lng) || math.IsInf(loc.Lat, 0) || math.IsInf(loc.Lng, 0) {
		return false
	}
	return loc.Lat >= -90 && loc.Lat <= 90 && loc.Lng >= -180 && loc.Lng <= 180
}

// ─── Helpers ────────────────────────────────────────────────

// Clamp01 bounds v to [0, 1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func degToRad(deg float64) float64 {
	return deg * (math.Pi / 180.0)
}
