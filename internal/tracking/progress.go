// Package tracking is the position-simulation and progress-estimation engine.
//
// Everything here is a pure function of a shipment snapshot and a clock
// reading, so concurrent polls of the same shipment always derive the same
// values and may race on the write-back without harm.
package tracking

import (
	"time"

	"github.com/shiva/shiptrack/internal/model"
	"github.com/shiva/shiptrack/pkg/geo"
)

// Policy names the rule that produced a progress value.
type Policy string

const (
	// PolicyTime derives progress from elapsed time over estimated duration.
	PolicyTime Policy = "time"
	// PolicyDistance derives progress from the stored current position.
	PolicyDistance Policy = "distance"
	// PolicyStored keeps the last stored value; inputs are insufficient.
	PolicyStored Policy = "stored"
	// PolicyFrozen keeps the last stored value; the status stops movement.
	PolicyFrozen Policy = "frozen"
)

// TimeProgress returns (now - createdAt) / estimatedHours, clamped to [0, 1].
// A non-positive estimate yields 0.
func TimeProgress(createdAt, now time.Time, estimatedHours float64) float64 {
	if estimatedHours <= 0 {
		return 0
	}
	elapsed := now.Sub(createdAt)
	total := time.Duration(estimatedHours * float64(time.Hour))
	if total <= 0 {
		return 0
	}
	return geo.Clamp01(float64(elapsed) / float64(total))
}

// DistanceProgress returns d(origin, current) / d(origin, dest), clamped to
// [0, 1]. A zero-length route counts as complete when origin and destination
// coincide, which is the only way its length can be zero.
func DistanceProgress(origin, current, dest model.Location) float64 {
	total := geo.HaversineKm(origin, dest)
	if total == 0 {
		if origin == dest {
			return 1
		}
		return 0
	}
	return geo.Clamp01(geo.HaversineKm(origin, current) / total)
}

// EstimateProgress picks one policy for s and returns its value.
//
// Selection order:
//  1. Frozen status (On Hold, Delivered, Cancelled) → stored value.
//  2. No destination → stored value.
//  3. Positive estimated hours → time-based.
//  4. Origin and current known → distance-based.
//  5. Otherwise → stored value.
func EstimateProgress(s *model.Shipment, now time.Time) (float64, Policy) {
	stored := geo.Clamp01(s.Progress)

	if s.Status.Frozen() {
		return stored, PolicyFrozen
	}
	if s.Destination == nil {
		return stored, PolicyStored
	}
	if s.EstimatedHours != nil && *s.EstimatedHours > 0 {
		return TimeProgress(s.CreatedAt, now, *s.EstimatedHours), PolicyTime
	}
	if s.Origin != nil && s.Current != nil {
		return DistanceProgress(*s.Origin, *s.Current, *s.Destination), PolicyDistance
	}
	return stored, PolicyStored
}
