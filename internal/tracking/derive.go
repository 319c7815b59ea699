package tracking

import (
	"time"

	"github.com/shiva/shiptrack/internal/model"
	"github.com/shiva/shiptrack/pkg/geo"
)

// Derived is the freshly computed state of a shipment at one instant.
type Derived struct {
	Progress float64
	Position model.Location
	Policy   Policy
	Status   model.ShipmentStatus
	ETA      ETA

	// Changed is true when Progress or Position differ from the snapshot.
	Changed bool
	// Arrived is true when this derivation moves an In Transit shipment to 1.
	Arrived bool
}

// Derive runs the estimator, interpolator and ETA calculator over s.
//
// Only the time-based policy moves the shipment. Every other policy leaves
// the stored position in place (or places a shipment that has none on the
// segment at its stored progress).
func Derive(s *model.Shipment, now time.Time) Derived {
	progress, policy := EstimateProgress(s, now)

	var pos model.Location
	switch {
	case policy == PolicyTime:
		pos = geo.PositionAlong(s.Origin, s.Destination, progress)
	case s.Current != nil:
		pos = *s.Current
	default:
		pos = geo.PositionAlong(s.Origin, s.Destination, progress)
	}

	d := Derived{
		Progress: progress,
		Position: pos,
		Policy:   policy,
		Status:   StatusLabel(s.Status, progress),
	}
	d.Changed = s.Current == nil || *s.Current != pos || s.Progress != progress
	d.Arrived = !s.Status.Frozen() && progress >= 1

	d.ETA = EstimateETA(s, &pos, now)
	if d.Arrived {
		d.ETA = knownETA(ETAFixed, now, now)
	}
	return d
}

// StatusLabel returns the status shown to customers: an explicit stored
// On Hold/Delivered/Cancelled wins, otherwise progress decides.
func StatusLabel(stored model.ShipmentStatus, progress float64) model.ShipmentStatus {
	if stored.Frozen() {
		return stored
	}
	if progress >= 1 {
		return model.StatusDelivered
	}
	return model.StatusInTransit
}
