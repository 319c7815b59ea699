package tracking

import (
	"time"

	"github.com/shiva/shiptrack/internal/model"
	"github.com/shiva/shiptrack/pkg/geo"
)

// ETAState says whether an ETA could be computed. Neither non-known state is
// an error; both are rendered to the customer as-is.
type ETAState string

const (
	ETAKnown       ETAState = "known"
	ETACalculating ETAState = "calculating"
	ETAUnknown     ETAState = "unknown"
)

// ETAPolicy names the form that produced an ETA.
type ETAPolicy string

const (
	ETAFixed    ETAPolicy = "fixed"
	ETAObserved ETAPolicy = "observed"
)

// ArrivalLayout formats arrival times for display.
const ArrivalLayout = "Jan 2, 2006, 03:04 PM"

// Display strings for the non-known states.
const (
	DisplayCalculating = "Calculating..."
	DisplayUnknown     = "N/A"
)

// ETA is the estimated time of arrival of a shipment.
type ETA struct {
	State          ETAState   `json:"state"`
	Policy         ETAPolicy  `json:"policy,omitempty"`
	HoursRemaining *float64   `json:"hours_remaining,omitempty"`
	Arrival        *time.Time `json:"arrival,omitempty"`
	Display        string     `json:"display"`
}

func unknownETA() ETA {
	return ETA{State: ETAUnknown, Display: DisplayUnknown}
}

func knownETA(policy ETAPolicy, arrival, now time.Time) ETA {
	hours := arrival.Sub(now).Hours()
	if hours < 0 {
		hours = 0
	}
	arrival = arrival.UTC()
	return ETA{
		State:          ETAKnown,
		Policy:         policy,
		HoursRemaining: &hours,
		Arrival:        &arrival,
		Display:        arrival.Format(ArrivalLayout),
	}
}

// FixedETA returns createdAt + estimatedHours.
func FixedETA(createdAt time.Time, estimatedHours *float64, now time.Time) ETA {
	if createdAt.IsZero() || estimatedHours == nil || *estimatedHours <= 0 {
		return unknownETA()
	}
	arrival := createdAt.Add(time.Duration(*estimatedHours * float64(time.Hour)))
	return knownETA(ETAFixed, arrival, now)
}

// ObservedETA extrapolates the average speed so far (traveled km over
// elapsed hours) across the remaining distance. No movement yet yields the
// calculating state.
func ObservedETA(origin, current, dest *model.Location, createdAt, now time.Time) ETA {
	if origin == nil || current == nil || dest == nil || createdAt.IsZero() {
		return unknownETA()
	}

	remainingKm := geo.HaversineKm(*current, *dest)
	if remainingKm == 0 {
		return knownETA(ETAObserved, now, now)
	}

	elapsedH := now.Sub(createdAt).Hours()
	traveledKm := geo.HaversineKm(*origin, *current)
	if elapsedH <= 0 || traveledKm == 0 {
		return ETA{State: ETACalculating, Policy: ETAObserved, Display: DisplayCalculating}
	}

	speedKmph := traveledKm / elapsedH
	remainingH := remainingKm / speedKmph
	return knownETA(ETAObserved, now.Add(time.Duration(remainingH*float64(time.Hour))), now)
}

// EstimateETA picks one ETA form for s at the given current position.
// Fixed-duration wins whenever estimated hours are known, since that is the
// same input the time-based simulation moves the shipment by.
func EstimateETA(s *model.Shipment, current *model.Location, now time.Time) ETA {
	switch s.Status {
	case model.StatusDelivered:
		at := s.UpdatedAt
		if s.DeliveredAt != nil {
			at = *s.DeliveredAt
		}
		return knownETA(ETAFixed, at, now)
	case model.StatusCancelled, model.StatusOnHold:
		return unknownETA()
	}

	if s.EstimatedHours != nil && *s.EstimatedHours > 0 {
		return FixedETA(s.CreatedAt, s.EstimatedHours, now)
	}
	return ObservedETA(s.Origin, current, s.Destination, s.CreatedAt, now)
}
