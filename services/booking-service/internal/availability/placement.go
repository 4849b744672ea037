package availability

import (
	"github.com/salonpanel/salonpanel/libs/wallclock"
	"github.com/salonpanel/salonpanel/services/booking-service/internal/model"
)

// Placement says how an occupied slot relates to its appointment.
type Placement string

const (
	PlacementFree         Placement = "free"
	PlacementStart        Placement = "start"
	PlacementContinuation Placement = "continuation"
)

// Occupant returns the appointment of staffID whose [start, end) covers slot. The result
// is nil for a free slot.
func Occupant(appts []model.Appointment, staffID string, slot wallclock.Minutes) *model.Appointment {
	for i := range appts {
		if appts[i].StaffID == staffID && appts[i].Occupies(slot) {
			return &appts[i]
		}
	}
	return nil
}

// PlacementOf classifies slot against the occupying appointment, if any.
func PlacementOf(a *model.Appointment, slot wallclock.Minutes) Placement {
	switch {
	case a == nil:
		return PlacementFree
	case a.Start == slot:
		return PlacementStart
	default:
		return PlacementContinuation
	}
}
