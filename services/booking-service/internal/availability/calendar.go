package availability

import (
	"github.com/salonpanel/salonpanel/libs/wallclock"
	"github.com/salonpanel/salonpanel/services/booking-service/internal/model"
)

// Cell is one staff member at one slot.
type Cell struct {
	Slot        wallclock.Minutes
	Placement   Placement
	Appointment *model.Appointment
}

// Row is one staff member's day.
type Row struct {
	Staff model.Staff
	Cells []Cell
}

// Grid lays appointments onto a staff-by-slot calendar. Appointments without a staff
// member do not appear. Callers filter out cancelled rows before building the grid.
func Grid(staff []model.Staff, slots []wallclock.Minutes, appts []model.Appointment) []Row {
	rows := make([]Row, 0, len(staff))
	for _, s := range staff {
		cells := make([]Cell, 0, len(slots))
		for _, slot := range slots {
			occ := Occupant(appts, s.ID, slot)
			cells = append(cells, Cell{Slot: slot, Placement: PlacementOf(occ, slot), Appointment: occ})
		}
		rows = append(rows, Row{Staff: s, Cells: cells})
	}
	return rows
}
