// Package grouping folds stored appointment rows (one per service) into logical bookings
// and plans the rows for a new or edited multi-service booking.
package grouping

import (
	"time"

	"github.com/salonpanel/salonpanel/libs/wallclock"
	"github.com/salonpanel/salonpanel/services/booking-service/internal/model"
)

type ServiceRef struct {
	ID   string
	Name string
}

// Group is one logical booking. Shared fields come from the first row seen for the key.
type Group struct {
	Key            string
	GroupID        string
	AppointmentIDs []string
	Services       []ServiceRef
	TotalCents     int64
	Date           time.Time
	Start          wallclock.Minutes
	End            wallclock.Minutes
	Status         model.Status
	CustomerID     string
	CustomerName   string
	StaffID        string
	StaffName      string
	Notes          string
	ReminderSent   bool
}

// Key is the group id of a row, or the row's own id for legacy ungrouped rows.
func Key(a model.Appointment) string {
	if a.GroupID != "" {
		return a.GroupID
	}
	return a.ID
}

// Fold collapses rows by Key, preserving the order in which keys first appear. Services
// are deduplicated by name; prices are summed over every row.
func Fold(rows []model.Appointment) []Group {
	groups := make([]Group, 0, len(rows))
	index := make(map[string]int, len(rows))
	seen := make(map[string]map[string]struct{}, len(rows))

	for _, row := range rows {
		key := Key(row)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			seen[key] = map[string]struct{}{}
			groups = append(groups, Group{
				Key:          key,
				GroupID:      row.GroupID,
				Date:         row.Date,
				Start:        row.Start,
				End:          row.End,
				Status:       row.Status,
				CustomerID:   row.CustomerID,
				CustomerName: row.CustomerName,
				StaffID:      row.StaffID,
				StaffName:    row.StaffName,
				Notes:        row.Notes,
				ReminderSent: row.ReminderSent,
			})
		}

		g := &groups[i]
		g.AppointmentIDs = append(g.AppointmentIDs, row.ID)
		g.TotalCents += row.PriceCents
		if _, dup := seen[key][row.ServiceName]; !dup {
			seen[key][row.ServiceName] = struct{}{}
			g.Services = append(g.Services, ServiceRef{ID: row.ServiceID, Name: row.ServiceName})
		}
	}
	return groups
}
