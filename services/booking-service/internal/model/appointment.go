package model

import (
	"time"

	"github.com/salonpanel/salonpanel/libs/wallclock"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Appointment is one stored row: a single service booked for a customer. Rows booked
// together share GroupID.
type Appointment struct {
	ID           string
	BusinessID   string
	CustomerID   string
	CustomerName string
	StaffID      string
	StaffName    string
	ServiceID    string
	ServiceName  string
	Date         time.Time
	Start        wallclock.Minutes
	End          wallclock.Minutes
	Status       Status
	PriceCents   int64
	GroupID      string
	ReminderSent bool
	Notes        string
	CreatedAt    time.Time
}

// Occupies reports whether slot falls inside [Start, End). An End that wrapped past
// midnight is treated as running to the end of the day.
func (a Appointment) Occupies(slot wallclock.Minutes) bool {
	if a.End <= a.Start {
		return slot >= a.Start
	}
	return slot >= a.Start && slot < a.End
}
