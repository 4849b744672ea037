package model

import (
	"time"

	"github.com/salonpanel/salonpanel/libs/wallclock"
)

type Service struct {
	ID              string
	BusinessID      string
	Name            string
	DurationMinutes int
	PriceCents      int64
	IsActive        bool
}

type Staff struct {
	ID         string
	BusinessID string
	Name       string
	Phone      string
	IsActive   bool
}

// WorkingHourWindow is the opening window for one weekday. StaffID is empty for the
// business-wide default.
type WorkingHourWindow struct {
	BusinessID string
	StaffID    string
	DayOfWeek  time.Weekday
	Start      wallclock.Minutes
	End        wallclock.Minutes
	IsClosed   bool
}
