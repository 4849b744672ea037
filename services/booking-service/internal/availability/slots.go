package availability

import (
	"time"

	"github.com/salonpanel/salonpanel/libs/wallclock"
	"github.com/salonpanel/salonpanel/services/booking-service/internal/model"
)

// DefaultStep is the length of one bookable slot in minutes.
const DefaultStep = 30

// WindowFor picks the window that applies to staffID on weekday. A staff-specific window
// overrides the business-wide one; pass an empty staffID for the business calendar.
func WindowFor(windows []model.WorkingHourWindow, staffID string, weekday time.Weekday) (model.WorkingHourWindow, bool) {
	var fallback *model.WorkingHourWindow
	for i := range windows {
		w := windows[i]
		if w.DayOfWeek != weekday {
			continue
		}
		if staffID != "" && w.StaffID == staffID {
			return w, true
		}
		if w.StaffID == "" && fallback == nil {
			fallback = &windows[i]
		}
	}
	if fallback == nil {
		return model.WorkingHourWindow{}, false
	}
	return *fallback, true
}

// Slots returns the bookable start times for date: one every step minutes from the
// window's start while the slot starts before the window's end. A missing or closed
// window yields no slots. Each call returns a fresh slice.
func Slots(date time.Time, windows []model.WorkingHourWindow, staffID string, step int) []wallclock.Minutes {
	if step <= 0 {
		step = DefaultStep
	}
	win, ok := WindowFor(windows, staffID, date.Weekday())
	if !ok || win.IsClosed || win.End <= win.Start {
		return []wallclock.Minutes{}
	}

	slots := make([]wallclock.Minutes, 0, (int(win.End-win.Start)+step-1)/step)
	for cur := int(win.Start); cur < int(win.End); cur += step {
		slots = append(slots, wallclock.Minutes(cur))
	}
	return slots
}

// Strings formats slots as "HH:MM".
func Strings(slots []wallclock.Minutes) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.String()
	}
	return out
}
