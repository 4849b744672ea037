// Package wallclock handles local wall-clock times of day as minutes since midnight.
// No timezone is attached; a Minutes value means the same thing on every date.
package wallclock

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Day is the number of minutes in one wall-clock day.
const Day = 24 * 60

// Minutes is a time of day expressed as minutes since midnight, in [0, Day).
type Minutes int

// Parse accepts "HH:MM" or "HH:MM:SS" (seconds are dropped).
func Parse(s string) (Minutes, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return Minutes(h*60 + m), nil
}

func MustParse(s string) Minutes {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// FromTime returns the wall-clock reading of t in its own location.
func FromTime(t time.Time) Minutes {
	return Minutes(t.Hour()*60 + t.Minute())
}

func (m Minutes) Hour() int   { return int(m) / 60 }
func (m Minutes) Minute() int { return int(m) % 60 }

// String formats as zero-padded "HH:MM".
func (m Minutes) String() string {
	return fmt.Sprintf("%02d:%02d", m.Hour(), m.Minute())
}

// Add moves m forward by d minutes, wrapping past midnight.
func (m Minutes) Add(d int) Minutes {
	v := (int(m) + d) % Day
	if v < 0 {
		v += Day
	}
	return Minutes(v)
}

// On anchors m to the calendar date of day in loc.
func (m Minutes) On(day time.Time, loc *time.Location) time.Time {
	y, mo, d := day.Date()
	return time.Date(y, mo, d, m.Hour(), m.Minute(), 0, 0, loc)
}

func (m Minutes) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Minutes) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
