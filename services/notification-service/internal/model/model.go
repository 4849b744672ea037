package model

import (
	"time"

	"github.com/salonpanel/salonpanel/libs/wallclock"
)

const DefaultReminderMinutes = 60

// SMSSettings is a business's SMS configuration. VerificationEnabled is stored for the
// admin screens and has no effect here.
type SMSSettings struct {
	BusinessID                  string
	IsEnabled                   bool
	ReminderEnabled             bool
	ReminderMinutes             int
	BusinessNotificationEnabled bool
	VerificationEnabled         bool
	UpdatedAt                   time.Time
}

// DefaultSettings is what a business without a settings row gets: everything off.
func DefaultSettings(businessID string) SMSSettings {
	return SMSSettings{BusinessID: businessID, ReminderMinutes: DefaultReminderMinutes}
}

func (s SMSSettings) RemindersOn() bool {
	return s.IsEnabled && s.ReminderEnabled
}

func (s SMSSettings) BusinessAlertsOn() bool {
	return s.IsEnabled && s.BusinessNotificationEnabled
}

// Candidate is an appointment row that may be due for a reminder, joined with the
// names and phones the message needs.
type Candidate struct {
	AppointmentID string
	GroupID       string
	BusinessID    string
	BusinessName  string
	BusinessPhone string
	CustomerName  string
	CustomerPhone string
	Date          time.Time
	Start         wallclock.Minutes
	Status        string
	ReminderSent  bool
}

// Key identifies the logical booking: the group id, or the row id for ungrouped rows.
func (c Candidate) Key() string {
	if c.GroupID != "" {
		return c.GroupID
	}
	return c.AppointmentID
}

// StartsAt places the appointment's wall-clock start on its date in loc.
func (c Candidate) StartsAt(loc *time.Location) time.Time {
	return c.Start.On(c.Date, loc)
}

func (c Candidate) Remindable() bool {
	return c.Status == "scheduled" || c.Status == "confirmed"
}

type DeliveryKind string

const (
	KindReminder       DeliveryKind = "reminder"
	KindManualReminder DeliveryKind = "manual_reminder"
	KindBusinessAlert  DeliveryKind = "business_alert"
)

type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// Delivery is the record of one SMS attempt.
type Delivery struct {
	BusinessID        string
	AppointmentID     string
	Kind              DeliveryKind
	Recipient         string
	Body              string
	Status            DeliveryStatus
	Provider          string
	ProviderMessageID string
	Error             string
}

// Contact is who a business alert goes to and who it is about.
type Contact struct {
	BusinessName  string
	BusinessPhone string
	CustomerName  string
}
