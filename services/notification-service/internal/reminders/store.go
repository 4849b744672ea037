package reminders

import (
	"context"
	"time"

	"github.com/salonpanel/salonpanel/services/notification-service/internal/model"
)

// Store is the data the dispatcher reads and the one write it guards sending with.
type Store interface {
	// Candidates returns scheduled or confirmed rows dated within [from, to] whose
	// reminder has not been sent.
	Candidates(ctx context.Context, from, to time.Time) ([]model.Candidate, error)
	// Candidate loads one row of the business regardless of its state.
	Candidate(ctx context.Context, businessID, appointmentID string) (model.Candidate, error)
	// Settings returns model.DefaultSettings when the business has none stored.
	Settings(ctx context.Context, businessID string) (model.SMSSettings, error)
	// ClaimReminder flips reminder_sent on every row of the booking identified by key and
	// reports whether this caller made the flip.
	ClaimReminder(ctx context.Context, businessID, key string) (bool, error)
	RecordDelivery(ctx context.Context, d model.Delivery) error
}
