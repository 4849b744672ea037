package booking

import (
	"context"
	"time"

	"github.com/salonpanel/salonpanel/libs/outbox"
	"github.com/salonpanel/salonpanel/services/booking-service/internal/model"
)

// Store is the persistence the booking service needs. storage.Repository implements it
// against Postgres.
type Store interface {
	// Services returns the active services among ids for the business.
	Services(ctx context.Context, businessID string, ids []string) ([]model.Service, error)
	ActiveStaff(ctx context.Context, businessID string) ([]model.Staff, error)
	WorkingHours(ctx context.Context, businessID string) ([]model.WorkingHourWindow, error)
	// AppointmentsOn returns the day's non-cancelled rows.
	AppointmentsOn(ctx context.Context, businessID string, date time.Time) ([]model.Appointment, error)
	// CustomerExists reports whether customerID is a customer of the business.
	CustomerExists(ctx context.Context, businessID, customerID string) (bool, error)
	// HistoryKeys returns the keys (see grouping.Key) of at most f.Limit bookings matching
	// f, newest first.
	HistoryKeys(ctx context.Context, businessID string, f HistoryFilter) ([]string, error)
	// GroupRows returns every row of the bookings identified by keys.
	GroupRows(ctx context.Context, businessID string, keys []string) ([]model.Appointment, error)
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side, scoped to one database transaction.
type Tx interface {
	// LockIdempotencyKey reserves key, returning the group it already produced, if any.
	LockIdempotencyKey(ctx context.Context, businessID, key string) (groupID string, found bool, err error)
	FinalizeIdempotency(ctx context.Context, businessID, key, groupID string) error
	// GroupRowsForUpdate locks every row whose group id, or own id for legacy rows, is key.
	GroupRowsForUpdate(ctx context.Context, businessID, key string) ([]model.Appointment, error)
	Insert(ctx context.Context, rows []model.Appointment) ([]string, error)
	Delete(ctx context.Context, businessID string, ids []string) error
	SetStatus(ctx context.Context, businessID string, ids []string, status model.Status) error
	Publish(ctx context.Context, evt outbox.Event) error
}

// HistoryFilter narrows History. Limit counts bookings, not rows.
type HistoryFilter struct {
	CustomerID string
	From       time.Time
	To         time.Time
	Limit      int
}
