package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/salonpanel/salonpanel/libs/db"
	"github.com/salonpanel/salonpanel/libs/failure"
	"github.com/salonpanel/salonpanel/libs/outbox"
	"github.com/salonpanel/salonpanel/libs/wallclock"
	"github.com/salonpanel/salonpanel/services/notification-service/internal/model"
)

const (
	EventSMSSent   = "notification.sms.sent.v1"
	EventSMSFailed = "notification.sms.failed.v1"
)

type Repository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool, outbox: outbox.NewRepository()}
}

const candidateSelect = `
	SELECT a.id::text, COALESCE(a.appointment_group_id::text, ''), a.business_id::text,
		b.name, b.phone, c.name, c.phone, a.appointment_date, a.start_minute, a.status, a.reminder_sent
	FROM appointments a
	JOIN businesses b ON b.id = a.business_id
	JOIN customers c ON c.id = a.customer_id`

func (r *Repository) Candidates(ctx context.Context, from, to time.Time) ([]model.Candidate, error) {
	rows, err := r.pool.Query(ctx, candidateSelect+`
		WHERE a.appointment_date BETWEEN $1 AND $2
			AND a.status IN ('scheduled', 'confirmed')
			AND a.reminder_sent = false
		ORDER BY a.business_id, a.appointment_date, a.start_minute, a.id
	`, from.Format(time.DateOnly), to.Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) Candidate(ctx context.Context, businessID, appointmentID string) (model.Candidate, error) {
	row := r.pool.QueryRow(ctx, candidateSelect+`
		WHERE a.business_id = $1 AND a.id::text = $2
	`, businessID, appointmentID)
	c, err := scanCandidate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Candidate{}, failure.NotFound("appointment")
	}
	return c, err
}

func scanCandidate(row pgx.Row) (model.Candidate, error) {
	var (
		c     model.Candidate
		start int16
	)
	err := row.Scan(
		&c.AppointmentID,
		&c.GroupID,
		&c.BusinessID,
		&c.BusinessName,
		&c.BusinessPhone,
		&c.CustomerName,
		&c.CustomerPhone,
		&c.Date,
		&start,
		&c.Status,
		&c.ReminderSent,
	)
	c.Start = wallclock.Minutes(start)
	return c, err
}

// ClaimReminder is the compare-and-set that makes a reminder at-most-once across
// overlapping scans and manual resends.
func (r *Repository) ClaimReminder(ctx context.Context, businessID, key string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET reminder_sent = true, updated_at = now()
		WHERE business_id = $1
			AND (appointment_group_id::text = $2 OR (appointment_group_id IS NULL AND id::text = $2))
			AND reminder_sent = false
	`, businessID, key)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) Settings(ctx context.Context, businessID string) (model.SMSSettings, error) {
	s := model.SMSSettings{BusinessID: businessID}
	err := r.pool.QueryRow(ctx, `
		SELECT is_enabled, reminder_enabled, reminder_minutes, business_notification_enabled, verification_enabled, updated_at
		FROM sms_settings
		WHERE business_id = $1
	`, businessID).Scan(&s.IsEnabled, &s.ReminderEnabled, &s.ReminderMinutes, &s.BusinessNotificationEnabled, &s.VerificationEnabled, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.DefaultSettings(businessID), nil
	}
	if err != nil {
		return model.SMSSettings{}, err
	}
	return s, nil
}

func (r *Repository) SaveSettings(ctx context.Context, s model.SMSSettings) (model.SMSSettings, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO sms_settings
			(business_id, is_enabled, reminder_enabled, reminder_minutes, business_notification_enabled, verification_enabled)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (business_id) DO UPDATE SET
			is_enabled = EXCLUDED.is_enabled,
			reminder_enabled = EXCLUDED.reminder_enabled,
			reminder_minutes = EXCLUDED.reminder_minutes,
			business_notification_enabled = EXCLUDED.business_notification_enabled,
			verification_enabled = EXCLUDED.verification_enabled,
			updated_at = now()
		RETURNING updated_at
	`, s.BusinessID, s.IsEnabled, s.ReminderEnabled, s.ReminderMinutes, s.BusinessNotificationEnabled, s.VerificationEnabled).Scan(&s.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		return model.SMSSettings{}, failure.NotFound("business")
	}
	return s, err
}

// Contact returns the business name and phone and the customer's name.
func (r *Repository) Contact(ctx context.Context, businessID, customerID string) (model.Contact, error) {
	var c model.Contact
	err := r.pool.QueryRow(ctx, `
		SELECT b.name, b.phone, COALESCE(c.name, '')
		FROM businesses b
		LEFT JOIN customers c ON c.id::text = $2 AND c.business_id = b.id
		WHERE b.id = $1
	`, businessID, customerID).Scan(&c.BusinessName, &c.BusinessPhone, &c.CustomerName)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Contact{}, failure.NotFound("business")
	}
	return c, err
}

// RecordDelivery stores the attempt and its outbox event in one transaction.
func (r *Repository) RecordDelivery(ctx context.Context, d model.Delivery) error {
	eventType := EventSMSSent
	if d.Status == model.DeliveryFailed {
		eventType = EventSMSFailed
	}
	aggregateID := d.AppointmentID
	if aggregateID == "" {
		aggregateID = d.BusinessID
	}
	evt, err := outbox.NewEvent(d.BusinessID, "sms_notification", aggregateID, eventType, map[string]any{
		"business_id":         d.BusinessID,
		"appointment_id":      d.AppointmentID,
		"kind":                string(d.Kind),
		"provider":            d.Provider,
		"provider_message_id": d.ProviderMessageID,
		"error_reason":        d.Error,
		"at":                  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("build delivery event: %w", err)
	}

	return r.pool.InTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO sms_notifications
				(business_id, appointment_id, kind, recipient, body, status, provider, provider_message_id, error)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, d.BusinessID, nullable(d.AppointmentID), string(d.Kind), d.Recipient, d.Body, string(d.Status),
			d.Provider, d.ProviderMessageID, d.Error)
		if err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
