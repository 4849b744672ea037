package storage

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/salonpanel/salonpanel/libs/db"
	"github.com/salonpanel/salonpanel/libs/failure"
	"github.com/salonpanel/salonpanel/libs/outbox"
	"github.com/salonpanel/salonpanel/libs/wallclock"
	"github.com/salonpanel/salonpanel/services/booking-service/internal/booking"
	"github.com/salonpanel/salonpanel/services/booking-service/internal/model"
)

type Repository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool, outbox: outbox.NewRepository()}
}

var _ booking.Store = (*Repository)(nil)

const appointmentColumns = `
	a.id::text, a.business_id::text, a.customer_id::text, COALESCE(c.name, ''),
	COALESCE(a.staff_id::text, ''), COALESCE(st.name, ''), a.service_id::text, COALESCE(sv.name, ''),
	a.appointment_date, a.start_minute, a.end_minute, a.status, a.price_cents,
	COALESCE(a.appointment_group_id::text, ''), a.reminder_sent, a.notes, a.created_at`

const appointmentJoins = `
	FROM appointments a
	LEFT JOIN customers c ON c.id = a.customer_id
	LEFT JOIN staff st ON st.id = a.staff_id
	LEFT JOIN services sv ON sv.id = a.service_id`

func (r *Repository) Services(ctx context.Context, businessID string, ids []string) ([]model.Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, business_id::text, name, duration_minutes, price_cents, is_active
		FROM services
		WHERE business_id = $1 AND id::text = ANY($2) AND is_active
	`, businessID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.BusinessID, &s.Name, &s.DurationMinutes, &s.PriceCents, &s.IsActive); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) ActiveStaff(ctx context.Context, businessID string) ([]model.Staff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, business_id::text, name, phone, is_active
		FROM staff
		WHERE business_id = $1 AND is_active
		ORDER BY name, id
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Staff
	for rows.Next() {
		var s model.Staff
		if err := rows.Scan(&s.ID, &s.BusinessID, &s.Name, &s.Phone, &s.IsActive); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) WorkingHours(ctx context.Context, businessID string) ([]model.WorkingHourWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT business_id::text, COALESCE(staff_id::text, ''), day_of_week, start_minute, end_minute, is_closed
		FROM working_hours
		WHERE business_id = $1
		ORDER BY day_of_week
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WorkingHourWindow
	for rows.Next() {
		var (
			w               model.WorkingHourWindow
			day, start, end int16
		)
		if err := rows.Scan(&w.BusinessID, &w.StaffID, &day, &start, &end, &w.IsClosed); err != nil {
			return nil, err
		}
		w.DayOfWeek = time.Weekday(day)
		w.Start, w.End = wallclock.Minutes(start), wallclock.Minutes(end)
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *Repository) AppointmentsOn(ctx context.Context, businessID string, date time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+appointmentJoins+`
		WHERE a.business_id = $1 AND a.appointment_date = $2 AND a.status <> 'cancelled'
		ORDER BY a.start_minute, a.created_at, a.id
	`, businessID, date.Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *Repository) CustomerExists(ctx context.Context, businessID, customerID string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM customers WHERE business_id = $1 AND id::text = $2)
	`, businessID, customerID).Scan(&ok)
	return ok, err
}

func (r *Repository) HistoryKeys(ctx context.Context, businessID string, f booking.HistoryFilter) ([]string, error) {
	var (
		where = []string{"a.business_id = $1"}
		args  = []any{businessID}
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.CustomerID != "" {
		add("a.customer_id::text = ?", f.CustomerID)
	}
	if !f.From.IsZero() {
		add("a.appointment_date >= ?", f.From.Format(time.DateOnly))
	}
	if !f.To.IsZero() {
		add("a.appointment_date <= ?", f.To.Format(time.DateOnly))
	}
	args = append(args, f.Limit)

	rows, err := r.pool.Query(ctx, `
		SELECT COALESCE(a.appointment_group_id, a.id)::text AS k
		FROM appointments a
		WHERE `+strings.Join(where, " AND ")+`
		GROUP BY 1
		ORDER BY MAX(a.appointment_date) DESC, MIN(a.start_minute) DESC, MIN(a.created_at), k
		LIMIT $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *Repository) GroupRows(ctx context.Context, businessID string, keys []string) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+appointmentJoins+`
		WHERE a.business_id = $1 AND COALESCE(a.appointment_group_id, a.id)::text = ANY($2)
		ORDER BY a.created_at, a.id
	`, businessID, keys)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *Repository) InTx(ctx context.Context, fn func(tx booking.Tx) error) error {
	return r.pool.InTx(ctx, func(tx pgx.Tx) error {
		return fn(&txStore{tx: tx, outbox: r.outbox})
	})
}

type txStore struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

func (t *txStore) LockIdempotencyKey(ctx context.Context, businessID, key string) (string, bool, error) {
	groupID, err := t.selectIdempotencyForUpdate(ctx, businessID, key)
	if err == nil {
		return groupID, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, err
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (business_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (business_id, idempotency_key) DO NOTHING
	`, businessID, key)
	if err != nil {
		return "", false, err
	}

	// A concurrent request may have committed between the select and the insert.
	groupID, err = t.selectIdempotencyForUpdate(ctx, businessID, key)
	if err != nil {
		return "", false, err
	}
	return groupID, groupID != "", nil
}

func (t *txStore) FinalizeIdempotency(ctx context.Context, businessID, key, groupID string) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET group_id = $3,
			status_code = 201,
			updated_at = now()
		WHERE business_id = $1 AND idempotency_key = $2
	`, businessID, key, groupID)
	return err
}

func (t *txStore) selectIdempotencyForUpdate(ctx context.Context, businessID, key string) (string, error) {
	var groupID string
	err := t.tx.QueryRow(ctx, `
		SELECT COALESCE(group_id::text, '')
		FROM booking_idempotency_keys
		WHERE business_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, businessID, key).Scan(&groupID)
	return groupID, err
}

func (t *txStore) GroupRowsForUpdate(ctx context.Context, businessID, key string) ([]model.Appointment, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+appointmentColumns+appointmentJoins+`
		WHERE a.business_id = $1
			AND (a.appointment_group_id::text = $2 OR (a.appointment_group_id IS NULL AND a.id::text = $2))
		ORDER BY a.created_at, a.id
		FOR UPDATE OF a
	`, businessID, key)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (t *txStore) Insert(ctx context.Context, appts []model.Appointment) ([]string, error) {
	ids := make([]string, 0, len(appts))
	for _, a := range appts {
		var id string
		err := t.tx.QueryRow(ctx, `
			INSERT INTO appointments
				(business_id, customer_id, staff_id, service_id, appointment_date, start_minute, end_minute,
				 status, price_cents, appointment_group_id, reminder_sent, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id::text
		`, a.BusinessID, a.CustomerID, nullable(a.StaffID), a.ServiceID, a.Date.Format(time.DateOnly),
			int16(a.Start), int16(a.End), string(a.Status), a.PriceCents, nullable(a.GroupID), a.ReminderSent, a.Notes,
		).Scan(&id)
		if db.IsForeignKeyViolation(err) {
			return nil, failure.BadRequestFromString("booking references a customer, staff member or service that does not exist")
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (t *txStore) Delete(ctx context.Context, businessID string, ids []string) error {
	_, err := t.tx.Exec(ctx, `
		DELETE FROM appointments
		WHERE business_id = $1 AND id::text = ANY($2)
	`, businessID, ids)
	return err
}

func (t *txStore) SetStatus(ctx context.Context, businessID string, ids []string, status model.Status) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET status = $3, updated_at = now()
		WHERE business_id = $1 AND id::text = ANY($2)
	`, businessID, ids, string(status))
	return err
}

func (t *txStore) Publish(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}

func scanAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		var (
			a          model.Appointment
			start, end int16
			status     string
		)
		if err := rows.Scan(
			&a.ID,
			&a.BusinessID,
			&a.CustomerID,
			&a.CustomerName,
			&a.StaffID,
			&a.StaffName,
			&a.ServiceID,
			&a.ServiceName,
			&a.Date,
			&start,
			&end,
			&status,
			&a.PriceCents,
			&a.GroupID,
			&a.ReminderSent,
			&a.Notes,
			&a.CreatedAt,
		); err != nil {
			return nil, err
		}
		a.Start, a.End = wallclock.Minutes(start), wallclock.Minutes(end)
		a.Status = model.Status(status)
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
