// Package booking holds the staff-facing booking operations: slot listing, the calendar
// grid, creating and editing multi-service bookings, status changes and history.
package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/salonpanel/salonpanel/libs/auth"
	"github.com/salonpanel/salonpanel/libs/failure"
	"github.com/salonpanel/salonpanel/libs/outbox"
	"github.com/salonpanel/salonpanel/libs/wallclock"
	"github.com/salonpanel/salonpanel/services/booking-service/internal/availability"
	"github.com/salonpanel/salonpanel/services/booking-service/internal/grouping"
	"github.com/salonpanel/salonpanel/services/booking-service/internal/model"
)

const (
	EventBooked        = "booking.appointment.booked.v1"
	EventUpdated       = "booking.appointment.updated.v1"
	EventCancelled     = "booking.appointment.cancelled.v1"
	EventStatusChanged = "booking.appointment.status_changed.v1"
)

type Service struct {
	store   Store
	planner *grouping.Planner
	logger  *slog.Logger
	step    int
}

type Config struct {
	SlotStepMinutes int
}

func NewService(store Store, planner *grouping.Planner, logger *slog.Logger, cfg Config) *Service {
	if cfg.SlotStepMinutes <= 0 {
		cfg.SlotStepMinutes = availability.DefaultStep
	}
	return &Service{store: store, planner: planner, logger: logger, step: cfg.SlotStepMinutes}
}

// Slots lists bookable start times for date, using staffID's own hours when it has any.
func (s *Service) Slots(ctx context.Context, bc auth.BusinessContext, date time.Time, staffID string) ([]wallclock.Minutes, error) {
	windows, err := s.store.WorkingHours(ctx, bc.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("load working hours: %w", err)
	}
	return availability.Slots(date, windows, staffID, s.step), nil
}

type Calendar struct {
	Date  time.Time
	Slots []wallclock.Minutes
	Rows  []availability.Row
	// Groups holds the day's bookings by grouping.Key, so a cell can show every service
	// of the booking its occupant row belongs to.
	Groups map[string]grouping.Group
}

// Calendar builds the day's staff-by-slot grid on the business-wide hours.
func (s *Service) Calendar(ctx context.Context, bc auth.BusinessContext, date time.Time) (Calendar, error) {
	windows, err := s.store.WorkingHours(ctx, bc.BusinessID)
	if err != nil {
		return Calendar{}, fmt.Errorf("load working hours: %w", err)
	}
	staff, err := s.store.ActiveStaff(ctx, bc.BusinessID)
	if err != nil {
		return Calendar{}, fmt.Errorf("load staff: %w", err)
	}
	appts, err := s.store.AppointmentsOn(ctx, bc.BusinessID, date)
	if err != nil {
		return Calendar{}, fmt.Errorf("load appointments: %w", err)
	}

	slots := availability.Slots(date, windows, "", s.step)
	groups := make(map[string]grouping.Group)
	for _, g := range grouping.Fold(appts) {
		groups[g.Key] = g
	}
	return Calendar{Date: date, Slots: slots, Rows: availability.Grid(staff, slots, appts), Groups: groups}, nil
}

type BookingInput struct {
	CustomerID string
	StaffID    string
	Date       time.Time
	Start      wallclock.Minutes
	ServiceIDs []string
	Status     model.Status
	Notes      string
}

// Create books every selected service as one group. A repeated idempotency key returns
// the booking the key first produced.
func (s *Service) Create(ctx context.Context, bc auth.BusinessContext, in BookingInput, idempotencyKey string) (grouping.Group, bool, error) {
	if in.CustomerID == "" {
		return grouping.Group{}, false, failure.BadRequestFromString("customer is required")
	}
	services, staff, err := s.loadSelection(ctx, bc.BusinessID, in)
	if err != nil {
		return grouping.Group{}, false, err
	}
	plan, err := s.planner.Plan(grouping.Request{
		BusinessID: bc.BusinessID,
		CustomerID: in.CustomerID,
		StaffID:    in.StaffID,
		Date:       in.Date,
		Start:      in.Start,
		Services:   services,
		Status:     in.Status,
		Notes:      in.Notes,
	}, staff)
	if err != nil {
		return grouping.Group{}, false, err
	}

	var (
		result   grouping.Group
		replayed bool
	)
	err = s.store.InTx(ctx, func(tx Tx) error {
		if idempotencyKey != "" {
			groupID, found, err := tx.LockIdempotencyKey(ctx, bc.BusinessID, idempotencyKey)
			if err != nil {
				return fmt.Errorf("lock idempotency key: %w", err)
			}
			if found && groupID != "" {
				rows, err := tx.GroupRowsForUpdate(ctx, bc.BusinessID, groupID)
				if err != nil {
					return err
				}
				if len(rows) > 0 {
					result, replayed = grouping.Fold(rows)[0], true
					return nil
				}
			}
		}

		rows, err := insertPlan(ctx, tx, plan)
		if err != nil {
			return err
		}
		result = grouping.Fold(rows)[0]
		if err := publish(ctx, tx, EventBooked, result, bc.BusinessID); err != nil {
			return err
		}
		if idempotencyKey != "" {
			if err := tx.FinalizeIdempotency(ctx, bc.BusinessID, idempotencyKey, plan.GroupID); err != nil {
				return fmt.Errorf("finalize idempotency key: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return grouping.Group{}, false, err
	}
	if !replayed {
		s.logger.Info("booking created",
			"business_id", bc.BusinessID,
			"group_id", result.GroupID,
			"services", len(result.Services),
			"staff_id", result.StaffID,
		)
	}
	return result, replayed, nil
}

// Edit replaces the rows of the booking identified by key with one row per currently
// selected service. The group id and status survive the edit; the reminder flag survives
// only when the appointment keeps its date and start time.
func (s *Service) Edit(ctx context.Context, bc auth.BusinessContext, key string, in BookingInput) (grouping.Group, error) {
	services, staff, err := s.loadSelection(ctx, bc.BusinessID, in)
	if err != nil {
		return grouping.Group{}, err
	}

	var result grouping.Group
	err = s.store.InTx(ctx, func(tx Tx) error {
		existing, err := tx.GroupRowsForUpdate(ctx, bc.BusinessID, key)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			return failure.NotFound("booking")
		}
		prev := grouping.Fold(existing)[0]

		customerID := in.CustomerID
		if customerID == "" {
			customerID = prev.CustomerID
		}
		plan, err := s.planner.Plan(grouping.Request{
			BusinessID: bc.BusinessID,
			CustomerID: customerID,
			StaffID:    in.StaffID,
			Date:       in.Date,
			Start:      in.Start,
			Services:   services,
			Status:     prev.Status,
			GroupID:    prev.GroupID,
			Notes:      in.Notes,
		}, staff)
		if err != nil {
			return err
		}
		if prev.ReminderSent && sameDay(prev.Date, in.Date) && prev.Start == in.Start {
			for i := range plan.Rows {
				plan.Rows[i].ReminderSent = true
			}
		}

		if err := tx.Delete(ctx, bc.BusinessID, prev.AppointmentIDs); err != nil {
			return fmt.Errorf("delete previous rows: %w", err)
		}
		rows, err := insertPlan(ctx, tx, plan)
		if err != nil {
			return err
		}
		result = grouping.Fold(rows)[0]
		return publish(ctx, tx, EventUpdated, result, bc.BusinessID)
	})
	if err != nil {
		return grouping.Group{}, err
	}
	s.logger.Info("booking edited", "business_id", bc.BusinessID, "group_id", result.GroupID, "services", len(result.Services))
	return result, nil
}

// SetStatus moves every row of the booking to status.
func (s *Service) SetStatus(ctx context.Context, bc auth.BusinessContext, key string, status model.Status) (grouping.Group, error) {
	if !status.Valid() {
		return grouping.Group{}, failure.BadRequestFromString("invalid status " + string(status))
	}

	var result grouping.Group
	err := s.store.InTx(ctx, func(tx Tx) error {
		rows, err := tx.GroupRowsForUpdate(ctx, bc.BusinessID, key)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return failure.NotFound("booking")
		}
		result = grouping.Fold(rows)[0]
		if result.Status == status {
			return nil
		}
		if err := tx.SetStatus(ctx, bc.BusinessID, result.AppointmentIDs, status); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		result.Status = status

		eventType := EventStatusChanged
		if status == model.StatusCancelled {
			eventType = EventCancelled
		}
		return publish(ctx, tx, eventType, result, bc.BusinessID)
	})
	if err != nil {
		return grouping.Group{}, err
	}
	return result, nil
}

// History returns the business's bookings grouped, newest first. The limit is applied to
// bookings before their rows are loaded, so every returned booking is complete.
func (s *Service) History(ctx context.Context, bc auth.BusinessContext, f HistoryFilter) ([]grouping.Group, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	keys, err := s.store.HistoryKeys(ctx, bc.BusinessID, f)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if len(keys) == 0 {
		return []grouping.Group{}, nil
	}
	rows, err := s.store.GroupRows(ctx, bc.BusinessID, keys)
	if err != nil {
		return nil, fmt.Errorf("load history rows: %w", err)
	}

	byKey := make(map[string]grouping.Group, len(keys))
	for _, g := range grouping.Fold(rows) {
		byKey[g.Key] = g
	}
	groups := make([]grouping.Group, 0, len(keys))
	for _, k := range keys {
		if g, ok := byKey[k]; ok {
			groups = append(groups, g)
		}
	}
	return groups, nil
}

// loadSelection validates the references in `in` against the business. An empty
// CustomerID is left to the caller; Edit keeps the booking's customer in that case.
func (s *Service) loadSelection(ctx context.Context, businessID string, in BookingInput) ([]model.Service, []model.Staff, error) {
	if in.CustomerID != "" {
		ok, err := s.store.CustomerExists(ctx, businessID, in.CustomerID)
		if err != nil {
			return nil, nil, fmt.Errorf("load customer: %w", err)
		}
		if !ok {
			return nil, nil, failure.BadRequestFromString("unknown customer")
		}
	}
	ids := dedupe(in.ServiceIDs)
	if len(ids) == 0 {
		return nil, nil, failure.BadRequestFromString("at least one service is required")
	}
	services, err := s.store.Services(ctx, businessID, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("load services: %w", err)
	}
	if len(services) != len(ids) {
		return nil, nil, failure.BadRequestFromString("unknown or inactive service")
	}

	staff, err := s.store.ActiveStaff(ctx, businessID)
	if err != nil {
		return nil, nil, fmt.Errorf("load staff: %w", err)
	}
	if in.StaffID != "" && !containsStaff(staff, in.StaffID) {
		return nil, nil, failure.BadRequestFromString("unknown or inactive staff member")
	}
	return orderLike(services, ids), staff, nil
}

func insertPlan(ctx context.Context, tx Tx, plan grouping.Plan) ([]model.Appointment, error) {
	ids, err := tx.Insert(ctx, plan.Rows)
	if err != nil {
		return nil, fmt.Errorf("insert appointments: %w", err)
	}
	rows := make([]model.Appointment, len(plan.Rows))
	copy(rows, plan.Rows)
	for i := range rows {
		rows[i].ID = ids[i]
	}
	return rows, nil
}

type serviceLine struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type bookingEvent struct {
	GroupID         string        `json:"group_id"`
	BusinessID      string        `json:"business_id"`
	CustomerID      string        `json:"customer_id"`
	StaffID         string        `json:"staff_id,omitempty"`
	AppointmentIDs  []string      `json:"appointment_ids"`
	Date            string        `json:"date"`
	StartTime       string        `json:"start_time"`
	EndTime         string        `json:"end_time"`
	Status          string        `json:"status"`
	Services        []serviceLine `json:"services"`
	TotalPriceCents int64         `json:"total_price_cents"`
}

func publish(ctx context.Context, tx Tx, eventType string, g grouping.Group, businessID string) error {
	lines := make([]serviceLine, 0, len(g.Services))
	for _, svc := range g.Services {
		lines = append(lines, serviceLine{ID: svc.ID, Name: svc.Name})
	}
	evt, err := outbox.NewEvent(businessID, "appointment_group", g.Key, eventType, bookingEvent{
		GroupID:         g.Key,
		BusinessID:      businessID,
		CustomerID:      g.CustomerID,
		StaffID:         g.StaffID,
		AppointmentIDs:  g.AppointmentIDs,
		Date:            g.Date.Format(time.DateOnly),
		StartTime:       g.Start.String(),
		EndTime:         g.End.String(),
		Status:          string(g.Status),
		Services:        lines,
		TotalPriceCents: g.TotalCents,
	})
	if err != nil {
		return fmt.Errorf("build %s event: %w", eventType, err)
	}
	if err := tx.Publish(ctx, evt); err != nil {
		return fmt.Errorf("write outbox event: %w", err)
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func containsStaff(staff []model.Staff, id string) bool {
	for _, s := range staff {
		if s.ID == id {
			return true
		}
	}
	return false
}

// orderLike returns services in the order the caller selected them.
func orderLike(services []model.Service, ids []string) []model.Service {
	byID := make(map[string]model.Service, len(services))
	for _, svc := range services {
		byID[svc.ID] = svc
	}
	out := make([]model.Service, 0, len(ids))
	for _, id := range ids {
		if svc, ok := byID[id]; ok {
			out = append(out, svc)
		}
	}
	return out
}
