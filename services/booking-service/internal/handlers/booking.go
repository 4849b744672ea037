package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/salonpanel/salonpanel/libs/auth"
	"github.com/salonpanel/salonpanel/libs/failure"
	"github.com/salonpanel/salonpanel/libs/httpx"
	"github.com/salonpanel/salonpanel/libs/validate"
	"github.com/salonpanel/salonpanel/libs/wallclock"
	"github.com/salonpanel/salonpanel/services/booking-service/internal/availability"
	"github.com/salonpanel/salonpanel/services/booking-service/internal/booking"
	"github.com/salonpanel/salonpanel/services/booking-service/internal/grouping"
	"github.com/salonpanel/salonpanel/services/booking-service/internal/model"
)

// Bookings is the booking.Service surface the HTTP layer drives.
type Bookings interface {
	Slots(ctx context.Context, bc auth.BusinessContext, date time.Time, staffID string) ([]wallclock.Minutes, error)
	Calendar(ctx context.Context, bc auth.BusinessContext, date time.Time) (booking.Calendar, error)
	Create(ctx context.Context, bc auth.BusinessContext, in booking.BookingInput, idempotencyKey string) (grouping.Group, bool, error)
	Edit(ctx context.Context, bc auth.BusinessContext, key string, in booking.BookingInput) (grouping.Group, error)
	SetStatus(ctx context.Context, bc auth.BusinessContext, key string, status model.Status) (grouping.Group, error)
	History(ctx context.Context, bc auth.BusinessContext, f booking.HistoryFilter) ([]grouping.Group, error)
}

type BookingHandler struct {
	svc    Bookings
	logger *slog.Logger
}

func NewBookingHandler(svc Bookings, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

// Mount registers the booking routes on r. Callers install auth.RequireAuth first.
func (h *BookingHandler) Mount(r chi.Router) {
	view := auth.RequirePermission(auth.PermAppointmentsView, h.logger)
	create := auth.RequirePermission(auth.PermAppointmentsCreate, h.logger)
	edit := auth.RequirePermission(auth.PermAppointmentsEdit, h.logger)

	r.With(view).Get("/api/v1/slots", h.Slots)
	r.With(view).Get("/api/v1/calendar", h.Calendar)
	r.With(view).Get("/api/v1/bookings", h.History)
	r.With(create).Post("/api/v1/bookings", h.Create)
	r.With(edit).Put("/api/v1/bookings/{groupID}", h.Edit)
	r.With(edit).Post("/api/v1/bookings/{groupID}/status", h.SetStatus)
}

type createBookingRequest struct {
	CustomerID string   `json:"customer_id" validate:"required"`
	StaffID    string   `json:"staff_id"`
	Date       string   `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime  string   `json:"start_time" validate:"required,wallclock"`
	ServiceIDs []string `json:"service_ids" validate:"required,min=1,dive,required"`
	Status     string   `json:"status" validate:"omitempty,oneof=scheduled confirmed completed cancelled no_show"`
	Notes      string   `json:"notes" validate:"max=1000"`
}

type editBookingRequest struct {
	CustomerID string   `json:"customer_id"`
	StaffID    string   `json:"staff_id"`
	Date       string   `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime  string   `json:"start_time" validate:"required,wallclock"`
	ServiceIDs []string `json:"service_ids" validate:"required,min=1,dive,required"`
	Notes      string   `json:"notes" validate:"max=1000"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=scheduled confirmed completed cancelled no_show"`
}

type serviceItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type bookingResponse struct {
	GroupID         string        `json:"group_id"`
	AppointmentIDs  []string      `json:"appointment_ids"`
	CustomerID      string        `json:"customer_id"`
	CustomerName    string        `json:"customer_name,omitempty"`
	StaffID         string        `json:"staff_id,omitempty"`
	StaffName       string        `json:"staff_name,omitempty"`
	Date            string        `json:"date"`
	StartTime       string        `json:"start_time"`
	EndTime         string        `json:"end_time"`
	Status          string        `json:"status"`
	Services        []serviceItem `json:"services"`
	TotalPriceCents int64         `json:"total_price_cents"`
	Notes           string        `json:"notes,omitempty"`
	ReminderSent    bool          `json:"reminder_sent"`
}

type slotsResponse struct {
	Date    string   `json:"date"`
	StaffID string   `json:"staff_id,omitempty"`
	Slots   []string `json:"slots"`
}

type calendarCell struct {
	Time          string `json:"time"`
	Placement     string `json:"placement"`
	GroupID       string `json:"group_id,omitempty"`
	CustomerName  string `json:"customer_name,omitempty"`
	ServiceName   string `json:"service_name,omitempty"`
	Status        string `json:"status,omitempty"`
	StartTime     string `json:"start_time,omitempty"`
	EndTime       string `json:"end_time,omitempty"`
	AppointmentID string `json:"appointment_id,omitempty"`
}

type calendarRow struct {
	StaffID   string         `json:"staff_id"`
	StaffName string         `json:"staff_name"`
	Cells     []calendarCell `json:"cells"`
}

type calendarResponse struct {
	Date  string        `json:"date"`
	Slots []string      `json:"slots"`
	Staff []calendarRow `json:"staff"`
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	bc, date, ok := h.dayRequest(w, r)
	if !ok {
		return
	}
	staffID := strings.TrimSpace(r.URL.Query().Get("staff_id"))
	slots, err := h.svc.Slots(r.Context(), bc, date, staffID)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, slotsResponse{
		Date:    date.Format(time.DateOnly),
		StaffID: staffID,
		Slots:   availability.Strings(slots),
	})
}

func (h *BookingHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	bc, date, ok := h.dayRequest(w, r)
	if !ok {
		return
	}
	cal, err := h.svc.Calendar(r.Context(), bc, date)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	resp := calendarResponse{
		Date:  cal.Date.Format(time.DateOnly),
		Slots: availability.Strings(cal.Slots),
		Staff: make([]calendarRow, 0, len(cal.Rows)),
	}
	for _, row := range cal.Rows {
		out := calendarRow{StaffID: row.Staff.ID, StaffName: row.Staff.Name, Cells: make([]calendarCell, 0, len(row.Cells))}
		for _, c := range row.Cells {
			cell := calendarCell{Time: c.Slot.String(), Placement: string(c.Placement)}
			if a := c.Appointment; a != nil {
				cell.GroupID = grouping.Key(*a)
				cell.AppointmentID = a.ID
				cell.CustomerName = a.CustomerName
				cell.ServiceName = a.ServiceName
				if g, ok := cal.Groups[cell.GroupID]; ok {
					cell.ServiceName = serviceNames(g)
				}
				cell.Status = string(a.Status)
				cell.StartTime = a.Start.String()
				cell.EndTime = a.End.String()
			}
			out.Cells = append(out.Cells, cell)
		}
		resp.Staff = append(resp.Staff, out)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func serviceNames(g grouping.Group) string {
	names := make([]string, 0, len(g.Services))
	for _, s := range g.Services {
		names = append(names, s.Name)
	}
	return strings.Join(names, ", ")
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	bc, ok := h.business(w, r)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := validate.Decode(r.Body, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	date, _ := time.Parse(time.DateOnly, req.Date)
	start, _ := wallclock.Parse(req.StartTime)

	g, replayed, err := h.svc.Create(r.Context(), bc, booking.BookingInput{
		CustomerID: strings.TrimSpace(req.CustomerID),
		StaffID:    strings.TrimSpace(req.StaffID),
		Date:       date,
		Start:      start,
		ServiceIDs: req.ServiceIDs,
		Status:     model.Status(req.Status),
		Notes:      strings.TrimSpace(req.Notes),
	}, strings.TrimSpace(r.Header.Get("Idempotency-Key")))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	httpx.WriteJSON(w, http.StatusCreated, toBookingResponse(g))
}

func (h *BookingHandler) Edit(w http.ResponseWriter, r *http.Request) {
	bc, ok := h.business(w, r)
	if !ok {
		return
	}
	var req editBookingRequest
	if err := validate.Decode(r.Body, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	date, _ := time.Parse(time.DateOnly, req.Date)
	start, _ := wallclock.Parse(req.StartTime)

	g, err := h.svc.Edit(r.Context(), bc, chi.URLParam(r, "groupID"), booking.BookingInput{
		CustomerID: strings.TrimSpace(req.CustomerID),
		StaffID:    strings.TrimSpace(req.StaffID),
		Date:       date,
		Start:      start,
		ServiceIDs: req.ServiceIDs,
		Notes:      strings.TrimSpace(req.Notes),
	})
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBookingResponse(g))
}

func (h *BookingHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	bc, ok := h.business(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := validate.Decode(r.Body, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	g, err := h.svc.SetStatus(r.Context(), bc, chi.URLParam(r, "groupID"), model.Status(req.Status))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBookingResponse(g))
}

func (h *BookingHandler) History(w http.ResponseWriter, r *http.Request) {
	bc, ok := h.business(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := booking.HistoryFilter{CustomerID: strings.TrimSpace(q.Get("customer_id"))}

	var err error
	if f.From, err = optionalDate("from", q.Get("from")); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if f.To, err = optionalDate("to", q.Get("to")); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if raw := q.Get("limit"); raw != "" {
		f.Limit, err = strconv.Atoi(raw)
		if err != nil || f.Limit <= 0 {
			httpx.WriteError(w, r, h.logger, failure.BadRequestFromString("limit must be a positive integer"))
			return
		}
	}

	groups, err := h.svc.History(r.Context(), bc, f)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	items := make([]bookingResponse, 0, len(groups))
	for _, g := range groups {
		items = append(items, toBookingResponse(g))
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) business(w http.ResponseWriter, r *http.Request) (auth.BusinessContext, bool) {
	bc, ok := auth.BusinessContextFrom(r.Context())
	if !ok {
		httpx.WriteError(w, r, h.logger, failure.Unauthorized("not authenticated"))
	}
	return bc, ok
}

func (h *BookingHandler) dayRequest(w http.ResponseWriter, r *http.Request) (auth.BusinessContext, time.Time, bool) {
	bc, ok := h.business(w, r)
	if !ok {
		return bc, time.Time{}, false
	}
	raw := r.URL.Query().Get("date")
	if err := validate.Var("date", raw, "required,datetime=2006-01-02"); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return bc, time.Time{}, false
	}
	date, _ := time.Parse(time.DateOnly, raw)
	return bc, date, true
}

func optionalDate(name, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if err := validate.Var(name, raw, "datetime=2006-01-02"); err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.DateOnly, raw)
}

func toBookingResponse(g grouping.Group) bookingResponse {
	services := make([]serviceItem, 0, len(g.Services))
	for _, s := range g.Services {
		services = append(services, serviceItem{ID: s.ID, Name: s.Name})
	}
	return bookingResponse{
		GroupID:         g.Key,
		AppointmentIDs:  g.AppointmentIDs,
		CustomerID:      g.CustomerID,
		CustomerName:    g.CustomerName,
		StaffID:         g.StaffID,
		StaffName:       g.StaffName,
		Date:            g.Date.Format(time.DateOnly),
		StartTime:       g.Start.String(),
		EndTime:         g.End.String(),
		Status:          string(g.Status),
		Services:        services,
		TotalPriceCents: g.TotalCents,
		Notes:           g.Notes,
		ReminderSent:    g.ReminderSent,
	}
}
