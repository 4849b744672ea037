package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/salonpanel/salonpanel/libs/auth"
	"github.com/salonpanel/salonpanel/libs/failure"
	"github.com/salonpanel/salonpanel/libs/wallclock"
	"github.com/salonpanel/salonpanel/services/booking-service/internal/availability"
	"github.com/salonpanel/salonpanel/services/booking-service/internal/booking"
	"github.com/salonpanel/salonpanel/services/booking-service/internal/grouping"
	"github.com/salonpanel/salonpanel/services/booking-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBookings struct {
	created   booking.BookingInput
	key       string
	editKey   string
	status    model.Status
	history   booking.HistoryFilter
	slotsDate time.Time
	err       error
}

var sampleGroup = grouping.Group{
	Key:            "g-1",
	GroupID:        "g-1",
	AppointmentIDs: []string{"a-1", "a-2"},
	Services:       []grouping.ServiceRef{{ID: "s1", Name: "Sakal"}, {ID: "s2", Name: "Sac Kesimi"}},
	TotalCents:     13000,
	Date:           time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
	Start:          wallclock.MustParse("14:00"),
	End:            wallclock.MustParse("14:50"),
	Status:         model.StatusScheduled,
	CustomerID:     "cust",
}

func (f *fakeBookings) Slots(_ context.Context, _ auth.BusinessContext, date time.Time, _ string) ([]wallclock.Minutes, error) {
	f.slotsDate = date
	return []wallclock.Minutes{wallclock.MustParse("09:00"), wallclock.MustParse("09:30")}, f.err
}

func (f *fakeBookings) Calendar(_ context.Context, _ auth.BusinessContext, date time.Time) (booking.Calendar, error) {
	appts := []model.Appointment{
		{ID: "a-1", GroupID: "g-1", StaffID: "st-1", CustomerName: "Ayse", ServiceID: "s1", ServiceName: "Sakal", Start: wallclock.MustParse("09:00"), End: wallclock.MustParse("10:00")},
		{ID: "a-2", GroupID: "g-1", StaffID: "st-1", CustomerName: "Ayse", ServiceID: "s2", ServiceName: "Sac Kesimi", Start: wallclock.MustParse("09:00"), End: wallclock.MustParse("10:00")},
	}
	slots := []wallclock.Minutes{wallclock.MustParse("09:00"), wallclock.MustParse("09:30"), wallclock.MustParse("10:00")}
	return booking.Calendar{
		Date:   date,
		Slots:  slots,
		Rows:   availability.Grid([]model.Staff{{ID: "st-1", Name: "Ali"}}, slots, appts),
		Groups: map[string]grouping.Group{"g-1": grouping.Fold(appts)[0]},
	}, f.err
}

func (f *fakeBookings) Create(_ context.Context, _ auth.BusinessContext, in booking.BookingInput, key string) (grouping.Group, bool, error) {
	f.created, f.key = in, key
	return sampleGroup, key == "again", f.err
}

func (f *fakeBookings) Edit(_ context.Context, _ auth.BusinessContext, key string, _ booking.BookingInput) (grouping.Group, error) {
	f.editKey = key
	if f.err != nil {
		return grouping.Group{}, f.err
	}
	return sampleGroup, nil
}

func (f *fakeBookings) SetStatus(_ context.Context, _ auth.BusinessContext, key string, status model.Status) (grouping.Group, error) {
	f.editKey, f.status = key, status
	g := sampleGroup
	g.Status = status
	return g, f.err
}

func (f *fakeBookings) History(_ context.Context, _ auth.BusinessContext, filter booking.HistoryFilter) ([]grouping.Group, error) {
	f.history = filter
	return []grouping.Group{sampleGroup}, f.err
}

func newRouter(svc Bookings, bc *auth.BusinessContext) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	if bc != nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(auth.WithBusinessContext(req.Context(), *bc)))
			})
		})
	}
	NewBookingHandler(svc, logger).Mount(r)
	return r
}

var owner = &auth.BusinessContext{BusinessID: "biz", UserID: "u", Role: auth.RoleOwner}

func do(t *testing.T, h http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateBooking(t *testing.T) {
	svc := &fakeBookings{}
	h := newRouter(svc, owner)

	rec := do(t, h, http.MethodPost, "/api/v1/bookings",
		`{"customer_id":"cust","date":"2026-03-16","start_time":"14:00","service_ids":["s1","s2"]}`,
		"Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, "k-1", svc.key)
	assert.Equal(t, "14:00", svc.created.Start.String())
	assert.Equal(t, time.Monday, svc.created.Date.Weekday())
	assert.Equal(t, []string{"s1", "s2"}, svc.created.ServiceIDs)

	var body bookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "g-1", body.GroupID)
	assert.Equal(t, "14:50", body.EndTime)
	assert.Equal(t, int64(13000), body.TotalPriceCents)
	assert.Len(t, body.Services, 2)
	assert.Empty(t, rec.Header().Get("Idempotent-Replayed"))

	rec = do(t, h, http.MethodPost, "/api/v1/bookings",
		`{"customer_id":"cust","date":"2026-03-16","start_time":"14:00","service_ids":["s1"]}`,
		"Idempotency-Key", "again")
	assert.Equal(t, "true", rec.Header().Get("Idempotent-Replayed"))
}

func TestCreateBookingValidation(t *testing.T) {
	h := newRouter(&fakeBookings{}, owner)
	cases := map[string]string{
		"missing services": `{"customer_id":"c","date":"2026-03-16","start_time":"14:00"}`,
		"bad time":         `{"customer_id":"c","date":"2026-03-16","start_time":"2pm","service_ids":["s1"]}`,
		"bad date":         `{"customer_id":"c","date":"16/03/2026","start_time":"14:00","service_ids":["s1"]}`,
		"bad status":       `{"customer_id":"c","date":"2026-03-16","start_time":"14:00","service_ids":["s1"],"status":"done"}`,
		"not json":         `nope`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/v1/bookings", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestPermissionsEnforced(t *testing.T) {
	viewer := &auth.BusinessContext{BusinessID: "biz", Role: "staff", Permissions: []string{auth.PermAppointmentsView}}
	h := newRouter(&fakeBookings{}, viewer)

	rec := do(t, h, http.MethodPost, "/api/v1/bookings", `{}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/slots?date=2026-03-16", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, newRouter(&fakeBookings{}, nil), http.MethodGet, "/api/v1/slots?date=2026-03-16", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSlotsAndCalendar(t *testing.T) {
	svc := &fakeBookings{}
	h := newRouter(svc, owner)

	rec := do(t, h, http.MethodGet, "/api/v1/slots?date=2026-03-16&staff_id=st-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"date":"2026-03-16","staff_id":"st-1","slots":["09:00","09:30"]}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/v1/slots", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/calendar?date=2026-03-16", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cal calendarResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cal))
	require.Len(t, cal.Staff, 1)
	cells := cal.Staff[0].Cells
	require.Len(t, cells, 3)
	assert.Equal(t, "start", cells[0].Placement)
	assert.Equal(t, "g-1", cells[0].GroupID)
	assert.Equal(t, "Sakal, Sac Kesimi", cells[0].ServiceName)
	assert.Equal(t, "continuation", cells[1].Placement)
	assert.Equal(t, "Sakal, Sac Kesimi", cells[1].ServiceName)
	assert.Equal(t, "free", cells[2].Placement)
	assert.Empty(t, cells[2].GroupID)
}

func TestEditAndStatus(t *testing.T) {
	svc := &fakeBookings{}
	h := newRouter(svc, owner)

	rec := do(t, h, http.MethodPut, "/api/v1/bookings/g-1",
		`{"date":"2026-03-16","start_time":"15:00","service_ids":["s1"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "g-1", svc.editKey)

	rec = do(t, h, http.MethodPost, "/api/v1/bookings/g-1/status", `{"status":"cancelled"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.StatusCancelled, svc.status)

	svc.err = failure.NotFound("booking")
	rec = do(t, h, http.MethodPut, "/api/v1/bookings/missing",
		`{"date":"2026-03-16","start_time":"15:00","service_ids":["s1"]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"booking not found"}`, rec.Body.String())
}

func TestHistoryQuery(t *testing.T) {
	svc := &fakeBookings{}
	h := newRouter(svc, owner)

	rec := do(t, h, http.MethodGet, "/api/v1/bookings?customer_id=cust&from=2026-03-01&limit=20", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cust", svc.history.CustomerID)
	assert.Equal(t, 20, svc.history.Limit)
	assert.Equal(t, 2026, svc.history.From.Year())
	assert.True(t, svc.history.To.IsZero())

	rec = do(t, h, http.MethodGet, "/api/v1/bookings?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInternalErrorsAreMasked(t *testing.T) {
	svc := &fakeBookings{err: assert.AnError}
	rec := do(t, newRouter(svc, owner), http.MethodGet, "/api/v1/bookings", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, rec.Body.String())
}
