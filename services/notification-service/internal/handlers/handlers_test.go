package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/salonpanel/salonpanel/libs/auth"
	"github.com/salonpanel/salonpanel/libs/failure"
	"github.com/salonpanel/salonpanel/services/notification-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResender struct {
	id  string
	err error
}

func (f *fakeResender) Resend(_ context.Context, _ auth.BusinessContext, id string) error {
	f.id = id
	return f.err
}

type memSettings struct {
	saved map[string]model.SMSSettings
}

func (m *memSettings) Settings(_ context.Context, businessID string) (model.SMSSettings, error) {
	if s, ok := m.saved[businessID]; ok {
		return s, nil
	}
	return model.DefaultSettings(businessID), nil
}

func (m *memSettings) SaveSettings(_ context.Context, s model.SMSSettings) (model.SMSSettings, error) {
	m.saved[s.BusinessID] = s
	return s, nil
}

func newRouter(res Resender, st SettingsStore, bc auth.BusinessContext) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithBusinessContext(req.Context(), bc)))
		})
	})
	NewNotificationHandler(res, st, logger).Mount(r)
	return r
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

var owner = auth.BusinessContext{BusinessID: "biz", UserID: "u", Role: auth.RoleOwner}

func TestResendRoute(t *testing.T) {
	res := &fakeResender{}
	h := newRouter(res, &memSettings{saved: map[string]model.SMSSettings{}}, owner)

	rec := serve(h, http.MethodPost, "/api/v1/appointments/a-1/reminder", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a-1", res.id)
	assert.JSONEq(t, `{"appointment_id":"a-1","status":"sent"}`, rec.Body.String())

	res.err = failure.Conflict("reminder already sent")
	rec = serve(h, http.MethodPost, "/api/v1/appointments/a-1/reminder", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"reminder already sent"}`, rec.Body.String())

	staff := auth.BusinessContext{BusinessID: "biz", Role: "staff"}
	rec = serve(newRouter(res, &memSettings{}, staff), http.MethodPost, "/api/v1/appointments/a-1/reminder", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSettingsRoutes(t *testing.T) {
	st := &memSettings{saved: map[string]model.SMSSettings{}}
	h := newRouter(&fakeResender{}, st, owner)

	rec := serve(h, http.MethodGet, "/api/v1/sms-settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"is_enabled":false,"reminder_enabled":false,"reminder_minutes":60,
		"business_notification_enabled":false,"verification_enabled":false}`, rec.Body.String())

	rec = serve(h, http.MethodPut, "/api/v1/sms-settings", `{"is_enabled":true,"reminder_enabled":true,"reminder_minutes":120}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, st.saved["biz"].RemindersOn())
	assert.Equal(t, 120, st.saved["biz"].ReminderMinutes)

	rec = serve(h, http.MethodPut, "/api/v1/sms-settings", `{"is_enabled":true,"reminder_minutes":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	staff := auth.BusinessContext{BusinessID: "biz", Role: "staff"}
	rec = serve(newRouter(&fakeResender{}, st, staff), http.MethodPut, "/api/v1/sms-settings", `{"reminder_minutes":30}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
