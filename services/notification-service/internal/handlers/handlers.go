package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/salonpanel/salonpanel/libs/auth"
	"github.com/salonpanel/salonpanel/libs/failure"
	"github.com/salonpanel/salonpanel/libs/httpx"
	"github.com/salonpanel/salonpanel/libs/validate"
	"github.com/salonpanel/salonpanel/services/notification-service/internal/model"
)

type Resender interface {
	Resend(ctx context.Context, bc auth.BusinessContext, appointmentID string) error
}

type SettingsStore interface {
	Settings(ctx context.Context, businessID string) (model.SMSSettings, error)
	SaveSettings(ctx context.Context, s model.SMSSettings) (model.SMSSettings, error)
}

type NotificationHandler struct {
	reminders Resender
	settings  SettingsStore
	logger    *slog.Logger
}

func NewNotificationHandler(reminders Resender, settings SettingsStore, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{reminders: reminders, settings: settings, logger: logger}
}

// Mount registers the routes on r. Callers install auth.RequireAuth first.
func (h *NotificationHandler) Mount(r chi.Router) {
	r.With(auth.RequirePermission(auth.PermRemindersSend, h.logger)).
		Post("/api/v1/appointments/{appointmentID}/reminder", h.Resend)
	r.Get("/api/v1/sms-settings", h.GetSettings)
	r.With(auth.RequirePermission(auth.PermSettingsEdit, h.logger)).
		Put("/api/v1/sms-settings", h.PutSettings)
}

type settingsBody struct {
	IsEnabled                   bool   `json:"is_enabled"`
	ReminderEnabled             bool   `json:"reminder_enabled"`
	ReminderMinutes             int    `json:"reminder_minutes" validate:"required,min=5,max=2880"`
	BusinessNotificationEnabled bool   `json:"business_notification_enabled"`
	VerificationEnabled         bool   `json:"verification_enabled"`
	UpdatedAt                   string `json:"updated_at,omitempty"`
}

type resendResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
}

func (h *NotificationHandler) Resend(w http.ResponseWriter, r *http.Request) {
	bc, ok := h.business(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "appointmentID")
	if err := h.reminders.Resend(r.Context(), bc, id); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resendResponse{AppointmentID: id, Status: "sent"})
}

func (h *NotificationHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	bc, ok := h.business(w, r)
	if !ok {
		return
	}
	s, err := h.settings.Settings(r.Context(), bc.BusinessID)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toSettingsBody(s))
}

func (h *NotificationHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	bc, ok := h.business(w, r)
	if !ok {
		return
	}
	var req settingsBody
	if err := validate.Decode(r.Body, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	saved, err := h.settings.SaveSettings(r.Context(), model.SMSSettings{
		BusinessID:                  bc.BusinessID,
		IsEnabled:                   req.IsEnabled,
		ReminderEnabled:             req.ReminderEnabled,
		ReminderMinutes:             req.ReminderMinutes,
		BusinessNotificationEnabled: req.BusinessNotificationEnabled,
		VerificationEnabled:         req.VerificationEnabled,
	})
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	h.logger.Info("sms settings updated", "business_id", bc.BusinessID, "user_id", bc.UserID)
	httpx.WriteJSON(w, http.StatusOK, toSettingsBody(saved))
}

func (h *NotificationHandler) business(w http.ResponseWriter, r *http.Request) (auth.BusinessContext, bool) {
	bc, ok := auth.BusinessContextFrom(r.Context())
	if !ok {
		httpx.WriteError(w, r, h.logger, failure.Unauthorized("not authenticated"))
	}
	return bc, ok
}

func toSettingsBody(s model.SMSSettings) settingsBody {
	out := settingsBody{
		IsEnabled:                   s.IsEnabled,
		ReminderEnabled:             s.ReminderEnabled,
		ReminderMinutes:             s.ReminderMinutes,
		BusinessNotificationEnabled: s.BusinessNotificationEnabled,
		VerificationEnabled:         s.VerificationEnabled,
	}
	if !s.UpdatedAt.IsZero() {
		out.UpdatedAt = s.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return out
}
