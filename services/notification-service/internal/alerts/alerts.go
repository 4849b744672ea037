// Package alerts texts a business when a booking is created for it.
package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/salonpanel/salonpanel/services/notification-service/internal/model"
	"github.com/salonpanel/salonpanel/services/notification-service/internal/sms"
	"github.com/segmentio/kafka-go"
)

const TopicBooked = "booking.appointment.booked.v1"

type Store interface {
	Settings(ctx context.Context, businessID string) (model.SMSSettings, error)
	Contact(ctx context.Context, businessID, customerID string) (model.Contact, error)
	RecordDelivery(ctx context.Context, d model.Delivery) error
}

// BookedEvent is the payload booking-service publishes for a new booking.
type BookedEvent struct {
	GroupID         string   `json:"group_id"`
	BusinessID      string   `json:"business_id"`
	CustomerID      string   `json:"customer_id"`
	AppointmentIDs  []string `json:"appointment_ids"`
	Date            string   `json:"date"`
	StartTime       string   `json:"start_time"`
	EndTime         string   `json:"end_time"`
	TotalPriceCents int64    `json:"total_price_cents"`
	Services        []struct {
		Name string `json:"name"`
	} `json:"services"`
}

type Alerter struct {
	store  Store
	sender sms.Sender
	logger *slog.Logger
}

func NewAlerter(store Store, sender sms.Sender, logger *slog.Logger) *Alerter {
	return &Alerter{store: store, sender: sender, logger: logger}
}

// Handle is the consumer.Handler for TopicBooked. Malformed events are dropped.
func (a *Alerter) Handle(ctx context.Context, msg kafka.Message) error {
	var evt BookedEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		a.logger.Error("invalid booked event payload", "err", err, "topic", msg.Topic)
		return nil
	}
	if evt.BusinessID == "" || evt.GroupID == "" || evt.Date == "" || evt.StartTime == "" {
		a.logger.Error("booked event missing required fields", "topic", msg.Topic, "group_id", evt.GroupID)
		return nil
	}
	date, err := time.Parse(time.DateOnly, evt.Date)
	if err != nil {
		a.logger.Error("booked event has invalid date", "date", evt.Date, "err", err)
		return nil
	}
	return a.Notify(ctx, evt, date)
}

// Notify sends the alert when the business has alerts switched on and a phone number.
// Transport failures are recorded, not returned, so the event is not redelivered.
func (a *Alerter) Notify(ctx context.Context, evt BookedEvent, date time.Time) error {
	s, err := a.store.Settings(ctx, evt.BusinessID)
	if err != nil {
		return fmt.Errorf("load sms settings: %w", err)
	}
	if !s.BusinessAlertsOn() {
		return nil
	}
	contact, err := a.store.Contact(ctx, evt.BusinessID, evt.CustomerID)
	if err != nil {
		return fmt.Errorf("load contact: %w", err)
	}
	if contact.BusinessPhone == "" {
		a.logger.Info("business alert skipped: no business phone", "business_id", evt.BusinessID)
		return nil
	}

	body := Text(evt, date, contact.CustomerName)
	delivery := model.Delivery{
		BusinessID: evt.BusinessID,
		Kind:       model.KindBusinessAlert,
		Recipient:  contact.BusinessPhone,
		Body:       body,
		Status:     model.DeliverySent,
		Provider:   a.sender.ProviderID(),
	}
	if len(evt.AppointmentIDs) > 0 {
		delivery.AppointmentID = evt.AppointmentIDs[0]
	}
	msgID, sendErr := a.sender.Send(ctx, contact.BusinessPhone, body)
	delivery.ProviderMessageID = msgID
	if sendErr != nil {
		delivery.Status = model.DeliveryFailed
		delivery.Error = sendErr.Error()
		a.logger.Error("business alert sms failed", "business_id", evt.BusinessID, "group_id", evt.GroupID, "err", sendErr)
	}
	return a.store.RecordDelivery(ctx, delivery)
}

// Text is the business-facing alert, already reduced to ASCII.
func Text(evt BookedEvent, date time.Time, customerName string) string {
	names := make([]string, 0, len(evt.Services))
	for _, s := range evt.Services {
		names = append(names, s.Name)
	}
	if customerName == "" {
		customerName = "Müşteri"
	}
	return sms.ASCII(fmt.Sprintf("Yeni randevu: %s, %s %s-%s. Hizmetler: %s. Tutar: %s TL",
		customerName, date.Format("02.01.2006"), evt.StartTime, evt.EndTime,
		strings.Join(names, ", "), formatCents(evt.TotalPriceCents),
	))
}

func formatCents(c int64) string {
	return fmt.Sprintf("%d,%02d", c/100, c%100)
}
