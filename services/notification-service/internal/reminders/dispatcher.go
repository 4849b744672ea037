// Package reminders sends appointment reminder SMS: a periodic scan for due reminders
// and the manual resend staff trigger from the calendar.
package reminders

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/salonpanel/salonpanel/services/notification-service/internal/model"
	"github.com/salonpanel/salonpanel/services/notification-service/internal/sms"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultInterval = time.Minute

type Config struct {
	Interval time.Duration
	// Location is the business timezone that appointment dates and times are read in.
	Location *time.Location
	Now      func() time.Time
}

type Dispatcher struct {
	store    Store
	sender   sms.Sender
	logger   *slog.Logger
	loc      *time.Location
	now      func() time.Time
	interval time.Duration

	mu   sync.Mutex
	cron *cron.Cron
}

func NewDispatcher(store Store, sender sms.Sender, logger *slog.Logger, cfg Config) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Dispatcher{
		store:    store,
		sender:   sender,
		logger:   logger,
		loc:      cfg.Location,
		now:      cfg.Now,
		interval: cfg.Interval,
	}
}

// Start schedules Scan every interval until Stop. Scans may overlap; the claim in
// ClaimReminder keeps each booking to one message.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cron != nil {
		return nil
	}

	clog := cronLogger{d.logger}
	c := cron.New(
		cron.WithLocation(d.loc),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog)),
	)
	if _, err := c.AddFunc("@every "+d.interval.String(), func() { d.Scan(ctx) }); err != nil {
		return fmt.Errorf("schedule reminder scan: %w", err)
	}
	c.Start()
	d.cron = c
	d.logger.Info("reminder dispatcher started", "interval", d.interval.String(), "timezone", d.loc.String())
	return nil
}

// Stop unschedules the scan and waits for a running one to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	c := d.cron
	d.cron = nil
	d.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	d.logger.Info("reminder dispatcher stopped")
}

type ScanResult struct {
	Candidates int
	Sent       int
	Failed     int
	Skipped    int
}

// Scan runs one pass: every booking whose reminder window has opened is claimed and,
// once claimed, messaged. Per-item errors are logged and recorded on the scan span and
// do not stop the pass.
func (d *Dispatcher) Scan(ctx context.Context) (res ScanResult) {
	ctx, span := otel.Tracer("reminders").Start(ctx, "reminders.scan")
	defer func() {
		span.SetAttributes(
			attribute.Int("reminders.candidates", res.Candidates),
			attribute.Int("reminders.sent", res.Sent),
			attribute.Int("reminders.failed", res.Failed),
			attribute.Int("reminders.skipped", res.Skipped),
		)
		span.End()
	}()

	now := d.now().In(d.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, d.loc)

	candidates, err := d.store.Candidates(ctx, today, today.AddDate(0, 0, 1))
	if err != nil {
		d.logger.Error("load reminder candidates failed", "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "load candidates")
		return res
	}
	res.Candidates = len(candidates)

	settings := map[string]*model.SMSSettings{}
	seen := map[string]struct{}{}
	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		if _, dup := seen[c.Key()]; dup {
			continue
		}

		s, ok := settings[c.BusinessID]
		if !ok {
			loaded, err := d.store.Settings(ctx, c.BusinessID)
			if err != nil {
				d.logger.Error("load sms settings failed", "business_id", c.BusinessID, "err", err)
				span.RecordError(err, trace.WithAttributes(attribute.String("business.id", c.BusinessID)))
			} else {
				s = &loaded
			}
			settings[c.BusinessID] = s
		}
		if s == nil || !s.RemindersOn() {
			continue
		}
		if !due(c, s.ReminderMinutes, now, d.loc) {
			continue
		}
		seen[c.Key()] = struct{}{}

		if c.CustomerPhone == "" {
			res.Skipped++
			continue
		}
		claimed, err := d.store.ClaimReminder(ctx, c.BusinessID, c.Key())
		if err != nil {
			d.logger.Error("claim reminder failed", "business_id", c.BusinessID, "appointment_id", c.AppointmentID, "err", err)
			span.RecordError(err, trace.WithAttributes(attribute.String("appointment.id", c.AppointmentID)))
			continue
		}
		if !claimed {
			res.Skipped++
			continue
		}

		if err := d.deliver(ctx, c, model.KindReminder, ReminderText(c, s.ReminderMinutes)); err != nil {
			span.RecordError(err, trace.WithAttributes(attribute.String("appointment.id", c.AppointmentID)))
			res.Failed++
			continue
		}
		res.Sent++
	}

	d.logger.Info("reminder scan finished",
		"candidates", res.Candidates,
		"sent", res.Sent,
		"failed", res.Failed,
		"skipped", res.Skipped,
	)
	return res
}

// due reports whether now falls in [start-lead, start).
func due(c model.Candidate, leadMinutes int, now time.Time, loc *time.Location) bool {
	start := c.StartsAt(loc)
	remindAt := start.Add(-time.Duration(leadMinutes) * time.Minute)
	return !now.Before(remindAt) && now.Before(start)
}

// deliver sends body to the customer and records the attempt. The send is never retried.
func (d *Dispatcher) deliver(ctx context.Context, c model.Candidate, kind model.DeliveryKind, body string) error {
	delivery := model.Delivery{
		BusinessID:    c.BusinessID,
		AppointmentID: c.AppointmentID,
		Kind:          kind,
		Recipient:     c.CustomerPhone,
		Body:          body,
		Status:        model.DeliverySent,
		Provider:      d.sender.ProviderID(),
	}
	msgID, sendErr := d.sender.Send(ctx, c.CustomerPhone, body)
	if sendErr != nil {
		delivery.Status = model.DeliveryFailed
		delivery.Error = sendErr.Error()
		d.logger.Error("reminder sms failed",
			"business_id", c.BusinessID,
			"appointment_id", c.AppointmentID,
			"kind", string(kind),
			"err", sendErr,
		)
	}
	delivery.ProviderMessageID = msgID

	if err := d.store.RecordDelivery(ctx, delivery); err != nil {
		d.logger.Error("record sms delivery failed", "appointment_id", c.AppointmentID, "err", err)
	}
	return sendErr
}

// cronLogger routes robfig/cron's internal logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
