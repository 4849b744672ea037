package reminders

import (
	"context"
	"fmt"

	"github.com/salonpanel/salonpanel/libs/auth"
	"github.com/salonpanel/salonpanel/libs/failure"
	"github.com/salonpanel/salonpanel/services/notification-service/internal/model"
)

// Resend sends the reminder for one appointment now, on staff request. It shares the
// claim with the scan, so a booking still gets at most one reminder.
func (d *Dispatcher) Resend(ctx context.Context, bc auth.BusinessContext, appointmentID string) error {
	c, err := d.store.Candidate(ctx, bc.BusinessID, appointmentID)
	if err != nil {
		return err
	}
	if !c.Remindable() {
		return failure.Conflict("appointment is " + c.Status)
	}
	s, err := d.store.Settings(ctx, bc.BusinessID)
	if err != nil {
		return fmt.Errorf("load sms settings: %w", err)
	}
	if !s.IsEnabled {
		return failure.BadRequestFromString("sms disabled")
	}
	if c.CustomerPhone == "" {
		return failure.Unprocessable("customer has no phone number")
	}

	claimed, err := d.store.ClaimReminder(ctx, bc.BusinessID, c.Key())
	if err != nil {
		return fmt.Errorf("claim reminder: %w", err)
	}
	if !claimed {
		return failure.Conflict("reminder already sent")
	}

	if err := d.deliver(ctx, c, model.KindManualReminder, ReminderText(c, s.ReminderMinutes)); err != nil {
		return failure.BadGateway("sms provider rejected the message")
	}
	d.logger.Info("reminder resent", "business_id", bc.BusinessID, "appointment_id", appointmentID, "user_id", bc.UserID)
	return nil
}
