package reminders

import (
	"fmt"

	"github.com/salonpanel/salonpanel/services/notification-service/internal/model"
	"github.com/salonpanel/salonpanel/services/notification-service/internal/sms"
)

const dateLayout = "02.01.2006"

// ReminderText is the customer-facing reminder, already reduced to ASCII.
func ReminderText(c model.Candidate, leadMinutes int) string {
	return sms.ASCII(fmt.Sprintf(
		"Sayın %s, %s randevunuz %s tarihinde saat %s'dedir. Randevunuza %d dakika kaldı. Görüşmek üzere!",
		c.CustomerName, c.BusinessName, c.Date.Format(dateLayout), c.Start.String(), leadMinutes,
	))
}
