package auth

import (
	"context"
	"slices"
)

const RoleOwner = "owner"

// Permission names checked by staff-facing routes.
const (
	PermAppointmentsView   = "appointments.view"
	PermAppointmentsCreate = "appointments.create"
	PermAppointmentsEdit   = "appointments.edit"
	PermRemindersSend      = "reminders.send"
	PermSettingsEdit       = "settings.edit"
)

// BusinessContext identifies the caller and the business every operation runs against.
// It is passed explicitly; nothing reads it from ambient state.
type BusinessContext struct {
	BusinessID  string
	UserID      string
	Role        string
	Permissions []string
}

func FromClaims(c *Claims) BusinessContext {
	return BusinessContext{
		BusinessID:  c.BusinessID,
		UserID:      c.Subject,
		Role:        c.Role,
		Permissions: c.Permissions,
	}
}

// HasPermission reports whether the caller may perform the named action. Owners hold
// every permission.
func (bc BusinessContext) HasPermission(name string) bool {
	if bc.Role == RoleOwner {
		return true
	}
	return slices.Contains(bc.Permissions, name)
}

type ctxKey struct{}

func WithBusinessContext(ctx context.Context, bc BusinessContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, bc)
}

func BusinessContextFrom(ctx context.Context) (BusinessContext, bool) {
	bc, ok := ctx.Value(ctxKey{}).(BusinessContext)
	return bc, ok && bc.BusinessID != ""
}
