package grouping

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/salonpanel/salonpanel/libs/failure"
	"github.com/salonpanel/salonpanel/libs/wallclock"
	"github.com/salonpanel/salonpanel/services/booking-service/internal/model"
)

// Rand is the randomness used to pick a staff member when none is requested.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

type Planner struct {
	rand  Rand
	newID func() string
}

func NewPlanner(r Rand) *Planner {
	if r == nil {
		r = globalRand{}
	}
	return &Planner{rand: r, newID: uuid.NewString}
}

type Request struct {
	BusinessID string
	CustomerID string
	// StaffID may be empty; a random active staff member is then assigned.
	StaffID  string
	Date     time.Time
	Start    wallclock.Minutes
	Services []model.Service
	Status   model.Status
	// GroupID is reused when re-planning an existing booking.
	GroupID string
	Notes   string
}

type Plan struct {
	GroupID         string
	StaffID         string
	Start           wallclock.Minutes
	End             wallclock.Minutes
	DurationMinutes int
	TotalCents      int64
	Rows            []model.Appointment
}

// Plan lays out one row per selected service. Every row shares the group id, staff,
// date, status and the combined [start, end) span; end wraps past midnight.
func (p *Planner) Plan(req Request, activeStaff []model.Staff) (Plan, error) {
	if len(req.Services) == 0 {
		return Plan{}, failure.BadRequestFromString("at least one service is required")
	}
	status := req.Status
	if status == "" {
		status = model.StatusScheduled
	}
	if !status.Valid() {
		return Plan{}, failure.BadRequestFromString("invalid status " + string(status))
	}

	plan := Plan{GroupID: req.GroupID, StaffID: req.StaffID, Start: req.Start}
	if plan.GroupID == "" {
		plan.GroupID = p.newID()
	}
	if plan.StaffID == "" && len(activeStaff) > 0 {
		plan.StaffID = activeStaff[p.rand.IntN(len(activeStaff))].ID
	}

	for _, svc := range req.Services {
		plan.DurationMinutes += svc.DurationMinutes
		plan.TotalCents += svc.PriceCents
	}
	plan.End = req.Start.Add(plan.DurationMinutes)

	plan.Rows = make([]model.Appointment, 0, len(req.Services))
	for _, svc := range req.Services {
		plan.Rows = append(plan.Rows, model.Appointment{
			BusinessID:  req.BusinessID,
			CustomerID:  req.CustomerID,
			StaffID:     plan.StaffID,
			ServiceID:   svc.ID,
			ServiceName: svc.Name,
			Date:        req.Date,
			Start:       plan.Start,
			End:         plan.End,
			Status:      status,
			PriceCents:  svc.PriceCents,
			GroupID:     plan.GroupID,
			Notes:       req.Notes,
		})
	}
	return plan, nil
}
