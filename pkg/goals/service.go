package goals

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finapi/models"
	"finapi/pkg/apperr"
	"finapi/pkg/events"
	"finapi/pkg/logx"
	"finapi/pkg/money"
	"finapi/pkg/store"
)

const DefaultUpcomingDays = 30

type Service struct {
	store  store.Store
	events *events.Emitter
	log    *logx.Logger
	now    func() time.Time
}

func NewService(st store.Store, em *events.Emitter, log *logx.Logger) *Service {
	if log == nil {
		log = logx.Nop()
	}
	return &Service{store: st, events: em, log: log.WithComponent(logx.ComponentGoals), now: time.Now}
}

// SetClock overrides the time source used for target date checks.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

type Input struct {
	Name         string
	TargetAmount decimal.Decimal
	TargetDate   time.Time
	Description  *string
}

// Patch changes the named fields; nil leaves a field as is.
type Patch struct {
	Name         *string
	TargetAmount *decimal.Decimal
	TargetDate   *time.Time
	Description  *string
	Status       *models.GoalStatus
}

type List struct {
	Goals      []View     `json:"goals"`
	Statistics Statistics `json:"statistics"`
}

// ContributionResult is returned by Contribute. Completed is true only for
// the contribution that crossed the target.
type ContributionResult struct {
	Goal      View `json:"goal"`
	Completed bool `json:"completed"`
}

func (s *Service) validate(g *models.Goal, checkDate bool) error {
	var fields []apperr.FieldError
	if n := len([]rune(g.Name)); n == 0 || n > 200 {
		fields = append(fields, apperr.FieldError{Field: "name", Message: "name is required and must be at most 200 characters"})
	}
	if !g.TargetAmount.IsPositive() {
		fields = append(fields, apperr.FieldError{Field: "target_amount", Message: "target_amount must be greater than 0"})
	} else if fe := money.Check("target_amount", g.TargetAmount); fe != nil {
		fields = append(fields, *fe)
	}
	if checkDate && !g.TargetDate.After(s.now()) {
		fields = append(fields, apperr.FieldError{Field: "target_date", Message: "target_date must be in the future"})
	}
	switch len(fields) {
	case 0:
		return nil
	case 1:
		return apperr.Validation(fields[0].Message, fields...)
	}
	return apperr.Validation("validation failed", fields...)
}

func (s *Service) Create(ctx context.Context, userID uint, in Input) (*View, error) {
	g := &models.Goal{
		UserID:        userID,
		Name:          strings.TrimSpace(in.Name),
		TargetAmount:  in.TargetAmount,
		CurrentAmount: decimal.Zero,
		TargetDate:    in.TargetDate,
		Status:        models.GoalActive,
		Description:   trimmed(in.Description),
	}
	if err := s.validate(g, true); err != nil {
		return nil, err
	}
	if err := s.store.CreateGoal(ctx, g); err != nil {
		return nil, err
	}
	v := NewView(*g)
	return &v, nil
}

func (s *Service) Get(ctx context.Context, userID, id uint) (*View, error) {
	g, err := s.store.GoalByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	v := NewView(*g)
	return &v, nil
}

// List returns the caller's goals, optionally filtered by status, with
// statistics over the returned set. An unknown status is ignored.
func (s *Service) List(ctx context.Context, userID uint, status models.GoalStatus) (*List, error) {
	if !status.Valid() {
		status = ""
	}
	gs, err := s.store.ListGoals(ctx, userID, status)
	if err != nil {
		return nil, err
	}
	return &List{Goals: Views(gs), Statistics: Stats(gs)}, nil
}

// Update applies p. Status may only move along active<->paused and
// active|paused->cancelled; completion is reached through contributions or
// by lowering the target of an active goal to its current amount.
func (s *Service) Update(ctx context.Context, userID, id uint, p Patch) (*View, error) {
	var (
		out       models.Goal
		completed bool
	)
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		g, err := tx.LockGoal(ctx, userID, id)
		if err != nil {
			return err
		}
		if p.Name != nil {
			g.Name = strings.TrimSpace(*p.Name)
		}
		if p.TargetAmount != nil {
			g.TargetAmount = *p.TargetAmount
		}
		if p.TargetDate != nil {
			g.TargetDate = *p.TargetDate
		}
		if p.Description != nil {
			g.Description = trimmed(p.Description)
		}
		if p.Status != nil {
			to := *p.Status
			switch {
			case !to.Valid():
				return apperr.Field("status", "status must be one of active, completed, paused, cancelled")
			case to == models.GoalCompleted && g.Status != models.GoalCompleted:
				return apperr.Field("status", "goals are completed by contributing to them")
			case !CanTransition(g.Status, to):
				return apperr.Field("status", "cannot change status from "+string(g.Status)+" to "+string(to))
			}
			g.Status = to
		}
		if err := s.validate(g, p.TargetDate != nil); err != nil {
			return err
		}
		if g.Status == models.GoalActive && g.CurrentAmount.GreaterThanOrEqual(g.TargetAmount) {
			g.Status = models.GoalCompleted
			completed = true
		}
		if err := tx.UpdateGoal(ctx, g); err != nil {
			return err
		}
		out = *g
		return nil
	})
	if err != nil {
		return nil, err
	}
	if completed {
		s.events.Emit(ctx, events.New(events.GoalCompleted, userID, id).WithAmount(out.CurrentAmount))
	}
	v := NewView(out)
	return &v, nil
}

func (s *Service) Delete(ctx context.Context, userID, id uint) error {
	return s.store.DeleteGoal(ctx, userID, id)
}

// Contribute adds amount to the goal with its row locked, so concurrent
// contributions cannot both see the goal below target.
func (s *Service) Contribute(ctx context.Context, userID, id uint, amount decimal.Decimal) (*ContributionResult, error) {
	var (
		out       models.Goal
		completed bool
	)
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		g, err := tx.LockGoal(ctx, userID, id)
		if err != nil {
			return err
		}
		if completed, err = Contribute(g, amount); err != nil {
			return err
		}
		if err := tx.UpdateGoal(ctx, g); err != nil {
			return err
		}
		out = *g
		return nil
	})
	if err != nil {
		return nil, err
	}
	evs := []events.Event{events.New(events.GoalContributed, userID, id).WithAmount(amount)}
	if completed {
		s.log.InfoContext(ctx, "goal completed", "goal_id", id, "user_id", userID)
		evs = append(evs, events.New(events.GoalCompleted, userID, id).WithAmount(out.CurrentAmount))
	}
	s.events.Emit(ctx, evs...)
	return &ContributionResult{Goal: NewView(out), Completed: completed}, nil
}

// Upcoming lists active goals due within days, soonest first.
func (s *Service) Upcoming(ctx context.Context, userID uint, days int) ([]View, error) {
	if days < 0 {
		return nil, apperr.Field("days", "days must not be negative")
	}
	until := s.now().AddDate(0, 0, days)
	gs, err := s.store.UpcomingGoals(ctx, userID, until)
	if err != nil {
		return nil, err
	}
	return Views(gs), nil
}

// Active returns the caller's active goals with progress.
func (s *Service) Active(ctx context.Context, userID uint) ([]View, error) {
	gs, err := s.store.ListGoals(ctx, userID, models.GoalActive)
	if err != nil {
		return nil, err
	}
	return Views(gs), nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
