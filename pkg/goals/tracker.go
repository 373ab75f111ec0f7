// Package goals tracks savings goals and their progress toward a target.
package goals

import (
	"github.com/shopspring/decimal"

	"finapi/models"
	"finapi/pkg/apperr"
	"finapi/pkg/money"
)

var hundred = decimal.NewFromInt(100)

// Progress is current/target as a percentage rounded to 2 places, 0 when
// the target is not positive.
func Progress(g *models.Goal) float64 {
	if !g.TargetAmount.IsPositive() {
		return 0
	}
	return g.CurrentAmount.Mul(hundred).DivRound(g.TargetAmount, 2).InexactFloat64()
}

// Contribute adds amount to an active goal and reports whether this
// contribution completed it. Completed goals accept nothing further.
func Contribute(g *models.Goal, amount decimal.Decimal) (bool, error) {
	if !amount.IsPositive() {
		return false, apperr.Field("amount", "amount must be greater than 0")
	}
	if fe := money.Check("amount", amount); fe != nil {
		return false, apperr.Validation(fe.Message, *fe)
	}
	if g.Status != models.GoalActive {
		return false, apperr.Validation("only active goals accept contributions")
	}
	g.CurrentAmount = g.CurrentAmount.Add(amount)
	if g.CurrentAmount.GreaterThanOrEqual(g.TargetAmount) {
		g.Status = models.GoalCompleted
		return true, nil
	}
	return false, nil
}

// CanTransition reports whether an explicit update may move a goal from one
// status to another. Completion only happens through contributions.
func CanTransition(from, to models.GoalStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case models.GoalActive:
		return to == models.GoalPaused || to == models.GoalCancelled
	case models.GoalPaused:
		return to == models.GoalActive || to == models.GoalCancelled
	}
	return false
}

// View is a goal with its computed progress.
type View struct {
	models.Goal
	Progress float64 `json:"progress"`
}

func NewView(g models.Goal) View {
	return View{Goal: g, Progress: Progress(&g)}
}

func Views(gs []models.Goal) []View {
	out := make([]View, 0, len(gs))
	for _, g := range gs {
		out = append(out, NewView(g))
	}
	return out
}

type Statistics struct {
	TotalGoals         int             `json:"total_goals"`
	ActiveGoals        int             `json:"active_goals"`
	CompletedGoals     int             `json:"completed_goals"`
	TotalTargetAmount  decimal.Decimal `json:"total_target_amount"`
	TotalCurrentAmount decimal.Decimal `json:"total_current_amount"`
	OverallProgress    float64         `json:"overall_progress"`
}

func Stats(gs []models.Goal) Statistics {
	st := Statistics{TotalGoals: len(gs), TotalTargetAmount: decimal.Zero, TotalCurrentAmount: decimal.Zero}
	for _, g := range gs {
		switch g.Status {
		case models.GoalActive:
			st.ActiveGoals++
		case models.GoalCompleted:
			st.CompletedGoals++
		}
		st.TotalTargetAmount = st.TotalTargetAmount.Add(g.TargetAmount)
		st.TotalCurrentAmount = st.TotalCurrentAmount.Add(g.CurrentAmount)
	}
	st.OverallProgress = Progress(&models.Goal{TargetAmount: st.TotalTargetAmount, CurrentAmount: st.TotalCurrentAmount})
	return st
}
