package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalPaused    GoalStatus = "paused"
	GoalCancelled GoalStatus = "cancelled"
)

func (s GoalStatus) Valid() bool {
	switch s {
	case GoalActive, GoalCompleted, GoalPaused, GoalCancelled:
		return true
	}
	return false
}

// Goal is a savings target. Status and CurrentAmount are only changed
// through the goals package so completion stays consistent.
type Goal struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	UserID        uint            `gorm:"index;not null" json:"user_id"`
	Name          string          `gorm:"size:200;not null" json:"name"`
	TargetAmount  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"target_amount"`
	CurrentAmount decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"current_amount"`
	TargetDate    time.Time       `gorm:"not null" json:"target_date"`
	Status        GoalStatus      `gorm:"size:10;not null;default:active" json:"status"`
	Description   *string         `gorm:"type:text" json:"description,omitempty"`
}
