package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountBank       AccountType = "bank"
	AccountCash       AccountType = "cash"
	AccountSavings    AccountType = "savings"
	AccountCreditCard AccountType = "credit_card"
	AccountInvestment AccountType = "investment"
)

// DefaultAccountColor is used when an account is created without a color.
const DefaultAccountColor = "#3B82F6"

func (t AccountType) Valid() bool {
	switch t {
	case AccountBank, AccountCash, AccountSavings, AccountCreditCard, AccountInvestment:
		return true
	}
	return false
}

// Account is a money container. Balance is a cache kept equal to
// OpeningBalance plus the signed effects of every transaction touching it.
type Account struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	UserID         uint            `gorm:"index;not null" json:"user_id"`
	Name           string          `gorm:"size:100;not null" json:"name"`
	Type           AccountType     `gorm:"size:20;not null" json:"type"`
	OpeningBalance decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"opening_balance"`
	Balance        decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"balance"`
	Color          string          `gorm:"size:7;not null" json:"color"`
	Description    *string         `gorm:"type:text" json:"description,omitempty"`
}
