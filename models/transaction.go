package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionIncome   TransactionType = "income"
	TransactionExpense  TransactionType = "expense"
	TransactionTransfer TransactionType = "transfer"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionIncome, TransactionExpense, TransactionTransfer:
		return true
	}
	return false
}

// Transaction is one ledger entry. Amount is always a positive magnitude;
// Type decides the sign applied to the account balance. Transfers also
// credit TransferAccountID.
type Transaction struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	UserID            uint            `gorm:"index;not null" json:"user_id"`
	AccountID         uint            `gorm:"index;not null" json:"account_id"`
	Account           *Account        `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	CategoryID        uint            `gorm:"index;not null" json:"category_id"`
	Category          *Category       `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	TransferAccountID *uint           `gorm:"index" json:"transfer_account_id,omitempty"`
	TransferAccount   *Account        `gorm:"foreignKey:TransferAccountID" json:"transfer_account,omitempty"`
	Amount            decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Type              TransactionType `gorm:"size:10;not null" json:"type"`
	Date              time.Time       `gorm:"not null;index" json:"date"`
	Description       *string         `gorm:"type:text" json:"description,omitempty"`
}
