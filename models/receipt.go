package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is an uploaded receipt image with the amount OCR suggested for it.
// Failed rows are kept so the user can still attach them by hand.
type Receipt struct {
	ID              uint                `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	UserID          uint                `gorm:"index;not null" json:"user_id"`
	FileName        string              `gorm:"size:255;not null" json:"file_name"`
	StorePath       string              `gorm:"size:512;not null" json:"store_path"`
	ContentType     string              `gorm:"size:128" json:"content_type,omitempty"`
	SuggestedAmount decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"suggested_amount"`
	Confidence      float64             `gorm:"not null;default:0" json:"confidence"`
	RawMatch        string              `gorm:"size:128" json:"raw_match,omitempty"`
	TransactionID   *uint               `gorm:"index" json:"transaction_id,omitempty"`
	Failed          bool                `gorm:"not null;default:false;index" json:"failed"`
	FailedReason    string              `gorm:"size:255" json:"failed_reason,omitempty"`
}
