package models

import "time"

type CategoryType string

const (
	CategoryIncome  CategoryType = "income"
	CategoryExpense CategoryType = "expense"
)

func (t CategoryType) Valid() bool {
	return t == CategoryIncome || t == CategoryExpense
}

// Category is global reference data, seeded once and shared by all users.
type Category struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time    `json:"created_at"`
	Name        string       `gorm:"size:100;not null" json:"name"`
	Type        CategoryType `gorm:"size:10;not null" json:"type"`
	Color       string       `gorm:"size:7;not null" json:"color"`
	Description *string      `gorm:"type:text" json:"description,omitempty"`
}

// DefaultCategories is the seed set installed by migrations.
var DefaultCategories = []Category{
	{Name: "Food", Type: CategoryExpense, Color: "#EF4444"},
	{Name: "Transport", Type: CategoryExpense, Color: "#F97316"},
	{Name: "Housing", Type: CategoryExpense, Color: "#EAB308"},
	{Name: "Utilities", Type: CategoryExpense, Color: "#84CC16"},
	{Name: "Health", Type: CategoryExpense, Color: "#06B6D4"},
	{Name: "Education", Type: CategoryExpense, Color: "#3B82F6"},
	{Name: "Entertainment", Type: CategoryExpense, Color: "#8B5CF6"},
	{Name: "Clothing", Type: CategoryExpense, Color: "#EC4899"},
	{Name: "Loans", Type: CategoryExpense, Color: "#DC2626"},
	{Name: "Other Expenses", Type: CategoryExpense, Color: "#6B7280"},
	{Name: "Salary", Type: CategoryIncome, Color: "#10B981"},
	{Name: "Freelance", Type: CategoryIncome, Color: "#059669"},
	{Name: "Investments", Type: CategoryIncome, Color: "#047857"},
	{Name: "Bonuses", Type: CategoryIncome, Color: "#065F46"},
	{Name: "Sales", Type: CategoryIncome, Color: "#34D399"},
	{Name: "Other Income", Type: CategoryIncome, Color: "#6EE7B7"},
}
