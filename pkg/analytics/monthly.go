// Package analytics computes read-side summaries over a user's ledger:
// monthly breakdowns, short forecasts and the dashboard.
package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"finapi/models"
)

const (
	Uncategorized = "Uncategorized"

	uncategorizedExpenseColor = "#6B7280"
	uncategorizedIncomeColor  = "#10B981"
)

var (
	hundred     = decimal.NewFromInt(100)
	highExpense = decimal.RequireFromString("0.8")
)

// MonthWindow returns [first day of month, first day of next month) in UTC.
func MonthWindow(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

type Period struct {
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type Summary struct {
	TotalIncome      decimal.Decimal `json:"total_income"`
	TotalExpense     decimal.Decimal `json:"total_expense"`
	Balance          decimal.Decimal `json:"balance"`
	SavingsRate      float64         `json:"savings_rate"`
	TransactionCount int             `json:"transaction_count"`
}

type CategoryTotal struct {
	Name   string          `json:"name"`
	Color  string          `json:"color"`
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

type DailyTotal struct {
	Day     int             `json:"day"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

type Alerts struct {
	OverBudget  bool `json:"over_budget"`
	LowSavings  bool `json:"low_savings"`
	HighExpense bool `json:"high_expense"`
}

type Monthly struct {
	Period             Period          `json:"period"`
	Summary            Summary         `json:"summary"`
	ExpensesByCategory []CategoryTotal `json:"expenses_by_category"`
	IncomeByCategory   []CategoryTotal `json:"income_by_category"`
	Daily              []DailyTotal    `json:"daily"`
	Alerts             Alerts          `json:"alerts"`
}

// SavingsRate is balance/income as a percentage rounded to 2 places, 0
// without income.
func SavingsRate(income, balance decimal.Decimal) float64 {
	if !income.IsPositive() {
		return 0
	}
	return balance.Mul(hundred).DivRound(income, 2).InexactFloat64()
}

// Analyze summarizes txs, which must already be scoped to one user and
// window. Transfers move money between the user's own accounts, so they
// count toward the transaction total but not toward income or expense.
func Analyze(txs []models.Transaction) Monthly {
	var (
		income, expense = decimal.Zero, decimal.Zero
		expByCat        = map[string]*CategoryTotal{}
		incByCat        = map[string]*CategoryTotal{}
		daily           = map[int]*DailyTotal{}
	)
	for i := range txs {
		t := &txs[i]
		var groups map[string]*CategoryTotal
		var fallback string
		switch t.Type {
		case models.TransactionIncome:
			income = income.Add(t.Amount)
			groups, fallback = incByCat, uncategorizedIncomeColor
		case models.TransactionExpense:
			expense = expense.Add(t.Amount)
			groups, fallback = expByCat, uncategorizedExpenseColor
		default:
			continue
		}

		name, color := Uncategorized, fallback
		if t.Category != nil {
			name, color = t.Category.Name, t.Category.Color
		}
		ct, ok := groups[name]
		if !ok {
			ct = &CategoryTotal{Name: name, Color: color, Amount: decimal.Zero}
			groups[name] = ct
		}
		ct.Amount = ct.Amount.Add(t.Amount)
		ct.Count++

		d := t.Date.UTC().Day()
		dt, ok := daily[d]
		if !ok {
			dt = &DailyTotal{Day: d, Income: decimal.Zero, Expense: decimal.Zero}
			daily[d] = dt
		}
		if t.Type == models.TransactionIncome {
			dt.Income = dt.Income.Add(t.Amount)
		} else {
			dt.Expense = dt.Expense.Add(t.Amount)
		}
		dt.Balance = dt.Income.Sub(dt.Expense)
	}

	balance := income.Sub(expense)
	rate := SavingsRate(income, balance)
	return Monthly{
		Summary: Summary{
			TotalIncome:      income,
			TotalExpense:     expense,
			Balance:          balance,
			SavingsRate:      rate,
			TransactionCount: len(txs),
		},
		ExpensesByCategory: sortedTotals(expByCat),
		IncomeByCategory:   sortedTotals(incByCat),
		Daily:              sortedDays(daily),
		Alerts: Alerts{
			OverBudget:  balance.IsNegative(),
			LowSavings:  rate < 10,
			HighExpense: expense.GreaterThan(income.Mul(highExpense)),
		},
	}
}

func sortedTotals(m map[string]*CategoryTotal) []CategoryTotal {
	out := make([]CategoryTotal, 0, len(m))
	for _, ct := range m {
		out = append(out, *ct)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Amount.Equal(out[j].Amount) {
			return out[i].Amount.GreaterThan(out[j].Amount)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func sortedDays(m map[int]*DailyTotal) []DailyTotal {
	out := make([]DailyTotal, 0, len(m))
	for _, dt := range m {
		out = append(out, *dt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}
