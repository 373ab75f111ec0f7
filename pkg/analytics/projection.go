package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"finapi/models"
)

const (
	DefaultProjectionMonths = 6
	MaxProjectionMonths     = 24
	// trailing window used for the historical averages
	historyMonths = 6
)

var (
	variation     = decimal.RequireFromString("0.1")
	half          = decimal.RequireFromString("0.5")
	savingsShare  = decimal.RequireFromString("0.2")
	spendingShare = decimal.RequireFromString("0.8")
)

// RNG yields uniform values in [0, 1). *math/rand/v2.Rand satisfies it.
type RNG interface {
	Float64() float64
}

type Projection struct {
	Month            int             `json:"month"`
	Year             int             `json:"year"`
	ProjectedIncome  decimal.Decimal `json:"projected_income"`
	ProjectedExpense decimal.Decimal `json:"projected_expense"`
	ProjectedBalance decimal.Decimal `json:"projected_balance"`
}

type Averages struct {
	AvgIncome  decimal.Decimal `json:"avg_income"`
	AvgExpense decimal.Decimal `json:"avg_expense"`
	AvgBalance decimal.Decimal `json:"avg_balance"`
}

type Recommendations struct {
	SuggestedSavings decimal.Decimal `json:"suggested_savings"`
	SpendingLimit    decimal.Decimal `json:"spending_limit"`
}

type Forecast struct {
	HistoricalAverages Averages        `json:"historical_averages"`
	Projections        []Projection    `json:"projections"`
	Recommendations    Recommendations `json:"recommendations"`
}

// MonthlyAverages totals income and expense per calendar month (UTC) and
// averages them over the months that had any. Transfers are ignored.
func MonthlyAverages(txs []models.Transaction) (income, expense decimal.Decimal) {
	type totals struct{ income, expense decimal.Decimal }
	months := map[[2]int]*totals{}
	for _, t := range txs {
		if t.Type != models.TransactionIncome && t.Type != models.TransactionExpense {
			continue
		}
		d := t.Date.UTC()
		key := [2]int{d.Year(), int(d.Month())}
		m, ok := months[key]
		if !ok {
			m = &totals{income: decimal.Zero, expense: decimal.Zero}
			months[key] = m
		}
		if t.Type == models.TransactionIncome {
			m.income = m.income.Add(t.Amount)
		} else {
			m.expense = m.expense.Add(t.Amount)
		}
	}
	if len(months) == 0 {
		return decimal.Zero, decimal.Zero
	}
	income, expense = decimal.Zero, decimal.Zero
	for _, m := range months {
		income = income.Add(m.income)
		expense = expense.Add(m.expense)
	}
	n := decimal.NewFromInt(int64(len(months)))
	return income.Div(n), expense.Div(n)
}

// perturb scales v by a uniform factor in [0.95, 1.05).
func perturb(v decimal.Decimal, rng RNG) decimal.Decimal {
	r := decimal.NewFromFloat(rng.Float64())
	factor := decimal.NewFromInt(1).Add(r.Sub(half).Mul(variation))
	return v.Mul(factor).Round(2)
}

// Project forecasts months periods after from. Income and expense each get
// an independent draw from rng per month; all figures are rounded to 2
// places and the balance is the difference of the rounded figures.
func Project(avgIncome, avgExpense decimal.Decimal, from time.Time, months int, rng RNG) []Projection {
	first := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]Projection, 0, months)
	for i := 1; i <= months; i++ {
		d := first.AddDate(0, i, 0)
		inc := perturb(avgIncome, rng)
		exp := perturb(avgExpense, rng)
		out = append(out, Projection{
			Month:            int(d.Month()),
			Year:             d.Year(),
			ProjectedIncome:  inc,
			ProjectedExpense: exp,
			ProjectedBalance: inc.Sub(exp),
		})
	}
	return out
}

// BuildForecast combines the averages, the projection and the savings
// recommendations.
func BuildForecast(avgIncome, avgExpense decimal.Decimal, from time.Time, months int, rng RNG) Forecast {
	return Forecast{
		HistoricalAverages: Averages{
			AvgIncome:  avgIncome.Round(2),
			AvgExpense: avgExpense.Round(2),
			AvgBalance: avgIncome.Sub(avgExpense).Round(2),
		},
		Projections: Project(avgIncome, avgExpense, from, months, rng),
		Recommendations: Recommendations{
			SuggestedSavings: avgIncome.Mul(savingsShare).Round(2),
			SpendingLimit:    avgIncome.Mul(spendingShare).Round(2),
		},
	}
}
