package analytics

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"finapi/models"
	"finapi/pkg/apperr"
	"finapi/pkg/goals"
	"finapi/pkg/ledger"
	"finapi/pkg/logx"
	"finapi/pkg/store"
)

const recentTransactions = 5

type Service struct {
	store  store.Store
	log    *logx.Logger
	now    func() time.Time
	newRNG func() RNG
}

func NewService(st store.Store, log *logx.Logger) *Service {
	if log == nil {
		log = logx.Nop()
	}
	return &Service{
		store:  st,
		log:    log.WithComponent(logx.ComponentAnalytics),
		now:    time.Now,
		newRNG: seededRNG,
	}
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetRandom replaces the per-request randomness used by projections.
func (s *Service) SetRandom(newRNG func() RNG) {
	s.newRNG = newRNG
}

// seededRNG returns a PCG generator seeded from the OS so concurrent
// requests never share state.
func seededRNG() RNG {
	var seed [16]byte
	if _, err := crand.Read(seed[:]); err != nil {
		now := uint64(time.Now().UnixNano())
		return rand.New(rand.NewPCG(now, now>>1))
	}
	return rand.New(rand.NewPCG(binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:])))
}

// Monthly analyzes one calendar month. Zero year or month selects the
// current one.
func (s *Service) Monthly(ctx context.Context, userID uint, year, month int) (*Monthly, error) {
	now := s.now().UTC()
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if month < 1 || month > 12 {
		return nil, apperr.Field("month", "month must be between 1 and 12")
	}
	if year < 1900 || year > 9999 {
		return nil, apperr.Field("year", "year must be between 1900 and 9999")
	}
	start, end := MonthWindow(year, time.Month(month))
	txs, err := s.store.TransactionsBetween(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	m := Analyze(txs)
	m.Period = Period{Year: year, Month: month, StartDate: start, EndDate: end}
	return &m, nil
}

// Projections forecasts months ahead from the trailing six months of
// history. Zero months selects the default.
func (s *Service) Projections(ctx context.Context, userID uint, months int) (*Forecast, error) {
	if months == 0 {
		months = DefaultProjectionMonths
	}
	if months < 1 || months > MaxProjectionMonths {
		return nil, apperr.Field("months", "months must be between 1 and 24")
	}
	now := s.now().UTC()
	_, end := MonthWindow(now.Year(), now.Month())
	txs, err := s.store.TransactionsBetween(ctx, userID, now.AddDate(0, -historyMonths, 0), end)
	if err != nil {
		return nil, err
	}
	avgIncome, avgExpense := MonthlyAverages(txs)
	f := BuildForecast(avgIncome, avgExpense, now, months, s.newRNG())
	return &f, nil
}

type MonthlySummary struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

type GoalsSummary struct {
	TotalActiveGoals int          `json:"total_active_goals"`
	Goals            []goals.View `json:"goals"`
}

type Dashboard struct {
	TotalBalance       decimal.Decimal        `json:"total_balance"`
	MonthlySummary     MonthlySummary         `json:"monthly_summary"`
	AccountsSummary    *ledger.AccountSummary `json:"accounts_summary"`
	GoalsSummary       GoalsSummary           `json:"goals_summary"`
	RecentTransactions []models.Transaction   `json:"recent_transactions"`
}

// Dashboard gathers the overview. The reads are independent and run
// concurrently; the first failure cancels the rest.
func (s *Service) Dashboard(ctx context.Context, userID uint) (*Dashboard, error) {
	now := s.now().UTC()
	start, end := MonthWindow(now.Year(), now.Month())

	var (
		accts  []models.Account
		month  []models.Transaction
		active []models.Goal
		recent []models.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accts, err = s.store.ListAccounts(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		month, err = s.store.TransactionsBetween(gctx, userID, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		active, err = s.store.ListGoals(gctx, userID, models.GoalActive)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.store.RecentTransactions(gctx, userID, recentTransactions)
		return err
	})
	if err := g.Wait(); err != nil {
		s.log.Err(ctx, "dashboard", err, logx.FieldUserID, userID)
		return nil, err
	}

	sum := Analyze(month).Summary
	if recent == nil {
		recent = []models.Transaction{}
	}
	accounts := ledger.Summarize(accts)
	return &Dashboard{
		TotalBalance: accounts.TotalBalance,
		MonthlySummary: MonthlySummary{
			Income:  sum.TotalIncome,
			Expense: sum.TotalExpense,
			Balance: sum.Balance,
		},
		AccountsSummary: accounts,
		GoalsSummary: GoalsSummary{
			TotalActiveGoals: len(active),
			Goals:            goals.Views(active),
		},
		RecentTransactions: recent,
	}, nil
}
