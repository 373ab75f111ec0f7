package ledger

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"finapi/models"
	"finapi/pkg/apperr"
	"finapi/pkg/events"
	"finapi/pkg/money"
	"finapi/pkg/store"
)

type AccountInput struct {
	Name        string
	Type        models.AccountType
	Balance     decimal.Decimal // opening balance
	Color       *string
	Description *string
}

// AccountPatch changes account metadata. The balance is owned by the
// ledger and cannot be patched.
type AccountPatch struct {
	Name        *string
	Type        *models.AccountType
	Color       *string
	Description *string
}

type AccountList struct {
	Accounts     []models.Account `json:"accounts"`
	TotalBalance decimal.Decimal  `json:"total_balance"`
}

type TypeSummary struct {
	Count        int              `json:"count"`
	TotalBalance decimal.Decimal  `json:"total_balance"`
	Accounts     []models.Account `json:"accounts"`
}

type AccountSummary struct {
	Accounts       []models.Account                    `json:"accounts"`
	TotalBalance   decimal.Decimal                     `json:"total_balance"`
	AccountsByType map[models.AccountType]*TypeSummary `json:"accounts_by_type"`
	TotalAccounts  int                                 `json:"total_accounts"`
	RichestAccount *models.Account                     `json:"richest_account"`
}

type ReconcileResult struct {
	Account  *models.Account `json:"account"`
	Previous decimal.Decimal `json:"previous_balance"`
	Expected decimal.Decimal `json:"expected_balance"`
	Drift    decimal.Decimal `json:"drift"`
	Repaired bool            `json:"repaired"`
}

func validateAccount(a *models.Account) error {
	var c collector
	if n := len([]rune(a.Name)); n == 0 || n > 100 {
		c.add("name", "name is required and must be at most 100 characters")
	}
	if !a.Type.Valid() {
		c.add("type", "type must be one of bank, cash, savings, credit_card, investment")
	}
	if !colorRE.MatchString(a.Color) {
		c.add("color", "color must be a hex value like #3B82F6")
	}
	return c.err()
}

func (s *Service) CreateAccount(ctx context.Context, userID uint, in AccountInput) (*models.Account, error) {
	a := &models.Account{
		UserID:         userID,
		Name:           strings.TrimSpace(in.Name),
		Type:           in.Type,
		OpeningBalance: in.Balance,
		Balance:        in.Balance,
		Color:          models.DefaultAccountColor,
		Description:    trimmed(in.Description),
	}
	if in.Color != nil && strings.TrimSpace(*in.Color) != "" {
		a.Color = strings.TrimSpace(*in.Color)
	}
	var c collector
	if in.Balance.IsNegative() {
		c.add("balance", "opening balance must not be negative")
	} else {
		c.addErr(money.Check("balance", in.Balance))
	}
	if err := c.err(); err != nil {
		return nil, err
	}
	if err := validateAccount(a); err != nil {
		return nil, err
	}
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) GetAccount(ctx context.Context, userID, id uint) (*models.Account, error) {
	return s.store.AccountByID(ctx, userID, id)
}

func (s *Service) ListAccounts(ctx context.Context, userID uint) (*AccountList, error) {
	accts, err := s.store.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	if accts == nil {
		accts = []models.Account{}
	}
	return &AccountList{Accounts: accts, TotalBalance: TotalBalance(accts)}, nil
}

// TotalBalance sums the cached balances of accts.
func TotalBalance(accts []models.Account) decimal.Decimal {
	total := decimal.Zero
	for _, a := range accts {
		total = total.Add(a.Balance)
	}
	return total
}

func (s *Service) UpdateAccount(ctx context.Context, userID, id uint, p AccountPatch) (*models.Account, error) {
	var out *models.Account
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		a, err := tx.LockAccount(ctx, userID, id)
		if err != nil {
			return err
		}
		if p.Name != nil {
			a.Name = strings.TrimSpace(*p.Name)
		}
		if p.Type != nil {
			a.Type = *p.Type
		}
		if p.Color != nil {
			a.Color = strings.TrimSpace(*p.Color)
		}
		if p.Description != nil {
			a.Description = trimmed(p.Description)
		}
		if err := validateAccount(a); err != nil {
			return err
		}
		if err := tx.UpdateAccount(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteAccount refuses to delete an account referenced by any transaction.
func (s *Service) DeleteAccount(ctx context.Context, userID, id uint) error {
	return s.store.Atomic(ctx, func(tx store.Store) error {
		if _, err := tx.LockAccount(ctx, userID, id); err != nil {
			return err
		}
		n, err := tx.CountAccountTransactions(ctx, userID, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Referential("cannot delete an account that has transactions")
		}
		return tx.DeleteAccount(ctx, userID, id)
	})
}

func (s *Service) Summary(ctx context.Context, userID uint) (*AccountSummary, error) {
	accts, err := s.store.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Summarize(accts), nil
}

// Summarize groups accts by type. The richest account is the first one
// with the highest balance.
func Summarize(accts []models.Account) *AccountSummary {
	if accts == nil {
		accts = []models.Account{}
	}
	sum := &AccountSummary{
		Accounts:       accts,
		TotalBalance:   TotalBalance(accts),
		AccountsByType: map[models.AccountType]*TypeSummary{},
		TotalAccounts:  len(accts),
	}
	for i := range accts {
		a := accts[i]
		ts, ok := sum.AccountsByType[a.Type]
		if !ok {
			ts = &TypeSummary{TotalBalance: decimal.Zero}
			sum.AccountsByType[a.Type] = ts
		}
		ts.Count++
		ts.TotalBalance = ts.TotalBalance.Add(a.Balance)
		ts.Accounts = append(ts.Accounts, a)
		if sum.RichestAccount == nil || a.Balance.GreaterThan(sum.RichestAccount.Balance) {
			sum.RichestAccount = &a
		}
	}
	return sum
}

// Reconcile recomputes the balance from the ledger and repairs the cached
// value when they disagree.
func (s *Service) Reconcile(ctx context.Context, userID, id uint) (*ReconcileResult, error) {
	var res ReconcileResult
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		a, err := tx.LockAccount(ctx, userID, id)
		if err != nil {
			return err
		}
		txs, err := tx.AccountTransactions(ctx, userID, id)
		if err != nil {
			return err
		}
		expected := ExpectedBalance(a.OpeningBalance, id, txs)
		res = ReconcileResult{
			Previous: a.Balance,
			Expected: expected,
			Drift:    a.Balance.Sub(expected),
		}
		if !a.Balance.Equal(expected) {
			a.Balance = expected
			if err := tx.UpdateAccount(ctx, a); err != nil {
				return err
			}
			res.Repaired = true
		}
		res.Account = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.Repaired {
		s.log.WarnContext(ctx, "account balance drift repaired", "account_id", id, "drift", res.Drift.String())
		s.events.Emit(ctx, events.New(events.AccountReconciled, userID, id).WithAmount(res.Drift))
	}
	return &res, nil
}
