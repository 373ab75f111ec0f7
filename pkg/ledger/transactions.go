package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"finapi/models"
	"finapi/pkg/apperr"
	"finapi/pkg/events"
	"finapi/pkg/money"
	"finapi/pkg/store"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type TransactionInput struct {
	AccountID         uint
	CategoryID        uint
	TransferAccountID *uint
	Amount            decimal.Decimal
	Type              models.TransactionType
	Date              *time.Time
	Description       *string
}

// TransactionPatch holds the fields to change; nil leaves a field as is.
// Changing the type away from transfer clears the transfer destination.
type TransactionPatch struct {
	AccountID         *uint
	CategoryID        *uint
	TransferAccountID *uint
	Amount            *decimal.Decimal
	Type              *models.TransactionType
	Date              *time.Time
	Description       *string
}

type ListParams struct {
	Type       models.TransactionType
	AccountID  uint
	CategoryID uint
	From       *time.Time
	To         *time.Time
	Page       int
	Limit      int
}

type Pagination struct {
	CurrentPage  int   `json:"current_page"`
	TotalPages   int   `json:"total_pages"`
	TotalItems   int64 `json:"total_items"`
	ItemsPerPage int   `json:"items_per_page"`
}

type TransactionPage struct {
	Transactions []models.Transaction `json:"transactions"`
	Pagination   Pagination           `json:"pagination"`
}

func validateTransaction(t *models.Transaction) error {
	var c collector
	if !t.Amount.IsPositive() {
		c.add("amount", "amount must be greater than 0")
	} else {
		c.addErr(money.Check("amount", t.Amount))
	}
	if !t.Type.Valid() {
		c.add("type", "type must be one of income, expense, transfer")
	}
	if t.AccountID == 0 {
		c.add("account_id", "account_id is required")
	}
	if t.CategoryID == 0 {
		c.add("category_id", "category_id is required")
	}
	if t.Type == models.TransactionTransfer {
		switch {
		case t.TransferAccountID == nil || *t.TransferAccountID == 0:
			c.add("transfer_account_id", "transfer_account_id is required for transfers")
		case *t.TransferAccountID == t.AccountID:
			c.add("transfer_account_id", "transfer_account_id must differ from account_id")
		}
	}
	return c.err()
}

func (s *Service) CreateTransaction(ctx context.Context, userID uint, in TransactionInput) (*models.Transaction, error) {
	t := &models.Transaction{
		UserID:      userID,
		AccountID:   in.AccountID,
		CategoryID:  in.CategoryID,
		Amount:      in.Amount,
		Type:        in.Type,
		Description: trimmed(in.Description),
	}
	if in.Type == models.TransactionTransfer {
		t.TransferAccountID = in.TransferAccountID
	}
	if in.Date != nil {
		t.Date = *in.Date
	} else {
		t.Date = s.now()
	}
	if err := validateTransaction(t); err != nil {
		return nil, err
	}

	effs := Effects(t)
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		if _, err := tx.CategoryByID(ctx, t.CategoryID); err != nil {
			return err
		}
		if err := lockAccounts(ctx, tx, userID, accountIDs(effs)); err != nil {
			return err
		}
		if err := tx.CreateTransaction(ctx, t); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return apply(ctx, tx, userID, effs)
	})
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, events.New(events.TransactionCreated, userID, t.ID).WithAmount(t.Amount))
	return s.store.TransactionByID(ctx, userID, t.ID)
}

func (s *Service) GetTransaction(ctx context.Context, userID, id uint) (*models.Transaction, error) {
	return s.store.TransactionByID(ctx, userID, id)
}

// UpdateTransaction reverses the stored transaction's effects, saves the
// patched row and applies the new effects, all in one unit. Each phase
// resolves its own accounts, so moving a transaction between accounts
// debits one and credits the other.
func (s *Service) UpdateTransaction(ctx context.Context, userID, id uint, p TransactionPatch) (*models.Transaction, error) {
	var updated models.Transaction
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		old, err := tx.TransactionByID(ctx, userID, id)
		if err != nil {
			return err
		}
		old.Account, old.Category, old.TransferAccount = nil, nil, nil
		next := *old
		applyPatch(&next, p)
		if err := validateTransaction(&next); err != nil {
			return err
		}
		if next.CategoryID != old.CategoryID {
			if _, err := tx.CategoryByID(ctx, next.CategoryID); err != nil {
				return err
			}
		}

		reversal := Reverse(Effects(old))
		forward := Effects(&next)
		if err := lockAccounts(ctx, tx, userID, accountIDs(reversal, forward)); err != nil {
			return err
		}
		if err := apply(ctx, tx, userID, reversal); err != nil {
			return err
		}
		if err := tx.UpdateTransaction(ctx, &next); err != nil {
			return fmt.Errorf("save transaction: %w", err)
		}
		if err := apply(ctx, tx, userID, forward); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, events.New(events.TransactionUpdated, userID, id).WithAmount(updated.Amount))
	return s.store.TransactionByID(ctx, userID, id)
}

func applyPatch(t *models.Transaction, p TransactionPatch) {
	if p.AccountID != nil {
		t.AccountID = *p.AccountID
	}
	if p.CategoryID != nil {
		t.CategoryID = *p.CategoryID
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.TransferAccountID != nil {
		id := *p.TransferAccountID
		t.TransferAccountID = &id
	}
	if t.Type != models.TransactionTransfer {
		t.TransferAccountID = nil
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Description != nil {
		t.Description = trimmed(p.Description)
	}
}

func (s *Service) DeleteTransaction(ctx context.Context, userID, id uint) error {
	var amount decimal.Decimal
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		old, err := tx.TransactionByID(ctx, userID, id)
		if err != nil {
			return err
		}
		reversal := Reverse(Effects(old))
		if err := lockAccounts(ctx, tx, userID, accountIDs(reversal)); err != nil {
			return err
		}
		if err := apply(ctx, tx, userID, reversal); err != nil {
			return err
		}
		amount = old.Amount
		return tx.DeleteTransaction(ctx, userID, id)
	})
	if err != nil {
		return err
	}
	s.events.Emit(ctx, events.New(events.TransactionDeleted, userID, id).WithAmount(amount))
	return nil
}

// NormalizePage applies the default page size and clamps out of range values.
// page is capped so that page*limit fits in an int.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if page > math.MaxInt/limit {
		page = math.MaxInt / limit
	}
	return page, limit
}

func (s *Service) ListTransactions(ctx context.Context, userID uint, p ListParams) (*TransactionPage, error) {
	if p.Type != "" && !p.Type.Valid() {
		return nil, apperr.Field("type", "type must be one of income, expense, transfer")
	}
	if p.From != nil && p.To != nil && p.To.Before(*p.From) {
		return nil, apperr.Field("end_date", "end_date must not be before start_date")
	}
	page, limit := NormalizePage(p.Page, p.Limit)
	items, total, err := s.store.ListTransactions(ctx, userID, store.TransactionFilter{
		Type:       p.Type,
		AccountID:  p.AccountID,
		CategoryID: p.CategoryID,
		From:       p.From,
		To:         p.To,
		Page:       page,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Transaction{}
	}
	return &TransactionPage{
		Transactions: items,
		Pagination: Pagination{
			CurrentPage:  page,
			TotalPages:   int(math.Ceil(float64(total) / float64(limit))),
			TotalItems:   total,
			ItemsPerPage: limit,
		},
	}, nil
}
