// Package ledger keeps account balances consistent with the transactions
// recorded against them.
//
// Every account balance equals its opening balance plus the signed effects
// of the transactions touching it. Creating, updating and deleting a
// transaction applies or reverses those effects inside one store
// transaction, with the affected account rows locked.
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"finapi/models"
)

// Effect is a signed balance change on one account.
type Effect struct {
	AccountID uint
	Delta     decimal.Decimal
}

// Effects returns the balance changes t applies. Income credits the
// account, expense debits it, and a transfer debits the account and
// credits the transfer destination by the same amount.
func Effects(t *models.Transaction) []Effect {
	switch t.Type {
	case models.TransactionIncome:
		return []Effect{{AccountID: t.AccountID, Delta: t.Amount}}
	case models.TransactionExpense:
		return []Effect{{AccountID: t.AccountID, Delta: t.Amount.Neg()}}
	case models.TransactionTransfer:
		effs := []Effect{{AccountID: t.AccountID, Delta: t.Amount.Neg()}}
		if t.TransferAccountID != nil {
			effs = append(effs, Effect{AccountID: *t.TransferAccountID, Delta: t.Amount})
		}
		return effs
	}
	return nil
}

// Reverse undoes effs.
func Reverse(effs []Effect) []Effect {
	out := make([]Effect, len(effs))
	for i, e := range effs {
		out[i] = Effect{AccountID: e.AccountID, Delta: e.Delta.Neg()}
	}
	return out
}

// NetDelta is the total change effs make to accountID.
func NetDelta(effs []Effect, accountID uint) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range effs {
		if e.AccountID == accountID {
			sum = sum.Add(e.Delta)
		}
	}
	return sum
}

// ExpectedBalance recomputes an account balance from its ledger.
func ExpectedBalance(opening decimal.Decimal, accountID uint, txs []models.Transaction) decimal.Decimal {
	bal := opening
	for i := range txs {
		bal = bal.Add(NetDelta(Effects(&txs[i]), accountID))
	}
	return bal
}

// accountIDs returns the distinct accounts touched by effs, ascending, so
// rows are always locked in the same order.
func accountIDs(effs ...[]Effect) []uint {
	seen := map[uint]struct{}{}
	var ids []uint
	for _, list := range effs {
		for _, e := range list {
			if _, ok := seen[e.AccountID]; ok {
				continue
			}
			seen[e.AccountID] = struct{}{}
			ids = append(ids, e.AccountID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
