package ledger

import (
	"context"
	"fmt"
	"time"

	"finapi/pkg/events"
	"finapi/pkg/logx"
	"finapi/pkg/store"
)

// Service implements account and transaction operations for one owner at a
// time. Every method takes the caller's user id and never reads or writes
// another user's rows.
type Service struct {
	store  store.Store
	events *events.Emitter
	log    *logx.Logger
	now    func() time.Time
}

func NewService(st store.Store, em *events.Emitter, log *logx.Logger) *Service {
	if log == nil {
		log = logx.Nop()
	}
	return &Service{
		store:  st,
		events: em,
		log:    log.WithComponent(logx.ComponentLedger),
		now:    time.Now,
	}
}

// SetClock overrides the time source used for default transaction dates.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// lockAccounts locks every account in ids (ascending) for the rest of the
// store transaction, failing with NotFound when one is missing or foreign.
func lockAccounts(ctx context.Context, tx store.Store, userID uint, ids []uint) error {
	for _, id := range ids {
		if _, err := tx.LockAccount(ctx, userID, id); err != nil {
			return err
		}
	}
	return nil
}

// apply writes each effect to its account. The account is re-read at apply
// time so consecutive phases see each other's writes.
func apply(ctx context.Context, tx store.Store, userID uint, effs []Effect) error {
	for _, e := range effs {
		acct, err := tx.LockAccount(ctx, userID, e.AccountID)
		if err != nil {
			return err
		}
		acct.Balance = acct.Balance.Add(e.Delta)
		if err := tx.UpdateAccount(ctx, acct); err != nil {
			return fmt.Errorf("update balance of account %d: %w", acct.ID, err)
		}
	}
	return nil
}
