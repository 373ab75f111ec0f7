package ledger

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finapi/models"
	"finapi/pkg/apperr"
	"finapi/pkg/events"
	"finapi/pkg/store/memstore"
)

type fixture struct {
	svc    *Service
	st     *memstore.Store
	pub    *events.Memory
	user   uint
	other  uint
	salary uint
	food   uint
	ctx    context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	if err := st.EnsureCategories(ctx, models.DefaultCategories); err != nil {
		t.Fatalf("seed categories: %v", err)
	}
	f := &fixture{st: st, pub: &events.Memory{}, ctx: ctx}
	f.svc = NewService(st, events.NewEmitter(f.pub, nil), nil)
	for i, email := range []string{"ana@example.com", "bo@example.com"} {
		u := &models.User{Name: "user", Email: email, PasswordHash: []byte("x")}
		if err := st.CreateUser(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
		if i == 0 {
			f.user = u.ID
		} else {
			f.other = u.ID
		}
	}
	cats, _ := st.ListCategories(ctx, "")
	for _, c := range cats {
		switch c.Name {
		case "Salary":
			f.salary = c.ID
		case "Food":
			f.food = c.ID
		}
	}
	if f.salary == 0 || f.food == 0 {
		t.Fatalf("default categories missing")
	}
	return f
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (f *fixture) account(t *testing.T, user uint, opening string) *models.Account {
	t.Helper()
	a, err := f.svc.CreateAccount(f.ctx, user, AccountInput{Name: "Main", Type: models.AccountBank, Balance: dec(opening)})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return a
}

func (f *fixture) balance(t *testing.T, user, id uint) decimal.Decimal {
	t.Helper()
	a, err := f.svc.GetAccount(f.ctx, user, id)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return a.Balance
}

// assertLedger checks the cached balance against a fresh recomputation.
func (f *fixture) assertLedger(t *testing.T, user, id uint) {
	t.Helper()
	a, err := f.st.AccountByID(f.ctx, user, id)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	txs, err := f.st.AccountTransactions(f.ctx, user, id)
	if err != nil {
		t.Fatalf("account transactions: %v", err)
	}
	want := ExpectedBalance(a.OpeningBalance, id, txs)
	if !a.Balance.Equal(want) {
		t.Fatalf("account %d balance %s does not match ledger %s", id, a.Balance, want)
	}
}

func (f *fixture) create(t *testing.T, user, account uint, typ models.TransactionType, amount string) *models.Transaction {
	t.Helper()
	cat := f.food
	if typ == models.TransactionIncome {
		cat = f.salary
	}
	tx, err := f.svc.CreateTransaction(f.ctx, user, TransactionInput{AccountID: account, CategoryID: cat, Amount: dec(amount), Type: typ})
	if err != nil {
		t.Fatalf("create %s transaction: %v", typ, err)
	}
	return tx
}

func TestEffects(t *testing.T) {
	dest := uint(2)
	cases := []struct {
		name string
		tx   models.Transaction
		want map[uint]string
	}{
		{"income", models.Transaction{AccountID: 1, Type: models.TransactionIncome, Amount: dec("10")}, map[uint]string{1: "10"}},
		{"expense", models.Transaction{AccountID: 1, Type: models.TransactionExpense, Amount: dec("10")}, map[uint]string{1: "-10"}},
		{"transfer", models.Transaction{AccountID: 1, TransferAccountID: &dest, Type: models.TransactionTransfer, Amount: dec("10")}, map[uint]string{1: "-10", 2: "10"}},
	}
	for _, tc := range cases {
		effs := Effects(&tc.tx)
		for id, want := range tc.want {
			if got := NetDelta(effs, id); !got.Equal(dec(want)) {
				t.Fatalf("%s: account %d expected %s got %s", tc.name, id, want, got)
			}
		}
		rev := Reverse(effs)
		for id := range tc.want {
			if !NetDelta(append(effs, rev...), id).IsZero() {
				t.Fatalf("%s: reversal does not cancel", tc.name)
			}
		}
	}
}

func TestBalanceInvariantAcrossMutations(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, f.user, "100.00")

	inc := f.create(t, f.user, a.ID, models.TransactionIncome, "1000")
	f.assertLedger(t, f.user, a.ID)
	exp := f.create(t, f.user, a.ID, models.TransactionExpense, "300.25")
	f.assertLedger(t, f.user, a.ID)
	if got := f.balance(t, f.user, a.ID); !got.Equal(dec("799.75")) {
		t.Fatalf("expected 799.75 got %s", got)
	}

	amt := dec("50")
	typ := models.TransactionIncome
	if _, err := f.svc.UpdateTransaction(f.ctx, f.user, exp.ID, TransactionPatch{Amount: &amt, Type: &typ}); err != nil {
		t.Fatalf("update: %v", err)
	}
	f.assertLedger(t, f.user, a.ID)
	if got := f.balance(t, f.user, a.ID); !got.Equal(dec("1150")) {
		t.Fatalf("expected 1150 got %s", got)
	}

	if err := f.svc.DeleteTransaction(f.ctx, f.user, inc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	f.assertLedger(t, f.user, a.ID)
	if got := f.balance(t, f.user, a.ID); !got.Equal(dec("150")) {
		t.Fatalf("expected 150 got %s", got)
	}
}

func TestCreateDeleteRoundTrip(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, f.user, "42.10")
	before := f.balance(t, f.user, a.ID)
	tx := f.create(t, f.user, a.ID, models.TransactionExpense, "999.99")
	if err := f.svc.DeleteTransaction(f.ctx, f.user, tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := f.balance(t, f.user, a.ID); !got.Equal(before) {
		t.Fatalf("expected %s got %s", before, got)
	}
	want := []events.Type{events.TransactionCreated, events.TransactionDeleted}
	got := f.pub.Types()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestUpdateMovesTransactionBetweenAccounts(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, f.user, "0")
	b := f.account(t, f.user, "0")
	tx := f.create(t, f.user, a.ID, models.TransactionIncome, "250")

	if _, err := f.svc.UpdateTransaction(f.ctx, f.user, tx.ID, TransactionPatch{AccountID: &b.ID}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := f.balance(t, f.user, a.ID); !got.IsZero() {
		t.Fatalf("account A should be untouched, got %s", got)
	}
	if got := f.balance(t, f.user, b.ID); !got.Equal(dec("250")) {
		t.Fatalf("account B should hold 250, got %s", got)
	}
	f.assertLedger(t, f.user, a.ID)
	f.assertLedger(t, f.user, b.ID)
}

func TestTransferMovesMoneyWithoutChangingTotal(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, f.user, "500")
	b := f.account(t, f.user, "20")
	tx, err := f.svc.CreateTransaction(f.ctx, f.user, TransactionInput{
		AccountID: a.ID, TransferAccountID: &b.ID, CategoryID: f.food, Amount: dec("120"), Type: models.TransactionTransfer,
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if !f.balance(t, f.user, a.ID).Equal(dec("380")) || !f.balance(t, f.user, b.ID).Equal(dec("140")) {
		t.Fatalf("unexpected balances after transfer")
	}

	typ := models.TransactionExpense
	if _, err := f.svc.UpdateTransaction(f.ctx, f.user, tx.ID, TransactionPatch{Type: &typ}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := f.svc.GetTransaction(f.ctx, f.user, tx.ID)
	if got.TransferAccountID != nil {
		t.Fatalf("transfer destination should be cleared")
	}
	if !f.balance(t, f.user, b.ID).Equal(dec("20")) {
		t.Fatalf("destination should be restored, got %s", f.balance(t, f.user, b.ID))
	}
	f.assertLedger(t, f.user, a.ID)
	f.assertLedger(t, f.user, b.ID)
}

func TestTransferValidation(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, f.user, "0")
	_, err := f.svc.CreateTransaction(f.ctx, f.user, TransactionInput{AccountID: a.ID, CategoryID: f.food, Amount: dec("1"), Type: models.TransactionTransfer})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error without destination, got %v", err)
	}
	_, err = f.svc.CreateTransaction(f.ctx, f.user, TransactionInput{AccountID: a.ID, TransferAccountID: &a.ID, CategoryID: f.food, Amount: dec("1"), Type: models.TransactionTransfer})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for self transfer, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, f.user, "0")
	cases := []TransactionInput{
		{AccountID: a.ID, CategoryID: f.food, Amount: dec("0"), Type: models.TransactionExpense},
		{AccountID: a.ID, CategoryID: f.food, Amount: dec("-5"), Type: models.TransactionExpense},
		{AccountID: a.ID, CategoryID: f.food, Amount: dec("1.234"), Type: models.TransactionExpense},
		{AccountID: a.ID, CategoryID: f.food, Amount: dec("5"), Type: "refund"},
	}
	for i, in := range cases {
		if _, err := f.svc.CreateTransaction(f.ctx, f.user, in); apperr.KindOf(err) != apperr.KindValidation {
			t.Fatalf("case %d: expected validation error got %v", i, err)
		}
	}
	if _, err := f.svc.CreateTransaction(f.ctx, f.user, TransactionInput{AccountID: a.ID, CategoryID: 9999, Amount: dec("5"), Type: models.TransactionExpense}); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected missing category to be not found, got %v", err)
	}
	if !f.balance(t, f.user, a.ID).IsZero() {
		t.Fatalf("rejected transactions must not touch the balance")
	}
}

func TestOwnershipIsolation(t *testing.T) {
	f := newFixture(t)
	mine := f.account(t, f.user, "10")
	theirs := f.account(t, f.other, "10")
	tx := f.create(t, f.other, theirs.ID, models.TransactionIncome, "5")

	if _, err := f.svc.GetAccount(f.ctx, f.user, theirs.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found reading foreign account, got %v", err)
	}
	if _, err := f.svc.GetTransaction(f.ctx, f.user, tx.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found reading foreign transaction, got %v", err)
	}
	if err := f.svc.DeleteTransaction(f.ctx, f.user, tx.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found deleting foreign transaction, got %v", err)
	}
	if err := f.svc.DeleteAccount(f.ctx, f.user, theirs.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found deleting foreign account, got %v", err)
	}
	_, err := f.svc.CreateTransaction(f.ctx, f.user, TransactionInput{AccountID: theirs.ID, CategoryID: f.food, Amount: dec("1"), Type: models.TransactionExpense})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found writing to foreign account, got %v", err)
	}

	// moving my transaction onto their account fails and changes nothing
	own := f.create(t, f.user, mine.ID, models.TransactionIncome, "7")
	if _, err := f.svc.UpdateTransaction(f.ctx, f.user, own.ID, TransactionPatch{AccountID: &theirs.ID}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if !f.balance(t, f.user, mine.ID).Equal(dec("17")) {
		t.Fatalf("failed update must roll back, balance %s", f.balance(t, f.user, mine.ID))
	}
	if !f.balance(t, f.other, theirs.ID).Equal(dec("15")) {
		t.Fatalf("foreign balance changed: %s", f.balance(t, f.other, theirs.ID))
	}
}

func TestDeleteAccountGuard(t *testing.T) {
	f := newFixture(t)
	used := f.account(t, f.user, "0")
	empty := f.account(t, f.user, "0")
	f.create(t, f.user, used.ID, models.TransactionIncome, "1")

	if err := f.svc.DeleteAccount(f.ctx, f.user, used.ID); apperr.KindOf(err) != apperr.KindReferentialConflict {
		t.Fatalf("expected referential conflict, got %v", err)
	}
	if err := f.svc.DeleteAccount(f.ctx, f.user, empty.ID); err != nil {
		t.Fatalf("delete empty account: %v", err)
	}
}

func TestDeleteAccountGuardCoversTransferDestination(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, f.user, "100")
	b := f.account(t, f.user, "0")
	if _, err := f.svc.CreateTransaction(f.ctx, f.user, TransactionInput{AccountID: a.ID, TransferAccountID: &b.ID, CategoryID: f.food, Amount: dec("1"), Type: models.TransactionTransfer}); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := f.svc.DeleteAccount(f.ctx, f.user, b.ID); apperr.KindOf(err) != apperr.KindReferentialConflict {
		t.Fatalf("expected referential conflict, got %v", err)
	}
}

func TestCreateAccountDefaultsAndValidation(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, f.user, "0")
	if a.Color != models.DefaultAccountColor {
		t.Fatalf("expected default color got %s", a.Color)
	}
	if _, err := f.svc.CreateAccount(f.ctx, f.user, AccountInput{Name: "x", Type: models.AccountCash, Balance: dec("-1")}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("negative opening balance should be rejected, got %v", err)
	}
	bad := "blue"
	if _, err := f.svc.CreateAccount(f.ctx, f.user, AccountInput{Name: "x", Type: models.AccountCash, Color: &bad}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("bad color should be rejected, got %v", err)
	}
	if _, err := f.svc.CreateAccount(f.ctx, f.user, AccountInput{Name: "x", Type: "wallet"}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("bad type should be rejected, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	accts := []models.Account{
		{ID: 1, Type: models.AccountBank, Balance: dec("100")},
		{ID: 2, Type: models.AccountCash, Balance: dec("30")},
		{ID: 3, Type: models.AccountBank, Balance: dec("250")},
	}
	sum := Summarize(accts)
	if !sum.TotalBalance.Equal(dec("380")) || sum.TotalAccounts != 3 {
		t.Fatalf("unexpected totals %+v", sum)
	}
	bank := sum.AccountsByType[models.AccountBank]
	if bank == nil || bank.Count != 2 || !bank.TotalBalance.Equal(dec("350")) {
		t.Fatalf("unexpected bank group %+v", bank)
	}
	if sum.RichestAccount == nil || sum.RichestAccount.ID != 3 {
		t.Fatalf("unexpected richest account %+v", sum.RichestAccount)
	}
	if Summarize(nil).RichestAccount != nil {
		t.Fatalf("empty summary should have no richest account")
	}
}

func TestReconcileRepairsDrift(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, f.user, "10")
	f.create(t, f.user, a.ID, models.TransactionIncome, "5")

	// corrupt the cache behind the service's back
	acct, _ := f.st.AccountByID(f.ctx, f.user, a.ID)
	acct.Balance = dec("999")
	if err := f.st.UpdateAccount(f.ctx, acct); err != nil {
		t.Fatalf("corrupt: %v", err)
	}

	res, err := f.svc.Reconcile(f.ctx, f.user, a.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !res.Repaired || !res.Expected.Equal(dec("15")) || !res.Drift.Equal(dec("984")) {
		t.Fatalf("unexpected result %+v", res)
	}
	if !f.balance(t, f.user, a.ID).Equal(dec("15")) {
		t.Fatalf("balance not repaired")
	}
	again, _ := f.svc.Reconcile(f.ctx, f.user, a.ID)
	if again.Repaired {
		t.Fatalf("second reconcile should be a no-op")
	}
}

func TestListTransactionsFiltersAndPaginates(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, f.user, "0")
	b := f.account(t, f.user, "0")
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		d := base.AddDate(0, 0, i)
		if _, err := f.svc.CreateTransaction(f.ctx, f.user, TransactionInput{AccountID: a.ID, CategoryID: f.food, Amount: dec("1"), Type: models.TransactionExpense, Date: &d}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	d := base.AddDate(0, 1, 0)
	if _, err := f.svc.CreateTransaction(f.ctx, f.user, TransactionInput{AccountID: b.ID, CategoryID: f.salary, Amount: dec("9"), Type: models.TransactionIncome, Date: &d}); err != nil {
		t.Fatalf("create: %v", err)
	}

	page, err := f.svc.ListTransactions(f.ctx, f.user, ListParams{Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Pagination.TotalItems != 6 || page.Pagination.TotalPages != 3 || page.Pagination.CurrentPage != 2 || len(page.Transactions) != 2 {
		t.Fatalf("unexpected pagination %+v (%d items)", page.Pagination, len(page.Transactions))
	}
	// newest first: page 2 holds the 3rd and 4th newest
	if !page.Transactions[0].Date.Equal(base.AddDate(0, 0, 3)) {
		t.Fatalf("unexpected order, first date %s", page.Transactions[0].Date)
	}

	page, _ = f.svc.ListTransactions(f.ctx, f.user, ListParams{Type: models.TransactionIncome})
	if page.Pagination.TotalItems != 1 || page.Pagination.ItemsPerPage != DefaultPageSize {
		t.Fatalf("type filter failed %+v", page.Pagination)
	}
	from, to := base.AddDate(0, 0, 1), base.AddDate(0, 0, 3)
	page, _ = f.svc.ListTransactions(f.ctx, f.user, ListParams{AccountID: a.ID, From: &from, To: &to})
	if page.Pagination.TotalItems != 2 {
		t.Fatalf("date filter failed: %d", page.Pagination.TotalItems)
	}
	page, _ = f.svc.ListTransactions(f.ctx, f.other, ListParams{})
	if page.Pagination.TotalItems != 0 || page.Transactions == nil {
		t.Fatalf("other user must see an empty list")
	}
	if _, err := f.svc.ListTransactions(f.ctx, f.user, ListParams{Type: "bogus"}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for bad type")
	}
}

func TestNormalizePage(t *testing.T) {
	cases := [][4]int{{0, 0, 1, 20}, {3, 500, 3, 100}, {-1, 7, 1, 7}, {math.MaxInt, 2, math.MaxInt / 2, 2}}
	for _, c := range cases {
		p, l := NormalizePage(c[0], c[1])
		if p != c[2] || l != c[3] {
			t.Fatalf("NormalizePage(%d,%d)=%d,%d want %d,%d", c[0], c[1], p, l, c[2], c[3])
		}
	}
}

func TestListTransactionsHugePage(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, f.user, "0")
	f.create(t, f.user, a.ID, models.TransactionIncome, "10")
	page, err := f.svc.ListTransactions(f.ctx, f.user, ListParams{Page: 4611686018427387905, Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Transactions) != 0 || page.Pagination.TotalItems != 1 {
		t.Fatalf("page past the end=%+v", page)
	}
}

func TestConcurrentMutationsKeepLedger(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, f.user, "1000")
	b := f.account(t, f.user, "0")
	seeded := make([]*models.Transaction, 10)
	for i := range seeded {
		seeded[i] = f.create(t, f.user, a.ID, models.TransactionExpense, "5")
	}

	const workers = 20
	var wg sync.WaitGroup
	errc := make(chan error, workers+len(seeded))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := TransactionInput{AccountID: a.ID, CategoryID: f.salary, Amount: dec("3.5"), Type: models.TransactionIncome}
			if i%2 == 1 {
				to := b.ID
				in = TransactionInput{AccountID: a.ID, CategoryID: f.food, Amount: dec("1.25"), Type: models.TransactionTransfer, TransferAccountID: &to}
			}
			if _, err := f.svc.CreateTransaction(f.ctx, f.user, in); err != nil {
				errc <- err
			}
		}(i)
	}
	for _, tx := range seeded {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			if err := f.svc.DeleteTransaction(f.ctx, f.user, id); err != nil {
				errc <- err
			}
		}(tx.ID)
	}
	wg.Wait()
	close(errc)
	for err := range errc {
		t.Fatalf("concurrent mutation: %v", err)
	}

	f.assertLedger(t, f.user, a.ID)
	f.assertLedger(t, f.user, b.ID)
	// 1000 + 10*3.5 - 10*1.25 with every seeded expense removed.
	if got := f.balance(t, f.user, a.ID); !got.Equal(dec("1022.5")) {
		t.Fatalf("balance=%s want 1022.5", got)
	}
	if got := f.balance(t, f.user, b.ID); !got.Equal(dec("12.5")) {
		t.Fatalf("destination balance=%s want 12.5", got)
	}
}

func TestBalanceOverflowIsRejected(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, f.user, "9999999999")
	_, err := f.svc.CreateTransaction(f.ctx, f.user, TransactionInput{AccountID: a.ID, CategoryID: f.salary, Amount: dec("1"), Type: models.TransactionIncome})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := f.balance(t, f.user, a.ID); !got.Equal(dec("9999999999")) {
		t.Fatalf("balance changed to %s", got)
	}
	f.assertLedger(t, f.user, a.ID)
}
