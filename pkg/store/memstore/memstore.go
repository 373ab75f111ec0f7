// Package memstore is an in-process Ledger Store. It backs DATA_BACKEND=memory
// and the HTTP tests. Atomic sections are serialized and rolled back by
// restoring a snapshot, which gives the same all-or-nothing behaviour as a
// database transaction.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"finapi/models"
	"finapi/pkg/apperr"
	"finapi/pkg/money"
	"finapi/pkg/store"
)

type state struct {
	seq          uint
	users        map[uint]models.User
	categories   map[uint]models.Category
	accounts     map[uint]models.Account
	transactions map[uint]models.Transaction
	goals        map[uint]models.Goal
	tokens       map[uint]models.RefreshToken
	receipts     map[uint]models.Receipt
}

func newState() *state {
	return &state{
		users:        map[uint]models.User{},
		categories:   map[uint]models.Category{},
		accounts:     map[uint]models.Account{},
		transactions: map[uint]models.Transaction{},
		goals:        map[uint]models.Goal{},
		tokens:       map[uint]models.RefreshToken{},
		receipts:     map[uint]models.Receipt{},
	}
}

func (s *state) clone() *state {
	c := &state{seq: s.seq}
	c.users = cloneMap(s.users)
	c.categories = cloneMap(s.categories)
	c.accounts = cloneMap(s.accounts)
	c.transactions = cloneMap(s.transactions)
	c.goals = cloneMap(s.goals)
	c.tokens = cloneMap(s.tokens)
	c.receipts = cloneMap(s.receipts)
	return c
}

func cloneMap[V any](m map[uint]V) map[uint]V {
	out := make(map[uint]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) nextID() uint {
	s.seq++
	return s.seq
}

type shared struct {
	mu   sync.Mutex // guards st
	txMu sync.Mutex // held by writers and for the whole of an Atomic call
	st   *state
	now  func() time.Time
}

type Store struct {
	sh   *shared
	inTx bool
}

var _ store.Store = (*Store)(nil)

// New returns an empty store seeded with nothing; call EnsureCategories to
// install reference data.
func New() *Store {
	return &Store{sh: &shared{st: newState(), now: time.Now}}
}

// SetClock overrides the timestamp source. Tests only.
func (s *Store) SetClock(now func() time.Time) {
	s.sh.now = now
}

func (s *Store) Atomic(ctx context.Context, fn func(tx store.Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}
	s.sh.txMu.Lock()
	defer s.sh.txMu.Unlock()

	s.sh.mu.Lock()
	snap := s.sh.st.clone()
	s.sh.mu.Unlock()

	rollback := func() {
		s.sh.mu.Lock()
		s.sh.st = snap
		s.sh.mu.Unlock()
	}
	defer func() {
		if r := recover(); r != nil {
			rollback()
			panic(r)
		}
	}()
	if err = fn(&Store{sh: s.sh, inTx: true}); err != nil {
		rollback()
	}
	return err
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) read(fn func(st *state) error) error {
	s.sh.mu.Lock()
	defer s.sh.mu.Unlock()
	return fn(s.sh.st)
}

// checkRange rejects amounts a numeric(12,2) column cannot hold, the way
// Postgres does.
func checkRange(resource string, vs ...decimal.Decimal) error {
	for _, v := range vs {
		if v.Abs().GreaterThan(money.Max) {
			return apperr.Validation(resource + " has an out of range value")
		}
	}
	return nil
}

func (s *Store) write(fn func(st *state, now time.Time) error) error {
	if !s.inTx {
		s.sh.txMu.Lock()
		defer s.sh.txMu.Unlock()
	}
	s.sh.mu.Lock()
	defer s.sh.mu.Unlock()
	return fn(s.sh.st, s.sh.now())
}

// users

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return s.write(func(st *state, now time.Time) error {
		for _, ex := range st.users {
			if strings.EqualFold(ex.Email, u.Email) {
				return apperr.Conflict("email already registered")
			}
		}
		u.ID = st.nextID()
		u.CreatedAt, u.UpdatedAt = now, now
		st.users[u.ID] = *u
		return nil
	})
}

func (s *Store) UserByID(ctx context.Context, id uint) (*models.User, error) {
	var out models.User
	err := s.read(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return apperr.NotFound("user")
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var out *models.User
	err := s.read(func(st *state) error {
		for _, u := range st.users {
			if strings.EqualFold(u.Email, email) {
				u := u
				out = &u
				return nil
			}
		}
		return apperr.NotFound("user")
	})
	return out, err
}

func (s *Store) UpdateUserPassword(ctx context.Context, id uint, hash []byte) error {
	return s.write(func(st *state, now time.Time) error {
		u, ok := st.users[id]
		if !ok {
			return apperr.NotFound("user")
		}
		u.PasswordHash = hash
		u.UpdatedAt = now
		st.users[id] = u
		return nil
	})
}

// categories

func (s *Store) ListCategories(ctx context.Context, typ models.CategoryType) ([]models.Category, error) {
	var out []models.Category
	err := s.read(func(st *state) error {
		for _, c := range st.categories {
			if typ == "" || c.Type == typ {
				out = append(out, c)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Name < out[j].Name
	})
	return out, err
}

func (s *Store) CategoryByID(ctx context.Context, id uint) (*models.Category, error) {
	var out models.Category
	err := s.read(func(st *state) error {
		c, ok := st.categories[id]
		if !ok {
			return apperr.NotFound("category")
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) EnsureCategories(ctx context.Context, cats []models.Category) error {
	return s.write(func(st *state, now time.Time) error {
	next:
		for _, c := range cats {
			for _, ex := range st.categories {
				if ex.Name == c.Name && ex.Type == c.Type {
					continue next
				}
			}
			c.ID = st.nextID()
			c.CreatedAt = now
			st.categories[c.ID] = c
		}
		return nil
	})
}

// accounts

func (s *Store) CreateAccount(ctx context.Context, a *models.Account) error {
	return s.write(func(st *state, now time.Time) error {
		if _, ok := st.users[a.UserID]; !ok {
			return apperr.Referential("account owner does not exist")
		}
		if err := checkRange("account", a.Balance, a.OpeningBalance); err != nil {
			return err
		}
		a.ID = st.nextID()
		a.CreatedAt, a.UpdatedAt = now, now
		st.accounts[a.ID] = *a
		return nil
	})
}

func (s *Store) AccountByID(ctx context.Context, userID, id uint) (*models.Account, error) {
	var out models.Account
	err := s.read(func(st *state) error {
		a, ok := st.accounts[id]
		if !ok || a.UserID != userID {
			return apperr.NotFound("account")
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// LockAccount relies on Atomic's serialization; outside Atomic it is a
// plain read.
func (s *Store) LockAccount(ctx context.Context, userID, id uint) (*models.Account, error) {
	return s.AccountByID(ctx, userID, id)
}

func (s *Store) ListAccounts(ctx context.Context, userID uint) ([]models.Account, error) {
	var out []models.Account
	err := s.read(func(st *state) error {
		for _, a := range st.accounts {
			if a.UserID == userID {
				out = append(out, a)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, err
}

func (s *Store) UpdateAccount(ctx context.Context, a *models.Account) error {
	return s.write(func(st *state, now time.Time) error {
		ex, ok := st.accounts[a.ID]
		if !ok || ex.UserID != a.UserID {
			return apperr.NotFound("account")
		}
		if err := checkRange("account", a.Balance, a.OpeningBalance); err != nil {
			return err
		}
		a.CreatedAt = ex.CreatedAt
		a.UpdatedAt = now
		st.accounts[a.ID] = *a
		return nil
	})
}

func (s *Store) DeleteAccount(ctx context.Context, userID, id uint) error {
	return s.write(func(st *state, now time.Time) error {
		a, ok := st.accounts[id]
		if !ok || a.UserID != userID {
			return apperr.NotFound("account")
		}
		for _, t := range st.transactions {
			if touches(t, id) {
				return apperr.Referential("account has transactions")
			}
		}
		delete(st.accounts, id)
		return nil
	})
}

func (s *Store) CountAccountTransactions(ctx context.Context, userID, accountID uint) (int64, error) {
	var n int64
	err := s.read(func(st *state) error {
		for _, t := range st.transactions {
			if t.UserID == userID && touches(t, accountID) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func touches(t models.Transaction, accountID uint) bool {
	return t.AccountID == accountID || (t.TransferAccountID != nil && *t.TransferAccountID == accountID)
}

// transactions

func (s *Store) checkTransactionRefs(st *state, t *models.Transaction) error {
	if a, ok := st.accounts[t.AccountID]; !ok || a.UserID != t.UserID {
		return apperr.Referential("transaction account does not exist")
	}
	if _, ok := st.categories[t.CategoryID]; !ok {
		return apperr.Referential("transaction category does not exist")
	}
	if t.TransferAccountID != nil {
		if a, ok := st.accounts[*t.TransferAccountID]; !ok || a.UserID != t.UserID {
			return apperr.Referential("transfer account does not exist")
		}
	}
	return nil
}

func stripAssociations(t models.Transaction) models.Transaction {
	t.Account, t.Category, t.TransferAccount = nil, nil, nil
	return t
}

func (st *state) withAssociations(t models.Transaction) models.Transaction {
	if a, ok := st.accounts[t.AccountID]; ok {
		t.Account = &a
	}
	if c, ok := st.categories[t.CategoryID]; ok {
		t.Category = &c
	}
	if t.TransferAccountID != nil {
		if a, ok := st.accounts[*t.TransferAccountID]; ok {
			t.TransferAccount = &a
		}
	}
	return t
}

func (s *Store) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	return s.write(func(st *state, now time.Time) error {
		if err := s.checkTransactionRefs(st, t); err != nil {
			return err
		}
		t.ID = st.nextID()
		t.CreatedAt, t.UpdatedAt = now, now
		st.transactions[t.ID] = stripAssociations(*t)
		return nil
	})
}

func (s *Store) TransactionByID(ctx context.Context, userID, id uint) (*models.Transaction, error) {
	var out models.Transaction
	err := s.read(func(st *state) error {
		t, ok := st.transactions[id]
		if !ok || t.UserID != userID {
			return apperr.NotFound("transaction")
		}
		out = st.withAssociations(t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	return s.write(func(st *state, now time.Time) error {
		ex, ok := st.transactions[t.ID]
		if !ok || ex.UserID != t.UserID {
			return apperr.NotFound("transaction")
		}
		if err := s.checkTransactionRefs(st, t); err != nil {
			return err
		}
		t.CreatedAt = ex.CreatedAt
		t.UpdatedAt = now
		st.transactions[t.ID] = stripAssociations(*t)
		return nil
	})
}

func (s *Store) DeleteTransaction(ctx context.Context, userID, id uint) error {
	return s.write(func(st *state, now time.Time) error {
		t, ok := st.transactions[id]
		if !ok || t.UserID != userID {
			return apperr.NotFound("transaction")
		}
		delete(st.transactions, id)
		for rid, r := range st.receipts {
			if r.TransactionID != nil && *r.TransactionID == id {
				r.TransactionID = nil
				st.receipts[rid] = r
			}
		}
		return nil
	})
}

func newestFirst(items []models.Transaction) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

func (s *Store) ListTransactions(ctx context.Context, userID uint, f store.TransactionFilter) ([]models.Transaction, int64, error) {
	var matched []models.Transaction
	err := s.read(func(st *state) error {
		for _, t := range st.transactions {
			if t.UserID != userID {
				continue
			}
			if f.Type != "" && t.Type != f.Type {
				continue
			}
			if f.AccountID != 0 && !touches(t, f.AccountID) {
				continue
			}
			if f.CategoryID != 0 && t.CategoryID != f.CategoryID {
				continue
			}
			if f.From != nil && t.Date.Before(*f.From) {
				continue
			}
			if f.To != nil && !t.Date.Before(*f.To) {
				continue
			}
			matched = append(matched, st.withAssociations(t))
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	newestFirst(matched)
	total := int64(len(matched))
	start := f.Offset()
	if start >= len(matched) {
		return []models.Transaction{}, total, nil
	}
	end := len(matched)
	if f.Limit > 0 && start+f.Limit < end {
		end = start + f.Limit
	}
	return matched[start:end], total, nil
}

func (s *Store) TransactionsBetween(ctx context.Context, userID uint, from, to time.Time) ([]models.Transaction, error) {
	var out []models.Transaction
	err := s.read(func(st *state) error {
		for _, t := range st.transactions {
			if t.UserID == userID && !t.Date.Before(from) && t.Date.Before(to) {
				t.Category = nil
				if c, ok := st.categories[t.CategoryID]; ok {
					t.Category = &c
				}
				out = append(out, t)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

func (s *Store) RecentTransactions(ctx context.Context, userID uint, limit int) ([]models.Transaction, error) {
	var out []models.Transaction
	err := s.read(func(st *state) error {
		for _, t := range st.transactions {
			if t.UserID == userID {
				out = append(out, st.withAssociations(t))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (s *Store) AccountTransactions(ctx context.Context, userID, accountID uint) ([]models.Transaction, error) {
	var out []models.Transaction
	err := s.read(func(st *state) error {
		for _, t := range st.transactions {
			if t.UserID == userID && touches(t, accountID) {
				out = append(out, t)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

// goals

func (s *Store) CreateGoal(ctx context.Context, g *models.Goal) error {
	return s.write(func(st *state, now time.Time) error {
		if _, ok := st.users[g.UserID]; !ok {
			return apperr.Referential("goal owner does not exist")
		}
		if err := checkRange("goal", g.TargetAmount, g.CurrentAmount); err != nil {
			return err
		}
		g.ID = st.nextID()
		g.CreatedAt, g.UpdatedAt = now, now
		st.goals[g.ID] = *g
		return nil
	})
}

func (s *Store) GoalByID(ctx context.Context, userID, id uint) (*models.Goal, error) {
	var out models.Goal
	err := s.read(func(st *state) error {
		g, ok := st.goals[id]
		if !ok || g.UserID != userID {
			return apperr.NotFound("goal")
		}
		out = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) LockGoal(ctx context.Context, userID, id uint) (*models.Goal, error) {
	return s.GoalByID(ctx, userID, id)
}

func (s *Store) ListGoals(ctx context.Context, userID uint, status models.GoalStatus) ([]models.Goal, error) {
	var out []models.Goal
	err := s.read(func(st *state) error {
		for _, g := range st.goals {
			if g.UserID == userID && (status == "" || g.Status == status) {
				out = append(out, g)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, err
}

func (s *Store) UpdateGoal(ctx context.Context, g *models.Goal) error {
	return s.write(func(st *state, now time.Time) error {
		ex, ok := st.goals[g.ID]
		if !ok || ex.UserID != g.UserID {
			return apperr.NotFound("goal")
		}
		if err := checkRange("goal", g.TargetAmount, g.CurrentAmount); err != nil {
			return err
		}
		g.CreatedAt = ex.CreatedAt
		g.UpdatedAt = now
		st.goals[g.ID] = *g
		return nil
	})
}

func (s *Store) DeleteGoal(ctx context.Context, userID, id uint) error {
	return s.write(func(st *state, now time.Time) error {
		g, ok := st.goals[id]
		if !ok || g.UserID != userID {
			return apperr.NotFound("goal")
		}
		delete(st.goals, id)
		return nil
	})
}

func (s *Store) UpcomingGoals(ctx context.Context, userID uint, until time.Time) ([]models.Goal, error) {
	var out []models.Goal
	err := s.read(func(st *state) error {
		for _, g := range st.goals {
			if g.UserID == userID && g.Status == models.GoalActive && !g.TargetDate.After(until) {
				out = append(out, g)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TargetDate.Equal(out[j].TargetDate) {
			return out[i].TargetDate.Before(out[j].TargetDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

// refresh tokens

func (s *Store) CreateRefreshToken(ctx context.Context, t *models.RefreshToken) error {
	return s.write(func(st *state, now time.Time) error {
		for _, ex := range st.tokens {
			if ex.TokenHash == t.TokenHash {
				return apperr.Conflict("refresh token already exists")
			}
		}
		t.ID = st.nextID()
		t.CreatedAt = now
		st.tokens[t.ID] = *t
		return nil
	})
}

func (s *Store) RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	var out *models.RefreshToken
	err := s.read(func(st *state) error {
		for _, t := range st.tokens {
			if t.TokenHash == hash {
				t := t
				out = &t
				return nil
			}
		}
		return apperr.NotFound("refresh token")
	})
	return out, err
}

func (s *Store) RevokeRefreshToken(ctx context.Context, id uint) error {
	return s.write(func(st *state, now time.Time) error {
		t, ok := st.tokens[id]
		if !ok || t.Revoked {
			return apperr.NotFound("refresh token")
		}
		t.Revoked = true
		st.tokens[id] = t
		return nil
	})
}

// receipts

func (s *Store) CreateReceipt(ctx context.Context, r *models.Receipt) error {
	return s.write(func(st *state, now time.Time) error {
		r.ID = st.nextID()
		r.CreatedAt, r.UpdatedAt = now, now
		st.receipts[r.ID] = *r
		return nil
	})
}

func (s *Store) ReceiptByID(ctx context.Context, userID, id uint) (*models.Receipt, error) {
	var out models.Receipt
	err := s.read(func(st *state) error {
		r, ok := st.receipts[id]
		if !ok || r.UserID != userID {
			return apperr.NotFound("receipt")
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) ListReceipts(ctx context.Context, userID uint, limit int) ([]models.Receipt, error) {
	var out []models.Receipt
	err := s.read(func(st *state) error {
		for _, r := range st.receipts {
			if r.UserID == userID {
				out = append(out, r)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (s *Store) UpdateReceipt(ctx context.Context, r *models.Receipt) error {
	return s.write(func(st *state, now time.Time) error {
		ex, ok := st.receipts[r.ID]
		if !ok || ex.UserID != r.UserID {
			return apperr.NotFound("receipt")
		}
		r.CreatedAt = ex.CreatedAt
		r.UpdatedAt = now
		st.receipts[r.ID] = *r
		return nil
	})
}
