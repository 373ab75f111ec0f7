// Package store defines the persistence contract used by the domain
// services. Every owner-scoped lookup returns an apperr NotFound error both
// when the row is missing and when it belongs to someone else.
package store

import (
	"context"
	"time"

	"finapi/models"
)

// TransactionFilter narrows ListTransactions. Zero values mean "any".
// From is inclusive, To is exclusive.
type TransactionFilter struct {
	Type       models.TransactionType
	AccountID  uint // matches the source or the transfer destination
	CategoryID uint
	From       *time.Time
	To         *time.Time
	Page       int // 1-based, already normalized by the caller
	Limit      int
}

// Offset is the number of rows skipped for the filter's page.
func (f TransactionFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

type Users interface {
	CreateUser(ctx context.Context, u *models.User) error
	UserByID(ctx context.Context, id uint) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUserPassword(ctx context.Context, id uint, hash []byte) error
}

type Categories interface {
	ListCategories(ctx context.Context, typ models.CategoryType) ([]models.Category, error)
	CategoryByID(ctx context.Context, id uint) (*models.Category, error)
	// EnsureCategories inserts the given categories whose (name, type) is
	// not present yet.
	EnsureCategories(ctx context.Context, cats []models.Category) error
}

type Accounts interface {
	CreateAccount(ctx context.Context, a *models.Account) error
	AccountByID(ctx context.Context, userID, id uint) (*models.Account, error)
	// LockAccount is AccountByID with the row locked until the surrounding
	// Atomic call returns.
	LockAccount(ctx context.Context, userID, id uint) (*models.Account, error)
	ListAccounts(ctx context.Context, userID uint) ([]models.Account, error)
	UpdateAccount(ctx context.Context, a *models.Account) error
	DeleteAccount(ctx context.Context, userID, id uint) error
	// CountAccountTransactions counts transactions using the account as
	// source or transfer destination.
	CountAccountTransactions(ctx context.Context, userID, accountID uint) (int64, error)
}

type Transactions interface {
	CreateTransaction(ctx context.Context, t *models.Transaction) error
	// TransactionByID preloads Account, Category and TransferAccount.
	TransactionByID(ctx context.Context, userID, id uint) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, t *models.Transaction) error
	DeleteTransaction(ctx context.Context, userID, id uint) error
	// ListTransactions returns one page ordered by date then creation time,
	// newest first, and the total number of matching rows.
	ListTransactions(ctx context.Context, userID uint, f TransactionFilter) ([]models.Transaction, int64, error)
	// TransactionsBetween returns every transaction dated in [from, to) with
	// Category preloaded, oldest first.
	TransactionsBetween(ctx context.Context, userID uint, from, to time.Time) ([]models.Transaction, error)
	// RecentTransactions orders by creation time, not by date.
	RecentTransactions(ctx context.Context, userID uint, limit int) ([]models.Transaction, error)
	// AccountTransactions returns every transaction touching the account.
	AccountTransactions(ctx context.Context, userID, accountID uint) ([]models.Transaction, error)
}

type Goals interface {
	CreateGoal(ctx context.Context, g *models.Goal) error
	GoalByID(ctx context.Context, userID, id uint) (*models.Goal, error)
	LockGoal(ctx context.Context, userID, id uint) (*models.Goal, error)
	// ListGoals filters by status when status is non-empty; newest first.
	ListGoals(ctx context.Context, userID uint, status models.GoalStatus) ([]models.Goal, error)
	UpdateGoal(ctx context.Context, g *models.Goal) error
	DeleteGoal(ctx context.Context, userID, id uint) error
	// UpcomingGoals returns active goals due on or before until, soonest first.
	UpcomingGoals(ctx context.Context, userID uint, until time.Time) ([]models.Goal, error)
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t *models.RefreshToken) error
	RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	// RevokeRefreshToken marks an unrevoked token as revoked. It returns a
	// NotFound error when the token is missing or already revoked.
	RevokeRefreshToken(ctx context.Context, id uint) error
}

type Receipts interface {
	CreateReceipt(ctx context.Context, r *models.Receipt) error
	ReceiptByID(ctx context.Context, userID, id uint) (*models.Receipt, error)
	ListReceipts(ctx context.Context, userID uint, limit int) ([]models.Receipt, error)
	UpdateReceipt(ctx context.Context, r *models.Receipt) error
}

// Store is the full Ledger Store.
type Store interface {
	Users
	Categories
	Accounts
	Transactions
	Goals
	RefreshTokens
	Receipts

	// Atomic runs fn against a Store bound to a single database
	// transaction. A non-nil error from fn rolls back every write fn made.
	// Calling Atomic on the Store passed to fn joins the same transaction.
	Atomic(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
	Close() error
}
