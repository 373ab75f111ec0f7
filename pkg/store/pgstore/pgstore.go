// Package pgstore implements the Ledger Store on Postgres through gorm.
package pgstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"finapi/models"
	"finapi/pkg/apperr"
	"finapi/pkg/store"
)

type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

type Options struct {
	MaxOpenConns int
	Debug        bool
}

// Open connects to Postgres. Schema changes are handled by RunMigrations.
func Open(dsn string, opts Options) (*Store, error) {
	level := gormlogger.Warn
	if opts.Debug {
		level = gormlogger.Info
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(level),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, translate(fmt.Errorf("connect postgres: %w", err), "database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		sqlDB.SetMaxIdleConns(opts.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing gorm handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *Store) Atomic(ctx context.Context, fn func(tx store.Store) error) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return translate(err, "database")
	}
	return translate(sqlDB.PingContext(ctx), "database")
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func affected(res *gorm.DB, resource string) error {
	if res.Error != nil {
		return translate(res.Error, resource)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(resource)
	}
	return nil
}

// users

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return translate(s.conn(ctx).Create(u).Error, "user")
}

func (s *Store) UserByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).First(&u, id).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).Where("lower(email) = ?", strings.ToLower(email)).First(&u).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &u, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, id uint, hash []byte) error {
	res := s.conn(ctx).Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]any{"password_hash": hash, "updated_at": time.Now()})
	return affected(res, "user")
}

// categories

func (s *Store) ListCategories(ctx context.Context, typ models.CategoryType) ([]models.Category, error) {
	q := s.conn(ctx).Model(&models.Category{})
	if typ != "" {
		q = q.Where("type = ?", typ)
	}
	var out []models.Category
	if err := q.Order("type ASC, name ASC").Find(&out).Error; err != nil {
		return nil, translate(err, "category")
	}
	return out, nil
}

func (s *Store) CategoryByID(ctx context.Context, id uint) (*models.Category, error) {
	var c models.Category
	if err := s.conn(ctx).First(&c, id).Error; err != nil {
		return nil, translate(err, "category")
	}
	return &c, nil
}

func (s *Store) EnsureCategories(ctx context.Context, cats []models.Category) error {
	for _, c := range cats {
		row := c
		err := s.conn(ctx).
			Where("name = ? AND type = ?", c.Name, c.Type).
			Attrs(models.Category{Color: c.Color, Description: c.Description}).
			FirstOrCreate(&row).Error
		if err != nil {
			return translate(err, "category")
		}
	}
	return nil
}

// accounts

func (s *Store) CreateAccount(ctx context.Context, a *models.Account) error {
	return translate(s.conn(ctx).Create(a).Error, "account")
}

func (s *Store) AccountByID(ctx context.Context, userID, id uint) (*models.Account, error) {
	var a models.Account
	if err := s.conn(ctx).Where("id = ? AND user_id = ?", id, userID).First(&a).Error; err != nil {
		return nil, translate(err, "account")
	}
	return &a, nil
}

func (s *Store) LockAccount(ctx context.Context, userID, id uint) (*models.Account, error) {
	var a models.Account
	err := s.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", id, userID).
		First(&a).Error
	if err != nil {
		return nil, translate(err, "account")
	}
	return &a, nil
}

func (s *Store) ListAccounts(ctx context.Context, userID uint) ([]models.Account, error) {
	var out []models.Account
	if err := s.conn(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, translate(err, "account")
	}
	return out, nil
}

func (s *Store) UpdateAccount(ctx context.Context, a *models.Account) error {
	res := s.conn(ctx).Model(a).
		Where("user_id = ?", a.UserID).
		Select("name", "type", "color", "description", "balance", "updated_at").
		Updates(a)
	return affected(res, "account")
}

func (s *Store) DeleteAccount(ctx context.Context, userID, id uint) error {
	res := s.conn(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Account{})
	return affected(res, "account")
}

func (s *Store) CountAccountTransactions(ctx context.Context, userID, accountID uint) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&models.Transaction{}).
		Where("user_id = ? AND (account_id = ? OR transfer_account_id = ?)", userID, accountID, accountID).
		Count(&n).Error
	return n, translate(err, "transaction")
}

// transactions

func (s *Store) withAssociations(q *gorm.DB) *gorm.DB {
	return q.Preload("Account").Preload("Category").Preload("TransferAccount")
}

func (s *Store) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	return translate(s.conn(ctx).Omit(clause.Associations).Create(t).Error, "transaction")
}

func (s *Store) TransactionByID(ctx context.Context, userID, id uint) (*models.Transaction, error) {
	var t models.Transaction
	err := s.withAssociations(s.conn(ctx)).Where("id = ? AND user_id = ?", id, userID).First(&t).Error
	if err != nil {
		return nil, translate(err, "transaction")
	}
	return &t, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	res := s.conn(ctx).Model(t).
		Omit(clause.Associations).
		Where("user_id = ?", t.UserID).
		Select("account_id", "category_id", "transfer_account_id", "amount", "type", "date", "description", "updated_at").
		Updates(t)
	return affected(res, "transaction")
}

func (s *Store) DeleteTransaction(ctx context.Context, userID, id uint) error {
	res := s.conn(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Transaction{})
	return affected(res, "transaction")
}

func (s *Store) ListTransactions(ctx context.Context, userID uint, f store.TransactionFilter) ([]models.Transaction, int64, error) {
	q := s.conn(ctx).Model(&models.Transaction{}).Where("user_id = ?", userID)
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.AccountID != 0 {
		q = q.Where("(account_id = ? OR transfer_account_id = ?)", f.AccountID, f.AccountID)
	}
	if f.CategoryID != 0 {
		q = q.Where("category_id = ?", f.CategoryID)
	}
	if f.From != nil {
		q = q.Where("date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("date < ?", *f.To)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "transaction")
	}
	var out []models.Transaction
	err := s.withAssociations(q).
		Order("date DESC, created_at DESC, id DESC").
		Offset(f.Offset()).
		Limit(f.Limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, translate(err, "transaction")
	}
	return out, total, nil
}

func (s *Store) TransactionsBetween(ctx context.Context, userID uint, from, to time.Time) ([]models.Transaction, error) {
	var out []models.Transaction
	err := s.conn(ctx).Preload("Category").
		Where("user_id = ? AND date >= ? AND date < ?", userID, from, to).
		Order("date ASC, id ASC").
		Find(&out).Error
	return out, translate(err, "transaction")
}

func (s *Store) RecentTransactions(ctx context.Context, userID uint, limit int) ([]models.Transaction, error) {
	var out []models.Transaction
	err := s.withAssociations(s.conn(ctx)).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, translate(err, "transaction")
}

func (s *Store) AccountTransactions(ctx context.Context, userID, accountID uint) ([]models.Transaction, error) {
	var out []models.Transaction
	err := s.conn(ctx).
		Where("user_id = ? AND (account_id = ? OR transfer_account_id = ?)", userID, accountID, accountID).
		Order("id ASC").
		Find(&out).Error
	return out, translate(err, "transaction")
}

// goals

func (s *Store) CreateGoal(ctx context.Context, g *models.Goal) error {
	return translate(s.conn(ctx).Create(g).Error, "goal")
}

func (s *Store) GoalByID(ctx context.Context, userID, id uint) (*models.Goal, error) {
	var g models.Goal
	if err := s.conn(ctx).Where("id = ? AND user_id = ?", id, userID).First(&g).Error; err != nil {
		return nil, translate(err, "goal")
	}
	return &g, nil
}

func (s *Store) LockGoal(ctx context.Context, userID, id uint) (*models.Goal, error) {
	var g models.Goal
	err := s.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", id, userID).
		First(&g).Error
	if err != nil {
		return nil, translate(err, "goal")
	}
	return &g, nil
}

func (s *Store) ListGoals(ctx context.Context, userID uint, status models.GoalStatus) ([]models.Goal, error) {
	q := s.conn(ctx).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []models.Goal
	if err := q.Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, translate(err, "goal")
	}
	return out, nil
}

func (s *Store) UpdateGoal(ctx context.Context, g *models.Goal) error {
	res := s.conn(ctx).Model(g).
		Where("user_id = ?", g.UserID).
		Select("name", "target_amount", "current_amount", "target_date", "status", "description", "updated_at").
		Updates(g)
	return affected(res, "goal")
}

func (s *Store) DeleteGoal(ctx context.Context, userID, id uint) error {
	res := s.conn(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Goal{})
	return affected(res, "goal")
}

func (s *Store) UpcomingGoals(ctx context.Context, userID uint, until time.Time) ([]models.Goal, error) {
	var out []models.Goal
	err := s.conn(ctx).
		Where("user_id = ? AND status = ? AND target_date <= ?", userID, models.GoalActive, until).
		Order("target_date ASC, id ASC").
		Find(&out).Error
	return out, translate(err, "goal")
}

// refresh tokens

func (s *Store) CreateRefreshToken(ctx context.Context, t *models.RefreshToken) error {
	return translate(s.conn(ctx).Create(t).Error, "refresh token")
}

func (s *Store) RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	var t models.RefreshToken
	if err := s.conn(ctx).Where("token_hash = ?", hash).First(&t).Error; err != nil {
		return nil, translate(err, "refresh token")
	}
	return &t, nil
}

func (s *Store) RevokeRefreshToken(ctx context.Context, id uint) error {
	res := s.conn(ctx).Model(&models.RefreshToken{}).Where("id = ? AND revoked = ?", id, false).Update("revoked", true)
	return affected(res, "refresh token")
}

// receipts

func (s *Store) CreateReceipt(ctx context.Context, r *models.Receipt) error {
	return translate(s.conn(ctx).Create(r).Error, "receipt")
}

func (s *Store) ReceiptByID(ctx context.Context, userID, id uint) (*models.Receipt, error) {
	var r models.Receipt
	if err := s.conn(ctx).Where("id = ? AND user_id = ?", id, userID).First(&r).Error; err != nil {
		return nil, translate(err, "receipt")
	}
	return &r, nil
}

func (s *Store) ListReceipts(ctx context.Context, userID uint, limit int) ([]models.Receipt, error) {
	var out []models.Receipt
	err := s.conn(ctx).Where("user_id = ?", userID).Order("id DESC").Limit(limit).Find(&out).Error
	return out, translate(err, "receipt")
}

func (s *Store) UpdateReceipt(ctx context.Context, r *models.Receipt) error {
	res := s.conn(ctx).Model(r).
		Where("user_id = ?", r.UserID).
		Select("suggested_amount", "confidence", "raw_match", "transaction_id", "failed", "failed_reason", "content_type", "updated_at").
		Updates(r)
	return affected(res, "receipt")
}
