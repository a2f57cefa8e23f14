package credits

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dramaforge/dramaforge-backend/pkg/db/models"
)

// Repository manages credit balances and the ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetBalance(ctx context.Context, userID uuid.UUID) (int, error)
	// DecrementBalance atomically subtracts cost when the balance covers it.
	// It reports whether the decrement was applied and the resulting balance.
	DecrementBalance(ctx context.Context, userID uuid.UUID, cost int) (bool, int, error)
	IncrementBalance(ctx context.Context, userID uuid.UUID, amount int) (int, error)
	CreateLedgerEntry(ctx context.Context, entry *models.CreditLedgerEntry) error
	ListLedgerEntries(ctx context.Context, userID uuid.UUID, limit int) ([]models.CreditLedgerEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a credits repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetBalance(ctx context.Context, userID uuid.UUID) (int, error) {
	var user models.User
	if err := r.db.WithContext(ctx).
		Select("credit_balance").
		Where("id = ?", userID).
		First(&user).Error; err != nil {
		return 0, err
	}
	return user.CreditBalance, nil
}

func (r *repository) DecrementBalance(ctx context.Context, userID uuid.UUID, cost int) (bool, int, error) {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND credit_balance >= ?", userID, cost).
		UpdateColumn("credit_balance", gorm.Expr("credit_balance - ?", cost))
	if result.Error != nil {
		return false, 0, result.Error
	}
	if result.RowsAffected == 0 {
		balance, err := r.GetBalance(ctx, userID)
		if err != nil {
			return false, 0, err
		}
		return false, balance, nil
	}
	balance, err := r.GetBalance(ctx, userID)
	if err != nil {
		return false, 0, err
	}
	return true, balance, nil
}

func (r *repository) IncrementBalance(ctx context.Context, userID uuid.UUID, amount int) (int, error) {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("credit_balance", gorm.Expr("credit_balance + ?", amount))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return r.GetBalance(ctx, userID)
}

func (r *repository) CreateLedgerEntry(ctx context.Context, entry *models.CreditLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListLedgerEntries(ctx context.Context, userID uuid.UUID, limit int) ([]models.CreditLedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []models.CreditLedgerEntry
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
