package voices

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dramaforge/dramaforge-backend/pkg/db/models"
)

// Repository manages the voice catalog.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, voice *models.Voice) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Voice, error)
	// ListForUser returns the built-in catalog plus the user's own clones.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Voice, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a voice repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, voice *models.Voice) error {
	return r.db.WithContext(ctx).Create(voice).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Voice, error) {
	var voice models.Voice
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&voice).Error; err != nil {
		return nil, err
	}
	return &voice, nil
}

func (r *repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Voice, error) {
	var list []models.Voice
	if err := r.db.WithContext(ctx).
		Where("owner_id IS NULL OR owner_id = ?", userID).
		Order("is_custom ASC, name ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Voice{}, "id = ?", id).Error
}
