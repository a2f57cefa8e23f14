package audioclips

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dramaforge/dramaforge-backend/pkg/db/models"
)

// Repository persists synthesized audio clips.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, clip *models.AudioClip) error
	Update(ctx context.Context, clip *models.AudioClip) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.AudioClip, error)
	ListByUser(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID) ([]models.AudioClip, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a gorm-backed audio clip repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, clip *models.AudioClip) error {
	return r.db.WithContext(ctx).Create(clip).Error
}

func (r *repository) Update(ctx context.Context, clip *models.AudioClip) error {
	return r.db.WithContext(ctx).Save(clip).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.AudioClip, error) {
	var clip models.AudioClip
	if err := r.db.WithContext(ctx).First(&clip, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &clip, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID) ([]models.AudioClip, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if projectID != nil {
		query = query.Where("project_id = ?", *projectID)
	}
	var clips []models.AudioClip
	if err := query.Order("created_at DESC").Find(&clips).Error; err != nil {
		return nil, err
	}
	return clips, nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.AudioClip{}, "id = ?", id).Error
}
