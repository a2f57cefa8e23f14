package jobs

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dramaforge/dramaforge-backend/pkg/db/models"
	"github.com/dramaforge/dramaforge-backend/pkg/enums"
)

// Repository manages persistence for generation jobs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, job *models.GenerationJob) error
	Update(ctx context.Context, job *models.GenerationJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error)
	// FindLatestSceneJob returns the newest job of the given kind for one
	// project scene, regardless of status.
	FindLatestSceneJob(ctx context.Context, projectID uuid.UUID, kind enums.JobKind, sceneNumber int) (*models.GenerationJob, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.GenerationJob, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a generation job repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, job *models.GenerationJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *repository) Update(ctx context.Context, job *models.GenerationJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error) {
	var job models.GenerationJob
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repository) FindLatestSceneJob(ctx context.Context, projectID uuid.UUID, kind enums.JobKind, sceneNumber int) (*models.GenerationJob, error) {
	var job models.GenerationJob
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND kind = ? AND scene_number = ?", projectID, kind, sceneNumber).
		Order("created_at DESC").
		First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.GenerationJob, error) {
	if limit <= 0 {
		limit = 50
	}
	var list []models.GenerationJob
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
