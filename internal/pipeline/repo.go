package pipeline

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dramaforge/dramaforge-backend/pkg/db/models"
	"github.com/dramaforge/dramaforge-backend/pkg/enums"
)

// Repository manages persistence for production runs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateRun(ctx context.Context, run *models.ProductionRun) error
	FindRun(ctx context.Context, id uuid.UUID) (*models.ProductionRun, error)
	FindActiveRunByProject(ctx context.Context, projectID uuid.UUID) (*models.ProductionRun, error)
	UpdateRun(ctx context.Context, run *models.ProductionRun) error
	ListRunsByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]models.ProductionRun, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a production run repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateRun(ctx context.Context, run *models.ProductionRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *repository) FindRun(ctx context.Context, id uuid.UUID) (*models.ProductionRun, error) {
	var run models.ProductionRun
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *repository) FindActiveRunByProject(ctx context.Context, projectID uuid.UUID) (*models.ProductionRun, error) {
	var run models.ProductionRun
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND status IN ?", projectID, []enums.RunStatus{enums.RunStatusPending, enums.RunStatusRunning}).
		Order("created_at DESC").
		First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *repository) UpdateRun(ctx context.Context, run *models.ProductionRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *repository) ListRunsByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]models.ProductionRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []models.ProductionRun
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
