package scripts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dramaforge/dramaforge-backend/pkg/db/models"
)

// Repository manages script persistence. Versions are append-only.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, script *models.Script) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Script, error)
	LatestByProject(ctx context.Context, projectID uuid.UUID) (*models.Script, error)
	LatestVersion(ctx context.Context, projectID uuid.UUID) (int, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Script, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a script repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, script *models.Script) error {
	return r.db.WithContext(ctx).Create(script).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Script, error) {
	var script models.Script
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&script).Error; err != nil {
		return nil, err
	}
	return &script, nil
}

func (r *repository) LatestByProject(ctx context.Context, projectID uuid.UUID) (*models.Script, error) {
	var script models.Script
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("version DESC").
		First(&script).Error; err != nil {
		return nil, err
	}
	return &script, nil
}

func (r *repository) LatestVersion(ctx context.Context, projectID uuid.UUID) (int, error) {
	script, err := r.LatestByProject(ctx, projectID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, err
	}
	return script.Version, nil
}

func (r *repository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Script, error) {
	var scripts []models.Script
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("version DESC").
		Find(&scripts).Error; err != nil {
		return nil, err
	}
	return scripts, nil
}
