package characters

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dramaforge/dramaforge-backend/pkg/db/models"
)

// Repository manages character persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, character *models.Character) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Character, error)
	// ListForProject returns the user's characters scoped to the project
	// plus their unscoped (shared) characters. A nil projectID returns
	// only the shared set.
	ListForProject(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID) ([]models.Character, error)
	Update(ctx context.Context, character *models.Character) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a character repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, character *models.Character) error {
	return r.db.WithContext(ctx).Create(character).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Character, error) {
	var character models.Character
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&character).Error; err != nil {
		return nil, err
	}
	return &character, nil
}

func (r *repository) ListForProject(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID) ([]models.Character, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if projectID != nil {
		query = query.Where("project_id = ? OR project_id IS NULL", *projectID)
	} else {
		query = query.Where("project_id IS NULL")
	}

	var list []models.Character
	if err := query.Order("created_at ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *repository) Update(ctx context.Context, character *models.Character) error {
	return r.db.WithContext(ctx).Save(character).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Character{}, "id = ?", id).Error
}
