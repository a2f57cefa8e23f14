package projects

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dramaforge/dramaforge-backend/pkg/db/models"
	"github.com/dramaforge/dramaforge-backend/pkg/enums"
	pkgerrors "github.com/dramaforge/dramaforge-backend/pkg/errors"
)

// Service defines project lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateProjectInput) (*models.Project, error)
	Get(ctx context.Context, userID, projectID uuid.UUID) (*models.Project, error)
	List(ctx context.Context, userID uuid.UUID, limit int) ([]models.Project, error)
	Update(ctx context.Context, input UpdateProjectInput) (*models.Project, error)
	Delete(ctx context.Context, userID, projectID uuid.UUID) error
}

type service struct {
	repo Repository
}

// CreateProjectInput carries the fields a new project needs.
type CreateProjectInput struct {
	UserID   uuid.UUID      `json:"-"`
	Name     string         `json:"name"`
	Platform enums.Platform `json:"platform"`
	Logline  string         `json:"logline"`
}

// UpdateProjectInput mutates the user-editable project fields. Nil fields
// are left untouched.
type UpdateProjectInput struct {
	UserID    uuid.UUID       `json:"-"`
	ProjectID uuid.UUID       `json:"-"`
	Name      *string         `json:"name"`
	Platform  *enums.Platform `json:"platform"`
	Logline   *string         `json:"logline"`
}

// NewService wires a project service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("project repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateProjectInput) (*models.Project, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "project name required")
	}
	if strings.TrimSpace(input.Logline) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logline required")
	}
	platform := input.Platform
	if platform == "" {
		platform = enums.PlatformTikTok
	}
	if !platform.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid platform %q", input.Platform))
	}

	project := &models.Project{
		UserID:   input.UserID,
		Name:     name,
		Platform: platform,
		Logline:  strings.TrimSpace(input.Logline),
		Status:   enums.ProjectStatusDraft,
	}
	if err := s.repo.Create(ctx, project); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create project")
	}
	return project, nil
}

func (s *service) Get(ctx context.Context, userID, projectID uuid.UUID) (*models.Project, error) {
	return s.loadOwned(ctx, userID, projectID)
}

func (s *service) List(ctx context.Context, userID uuid.UUID, limit int) ([]models.Project, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	list, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list projects")
	}
	return list, nil
}

func (s *service) Update(ctx context.Context, input UpdateProjectInput) (*models.Project, error) {
	project, err := s.loadOwned(ctx, input.UserID, input.ProjectID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "project name required")
		}
		project.Name = name
	}
	if input.Platform != nil {
		if !input.Platform.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid platform %q", *input.Platform))
		}
		project.Platform = *input.Platform
	}
	if input.Logline != nil {
		logline := strings.TrimSpace(*input.Logline)
		if logline == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "logline required")
		}
		project.Logline = logline
	}

	if err := s.repo.Update(ctx, project); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update project")
	}
	return project, nil
}

func (s *service) Delete(ctx context.Context, userID, projectID uuid.UUID) error {
	if _, err := s.loadOwned(ctx, userID, projectID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, projectID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete project")
	}
	return nil
}

func (s *service) loadOwned(ctx context.Context, userID, projectID uuid.UUID) (*models.Project, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if projectID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "project id required")
	}
	project, err := s.repo.FindByID(ctx, projectID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "project not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load project")
	}
	if project.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "project not found")
	}
	return project, nil
}
