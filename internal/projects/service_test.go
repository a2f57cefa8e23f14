package projects

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dramaforge/dramaforge-backend/pkg/db/models"
	"github.com/dramaforge/dramaforge-backend/pkg/enums"
	pkgerrors "github.com/dramaforge/dramaforge-backend/pkg/errors"
)

type fakeRepository struct {
	byID map[uuid.UUID]*models.Project
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{byID: map[uuid.UUID]*models.Project{}}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, project *models.Project) error {
	project.ID = uuid.New()
	copied := *project
	f.byID[project.ID] = &copied
	return nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	project, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *project
	return &copied, nil
}

func (f *fakeRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Project, error) {
	var list []models.Project
	for _, project := range f.byID {
		if project.UserID == userID {
			list = append(list, *project)
		}
	}
	return list, nil
}

func (f *fakeRepository) Update(ctx context.Context, project *models.Project) error {
	copied := *project
	f.byID[project.ID] = &copied
	return nil
}

func (f *fakeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.byID, id)
	return nil
}

func TestCreateProject(t *testing.T) {
	svc, err := NewService(newFakeRepository())
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	userID := uuid.New()

	project, err := svc.Create(context.Background(), CreateProjectInput{
		UserID:   userID,
		Name:     "  Neon Hearts  ",
		Platform: enums.PlatformReels,
		Logline:  "A detective falls for the suspect she is tailing.",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if project.Name != "Neon Hearts" {
		t.Fatalf("name not trimmed: %q", project.Name)
	}
	if project.Status != enums.ProjectStatusDraft {
		t.Fatalf("new projects start as draft, got %s", project.Status)
	}
	if project.Platform != enums.PlatformReels {
		t.Fatalf("platform not kept: %s", project.Platform)
	}
}

func TestCreateProjectDefaultsPlatform(t *testing.T) {
	svc, _ := NewService(newFakeRepository())

	project, err := svc.Create(context.Background(), CreateProjectInput{
		UserID:  uuid.New(),
		Name:    "Untitled",
		Logline: "Two strangers share a cab and a secret.",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if project.Platform != enums.PlatformTikTok {
		t.Fatalf("expected TikTok default, got %s", project.Platform)
	}
}

func TestCreateProjectValidation(t *testing.T) {
	svc, _ := NewService(newFakeRepository())
	userID := uuid.New()

	tests := []struct {
		name  string
		input CreateProjectInput
	}{
		{"missing user", CreateProjectInput{Name: "x", Logline: "y"}},
		{"missing name", CreateProjectInput{UserID: userID, Logline: "y"}},
		{"missing logline", CreateProjectInput{UserID: userID, Name: "x"}},
		{"bad platform", CreateProjectInput{UserID: userID, Name: "x", Logline: "y", Platform: "MySpace"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tc.input); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestGetHidesForeignProjects(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := NewService(repo)
	owner := uuid.New()

	project, err := svc.Create(context.Background(), CreateProjectInput{UserID: owner, Name: "Mine", Logline: "..."})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	_, err = svc.Get(context.Background(), uuid.New(), project.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("foreign access should read as not found, got %v", err)
	}

	got, err := svc.Get(context.Background(), owner, project.ID)
	if err != nil || got.ID != project.ID {
		t.Fatalf("owner lookup failed: %v", err)
	}
}

func TestUpdateProjectPartial(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := NewService(repo)
	owner := uuid.New()

	project, _ := svc.Create(context.Background(), CreateProjectInput{UserID: owner, Name: "Before", Logline: "old line"})

	newName := "After"
	updated, err := svc.Update(context.Background(), UpdateProjectInput{
		UserID:    owner,
		ProjectID: project.ID,
		Name:      &newName,
	})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if updated.Name != "After" {
		t.Fatalf("name not updated: %q", updated.Name)
	}
	if updated.Logline != "old line" {
		t.Fatalf("untouched field changed: %q", updated.Logline)
	}
}

func TestDeleteProject(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := NewService(repo)
	owner := uuid.New()

	project, _ := svc.Create(context.Background(), CreateProjectInput{UserID: owner, Name: "Gone", Logline: "..."})
	if err := svc.Delete(context.Background(), owner, project.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := svc.Get(context.Background(), owner, project.ID); err == nil {
		t.Fatal("project should be gone")
	}
}
