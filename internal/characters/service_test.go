package characters

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dramaforge/dramaforge-backend/internal/credits"
	"github.com/dramaforge/dramaforge-backend/internal/jobs"
	"github.com/dramaforge/dramaforge-backend/internal/providers"
	"github.com/dramaforge/dramaforge-backend/pkg/db/models"
	"github.com/dramaforge/dramaforge-backend/pkg/enums"
	pkgerrors "github.com/dramaforge/dramaforge-backend/pkg/errors"
	"github.com/dramaforge/dramaforge-backend/pkg/logger"
)

type fakeRepository struct {
	byID map[uuid.UUID]*models.Character
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{byID: map[uuid.UUID]*models.Character{}}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, character *models.Character) error {
	character.ID = uuid.New()
	copied := *character
	f.byID[character.ID] = &copied
	return nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Character, error) {
	character, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *character
	return &copied, nil
}

func (f *fakeRepository) ListForProject(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID) ([]models.Character, error) {
	var list []models.Character
	for _, character := range f.byID {
		if character.UserID != userID {
			continue
		}
		if projectID == nil {
			if character.ProjectID == nil {
				list = append(list, *character)
			}
			continue
		}
		if character.ProjectID == nil || *character.ProjectID == *projectID {
			list = append(list, *character)
		}
	}
	return list, nil
}

func (f *fakeRepository) Update(ctx context.Context, character *models.Character) error {
	copied := *character
	f.byID[character.ID] = &copied
	return nil
}

func (f *fakeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.byID, id)
	return nil
}

type fakeImages struct {
	calls int
	urls  []string
	err   error
}

func (f *fakeImages) GenerateCharacterImages(ctx context.Context, req providers.ImageRequest) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.urls) >= req.Count {
		return f.urls[:req.Count], nil
	}
	return f.urls, nil
}

type fakeGate struct {
	balance int
	debits  int
	refunds int
}

func (f *fakeGate) Balance(ctx context.Context, userID uuid.UUID) (int, error) { return f.balance, nil }

func (f *fakeGate) Authorize(ctx context.Context, userID uuid.UUID, cost int) error {
	if f.balance < cost {
		return pkgerrors.New(pkgerrors.CodeInsufficientCredits, "insufficient credits")
	}
	return nil
}

func (f *fakeGate) Debit(ctx context.Context, input credits.DebitInput) (*models.CreditLedgerEntry, error) {
	if f.balance < input.Cost {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientCredits, "insufficient credits")
	}
	f.balance -= input.Cost
	f.debits++
	return &models.CreditLedgerEntry{Delta: -input.Cost}, nil
}

func (f *fakeGate) Refund(ctx context.Context, input credits.RefundInput) (*models.CreditLedgerEntry, error) {
	f.balance += input.Amount
	f.refunds++
	return &models.CreditLedgerEntry{Delta: input.Amount}, nil
}

func (f *fakeGate) Grant(ctx context.Context, input credits.GrantInput) (*models.CreditLedgerEntry, error) {
	return nil, nil
}

func (f *fakeGate) ListLedger(ctx context.Context, userID uuid.UUID, limit int) ([]models.CreditLedgerEntry, error) {
	return nil, nil
}

type fakeJobs struct {
	created []*models.GenerationJob
}

func (f *fakeJobs) WithTx(tx *gorm.DB) jobs.Repository { return f }

func (f *fakeJobs) Create(ctx context.Context, job *models.GenerationJob) error {
	job.ID = uuid.New()
	f.created = append(f.created, job)
	return nil
}

func (f *fakeJobs) Update(ctx context.Context, job *models.GenerationJob) error { return nil }

func (f *fakeJobs) FindByID(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeJobs) FindLatestSceneJob(ctx context.Context, projectID uuid.UUID, kind enums.JobKind, sceneNumber int) (*models.GenerationJob, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeJobs) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.GenerationJob, error) {
	return nil, nil
}

func newTestService(t *testing.T, repo Repository, images providers.ImageProvider, gate credits.Service) Service {
	t.Helper()
	svc, err := NewService(repo, images, gate, &fakeJobs{}, 1, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}), nil)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestCreateAndListScoped(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(t, repo, &fakeImages{}, &fakeGate{balance: 10})
	userID := uuid.New()
	projectID := uuid.New()

	shared, err := svc.Create(context.Background(), CreateCharacterInput{UserID: userID, Name: "Mara", Description: "A sharp-eyed detective"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	scoped, err := svc.Create(context.Background(), CreateCharacterInput{UserID: userID, ProjectID: &projectID, Name: "Elio", Description: "A reformed thief"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	list, err := svc.List(context.Background(), userID, &projectID)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("project listing should include shared cast, got %d", len(list))
	}

	sharedOnly, err := svc.List(context.Background(), userID, nil)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(sharedOnly) != 1 || sharedOnly[0].ID != shared.ID {
		t.Fatalf("unscoped listing should exclude %s", scoped.Name)
	}
}

func TestGenerateImagesAppendsToCharacter(t *testing.T) {
	repo := newFakeRepository()
	images := &fakeImages{urls: []string{"https://img.example.com/a.png", "https://img.example.com/b.png"}}
	gate := &fakeGate{balance: 3}
	svc := newTestService(t, repo, images, gate)
	userID := uuid.New()

	character, _ := svc.Create(context.Background(), CreateCharacterInput{UserID: userID, Name: "Mara", Description: "A sharp-eyed detective"})

	result, err := svc.GenerateImages(context.Background(), GenerateImagesInput{
		UserID:      userID,
		CharacterID: &character.ID,
		Count:       2,
	})
	if err != nil {
		t.Fatalf("GenerateImages error: %v", err)
	}
	if len(result.ImageURLs) != 2 {
		t.Fatalf("expected 2 urls, got %d", len(result.ImageURLs))
	}
	stored, _ := svc.Get(context.Background(), userID, character.ID)
	if len(stored.ImageURLs) != 2 {
		t.Fatalf("images not persisted on character: %v", stored.ImageURLs)
	}
	if gate.debits != 1 {
		t.Fatalf("one generation call costs one debit, got %d", gate.debits)
	}
}

func TestGenerateImagesDeniedWithoutCredits(t *testing.T) {
	repo := newFakeRepository()
	images := &fakeImages{urls: []string{"https://img.example.com/a.png"}}
	gate := &fakeGate{balance: 0}
	svc := newTestService(t, repo, images, gate)

	_, err := svc.GenerateImages(context.Background(), GenerateImagesInput{
		UserID:      uuid.New(),
		Description: "A sharp-eyed detective",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientCredits {
		t.Fatalf("expected insufficient credits, got %v", err)
	}
	if images.calls != 0 {
		t.Fatal("denied generation must not call the provider")
	}
}

func TestGenerateImagesRefundsOnFailure(t *testing.T) {
	repo := newFakeRepository()
	images := &fakeImages{err: pkgerrors.New(pkgerrors.CodeProviderUnavailable, "image model offline")}
	gate := &fakeGate{balance: 5}
	svc := newTestService(t, repo, images, gate)

	_, err := svc.GenerateImages(context.Background(), GenerateImagesInput{
		UserID:      uuid.New(),
		Description: "A sharp-eyed detective",
	})
	if err == nil {
		t.Fatal("expected provider failure")
	}
	if gate.refunds != 1 || gate.balance != 5 {
		t.Fatalf("failed generation must refund: refunds=%d balance=%d", gate.refunds, gate.balance)
	}
}

func TestGenerateImagesCapsCount(t *testing.T) {
	repo := newFakeRepository()
	images := &fakeImages{urls: []string{"a", "b", "c", "d", "e", "f"}}
	gate := &fakeGate{balance: 5}
	svc := newTestService(t, repo, images, gate)

	result, err := svc.GenerateImages(context.Background(), GenerateImagesInput{
		UserID:      uuid.New(),
		Description: "A sharp-eyed detective",
		Count:       10,
	})
	if err != nil {
		t.Fatalf("GenerateImages error: %v", err)
	}
	if len(result.ImageURLs) != maxPortraitsPerCall {
		t.Fatalf("count should cap at %d, got %d", maxPortraitsPerCall, len(result.ImageURLs))
	}
}

func TestDeleteHidesForeignCharacters(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(t, repo, &fakeImages{}, &fakeGate{balance: 5})
	owner := uuid.New()

	character, _ := svc.Create(context.Background(), CreateCharacterInput{UserID: owner, Name: "Mara", Description: "A sharp-eyed detective"})

	err := svc.Delete(context.Background(), uuid.New(), character.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("foreign delete should read as not found, got %v", err)
	}
}
