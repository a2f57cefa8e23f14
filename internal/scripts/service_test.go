package scripts

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

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
	scripts []models.Script
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, script *models.Script) error {
	script.ID = uuid.New()
	f.scripts = append(f.scripts, *script)
	return nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Script, error) {
	for i := range f.scripts {
		if f.scripts[i].ID == id {
			copied := f.scripts[i]
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) LatestByProject(ctx context.Context, projectID uuid.UUID) (*models.Script, error) {
	var latest *models.Script
	for i := range f.scripts {
		script := f.scripts[i]
		if script.ProjectID != projectID {
			continue
		}
		if latest == nil || script.Version > latest.Version {
			copied := script
			latest = &copied
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return latest, nil
}

func (f *fakeRepository) LatestVersion(ctx context.Context, projectID uuid.UUID) (int, error) {
	latest, err := f.LatestByProject(ctx, projectID)
	if err == gorm.ErrRecordNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return latest.Version, nil
}

func (f *fakeRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Script, error) {
	var out []models.Script
	for _, script := range f.scripts {
		if script.ProjectID == projectID {
			out = append(out, script)
		}
	}
	return out, nil
}

type fakeProjects struct {
	project *models.Project
}

func (f *fakeProjects) FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	if f.project == nil || f.project.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *f.project
	return &copied, nil
}

func (f *fakeProjects) Update(ctx context.Context, project *models.Project) error {
	copied := *project
	f.project = &copied
	return nil
}

type fakeCharacters struct {
	cast []models.Character
}

func (f *fakeCharacters) ListForProject(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID) ([]models.Character, error) {
	return f.cast, nil
}

type fakeWriter struct {
	calls  int
	scenes []models.ScriptScene
	err    error
}

func (f *fakeWriter) GenerateScript(ctx context.Context, req providers.ScriptRequest) ([]models.ScriptScene, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.scenes, nil
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
	updated []*models.GenerationJob
}

func (f *fakeJobs) WithTx(tx *gorm.DB) jobs.Repository { return f }

func (f *fakeJobs) Create(ctx context.Context, job *models.GenerationJob) error {
	job.ID = uuid.New()
	f.created = append(f.created, job)
	return nil
}

func (f *fakeJobs) Update(ctx context.Context, job *models.GenerationJob) error {
	f.updated = append(f.updated, job)
	return nil
}

func (f *fakeJobs) FindByID(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeJobs) FindLatestSceneJob(ctx context.Context, projectID uuid.UUID, kind enums.JobKind, sceneNumber int) (*models.GenerationJob, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeJobs) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.GenerationJob, error) {
	return nil, nil
}

type fakeLocker struct {
	held map[string]bool
}

func (f *fakeLocker) ScriptLockKey(projectID string) string { return "df:script_lock:" + projectID }

func (f *fakeLocker) AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if f.held == nil {
		f.held = map[string]bool{}
	}
	if f.held[key] {
		return false, nil
	}
	f.held[key] = true
	return true, nil
}

func (f *fakeLocker) ReleaseLock(ctx context.Context, key string) error {
	delete(f.held, key)
	return nil
}

type harness struct {
	svc        Service
	repo       *fakeRepository
	projects   *fakeProjects
	characters *fakeCharacters
	writer     *fakeWriter
	gate       *fakeGate
	jobs       *fakeJobs
	locker     *fakeLocker

	userID    uuid.UUID
	projectID uuid.UUID
}

func newHarness(t *testing.T, balance int) *harness {
	t.Helper()
	userID := uuid.New()
	projectID := uuid.New()

	h := &harness{
		repo: &fakeRepository{},
		projects: &fakeProjects{project: &models.Project{
			ID:       projectID,
			UserID:   userID,
			Name:     "Neon Hearts",
			Platform: enums.PlatformTikTok,
			Logline:  "A detective falls for the suspect she is tailing.",
			Status:   enums.ProjectStatusDraft,
		}},
		characters: &fakeCharacters{},
		writer: &fakeWriter{scenes: []models.ScriptScene{
			{SceneNumber: 1, Description: "Rainy rooftop", Dialogue: "Stop right there.", CharacterName: "Mara", Duration: 20},
			{SceneNumber: 2, Description: "Neon alley", Dialogue: "Make me.", CharacterName: "Unknown", Duration: 25},
		}},
		gate:      &fakeGate{balance: balance},
		jobs:      &fakeJobs{},
		locker:    &fakeLocker{},
		userID:    userID,
		projectID: projectID,
	}

	svc, err := NewService(ServiceParams{
		Repo:       h.repo,
		Projects:   h.projects,
		Characters: h.characters,
		Writers:    map[string]providers.ScriptProvider{"openai": h.writer},
		Gate:       h.gate,
		Jobs:       h.jobs,
		Locks:      h.locker,
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	h.svc = svc
	return h
}

func TestGenerateStoresVersionedScript(t *testing.T) {
	h := newHarness(t, 10)

	first, err := h.svc.Generate(context.Background(), GenerateInput{UserID: h.userID, ProjectID: h.projectID})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if first.Script.Version != 1 {
		t.Fatalf("first script should be version 1, got %d", first.Script.Version)
	}

	second, err := h.svc.Generate(context.Background(), GenerateInput{UserID: h.userID, ProjectID: h.projectID})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if second.Script.Version != 2 {
		t.Fatalf("regeneration should append version 2, got %d", second.Script.Version)
	}
	if h.gate.debits != 2 {
		t.Fatalf("each generation costs one debit, got %d", h.gate.debits)
	}
	if h.projects.project.Status != enums.ProjectStatusScripted {
		t.Fatalf("project should become scripted, got %s", h.projects.project.Status)
	}
}

func TestGenerateResolvesCharacterIDs(t *testing.T) {
	h := newHarness(t, 10)
	mara := models.Character{ID: uuid.New(), UserID: h.userID, Name: "Mara", Description: "A sharp-eyed detective"}
	h.characters.cast = []models.Character{mara}

	result, err := h.svc.Generate(context.Background(), GenerateInput{UserID: h.userID, ProjectID: h.projectID})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	scenes := result.Script.Scenes
	if scenes[0].CharacterID == nil || *scenes[0].CharacterID != mara.ID {
		t.Fatalf("known character not resolved: %+v", scenes[0])
	}
	if scenes[1].CharacterID != nil {
		t.Fatalf("unknown character must stay unresolved: %+v", scenes[1])
	}
}

func TestGenerateWarnsPastShortFormTarget(t *testing.T) {
	h := newHarness(t, 10)
	h.writer.scenes = []models.ScriptScene{
		{SceneNumber: 1, Description: "One", Duration: 40},
		{SceneNumber: 2, Description: "Two", Duration: 35},
	}

	result, err := h.svc.Generate(context.Background(), GenerateInput{UserID: h.userID, ProjectID: h.projectID})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if !strings.Contains(result.Warning, "75s") {
		t.Fatalf("expected duration advisory, got %q", result.Warning)
	}
}

func TestGenerateDeniedWithoutCredits(t *testing.T) {
	h := newHarness(t, 0)

	_, err := h.svc.Generate(context.Background(), GenerateInput{UserID: h.userID, ProjectID: h.projectID})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientCredits {
		t.Fatalf("expected insufficient credits, got %v", err)
	}
	if h.writer.calls != 0 {
		t.Fatal("denied generation must not call the provider")
	}
	if len(h.locker.held) != 0 {
		t.Fatal("lock must be released after denial")
	}
}

func TestGenerateRefundsOnProviderFailure(t *testing.T) {
	h := newHarness(t, 10)
	h.writer.err = pkgerrors.New(pkgerrors.CodeProviderUnavailable, "model offline")

	_, err := h.svc.Generate(context.Background(), GenerateInput{UserID: h.userID, ProjectID: h.projectID})
	if err == nil {
		t.Fatal("expected provider failure")
	}
	if h.gate.refunds != 1 || h.gate.balance != 10 {
		t.Fatalf("failed generation must refund: refunds=%d balance=%d", h.gate.refunds, h.gate.balance)
	}
	if len(h.jobs.updated) == 0 || h.jobs.updated[len(h.jobs.updated)-1].Status != enums.JobStatusFailed {
		t.Fatal("job should be marked failed")
	}
}

func TestGenerateSerializedPerProject(t *testing.T) {
	h := newHarness(t, 10)
	h.locker.held = map[string]bool{h.locker.ScriptLockKey(h.projectID.String()): true}

	_, err := h.svc.Generate(context.Background(), GenerateInput{UserID: h.userID, ProjectID: h.projectID})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestGenerateRejectsUnknownProvider(t *testing.T) {
	h := newHarness(t, 10)

	_, err := h.svc.Generate(context.Background(), GenerateInput{UserID: h.userID, ProjectID: h.projectID, Provider: "bard"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLatestRequiresExistingScript(t *testing.T) {
	h := newHarness(t, 10)

	_, err := h.svc.Latest(context.Background(), h.userID, h.projectID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
