package scripts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
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
	"github.com/dramaforge/dramaforge-backend/pkg/metrics"
)

// shortFormTargetSeconds is the advisory ceiling for a single episode.
const shortFormTargetSeconds = 60

// scriptLockTTL bounds how long one generation can block the next.
const scriptLockTTL = 5 * time.Minute

// GenerateInput describes one script generation request.
type GenerateInput struct {
	UserID    uuid.UUID
	ProjectID uuid.UUID
	Provider  string
}

// GenerateResult is the stored script plus an optional duration advisory.
type GenerateResult struct {
	Script  *models.Script `json:"script"`
	Warning string         `json:"warning,omitempty"`
}

// Service defines script operations.
type Service interface {
	Generate(ctx context.Context, input GenerateInput) (*GenerateResult, error)
	Latest(ctx context.Context, userID, projectID uuid.UUID) (*models.Script, error)
	ListVersions(ctx context.Context, userID, projectID uuid.UUID) ([]models.Script, error)
}

type projectSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	Update(ctx context.Context, project *models.Project) error
}

type characterSource interface {
	ListForProject(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID) ([]models.Character, error)
}

type scriptLocker interface {
	ScriptLockKey(projectID string) string
	AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

type service struct {
	repo       Repository
	projects   projectSource
	characters characterSource
	writers    map[string]providers.ScriptProvider
	gate       credits.Service
	jobs       jobs.Repository
	locks      scriptLocker
	scriptCost int
	logg       *logger.Logger
	metrics    *metrics.GenerationMetrics
}

// ServiceParams collects the script service dependencies.
type ServiceParams struct {
	Repo       Repository
	Projects   projectSource
	Characters characterSource
	Writers    map[string]providers.ScriptProvider
	Gate       credits.Service
	Jobs       jobs.Repository
	Locks      scriptLocker
	ScriptCost int
	Logger     *logger.Logger
	Metrics    *metrics.GenerationMetrics
}

// NewService wires the script service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("script repository required")
	}
	if params.Projects == nil {
		return nil, fmt.Errorf("project source required")
	}
	if params.Characters == nil {
		return nil, fmt.Errorf("character source required")
	}
	if len(params.Writers) == 0 {
		return nil, fmt.Errorf("at least one script provider required")
	}
	if params.Gate == nil {
		return nil, fmt.Errorf("credit gate required")
	}
	if params.Jobs == nil {
		return nil, fmt.Errorf("job repository required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("script locker required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	cost := params.ScriptCost
	if cost <= 0 {
		cost = credits.CostScript
	}
	return &service{
		repo:       params.Repo,
		projects:   params.Projects,
		characters: params.Characters,
		writers:    params.Writers,
		gate:       params.Gate,
		jobs:       params.Jobs,
		locks:      params.Locks,
		scriptCost: cost,
		logg:       params.Logger,
		metrics:    params.Metrics,
	}, nil
}

func (s *service) Generate(ctx context.Context, input GenerateInput) (*GenerateResult, error) {
	project, err := s.loadOwnedProject(ctx, input.UserID, input.ProjectID)
	if err != nil {
		return nil, err
	}

	providerName := strings.ToLower(strings.TrimSpace(input.Provider))
	if providerName == "" {
		providerName = "openai"
	}
	writer, ok := s.writers[providerName]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown script provider %q", input.Provider))
	}

	lockKey := s.locks.ScriptLockKey(project.ID.String())
	acquired, err := s.locks.AcquireLock(ctx, lockKey, input.UserID.String(), scriptLockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire script lock")
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "script generation already in progress")
	}
	defer s.releaseLock(ctx, lockKey)

	if err := s.gate.Authorize(ctx, input.UserID, s.scriptCost); err != nil {
		return nil, err
	}

	cast, err := s.characters.ListForProject(ctx, input.UserID, &project.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list characters")
	}

	job := &models.GenerationJob{
		UserID:    input.UserID,
		ProjectID: &project.ID,
		Kind:      enums.JobKindScript,
		Status:    enums.JobStatusPending,
		Provider:  providerName,
	}
	if payload, err := json.Marshal(map[string]any{"logline": project.Logline, "platform": project.Platform, "characters": len(cast)}); err == nil {
		job.InputPayload = payload
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create script job")
	}
	if _, err := s.gate.Debit(ctx, credits.DebitInput{
		UserID: input.UserID,
		Cost:   s.scriptCost,
		Kind:   enums.JobKindScript,
		JobID:  &job.ID,
	}); err != nil {
		return nil, err
	}
	job.CreditsCharged = s.scriptCost

	started := time.Now()
	refs := make([]providers.CharacterRef, 0, len(cast))
	for _, character := range cast {
		refs = append(refs, providers.CharacterRef{Name: character.Name, Description: character.Description})
	}
	scenes, err := writer.GenerateScript(ctx, providers.ScriptRequest{
		Logline:    project.Logline,
		Platform:   project.Platform.String(),
		Characters: refs,
	})
	if err != nil {
		s.finishJob(ctx, job, nil, err)
		s.refund(ctx, job)
		s.metrics.IncFailure(enums.JobKindScript.String(), providerName)
		return nil, err
	}

	resolveCharacterIDs(scenes, cast)

	version, err := s.repo.LatestVersion(ctx, project.ID)
	if err != nil {
		s.finishJob(ctx, job, nil, err)
		s.refund(ctx, job)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve script version")
	}
	script := &models.Script{
		ProjectID: project.ID,
		Scenes:    scenes,
		Version:   version + 1,
	}
	if err := s.repo.Create(ctx, script); err != nil {
		s.finishJob(ctx, job, nil, err)
		s.refund(ctx, job)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store script")
	}

	if project.Status == enums.ProjectStatusDraft {
		project.Status = enums.ProjectStatusScripted
		if err := s.projects.Update(ctx, project); err != nil {
			s.logg.Error(ctx, "mark project scripted", err)
		}
	}

	s.finishJob(ctx, job, script, nil)
	s.metrics.ObserveDuration(enums.JobKindScript.String(), providerName, time.Since(started))
	s.metrics.IncSuccess(enums.JobKindScript.String(), providerName)

	result := &GenerateResult{Script: script}
	if total := script.TotalDuration(); total > shortFormTargetSeconds {
		result.Warning = fmt.Sprintf("estimated duration %ds exceeds the %ds short-form target", total, shortFormTargetSeconds)
	}
	return result, nil
}

func (s *service) Latest(ctx context.Context, userID, projectID uuid.UUID) (*models.Script, error) {
	if _, err := s.loadOwnedProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	script, err := s.repo.LatestByProject(ctx, projectID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no script generated yet")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load script")
	}
	return script, nil
}

func (s *service) ListVersions(ctx context.Context, userID, projectID uuid.UUID) ([]models.Script, error) {
	if _, err := s.loadOwnedProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	scripts, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list scripts")
	}
	return scripts, nil
}

// resolveCharacterIDs attaches known character ids to scenes whose
// generated character name matches the cast, case-insensitively.
func resolveCharacterIDs(scenes []models.ScriptScene, cast []models.Character) {
	if len(cast) == 0 {
		return
	}
	byName := make(map[string]uuid.UUID, len(cast))
	for _, character := range cast {
		byName[strings.ToLower(strings.TrimSpace(character.Name))] = character.ID
	}
	for i := range scenes {
		if scenes[i].CharacterName == "" {
			continue
		}
		if id, ok := byName[strings.ToLower(strings.TrimSpace(scenes[i].CharacterName))]; ok {
			resolved := id
			scenes[i].CharacterID = &resolved
		}
	}
}

func (s *service) loadOwnedProject(ctx context.Context, userID, projectID uuid.UUID) (*models.Project, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if projectID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "project id required")
	}
	project, err := s.projects.FindByID(ctx, projectID)
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

func (s *service) finishJob(ctx context.Context, job *models.GenerationJob, script *models.Script, cause error) {
	completedAt := time.Now().UTC()
	job.CompletedAt = &completedAt
	if cause != nil {
		message := cause.Error()
		job.Status = enums.JobStatusFailed
		job.ErrorMessage = &message
	} else {
		job.Status = enums.JobStatusSucceeded
		if payload, err := json.Marshal(map[string]any{
			"script_id":      script.ID,
			"version":        script.Version,
			"scenes":         len(script.Scenes),
			"total_duration": script.TotalDuration(),
		}); err == nil {
			job.ResultPayload = payload
		}
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		s.logg.Error(ctx, "persist script job outcome", err)
	}
}

func (s *service) refund(ctx context.Context, job *models.GenerationJob) {
	if _, err := s.gate.Refund(ctx, credits.RefundInput{
		UserID: job.UserID,
		Amount: s.scriptCost,
		JobID:  &job.ID,
	}); err != nil {
		s.logg.Error(ctx, "refund script credits", err)
	}
}

func (s *service) releaseLock(ctx context.Context, key string) {
	if err := s.locks.ReleaseLock(ctx, key); err != nil {
		s.logg.Error(ctx, "release script lock", err)
	}
}
