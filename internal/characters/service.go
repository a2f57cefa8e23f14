package characters

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

// maxPortraitsPerCall caps one generation request.
const maxPortraitsPerCall = 4

// Service defines character operations.
type Service interface {
	Create(ctx context.Context, input CreateCharacterInput) (*models.Character, error)
	Get(ctx context.Context, userID, characterID uuid.UUID) (*models.Character, error)
	List(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID) ([]models.Character, error)
	Update(ctx context.Context, input UpdateCharacterInput) (*models.Character, error)
	Delete(ctx context.Context, userID, characterID uuid.UUID) error
	GenerateImages(ctx context.Context, input GenerateImagesInput) (*GenerateImagesResult, error)
}

// CreateCharacterInput carries a new cast member.
type CreateCharacterInput struct {
	UserID      uuid.UUID  `json:"-"`
	ProjectID   *uuid.UUID `json:"project_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
}

// UpdateCharacterInput mutates the editable character fields.
type UpdateCharacterInput struct {
	UserID      uuid.UUID `json:"-"`
	CharacterID uuid.UUID `json:"-"`
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
}

// GenerateImagesInput describes one portrait generation request. When
// CharacterID is set the generated URLs are appended to that character.
type GenerateImagesInput struct {
	UserID      uuid.UUID  `json:"-"`
	CharacterID *uuid.UUID `json:"character_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Count       int        `json:"count"`
}

// GenerateImagesResult is the generated portrait set.
type GenerateImagesResult struct {
	ImageURLs []string          `json:"image_urls"`
	Character *models.Character `json:"character,omitempty"`
}

type service struct {
	repo      Repository
	images    providers.ImageProvider
	gate      credits.Service
	jobs      jobs.Repository
	imageCost int
	logg      *logger.Logger
	metrics   *metrics.GenerationMetrics
}

// NewService wires the character service.
func NewService(repo Repository, images providers.ImageProvider, gate credits.Service, jobRepo jobs.Repository, imageCost int, logg *logger.Logger, generationMetrics *metrics.GenerationMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("character repository required")
	}
	if images == nil {
		return nil, fmt.Errorf("image provider required")
	}
	if gate == nil {
		return nil, fmt.Errorf("credit gate required")
	}
	if jobRepo == nil {
		return nil, fmt.Errorf("job repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if imageCost <= 0 {
		imageCost = credits.CostImage
	}
	return &service{
		repo:      repo,
		images:    images,
		gate:      gate,
		jobs:      jobRepo,
		imageCost: imageCost,
		logg:      logg,
		metrics:   generationMetrics,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateCharacterInput) (*models.Character, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "character name required")
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "character description required")
	}

	character := &models.Character{
		UserID:      input.UserID,
		ProjectID:   input.ProjectID,
		Name:        name,
		Description: description,
		ImageURLs:   []string{},
	}
	if err := s.repo.Create(ctx, character); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create character")
	}
	return character, nil
}

func (s *service) Get(ctx context.Context, userID, characterID uuid.UUID) (*models.Character, error) {
	return s.loadOwned(ctx, userID, characterID)
}

func (s *service) List(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID) ([]models.Character, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	list, err := s.repo.ListForProject(ctx, userID, projectID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list characters")
	}
	return list, nil
}

func (s *service) Update(ctx context.Context, input UpdateCharacterInput) (*models.Character, error) {
	character, err := s.loadOwned(ctx, input.UserID, input.CharacterID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "character name required")
		}
		character.Name = name
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if description == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "character description required")
		}
		character.Description = description
	}
	if err := s.repo.Update(ctx, character); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update character")
	}
	return character, nil
}

func (s *service) Delete(ctx context.Context, userID, characterID uuid.UUID) error {
	if _, err := s.loadOwned(ctx, userID, characterID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, characterID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete character")
	}
	return nil
}

func (s *service) GenerateImages(ctx context.Context, input GenerateImagesInput) (*GenerateImagesResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var character *models.Character
	if input.CharacterID != nil {
		loaded, err := s.loadOwned(ctx, input.UserID, *input.CharacterID)
		if err != nil {
			return nil, err
		}
		character = loaded
		if input.Name == "" {
			input.Name = character.Name
		}
		if input.Description == "" {
			input.Description = character.Description
		}
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "character description required")
	}
	count := input.Count
	if count <= 0 {
		count = 1
	}
	if count > maxPortraitsPerCall {
		count = maxPortraitsPerCall
	}

	if err := s.gate.Authorize(ctx, input.UserID, s.imageCost); err != nil {
		return nil, err
	}

	job := &models.GenerationJob{
		UserID:   input.UserID,
		Kind:     enums.JobKindImage,
		Status:   enums.JobStatusPending,
		Provider: "openai",
	}
	if character != nil {
		job.ProjectID = character.ProjectID
	}
	if payload, err := json.Marshal(map[string]any{"name": input.Name, "description": description, "count": count}); err == nil {
		job.InputPayload = payload
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create image job")
	}
	if _, err := s.gate.Debit(ctx, credits.DebitInput{
		UserID: input.UserID,
		Cost:   s.imageCost,
		Kind:   enums.JobKindImage,
		JobID:  &job.ID,
	}); err != nil {
		return nil, err
	}
	job.CreditsCharged = s.imageCost

	started := time.Now()
	urls, err := s.images.GenerateCharacterImages(ctx, providers.ImageRequest{Description: description, Count: count})
	if err != nil {
		s.finishJob(ctx, job, nil, err)
		s.refund(ctx, job)
		s.metrics.IncFailure(enums.JobKindImage.String(), "openai")
		return nil, err
	}

	if character != nil {
		character.ImageURLs = append(character.ImageURLs, urls...)
		if err := s.repo.Update(ctx, character); err != nil {
			s.logg.Error(ctx, "append character images", err)
		}
	}

	s.finishJob(ctx, job, urls, nil)
	s.metrics.ObserveDuration(enums.JobKindImage.String(), "openai", time.Since(started))
	s.metrics.IncSuccess(enums.JobKindImage.String(), "openai")

	return &GenerateImagesResult{ImageURLs: urls, Character: character}, nil
}

func (s *service) loadOwned(ctx context.Context, userID, characterID uuid.UUID) (*models.Character, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if characterID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "character id required")
	}
	character, err := s.repo.FindByID(ctx, characterID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "character not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load character")
	}
	if character.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "character not found")
	}
	return character, nil
}

func (s *service) finishJob(ctx context.Context, job *models.GenerationJob, urls []string, cause error) {
	completedAt := time.Now().UTC()
	job.CompletedAt = &completedAt
	if cause != nil {
		message := cause.Error()
		job.Status = enums.JobStatusFailed
		job.ErrorMessage = &message
	} else {
		job.Status = enums.JobStatusSucceeded
		if payload, err := json.Marshal(map[string]any{"image_urls": urls}); err == nil {
			job.ResultPayload = payload
		}
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		s.logg.Error(ctx, "persist image job outcome", err)
	}
}

func (s *service) refund(ctx context.Context, job *models.GenerationJob) {
	if _, err := s.gate.Refund(ctx, credits.RefundInput{
		UserID: job.UserID,
		Amount: s.imageCost,
		JobID:  &job.ID,
	}); err != nil {
		s.logg.Error(ctx, "refund image credits", err)
	}
}
