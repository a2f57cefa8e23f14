package voices

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
)

// cloneMinimumTier is the lowest plan allowed to clone voices.
const cloneMinimumTier = enums.SubscriptionTierBasic

// Service defines voice catalog and cloning operations.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.Voice, error)
	Get(ctx context.Context, userID, voiceID uuid.UUID) (*models.Voice, error)
	Clone(ctx context.Context, input CloneVoiceInput) (*models.Voice, error)
	Delete(ctx context.Context, userID, voiceID uuid.UUID) error
}

// CloneVoiceInput describes one voice cloning request. Tier is the
// caller's subscription tier as carried by the session.
type CloneVoiceInput struct {
	UserID      uuid.UUID
	Tier        enums.SubscriptionTier
	Name        string
	AudioSample []byte
}

type service struct {
	repo      Repository
	cloner    providers.VoiceCloner
	gate      credits.Service
	jobs      jobs.Repository
	cloneCost int
	logg      *logger.Logger
}

// NewService wires the voice service.
func NewService(repo Repository, cloner providers.VoiceCloner, gate credits.Service, jobRepo jobs.Repository, cloneCost int, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("voice repository required")
	}
	if cloner == nil {
		return nil, fmt.Errorf("voice cloner required")
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
	if cloneCost <= 0 {
		cloneCost = credits.CostVoiceClone
	}
	return &service{
		repo:      repo,
		cloner:    cloner,
		gate:      gate,
		jobs:      jobRepo,
		cloneCost: cloneCost,
		logg:      logg,
	}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Voice, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	list, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list voices")
	}
	return list, nil
}

func (s *service) Get(ctx context.Context, userID, voiceID uuid.UUID) (*models.Voice, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	voice, err := s.repo.FindByID(ctx, voiceID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "voice not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load voice")
	}
	if voice.OwnerID != nil && *voice.OwnerID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "voice not found")
	}
	return voice, nil
}

// Clone creates a custom voice from an audio sample. The entitlement
// check runs before anything else: a free-tier caller is rejected even
// when the cloning backend is unreachable or unconfigured.
func (s *service) Clone(ctx context.Context, input CloneVoiceInput) (*models.Voice, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Tier.AtLeast(cloneMinimumTier) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "voice cloning is not available on your plan").
			WithDetails(map[string]string{
				"required_tier": cloneMinimumTier.String(),
				"upgrade_hint":  fmt.Sprintf("upgrade to the %s plan to clone voices", cloneMinimumTier),
			})
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voice name required")
	}
	if len(input.AudioSample) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "audio sample required")
	}

	if err := s.gate.Authorize(ctx, input.UserID, s.cloneCost); err != nil {
		return nil, err
	}

	job := &models.GenerationJob{
		UserID:   input.UserID,
		Kind:     enums.JobKindVoiceClone,
		Status:   enums.JobStatusPending,
		Provider: "elevenlabs",
	}
	if payload, err := json.Marshal(map[string]any{"name": name, "sample_bytes": len(input.AudioSample)}); err == nil {
		job.InputPayload = payload
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create clone job")
	}
	if _, err := s.gate.Debit(ctx, credits.DebitInput{
		UserID: input.UserID,
		Cost:   s.cloneCost,
		Kind:   enums.JobKindVoiceClone,
		JobID:  &job.ID,
	}); err != nil {
		return nil, err
	}
	job.CreditsCharged = s.cloneCost

	providerVoiceID, err := s.cloner.CloneVoice(ctx, providers.CloneRequest{Name: name, AudioSample: input.AudioSample})
	if err != nil {
		s.finishJob(ctx, job, "", err)
		s.refund(ctx, job)
		return nil, err
	}

	ownerID := input.UserID
	voice := &models.Voice{
		OwnerID:         &ownerID,
		Name:            name,
		Provider:        enums.VoiceProviderCloned,
		ProviderVoiceID: providerVoiceID,
		Gender:          enums.VoiceGenderFemale,
		Style:           "custom",
		IsCustom:        true,
	}
	if err := s.repo.Create(ctx, voice); err != nil {
		s.finishJob(ctx, job, providerVoiceID, err)
		s.refund(ctx, job)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store cloned voice")
	}

	s.finishJob(ctx, job, providerVoiceID, nil)
	return voice, nil
}

func (s *service) Delete(ctx context.Context, userID, voiceID uuid.UUID) error {
	voice, err := s.Get(ctx, userID, voiceID)
	if err != nil {
		return err
	}
	if !voice.IsCustom {
		return pkgerrors.New(pkgerrors.CodeForbidden, "built-in voices cannot be deleted")
	}
	if err := s.repo.Delete(ctx, voiceID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete voice")
	}
	return nil
}

func (s *service) finishJob(ctx context.Context, job *models.GenerationJob, providerVoiceID string, cause error) {
	completedAt := time.Now().UTC()
	job.CompletedAt = &completedAt
	if cause != nil {
		message := cause.Error()
		job.Status = enums.JobStatusFailed
		job.ErrorMessage = &message
	} else {
		job.Status = enums.JobStatusSucceeded
		if payload, err := json.Marshal(map[string]string{"provider_voice_id": providerVoiceID}); err == nil {
			job.ResultPayload = payload
		}
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		s.logg.Error(ctx, "persist clone job outcome", err)
	}
}

func (s *service) refund(ctx context.Context, job *models.GenerationJob) {
	if _, err := s.gate.Refund(ctx, credits.RefundInput{
		UserID: job.UserID,
		Amount: s.cloneCost,
		JobID:  &job.ID,
	}); err != nil {
		s.logg.Error(ctx, "refund clone credits", err)
	}
}
