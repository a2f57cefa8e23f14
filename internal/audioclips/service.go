package audioclips

import (
	"context"
	"encoding/base64"
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
	"github.com/dramaforge/dramaforge-backend/pkg/storage"
)

// premiumMinimumTier gates the ElevenLabs speech engine.
const premiumMinimumTier = enums.SubscriptionTierBasic

const defaultVoiceID = "ultra-female"

// Service defines audio clip generation and library operations.
type Service interface {
	Generate(ctx context.Context, input GenerateAudioInput) (*models.AudioClip, error)
	Get(ctx context.Context, userID, clipID uuid.UUID) (*models.AudioClip, error)
	List(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID) ([]models.AudioClip, error)
	ToggleFavorite(ctx context.Context, userID, clipID uuid.UUID) (*models.AudioClip, error)
	Reuse(ctx context.Context, userID, clipID uuid.UUID) (*models.AudioClip, error)
	Delete(ctx context.Context, userID, clipID uuid.UUID) error
}

// GenerateAudioInput describes one standalone TTS request. VoiceID may
// be a catalog voice row id or a raw provider voice alias.
type GenerateAudioInput struct {
	UserID        uuid.UUID
	Tier          enums.SubscriptionTier
	ProjectID     *uuid.UUID
	ScriptID      *uuid.UUID
	SceneNumber   *int
	Text          string
	VoiceID       string
	Provider      string
	CharacterName *string
}

// voiceSource resolves catalog voice rows referenced by id.
type voiceSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Voice, error)
}

type service struct {
	repo      Repository
	voices    voiceSource
	speech    map[enums.AudioProvider]providers.SpeechProvider
	gate      credits.Service
	jobs      jobs.Repository
	uploader  storage.Uploader
	audioCost int
	logg      *logger.Logger
	metrics   *metrics.GenerationMetrics
}

// ServiceParams collects the audio clip service dependencies.
type ServiceParams struct {
	Repo      Repository
	Voices    voiceSource
	Speech    map[enums.AudioProvider]providers.SpeechProvider
	Gate      credits.Service
	Jobs      jobs.Repository
	Uploader  storage.Uploader
	AudioCost int
	Logger    *logger.Logger
	Metrics   *metrics.GenerationMetrics
}

// NewService wires the audio clip service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("audio clip repository required")
	}
	if len(params.Speech) == 0 {
		return nil, fmt.Errorf("at least one speech provider required")
	}
	if params.Gate == nil {
		return nil, fmt.Errorf("credit gate required")
	}
	if params.Jobs == nil {
		return nil, fmt.Errorf("job repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	cost := params.AudioCost
	if cost <= 0 {
		cost = credits.CostAudio
	}
	return &service{
		repo:      params.Repo,
		voices:    params.Voices,
		speech:    params.Speech,
		gate:      params.Gate,
		jobs:      params.Jobs,
		uploader:  params.Uploader,
		audioCost: cost,
		logg:      params.Logger,
		metrics:   params.Metrics,
	}, nil
}

// Generate synthesizes one dialogue segment and stores it in the user's
// clip library. ElevenLabs is gated behind the basic plan; the denial
// names openai as the usable fallback so the client can retry.
func (s *service) Generate(ctx context.Context, input GenerateAudioInput) (*models.AudioClip, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "text required")
	}

	provider := enums.AudioProviderOpenAI
	if raw := strings.ToLower(strings.TrimSpace(input.Provider)); raw != "" {
		parsed, err := enums.ParseAudioProvider(raw)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown audio provider %q", raw))
		}
		provider = parsed
	}

	voiceID := strings.TrimSpace(input.VoiceID)
	voiceName := voiceID
	if parsed, err := uuid.Parse(voiceID); err == nil && s.voices != nil {
		voice, err := s.voices.FindByID(ctx, parsed)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "voice not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load voice")
		}
		if voice.OwnerID != nil && *voice.OwnerID != input.UserID {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "voice not found")
		}
		voiceID = voice.ProviderVoiceID
		voiceName = voice.Name
		switch voice.Provider {
		case enums.VoiceProviderElevenLabs, enums.VoiceProviderCloned:
			provider = enums.AudioProviderElevenLabs
		case enums.VoiceProviderOpenAI:
			provider = enums.AudioProviderOpenAI
		}
	}
	if voiceID == "" {
		voiceID = defaultVoiceID
		voiceName = defaultVoiceID
	}

	if provider == enums.AudioProviderElevenLabs && !input.Tier.AtLeast(premiumMinimumTier) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "the elevenlabs voice engine is not available on your plan").
			WithDetails(map[string]string{
				"required_tier":     premiumMinimumTier.String(),
				"fallback_provider": enums.AudioProviderOpenAI.String(),
			})
	}

	engine, ok := s.speech[provider]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeProviderUnavailable, fmt.Sprintf("no %s speech engine configured", provider))
	}

	if err := s.gate.Authorize(ctx, input.UserID, s.audioCost); err != nil {
		return nil, err
	}

	job := &models.GenerationJob{
		UserID:   input.UserID,
		Kind:     enums.JobKindAudio,
		Status:   enums.JobStatusPending,
		Provider: provider.String(),
	}
	if payload, err := json.Marshal(map[string]any{"voice_id": voiceID, "chars": len(text)}); err == nil {
		job.InputPayload = payload
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create audio job")
	}
	if _, err := s.gate.Debit(ctx, credits.DebitInput{
		UserID: input.UserID,
		Cost:   s.audioCost,
		Kind:   enums.JobKindAudio,
		JobID:  &job.ID,
	}); err != nil {
		return nil, err
	}
	job.CreditsCharged = s.audioCost

	started := time.Now()
	result, err := engine.SynthesizeSpeech(ctx, providers.SpeechRequest{Text: text, VoiceID: voiceID})
	if err != nil {
		s.finishJob(ctx, job, "", err)
		s.refund(ctx, job)
		s.metrics.IncFailure(enums.JobKindAudio.String(), provider.String())
		return nil, err
	}

	audioURL, err := s.storeAudio(ctx, input.UserID, job.ID, result.Audio)
	if err != nil {
		s.finishJob(ctx, job, "", err)
		s.refund(ctx, job)
		s.metrics.IncFailure(enums.JobKindAudio.String(), provider.String())
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store audio")
	}

	if result.ResolvedVoice != "" && voiceName == voiceID {
		voiceName = result.ResolvedVoice
	}
	clip := &models.AudioClip{
		UserID:        input.UserID,
		ProjectID:     input.ProjectID,
		ScriptID:      input.ScriptID,
		SceneNumber:   input.SceneNumber,
		EpisodeNumber: 1,
		DialogueText:  text,
		CharacterName: input.CharacterName,
		AudioURL:      audioURL,
		Duration:      float64(result.DurationSeconds),
		Provider:      provider,
		VoiceID:       voiceID,
		VoiceName:     voiceName,
	}
	if err := s.repo.Create(ctx, clip); err != nil {
		s.finishJob(ctx, job, "", err)
		s.refund(ctx, job)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store audio clip")
	}

	s.finishJob(ctx, job, audioURL, nil)
	s.metrics.ObserveDuration(enums.JobKindAudio.String(), provider.String(), time.Since(started))
	s.metrics.IncSuccess(enums.JobKindAudio.String(), provider.String())
	return clip, nil
}

func (s *service) Get(ctx context.Context, userID, clipID uuid.UUID) (*models.AudioClip, error) {
	return s.loadOwned(ctx, userID, clipID)
}

func (s *service) List(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID) ([]models.AudioClip, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	clips, err := s.repo.ListByUser(ctx, userID, projectID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audio clips")
	}
	return clips, nil
}

func (s *service) ToggleFavorite(ctx context.Context, userID, clipID uuid.UUID) (*models.AudioClip, error) {
	clip, err := s.loadOwned(ctx, userID, clipID)
	if err != nil {
		return nil, err
	}
	clip.IsFavorite = !clip.IsFavorite
	if err := s.repo.Update(ctx, clip); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update audio clip")
	}
	return clip, nil
}

// Reuse bumps the clip's reuse counter when it is attached to another
// scene instead of re-synthesized.
func (s *service) Reuse(ctx context.Context, userID, clipID uuid.UUID) (*models.AudioClip, error) {
	clip, err := s.loadOwned(ctx, userID, clipID)
	if err != nil {
		return nil, err
	}
	clip.ReuseCount++
	if err := s.repo.Update(ctx, clip); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update audio clip")
	}
	return clip, nil
}

func (s *service) Delete(ctx context.Context, userID, clipID uuid.UUID) error {
	if _, err := s.loadOwned(ctx, userID, clipID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, clipID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete audio clip")
	}
	return nil
}

func (s *service) loadOwned(ctx context.Context, userID, clipID uuid.UUID) (*models.AudioClip, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	clip, err := s.repo.FindByID(ctx, clipID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "audio clip not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load audio clip")
	}
	if clip.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "audio clip not found")
	}
	return clip, nil
}

// storeAudio uploads the bytes when object storage is configured and
// falls back to an inline data URL otherwise.
func (s *service) storeAudio(ctx context.Context, userID, jobID uuid.UUID, audio []byte) (string, error) {
	if s.uploader == nil {
		return "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString(audio), nil
	}
	object := fmt.Sprintf("audio/%s/%s.mp3", userID, jobID)
	return s.uploader.UploadBytes(ctx, object, audio)
}

func (s *service) finishJob(ctx context.Context, job *models.GenerationJob, audioURL string, cause error) {
	completedAt := time.Now().UTC()
	job.CompletedAt = &completedAt
	if cause != nil {
		message := cause.Error()
		job.Status = enums.JobStatusFailed
		job.ErrorMessage = &message
	} else {
		job.Status = enums.JobStatusSucceeded
		if payload, err := json.Marshal(map[string]string{"audio_url": audioURL}); err == nil {
			job.ResultPayload = payload
		}
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		s.logg.Error(ctx, "persist audio job outcome", err)
	}
}

func (s *service) refund(ctx context.Context, job *models.GenerationJob) {
	if _, err := s.gate.Refund(ctx, credits.RefundInput{
		UserID: job.UserID,
		Amount: s.audioCost,
		JobID:  &job.ID,
	}); err != nil {
		s.logg.Error(ctx, "refund audio credits", err)
	}
}
