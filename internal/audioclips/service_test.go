package audioclips

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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
	clips map[uuid.UUID]*models.AudioClip
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{clips: make(map[uuid.UUID]*models.AudioClip)}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, clip *models.AudioClip) error {
	if clip.ID == uuid.Nil {
		clip.ID = uuid.New()
	}
	copied := *clip
	f.clips[clip.ID] = &copied
	return nil
}

func (f *fakeRepository) Update(ctx context.Context, clip *models.AudioClip) error {
	copied := *clip
	f.clips[clip.ID] = &copied
	return nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.AudioClip, error) {
	clip, ok := f.clips[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *clip
	return &copied, nil
}

func (f *fakeRepository) ListByUser(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID) ([]models.AudioClip, error) {
	var out []models.AudioClip
	for _, clip := range f.clips {
		if clip.UserID != userID {
			continue
		}
		if projectID != nil && (clip.ProjectID == nil || *clip.ProjectID != *projectID) {
			continue
		}
		out = append(out, *clip)
	}
	return out, nil
}

func (f *fakeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.clips, id)
	return nil
}

type fakeVoices struct {
	voices map[uuid.UUID]*models.Voice
}

func (f *fakeVoices) FindByID(ctx context.Context, id uuid.UUID) (*models.Voice, error) {
	voice, ok := f.voices[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return voice, nil
}

type fakeSpeech struct {
	calls    int
	lastReq  providers.SpeechRequest
	err      error
	duration int
}

func (f *fakeSpeech) SynthesizeSpeech(ctx context.Context, req providers.SpeechRequest) (*providers.SpeechResult, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	duration := f.duration
	if duration == 0 {
		duration = 3
	}
	return &providers.SpeechResult{Audio: []byte("mp3-bytes"), ResolvedVoice: req.VoiceID, DurationSeconds: duration}, nil
}

type fakeGate struct {
	balance int
	debits  int
	refunds int
}

func (f *fakeGate) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	return f.balance, nil
}

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
	return &models.CreditLedgerEntry{UserID: input.UserID, Delta: -input.Cost}, nil
}

func (f *fakeGate) Refund(ctx context.Context, input credits.RefundInput) (*models.CreditLedgerEntry, error) {
	f.balance += input.Amount
	f.refunds++
	return &models.CreditLedgerEntry{UserID: input.UserID, Delta: input.Amount}, nil
}

func (f *fakeGate) Grant(ctx context.Context, input credits.GrantInput) (*models.CreditLedgerEntry, error) {
	f.balance += input.Amount
	return &models.CreditLedgerEntry{UserID: input.UserID, Delta: input.Amount}, nil
}

func (f *fakeGate) ListLedger(ctx context.Context, userID uuid.UUID, limit int) ([]models.CreditLedgerEntry, error) {
	return nil, nil
}

type fakeJobRepo struct {
	jobs map[uuid.UUID]*models.GenerationJob
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[uuid.UUID]*models.GenerationJob)}
}

func (f *fakeJobRepo) WithTx(tx *gorm.DB) jobs.Repository { return f }

func (f *fakeJobRepo) Create(ctx context.Context, job *models.GenerationJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	copied := *job
	f.jobs[job.ID] = &copied
	return nil
}

func (f *fakeJobRepo) Update(ctx context.Context, job *models.GenerationJob) error {
	copied := *job
	f.jobs[job.ID] = &copied
	return nil
}

func (f *fakeJobRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return job, nil
}

func (f *fakeJobRepo) FindLatestSceneJob(ctx context.Context, projectID uuid.UUID, kind enums.JobKind, sceneNumber int) (*models.GenerationJob, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeJobRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.GenerationJob, error) {
	return nil, nil
}

type harness struct {
	svc        Service
	repo       *fakeRepository
	voices     *fakeVoices
	openai     *fakeSpeech
	elevenlabs *fakeSpeech
	gate       *fakeGate
	jobs       *fakeJobRepo
}

func newHarness(t *testing.T, balance int) *harness {
	t.Helper()
	repo := newFakeRepository()
	voices := &fakeVoices{voices: make(map[uuid.UUID]*models.Voice)}
	openai := &fakeSpeech{}
	elevenlabs := &fakeSpeech{}
	gate := &fakeGate{balance: balance}
	jobRepo := newFakeJobRepo()
	logg := logger.New(logger.Options{ServiceName: "audioclips-test", Level: zerolog.ErrorLevel})
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Voices: voices,
		Speech: map[enums.AudioProvider]providers.SpeechProvider{
			enums.AudioProviderOpenAI:     openai,
			enums.AudioProviderElevenLabs: elevenlabs,
		},
		Gate:      gate,
		Jobs:      jobRepo,
		AudioCost: 1,
		Logger:    logg,
	})
	require.NoError(t, err)
	return &harness{svc: svc, repo: repo, voices: voices, openai: openai, elevenlabs: elevenlabs, gate: gate, jobs: jobRepo}
}

func TestGenerateStoresClipWithDataURL(t *testing.T) {
	h := newHarness(t, 10)
	userID := uuid.New()

	clip, err := h.svc.Generate(context.Background(), GenerateAudioInput{
		UserID:  userID,
		Tier:    enums.SubscriptionTierFree,
		Text:    "  We meet at midnight.  ",
		VoiceID: "deep-male-a",
	})

	require.NoError(t, err)
	assert.Equal(t, "We meet at midnight.", clip.DialogueText)
	assert.Equal(t, enums.AudioProviderOpenAI, clip.Provider)
	assert.Equal(t, "deep-male-a", clip.VoiceID)
	assert.True(t, strings.HasPrefix(clip.AudioURL, "data:audio/mpeg;base64,"))
	assert.Equal(t, 3.0, clip.Duration)

	assert.Equal(t, 9, h.gate.balance)
	assert.Equal(t, 1, h.openai.calls)
	assert.Zero(t, h.elevenlabs.calls)
}

func TestGenerateElevenLabsRequiresEntitlement(t *testing.T) {
	h := newHarness(t, 10)

	_, err := h.svc.Generate(context.Background(), GenerateAudioInput{
		UserID:   uuid.New(),
		Tier:     enums.SubscriptionTierFree,
		Text:     "hello",
		Provider: "elevenlabs",
	})

	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeForbidden, appErr.Code())
	details, ok := appErr.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "openai", details["fallback_provider"])

	assert.Zero(t, h.elevenlabs.calls)
	assert.Zero(t, h.gate.debits)

	// the same request passes once the caller is on the basic plan
	_, err = h.svc.Generate(context.Background(), GenerateAudioInput{
		UserID:   uuid.New(),
		Tier:     enums.SubscriptionTierBasic,
		Text:     "hello",
		Provider: "elevenlabs",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, h.elevenlabs.calls)
}

func TestGenerateResolvesCatalogVoice(t *testing.T) {
	h := newHarness(t, 10)
	userID := uuid.New()
	voiceID := uuid.New()
	h.voices.voices[voiceID] = &models.Voice{
		ID:              voiceID,
		OwnerID:         &userID,
		Name:            "My Clone",
		Provider:        enums.VoiceProviderCloned,
		ProviderVoiceID: "clone-abc123",
		IsCustom:        true,
	}

	clip, err := h.svc.Generate(context.Background(), GenerateAudioInput{
		UserID:  userID,
		Tier:    enums.SubscriptionTierPro,
		Text:    "hello",
		VoiceID: voiceID.String(),
	})

	require.NoError(t, err)
	assert.Equal(t, enums.AudioProviderElevenLabs, clip.Provider)
	assert.Equal(t, "clone-abc123", clip.VoiceID)
	assert.Equal(t, "My Clone", clip.VoiceName)
	assert.Equal(t, "clone-abc123", h.elevenlabs.lastReq.VoiceID)
}

func TestGenerateHidesForeignVoices(t *testing.T) {
	h := newHarness(t, 10)
	otherID := uuid.New()
	voiceID := uuid.New()
	h.voices.voices[voiceID] = &models.Voice{
		ID:              voiceID,
		OwnerID:         &otherID,
		Provider:        enums.VoiceProviderCloned,
		ProviderVoiceID: "clone-xyz",
	}

	_, err := h.svc.Generate(context.Background(), GenerateAudioInput{
		UserID:  uuid.New(),
		Tier:    enums.SubscriptionTierPro,
		Text:    "hello",
		VoiceID: voiceID.String(),
	})

	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())
}

func TestGenerateRefundsOnProviderFailure(t *testing.T) {
	h := newHarness(t, 10)
	h.openai.err = errors.New("tts outage")

	_, err := h.svc.Generate(context.Background(), GenerateAudioInput{
		UserID: uuid.New(),
		Tier:   enums.SubscriptionTierFree,
		Text:   "hello",
	})

	require.Error(t, err)
	assert.Equal(t, 10, h.gate.balance)
	assert.Equal(t, 1, h.gate.refunds)
	assert.Empty(t, h.repo.clips)

	require.Len(t, h.jobs.jobs, 1)
	for _, job := range h.jobs.jobs {
		assert.Equal(t, enums.JobStatusFailed, job.Status)
	}
}

func TestGenerateDeniedWithoutCredits(t *testing.T) {
	h := newHarness(t, 0)

	_, err := h.svc.Generate(context.Background(), GenerateAudioInput{
		UserID: uuid.New(),
		Tier:   enums.SubscriptionTierFree,
		Text:   "hello",
	})

	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeInsufficientCredits, appErr.Code())
	assert.Zero(t, h.openai.calls)
	assert.Empty(t, h.jobs.jobs)
}

func TestToggleFavoriteFlips(t *testing.T) {
	h := newHarness(t, 10)
	userID := uuid.New()
	clip := &models.AudioClip{UserID: userID, DialogueText: "x", AudioURL: "u", Provider: enums.AudioProviderOpenAI, VoiceID: "v", VoiceName: "v"}
	require.NoError(t, h.repo.Create(context.Background(), clip))

	updated, err := h.svc.ToggleFavorite(context.Background(), userID, clip.ID)
	require.NoError(t, err)
	assert.True(t, updated.IsFavorite)

	updated, err = h.svc.ToggleFavorite(context.Background(), userID, clip.ID)
	require.NoError(t, err)
	assert.False(t, updated.IsFavorite)
}

func TestReuseIncrementsCounterWithoutCharging(t *testing.T) {
	h := newHarness(t, 10)
	userID := uuid.New()
	clip := &models.AudioClip{UserID: userID, DialogueText: "x", AudioURL: "u", Provider: enums.AudioProviderOpenAI, VoiceID: "v", VoiceName: "v"}
	require.NoError(t, h.repo.Create(context.Background(), clip))

	updated, err := h.svc.Reuse(context.Background(), userID, clip.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.ReuseCount)

	updated, err = h.svc.Reuse(context.Background(), userID, clip.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.ReuseCount)
	assert.Equal(t, 10, h.gate.balance)
}

func TestListScopedByProject(t *testing.T) {
	h := newHarness(t, 10)
	userID := uuid.New()
	projectID := uuid.New()
	require.NoError(t, h.repo.Create(context.Background(), &models.AudioClip{UserID: userID, ProjectID: &projectID, DialogueText: "a", AudioURL: "u", Provider: enums.AudioProviderOpenAI, VoiceID: "v", VoiceName: "v"}))
	require.NoError(t, h.repo.Create(context.Background(), &models.AudioClip{UserID: userID, DialogueText: "b", AudioURL: "u", Provider: enums.AudioProviderOpenAI, VoiceID: "v", VoiceName: "v"}))
	require.NoError(t, h.repo.Create(context.Background(), &models.AudioClip{UserID: uuid.New(), ProjectID: &projectID, DialogueText: "c", AudioURL: "u", Provider: enums.AudioProviderOpenAI, VoiceID: "v", VoiceName: "v"}))

	scoped, err := h.svc.List(context.Background(), userID, &projectID)
	require.NoError(t, err)
	assert.Len(t, scoped, 1)

	all, err := h.svc.List(context.Background(), userID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
