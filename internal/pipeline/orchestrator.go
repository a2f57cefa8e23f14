package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/dramaforge/dramaforge-backend/internal/credits"
	"github.com/dramaforge/dramaforge-backend/internal/jobs"
	"github.com/dramaforge/dramaforge-backend/internal/providers"
	"github.com/dramaforge/dramaforge-backend/pkg/config"
	"github.com/dramaforge/dramaforge-backend/pkg/db/models"
	"github.com/dramaforge/dramaforge-backend/pkg/enums"
	pkgerrors "github.com/dramaforge/dramaforge-backend/pkg/errors"
	"github.com/dramaforge/dramaforge-backend/pkg/logger"
	"github.com/dramaforge/dramaforge-backend/pkg/metrics"
	"github.com/dramaforge/dramaforge-backend/pkg/storage"
)

// runLockTTL bounds how long a crashed worker can hold a project hostage.
const runLockTTL = 30 * time.Minute

// RunOptions is the user-supplied knob set for one production run,
// persisted on the run row as jsonb. The booleans gate whole stages:
// audio synthesis never runs with UseAudio off, and lip sync only runs
// on top of a synthesized audio track.
type RunOptions struct {
	UseAudio      bool                `json:"use_audio"`
	VoiceID       string              `json:"voice_id,omitempty"`
	AudioProvider enums.AudioProvider `json:"audio_provider,omitempty"`
	EnableLipSync bool                `json:"enable_lip_sync"`
	MusicStyle    enums.MusicStyle    `json:"music_style,omitempty"`
	VideoProvider enums.VideoProvider `json:"video_provider,omitempty"`
}

// StartRunInput describes a request to produce a project end to end.
type StartRunInput struct {
	UserID    uuid.UUID
	ProjectID uuid.UUID
	Options   RunOptions
}

// SceneClipInput describes an independent single-scene clip generation.
type SceneClipInput struct {
	UserID      uuid.UUID
	ProjectID   uuid.UUID
	SceneNumber int
}

// Service drives production runs through the stage machine
// idle -> video -> audio -> sync -> mixing -> idle.
type Service interface {
	StartRun(ctx context.Context, input StartRunInput) (*models.ProductionRun, error)
	GetRun(ctx context.Context, userID, runID uuid.UUID) (*models.ProductionRun, error)
	ListRuns(ctx context.Context, userID, projectID uuid.UUID, limit int) ([]models.ProductionRun, error)
	ExecuteRun(ctx context.Context, runID uuid.UUID) error
	GenerateSceneClip(ctx context.Context, input SceneClipInput) (*models.GenerationJob, error)
}

type projectSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	Update(ctx context.Context, project *models.Project) error
}

type scriptSource interface {
	LatestByProject(ctx context.Context, projectID uuid.UUID) (*models.Script, error)
}

type audioClipSink interface {
	Create(ctx context.Context, clip *models.AudioClip) error
	Update(ctx context.Context, clip *models.AudioClip) error
}

type runLocker interface {
	RunLockKey(projectID string) string
	AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

type runEnqueuer interface {
	EnqueueProductionRun(ctx context.Context, runID uuid.UUID) error
}

// RunNotifier receives run snapshots after every persisted state change.
type RunNotifier interface {
	NotifyRunUpdate(run *models.ProductionRun)
}

// ServiceParams collects the orchestrator's dependencies.
type ServiceParams struct {
	Repo       Repository
	Projects   projectSource
	Scripts    scriptSource
	AudioClips audioClipSink
	Jobs       jobs.Repository
	Gate       credits.Service
	Clips      map[enums.VideoProvider]providers.ClipProvider
	Speech     map[enums.AudioProvider]providers.SpeechProvider
	Poller     *Poller
	Locks      runLocker
	Queue      runEnqueuer
	Uploader   storage.Uploader
	Notifier   RunNotifier
	Costs      config.CreditsConfig
	Logger     *logger.Logger
	Metrics    *metrics.GenerationMetrics
}

type service struct {
	repo       Repository
	projects   projectSource
	scripts    scriptSource
	audioClips audioClipSink
	jobs       jobs.Repository
	gate       credits.Service
	clips      map[enums.VideoProvider]providers.ClipProvider
	speech     map[enums.AudioProvider]providers.SpeechProvider
	poller     *Poller
	locks      runLocker
	queue      runEnqueuer
	uploader   storage.Uploader
	notifier   RunNotifier
	costs      config.CreditsConfig
	logg       *logger.Logger
	metrics    *metrics.GenerationMetrics
}

// NewService wires the pipeline orchestrator.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("run repository required")
	}
	if params.Projects == nil {
		return nil, fmt.Errorf("project source required")
	}
	if params.Scripts == nil {
		return nil, fmt.Errorf("script source required")
	}
	if params.AudioClips == nil {
		return nil, fmt.Errorf("audio clip sink required")
	}
	if params.Jobs == nil {
		return nil, fmt.Errorf("job repository required")
	}
	if params.Gate == nil {
		return nil, fmt.Errorf("credit gate required")
	}
	if len(params.Clips) == 0 {
		return nil, fmt.Errorf("clip provider required")
	}
	if params.Poller == nil {
		return nil, fmt.Errorf("poller required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("run locker required")
	}
	if params.Queue == nil {
		return nil, fmt.Errorf("run queue required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       params.Repo,
		projects:   params.Projects,
		scripts:    params.Scripts,
		audioClips: params.AudioClips,
		jobs:       params.Jobs,
		gate:       params.Gate,
		clips:      params.Clips,
		speech:     params.Speech,
		poller:     params.Poller,
		locks:      params.Locks,
		queue:      params.Queue,
		uploader:   params.Uploader,
		notifier:   params.Notifier,
		costs:      params.Costs,
		logg:       params.Logger,
		metrics:    params.Metrics,
	}, nil
}

func (s *service) StartRun(ctx context.Context, input StartRunInput) (*models.ProductionRun, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ProjectID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "project id required")
	}
	if input.Options.AudioProvider != "" && !input.Options.AudioProvider.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid audio provider %q", input.Options.AudioProvider))
	}
	if input.Options.MusicStyle != "" && !input.Options.MusicStyle.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid music style %q", input.Options.MusicStyle))
	}
	if input.Options.VideoProvider != "" && !input.Options.VideoProvider.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid video provider %q", input.Options.VideoProvider))
	}

	project, err := s.loadOwnedProject(ctx, input.UserID, input.ProjectID)
	if err != nil {
		return nil, err
	}
	script, err := s.scripts.LatestByProject(ctx, project.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "project has no script to produce")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load script")
	}
	if len(script.Scenes) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "script has no scenes")
	}

	lockKey := s.locks.RunLockKey(project.ID.String())
	acquired, err := s.locks.AcquireLock(ctx, lockKey, input.UserID.String(), runLockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire run lock")
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "run already in progress")
	}

	cost := s.productionCost()
	if err := s.gate.Authorize(ctx, input.UserID, cost); err != nil {
		s.releaseLock(ctx, lockKey)
		return nil, err
	}

	options, err := json.Marshal(input.Options)
	if err != nil {
		s.releaseLock(ctx, lockKey)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode run options")
	}
	run := &models.ProductionRun{
		ProjectID:     project.ID,
		UserID:        input.UserID,
		Stage:         enums.RunStageIdle,
		Status:        enums.RunStatusPending,
		StatusMessage: "Queued for production",
		Options:       options,
	}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		s.releaseLock(ctx, lockKey)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create run")
	}

	if _, err := s.gate.Debit(ctx, credits.DebitInput{
		UserID: input.UserID,
		Cost:   cost,
		Kind:   enums.JobKindVideo,
		RunID:  &run.ID,
	}); err != nil {
		s.abortUnstarted(ctx, run, lockKey, err)
		return nil, err
	}

	if err := s.queue.EnqueueProductionRun(ctx, run.ID); err != nil {
		wrapped := pkgerrors.Wrap(pkgerrors.CodeDependency, err, "enqueue production run")
		s.refund(ctx, run, "enqueue failed")
		s.abortUnstarted(ctx, run, lockKey, wrapped)
		return nil, wrapped
	}

	s.notify(run)
	return run, nil
}

func (s *service) GetRun(ctx context.Context, userID, runID uuid.UUID) (*models.ProductionRun, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if runID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "run id required")
	}
	run, err := s.repo.FindRun(ctx, runID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "run not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load run")
	}
	if run.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "run not found")
	}
	return run, nil
}

func (s *service) ListRuns(ctx context.Context, userID, projectID uuid.UUID, limit int) ([]models.ProductionRun, error) {
	if _, err := s.loadOwnedProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	runs, err := s.repo.ListRunsByProject(ctx, projectID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list runs")
	}
	return runs, nil
}

// ExecuteRun is the worker entrypoint. The run lock taken at StartRun is
// held for the whole execution and released here.
func (s *service) ExecuteRun(ctx context.Context, runID uuid.UUID) error {
	run, err := s.repo.FindRun(ctx, runID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load run")
	}
	if run.Status.Terminal() {
		return nil
	}

	ctx = s.logg.WithRunID(s.logg.WithProjectID(ctx, run.ProjectID.String()), run.ID.String())
	lockKey := s.locks.RunLockKey(run.ProjectID.String())
	defer s.releaseLock(context.WithoutCancel(ctx), lockKey)

	startedAt := time.Now().UTC()
	run.StartedAt = &startedAt
	run.Status = enums.RunStatusRunning

	var options RunOptions
	if len(run.Options) > 0 {
		if err := json.Unmarshal(run.Options, &options); err != nil {
			return s.failRun(ctx, run, fmt.Sprintf("decode run options: %v", err), options.VideoProvider)
		}
	}

	project, err := s.projects.FindByID(ctx, run.ProjectID)
	if err != nil {
		return s.failRun(ctx, run, fmt.Sprintf("load project: %v", err), options.VideoProvider)
	}
	script, err := s.scripts.LatestByProject(ctx, run.ProjectID)
	if err != nil {
		return s.failRun(ctx, run, fmt.Sprintf("load script: %v", err), options.VideoProvider)
	}

	project.Status = enums.ProjectStatusProducing
	if err := s.projects.Update(ctx, project); err != nil {
		s.logg.Error(ctx, "mark project producing", err)
	}

	workingURL, err := s.runVideoStage(ctx, run, project, options)
	if err != nil {
		return err
	}

	if options.UseAudio {
		createdClips := s.runAudioStage(ctx, run, script, options)
		if options.EnableLipSync {
			s.runSyncStage(ctx, run, createdClips)
		}
	}
	if options.MusicStyle != "" {
		s.runMixingStage(ctx, run, options)
	}
	s.finalizeArtifacts(ctx, run, project, workingURL)

	completedAt := time.Now().UTC()
	run.Stage = enums.RunStageIdle
	run.Status = enums.RunStatusCompleted
	run.StatusMessage = "Production complete"
	run.CompletedAt = &completedAt
	if err := s.repo.UpdateRun(ctx, run); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize run")
	}
	s.notify(run)
	s.logg.Info(ctx, "production run completed")
	return nil
}

// cinematicSuffix is appended to the one-click prompt so the working
// video reads as footage rather than a storyboard.
const cinematicSuffix = " cinematic style"

// runVideoStage is the mandatory stage: one clip from the project
// logline through the selected provider. Any failure fails the run.
func (s *service) runVideoStage(ctx context.Context, run *models.ProductionRun, project *models.Project, options RunOptions) (string, error) {
	cleanup := context.WithoutCancel(ctx)
	if err := ctx.Err(); err != nil {
		s.refund(cleanup, run, "run cancelled")
		return "", s.failRun(cleanup, run, fmt.Sprintf("run cancelled: %v", err), options.VideoProvider)
	}

	clips, providerName, err := s.clipProvider(options.VideoProvider)
	if err != nil {
		s.refund(cleanup, run, err.Error())
		return "", s.failRun(cleanup, run, err.Error(), providerName)
	}
	if err := s.advance(ctx, run, enums.RunStageVideo, fmt.Sprintf("Generating video with %s", providerName)); err != nil {
		return "", err
	}

	prompt := project.Logline + cinematicSuffix
	job := &models.GenerationJob{
		UserID:    run.UserID,
		ProjectID: &run.ProjectID,
		Kind:      enums.JobKindVideo,
		Status:    enums.JobStatusPending,
		Provider:  providerName.String(),
	}
	if payload, err := json.Marshal(map[string]any{"prompt": prompt}); err == nil {
		job.InputPayload = payload
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		failure := fmt.Sprintf("create clip job: %v", err)
		s.refund(cleanup, run, failure)
		return "", s.failRun(cleanup, run, failure, providerName)
	}

	task, err := s.generateClip(ctx, job, clips, providerName, providers.ClipRequest{Prompt: prompt})
	if err != nil {
		s.refund(cleanup, run, err.Error())
		return "", s.failRun(cleanup, run, err.Error(), providerName)
	}

	url := task.VideoURL
	run.WorkingVideoURL = &url
	if err := s.repo.UpdateRun(ctx, run); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update run")
	}
	s.notify(run)
	return url, nil
}

// clipProvider resolves the run's provider choice, defaulting to kling.
func (s *service) clipProvider(choice enums.VideoProvider) (providers.ClipProvider, enums.VideoProvider, error) {
	if choice == "" {
		choice = enums.VideoProviderKling
	}
	provider, ok := s.clips[choice]
	if !ok {
		return nil, choice, fmt.Errorf("video provider %s not configured", choice)
	}
	return provider, choice, nil
}

// generateClip drives one provider clip task to a terminal state and
// records the outcome on the job row.
func (s *service) generateClip(ctx context.Context, job *models.GenerationJob, clips providers.ClipProvider, providerName enums.VideoProvider, req providers.ClipRequest) (*providers.ClipTask, error) {
	started := time.Now()
	task, err := clips.CreateClipTask(ctx, req)
	if err != nil {
		s.finishJob(ctx, job, nil, err)
		return nil, err
	}

	if !task.Status.Terminal() {
		job.Status = enums.JobStatusPolling
		job.ProviderTaskID = &task.TaskID
		if err := s.jobs.Update(ctx, job); err != nil {
			s.logg.Error(ctx, "record provider task id", err)
		}

		var attempts int
		task, attempts, err = Await(ctx, s.poller, func(ctx context.Context) (*providers.ClipTask, bool, error) {
			current, err := clips.CheckClipTask(ctx, task.TaskID)
			if err != nil {
				return nil, false, err
			}
			return current, current.Status.Terminal(), nil
		})
		s.metrics.ObservePollAttempts(providerName.String(), attempts)
		if err != nil {
			if errors.Is(err, ErrStillProcessing) {
				// Leave the job in polling state so the task id survives.
				return nil, fmt.Errorf("video generation timed out (task %s): %w", taskID(job), ErrStillProcessing)
			}
			s.finishJob(ctx, job, nil, err)
			return nil, err
		}
	}

	if task.Status == providers.ClipStatusFailed {
		failure := fmt.Errorf("video generation failed: %s", task.Message)
		s.finishJob(ctx, job, task, failure)
		return nil, failure
	}

	s.metrics.ObserveDuration(enums.JobKindVideo.String(), providerName.String(), time.Since(started))
	s.metrics.IncSuccess(enums.JobKindVideo.String(), providerName.String())
	s.finishJob(ctx, job, task, nil)
	return task, nil
}

// runAudioStage is optional: per-scene failures become run notes and the
// run keeps going.
func (s *service) runAudioStage(ctx context.Context, run *models.ProductionRun, script *models.Script, options RunOptions) []models.AudioClip {
	if err := s.advance(ctx, run, enums.RunStageAudio, "Synthesizing dialogue audio"); err != nil {
		return nil
	}

	provider := options.AudioProvider
	if provider == "" {
		provider = enums.AudioProviderOpenAI
	}
	speech, ok := s.speech[provider]
	if !ok {
		s.noteFailure(ctx, run, fmt.Sprintf("audio: provider %s not configured", provider))
		return nil
	}
	voiceID := options.VoiceID
	if voiceID == "" && provider == enums.AudioProviderElevenLabs {
		voiceID = "ultra-female"
	}

	var (
		created []models.AudioClip
		errs    error
	)
	for _, scene := range script.Scenes {
		if ctx.Err() != nil {
			break
		}
		if scene.Dialogue == "" {
			continue
		}

		clip, err := s.synthesizeSceneClip(ctx, run, script, scene, speech, provider, voiceID)
		if err != nil {
			errs = multierr.Append(errs, err)
			s.noteFailure(ctx, run, fmt.Sprintf("scene %d audio: %v", scene.SceneNumber, err))
			continue
		}
		created = append(created, *clip)
	}
	if errs != nil {
		s.logg.Error(ctx, "audio stage degraded", errs)
	}

	// Timeline offsets are a deterministic scene-order post-pass, so
	// they hold regardless of synthesis order.
	timed := AssignTimeline(created)
	for i := range timed {
		if err := s.audioClips.Update(ctx, &timed[i]); err != nil {
			s.noteFailure(ctx, run, fmt.Sprintf("timeline offsets: %v", err))
			return created
		}
	}
	return timed
}

func (s *service) synthesizeSceneClip(ctx context.Context, run *models.ProductionRun, script *models.Script, scene models.ScriptScene, speech providers.SpeechProvider, provider enums.AudioProvider, voiceID string) (*models.AudioClip, error) {
	result, err := speech.SynthesizeSpeech(ctx, providers.SpeechRequest{Text: scene.Dialogue, VoiceID: voiceID})
	if err != nil {
		return nil, err
	}

	audioURL := ""
	if s.uploader != nil {
		object := fmt.Sprintf("runs/%s/scene_%02d.mp3", run.ID, scene.SceneNumber)
		audioURL, err = s.uploader.UploadBytes(ctx, object, result.Audio)
		if err != nil {
			return nil, fmt.Errorf("store audio: %v", err)
		}
	}

	sceneNumber := scene.SceneNumber
	clip := &models.AudioClip{
		UserID:       run.UserID,
		ProjectID:    &run.ProjectID,
		ScriptID:     &script.ID,
		SceneNumber:  &sceneNumber,
		DialogueText: scene.Dialogue,
		AudioURL:     audioURL,
		Duration:     float64(result.DurationSeconds),
		Provider:     provider,
		VoiceID:      result.ResolvedVoice,
		VoiceName:    result.ResolvedVoice,
	}
	if scene.CharacterName != "" {
		name := scene.CharacterName
		clip.CharacterName = &name
	}
	if err := s.audioClips.Create(ctx, clip); err != nil {
		return nil, fmt.Errorf("store audio clip: %v", err)
	}
	return clip, nil
}

// runSyncStage applies lip sync to the working video using the
// synthesized dialogue track. No dedicated sync backend exists yet: the
// pass validates its inputs, reports progress, and keeps the working
// video. A missing audio track degrades the run instead of aborting it.
func (s *service) runSyncStage(ctx context.Context, run *models.ProductionRun, clips []models.AudioClip) {
	if err := s.advance(ctx, run, enums.RunStageSync, "Syncing lip movement to dialogue"); err != nil {
		return
	}
	if len(clips) == 0 {
		s.noteFailure(ctx, run, "sync: no audio clips to lip-sync")
	}
}

// runMixingStage only runs when a music style was chosen.
func (s *service) runMixingStage(ctx context.Context, run *models.ProductionRun, options RunOptions) {
	message := fmt.Sprintf("Mixing final video with %s music", options.MusicStyle)
	if err := s.advance(ctx, run, enums.RunStageMixing, message); err != nil {
		return
	}
}

// finalizeArtifacts promotes the working video to the run and project
// final artifact.
func (s *service) finalizeArtifacts(ctx context.Context, run *models.ProductionRun, project *models.Project, workingURL string) {
	run.FinalVideoURL = &workingURL

	project.FinalVideoURL = &workingURL
	project.Status = enums.ProjectStatusCompleted
	if err := s.projects.Update(ctx, project); err != nil {
		s.noteFailure(ctx, run, fmt.Sprintf("persist project video: %v", err))
	}
}

// GenerateSceneClip is the pro-mode path: one scene, one credit, cached
// so a finished scene is never paid for twice.
func (s *service) GenerateSceneClip(ctx context.Context, input SceneClipInput) (*models.GenerationJob, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.SceneNumber <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scene number must be positive")
	}
	project, err := s.loadOwnedProject(ctx, input.UserID, input.ProjectID)
	if err != nil {
		return nil, err
	}
	script, err := s.scripts.LatestByProject(ctx, project.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "project has no script")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load script")
	}
	var scene *models.ScriptScene
	for i := range script.Scenes {
		if script.Scenes[i].SceneNumber == input.SceneNumber {
			scene = &script.Scenes[i]
			break
		}
	}
	if scene == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "scene not found in current script")
	}

	cached, err := s.jobs.FindLatestSceneJob(ctx, project.ID, enums.JobKindVideo, input.SceneNumber)
	if err == nil && cached.Status == enums.JobStatusSucceeded {
		return cached, nil
	}
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cached scene clip")
	}

	clips, providerName, err := s.clipProvider("")
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeProviderUnavailable, err, "resolve clip provider")
	}

	cost := s.clipCost()
	if err := s.gate.Authorize(ctx, input.UserID, cost); err != nil {
		return nil, err
	}

	sceneNumber := input.SceneNumber
	job := &models.GenerationJob{
		UserID:      input.UserID,
		ProjectID:   &project.ID,
		Kind:        enums.JobKindVideo,
		Status:      enums.JobStatusPending,
		Provider:    providerName.String(),
		SceneNumber: &sceneNumber,
	}
	if payload, err := json.Marshal(map[string]any{"prompt": scene.Description, "scene_number": sceneNumber}); err == nil {
		job.InputPayload = payload
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create clip job")
	}
	if _, err := s.gate.Debit(ctx, credits.DebitInput{
		UserID: input.UserID,
		Cost:   cost,
		Kind:   enums.JobKindVideo,
		JobID:  &job.ID,
	}); err != nil {
		return nil, err
	}
	job.CreditsCharged = cost
	if err := s.jobs.Update(ctx, job); err != nil {
		s.logg.Error(ctx, "record clip charge", err)
	}

	if _, err := s.generateClip(ctx, job, clips, providerName, providers.ClipRequest{Prompt: scene.Description}); err != nil {
		if errors.Is(err, ErrStillProcessing) {
			// Still in flight: the charge stands and the job carries the
			// provider task id for later collection.
			return job, nil
		}
		s.refundJob(ctx, job, cost)
		if typed := pkgerrors.As(err); typed != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeGenerationFailed, err, "scene clip generation failed")
	}
	return job, nil
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

// advance moves the run to the given stage, persists it, and fans the
// snapshot out to progress listeners.
func (s *service) advance(ctx context.Context, run *models.ProductionRun, stage enums.RunStage, message string) error {
	run.Stage = stage
	run.StatusMessage = message
	if err := s.repo.UpdateRun(ctx, run); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update run")
	}
	s.notify(run)
	return nil
}

// failRun terminates the run with the failure surfaced verbatim.
func (s *service) failRun(ctx context.Context, run *models.ProductionRun, message string, provider enums.VideoProvider) error {
	if provider == "" {
		provider = enums.VideoProviderKling
	}
	completedAt := time.Now().UTC()
	run.Stage = enums.RunStageIdle
	run.Status = enums.RunStatusFailed
	run.StatusMessage = "Production failed"
	run.ErrorMessage = &message
	run.CompletedAt = &completedAt
	if err := s.repo.UpdateRun(ctx, run); err != nil {
		s.logg.Error(ctx, "persist failed run", err)
	}
	s.notify(run)
	s.metrics.IncFailure(enums.JobKindVideo.String(), provider.String())
	return pkgerrors.New(pkgerrors.CodeGenerationFailed, message)
}

// abortUnstarted marks a run that never reached the worker as failed and
// frees the project lock.
func (s *service) abortUnstarted(ctx context.Context, run *models.ProductionRun, lockKey string, cause error) {
	message := cause.Error()
	run.Status = enums.RunStatusFailed
	run.StatusMessage = "Production failed"
	run.ErrorMessage = &message
	if err := s.repo.UpdateRun(ctx, run); err != nil {
		s.logg.Error(ctx, "persist aborted run", err)
	}
	s.releaseLock(ctx, lockKey)
	s.notify(run)
}

func (s *service) noteFailure(ctx context.Context, run *models.ProductionRun, note string) {
	run.FailureNotes = append(run.FailureNotes, note)
	if err := s.repo.UpdateRun(ctx, run); err != nil {
		s.logg.Error(ctx, "persist run note", err)
	}
	s.notify(run)
}

func (s *service) refund(ctx context.Context, run *models.ProductionRun, reason string) {
	metadata, _ := json.Marshal(map[string]string{"reason": reason})
	if _, err := s.gate.Refund(ctx, credits.RefundInput{
		UserID:   run.UserID,
		Amount:   s.productionCost(),
		RunID:    &run.ID,
		Metadata: metadata,
	}); err != nil {
		s.logg.Error(ctx, "refund production credits", err)
	}
}

func (s *service) refundJob(ctx context.Context, job *models.GenerationJob, amount int) {
	if _, err := s.gate.Refund(ctx, credits.RefundInput{
		UserID: job.UserID,
		Amount: amount,
		JobID:  &job.ID,
	}); err != nil {
		s.logg.Error(ctx, "refund clip credits", err)
	}
}

func (s *service) finishJob(ctx context.Context, job *models.GenerationJob, task *providers.ClipTask, cause error) {
	completedAt := time.Now().UTC()
	job.CompletedAt = &completedAt
	if cause != nil {
		message := cause.Error()
		job.Status = enums.JobStatusFailed
		job.ErrorMessage = &message
	} else {
		job.Status = enums.JobStatusSucceeded
		if payload, err := json.Marshal(map[string]string{"video_url": task.VideoURL, "status": string(task.Status)}); err == nil {
			job.ResultPayload = payload
		}
		if task.TaskID != "" {
			job.ProviderTaskID = &task.TaskID
		}
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		s.logg.Error(ctx, "persist job outcome", err)
	}
}

func (s *service) releaseLock(ctx context.Context, key string) {
	if err := s.locks.ReleaseLock(ctx, key); err != nil {
		s.logg.Error(ctx, "release run lock", err)
	}
}

func (s *service) notify(run *models.ProductionRun) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyRunUpdate(run)
}

func (s *service) productionCost() int {
	if s.costs.ProductionCost > 0 {
		return s.costs.ProductionCost
	}
	return credits.CostProduction
}

func (s *service) clipCost() int {
	if s.costs.ClipCost > 0 {
		return s.costs.ClipCost
	}
	return credits.CostClip
}

func clipURLFromPayload(payload json.RawMessage) string {
	if len(payload) == 0 {
		return ""
	}
	var decoded struct {
		VideoURL string `json:"video_url"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return ""
	}
	return decoded.VideoURL
}

func taskID(job *models.GenerationJob) string {
	if job.ProviderTaskID == nil {
		return ""
	}
	return *job.ProviderTaskID
}
