package providers

import (
	"context"
	"unicode/utf8"

	"github.com/dramaforge/dramaforge-backend/pkg/db/models"
)

// ClipStatus is the lifecycle state of a provider video task.
type ClipStatus string

const (
	ClipStatusProcessing ClipStatus = "processing"
	ClipStatusCompleted  ClipStatus = "completed"
	ClipStatusFailed     ClipStatus = "failed"
	ClipStatusMocked     ClipStatus = "mocked"
)

// ScriptRequest carries everything the screenwriter prompt needs.
type ScriptRequest struct {
	Logline    string
	Platform   string
	Characters []CharacterRef
}

// CharacterRef is the name/description pair injected into the prompt so
// generated scenes reference a consistent cast.
type CharacterRef struct {
	Name        string
	Description string
}

// ImageRequest describes one character portrait generation.
type ImageRequest struct {
	Description string
	Count       int
}

// SpeechRequest describes one dialogue synthesis call.
type SpeechRequest struct {
	Text    string
	VoiceID string
}

// SpeechResult is synthesized audio plus the resolved provider voice.
type SpeechResult struct {
	Audio           []byte
	ResolvedVoice   string
	DurationSeconds int
}

// CloneRequest describes a voice cloning call.
type CloneRequest struct {
	Name        string
	AudioSample []byte
}

// ClipRequest describes one video clip generation. ReferenceImageURL
// switches the provider from text-to-video to image-to-video.
type ClipRequest struct {
	Prompt            string
	ReferenceImageURL string
}

// ClipTask is the provider's view of an asynchronous video job.
type ClipTask struct {
	TaskID   string
	Status   ClipStatus
	VideoURL string
	Message  string
}

// Terminal reports whether the task needs no further polling.
func (c ClipStatus) Terminal() bool {
	return c == ClipStatusCompleted || c == ClipStatusFailed || c == ClipStatusMocked
}

// ScriptProvider expands a logline into numbered scenes.
type ScriptProvider interface {
	GenerateScript(ctx context.Context, req ScriptRequest) ([]models.ScriptScene, error)
}

// ImageProvider generates character reference portraits.
type ImageProvider interface {
	GenerateCharacterImages(ctx context.Context, req ImageRequest) ([]string, error)
}

// SpeechProvider synthesizes dialogue audio.
type SpeechProvider interface {
	SynthesizeSpeech(ctx context.Context, req SpeechRequest) (*SpeechResult, error)
}

// VoiceCloner creates a reusable cloned voice from a sample.
type VoiceCloner interface {
	CloneVoice(ctx context.Context, req CloneRequest) (string, error)
}

// ClipProvider creates and polls asynchronous video clip tasks.
type ClipProvider interface {
	CreateClipTask(ctx context.Context, req ClipRequest) (*ClipTask, error)
	CheckClipTask(ctx context.Context, taskID string) (*ClipTask, error)
}

// estimateDuration approximates spoken seconds from text length the same
// way the TTS vendors bill it. Counted in runes, not bytes, so CJK
// dialogue is not billed three times over.
func estimateDuration(text string) int {
	if text == "" {
		return 0
	}
	return (utf8.RuneCountInString(text) + 14) / 15
}
