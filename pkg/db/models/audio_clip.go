package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dramaforge/dramaforge-backend/pkg/enums"
)

// AudioClip is one synthesized dialogue segment, positioned on the
// project timeline by scene number and start/end offsets.
type AudioClip struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	ProjectID     *uuid.UUID          `gorm:"column:project_id;type:uuid;index"`
	ScriptID      *uuid.UUID          `gorm:"column:script_id;type:uuid;index"`
	SceneNumber   *int                `gorm:"column:scene_number"`
	EpisodeNumber int                 `gorm:"column:episode_number;not null;default:1"`
	StartTime     *float64            `gorm:"column:start_time;type:numeric(8,2)"`
	EndTime       *float64            `gorm:"column:end_time;type:numeric(8,2)"`
	DialogueText  string              `gorm:"column:dialogue_text;type:text;not null"`
	CharacterName *string             `gorm:"column:character_name"`
	AudioURL      string              `gorm:"column:audio_url;not null"`
	Duration      float64             `gorm:"column:duration;type:numeric(8,2);not null"`
	Provider      enums.AudioProvider `gorm:"column:provider;type:text;not null"`
	VoiceID       string              `gorm:"column:voice_id;not null"`
	VoiceName     string              `gorm:"column:voice_name;not null"`
	IsFavorite    bool                `gorm:"column:is_favorite;not null;default:false"`
	ReuseCount    int                 `gorm:"column:reuse_count;not null;default:0"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
}
