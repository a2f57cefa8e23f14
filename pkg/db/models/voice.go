package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dramaforge/dramaforge-backend/pkg/enums"
)

// Voice is a catalog entry the TTS stage can speak with. Built-in voices
// have a nil OwnerID; cloned voices belong to the user that created them.
type Voice struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID         *uuid.UUID          `gorm:"column:owner_id;type:uuid;index"`
	ProjectID       *uuid.UUID          `gorm:"column:project_id;type:uuid;index"`
	Name            string              `gorm:"column:name;not null"`
	Provider        enums.VoiceProvider `gorm:"column:provider;type:text;not null"`
	ProviderVoiceID string              `gorm:"column:provider_voice_id;not null"`
	Gender          enums.VoiceGender   `gorm:"column:gender;type:text;not null"`
	Style           string              `gorm:"column:style;not null"`
	PreviewURL      *string             `gorm:"column:preview_url"`
	IsCustom        bool                `gorm:"column:is_custom;not null;default:false"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
}
