package models

import (
	"time"

	"github.com/google/uuid"
)

// ScriptScene is one shot of a script: visual direction plus dialogue.
type ScriptScene struct {
	SceneNumber   int        `json:"scene_number"`
	Description   string     `json:"description"`
	Dialogue      string     `json:"dialogue"`
	CharacterName string     `json:"character_name,omitempty"`
	CharacterID   *uuid.UUID `json:"character_id,omitempty"`
	Duration      int        `json:"duration"`
}

// Script is one generated version of a project's screenplay.
// Versions are append-only; the highest version is the active one.
type Script struct {
	ID        uuid.UUID     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProjectID uuid.UUID     `gorm:"column:project_id;type:uuid;not null;index"`
	Scenes    []ScriptScene `gorm:"column:scenes;type:jsonb;serializer:json;not null"`
	Version   int           `gorm:"column:version;not null;default:1"`
	CreatedAt time.Time     `gorm:"column:created_at;autoCreateTime"`
}

// TotalDuration sums the estimated seconds across all scenes.
func (s Script) TotalDuration() int {
	total := 0
	for _, scene := range s.Scenes {
		total += scene.Duration
	}
	return total
}
