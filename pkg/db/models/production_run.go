package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/dramaforge/dramaforge-backend/pkg/enums"
)

// ProductionRun is one end-to-end "one-click" production of a project.
// Stage and StatusMessage are the only state surfaced mid-run.
type ProductionRun struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProjectID       uuid.UUID       `gorm:"column:project_id;type:uuid;not null;index"`
	UserID          uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	Stage           enums.RunStage  `gorm:"column:stage;type:run_stage;not null;default:'idle'"`
	Status          enums.RunStatus `gorm:"column:status;type:run_status;not null;default:'pending'"`
	StatusMessage   string          `gorm:"column:status_message;not null;default:''"`
	Options         json.RawMessage `gorm:"column:options;type:jsonb"`
	WorkingVideoURL *string         `gorm:"column:working_video_url"`
	FinalVideoURL   *string         `gorm:"column:final_video_url"`
	ErrorMessage    *string         `gorm:"column:error_message"`
	FailureNotes    pq.StringArray  `gorm:"column:failure_notes;type:text[]"`
	StartedAt       *time.Time      `gorm:"column:started_at"`
	CompletedAt     *time.Time      `gorm:"column:completed_at"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
