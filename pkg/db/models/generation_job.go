package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dramaforge/dramaforge-backend/pkg/enums"
)

// GenerationJob records one provider call from admission to terminal state,
// including the provider task id for asynchronous backends.
type GenerationJob struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	ProjectID      *uuid.UUID      `gorm:"column:project_id;type:uuid;index"`
	Kind           enums.JobKind   `gorm:"column:kind;type:job_kind;not null"`
	Status         enums.JobStatus `gorm:"column:status;type:job_status;not null;default:'pending'"`
	Provider       string          `gorm:"column:provider;not null"`
	SceneNumber    *int            `gorm:"column:scene_number;index"`
	InputPayload   json.RawMessage `gorm:"column:input_payload;type:jsonb"`
	ProviderTaskID *string         `gorm:"column:provider_task_id"`
	ResultPayload  json.RawMessage `gorm:"column:result_payload;type:jsonb"`
	ErrorMessage   *string         `gorm:"column:error_message"`
	CreditsCharged int             `gorm:"column:credits_charged;not null;default:0"`
	CompletedAt    *time.Time      `gorm:"column:completed_at"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
