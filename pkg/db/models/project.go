package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dramaforge/dramaforge-backend/pkg/enums"
)

// Project is a single short-drama production, owned by one user.
type Project struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Name          string              `gorm:"column:name;not null"`
	Platform      enums.Platform      `gorm:"column:platform;type:text;not null"`
	Logline       string              `gorm:"column:logline;type:text;not null"`
	Status        enums.ProjectStatus `gorm:"column:status;type:project_status;not null;default:'draft'"`
	FinalVideoURL *string             `gorm:"column:final_video_url"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
