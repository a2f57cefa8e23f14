package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Character is a reusable cast member with generated reference imagery.
// ProjectID is nil for characters shared across the owner's projects.
type Character struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID      `gorm:"column:user_id;type:uuid;not null;index"`
	ProjectID   *uuid.UUID     `gorm:"column:project_id;type:uuid;index"`
	Name        string         `gorm:"column:name;not null"`
	Description string         `gorm:"column:description;type:text;not null"`
	ImageURLs   pq.StringArray `gorm:"column:image_urls;type:text[];not null;default:ARRAY[]::text[]"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
