package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dramaforge/dramaforge-backend/pkg/enums"
)

// User represents the canonical identity and billing entity.
type User struct {
	ID                     uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email                  string                 `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash           string                 `gorm:"column:password_hash;not null"`
	DisplayName            string                 `gorm:"column:display_name;not null"`
	Tier                   enums.SubscriptionTier `gorm:"column:tier;type:subscription_tier;not null;default:'free'"`
	CreditBalance          int                    `gorm:"column:credit_balance;not null;default:0"`
	MonthlyGenerationsUsed int                    `gorm:"column:monthly_generations_used;not null;default:0"`
	StripeCustomerID       *string                `gorm:"column:stripe_customer_id"`
	IsActive               bool                   `gorm:"column:is_active;not null;default:true"`
	LastLoginAt            *time.Time             `gorm:"column:last_login_at"`
	CreatedAt              time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
