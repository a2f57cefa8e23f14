package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/dramaforge/dramaforge-backend/pkg/db/models"
	"github.com/dramaforge/dramaforge-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID                     uuid.UUID              `json:"id"`
	Email                  string                 `json:"email"`
	DisplayName            string                 `json:"display_name"`
	Tier                   enums.SubscriptionTier `json:"tier"`
	CreditBalance          int                    `json:"credit_balance"`
	MonthlyAllowance       int                    `json:"monthly_allowance"`
	MonthlyGenerationsUsed int                    `json:"monthly_generations_used"`
	IsActive               bool                   `json:"is_active"`
	LastLoginAt            *time.Time             `json:"last_login_at,omitempty"`
	CreatedAt              time.Time              `json:"created_at"`
	UpdatedAt              time.Time              `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	DisplayName  string
	Tier         enums.SubscriptionTier
	Credits      int
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:                     u.ID,
		Email:                  u.Email,
		DisplayName:            u.DisplayName,
		Tier:                   u.Tier,
		CreditBalance:          u.CreditBalance,
		MonthlyAllowance:       u.Tier.MonthlyAllowance(),
		MonthlyGenerationsUsed: u.MonthlyGenerationsUsed,
		IsActive:               u.IsActive,
		LastLoginAt:            u.LastLoginAt,
		CreatedAt:              u.CreatedAt,
		UpdatedAt:              u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	tier := c.Tier
	if !tier.IsValid() {
		tier = enums.SubscriptionTierFree
	}

	return &models.User{
		Email:         c.Email,
		PasswordHash:  c.PasswordHash,
		DisplayName:   c.DisplayName,
		Tier:          tier,
		CreditBalance: c.Credits,
		IsActive:      true,
	}
}
