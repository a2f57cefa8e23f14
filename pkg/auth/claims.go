package auth

import (
	"github.com/dramaforge/dramaforge-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Tier   enums.SubscriptionTier
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID uuid.UUID              `json:"user_id"`
	Tier   enums.SubscriptionTier `json:"tier"`
	jwt.RegisteredClaims
}
