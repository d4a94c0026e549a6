package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ITDevS919/marketplace-backend/pkg/enums"
)

// AccessTokenClaims represents the typed JWT issued by the identity service.
// Token minting lives outside this codebase; the API only verifies.
type AccessTokenClaims struct {
	UserID     uuid.UUID        `json:"user_id"`
	RetailerID *uuid.UUID       `json:"retailer_id,omitempty"`
	Role       enums.MemberRole `json:"role"`
	Email      string           `json:"email,omitempty"`
	jwt.RegisteredClaims
}
