package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

// AccessTokenClaims mirrors the claims issued by the hosted auth provider.
// The subject is the owner's user id.
type AccessTokenClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// OwnerID parses the subject as a user id.
func (c *AccessTokenClaims) OwnerID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}
