package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/agriconnect/agriconnect-backend/pkg/enums"
)

// AccessTokenPayload is what the identity side supplies when minting.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.Role
	JTI    string
}

// AccessTokenClaims carries the user id in the standard sub claim and the
// marketplace role as a private claim.
type AccessTokenClaims struct {
	Role enums.Role `json:"role"`
	jwt.RegisteredClaims
}

// UserID parses sub. A malformed subject yields uuid.Nil.
func (c *AccessTokenClaims) UserID() uuid.UUID {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil
	}
	return id
}
