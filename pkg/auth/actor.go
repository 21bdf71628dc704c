package auth

import (
	"github.com/google/uuid"

	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	"github.com/agriconnect/agriconnect-backend/pkg/outbox"
)

// Actor is the authenticated caller handed explicitly to every service operation.
type Actor struct {
	ID   uuid.UUID
	Role enums.Role
}

// Valid reports whether the actor carries an id and a known role.
func (a Actor) Valid() bool {
	return a.ID != uuid.Nil && a.Role.IsValid()
}

// Is reports whether the actor has the given role.
func (a Actor) Is(role enums.Role) bool {
	return a.Role == role
}

// Ref converts the actor into the outbox envelope reference.
func (a Actor) Ref() *outbox.ActorRef {
	if a.ID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: a.ID, Role: a.Role}
}

// Actor builds the service actor from verified claims.
func (c *AccessTokenClaims) Actor() Actor {
	if c == nil {
		return Actor{}
	}
	return Actor{ID: c.UserID(), Role: c.Role}
}
