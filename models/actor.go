package models

import "github.com/google/uuid"

const (
	ActorGuest   = "guest"
	ActorAdmin   = "admin"
	ActorSystem  = "system"
	ActorGateway = "gateway"
)

// Actor is the verified identity a service call runs on behalf of. It is
// built server-side from the request token, never from client payloads.
type Actor struct {
	ID   uuid.UUID
	Role string
}

var (
	SystemActor  = Actor{Role: ActorSystem}
	GatewayActor = Actor{Role: ActorGateway}
)

func (a Actor) IsAdmin() bool { return a.Role == ActorAdmin }

// Owns reports whether the actor may act on a resource owned by userID.
func (a Actor) Owns(userID uuid.UUID) bool {
	return a.IsAdmin() || (a.ID != uuid.Nil && a.ID == userID)
}

func (a Actor) IDPtr() *uuid.UUID {
	if a.ID == uuid.Nil {
		return nil
	}
	id := a.ID
	return &id
}
