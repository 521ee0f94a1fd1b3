package auth

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
)

// Actor is an authenticated marketplace participant. Only Buyer and Farmer
// implement it, so service methods can demand a concrete role in their
// signatures and accept either where both are allowed.
type Actor interface {
	ActorID() uuid.UUID
	Role() enums.ActorRole
	isActor()
}

// Buyer places and pays for orders.
type Buyer struct {
	ID uuid.UUID
}

func (b Buyer) ActorID() uuid.UUID    { return b.ID }
func (b Buyer) Role() enums.ActorRole { return enums.ActorRoleBuyer }
func (Buyer) isActor()                {}

// Farmer fulfils orders and confirms manual payments.
type Farmer struct {
	ID uuid.UUID
}

func (f Farmer) ActorID() uuid.UUID    { return f.ID }
func (f Farmer) Role() enums.ActorRole { return enums.ActorRoleFarmer }
func (Farmer) isActor()                {}

// NewActor builds the actor variant for a role claim.
func NewActor(id uuid.UUID, role enums.ActorRole) (Actor, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("actor id is required")
	}
	switch role {
	case enums.ActorRoleBuyer:
		return Buyer{ID: id}, nil
	case enums.ActorRoleFarmer:
		return Farmer{ID: id}, nil
	default:
		return nil, fmt.Errorf("unsupported actor role %q", role)
	}
}
