// Package actor carries the identity of the user performing an operation.
//
// Every core operation receives an explicit Actor — the services never read
// identity from ambient state. The HTTP layer resolves the actor from the
// bearer token once, attaches it to the request context, and handlers pass
// it down by value.
package actor

import (
	"context"
	"fmt"
)

// Role is the fixed, small set of roles in the supply chain.
type Role string

const (
	// RoleDoctor reviews and decides indents and raises prescriptions.
	RoleDoctor Role = "doctor"
	// RoleStore manages the central store tier.
	RoleStore Role = "store"
	// RoleCompounder manages ward-level stock.
	RoleCompounder Role = "compounder"
	// RoleOthers covers auxiliary prescribers (consumption tier only).
	RoleOthers Role = "others"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleDoctor, RoleStore, RoleCompounder, RoleOthers:
		return true
	}
	return false
}

// Actor identifies who is performing an operation and in which plant.
type Actor struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	PlantID  string `json:"plant_id"`
}

// String returns a representation of the actor for logging.
func (a Actor) String() string {
	return fmt.Sprintf("%s (%s, plant %s)", a.Username, a.Role, a.PlantID)
}

// IsDoctor reports whether the actor holds the doctor role.
func (a Actor) IsDoctor() bool { return a.Role == RoleDoctor }

// contextKey is the type for context keys to avoid collisions
type contextKey string

const actorContextKey contextKey = "actor"

// FromContext retrieves the Actor from the context.
// The second return is false when no actor is present.
func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	a, ok := ctx.Value(actorContextKey).(Actor)
	return a, ok
}

// WithActor returns a new context with the Actor attached.
func WithActor(ctx context.Context, a Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey, a)
}

// MustFromContext retrieves the Actor from the context.
// Panics if no actor is present. Use only behind the auth middleware.
func MustFromContext(ctx context.Context) Actor {
	a, ok := FromContext(ctx)
	if !ok {
		panic("actor not found in context")
	}
	return a
}
