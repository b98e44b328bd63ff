package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

type actorKey struct{}

// WithActor records the authenticated user performing a mutation.
func WithActor(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorFrom returns the acting user, or nil for system operations such as seeding.
func ActorFrom(ctx context.Context) *uuid.UUID {
	id, ok := ctx.Value(actorKey{}).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return nil
	}
	return &id
}

// ChangeEvent is broadcast after a committed RBAC mutation.
type ChangeEvent struct {
	Type     string `json:"type"`
	Action   string `json:"action"`
	EntityID string `json:"entity_id"`
	ActorID  string `json:"actor_id,omitempty"`
}

// ChangeNotifier fans change events out to connected consoles.
type ChangeNotifier interface {
	Publish(event interface{})
}

// SessionRevoker invalidates credentials already handed out to users.
type SessionRevoker interface {
	RevokeUsers(ctx context.Context, userIDs ...uuid.UUID) error
}

func notify(ctx context.Context, n ChangeNotifier, action, entityID string) {
	if n == nil {
		return
	}
	ev := ChangeEvent{Type: "rbac.changed", Action: action, EntityID: entityID}
	if actor := ActorFrom(ctx); actor != nil {
		ev.ActorID = actor.String()
	}
	n.Publish(ev)
}

func revoke(ctx context.Context, r SessionRevoker, ids []uuid.UUID) error {
	if r == nil || len(ids) == 0 {
		return nil
	}
	return r.RevokeUsers(ctx, ids...)
}

func auditDetails(v interface{}) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}
