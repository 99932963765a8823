package middleware

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	ctxOwnerID contextKey = "owner_id"
	ctxRole    contextKey = "actor_role"
)

func OwnerIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxOwnerID).(string); ok {
		return v
	}
	return ""
}

// OwnerUUIDFromContext returns uuid.Nil when no authenticated owner is present.
func OwnerUUIDFromContext(ctx context.Context) uuid.UUID {
	id, err := uuid.Parse(OwnerIDFromContext(ctx))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// WithOwnerID injects the owner identifier into the context.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxOwnerID, ownerID)
}
