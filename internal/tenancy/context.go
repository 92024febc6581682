package tenancy

import "context"

type ctxKey string

const (
	tenantKey ctxKey = "billing.tenant_id"
	actorKey  ctxKey = "billing.actor_id"
)

// WithTenantID stores the tenant id in context.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey, tenantID)
}

// TenantIDFromContext extracts the tenant id if present.
func TenantIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, tenantKey)
}

// WithActorID stores the acting user id in context.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey, actorID)
}

// ActorIDFromContext extracts the actor id if present.
func ActorIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, actorKey)
}

func stringValue(ctx context.Context, key ctxKey) (string, bool) {
	val := ctx.Value(key)
	if val == nil {
		return "", false
	}
	s, ok := val.(string)
	return s, ok && s != ""
}
