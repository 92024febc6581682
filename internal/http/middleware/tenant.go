package middleware

import (
	"net/http"
	"strings"

	"github.com/wolfman30/billing-assistant/internal/tenancy"
)

const (
	TenantHeaderName = "X-Tenant-Id"
	ActorHeaderName  = "X-Actor-Id"
)

// TenantHeader copies the tenant and actor headers into the request context.
// Body fields take precedence in the assistant handlers.
func TenantHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if tenant := strings.TrimSpace(r.Header.Get(TenantHeaderName)); tenant != "" {
			ctx = tenancy.WithTenantID(ctx, tenant)
		}
		if actor := strings.TrimSpace(r.Header.Get(ActorHeaderName)); actor != "" {
			ctx = tenancy.WithActorID(ctx, actor)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
