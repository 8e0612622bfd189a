package shared

import "context"

// Tenant identifies the acting organization and user for a request. The
// authentication layer lives outside this repo; it injects the tenant via
// ContextWithTenant before the ledger core runs.
type Tenant struct {
	OrgID   int64
	ActorID int64
}

type tenantContextKey struct{}

// ContextWithTenant stores the tenant in context.
func ContextWithTenant(ctx context.Context, t Tenant) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, t)
}

// TenantFromContext extracts the tenant from context.
func TenantFromContext(ctx context.Context) (Tenant, bool) {
	t, ok := ctx.Value(tenantContextKey{}).(Tenant)
	return t, ok
}
