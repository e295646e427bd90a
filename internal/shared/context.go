package shared

import "context"

type companyContextKey struct{}

// ContextWithCompany stores the tenant company id in context.
func ContextWithCompany(ctx context.Context, companyID int64) context.Context {
	return context.WithValue(ctx, companyContextKey{}, companyID)
}

// CompanyFromContext extracts the tenant company id from context.
func CompanyFromContext(ctx context.Context) (int64, error) {
	id, ok := ctx.Value(companyContextKey{}).(int64)
	if !ok || id <= 0 {
		return 0, ErrTenantMissing
	}
	return id, nil
}

type actorContextKey struct{}

// ContextWithActor stores the acting user id forwarded by the auth gateway.
func ContextWithActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actorID)
}

// ActorFromContext returns the acting user id, zero when unknown.
func ActorFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(actorContextKey{}).(int64)
	return id
}
