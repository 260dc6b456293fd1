package tenant

import "context"

type contextKey struct{}

// WithContext stores the resolved tenant in the request context.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// FromContext extracts the resolved tenant. The second return is false when
// the request carries no tenant identity.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(contextKey{}).(Context)
	return tc, ok
}
