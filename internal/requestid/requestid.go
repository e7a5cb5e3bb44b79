package requestid

import "context"

type contextKey struct{}

// Header is the HTTP header carrying the request ID
const Header = "X-Request-ID"

// NewContext returns a copy of ctx carrying id
func NewContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the request ID stored in ctx, or ""
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}
