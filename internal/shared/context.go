package shared

import "context"

type requesterContextKey struct{}

// Requester identifies who issued a request and under which request id.
type Requester struct {
	Actor     string
	RequestID string
}

// ContextWithRequester stores the requester in context.
func ContextWithRequester(ctx context.Context, r Requester) context.Context {
	return context.WithValue(ctx, requesterContextKey{}, r)
}

// RequesterFromContext extracts the requester from context. The zero value
// is returned when none was stored.
func RequesterFromContext(ctx context.Context) Requester {
	r, _ := ctx.Value(requesterContextKey{}).(Requester)
	return r
}
