package response

import "context"

type contextKey string

// responseKey is the context key for the active BotResponse.
const responseKey contextKey = "botsim_response"

// WithResponse returns a new context that attributes API calls to r.
func WithResponse(ctx context.Context, r *BotResponse) context.Context {
	return context.WithValue(ctx, responseKey, r)
}

// FromContext extracts the active response. Returns nil if not set.
func FromContext(ctx context.Context) *BotResponse {
	if v, ok := ctx.Value(responseKey).(*BotResponse); ok {
		return v
	}
	return nil
}
