package http

import "context"

type contextKey string

const (
	requestIDContextKey contextKey = "tinywiki/request-id"
	usernameContextKey  contextKey = "tinywiki/username"
)

// RequestIDFromContext extracts the request identifier from the context when available.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(requestIDContextKey).(string); ok {
		return value
	}
	return ""
}

// UsernameFromContext returns the authenticated username, or "" for
// anonymous requests.
func UsernameFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(usernameContextKey).(string); ok {
		return value
	}
	return ""
}

func isLoggedIn(ctx context.Context) bool {
	return UsernameFromContext(ctx) != ""
}
