package common

import "context"

type ctxKey string

const (
	userIDKey ctxKey = "auth/user-id"
	bearerKey ctxKey = "auth/bearer"
)

// WithUserID stores the authenticated subject identifier on the context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID extracts the authenticated subject identifier from the context.
func UserID(ctx context.Context) (string, bool) {
	v := ctx.Value(userIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// WithBearer keeps the caller's raw bearer credential on the context so the
// gateway can forward it to the upstream store.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey, token)
}

// Bearer returns the raw bearer credential from the context, if any.
func Bearer(ctx context.Context) (string, bool) {
	v := ctx.Value(bearerKey)
	if v == nil {
		return "", false
	}
	token, ok := v.(string)
	return token, ok && token != ""
}
