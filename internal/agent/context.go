package agent

import "context"

type ctxKey string

const keyIDKey ctxKey = "agent_key_id"

// ContextWithKeyID attaches the acting agent key id to the context.
func ContextWithKeyID(ctx context.Context, keyID string) context.Context {
	if keyID == "" {
		return ctx
	}
	return context.WithValue(ctx, keyIDKey, keyID)
}

// KeyIDFromContext extracts the acting agent key id, if any.
func KeyIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(keyIDKey).(string)
	return v, ok && v != ""
}
