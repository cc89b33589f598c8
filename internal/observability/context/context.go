// Package context carries request-scoped correlation values for logs and traces.
package context

import (
	"context"
	"strings"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	ownerKey
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

// WithOwner records the credit pool owner a request acts on.
func WithOwner(ctx context.Context, ownerType, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey, [2]string{strings.TrimSpace(ownerType), strings.TrimSpace(ownerID)})
}

func OwnerFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	value, ok := ctx.Value(ownerKey).([2]string)
	if !ok {
		return "", ""
	}
	return value[0], value[1]
}
