package middlewares

import (
	"context"

	tokens "github.com/dropDatabas3/consentgate/internal/security/token"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	claimsKey
)

func setRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, requestIDKey, rid)
}

// GetRequestID returns the request id injected by WithRequestID, or "".
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

func setClaims(ctx context.Context, c *tokens.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// GetClaims returns the verified claims injected by RequireAuth, or nil.
func GetClaims(ctx context.Context) *tokens.Claims {
	if v, ok := ctx.Value(claimsKey).(*tokens.Claims); ok {
		return v
	}
	return nil
}

// GetUserID returns the verified token subject, or "".
func GetUserID(ctx context.Context) string {
	if c := GetClaims(ctx); c != nil {
		return c.Subject
	}
	return ""
}
