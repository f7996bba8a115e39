package guard

import (
	"context"

	tokens "github.com/dropDatabas3/consentgate/internal/security/token"
)

type claimsKey struct{}
type bearerKey struct{}

func withClaims(ctx context.Context, c *tokens.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFrom returns the verified claims injected by Protect, or nil when the
// handler was reached without the guard.
func ClaimsFrom(ctx context.Context) *tokens.Claims {
	if v := ctx.Value(claimsKey{}); v != nil {
		if c, ok := v.(*tokens.Claims); ok {
			return c
		}
	}
	return nil
}

func withBearer(ctx context.Context, raw string) context.Context {
	return context.WithValue(ctx, bearerKey{}, raw)
}

// BearerFrom returns the caller's raw bearer token. Remote engines use it to
// authenticate the consent check on the caller's behalf.
func BearerFrom(ctx context.Context) string {
	if v, ok := ctx.Value(bearerKey{}).(string); ok {
		return v
	}
	return ""
}
