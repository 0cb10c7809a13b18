package auth

import (
	"context"
)

var principalCtxKey = &contextKey{"principal"}

type contextKey struct {
	name string
}

// WithPrincipalContext attaches the authenticated Principal to the given
// context for the duration of the request
func WithPrincipalContext(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, principal)
}

// PrincipalFromContext finds the principal attached to the context
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	raw, ok := ctx.Value(principalCtxKey).(Principal)
	if !ok || raw == nil {
		return nil, false
	}
	return raw, true
}

// ClearPrincipalContext detaches any principal from the context
func ClearPrincipalContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, principalCtxKey, nil)
}

// HasAuthority is a convenience check against the principal in the context
func HasAuthority(ctx context.Context, authority string) bool {
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		return false
	}
	for _, granted := range principal.Authorities() {
		if granted == authority {
			return true
		}
	}
	return false
}
