package auth

import (
	"context"
	"strings"
)

// SecurityContext is the request-scoped view of the authenticated caller. The
// zero value is the anonymous context. It is created at pipeline entry,
// carried through the request context, and discarded at request end. It is
// never shared across requests.
type SecurityContext struct {
	UserID   string
	Username string
	Roles    []string
}

// IsAnonymous reports whether no authenticated principal backs the context.
func (s SecurityContext) IsAnonymous() bool {
	return s.UserID == ""
}

// HasRole reports whether the context carries the given role.
func (s SecurityContext) HasRole(role string) bool {
	role = strings.TrimSpace(strings.ToLower(role))
	if role == "" {
		return false
	}
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type securityContextKey struct{}

// ContextWithSecurity attaches the security context to the request context.
func ContextWithSecurity(ctx context.Context, sc SecurityContext) context.Context {
	return context.WithValue(ctx, securityContextKey{}, sc)
}

// SecurityFromContext extracts the security context. The second return is
// false for anonymous requests.
func SecurityFromContext(ctx context.Context) (SecurityContext, bool) {
	if ctx == nil {
		return SecurityContext{}, false
	}
	sc, ok := ctx.Value(securityContextKey{}).(SecurityContext)
	if !ok || sc.IsAnonymous() {
		return SecurityContext{}, false
	}
	return sc, true
}
