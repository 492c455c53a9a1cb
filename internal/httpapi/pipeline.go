package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"questboard.org/internal/auth"
	"questboard.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// withAuth is the single entry point of request authentication. An absent
// Authorization header yields an anonymous security context and the policy
// decides whether the route tolerates it. A header that is present but
// malformed, expired or otherwise invalid is rejected outright; it is never
// downgraded to anonymous.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		// The refresh endpoint consumes its own bearer credential, a refresh
		// token, which this pipeline would reject as the wrong type.
		if r.URL.Path == "/v1/auth/refresh" {
			next.ServeHTTP(w, r)
			return
		}

		sc := auth.SecurityContext{}
		if header := strings.TrimSpace(r.Header.Get(authHeader)); header != "" {
			token, err := extractBearerToken(header)
			if err != nil {
				rejectAuth(w, r, auth.ErrTokenInvalid)
				return
			}
			sc, err = a.auth.Authenticate(r.Context(), token)
			if err != nil {
				obs.AuthAttempt("authenticate", outcomeLabel(err))
				rejectAuth(w, r, err)
				return
			}
		}

		if err := a.policy.Evaluate(r.URL.Path, sc); err != nil {
			rejectAuth(w, r, err)
			return
		}

		ctx := auth.ContextWithSecurity(r.Context(), sc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rejectAuth maps an authentication or authorization error to its HTTP
// response. Bodies stay generic: the taxonomy kind is all a caller learns.
func rejectAuth(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrAuthenticationRequired):
		w.Header().Set("WWW-Authenticate", `Bearer realm="questboard"`)
		writeError(w, r, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, auth.ErrTokenExpired):
		w.Header().Set("WWW-Authenticate", `Bearer realm="questboard", error="invalid_token"`)
		writeError(w, r, http.StatusUnauthorized, "token expired")
	case errors.Is(err, auth.ErrTokenInvalid),
		errors.Is(err, auth.ErrTokenTypeMismatch):
		w.Header().Set("WWW-Authenticate", `Bearer realm="questboard", error="invalid_token"`)
		writeError(w, r, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, auth.ErrAccountLocked):
		writeError(w, r, http.StatusForbidden, "account locked")
	case errors.Is(err, auth.ErrAccountBanned):
		writeError(w, r, http.StatusForbidden, "account banned")
	case errors.Is(err, auth.ErrAccountDeleted):
		writeError(w, r, http.StatusForbidden, "account deleted")
	case errors.Is(err, auth.ErrInsufficientRole):
		writeError(w, r, http.StatusForbidden, "insufficient role")
	case errors.Is(err, auth.ErrOwnershipViolation):
		writeError(w, r, http.StatusForbidden, "access denied")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	default:
		writeError(w, r, http.StatusInternalServerError, "authentication error")
	}
}

// outcomeLabel collapses an auth error to a bounded metric label.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, auth.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, auth.ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(err, auth.ErrTokenTypeMismatch):
		return "token_type_mismatch"
	case errors.Is(err, auth.ErrAccountLocked):
		return "account_locked"
	case errors.Is(err, auth.ErrAccountBanned):
		return "account_banned"
	case errors.Is(err, auth.ErrAccountDeleted):
		return "account_deleted"
	case errors.Is(err, auth.ErrInsufficientRole):
		return "insufficient_role"
	case errors.Is(err, auth.ErrOwnershipViolation):
		return "ownership_violation"
	default:
		return "error"
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
