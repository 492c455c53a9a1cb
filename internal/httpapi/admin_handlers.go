package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"questboard.org/internal/auth"
)

// handleAdminUserAction routes /v1/admin/users/{id}/{action}. The access
// policy has already required the admin role.
func (a *API) handleAdminUserAction(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/admin/users/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	id, action := parts[0], parts[1]

	guard := a.auth.Guard()
	var err error
	switch action {
	case "unlock":
		err = guard.Unlock(r.Context(), id)
	case "ban":
		err = guard.Ban(r.Context(), id)
	case "delete":
		err = guard.Delete(r.Context(), id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "user not found")
		case errors.Is(err, auth.ErrInvalidTransition):
			writeError(w, r, http.StatusConflict, "invalid account state transition")
		default:
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	a.audit(r.Context(), "admin.user."+action, "user", id, nil)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"action": action,
		"userId": id,
	})
}
