package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"questboard.org/internal/auth"
)

type profileResponse struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Status      string     `json:"status"`
	Roles       []string   `json:"roles"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	sc, ok := auth.SecurityFromContext(r.Context())
	if !ok || sc.IsAnonymous() {
		rejectAuth(w, r, auth.ErrAuthenticationRequired)
		return
	}
	a.writeProfile(w, r, sc.UserID)
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "profile" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	// Ownership was already enforced by the access policy.
	a.writeProfile(w, r, parts[0])
}

func (a *API) writeProfile(w http.ResponseWriter, r *http.Request, id string) {
	p, err := a.auth.Principal(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{
		ID:          p.ID,
		Username:    p.Username,
		Email:       p.Email,
		Status:      string(p.Status),
		Roles:       auth.NormalizeRoles(p.Roles),
		LastLoginAt: p.LastLoginAt,
		CreatedAt:   p.CreatedAt,
	})
}
