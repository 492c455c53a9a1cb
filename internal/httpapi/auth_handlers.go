package httpapi

import (
	"net/http"
	"strings"
	"time"

	"questboard.org/internal/auth"
	"questboard.org/internal/obs"
)

type loginRequest struct {
	Login    string `json:"usernameOrEmail"`
	Password string `json:"password"`
}

type tokenPairResponse struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	TokenType    string   `json:"tokenType"`
	ExpiresIn    int64    `json:"expiresInSeconds"`
	UserID       string   `json:"userId"`
	Username     string   `json:"username"`
	Roles        []string `json:"roles"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type validateTokenRequest struct {
	Token string `json:"token"`
}

type validateTokenResponse struct {
	Valid     bool   `json:"valid"`
	TokenType string `json:"tokenType,omitempty"`
	UserID    string `json:"userId,omitempty"`
	ExpiresIn int64  `json:"expiresInSeconds,omitempty"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Login) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "usernameOrEmail and password are required")
		return
	}

	pair, principal, err := a.auth.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		obs.AuthAttempt("login", outcomeLabel(err))
		a.audit(r.Context(), "auth.login.denied", "user", "", map[string]string{
			"username": req.Login,
			"reason":   outcomeLabel(err),
			"ip":       clientIP(r),
		})
		rejectAuth(w, r, err)
		return
	}

	obs.AuthAttempt("login", "ok")
	obs.TokenIssued(string(auth.TokenTypeAccess))
	obs.TokenIssued(string(auth.TokenTypeRefresh))
	a.audit(r.Context(), "auth.login", "user", principal.ID, map[string]string{
		"username": principal.Username,
	})

	writeJSON(w, http.StatusOK, pairResponse(pair, principal))
}

// handleRefresh accepts the refresh token either as the Authorization bearer
// credential or in the request body. The authentication pipeline leaves this
// path alone: its credential is a refresh token, not an access token.
func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	raw, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		var req refreshRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		raw = strings.TrimSpace(req.RefreshToken)
	}
	if raw == "" {
		writeError(w, r, http.StatusBadRequest, "refreshToken is required")
		return
	}

	pair, principal, err := a.auth.Refresh(r.Context(), raw)
	if err != nil {
		obs.AuthAttempt("refresh", outcomeLabel(err))
		rejectAuth(w, r, err)
		return
	}

	obs.AuthAttempt("refresh", "ok")
	obs.TokenIssued(string(auth.TokenTypeAccess))
	obs.TokenIssued(string(auth.TokenTypeRefresh))
	a.audit(r.Context(), "auth.refresh", "user", principal.ID, map[string]string{
		"username": principal.Username,
	})

	writeJSON(w, http.StatusOK, pairResponse(pair, principal))
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		rejectAuth(w, r, auth.ErrAuthenticationRequired)
		return
	}
	if err := a.auth.Logout(r.Context(), token); err != nil {
		rejectAuth(w, r, err)
		return
	}
	if sc, ok := auth.SecurityFromContext(r.Context()); ok {
		a.audit(r.Context(), "auth.logout", "user", sc.UserID, nil)
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

func (a *API) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		rejectAuth(w, r, auth.ErrAuthenticationRequired)
		return
	}
	if err := a.auth.LogoutAll(r.Context(), token); err != nil {
		rejectAuth(w, r, err)
		return
	}
	if sc, ok := auth.SecurityFromContext(r.Context()); ok {
		a.audit(r.Context(), "auth.logout_all", "user", sc.UserID, nil)
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

// handleValidateToken serves GET with a token query parameter and POST with a
// JSON body.
func (a *API) handleValidateToken(w http.ResponseWriter, r *http.Request) {
	var raw string
	switch r.Method {
	case http.MethodGet:
		raw = strings.TrimSpace(r.URL.Query().Get("token"))
	case http.MethodPost:
		var req validateTokenRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		raw = strings.TrimSpace(req.Token)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		return
	}
	if raw == "" {
		writeError(w, r, http.StatusBadRequest, "token is required")
		return
	}

	info, err := a.auth.ValidateToken(r.Context(), raw)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "validation error")
		return
	}
	resp := validateTokenResponse{Valid: info.Valid}
	if info.Valid {
		resp.TokenType = string(info.TokenType)
		resp.UserID = info.UserID
		resp.ExpiresIn = int64(info.ExpiresIn.Seconds())
	}
	writeJSON(w, http.StatusOK, resp)
}

func pairResponse(pair auth.TokenPair, p *auth.Principal) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(time.Until(pair.AccessExpiresAt).Seconds()),
		UserID:       p.ID,
		Username:     p.Username,
		Roles:        auth.NormalizeRoles(p.Roles),
	}
}
