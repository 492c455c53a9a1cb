package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestLoginResponseShape(t *testing.T) {
	env := newTestEnv(t)
	pair := env.login(t, "alice")

	if pair.TokenType != "Bearer" {
		t.Fatalf("unexpected token type: %s", pair.TokenType)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if pair.UserID != env.alice.ID || pair.Username != "alice" {
		t.Fatalf("unexpected identity: %#v", pair)
	}
	if len(pair.Roles) != 1 || pair.Roles[0] != "player" {
		t.Fatalf("unexpected roles: %v", pair.Roles)
	}
	if pair.ExpiresIn <= 0 {
		t.Fatalf("unexpected expiry: %d", pair.ExpiresIn)
	}
}

func TestLoginValidation(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"usernameOrEmail": "alice"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing password: expected 400, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"usernameOrEmail": "alice", "password": "bad", "extra": "x"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: expected 400, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/v1/auth/login", "", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET login: expected 405, got %d", rr.Code)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/v1/auth/login", "", loginRequest{Login: "alice", Password: "nope"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != "invalid credentials" {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	env := newTestEnv(t)
	pair := env.login(t, "alice")

	rr := env.do(t, http.MethodPost, "/v1/auth/refresh", "", refreshRequest{RefreshToken: pair.RefreshToken})
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	var next tokenPairResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &next); err != nil {
		t.Fatal(err)
	}
	if next.AccessToken == "" || next.AccessToken == pair.AccessToken {
		t.Fatal("expected a fresh access token")
	}

	// the refresh token is also accepted as the bearer credential
	rr = env.do(t, http.MethodPost, "/v1/auth/refresh", next.RefreshToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("bearer refresh: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	// access token is not accepted by the refresh endpoint
	rr = env.do(t, http.MethodPost, "/v1/auth/refresh", "", refreshRequest{RefreshToken: pair.AccessToken})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("access-as-refresh: expected 401, got %d", rr.Code)
	}
}

func TestValidateTokenEndpoint(t *testing.T) {
	env := newTestEnv(t)
	pair := env.login(t, "alice")

	rr := env.do(t, http.MethodPost, "/v1/auth/validate-token", "", validateTokenRequest{Token: pair.AccessToken})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp validateTokenResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Valid || resp.TokenType != "access" || resp.UserID != env.alice.ID {
		t.Fatalf("unexpected response: %#v", resp)
	}

	// GET with a query parameter works too
	rr = env.do(t, http.MethodGet, "/v1/auth/validate-token?token="+pair.AccessToken, "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET: expected 200, got %d", rr.Code)
	}
	resp = validateTokenResponse{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Valid {
		t.Fatal("GET: expected valid=true")
	}
	if resp.ExpiresIn <= 0 {
		t.Fatalf("unexpected expiry: %d", resp.ExpiresIn)
	}

	// garbage is a 200 with valid=false, not an error
	rr = env.do(t, http.MethodPost, "/v1/auth/validate-token", "", validateTokenRequest{Token: "garbage"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp = validateTokenResponse{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Valid {
		t.Fatal("expected valid=false")
	}
}

func TestLogoutAllEndpoint(t *testing.T) {
	env := newTestEnv(t)
	pair := env.login(t, "alice")

	rr := env.do(t, http.MethodPost, "/v1/auth/logout-all", pair.AccessToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("logout-all: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	// the refresh token from before the cutoff is dead
	rr = env.do(t, http.MethodPost, "/v1/auth/refresh", "", refreshRequest{RefreshToken: pair.RefreshToken})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout-all: expected 401, got %d", rr.Code)
	}
}
