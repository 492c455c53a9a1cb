package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"questboard.org/internal/auth"
	"questboard.org/internal/quests"
)

type testHasher struct{}

func (testHasher) Hash(password string) (string, error) { return "plain:" + password, nil }

func (testHasher) Verify(hash, password string) error {
	if hash != "plain:"+password {
		return auth.ErrInvalidCredentials
	}
	return nil
}

type testEnv struct {
	api   *API
	h     http.Handler
	store *auth.MemoryStore
	alice *auth.Principal
	bob   *auth.Principal
	root  *auth.Principal
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := auth.NewMemoryStore()
	codec, err := auth.NewCodec([]byte("test-secret"), "questboard")
	if err != nil {
		t.Fatal(err)
	}
	svc, err := auth.NewService(store, codec,
		auth.WithHasher(testHasher{}),
		auth.WithAccessTTL(time.Hour),
		auth.WithRefreshTTL(24*time.Hour),
	)
	if err != nil {
		t.Fatal(err)
	}

	env := &testEnv{store: store}
	env.alice = seedUser(t, store, "alice", "player")
	env.bob = seedUser(t, store, "bob", "player")
	env.root = seedUser(t, store, "root", "admin")

	env.api = New(ReadyProbe{}, "test", svc, quests.NewInMemory())
	env.h = env.api.Handler()
	return env
}

func seedUser(t *testing.T, store *auth.MemoryStore, username string, roles ...string) *auth.Principal {
	t.Helper()
	p := &auth.Principal{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "plain:secret",
		Status:       auth.StatusActive,
		Roles:        roles,
		Enabled:      true,
	}
	if err := store.Create(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return p
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.h.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) login(t *testing.T, username string) tokenPairResponse {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/v1/auth/login", "", loginRequest{Login: username, Password: "secret"})
	if rr.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d (%s)", username, rr.Code, rr.Body.String())
	}
	var resp tokenPairResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp
}

func TestAnonymousPublicPath(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/healthz", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestAnonymousProtectedPath(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/v1/me", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if rr.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("expected WWW-Authenticate header")
	}
}

func TestMalformedTokenNeverDowngradedToAnonymous(t *testing.T) {
	env := newTestEnv(t)
	// even a public path rejects a present-but-invalid credential
	rr := env.do(t, http.MethodGet, "/healthz", "not-a-token", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestWrongSchemeRejected(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Basic YWxpY2U6c2VjcmV0")
	rr := httptest.NewRecorder()
	env.h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestAuthenticatedMe(t *testing.T) {
	env := newTestEnv(t)
	pair := env.login(t, "alice")

	rr := env.do(t, http.MethodGet, "/v1/me", pair.AccessToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	var profile profileResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &profile); err != nil {
		t.Fatal(err)
	}
	if profile.Username != "alice" || profile.ID != env.alice.ID {
		t.Fatalf("unexpected profile: %#v", profile)
	}
}

func TestRefreshTokenRejectedOnResource(t *testing.T) {
	env := newTestEnv(t)
	pair := env.login(t, "alice")

	rr := env.do(t, http.MethodGet, "/v1/me", pair.RefreshToken, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for refresh token on resource, got %d", rr.Code)
	}
}

func TestRoleEnforcement(t *testing.T) {
	env := newTestEnv(t)
	player := env.login(t, "alice")
	admin := env.login(t, "root")

	path := "/v1/admin/users/" + env.bob.ID + "/ban"
	rr := env.do(t, http.MethodPost, path, player.AccessToken, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("player: expected 403, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodPost, path, admin.AccessToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
}

func TestOwnershipEnforcement(t *testing.T) {
	env := newTestEnv(t)
	alice := env.login(t, "alice")
	admin := env.login(t, "root")

	own := "/v1/users/" + env.alice.ID + "/profile"
	other := "/v1/users/" + env.bob.ID + "/profile"

	if rr := env.do(t, http.MethodGet, own, alice.AccessToken, nil); rr.Code != http.StatusOK {
		t.Fatalf("own profile: expected 200, got %d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, other, alice.AccessToken, nil); rr.Code != http.StatusForbidden {
		t.Fatalf("other profile: expected 403, got %d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, other, admin.AccessToken, nil); rr.Code != http.StatusOK {
		t.Fatalf("admin override: expected 200, got %d", rr.Code)
	}
}

func TestLockoutOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < auth.DefaultLockoutThreshold; i++ {
		rr := env.do(t, http.MethodPost, "/v1/auth/login", "", loginRequest{Login: "bob", Password: "wrong"})
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rr.Code)
		}
	}
	// correct password now reports the lock
	rr := env.do(t, http.MethodPost, "/v1/auth/login", "", loginRequest{Login: "bob", Password: "secret"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 after lockout, got %d (%s)", rr.Code, rr.Body.String())
	}

	// admin unlock restores access
	admin := env.login(t, "root")
	rr = env.do(t, http.MethodPost, "/v1/admin/users/"+env.bob.ID+"/unlock", admin.AccessToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("unlock: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	if rr := env.do(t, http.MethodPost, "/v1/auth/login", "", loginRequest{Login: "bob", Password: "secret"}); rr.Code != http.StatusOK {
		t.Fatalf("login after unlock: expected 200, got %d", rr.Code)
	}
}

func TestLogoutOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	pair := env.login(t, "alice")

	if rr := env.do(t, http.MethodGet, "/v1/me", pair.AccessToken, nil); rr.Code != http.StatusOK {
		t.Fatalf("before logout: expected 200, got %d", rr.Code)
	}
	if rr := env.do(t, http.MethodPost, "/v1/auth/logout", pair.AccessToken, nil); rr.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/v1/me", pair.AccessToken, nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("after logout: expected 401, got %d", rr.Code)
	}
}

func TestUnmatchedPathFailsClosed(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/v1/surprise", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unmatched path, got %d", rr.Code)
	}
}
