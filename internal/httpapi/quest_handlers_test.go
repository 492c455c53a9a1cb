package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"questboard.org/internal/quests"
)

func createQuest(t *testing.T, env *testEnv, token, title string) quests.Quest {
	t.Helper()
	rr := env.do(t, http.MethodPost, "/v1/quests", token, quests.Draft{Title: title, Reward: 100})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create quest: expected 201, got %d (%s)", rr.Code, rr.Body.String())
	}
	var q quests.Quest
	if err := json.Unmarshal(rr.Body.Bytes(), &q); err != nil {
		t.Fatal(err)
	}
	return q
}

func TestQuestCreateRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/v1/quests", "", quests.Draft{Title: "x"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestQuestLifecycle(t *testing.T) {
	env := newTestEnv(t)
	alice := env.login(t, "alice")
	bob := env.login(t, "bob")

	q := createQuest(t, env, alice.AccessToken, "Slay the dragon")
	if q.OwnerID != env.alice.ID || q.Status != quests.StatusOpen {
		t.Fatalf("unexpected quest: %#v", q)
	}

	// anyone authenticated can read
	rr := env.do(t, http.MethodGet, "/v1/quests/"+q.ID, bob.AccessToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rr.Code)
	}

	// bob claims it
	rr = env.do(t, http.MethodPost, "/v1/quests/"+q.ID+"/claim", bob.AccessToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("claim: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	var claimed quests.Quest
	if err := json.Unmarshal(rr.Body.Bytes(), &claimed); err != nil {
		t.Fatal(err)
	}
	if claimed.Status != quests.StatusClaimed || claimed.ClaimedBy != env.bob.ID {
		t.Fatalf("unexpected claim state: %#v", claimed)
	}

	// second claim conflicts
	rr = env.do(t, http.MethodPost, "/v1/quests/"+q.ID+"/claim", alice.AccessToken, nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("second claim: expected 409, got %d", rr.Code)
	}
}

func TestQuestUpdateOwnership(t *testing.T) {
	env := newTestEnv(t)
	alice := env.login(t, "alice")
	bob := env.login(t, "bob")
	admin := env.login(t, "root")

	q := createQuest(t, env, alice.AccessToken, "Fetch herbs")

	// non-owner cannot mutate
	rr := env.do(t, http.MethodPut, "/v1/quests/"+q.ID, bob.AccessToken, quests.Draft{Title: "Stolen", Reward: 1})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("non-owner update: expected 403, got %d", rr.Code)
	}

	// owner can
	rr = env.do(t, http.MethodPut, "/v1/quests/"+q.ID, alice.AccessToken, quests.Draft{Title: "Fetch rare herbs", Reward: 50})
	if rr.Code != http.StatusOK {
		t.Fatalf("owner update: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	// admin overrides ownership
	rr = env.do(t, http.MethodDelete, "/v1/quests/"+q.ID, admin.AccessToken, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("admin delete: expected 204, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/v1/quests/"+q.ID, alice.AccessToken, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("after delete: expected 404, got %d", rr.Code)
	}
}

func TestQuestValidation(t *testing.T) {
	env := newTestEnv(t)
	alice := env.login(t, "alice")

	rr := env.do(t, http.MethodPost, "/v1/quests", alice.AccessToken, quests.Draft{Title: "   "})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("blank title: expected 400, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/v1/quests", alice.AccessToken, quests.Draft{Title: "x", Reward: -5})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("negative reward: expected 400, got %d", rr.Code)
	}
}

func TestQuestList(t *testing.T) {
	env := newTestEnv(t)
	alice := env.login(t, "alice")

	for i := 0; i < 3; i++ {
		createQuest(t, env, alice.AccessToken, "quest")
	}
	rr := env.do(t, http.MethodGet, "/v1/quests?limit=2", alice.AccessToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rr.Code)
	}
	var resp listQuestsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Items) != 2 || resp.NextAfter == 0 {
		t.Fatalf("unexpected page: %#v", resp)
	}

	rr = env.do(t, http.MethodGet, "/v1/quests?limit=bad", alice.AccessToken, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: expected 400, got %d", rr.Code)
	}
}
