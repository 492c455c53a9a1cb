package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"questboard.org/internal/auth"
	"questboard.org/internal/quests"
)

type listQuestsResponse struct {
	Items     []quests.Quest `json:"items"`
	NextAfter uint64         `json:"next_after"`
	AsOf      time.Time      `json:"as_of"`
}

func (a *API) handleQuestsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listQuests(w, r)
	case http.MethodPost:
		a.createQuest(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleQuestResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/quests/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if strings.HasSuffix(path, "/claim") {
		id := strings.TrimSuffix(strings.TrimSuffix(path, "/claim"), "/")
		if id == "" || strings.Contains(id, "/") {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.claimQuest(w, r, id)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getQuest(w, r, path)
	case http.MethodPut:
		a.updateQuest(w, r, path)
	case http.MethodDelete:
		a.deleteQuest(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) createQuest(w http.ResponseWriter, r *http.Request) {
	sc, ok := auth.SecurityFromContext(r.Context())
	if !ok || sc.IsAnonymous() {
		rejectAuth(w, r, auth.ErrAuthenticationRequired)
		return
	}

	var draft quests.Draft
	if err := decodeJSON(w, r, &draft); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	q, err := a.quests.Create(r.Context(), sc.UserID, draft)
	if err != nil {
		handleQuestError(w, r, err)
		return
	}

	a.audit(r.Context(), "quest.create", "quest", q.ID, map[string]string{
		"title":  q.Title,
		"reward": strconv.FormatInt(q.Reward, 10),
	})

	w.Header().Set("Location", "/v1/quests/"+q.ID)
	writeJSON(w, http.StatusCreated, q)
}

func (a *API) getQuest(w http.ResponseWriter, r *http.Request, id string) {
	q, err := a.quests.Get(r.Context(), id)
	if err != nil {
		handleQuestError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (a *API) listQuests(w http.ResponseWriter, r *http.Request) {
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 100, 1, 1000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	afterParam := strings.TrimSpace(r.URL.Query().Get("after"))
	var after uint64
	if afterParam != "" {
		v, err := strconv.ParseUint(afterParam, 10, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "after must be a non-negative integer")
			return
		}
		after = v
	}

	items, next, err := a.quests.List(r.Context(), limit, after)
	if err != nil {
		handleQuestError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listQuestsResponse{
		Items:     items,
		NextAfter: next,
		AsOf:      time.Now().UTC(),
	})
}

func (a *API) updateQuest(w http.ResponseWriter, r *http.Request, id string) {
	sc, ok := auth.SecurityFromContext(r.Context())
	if !ok || sc.IsAnonymous() {
		rejectAuth(w, r, auth.ErrAuthenticationRequired)
		return
	}

	var draft quests.Draft
	if err := decodeJSON(w, r, &draft); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	q, err := a.quests.Update(r.Context(), id, sc.UserID, sc.HasRole(auth.RoleAdmin), draft)
	if err != nil {
		handleQuestError(w, r, err)
		return
	}

	a.audit(r.Context(), "quest.update", "quest", q.ID, nil)
	writeJSON(w, http.StatusOK, q)
}

func (a *API) deleteQuest(w http.ResponseWriter, r *http.Request, id string) {
	sc, ok := auth.SecurityFromContext(r.Context())
	if !ok || sc.IsAnonymous() {
		rejectAuth(w, r, auth.ErrAuthenticationRequired)
		return
	}

	if err := a.quests.Delete(r.Context(), id, sc.UserID, sc.HasRole(auth.RoleAdmin)); err != nil {
		handleQuestError(w, r, err)
		return
	}

	a.audit(r.Context(), "quest.delete", "quest", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) claimQuest(w http.ResponseWriter, r *http.Request, id string) {
	sc, ok := auth.SecurityFromContext(r.Context())
	if !ok || sc.IsAnonymous() {
		rejectAuth(w, r, auth.ErrAuthenticationRequired)
		return
	}

	q, err := a.quests.Claim(r.Context(), id, sc.UserID)
	if err != nil {
		handleQuestError(w, r, err)
		return
	}

	a.audit(r.Context(), "quest.claim", "quest", q.ID, nil)
	writeJSON(w, http.StatusOK, q)
}

func handleQuestError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, quests.ErrInvalidTitle), errors.Is(err, quests.ErrInvalidReward):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, quests.ErrNotOwner):
		writeError(w, r, http.StatusForbidden, "access denied")
	case errors.Is(err, quests.ErrNotOpen):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, quests.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
