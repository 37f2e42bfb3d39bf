package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"spindb/api/internal/store"
)

// bearerFor issues a real access token for the given role so route tests
// exercise the same session path production traffic takes.
func bearerFor(t *testing.T, svc *Service, fs *fakeStore, userID, role string) string {
	t.Helper()
	prev := fs.getUserByIDFn
	fs.getUserByIDFn = func(_ context.Context, id string) (store.User, error) {
		if id == userID {
			return store.User{ID: userID, DisplayName: "Test " + role, Role: role}, nil
		}
		if prev != nil {
			return prev(context.Background(), id)
		}
		return store.User{}, sql.ErrNoRows
	}
	session, err := svc.CreateSession(context.Background(), userID)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return "Bearer " + session.Token
}

func doRequest(t *testing.T, server *HTTPServer, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return response
}

func TestModerationRoutesRequireSession(t *testing.T) {
	svc := newTestService(&fakeStore{})
	server := NewHTTPServer(svc, "*")

	rr := doRequest(t, server, http.MethodGet, "/api/moderation/stats", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a session, got %d", rr.Code)
	}
}

func TestModerationRoutesForbidViewers(t *testing.T) {
	fs := &fakeStore{}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, fs, "user_v", "viewer")

	rr := doRequest(t, server, http.MethodGet, "/api/moderation/stats", token, "")
	if rr.Code != http.StatusForbidden {
		t.Errorf("expected 403 for viewer, got %d", rr.Code)
	}

	rr = doRequest(t, server, http.MethodPost, "/api/moderation/reviews/rev_1/approve", token, "")
	if rr.Code != http.StatusForbidden {
		t.Errorf("expected 403 for viewer approve, got %d", rr.Code)
	}
}

func TestApproveReviewAsModeratorRecordsFirstApproval(t *testing.T) {
	fs := &fakeStore{
		getReviewFn: func(_ context.Context, id string) (store.Review, error) {
			return store.Review{ID: id, Status: store.StatusPending}, nil
		},
		markReviewAwaitingSecondFn: func(context.Context, string) (bool, error) {
			return true, nil
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, fs, "user_m", "moderator")

	rr := doRequest(t, server, http.MethodPost, "/api/moderation/reviews/rev_1/approve", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	response := decodeResponse(t, rr)
	if response["success"] != true {
		t.Errorf("expected success, got %v", response)
	}
	if response["outcome"] != "first_approval" {
		t.Errorf("expected first_approval for a moderator, got %v", response["outcome"])
	}
}

func TestApproveReviewAsAdminPublishesImmediately(t *testing.T) {
	published := false
	fs := &fakeStore{
		getReviewFn: func(_ context.Context, id string) (store.Review, error) {
			return store.Review{ID: id, Status: store.StatusPending}, nil
		},
		publishReviewFn: func(context.Context, string, string, ...string) (bool, error) {
			published = true
			return true, nil
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, fs, "user_a", "admin")

	rr := doRequest(t, server, http.MethodPost, "/api/moderation/reviews/rev_1/approve", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	response := decodeResponse(t, rr)
	if response["outcome"] != "fully_approved" {
		t.Errorf("expected fully_approved for an admin, got %v", response["outcome"])
	}
	if !published {
		t.Error("expected publish to reach the store")
	}
}

func TestApproveReviewNotFoundMapsTo404(t *testing.T) {
	fs := &fakeStore{}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, fs, "user_m", "moderator")

	rr := doRequest(t, server, http.MethodPost, "/api/moderation/reviews/missing/approve", token, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
	if body := decodeResponse(t, rr); body["outcome"] != "not_found" {
		t.Errorf("expected not_found outcome, got %v", body["outcome"])
	}
}

func TestApproveReviewAlreadyProcessedMapsTo409(t *testing.T) {
	fs := &fakeStore{
		getReviewFn: func(_ context.Context, id string) (store.Review, error) {
			return store.Review{ID: id, Status: store.StatusApproved}, nil
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, fs, "user_m", "moderator")

	rr := doRequest(t, server, http.MethodPost, "/api/moderation/reviews/rev_1/approve", token, "")
	if rr.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rr.Code)
	}
}

func TestRejectReviewPassesReason(t *testing.T) {
	var gotNotes string
	fs := &fakeStore{
		rejectReviewFn: func(_ context.Context, _, _, notes string) (bool, error) {
			gotNotes = notes
			return true, nil
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, fs, "user_m", "moderator")

	rr := doRequest(t, server, http.MethodPost, "/api/moderation/reviews/rev_1/reject", token,
		`{"reason":"spam"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotNotes != "spam" {
		t.Errorf("expected reject reason to reach the store, got %q", gotNotes)
	}
}

func TestRejectReviewAlreadyProcessedMapsTo409(t *testing.T) {
	fs := &fakeStore{
		rejectReviewFn: func(context.Context, string, string, string) (bool, error) {
			return false, nil
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, fs, "user_m", "moderator")

	rr := doRequest(t, server, http.MethodPost, "/api/moderation/reviews/rev_1/reject", token,
		`{"reason":"spam"}`)
	if rr.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestApproveReviewStorageFailureMapsTo500(t *testing.T) {
	fs := &fakeStore{
		getReviewFn: func(_ context.Context, id string) (store.Review, error) {
			return store.Review{ID: id, Status: store.StatusPending}, nil
		},
		markReviewAwaitingSecondFn: func(context.Context, string) (bool, error) {
			return false, errors.New("connection reset")
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, fs, "user_m", "moderator")

	rr := doRequest(t, server, http.MethodPost, "/api/moderation/reviews/rev_1/approve", token, "")
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestModerationUnknownKindIs404(t *testing.T) {
	fs := &fakeStore{}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, fs, "user_m", "moderator")

	rr := doRequest(t, server, http.MethodPost, "/api/moderation/comments/c_1/approve", token, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown kind, got %d", rr.Code)
	}
}

func TestModerationStatsEndpoint(t *testing.T) {
	fs := &fakeStore{}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, fs, "user_m", "moderator")

	rr := doRequest(t, server, http.MethodGet, "/api/moderation/stats", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	response := decodeResponse(t, rr)
	for _, key := range []string{"reviews", "playerEdits", "equipmentSubmissions", "pendingTotal"} {
		if _, ok := response[key]; !ok {
			t.Errorf("stats payload missing %q: %v", key, response)
		}
	}
}

func TestPendingReviewsList(t *testing.T) {
	var gotLimit, gotOffset int
	fs := &fakeStore{
		listReviewsByStatusFn: func(_ context.Context, status string, limit, offset int) ([]store.Review, error) {
			if status != store.StatusPending {
				t.Errorf("expected pending filter, got %q", status)
			}
			gotLimit, gotOffset = limit, offset
			return []store.Review{{ID: "rev_1", Status: store.StatusPending}}, nil
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, fs, "user_m", "moderator")

	rr := doRequest(t, server, http.MethodGet, "/api/moderation/reviews/pending?limit=5&offset=10", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gotLimit != 5 || gotOffset != 10 {
		t.Errorf("expected limit=5 offset=10, got %d/%d", gotLimit, gotOffset)
	}
	response := decodeResponse(t, rr)
	items, ok := response["items"].([]any)
	if !ok || len(items) != 1 {
		t.Errorf("expected one pending item, got %v", response["items"])
	}
}

func TestModerationActionsFilterByItem(t *testing.T) {
	var gotItemID string
	fs := &fakeStore{
		listModerationActionsFn: func(_ context.Context, itemID string, _ int) ([]store.ModerationAction, error) {
			gotItemID = itemID
			return []store.ModerationAction{{ItemID: itemID, Action: store.ActionApproved}}, nil
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, fs, "user_m", "moderator")

	rr := doRequest(t, server, http.MethodGet, "/api/moderation/actions?itemId=rev_1", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gotItemID != "rev_1" {
		t.Errorf("expected itemId filter rev_1, got %q", gotItemID)
	}
}

func TestSubmitReviewCreatesPendingItem(t *testing.T) {
	var inserted store.Review
	fs := &fakeStore{
		getEquipmentFn: func(_ context.Context, id string) (store.Equipment, error) {
			return store.Equipment{ID: id, Name: "Hurricane 3"}, nil
		},
		insertReviewFn: func(_ context.Context, review store.Review) error {
			inserted = review
			return nil
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, fs, "user_v", "viewer")

	rr := doRequest(t, server, http.MethodPost, "/api/reviews", token,
		`{"equipmentId":"eq_1","rating":9,"title":"Grippy","body":"Great spin on serves."}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if inserted.Status != store.StatusPending {
		t.Errorf("expected pending review, got %q", inserted.Status)
	}
	if inserted.SubmitterID != "user_v" {
		t.Errorf("expected submitter user_v, got %q", inserted.SubmitterID)
	}
}

func TestSubmitReviewValidatesRating(t *testing.T) {
	fs := &fakeStore{}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, fs, "user_v", "viewer")

	rr := doRequest(t, server, http.MethodPost, "/api/reviews", token,
		`{"equipmentId":"eq_1","rating":11,"body":"too high"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for out-of-range rating, got %d", rr.Code)
	}
}

func TestSubmitReviewUnknownEquipmentIs404(t *testing.T) {
	fs := &fakeStore{}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, fs, "user_v", "viewer")

	rr := doRequest(t, server, http.MethodPost, "/api/reviews", token,
		`{"equipmentId":"missing","rating":5,"body":"where"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown equipment, got %d", rr.Code)
	}
}

func TestSubmitPlayerEditCreatesPendingItem(t *testing.T) {
	var inserted store.PlayerEdit
	fs := &fakeStore{
		getPlayerFn: func(_ context.Context, id string) (store.Player, error) {
			return store.Player{ID: id, Name: "Ma Long"}, nil
		},
		insertPlayerEditFn: func(_ context.Context, edit store.PlayerEdit) error {
			inserted = edit
			return nil
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	token := bearerFor(t, svc, fs, "user_v", "viewer")

	rr := doRequest(t, server, http.MethodPost, "/api/player-edits", token,
		`{"playerId":"pl_1","fields":{"blade":"Viscaria"}}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if inserted.Fields["blade"] != "Viscaria" {
		t.Errorf("expected field diff to be stored, got %v", inserted.Fields)
	}
}
