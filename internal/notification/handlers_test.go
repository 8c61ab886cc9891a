package notification

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/sapliy/notification-center/internal/policy"
)

const testSecret = "test-secret"

func newTestRouter(t *testing.T, repo Repository) *mux.Router {
	t.Helper()
	svc := NewService(repo, nil, nil, nil)
	hub := NewHub(nil)
	handler := NewHandler(svc, hub, policy.NewHardcodedEngine(), nil)

	router := mux.NewRouter()
	handler.Register(router, testSecret)
	return router
}

func authedRequest(t *testing.T, method, target, body, userID string, roles ...string) *http.Request {
	t.Helper()
	if len(roles) == 0 {
		roles = []string{"user"}
	}
	token, err := GenerateToken(testSecret, userID, roles)
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) *BaseResponse {
	t.Helper()
	var resp BaseResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not an envelope: %v (%s)", err, w.Body.String())
	}
	return &resp
}

func TestHandlerRequiresAuth(t *testing.T) {
	router := newTestRouter(t, NewMockRepository())

	tests := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/api/notifications/get-summary-info"},
		{http.MethodPost, "/api/notifications/get-list"},
		{http.MethodGet, "/api/notifications"},
		{http.MethodDelete, "/api/notifications/some-id"},
		{http.MethodPost, "/api/notifications/set-notification-state"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", w.Code)
			}
		})
	}
}

func TestHandlerPermissionDenied(t *testing.T) {
	router := newTestRouter(t, NewMockRepository())

	// Viewers may read but not edit.
	req := authedRequest(t, http.MethodPost, "/api/notifications/set-notification-state",
		`{"isSetAll":true,"state":"Read"}`, "alice", "viewer")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for viewer edit, got %d", w.Code)
	}
}

func TestGetSummaryInfoHandler(t *testing.T) {
	repo := NewMockRepository()
	repo.Seed(
		seedNotification("n1", "alice", StateUnread, time.Minute),
		seedNotification("n2", "alice", StateRead, 2*time.Minute),
		seedNotification("n3", "bob", StateUnread, time.Minute),
	)
	router := newTestRouter(t, repo)

	req := authedRequest(t, http.MethodGet, "/api/notifications/get-summary-info?numberOfNoti=5", "", "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeEnvelope(t, w)
	if !resp.Success {
		t.Fatalf("expected success envelope, got %s", w.Body.String())
	}

	data := resp.Data.(map[string]any)
	if data["total"].(float64) != 2 {
		t.Errorf("expected alice's total of 2, got %v", data["total"])
	}
	if data["totalUnread"].(float64) != 1 || data["totalRead"].(float64) != 1 {
		t.Errorf("count mismatch: %v", data)
	}
}

func TestGetListHandlerPaging(t *testing.T) {
	repo := NewMockRepository()
	for i := 0; i < 25; i++ {
		repo.Seed(seedNotification(
			"n"+string(rune('a'+i)), "alice", StateUnread,
			time.Duration(i)*time.Minute,
		))
	}
	router := newTestRouter(t, repo)

	req := authedRequest(t, http.MethodPost, "/api/notifications/get-list",
		`{"pageNumber":2,"pageSize":10}`, "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := decodeEnvelope(t, w)
	if !resp.Success {
		t.Fatalf("expected success, got %s", w.Body.String())
	}
	data := resp.Data.(map[string]any)
	if data["totalCount"].(float64) != 25 {
		t.Errorf("expected totalCount 25, got %v", data["totalCount"])
	}
	if items := data["items"].([]any); len(items) != 10 {
		t.Errorf("expected 10 items, got %d", len(items))
	}
}

func TestGetListHandlerIgnoresUserOverride(t *testing.T) {
	repo := NewMockRepository()
	repo.Seed(
		seedNotification("mine", "alice", StateUnread, time.Minute),
		seedNotification("theirs", "bob", StateUnread, time.Minute),
	)
	router := newTestRouter(t, repo)

	req := authedRequest(t, http.MethodPost, "/api/notifications/get-list",
		`{"searchFields":{"user_id":"bob","userId":"bob"}}`, "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := decodeEnvelope(t, w)
	data := resp.Data.(map[string]any)
	items := data["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected only alice's row, got %d", len(items))
	}
	if items[0].(map[string]any)["id"] != "mine" {
		t.Errorf("caller scope was widened: %v", items[0])
	}
}

func TestGetListQueryHandler(t *testing.T) {
	repo := NewMockRepository()
	repo.Seed(
		seedNotification("n1", "alice", StateUnread, time.Minute),
		seedNotification("n2", "alice", StateRead, 2*time.Minute),
	)
	router := newTestRouter(t, repo)

	req := authedRequest(t, http.MethodGet, "/api/notifications?state=Unread", "", "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := decodeEnvelope(t, w)
	data := resp.Data.(map[string]any)
	if data["totalCount"].(float64) != 1 {
		t.Errorf("expected state filter to apply, got %v", data["totalCount"])
	}
}

func TestSetStateHandler(t *testing.T) {
	repo := NewMockRepository()
	repo.Seed(seedNotification("n1", "alice", StateUnread, time.Minute))
	router := newTestRouter(t, repo)

	req := authedRequest(t, http.MethodPost, "/api/notifications/set-notification-state",
		`{"isSetAll":true,"state":"Read"}`, "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := decodeEnvelope(t, w)
	if !resp.Success {
		t.Fatalf("expected success, got %s", w.Body.String())
	}
	if repo.Rows()[0].State != StateRead {
		t.Error("state transition did not apply")
	}
}

func TestSetStateHandlerBadBody(t *testing.T) {
	router := newTestRouter(t, NewMockRepository())

	req := authedRequest(t, http.MethodPost, "/api/notifications/set-notification-state", `{oops`, "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestDeleteHandlerNotFound(t *testing.T) {
	router := newTestRouter(t, NewMockRepository())

	req := authedRequest(t, http.MethodDelete, "/api/notifications/missing", "", "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("not-found is a typed result, expected 200, got %d", w.Code)
	}
	resp := decodeEnvelope(t, w)
	if resp.Success || resp.Error != ErrCodeNotFound {
		t.Errorf("expected not-found envelope, got %s", w.Body.String())
	}
}

func TestDeleteHandler(t *testing.T) {
	repo := NewMockRepository()
	repo.Seed(seedNotification("n1", "alice", StateUnread, time.Minute))
	router := newTestRouter(t, repo)

	req := authedRequest(t, http.MethodDelete, "/api/notifications/n1", "", "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := decodeEnvelope(t, w)
	if !resp.Success {
		t.Fatalf("expected success, got %s", w.Body.String())
	}
	if snapshot := resp.Data.(map[string]any); snapshot["id"] != "n1" {
		t.Errorf("expected snapshot of deleted row, got %v", snapshot)
	}
}
