package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/fairwaylabs/linksync/pkg/actions"
	"github.com/fairwaylabs/linksync/pkg/connectivity"
	"github.com/fairwaylabs/linksync/pkg/offline"
	"github.com/fairwaylabs/linksync/pkg/store"
	"github.com/fairwaylabs/linksync/pkg/syncer"
)

type nopDispatcher struct{}

func (nopDispatcher) SubmitScore(context.Context, actions.ScorePayload) (string, error) {
	return "ok", nil
}
func (nopDispatcher) SubmitPhoto(context.Context, actions.PhotoPayload) (string, error) {
	return "ok", nil
}
func (nopDispatcher) SubmitOrder(context.Context, actions.OrderPayload) (string, error) {
	return "ok", nil
}

func setupTestService(t *testing.T) (*miniredis.Miniredis, *connectivity.Manual, *offline.Service) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	st := store.New(mr.Addr())
	orch := syncer.New(st, nopDispatcher{}, syncer.NoDelay{})
	monitor := connectivity.NewManual(false)
	svc := offline.New(st, orch, monitor, 3)
	return mr, monitor, svc
}

func TestAuthMiddleware(t *testing.T) {
	mr, _, svc := setupTestService(t)
	defer mr.Close()

	mux := setupRouter(svc, "secret-key")

	tests := []struct {
		name           string
		headerKey      string
		headerValue    string
		expectedStatus int
	}{
		{
			name:           "No API Key",
			headerKey:      "",
			headerValue:    "",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Wrong API Key",
			headerKey:      "X-API-Key",
			headerValue:    "wrong-key",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Correct API Key",
			headerKey:      "X-API-Key",
			headerValue:    "secret-key",
			expectedStatus: http.StatusBadRequest, // 400 because body is empty, but auth passed
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/queue/score", nil)
			if tt.headerKey != "" {
				req.Header.Set(tt.headerKey, tt.headerValue)
			}

			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestAuthDisabled(t *testing.T) {
	mr, _, svc := setupTestService(t)
	defer mr.Close()

	mux := setupRouter(svc, "")

	req := httptest.NewRequest("POST", "/queue/score", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code == http.StatusUnauthorized {
		t.Errorf("Expected auth to be disabled, got 401")
	}
}

func TestQueueScoreEndpoint(t *testing.T) {
	mr, _, svc := setupTestService(t)
	defer mr.Close()

	mux := setupRouter(svc, "")

	body := `{"player_id":"p1","game_id":"g1","hole_number":1,"strokes":4,"timestamp":"2026-08-23T10:00:00Z"}`
	req := httptest.NewRequest("POST", "/queue/score", strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["id"] == "" {
		t.Error("Expected a queued action id in the response")
	}

	if svc.GetQueueStatus(context.Background()).QueueLength != 1 {
		t.Error("Expected one pending action after queueing offline")
	}
}

func TestQueueEndpointRejectsGet(t *testing.T) {
	mr, _, svc := setupTestService(t)
	defer mr.Close()

	mux := setupRouter(svc, "")

	req := httptest.NewRequest("GET", "/queue/photo", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", w.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	mr, monitor, svc := setupTestService(t)
	defer mr.Close()

	mux := setupRouter(svc, "")

	body := `{"player_id":"p1","game_id":"g1","hole_number":2,"strokes":3,"timestamp":"2026-08-23T10:05:00Z"}`
	req := httptest.NewRequest("POST", "/queue/score", strings.NewReader(body))
	mux.ServeHTTP(httptest.NewRecorder(), req)

	monitor.SetOnline(true)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/status", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var status offline.Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	if status.QueueLength != 1 || status.CachedScores != 1 || !status.Online {
		t.Errorf("Unexpected status: %+v", status)
	}
}

func TestSyncEndpointDrains(t *testing.T) {
	mr, monitor, svc := setupTestService(t)
	defer mr.Close()

	mux := setupRouter(svc, "")

	body := `{"player_id":"p1","game_id":"g1","hole_number":3,"strokes":5,"timestamp":"2026-08-23T10:10:00Z"}`
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/queue/score", strings.NewReader(body)))

	monitor.SetOnline(true)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("POST", "/sync", nil))
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", w.Code)
	}

	if svc.GetQueueStatus(context.Background()).QueueLength != 0 {
		t.Error("Expected queue drained after /sync")
	}
}

func TestCacheDeleteEndpoint(t *testing.T) {
	mr, _, svc := setupTestService(t)
	defer mr.Close()

	mux := setupRouter(svc, "")

	body := `{"player_id":"p1","game_id":"g1","hole_number":4,"strokes":4,"timestamp":"2026-08-23T10:15:00Z"}`
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/queue/score", strings.NewReader(body)))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("DELETE", "/cache", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", w.Code)
	}

	status := svc.GetQueueStatus(context.Background())
	if status.QueueLength != 0 || status.CachedScores != 0 {
		t.Errorf("Expected everything wiped, got %+v", status)
	}
}

func TestCORSPreflight(t *testing.T) {
	mr, _, svc := setupTestService(t)
	defer mr.Close()

	mux := setupRouter(svc, "secret-key")

	// Preflight must succeed without the API key.
	req := httptest.NewRequest("OPTIONS", "/queue/score", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("Expected CORS headers on preflight response")
	}
}
