package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestReadiness(t *testing.T) {
	t.Parallel()

	ok := Check{Name: "db", Ping: func(ctx context.Context) error { return nil }}
	down := Check{Name: "redis", Ping: func(ctx context.Context) error { return errors.New("connection refused") }}

	tests := []struct {
		name           string
		checks         []Check
		expectedStatus int
		expectedBody   string
	}{
		{"no checks", nil, http.StatusOK, "ready"},
		{"all healthy", []Check{ok}, http.StatusOK, "ready"},
		{"dependency down", []Check{ok, down}, http.StatusServiceUnavailable, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := setupRouter()
			router.GET("/readyz", Readiness(tt.checks...))

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			var response map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if response["status"] != tt.expectedBody {
				t.Errorf("expected status %q, got %v", tt.expectedBody, response["status"])
			}
			if w.Header().Get("Cache-Control") != "no-store" {
				t.Errorf("expected Cache-Control 'no-store', got %q", w.Header().Get("Cache-Control"))
			}
		})
	}
}

func TestReadiness_ReportsFailedCheck(t *testing.T) {
	t.Parallel()

	router := setupRouter()
	router.GET("/readyz", Readiness(Check{Name: "db", Ping: func(ctx context.Context) error {
		return errors.New("dial tcp: timeout")
	}}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	var response struct {
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if response.Checks["db"] != "dial tcp: timeout" {
		t.Errorf("expected db failure to be reported, got %v", response.Checks)
	}
}
