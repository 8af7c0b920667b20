package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuth(t *testing.T) {
	// Create a test handler to be wrapped by the Auth middleware
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	testCases := []struct {
		name       string
		path       string
		key        string
		wantStatus int
		wantBody   string
	}{
		{name: "missing key", path: "/records", key: "", wantStatus: http.StatusUnauthorized, wantBody: "Unauthorized\n"},
		{name: "invalid key", path: "/records", key: "invalid", wantStatus: http.StatusUnauthorized, wantBody: "Unauthorized\n"},
		{name: "valid key", path: "/records", key: "correct-key", wantStatus: http.StatusOK, wantBody: "OK"},
		{name: "probe without key", path: "/health", key: "", wantStatus: http.StatusOK, wantBody: "OK"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			if tc.key != "" {
				req.Header.Set("X-API-KEY", tc.key)
			}
			rr := httptest.NewRecorder()

			Auth(testHandler, "correct-key").ServeHTTP(rr, req)

			if status := rr.Code; status != tc.wantStatus {
				t.Errorf("expected status %v, got %v", tc.wantStatus, status)
			}
			if body := rr.Body.String(); body != tc.wantBody {
				t.Errorf("expected body %q, got %q", tc.wantBody, body)
			}
		})
	}
}
