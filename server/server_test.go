package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sardine-ai/go-remote-records/controller"
	"github.com/sardine-ai/go-remote-records/model"
	"github.com/sardine-ai/go-remote-records/repository"
	"github.com/sardine-ai/go-remote-records/source"
	"github.com/sardine-ai/go-remote-records/store"
)

// newLoadedController returns a controller whose initial fetch has resolved.
func newLoadedController(t *testing.T, fail bool) *controller.Controller {
	t.Helper()
	remote := source.NewStaticSource("static")
	if fail {
		remote.SetError(errors.New("mock fetch error"))
	}
	c := controller.New(context.Background(), repository.New(remote, store.NewMemoryStore()))
	t.Cleanup(c.Close)
	_ = c.Wait(context.Background())
	return c
}

func newTestServer(t *testing.T, names map[string]bool) *Server {
	t.Helper()
	publishers := make(map[string]Publisher, len(names))
	for name, fail := range names {
		publishers[name] = newLoadedController(t, fail)
	}
	return NewServer(publishers)
}

// TestServerHealthEndpoint tests the /health endpoint
func TestServerHealthEndpoint(t *testing.T) {
	server := newTestServer(t, map[string]bool{"test": false})
	handler := server.CreateHandlers()

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("Failed to parse JSON response: %v", err)
	}
	if result["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got '%v'", result["status"])
	}
}

// TestServerHealthEndpointUnhealthy tests /health when a fetch failed
func TestServerHealthEndpointUnhealthy(t *testing.T) {
	server := newTestServer(t, map[string]bool{"test": true})
	handler := server.CreateHandlers()

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("Failed to parse JSON response: %v", err)
	}
	if result["status"] != "unhealthy" {
		t.Errorf("Expected status 'unhealthy', got '%v'", result["status"])
	}
}

// TestServerReadyEndpoint tests the /ready endpoint
func TestServerReadyEndpoint(t *testing.T) {
	server := newTestServer(t, map[string]bool{"test": false})
	handler := server.CreateHandlers()

	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Result().StatusCode)
	}

	var result map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to parse JSON response: %v", err)
	}
	if result["status"] != "ready" {
		t.Errorf("Expected status 'ready', got '%s'", result["status"])
	}
}

// TestServerNotReady tests /ready when nothing has loaded
func TestServerNotReady(t *testing.T) {
	server := newTestServer(t, map[string]bool{"test": true})
	handler := server.CreateHandlers()

	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Result().StatusCode)
	}
}

// TestServerStatusEndpoint tests the /status endpoint
func TestServerStatusEndpoint(t *testing.T) {
	server := newTestServer(t, map[string]bool{"repo1": false, "repo2": false})
	handler := server.CreateHandlers()

	req := httptest.NewRequest("GET", "/status", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Result().StatusCode)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to parse JSON response: %v", err)
	}
	if result["healthy"] != true {
		t.Errorf("Expected healthy=true, got %v", result["healthy"])
	}
	if result["ready"] != true {
		t.Errorf("Expected ready=true, got %v", result["ready"])
	}

	repos, ok := result["repositories"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected repositories in response")
	}
	for _, name := range []string{"repo1", "repo2"} {
		repo, ok := repos[name].(map[string]interface{})
		if !ok {
			t.Fatalf("Expected %s in repositories", name)
		}
		if repo["record_count"] != float64(2) {
			t.Errorf("%s: expected record_count 2, got %v", name, repo["record_count"])
		}
	}
}

// TestServerRecordsEndpoint tests the per-name records endpoint
func TestServerRecordsEndpoint(t *testing.T) {
	server := newTestServer(t, map[string]bool{"records": false})
	handler := server.CreateHandlers()

	req := httptest.NewRequest("GET", "/records", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Result().StatusCode)
	}
	records, err := model.Decode(w.Body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	expected := []model.Record{{ID: 1, Content: "Remote Data 1"}, {ID: 2, Content: "Remote Data 2"}}
	if !model.Equal(records, expected) {
		t.Errorf("Expected %v, got %v", expected, records)
	}

	etagValue := w.Result().Header.Get("ETag")
	if etagValue == "" {
		t.Fatal("Expected an ETag header")
	}

	// A matching If-None-Match short-circuits.
	req = httptest.NewRequest("GET", "/records", nil)
	req.Header.Set("If-None-Match", etagValue)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Result().StatusCode != http.StatusNotModified {
		t.Errorf("Expected status 304, got %d", w.Result().StatusCode)
	}
}

// TestServerRecordsEndpointJSON tests content negotiation
func TestServerRecordsEndpointJSON(t *testing.T) {
	server := newTestServer(t, map[string]bool{"records": false})
	handler := server.CreateHandlers()

	req := httptest.NewRequest("GET", "/records", nil)
	req.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	var doc model.Document
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("Failed to parse JSON response: %v", err)
	}
	if len(doc.Records) != 2 || doc.Records[0].Content != "Remote Data 1" {
		t.Errorf("Unexpected records %v", doc.Records)
	}
}

// TestServerMethodNotAllowed tests that non-GET/HEAD methods are rejected
func TestServerMethodNotAllowed(t *testing.T) {
	server := newTestServer(t, map[string]bool{"test": false})
	handler := server.CreateHandlers()

	methods := []string{"POST", "PUT", "DELETE", "PATCH"}
	endpoints := []string{"/health", "/ready", "/status", "/test"}

	for _, method := range methods {
		for _, endpoint := range endpoints {
			req := httptest.NewRequest(method, endpoint, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Result().StatusCode != http.StatusMethodNotAllowed {
				t.Errorf("%s %s: Expected status 405, got %d", method, endpoint, w.Result().StatusCode)
			}
		}
	}
}

// TestServerAuthMiddleware tests the authentication middleware
func TestServerAuthMiddleware(t *testing.T) {
	server := newTestServer(t, map[string]bool{"test": false})
	server.AuthKey = "secret-key"
	handler := Auth(server.CreateHandlers(), server.AuthKey)

	// Test without auth key
	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 without auth key, got %d", w.Result().StatusCode)
	}

	// Test with wrong auth key
	req = httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-API-KEY", "wrong-key")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong auth key, got %d", w.Result().StatusCode)
	}
	if body := w.Body.String(); body != "Unauthorized\n" {
		t.Errorf("expected body %q, got %q", "Unauthorized\n", body)
	}

	// Test with correct auth key
	req = httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-API-KEY", "secret-key")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("Expected 200 with correct auth key, got %d", w.Result().StatusCode)
	}
}

// TestServerHealthEndpointsBypassAuth tests that probes don't require authentication
func TestServerHealthEndpointsBypassAuth(t *testing.T) {
	server := newTestServer(t, map[string]bool{"test": false})
	handler := Auth(server.CreateHandlers(), "secret-key")

	for _, endpoint := range []string{"/health", "/ready", "/status"} {
		req := httptest.NewRequest("GET", endpoint, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("%s: Expected 200 without auth key, got %d", endpoint, w.Result().StatusCode)
		}
	}
}

// TestServerOneRepoFailsHealthCheck tests that one failing publisher marks the server unhealthy
func TestServerOneRepoFailsHealthCheck(t *testing.T) {
	server := newTestServer(t, map[string]bool{"repo1": true, "repo2": false})

	if server.IsHealthy() {
		t.Error("Expected server to be unhealthy when one repo fails")
	}
	if !server.IsReady() {
		t.Error("Expected server to still be ready with one working repo")
	}

	status := server.GetRepositoryStatus()
	if status["repo1"].IsHealthy || status["repo1"].Error == "" {
		t.Errorf("Expected repo1 unhealthy with an error, got %+v", status["repo1"])
	}
	if status["repo2"].RefreshCount != 1 {
		t.Errorf("Expected refresh count 1, got %d", status["repo2"].RefreshCount)
	}
}

// TestServerConcurrentHTTPRequests tests concurrent HTTP requests
func TestServerConcurrentHTTPRequests(t *testing.T) {
	server := newTestServer(t, map[string]bool{"test": false})
	handler := server.CreateHandlers()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, endpoint := range []string{"/health", "/ready", "/status", "/test"} {
				req := httptest.NewRequest("GET", endpoint, nil)
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, req)
			}
		}()
	}
	wg.Wait()
}

// TestServerHEADRequests tests that HEAD requests work for all endpoints
func TestServerHEADRequests(t *testing.T) {
	server := newTestServer(t, map[string]bool{"test": false})
	handler := server.CreateHandlers()

	for _, endpoint := range []string{"/health", "/ready", "/status", "/test"} {
		req := httptest.NewRequest("HEAD", endpoint, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("HEAD %s: Expected 200, got %d", endpoint, w.Result().StatusCode)
		}
	}
}

// TestServerShutdown tests graceful shutdown
func TestServerShutdown(t *testing.T) {
	server := newTestServer(t, map[string]bool{"test": false})

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start("127.0.0.1:0")
	}()

	// Give server time to start
	time.Sleep(50 * time.Millisecond)

	if err := server.Shutdown(); err != nil {
		t.Errorf("Expected no error on shutdown, got: %v", err)
	}
	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("Expected clean return from Start, got: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Start did not return after Shutdown")
	}
}

// TestServerStartReturnsError tests that Start returns error properly
func TestServerStartReturnsError(t *testing.T) {
	server := newTestServer(t, map[string]bool{"test": false})

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start("invalid-address:99999999")
	}()

	select {
	case err := <-errChan:
		if err == nil {
			t.Error("Expected error for invalid address")
		}
	case <-time.After(2 * time.Second):
		t.Error("Start did not fail on an invalid address")
	}
}
