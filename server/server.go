package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-http-utils/etag"
	"github.com/sardine-ai/go-remote-records/controller"
	"github.com/sardine-ai/go-remote-records/model"
	"github.com/sardine-ai/go-remote-records/observable"
	"github.com/sirupsen/logrus"
)

// Publisher is what the server reads records and fetch state from.
// *controller.Controller satisfies it.
type Publisher interface {
	Data() *observable.Value[[]model.Record]
	State() *observable.Value[controller.Status]
}

// RepositoryStatus is the per-name entry of the /status endpoint.
type RepositoryStatus struct {
	Name         string    `json:"name"`
	Phase        string    `json:"phase"`
	Error        string    `json:"error,omitempty"`
	RecordCount  int       `json:"record_count"`
	RefreshCount int       `json:"refresh_count"`
	LastUpdate   time.Time `json:"last_update"`
	IsHealthy    bool      `json:"is_healthy"`
}

// Server exposes the latest records of every named publisher over HTTP.
type Server struct {
	Publishers map[string]Publisher
	AuthKey    string

	mu         sync.Mutex
	httpServer *http.Server
}

func NewServer(publishers map[string]Publisher) *Server {
	return &Server{Publishers: publishers}
}

func (s *Server) names() []string {
	names := make([]string, 0, len(s.Publishers))
	for name := range s.Publishers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsHealthy reports whether no publisher is in the FetchFailed phase.
func (s *Server) IsHealthy() bool {
	for _, p := range s.Publishers {
		if p.State().Get().Phase == controller.FetchFailed {
			return false
		}
	}
	return true
}

// IsReady reports whether at least one publisher has loaded data.
func (s *Server) IsReady() bool {
	for _, p := range s.Publishers {
		if p.State().Get().Phase == controller.Loaded {
			return true
		}
	}
	return false
}

// GetRepositoryStatus returns the status of every publisher by name.
func (s *Server) GetRepositoryStatus() map[string]RepositoryStatus {
	statuses := make(map[string]RepositoryStatus, len(s.Publishers))
	for name, p := range s.Publishers {
		state := p.State().Get()
		status := RepositoryStatus{
			Name:         name,
			Phase:        state.Phase.String(),
			RecordCount:  len(p.Data().Get()),
			RefreshCount: state.Fetches,
			LastUpdate:   state.UpdatedAt,
			IsHealthy:    state.Phase != controller.FetchFailed,
		}
		if state.Err != nil {
			status.Error = state.Err.Error()
		}
		statuses[name] = status
	}
	return statuses
}

// Start serves on addr until Shutdown is called. It returns nil after a
// clean shutdown.
func (s *Server) Start(addr string) error {
	logrus.WithField("addr", addr).Info("Starting server")

	handler := s.CreateHandlers()
	if s.AuthKey != "" {
		handler = Auth(handler, s.AuthKey)
	}

	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	if err != nil {
		logrus.WithError(err).Error("error starting server")
	}
	return err
}

// Shutdown gracefully stops a started server, waiting up to five seconds
// for in-flight requests.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()
	if httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}

// CreateHandlers builds the routing: probes plus one endpoint per publisher.
func (s *Server) CreateHandlers() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", readOnly(s.handleHealth))
	mux.HandleFunc("/ready", readOnly(s.handleReady))
	mux.HandleFunc("/status", readOnly(s.handleStatus))

	records := http.NewServeMux()
	for _, name := range s.names() {
		publisher := s.Publishers[name]
		records.HandleFunc("/"+name, readOnly(func(w http.ResponseWriter, r *http.Request) {
			writeRecords(w, r, publisher.Data().Get())
		}))
	}
	mux.Handle("/", etag.Handler(records, false))
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.IsHealthy() {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "healthy"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "unhealthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.IsReady() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"healthy":      s.IsHealthy(),
		"ready":        s.IsReady(),
		"repositories": s.GetRepositoryStatus(),
	})
}

func readOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func writeRecords(w http.ResponseWriter, r *http.Request, records []model.Record) {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, http.StatusOK, model.Document{Records: model.Clone(records)})
		return
	}
	body, err := model.Encode(records)
	if err != nil {
		logrus.WithError(err).Error("error encoding records")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logrus.WithError(err).Error("error writing response")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("error writing response")
	}
}
