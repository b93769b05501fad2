// Package statusserver exposes HTTP health/readiness/status endpoints over
// the rsm core, the way the teacher's pkg/api/health.go does for its own
// manager: a liveness check that only proves the process is up, and a
// readiness check that inspects real collaborator state.
package statusserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/rsmgr/pkg/metrics"
	"github.com/cuemby/rsmgr/pkg/rsm"
)

// Host is the subset of clusterhost.Host the status server needs. Declared
// here (rather than imported) so tests can exercise the handlers against a
// fake without standing up a real raft transport.
type Host interface {
	IsLeader() bool
	LeaderAddr() string
	Manager() *rsm.ServiceManager
	AddVoter(nodeID, address string) error
}

// Server provides HTTP status endpoints over a Host.
type Server struct {
	host Host
	mux  *http.ServeMux
}

// New creates a status server. host may be nil, matching the teacher's "nil
// manager is OK for health check" convention.
func New(host Host) *Server {
	s := &Server{host: host, mux: http.NewServeMux()}
	s.mux.HandleFunc("/health", s.healthHandler)
	s.mux.HandleFunc("/ready", s.readyHandler)
	s.mux.HandleFunc("/status", s.statusHandler)
	s.mux.HandleFunc("/join", s.joinHandler)
	s.mux.Handle("/metrics", metrics.Handler())
	return s
}

// Start runs the HTTP server on addr, blocking until it exits.
func (s *Server) Start(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// Handler returns the HTTP handler for embedding in another server.
func (s *Server) Handler() http.Handler { return s.mux }

// HealthResponse is the /health liveness response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse is the /ready readiness response.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// StatusResponse is the /status snapshot of rsm core state.
type StatusResponse struct {
	Leader        bool   `json:"leader"`
	LeaderAddr    string `json:"leader_addr,omitempty"`
	LastApplied   uint64 `json:"last_applied"`
	SessionCount  int    `json:"session_count"`
	ServiceCount  int    `json:"service_count"`
	UnderHighLoad bool   `json:"under_high_load"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Timestamp: time.Now()})
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	checks := make(map[string]string)
	ready := true
	var message string

	if s.host != nil {
		if s.host.IsLeader() {
			checks["raft"] = "leader"
		} else if addr := s.host.LeaderAddr(); addr != "" {
			checks["raft"] = fmt.Sprintf("follower (leader: %s)", addr)
		} else {
			checks["raft"] = "no leader elected"
			ready = false
			message = "waiting for leader election"
		}
	} else {
		checks["raft"] = "not initialized"
		ready = false
		message = "host not initialized"
	}

	if s.host != nil && s.host.Manager() != nil {
		checks["manager"] = fmt.Sprintf("last_applied=%d", s.host.Manager().LastApplied())
	} else {
		checks["manager"] = "not initialized"
		ready = false
		if message == "" {
			message = "manager not initialized"
		}
	}

	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, ReadyResponse{Status: status, Timestamp: time.Now(), Checks: checks, Message: message})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.host == nil || s.host.Manager() == nil {
		http.Error(w, "not initialized", http.StatusServiceUnavailable)
		return
	}

	mgr := s.host.Manager()
	writeJSON(w, http.StatusOK, StatusResponse{
		Leader:        s.host.IsLeader(),
		LeaderAddr:    s.host.LeaderAddr(),
		LastApplied:   mgr.LastApplied(),
		SessionCount:  mgr.SessionCount(),
		ServiceCount:  mgr.ServiceCount(),
		UnderHighLoad: mgr.IsUnderHighLoad(),
	})
}

// JoinRequest is the /join POST body: a running-but-not-yet-a-voter node
// asking the leader to add it to the cluster configuration.
type JoinRequest struct {
	NodeID  string `json:"node_id"`
	Address string `json:"address"`
}

func (s *Server) joinHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.host == nil {
		http.Error(w, "not initialized", http.StatusServiceUnavailable)
		return
	}

	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	if err := s.host.AddVoter(req.NodeID, req.Address); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
