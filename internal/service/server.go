package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// EmployeeLister reports the employee folders visible to the image
// source, for the user-count endpoint.
type EmployeeLister interface {
	EmployeeNames(ctx context.Context) ([]string, error)
}

// Server handles HTTP requests for starting runs and polling progress.
type Server struct {
	runner       *Runner
	employees    EmployeeLister
	basicAuth    BasicAuth
	defaultMonth string
	mux          *http.ServeMux
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(runner *Runner, employees EmployeeLister, basicAuth BasicAuth, defaultMonth string) *Server {
	return NewServerWithMux(runner, employees, basicAuth, defaultMonth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(runner *Runner, employees EmployeeLister, basicAuth BasicAuth, defaultMonth string, mux *http.ServeMux) *Server {
	s := &Server{
		runner:       runner,
		employees:    employees,
		basicAuth:    basicAuth,
		defaultMonth: defaultMonth,
		mux:          mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.basicAuth.Username && credentials[1] == s.basicAuth.Password
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			// Ensure CORS headers are set before error response
			setCORSHeaders(w)
			w.Header().Set("WWW-Authenticate", `Basic realm="Meal Ledger"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/process/progress/{id}", s.requireAuth(s.handleProgress))
	s.mux.HandleFunc("POST /api/process", s.requireAuth(s.handleProcess))
	s.mux.HandleFunc("GET /api/users/count", s.requireAuth(s.handleUserCount))
}

// handleProcess starts a run and returns its job id
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Month  string `json:"month"`
		Append *bool  `json:"append"`
	}

	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			corsError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	month := req.Month
	if month == "" {
		month = s.defaultMonth
	}
	if month == "" {
		corsError(w, "Month is required", http.StatusBadRequest)
		return
	}

	appendMode := true
	if req.Append != nil {
		appendMode = *req.Append
	}

	jobID := s.runner.Start(month, appendMode)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]string{"job_id": jobID}); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleProgress returns the current status of a job
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Job ID required", http.StatusBadRequest)
		return
	}

	status, ok := s.runner.Progress(id)
	if !ok {
		corsError(w, "Job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleUserCount returns the number of employee folders in the source
func (s *Server) handleUserCount(w http.ResponseWriter, r *http.Request) {
	if s.employees == nil {
		corsError(w, "User counting not supported by this source", http.StatusNotImplemented)
		return
	}

	names, err := s.employees.EmployeeNames(r.Context())
	if err != nil {
		slog.Error("Error listing employee folders", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]int{"user_count": len(names)}); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	// Wrap the mux with CORS middleware to handle all requests including OPTIONS
	return http.ListenAndServe(addr, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			s.mux.ServeHTTP(w, r)
		})(w, r)
	}))
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
