// Package web serves the range controller's status over HTTP: an HTML page
// for people, the same snapshot as JSON for scripts, and a health route for
// supervisors.
package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/sweeney/range-controller/internal/array"
	"github.com/sweeney/range-controller/internal/status"
)

// Routes.
const (
	pathRoot   = "/"
	pathPage   = "/index.html"
	pathJSON   = "/index.json"
	pathHealth = "/healthz"
)

// Server exposes tracker snapshots. Every route is read-only.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
}

// New builds a Server listening on addr. Nothing is bound until
// ListenAndServe or Serve is called.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{tracker: tracker}

	mux := http.NewServeMux()
	mux.HandleFunc(pathRoot, s.readOnly(s.handleStatusPage))
	mux.HandleFunc(pathJSON, s.readOnly(s.handleStatusJSON))
	mux.HandleFunc(pathHealth, s.readOnly(s.handleHealth))

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe blocks until Shutdown.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve is ListenAndServe on a caller-supplied listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// readOnly rejects anything but GET and HEAD and marks the response as
// uncacheable, since every body is a point-in-time snapshot.
func (s *Server) readOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		h(w, r)
	}
}

// handleStatusPage also catches every unregistered path, so anything other
// than the page itself is a 404.
func (s *Server) handleStatusPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != pathRoot && r.URL.Path != pathPage {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, s.tracker.Snapshot())
}

func (s *Server) handleStatusJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.tracker.Snapshot()))
}

// handleHealth is 200 while the array is running with at least one ranging
// sensor, 503 otherwise. The body is the array state.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	code := http.StatusOK
	if snap.State != array.StateRunning || snap.Live() == 0 {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	w.Write([]byte(string(snap.State) + "\n"))
}
