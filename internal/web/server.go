// Package web serves the network-status page, its JSON form and a health
// endpoint for external uptime monitors.
package web

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/sweeney/network-status/internal/logic"
	"github.com/sweeney/network-status/internal/status"
)

// Server exposes the tracker's snapshot over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
}

func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{tracker: tracker}
	s.httpServer = &http.Server{Addr: addr, Handler: s.routes()}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handlePage)
	mux.HandleFunc("GET /index.html", s.handlePage)
	mux.HandleFunc("GET /index.json", s.handleJSON)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return noStore(mux)
}

// noStore stops browsers and proxies from caching a page that changes with
// every cycle.
func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) ListenAndServe() error { return s.httpServer.ListenAndServe() }

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error { return s.httpServer.Serve(ln) }

func (s *Server) Shutdown(ctx context.Context) error { return s.httpServer.Shutdown(ctx) }

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := renderHTML(&buf, s.tracker.Snapshot()); err != nil {
		log.Printf("web: render status page: %v", err)
		http.Error(w, "status page unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.tracker.Snapshot()))
}

// handleHealth answers 200 until the most recent cycle fails, then 503 with
// the failing checks. No cycle yet counts as healthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c := s.tracker.Snapshot().LastCycle
	if c == nil || !c.Failed() {
		fmt.Fprintln(w, "ok")
		return
	}
	var failed []string
	for _, o := range c.Observations {
		if o.Outcome == logic.OutcomeFail {
			failed = append(failed, o.Check)
		}
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	fmt.Fprintf(w, "fail: %s\n", strings.Join(failed, ", "))
}
