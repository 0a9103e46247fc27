package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jpalmerr/insightwatch/internal/store"
)

const (
	// sseWriteTimeout bounds a single SSE write so a stalled client cannot
	// pin its handler past shutdown.
	sseWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second

	defaultTitle     = "Insightwatch"
	titlePlaceholder = "{{.Title}}"

	maxWatchBodySize = 4 << 10
)

// Watcher starts and stops polling for issues.
type Watcher interface {
	// Watch starts polling issueID. Watching an issue twice is a no-op.
	Watch(issueID string) error

	// Unwatch stops polling issueID and reports whether it was watched.
	Unwatch(issueID string) bool
}

// Server handles HTTP requests for the dashboard and its API.
type Server struct {
	store      store.Store
	watcher    Watcher
	port       int
	httpServer *http.Server
	assets     fs.FS
	title      string
	logger     *slog.Logger

	mu   sync.Mutex
	addr net.Addr
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - st: snapshot store backing the read API and SSE
//   - watcher: target of the watch API; nil disables it (501)
//   - port: TCP port to listen on, 0 picks a free port
//   - assets: embedded dashboard assets (may be nil)
//   - title: dashboard title, defaults to "Insightwatch"
//   - logger: logger for server events
func NewServer(st store.Store, watcher Watcher, port int, assets fs.FS, title string, logger *slog.Logger) *Server {
	return &Server{
		store:   st,
		watcher: watcher,
		port:    port,
		assets:  assets,
		title:   title,
		logger:  logger,
	}
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/insights", s.handleList)
	mux.HandleFunc("GET /api/insights/{id}", s.handleGet)
	mux.HandleFunc("POST /api/watch", s.handleWatch)
	mux.HandleFunc("DELETE /api/watch/{id}", s.handleUnwatch)
	mux.HandleFunc("GET /api/sse", s.handleSSE)

	if s.assets != nil {
		mux.HandleFunc("GET /", s.handleDashboard)
	}

	return mux
}

// Start begins serving in a background goroutine.
//
// Start returns once the listener is bound, or an error if binding fails.
// Cancelling ctx initiates a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts derive from ctx, so SSE handlers end on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr == nil {
		return ""
	}
	return s.addr.String()
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if s.assets == nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	title := s.title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// handleList returns every snapshot.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.GetAll())
}

// handleGet returns the snapshot of one issue.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	snap, ok := s.store.Get(id)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "issue is not watched"})
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

type watchRequest struct {
	IssueID string `json:"issue_id"`
}

// handleWatch starts polling the issue named in the request body.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	if s.watcher == nil {
		s.writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "watching is disabled"})
		return
	}

	var req watchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWatchBodySize)).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	req.IssueID = strings.TrimSpace(req.IssueID)
	if req.IssueID == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "issue_id is required"})
		return
	}

	if err := s.watcher.Watch(req.IssueID); err != nil {
		s.logger.Warn("watch failed", "issue", req.IssueID, "error", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{"issue_id": req.IssueID})
}

// handleUnwatch stops polling one issue.
func (s *Server) handleUnwatch(w http.ResponseWriter, r *http.Request) {
	if s.watcher == nil {
		s.writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "watching is disabled"})
		return
	}

	if !s.watcher.Unwatch(r.PathValue("id")) {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "issue is not watched"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// handleSSE streams snapshots via Server-Sent Events.
//
// With ?issue=<id> only that issue's snapshots are sent. Every write carries
// a deadline so a slow or vanished client cannot block the handler.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	filter := r.URL.Query().Get("issue")
	rc := http.NewResponseController(w)
	deadlinesSupported := true

	writeAndFlush := func(snap store.Snapshot) error {
		data, err := json.Marshal(snap)
		if err != nil {
			return nil
		}

		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	for _, snap := range s.store.GetAll() {
		if filter != "" && snap.IssueID != filter {
			continue
		}
		if err := writeAndFlush(snap); err != nil {
			return
		}
	}

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if filter != "" && snap.IssueID != filter {
				continue
			}
			if err := writeAndFlush(snap); err != nil {
				return
			}

		case <-r.Context().Done():
			// fires on client disconnect and, via BaseContext, on shutdown
			return
		}
	}
}
