// Package mockintel is a stand-in for the insight service used by the
// examples. Insights become ready some time after an issue is first looked
// up; issues whose id starts with "stale-" never get one.
package mockintel

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StalePrefix marks issue ids that never get an insight.
const StalePrefix = "stale-"

type issueState struct {
	readyAt time.Time
	insight map[string]any
}

// Service serves GET /issues/{id}/insight.
type Service struct {
	minDelay time.Duration
	maxDelay time.Duration

	mu     sync.Mutex
	issues map[string]*issueState
}

// New creates a Service whose insights become ready between minDelay and
// maxDelay after the first lookup of an issue.
func New(minDelay, maxDelay time.Duration) *Service {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Service{
		minDelay: minDelay,
		maxDelay: maxDelay,
		issues:   make(map[string]*issueState),
	}
}

// Handler returns the HTTP handler of the service.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /issues/{id}/insight", s.handleInsight)
	return mux
}

func (s *Service) handleInsight(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// simulate small latency variance
	time.Sleep(time.Duration(20+rand.Intn(80)) * time.Millisecond)

	s.mu.Lock()
	state, exists := s.issues[id]
	if !exists {
		delay := s.minDelay
		if spread := s.maxDelay - s.minDelay; spread > 0 {
			delay += time.Duration(rand.Int63n(int64(spread)))
		}
		state = &issueState{readyAt: time.Now().Add(delay)}
		s.issues[id] = state
		slog.Info("analysis queued", "issue", id, "ready_in", delay.Round(time.Second).String())
	}
	ready := !strings.HasPrefix(id, StalePrefix) && !time.Now().Before(state.readyAt)
	if ready && state.insight == nil {
		state.insight = newInsight(id)
		slog.Info("analysis complete", "issue", id)
	}
	insight := state.insight
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "insight not found"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"insight": insight})
}

var findings = []struct {
	summary, rootCause, remediation string
}{
	{
		"Checkout latency spiked after the 14:02 deploy",
		"A new N+1 query in the cart service",
		"Batch the cart item lookup and add an index on cart_id",
	},
	{
		"Error rate on /login doubled",
		"Expired TLS certificate on the identity provider",
		"Rotate the certificate and alert on expiry 14 days ahead",
	},
	{
		"Worker queue backlog above 10k",
		"Consumer pods were OOM killed by a memory leak",
		"Raise the memory limit and fix the unbounded cache",
	},
}

func newInsight(issueID string) map[string]any {
	f := findings[rand.Intn(len(findings))]
	return map[string]any{
		"id":          uuid.NewString(),
		"issue_id":    issueID,
		"project_id":  "atlas-demo",
		"summary":     f.summary,
		"root_cause":  f.rootCause,
		"remediation": f.remediation,
		"tokens_used": 800 + rand.Intn(1200),
		"model_used":  "atlas-analyst-small",
		"created_at":  time.Now().UTC().Format(time.RFC3339),
	}
}
