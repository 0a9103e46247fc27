package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jpalmerr/insightwatch/internal/store"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockStore implements store.Store for testing.
type mockStore struct {
	mu          sync.RWMutex
	snapshots   map[string]store.Snapshot
	subscribers map[chan store.Snapshot]struct{}
	subMu       sync.Mutex
}

func newMockStore() *mockStore {
	return &mockStore{
		snapshots:   make(map[string]store.Snapshot),
		subscribers: make(map[chan store.Snapshot]struct{}),
	}
}

func (m *mockStore) Update(snap store.Snapshot) {
	m.mu.Lock()
	m.snapshots[snap.IssueID] = snap
	m.mu.Unlock()
	m.notify(snap)
}

func (m *mockStore) Get(issueID string) (store.Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snapshots[issueID]
	return snap, ok
}

func (m *mockStore) GetAll() []store.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]store.Snapshot, 0, len(m.snapshots))
	for _, snap := range m.snapshots {
		result = append(result, snap)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].IssueID < result[j].IssueID })
	return result
}

func (m *mockStore) Delete(issueID string) bool {
	m.mu.Lock()
	_, ok := m.snapshots[issueID]
	delete(m.snapshots, issueID)
	m.mu.Unlock()
	if ok {
		m.notify(store.Snapshot{IssueID: issueID, Removed: true})
	}
	return ok
}

func (m *mockStore) notify(snap store.Snapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for ch := range m.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (m *mockStore) Subscribe() <-chan store.Snapshot {
	ch := make(chan store.Snapshot, 100)
	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()
	return ch
}

func (m *mockStore) Unsubscribe(ch <-chan store.Snapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// mockWatcher records Watch and Unwatch calls.
type mockWatcher struct {
	mu      sync.Mutex
	watched map[string]bool
	err     error
}

func newMockWatcher() *mockWatcher {
	return &mockWatcher{watched: make(map[string]bool)}
}

func (m *mockWatcher) Watch(issueID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.watched[issueID] = true
	return nil
}

func (m *mockWatcher) Unwatch(issueID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.watched[issueID] {
		return false
	}
	delete(m.watched, issueID)
	return true
}

func (m *mockWatcher) isWatched(issueID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watched[issueID]
}

// --- Snapshot API ---

func TestHandleList(t *testing.T) {
	ms := newMockStore()
	ms.Update(store.Snapshot{IssueID: "b", State: "pending", Attempt: 1})
	ms.Update(store.Snapshot{IssueID: "a", State: "ready", Insight: &store.Insight{Summary: "X"}})

	srv := NewServer(ms, nil, 0, nil, "", testLogger())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/insights", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var got []store.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(got))
	}
	if got[0].IssueID != "a" || got[0].Insight == nil || got[0].Insight.Summary != "X" {
		t.Errorf("got[0] = %+v, want ready issue a with summary X", got[0])
	}
}

func TestHandleList_Empty(t *testing.T) {
	srv := NewServer(newMockStore(), nil, 0, nil, "", testLogger())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/insights", nil))

	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("body = %q, want []", rec.Body.String())
	}
}

func TestHandleGet(t *testing.T) {
	ms := newMockStore()
	ms.Update(store.Snapshot{IssueID: "issue-7", State: "unavailable", Attempt: 12})

	srv := NewServer(ms, nil, 0, nil, "", testLogger())

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantState  string
	}{
		{"known issue", "/api/insights/issue-7", http.StatusOK, "unavailable"},
		{"unknown issue", "/api/insights/nope", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantState == "" {
				return
			}
			var snap store.Snapshot
			if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
				t.Fatalf("failed to parse body: %v", err)
			}
			if snap.State != tt.wantState {
				t.Errorf("State = %q, want %q", snap.State, tt.wantState)
			}
		})
	}
}

// --- Watch API ---

func TestHandleWatch(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantWatch  string
	}{
		{"valid", `{"issue_id":"issue-9"}`, http.StatusAccepted, "issue-9"},
		{"trimmed", `{"issue_id":"  issue-9 "}`, http.StatusAccepted, "issue-9"},
		{"empty id", `{"issue_id":""}`, http.StatusBadRequest, ""},
		{"blank id", `{"issue_id":"   "}`, http.StatusBadRequest, ""},
		{"missing id", `{}`, http.StatusBadRequest, ""},
		{"invalid json", `{`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := newMockWatcher()
			srv := NewServer(newMockStore(), mw, 0, nil, "", testLogger())

			req := httptest.NewRequest(http.MethodPost, "/api/watch", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantWatch != "" && !mw.isWatched(tt.wantWatch) {
				t.Errorf("%q not watched", tt.wantWatch)
			}
		})
	}
}

func TestHandleWatch_WatcherError(t *testing.T) {
	mw := newMockWatcher()
	mw.err = errors.New("board closed")
	srv := NewServer(newMockStore(), mw, 0, nil, "", testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/watch", strings.NewReader(`{"issue_id":"1"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "board closed") {
		t.Errorf("body = %q, want watcher error", rec.Body.String())
	}
}

func TestHandleUnwatch(t *testing.T) {
	mw := newMockWatcher()
	_ = mw.Watch("issue-1")
	srv := NewServer(newMockStore(), mw, 0, nil, "", testLogger())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/watch/issue-1", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if mw.isWatched("issue-1") {
		t.Error("issue-1 still watched")
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/watch/issue-1", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second unwatch status = %d, want 404", rec.Code)
	}
}

func TestWatchAPI_NoWatcher(t *testing.T) {
	srv := NewServer(newMockStore(), nil, 0, nil, "", testLogger())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/watch", strings.NewReader(`{"issue_id":"1"}`)))
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("POST status = %d, want 501", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/watch/1", nil))
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("DELETE status = %d, want 501", rec.Code)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	srv := NewServer(newMockStore(), newMockWatcher(), 0, nil, "", testLogger())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/watch", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

// --- SSE ---

func TestHandleSSE_BasicFlow(t *testing.T) {
	ms := newMockStore()
	ms.Update(store.Snapshot{IssueID: "issue-1", State: "ready"})
	ms.Update(store.Snapshot{IssueID: "issue-2", State: "pending"})

	srv := NewServer(ms, nil, 0, nil, "", testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	srv.handleSSE(rec, req)

	body := rec.Body.String()

	// should contain initial snapshots
	if !strings.Contains(body, "issue-1") {
		t.Errorf("response should contain issue-1, got: %s", body)
	}
	if !strings.Contains(body, "issue-2") {
		t.Errorf("response should contain issue-2, got: %s", body)
	}
}

func TestHandleSSE_IssueFilter(t *testing.T) {
	ms := newMockStore()
	ms.Update(store.Snapshot{IssueID: "issue-1", State: "ready"})
	ms.Update(store.Snapshot{IssueID: "issue-2", State: "pending"})

	srv := NewServer(ms, nil, 0, nil, "", testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/sse?issue=issue-2", nil)
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	ms.Update(store.Snapshot{IssueID: "issue-1", State: "unavailable"})
	ms.Update(store.Snapshot{IssueID: "issue-2", State: "ready"})
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not exit after context cancellation")
	}

	events := parseSSEEvents(rec.Body.String())
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(events), events)
	}
	for _, e := range events {
		if e.IssueID != "issue-2" {
			t.Errorf("unexpected event for %q", e.IssueID)
		}
	}
	if events[1].State != "ready" {
		t.Errorf("last state = %q, want ready", events[1].State)
	}
}

func TestHandleSSE_StreamsUpdates(t *testing.T) {
	ms := newMockStore()
	srv := NewServer(ms, nil, 0, nil, "", testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	// give handler time to subscribe
	time.Sleep(50 * time.Millisecond)

	ms.Update(store.Snapshot{IssueID: "new-issue", State: "pending"})

	time.Sleep(50 * time.Millisecond)

	cancel()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("handler did not exit after context cancellation")
	}

	body := rec.Body.String()
	if !strings.Contains(body, "new-issue") {
		t.Errorf("response should contain streamed update new-issue, got: %s", body)
	}
}

func TestHandleSSE_StreamsRemoval(t *testing.T) {
	ms := newMockStore()
	ms.Update(store.Snapshot{IssueID: "issue-1", State: "pending"})
	srv := NewServer(ms, nil, 0, nil, "", testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	ms.Delete("issue-1")
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	events := parseSSEEvents(rec.Body.String())
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if !events[1].Removed {
		t.Errorf("second event = %+v, want removal", events[1])
	}
}

func TestHandleSSE_ClientDisconnect(t *testing.T) {
	ms := newMockStore()
	srv := NewServer(ms, nil, 0, nil, "", testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	// simulate client disconnect
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("handler did not exit after client disconnect")
	}
}

func TestHandleSSE_NoGoroutineLeaks(t *testing.T) {
	runtime.GC()
	time.Sleep(100 * time.Millisecond)
	before := runtime.NumGoroutine()

	ms := newMockStore()
	srv := NewServer(ms, nil, 0, nil, "", testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
			req = req.WithContext(ctx)
			rec := httptest.NewRecorder()

			srv.handleSSE(rec, req)
		}()
	}

	wg.Wait()

	runtime.GC()
	time.Sleep(200 * time.Millisecond)

	after := runtime.NumGoroutine()
	if after > before+2 {
		t.Errorf("potential goroutine leak: before=%d, after=%d", before, after)
	}
}

func TestHandleSSE_ConcurrentClientsShutdown(t *testing.T) {
	ms := newMockStore()
	ms.Update(store.Snapshot{IssueID: "issue-1", State: "pending"})

	srv := NewServer(ms, nil, 0, nil, "", testLogger())

	// request contexts derive from this one, as BaseContext does in production
	serverCtx, serverCancel := context.WithCancel(context.Background())

	numClients := 10
	var wg sync.WaitGroup
	started := make(chan struct{})
	var startedCount atomic.Int32

	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
			req = req.WithContext(serverCtx)
			rec := httptest.NewRecorder()

			if startedCount.Add(1) == int32(numClients) {
				close(started)
			}

			srv.handleSSE(rec, req)
		}()
	}

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("clients did not start in time")
	}

	time.Sleep(100 * time.Millisecond)

	serverCancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("not all handlers exited after shutdown")
	}
}

func TestHandleSSE_SSENotSupported(t *testing.T) {
	ms := newMockStore()
	srv := NewServer(ms, nil, 0, nil, "", testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)

	w := &nonFlushWriter{header: make(http.Header)}

	srv.handleSSE(w, req)

	if w.statusCode != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.statusCode)
	}
}

type nonFlushWriter struct {
	header     http.Header
	statusCode int
	body       []byte
}

func (n *nonFlushWriter) Header() http.Header {
	return n.header
}

func (n *nonFlushWriter) Write(b []byte) (int, error) {
	n.body = append(n.body, b...)
	return len(b), nil
}

func (n *nonFlushWriter) WriteHeader(statusCode int) {
	n.statusCode = statusCode
}

func TestHandleSSE_Headers(t *testing.T) {
	ms := newMockStore()
	srv := NewServer(ms, nil, 0, nil, "", testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	srv.handleSSE(rec, req)

	expectedHeaders := map[string]string{
		"Content-Type":                "text/event-stream",
		"Cache-Control":               "no-cache",
		"Connection":                  "keep-alive",
		"Access-Control-Allow-Origin": "*",
	}

	for key, expected := range expectedHeaders {
		if got := rec.Header().Get(key); got != expected {
			t.Errorf("header %s = %q, want %q", key, got, expected)
		}
	}
}

func TestHandleSSE_JSONFormat(t *testing.T) {
	ms := newMockStore()
	ms.Update(store.Snapshot{
		IssueID:   "issue-7",
		SessionID: "sess-1",
		State:     "ready",
		Attempt:   3,
		Insight: &store.Insight{
			Summary:   "DB pool exhausted",
			ModelUsed: "llama3.2:3b",
		},
		UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	srv := NewServer(ms, nil, 0, nil, "", testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	srv.handleSSE(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, `"issue_id":"issue-7"`) {
		t.Errorf("expected snake_case issue_id in payload, got: %s", body)
	}

	events := parseSSEEvents(body)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1: %s", len(events), body)
	}
	got := events[0]
	if got.State != "ready" || got.Attempt != 3 {
		t.Errorf("event = %+v, want ready at attempt 3", got)
	}
	if got.Insight == nil || got.Insight.Summary != "DB pool exhausted" {
		t.Errorf("Insight = %+v, want summary", got.Insight)
	}
}

// --- Integration tests for slow client / shutdown behavior ---
//
// httptest.Server gives real connections, which support write deadlines.

func TestHandleSSE_ServerShutdownIntegration(t *testing.T) {
	ms := newMockStore()
	ms.Update(store.Snapshot{IssueID: "issue-1", State: "pending"})

	srv := NewServer(ms, nil, 0, nil, "", testLogger())

	serverCtx, serverCancel := context.WithCancel(context.Background())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(serverCtx)
		srv.handleSSE(w, r)
	})

	ts := httptest.NewServer(handler)
	defer ts.Close()

	client := ts.Client()
	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	connDone := make(chan error, 1)
	go func() {
		resp, err := client.Do(req)
		if err != nil {
			connDone <- err
			return
		}
		defer func() { _ = resp.Body.Close() }()

		buf := make([]byte, 1024)
		for {
			_, err := resp.Body.Read(buf)
			if err != nil {
				connDone <- nil
				return
			}
		}
	}()

	time.Sleep(100 * time.Millisecond)

	serverCancel()

	select {
	case <-connDone:
	case <-time.After(3 * time.Second):
		t.Fatal("SSE connection did not close after server shutdown")
	}
}

// parseSSEEvents extracts the snapshots from an SSE body.
func parseSSEEvents(body string) []store.Snapshot {
	var results []store.Snapshot
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "data: ") {
			var snap store.Snapshot
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &snap); err == nil {
				results = append(results, snap)
			}
		}
	}
	return results
}

// --- Server Start ---

func TestStart_ServesAPI(t *testing.T) {
	ms := newMockStore()
	ms.Update(store.Snapshot{IssueID: "issue-1", State: "pending"})

	srv := NewServer(ms, newMockWatcher(), 0, nil, "", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if srv.Addr() != "" {
		t.Errorf("Addr() before Start = %q, want empty", srv.Addr())
	}
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	_, port, err := net.SplitHostPort(srv.Addr())
	if err != nil {
		t.Fatalf("Addr() = %q: %v", srv.Addr(), err)
	}

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%s/api/insights/issue-1", port))
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestStart_PortInUse_ReturnsError(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer func() { _ = ln.Close() }()

	port := ln.Addr().(*net.TCPAddr).Port

	srv := NewServer(newMockStore(), nil, port, nil, "", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = srv.Start(ctx)
	if err == nil {
		t.Fatal("Start() on occupied port should return error")
	}
	if !strings.Contains(err.Error(), "failed to bind") {
		t.Errorf("expected bind error, got: %v", err)
	}
}

func TestStart_InvalidPort_ReturnsError(t *testing.T) {
	srv := NewServer(newMockStore(), nil, -1, nil, "", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err == nil {
		t.Fatal("Start() with invalid port should return error")
	}
}

// --- Benchmark ---

func BenchmarkHandleSSE_SingleClient(b *testing.B) {
	ms := newMockStore()
	for i := 0; i < 10; i++ {
		ms.Update(store.Snapshot{IssueID: "issue-" + string(rune('A'+i)), State: "pending"})
	}

	srv := NewServer(ms, nil, 0, nil, "", testLogger())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
		req = req.WithContext(ctx)
		rec := httptest.NewRecorder()

		srv.handleSSE(rec, req)
		cancel()
	}
}

// --- Dashboard ---

// mockFS implements fs.ReadFileFS for testing dashboard rendering.
type mockFS struct {
	content string
}

func (m *mockFS) Open(name string) (fs.File, error) {
	return nil, fs.ErrNotExist
}

func (m *mockFS) ReadFile(name string) ([]byte, error) {
	if name == "assets/index.html" {
		return []byte(m.content), nil
	}
	return nil, fs.ErrNotExist
}

func TestHandleDashboard_Title(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"custom", "Checkout Incidents", "<title>Checkout Incidents</title>"},
		{"default", "", "<title>Insightwatch</title>"},
		{"html escaped", "<script>alert('xss')</script>", "&lt;script&gt;"},
		{"ampersand escaped", "Triage & Insights", "Triage &amp; Insights"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assets := &mockFS{content: "<title>{{.Title}}</title><h1>{{.Title}}</h1>"}
			srv := NewServer(newMockStore(), nil, 0, assets, tt.title, testLogger())

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			body := rec.Body.String()
			if !strings.Contains(body, tt.want) {
				t.Errorf("body = %q, want it to contain %q", body, tt.want)
			}
			if strings.Contains(body, "<script>") {
				t.Error("title should be HTML-escaped")
			}
		})
	}
}

func TestHandleDashboard_AssetsMissing(t *testing.T) {
	srv := NewServer(newMockStore(), nil, 0, &mockFS{}, "", testLogger())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	srv.assets = fsWithout{}
	srv.handleDashboard(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}
}

type fsWithout struct{}

func (fsWithout) Open(name string) (fs.File, error) { return nil, fs.ErrNotExist }

func TestHandleDashboard_NonRootPath(t *testing.T) {
	assets := &mockFS{content: "<title>{{.Title}}</title>"}
	srv := NewServer(newMockStore(), nil, 0, assets, "", testLogger())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d for non-root path, got %d", http.StatusNotFound, rec.Code)
	}
}
