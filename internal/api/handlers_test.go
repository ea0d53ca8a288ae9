package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nyashahama/hazard-query-backend/internal/ai"
	"github.com/nyashahama/hazard-query-backend/internal/api"
	"github.com/nyashahama/hazard-query-backend/internal/orchestrator"
)

// ─── STUBS ────────────────────────────────────────────────────────────────────

// stubAsker returns a canned answer and records the questions it received.
type stubAsker struct {
	mu        sync.Mutex
	questions []string
	deadline  time.Time

	chunks []string
	phase  orchestrator.Phase
	err    error
	stream *recordingStream // built per call when nil
}

func (a *stubAsker) Ask(ctx context.Context, q string) (*orchestrator.Answer, error) {
	a.mu.Lock()
	a.questions = append(a.questions, q)
	a.deadline, _ = ctx.Deadline()
	a.mu.Unlock()

	if a.err != nil {
		return nil, a.err
	}
	st := a.stream
	if st == nil {
		st = &recordingStream{chunks: a.chunks}
		a.stream = st
	}
	return &orchestrator.Answer{
		ID:     uuid.MustParse("6f1c2a9e-3b4d-4e5f-8a7b-1c2d3e4f5a6b"),
		Phase:  a.phase,
		Stream: st,
	}, nil
}

// recordingStream yields chunks, optionally fails after them, and records
// whether it was closed.
type recordingStream struct {
	chunks []string
	failAt error
	pos    int
	closed bool
}

func (s *recordingStream) Next() bool {
	if s.pos >= len(s.chunks) {
		return false
	}
	s.pos++
	return true
}

func (s *recordingStream) Chunk() string { return s.chunks[s.pos-1] }

func (s *recordingStream) Err() error {
	if s.pos >= len(s.chunks) {
		return s.failAt
	}
	return nil
}

func (s *recordingStream) Close() error {
	s.closed = true
	return nil
}

var _ ai.Stream = (*recordingStream)(nil)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

// ─── HELPERS ─────────────────────────────────────────────────────────────────

type testDeps struct {
	asker   *stubAsker
	handler http.Handler
}

func newTestServer(t *testing.T, asker *stubAsker, pinger stubPinger, cfgOverrides ...func(*api.Config)) *testDeps {
	t.Helper()

	cfg := api.Config{
		Env:            "development",
		AskTimeout:     5 * time.Second,
		MaxQueryLength: 100,
	}
	for _, fn := range cfgOverrides {
		fn(&cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "# HELP hazard_query_asks_total test")
	})

	return &testDeps{
		asker:   asker,
		handler: api.NewServer(asker, pinger, metrics, cfg, logger),
	}
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		bodyReader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

// ─── HEALTH ───────────────────────────────────────────────────────────────────

func TestHealthz(t *testing.T) {
	deps := newTestServer(t, &stubAsker{}, stubPinger{})
	rr := doRequest(t, deps.handler, http.MethodGet, "/healthz", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestReadyz_DatabaseUp(t *testing.T) {
	deps := newTestServer(t, &stubAsker{}, stubPinger{})
	rr := doRequest(t, deps.handler, http.MethodGet, "/readyz", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestReadyz_DatabaseDownReturns503(t *testing.T) {
	deps := newTestServer(t, &stubAsker{}, stubPinger{err: errors.New("dial tcp: connection refused")})
	rr := doRequest(t, deps.handler, http.MethodGet, "/readyz", nil, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "connection refused") {
		t.Error("database error text must not be returned")
	}
}

func TestMetricsRoute(t *testing.T) {
	deps := newTestServer(t, &stubAsker{}, stubPinger{})
	rr := doRequest(t, deps.handler, http.MethodGet, "/metrics", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "hazard_query_asks_total") {
		t.Errorf("unexpected metrics body: %s", rr.Body.String())
	}
}

// ─── POST /api/ask ────────────────────────────────────────────────────────────

func TestAsk_StreamsMarkdown(t *testing.T) {
	asker := &stubAsker{
		chunks: []string{"### Boston\n", "- **Flood:** Moderate"},
		phase:  orchestrator.PhaseCity,
	}
	deps := newTestServer(t, asker, stubPinger{})

	rr := doRequest(t, deps.handler, http.MethodPost, "/api/ask",
		map[string]string{"query": "  Flood risk in Boston?  "}, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Body.String(); got != "### Boston\n- **Flood:** Moderate" {
		t.Errorf("unexpected body %q", got)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("expected markdown content type, got %q", ct)
	}
	if got := rr.Header().Get("X-Ask-ID"); got != "6f1c2a9e-3b4d-4e5f-8a7b-1c2d3e4f5a6b" {
		t.Errorf("unexpected X-Ask-ID %q", got)
	}
	if got := rr.Header().Get("X-Query-Phase"); got != "city" {
		t.Errorf("unexpected X-Query-Phase %q", got)
	}
	if !rr.Flushed {
		t.Error("expected chunks to be flushed")
	}
	if len(asker.questions) != 1 || asker.questions[0] != "Flood risk in Boston?" {
		t.Errorf("expected trimmed question, got %v", asker.questions)
	}
	if !asker.stream.closed {
		t.Error("stream must be closed")
	}
}

func TestAsk_AppliesAskTimeout(t *testing.T) {
	asker := &stubAsker{chunks: []string{"ok"}}
	deps := newTestServer(t, asker, stubPinger{}, func(c *api.Config) {
		c.AskTimeout = time.Minute
	})

	before := time.Now()
	doRequest(t, deps.handler, http.MethodPost, "/api/ask", map[string]string{"query": "heat in Delhi"}, nil)

	if asker.deadline.IsZero() {
		t.Fatal("expected a deadline on the ask context")
	}
	if d := asker.deadline.Sub(before); d < 59*time.Second || d > 61*time.Second {
		t.Errorf("expected ~1m deadline, got %v", d)
	}
}

func TestAsk_EmptyQueryReturns400(t *testing.T) {
	asker := &stubAsker{}
	deps := newTestServer(t, asker, stubPinger{})

	rr := doRequest(t, deps.handler, http.MethodPost, "/api/ask", map[string]string{"query": "   "}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if msg := decodeError(t, rr); msg != "query is required" {
		t.Errorf("unexpected error %q", msg)
	}
	if len(asker.questions) != 0 {
		t.Error("asker must not be called")
	}
}

func TestAsk_OversizedQueryReturns400(t *testing.T) {
	deps := newTestServer(t, &stubAsker{}, stubPinger{})
	rr := doRequest(t, deps.handler, http.MethodPost, "/api/ask",
		map[string]string{"query": strings.Repeat("flood ", 50)}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestAsk_InvalidJSONReturns400(t *testing.T) {
	deps := newTestServer(t, &stubAsker{}, stubPinger{})
	req := httptest.NewRequest(http.MethodPost, "/api/ask", bytes.NewBufferString(`{bad json`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	deps.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestAsk_UnknownFieldsReturns400(t *testing.T) {
	// DisallowUnknownFields is set on the decoder.
	deps := newTestServer(t, &stubAsker{}, stubPinger{})
	rr := doRequest(t, deps.handler, http.MethodPost, "/api/ask",
		map[string]string{"query": "flood", "sql": "DROP TABLE x"}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAsk_UnavailableReturns503(t *testing.T) {
	asker := &stubAsker{err: fmt.Errorf("%w: model down", orchestrator.ErrUnavailable)}
	deps := newTestServer(t, asker, stubPinger{})

	rr := doRequest(t, deps.handler, http.MethodPost, "/api/ask", map[string]string{"query": "flood in Lagos"}, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if msg := decodeError(t, rr); strings.Contains(msg, "model down") {
		t.Errorf("internal error leaked: %q", msg)
	}
}

func TestAsk_UnexpectedErrorReturns500(t *testing.T) {
	asker := &stubAsker{err: errors.New("boom")}
	deps := newTestServer(t, asker, stubPinger{})

	rr := doRequest(t, deps.handler, http.MethodPost, "/api/ask", map[string]string{"query": "flood in Lagos"}, nil)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if msg := decodeError(t, rr); msg != "internal server error" {
		t.Errorf("unexpected error %q", msg)
	}
}

func TestAsk_StreamFailureAppendsNotice(t *testing.T) {
	st := &recordingStream{chunks: []string{"### Boston\n"}, failAt: errors.New("upstream reset")}
	asker := &stubAsker{stream: st, phase: orchestrator.PhaseCity}
	deps := newTestServer(t, asker, stubPinger{})

	rr := doRequest(t, deps.handler, http.MethodPost, "/api/ask", map[string]string{"query": "flood in Boston"}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.HasPrefix(body, "### Boston\n") || !strings.Contains(body, "interrupted") {
		t.Errorf("unexpected body %q", body)
	}
	if strings.Contains(body, "upstream reset") {
		t.Error("stream error text must not be returned")
	}
	if !st.closed {
		t.Error("stream must be closed")
	}
}

// ─── CORS ─────────────────────────────────────────────────────────────────────

func TestCORS_PreflightReturns204(t *testing.T) {
	deps := newTestServer(t, &stubAsker{}, stubPinger{})
	rr := doRequest(t, deps.handler, http.MethodOptions, "/api/ask", nil,
		map[string]string{"Origin": "http://localhost:3000"})

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("expected origin echoed in development, got %q", got)
	}
	if got := rr.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(got, "X-Ask-ID") {
		t.Errorf("X-Ask-ID must be exposed, got %q", got)
	}
}

func TestCORS_ProductionUsesWildcard(t *testing.T) {
	deps := newTestServer(t, &stubAsker{}, stubPinger{}, func(c *api.Config) {
		c.Env = "production"
	})
	rr := doRequest(t, deps.handler, http.MethodOptions, "/api/ask", nil,
		map[string]string{"Origin": "https://example.org"})
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected *, got %q", got)
	}
}
