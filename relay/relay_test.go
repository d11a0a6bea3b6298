package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/fbarrios/folio/chaterr"
	"github.com/fbarrios/folio/provider"
)

type fakeProvider struct {
	chunks    []string
	openErr   error
	streamErr error
	lastReq   *provider.Request
	calls     int
	last      *fakeStream
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-model" }

func (f *fakeProvider) Stream(_ context.Context, req *provider.Request) (provider.Stream, error) {
	f.calls++
	f.lastReq = req
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.last = &fakeStream{chunks: append([]string(nil), f.chunks...), err: f.streamErr}
	return f.last, nil
}

type fakeStream struct {
	chunks []string
	cur    string
	err    error
	closed bool
}

func (s *fakeStream) Next() bool {
	if len(s.chunks) == 0 {
		return false
	}
	s.cur, s.chunks = s.chunks[0], s.chunks[1:]
	return true
}

func (s *fakeStream) Delta() string { return s.cur }
func (s *fakeStream) Err() error {
	if len(s.chunks) > 0 {
		return nil
	}
	return s.err
}
func (s *fakeStream) Close() error { s.closed = true; return nil }

func newTestServer(up provider.Provider, mutate ...func(*Options)) *Server {
	opts := Options{CredentialEnv: "AI_GATEWAY_API_KEY", RatePerMinute: 1000, RateBurst: 1000}
	if up != nil {
		opts.Upstream = up
	}
	for _, m := range mutate {
		m(&opts)
	}
	return New(opts)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://fbarrios.dev")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %q (%v)", rec.Body.String(), err)
	}
	return body
}

func parseEvents(t *testing.T, body string) ([]UIEvent, bool) {
	t.Helper()
	var events []UIEvent
	done := false
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == StreamDone {
			done = true
			continue
		}
		var ev UIEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			t.Fatalf("bad event %q: %v", payload, err)
		}
		events = append(events, ev)
	}
	return events, done
}

func eventTypes(events []UIEvent) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

const validBody = `{"messages":[{"id":"1","role":"user","parts":[{"type":"text","text":"Who is Francisco Barrios?"}]}]}`

func TestPreflight(t *testing.T) {
	s := newTestServer(&fakeProvider{})
	for _, path := range []string{"/api/chat", "/api/projects"} {
		rec := do(t, s, http.MethodOptions, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("OPTIONS %s = %d, want 200", path, rec.Code)
		}
		if rec.Body.Len() != 0 {
			t.Fatalf("OPTIONS %s body = %q, want empty", path, rec.Body.String())
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Fatalf("Allow-Origin = %q", got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
			t.Fatalf("Allow-Methods = %q", got)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	up := &fakeProvider{}
	s := newTestServer(up)
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		rec := do(t, s, method, "/api/chat", validBody)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s /api/chat = %d, want 405", method, rec.Code)
		}
		if got := decodeError(t, rec).Error; got != "Method not allowed" {
			t.Fatalf("error = %q", got)
		}
	}
	if up.calls != 0 {
		t.Fatalf("upstream called %d times", up.calls)
	}
}

func TestMissingCredential(t *testing.T) {
	s := newTestServer(nil)
	for _, body := range []string{validBody, `{}`, `garbage`, ``} {
		rec := do(t, s, http.MethodPost, "/api/chat", body)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("POST %q = %d, want 500", body, rec.Code)
		}
		eb := decodeError(t, rec)
		if eb.Error != "Configuration error" || !strings.Contains(eb.Message, "AI_GATEWAY_API_KEY") {
			t.Fatalf("unexpected body: %+v", eb)
		}
		if chaterr.ClassifyText(eb.Message) != chaterr.KindConfiguration {
			t.Fatalf("message %q should classify as configuration", eb.Message)
		}
	}
}

func TestInvalidBodies(t *testing.T) {
	up := &fakeProvider{chunks: []string{"x"}}
	s := newTestServer(up)
	bodies := []string{
		`{}`,
		`{"messages":"hello"}`,
		`{"messages":null}`,
		`{"messages":{"role":"user"}}`,
		`not json`,
		``,
		`{"messages":[{"role":"robot","parts":[{"type":"text","text":"hi"}]}]}`,
		`{"messages":[]}`,
		`{"messages":[{"role":"user","parts":[]}]}`,
	}
	for _, body := range bodies {
		rec := do(t, s, http.MethodPost, "/api/chat", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("POST %q = %d, want 400", body, rec.Code)
		}
	}
	if up.calls != 0 {
		t.Fatalf("upstream called %d times for invalid bodies", up.calls)
	}
}

func TestStreamSuccess(t *testing.T) {
	up := &fakeProvider{chunks: []string{"Francisco ", "is an engineer."}}
	s := newTestServer(up)

	rec := do(t, s, http.MethodPost, "/api/chat", validBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("X-Vercel-AI-UI-Message-Stream"); got != "v1" {
		t.Fatalf("stream header = %q", got)
	}

	events, done := parseEvents(t, rec.Body.String())
	if !done {
		t.Fatal("missing [DONE]")
	}
	want := []string{"start", "start-step", "text-start", "text-delta", "text-delta", "text-end", "finish-step", "finish"}
	if diff := cmp.Diff(want, eventTypes(events)); diff != "" {
		t.Fatalf("event types (-want +got):\n%s", diff)
	}
	if events[3].Delta+events[4].Delta != "Francisco is an engineer." {
		t.Fatalf("deltas = %q + %q", events[3].Delta, events[4].Delta)
	}
	if events[2].ID == "" || events[3].ID != events[2].ID {
		t.Fatal("text events must share one id")
	}

	if up.lastReq.System != DefaultSystemPrompt() {
		t.Fatal("system prompt not forwarded")
	}
	wantMsgs := []provider.Message{{Role: "user", Content: "Who is Francisco Barrios?"}}
	if diff := cmp.Diff(wantMsgs, up.lastReq.Messages); diff != "" {
		t.Fatalf("messages (-want +got):\n%s", diff)
	}
}

func TestUpstreamErrorsBeforeFirstChunk(t *testing.T) {
	cases := []struct {
		name    string
		up      *fakeProvider
		status  int
		message string
	}{
		{"auth text", &fakeProvider{openErr: errors.New("Invalid API key")}, 401, chaterr.MsgAuth},
		{"auth status", &fakeProvider{streamErr: &provider.Error{Provider: "gateway", Status: 401, Err: errors.New("nope")}}, 401, chaterr.MsgAuth},
		{"network", &fakeProvider{streamErr: errors.New("connect ECONNREFUSED 127.0.0.1:443")}, 503, chaterr.MsgUnavailable},
		{"rate limit", &fakeProvider{streamErr: errors.New("Rate limit reached")}, 429, chaterr.MsgRateLimit},
		{"quota", &fakeProvider{openErr: errors.New("quota exhausted")}, 429, chaterr.MsgRateLimit},
		{"timeout", &fakeProvider{streamErr: context.DeadlineExceeded}, 504, chaterr.MsgTimeout},
		{"unknown", &fakeProvider{streamErr: errors.New("model exploded")}, 500, "model exploded"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, newTestServer(tc.up), http.MethodPost, "/api/chat", validBody)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.status, rec.Body.String())
			}
			if got := decodeError(t, rec).Message; got != tc.message {
				t.Fatalf("message = %q, want %q", got, tc.message)
			}
		})
	}
}

func TestUpstreamErrorMidStream(t *testing.T) {
	up := &fakeProvider{chunks: []string{"partial"}, streamErr: errors.New("Rate limit reached")}
	rec := do(t, newTestServer(up), http.MethodPost, "/api/chat", validBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	events, done := parseEvents(t, rec.Body.String())
	if !done {
		t.Fatal("missing [DONE]")
	}
	want := []string{"start", "start-step", "text-start", "text-delta", "text-end", "error"}
	if diff := cmp.Diff(want, eventTypes(events)); diff != "" {
		t.Fatalf("event types (-want +got):\n%s", diff)
	}
	if last := events[len(events)-1]; last.ErrorText != chaterr.MsgRateLimit {
		t.Fatalf("errorText = %q", last.ErrorText)
	}
}

func TestBodyTooLarge(t *testing.T) {
	s := newTestServer(&fakeProvider{}, func(o *Options) { o.MaxBodyBytes = 32 })
	rec := do(t, s, http.MethodPost, "/api/chat", validBody)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

func TestInputTokenLimit(t *testing.T) {
	up := &fakeProvider{chunks: []string{"x"}}
	s := newTestServer(up, func(o *Options) {
		o.SystemPrompt = "short"
		o.MaxInputTokens = 20
	})
	long := strings.Repeat("Francisco builds resilient systems. ", 40)
	body := `{"messages":[{"role":"user","parts":[{"type":"text","text":"` + long + `"}]}]}`
	rec := do(t, s, http.MethodPost, "/api/chat", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if up.calls != 0 {
		t.Fatal("upstream should not be called over the token budget")
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(&fakeProvider{chunks: []string{"ok"}}, func(o *Options) {
		o.RatePerMinute = 1
		o.RateBurst = 1
	})
	if rec := do(t, s, http.MethodPost, "/api/chat", validBody); rec.Code != http.StatusOK {
		t.Fatalf("first request = %d", rec.Code)
	}
	rec := do(t, s, http.MethodPost, "/api/chat", validBody)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d, want 429", rec.Code)
	}
	if chaterr.ClassifyText(decodeError(t, rec).Message) != chaterr.KindRateLimit {
		t.Fatal("429 body should classify as rate limit")
	}
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(&fakeProvider{}), http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["aiGatewayConfigured"] != true || body["model"] != "fake-model" {
		t.Fatalf("unexpected health: %v", body)
	}

	rec = do(t, newTestServer(nil), http.MethodGet, "/api/health", "")
	if !strings.Contains(rec.Body.String(), `"aiGatewayConfigured":false`) {
		t.Fatalf("degraded health = %s", rec.Body.String())
	}
}

func TestProjectsRouteMounted(t *testing.T) {
	projects := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	s := newTestServer(&fakeProvider{}, func(o *Options) { o.Projects = projects })
	if rec := do(t, s, http.MethodGet, "/api/projects", ""); rec.Code != http.StatusOK || rec.Body.String() != "[]" {
		t.Fatalf("GET /api/projects = %d %q", rec.Code, rec.Body.String())
	}
	if rec := do(t, s, http.MethodPost, "/api/projects", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /api/projects = %d, want 405", rec.Code)
	}
}

func TestToUpstreamMessages(t *testing.T) {
	in := []UIMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Parts: []UIPart{{Type: "text", Text: "Hi "}, {Type: "image", Text: "ignored"}, {Type: "text", Text: "there"}}},
		{Role: "assistant", Parts: []UIPart{{Type: "text", Text: "   "}}},
	}
	got, err := toUpstreamMessages(in)
	if err != nil {
		t.Fatalf("toUpstreamMessages() error = %v", err)
	}
	want := []provider.Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "Hi there"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("toUpstreamMessages() (-want +got):\n%s", diff)
	}
}

func TestCORSAllowList(t *testing.T) {
	s := newTestServer(&fakeProvider{}, func(o *Options) {
		o.CORS = &CORSConfig{
			AllowedOrigins: []string{"*.fbarrios.dev"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
		}
	})
	rec := do(t, s, http.MethodOptions, "/api/chat", "")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("bare domain should not match subdomain rule, got %q", got)
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://www.fbarrios.dev")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://www.fbarrios.dev" {
		t.Fatalf("Allow-Origin = %q", got)
	}
}

// brokenWriter fails every write after the first n.
type brokenWriter struct {
	*httptest.ResponseRecorder
	n int
}

func (w *brokenWriter) Write(b []byte) (int, error) {
	if w.n <= 0 {
		return 0, errors.New("broken pipe")
	}
	w.n--
	return w.ResponseRecorder.Write(b)
}

func TestClientGoneStopsReadingUpstream(t *testing.T) {
	up := &fakeProvider{chunks: []string{"a", "b", "c", "d", "e"}}
	s := newTestServer(up)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(validBody))
	req.Header.Set("Content-Type", "application/json")
	// start and start-step go through; text-start for the first delta fails.
	w := &brokenWriter{ResponseRecorder: httptest.NewRecorder(), n: 2}
	s.Handler().ServeHTTP(w, req)

	if up.last == nil {
		t.Fatal("upstream not opened")
	}
	if got := len(up.last.chunks); got != 4 {
		t.Fatalf("upstream chunks left = %d, want 4 (only the first read)", got)
	}
	if !up.last.closed {
		t.Fatal("upstream stream not closed")
	}
}

func TestRecoveryAbortsStartedStream(t *testing.T) {
	h := RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("data: {\"type\":\"start\"}\n\n"))
		panic("boom")
	}))
	rec := httptest.NewRecorder()

	defer func() {
		if got := recover(); got != http.ErrAbortHandler {
			t.Fatalf("recovered %v, want http.ErrAbortHandler", got)
		}
		if strings.Contains(rec.Body.String(), "Internal Server Error") {
			t.Fatalf("JSON error written into stream: %q", rec.Body.String())
		}
	}()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", nil))
}

func TestRecoveryWritesErrorBeforeHeaders(t *testing.T) {
	h := RecoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
