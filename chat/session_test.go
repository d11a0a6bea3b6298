package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/fbarrios/folio/chaterr"
)

var leakOpts = []goleak.Option{
	goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
	goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
}

// step is one scripted event of a fake stream: a chunk, or a terminal error.
type step struct {
	text string
	err  error
}

type scriptedStream struct {
	ctx    context.Context
	steps  chan step
	cur    string
	err    error
	closed bool
}

func (s *scriptedStream) Next() bool {
	select {
	case <-s.ctx.Done():
		s.err = s.ctx.Err()
		return false
	case st, ok := <-s.steps:
		if !ok {
			return false
		}
		if st.err != nil {
			s.err = st.err
			return false
		}
		s.cur = st.text
		return true
	}
}

func (s *scriptedStream) Delta() string { return s.cur }
func (s *scriptedStream) Err() error    { return s.err }
func (s *scriptedStream) Close() error  { s.closed = true; return nil }

type fakeTransport struct {
	mu       sync.Mutex
	openErr  error
	requests [][]Message
	opened   chan *scriptedStream
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{opened: make(chan *scriptedStream, 8)}
}

func (f *fakeTransport) Open(ctx context.Context, history []Message) (Stream, error) {
	f.mu.Lock()
	f.requests = append(f.requests, history)
	err := f.openErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	st := &scriptedStream{ctx: ctx, steps: make(chan step)}
	f.opened <- st
	return st, nil
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeTransport) lastRequest() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeTransport) next(t *testing.T) *scriptedStream {
	t.Helper()
	select {
	case st := <-f.opened:
		return st
	case <-time.After(2 * time.Second):
		t.Fatal("transport was not opened")
		return nil
	}
}

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("m%d", n)
	}
}

func waitFor(t *testing.T, s *Session, what string, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap := s.Snapshot()
		if cond(snap) {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s; last snapshot %+v", what, snap)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func statusIs(st Status) func(Snapshot) bool {
	return func(s Snapshot) bool { return s.Status == st }
}

func TestSubmitStreamsReply(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	tr := newFakeTransport()
	var (
		mu       sync.Mutex
		statuses []Status
	)
	s := NewSession(tr, WithIDGenerator(seqIDs()), WithUpdateHook(func(snap Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if len(statuses) == 0 || statuses[len(statuses)-1] != snap.Status {
			statuses = append(statuses, snap.Status)
		}
	}))
	defer s.Close()

	if err := s.Submit("  Who is Francisco Barrios?  "); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if got := s.Snapshot().Status; got != StatusSubmitted {
		t.Fatalf("status after submit = %s", got)
	}

	st := tr.next(t)
	st.steps <- step{text: "Francisco is "}
	st.steps <- step{text: "a software engineer."}
	close(st.steps)
	s.Wait()

	snap := s.Snapshot()
	want := []Message{
		{ID: "m1", Role: RoleUser, Parts: []Part{{Type: "text", Text: "Who is Francisco Barrios?"}}},
		{ID: "m2", Role: RoleAssistant, Parts: []Part{{Type: "text", Text: "Francisco is a software engineer."}}},
	}
	if diff := cmp.Diff(want, snap.Messages); diff != "" {
		t.Fatalf("messages (-want +got):\n%s", diff)
	}
	if snap.Status != StatusReady || snap.Err != nil {
		t.Fatalf("final snapshot = %+v", snap)
	}
	if !st.closed {
		t.Fatal("stream was not closed")
	}

	mu.Lock()
	defer mu.Unlock()
	wantStatuses := []Status{StatusSubmitted, StatusStreaming, StatusReady}
	if diff := cmp.Diff(wantStatuses, statuses); diff != "" {
		t.Fatalf("status transitions (-want +got):\n%s", diff)
	}
}

func TestSubmitRefusedWhileBusy(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	tr := newFakeTransport()
	s := NewSession(tr, WithIDGenerator(seqIDs()))
	defer s.Close()

	if err := s.Submit(""); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("Submit(\"\") error = %v", err)
	}
	if err := s.Submit("   \n"); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("Submit(blank) error = %v", err)
	}

	if err := s.Submit("first"); err != nil {
		t.Fatal(err)
	}
	st := tr.next(t)

	if err := s.Submit("second"); !errors.Is(err, ErrBusy) {
		t.Fatalf("Submit while submitted = %v, want ErrBusy", err)
	}
	st.steps <- step{text: "chunk"}
	waitFor(t, s, "streaming", statusIs(StatusStreaming))
	if err := s.Submit("third"); !errors.Is(err, ErrBusy) {
		t.Fatalf("Submit while streaming = %v, want ErrBusy", err)
	}

	if n := len(s.Snapshot().Messages); n != 2 {
		t.Fatalf("messages = %d, want 2", n)
	}
	if tr.calls() != 1 {
		t.Fatalf("transport calls = %d, want 1", tr.calls())
	}
	close(st.steps)
	s.Wait()
}

func TestCancelAfterTwoChunks(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	tr := newFakeTransport()
	s := NewSession(tr, WithIDGenerator(seqIDs()))
	defer s.Close()

	if s.Cancel() {
		t.Fatal("Cancel() on a ready session should do nothing")
	}
	if err := s.Submit("Tell me about Francisco"); err != nil {
		t.Fatal(err)
	}
	st := tr.next(t)
	if s.Cancel() {
		t.Fatal("Cancel() before the first chunk should do nothing")
	}

	st.steps <- step{text: "Hello"}
	st.steps <- step{text: ", world"}
	waitFor(t, s, "two chunks", func(snap Snapshot) bool {
		last, ok := snap.LastAssistant()
		return ok && last.Text() == "Hello, world"
	})

	if !s.Cancel() {
		t.Fatal("Cancel() while streaming = false")
	}
	if got := s.Snapshot().Status; got != StatusReady {
		t.Fatalf("status after cancel = %s", got)
	}

	// The reader may pick up this chunk before it sees cancellation; either
	// way it must not reach the message.
	select {
	case st.steps <- step{text: " LATE"}:
	case <-time.After(50 * time.Millisecond):
	}
	s.Wait()

	snap := s.Snapshot()
	last, _ := snap.LastAssistant()
	if last.Text() != "Hello, world" {
		t.Fatalf("assistant text = %q, want %q", last.Text(), "Hello, world")
	}
	if snap.Status != StatusReady || snap.Err != nil {
		t.Fatalf("snapshot after cancel = %+v", snap)
	}
	if len(snap.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(snap.Messages))
	}
}

func TestErrorKeepsPartialText(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	tr := newFakeTransport()
	s := NewSession(tr, WithIDGenerator(seqIDs()))
	defer s.Close()

	if err := s.Submit("hi"); err != nil {
		t.Fatal(err)
	}
	st := tr.next(t)
	st.steps <- step{text: "partial"}
	st.steps <- step{err: errors.New(chaterr.MsgRateLimit)}
	s.Wait()

	snap := s.Snapshot()
	if snap.Status != StatusError || snap.Err == nil {
		t.Fatalf("snapshot = %+v, want error status", snap)
	}
	if snap.Err.Title != "Rate Limit Exceeded" || snap.Err.Suggestion != "Wait a minute and retry" {
		t.Fatalf("details = %+v", *snap.Err)
	}
	if last, _ := snap.LastAssistant(); last.Text() != "partial" {
		t.Fatalf("partial text lost: %q", last.Text())
	}
	if ConnectionLabel(snap.Status) != "Offline" {
		t.Fatalf("label = %q", ConnectionLabel(snap.Status))
	}
}

func TestOpenErrorClassified(t *testing.T) {
	cases := []struct {
		err   error
		title string
	}{
		{&RelayError{Status: 401, Code: "Chat API Error", Message: chaterr.MsgAuth}, "Authentication Error"},
		{&RelayError{Status: 503, Message: chaterr.MsgUnavailable}, "Connection Error"},
		{&RelayError{Status: 504, Message: chaterr.MsgTimeout}, "Request Timeout"},
		{&RelayError{Status: 500, Code: "Configuration error", Message: "AI gateway credential is not configured."}, "Configuration Error"},
		{&RelayError{Status: 500}, "Server Error"},
		{&RelayError{Status: 500, Message: "model exploded"}, "Error"},
		{errors.New("dial tcp 127.0.0.1:3000: connect: connection refused"), "Connection Error"},
	}
	for _, tc := range cases {
		t.Run(tc.title, func(t *testing.T) {
			tr := newFakeTransport()
			tr.openErr = tc.err
			s := NewSession(tr)
			defer s.Close()

			if err := s.Submit("hi"); err != nil {
				t.Fatal(err)
			}
			s.Wait()
			snap := s.Snapshot()
			if snap.Status != StatusError || snap.Err == nil || snap.Err.Title != tc.title {
				t.Fatalf("snapshot = %+v, want title %q", snap, tc.title)
			}
		})
	}
}

func TestRetryLast(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	tr := newFakeTransport()
	tr.openErr = errors.New("network down")
	s := NewSession(tr, WithIDGenerator(seqIDs()))
	defer s.Close()

	if err := s.RetryLast(); !errors.Is(err, ErrNoUserMessage) {
		t.Fatalf("RetryLast() on empty session = %v", err)
	}
	if tr.calls() != 0 {
		t.Fatal("RetryLast() without history must not call the transport")
	}

	if err := s.Submit("Who is Francisco Barrios?"); err != nil {
		t.Fatal(err)
	}
	s.Wait()
	if s.Snapshot().Status != StatusError {
		t.Fatal("expected error status")
	}

	tr.mu.Lock()
	tr.openErr = nil
	tr.mu.Unlock()

	if err := s.RetryLast(); err != nil {
		t.Fatalf("RetryLast() error = %v", err)
	}
	st := tr.next(t)
	st.steps <- step{text: "He is an engineer."}
	close(st.steps)
	s.Wait()

	snap := s.Snapshot()
	want := []Message{
		{ID: "m1", Role: RoleUser, Parts: []Part{{Type: "text", Text: "Who is Francisco Barrios?"}}},
		{ID: "m2", Role: RoleUser, Parts: []Part{{Type: "text", Text: "Who is Francisco Barrios?"}}},
		{ID: "m3", Role: RoleAssistant, Parts: []Part{{Type: "text", Text: "He is an engineer."}}},
	}
	if diff := cmp.Diff(want, snap.Messages); diff != "" {
		t.Fatalf("messages (-want +got):\n%s", diff)
	}
	if n := len(tr.lastRequest()); n != 2 {
		t.Fatalf("retry request carried %d messages, want 2", n)
	}
}

func TestClearNeedsConfirmation(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	tr := newFakeTransport()
	s := NewSession(tr, WithIDGenerator(seqIDs()))
	defer s.Close()

	if s.RequestClear() {
		t.Fatal("RequestClear() on an empty conversation should be a no-op")
	}

	if err := s.Submit("hello"); err != nil {
		t.Fatal(err)
	}
	st := tr.next(t)
	st.steps <- step{text: "hi there"}
	close(st.steps)
	s.Wait()

	reply, _ := s.Snapshot().LastAssistant()
	s.SetFeedback(reply.ID, FeedbackUp)

	if s.ConfirmClear() {
		t.Fatal("ConfirmClear() without RequestClear() must not clear")
	}
	if !s.RequestClear() || !s.Snapshot().PendingClear {
		t.Fatal("RequestClear() should set the pending flag")
	}
	s.CancelClear()
	snap := s.Snapshot()
	if snap.PendingClear || len(snap.Messages) != 2 || len(snap.Feedback) != 1 {
		t.Fatalf("CancelClear() mutated state: %+v", snap)
	}

	s.RequestClear()
	if !s.ConfirmClear() {
		t.Fatal("ConfirmClear() = false")
	}
	snap = s.Snapshot()
	if len(snap.Messages) != 0 || len(snap.Feedback) != 0 || snap.PendingClear {
		t.Fatalf("after clear: %+v", snap)
	}

	if err := s.Submit("fresh start"); err != nil {
		t.Fatal(err)
	}
	st = tr.next(t)
	close(st.steps)
	s.Wait()
	snap = s.Snapshot()
	if len(snap.Messages) != 1 || snap.Messages[0].Text() != "fresh start" {
		t.Fatalf("fresh sequence = %+v", snap.Messages)
	}
	if n := len(tr.lastRequest()); n != 1 {
		t.Fatalf("request after clear carried %d messages", n)
	}
}

func TestClearDuringStreamAborts(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	tr := newFakeTransport()
	s := NewSession(tr)
	defer s.Close()

	if err := s.Submit("hello"); err != nil {
		t.Fatal(err)
	}
	st := tr.next(t)
	st.steps <- step{text: "streaming"}
	waitFor(t, s, "streaming", statusIs(StatusStreaming))

	s.RequestClear()
	s.ConfirmClear()
	s.Wait()

	snap := s.Snapshot()
	if len(snap.Messages) != 0 || snap.Status != StatusReady {
		t.Fatalf("after clear: %+v", snap)
	}
}

func TestSetFeedbackToggles(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	tr := newFakeTransport()
	s := NewSession(tr, WithIDGenerator(seqIDs()))
	defer s.Close()

	s.Submit("q1")
	st := tr.next(t)
	st.steps <- step{text: "a1"}
	close(st.steps)
	s.Wait()
	s.Submit("q2")
	st = tr.next(t)
	st.steps <- step{text: "a2"}
	close(st.steps)
	s.Wait()

	// m1 q1, m2 a1, m3 q2, m4 a2
	before := s.Snapshot().Messages

	if s.SetFeedback("m1", FeedbackUp) {
		t.Fatal("feedback on a user message should be refused")
	}
	if s.SetFeedback("nope", FeedbackUp) {
		t.Fatal("feedback on an unknown id should be refused")
	}

	steps := []struct {
		id   string
		v    Feedback
		want map[string]Feedback
	}{
		{"m2", FeedbackUp, map[string]Feedback{"m2": FeedbackUp}},
		{"m4", FeedbackDown, map[string]Feedback{"m2": FeedbackUp, "m4": FeedbackDown}},
		{"m2", FeedbackUp, map[string]Feedback{"m4": FeedbackDown}},
		{"m4", FeedbackUp, map[string]Feedback{"m4": FeedbackUp}},
		{"m4", FeedbackNone, map[string]Feedback{}},
	}
	for i, tc := range steps {
		if !s.SetFeedback(tc.id, tc.v) {
			t.Fatalf("step %d: SetFeedback(%s, %s) = false", i, tc.id, tc.v)
		}
		if diff := cmp.Diff(tc.want, s.Snapshot().Feedback); diff != "" {
			t.Fatalf("step %d feedback (-want +got):\n%s", i, diff)
		}
	}

	if diff := cmp.Diff(before, s.Snapshot().Messages); diff != "" {
		t.Fatalf("feedback changed messages (-want +got):\n%s", diff)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	tr := newFakeTransport()
	s := NewSession(tr, WithIDGenerator(seqIDs()))
	defer s.Close()

	s.Submit("hello")
	st := tr.next(t)
	close(st.steps)
	s.Wait()

	snap := s.Snapshot()
	snap.Messages[0].Parts[0].Text = "mutated"
	snap.Feedback["x"] = FeedbackUp
	again := s.Snapshot()
	if again.Messages[0].Text() != "hello" || len(again.Feedback) != 0 {
		t.Fatalf("snapshot aliases session state: %+v", again)
	}
}

func TestCloseStopsStream(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	tr := newFakeTransport()
	s := NewSession(tr)
	s.Submit("hello")
	tr.next(t)
	s.Close()

	if err := s.Submit("again"); !errors.Is(err, ErrClosed) {
		t.Fatalf("Submit after Close = %v", err)
	}
}

func TestConnectionLabel(t *testing.T) {
	cases := map[Status]string{
		StatusReady:     "Online",
		StatusSubmitted: "Sending",
		StatusStreaming: "Receiving",
		StatusError:     "Offline",
	}
	for st, want := range cases {
		if got := ConnectionLabel(st); got != want {
			t.Errorf("ConnectionLabel(%s) = %q, want %q", st, got, want)
		}
	}
	if len(HelpOptions) != 5 || HelpOptions[0] != "Who is Francisco Barrios?" {
		t.Fatalf("HelpOptions = %v", HelpOptions)
	}
}
