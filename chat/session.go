package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/fbarrios/folio/chaterr"
	"github.com/fbarrios/folio/logger"
)

var (
	// ErrBusy is returned by Submit while a request is in flight.
	ErrBusy = errors.New("chat: a request is already in flight")
	// ErrEmptyInput is returned by Submit for blank text.
	ErrEmptyInput = errors.New("chat: message is empty")
	// ErrNoUserMessage is returned by RetryLast when there is nothing to retry.
	ErrNoUserMessage = errors.New("chat: no previous user message")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("chat: session closed")
)

// Stream yields the text chunks of one assistant reply.
type Stream interface {
	Next() bool
	Delta() string
	Err() error
	Close() error
}

// Transport carries one request to the relay. Cancelling ctx must make the
// returned stream stop.
type Transport interface {
	Open(ctx context.Context, history []Message) (Stream, error)
}

// Option configures a Session.
type Option func(*Session)

// WithIDGenerator replaces the UUID message id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Session) { s.newID = fn }
}

// WithUpdateHook registers fn to receive a snapshot after every state
// change. fn runs outside the session lock and may be called from the stream
// goroutine.
func WithUpdateHook(fn func(Snapshot)) Option {
	return func(s *Session) { s.onUpdate = fn }
}

// Session owns one conversation.
type Session struct {
	transport Transport
	newID     func() string
	onUpdate  func(Snapshot)

	mu           sync.Mutex
	messages     []Message
	feedback     map[string]Feedback
	status       Status
	lastErr      *chaterr.Details
	pendingClear bool
	// turn identifies the active request; chunks from any other turn are
	// dropped.
	turn      uint64
	replyIdx  int
	cancel    context.CancelFunc
	closed    bool
	baseCtx   context.Context
	closeBase context.CancelFunc

	wg sync.WaitGroup
}

// NewSession creates an empty session in the ready state.
func NewSession(t Transport, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		transport: t,
		newID:     uuid.NewString,
		feedback:  map[string]Feedback{},
		status:    StatusReady,
		replyIdx:  -1,
		baseCtx:   ctx,
		closeBase: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit appends a user message and starts a request for it. It is refused
// while another request is in flight; the error state accepts a new submit.
func (s *Session) Submit(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyInput
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.status.Busy() {
		s.mu.Unlock()
		return ErrBusy
	}

	s.messages = append(s.messages, Message{
		ID:    s.newID(),
		Role:  RoleUser,
		Parts: []Part{{Type: "text", Text: text}},
	})
	s.status = StatusSubmitted
	s.lastErr = nil
	s.pendingClear = false
	s.turn++
	s.replyIdx = -1
	turn := s.turn

	ctx, cancel := context.WithCancel(s.baseCtx)
	s.cancel = cancel
	history := s.copyMessagesLocked()
	s.wg.Add(1)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	go s.run(ctx, turn, history)
	return nil
}

func (s *Session) run(ctx context.Context, turn uint64, history []Message) {
	defer s.wg.Done()

	stream, err := s.transport.Open(ctx, history)
	if err != nil {
		s.finish(turn, err)
		return
	}
	defer stream.Close()

	for stream.Next() {
		if !s.appendChunk(turn, stream.Delta()) {
			return
		}
	}
	s.finish(turn, stream.Err())
}

// appendChunk adds text to the turn's assistant message, creating it on the
// first chunk. It returns false once the turn is no longer current.
func (s *Session) appendChunk(turn uint64, text string) bool {
	s.mu.Lock()
	if turn != s.turn || !s.status.Busy() {
		s.mu.Unlock()
		return false
	}
	if text == "" {
		s.mu.Unlock()
		return true
	}

	if s.replyIdx < 0 {
		s.messages = append(s.messages, Message{
			ID:    s.newID(),
			Role:  RoleAssistant,
			Parts: []Part{{Type: "text", Text: text}},
		})
		s.replyIdx = len(s.messages) - 1
		s.status = StatusStreaming
	} else {
		reply := &s.messages[s.replyIdx]
		reply.Parts[len(reply.Parts)-1].Text += text
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

func (s *Session) finish(turn uint64, err error) {
	s.mu.Lock()
	if turn != s.turn || !s.status.Busy() {
		s.mu.Unlock()
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if err != nil {
		details := chaterr.Describe(err)
		s.lastErr = &details
		s.status = StatusError
		logger.Warn("chat request failed", "kind", details.Kind.String(), "err", err)
	} else {
		s.status = StatusReady
	}
	s.replyIdx = -1
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Cancel stops a streaming reply. Text already received is kept and later
// chunks are discarded. It reports whether anything was cancelled.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	if s.status != StatusStreaming {
		s.mu.Unlock()
		return false
	}
	s.abortLocked()
	s.status = StatusReady
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// abortLocked invalidates the current turn and cancels its request.
func (s *Session) abortLocked() {
	s.turn++
	s.replyIdx = -1
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// RetryLast resubmits the text of the most recent user message as a new
// message.
func (s *Session) RetryLast() error {
	s.mu.Lock()
	text := ""
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == RoleUser {
			text = s.messages[i].Text()
			break
		}
	}
	s.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		return ErrNoUserMessage
	}
	return s.Submit(text)
}

// RequestClear asks for confirmation before clearing. It is a no-op on an
// empty conversation and reports whether confirmation is now pending.
func (s *Session) RequestClear() bool {
	s.mu.Lock()
	if len(s.messages) == 0 {
		s.mu.Unlock()
		return false
	}
	s.pendingClear = true
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// ConfirmClear empties the conversation and the feedback map. Without a
// pending RequestClear it does nothing.
func (s *Session) ConfirmClear() bool {
	s.mu.Lock()
	if !s.pendingClear {
		s.mu.Unlock()
		return false
	}
	if s.status.Busy() {
		s.abortLocked()
	}
	s.messages = nil
	s.feedback = map[string]Feedback{}
	s.status = StatusReady
	s.lastErr = nil
	s.pendingClear = false
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// CancelClear drops a pending clear request.
func (s *Session) CancelClear() {
	s.mu.Lock()
	if !s.pendingClear {
		s.mu.Unlock()
		return
	}
	s.pendingClear = false
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// SetFeedback toggles value on an assistant message: setting the value it
// already has resets it to none. It reports whether id named an assistant
// message.
func (s *Session) SetFeedback(id string, value Feedback) bool {
	s.mu.Lock()
	found := false
	for _, m := range s.messages {
		if m.ID == id && m.Role == RoleAssistant {
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return false
	}

	if value == FeedbackNone || s.feedback[id] == value {
		delete(s.feedback, id)
	} else {
		s.feedback[id] = value
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Wait blocks until no request goroutine is running.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close cancels any request and waits for its goroutine to exit.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.status.Busy() {
		s.abortLocked()
		s.status = StatusReady
	}
	s.mu.Unlock()

	s.closeBase()
	s.wg.Wait()
}

func (s *Session) copyMessagesLocked() []Message {
	out := make([]Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.clone()
	}
	return out
}

func (s *Session) snapshotLocked() Snapshot {
	fb := make(map[string]Feedback, len(s.feedback))
	for k, v := range s.feedback {
		fb[k] = v
	}
	snap := Snapshot{
		Status:       s.status,
		Messages:     s.copyMessagesLocked(),
		Feedback:     fb,
		PendingClear: s.pendingClear,
	}
	if s.lastErr != nil {
		e := *s.lastErr
		snap.Err = &e
	}
	return snap
}

func (s *Session) notify(snap Snapshot) {
	if s.onUpdate != nil {
		s.onUpdate(snap)
	}
}
