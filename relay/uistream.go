package relay

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// UI message stream event types understood by AI SDK chat clients.
const (
	EventStart      = "start"
	EventStartStep  = "start-step"
	EventTextStart  = "text-start"
	EventTextDelta  = "text-delta"
	EventTextEnd    = "text-end"
	EventFinishStep = "finish-step"
	EventFinish     = "finish"
	EventError      = "error"

	// StreamDone terminates the event stream.
	StreamDone = "[DONE]"

	uiStreamHeader = "X-Vercel-AI-UI-Message-Stream"
)

// UIEvent is one data line of the UI message stream.
type UIEvent struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Delta     string `json:"delta,omitempty"`
	ErrorText string `json:"errorText,omitempty"`
}

// uiStreamWriter emits one assistant message as server-sent events, flushing
// after every event so the client renders incrementally.
type uiStreamWriter struct {
	w         http.ResponseWriter
	flusher   http.Flusher
	messageID string
	textID    string
	textOpen  bool
	err       error
}

func newUIStreamWriter(w http.ResponseWriter) (*uiStreamWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &uiStreamWriter{
		w:         w,
		flusher:   flusher,
		messageID: "msg-" + uuid.NewString(),
		textID:    "txt-" + uuid.NewString(),
	}, true
}

// begin writes the response headers and the opening events.
func (s *uiStreamWriter) begin() {
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set(uiStreamHeader, "v1")
	s.w.WriteHeader(http.StatusOK)

	s.send(UIEvent{Type: EventStart, MessageID: s.messageID})
	s.send(UIEvent{Type: EventStartStep})
}

func (s *uiStreamWriter) delta(text string) {
	if text == "" {
		return
	}
	if !s.textOpen {
		s.send(UIEvent{Type: EventTextStart, ID: s.textID})
		s.textOpen = true
	}
	s.send(UIEvent{Type: EventTextDelta, ID: s.textID, Delta: text})
}

func (s *uiStreamWriter) closeText() {
	if s.textOpen {
		s.send(UIEvent{Type: EventTextEnd, ID: s.textID})
		s.textOpen = false
	}
}

// finish closes the message normally.
func (s *uiStreamWriter) finish() {
	s.closeText()
	s.send(UIEvent{Type: EventFinishStep})
	s.send(UIEvent{Type: EventFinish})
	s.done()
}

// fail reports a mid-stream failure. Text already sent stays with the client.
func (s *uiStreamWriter) fail(message string) {
	s.closeText()
	s.send(UIEvent{Type: EventError, ErrorText: message})
	s.done()
}

func (s *uiStreamWriter) done() {
	s.writeLine(StreamDone)
}

func (s *uiStreamWriter) send(ev UIEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.err = err
		return
	}
	s.writeLine(string(data))
}

func (s *uiStreamWriter) writeLine(payload string) {
	if s.err != nil {
		return
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		s.err = err
		return
	}
	s.flusher.Flush()
}
