// Package chat implements the client side of a conversation with the chat
// relay: an ordered message history, a request status state machine,
// cancellation, retry of the last question, feedback, and a guarded clear.
package chat

import (
	"strings"

	"github.com/fbarrios/folio/chaterr"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Part is one piece of message content. Only text parts exist today.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Message is one entry of the conversation. ID is unique and stable for the
// life of the session.
type Message struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// Text concatenates the message's text parts.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == "text" {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

func (m Message) clone() Message {
	m.Parts = append([]Part(nil), m.Parts...)
	return m
}

// Status is the request state of a session.
type Status string

const (
	StatusReady     Status = "ready"
	StatusSubmitted Status = "submitted"
	StatusStreaming Status = "streaming"
	StatusError     Status = "error"
)

// Busy reports whether a request is in flight.
func (s Status) Busy() bool {
	return s == StatusSubmitted || s == StatusStreaming
}

// Feedback is a reader's rating of an assistant reply.
type Feedback int

const (
	FeedbackNone Feedback = iota
	FeedbackUp
	FeedbackDown
)

func (f Feedback) String() string {
	switch f {
	case FeedbackUp:
		return "up"
	case FeedbackDown:
		return "down"
	default:
		return "none"
	}
}

// Snapshot is a read-only copy of session state.
type Snapshot struct {
	Status       Status
	Messages     []Message
	Feedback     map[string]Feedback
	Err          *chaterr.Details
	PendingClear bool
}

// LastAssistant returns the most recent assistant message, if any.
func (s Snapshot) LastAssistant() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// HelpOptions are the suggested first questions.
var HelpOptions = []string{
	"Who is Francisco Barrios?",
	"Why should I hire Francisco?",
	"What are Francisco's technical skills?",
	"What projects has Francisco worked on?",
	"Is Francisco available for hire?",
}

// ConnectionLabel is the short indicator shown next to the chat title.
func ConnectionLabel(s Status) string {
	switch s {
	case StatusError:
		return "Offline"
	case StatusStreaming:
		return "Receiving"
	case StatusSubmitted:
		return "Sending"
	default:
		return "Online"
	}
}
