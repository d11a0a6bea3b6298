package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/fbarrios/folio/chaterr"
	"github.com/fbarrios/folio/provider"
)

// UIMessage is a chat message as sent by AI SDK style clients.
type UIMessage struct {
	ID    string   `json:"id,omitempty"`
	Role  string   `json:"role"`
	Parts []UIPart `json:"parts,omitempty"`
	// Content is accepted from clients that send plain {role, content}.
	Content string `json:"content,omitempty"`
}

// UIPart is one part of a UIMessage. Only text parts reach the upstream.
type UIPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type chatRequest struct {
	Messages []UIMessage `json:"messages"`
}

// toUpstreamMessages concatenates text parts per message, skips messages
// without text, and rejects unknown roles.
func toUpstreamMessages(in []UIMessage) ([]provider.Message, error) {
	out := make([]provider.Message, 0, len(in))
	for i, m := range in {
		switch m.Role {
		case "user", "assistant", "system":
		default:
			return nil, fmt.Errorf("message %d has unsupported role %q", i, m.Role)
		}

		var b strings.Builder
		for _, p := range m.Parts {
			if p.Type == "text" {
				b.WriteString(p.Text)
			}
		}
		text := b.String()
		if text == "" {
			text = m.Content
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, provider.Message{Role: m.Role, Content: text})
	}
	return out, nil
}

func (s *Server) configurationError() *chaterr.Error {
	env := s.opts.CredentialEnv
	if env == "" {
		env = "AI_GATEWAY_API_KEY"
	}
	return chaterr.New(chaterr.KindConfiguration,
		fmt.Sprintf("AI gateway credential is not configured. Set %s in the relay environment and restart it.", env))
}

// handleChat serves POST /api/chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.opts.Upstream == nil {
		rlog.Error("chat request rejected: upstream credential missing", "env", s.opts.CredentialEnv)
		writeFailure(w, s.configurationError())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFailure(w, chaterr.New(chaterr.KindTooLarge, fmt.Sprintf("Request body exceeds maximum size of %d bytes", s.opts.MaxBodyBytes)))
			return
		}
		writeFailure(w, chaterr.New(chaterr.KindValidation, "Invalid request: could not read body"))
		return
	}

	if !gjson.ValidBytes(body) || !gjson.GetBytes(body, "messages").IsArray() {
		writeError(w, http.StatusBadRequest, "Invalid request: messages array required", "Request body must be JSON with a messages array.")
		return
	}

	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request: messages array required", "Messages could not be decoded: "+err.Error())
		return
	}
	messages, err := toUpstreamMessages(req.Messages)
	if err != nil {
		writeFailure(w, chaterr.New(chaterr.KindValidation, "Invalid request: "+err.Error()))
		return
	}
	if len(messages) == 0 {
		writeFailure(w, chaterr.New(chaterr.KindValidation, "Invalid request: no message text"))
		return
	}

	if tokens := countTokens(s.opts.SystemPrompt, messages); tokens > s.opts.MaxInputTokens {
		writeFailure(w, chaterr.New(chaterr.KindValidation,
			fmt.Sprintf("Invalid request: conversation is too long (%d tokens, limit %d). Clear the chat and try again.", tokens, s.opts.MaxInputTokens)))
		return
	}

	rlog.Info(
		"chat relay request",
		"messages", len(messages),
		"provider", s.opts.Upstream.Name(),
		"model", s.opts.Upstream.Model(),
	)

	s.relayStream(r.Context(), w, messages)
}

// relayStream opens the upstream stream and waits for its first chunk before
// committing to a 200, so failures that happen before any text still map to
// a classified status.
func (s *Server) relayStream(ctx context.Context, w http.ResponseWriter, messages []provider.Message) {
	stream, err := s.opts.Upstream.Stream(ctx, &provider.Request{
		System:   s.opts.SystemPrompt,
		Messages: messages,
	})
	if err != nil {
		s.upstreamFailure(w, err)
		return
	}
	defer stream.Close()

	first := stream.Next()
	if !first {
		if err := stream.Err(); err != nil {
			s.upstreamFailure(w, err)
			return
		}
	}

	sw, ok := newUIStreamWriter(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Chat API Error", "Streaming not supported")
		return
	}
	sw.begin()
	if first {
		sw.delta(stream.Delta())
		for sw.err == nil && stream.Next() {
			sw.delta(stream.Delta())
		}
		if sw.err != nil {
			rlog.Warn("chat client went away mid-stream", "err", sw.err)
			return
		}
	}

	if err := stream.Err(); err != nil {
		if ctx.Err() != nil {
			return
		}
		ce := chaterr.Wrap(err)
		rlog.Error("upstream failed mid-stream", "kind", ce.Kind.String(), "err", err)
		sw.fail(ce.Message)
		return
	}
	sw.finish()
}

func (s *Server) upstreamFailure(w http.ResponseWriter, err error) {
	ce := chaterr.Wrap(err)
	rlog.Error("Chat API Error", "kind", ce.Kind.String(), "status", ce.Kind.Status(), "err", err)
	writeFailure(w, ce)
}
