package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const maxErrorBody = 64 << 10

// RelayError is a non-2xx answer from the relay.
type RelayError struct {
	Status  int
	Code    string // the body's "error" label
	Message string // the body's "message"
}

func (e *RelayError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("chat relay returned %d %s", e.Status, http.StatusText(e.Status))
}

// HTTPStatus exposes the relay status to error classification.
func (e *RelayError) HTTPStatus() int {
	return e.Status
}

// HTTPTransport posts the conversation to a relay's /api/chat and decodes the
// UI message event stream.
type HTTPTransport struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPTransport returns a transport for the relay at baseURL. A zero
// timeout leaves requests bounded only by their context.
func NewHTTPTransport(baseURL string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		endpoint:   strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/api/chat",
		httpClient: &http.Client{Timeout: timeout},
	}
}

type wireRequest struct {
	Messages []Message `json:"messages"`
}

// Open implements Transport.
func (t *HTTPTransport) Open(ctx context.Context, history []Message) (Stream, error) {
	body, err := json.Marshal(wireRequest{Messages: history})
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat relay request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, decodeRelayError(resp.StatusCode, data)
	}
	return newEventStream(resp.Body), nil
}

func decodeRelayError(status int, data []byte) *RelayError {
	e := &RelayError{Status: status}
	if gjson.ValidBytes(data) {
		doc := gjson.ParseBytes(data)
		e.Code = doc.Get("error").String()
		e.Message = doc.Get("message").String()
		if e.Message == "" {
			e.Message = doc.Get("details").String()
		}
		return e
	}
	e.Message = strings.TrimSpace(string(data))
	return e
}

// eventStream decodes "data: {json}" lines into text deltas.
type eventStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	delta   string
	err     error
	done    bool
}

func newEventStream(body io.ReadCloser) *eventStream {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	return &eventStream{body: body, scanner: sc}
}

func (s *eventStream) Next() bool {
	for !s.done && s.scanner.Scan() {
		line := s.scanner.Text()
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "[DONE]" {
			s.done = true
			break
		}
		ev := gjson.Parse(payload)
		switch ev.Get("type").String() {
		case "text-delta":
			if d := ev.Get("delta").String(); d != "" {
				s.delta = d
				return true
			}
		case "error":
			s.err = errors.New(ev.Get("errorText").String())
			s.done = true
			return false
		}
	}
	if !s.done {
		if err := s.scanner.Err(); err != nil {
			s.err = fmt.Errorf("chat stream interrupted: %w", err)
		} else {
			s.err = errors.New("chat stream ended unexpectedly")
		}
		s.done = true
	}
	return false
}

func (s *eventStream) Delta() string { return s.delta }
func (s *eventStream) Err() error    { return s.err }
func (s *eventStream) Close() error  { return s.body.Close() }
