// Package chaterr classifies chat failures into a small set of kinds shared by
// the relay (which maps them to HTTP statuses) and the chat client (which maps
// them to user-facing titles and suggestions).
package chaterr

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strings"
	"syscall"
)

// Kind is a coarse failure category.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindValidation
	KindMethodNotAllowed
	KindTooLarge
	KindAuth
	KindRateLimit
	KindUnavailable
	KindTimeout
	KindServer
)

var kindNames = map[Kind]string{
	KindUnknown:          "unknown",
	KindConfiguration:    "configuration",
	KindValidation:       "validation",
	KindMethodNotAllowed: "method_not_allowed",
	KindTooLarge:         "too_large",
	KindAuth:             "auth",
	KindRateLimit:        "rate_limit",
	KindUnavailable:      "unavailable",
	KindTimeout:          "timeout",
	KindServer:           "server",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Status returns the HTTP status the relay answers with for this kind.
func (k Kind) Status() int {
	switch k {
	case KindConfiguration:
		return http.StatusInternalServerError
	case KindValidation:
		return http.StatusBadRequest
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindAuth:
		return http.StatusUnauthorized
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// New creates a classified error with a user-facing message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies err and attaches the relay message for its kind.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	kind := Classify(err)
	return &Error{Kind: kind, Message: RelayMessage(kind, err.Error()), Err: err}
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// statusCoder is implemented by errors that carry an upstream HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

// Classify inspects err structurally (HTTP status, deadline, network errors)
// and falls back to keyword matching on its text.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if k, ok := classifyStructured(err); ok {
		return k
	}
	return ClassifyText(err.Error())
}

func classifyStructured(err error) (Kind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		if k, ok := KindForStatus(sc.HTTPStatus()); ok {
			return k, true
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout, true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return KindUnavailable, true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindUnavailable, true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return KindUnavailable, true
	}
	return KindUnknown, false
}

// KindForStatus maps an HTTP status code to a kind. Statuses without a
// dedicated kind report false.
func KindForStatus(status int) (Kind, bool) {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth, true
	case http.StatusTooManyRequests:
		return KindRateLimit, true
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return KindUnavailable, true
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return KindTimeout, true
	case http.StatusMethodNotAllowed:
		return KindMethodNotAllowed, true
	case http.StatusRequestEntityTooLarge:
		return KindTooLarge, true
	}
	return KindUnknown, false
}

type family struct {
	kind     Kind
	keywords []string
	codes    *regexp.Regexp
}

// families are checked in order; the first match wins.
var families = []family{
	{
		kind:     KindConfiguration,
		keywords: []string{"not configured", "configuration error", "configuration missing"},
	},
	{
		kind:     KindAuth,
		keywords: []string{"api key", "apikey", "authentication", "unauthorized", "forbidden"},
		codes:    regexp.MustCompile(`\b(401|403)\b`),
	},
	{
		kind:     KindUnavailable,
		keywords: []string{"network", "econnrefused", "connection refused", "fetch", "unable to connect", "no such host", "service unavailable"},
		codes:    regexp.MustCompile(`\b(502|503)\b`),
	},
	{
		kind:     KindRateLimit,
		keywords: []string{"rate limit", "ratelimit", "quota", "too many requests"},
		codes:    regexp.MustCompile(`\b429\b`),
	},
	{
		kind:     KindTimeout,
		keywords: []string{"timeout", "timed out", "deadline exceeded"},
		codes:    regexp.MustCompile(`\b504\b`),
	},
	{
		kind:     KindServer,
		keywords: []string{"internal server error", "server error"},
		codes:    regexp.MustCompile(`\b500\b`),
	},
}

// ClassifyText matches lowercased text against the keyword families.
func ClassifyText(text string) Kind {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return KindUnknown
	}
	for _, f := range families {
		for _, kw := range f.keywords {
			if strings.Contains(lower, kw) {
				return f.kind
			}
		}
		if f.codes != nil && f.codes.MatchString(lower) {
			return f.kind
		}
	}
	return KindUnknown
}
