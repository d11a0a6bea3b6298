package chaterr

import (
	"errors"
	"strings"
)

// Relay-side messages. Each one contains a keyword of its own family so a
// client classifying the text lands on the same kind.
const (
	MsgAuth        = "Upstream authentication failed: the AI gateway API key is invalid or missing."
	MsgUnavailable = "Unable to connect to the AI gateway (network error). Please try again shortly."
	MsgRateLimit   = "AI gateway rate limit exceeded. Please try again in a moment."
	MsgTimeout     = "The AI gateway request timed out. Please try again."
	MsgUnknown     = "Unknown error occurred"
)

// RelayMessage returns the message the relay reports for kind. Kinds without
// a fixed message pass raw through.
func RelayMessage(kind Kind, raw string) string {
	switch kind {
	case KindAuth:
		return MsgAuth
	case KindUnavailable:
		return MsgUnavailable
	case KindRateLimit:
		return MsgRateLimit
	case KindTimeout:
		return MsgTimeout
	}
	if strings.TrimSpace(raw) == "" {
		return MsgUnknown
	}
	return raw
}

// Label is the short "error" field of the relay's JSON error body.
func Label(kind Kind) string {
	switch kind {
	case KindConfiguration:
		return "Configuration error"
	case KindValidation:
		return "Invalid request"
	case KindMethodNotAllowed:
		return "Method not allowed"
	case KindTooLarge:
		return "Request too large"
	case KindRateLimit:
		return "Rate limit exceeded"
	default:
		return "Chat API Error"
	}
}

// Details is the user-facing rendition of a failure.
type Details struct {
	Kind       Kind   `json:"kind"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion"`
}

// Describe turns a client-side failure into display details. The error text
// is classified first because one relay status can carry several kinds; the
// structured status is the fallback.
func Describe(err error) Details {
	if err == nil {
		return Details{
			Kind:       KindUnknown,
			Title:      "Unknown error",
			Message:    "Something went wrong. Please try again.",
			Suggestion: "Retry your message",
		}
	}

	raw := err.Error()
	kind := ClassifyText(raw)
	if kind == KindUnknown {
		var ce *Error
		if errors.As(err, &ce) {
			kind = ce.Kind
		} else if k, ok := classifyStructured(err); ok {
			kind = k
		}
	}
	if kind == KindUnknown {
		var sc statusCoder
		if errors.As(err, &sc) && sc.HTTPStatus() == 400 {
			kind = KindValidation
		}
	}
	return DescribeKind(kind, raw)
}

// DescribeKind returns display details for kind, using raw where the kind has
// no fixed wording.
func DescribeKind(kind Kind, raw string) Details {
	d := Details{Kind: kind}
	switch kind {
	case KindUnavailable:
		d.Title = "Connection Error"
		d.Message = "Unable to connect to the AI service. Please check your internet connection."
		d.Suggestion = "Check your connection and try again"
	case KindAuth:
		d.Title = "Authentication Error"
		d.Message = "There was a problem authenticating your request."
		d.Suggestion = "Contact support if this persists"
	case KindRateLimit:
		d.Title = "Rate Limit Exceeded"
		d.Message = "Too many requests hit the rate limit. Please wait a moment before trying again."
		d.Suggestion = "Wait a minute and retry"
	case KindServer:
		d.Title = "Server Error"
		d.Message = "The AI service is temporarily unavailable."
		d.Suggestion = "Try again in a few moments"
	case KindTimeout:
		d.Title = "Request Timeout"
		d.Message = "The request took too long to complete."
		d.Suggestion = "Try a shorter message or retry"
	case KindConfiguration:
		d.Title = "Configuration Error"
		d.Message = fallback(raw, "The chat service is not configured.")
		d.Suggestion = "Contact the site owner"
	case KindValidation, KindMethodNotAllowed, KindTooLarge:
		d.Title = "Request Error"
		d.Message = fallback(raw, "The request was rejected.")
		d.Suggestion = "Shorten or rephrase your message and retry"
	default:
		d.Title = "Error"
		d.Message = fallback(raw, "An unexpected error occurred.")
		d.Suggestion = "Try again or contact support"
	}
	return d
}

func fallback(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
