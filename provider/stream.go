package provider

import (
	"time"

	"github.com/fbarrios/folio/logger"
)

// sdkStream is the iterator shape shared by the openai-go and
// anthropic-sdk-go streaming clients.
type sdkStream[T any] interface {
	Next() bool
	Current() T
	Err() error
	Close() error
}

// textStream adapts an SDK event stream to Stream, skipping events that
// carry no text.
type textStream[T any] struct {
	providerName string
	model        string
	src          sdkStream[T]
	extract      func(T) string

	delta  string
	chunks int
	chars  int
	start  time.Time
	closed bool
}

func newTextStream[T any](providerName, model string, src sdkStream[T], extract func(T) string) *textStream[T] {
	return &textStream[T]{
		providerName: providerName,
		model:        model,
		src:          src,
		extract:      extract,
		start:        time.Now(),
	}
}

func (s *textStream[T]) Next() bool {
	for s.src.Next() {
		text := s.extract(s.src.Current())
		if text == "" {
			continue
		}
		s.delta = text
		s.chunks++
		s.chars += len(text)
		return true
	}
	s.delta = ""
	return false
}

func (s *textStream[T]) Delta() string {
	return s.delta
}

func (s *textStream[T]) Err() error {
	return wrapError(s.providerName, s.src.Err())
}

func (s *textStream[T]) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	logger.Info(
		"upstream stream closed",
		"provider", s.providerName,
		"model", s.model,
		"chunks", s.chunks,
		"outputChars", s.chars,
		"latencyMs", time.Since(s.start).Milliseconds(),
		"err", s.src.Err(),
	)
	return s.src.Close()
}
