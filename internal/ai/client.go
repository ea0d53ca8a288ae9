// Package ai defines the interface for text generation and provides
// OpenAI-compatible (OpenAI, DeepSeek) and Anthropic-backed implementations.
//
// Every model call in the service goes through Generator: SQL generation uses
// Generate, answer summaries use Stream.
package ai

import (
	"context"
	"errors"
	"io"
	"strings"
)

// ErrEmptyResponse is returned when the provider answered successfully but
// produced no text.
var ErrEmptyResponse = errors.New("ai: empty response")

// defaultMaxTokens is used when a Prompt leaves MaxTokens at zero.
const defaultMaxTokens = 2048

// Prompt is one single-turn request: a system instruction plus one user
// message.
type Prompt struct {
	System string
	User   string

	// MaxTokens caps the completion. Zero means defaultMaxTokens.
	MaxTokens int

	// Temperature is passed through as-is. SQL prompts use 0.
	Temperature float64
}

func (p Prompt) maxTokens() int {
	if p.MaxTokens <= 0 {
		return defaultMaxTokens
	}
	return p.MaxTokens
}

// Generator is the interface the pipeline uses to talk to a model.
// Tests inject a stub that returns canned text.
type Generator interface {
	// Generate returns the complete response text. An empty response is
	// ErrEmptyResponse, never ("", nil).
	Generate(ctx context.Context, p Prompt) (string, error)

	// Stream opens a streaming completion. A non-nil error means nothing was
	// produced; failures after the first chunk surface through Stream.Err.
	//
	// Implementations must be safe to call concurrently.
	Stream(ctx context.Context, p Prompt) (Stream, error)
}

// Stream yields text chunks in order. Callers must always Close it, including
// when they stop reading early.
//
//	for s.Next() {
//		w.Write([]byte(s.Chunk()))
//	}
//	if err := s.Err(); err != nil { ... }
type Stream interface {
	Next() bool
	Chunk() string
	Err() error
	Close() error
}

// Collect drains s into a single string and closes it.
func Collect(s Stream) (string, error) {
	defer s.Close()

	var sb strings.Builder
	for s.Next() {
		sb.WriteString(s.Chunk())
	}
	return sb.String(), s.Err()
}

// ─── STATIC STREAM ───────────────────────────────────────────────────────────

// TextStream returns a Stream that yields the given chunks and ends. Used for
// answers produced without a model call and by tests.
func TextStream(chunks ...string) Stream {
	return &textStream{chunks: chunks, pos: -1}
}

type textStream struct {
	chunks []string
	pos    int
	closed bool
}

func (s *textStream) Next() bool {
	if s.closed || s.pos+1 >= len(s.chunks) {
		return false
	}
	s.pos++
	return true
}

func (s *textStream) Chunk() string {
	if s.pos < 0 || s.pos >= len(s.chunks) {
		return ""
	}
	return s.chunks[s.pos]
}

func (s *textStream) Err() error { return nil }

func (s *textStream) Close() error {
	s.closed = true
	return nil
}

// ─── CONCAT ──────────────────────────────────────────────────────────────────

// Concat yields every chunk of each stream in turn. Closing it closes all of
// them. The first stream error stops iteration.
func Concat(streams ...Stream) Stream {
	return &concatStream{streams: streams}
}

type concatStream struct {
	streams []Stream
	idx     int
	err     error
}

func (c *concatStream) Next() bool {
	for c.err == nil && c.idx < len(c.streams) {
		s := c.streams[c.idx]
		if s.Next() {
			return true
		}
		if err := s.Err(); err != nil {
			c.err = err
			return false
		}
		c.idx++
	}
	return false
}

func (c *concatStream) Chunk() string {
	if c.idx >= len(c.streams) {
		return ""
	}
	return c.streams[c.idx].Chunk()
}

func (c *concatStream) Err() error { return c.err }

func (c *concatStream) Close() error {
	var errs []error
	for _, s := range c.streams {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ─── HTTP HELPERS ────────────────────────────────────────────────────────────

// errorBody reads at most 1 KB of a failed response for inclusion in an error.
func errorBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 1<<10))
	return strings.TrimSpace(string(b))
}
