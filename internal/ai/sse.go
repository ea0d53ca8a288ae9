package ai

import (
	"bufio"
	"bytes"
	"io"
	"sync"
)

// maxEventSize bounds a single server-sent event line.
const maxEventSize = 1 << 20

// decodeFunc turns one SSE data payload into text. done reports that the
// provider signalled the end of the stream.
type decodeFunc func(payload []byte) (text string, done bool, err error)

// sseStream reads "data:" lines from a text/event-stream body. Comment,
// "event:" and blank lines are skipped; providers put everything needed in
// the data payload.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	decode  decodeFunc

	chunk string
	err   error
	done  bool

	closeOnce sync.Once
	closeErr  error
}

func newSSEStream(body io.ReadCloser, decode decodeFunc) *sseStream {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &sseStream{body: body, scanner: sc, decode: decode}
}

var dataPrefix = []byte("data:")

func (s *sseStream) Next() bool {
	if s.done || s.err != nil {
		return false
	}
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if !bytes.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := bytes.TrimSpace(line[len(dataPrefix):])
		if len(payload) == 0 {
			continue
		}
		if bytes.Equal(payload, []byte("[DONE]")) {
			s.done = true
			return false
		}

		text, done, err := s.decode(payload)
		if err != nil {
			s.err = err
			return false
		}
		if done {
			s.done = true
			return false
		}
		if text == "" {
			continue
		}
		s.chunk = text
		return true
	}
	s.err = s.scanner.Err()
	s.done = true
	return false
}

func (s *sseStream) Chunk() string { return s.chunk }

func (s *sseStream) Err() error { return s.err }

func (s *sseStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}
