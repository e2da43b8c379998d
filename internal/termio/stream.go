// Package termio is the line-oriented prompt stream shared by the shell and
// the line editor.
package termio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// CursorUp moves the cursor to the start of the previous line.
	CursorUp = "\x1b[F"
	// ClearLine erases the current line.
	ClearLine = "\x1b[2K"
)

// MaxLineBytes bounds one line of input, line ending included.
const MaxLineBytes = 4 << 10

// ErrLineTooLong is returned by ReadLine when a line exceeds MaxLineBytes.
// The rest of that line is discarded so the next read starts fresh.
var ErrLineTooLong = errors.New("input line too long")

// Stream buffers output until the next prompt and reads one trimmed line of
// input per prompt. The first write error is kept and returned by Flush and
// ReadLine; later writes are dropped.
type Stream struct {
	r   *bufio.Reader
	w   *bufio.Writer
	err error
}

// New wraps a reader and writer, usually the two halves of one connection.
func New(r io.Reader, w io.Writer) *Stream {
	return &Stream{r: bufio.NewReader(r), w: bufio.NewWriter(w)}
}

// Err returns the first write error, if any.
func (s *Stream) Err() error {
	return s.err
}

// WriteString queues text for the client.
func (s *Stream) WriteString(text string) {
	if s.err != nil {
		return
	}
	_, s.err = s.w.WriteString(text)
}

// Write implements io.Writer on top of the sticky error.
func (s *Stream) Write(p []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	n, err := s.w.Write(p)
	s.err = err
	return n, err
}

// Printf queues formatted text for the client.
func (s *Stream) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s, format, args...)
}

// Println queues text followed by a newline.
func (s *Stream) Println(text string) {
	s.WriteString(text)
	s.WriteString("\n")
}

// CursorUp queues the move-to-previous-line control sequence.
func (s *Stream) CursorUp() {
	s.WriteString(CursorUp)
}

// ClearLine queues the clear-current-line control sequence.
func (s *Stream) ClearLine() {
	s.WriteString(ClearLine)
}

// Flush sends everything queued so far.
func (s *Stream) Flush() error {
	if s.err != nil {
		return s.err
	}
	s.err = s.w.Flush()
	return s.err
}

// ReadLine writes prompt, flushes, and blocks for one line of input with
// surrounding whitespace trimmed. A final unterminated line is returned
// before io.EOF is reported.
func (s *Stream) ReadLine(prompt string) (string, error) {
	s.WriteString(prompt)
	if err := s.Flush(); err != nil {
		return "", err
	}
	var line []byte
	for {
		chunk, err := s.r.ReadSlice('\n')
		if len(line)+len(chunk) > MaxLineBytes {
			return "", s.discardLine(err)
		}
		line = append(line, chunk...)
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(line) > 0, err == nil:
			return strings.TrimSpace(string(line)), nil
		default:
			return "", err
		}
	}
}

// discardLine skips to the end of the current line. err is the result of
// the read that found the line too long.
func (s *Stream) discardLine(err error) error {
	for errors.Is(err, bufio.ErrBufferFull) {
		_, err = s.r.ReadSlice('\n')
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return ErrLineTooLong
}
