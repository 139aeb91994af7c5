package sensor

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// maxLineLength caps the bytes kept while waiting for a newline.
const maxLineLength = 256

// lineReader splits the port's byte stream into newline terminated
// lines. Every call performs at most one Read on the port, so a call
// never outlasts the port's read timeout.
type lineReader struct {
	r       io.Reader
	pending []byte
	chunk   []byte
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{
		r:     r,
		chunk: make([]byte, 64),
	}
}

// ReadLine returns the next complete line without its terminator.
// It returns ErrReadTimeout if no full line is available after one read,
// keeping partial data for the next call.
func (lr *lineReader) ReadLine() (string, error) {
	if line, ok := lr.take(); ok {
		return line, nil
	}

	n, err := lr.r.Read(lr.chunk)
	if n > 0 {
		lr.pending = append(lr.pending, lr.chunk[:n]...)
	}
	if err != nil {
		return "", err
	}

	if line, ok := lr.take(); ok {
		return line, nil
	}
	if len(lr.pending) > maxLineLength {
		lr.pending = lr.pending[:0]
		return "", fmt.Errorf("%w: no line terminator within %d bytes", ErrMalformedReading, maxLineLength)
	}
	return "", ErrReadTimeout
}

func (lr *lineReader) take() (string, bool) {
	idx := bytes.IndexByte(lr.pending, '\n')
	if idx < 0 {
		return "", false
	}
	line := string(lr.pending[:idx])
	lr.pending = lr.pending[idx+1:]
	return line, true
}

// parseReading decodes one ASCII decimal scalar.
func parseReading(line string) (float64, error) {
	s := strings.TrimSpace(line)
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedReading, s)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: non-finite value %q", ErrMalformedReading, s)
	}
	return value, nil
}
