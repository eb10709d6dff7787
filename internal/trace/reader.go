package trace

import (
	"bytes"
	"io"
)

// minLineBufferSize is the smallest allowed buffer for a LineReader, per
// spec: the buffer must be at least 1 MiB so that single lines from a
// well-formed trace never exceed it.
const minLineBufferSize = 1 << 20

// LineReader yields logical newline-terminated lines from an io.Reader
// without per-line allocation: each call to Next returns a slice borrowed
// from the reader's internal buffer, valid only until the next call to
// Next.
//
// If a line straddles a buffer boundary, the unconsumed tail is shifted to
// the start of the buffer and the buffer is topped up before scanning
// resumes. If, after topping up the buffer completely, no newline has been
// found and the underlying stream has not reached EOF, Next fails with
// ErrLineTooLong: a single line is not permitted to exceed the buffer.
type LineReader struct {
	r          io.Reader
	buf        []byte
	start, end int
	eof        bool
}

// NewLineReader constructs a LineReader with the default (1 MiB) buffer.
func NewLineReader(r io.Reader) *LineReader {
	return NewLineReaderSize(r, minLineBufferSize)
}

// NewLineReaderSize is like NewLineReader but lets the caller configure the
// buffer size; sizes below the 1 MiB minimum are rounded up.
func NewLineReaderSize(r io.Reader, size int) *LineReader {
	if size < minLineBufferSize {
		size = minLineBufferSize
	}
	return &LineReader{r: r, buf: make([]byte, size)}
}

// Next returns the next non-empty logical line with its trailing newline
// stripped. Empty lines are skipped. It returns io.EOF once input and
// buffered data are both exhausted.
func (lr *LineReader) Next() ([]byte, error) {
	for {
		if line, ok := lr.takeLine(); ok {
			if len(line) == 0 {
				continue
			}
			return line, nil
		}
		if lr.eof {
			if lr.start < lr.end {
				line := lr.buf[lr.start:lr.end]
				lr.start = lr.end
				if len(line) == 0 {
					return nil, io.EOF
				}
				return line, nil
			}
			return nil, io.EOF
		}
		if err := lr.fill(); err != nil {
			return nil, err
		}
	}
}

func (lr *LineReader) takeLine() ([]byte, bool) {
	data := lr.buf[lr.start:lr.end]
	idx := bytes.IndexByte(data, '\n')
	if idx < 0 {
		return nil, false
	}
	lr.start += idx + 1
	return data[:idx], true
}

// fill shifts any unconsumed tail to the start of the buffer, then reads
// until the buffer is completely full or the stream reaches EOF.
func (lr *LineReader) fill() error {
	if lr.start > 0 {
		n := copy(lr.buf, lr.buf[lr.start:lr.end])
		lr.start = 0
		lr.end = n
	}
	for lr.end < len(lr.buf) {
		n, err := lr.r.Read(lr.buf[lr.end:])
		lr.end += n
		if err != nil {
			if err == io.EOF {
				lr.eof = true
				return nil
			}
			return err
		}
		if n == 0 {
			return io.ErrNoProgress
		}
	}
	if bytes.IndexByte(lr.buf[lr.start:lr.end], '\n') < 0 {
		return ErrLineTooLong
	}
	return nil
}
