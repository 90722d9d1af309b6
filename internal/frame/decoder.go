// ABOUTME: Lazy frame decoder over an io.Reader built on bufio.Scanner
// ABOUTME: Buffers partial frames across reads and skips malformed ones without stopping

package frame

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
)

const (
	// DefaultMaxFrameSize bounds a single frame. Final reports are large
	// markdown documents, so this is well above bufio's 64KiB default.
	DefaultMaxFrameSize = 16 << 20

	initialBufferSize = 64 * 1024
)

var delimiter = []byte(Delimiter)

type options struct {
	maxFrameSize int
	logger       *slog.Logger
}

// Option configures Decode.
type Option func(*options)

// WithMaxFrameSize sets the largest frame the decoder will buffer.
func WithMaxFrameSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxFrameSize = n
		}
	}
}

// WithLogger sets the logger used for discarded trailing data.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// ScanFrames is a bufio.SplitFunc that yields delimiter-separated segments.
// At EOF a non-empty remainder is returned with bufio.ErrFinalToken so the
// caller can tell an undelimited tail from a complete frame.
func ScanFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.Index(data, delimiter); i >= 0 {
		return i + len(delimiter), data[:i], nil
	}
	if atEOF {
		return len(data), data, bufio.ErrFinalToken
	}
	// Request more data.
	return 0, nil, nil
}

// Decode returns a lazy sequence of frames read from r. Every call starts a
// fresh decode; nothing is shared between calls.
//
// A malformed frame yields a *DecodeError and decoding continues. A read
// error from r is yielded once and ends the sequence, even when it arrives
// with a partial frame buffered. Data left at a clean end of stream without
// a delimiter is yielded if it parses as a frame and dropped otherwise.
func Decode(r io.Reader, opts ...Option) iter.Seq2[Frame, error] {
	o := options{
		maxFrameSize: DefaultMaxFrameSize,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return func(yield func(Frame, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, min(initialBufferSize, o.maxFrameSize)), o.maxFrameSize)

		trailing := false
		scanner.Split(func(data []byte, atEOF bool) (int, []byte, error) {
			advance, token, err := ScanFrames(data, atEOF)
			if errors.Is(err, bufio.ErrFinalToken) {
				trailing = true
			}
			return advance, token, err
		})

		for scanner.Scan() {
			segment := bytes.TrimSpace(scanner.Bytes())
			if len(segment) == 0 {
				continue
			}

			f, err := Parse(segment)
			if trailing {
				// A tail cut off by a read error is never a complete frame.
				if err != nil || scanner.Err() != nil {
					o.logger.Debug("discarding incomplete trailing data", "bytes", len(segment))
					break
				}
				yield(f, nil)
				return
			}
			if !yield(f, err) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield(Frame{}, fmt.Errorf("reading frame stream: %w", err))
		}
	}
}

// IsDecodeError reports whether err describes a single malformed frame
// rather than a failure of the underlying stream.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
