// Package source supplies raw interaction events to a build. A Source is
// pulled one event at a time and signals exhaustion with io.EOF.
package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"rtgraph/graphgen/internal/record"
	"rtgraph/graphgen/internal/retry"
)

// Source yields raw events in the order the producer emits them
type Source interface {
	Next(ctx context.Context) (record.RawEvent, error)
}

// Slice serves events from memory
type Slice struct {
	events []record.RawEvent
	pos    int
}

// NewSlice returns a Source over events
func NewSlice(events ...record.RawEvent) *Slice {
	return &Slice{events: events}
}

func (s *Slice) Next(ctx context.Context) (record.RawEvent, error) {
	if err := ctx.Err(); err != nil {
		return record.RawEvent{}, err
	}
	if s.pos >= len(s.events) {
		return record.RawEvent{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

// maxLineBytes bounds a single JSONL record; account descriptions can be long
const maxLineBytes = 4 << 20

// DecodeError reports a malformed event record. The record is already
// consumed, so reading again would skip it rather than recover it.
type DecodeError struct {
	Line int
	Err  error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode event line %d: %v", e.Line, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// JSONL decodes one RawEvent per line. Blank lines are skipped.
type JSONL struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
}

// NewJSONL reads events from r
func NewJSONL(r io.Reader) *JSONL {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	j := &JSONL{scanner: sc}
	if c, ok := r.(io.Closer); ok {
		j.closer = c
	}
	return j
}

// OpenJSONL reads events from the file at path, or stdin for "-"
func OpenJSONL(path string) (*JSONL, error) {
	if path == "-" {
		return NewJSONL(io.NopCloser(os.Stdin)), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event stream: %w", err)
	}
	return NewJSONL(f), nil
}

func (j *JSONL) Next(ctx context.Context) (record.RawEvent, error) {
	for {
		if err := ctx.Err(); err != nil {
			return record.RawEvent{}, err
		}
		if !j.scanner.Scan() {
			if err := j.scanner.Err(); err != nil {
				return record.RawEvent{}, fmt.Errorf("read event line %d: %w", j.line+1, err)
			}
			return record.RawEvent{}, io.EOF
		}
		j.line++
		raw := j.scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var ev record.RawEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return record.RawEvent{}, &DecodeError{Line: j.line, Err: err}
		}
		return ev, nil
	}
}

// Close releases the underlying reader when it is closable
func (j *JSONL) Close() error {
	if j.closer == nil {
		return nil
	}
	return j.closer.Close()
}

// Retrying retries transient failures of an underlying Source with
// exponential backoff. End of stream, cancellation and malformed records
// are passed through.
type Retrying struct {
	src    Source
	cfg    retry.Config
	logger *zap.Logger
}

// WithRetry wraps src
func WithRetry(src Source, cfg retry.Config, logger *zap.Logger) *Retrying {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{src: src, cfg: cfg, logger: logger}
}

func (r *Retrying) Next(ctx context.Context) (record.RawEvent, error) {
	var ev record.RawEvent
	err := retry.WithBackoff(ctx, r.cfg, r.logger, "next event", func(ctx context.Context) error {
		var err error
		ev, err = r.src.Next(ctx)
		var decodeErr *DecodeError
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
			errors.As(err, &decodeErr) {
			return retry.Permanent(err)
		}
		return err
	})
	return ev, err
}

// Drain reads src to exhaustion
func Drain(ctx context.Context, src Source) ([]record.RawEvent, error) {
	var out []record.RawEvent
	for {
		ev, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, ev)
	}
}
