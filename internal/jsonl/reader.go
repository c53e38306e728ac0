// Package jsonl reads JSON Lines content as a stream of flat records.
package jsonl

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/goccy/go-json"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	cverrors "github.com/maruel/jsonl2tfrecord/internal/errors"
	"github.com/maruel/jsonl2tfrecord/internal/feature"
)

// DefaultMaxLineBytes bounds the length of a single line.
const DefaultMaxLineBytes = 64 << 20

// Record is one non-blank line of input.
type Record struct {
	// Line is the 1-based line number in the input.
	Line int
	// Fields holds the object members in source order.
	Fields []feature.RawField
}

// Reader splits its input into lines and decodes each as a JSON object.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader returns a Reader. maxLineBytes <= 0 selects DefaultMaxLineBytes.
func NewReader(r io.Reader, maxLineBytes int) *Reader {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, min(64<<10, maxLineBytes)), maxLineBytes)
	return &Reader{scanner: s}
}

// Line returns the number of lines consumed so far.
func (r *Reader) Line() int {
	return r.line
}

// Records yields records in input order. Blank lines are skipped. Iteration
// stops after the first error, which is a PARSE_ERROR for malformed content.
func (r *Reader) Records() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for r.scanner.Scan() {
			r.line++
			line := bytes.TrimSpace(r.scanner.Bytes())
			if r.line == 1 {
				line = bytes.TrimPrefix(line, []byte("\xef\xbb\xbf"))
			}
			if len(line) == 0 {
				continue
			}
			fields, err := parseObject(line)
			if err != nil {
				yield(Record{Line: r.line}, cverrors.Parse(r.line, err))
				return
			}
			if !yield(Record{Line: r.line, Fields: fields}, nil) {
				return
			}
		}
		if err := r.scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				err = cverrors.Parse(r.line+1, err)
			} else {
				err = fmt.Errorf("failed to read line %d: %w", r.line+1, err)
			}
			yield(Record{Line: r.line + 1}, err)
		}
	}
}

// parseObject decodes a JSON object keeping member order. Duplicate keys keep
// the position of their first occurrence and the value of the last.
func parseObject(line []byte) ([]feature.RawField, error) {
	if line[0] != '{' {
		return nil, fmt.Errorf("expected a JSON object, got %s", describe(line))
	}
	// The ordered map decoder tolerates some malformed input, such as
	// trailing commas.
	if !json.Valid(line) {
		return nil, errors.New("invalid JSON object")
	}
	om := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(line, om); err != nil {
		return nil, err
	}
	fields := make([]feature.RawField, 0, om.Len())
	for p := om.Oldest(); p != nil; p = p.Next() {
		fields = append(fields, feature.RawField{Name: p.Key, Value: p.Value})
	}
	return fields, nil
}

func describe(line []byte) string {
	switch line[0] {
	case '[':
		return "an array"
	case '"':
		return "a string"
	case 't', 'f':
		return "a boolean"
	case 'n':
		return "null"
	default:
		if len(line) > 16 {
			return fmt.Sprintf("%q...", line[:16])
		}
		return fmt.Sprintf("%q", line)
	}
}
