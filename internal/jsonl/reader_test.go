package jsonl

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	cverrors "github.com/maruel/jsonl2tfrecord/internal/errors"
	"github.com/maruel/jsonl2tfrecord/internal/feature"
)

// flatten renders records as "line:name=value,..." for compact comparisons.
func flatten(t *testing.T, r *Reader) []string {
	t.Helper()
	var out []string
	for rec, err := range r.Records() {
		if err != nil {
			t.Fatalf("Records() error = %v", err)
		}
		var b strings.Builder
		for i, f := range rec.Fields {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(f.Name + "=" + string(f.Value))
		}
		out = append(out, b.String())
	}
	return out
}

func TestReader(t *testing.T) {
	t.Run("order and blank lines", func(t *testing.T) {
		in := "{\"b\":\"y\",\"a\":\"x\"}\n\n  \r\n{\"z\":1,\"n\":null,\"t\":true}\r\n{\"k\":\"v\"}"
		got := flatten(t, NewReader(strings.NewReader(in), 0))
		want := []string{`b="y",a="x"`, `z=1,n=null,t=true`, `k="v"`}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("records mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("line numbers", func(t *testing.T) {
		r := NewReader(strings.NewReader("\n{\"a\":1}\n\n{\"a\":2}\n"), 0)
		var lines []int
		for rec, err := range r.Records() {
			if err != nil {
				t.Fatal(err)
			}
			lines = append(lines, rec.Line)
		}
		if diff := cmp.Diff([]int{2, 4}, lines); diff != "" {
			t.Errorf("lines mismatch (-want +got):\n%s", diff)
		}
		if r.Line() != 4 {
			t.Errorf("Line() = %d, want 4", r.Line())
		}
	})

	t.Run("byte order mark", func(t *testing.T) {
		got := flatten(t, NewReader(strings.NewReader("\xef\xbb\xbf{\"a\":\"x\"}\n"), 0))
		if diff := cmp.Diff([]string{`a="x"`}, got); diff != "" {
			t.Errorf("records mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("nested values are passed through", func(t *testing.T) {
		got := flatten(t, NewReader(strings.NewReader(`{"a":[1,2],"o":{"x":"y"}}`), 0))
		if diff := cmp.Diff([]string{`a=[1,2],o={"x":"y"}`}, got); diff != "" {
			t.Errorf("records mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if got := flatten(t, NewReader(strings.NewReader(""), 0)); len(got) != 0 {
			t.Errorf("got %d records, want 0", len(got))
		}
	})

	t.Run("parse errors", func(t *testing.T) {
		tests := []struct {
			name string
			in   string
			line int
		}{
			{"invalid json", "{\"a\":1}\n{\"a\":\n", 2},
			{"array line", "[1,2]\n", 1},
			{"scalar line", "{\"a\":1}\n\n42\n", 3},
			{"string line", "\"x\"\n", 1},
			{"null line", "null\n", 1},
			{"trailing comma", "{\"a\":1}\n{\"a\":1,}\n", 2},
			{"trailing comma after string", "{\"a\":\"x\",}\n", 1},
			{"missing colon", "{\"a\" 1}\n", 1},
			{"trailing garbage", "{\"a\":1} x\n", 1},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				n := 0
				var gotErr error
				for rec, err := range NewReader(strings.NewReader(tt.in), 0).Records() {
					if err != nil {
						gotErr = err
						if rec.Line != tt.line {
							t.Errorf("error at line %d, want %d", rec.Line, tt.line)
						}
						continue
					}
					n++
				}
				if !errors.Is(gotErr, cverrors.ErrParse) {
					t.Fatalf("error = %v, want ParseError", gotErr)
				}
				var e *cverrors.Error
				if errors.As(gotErr, &e) && e.Details()["line"] != tt.line {
					t.Errorf("error line detail = %v, want %d", e.Details()["line"], tt.line)
				}
			})
		}
	})

	t.Run("line too long", func(t *testing.T) {
		in := `{"a":"` + strings.Repeat("x", 100) + `"}`
		var gotErr error
		for _, err := range NewReader(strings.NewReader(in), 32).Records() {
			gotErr = err
		}
		if !errors.Is(gotErr, cverrors.ErrParse) {
			t.Errorf("error = %v, want ParseError", gotErr)
		}
	})

	t.Run("early break", func(t *testing.T) {
		r := NewReader(strings.NewReader("{\"a\":1}\n{\"a\":2}\n{\"a\":3}\n"), 0)
		for range r.Records() {
			break
		}
		if r.Line() != 1 {
			t.Errorf("Line() = %d, want 1", r.Line())
		}
	})
}

func TestRecordsFeedFeatures(t *testing.T) {
	for rec, err := range NewReader(strings.NewReader(`{"a": "x", "b": "y"}`), 0).Records() {
		if err != nil {
			t.Fatal(err)
		}
		row, err := feature.FromJSONFields(rec.Fields)
		if err != nil {
			t.Fatal(err)
		}
		want := feature.Row{
			{Name: "a", Value: feature.BytesList{[]byte("x")}},
			{Name: "b", Value: feature.BytesList{[]byte("y")}},
		}
		if diff := cmp.Diff(want, row); diff != "" {
			t.Errorf("row mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestDecompress(t *testing.T) {
	const content = "{\"a\":\"x\"}\n{\"a\":\"y\"}\n"

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, _ = zw.Write([]byte(content))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	var zst bytes.Buffer
	enc, err := zstd.NewWriter(&zst)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = enc.Write([]byte(content))
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"a.jsonl", []byte(content)},
		{"a.jsonl.gz", gz.Bytes()},
		{"a.jsonl.zst", zst.Bytes()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, err := Decompress(bytes.NewReader(tt.data), tt.name)
			if err != nil {
				t.Fatalf("Decompress() error = %v", err)
			}
			defer func() { _ = rc.Close() }()
			got, err := io.ReadAll(rc)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != content {
				t.Errorf("content = %q", got)
			}
			if TrimCompression(tt.name) != "a.jsonl" {
				t.Errorf("TrimCompression(%q) = %q", tt.name, TrimCompression(tt.name))
			}
		})
	}

	if _, err := Decompress(strings.NewReader("not gzip"), "x.gz"); err == nil {
		t.Error("Decompress() of invalid gzip succeeded")
	}
}
