package convert

import (
	"bytes"
	"slices"
	"testing"

	"github.com/maruel/jsonl2tfrecord/internal/feature"
	"github.com/maruel/jsonl2tfrecord/internal/objstore"
	"github.com/maruel/jsonl2tfrecord/internal/tfrecord"
)

// newMemMux returns a Mux serving mem:// from a fresh MemoryStore with the
// given buckets.
func newMemMux(buckets ...string) (*objstore.MemoryStore, *objstore.Mux) {
	ms := objstore.NewMemoryStore("mem")
	for _, b := range buckets {
		ms.CreateBucket(b)
	}
	mux := objstore.NewMux()
	mux.Handle("mem", ms)
	return ms, mux
}

// decodeExamples parses every record of a TFRecord stream.
func decodeExamples(t *testing.T, data []byte, c tfrecord.Compression) []feature.Row {
	t.Helper()
	r, err := tfrecord.NewReader(bytes.NewReader(data), c)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	defer func() { _ = r.Close() }()
	var rows []feature.Row
	for rec, err := range r.Records() {
		if err != nil {
			t.Fatalf("Records() error = %v", err)
		}
		row, err := tfrecord.ParseExample(slices.Clone(rec))
		if err != nil {
			t.Fatalf("ParseExample() error = %v", err)
		}
		rows = append(rows, row)
	}
	return rows
}

func bytesRow(kv ...string) feature.Row {
	row := feature.Row{}
	for i := 0; i+1 < len(kv); i += 2 {
		row = append(row, feature.Field{Name: kv[i], Value: feature.BytesList{[]byte(kv[i+1])}})
	}
	return row
}

// countingProgress records progress callbacks.
type countingProgress struct {
	NullProgress
	skips, records, files, ignored, errors int
}

func (p *countingProgress) OnSkip(string) { p.skips++ }
func (p *countingProgress) OnRecord(string, int) { p.records++ }
func (p *countingProgress) OnFileDone(string, Result) { p.files++ }
func (p *countingProgress) OnIgnore(string, string) { p.ignored++ }
func (p *countingProgress) OnError(error) { p.errors++ }
