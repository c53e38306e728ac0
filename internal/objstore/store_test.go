package objstore

import (
	"context"
	"errors"
	"io"
	"slices"
	"testing"

	cverrors "github.com/maruel/jsonl2tfrecord/internal/errors"
)

// putFunc seeds an object directly into the backend under test.
type putFunc func(t *testing.T, key string, data []byte)

// testBucketConformance runs the behavior every Bucket implementation shares.
// b must be an empty bucket.
func testBucketConformance(t *testing.T, b Bucket, put putFunc) {
	ctx := t.Context()

	put(t, "lg/jsonl-data/a.jsonl", []byte("a"))
	put(t, "lg/jsonl-data/b.jsonl", []byte("bb"))
	put(t, "lg/jsonl-data/sub/c.jsonl", []byte("ccc"))
	put(t, "lg/other/d.jsonl", []byte("d"))

	t.Run("List", func(t *testing.T) {
		var keys []string
		for o, err := range b.List(ctx, "lg/jsonl-data") {
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			keys = append(keys, o.Key)
		}
		slices.Sort(keys)
		want := []string{"lg/jsonl-data/a.jsonl", "lg/jsonl-data/b.jsonl", "lg/jsonl-data/sub/c.jsonl"}
		if !slices.Equal(keys, want) {
			t.Errorf("List() = %v, want %v", keys, want)
		}
	})

	t.Run("List is restartable", func(t *testing.T) {
		seq := b.List(ctx, "lg/")
		count := func() int {
			n := 0
			for _, err := range seq {
				if err != nil {
					t.Fatalf("List() error = %v", err)
				}
				n++
			}
			return n
		}
		if first, second := count(), count(); first != 4 || second != 4 {
			t.Errorf("List() counts = %d, %d, want 4, 4", first, second)
		}
	})

	t.Run("List early break", func(t *testing.T) {
		n := 0
		for range b.List(ctx, "") {
			n++
			break
		}
		if n != 1 {
			t.Errorf("got %d iterations, want 1", n)
		}
	})

	t.Run("Object Open", func(t *testing.T) {
		for o, err := range b.List(ctx, "lg/jsonl-data/b") {
			if err != nil {
				t.Fatal(err)
			}
			if o.Size != 2 {
				t.Errorf("Size = %d, want 2", o.Size)
			}
			r, err := o.Open(ctx)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			data, err := io.ReadAll(r)
			_ = r.Close()
			if err != nil || string(data) != "bb" {
				t.Errorf("content = %q, %v, want bb", data, err)
			}
		}
	})

	t.Run("Exists", func(t *testing.T) {
		tests := map[string]bool{
			"lg/jsonl-data/a.jsonl": true,
			"lg/jsonl-data/a":       false,
			"missing.tfrecords":     false,
		}
		for key, want := range tests {
			got, err := b.Exists(ctx, key)
			if err != nil {
				t.Fatalf("Exists(%q) error = %v", key, err)
			}
			if got != want {
				t.Errorf("Exists(%q) = %v, want %v", key, got, want)
			}
		}
	})

	t.Run("Writer commit", func(t *testing.T) {
		w, err := b.NewWriter(ctx, "out/x.tfrecords")
		if err != nil {
			t.Fatalf("NewWriter() error = %v", err)
		}
		if _, err := w.Write([]byte("hello")); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if ok, _ := b.Exists(ctx, "out/x.tfrecords"); ok {
			t.Error("object visible before Close")
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if err := w.Abort(); err != nil {
			t.Errorf("Abort() after Close error = %v", err)
		}
		if ok, _ := b.Exists(ctx, "out/x.tfrecords"); !ok {
			t.Error("object missing after Close")
		}
		r, err := b.NewReader(ctx, "out/x.tfrecords")
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(r)
		_ = r.Close()
		if string(data) != "hello" {
			t.Errorf("content = %q, want hello", data)
		}
	})

	t.Run("Writer abort", func(t *testing.T) {
		w, err := b.NewWriter(ctx, "out/aborted.tfrecords")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte("partial")); err != nil {
			t.Fatal(err)
		}
		if err := w.Abort(); err != nil {
			t.Fatalf("Abort() error = %v", err)
		}
		if ok, _ := b.Exists(ctx, "out/aborted.tfrecords"); ok {
			t.Error("aborted object is visible")
		}
		for o, err := range b.List(ctx, "") {
			if err != nil {
				t.Fatal(err)
			}
			if o.Key == "out/aborted.tfrecords" {
				t.Error("aborted object is listed")
			}
		}
	})

	t.Run("Writer never clobbers", func(t *testing.T) {
		w1, err := b.NewWriter(ctx, "out/race.tfrecords")
		if err != nil {
			t.Fatal(err)
		}
		w2, err := b.NewWriter(ctx, "out/race.tfrecords")
		if err != nil {
			t.Fatal(err)
		}
		_, _ = w1.Write([]byte("first"))
		_, _ = w2.Write([]byte("second"))
		if err := w1.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if err := w2.Close(); !errors.Is(err, ErrExist) {
			t.Fatalf("second Close() error = %v, want ErrExist", err)
		}
		r, err := b.NewReader(ctx, "out/race.tfrecords")
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(r)
		_ = r.Close()
		if string(data) != "first" {
			t.Errorf("content = %q, want first", data)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore("mem")
	if _, err := s.Bucket(t.Context(), "nope"); !errors.Is(err, cverrors.ErrStoreUnavailable) {
		t.Errorf("Bucket(nope) error = %v, want StoreUnavailable", err)
	}
	s.CreateBucket("b")
	b, err := s.Bucket(t.Context(), "b")
	if err != nil {
		t.Fatal(err)
	}
	if got := b.URI("k"); got != "mem://b/k" {
		t.Errorf("URI() = %q", got)
	}
	testBucketConformance(t, b, func(t *testing.T, key string, data []byte) {
		s.Put("b", key, data)
	})
	if got := s.Writes(); got != 2 {
		t.Errorf("Writes() = %d, want 2", got)
	}
}

func TestMux(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore("mem")
	mem.CreateBucket("b")
	m := NewMux()
	m.Handle("mem", mem)

	b, key, err := m.Resolve(ctx, "mem://b/x/y.jsonl")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if b.Name() != "b" || key != "x/y.jsonl" {
		t.Errorf("Resolve() = (%q, %q)", b.Name(), key)
	}
	if _, _, err := m.Resolve(ctx, "gs://b/x"); err == nil {
		t.Error("Resolve() with unregistered scheme succeeded")
	}
	if _, _, err := m.Resolve(ctx, "mem://bucketonly"); !errors.Is(err, cverrors.ErrMalformedPath) {
		t.Errorf("Resolve() error = %v, want MalformedPath", err)
	}
	if _, _, err := m.Resolve(ctx, "mem://missing/x"); !errors.Is(err, cverrors.ErrStoreUnavailable) {
		t.Errorf("Resolve() error = %v, want StoreUnavailable", err)
	}
}
