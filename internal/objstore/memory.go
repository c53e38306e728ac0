package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	cverrors "github.com/maruel/jsonl2tfrecord/internal/errors"
)

// MemoryStore is an in-process Store used as a test double. The zero value is
// not usable; call NewMemoryStore.
type MemoryStore struct {
	scheme string

	mu      sync.Mutex
	buckets map[string]map[string]memObject
	writes  int
}

type memObject struct {
	data    []byte
	updated time.Time
}

// NewMemoryStore returns an empty store whose URIs use scheme.
func NewMemoryStore(scheme string) *MemoryStore {
	return &MemoryStore{
		scheme:  scheme,
		buckets: make(map[string]map[string]memObject),
	}
}

// CreateBucket creates an empty bucket if it does not exist yet.
func (s *MemoryStore) CreateBucket(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buckets[name] == nil {
		s.buckets[name] = make(map[string]memObject)
	}
}

// Put stores data at key, creating the bucket as needed. Put does not count
// as a write in Writes.
func (s *MemoryStore) Put(bucket, key string, data []byte) {
	s.CreateBucket(bucket)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[bucket][key] = memObject{data: slices.Clone(data), updated: time.Now()}
}

// Get returns a copy of the object at key.
func (s *MemoryStore) Get(bucket, key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.buckets[bucket][key]
	if !ok {
		return nil, false
	}
	return slices.Clone(o.data), true
}

// Writes returns the number of objects committed through Writer.Close.
func (s *MemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Bucket implements Store.
func (s *MemoryStore) Bucket(_ context.Context, name string) (Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buckets[name] == nil {
		return nil, cverrors.StoreUnavailable(name, fs.ErrNotExist)
	}
	return &memBucket{store: s, name: name}, nil
}

type memBucket struct {
	store *MemoryStore
	name  string
}

func (b *memBucket) Name() string { return b.name }

func (b *memBucket) URI(key string) string { return JoinURI(b.store.scheme, b.name, key) }

func (b *memBucket) List(ctx context.Context, prefix string) iter.Seq2[*Object, error] {
	return func(yield func(*Object, error) bool) {
		// Snapshot under the lock so yield may call back into the store.
		b.store.mu.Lock()
		var objs []*Object
		for key, o := range b.store.buckets[b.name] {
			if strings.HasPrefix(key, prefix) && !strings.HasSuffix(key, "/") {
				objs = append(objs, &Object{Bucket: b, Key: key, Size: int64(len(o.data)), Updated: o.updated})
			}
		}
		b.store.mu.Unlock()
		slices.SortFunc(objs, func(x, y *Object) int { return strings.Compare(x.Key, y.Key) })
		for _, o := range objs {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(o, nil) {
				return
			}
		}
	}
}

func (b *memBucket) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	_, ok := b.store.buckets[b.name][key]
	return ok, nil
}

func (b *memBucket) NewReader(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := b.store.Get(b.name, key)
	if !ok {
		return nil, fmt.Errorf("%s: %w", b.URI(key), fs.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *memBucket) NewWriter(ctx context.Context, key string) (Writer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memWriter{bucket: b, key: key}, nil
}

type memWriter struct {
	bucket *memBucket
	key    string
	buf    bytes.Buffer
	done   bool
}

func (w *memWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, fs.ErrClosed
	}
	return w.buf.Write(p)
}

func (w *memWriter) Close() error {
	if w.done {
		return fs.ErrClosed
	}
	w.done = true
	s := w.bucket.store
	s.mu.Lock()
	defer s.mu.Unlock()
	objs := s.buckets[w.bucket.name]
	if _, ok := objs[w.key]; ok {
		return fmt.Errorf("%s: %w", w.bucket.URI(w.key), ErrExist)
	}
	objs[w.key] = memObject{data: slices.Clone(w.buf.Bytes()), updated: time.Now()}
	s.writes++
	return nil
}

func (w *memWriter) Abort() error {
	w.done = true
	w.buf.Reset()
	return nil
}
