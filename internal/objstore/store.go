package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"
	"time"
)

// ErrExist is returned by Writer.Close when the destination object was
// created by someone else after the writer was opened.
var ErrExist = errors.New("object already exists")

// Store resolves containers by name.
type Store interface {
	// Bucket returns the named container. It fails with a STORE_UNAVAILABLE
	// error if the container does not exist or cannot be accessed.
	Bucket(ctx context.Context, name string) (Bucket, error)
}

// Bucket is a container of objects addressed by slash-separated keys.
type Bucket interface {
	// Name returns the container name.
	Name() string
	// URI returns the fully qualified URI of key in this bucket.
	URI(key string) string
	// List yields the objects whose key starts with prefix, in the store's
	// native order. The sequence is finite and every range over it restarts
	// the listing from the beginning.
	List(ctx context.Context, prefix string) iter.Seq2[*Object, error]
	// Exists reports whether an object exists at exactly key.
	Exists(ctx context.Context, key string) (bool, error)
	// NewReader opens the content of key.
	NewReader(ctx context.Context, key string) (io.ReadCloser, error)
	// NewWriter starts writing a new object at key.
	NewWriter(ctx context.Context, key string) (Writer, error)
}

// Writer streams a new object.
//
// Close commits the object and returns ErrExist if another object occupies the
// key by then. Abort discards everything written. After either call the
// Writer is unusable; calling Abort after Close is a no-op.
type Writer interface {
	io.Writer
	Close() error
	Abort() error
}

// Object is a handle on a stored object returned by Bucket.List.
type Object struct {
	Bucket  Bucket
	Key     string
	Size    int64
	Updated time.Time
}

// URI returns the fully qualified URI of the object.
func (o *Object) URI() string {
	return o.Bucket.URI(o.Key)
}

// Open fetches the object content.
func (o *Object) Open(ctx context.Context) (io.ReadCloser, error) {
	return o.Bucket.NewReader(ctx, o.Key)
}

// Mux dispatches URIs to the Store registered for their scheme.
type Mux struct {
	mu     sync.RWMutex
	stores map[string]Store
}

// NewMux returns an empty Mux.
func NewMux() *Mux {
	return &Mux{stores: make(map[string]Store)}
}

// Handle registers s for scheme, replacing any previous registration.
func (m *Mux) Handle(scheme string, s Store) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores[scheme] = s
}

// Resolve splits uri and returns its bucket and key.
func (m *Mux) Resolve(ctx context.Context, uri string) (Bucket, string, error) {
	scheme, container, key, err := SplitURI(uri)
	if err != nil {
		return nil, "", err
	}
	m.mu.RLock()
	s := m.stores[scheme]
	m.mu.RUnlock()
	if s == nil {
		return nil, "", fmt.Errorf("no store registered for scheme %q in %q", scheme, uri)
	}
	b, err := s.Bucket(ctx, container)
	if err != nil {
		return nil, "", err
	}
	return b, key, nil
}
