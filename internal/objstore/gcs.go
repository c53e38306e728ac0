package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	cverrors "github.com/maruel/jsonl2tfrecord/internal/errors"
)

// DefaultPageSize is the number of objects requested per listing page.
const DefaultPageSize = 1000

// GCSStore is a Store backed by Google Cloud Storage.
type GCSStore struct {
	client   *storage.Client
	pageSize int
}

// NewGCSStore creates a storage client with Application Default Credentials.
//
// When STORAGE_EMULATOR_HOST is set the client library talks to the emulator
// and no credentials are looked up.
func NewGCSStore(ctx context.Context, pageSize int, opts ...option.ClientOption) (*GCSStore, error) {
	if os.Getenv("STORAGE_EMULATOR_HOST") == "" {
		creds, err := google.FindDefaultCredentials(ctx, storage.ScopeReadWrite)
		if err != nil {
			return nil, fmt.Errorf("failed to find default credentials: %w", err)
		}
		opts = append([]option.ClientOption{option.WithCredentials(creds)}, opts...)
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &GCSStore{client: client, pageSize: pageSize}, nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// Bucket implements Store.
func (s *GCSStore) Bucket(ctx context.Context, name string) (Bucket, error) {
	h := s.client.Bucket(name)
	if _, err := h.Attrs(ctx); err != nil {
		return nil, cverrors.StoreUnavailable(name, err)
	}
	return &gcsBucket{name: name, handle: h, pageSize: s.pageSize}, nil
}

type gcsBucket struct {
	name     string
	handle   *storage.BucketHandle
	pageSize int
}

func (b *gcsBucket) Name() string { return b.name }

func (b *gcsBucket) URI(key string) string { return JoinURI("gs", b.name, key) }

// List pulls one page at a time through an iterator.Pager.
func (b *gcsBucket) List(ctx context.Context, prefix string) iter.Seq2[*Object, error] {
	return func(yield func(*Object, error) bool) {
		q := &storage.Query{Prefix: prefix}
		if err := q.SetAttrSelection([]string{"Name", "Size", "Updated"}); err != nil {
			yield(nil, err)
			return
		}
		pager := iterator.NewPager(b.handle.Objects(ctx, q), b.pageSize, "")
		for {
			var page []*storage.ObjectAttrs
			next, err := pager.NextPage(&page)
			if err != nil {
				yield(nil, fmt.Errorf("failed to list %s: %w", b.URI(prefix), err))
				return
			}
			for _, attrs := range page {
				if strings.HasSuffix(attrs.Name, "/") {
					continue
				}
				if !yield(&Object{Bucket: b, Key: attrs.Name, Size: attrs.Size, Updated: attrs.Updated}, nil) {
					return
				}
			}
			if next == "" {
				return
			}
		}
	}
}

func (b *gcsBucket) Exists(ctx context.Context, key string) (bool, error) {
	if _, err := b.handle.Object(key).Attrs(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", b.URI(key), err)
	}
	return true, nil
}

// NewReader returns the object content as named by its key. Stored bytes are
// fetched without decompressive transcoding, so a .gz key always yields gzip
// data for the caller to decompress. Objects stored with Content-Encoding gzip
// under any other name are decompressed here.
func (b *gcsBucket) NewReader(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := b.handle.Object(key).ReadCompressed(true).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", b.URI(key), err)
	}
	if !gunzipOnRead(key, r.Attrs.ContentEncoding) {
		return r, nil
	}
	zr, err := gzip.NewReader(r)
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("failed to open gzip stream %s: %w", b.URI(key), err)
	}
	return &gunzipReader{Reader: zr, src: r}, nil
}

// gunzipOnRead reports whether stored bytes must be decompressed before they
// match what key describes.
func gunzipOnRead(key, contentEncoding string) bool {
	return strings.EqualFold(contentEncoding, "gzip") && !strings.HasSuffix(key, ".gz")
}

type gunzipReader struct {
	*gzip.Reader
	src io.Closer
}

func (r *gunzipReader) Close() error {
	return errors.Join(r.Reader.Close(), r.src.Close())
}

// NewWriter starts a resumable upload conditioned on the object not existing.
// Uploads are atomic: nothing is visible until Close succeeds.
func (b *gcsBucket) NewWriter(ctx context.Context, key string) (Writer, error) {
	wctx, cancel := context.WithCancel(ctx)
	w := b.handle.Object(key).If(storage.Conditions{DoesNotExist: true}).NewWriter(wctx)
	w.ContentType = "application/octet-stream"
	return &gcsWriter{uri: b.URI(key), w: w, cancel: cancel}, nil
}

type gcsWriter struct {
	uri    string
	w      *storage.Writer
	cancel context.CancelFunc // nil after Close or Abort
}

func (w *gcsWriter) Write(p []byte) (int, error) {
	return w.w.Write(p)
}

func (w *gcsWriter) Close() error {
	if w.cancel == nil {
		return nil
	}
	err := w.w.Close()
	w.cancel()
	w.cancel = nil
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			return fmt.Errorf("%s: %w", w.uri, ErrExist)
		}
		return fmt.Errorf("failed to finalize %s: %w", w.uri, err)
	}
	return nil
}

// Abort cancels the upload context; the storage library then drops the
// upload without creating the object.
func (w *gcsWriter) Abort() error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	w.cancel = nil
	_ = w.w.Close()
	return nil
}
