package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/maruel/ksid"

	cverrors "github.com/maruel/jsonl2tfrecord/internal/errors"
)

// tmpDirName holds in-flight writes inside each bucket directory. It is hidden
// from List.
const tmpDirName = ".tmp"

// LocalStore maps containers to the directories directly under Root.
type LocalStore struct {
	Root   string
	Scheme string
}

// NewLocalStore returns a LocalStore using the "file" scheme.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{Root: root, Scheme: "file"}
}

// Bucket implements Store.
func (s *LocalStore) Bucket(_ context.Context, name string) (Bucket, error) {
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return nil, cverrors.StoreUnavailable(name, errors.New("invalid directory name"))
	}
	dir := filepath.Join(s.Root, name)
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, cverrors.StoreUnavailable(name, err)
	}
	if !fi.IsDir() {
		return nil, cverrors.StoreUnavailable(name, fmt.Errorf("%s is not a directory", dir))
	}
	return &localBucket{scheme: s.Scheme, name: name, dir: dir}, nil
}

type localBucket struct {
	scheme string
	name   string
	dir    string
}

func (b *localBucket) Name() string { return b.name }

func (b *localBucket) URI(key string) string { return JoinURI(b.scheme, b.name, key) }

// path converts key to a file path inside the bucket, rejecting keys that
// would escape it.
func (b *localBucket) path(key string) (string, error) {
	if !fs.ValidPath(key) || key == "." {
		return "", fmt.Errorf("invalid key %q", key)
	}
	if key == tmpDirName || strings.HasPrefix(key, tmpDirName+"/") {
		return "", fmt.Errorf("reserved key %q", key)
	}
	return filepath.Join(b.dir, filepath.FromSlash(key)), nil
}

func (b *localBucket) List(ctx context.Context, prefix string) iter.Seq2[*Object, error] {
	return func(yield func(*Object, error) bool) {
		stopped := false
		err := filepath.WalkDir(b.dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			rel, err := filepath.Rel(b.dir, p)
			if err != nil {
				return err
			}
			key := filepath.ToSlash(rel)
			if d.IsDir() {
				if key == "." {
					return nil
				}
				// Only descend into directories that can hold keys with prefix.
				dirKey := key + "/"
				if key == tmpDirName || !(strings.HasPrefix(dirKey, prefix) || strings.HasPrefix(prefix, dirKey)) {
					return fs.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || !strings.HasPrefix(key, prefix) {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			if !yield(&Object{Bucket: b, Key: key, Size: fi.Size(), Updated: fi.ModTime()}, nil) {
				stopped = true
				return fs.SkipAll
			}
			return nil
		})
		if err != nil && !stopped {
			yield(nil, fmt.Errorf("failed to list %s: %w", b.URI(prefix), err))
		}
	}
}

func (b *localBucket) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p, err := b.path(key)
	if err != nil {
		return false, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return fi.Mode().IsRegular(), nil
}

func (b *localBucket) NewReader(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := b.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p) //nolint:gosec // G304: key is validated by path()
}

// NewWriter creates a temp file under the bucket's tmp directory. Close
// hard-links it to the final location, which fails if the key already exists.
func (b *localBucket) NewWriter(ctx context.Context, key string) (Writer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := b.path(key)
	if err != nil {
		return nil, err
	}
	tmpDir := filepath.Join(b.dir, tmpDirName)
	if err := os.MkdirAll(tmpDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create tmp directory: %w", err)
	}
	tmpPath := filepath.Join(tmpDir, ksid.NewID().String()+"-"+path.Base(key)+".tmp")
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644) //nolint:gosec // G304: path is generated
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	return &localWriter{uri: b.URI(key), file: f, tmpPath: tmpPath, finalPath: p}, nil
}

type localWriter struct {
	uri       string
	file      *os.File // nil after Close or Abort
	tmpPath   string
	finalPath string
}

func (w *localWriter) Write(p []byte) (int, error) {
	if w.file == nil {
		return 0, fs.ErrClosed
	}
	return w.file.Write(p)
}

func (w *localWriter) Close() error {
	if w.file == nil {
		return fs.ErrClosed
	}
	err := w.file.Close()
	w.file = nil
	if err != nil {
		return errors.Join(fmt.Errorf("failed to close temp file: %w", err), os.Remove(w.tmpPath))
	}
	if err := os.MkdirAll(filepath.Dir(w.finalPath), 0o750); err != nil {
		return errors.Join(fmt.Errorf("failed to create directory for %s: %w", w.uri, err), os.Remove(w.tmpPath))
	}
	if err := os.Link(w.tmpPath, w.finalPath); err != nil {
		if errors.Is(err, fs.ErrExist) {
			err = fmt.Errorf("%s: %w", w.uri, ErrExist)
		} else {
			err = fmt.Errorf("failed to move %s to final location: %w", w.uri, err)
		}
		return errors.Join(err, os.Remove(w.tmpPath))
	}
	if err := os.Remove(w.tmpPath); err != nil {
		return fmt.Errorf("failed to remove temp file: %w", err)
	}
	return nil
}

func (w *localWriter) Abort() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return errors.Join(err, os.Remove(w.tmpPath))
}
