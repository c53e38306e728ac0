// Converts one JSONL object into one TFRecord object.

package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/maruel/jsonl2tfrecord/internal/feature"
	"github.com/maruel/jsonl2tfrecord/internal/jsonl"
	"github.com/maruel/jsonl2tfrecord/internal/objstore"
	"github.com/maruel/jsonl2tfrecord/internal/tfrecord"
)

// Result describes the outcome of one transcoded object.
type Result struct {
	// Skipped is true when the output already existed and nothing was written.
	Skipped  bool          `json:"skipped"`
	Records  int           `json:"records"`
	Bytes    int64         `json:"bytes"`
	Duration time.Duration `json:"duration"`
}

// Transcoder writes JSONL rows as tf.train.Example records.
type Transcoder struct {
	Compression  tfrecord.Compression
	MaxLineBytes int
	Progress     ProgressReporter
}

func (t *Transcoder) progress() ProgressReporter {
	if t.Progress == nil {
		return NullProgress{}
	}
	return t.Progress
}

// Transcode converts the JSONL object in into a TFRecord object at key in
// out. The input is only fetched when the output does not exist yet. Inputs
// named with a .gz or .zst suffix are decompressed.
func (t *Transcoder) Transcode(ctx context.Context, in *objstore.Object, out objstore.Bucket, key string) (Result, error) {
	if skip, err := t.skip(ctx, out, key); skip || err != nil {
		return Result{Skipped: skip}, err
	}
	rc, err := in.Open(ctx)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = rc.Close() }()
	src, err := jsonl.Decompress(rc, in.Key)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = src.Close() }()
	return t.write(ctx, src, out, key)
}

// TranscodeReader converts the JSONL content of src into a TFRecord object at
// key in out.
func (t *Transcoder) TranscodeReader(ctx context.Context, src io.Reader, out objstore.Bucket, key string) (Result, error) {
	if skip, err := t.skip(ctx, out, key); skip || err != nil {
		return Result{Skipped: skip}, err
	}
	return t.write(ctx, src, out, key)
}

func (t *Transcoder) skip(ctx context.Context, out objstore.Bucket, key string) (bool, error) {
	exists, err := out.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if exists {
		slog.InfoContext(ctx, "Output exists, skipping", "uri", out.URI(key))
		t.progress().OnSkip(out.URI(key))
	}
	return exists, nil
}

func (t *Transcoder) write(ctx context.Context, src io.Reader, out objstore.Bucket, key string) (Result, error) {
	start := time.Now()
	uri := out.URI(key)
	w, err := out.NewWriter(ctx, key)
	if err != nil {
		return Result{}, err
	}
	tw := tfrecord.NewWriter(w, t.Compression)
	if err = t.copyRows(ctx, src, tw, uri); err == nil {
		err = tw.Close()
	}
	if err != nil {
		return Result{}, errors.Join(err, w.Abort())
	}
	if err := w.Close(); err != nil {
		if errors.Is(err, objstore.ErrExist) {
			// Another run created the output between the check and the commit.
			slog.WarnContext(ctx, "Output appeared while writing, skipping", "uri", uri)
			t.progress().OnSkip(uri)
			return Result{Skipped: true}, nil
		}
		return Result{}, err
	}
	r := Result{Records: tw.Records(), Bytes: tw.Bytes(), Duration: time.Since(start)}
	slog.InfoContext(ctx, "Wrote", "uri", uri, "records", r.Records, "bytes", r.Bytes, "duration", r.Duration.Round(time.Millisecond))
	t.progress().OnFileDone(uri, r)
	return r, nil
}

func (t *Transcoder) copyRows(ctx context.Context, src io.Reader, tw *tfrecord.Writer, uri string) error {
	p := t.progress()
	r := jsonl.NewReader(src, t.MaxLineBytes)
	for rec, err := range r.Records() {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := feature.FromJSONFields(rec.Fields)
		if err != nil {
			return fmt.Errorf("line %d: %w", rec.Line, err)
		}
		if err := tw.WriteExample(row); err != nil {
			return err
		}
		p.OnRecord(uri, tw.Records())
	}
	return nil
}
