// Package main is the entry point for the tfrecord-dump CLI tool.
//
// tfrecord-dump prints the tf.train.Example records of TFRecord objects as
// JSON lines, one object per record, so converted output can be compared with
// its JSONL input.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/maruel/jsonl2tfrecord/internal/feature"
	"github.com/maruel/jsonl2tfrecord/internal/objstore"
	"github.com/maruel/jsonl2tfrecord/internal/tfrecord"
)

// exitInterrupted is the exit status of a run stopped by SIGINT or SIGTERM.
const exitInterrupted = 130

func main() {
	if err := run(); err != nil {
		os.Exit(report(os.Stderr, err))
	}
}

// report prints err and returns the process exit status.
func report(w io.Writer, err error) int {
	if errors.Is(err, context.Canceled) {
		_, _ = fmt.Fprintf(w, "tfrecord-dump: interrupted: %v\n", err)
		return exitInterrupted
	}
	_, _ = fmt.Fprintf(w, "tfrecord-dump: %v\n", err)
	return 1
}

func run() error {
	compression := flag.String("compression", "none", "TFRecord compression (none, gzip, zlib)")
	limit := flag.Int("limit", 0, "Maximum records printed per object (0=all)")
	localRoot := flag.String("local-root", ".", "Root directory served as file://<dir>/...")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: tfrecord-dump [flags] <uri>...\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		return errors.New("at least one URI is required")
	}
	c, err := tfrecord.ParseCompression(*compression)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	mux := objstore.NewMux()
	mux.Handle("file", objstore.NewLocalStore(*localRoot))
	for _, uri := range flag.Args() {
		if scheme, _, _, err := objstore.SplitURI(uri); err == nil && scheme == "gs" {
			gcs, err := objstore.NewGCSStore(ctx, 0)
			if err != nil {
				return err
			}
			defer func() { _ = gcs.Close() }()
			mux.Handle("gs", gcs)
			break
		}
	}

	out := bufio.NewWriter(os.Stdout)
	defer func() { _ = out.Flush() }()
	for _, uri := range flag.Args() {
		if err := dump(ctx, out, mux, uri, c, *limit); err != nil {
			return fmt.Errorf("%s: %w", uri, err)
		}
	}
	return nil
}

func dump(ctx context.Context, w io.Writer, mux *objstore.Mux, uri string, c tfrecord.Compression, limit int) error {
	b, key, err := mux.Resolve(ctx, uri)
	if err != nil {
		return err
	}
	rc, err := b.NewReader(ctx, key)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	r, err := tfrecord.NewReader(rc, c)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()
	n := 0
	var line []byte
	for data, err := range r.Records() {
		if err != nil {
			return fmt.Errorf("record %d: %w", n, err)
		}
		row, err := tfrecord.ParseExample(data)
		if err != nil {
			return fmt.Errorf("record %d: %w", n, err)
		}
		if line, err = appendRow(line[:0], row); err != nil {
			return err
		}
		if _, err := w.Write(line); err != nil {
			return err
		}
		if n++; limit > 0 && n >= limit {
			break
		}
	}
	return nil
}

// appendRow formats row as a JSON object followed by a newline. Single-value
// lists print as a string, others as an array of strings.
func appendRow(b []byte, row feature.Row) ([]byte, error) {
	m := orderedmap.New[string, any]()
	for _, f := range row {
		list, ok := f.Value.(feature.BytesList)
		if !ok {
			return nil, fmt.Errorf("feature %q: unsupported kind %s", f.Name, f.Value.Kind())
		}
		if len(list) == 1 {
			m.Set(f.Name, string(list[0]))
			continue
		}
		values := make([]string, len(list))
		for i, v := range list {
			values[i] = string(v)
		}
		m.Set(f.Name, values)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	b = append(b, data...)
	return append(b, '\n'), nil
}
