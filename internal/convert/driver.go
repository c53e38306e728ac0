// Lists input objects and converts each one.

package convert

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/maruel/jsonl2tfrecord/internal/objstore"
	"github.com/maruel/jsonl2tfrecord/internal/tfrecord"
)

// Driver runs one batch conversion.
type Driver struct {
	Config   Config
	Stores   *objstore.Mux
	Progress ProgressReporter
}

// Run converts every input object under Config.InputURI. Objects whose output
// already exists are skipped, so an interrupted run can be restarted.
//
// With Parallelism 1, objects are converted one after the other in listing
// order and the first failure stops the batch. With a higher Parallelism the
// first failure cancels the objects in flight.
func (d *Driver) Run(ctx context.Context) (*Stats, error) {
	start := time.Now()
	cfg := d.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	comp, err := tfrecord.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	progress := d.Progress
	if progress == nil {
		progress = NullProgress{}
	}
	in, inPrefix, err := d.Stores.Resolve(ctx, cfg.InputURI)
	if err != nil {
		return nil, err
	}
	out, outPrefix, err := d.Stores.Resolve(ctx, cfg.OutputPrefix)
	if err != nil {
		return nil, err
	}
	if cfg.QPS > 0 {
		// Shared by both buckets so the limit applies to the store as a whole.
		l := rate.NewLimiter(rate.Limit(cfg.QPS), max(1, int(math.Ceil(cfg.QPS))))
		in = objstore.Throttle(in, l)
		out = objstore.Throttle(out, l)
	}
	t := &Transcoder{Compression: comp, MaxLineBytes: cfg.MaxLineBytes, Progress: progress}
	slog.InfoContext(ctx, "Converting", "input", cfg.InputURI, "output", cfg.OutputPrefix, "compression", comp, "parallelism", cfg.Parallelism, "dry_run", cfg.DryRun)

	stats := &Stats{}
	var mu sync.Mutex
	convertOne := func(ctx context.Context, obj *objstore.Object, key string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		r, err := t.Transcode(ctx, obj, out, key)
		if err != nil {
			err = fmt.Errorf("%s: %w", obj.URI(), err)
			progress.OnError(err)
			return err
		}
		mu.Lock()
		stats.add(r)
		mu.Unlock()
		return nil
	}

	// Sequential runs convert inline so listing stops at the first failure.
	// Parallel runs hand objects to the errgroup, which blocks while
	// Parallelism objects are in flight.
	var g *errgroup.Group
	gctx := ctx
	if cfg.Parallelism > 1 {
		g, gctx = errgroup.WithContext(ctx)
		g.SetLimit(cfg.Parallelism)
	}
	var runErr error
	for obj, err := range in.List(gctx, inPrefix) {
		if err != nil {
			runErr = err
			break
		}
		mu.Lock()
		stats.Listed++
		mu.Unlock()
		name, ok := OutputName(obj.Key, cfg.InputSuffix, cfg.OutputSuffix)
		if !ok {
			slog.WarnContext(ctx, "Ignoring object without input suffix", "uri", obj.URI(), "suffix", cfg.InputSuffix)
			progress.OnIgnore(obj.URI(), "no "+cfg.InputSuffix+" suffix")
			mu.Lock()
			stats.Ignored++
			mu.Unlock()
			continue
		}
		key := JoinPrefix(outPrefix, name)
		if cfg.DryRun {
			slog.InfoContext(ctx, "Would convert", "src", obj.URI(), "dst", out.URI(key))
			mu.Lock()
			stats.Planned++
			mu.Unlock()
			continue
		}
		if g == nil {
			if runErr = convertOne(ctx, obj, key); runErr != nil {
				break
			}
			continue
		}
		g.Go(func() error { return convertOne(gctx, obj, key) })
		if gctx.Err() != nil {
			break
		}
	}
	if g != nil {
		// The first worker error takes precedence over the listing error it
		// caused by canceling gctx.
		if err := g.Wait(); err != nil {
			runErr = err
		}
	}
	stats.Duration = time.Since(start)
	if runErr != nil {
		return stats, runErr
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	slog.InfoContext(ctx, "Done", "listed", stats.Listed, "converted", stats.Converted, "skipped", stats.Skipped, "ignored", stats.Ignored, "records", stats.Records, "duration", stats.Duration.Round(time.Millisecond))
	progress.OnComplete(*stats)
	return stats, nil
}
