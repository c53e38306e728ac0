package objstore

import (
	"context"
	"io"
	"iter"

	"golang.org/x/time/rate"
)

// Throttle returns a Bucket that waits on l before each store request. Pass
// the same limiter to several buckets to make them share one budget. A nil
// limiter returns b unchanged.
func Throttle(b Bucket, l *rate.Limiter) Bucket {
	if l == nil {
		return b
	}
	return &throttledBucket{Bucket: b, limiter: l}
}

type throttledBucket struct {
	Bucket
	limiter *rate.Limiter
}

// List waits once before the listing starts. Page fetches inside the
// listing are not throttled individually.
func (b *throttledBucket) List(ctx context.Context, prefix string) iter.Seq2[*Object, error] {
	return func(yield func(*Object, error) bool) {
		if err := b.limiter.Wait(ctx); err != nil {
			yield(nil, err)
			return
		}
		for o, err := range b.Bucket.List(ctx, prefix) {
			if o != nil {
				// Reads of listed objects go through the throttled bucket too.
				o.Bucket = b
			}
			if !yield(o, err) {
				return
			}
		}
	}
}

func (b *throttledBucket) Exists(ctx context.Context, key string) (bool, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return false, err
	}
	return b.Bucket.Exists(ctx, key)
}

func (b *throttledBucket) NewReader(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return b.Bucket.NewReader(ctx, key)
}

func (b *throttledBucket) NewWriter(ctx context.Context, key string) (Writer, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return b.Bucket.NewWriter(ctx, key)
}
