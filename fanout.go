package xogen

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// FanOut runs fn once per completion index for backends that return a single
// completion per call. At most limit calls run at once; limit <= 0 means no
// limit.
//
// Results are returned in index order. The first failure cancels the
// remaining calls and the whole batch is discarded.
func FanOut(ctx context.Context, n, limit int, fn func(ctx context.Context, i int) (Tokens, error)) ([]Tokens, error) {
	if n < 1 {
		return nil, fmt.Errorf("fan out: n must be at least 1, got %d", n)
	}

	out := make([]Tokens, n)
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i := 0; i < n; i++ {
		g.Go(func() error {
			t, err := fn(gctx, i)
			if err != nil {
				return err
			}
			out[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
