package baseline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// newErrgroup returns a bounded errgroup; excess tasks queue until a worker
// slot frees up.
func newErrgroup(ctx context.Context, limit int) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	return g, gctx
}

// batched splits items into chunks of size n; the last chunk may be shorter.
func batched[T any](items []T, n int) [][]T {
	if n <= 0 {
		n = 1
	}
	var chunks [][]T
	for start := 0; start < len(items); start += n {
		end := start + n
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
