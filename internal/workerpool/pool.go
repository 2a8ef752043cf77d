// Package workerpool runs indexed tasks with a fixed concurrency cap.
package workerpool

import (
	"context"
	"sync"
)

// Run calls fn(i) for i in [0, n) with at most limit calls in flight and
// waits for all dispatched calls to return. ctx only gates dispatch: once it
// is done no new task starts, running tasks are left to finish, and the
// indices that never started are returned in ascending order.
func Run(ctx context.Context, n, limit int, fn func(i int)) []int {
	if limit < 1 {
		limit = 1
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	var skipped []int

	for i := 0; i < n; i++ {
		acquired := false
		select {
		case sem <- struct{}{}:
			acquired = true
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			if acquired {
				<-sem
			}
			skipped = appendRange(skipped, i, n)
			break
		}

		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(idx)
		}(i)
	}

	wg.Wait()
	return skipped
}

func appendRange(dst []int, from, to int) []int {
	for i := from; i < to; i++ {
		dst = append(dst, i)
	}
	return dst
}
