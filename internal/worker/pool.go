// Package worker fans per-transcript work out across goroutines and
// collects the results in input order. The detection engine uses it to
// extract metadata for every transcript in a project directory at once.
package worker

import (
	"context"
	"runtime"
	"sync"
)

// Result pairs a processed value with its original index.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// Pool runs a function over a batch of inputs on a fixed number of workers.
type Pool[In, Out any] struct {
	concurrency int
}

// NewPool creates a pool. A non-positive concurrency uses runtime.NumCPU().
func NewPool[In, Out any](concurrency int) *Pool[In, Out] {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &Pool[In, Out]{concurrency: concurrency}
}

// Process applies fn to every item and returns one Result per item, in
// input order. Per-item errors are recorded, never fatal. Once ctx is done,
// items not yet started are skipped and carry ctx.Err().
func (p *Pool[In, Out]) Process(ctx context.Context, items []In, fn func(context.Context, In) (Out, error)) []Result[Out] {
	if len(items) == 0 {
		return nil
	}
	workers := min(p.concurrency, len(items))

	jobs := make(chan int, len(items))
	results := make([]Result[Out], len(items))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					results[i] = Result[Out]{Index: i, Err: err}
					continue
				}
				val, err := fn(ctx, items[i])
				results[i] = Result[Out]{Index: i, Value: val, Err: err}
			}
		}()
	}

	for i := range items {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// Values returns the values of the successful results, in order.
func Values[T any](results []Result[T]) []T {
	out := make([]T, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			out = append(out, r.Value)
		}
	}
	return out
}
