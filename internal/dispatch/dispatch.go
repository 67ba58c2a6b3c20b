// Package dispatch runs independent page work items with bounded parallelism
// while keeping results in submission order. Result[i] always corresponds to
// items[i] no matter which goroutine finishes first, so downstream ordering
// (group sort, manifest writes) never depends on scheduling.
package dispatch

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// Result pairs one work item's output with its error. Exactly one of the two
// is meaningful.
type Result[R any] struct {
	Value R
	Err   error
}

// Run executes fn over every item and returns one result per item, indexed by
// submission order. limit bounds the number of in-flight items; a limit <= 0
// uses GOMAXPROCS. Every item runs to completion: a failing item neither
// cancels nor reorders the others, and there is no batch timeout.
func Run[T any, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) (R, error)) []Result[R] {
	if len(items) == 0 {
		return nil
	}
	if limit < 1 {
		limit = runtime.GOMAXPROCS(0)
	}
	if limit > len(items) {
		limit = len(items)
	}

	sem := make(chan struct{}, limit)
	results := make([]Result[R], len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			v, err := fn(ctx, item)
			results[i] = Result[R]{Value: v, Err: err}
		}(i, item)
	}
	wg.Wait()
	return results
}

// Collect unzips results into their values and a single joined error covering
// every failed item. Values of failed items are zero and must not be used
// when err is non-nil.
func Collect[R any](results []Result[R]) ([]R, error) {
	values := make([]R, len(results))
	var errs []error
	for i, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
			continue
		}
		values[i] = r.Value
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return values, nil
}
