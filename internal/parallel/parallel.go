// Package parallel runs independent work items on a bounded worker pool.
package parallel

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Workers returns n if positive, otherwise the number of CPUs.
func Workers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// Map calls fn for every item using at most workers goroutines and returns the
// results in input order. The first error stops new items from starting and is
// returned once running items finish.
func Map[T, R any](items []T, workers int, fn func(i int, item T) (R, error)) ([]R, error) {
	out := make([]R, len(items))

	var g errgroup.Group
	g.SetLimit(Workers(workers))
	failed := make(chan struct{})
	var stop sync.Once
	for i, item := range items {
		select {
		case <-failed:
			return nil, g.Wait()
		default:
		}
		g.Go(func() error {
			r, err := fn(i, item)
			if err != nil {
				stop.Do(func() { close(failed) })
				return err
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Each calls fn for every item, collecting per-item errors instead of stopping.
// errs[i] is the error for items[i], or nil.
func Each[T any](items []T, workers int, fn func(i int, item T) error) (errs []error) {
	errs = make([]error, len(items))

	var g errgroup.Group
	g.SetLimit(Workers(workers))
	for i, item := range items {
		g.Go(func() error {
			errs[i] = fn(i, item)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}
