// Package parallel splits row loops across CPU cores once the input is
// large enough for the goroutine overhead to pay off.
package parallel

import (
	"runtime"
	"sync"
)

// DefaultThreshold is the row count at or below which work runs sequentially.
const DefaultThreshold = 1000

// chunks returns the [start, end) ranges Parallelize would use for items.
func chunks(items int) [][2]int {
	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}
	chunkSize := (items + numWorkers - 1) / numWorkers

	out := make([][2]int, 0, numWorkers)
	for start := 0; start < items; start += chunkSize {
		end := start + chunkSize
		if end > items {
			end = items
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

// Parallelize divides items into one contiguous range per CPU core and
// runs fn on each range concurrently.
func Parallelize(items int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, c := range chunks(items) {
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(c[0], c[1])
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn(0, items) inline when items <= threshold
// and falls back to Parallelize otherwise.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// SumWithThreshold accumulates width running sums over items.
//
// fn adds the contribution of rows [start, end) into acc, which always has
// length width. Partial sums are merged in range order, so for a given
// machine the result is deterministic.
func SumWithThreshold(items, threshold, width int, fn func(start, end int, acc []float64)) []float64 {
	total := make([]float64, width)
	if items == 0 {
		return total
	}
	if items <= threshold {
		fn(0, items, total)
		return total
	}

	ranges := chunks(items)
	partial := make([][]float64, len(ranges))
	var wg sync.WaitGroup
	for i, c := range ranges {
		partial[i] = make([]float64, width)
		wg.Add(1)
		go func(i, s, e int) {
			defer wg.Done()
			fn(s, e, partial[i])
		}(i, c[0], c[1])
	}
	wg.Wait()

	for _, p := range partial {
		for k := range total {
			total[k] += p[k]
		}
	}
	return total
}
