// Package parallel splits index ranges across worker goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Workers is the default worker count used when a caller passes 0.
var Workers = runtime.GOMAXPROCS(0)

// For executes fn over [0, n) in contiguous chunks of at least minChunk
// indices. Each index belongs to exactly one chunk, so fn may write to
// per-index slots without synchronization.
func For(n, minChunk, workers int, fn func(start, end int)) {
	if workers <= 0 {
		workers = Workers
	}
	if minChunk < 1 {
		minChunk = 1
	}
	if n <= minChunk || workers <= 1 {
		fn(0, n)
		return
	}

	if n/minChunk < workers {
		workers = n / minChunk
	}
	if workers < 1 {
		workers = 1
	}

	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}

	wg.Wait()
}
