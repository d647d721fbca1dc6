// Package parallel splits batch work over query points across goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// DefaultThreshold is the minimum batch size to use parallel processing.
// Below this, single-threaded is faster due to goroutine overhead.
const DefaultThreshold = 64

// workChunk represents a range of points for a worker to process.
type workChunk struct {
	start, end int
}

// Pool runs a function over index ranges. The zero value is not usable; use
// NewPool. A Pool holds no goroutines between calls and may be shared.
type Pool struct {
	numWorkers int
	threshold  int
}

// NewPool returns a pool with the given worker count (0 = GOMAXPROCS) and
// parallel threshold (0 = DefaultThreshold).
func NewPool(workers, threshold int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Pool{numWorkers: workers, threshold: threshold}
}

// Serial is a pool that always runs on the calling goroutine.
var Serial = &Pool{numWorkers: 1, threshold: 1}

// Workers returns the number of workers the pool uses for large batches.
func (p *Pool) Workers() int { return p.numWorkers }

// Range calls fn over [0, n) split into contiguous chunks. worker is in
// [0, Workers()) and identifies the goroutine so callers can keep per-worker
// scratch space. Range returns when every chunk is done.
func (p *Pool) Range(n int, fn func(start, end, worker int)) {
	if n <= 0 {
		return
	}
	if p.numWorkers == 1 || n < p.threshold {
		fn(0, n, 0)
		return
	}

	workers := p.numWorkers
	if workers > n {
		workers = n
	}
	chunkSize := (n + workers - 1) / workers

	workChan := make(chan workChunk, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for chunk := range workChan {
				fn(chunk.start, chunk.end, worker)
			}
		}(w)
	}
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		workChan <- workChunk{start: start, end: end}
	}
	close(workChan)
	wg.Wait()
}

// Errors collects per-index failures from a Range call and reports the one
// with the lowest index, so the result does not depend on scheduling.
type Errors struct {
	mu    sync.Mutex
	index int
	err   error
}

// Set records err for index i if it precedes any failure seen so far.
func (e *Errors) Set(i int, err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err == nil || i < e.index {
		e.index, e.err = i, err
	}
}

// Err returns the recorded error with the lowest index, or nil.
func (e *Errors) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}
