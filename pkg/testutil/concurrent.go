package testutil

import (
	"sync"
	"sync/atomic"

	dErrors "github.com/oiblz/tally/pkg/domain-errors"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Successes     int32
	Preconditions int32
	Errors        int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Preconditions + r.Errors
}

// RunConcurrent executes fn in parallel goroutines and collects results,
// categorizing errors into success, precondition-failed, or generic error.
// This replaces the common WaitGroup-plus-atomic-counters test pattern.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var wg sync.WaitGroup
	var successes, preconditions, errs atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			err := fn(idx)
			switch {
			case err == nil:
				successes.Add(1)
			case dErrors.HasCode(err, dErrors.CodePrecondition):
				preconditions.Add(1)
			default:
				errs.Add(1)
			}
		}(i)
	}

	wg.Wait()

	return &ConcurrentResult{
		Successes:     successes.Load(),
		Preconditions: preconditions.Load(),
		Errors:        errs.Load(),
	}
}
