// Package fanout distributes row-level pipeline work across workers. Rows in
// a batch share no mutable state, so parse and enrichment can fan out freely;
// results come back in input order.
package fanout

import (
	"context"
	"runtime"
	"sync"
)

// sequentialThreshold keeps small batches on the calling goroutine where the
// pool overhead would dominate.
const sequentialThreshold = 100

// Map applies fn to every input and returns the outputs in input order.
// workers <= 0 means NumCPU. A cancelled context stops feeding work; already
// started items still complete.
func Map[In, Out any](ctx context.Context, workers int, inputs []In, fn func(In) Out) []Out {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	if len(inputs) < sequentialThreshold || workers == 1 {
		outputs := make([]Out, 0, len(inputs))
		for i := range inputs {
			if ctx.Err() != nil {
				break
			}
			outputs = append(outputs, fn(inputs[i]))
		}
		return outputs
	}

	type indexed struct {
		index int
		out   Out
	}

	inputChan := make(chan int, workers)
	resultChan := make(chan indexed, len(inputs))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range inputChan {
				select {
				case resultChan <- indexed{index: i, out: fn(inputs[i])}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(inputChan)
		for i := range inputs {
			select {
			case inputChan <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	collected := make([]indexed, 0, len(inputs))
	for r := range resultChan {
		collected = append(collected, r)
	}

	outputs := make([]Out, len(inputs))
	done := make([]bool, len(inputs))
	for _, r := range collected {
		outputs[r.index] = r.out
		done[r.index] = true
	}

	// Drop gaps left by cancellation so callers never see zero values for
	// unprocessed rows.
	compact := make([]Out, 0, len(inputs))
	for i := range outputs {
		if done[i] {
			compact = append(compact, outputs[i])
		}
	}
	return compact
}
