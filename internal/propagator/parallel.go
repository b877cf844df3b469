package propagator

import (
	"sync"

	"github.com/san-kum/cascade/internal/dfloat"
)

// ParallelFor executes fn over disjoint index ranges covering [0, n)
// concurrently, the same work-stealing-free fixed-partition shape as
// internal/dynamo/parallel.go's ParallelFor in the teacher, generalized
// to accept the worker count explicitly instead of a hardcoded default
// (the Driver passes the count set by driver.WithWorkers, spec.md §5
// "work-stealing task pool over ranges of particles").
func ParallelFor(n, minChunk, workers int, fn func(start, end int)) {
	if n <= 0 {
		return
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
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// Result is the per-particle propagation outcome for one superstep.
type Result struct {
	Data  StepData
	Event *TerminalEvent
}

// PropagateAll fans PropagateOne out over every particle (spec.md
// §4.6 step 2, "Propagator fills s_data for all particles"). It
// propagates every state it is given; the Driver leaves disabled
// particles (radius-inactive is irrelevant here; only a prior terminal
// event disables a particle) out of states before calling it.
func (p *Propagator) PropagateAll(states [][6]float64, pars [][]float64, tBegin dfloat.T, deltaT float64, workers int) []Result {
	n := len(states)
	results := make([]Result, n)

	ParallelFor(n, 512, workers, func(start, end int) {
		for i := start; i < end; i++ {
			data, ev := p.PropagateOne(i, states[i], pars[i], tBegin, deltaT)
			results[i] = Result{Data: data, Event: ev}
		}
	})

	return results
}
