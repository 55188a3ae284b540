package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/san-kum/cablefea/internal/dynamo"
)

// Factory builds the i-th independent system of an ensemble.
type Factory func(i int) (*dynamo.System, error)

// Ensemble runs independent systems concurrently, one goroutine each.
// Systems share nothing, so no locking is needed.
type Ensemble struct {
	factory Factory
	numRuns int
	metrics func() []Metric
}

func NewEnsemble(factory Factory, numRuns int) *Ensemble {
	return &Ensemble{factory: factory, numRuns: numRuns}
}

// WithMetrics sets a constructor for the per-run metric set.
func (e *Ensemble) WithMetrics(fn func() []Metric) *Ensemble {
	e.metrics = fn
	return e
}

func (e *Ensemble) Run(ctx context.Context, cfg Config) ([]*Result, error) {
	results := make([]*Result, e.numRuns)
	errs := make([]error, e.numRuns)

	var wg sync.WaitGroup
	for i := 0; i < e.numRuns; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			sys, err := e.factory(idx)
			if err != nil {
				errs[idx] = fmt.Errorf("run %d: %w", idx, err)
				return
			}

			sim := New(sys)
			if e.metrics != nil {
				for _, m := range e.metrics() {
					sim.AddMetric(m)
				}
			}

			results[idx], errs[idx] = sim.Run(ctx, cfg)
			if errs[idx] != nil {
				errs[idx] = fmt.Errorf("run %d: %w", idx, errs[idx])
			}
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}

	return results, nil
}
