package service

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/hive-corporation/spyglass/internal/core/domain"
	"github.com/hive-corporation/spyglass/internal/core/ports"
	"github.com/hive-corporation/spyglass/internal/metrics"
)

// Aggregator fans out to every registered provider and merges the results
// into one structurally complete advisory set. One broken upstream never
// blocks the others: provider errors are logged, counted, and absorbed.
type Aggregator struct {
	providers []ports.AdvisoryProvider
}

func NewAggregator(providers ...ports.AdvisoryProvider) *Aggregator {
	return &Aggregator{providers: providers}
}

// Collect invokes every provider with the same per-source limit and
// concatenates the results in registration order. The only failure mode is a
// non-positive maxItemsPerSource, which is a caller contract violation.
func (a *Aggregator) Collect(ctx context.Context, maxItemsPerSource int) ([]domain.Advisory, error) {
	if maxItemsPerSource <= 0 {
		return nil, fmt.Errorf("maxItemsPerSource must be positive, got %d", maxItemsPerSource)
	}

	results := make([][]domain.Advisory, len(a.providers))

	var wg sync.WaitGroup
	for i, p := range a.providers {
		wg.Add(1)
		go func(i int, p ports.AdvisoryProvider) {
			defer wg.Done()

			advisories, err := p.Fetch(ctx, maxItemsPerSource)
			if err != nil {
				log.Printf("❌ Failed to fetch feed %s: %v", p.Name(), err)
				metrics.RecordFetch(p.Name(), "error")
				return
			}

			metrics.RecordFetch(p.Name(), "success")
			metrics.RecordAdvisories(p.Name(), len(advisories))
			results[i] = advisories
		}(i, p)
	}
	wg.Wait()

	var merged []domain.Advisory
	for _, batch := range results {
		merged = append(merged, batch...)
	}

	for i := range merged {
		merged[i].Normalize()
	}

	return merged, nil
}
