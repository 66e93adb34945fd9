package service

import (
	"context"
	"log"
	"time"

	"github.com/hive-corporation/spyglass/internal/core/domain"
	"github.com/hive-corporation/spyglass/internal/core/ports"
	"github.com/hive-corporation/spyglass/internal/metrics"
)

// Result is everything one pipeline run hands to the presentation layer:
// plain data, no behavior attached.
type Result struct {
	Advisories []domain.Advisory            `json:"advisories"`
	Alerts     []domain.Advisory            `json:"alerts"`
	Summary    map[domain.Source]int        `json:"summary"`
	Stats      domain.WindowStats           `json:"cve_stats"`
	Histogram  [10]int                      `json:"cvss_bins"`
	Geo        map[string]*domain.GeoRecord `json:"geo"`
	Markers    []domain.Marker              `json:"markers"`
}

// Pipeline wires the aggregator, the geo resolver and the analytics into one
// run: collect → resolve the IOC union → derive analytics.
type Pipeline struct {
	aggregator *Aggregator
	resolver   ports.IOCResolver

	// now is swappable for tests; defaults to time.Now.
	now func() time.Time
}

func NewPipeline(aggregator *Aggregator, resolver ports.IOCResolver) *Pipeline {
	return &Pipeline{
		aggregator: aggregator,
		resolver:   resolver,
		now:        time.Now,
	}
}

func (p *Pipeline) Run(ctx context.Context, maxItemsPerSource int) (*Result, error) {
	start := p.now()

	advisories, err := p.aggregator.Collect(ctx, maxItemsPerSource)
	if err != nil {
		return nil, err
	}

	geo := map[string]*domain.GeoRecord{}
	if p.resolver != nil {
		resolved, err := p.resolver.Resolve(ctx, domain.IOCUnion(advisories))
		if err != nil {
			log.Printf("❌ IOC resolution failed: %v", err)
		} else {
			geo = resolved
		}
	}

	alerts := domain.Alerts(advisories)
	metrics.RecordAlerts(len(alerts))
	metrics.RecordPipelineDuration(time.Since(start))

	return &Result{
		Advisories: advisories,
		Alerts:     alerts,
		Summary:    domain.SummaryBySource(advisories),
		Stats:      domain.ComputeWindowStats(advisories, p.now()),
		Histogram:  domain.CVSSHistogram(advisories),
		Geo:        geo,
		Markers:    domain.BuildMarkers(advisories, geo),
	}, nil
}
