package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hive-corporation/spyglass/internal/core/domain"
)

type stubResolver struct {
	got     []string
	records map[string]*domain.GeoRecord
	err     error
}

func (r *stubResolver) Resolve(ctx context.Context, iocs []string) (map[string]*domain.GeoRecord, error) {
	r.got = iocs
	if r.err != nil {
		return nil, r.err
	}
	return r.records, nil
}

func fixedNow() time.Time {
	return time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
}

func TestPipelineRun(t *testing.T) {
	lat, lon := 48.85, 2.35
	provider := &stubProvider{name: domain.SourceNVD, advisories: []domain.Advisory{
		{
			ID:        "CVE-2024-0001",
			Title:     "Critical RCE",
			Severity:  domain.CVSSSeverity(9.8),
			Published: "2024-05-15T09:00:00Z",
			Source:    domain.SourceNVD,
			IOCs:      []string{"203.0.113.5"},
		},
		{
			ID:        "CVE-2024-0002",
			Title:     "Minor issue",
			Severity:  domain.CVSSSeverity(3.1),
			Published: "2024-05-01T09:00:00Z",
			Source:    domain.SourceNVD,
			IOCs:      []string{"203.0.113.5"}, // shared IOC collapses in the union
		},
	}}
	resolver := &stubResolver{records: map[string]*domain.GeoRecord{
		"203.0.113.5": {Lat: &lat, Lon: &lon, City: "Paris", Country: "France"},
	}}

	p := NewPipeline(NewAggregator(provider), resolver)
	p.now = fixedNow

	result, err := p.Run(context.Background(), 25)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Advisories) != 2 {
		t.Fatalf("advisories = %d, want 2", len(result.Advisories))
	}
	if len(result.Alerts) != 1 || result.Alerts[0].ID != "CVE-2024-0001" {
		t.Errorf("alerts = %+v", result.Alerts)
	}
	if result.Summary[domain.SourceNVD] != 2 {
		t.Errorf("summary = %v", result.Summary)
	}

	// The resolver receives the deduplicated IOC union.
	if len(resolver.got) != 1 || resolver.got[0] != "203.0.113.5" {
		t.Errorf("resolver input = %v", resolver.got)
	}
	if !result.Geo["203.0.113.5"].HasCoordinates() {
		t.Error("geo mapping missing the resolved IOC")
	}
	// One marker per advisory carrying the IOC, so a single resolved IOC
	// shared by two advisories plots twice.
	if len(result.Markers) != 2 || result.Markers[0].City != "Paris" {
		t.Errorf("markers = %+v", result.Markers)
	}

	if result.Stats.CreatedToday != 1 || result.Stats.Created30 != 2 {
		t.Errorf("stats = %+v", result.Stats)
	}
	if result.Histogram[9] != 1 || result.Histogram[3] != 1 {
		t.Errorf("histogram = %v", result.Histogram)
	}
}

func TestPipelineRunResolverFailureIsNonFatal(t *testing.T) {
	provider := &stubProvider{name: domain.SourceNVD, advisories: []domain.Advisory{
		{ID: "CVE-2024-0001", Severity: domain.CVSSSeverity(9.8), Source: domain.SourceNVD, IOCs: []string{"203.0.113.5"}},
	}}
	resolver := &stubResolver{err: errors.New("geo service down")}

	p := NewPipeline(NewAggregator(provider), resolver)
	p.now = fixedNow

	result, err := p.Run(context.Background(), 25)
	if err != nil {
		t.Fatalf("a resolver failure must not fail the run: %v", err)
	}
	if len(result.Geo) != 0 {
		t.Errorf("geo = %v, want empty", result.Geo)
	}
	if len(result.Advisories) != 1 || len(result.Alerts) != 1 {
		t.Error("analytics must still be computed without geolocation")
	}
}

func TestPipelineRunNilResolver(t *testing.T) {
	provider := &stubProvider{name: domain.SourceUSCERT, advisories: []domain.Advisory{
		{ID: "https://example.com/a", Source: domain.SourceUSCERT},
	}}

	p := NewPipeline(NewAggregator(provider), nil)
	p.now = fixedNow

	result, err := p.Run(context.Background(), 25)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Geo == nil {
		t.Error("geo must be an empty map, not nil")
	}
}

func TestPipelineRunPropagatesContractViolation(t *testing.T) {
	p := NewPipeline(NewAggregator(&stubProvider{name: domain.SourceNVD}), nil)
	if _, err := p.Run(context.Background(), 0); err == nil {
		t.Fatal("expected an error for a non-positive limit")
	}
}
