package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hive-corporation/spyglass/internal/core/domain"
	"github.com/hive-corporation/spyglass/internal/core/service"
)

type fixedProvider struct {
	advisories []domain.Advisory
	gotLimit   int
}

func (p *fixedProvider) Fetch(ctx context.Context, maxItems int) ([]domain.Advisory, error) {
	p.gotLimit = maxItems
	return p.advisories, nil
}

func (p *fixedProvider) Name() string { return string(domain.SourceNVD) }

func newTestHandler(p *fixedProvider) *RestHandler {
	return NewRestHandler(service.NewPipeline(service.NewAggregator(p), nil))
}

func TestHealth(t *testing.T) {
	h := newTestHandler(&fixedProvider{})

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
}

func TestAdvisories(t *testing.T) {
	p := &fixedProvider{advisories: []domain.Advisory{
		{ID: "CVE-2024-0001", Title: "One", Source: domain.SourceNVD, Severity: domain.CVSSSeverity(5.0)},
	}}
	h := newTestHandler(p)

	rec := httptest.NewRecorder()
	h.Advisories(rec, httptest.NewRequest(http.MethodGet, "/api/v1/advisories", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if p.gotLimit != defaultAdvisoryLimit {
		t.Errorf("limit = %d, want %d", p.gotLimit, defaultAdvisoryLimit)
	}

	var advisories []domain.Advisory
	if err := json.Unmarshal(rec.Body.Bytes(), &advisories); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(advisories) != 1 || advisories[0].ID != "CVE-2024-0001" {
		t.Errorf("advisories = %+v", advisories)
	}
}

func TestAdvisoriesLimitParam(t *testing.T) {
	p := &fixedProvider{}
	h := newTestHandler(p)

	rec := httptest.NewRecorder()
	h.Advisories(rec, httptest.NewRequest(http.MethodGet, "/api/v1/advisories?limit=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if p.gotLimit != 5 {
		t.Errorf("limit = %d, want 5", p.gotLimit)
	}

	for _, bad := range []string{"abc", "0", "-3"} {
		rec := httptest.NewRecorder()
		h.Advisories(rec, httptest.NewRequest(http.MethodGet, "/api/v1/advisories?limit="+bad, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%q: status = %d, want 400", bad, rec.Code)
		}
	}
}

func TestDashboard(t *testing.T) {
	p := &fixedProvider{advisories: []domain.Advisory{
		{ID: "CVE-2024-0001", Title: "Critical", Source: domain.SourceNVD, Severity: domain.CVSSSeverity(9.8)},
	}}
	h := newTestHandler(p)

	rec := httptest.NewRecorder()
	h.Dashboard(rec, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if p.gotLimit != dashboardLimit {
		t.Errorf("limit = %d, want %d", p.gotLimit, dashboardLimit)
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"advisories", "alerts", "summary", "cve_stats", "cvss_bins", "geo", "markers"} {
		if _, ok := body[key]; !ok {
			t.Errorf("dashboard payload missing %q", key)
		}
	}
}

func TestFeed(t *testing.T) {
	p := &fixedProvider{advisories: []domain.Advisory{
		{ID: "CVE-2024-0001", Title: "Critical", Source: domain.SourceNVD, IOCs: []string{"203.0.113.5"}},
	}}
	h := newTestHandler(p)

	rec := httptest.NewRecorder()
	h.Feed(rec, httptest.NewRequest(http.MethodGet, "/api/v1/feed?format=stix", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var bundle struct {
		Type    string            `json:"type"`
		Objects []json.RawMessage `json:"objects"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &bundle); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if bundle.Type != "bundle" || len(bundle.Objects) != 1 {
		t.Errorf("bundle = %+v", bundle)
	}
}

func TestFeedRejectsUnknownFormat(t *testing.T) {
	h := newTestHandler(&fixedProvider{})

	for _, target := range []string{"/api/v1/feed", "/api/v1/feed?format=csv"} {
		rec := httptest.NewRecorder()
		h.Feed(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}
