package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hive-corporation/spyglass/internal/core/domain"
)

const nvdSingleRecord = `{
  "vulnerabilities": [
    {
      "cve": {
        "id": "CVE-2024-12345",
        "published": "2024-05-01T10:00:00.000",
        "descriptions": [
          {"lang": "es", "value": "descripcion en espanol"},
          {"lang": "en", "value": "Remote code execution. Exploited from 203.0.113.5 in the wild."}
        ],
        "metrics": {
          "cvssMetricV31": [
            {"cvssData": {"baseScore": 9.8, "vectorString": "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H"}}
          ],
          "cvssMetricV2": [
            {"cvssData": {"baseScore": 10.0}}
          ]
        },
        "references": []
      }
    }
  ]
}`

func newNVDServer(t *testing.T, body string) (*httptest.Server, *NVDProvider) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(body)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)

	p := NewNVDProvider(srv.Client())
	p.baseURL = srv.URL
	return srv, p
}

func TestNVDFetchSingleRecord(t *testing.T) {
	_, p := newNVDServer(t, nvdSingleRecord)

	advisories, err := p.Fetch(context.Background(), 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(advisories) != 1 {
		t.Fatalf("got %d advisories, want 1", len(advisories))
	}

	adv := advisories[0]

	if adv.ID != "CVE-2024-12345" || adv.Title != "CVE-2024-12345" {
		t.Errorf("unexpected id/title: %q / %q", adv.ID, adv.Title)
	}
	if adv.Source != domain.SourceNVD {
		t.Errorf("source = %q", adv.Source)
	}

	// English description wins over the other languages.
	if adv.Description != "Remote code execution. Exploited from 203.0.113.5 in the wild." {
		t.Errorf("description = %q", adv.Description)
	}

	// Newest metric version wins: v3.1 base score, rendered in the legacy shape.
	if adv.Severity.String() != "CVSS 9.8" {
		t.Errorf("severity = %q, want CVSS 9.8", adv.Severity.String())
	}

	// The IPv4 literal in the description becomes an IOC.
	if len(adv.IOCs) != 1 || adv.IOCs[0] != "203.0.113.5" {
		t.Errorf("iocs = %v, want [203.0.113.5]", adv.IOCs)
	}

	// And the advisory flows through the analytics as an alert in bucket 9.
	if len(domain.Alerts(advisories)) != 1 {
		t.Error("expected the advisory to classify as an alert")
	}
	if bins := domain.CVSSHistogram(advisories); bins[9] != 1 {
		t.Errorf("expected histogram bucket 9, got %v", bins)
	}
}

func TestNVDSeverityFromVectorOnly(t *testing.T) {
	body := `{
  "vulnerabilities": [
    {
      "cve": {
        "id": "CVE-2024-11111",
        "descriptions": [{"lang": "en", "value": "x"}],
        "metrics": {
          "cvssMetricV31": [
            {"cvssData": {"vectorString": "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H"}}
          ]
        }
      }
    }
  ]
}`
	_, p := newNVDServer(t, body)

	advisories, err := p.Fetch(context.Background(), 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(advisories) != 1 {
		t.Fatalf("got %d advisories, want 1", len(advisories))
	}

	sev := advisories[0].Severity
	if sev.Scale != domain.ScaleCVSS {
		t.Fatalf("expected a CVSS severity computed from the vector, got %+v", sev)
	}
	if sev.Score != 9.8 {
		t.Errorf("vector AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H scores 9.8, got %v", sev.Score)
	}
}

func TestNVDReferenceHostsAndDedup(t *testing.T) {
	body := `{
  "vulnerabilities": [
    {
      "cve": {
        "id": "CVE-2024-22222",
        "descriptions": [{"lang": "en", "value": "see 198.51.100.7 and again 198.51.100.7"}],
        "metrics": {},
        "references": [
          {"url": "https://advisories.example.com:8443/a"},
          {"url": "https://advisories.example.com/b"}
        ]
      }
    }
  ]
}`
	_, p := newNVDServer(t, body)

	advisories, err := p.Fetch(context.Background(), 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	want := []string{"advisories.example.com", "198.51.100.7"}
	got := advisories[0].IOCs
	if len(got) != len(want) {
		t.Fatalf("iocs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("iocs[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if advisories[0].Severity.String() != "Unknown" {
		t.Errorf("no metrics means Unknown severity, got %q", advisories[0].Severity.String())
	}
}

func TestNVDMaxItemsBound(t *testing.T) {
	body := `{
  "vulnerabilities": [
    {"cve": {"id": "CVE-1", "descriptions": [], "metrics": {}}},
    {"cve": {"id": "CVE-2", "descriptions": [], "metrics": {}}},
    {"cve": {"id": "CVE-3", "descriptions": [], "metrics": {}}}
  ]
}`
	_, p := newNVDServer(t, body)

	advisories, err := p.Fetch(context.Background(), 2)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(advisories) != 2 {
		t.Errorf("adapter must not exceed maxItems: got %d", len(advisories))
	}
}

func TestNVDUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewNVDProvider(srv.Client())
	p.baseURL = srv.URL

	if _, err := p.Fetch(context.Background(), 5); err == nil {
		t.Error("expected an error on non-200 upstream status")
	}
}
