package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocvss31 "github.com/pandatix/go-cvss/31"
	gocvss40 "github.com/pandatix/go-cvss/40"

	"github.com/hive-corporation/spyglass/internal/core/domain"
)

const nvdAPIURL = "https://services.nvd.nist.gov/rest/json/cves/2.0"

// NVDProvider fetches CVEs modified in the last 24 hours from the NVD 2.0
// REST API.
type NVDProvider struct {
	client  *http.Client
	baseURL string
}

func NewNVDProvider(client *http.Client) *NVDProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &NVDProvider{
		client:  client,
		baseURL: nvdAPIURL,
	}
}

func (p *NVDProvider) Name() string {
	return string(domain.SourceNVD)
}

type nvdResponse struct {
	Vulnerabilities []struct {
		CVE nvdCVE `json:"cve"`
	} `json:"vulnerabilities"`
}

type nvdCVE struct {
	ID           string `json:"id"`
	Published    string `json:"published"`
	Descriptions []struct {
		Lang  string `json:"lang"`
		Value string `json:"value"`
	} `json:"descriptions"`
	Metrics    nvdMetrics `json:"metrics"`
	References []struct {
		URL string `json:"url"`
	} `json:"references"`
}

type nvdMetrics struct {
	CVSSMetricV40 []nvdMetric `json:"cvssMetricV40"`
	CVSSMetricV31 []nvdMetric `json:"cvssMetricV31"`
	CVSSMetricV30 []nvdMetric `json:"cvssMetricV30"`
	CVSSMetricV2  []nvdMetric `json:"cvssMetricV2"`
}

type nvdMetric struct {
	CVSSData struct {
		BaseScore    *float64 `json:"baseScore"`
		VectorString string   `json:"vectorString"`
	} `json:"cvssData"`
}

func (p *NVDProvider) Fetch(ctx context.Context, maxItems int) ([]domain.Advisory, error) {
	now := time.Now().UTC()
	q := url.Values{}
	q.Set("lastModStartDate", now.Add(-24*time.Hour).Format(time.RFC3339))
	q.Set("lastModEndDate", now.Format(time.RFC3339))
	q.Set("resultsPerPage", fmt.Sprintf("%d", maxItems))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch nvd: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var data nvdResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode nvd json: %w", err)
	}

	var advisories []domain.Advisory
	for _, item := range data.Vulnerabilities {
		if len(advisories) >= maxItems {
			break
		}

		cve := item.CVE
		id := cve.ID
		if id == "" {
			id = "N/A"
		}

		desc := englishDescription(cve)

		advisories = append(advisories, domain.Advisory{
			ID:          id,
			Title:       id,
			Description: desc,
			Severity:    severityFromMetrics(cve.Metrics),
			Published:   cve.Published,
			Source:      domain.SourceNVD,
			IOCs:        nvdIOCs(cve, desc),
		})
	}

	return advisories, nil
}

func englishDescription(cve nvdCVE) string {
	for _, d := range cve.Descriptions {
		if d.Lang == "en" {
			return d.Value
		}
	}
	return ""
}

// severityFromMetrics picks one representative base score, preferring the
// newest metric version present. When a block carries only a vector string
// the score is computed from it.
func severityFromMetrics(m nvdMetrics) domain.Severity {
	for _, block := range [][]nvdMetric{m.CVSSMetricV40, m.CVSSMetricV31, m.CVSSMetricV30, m.CVSSMetricV2} {
		if len(block) == 0 {
			continue
		}
		data := block[0].CVSSData
		if data.BaseScore != nil {
			return domain.CVSSSeverity(*data.BaseScore)
		}
		if score, ok := scoreFromVector(data.VectorString); ok {
			return domain.CVSSSeverity(score)
		}
		return domain.UnknownSeverity()
	}
	return domain.UnknownSeverity()
}

func scoreFromVector(vector string) (float64, bool) {
	switch {
	case strings.HasPrefix(vector, "CVSS:4.0"):
		if v, err := gocvss40.ParseVector(vector); err == nil {
			return v.Score(), true
		}
	case strings.HasPrefix(vector, "CVSS:3.1"), strings.HasPrefix(vector, "CVSS:3.0"):
		if v, err := gocvss31.ParseVector(vector); err == nil {
			return v.BaseScore(), true
		}
	}
	return 0, false
}

// nvdIOCs gathers reference-URL hostnames and IPv4 literals found in the
// description, deduplicated within the advisory.
func nvdIOCs(cve nvdCVE, desc string) []string {
	seen := make(map[string]bool)
	iocs := []string{}

	for _, ref := range cve.References {
		host := domain.Host(ref.URL)
		if host == "" || seen[host] {
			continue
		}
		seen[host] = true
		iocs = append(iocs, host)
	}

	for _, ip := range domain.ExtractIPv4s(desc) {
		if seen[ip] {
			continue
		}
		seen[ip] = true
		iocs = append(iocs, ip)
	}

	return iocs
}
