package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/hive-corporation/spyglass/internal/core/domain"
)

const kevFeedURL = "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json"

// KEVProvider fetches CISA's Known Exploited Vulnerabilities catalog, a
// static JSON feed.
type KEVProvider struct {
	client  *http.Client
	baseURL string
}

func NewKEVProvider(client *http.Client) *KEVProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &KEVProvider{
		client:  client,
		baseURL: kevFeedURL,
	}
}

func (p *KEVProvider) Name() string {
	return string(domain.SourceCISAKEV)
}

type kevCatalog struct {
	Vulnerabilities []kevEntry `json:"vulnerabilities"`
}

type kevEntry struct {
	CVEID     string `json:"cveID"`
	Notes     string `json:"notes"`
	Severity  string `json:"severity"`
	DateAdded string `json:"dateAdded"`
}

func (p *KEVProvider) Fetch(ctx context.Context, maxItems int) ([]domain.Advisory, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch kev catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var catalog kevCatalog
	if err := json.NewDecoder(resp.Body).Decode(&catalog); err != nil {
		return nil, fmt.Errorf("failed to decode kev json: %w", err)
	}

	entries := catalog.Vulnerabilities
	if len(entries) > maxItems {
		entries = entries[:maxItems]
	}

	var advisories []domain.Advisory
	for _, entry := range entries {
		id := entry.CVEID
		if id == "" {
			id = "N/A"
		}

		advisories = append(advisories, domain.Advisory{
			ID:          id,
			Title:       id,
			Description: strings.TrimSpace(entry.Notes),
			Severity:    domain.LabelSeverity(entry.Severity),
			Published:   entry.DateAdded,
			Source:      domain.SourceCISAKEV,
			IOCs:        notesIOCs(entry.Notes),
		})
	}

	return advisories, nil
}

// notesIOCs pattern-matches URLs and IPv4 literals out of the free-text
// notes field, deduplicated within the advisory.
func notesIOCs(notes string) []string {
	seen := make(map[string]bool)
	iocs := []string{}
	for _, candidate := range append(domain.ExtractURLs(notes), domain.ExtractIPv4s(notes)...) {
		if seen[candidate] {
			continue
		}
		seen[candidate] = true
		iocs = append(iocs, candidate)
	}
	return iocs
}
