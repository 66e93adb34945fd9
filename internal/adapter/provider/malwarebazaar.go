package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hive-corporation/spyglass/internal/core/domain"
)

const malwareBazaarAPIURL = "https://mb-api.abuse.ch/api/v1/"

// MalwareBazaarProvider queries abuse.ch MalwareBazaar for recent malware
// samples via its form-POST JSON API. Samples are raw metadata rather than
// prose, so no IOC extraction is attempted.
type MalwareBazaarProvider struct {
	client  *http.Client
	baseURL string
}

func NewMalwareBazaarProvider(client *http.Client) *MalwareBazaarProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &MalwareBazaarProvider{
		client:  client,
		baseURL: malwareBazaarAPIURL,
	}
}

func (p *MalwareBazaarProvider) Name() string {
	return string(domain.SourceMalwareBazaar)
}

type mbResponse struct {
	Data []mbSample `json:"data"`
}

type mbSample struct {
	SHA256Hash    string `json:"sha256_hash"`
	Signature     string `json:"signature"`
	MalwareFamily string `json:"malware_family"`
	FirstSeen     string `json:"first_seen"`
}

func (p *MalwareBazaarProvider) Fetch(ctx context.Context, maxItems int) ([]domain.Advisory, error) {
	form := url.Values{}
	form.Set("query", "get_recent")
	form.Set("limit", fmt.Sprintf("%d", maxItems))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch malwarebazaar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var data mbResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode malwarebazaar json: %w", err)
	}

	samples := data.Data
	if len(samples) > maxItems {
		samples = samples[:maxItems]
	}

	var advisories []domain.Advisory
	for _, sample := range samples {
		title := sample.SHA256Hash
		if title == "" {
			title = "malware-sample"
		}

		desc := sample.Signature
		if sample.MalwareFamily != "" {
			desc = fmt.Sprintf("%s | family: %s", desc, sample.MalwareFamily)
		}

		advisories = append(advisories, domain.Advisory{
			ID:          title,
			Title:       title,
			Description: desc,
			Severity:    domain.UnknownSeverity(),
			Published:   sample.FirstSeen,
			Source:      domain.SourceMalwareBazaar,
			IOCs:        []string{},
		})
	}

	return advisories, nil
}
