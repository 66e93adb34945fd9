package provider

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"github.com/hive-corporation/spyglass/internal/core/domain"
)

const uscertFeedURL = "https://www.cisa.gov/uscert/ncas/alerts.xml"

// USCERTProvider fetches the US-CERT (CISA NCAS) alert RSS feed. The feed
// carries no severity signal and no indicator text, so advisories come back
// with the default severity and an empty IOC list.
type USCERTProvider struct {
	client  *http.Client
	baseURL string
}

func NewUSCERTProvider(client *http.Client) *USCERTProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &USCERTProvider{
		client:  client,
		baseURL: uscertFeedURL,
	}
}

func (p *USCERTProvider) Name() string {
	return string(domain.SourceUSCERT)
}

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

func (p *USCERTProvider) Fetch(ctx context.Context, maxItems int) ([]domain.Advisory, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch us-cert feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var feed rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to decode rss feed: %w", err)
	}

	items := feed.Channel.Items
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	var advisories []domain.Advisory
	for _, item := range items {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = "No Title"
		}

		// The item link doubles as the identifier when present.
		id := strings.TrimSpace(item.Link)
		if id == "" {
			id = title
		}

		advisories = append(advisories, domain.Advisory{
			ID:          id,
			Title:       title,
			Description: strings.TrimSpace(item.Description),
			Severity:    domain.UnknownSeverity(),
			Published:   strings.TrimSpace(item.PubDate),
			Source:      domain.SourceUSCERT,
			IOCs:        []string{},
		})
	}

	return advisories, nil
}
