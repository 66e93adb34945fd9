package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/hive-corporation/spyglass/internal/core/domain"
)

const ipwhoisBaseURL = "https://ipwhois.app/json/"

// IPWhoisClient looks an IPv4 address up against the ipwhois JSON API. The
// HTTP call runs behind a circuit breaker so a dead geolocation service stops
// consuming the per-call timeout for every remaining IOC in a batch. There is
// no retry: a failed lookup degrades to a negative cache entry.
type IPWhoisClient struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	baseURL string
}

func NewIPWhoisClient(client *http.Client) *IPWhoisClient {
	if client == nil {
		client = &http.Client{Timeout: 8 * time.Second}
	}

	settings := gobreaker.Settings{
		Name:        "ipwhois",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			fmt.Printf("⚡ Circuit breaker '%s' changed from %s to %s\n", name, from, to)
		},
	}

	return &IPWhoisClient{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
		baseURL: ipwhoisBaseURL,
	}
}

type ipwhoisResponse struct {
	Success   *bool    `json:"success"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	City      string   `json:"city"`
	Country   string   `json:"country"`
}

// Locate returns the approximate location of one IPv4 address. A nil record
// with a nil error means the service explicitly has no record for the
// address; errors cover transport and decode failures.
func (c *IPWhoisClient) Locate(ctx context.Context, ip string) (*domain.GeoRecord, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.locate(ctx, ip)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return nil, fmt.Errorf("circuit breaker is open: %w", err)
		}
		return nil, err
	}
	return result.(*domain.GeoRecord), nil
}

func (c *IPWhoisClient) locate(ctx context.Context, ip string) (*domain.GeoRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+ip, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query ipwhois: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var data ipwhoisResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode ipwhois json: %w", err)
	}

	// An absent success flag means success; only an explicit false is a
	// "no record" answer.
	if data.Success != nil && !*data.Success {
		return nil, nil
	}

	lat := data.Latitude
	if lat == nil {
		lat = data.Lat
	}
	lon := data.Longitude
	if lon == nil {
		lon = data.Lon
	}

	return &domain.GeoRecord{
		Lat:     lat,
		Lon:     lon,
		City:    data.City,
		Country: data.Country,
		Query:   ip,
	}, nil
}
