package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIPWhoisClientLocate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/203.0.113.5" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true, "latitude": 48.85, "longitude": 2.35, "city": "Paris", "country": "France"}`))
	}))
	defer server.Close()

	client := NewIPWhoisClient(server.Client())
	client.baseURL = server.URL + "/"

	record, err := client.Locate(context.Background(), "203.0.113.5")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if !record.HasCoordinates() || *record.Lat != 48.85 || *record.Lon != 2.35 {
		t.Errorf("record = %+v", record)
	}
	if record.City != "Paris" || record.Country != "France" {
		t.Errorf("record = %+v", record)
	}
	if record.Query != "203.0.113.5" {
		t.Errorf("Query = %q", record.Query)
	}
}

func TestIPWhoisClientLatLonFallbackKeys(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"lat": 35.68, "lon": 139.69, "city": "Tokyo", "country": "Japan"}`))
	}))
	defer server.Close()

	client := NewIPWhoisClient(server.Client())
	client.baseURL = server.URL + "/"

	record, err := client.Locate(context.Background(), "198.51.100.1")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if !record.HasCoordinates() || *record.Lat != 35.68 || *record.Lon != 139.69 {
		t.Errorf("record = %+v", record)
	}
}

func TestIPWhoisClientExplicitNoRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "message": "reserved range"}`))
	}))
	defer server.Close()

	client := NewIPWhoisClient(server.Client())
	client.baseURL = server.URL + "/"

	record, err := client.Locate(context.Background(), "10.0.0.1")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if record != nil {
		t.Errorf("record = %+v, want nil for an explicit no-record answer", record)
	}
}

func TestIPWhoisClientCircuitBreakerOpensAfterFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewIPWhoisClient(server.Client())
	client.baseURL = server.URL + "/"

	for i := 0; i < 5; i++ {
		if _, err := client.Locate(context.Background(), "203.0.113.5"); err == nil {
			t.Fatalf("call %d: expected an error", i)
		}
	}

	// Breaker open: the next call must fail without reaching the server.
	requests := 0
	server.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	})
	if _, err := client.Locate(context.Background(), "203.0.113.5"); err == nil {
		t.Fatal("expected circuit breaker error")
	}
	if requests != 0 {
		t.Errorf("breaker let %d requests through", requests)
	}
}
