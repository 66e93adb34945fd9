package geo

import (
	"context"
	"log"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hive-corporation/spyglass/internal/core/domain"
	"github.com/hive-corporation/spyglass/internal/core/ports"
	"github.com/hive-corporation/spyglass/internal/metrics"
)

// courtesyDelay is the pause after each successful external geolocation call,
// keeping the aggregate request rate inside the service's implicit limits.
const courtesyDelay = 800 * time.Millisecond

// Locator is the external geolocation lookup for one IPv4 address. A nil
// record with a nil error is the explicit "no record" answer.
type Locator interface {
	Locate(ctx context.Context, ip string) (*domain.GeoRecord, error)
}

// HostResolver is the DNS capability the resolver needs; *net.Resolver
// satisfies it.
type HostResolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
}

// Resolver maps IOC strings to approximate locations through the persistent
// cache. External calls are strictly sequential: the courtesy delay is a
// deliberate throttling policy, so lookups must not be parallelized even
// though the feed adapters are.
type Resolver struct {
	cache   ports.GeoCache
	locator Locator
	dns     HostResolver
	delay   time.Duration

	// mu serializes the load-modify-persist sequence; the cache is a
	// single-writer resource across concurrent batches.
	mu sync.Mutex
}

func NewResolver(cache ports.GeoCache, locator Locator) *Resolver {
	return &Resolver{
		cache:   cache,
		locator: locator,
		dns:     net.DefaultResolver,
		delay:   courtesyDelay,
	}
}

// Resolve looks every distinct input IOC up, cache first. After the call
// every input appears exactly once in the result and in the cache, either as
// a GeoRecord or as a negative entry. A single IOC's failure never aborts the
// batch, and a cache persistence failure is logged without discarding the
// in-memory results.
func (r *Resolver) Resolve(ctx context.Context, iocs []string) (map[string]*domain.GeoRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.cache.Load(ctx)
	if err != nil {
		log.Printf("⚠️  Geo cache load failed, starting empty: %v", err)
		entries = map[string]*domain.GeoRecord{}
	}
	if entries == nil {
		entries = map[string]*domain.GeoRecord{}
	}

	results := make(map[string]*domain.GeoRecord)
	for _, key := range distinctSorted(iocs) {
		if cached, ok := entries[key]; ok {
			results[key] = cached
			metrics.RecordGeoLookup("cache_hit")
			continue
		}

		ip := lookupTarget(ctx, r.dns, key)
		if ip == "" {
			entries[key] = nil
			results[key] = nil
			metrics.RecordGeoLookup("dns_failure")
			continue
		}

		record, err := r.locator.Locate(ctx, ip)
		if err != nil {
			log.Printf("⚠️  Geolocation lookup failed for %s (%s): %v", key, ip, err)
			metrics.RecordGeoLookup("error")
			record = nil
		}

		entries[key] = record
		results[key] = record

		if record != nil {
			metrics.RecordGeoLookup("resolved")
			// Courtesy delay only after a successful external call;
			// cache hits and DNS-only failures cost the service nothing.
			time.Sleep(r.delay)
		} else if err == nil {
			metrics.RecordGeoLookup("negative")
		}
	}

	if err := r.cache.Save(ctx, entries); err != nil {
		log.Printf("⚠️  Geo cache save failed: %v", err)
	}

	return results, nil
}

// lookupTarget turns an IOC into the IPv4 address to geolocate: a dotted
// quad passes through, anything else is reduced to a host and resolved via
// DNS. Returns "" when no address can be derived.
func lookupTarget(ctx context.Context, dns HostResolver, ioc string) string {
	if domain.IsIPv4(ioc) {
		return ioc
	}

	host := domain.Host(ioc)
	if host == "" {
		host = ioc
	}

	addrs, err := dns.LookupIP(ctx, "ip4", host)
	if err != nil || len(addrs) == 0 {
		return ""
	}
	return addrs[0].String()
}

// distinctSorted trims, deduplicates and sorts the input so the processing
// order is deterministic.
func distinctSorted(iocs []string) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, ioc := range iocs {
		key := strings.TrimSpace(ioc)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
