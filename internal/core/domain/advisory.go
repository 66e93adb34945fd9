package domain

type Source string

const (
	SourceNVD           Source = "NVD"
	SourceCISAKEV       Source = "CISA KEV"
	SourceUSCERT        Source = "US-CERT"
	SourceMalwareBazaar Source = "MalwareBazaar"
	SourceUnknown       Source = "Unknown"
)

// HighTrustSource reports whether advisories from this source are treated as
// alerts regardless of their severity score. CISA KEV lists actively exploited
// vulnerabilities and US-CERT publishes curated alerts, so both qualify.
func HighTrustSource(s Source) bool {
	return s == SourceCISAKEV || s == SourceUSCERT
}

// Advisory is one normalized security-intelligence record. Adapters create
// advisories, the aggregator backfills missing fields, and the record is
// immutable afterwards.
type Advisory struct {
	ID          string   `json:"id"`          // source-scoped identifier (CVE id, content hash)
	Title       string   `json:"title"`       //
	Description string   `json:"description"` //
	Severity    Severity `json:"severity"`    // marshals as the legacy string shape
	Published   string   `json:"published"`   // raw upstream date string, parsed defensively downstream
	Source      Source   `json:"source"`      //
	IOCs        []string `json:"iocs"`        // URLs, IPv4 literals, or bare hostnames
}

// Normalize backfills the defined defaults so every advisory leaving the
// aggregator is structurally complete.
func (a *Advisory) Normalize() {
	if a.Severity.IsZero() {
		a.Severity = UnknownSeverity()
	}
	if a.Source == "" {
		a.Source = SourceUnknown
	}
	if a.IOCs == nil {
		a.IOCs = []string{}
	}
}

// IOCUnion returns the distinct IOC strings across all advisories,
// deduplicated by exact string match. Case and scheme are significant so the
// geolocation cache keys stay aligned with what the adapters emitted.
func IOCUnion(advisories []Advisory) []string {
	seen := make(map[string]bool)
	var union []string
	for _, adv := range advisories {
		for _, ioc := range adv.IOCs {
			if ioc == "" || seen[ioc] {
				continue
			}
			seen[ioc] = true
			union = append(union, ioc)
		}
	}
	return union
}

// GeoRecord is the resolution result for one IOC string. A nil *GeoRecord is
// the negative marker: looked up, nothing found.
type GeoRecord struct {
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
	City    string   `json:"city"`
	Country string   `json:"country"`
	Query   string   `json:"query"` // the IP the geolocation service was asked about
}

// HasCoordinates reports whether the record carries a plottable position.
func (g *GeoRecord) HasCoordinates() bool {
	return g != nil && g.Lat != nil && g.Lon != nil
}
