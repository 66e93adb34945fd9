package domain

import (
	"strings"
	"time"
)

// AlertThreshold is the numeric severity at or above which an advisory
// classifies as an alert.
const AlertThreshold = 7.0

// Alerts returns the advisories that qualify as alerts: numeric severity of
// at least AlertThreshold, or a high-trust source. Severities without digits
// read as 0 and never qualify on the numeric criterion.
func Alerts(advisories []Advisory) []Advisory {
	var alerts []Advisory
	for _, adv := range advisories {
		if adv.Severity.Numeric() >= AlertThreshold || HighTrustSource(adv.Source) {
			alerts = append(alerts, adv)
		}
	}
	return alerts
}

// SummaryBySource counts advisories grouped by source.
func SummaryBySource(advisories []Advisory) map[Source]int {
	summary := make(map[Source]int)
	for _, adv := range advisories {
		summary[adv.Source]++
	}
	return summary
}

// WindowStats holds the time-windowed creation counts. The Updated counters
// are reserved and always zero: no adapter currently supplies an update
// timestamp.
type WindowStats struct {
	CreatedToday int `json:"created_today"`
	Created7     int `json:"created_7"`
	Created30    int `json:"created_30"`
	UpdatedToday int `json:"updated_today"`
	Updated7     int `json:"updated_7"`
	Updated30    int `json:"updated_30"`
}

// publishedLayouts covers the upstream date shapes: ISO-8601 with and without
// a zone marker or fractional seconds (NVD, MalwareBazaar), a bare date
// (CISA KEV dateAdded), and RFC-822 feed dates (US-CERT RSS).
var publishedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
}

// ParsePublished parses an advisory's published field defensively. The zero
// time and false mean the value contributes to no time window.
func ParsePublished(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ComputeWindowStats counts advisories published today, within the last 7
// days, and within the last 30 days, all inclusive and therefore nested: an
// advisory published today counts in all three.
func ComputeWindowStats(advisories []Advisory, now time.Time) WindowStats {
	var stats WindowStats
	today := civilDate(now.UTC())
	cut7 := today.AddDate(0, 0, -7)
	cut30 := today.AddDate(0, 0, -30)

	for _, adv := range advisories {
		published, ok := ParsePublished(adv.Published)
		if !ok {
			continue
		}
		day := civilDate(published)
		if day.Equal(today) {
			stats.CreatedToday++
		}
		if !day.Before(cut7) {
			stats.Created7++
		}
		if !day.Before(cut30) {
			stats.Created30++
		}
	}
	return stats
}

// CVSSHistogram buckets CVSS-scaled severities by truncated score, clamped to
// [0, 9]; a 9.8 lands in bucket 9. Advisories without a CVSS severity do not
// contribute.
func CVSSHistogram(advisories []Advisory) [10]int {
	var bins [10]int
	for _, adv := range advisories {
		if adv.Severity.Scale != ScaleCVSS {
			continue
		}
		idx := int(adv.Severity.Score)
		if idx < 0 {
			idx = 0
		}
		if idx > 9 {
			idx = 9
		}
		bins[idx]++
	}
	return bins
}

// Marker joins one advisory IOC with its resolved location, ready for a map
// layer to plot.
type Marker struct {
	IOC     string  `json:"ioc"`
	Title   string  `json:"title"`
	Source  Source  `json:"source"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	City    string  `json:"city"`
	Country string  `json:"country"`
}

// BuildMarkers pairs every advisory IOC with its GeoRecord, skipping IOCs
// that resolved negatively or without coordinates.
func BuildMarkers(advisories []Advisory, geo map[string]*GeoRecord) []Marker {
	var markers []Marker
	for _, adv := range advisories {
		for _, ioc := range adv.IOCs {
			record := geo[ioc]
			if !record.HasCoordinates() {
				continue
			}
			markers = append(markers, Marker{
				IOC:     ioc,
				Title:   adv.Title,
				Source:  adv.Source,
				Lat:     *record.Lat,
				Lon:     *record.Lon,
				City:    record.City,
				Country: record.Country,
			})
		}
	}
	return markers
}

func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
