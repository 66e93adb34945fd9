package exporter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hive-corporation/spyglass/internal/core/domain"
)

// STIXExporter renders the IOCs of an advisory set as a STIX 2.1 indicator
// bundle for SIEM ingestion.
type STIXExporter struct{}

func NewSTIXExporter() *STIXExporter {
	return &STIXExporter{}
}

// Export generates a STIX 2.1 bundle with one indicator per distinct IOC.
func (e *STIXExporter) Export(advisories []domain.Advisory) (string, error) {
	bundle := STIXBundle{
		Type:        "bundle",
		ID:          fmt.Sprintf("bundle--%s", uuid.New().String()),
		SpecVersion: "2.1",
		Objects:     []STIXObject{},
	}

	byIOC := advisoryByIOC(advisories)
	for _, ioc := range domain.IOCUnion(advisories) {
		bundle.Objects = append(bundle.Objects, e.convertToSTIX(ioc, byIOC[ioc]))
	}

	jsonData, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal STIX bundle: %w", err)
	}

	return string(jsonData), nil
}

func (e *STIXExporter) convertToSTIX(ioc string, adv domain.Advisory) STIXObject {
	now := time.Now().UTC().Format(time.RFC3339)

	validFrom := now
	if published, ok := domain.ParsePublished(adv.Published); ok {
		validFrom = published.Format(time.RFC3339)
	}

	indicatorTypes := []string{"malicious-activity"}
	if domain.HighTrustSource(adv.Source) {
		indicatorTypes = append(indicatorTypes, "exploited-vulnerability")
	}

	return STIXObject{
		Type:               "indicator",
		SpecVersion:        "2.1",
		ID:                 fmt.Sprintf("indicator--%s", uuid.New().String()),
		Created:            now,
		Modified:           now,
		Name:               fmt.Sprintf("%s: %s", adv.Source, adv.Title),
		Pattern:            buildPattern(ioc),
		PatternType:        "stix",
		ValidFrom:          validFrom,
		IndicatorTypes:     indicatorTypes,
		Confidence:         confidenceFor(adv),
		Labels:             []string{string(adv.Source)},
		ExternalReferences: []ExternalReference{{SourceName: string(adv.Source)}},
	}
}

// buildPattern maps an IOC string to the matching STIX 2.1 observable
// pattern: dotted quads become ipv4-addr, scheme-prefixed strings url,
// everything else domain-name.
func buildPattern(ioc string) string {
	switch {
	case domain.IsIPv4(ioc):
		return fmt.Sprintf("[ipv4-addr:value = '%s']", ioc)
	case strings.Contains(ioc, "://"):
		return fmt.Sprintf("[url:value = '%s']", ioc)
	default:
		return fmt.Sprintf("[domain-name:value = '%s']", ioc)
	}
}

// confidenceFor derives an indicator confidence from the advisory it came
// from: high-trust sources and high severities score higher.
func confidenceFor(adv domain.Advisory) int {
	confidence := 70

	if domain.HighTrustSource(adv.Source) {
		confidence += 15
	}
	if adv.Severity.Numeric() >= domain.AlertThreshold {
		confidence += 10
	}

	if confidence > 100 {
		confidence = 100
	}
	return confidence
}

// advisoryByIOC indexes advisories by IOC, first advisory wins so the
// attribution is stable across runs.
func advisoryByIOC(advisories []domain.Advisory) map[string]domain.Advisory {
	byIOC := make(map[string]domain.Advisory)
	for _, adv := range advisories {
		for _, ioc := range adv.IOCs {
			if _, ok := byIOC[ioc]; !ok {
				byIOC[ioc] = adv
			}
		}
	}
	return byIOC
}

// STIX 2.1 data structures

type STIXBundle struct {
	Type        string       `json:"type"`
	ID          string       `json:"id"`
	SpecVersion string       `json:"spec_version"`
	Objects     []STIXObject `json:"objects"`
}

type STIXObject struct {
	Type               string              `json:"type"`
	SpecVersion        string              `json:"spec_version"`
	ID                 string              `json:"id"`
	Created            string              `json:"created"`
	Modified           string              `json:"modified"`
	Name               string              `json:"name"`
	Pattern            string              `json:"pattern"`
	PatternType        string              `json:"pattern_type"`
	ValidFrom          string              `json:"valid_from"`
	IndicatorTypes     []string            `json:"indicator_types"`
	Confidence         int                 `json:"confidence"`
	Labels             []string            `json:"labels,omitempty"`
	ExternalReferences []ExternalReference `json:"external_references,omitempty"`
}

type ExternalReference struct {
	SourceName string `json:"source_name"`
	URL        string `json:"url,omitempty"`
}
