package domain

import (
	"net/url"
	"regexp"
	"strings"
)

// IOC extraction shared by the source adapters and the geo resolver. The two
// sides must recognize exactly the same substrings, otherwise the geolocation
// cache keys drift away from what the adapters emit.

var (
	urlPattern = regexp.MustCompile(`https?://[^\s,;]+`)
	// Permissive on purpose: 999.999.999.999 matches. Consumers tolerate
	// invalid-looking addresses; DNS/geolocation simply fails on them.
	ipv4Pattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	ipv4Exact   = regexp.MustCompile(`^(?:\d{1,3}\.){3}\d{1,3}$`)
)

// ExtractURLs returns the scheme-prefixed tokens found in free text, each
// running up to whitespace or one of the delimiters `,` `;`.
func ExtractURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// ExtractIPv4s returns the dotted-quad substrings found in free text.
func ExtractIPv4s(text string) []string {
	return ipv4Pattern.FindAllString(text, -1)
}

// IsIPv4 reports whether the whole string is a dotted quad. Like
// ExtractIPv4s it performs no range validation.
func IsIPv4(s string) bool {
	return ipv4Exact.MatchString(s)
}

// Host resolves an IOC string to a bare host. Strings carrying a scheme
// separator are parsed as URLs and reduced to their hostname (port stripped);
// anything else is returned unchanged. Returns "" when URL parsing fails.
func Host(ioc string) string {
	if !strings.Contains(ioc, "://") {
		return ioc
	}
	u, err := url.Parse(ioc)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
