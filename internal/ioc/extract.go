// Package ioc extracts network indicators of compromise from free text.
//
// Pure pattern matching, no validation against live infrastructure. Any
// adapter that wants to backfill indicators from a text blob can call
// Extract directly.
package ioc

import (
	"regexp"
	"strings"

	"github.com/rgsec/threatdeck/internal/intel"
)

var (
	ipPattern     = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	domainPattern = regexp.MustCompile(`\b[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`)
	urlPattern    = regexp.MustCompile(`https?://[^\s]+`)
)

// Extract pulls IP addresses, domains and URLs out of text. Each list
// preserves first-seen order and contains no duplicates. The domain
// pattern also matches dotted quads, so anything that is digits-and-dots
// only is dropped from the domain list.
func Extract(text string) intel.IOCSet {
	return intel.IOCSet{
		IPs:     dedup(ipPattern.FindAllString(text, -1), nil),
		Domains: dedup(domainPattern.FindAllString(text, -1), looksLikeIP),
		URLs:    dedup(urlPattern.FindAllString(text, -1), nil),
	}
}

// dedup keeps the first occurrence of each match, skipping any the reject
// predicate flags.
func dedup(matches []string, reject func(string) bool) []string {
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		if seen[m] {
			continue
		}
		if reject != nil && reject(m) {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

func looksLikeIP(s string) bool {
	stripped := strings.ReplaceAll(s, ".", "")
	if stripped == "" {
		return false
	}
	for _, r := range stripped {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
