// Package normalize maps raw adapter records into the canonical Item shape.
//
// Every field is defensively defaulted: a malformed timestamp, a missing ID
// or a junk severity value never aborts the pipeline. Normalization is a
// fixed point on already-canonical data, so re-normalizing an Item's Raw()
// view yields the same Item.
package normalize

import (
	"math"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/google/uuid"

	"github.com/rgsec/threatdeck/internal/intel"
)

const unknownSource = "UNKNOWN"

// Normalize converts one raw record into a canonical Item. The ID falls
// back through id -> url -> title; a record with none of those gets a
// generated UUID so every Item leaves here with a non-empty ID.
func Normalize(raw intel.RawItem) intel.Item {
	id := raw.ID
	if id == "" {
		id = raw.URL
	}
	if id == "" {
		id = raw.Title
	}
	if id == "" {
		id = uuid.NewString()
	}

	source := raw.Source
	if source == "" {
		source = unknownSource
	}

	published := raw.PublishedAt
	if published == "" {
		published = time.Now().UTC().Format(time.RFC3339)
	}

	return intel.Item{
		ID:          id,
		Source:      source,
		PublishedAt: CanonicalTime(published),
		Title:       StripHTML(raw.Title),
		Summary:     StripHTML(raw.Summary),
		CVEList:     emptyIfNil(raw.CVEList),
		CVSSMax:     coerceCVSS(raw.CVSSMax),
		IOCs: intel.IOCSet{
			IPs:     emptyIfNil(raw.IOCs.IPs),
			Domains: emptyIfNil(raw.IOCs.Domains),
			URLs:    emptyIfNil(raw.IOCs.URLs),
		},
		Products:  emptyIfNil(raw.Products),
		MitreTTPs: emptyIfNil(raw.MitreTTPs),
		GeoHints:  emptyIfNil(raw.GeoHints),
	}
}

// All normalizes a batch, preserving input order. Pure function, no shared
// state between calls.
func All(raws []intel.RawItem) []intel.Item {
	items := make([]intel.Item, 0, len(raws))
	for _, raw := range raws {
		items = append(items, Normalize(raw))
	}
	return items
}

// StripHTML extracts the text nodes from a markup fragment. Script and
// style content is removed, tags never leak through partially. Plain text
// passes through with only whitespace trimming.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// CanonicalTime coerces an arbitrary timestamp representation to RFC 3339
// UTC. Unparseable input is passed through unchanged; the ranking engine
// treats it as maximally stale rather than erroring.
func CanonicalTime(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return trimmed
	}
	// Already canonical; reparsing would be a no-op.
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return t.UTC().Format(time.RFC3339)
	}
	t, err := dateparse.ParseAny(trimmed)
	if err != nil {
		return s
	}
	return t.UTC().Format(time.RFC3339)
}

// coerceCVSS clamps severity into [0, 10]. NaN and infinities collapse to
// 0.0, which downstream scoring reads as low/unknown severity.
func coerceCVSS(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0.0
	}
	if v > 10 {
		return 10.0
	}
	return v
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
