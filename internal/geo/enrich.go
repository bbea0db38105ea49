// Package geo attaches lightweight country/region hints to items.
//
// This is keyword presence over title+summary, not geolocation. The table
// is ordered and has no precedence: a region keyword and a country keyword
// may both fire on the same text, and redundant hints are kept on purpose.
package geo

import (
	"sort"
	"strings"

	"github.com/rgsec/threatdeck/internal/intel"
)

// keyword pairs a search term with the ISO-style code it implies.
type keyword struct {
	term string // matched as a lowercase substring
	code string
}

var keywords = []keyword{
	{"usa", "US"},
	{"united states", "US"},
	{"saudi arabia", "SA"},
	{"saudi", "SA"},
	{"ksa", "SA"},
	{"united arab emirates", "AE"},
	{"uae", "AE"},
	{"united kingdom", "GB"},
	{"uk", "GB"},
	{"china", "CN"},
	{"russia", "RU"},
	{"europe", "EU"},
}

// EnrichAll scans each item's text for geo keywords and unions the hits
// into any hints the source already supplied. It returns a new slice of
// updated item values; the input is left untouched.
func EnrichAll(items []intel.Item) []intel.Item {
	out := make([]intel.Item, len(items))
	for i, it := range items {
		out[i] = it
		out[i].GeoHints = hintsFor(it)
	}
	return out
}

func hintsFor(it intel.Item) []string {
	lower := strings.ToLower(it.Title + " " + it.Summary)

	set := make(map[string]bool, len(it.GeoHints))
	for _, h := range it.GeoHints {
		set[h] = true
	}
	for _, kw := range keywords {
		if strings.Contains(lower, kw.term) {
			set[kw.code] = true
		}
	}

	hints := make([]string, 0, len(set))
	for code := range set {
		hints = append(hints, code)
	}
	sort.Strings(hints)
	return hints
}
