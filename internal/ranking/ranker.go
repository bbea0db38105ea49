// Package ranking orders normalized items by operational relevance.
//
// The composite score blends five signals: CVSS severity, near-duplicate
// clustering across sources, source trust, recency decay and indicator
// density. Scores are deterministic for a fixed input and a fixed "now";
// the clock is read once per pass, never per item.
package ranking

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rgsec/threatdeck/internal/intel"
)

// Signal weights. Fixed design constants, summing to 1 so the composite
// stays inside [0, 1].
const (
	weightCVSS      = 0.35
	weightDuplicate = 0.25
	weightTrust     = 0.15
	weightRecency   = 0.15
	weightDensity   = 0.10
)

const (
	// titleKeyLen is how much of a lowercased title forms the duplicate
	// bucket key. Truncation tolerates minor trailing variation between
	// outlets reporting the same event.
	titleKeyLen = 50

	// dupSaturation is the bucket size at which the duplicate signal
	// reaches 1.0: five or more near-identical titles.
	dupSaturation = 4.0

	// halfLifeDays is the recency decay half-life.
	halfLifeDays = 7.0

	// staleDays is the elapsed-days sentinel for missing or unparseable
	// timestamps, large enough to decay recency to effectively zero.
	staleDays = 999.0

	// densitySaturation is the indicator count at which density hits 1.0.
	densitySaturation = 5.0
)

// trustedSources are the high-trust feed labels (vulnerability databases
// and national-CERT-style sources). Everything else weighs 0.7.
var trustedSources = map[string]bool{
	"CISA": true,
	"CERT": true,
	"NVD":  true,
}

// Context carries the per-pass state shared by every score computation.
type Context struct {
	Now time.Time
}

// NewContext captures the current UTC time for one ranking pass.
func NewContext() *Context {
	return &Context{Now: time.Now().UTC()}
}

// ScoreAndGroup assigns a composite rank score to every item and returns a
// new slice sorted descending by score. The sort is stable: equal scores
// keep their input order. The input slice is not modified.
func ScoreAndGroup(items []intel.Item) []intel.Item {
	return ScoreAndGroupAt(items, NewContext())
}

// ScoreAndGroupAt is ScoreAndGroup with an explicit clock, for reproducible
// scoring in tests and replays.
func ScoreAndGroupAt(items []intel.Item, ctx *Context) []intel.Item {
	dup := duplicateScores(items)

	scored := make([]intel.Item, len(items))
	for i, it := range items {
		score := weightCVSS*cvssScore(it.CVSSMax) +
			weightDuplicate*dup[it.ID] +
			weightTrust*trustScore(it.Source) +
			weightRecency*recencyScore(it.PublishedAt, ctx.Now) +
			weightDensity*densityScore(it.IOCs)

		scored[i] = it
		scored[i].RankScore = round4(score)
	}

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].RankScore > scored[b].RankScore
	})
	return scored
}

// SelectTop returns the first k items of an already-sorted sequence. A k
// beyond the sequence length returns the whole sequence.
func SelectTop(items []intel.Item, k int) []intel.Item {
	if k < 0 {
		k = 0
	}
	if k > len(items) {
		k = len(items)
	}
	return items[:k]
}

// duplicateScores buckets items by normalized title key and maps each item
// ID to min(1, (bucketSize-1)/4). Independent reports of the same event
// from five or more sources saturate the signal.
func duplicateScores(items []intel.Item) map[string]float64 {
	buckets := make(map[string]int, len(items))
	for _, it := range items {
		buckets[titleKey(it.Title)]++
	}

	scores := make(map[string]float64, len(items))
	for _, it := range items {
		n := buckets[titleKey(it.Title)]
		scores[it.ID] = math.Min(1.0, float64(n-1)/dupSaturation)
	}
	return scores
}

func titleKey(title string) string {
	key := strings.ToLower(title)
	if r := []rune(key); len(r) > titleKeyLen {
		key = string(r[:titleKeyLen])
	}
	return strings.TrimSpace(key)
}

// recencyScore applies exponential decay with a 7-day half-life to the
// time elapsed since publication. A timestamp that fails to parse is
// substituted with the stale sentinel locally; it never propagates.
func recencyScore(publishedAt string, now time.Time) float64 {
	return math.Exp(-math.Ln2 * daysSince(publishedAt, now) / halfLifeDays)
}

// daysSince returns fractional days between publication and now, floored
// at zero for future-dated items.
func daysSince(publishedAt string, now time.Time) float64 {
	t, err := time.Parse(time.RFC3339, publishedAt)
	if err != nil {
		return staleDays
	}
	days := now.Sub(t).Hours() / 24
	return math.Max(days, 0.0)
}

func trustScore(source string) float64 {
	if trustedSources[source] {
		return 1.0
	}
	return 0.7
}

func densityScore(iocs intel.IOCSet) float64 {
	return math.Min(1.0, float64(iocs.Count())/densitySaturation)
}

func cvssScore(cvss float64) float64 {
	return math.Min(math.Max(cvss, 0.0), 10.0) / 10.0
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
