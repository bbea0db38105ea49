package intel

// RawItem is the minimal structural contract every fetch adapter must
// produce. All fields are optional; the normalizer defaults anything
// missing. Adapters never hand the pipeline arbitrary maps.
type RawItem struct {
	ID          string   `json:"id,omitempty"`
	URL         string   `json:"url,omitempty"`
	Source      string   `json:"source,omitempty"`
	PublishedAt string   `json:"published_at,omitempty"`
	Title       string   `json:"title,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	CVEList     []string `json:"cve_list,omitempty"`
	CVSSMax     float64  `json:"cvss_max,omitempty"`
	IOCs        IOCSet   `json:"iocs,omitempty"`
	Products    []string `json:"products,omitempty"`
	MitreTTPs   []string `json:"mitre_ttps,omitempty"`
	GeoHints    []string `json:"geo_hints,omitempty"`
}

// Item is the canonical threat record that flows through the pipeline.
// Created by the normalizer, enriched by the geo enricher and the ranking
// engine, read-only for every consumer after that.
type Item struct {
	ID          string   `json:"id"`
	Source      string   `json:"source"`
	PublishedAt string   `json:"published_at"` // RFC 3339 when parseable, raw otherwise
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	CVEList     []string `json:"cve_list"`
	CVSSMax     float64  `json:"cvss_max"` // 0.0 means low/unknown severity, not "missing"
	IOCs        IOCSet   `json:"iocs"`
	Products    []string `json:"products"`
	MitreTTPs   []string `json:"mitre_ttps"`
	GeoHints    []string `json:"geo_hints"`
	RankScore   float64  `json:"rank_score,omitempty"` // set by ranking.ScoreAndGroup
}

// Raw reinterprets a normalized item as adapter input. Normalization is a
// fixed point on canonical data, so Normalize(item.Raw()) == item.
func (it Item) Raw() RawItem {
	return RawItem{
		ID:          it.ID,
		Source:      it.Source,
		PublishedAt: it.PublishedAt,
		Title:       it.Title,
		Summary:     it.Summary,
		CVEList:     it.CVEList,
		CVSSMax:     it.CVSSMax,
		IOCs:        it.IOCs,
		Products:    it.Products,
		MitreTTPs:   it.MitreTTPs,
		GeoHints:    it.GeoHints,
	}
}

// IOCSet is a bag of network indicators. Each list is deduplicated within a
// single extraction, not across items.
type IOCSet struct {
	IPs     []string `json:"ips"`
	Domains []string `json:"domains"`
	URLs    []string `json:"urls"`
}

// Count returns the total number of indicators in the set.
func (s IOCSet) Count() int {
	return len(s.IPs) + len(s.Domains) + len(s.URLs)
}

// Empty reports whether the set carries no indicators at all.
func (s IOCSet) Empty() bool {
	return s.Count() == 0
}

// Risk is the four-tier severity taxonomy used by briefs.
type Risk string

const (
	RiskLow      Risk = "Low"
	RiskMedium   Risk = "Medium"
	RiskHigh     Risk = "High"
	RiskCritical Risk = "Critical"
)

// ValidRisk reports whether s is one of the four risk tiers.
func ValidRisk(s string) bool {
	switch Risk(s) {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// RankedBrief is the SOC-consumable condensed view of one ranked item.
// It is derived from an Item and never mutates it.
type RankedBrief struct {
	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	Risk     Risk     `json:"risk"`
	Products []string `json:"products"` // at most 4
	CVEs     []string `json:"cves"`     // at most 5
	Actions  []string `json:"actions"`
}

// TechniqueMapping associates an item with an adversary technique ID.
// Zero-or-more real mappings per item; exactly one UnknownTechnique
// sentinel when no rule fires.
type TechniqueMapping struct {
	ItemLabel   string  `json:"item"`
	TechniqueID string  `json:"technique_id"`
	Confidence  float64 `json:"confidence"`
	Rationale   string  `json:"rationale"`
}

// UnknownTechnique is the reserved ID emitted when no mapping rule matches.
const UnknownTechnique = "TTP-UNKNOWN"
