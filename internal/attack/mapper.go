// Package attack maps items to adversary technique IDs by keyword heuristic.
//
// Rules are independent and non-exclusive: one item can match several rules,
// each yielding its own mapping. Confidence values are designer-assigned per
// rule, not computed.
package attack

import (
	"strings"

	"github.com/rgsec/threatdeck/internal/intel"
)

const (
	labelLen = 60

	// unknownConfidence is attached to the sentinel mapping emitted when
	// no rule fires, so consumers always get at least one row per item.
	unknownConfidence = 0.3
)

// rule maps a keyword group to a technique with fixed confidence.
type rule struct {
	keywords    []string
	techniqueID string
	confidence  float64
	rationale   string
}

var rules = []rule{
	{
		keywords:    []string{"phish", "social engineering", "credential"},
		techniqueID: "T1566",
		confidence:  0.7,
		rationale:   "phishing / credential harvesting indicators",
	},
	{
		keywords:    []string{"command injection", "rce", "remote code execution"},
		techniqueID: "T1059",
		confidence:  0.8,
		rationale:   "remote command execution patterns",
	},
	{
		keywords:    []string{"brute", "password spray", "credential stuffing"},
		techniqueID: "T1110",
		confidence:  0.6,
		rationale:   "authentication brute-force activity",
	},
	{
		keywords:    []string{"ransom"},
		techniqueID: "T1486",
		confidence:  0.7,
		rationale:   "ransomware / data encryption behavior",
	},
}

// MapTechniques evaluates every rule against each item's lowercased
// title+summary and returns the mappings in item order. Items matching no
// rule get exactly one sentinel mapping with the reserved unknown ID.
func MapTechniques(items []intel.Item) []intel.TechniqueMapping {
	out := make([]intel.TechniqueMapping, 0, len(items))
	for _, it := range items {
		text := strings.ToLower(it.Title + " " + it.Summary)
		label := itemLabel(it.Title)

		matched := false
		for _, r := range rules {
			if r.matches(text) {
				matched = true
				out = append(out, intel.TechniqueMapping{
					ItemLabel:   label,
					TechniqueID: r.techniqueID,
					Confidence:  r.confidence,
					Rationale:   r.rationale,
				})
			}
		}
		if !matched {
			out = append(out, intel.TechniqueMapping{
				ItemLabel:   label,
				TechniqueID: intel.UnknownTechnique,
				Confidence:  unknownConfidence,
				Rationale:   "no heuristic rule hit",
			})
		}
	}
	return out
}

func (r rule) matches(text string) bool {
	for _, kw := range r.keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func itemLabel(title string) string {
	if title == "" {
		return "Untitled"
	}
	if r := []rune(title); len(r) > labelLen {
		return string(r[:labelLen])
	}
	return title
}
