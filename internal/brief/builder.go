// Package brief turns top-ranked items into SOC-consumable summaries.
//
// The builder prefers a generative-text collaborator behind internal/brain
// and merges whatever it returns, field by field, onto a deterministic
// template. Any collaborator problem (not configured, timed out, errored,
// or unparseable output) lands on the template path. The builder never
// returns fewer briefs than it was given items.
package brief

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rgsec/threatdeck/internal/brain"
	"github.com/rgsec/threatdeck/internal/intel"
	"github.com/rgsec/threatdeck/internal/logging"
)

// Outcome classifies one collaborator round trip. The fallback trigger is
// an explicit branch on this value, not a swallowed exception.
type Outcome int

const (
	// OutcomeOK: collaborator returned parseable briefs (possibly partial).
	OutcomeOK Outcome = iota
	// OutcomeUnavailable: no provider configured, or the call failed /
	// timed out before producing output.
	OutcomeUnavailable
	// OutcomeInvalid: the provider answered but the payload was not usable.
	OutcomeInvalid
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeUnavailable:
		return "unavailable"
	case OutcomeInvalid:
		return "invalid"
	}
	return "unknown"
}

// Truncation budgets. Long free-text fields are clipped before leaving the
// process and after coming back, to bound payload size either way.
const (
	payloadSummaryBudget  = 1500
	fallbackSummaryBudget = 600
	mergedSummaryBudget   = 550

	maxProducts = 4
	maxCVEs     = 5
	maxActions  = 6
)

// Builder produces ranked briefs for a fixed collaborator configuration.
// A nil provider means fallback-only mode; that is the default, not an
// exception path.
type Builder struct {
	provider brain.Provider
	timeout  time.Duration
}

// NewBuilder wires a builder to a provider. Pass nil for fallback-only.
func NewBuilder(provider brain.Provider, timeout time.Duration) *Builder {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Builder{provider: provider, timeout: timeout}
}

// Build returns one brief per input item, order-preserving, along with the
// collaborator outcome for this batch.
func (b *Builder) Build(ctx context.Context, items []intel.Item) ([]intel.RankedBrief, Outcome) {
	briefs := make([]intel.RankedBrief, len(items))
	for i, it := range items {
		briefs[i] = Fallback(it)
	}
	if len(items) == 0 {
		return briefs, OutcomeOK
	}

	if b.provider == nil || !b.provider.Available() {
		return briefs, OutcomeUnavailable
	}

	generated, outcome := b.generate(ctx, items)
	if outcome != OutcomeOK {
		return briefs, outcome
	}

	// Partial responses merge field-by-field; a short list leaves the tail
	// on its fallback.
	for i := range briefs {
		if i < len(generated) {
			briefs[i] = merge(briefs[i], generated[i])
		}
	}
	return briefs, OutcomeOK
}

// generated mirrors the JSON object the collaborator is asked to emit.
type generated struct {
	Title    string   `json:"title"`
	Risk     string   `json:"risk"`
	Summary  string   `json:"summary"`
	Products []string `json:"products"`
	CVEs     []string `json:"cves"`
	Actions  []string `json:"actions"`
}

func (b *Builder) generate(ctx context.Context, items []intel.Item) ([]generated, Outcome) {
	payload, err := json.Marshal(map[string]any{"items": serializeForCollaborator(items)})
	if err != nil {
		return nil, OutcomeInvalid
	}

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	resp, err := b.provider.Generate(callCtx, brain.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   "Use this JSON as your input and follow the instructions above.\n" + string(payload),
	})
	if err != nil {
		// Timeout is treated identically to unavailable.
		logging.Warn("brief collaborator call failed, using fallback", "provider", b.provider.Name(), "error", err)
		return nil, OutcomeUnavailable
	}

	var parsed struct {
		Items []generated `json:"items"`
	}
	if err := json.Unmarshal([]byte(stripFences(resp.Content)), &parsed); err != nil {
		logging.Warn("brief collaborator returned unparseable output", "provider", b.provider.Name(), "error", err)
		return nil, OutcomeInvalid
	}
	return parsed.Items, OutcomeOK
}

const systemPrompt = `You are powering a threat awareness service for SOC analysts.
You receive a JSON array of threat items under the key 'items'.
For EACH item, generate a concise summary that is:
- Focused on what is impacted and how an attacker would abuse it.
- Easy to skim in <3 sentences.
- Free of marketing/fluff.

For each item, output an object with these keys:
- title: short human-readable title (string).
- risk: one of Critical, High, Medium, Low.
- summary: <=3 sentences plain text.
- products: array of up to 4 key affected products/technologies.
- cves: array of up to 5 relevant CVE IDs.
- actions: array of 2-4 short SOC actions (verbs first, imperative).

Return ONLY valid JSON with this shape (no extra commentary):
{ "items": [ { ... }, ... ] }`

// serializeForCollaborator prepares a compact, size-bounded view of each
// item for the outbound prompt.
func serializeForCollaborator(items []intel.Item) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		out = append(out, map[string]any{
			"id":           it.ID,
			"source":       it.Source,
			"title":        it.Title,
			"published_at": it.PublishedAt,
			"cvss_max":     it.CVSSMax,
			"products":     it.Products,
			"cve_list":     it.CVEList,
			"summary":      truncate(it.Summary, payloadSummaryBudget),
			"iocs":         it.IOCs,
		})
	}
	return out
}

// Fallback derives a brief deterministically from the item alone. Note the
// risk tiers: this path tops out at High even though the taxonomy defines
// Critical; only the collaborator can assign the fourth tier.
func Fallback(it intel.Item) intel.RankedBrief {
	title := it.Title
	if title == "" {
		title = "Untitled"
	}

	var risk intel.Risk
	switch {
	case it.CVSSMax >= 9:
		risk = intel.RiskHigh
	case it.CVSSMax >= 7:
		risk = intel.RiskMedium
	default:
		risk = intel.RiskLow
	}

	summary := it.Summary
	if summary == "" {
		products := joinOr(head(it.Products, 3), "General")
		cves := joinOr(head(it.CVEList, 3), "—")
		summary = fmt.Sprintf("%s. Affected: %s. CVEs: %s. Prioritize review and patching if applicable.",
			title, products, cves)
	}

	var actions []string
	if len(it.CVEList) > 0 {
		actions = append(actions, "Review CVEs and apply available patches")
	}
	if len(it.IOCs.Domains) > 0 {
		actions = append(actions, "Blocklist indicator domains in perimeter controls")
	}
	actions = append(actions, "Add detection rule to SIEM/EDR based on indicators")

	return intel.RankedBrief{
		Title:    title,
		Summary:  truncate(summary, fallbackSummaryBudget),
		Risk:     risk,
		Products: head(it.Products, maxProducts),
		CVEs:     head(it.CVEList, maxCVEs),
		Actions:  actions,
	}
}

// merge layers collaborator output over the deterministic base. Empty or
// invalid fields keep the base value.
func merge(base intel.RankedBrief, gen generated) intel.RankedBrief {
	if gen.Title != "" {
		base.Title = gen.Title
	}
	if intel.ValidRisk(gen.Risk) {
		base.Risk = intel.Risk(gen.Risk)
	}
	if gen.Summary != "" {
		base.Summary = shorten(gen.Summary, mergedSummaryBudget)
	}
	if len(gen.Products) > 0 {
		base.Products = head(gen.Products, maxProducts)
	}
	if len(gen.CVEs) > 0 {
		base.CVEs = head(gen.CVEs, maxCVEs)
	}
	if len(gen.Actions) > 0 {
		base.Actions = head(gen.Actions, maxActions)
	}
	return base
}

// stripFences removes a markdown code fence if the model wrapped its JSON
// in one.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func head(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func joinOr(s []string, def string) string {
	if len(s) == 0 {
		return def
	}
	return strings.Join(s, ", ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// shorten truncates with an ellipsis marker.
func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
