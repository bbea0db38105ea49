package brief

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rgsec/threatdeck/internal/brain"
	"github.com/rgsec/threatdeck/internal/intel"
)

// fakeProvider scripts collaborator behavior for tests.
type fakeProvider struct {
	content   string
	err       error
	available bool
}

func (f *fakeProvider) Name() string    { return "fake" }
func (f *fakeProvider) Available() bool { return f.available }
func (f *fakeProvider) Generate(ctx context.Context, req brain.Request) (brain.Response, error) {
	if f.err != nil {
		return brain.Response{}, f.err
	}
	return brain.Response{Content: f.content, Model: "fake-1"}, nil
}

func sampleItems(n int) []intel.Item {
	items := make([]intel.Item, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, intel.Item{
			ID:      fmt.Sprintf("it-%d", i),
			Title:   fmt.Sprintf("Incident %d", i),
			Summary: "observed in the wild",
		})
	}
	return items
}

func TestFallbackRiskTiers(t *testing.T) {
	tests := []struct {
		cvss float64
		want intel.Risk
	}{
		{9.5, intel.RiskHigh},
		{9.0, intel.RiskHigh},
		{7.2, intel.RiskMedium},
		{6.9, intel.RiskLow},
		{0.0, intel.RiskLow},
	}
	for _, tt := range tests {
		got := Fallback(intel.Item{Title: "x", CVSSMax: tt.cvss}).Risk
		if got != tt.want {
			t.Errorf("cvss %.1f: expected %s, got %s", tt.cvss, tt.want, got)
		}
	}
}

func TestFallbackNeverCritical(t *testing.T) {
	// The deterministic path tops out at High; Critical is reachable only
	// through the collaborator. Intentional asymmetry, kept visible here.
	got := Fallback(intel.Item{Title: "x", CVSSMax: 10.0}).Risk
	if got == intel.RiskCritical {
		t.Error("deterministic fallback must not assign Critical")
	}
	if got != intel.RiskHigh {
		t.Errorf("expected High at cvss 10, got %s", got)
	}
}

func TestFallbackActions(t *testing.T) {
	it := intel.Item{
		Title:   "Ransomware hits Acme Corp",
		CVSSMax: 9.5,
		Source:  "NVD",
		IOCs:    intel.IOCSet{Domains: []string{"evil.example"}},
	}

	b := Fallback(it)

	if b.Risk != intel.RiskHigh {
		t.Errorf("expected High risk, got %s", b.Risk)
	}
	joined := strings.Join(b.Actions, "|")
	if !strings.Contains(joined, "Blocklist") {
		t.Errorf("domain present, expected blocklist action: %v", b.Actions)
	}
	if !strings.Contains(b.Actions[len(b.Actions)-1], "detection rule") {
		t.Errorf("detection-rule action must always close the list: %v", b.Actions)
	}
	// No CVEs on this item, so no patch action.
	if strings.Contains(joined, "Review CVEs") {
		t.Errorf("no CVEs, patch action should be absent: %v", b.Actions)
	}
}

func TestFallbackGeneratedSummary(t *testing.T) {
	it := intel.Item{
		Title:    "Router flaw",
		Products: []string{"RouterOS"},
		CVEList:  []string{"CVE-2025-1111"},
	}

	b := Fallback(it)

	for _, want := range []string{"Router flaw", "RouterOS", "CVE-2025-1111"} {
		if !strings.Contains(b.Summary, want) {
			t.Errorf("generated summary missing %q: %q", want, b.Summary)
		}
	}
}

func TestBuildFallbackOnlyMode(t *testing.T) {
	builder := NewBuilder(nil, time.Second)

	briefs, outcome := builder.Build(context.Background(), sampleItems(3))

	if len(briefs) != 3 {
		t.Fatalf("expected 3 briefs, got %d", len(briefs))
	}
	if outcome != OutcomeUnavailable {
		t.Errorf("nil provider should report unavailable, got %s", outcome)
	}
}

func TestBuildProviderError(t *testing.T) {
	builder := NewBuilder(&fakeProvider{available: true, err: errors.New("boom")}, time.Second)

	briefs, outcome := builder.Build(context.Background(), sampleItems(2))

	if len(briefs) != 2 {
		t.Fatalf("expected 2 briefs, got %d", len(briefs))
	}
	if outcome != OutcomeUnavailable {
		t.Errorf("provider error should report unavailable, got %s", outcome)
	}
}

func TestBuildUnparseableOutput(t *testing.T) {
	builder := NewBuilder(&fakeProvider{available: true, content: "sorry, here's prose"}, time.Second)

	briefs, outcome := builder.Build(context.Background(), sampleItems(2))

	if len(briefs) != 2 {
		t.Fatalf("expected 2 briefs, got %d", len(briefs))
	}
	if outcome != OutcomeInvalid {
		t.Errorf("prose output should report invalid, got %s", outcome)
	}
}

func TestBuildMergesCollaboratorFields(t *testing.T) {
	content := `{"items":[{"title":"Acme ransomware intrusion","risk":"Critical","actions":["Isolate affected hosts"]}]}`
	builder := NewBuilder(&fakeProvider{available: true, content: content}, time.Second)

	items := []intel.Item{{ID: "a", Title: "original", Summary: "base summary", CVSSMax: 5.0}}
	briefs, outcome := builder.Build(context.Background(), items)

	if outcome != OutcomeOK {
		t.Fatalf("expected ok, got %s", outcome)
	}
	b := briefs[0]
	if b.Title != "Acme ransomware intrusion" {
		t.Errorf("collaborator title should win: %q", b.Title)
	}
	if b.Risk != intel.RiskCritical {
		t.Errorf("collaborator may assign Critical: %s", b.Risk)
	}
	// Fields the collaborator omitted keep their fallback values.
	if b.Summary != "base summary" {
		t.Errorf("omitted summary must stay on fallback: %q", b.Summary)
	}
	if len(b.Actions) != 1 || b.Actions[0] != "Isolate affected hosts" {
		t.Errorf("collaborator actions should win: %v", b.Actions)
	}
}

func TestBuildBackfillsShortResponse(t *testing.T) {
	// Two items submitted, one result returned: the tail is backfilled.
	content := `{"items":[{"title":"only one"}]}`
	builder := NewBuilder(&fakeProvider{available: true, content: content}, time.Second)

	briefs, outcome := builder.Build(context.Background(), sampleItems(3))

	if outcome != OutcomeOK {
		t.Fatalf("expected ok, got %s", outcome)
	}
	if len(briefs) != 3 {
		t.Fatalf("must never return fewer briefs than items: got %d", len(briefs))
	}
	if briefs[0].Title != "only one" {
		t.Errorf("first brief should carry collaborator title, got %q", briefs[0].Title)
	}
	if briefs[1].Title != "Incident 1" || briefs[2].Title != "Incident 2" {
		t.Errorf("tail should be deterministic fallback: %q, %q", briefs[1].Title, briefs[2].Title)
	}
}

func TestBuildRejectsBogusRisk(t *testing.T) {
	content := `{"items":[{"risk":"Catastrophic"}]}`
	builder := NewBuilder(&fakeProvider{available: true, content: content}, time.Second)

	briefs, _ := builder.Build(context.Background(), []intel.Item{{Title: "x", CVSSMax: 9.5}})

	if briefs[0].Risk != intel.RiskHigh {
		t.Errorf("invalid risk tier must keep fallback value, got %s", briefs[0].Risk)
	}
}

func TestBuildFencedJSON(t *testing.T) {
	content := "```json\n{\"items\":[{\"title\":\"fenced\"}]}\n```"
	builder := NewBuilder(&fakeProvider{available: true, content: content}, time.Second)

	briefs, outcome := builder.Build(context.Background(), sampleItems(1))

	if outcome != OutcomeOK || briefs[0].Title != "fenced" {
		t.Errorf("fenced JSON should parse: outcome=%s title=%q", outcome, briefs[0].Title)
	}
}

func TestBuildCapsListFields(t *testing.T) {
	content := `{"items":[{"products":["a","b","c","d","e","f"],"cves":["1","2","3","4","5","6","7"]}]}`
	builder := NewBuilder(&fakeProvider{available: true, content: content}, time.Second)

	briefs, _ := builder.Build(context.Background(), sampleItems(1))

	if len(briefs[0].Products) != 4 {
		t.Errorf("products capped at 4, got %d", len(briefs[0].Products))
	}
	if len(briefs[0].CVEs) != 5 {
		t.Errorf("cves capped at 5, got %d", len(briefs[0].CVEs))
	}
}

func TestBuildEmptyInput(t *testing.T) {
	builder := NewBuilder(&fakeProvider{available: true}, time.Second)

	briefs, outcome := builder.Build(context.Background(), nil)

	if len(briefs) != 0 || outcome != OutcomeOK {
		t.Errorf("empty input yields empty output without a collaborator call: %d, %s", len(briefs), outcome)
	}
}
