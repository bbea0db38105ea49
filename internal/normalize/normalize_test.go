package normalize

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rgsec/threatdeck/internal/intel"
)

func TestNormalizeDefaults(t *testing.T) {
	item := Normalize(intel.RawItem{Title: "Some advisory"})

	if item.ID != "Some advisory" {
		t.Errorf("expected title fallback ID, got %q", item.ID)
	}
	if item.Source != "UNKNOWN" {
		t.Errorf("expected UNKNOWN source, got %q", item.Source)
	}
	if item.PublishedAt == "" {
		t.Error("expected publish time to default to ingestion time")
	}
	if _, err := time.Parse(time.RFC3339, item.PublishedAt); err != nil {
		t.Errorf("default publish time not RFC 3339: %q", item.PublishedAt)
	}
	if item.CVEList == nil || item.Products == nil || item.MitreTTPs == nil || item.GeoHints == nil {
		t.Error("sequence fields must default to empty, not nil")
	}
	if item.IOCs.IPs == nil || item.IOCs.Domains == nil || item.IOCs.URLs == nil {
		t.Error("ioc sub-lists must default to empty, not nil")
	}
	if item.CVSSMax != 0.0 {
		t.Errorf("expected zero severity, got %f", item.CVSSMax)
	}
}

func TestNormalizeIDFallbackChain(t *testing.T) {
	withURL := Normalize(intel.RawItem{URL: "https://example.com/a", Title: "t"})
	if withURL.ID != "https://example.com/a" {
		t.Errorf("expected URL fallback, got %q", withURL.ID)
	}

	withID := Normalize(intel.RawItem{ID: "x-1", URL: "https://example.com/a"})
	if withID.ID != "x-1" {
		t.Errorf("explicit ID must win, got %q", withID.ID)
	}

	bare := Normalize(intel.RawItem{})
	if bare.ID == "" {
		t.Error("an empty record must still get a non-empty ID")
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "plain text", "plain text"},
		{"tags", "<p>Critical <b>RCE</b> in router firmware</p>", "Critical RCE in router firmware"},
		{"script dropped", `<div>visible<script>alert("x")</script></div>`, "visible"},
		{"style dropped", "<style>p{color:red}</style>patched", "patched"},
		{"whitespace", "  padded  ", "padded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripHTML(tt.in); got != tt.want {
				t.Errorf("StripHTML(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCanonicalTime(t *testing.T) {
	got := CanonicalTime("Mon, 02 Jan 2006 15:04:05 MST")
	if !strings.HasSuffix(got, "Z") {
		t.Errorf("expected UTC RFC 3339, got %q", got)
	}

	// Malformed timestamps pass through untouched instead of failing.
	raw := "not a timestamp"
	if got := CanonicalTime(raw); got != raw {
		t.Errorf("expected raw passthrough, got %q", got)
	}

	if got := CanonicalTime(""); got != "" {
		t.Errorf("expected empty passthrough, got %q", got)
	}
}

func TestNormalizeCVSSCoercion(t *testing.T) {
	if got := Normalize(intel.RawItem{CVSSMax: -3}).CVSSMax; got != 0.0 {
		t.Errorf("negative severity should collapse to 0, got %f", got)
	}
	if got := Normalize(intel.RawItem{CVSSMax: 42}).CVSSMax; got != 10.0 {
		t.Errorf("oversized severity should clamp to 10, got %f", got)
	}
	if got := Normalize(intel.RawItem{CVSSMax: 9.8}).CVSSMax; got != 9.8 {
		t.Errorf("valid severity should pass through, got %f", got)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	raw := intel.RawItem{
		ID:          "adv-1",
		Source:      "CISA",
		PublishedAt: "2025-06-01T10:00:00+02:00",
		Title:       "<b>Exploited</b> VPN flaw",
		Summary:     "<p>Patch now.</p>",
		CVEList:     []string{"CVE-2025-0001"},
		CVSSMax:     9.8,
		IOCs:        intel.IOCSet{Domains: []string{"evil.example"}},
		Products:    []string{"AcmeVPN"},
	}

	once := Normalize(raw)
	twice := Normalize(once.Raw())

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("normalization not idempotent:\n once: %+v\ntwice: %+v", once, twice)
	}
}

func TestAllPreservesOrder(t *testing.T) {
	raws := []intel.RawItem{
		{ID: "c"}, {ID: "a"}, {ID: "b"},
	}
	items := All(raws)
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, want := range []string{"c", "a", "b"} {
		if items[i].ID != want {
			t.Errorf("position %d: expected %q, got %q", i, want, items[i].ID)
		}
	}
}
