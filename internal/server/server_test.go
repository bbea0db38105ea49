package server

import (
	encjson "encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgsec/threatdeck/internal/intel"
	"github.com/rgsec/threatdeck/internal/pipeline"
)

func testSnapshot() *pipeline.Snapshot {
	return &pipeline.Snapshot{
		RunID:       "run-1",
		GeneratedAt: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
		Items: []intel.Item{
			{
				ID:       "a",
				Source:   "ThreatFox",
				Title:    "evil.example",
				GeoHints: []string{"RU"},
				IOCs:     intel.IOCSet{Domains: []string{"evil.example"}},
			},
			{
				ID:     "b",
				Source: "CISA",
				Title:  "Advisory without indicators",
			},
			{
				ID:     "c",
				Source: "ThreatFox",
				Title:  "203.0.113.9",
				IOCs:   intel.IOCSet{IPs: []string{"203.0.113.9"}},
			},
		},
		Top: []intel.Item{{ID: "a"}},
		Briefs: []intel.RankedBrief{
			{Title: "evil.example", Risk: intel.RiskHigh},
		},
		Mappings: []intel.TechniqueMapping{
			{ItemLabel: "evil.example", TechniqueID: "T1566", Confidence: 0.7},
		},
		Outcome: "unavailable",
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIOCsEndpoint(t *testing.T) {
	holder := &Holder{}
	holder.Set(testSnapshot())
	srv := New(":0", holder)

	rec := get(t, srv.Router(), "/api/iocs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Items []struct {
			Title    string   `json:"title"`
			Source   string   `json:"source"`
			GeoHints []string `json:"geo_hints"`
			IOCs     struct {
				IPs     []string `json:"ips"`
				Domains []string `json:"domains"`
				URLs    []string `json:"urls"`
			} `json:"iocs"`
		} `json:"items"`
	}
	require.NoError(t, encjson.Unmarshal(rec.Body.Bytes(), &body))

	// Only indicator-bearing items appear.
	require.Len(t, body.Items, 2)
	assert.Equal(t, "evil.example", body.Items[0].Title)
	assert.Equal(t, []string{"RU"}, body.Items[0].GeoHints)
	assert.Equal(t, []string{"evil.example"}, body.Items[0].IOCs.Domains)
	assert.Equal(t, []string{"203.0.113.9"}, body.Items[1].IOCs.IPs)
}

func TestIOCsLimit(t *testing.T) {
	holder := &Holder{}
	holder.Set(testSnapshot())
	srv := New(":0", holder)

	rec := get(t, srv.Router(), "/api/iocs?limit=1")
	var body struct {
		Items []encjson.RawMessage `json:"items"`
	}
	require.NoError(t, encjson.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Items, 1)
}

func TestIOCsHugeLimit(t *testing.T) {
	holder := &Holder{}
	holder.Set(testSnapshot())
	srv := New(":0", holder)

	rec := get(t, srv.Router(), "/api/iocs?limit=9000000000000")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items []encjson.RawMessage `json:"items"`
	}
	require.NoError(t, encjson.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Items, 2)
}

func TestIOCsBeforeFirstRun(t *testing.T) {
	srv := New(":0", &Holder{})

	rec := get(t, srv.Router(), "/api/iocs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items": []}`, rec.Body.String())
}

func TestItemsEndpoint(t *testing.T) {
	holder := &Holder{}
	holder.Set(testSnapshot())
	srv := New(":0", holder)

	rec := get(t, srv.Router(), "/api/items")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		RunID string       `json:"run_id"`
		Items []intel.Item `json:"items"`
	}
	require.NoError(t, encjson.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body.RunID)
	assert.Len(t, body.Items, 3)
}

func TestBriefEndpoint(t *testing.T) {
	holder := &Holder{}
	holder.Set(testSnapshot())
	srv := New(":0", holder)

	rec := get(t, srv.Router(), "/api/brief")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Outcome string              `json:"outcome"`
		Briefs  []intel.RankedBrief `json:"briefs"`
	}
	require.NoError(t, encjson.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body.Outcome)
	require.Len(t, body.Briefs, 1)
	assert.Equal(t, intel.RiskHigh, body.Briefs[0].Risk)
}

func TestTechniquesEndpoint(t *testing.T) {
	holder := &Holder{}
	holder.Set(testSnapshot())
	srv := New(":0", holder)

	rec := get(t, srv.Router(), "/api/techniques")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Techniques []intel.TechniqueMapping `json:"techniques"`
	}
	require.NoError(t, encjson.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Techniques, 1)
	assert.Equal(t, "T1566", body.Techniques[0].TechniqueID)
}

func TestHealthz(t *testing.T) {
	srv := New(":0", &Holder{})
	rec := get(t, srv.Router(), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "warming"}`, rec.Body.String())

	holder := &Holder{}
	holder.Set(testSnapshot())
	srv = New(":0", holder)
	rec = get(t, srv.Router(), "/healthz")
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestCORSHeaders(t *testing.T) {
	holder := &Holder{}
	holder.Set(testSnapshot())
	srv := New(":0", holder)

	rec := get(t, srv.Router(), "/api/items")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMethodNotAllowed(t *testing.T) {
	holder := &Holder{}
	srv := New(":0", holder)

	req := httptest.NewRequest(http.MethodPost, "/api/items", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
