package feeds

import (
	"context"
	"fmt"

	"github.com/rgsec/threatdeck/internal/intel"
)

const nvdEndpoint = "https://services.nvd.nist.gov/rest/json/cves/2.0"

// NVDSource pulls recent CVE records from the NVD REST API.
type NVDSource struct {
	client   *Client
	endpoint string
	limit    int
}

// NewNVDSource creates the NVD adapter. A non-empty endpoint overrides the
// public API URL (tests point it at a local server).
func NewNVDSource(client *Client, endpoint string, limit int) *NVDSource {
	if endpoint == "" {
		endpoint = nvdEndpoint
	}
	if limit <= 0 {
		limit = 5
	}
	return &NVDSource{client: client, endpoint: endpoint, limit: limit}
}

func (s *NVDSource) Name() string { return "NVD" }

func (s *NVDSource) Fetch(ctx context.Context) ([]intel.RawItem, error) {
	var payload struct {
		Vulnerabilities []struct {
			CVE struct {
				ID           string `json:"id"`
				Published    string `json:"published"`
				Descriptions []struct {
					Lang  string `json:"lang"`
					Value string `json:"value"`
				} `json:"descriptions"`
				Metrics struct {
					CVSSMetricV31 []cvssMetric `json:"cvssMetricV31"`
					CVSSMetricV3  []cvssMetric `json:"cvssMetricV3"`
				} `json:"metrics"`
			} `json:"cve"`
		} `json:"vulnerabilities"`
	}

	url := fmt.Sprintf("%s?resultsPerPage=%d", s.endpoint, s.limit)
	if err := s.client.GetJSON(ctx, url, &payload); err != nil {
		return nil, fmt.Errorf("nvd fetch: %w", err)
	}

	items := make([]intel.RawItem, 0, len(payload.Vulnerabilities))
	for _, v := range payload.Vulnerabilities {
		cve := v.CVE
		if cve.ID == "" {
			continue
		}

		description := ""
		if len(cve.Descriptions) > 0 {
			description = cve.Descriptions[0].Value
		}

		// Prefer the v3.1 base score, fall back to v3.0.
		cvss := 0.0
		if len(cve.Metrics.CVSSMetricV31) > 0 {
			cvss = cve.Metrics.CVSSMetricV31[0].CVSSData.BaseScore
		} else if len(cve.Metrics.CVSSMetricV3) > 0 {
			cvss = cve.Metrics.CVSSMetricV3[0].CVSSData.BaseScore
		}

		items = append(items, intel.RawItem{
			ID:          cve.ID,
			Source:      s.Name(),
			PublishedAt: cve.Published,
			Title:       cve.ID,
			Summary:     description,
			CVEList:     []string{cve.ID},
			CVSSMax:     cvss,
		})
	}
	return items, nil
}

type cvssMetric struct {
	CVSSData struct {
		BaseScore float64 `json:"baseScore"`
	} `json:"cvssData"`
}
