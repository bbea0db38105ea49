package feeds

import (
	"context"
	"fmt"
	"strings"

	"github.com/rgsec/threatdeck/internal/intel"
)

const threatFoxEndpoint = "https://threatfox-api.abuse.ch/api/v1/"

// ThreatFoxSource pulls recent network IoCs from the abuse.ch ThreatFox
// API. It needs an Auth-Key; without one the adapter reports itself as a
// graceful no-op instead of erroring every poll. Only network indicators
// (IP, domain, URL) are mapped; hashes and the like are skipped.
type ThreatFoxSource struct {
	client   *Client
	endpoint string
	authKey  string
	limit    int
	days     int
}

func NewThreatFoxSource(client *Client, endpoint, authKey string, limit, days int) *ThreatFoxSource {
	if endpoint == "" {
		endpoint = threatFoxEndpoint
	}
	if limit <= 0 {
		limit = 50
	}
	if days < 1 {
		days = 1
	}
	if days > 7 {
		days = 7
	}
	return &ThreatFoxSource{client: client, endpoint: endpoint, authKey: authKey, limit: limit, days: days}
}

func (s *ThreatFoxSource) Name() string { return "ThreatFox" }

func (s *ThreatFoxSource) Fetch(ctx context.Context) ([]intel.RawItem, error) {
	if s.authKey == "" {
		// No API key configured: skip quietly.
		return nil, nil
	}

	var payload struct {
		QueryStatus string `json:"query_status"`
		Data        []struct {
			ID             any    `json:"id"`
			IOC            string `json:"ioc"`
			IOCType        string `json:"ioc_type"`
			ThreatType     string `json:"threat_type"`
			ThreatTypeDesc string `json:"threat_type_desc"`
			FirstSeen      string `json:"first_seen"`
			Country        string `json:"country"`
		} `json:"data"`
	}

	req := map[string]any{"query": "get_iocs", "days": s.days}
	headers := map[string]string{"Auth-Key": s.authKey}
	if err := s.client.PostJSON(ctx, s.endpoint, headers, req, &payload); err != nil {
		return nil, fmt.Errorf("threatfox fetch: %w", err)
	}
	if payload.QueryStatus != "ok" {
		return nil, fmt.Errorf("threatfox query status: %s", payload.QueryStatus)
	}

	rows := payload.Data
	if len(rows) > s.limit {
		rows = rows[:s.limit]
	}

	items := make([]intel.RawItem, 0, len(rows))
	for _, row := range rows {
		iocType := strings.ToLower(row.IOCType)
		if row.IOC == "" || iocType == "" {
			continue
		}

		var iocs intel.IOCSet
		switch {
		case strings.HasPrefix(iocType, "ip"):
			iocs.IPs = []string{row.IOC}
		case iocType == "domain" || iocType == "hostname" || iocType == "fqdn":
			iocs.Domains = []string{row.IOC}
		case iocType == "url":
			iocs.URLs = []string{row.IOC}
		default:
			continue
		}

		summary := row.ThreatTypeDesc
		if summary == "" {
			summary = row.ThreatType
		}

		var geo []string
		if row.Country != "" {
			geo = []string{strings.ToUpper(row.Country)}
		}

		id := fmt.Sprint(row.ID)
		if id == "" || id == "<nil>" {
			id = row.IOC
		}

		items = append(items, intel.RawItem{
			ID:          id,
			Source:      s.Name(),
			PublishedAt: row.FirstSeen,
			Title:       row.IOC,
			Summary:     summary,
			IOCs:        iocs,
			GeoHints:    geo,
		})
	}
	return items, nil
}
