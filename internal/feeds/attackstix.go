package feeds

import (
	"context"
	"fmt"
	"strings"

	"github.com/rgsec/threatdeck/internal/intel"
)

const attackStixURL = "https://raw.githubusercontent.com/mitre-attack/attack-stix-data/master/enterprise-attack/enterprise-attack.json"

// AttackSource loads enterprise technique definitions from the official
// ATT&CK STIX bundle. Techniques enter the pipeline as items of their own
// so the taxonomy shows up alongside the operational feeds.
type AttackSource struct {
	client   *Client
	endpoint string
	limit    int
}

func NewAttackSource(client *Client, endpoint string, limit int) *AttackSource {
	if endpoint == "" {
		endpoint = attackStixURL
	}
	if limit <= 0 {
		limit = 20
	}
	return &AttackSource{client: client, endpoint: endpoint, limit: limit}
}

func (s *AttackSource) Name() string { return "MITRE ATT&CK" }

func (s *AttackSource) Fetch(ctx context.Context) ([]intel.RawItem, error) {
	var bundle struct {
		Objects []struct {
			Type               string `json:"type"`
			ID                 string `json:"id"`
			Name               string `json:"name"`
			Description        string `json:"description"`
			Created            string `json:"created"`
			Modified           string `json:"modified"`
			ExternalReferences []struct {
				ExternalID string `json:"external_id"`
			} `json:"external_references"`
		} `json:"objects"`
	}

	if err := s.client.GetJSON(ctx, s.endpoint, &bundle); err != nil {
		return nil, fmt.Errorf("attack stix fetch: %w", err)
	}

	items := make([]intel.RawItem, 0, s.limit)
	for _, obj := range bundle.Objects {
		if obj.Type != "attack-pattern" {
			continue
		}

		externalID := ""
		for _, ref := range obj.ExternalReferences {
			if strings.HasPrefix(ref.ExternalID, "T") {
				externalID = ref.ExternalID
				break
			}
		}
		if externalID == "" {
			continue
		}

		published := obj.Modified
		if published == "" {
			published = obj.Created
		}

		items = append(items, intel.RawItem{
			ID:          obj.ID,
			Source:      s.Name(),
			PublishedAt: published,
			Title:       obj.Name,
			Summary:     obj.Description,
			MitreTTPs:   []string{externalID},
		})

		if len(items) >= s.limit {
			break
		}
	}
	return items, nil
}
