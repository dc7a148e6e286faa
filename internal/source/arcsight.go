package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"detcover/pkg/models"
)

// ArcSightConfig configures an ArcSight ESM source.
type ArcSightConfig struct {
	Name      string
	Endpoint  string
	Token     string
	VerifyTLS bool
	Timeout   time.Duration
}

// ArcSightSource queries ArcSight's event search API. ArcSight correlates
// technique ids into the mitreTechniqueId device field.
type ArcSightSource struct {
	name     string
	endpoint string
	token    string
	client   *http.Client
}

// NewArcSight creates an ArcSight source.
func NewArcSight(cfg ArcSightConfig) (*ArcSightSource, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("arcsight source %q: api_endpoint is required", cfg.Name)
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("arcsight source %q: api_token is required", cfg.Name)
	}
	name := cfg.Name
	if name == "" {
		name = "arcsight"
	}
	return &ArcSightSource{
		name:     name,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		token:    cfg.Token,
		client:   newHTTPClient(cfg.Timeout, cfg.VerifyTLS),
	}, nil
}

// Name returns the configured source name.
func (s *ArcSightSource) Name() string { return s.name }

// Connect is a no-op; the HTTP client is connectionless.
func (s *ArcSightSource) Connect(ctx context.Context) error { return nil }

// Disconnect releases idle connections.
func (s *ArcSightSource) Disconnect() error {
	s.client.CloseIdleConnections()
	return nil
}

// CheckStatus probes the server status endpoint.
func (s *ArcSightSource) CheckStatus(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"/detect-api/rest/status", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("arcsight status check: %w", err)
	}
	drain(resp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("arcsight status check returned %s", resp.Status)
	}
	return nil
}

type arcsightEvent struct {
	DeviceReceiptTime string `json:"deviceReceiptTime"`
	Name              string `json:"name"`
	Severity          string `json:"severity"`
	TechniqueID       string `json:"mitreTechniqueId"`
	RuleID            string `json:"deviceEventClassId"`
}

// Query searches events in the window that carry a matching technique id.
func (s *ArcSightSource) Query(ctx context.Context, techniqueIDs []string, window Window) ([]models.Detection, error) {
	ids := normalizedSet(techniqueIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"startTime":         window.Start.UTC().Format(time.RFC3339),
		"endTime":           window.End.UTC().Format(time.RFC3339),
		"mitreTechniqueIds": ids,
		"size":              10000,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal arcsight search: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/detect-api/rest/events/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build arcsight request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arcsight query: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arcsight query returned %s", resp.Status)
	}

	var body struct {
		Events []arcsightEvent `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode arcsight results: %w", err)
	}

	out := make([]models.Detection, 0, len(body.Events))
	for _, ev := range body.Events {
		if det, ok := s.format(ev); ok {
			out = append(out, det)
		}
	}
	return out, nil
}

func (s *ArcSightSource) format(ev arcsightEvent) (models.Detection, bool) {
	ts, ok := parseEventTime(ev.DeviceReceiptTime)
	if !ok || ev.TechniqueID == "" {
		return models.Detection{}, false
	}
	return models.Detection{
		TechniqueID: ev.TechniqueID,
		Timestamp:   ts,
		RuleID:      ev.RuleID,
		RuleName:    ev.Name,
		Severity:    ev.Severity,
		Confidence:  0.6,
		Source:      s.name,
	}, true
}
