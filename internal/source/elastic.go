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

// ElasticConfig configures an Elastic Security source.
type ElasticConfig struct {
	Name      string
	Endpoint  string
	Token     string
	VerifyTLS bool
	Timeout   time.Duration
}

// ElasticSource queries Elastic's alert indices for detections tagged with
// threat.technique ids.
type ElasticSource struct {
	name     string
	endpoint string
	token    string
	client   *http.Client
}

// NewElastic creates an Elastic source.
func NewElastic(cfg ElasticConfig) (*ElasticSource, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("elastic source %q: api_endpoint is required", cfg.Name)
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("elastic source %q: api_token is required", cfg.Name)
	}
	name := cfg.Name
	if name == "" {
		name = "elastic"
	}
	return &ElasticSource{
		name:     name,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		token:    cfg.Token,
		client:   newHTTPClient(cfg.Timeout, cfg.VerifyTLS),
	}, nil
}

// Name returns the configured source name.
func (s *ElasticSource) Name() string { return s.name }

// Connect is a no-op; the HTTP client is connectionless.
func (s *ElasticSource) Connect(ctx context.Context) error { return nil }

// Disconnect releases idle connections.
func (s *ElasticSource) Disconnect() error {
	s.client.CloseIdleConnections()
	return nil
}

// CheckStatus probes the cluster root endpoint.
func (s *ElasticSource) CheckStatus(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"/", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "ApiKey "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("elastic status check: %w", err)
	}
	drain(resp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("elastic status check returned %s", resp.Status)
	}
	return nil
}

type elasticHit struct {
	Source struct {
		Timestamp string `json:"@timestamp"`
		Rule      struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"rule"`
		Event struct {
			Severity  string  `json:"severity"`
			RiskScore float64 `json:"risk_score"`
		} `json:"event"`
		Threat struct {
			Technique struct {
				ID string `json:"id"`
			} `json:"technique"`
		} `json:"threat"`
	} `json:"_source"`
}

// Query runs a bool search constrained to the window and technique set.
func (s *ElasticSource) Query(ctx context.Context, techniqueIDs []string, window Window) ([]models.Detection, error) {
	ids := normalizedSet(techniqueIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	query := map[string]interface{}{
		"size": 10000,
		"sort": []map[string]string{{"@timestamp": "asc"}},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []map[string]interface{}{
					{"range": map[string]interface{}{
						"@timestamp": map[string]string{
							"gte": window.Start.UTC().Format(time.RFC3339),
							"lte": window.End.UTC().Format(time.RFC3339),
						},
					}},
					{"terms": map[string]interface{}{"threat.technique.id": ids}},
				},
			},
		},
	}
	payload, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal elastic query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/.siem-signals-*/_search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build elastic request: %w", err)
	}
	req.Header.Set("Authorization", "ApiKey "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elastic query: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elastic query returned %s", resp.Status)
	}

	var body struct {
		Hits struct {
			Hits []elasticHit `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode elastic results: %w", err)
	}

	out := make([]models.Detection, 0, len(body.Hits.Hits))
	for _, hit := range body.Hits.Hits {
		if det, ok := s.format(hit); ok {
			out = append(out, det)
		}
	}
	return out, nil
}

func (s *ElasticSource) format(hit elasticHit) (models.Detection, bool) {
	src := hit.Source
	ts, ok := parseEventTime(src.Timestamp)
	if !ok || src.Threat.Technique.ID == "" {
		return models.Detection{}, false
	}

	confidence := src.Event.RiskScore / 100
	if confidence <= 0 {
		confidence = 0.5
	} else if confidence > 1 {
		confidence = 1
	}

	return models.Detection{
		TechniqueID: src.Threat.Technique.ID,
		Timestamp:   ts,
		RuleID:      src.Rule.ID,
		RuleName:    src.Rule.Name,
		Severity:    src.Event.Severity,
		Confidence:  confidence,
		Source:      s.name,
	}, true
}
