package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"detcover/pkg/models"
)

// SplunkConfig configures a Splunk search-API source.
type SplunkConfig struct {
	Name      string
	Endpoint  string
	Token     string
	VerifyTLS bool
	Timeout   time.Duration
}

// SplunkSource queries Splunk's search jobs API for technique-annotated
// notable events.
type SplunkSource struct {
	name     string
	endpoint string
	token    string
	client   *http.Client
}

type splunkEvent struct {
	Time        string `json:"_time"`
	TechniqueID string `json:"annotations.mitre_attack"`
	RuleName    string `json:"search_name"`
	Urgency     string `json:"urgency"`
}

// NewSplunk creates a Splunk source.
func NewSplunk(cfg SplunkConfig) (*SplunkSource, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("splunk source %q: api_endpoint is required", cfg.Name)
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("splunk source %q: api_token is required", cfg.Name)
	}
	name := cfg.Name
	if name == "" {
		name = "splunk"
	}
	return &SplunkSource{
		name:     name,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		token:    cfg.Token,
		client:   newHTTPClient(cfg.Timeout, cfg.VerifyTLS),
	}, nil
}

// Name returns the configured source name.
func (s *SplunkSource) Name() string { return s.name }

// Connect is a no-op; the HTTP client is connectionless.
func (s *SplunkSource) Connect(ctx context.Context) error { return nil }

// Disconnect releases idle connections.
func (s *SplunkSource) Disconnect() error {
	s.client.CloseIdleConnections()
	return nil
}

// CheckStatus probes the server info endpoint.
func (s *SplunkSource) CheckStatus(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"/services/server/info?output_mode=json", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("splunk status check: %w", err)
	}
	drain(resp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("splunk status check returned %s", resp.Status)
	}
	return nil
}

// Query runs a one-shot search over the window for the technique set.
func (s *SplunkSource) Query(ctx context.Context, techniqueIDs []string, window Window) ([]models.Detection, error) {
	ids := normalizedSet(techniqueIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	terms := make([]string, 0, len(ids))
	for _, id := range ids {
		terms = append(terms, fmt.Sprintf(`annotations.mitre_attack=%q`, id))
	}
	spl := fmt.Sprintf("search index=notable (%s) | table _time, annotations.mitre_attack, search_name, urgency",
		strings.Join(terms, " OR "))

	payload, err := json.Marshal(map[string]string{
		"search":        spl,
		"earliest_time": window.Start.UTC().Format(time.RFC3339),
		"latest_time":   window.End.UTC().Format(time.RFC3339),
		"exec_mode":     "oneshot",
		"output_mode":   "json",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal splunk search: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/services/search/jobs", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build splunk request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("splunk query: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("splunk query returned %s", resp.Status)
	}

	var body struct {
		Results []splunkEvent `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode splunk results: %w", err)
	}

	out := make([]models.Detection, 0, len(body.Results))
	for _, ev := range body.Results {
		if det, ok := s.format(ev); ok {
			out = append(out, det)
		}
	}
	return out, nil
}

func (s *SplunkSource) format(ev splunkEvent) (models.Detection, bool) {
	ts, ok := parseEventTime(ev.Time)
	if !ok || ev.TechniqueID == "" {
		return models.Detection{}, false
	}
	severity := ev.Urgency
	if severity == "" {
		severity = "high"
	}
	return models.Detection{
		TechniqueID: ev.TechniqueID,
		Timestamp:   ts,
		RuleID:      ev.RuleName,
		RuleName:    ev.RuleName,
		Severity:    severity,
		Confidence:  0.8,
		Source:      s.name,
	}, true
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
