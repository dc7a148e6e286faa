package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"detcover/pkg/models"
)

// QRadarConfig configures an IBM QRadar source.
type QRadarConfig struct {
	Name      string
	Endpoint  string
	Token     string
	VerifyTLS bool
	Timeout   time.Duration
}

// QRadarSource queries QRadar's Ariel search API for offense events carrying
// MITRE technique annotations.
type QRadarSource struct {
	name     string
	endpoint string
	token    string
	client   *http.Client
}

// NewQRadar creates a QRadar source.
func NewQRadar(cfg QRadarConfig) (*QRadarSource, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("qradar source %q: api_endpoint is required", cfg.Name)
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("qradar source %q: api_token is required", cfg.Name)
	}
	name := cfg.Name
	if name == "" {
		name = "qradar"
	}
	return &QRadarSource{
		name:     name,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		token:    cfg.Token,
		client:   newHTTPClient(cfg.Timeout, cfg.VerifyTLS),
	}, nil
}

// Name returns the configured source name.
func (s *QRadarSource) Name() string { return s.name }

// Connect is a no-op; the HTTP client is connectionless.
func (s *QRadarSource) Connect(ctx context.Context) error { return nil }

// Disconnect releases idle connections.
func (s *QRadarSource) Disconnect() error {
	s.client.CloseIdleConnections()
	return nil
}

// CheckStatus probes the system about endpoint.
func (s *QRadarSource) CheckStatus(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"/api/system/about", nil)
	if err != nil {
		return err
	}
	req.Header.Set("SEC", s.token)
	req.Header.Set("Version", "15.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qradar status check: %w", err)
	}
	drain(resp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("qradar status check returned %s", resp.Status)
	}
	return nil
}

type qradarEvent struct {
	StartTime   int64  `json:"starttime"`
	QID         int64  `json:"qid"`
	RuleName    string `json:"rulename"`
	Severity    int    `json:"severity"`
	TechniqueID string `json:"mitre_technique_id"`
}

// Query submits an AQL search over the window for the technique set.
func (s *QRadarSource) Query(ctx context.Context, techniqueIDs []string, window Window) ([]models.Detection, error) {
	ids := normalizedSet(techniqueIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	quoted := make([]string, 0, len(ids))
	for _, id := range ids {
		quoted = append(quoted, "'"+id+"'")
	}
	aql := fmt.Sprintf(
		"SELECT starttime, qid, rulename, severity, mitre_technique_id FROM events WHERE mitre_technique_id IN (%s) START %d STOP %d",
		strings.Join(quoted, ", "), window.Start.UnixMilli(), window.End.UnixMilli())

	payload, err := json.Marshal(map[string]string{"query_expression": aql})
	if err != nil {
		return nil, fmt.Errorf("marshal qradar search: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/api/ariel/searches", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build qradar request: %w", err)
	}
	req.Header.Set("SEC", s.token)
	req.Header.Set("Version", "15.0")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qradar query: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("qradar query returned %s", resp.Status)
	}

	var body struct {
		Events []qradarEvent `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode qradar results: %w", err)
	}

	out := make([]models.Detection, 0, len(body.Events))
	for _, ev := range body.Events {
		if det, ok := s.format(ev); ok {
			out = append(out, det)
		}
	}
	return out, nil
}

func (s *QRadarSource) format(ev qradarEvent) (models.Detection, bool) {
	if ev.TechniqueID == "" || ev.StartTime <= 0 {
		return models.Detection{}, false
	}
	ruleID := "QRADAR_" + strconv.FormatInt(ev.QID, 10)
	return models.Detection{
		TechniqueID: ev.TechniqueID,
		Timestamp:   time.UnixMilli(ev.StartTime).UTC(),
		RuleID:      ruleID,
		RuleName:    ev.RuleName,
		Severity:    strconv.Itoa(ev.Severity),
		Confidence:  0.7,
		Source:      s.name,
	}, true
}
