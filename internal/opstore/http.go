package opstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"detcover/pkg/models"
)

// HTTPConfig configures the REST-backed operation store.
type HTTPConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// HTTPStore reads operations from the emulation platform's REST API.
type HTTPStore struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPStore creates an HTTP operation store.
func NewHTTPStore(cfg HTTPConfig) (*HTTPStore, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("operation store URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPStore{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Locate fetches operations matching the filter.
func (s *HTTPStore) Locate(ctx context.Context, f Filter) ([]*models.Operation, error) {
	endpoint := s.baseURL + "/operations"
	if f.ID != "" {
		endpoint += "?id=" + url.QueryEscape(f.ID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build operation request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch operations: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("operation store returned status %s", resp.Status)
	}

	var ops []*models.Operation
	if err := json.NewDecoder(resp.Body).Decode(&ops); err != nil {
		return nil, fmt.Errorf("decode operations: %w", err)
	}
	return ops, nil
}
