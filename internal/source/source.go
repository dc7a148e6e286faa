package source

import (
	"context"
	"crypto/tls"
	"net/http"
	"sort"
	"strings"
	"time"

	"detcover/internal/attack"
	"detcover/pkg/models"
)

// Window is the time range a detection query covers.
type Window struct {
	Start time.Time
	End   time.Time
}

// Source is one backend detection platform. Query translates the technique
// set and window into backend syntax and returns normalized detections; a
// network failure surfaces as an error that the caller records per source,
// so one bad backend never aborts a fan-out.
type Source interface {
	Name() string
	Connect(ctx context.Context) error
	Query(ctx context.Context, techniqueIDs []string, window Window) ([]models.Detection, error)
	CheckStatus(ctx context.Context) error
	Disconnect() error
}

func newHTTPClient(timeout time.Duration, verifyTLS bool) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	if !verifyTLS {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return client
}

// normalizedSet returns the deduplicated normalized technique ids, sorted.
func normalizedSet(techniqueIDs []string) []string {
	seen := make(map[string]struct{}, len(techniqueIDs))
	out := make([]string, 0, len(techniqueIDs))
	for _, id := range techniqueIDs {
		norm := attack.Normalize(id)
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	sort.Strings(out)
	return out
}

func parseEventTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
