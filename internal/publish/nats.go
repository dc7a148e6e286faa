package publish

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"detcover/pkg/models"
)

const connectTimeout = 5 * time.Second

// ReportPublisher pushes finished coverage reports onto a NATS subject so
// downstream consumers (dashboards, ticketing) can react to new analyses.
// A nil publisher is valid and drops reports silently.
type ReportPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewReportPublisher connects to NATS.
func NewReportPublisher(url, subject string) (*ReportPublisher, error) {
	if strings.TrimSpace(url) == "" {
		url = nats.DefaultURL
	}
	if strings.TrimSpace(subject) == "" {
		subject = "detcover.reports"
	}

	conn, err := nats.Connect(url,
		nats.Timeout(connectTimeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	return &ReportPublisher{conn: conn, subject: subject}, nil
}

// Publish sends a report as JSON.
func (p *ReportPublisher) Publish(report *models.Report) error {
	if p == nil || p.conn == nil || report == nil {
		return nil
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := p.conn.Publish(p.subject, raw); err != nil {
		return fmt.Errorf("publish report: %w", err)
	}
	return nil
}

// Close drains and closes the connection.
func (p *ReportPublisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Close()
}
