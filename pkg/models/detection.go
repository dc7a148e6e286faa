package models

import "time"

// Detection is a backend event normalized by a source adapter. Severity is
// backend-specific and is not compared across sources.
type Detection struct {
	TechniqueID string    `json:"technique_id"`
	Timestamp   time.Time `json:"ts"`
	RuleID      string    `json:"rule_id,omitempty"`
	RuleName    string    `json:"rule_name,omitempty"`
	Severity    string    `json:"severity,omitempty"`
	Confidence  float64   `json:"confidence"`
	Source      string    `json:"source,omitempty"`
}
