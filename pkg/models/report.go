package models

import "time"

// SourceStats summarizes one source's detections against the technique set.
type SourceStats struct {
	Source             string     `json:"source"`
	Success            bool       `json:"success"`
	Error              string     `json:"error,omitempty"`
	Cached             bool       `json:"cached,omitempty"`
	TechniquesDetected []string   `json:"techniques_detected"`
	DetectionRate      float64    `json:"detection_rate"`
	EventsFound        int        `json:"events_found"`
	QuerySeconds       float64    `json:"query_seconds"`
	FirstEventTime     *time.Time `json:"first_event_time,omitempty"`
	LastEventTime      *time.Time `json:"last_event_time,omitempty"`
	AvgLatencySeconds  *float64   `json:"avg_latency_seconds,omitempty"`
	MinLatencySeconds  *float64   `json:"min_latency_seconds,omitempty"`
	MaxLatencySeconds  *float64   `json:"max_latency_seconds,omitempty"`
}

// OverallMetrics aggregates detection results across every queried source.
type OverallMetrics struct {
	AverageDetectionRate  float64  `json:"average_detection_rate"`
	BestSource            string   `json:"best_source,omitempty"`
	WorstSource           string   `json:"worst_source,omitempty"`
	UniqueDetections      []string `json:"unique_detections"`
	CoveragePercentage    float64  `json:"coverage_percentage"`
	AverageLatencySeconds *float64 `json:"average_latency_seconds,omitempty"`
}

// TechniqueSummary lists the techniques an operation executed.
type TechniqueSummary struct {
	Total   int                         `json:"total"`
	List    []string                    `json:"list"`
	Details map[string]*TechniqueRecord `json:"details"`
}

// Report is the immutable result of one coverage analysis. SourceResults
// follows the configured source order so reports stay reproducible.
type Report struct {
	ReportID        string           `json:"report_id"`
	Success         bool             `json:"success"`
	Warning         string           `json:"warning,omitempty"`
	OperationID     string           `json:"operation_id"`
	OperationName   string           `json:"operation_name"`
	OperationStart  time.Time        `json:"operation_start"`
	OperationEnd    *time.Time       `json:"operation_end,omitempty"`
	TechniquesUsed  TechniqueSummary `json:"techniques_used"`
	SourceResults   []SourceStats    `json:"source_results"`
	OverallMetrics  OverallMetrics   `json:"overall_metrics"`
	Recommendations []string         `json:"recommendations"`
	AnalysisTime    time.Time        `json:"analysis_time"`
}
