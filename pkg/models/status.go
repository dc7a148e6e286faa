package models

import "time"

// MaxCoverageSamples caps how many raw detections a coverage entry keeps.
const MaxCoverageSamples = 3

// TechniqueCoverage summarizes one technique's detections across every
// successful source.
type TechniqueCoverage struct {
	EventsCount    int         `json:"events_count"`
	Detected       bool        `json:"detected"`
	Samples        []Detection `json:"samples"`
	FirstDetection *time.Time  `json:"first_detection,omitempty"`
	LastDetection  *time.Time  `json:"last_detection,omitempty"`
}

// SourceStatus describes one configured source's health.
type SourceStatus struct {
	Configured bool   `json:"configured"`
	Enabled    bool   `json:"enabled"`
	Reachable  bool   `json:"reachable"`
	Status     string `json:"status"`
}

// SimulationResult is the outcome of an ad-hoc detection simulation.
type SimulationResult struct {
	TechniquesTested   []string `json:"techniques_tested"`
	EventsFound        int      `json:"events_found"`
	DetectedTechniques []string `json:"detected_techniques"`
	DetectionRate      float64  `json:"detection_rate"`
}
