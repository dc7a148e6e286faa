package analyzer

import (
	"errors"
	"testing"
	"time"

	"detcover/pkg/models"
)

func event(id string, ts time.Time, source string) models.Detection {
	return models.Detection{TechniqueID: id, Timestamp: ts, Source: source}
}

func TestAnalyzeComputesPerSourceRates(t *testing.T) {
	start := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	used := []string{"T1059", "T1078", "T1003"}
	outcomes := []SourceOutcome{
		{
			Source:  "splunk",
			Success: true,
			Events: []models.Detection{
				event("T1059", start.Add(10*time.Minute), "splunk"),
				event("T1059.001", start.Add(12*time.Minute), "splunk"),
				event("T1078", start.Add(20*time.Minute), "splunk"),
			},
		},
		{
			Source:  "elastic",
			Success: true,
			Events:  []models.Detection{event("T1003", start.Add(time.Hour), "elastic")},
		},
	}

	stats, overall := Analyze(used, outcomes, start)
	if len(stats) != 2 {
		t.Fatalf("expected 2 source stats, got %d", len(stats))
	}

	splunk := stats[0]
	if splunk.EventsFound != 3 {
		t.Fatalf("expected 3 events for splunk, got %d", splunk.EventsFound)
	}
	// T1059.001 collapses into T1059, so splunk detected 2 of 3.
	if len(splunk.TechniquesDetected) != 2 {
		t.Fatalf("expected splunk to detect 2 techniques, got %v", splunk.TechniquesDetected)
	}
	if splunk.DetectionRate < 66.6 || splunk.DetectionRate > 66.7 {
		t.Fatalf("unexpected splunk detection rate: %f", splunk.DetectionRate)
	}

	if got := overall.UniqueDetections; len(got) != 3 {
		t.Fatalf("expected 3 unique detections, got %v", got)
	}
	if overall.CoveragePercentage != 100 {
		t.Fatalf("expected 100%% coverage, got %f", overall.CoveragePercentage)
	}
	if overall.BestSource != "splunk" || overall.WorstSource != "elastic" {
		t.Fatalf("unexpected best/worst: %s/%s", overall.BestSource, overall.WorstSource)
	}
}

func TestAnalyzeExcludesFailedSourcesFromMetrics(t *testing.T) {
	start := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	outcomes := []SourceOutcome{
		{Source: "splunk", Success: false, Err: errors.New("search head unreachable")},
		{Source: "sim", Success: true, Events: []models.Detection{event("T1059", start.Add(time.Minute), "sim")}},
	}

	stats, overall := Analyze([]string{"T1059", "T1078"}, outcomes, start)
	if len(stats) != 2 {
		t.Fatalf("expected both sources reported, got %d", len(stats))
	}
	if stats[0].Success || stats[0].Error == "" {
		t.Fatalf("expected failed splunk entry, got %+v", stats[0])
	}
	if overall.BestSource != "sim" || overall.WorstSource != "sim" {
		t.Fatalf("failed source leaked into best/worst: %s/%s", overall.BestSource, overall.WorstSource)
	}
	if overall.AverageDetectionRate != 50 {
		t.Fatalf("expected average rate 50, got %f", overall.AverageDetectionRate)
	}
}

func TestAnalyzeTieBreaksOnConfiguredOrder(t *testing.T) {
	start := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	outcomes := []SourceOutcome{
		{Source: "first", Success: true, Events: []models.Detection{event("T1059", start, "first")}},
		{Source: "second", Success: true, Events: []models.Detection{event("T1059", start, "second")}},
	}

	_, overall := Analyze([]string{"T1059"}, outcomes, start)
	if overall.BestSource != "first" || overall.WorstSource != "first" {
		t.Fatalf("tie-break should pick the first configured source, got %s/%s", overall.BestSource, overall.WorstSource)
	}
}

func TestAnalyzeLatencyAggregation(t *testing.T) {
	start := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	outcomes := []SourceOutcome{
		{
			Source:  "splunk",
			Success: true,
			Events: []models.Detection{
				event("T1059", start.Add(60*time.Second), "splunk"),
				event("T1059", start.Add(180*time.Second), "splunk"),
			},
		},
	}

	stats, overall := Analyze([]string{"T1059"}, outcomes, start)
	st := stats[0]
	if st.AvgLatencySeconds == nil || st.MinLatencySeconds == nil || st.MaxLatencySeconds == nil {
		t.Fatalf("expected latency aggregates, got %+v", st)
	}
	if *st.MinLatencySeconds != 60 || *st.MaxLatencySeconds != 180 || *st.AvgLatencySeconds != 120 {
		t.Fatalf("unexpected latency aggregates: min=%f max=%f avg=%f",
			*st.MinLatencySeconds, *st.MaxLatencySeconds, *st.AvgLatencySeconds)
	}
	if overall.AverageLatencySeconds == nil || *overall.AverageLatencySeconds != 120 {
		t.Fatalf("unexpected overall latency: %+v", overall.AverageLatencySeconds)
	}
}

func TestAnalyzeEmptyTechniqueSetNeverDividesByZero(t *testing.T) {
	start := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	outcomes := []SourceOutcome{
		{Source: "sim", Success: true, Events: []models.Detection{event("T1059", start, "sim")}},
	}

	stats, overall := Analyze(nil, outcomes, start)
	if stats[0].DetectionRate != 0 {
		t.Fatalf("expected rate 0 for empty technique set, got %f", stats[0].DetectionRate)
	}
	if overall.CoveragePercentage != 0 {
		t.Fatalf("expected coverage 0 for empty technique set, got %f", overall.CoveragePercentage)
	}
}
