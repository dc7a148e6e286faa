package analyzer

import (
	"strings"
	"testing"

	"detcover/pkg/models"
)

func TestRecommendNoUsableSources(t *testing.T) {
	stats := []models.SourceStats{
		{Source: "splunk", Success: false, Error: "timeout"},
	}

	recs := Recommend([]string{"T1059"}, stats, models.OverallMetrics{})
	if len(recs) != 1 || recs[0] != RecommendNoSources {
		t.Fatalf("expected only the no-sources recommendation, got %v", recs)
	}
}

func TestRecommendCoverageTiers(t *testing.T) {
	stats := []models.SourceStats{{Source: "sim", Success: true}}

	cases := []struct {
		rate float64
		want string
	}{
		{10, "Low detection coverage"},
		{50, "Moderate detection coverage"},
		{85, "Good detection coverage"},
	}
	for _, tc := range cases {
		recs := Recommend(nil, stats, models.OverallMetrics{AverageDetectionRate: tc.rate})
		if len(recs) == 0 || !strings.HasPrefix(recs[0], tc.want) {
			t.Fatalf("rate %f: expected prefix %q, got %v", tc.rate, tc.want, recs)
		}
	}
}

func TestRecommendListsUndetectedTechniques(t *testing.T) {
	stats := []models.SourceStats{{Source: "sim", Success: true}}
	overall := models.OverallMetrics{
		AverageDetectionRate: 50,
		UniqueDetections:     []string{"T1059"},
	}

	recs := Recommend([]string{"T1059", "T1078", "T1003"}, stats, overall)
	found := false
	for _, rec := range recs {
		if strings.Contains(rec, "T1003") && strings.Contains(rec, "T1078") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected undetected techniques to be listed, got %v", recs)
	}
}

func TestRecommendTruncatesLongUndetectedList(t *testing.T) {
	stats := []models.SourceStats{{Source: "sim", Success: true}}
	used := []string{"T1001", "T1003", "T1005", "T1007", "T1010", "T1012", "T1016"}

	recs := Recommend(used, stats, models.OverallMetrics{AverageDetectionRate: 10})
	var listing string
	for _, rec := range recs {
		if strings.HasPrefix(rec, "No source detected:") {
			listing = rec
		}
	}
	if listing == "" {
		t.Fatalf("expected an undetected-techniques recommendation, got %v", recs)
	}
	if got := strings.Count(listing, "T10"); got != maxListedUndetected {
		t.Fatalf("expected %d listed techniques, got %d in %q", maxListedUndetected, got, listing)
	}
}

func TestRecommendHighLatencyWarning(t *testing.T) {
	stats := []models.SourceStats{{Source: "sim", Success: true}}
	latency := 4000.0
	overall := models.OverallMetrics{
		AverageDetectionRate:  90,
		UniqueDetections:      []string{"T1059"},
		AverageLatencySeconds: &latency,
	}

	recs := Recommend([]string{"T1059"}, stats, overall)
	found := false
	for _, rec := range recs {
		if strings.HasPrefix(rec, "High detection latency") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected high-latency warning, got %v", recs)
	}
}
