package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"detcover/internal/attack"
	"detcover/pkg/models"
)

const maxListedUndetected = 5

// RecommendNoSources is returned alone when no source produced a usable
// result; other rules would only add noise on top of it.
const RecommendNoSources = "No detection sources returned results. Configure and enable at least one detection source to measure coverage."

// Recommend derives guidance strings from the reconciled analysis. Rules
// are evaluated in a fixed order and are additive, except the no-sources
// rule which short-circuits.
func Recommend(techniquesUsed []string, stats []models.SourceStats, overall models.OverallMetrics) []string {
	anySuccess := false
	for _, st := range stats {
		if st.Success {
			anySuccess = true
			break
		}
	}
	if !anySuccess {
		return []string{RecommendNoSources}
	}

	var out []string

	switch rate := overall.AverageDetectionRate; {
	case rate < 30:
		out = append(out, "Low detection coverage. Tune existing rules or deploy new detections for the executed techniques.")
	case rate < 70:
		out = append(out, "Moderate detection coverage. Review the undetected techniques and close the rule gaps.")
	default:
		out = append(out, "Good detection coverage. Focus on reducing detection latency.")
	}

	if undetected := undetectedTechniques(techniquesUsed, overall.UniqueDetections); len(undetected) > 0 {
		listed := undetected
		if len(listed) > maxListedUndetected {
			listed = listed[:maxListedUndetected]
		}
		out = append(out, fmt.Sprintf("No source detected: %s. Consider adding rules for these techniques.",
			strings.Join(listed, ", ")))
	}

	if overall.AverageLatencySeconds != nil && *overall.AverageLatencySeconds > 3600 {
		out = append(out, "High detection latency. Average time from execution to detection exceeds one hour.")
	}

	return out
}

func undetectedTechniques(techniquesUsed, detected []string) []string {
	have := make(map[string]struct{}, len(detected))
	for _, id := range detected {
		have[id] = struct{}{}
	}
	missing := make(map[string]struct{})
	for _, raw := range techniquesUsed {
		id := attack.Normalize(raw)
		if _, ok := have[id]; !ok {
			missing[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(missing))
	for id := range missing {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
