package analyzer

import (
	"sort"
	"time"

	"detcover/internal/attack"
	"detcover/pkg/models"
)

// SourceOutcome is one source's settled query result, successful or not.
// Outcomes are supplied in configured source order so that derived stats
// and tie-breaks stay reproducible run to run.
type SourceOutcome struct {
	Source       string
	Success      bool
	Err          error
	Cached       bool
	Events       []models.Detection
	QuerySeconds float64
}

// Analyze reconciles per-source query outcomes against the technique set
// the operation executed. It is a pure function of its inputs.
func Analyze(techniquesUsed []string, outcomes []SourceOutcome, operationStart time.Time) ([]models.SourceStats, models.OverallMetrics) {
	used := make(map[string]struct{}, len(techniquesUsed))
	for _, id := range techniquesUsed {
		used[attack.Normalize(id)] = struct{}{}
	}

	stats := make([]models.SourceStats, 0, len(outcomes))
	union := make(map[string]struct{})

	var rateSum float64
	successCount := 0
	bestSource, worstSource := "", ""
	bestRate, worstRate := -1.0, -1.0

	var latencySum float64
	latencyCount := 0

	for _, outcome := range outcomes {
		st := models.SourceStats{
			Source:  outcome.Source,
			Success: outcome.Success,
			Cached:  outcome.Cached,
		}
		if !outcome.Success {
			if outcome.Err != nil {
				st.Error = outcome.Err.Error()
			}
			st.TechniquesDetected = []string{}
			stats = append(stats, st)
			continue
		}

		st.QuerySeconds = outcome.QuerySeconds
		st.EventsFound = len(outcome.Events)

		detected := make(map[string]struct{})
		var latencies []float64
		for _, ev := range outcome.Events {
			id := attack.Normalize(ev.TechniqueID)
			if _, ok := used[id]; ok {
				detected[id] = struct{}{}
				union[id] = struct{}{}
			}
			if ev.Timestamp.IsZero() {
				continue
			}
			if st.FirstEventTime == nil || ev.Timestamp.Before(*st.FirstEventTime) {
				ts := ev.Timestamp
				st.FirstEventTime = &ts
			}
			if st.LastEventTime == nil || ev.Timestamp.After(*st.LastEventTime) {
				ts := ev.Timestamp
				st.LastEventTime = &ts
			}
			if !operationStart.IsZero() {
				latencies = append(latencies, ev.Timestamp.Sub(operationStart).Seconds())
			}
		}

		st.TechniquesDetected = sortedKeys(detected)
		if len(used) > 0 {
			st.DetectionRate = float64(len(detected)) / float64(len(used)) * 100
		}
		if len(latencies) > 0 {
			avg, min, max := summarize(latencies)
			st.AvgLatencySeconds = &avg
			st.MinLatencySeconds = &min
			st.MaxLatencySeconds = &max
			latencySum += avg * float64(len(latencies))
			latencyCount += len(latencies)
		}

		rateSum += st.DetectionRate
		successCount++
		if bestRate < 0 || st.DetectionRate > bestRate {
			bestRate = st.DetectionRate
			bestSource = st.Source
		}
		if worstRate < 0 || st.DetectionRate < worstRate {
			worstRate = st.DetectionRate
			worstSource = st.Source
		}

		stats = append(stats, st)
	}

	overall := models.OverallMetrics{
		UniqueDetections: sortedKeys(union),
		BestSource:       bestSource,
		WorstSource:      worstSource,
	}
	if successCount > 0 {
		overall.AverageDetectionRate = rateSum / float64(successCount)
	}
	if len(used) > 0 {
		overall.CoveragePercentage = float64(len(union)) / float64(len(used)) * 100
	}
	if latencyCount > 0 {
		avg := latencySum / float64(latencyCount)
		overall.AverageLatencySeconds = &avg
	}
	return stats, overall
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func summarize(values []float64) (avg, min, max float64) {
	min, max = values[0], values[0]
	var sum float64
	for _, v := range values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return sum / float64(len(values)), min, max
}
