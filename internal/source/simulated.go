package source

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"time"

	"detcover/pkg/models"
)

// SimulatedConfig configures the offline simulation source.
type SimulatedConfig struct {
	Name string
	// DetectProbability is the chance a technique is "detected". Defaults
	// to 0.6; the exact value is an illustrative default, not a contract.
	DetectProbability float64
	// QueryDelay models backend latency. Defaults to 100ms.
	QueryDelay time.Duration
}

// SimulatedSource produces deterministic pseudo-random detections without
// any network. The generator is seeded from the source name and the sorted
// technique set, so identical inputs reproduce identical results while
// different sources and technique mixes still diverge.
type SimulatedSource struct {
	name        string
	probability float64
	delay       time.Duration
}

// NewSimulated creates a simulation source.
func NewSimulated(cfg SimulatedConfig) *SimulatedSource {
	name := cfg.Name
	if name == "" {
		name = "simulated"
	}
	probability := cfg.DetectProbability
	if probability <= 0 || probability > 1 {
		probability = 0.6
	}
	delay := cfg.QueryDelay
	if delay < 0 {
		delay = 0
	} else if delay == 0 {
		delay = 100 * time.Millisecond
	}
	return &SimulatedSource{name: name, probability: probability, delay: delay}
}

// Name returns the configured source name.
func (s *SimulatedSource) Name() string { return s.name }

// Connect is a no-op.
func (s *SimulatedSource) Connect(ctx context.Context) error { return nil }

// Disconnect is a no-op.
func (s *SimulatedSource) Disconnect() error { return nil }

// CheckStatus always succeeds; the simulation needs no backend.
func (s *SimulatedSource) CheckStatus(ctx context.Context) error { return nil }

// Query deterministically "detects" a subset of the technique set and
// spreads synthetic event timestamps across the window.
func (s *SimulatedSource) Query(ctx context.Context, techniqueIDs []string, window Window) ([]models.Detection, error) {
	ids := normalizedSet(techniqueIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}

	rng := rand.New(rand.NewSource(seedFor(s.name, ids)))
	span := window.End.Sub(window.Start)
	if span <= 0 {
		span = time.Hour
	}

	out := make([]models.Detection, 0, len(ids))
	for _, id := range ids {
		roll := rng.Float64()
		eventCount := 1 + rng.Intn(3)
		if roll >= s.probability {
			continue
		}
		for i := 0; i < eventCount; i++ {
			offset := time.Duration(rng.Int63n(int64(span)))
			out = append(out, models.Detection{
				TechniqueID: id,
				Timestamp:   window.Start.Add(offset),
				RuleID:      fmt.Sprintf("SIM-%s-%03d", id, i+1),
				RuleName:    "Simulated detection for " + id,
				Severity:    pickSeverity(rng),
				Confidence:  0.5 + rng.Float64()*0.45,
				Source:      s.name,
			})
		}
	}
	return out, nil
}

func seedFor(name string, sortedIDs []string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	h.Write([]byte("|"))
	h.Write([]byte(strings.Join(sortedIDs, ",")))
	return int64(h.Sum64())
}

func pickSeverity(rng *rand.Rand) string {
	switch rng.Intn(4) {
	case 0:
		return "low"
	case 1:
		return "medium"
	case 2:
		return "high"
	default:
		return "critical"
	}
}
