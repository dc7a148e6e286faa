package source

import (
	"context"
	"strings"
	"testing"
	"time"

	"detcover/pkg/models"
)

func testWindow() Window {
	start := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.Add(2 * time.Hour)}
}

func TestSimulatedQueryIsDeterministicForIdenticalInputs(t *testing.T) {
	src := NewSimulated(SimulatedConfig{Name: "sim-a", QueryDelay: time.Millisecond})
	ids := []string{"T1059", "T1078", "T1003"}

	first, err := src.Query(context.Background(), ids, testWindow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := src.Query(context.Background(), ids, testWindow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("results differ in length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("result %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestSimulatedQueryIgnoresInputOrdering(t *testing.T) {
	src := NewSimulated(SimulatedConfig{Name: "sim-a", QueryDelay: time.Millisecond})

	first, err := src.Query(context.Background(), []string{"T1078", "T1059"}, testWindow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := src.Query(context.Background(), []string{"T1059", "T1078.002"}, testWindow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("reordered technique set changed results: %d vs %d", len(first), len(second))
	}
}

func TestSimulatedQueryVariesBySourceName(t *testing.T) {
	ids := []string{"T1003", "T1016", "T1018", "T1021", "T1027", "T1033", "T1046", "T1055", "T1059", "T1078"}

	a, err := NewSimulated(SimulatedConfig{Name: "sim-a", QueryDelay: time.Millisecond}).Query(context.Background(), ids, testWindow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := NewSimulated(SimulatedConfig{Name: "sim-b", QueryDelay: time.Millisecond}).Query(context.Background(), ids, testWindow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if detectionKey(a) == detectionKey(b) {
		t.Fatalf("expected different sources to diverge over %d techniques", len(ids))
	}
}

func TestSimulatedQueryDetectsEverythingAtFullProbability(t *testing.T) {
	src := NewSimulated(SimulatedConfig{Name: "sim", DetectProbability: 1.0, QueryDelay: time.Millisecond})
	ids := []string{"T1059", "T1078"}

	events, err := src.Query(context.Background(), ids, testWindow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	detected := make(map[string]bool)
	w := testWindow()
	for _, ev := range events {
		detected[ev.TechniqueID] = true
		if ev.Timestamp.Before(w.Start) || ev.Timestamp.After(w.End) {
			t.Fatalf("event timestamp %v outside window", ev.Timestamp)
		}
		if ev.Confidence < 0 || ev.Confidence > 1 {
			t.Fatalf("confidence out of range: %f", ev.Confidence)
		}
	}
	for _, id := range ids {
		if !detected[id] {
			t.Fatalf("expected %s to be detected at probability 1.0", id)
		}
	}
}

func TestSimulatedQueryHonorsCancellation(t *testing.T) {
	src := NewSimulated(SimulatedConfig{Name: "sim", QueryDelay: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := src.Query(ctx, []string{"T1059"}, testWindow()); err == nil {
		t.Fatalf("expected context error")
	}
}

func detectionKey(events []models.Detection) string {
	var b strings.Builder
	for _, ev := range events {
		b.WriteString(ev.TechniqueID)
		b.WriteString("@")
		b.WriteString(ev.Timestamp.Format(time.RFC3339Nano))
		b.WriteString(";")
	}
	return b.String()
}
