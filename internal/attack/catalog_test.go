package attack

import "testing"

func TestNormalizeStripsSubTechniqueSuffix(t *testing.T) {
	cases := map[string]string{
		"T1059.001": "T1059",
		"T1059.002": "T1059",
		"T1078":     "T1078",
		" t1562.004 ": "T1562",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsValidAcceptsTechniquePattern(t *testing.T) {
	valid := []string{"T1059", "T1059.001", "T1003"}
	for _, id := range valid {
		if !IsValid(id) {
			t.Fatalf("expected %q to be valid", id)
		}
	}
	invalid := []string{"", "1059", "T", "T1059.", "TA0002", "T1059.001.002"}
	for _, id := range invalid {
		if IsValid(id) {
			t.Fatalf("expected %q to be invalid", id)
		}
	}
}

func TestDescribeFallsBackToUnknown(t *testing.T) {
	tech := Describe("T9999")
	if tech.Name != "Unknown Technique" {
		t.Fatalf("unexpected name: %s", tech.Name)
	}
	if len(tech.Tactics) != 1 || tech.Tactics[0] != "unknown" {
		t.Fatalf("unexpected tactics: %v", tech.Tactics)
	}
}

func TestDescribeResolvesSubTechniqueThroughParent(t *testing.T) {
	tech := Describe("T1059.001")
	if tech.Name != "Command and Scripting Interpreter" {
		t.Fatalf("unexpected name: %s", tech.Name)
	}
}
