package extract

import (
	"testing"
	"time"

	"detcover/pkg/models"
)

func TestTechniquesCollapsesSubTechniquesIntoParent(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	op := &models.Operation{
		ID: "op-1",
		Chain: []*models.Link{
			{Decide: base, Status: 0, Ability: &models.Ability{TechniqueID: "T1059.001"}},
			{Decide: base.Add(time.Minute), Status: 0, Ability: &models.Ability{TechniqueID: "T1059.002"}},
		},
	}

	recs := Techniques(op)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].TechniqueID != "T1059" {
		t.Fatalf("expected T1059, got %s", recs[0].TechniqueID)
	}
	if recs[0].Count != 2 {
		t.Fatalf("expected count 2, got %d", recs[0].Count)
	}
	if len(recs[0].Executions) != 2 {
		t.Fatalf("expected 2 executions, got %d", len(recs[0].Executions))
	}
}

func TestTechniquesPreservesFirstOccurrenceOrder(t *testing.T) {
	op := &models.Operation{
		Chain: []*models.Link{
			{Ability: &models.Ability{TechniqueID: "T1082"}},
			{Ability: &models.Ability{TechniqueID: "T1059"}},
			{Ability: &models.Ability{TechniqueID: "T1082"}},
			{Ability: &models.Ability{TechniqueID: "T1003"}},
		},
	}

	recs := Techniques(op)
	got := IDs(recs)
	want := []string{"T1082", "T1059", "T1003"}
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order at %d: got %v want %v", i, got, want)
		}
	}
}

func TestTechniquesSkipsLinksWithoutQualifyingAbility(t *testing.T) {
	op := &models.Operation{
		Chain: []*models.Link{
			{Command: "whoami"},
			{Ability: &models.Ability{TechniqueID: ""}},
			{Ability: &models.Ability{TechniqueID: "not-a-technique"}},
		},
	}
	if recs := Techniques(op); len(recs) != 0 {
		t.Fatalf("expected no records, got %d", len(recs))
	}
}

func TestTechniquesUsesCatalogMetadataWithAbilityFallback(t *testing.T) {
	op := &models.Operation{
		Chain: []*models.Link{
			{Ability: &models.Ability{TechniqueID: "T1059"}},
			{Ability: &models.Ability{TechniqueID: "T9876", TechniqueName: "Custom Red Team Step"}},
		},
	}

	recs := Techniques(op)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Name != "Command and Scripting Interpreter" {
		t.Fatalf("unexpected catalog name: %s", recs[0].Name)
	}
	if recs[1].Name != "Custom Red Team Step" {
		t.Fatalf("expected ability name fallback, got %s", recs[1].Name)
	}
	if len(recs[1].Tactics) != 1 || recs[1].Tactics[0] != "unknown" {
		t.Fatalf("expected unknown tactics, got %v", recs[1].Tactics)
	}
}
