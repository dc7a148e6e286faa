package opstore

import (
	"context"
	"testing"
	"time"

	"detcover/pkg/models"
)

func TestMemoryStoreLocateByID(t *testing.T) {
	store := NewMemoryStore()
	store.Add(&models.Operation{ID: "op-1", Name: "first", Start: time.Now()})
	store.Add(&models.Operation{ID: "op-2", Name: "second", Start: time.Now()})

	ops, err := store.Locate(context.Background(), Filter{ID: "op-2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ops) != 1 || ops[0].Name != "second" {
		t.Fatalf("unexpected result: %+v", ops)
	}
}

func TestMemoryStoreLocateMissingID(t *testing.T) {
	store := NewMemoryStore()
	store.Add(&models.Operation{ID: "op-1", Start: time.Now()})

	ops, err := store.Locate(context.Background(), Filter{ID: "missing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ops) != 0 {
		t.Fatalf("expected no operations, got %d", len(ops))
	}
}

func TestMemoryStoreLocateAllPreservesOrder(t *testing.T) {
	store := NewMemoryStore()
	store.Add(&models.Operation{ID: "b", Start: time.Now()})
	store.Add(&models.Operation{ID: "a", Start: time.Now()})

	ops, err := store.Locate(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ops) != 2 || ops[0].ID != "b" || ops[1].ID != "a" {
		t.Fatalf("expected insertion order, got %+v", ops)
	}
}

func TestMemoryStoreReplacesExisting(t *testing.T) {
	store := NewMemoryStore()
	store.Add(&models.Operation{ID: "op-1", Name: "old", Start: time.Now()})
	store.Add(&models.Operation{ID: "op-1", Name: "new", Start: time.Now()})

	ops, err := store.Locate(context.Background(), Filter{ID: "op-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ops) != 1 || ops[0].Name != "new" {
		t.Fatalf("expected replacement, got %+v", ops)
	}
}
