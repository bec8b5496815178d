package checkpoint

import (
	"context"
	"strings"
	"testing"

	"github.com/openmigrate/openmigrate/pkg/engine"
)

func TestBuiltins_ReturnsFreshCopies(t *testing.T) {
	a := Builtins()
	b := Builtins()
	if len(a) != 4 {
		t.Fatalf("expected 4 built-in checkpoints, got %d", len(a))
	}

	a[0].Handler = nil
	if b[0].Handler == nil {
		t.Errorf("mutating one copy must not affect another")
	}
}

func TestPhysicalIDGate(t *testing.T) {
	cp := PhysicalIDGate()
	if cp.Step != engine.StepDiscovery {
		t.Errorf("expected discovery step, got %s", cp.Step)
	}

	st := &engine.MigrationState{
		ID: "mig-1",
		Resources: []engine.ResourceRecord{
			{LogicalID: "bucket", Type: "storage.bucket", PhysicalID: "b-1"},
			{LogicalID: "queue", Type: "messaging.queue"},
		},
	}

	fired, err := cp.Condition(context.Background(), st)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fired {
		t.Fatalf("expected gate to fire for unresolved resource")
	}

	res, err := cp.Handler(context.Background(), st)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Action != engine.ActionPause {
		t.Errorf("expected pause, got %s", res.Action)
	}
	if !strings.Contains(res.Message, "queue") {
		t.Errorf("expected unresolved logical id in message, got %s", res.Message)
	}

	st.Resources[1].PhysicalID = "q-1"
	fired, err = cp.Condition(context.Background(), st)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fired {
		t.Errorf("expected gate to stay quiet once everything is resolved")
	}
}

func TestCriticalDifferenceGate(t *testing.T) {
	cp := CriticalDifferenceGate()
	if cp.Step != engine.StepCompare {
		t.Errorf("expected compare step, got %s", cp.Step)
	}

	st := &engine.MigrationState{
		ID: "mig-1",
		Resources: []engine.ResourceRecord{
			{LogicalID: "db", Type: "database.instance", Classification: "critical"},
		},
	}

	fired, err := cp.Condition(context.Background(), st)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fired {
		t.Fatalf("expected gate to fire for critical classification")
	}

	res, err := cp.Handler(context.Background(), st)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Action != engine.ActionPause {
		t.Errorf("expected pause, got %s", res.Action)
	}
	if !strings.Contains(res.Message, "db") {
		t.Errorf("expected critical logical id in message, got %s", res.Message)
	}

	// The Critical flag fires the gate too.
	st.Resources[0].Classification = "acceptable"
	st.Resources[0].Critical = true
	fired, _ = cp.Condition(context.Background(), st)
	if !fired {
		t.Errorf("expected gate to fire for the critical flag")
	}
}

func TestDriftGate(t *testing.T) {
	cp := DriftGate()
	if cp.Step != engine.StepTemplateModification {
		t.Errorf("expected template_modification step, got %s", cp.Step)
	}

	st := &engine.MigrationState{ID: "mig-1"}
	fired, err := cp.Condition(context.Background(), st)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fired {
		t.Errorf("expected gate to stay quiet without drift")
	}

	st.Resources = []engine.ResourceRecord{{LogicalID: "vm", Type: "compute.instance", Drifted: true}}
	fired, _ = cp.Condition(context.Background(), st)
	if !fired {
		t.Fatalf("expected gate to fire for drifted resource")
	}

	res, err := cp.Handler(context.Background(), st)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Action != engine.ActionPause {
		t.Errorf("expected pause, got %s", res.Action)
	}
}

func TestPreImportGate(t *testing.T) {
	cp := PreImportGate()
	if cp.Step != engine.StepImportPreparation {
		t.Errorf("expected import_preparation step, got %s", cp.Step)
	}

	st := &engine.MigrationState{ID: "mig-1"}
	fired, err := cp.Condition(context.Background(), st)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fired {
		t.Fatalf("expected gate to always fire")
	}

	res, err := cp.Handler(context.Background(), st)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Action != engine.ActionContinue {
		t.Errorf("expected continue by default, got %s", res.Action)
	}
}
