package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestStageSequenceOrder(t *testing.T) {
	want := []StageID{
		StageProductionRegistration,
		StageGeolocationVerification,
		StageDeforestationCheck,
		StageCollectionAggregation,
		StageProcessing,
		StageRiskAssessment,
		StageDueDiligenceStatement,
		StageExportShipment,
		StageCustomsClearance,
		StageDeliveryComplete,
	}
	stages := Stages()
	if len(stages) != len(want) {
		t.Fatalf("stage count = %d, want %d", len(stages), len(want))
	}
	for i, def := range stages {
		if def.ID != want[i] {
			t.Errorf("stage[%d] = %s, want %s", i, def.ID, want[i])
		}
		if len(def.RequiredActions) == 0 {
			t.Errorf("stage %s has no required actions", def.ID)
		}
	}
}

func TestNextAndPreviousStage(t *testing.T) {
	if next := NextStage(StageProductionRegistration); next == nil || next.ID != StageGeolocationVerification {
		t.Errorf("NextStage(first) = %v", next)
	}
	if NextStage(StageDeliveryComplete) != nil {
		t.Error("NextStage(last) must be nil")
	}
	if PreviousStage(StageProductionRegistration) != nil {
		t.Error("PreviousStage(first) must be nil")
	}
	if prev := PreviousStage(StageDeliveryComplete); prev == nil || prev.ID != StageCustomsClearance {
		t.Errorf("PreviousStage(last) = %v", prev)
	}
	if NextStage("NOT_A_STAGE") != nil {
		t.Error("NextStage(unknown) must be nil")
	}

	// Walking forward then back returns to the start.
	id := StageProductionRegistration
	steps := 0
	for next := NextStage(id); next != nil; next = NextStage(id) {
		id = next.ID
		steps++
	}
	if steps != len(Stages())-1 {
		t.Errorf("forward walk took %d steps, want %d", steps, len(Stages())-1)
	}
	for prev := PreviousStage(id); prev != nil; prev = PreviousStage(id) {
		id = prev.ID
	}
	if id != StageProductionRegistration {
		t.Errorf("backward walk ended at %s", id)
	}
}

func TestNewPipelineState(t *testing.T) {
	state := NewPipelineState(uuid.New(), time.Now().UTC())
	if state.CurrentStage != StageProductionRegistration {
		t.Errorf("current stage = %s", state.CurrentStage)
	}
	for _, s := range state.Stages {
		if s.Stage == StageProductionRegistration {
			if s.Status != StageStatusInProgress {
				t.Errorf("first stage status = %s, want IN_PROGRESS", s.Status)
			}
			if len(s.PendingActions) != len(FirstStage().RequiredActions) {
				t.Errorf("pending actions = %d, want %d", len(s.PendingActions), len(FirstStage().RequiredActions))
			}
			continue
		}
		if s.Status != StageStatusNotStarted {
			t.Errorf("stage %s status = %s, want NOT_STARTED", s.Stage, s.Status)
		}
	}
	if state.StageState("NOT_A_STAGE") != nil {
		t.Error("unknown stage lookup must return nil")
	}
}
