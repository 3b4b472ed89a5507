package model

import (
	"time"

	"github.com/google/uuid"
)

// StageState tracks one batch's progress through one stage.
type StageState struct {
	Stage            StageID     `json:"stage"`
	Status           StageStatus `json:"status"`
	CompletedActions []string    `json:"completed_actions,omitempty"`
	PendingActions   []string    `json:"pending_actions,omitempty"`
	StartedAt        *time.Time  `json:"started_at,omitempty"`
	CompletedAt      *time.Time  `json:"completed_at,omitempty"`
}

// PipelineState is the 1:1 per-batch view of the compliance pipeline:
// the current stage pointer plus per-stage status and open blockers.
type PipelineState struct {
	BatchID      uuid.UUID    `json:"batch_id"`
	CurrentStage StageID      `json:"current_stage"`
	Stages       []StageState `json:"stages"`
	Blockers     []string     `json:"blockers,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// StageState returns the tracked state for the given stage, or nil.
func (p *PipelineState) StageState(id StageID) *StageState {
	for i := range p.Stages {
		if p.Stages[i].Stage == id {
			return &p.Stages[i]
		}
	}
	return nil
}

// NewPipelineState seeds a fresh pipeline with every stage NOT_STARTED and
// the first stage IN_PROGRESS with its required actions pending.
func NewPipelineState(batchID uuid.UUID, now time.Time) *PipelineState {
	stages := make([]StageState, 0, len(stageSequence))
	for i, def := range stageSequence {
		state := StageState{
			Stage:  def.ID,
			Status: StageStatusNotStarted,
		}
		if i == 0 {
			state.Status = StageStatusInProgress
			state.PendingActions = append([]string(nil), def.RequiredActions...)
			started := now
			state.StartedAt = &started
		}
		stages = append(stages, state)
	}
	return &PipelineState{
		BatchID:      batchID,
		CurrentStage: stageSequence[0].ID,
		Stages:       stages,
		UpdatedAt:    now,
	}
}
