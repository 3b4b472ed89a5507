package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/samwel-gachiri/agribackup-sub003/internal/model"
)

type PipelineStore interface {
	Get(ctx context.Context, batchID uuid.UUID) (*model.PipelineState, error)
	Save(ctx context.Context, state *model.PipelineState) error
}

type MitigationStore interface {
	HasMitigation(ctx context.Context, batchID uuid.UUID) (bool, error)
	AttachMitigation(ctx context.Context, m model.MitigationRecord) (*model.MitigationRecord, error)
}

type TransferCounter interface {
	CountUnresolvedForBatch(ctx context.Context, batchID uuid.UUID) (int64, error)
}

type RiskAssessor interface {
	Assess(ctx context.Context, batchID uuid.UUID) (*model.RiskAssessmentResult, error)
}

type BatchReader interface {
	GetBatch(ctx context.Context, id uuid.UUID) (*model.Batch, error)
}

// PipelineService advances a batch through the fixed compliance stage
// sequence. Stage metadata is shared and immutable; only the per-batch
// state moves, one step at a time.
type PipelineService struct {
	pipelines   PipelineStore
	batches     BatchReader
	mitigations MitigationStore
	transfers   TransferCounter
	riskSvc     RiskAssessor
	log         zerolog.Logger
}

func NewPipelineService(pipelines PipelineStore, batches BatchReader, mitigations MitigationStore, transfers TransferCounter, riskSvc RiskAssessor, log zerolog.Logger) *PipelineService {
	return &PipelineService{
		pipelines:   pipelines,
		batches:     batches,
		mitigations: mitigations,
		transfers:   transfers,
		riskSvc:     riskSvc,
		log:         log,
	}
}

// Start seeds a fresh pipeline for the batch at the first stage.
func (s *PipelineService) Start(ctx context.Context, batchID uuid.UUID) (*model.PipelineState, error) {
	if _, err := s.batches.GetBatch(ctx, batchID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: batch %s", ErrNotFound, batchID)
		}
		return nil, err
	}
	if existing, err := s.pipelines.Get(ctx, batchID); err == nil {
		return nil, fmt.Errorf("%w: pipeline already started at %s", ErrInvalidState, existing.CurrentStage)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	state := model.NewPipelineState(batchID, time.Now().UTC())
	if err := s.pipelines.Save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *PipelineService) Get(ctx context.Context, batchID uuid.UUID) (*model.PipelineState, error) {
	return s.getState(ctx, batchID)
}

// CompleteAction checks one required action off the current stage. When
// the last pending action clears, the stage moves to PENDING_REVIEW.
func (s *PipelineService) CompleteAction(ctx context.Context, batchID uuid.UUID, action string) (*model.PipelineState, error) {
	state, err := s.getState(ctx, batchID)
	if err != nil {
		return nil, err
	}
	current := state.StageState(state.CurrentStage)
	if current.Status != model.StageStatusInProgress && current.Status != model.StageStatusPendingReview {
		return nil, fmt.Errorf("%w: stage %s is %s", ErrInvalidState, current.Stage, current.Status)
	}

	found := -1
	for i, pending := range current.PendingActions {
		if pending == action {
			found = i
			break
		}
	}
	if found == -1 {
		return nil, fmt.Errorf("%w: action %q is not pending for stage %s", ErrInvalidInput, action, current.Stage)
	}

	current.PendingActions = append(current.PendingActions[:found], current.PendingActions[found+1:]...)
	current.CompletedActions = append(current.CompletedActions, action)
	if len(current.PendingActions) == 0 {
		current.Status = model.StageStatusPendingReview
	}
	state.UpdatedAt = time.Now().UTC()

	if err := s.pipelines.Save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// CompleteStage marks the current stage COMPLETED. The collection stage
// additionally requires every transfer for the batch to be resolved: a
// hand-off still PENDING or DISPUTED holds the pipeline.
func (s *PipelineService) CompleteStage(ctx context.Context, batchID uuid.UUID) (*model.PipelineState, error) {
	state, err := s.getState(ctx, batchID)
	if err != nil {
		return nil, err
	}
	current := state.StageState(state.CurrentStage)
	switch current.Status {
	case model.StageStatusInProgress, model.StageStatusPendingReview:
	default:
		return nil, fmt.Errorf("%w: stage %s is %s", ErrInvalidState, current.Stage, current.Status)
	}

	if current.Stage == model.StageCollectionAggregation {
		unresolved, err := s.transfers.CountUnresolvedForBatch(ctx, batchID)
		if err != nil {
			return nil, err
		}
		if unresolved > 0 {
			return nil, fmt.Errorf("%w: %d transfer(s) still pending or disputed", ErrInvalidState, unresolved)
		}
	}

	now := time.Now().UTC()
	current.Status = model.StageStatusCompleted
	current.CompletedAt = &now
	if len(current.PendingActions) > 0 {
		current.CompletedActions = append(current.CompletedActions, current.PendingActions...)
		current.PendingActions = nil
	}
	state.UpdatedAt = now

	if err := s.pipelines.Save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Advance moves the batch to the next stage. The current stage must be
// COMPLETED; movement is strictly one step. Entering the risk assessment
// stage runs the risk engine; entering the due diligence stage is refused
// (BLOCKED) while the stored risk level is HIGH with no mitigation.
func (s *PipelineService) Advance(ctx context.Context, batchID uuid.UUID) (*model.PipelineState, error) {
	state, err := s.getState(ctx, batchID)
	if err != nil {
		return nil, err
	}
	current := state.StageState(state.CurrentStage)
	if current.Status != model.StageStatusCompleted {
		return nil, fmt.Errorf("%w: stage %s is %s, not COMPLETED", ErrInvalidState, current.Stage, current.Status)
	}

	next := model.NextStage(state.CurrentStage)
	if next == nil {
		return nil, fmt.Errorf("%w: %s is the final stage", ErrInvalidState, state.CurrentStage)
	}

	now := time.Now().UTC()
	nextState := state.StageState(next.ID)
	nextState.StartedAt = &now
	nextState.PendingActions = append([]string(nil), next.RequiredActions...)
	nextState.Status = model.StageStatusInProgress
	state.CurrentStage = next.ID
	state.UpdatedAt = now

	switch next.ID {
	case model.StageRiskAssessment:
		result, err := s.riskSvc.Assess(ctx, batchID)
		if err != nil {
			return nil, err
		}
		s.log.Info().
			Str("batch_id", batchID.String()).
			Str("level", string(result.RiskLevel)).
			Msg("risk assessment stage classification stored")

	case model.StageDueDiligenceStatement:
		blocked, reason, err := s.dueDiligenceBlocked(ctx, batchID)
		if err != nil {
			return nil, err
		}
		if blocked {
			nextState.Status = model.StageStatusBlocked
			state.Blockers = append(state.Blockers, reason)
		}
	}

	if err := s.pipelines.Save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Rollback moves the batch back exactly one stage. The move is always
// explicit; nothing in the pipeline steps backward on its own.
func (s *PipelineService) Rollback(ctx context.Context, batchID uuid.UUID) (*model.PipelineState, error) {
	state, err := s.getState(ctx, batchID)
	if err != nil {
		return nil, err
	}
	prev := model.PreviousStage(state.CurrentStage)
	if prev == nil {
		return nil, fmt.Errorf("%w: %s is the first stage", ErrInvalidState, state.CurrentStage)
	}

	now := time.Now().UTC()
	current := state.StageState(state.CurrentStage)
	if current.Status == model.StageStatusBlocked {
		// A blocker belongs to the stage that raised it.
		state.Blockers = nil
	}
	current.Status = model.StageStatusNotStarted
	current.StartedAt = nil
	current.CompletedAt = nil
	current.PendingActions = nil
	current.CompletedActions = nil

	prevState := state.StageState(prev.ID)
	prevState.Status = model.StageStatusInProgress
	prevState.CompletedAt = nil
	state.CurrentStage = prev.ID
	state.UpdatedAt = now

	if err := s.pipelines.Save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// AttachMitigation records a mitigation for a high-risk batch and, when
// the due diligence stage is blocked on the risk gate, unblocks it.
func (s *PipelineService) AttachMitigation(ctx context.Context, batchID uuid.UUID, description string, principal model.Principal) (*model.PipelineState, error) {
	if description == "" {
		return nil, fmt.Errorf("%w: mitigation description is required", ErrInvalidInput)
	}
	if _, err := s.mitigations.AttachMitigation(ctx, model.MitigationRecord{
		BatchID:     batchID,
		Description: description,
		CreatedBy:   principal.UserID,
	}); err != nil {
		return nil, err
	}

	state, err := s.getState(ctx, batchID)
	if err != nil {
		return nil, err
	}
	dds := state.StageState(model.StageDueDiligenceStatement)
	if state.CurrentStage == model.StageDueDiligenceStatement && dds.Status == model.StageStatusBlocked {
		dds.Status = model.StageStatusInProgress
		state.Blockers = nil
		state.UpdatedAt = time.Now().UTC()
		if err := s.pipelines.Save(ctx, state); err != nil {
			return nil, err
		}
	}
	return state, nil
}

func (s *PipelineService) dueDiligenceBlocked(ctx context.Context, batchID uuid.UUID) (bool, string, error) {
	batch, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		return false, "", err
	}
	if batch.RiskLevel == nil || *batch.RiskLevel != model.RiskLevelHigh {
		return false, "", nil
	}
	mitigated, err := s.mitigations.HasMitigation(ctx, batchID)
	if err != nil {
		return false, "", err
	}
	if mitigated {
		return false, "", nil
	}
	return true, "due diligence statement blocked: batch risk level is HIGH with no mitigation record attached", nil
}

func (s *PipelineService) getState(ctx context.Context, batchID uuid.UUID) (*model.PipelineState, error) {
	state, err := s.pipelines.Get(ctx, batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no pipeline for batch %s", ErrNotFound, batchID)
		}
		return nil, err
	}
	return state, nil
}
