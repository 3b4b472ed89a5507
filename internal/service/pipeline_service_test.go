package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/samwel-gachiri/agribackup-sub003/internal/model"
)

type fakePipelineStore struct {
	states map[uuid.UUID]*model.PipelineState
}

func (s *fakePipelineStore) Get(_ context.Context, batchID uuid.UUID) (*model.PipelineState, error) {
	state, ok := s.states[batchID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return state, nil
}

func (s *fakePipelineStore) Save(_ context.Context, state *model.PipelineState) error {
	s.states[state.BatchID] = state
	return nil
}

type fakeBatchReader struct {
	batches map[uuid.UUID]*model.Batch
}

func (r *fakeBatchReader) GetBatch(_ context.Context, id uuid.UUID) (*model.Batch, error) {
	b, ok := r.batches[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return b, nil
}

type fakeMitigationStore struct {
	mitigated map[uuid.UUID]bool
}

func (s *fakeMitigationStore) HasMitigation(_ context.Context, batchID uuid.UUID) (bool, error) {
	return s.mitigated[batchID], nil
}

func (s *fakeMitigationStore) AttachMitigation(_ context.Context, m model.MitigationRecord) (*model.MitigationRecord, error) {
	m.ID = uuid.New()
	m.CreatedAt = time.Now().UTC()
	s.mitigated[m.BatchID] = true
	return &m, nil
}

type fakeTransferCounter struct {
	unresolved int64
}

func (c *fakeTransferCounter) CountUnresolvedForBatch(context.Context, uuid.UUID) (int64, error) {
	return c.unresolved, nil
}

// fakeRiskAssessor stores its configured level on the batch, like the real
// assessment path does after scoring.
type fakeRiskAssessor struct {
	batches *fakeBatchReader
	level   model.RiskLevel
	calls   int
}

func (a *fakeRiskAssessor) Assess(_ context.Context, batchID uuid.UUID) (*model.RiskAssessmentResult, error) {
	a.calls++
	if b, ok := a.batches.batches[batchID]; ok {
		level := a.level
		b.RiskLevel = &level
	}
	return &model.RiskAssessmentResult{
		ID:        uuid.New(),
		BatchID:   batchID,
		RiskLevel: a.level,
	}, nil
}

type pipelineFixture struct {
	svc         *PipelineService
	batchID     uuid.UUID
	mitigations *fakeMitigationStore
	transfers   *fakeTransferCounter
	assessor    *fakeRiskAssessor
}

func newPipelineFixture(level model.RiskLevel) *pipelineFixture {
	batchID := uuid.New()
	batches := &fakeBatchReader{batches: map[uuid.UUID]*model.Batch{
		batchID: {ID: batchID, SupplierID: uuid.New(), CommodityType: "cocoa", CountryCode: "GH"},
	}}
	mitigations := &fakeMitigationStore{mitigated: make(map[uuid.UUID]bool)}
	transfers := &fakeTransferCounter{}
	assessor := &fakeRiskAssessor{batches: batches, level: level}
	svc := NewPipelineService(
		&fakePipelineStore{states: make(map[uuid.UUID]*model.PipelineState)},
		batches, mitigations, transfers, assessor, zerolog.Nop(),
	)
	return &pipelineFixture{svc: svc, batchID: batchID, mitigations: mitigations, transfers: transfers, assessor: assessor}
}

// advanceTo completes and advances stages until the pipeline sits at the
// given stage.
func (f *pipelineFixture) advanceTo(t *testing.T, target model.StageID) *model.PipelineState {
	t.Helper()
	state, err := f.svc.Get(context.Background(), f.batchID)
	if err != nil {
		t.Fatalf("get pipeline: %v", err)
	}
	for state.CurrentStage != target {
		from := state.CurrentStage
		if _, err := f.svc.CompleteStage(context.Background(), f.batchID); err != nil {
			t.Fatalf("complete stage %s: %v", from, err)
		}
		state, err = f.svc.Advance(context.Background(), f.batchID)
		if err != nil {
			t.Fatalf("advance from %s: %v", from, err)
		}
	}
	return state
}

func TestStartSeedsFirstStage(t *testing.T) {
	f := newPipelineFixture(model.RiskLevelLow)
	ctx := context.Background()

	state, err := f.svc.Start(ctx, f.batchID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if state.CurrentStage != model.StageProductionRegistration {
		t.Errorf("current stage = %s, want %s", state.CurrentStage, model.StageProductionRegistration)
	}
	first := state.StageState(model.StageProductionRegistration)
	if first.Status != model.StageStatusInProgress {
		t.Errorf("first stage status = %s, want IN_PROGRESS", first.Status)
	}
	if len(first.PendingActions) == 0 {
		t.Error("first stage seeded without pending actions")
	}
	if len(state.Stages) != len(model.Stages()) {
		t.Errorf("seeded %d stage states, want %d", len(state.Stages), len(model.Stages()))
	}

	if _, err := f.svc.Start(ctx, f.batchID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second start: err = %v, want ErrInvalidState", err)
	}
	if _, err := f.svc.Start(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("start for unknown batch: err = %v, want ErrNotFound", err)
	}
}

func TestAdvanceRequiresCompletedStage(t *testing.T) {
	f := newPipelineFixture(model.RiskLevelLow)
	ctx := context.Background()
	if _, err := f.svc.Start(ctx, f.batchID); err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.Advance(ctx, f.batchID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("advance with stage in progress: err = %v, want ErrInvalidState", err)
	}

	if _, err := f.svc.CompleteStage(ctx, f.batchID); err != nil {
		t.Fatalf("complete stage: %v", err)
	}
	state, err := f.svc.Advance(ctx, f.batchID)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if state.CurrentStage != model.StageGeolocationVerification {
		t.Errorf("current stage = %s, want %s", state.CurrentStage, model.StageGeolocationVerification)
	}
	next := state.StageState(model.StageGeolocationVerification)
	if next.Status != model.StageStatusInProgress {
		t.Errorf("entered stage status = %s, want IN_PROGRESS", next.Status)
	}
	if len(next.PendingActions) == 0 {
		t.Error("entered stage has no pending actions")
	}
}

func TestCompleteActionMovesStageToReview(t *testing.T) {
	f := newPipelineFixture(model.RiskLevelLow)
	ctx := context.Background()
	if _, err := f.svc.Start(ctx, f.batchID); err != nil {
		t.Fatal(err)
	}

	actions := model.FirstStage().RequiredActions
	state, err := f.svc.CompleteAction(ctx, f.batchID, actions[0])
	if err != nil {
		t.Fatalf("complete action: %v", err)
	}
	current := state.StageState(state.CurrentStage)
	if current.Status != model.StageStatusInProgress {
		t.Errorf("status after first action = %s, want IN_PROGRESS", current.Status)
	}

	state, err = f.svc.CompleteAction(ctx, f.batchID, actions[1])
	if err != nil {
		t.Fatalf("complete action: %v", err)
	}
	current = state.StageState(state.CurrentStage)
	if current.Status != model.StageStatusPendingReview {
		t.Errorf("status after last action = %s, want PENDING_REVIEW", current.Status)
	}
	if len(current.PendingActions) != 0 {
		t.Errorf("pending actions = %v, want none", current.PendingActions)
	}
	if len(current.CompletedActions) != len(actions) {
		t.Errorf("completed actions = %d, want %d", len(current.CompletedActions), len(actions))
	}

	if _, err := f.svc.CompleteAction(ctx, f.batchID, "not a real action"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("unknown action: err = %v, want ErrInvalidInput", err)
	}
}

func TestCollectionStageHoldsOnUnresolvedTransfers(t *testing.T) {
	f := newPipelineFixture(model.RiskLevelLow)
	ctx := context.Background()
	if _, err := f.svc.Start(ctx, f.batchID); err != nil {
		t.Fatal(err)
	}
	f.advanceTo(t, model.StageCollectionAggregation)

	f.transfers.unresolved = 2
	if _, err := f.svc.CompleteStage(ctx, f.batchID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("complete with unresolved transfers: err = %v, want ErrInvalidState", err)
	}

	f.transfers.unresolved = 0
	state, err := f.svc.CompleteStage(ctx, f.batchID)
	if err != nil {
		t.Fatalf("complete with all transfers resolved: %v", err)
	}
	if got := state.StageState(model.StageCollectionAggregation).Status; got != model.StageStatusCompleted {
		t.Errorf("stage status = %s, want COMPLETED", got)
	}
}

func TestEnteringRiskAssessmentRunsEngine(t *testing.T) {
	f := newPipelineFixture(model.RiskLevelMedium)
	ctx := context.Background()
	if _, err := f.svc.Start(ctx, f.batchID); err != nil {
		t.Fatal(err)
	}
	f.advanceTo(t, model.StageRiskAssessment)

	if f.assessor.calls != 1 {
		t.Errorf("risk assessments run = %d, want 1", f.assessor.calls)
	}
}

func TestDueDiligenceBlockedOnHighRiskWithoutMitigation(t *testing.T) {
	f := newPipelineFixture(model.RiskLevelHigh)
	ctx := context.Background()
	if _, err := f.svc.Start(ctx, f.batchID); err != nil {
		t.Fatal(err)
	}
	state := f.advanceTo(t, model.StageDueDiligenceStatement)

	dds := state.StageState(model.StageDueDiligenceStatement)
	if dds.Status != model.StageStatusBlocked {
		t.Fatalf("due diligence status = %s, want BLOCKED", dds.Status)
	}
	if len(state.Blockers) == 0 {
		t.Error("blocked pipeline carries no blocker description")
	}

	// Advancing past a blocked stage is refused.
	if _, err := f.svc.Advance(ctx, f.batchID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("advance past blocked stage: err = %v, want ErrInvalidState", err)
	}

	principal := model.Principal{UserID: uuid.New(), OrgID: uuid.New(), Role: "COMPLIANCE_OFFICER"}
	state, err := f.svc.AttachMitigation(ctx, f.batchID, "On-site audit scheduled; interim supplier undertaking signed", principal)
	if err != nil {
		t.Fatalf("attach mitigation: %v", err)
	}
	dds = state.StageState(model.StageDueDiligenceStatement)
	if dds.Status != model.StageStatusInProgress {
		t.Errorf("status after mitigation = %s, want IN_PROGRESS", dds.Status)
	}
	if len(state.Blockers) != 0 {
		t.Errorf("blockers after mitigation = %v, want none", state.Blockers)
	}
}

func TestDueDiligenceProceedsWhenMitigated(t *testing.T) {
	f := newPipelineFixture(model.RiskLevelHigh)
	ctx := context.Background()
	if _, err := f.svc.Start(ctx, f.batchID); err != nil {
		t.Fatal(err)
	}
	f.mitigations.mitigated[f.batchID] = true

	state := f.advanceTo(t, model.StageDueDiligenceStatement)
	dds := state.StageState(model.StageDueDiligenceStatement)
	if dds.Status != model.StageStatusInProgress {
		t.Errorf("due diligence status = %s, want IN_PROGRESS", dds.Status)
	}
}

func TestAttachMitigationRequiresDescription(t *testing.T) {
	f := newPipelineFixture(model.RiskLevelHigh)
	ctx := context.Background()
	if _, err := f.svc.Start(ctx, f.batchID); err != nil {
		t.Fatal(err)
	}
	principal := model.Principal{UserID: uuid.New()}
	if _, err := f.svc.AttachMitigation(ctx, f.batchID, "", principal); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestRollbackSingleStep(t *testing.T) {
	f := newPipelineFixture(model.RiskLevelLow)
	ctx := context.Background()
	if _, err := f.svc.Start(ctx, f.batchID); err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.Rollback(ctx, f.batchID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("rollback at first stage: err = %v, want ErrInvalidState", err)
	}

	f.advanceTo(t, model.StageDeforestationCheck)
	state, err := f.svc.Rollback(ctx, f.batchID)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if state.CurrentStage != model.StageGeolocationVerification {
		t.Errorf("current stage = %s, want %s", state.CurrentStage, model.StageGeolocationVerification)
	}
	if got := state.StageState(model.StageGeolocationVerification).Status; got != model.StageStatusInProgress {
		t.Errorf("previous stage status = %s, want IN_PROGRESS", got)
	}
	rolled := state.StageState(model.StageDeforestationCheck)
	if rolled.Status != model.StageStatusNotStarted {
		t.Errorf("rolled-back stage status = %s, want NOT_STARTED", rolled.Status)
	}
}

func TestRollbackOutOfBlockedStageClearsBlockers(t *testing.T) {
	f := newPipelineFixture(model.RiskLevelHigh)
	ctx := context.Background()
	if _, err := f.svc.Start(ctx, f.batchID); err != nil {
		t.Fatal(err)
	}
	state := f.advanceTo(t, model.StageDueDiligenceStatement)
	if got := state.StageState(model.StageDueDiligenceStatement).Status; got != model.StageStatusBlocked {
		t.Fatalf("due diligence status = %s, want BLOCKED", got)
	}
	if len(state.Blockers) == 0 {
		t.Fatal("blocked pipeline carries no blocker description")
	}

	state, err := f.svc.Rollback(ctx, f.batchID)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if state.CurrentStage != model.StageRiskAssessment {
		t.Errorf("current stage = %s, want %s", state.CurrentStage, model.StageRiskAssessment)
	}
	if len(state.Blockers) != 0 {
		t.Errorf("blockers after rollback = %v, want none", state.Blockers)
	}
	if got := state.StageState(model.StageDueDiligenceStatement).Status; got != model.StageStatusNotStarted {
		t.Errorf("rolled-back stage status = %s, want NOT_STARTED", got)
	}
}

func TestAdvancePastFinalStage(t *testing.T) {
	f := newPipelineFixture(model.RiskLevelLow)
	ctx := context.Background()
	if _, err := f.svc.Start(ctx, f.batchID); err != nil {
		t.Fatal(err)
	}
	f.advanceTo(t, model.StageDeliveryComplete)

	if _, err := f.svc.CompleteStage(ctx, f.batchID); err != nil {
		t.Fatalf("complete final stage: %v", err)
	}
	if _, err := f.svc.Advance(ctx, f.batchID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("advance past final stage: err = %v, want ErrInvalidState", err)
	}
}
