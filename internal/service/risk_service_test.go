package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/samwel-gachiri/agribackup-sub003/internal/model"
	"github.com/samwel-gachiri/agribackup-sub003/internal/risk"
)

type fakeBatchStore struct {
	batch     *model.Batch
	units     []model.ProductionUnit
	documents []model.DocumentType
}

func (s *fakeBatchStore) GetBatch(_ context.Context, id uuid.UUID) (*model.Batch, error) {
	if s.batch == nil || s.batch.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.batch
	return &copied, nil
}

func (s *fakeBatchStore) UpdateRisk(_ context.Context, batchID uuid.UUID, level model.RiskLevel, rationale string) error {
	if s.batch == nil || s.batch.ID != batchID {
		return gorm.ErrRecordNotFound
	}
	s.batch.RiskLevel = &level
	s.batch.RiskRationale = &rationale
	return nil
}

func (s *fakeBatchStore) ListProductionUnits(context.Context, uuid.UUID) ([]model.ProductionUnit, error) {
	return s.units, nil
}

func (s *fakeBatchStore) ListDocumentTypes(context.Context, uuid.UUID) ([]model.DocumentType, error) {
	return s.documents, nil
}

type fakeAlertSource struct {
	alerts []model.DeforestationAlert
	err    error
	calls  int
}

func (s *fakeAlertSource) ListAlerts(context.Context, []uuid.UUID, time.Time, time.Time) ([]model.DeforestationAlert, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.alerts, nil
}

type fakeAssessmentStore struct {
	history []model.RiskAssessmentResult
}

func (s *fakeAssessmentStore) Save(_ context.Context, result model.RiskAssessmentResult) error {
	s.history = append(s.history, result)
	return nil
}

func (s *fakeAssessmentStore) GetCurrent(_ context.Context, batchID uuid.UUID) (*model.RiskAssessmentResult, error) {
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].BatchID == batchID {
			copied := s.history[i]
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeAssessmentStore) ListHistory(_ context.Context, batchID uuid.UUID) ([]model.RiskAssessmentResult, error) {
	var out []model.RiskAssessmentResult
	for _, r := range s.history {
		if r.BatchID == batchID {
			out = append(out, r)
		}
	}
	return out, nil
}

func newRiskFixture(batch *model.Batch) (*RiskService, *fakeBatchStore, *fakeAlertSource, *fakeAssessmentStore) {
	batches := &fakeBatchStore{batch: batch}
	alerts := &fakeAlertSource{}
	assessments := &fakeAssessmentStore{}
	notary := &fakeNotary{store: newFakeTransferStore()}
	engine := risk.NewEngine(risk.NewReferenceData())
	svc := NewRiskService(engine, batches, alerts, assessments, notary, zerolog.Nop())
	return svc, batches, alerts, assessments
}

func testBatch() *model.Batch {
	return &model.Batch{
		ID:            uuid.New(),
		SupplierID:    uuid.New(),
		CommodityType: "cocoa",
		CountryCode:   "GH",
		QuantityKg:    decimal.RequireFromString("1000"),
	}
}

func TestAssessStoresResultAndRationale(t *testing.T) {
	batch := testBatch()
	svc, batches, _, assessments := newRiskFixture(batch)

	result, err := svc.Assess(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if result.BatchID != batch.ID {
		t.Errorf("result batch id = %s", result.BatchID)
	}
	if len(result.Components) != 6 {
		t.Errorf("components = %d, want 6", len(result.Components))
	}
	if batches.batch.RiskLevel == nil || *batches.batch.RiskLevel != result.RiskLevel {
		t.Errorf("batch risk level = %v, want %s", batches.batch.RiskLevel, result.RiskLevel)
	}
	if batches.batch.RiskRationale == nil || *batches.batch.RiskRationale == "" {
		t.Error("batch has no stored rationale")
	}
	if len(assessments.history) != 1 {
		t.Errorf("stored assessments = %d, want 1", len(assessments.history))
	}
}

func TestReassessmentKeepsHistory(t *testing.T) {
	batch := testBatch()
	svc, _, _, assessments := newRiskFixture(batch)
	ctx := context.Background()

	first, err := svc.Assess(ctx, batch.ID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Assess(ctx, batch.ID)
	if err != nil {
		t.Fatal(err)
	}

	history, err := svc.ListHistory(ctx, batch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d entries, want 2", len(history))
	}

	current, err := svc.GetCurrent(ctx, batch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if current.ID != second.ID {
		t.Errorf("current = %s, want the latest assessment %s (first was %s)", current.ID, second.ID, first.ID)
	}
	if len(assessments.history) != 2 {
		t.Errorf("stored assessments = %d, want 2", len(assessments.history))
	}
}

func TestAssessSurvivesAlertSourceOutage(t *testing.T) {
	batch := testBatch()
	svc, batches, alerts, _ := newRiskFixture(batch)
	batches.units = []model.ProductionUnit{{ID: uuid.New(), Verified: true}}
	alerts.err = errors.New("gateway timeout")

	result, err := svc.Assess(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("assess with alert outage: %v", err)
	}
	for _, c := range result.Components {
		if c.Name == "deforestation" {
			if c.Score != 0.9 {
				t.Errorf("degraded deforestation score = %v, want 0.9", c.Score)
			}
			return
		}
	}
	t.Fatal("no deforestation component in result")
}

func TestAssessSkipsAlertQueryWithoutUnits(t *testing.T) {
	batch := testBatch()
	svc, _, alerts, _ := newRiskFixture(batch)

	if _, err := svc.Assess(context.Background(), batch.ID); err != nil {
		t.Fatal(err)
	}
	if alerts.calls != 0 {
		t.Errorf("alert source queried %d times with no production units", alerts.calls)
	}
}

func TestAssessUnknownBatch(t *testing.T) {
	svc, _, _, _ := newRiskFixture(testBatch())
	if _, err := svc.Assess(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetCurrentWithoutAssessment(t *testing.T) {
	batch := testBatch()
	svc, _, _, _ := newRiskFixture(batch)
	if _, err := svc.GetCurrent(context.Background(), batch.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
