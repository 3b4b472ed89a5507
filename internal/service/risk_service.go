package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/samwel-gachiri/agribackup-sub003/internal/ledger"
	"github.com/samwel-gachiri/agribackup-sub003/internal/model"
	"github.com/samwel-gachiri/agribackup-sub003/internal/risk"
)

type BatchStore interface {
	GetBatch(ctx context.Context, id uuid.UUID) (*model.Batch, error)
	UpdateRisk(ctx context.Context, batchID uuid.UUID, level model.RiskLevel, rationale string) error
	ListProductionUnits(ctx context.Context, batchID uuid.UUID) ([]model.ProductionUnit, error)
	ListDocumentTypes(ctx context.Context, batchID uuid.UUID) ([]model.DocumentType, error)
}

// AlertSource is the external deforestation-alert collaborator, queried by
// production-unit id set and date range.
type AlertSource interface {
	ListAlerts(ctx context.Context, unitIDs []uuid.UUID, from, to time.Time) ([]model.DeforestationAlert, error)
}

type AssessmentStore interface {
	Save(ctx context.Context, result model.RiskAssessmentResult) error
	GetCurrent(ctx context.Context, batchID uuid.UUID) (*model.RiskAssessmentResult, error)
	ListHistory(ctx context.Context, batchID uuid.UUID) ([]model.RiskAssessmentResult, error)
}

// RiskService collects stored evidence for a batch, runs the scoring
// engine and persists the outcome. Evidence-source failures degrade the
// affected component toward caution instead of aborting the assessment.
type RiskService struct {
	engine      *risk.Engine
	batches     BatchStore
	alerts      AlertSource
	assessments AssessmentStore
	notary      LedgerSubmitter
	log         zerolog.Logger
}

func NewRiskService(engine *risk.Engine, batches BatchStore, alerts AlertSource, assessments AssessmentStore, notary LedgerSubmitter, log zerolog.Logger) *RiskService {
	return &RiskService{
		engine:      engine,
		batches:     batches,
		alerts:      alerts,
		assessments: assessments,
		notary:      notary,
		log:         log,
	}
}

// Assess evaluates the batch now and stores the result as the current
// classification. Earlier results stay as history.
func (s *RiskService) Assess(ctx context.Context, batchID uuid.UUID) (*model.RiskAssessmentResult, error) {
	batch, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: batch %s", ErrNotFound, batchID)
		}
		return nil, err
	}

	evidence, err := s.collectEvidence(ctx, batch)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result := s.engine.Assess(evidence, now)

	if err := s.assessments.Save(ctx, result); err != nil {
		return nil, err
	}

	rationale := s.buildRationale(result)
	if err := s.batches.UpdateRisk(ctx, batchID, result.RiskLevel, rationale); err != nil {
		return nil, err
	}

	s.notarizeAssessment(ctx, result)

	s.log.Info().
		Str("batch_id", batchID.String()).
		Float64("score", result.OverallScore).
		Str("level", string(result.RiskLevel)).
		Msg("risk assessment stored")
	return &result, nil
}

func (s *RiskService) GetCurrent(ctx context.Context, batchID uuid.UUID) (*model.RiskAssessmentResult, error) {
	result, err := s.assessments.GetCurrent(ctx, batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no assessment for batch %s", ErrNotFound, batchID)
		}
		return nil, err
	}
	return result, nil
}

func (s *RiskService) ListHistory(ctx context.Context, batchID uuid.UUID) ([]model.RiskAssessmentResult, error) {
	return s.assessments.ListHistory(ctx, batchID)
}

func (s *RiskService) collectEvidence(ctx context.Context, batch *model.Batch) (risk.Evidence, error) {
	evidence := risk.Evidence{
		BatchID:       batch.ID,
		SupplierID:    batch.SupplierID,
		CountryCode:   batch.CountryCode,
		CommodityType: batch.CommodityType,
	}

	units, err := s.batches.ListProductionUnits(ctx, batch.ID)
	if err != nil {
		return risk.Evidence{}, err
	}
	evidence.ProductionUnits = units

	docTypes, err := s.batches.ListDocumentTypes(ctx, batch.ID)
	if err != nil {
		return risk.Evidence{}, err
	}
	evidence.DocumentTypes = docTypes

	if len(units) > 0 {
		unitIDs := make([]uuid.UUID, 0, len(units))
		for _, u := range units {
			unitIDs = append(unitIDs, u.ID)
		}
		now := time.Now().UTC()
		alerts, err := s.alerts.ListAlerts(ctx, unitIDs, now.Add(-risk.AlertWindow), now)
		if err != nil {
			// Partial evidence biases toward caution, not silence.
			s.log.Warn().Err(err).Str("batch_id", batch.ID.String()).Msg("alert source unavailable; degrading deforestation component")
			evidence.AlertSourceErr = err
		} else {
			evidence.Alerts = alerts
		}
	}

	return evidence, nil
}

func (s *RiskService) buildRationale(result model.RiskAssessmentResult) string {
	rationale := fmt.Sprintf("overall score %.2f (%s)", result.OverallScore, result.RiskLevel)
	for _, c := range result.Components {
		rationale += fmt.Sprintf("; %s %.2f: %s", c.Name, c.Score, c.Justification)
	}
	return rationale
}

// notarizeAssessment anchors the assessment summary on the ledger as a
// best-effort side effect; failure never fails the assessment.
func (s *RiskService) notarizeAssessment(ctx context.Context, result model.RiskAssessmentResult) {
	hash, err := ledger.PayloadHash(result)
	if err != nil {
		s.log.Error().Err(err).Str("batch_id", result.BatchID.String()).Msg("hashing assessment failed")
		return
	}
	if _, err := s.notary.Submit(ctx, model.PendingNotarization{
		TargetKind:  model.NotarizationTargetRiskAssessment,
		TargetID:    result.ID,
		EventType:   "RISK_ASSESSMENT",
		PayloadHash: hash,
		Fields: datatypes.JSONMap{
			"batch_id":      result.BatchID.String(),
			"overall_score": result.OverallScore,
			"risk_level":    string(result.RiskLevel),
			"assessed_at":   result.AssessedAt.Format(time.RFC3339),
		},
	}); err != nil {
		s.log.Error().Err(err).Str("batch_id", result.BatchID.String()).Msg("queueing assessment notarization failed")
	}
}
