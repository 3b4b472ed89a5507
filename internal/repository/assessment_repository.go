package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/samwel-gachiri/agribackup-sub003/internal/model"
)

type AssessmentRepository struct {
	db *gorm.DB
}

func NewAssessmentRepository(db *gorm.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

type assessmentRow struct {
	ID              uuid.UUID
	BatchID         uuid.UUID
	OverallScore    float64
	RiskLevel       string
	AssessedAt      time.Time
	Components      []byte
	Recommendations []byte
}

func (row assessmentRow) toModel() (*model.RiskAssessmentResult, error) {
	result := &model.RiskAssessmentResult{
		ID:           row.ID,
		BatchID:      row.BatchID,
		OverallScore: row.OverallScore,
		RiskLevel:    model.RiskLevel(row.RiskLevel),
		AssessedAt:   row.AssessedAt,
	}
	if len(row.Components) > 0 {
		if err := json.Unmarshal(row.Components, &result.Components); err != nil {
			return nil, err
		}
	}
	if len(row.Recommendations) > 0 {
		if err := json.Unmarshal(row.Recommendations, &result.Recommendations); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Save appends one assessment; history is kept and the latest by
// assessed_at is the current one.
func (r *AssessmentRepository) Save(ctx context.Context, result model.RiskAssessmentResult) error {
	components, err := json.Marshal(result.Components)
	if err != nil {
		return err
	}
	recommendations, err := json.Marshal(result.Recommendations)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO risk_assessments (
			id,
			batch_id,
			overall_score,
			risk_level,
			assessed_at,
			components,
			recommendations
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		result.ID,
		result.BatchID,
		result.OverallScore,
		string(result.RiskLevel),
		result.AssessedAt,
		components,
		recommendations,
	).Error
}

func (r *AssessmentRepository) GetCurrent(ctx context.Context, batchID uuid.UUID) (*model.RiskAssessmentResult, error) {
	var row assessmentRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, batch_id, overall_score, risk_level, assessed_at, components, recommendations
		FROM risk_assessments
		WHERE batch_id = ?
		ORDER BY assessed_at DESC
		LIMIT 1
	`, batchID).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return row.toModel()
}

func (r *AssessmentRepository) ListHistory(ctx context.Context, batchID uuid.UUID) ([]model.RiskAssessmentResult, error) {
	var rows []assessmentRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, batch_id, overall_score, risk_level, assessed_at, components, recommendations
		FROM risk_assessments
		WHERE batch_id = ?
		ORDER BY assessed_at DESC
	`, batchID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]model.RiskAssessmentResult, 0, len(rows))
	for _, row := range rows {
		result, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *result)
	}
	return out, nil
}
