package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/samwel-gachiri/agribackup-sub003/internal/model"
)

type BatchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

func (r *BatchRepository) GetBatch(ctx context.Context, id uuid.UUID) (*model.Batch, error) {
	var batch model.Batch
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			id,
			supplier_id,
			commodity_type,
			country_code,
			quantity_kg,
			risk_level,
			risk_rationale,
			created_at
		FROM batches
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&batch).Error
	if err != nil {
		return nil, err
	}
	if batch.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &batch, nil
}

// UpdateRisk stores the latest classification and rationale on the batch.
func (r *BatchRepository) UpdateRisk(ctx context.Context, batchID uuid.UUID, level model.RiskLevel, rationale string) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE batches
		SET risk_level = ?, risk_rationale = ?
		WHERE id = ?
	`, string(level), rationale, batchID).Error
}

func (r *BatchRepository) GetSupplier(ctx context.Context, id uuid.UUID) (*model.Supplier, error) {
	var supplier model.Supplier
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, name, type, country_code
		FROM suppliers
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&supplier).Error
	if err != nil {
		return nil, err
	}
	if supplier.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &supplier, nil
}

func (r *BatchRepository) ListProductionUnits(ctx context.Context, batchID uuid.UUID) ([]model.ProductionUnit, error) {
	var units []model.ProductionUnit
	err := r.db.WithContext(ctx).Raw(`
		SELECT pu.id, pu.farmer_id, pu.name, pu.verified
		FROM production_units pu
		JOIN batch_production_units bpu ON bpu.production_unit_id = pu.id
		WHERE bpu.batch_id = ?
		ORDER BY pu.name ASC
	`, batchID).Scan(&units).Error
	if err != nil {
		return nil, err
	}
	return units, nil
}

// ListDocumentTypes returns the distinct required-type documents stored for
// a batch. The document store collaborator only answers presence, never
// file bytes.
func (r *BatchRepository) ListDocumentTypes(ctx context.Context, batchID uuid.UUID) ([]model.DocumentType, error) {
	var types []string
	err := r.db.WithContext(ctx).Raw(`
		SELECT DISTINCT document_type
		FROM batch_documents
		WHERE batch_id = ?
	`, batchID).Scan(&types).Error
	if err != nil {
		return nil, err
	}
	out := make([]model.DocumentType, 0, len(types))
	for _, t := range types {
		out = append(out, model.DocumentType(t))
	}
	return out, nil
}

func (r *BatchRepository) HasMitigation(ctx context.Context, batchID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*)
		FROM mitigation_records
		WHERE batch_id = ?
	`, batchID).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *BatchRepository) AttachMitigation(ctx context.Context, m model.MitigationRecord) (*model.MitigationRecord, error) {
	var saved model.MitigationRecord
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO mitigation_records (batch_id, description, created_by)
		VALUES (?, ?, ?)
		RETURNING id, batch_id, description, created_by, created_at
	`, m.BatchID, m.Description, m.CreatedBy).Scan(&saved).Error
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// The unit id slice binds via IN ?, which gorm expands into a
// parenthesized placeholder list.
const alertsByUnitsQuery = `
	SELECT id, production_unit_id, severity, detected_at
	FROM deforestation_alerts
	WHERE production_unit_id IN ?
		AND detected_at >= ?
		AND detected_at < ?
	ORDER BY detected_at DESC
`

// ListAlerts is the adapter over the deforestation-alert data source:
// alerts near the given production units inside the date range.
func (r *BatchRepository) ListAlerts(ctx context.Context, unitIDs []uuid.UUID, from, to time.Time) ([]model.DeforestationAlert, error) {
	if len(unitIDs) == 0 {
		return []model.DeforestationAlert{}, nil
	}
	var alerts []model.DeforestationAlert
	err := r.db.WithContext(ctx).Raw(alertsByUnitsQuery, unitIDs, from, to).Scan(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}
