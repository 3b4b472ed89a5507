package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/samwel-gachiri/agribackup-sub003/internal/model"
)

type TransferRepository struct {
	db *gorm.DB
}

func NewTransferRepository(db *gorm.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

type transferRow struct {
	ID                  uuid.UUID
	BatchID             *uuid.UUID
	OriginKind          string
	OriginID            uuid.UUID
	SenderName          string
	SenderType          string
	ReceiverSupplierID  uuid.UUID
	ReceiverName        string
	ReceiverType        string
	CommodityType       string
	QualityGrade        *string
	SenderQuantityKg    decimal.Decimal
	ReceiverQuantityKg  *decimal.Decimal
	Status              string
	SenderConfirmedAt   time.Time
	ReceiverConfirmedAt *time.Time
	SenderNotes         *string
	ReceiverNotes       *string
	DisputeReason       *string
	LedgerTxRef         *string
	CreatedAt           time.Time
}

func (row transferRow) toModel() *model.TransferRecord {
	return &model.TransferRecord{
		ID:      row.ID,
		BatchID: row.BatchID,
		Origin: model.OriginRef{
			Kind: model.OriginKind(row.OriginKind),
			ID:   row.OriginID,
		},
		SenderName:          row.SenderName,
		SenderType:          row.SenderType,
		ReceiverSupplierID:  row.ReceiverSupplierID,
		ReceiverName:        row.ReceiverName,
		ReceiverType:        row.ReceiverType,
		CommodityType:       row.CommodityType,
		QualityGrade:        row.QualityGrade,
		SenderQuantityKg:    row.SenderQuantityKg,
		ReceiverQuantityKg:  row.ReceiverQuantityKg,
		Status:              model.TransferStatus(row.Status),
		SenderConfirmedAt:   row.SenderConfirmedAt,
		ReceiverConfirmedAt: row.ReceiverConfirmedAt,
		SenderNotes:         row.SenderNotes,
		ReceiverNotes:       row.ReceiverNotes,
		DisputeReason:       row.DisputeReason,
		LedgerTxRef:         row.LedgerTxRef,
		CreatedAt:           row.CreatedAt,
	}
}

const transferColumns = `
	id,
	batch_id,
	origin_kind,
	origin_id,
	sender_name,
	sender_type,
	receiver_supplier_id,
	receiver_name,
	receiver_type,
	commodity_type,
	quality_grade,
	sender_quantity_kg,
	receiver_quantity_kg,
	status,
	sender_confirmed_at,
	receiver_confirmed_at,
	sender_notes,
	receiver_notes,
	dispute_reason,
	ledger_tx_ref,
	created_at
`

func (r *TransferRepository) Create(ctx context.Context, t model.TransferRecord) (*model.TransferRecord, error) {
	var saved transferRow
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO transfers (
			batch_id,
			origin_kind,
			origin_id,
			sender_name,
			sender_type,
			receiver_supplier_id,
			receiver_name,
			receiver_type,
			commodity_type,
			quality_grade,
			sender_quantity_kg,
			status,
			sender_confirmed_at,
			sender_notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+transferColumns,
		t.BatchID,
		string(t.Origin.Kind),
		t.Origin.ID,
		t.SenderName,
		t.SenderType,
		t.ReceiverSupplierID,
		t.ReceiverName,
		t.ReceiverType,
		t.CommodityType,
		t.QualityGrade,
		t.SenderQuantityKg,
		string(t.Status),
		t.SenderConfirmedAt,
		t.SenderNotes,
	).Scan(&saved).Error
	if err != nil {
		return nil, err
	}
	return saved.toModel(), nil
}

func (r *TransferRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.TransferRecord, error) {
	var row transferRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+transferColumns+`
		FROM transfers
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return row.toModel(), nil
}

// ApplyReceiverDecision moves a PENDING record to CONFIRMED or DISPUTED in
// one guarded statement. The WHERE status = 'PENDING' clause is the
// per-record mutual exclusion: of two concurrent decisions the first wins
// and the second affects zero rows.
func (r *TransferRepository) ApplyReceiverDecision(
	ctx context.Context,
	id uuid.UUID,
	status model.TransferStatus,
	receiverQuantityKg decimal.Decimal,
	receiverConfirmedAt time.Time,
	notes *string,
	disputeReason *string,
) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE transfers
		SET
			status = ?,
			receiver_quantity_kg = ?,
			receiver_confirmed_at = ?,
			receiver_notes = ?,
			dispute_reason = ?
		WHERE id = ? AND status = 'PENDING'
	`, string(status), receiverQuantityKg, receiverConfirmedAt, notes, disputeReason, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkTerminal closes a PENDING record as REJECTED or CANCELLED under the
// same status guard as ApplyReceiverDecision.
func (r *TransferRepository) MarkTerminal(
	ctx context.Context,
	id uuid.UUID,
	status model.TransferStatus,
	receiverConfirmedAt *time.Time,
	disputeReason *string,
) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE transfers
		SET
			status = ?,
			receiver_confirmed_at = ?,
			dispute_reason = ?
		WHERE id = ? AND status = 'PENDING'
	`, string(status), receiverConfirmedAt, disputeReason, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *TransferRepository) ListForSupplier(ctx context.Context, supplierID uuid.UUID, status *model.TransferStatus) ([]model.TransferRecord, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE (receiver_supplier_id = ? OR (origin_kind = 'SUPPLIER' AND origin_id = ?))
	`
	args := []interface{}{supplierID, supplierID}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at DESC`

	var rows []transferRow
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.TransferRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.toModel())
	}
	return out, nil
}

func (r *TransferRepository) ListForBatch(ctx context.Context, batchID uuid.UUID) ([]model.TransferRecord, error) {
	var rows []transferRow
	if err := r.db.WithContext(ctx).Raw(`
		SELECT `+transferColumns+`
		FROM transfers
		WHERE batch_id = ?
		ORDER BY created_at ASC
	`, batchID).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.TransferRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.toModel())
	}
	return out, nil
}

// CountUnresolvedForBatch counts transfers still PENDING or DISPUTED; the
// collection stage cannot complete while any remain.
func (r *TransferRepository) CountUnresolvedForBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*)
		FROM transfers
		WHERE batch_id = ? AND status IN ('PENDING', 'DISPUTED')
	`, batchID).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
