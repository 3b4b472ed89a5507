package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/samwel-gachiri/agribackup-sub003/internal/model"
)

// NotarizationRepository backs the pending-notarization queue. Completing a
// transfer event also backfills the ledger reference onto the transfer row.
type NotarizationRepository struct {
	db *gorm.DB
}

func NewNotarizationRepository(db *gorm.DB) *NotarizationRepository {
	return &NotarizationRepository{db: db}
}

type notarizationRow struct {
	ID            uuid.UUID
	TargetKind    string
	TargetID      uuid.UUID
	EventType     string
	PayloadHash   string
	Fields        []byte
	Attempts      int
	NextAttemptAt time.Time
	LastError     *string
	TxRef         *string
	CompletedAt   *time.Time
	CreatedAt     time.Time
}

func (row notarizationRow) toModel() (*model.PendingNotarization, error) {
	item := &model.PendingNotarization{
		ID:            row.ID,
		TargetKind:    model.NotarizationTarget(row.TargetKind),
		TargetID:      row.TargetID,
		EventType:     row.EventType,
		PayloadHash:   row.PayloadHash,
		Attempts:      row.Attempts,
		NextAttemptAt: row.NextAttemptAt,
		LastError:     row.LastError,
		TxRef:         row.TxRef,
		CompletedAt:   row.CompletedAt,
		CreatedAt:     row.CreatedAt,
	}
	if len(row.Fields) > 0 {
		fields := datatypes.JSONMap{}
		if err := json.Unmarshal(row.Fields, &fields); err != nil {
			return nil, err
		}
		item.Fields = fields
	}
	return item, nil
}

func (r *NotarizationRepository) Enqueue(ctx context.Context, item model.PendingNotarization) error {
	fields, err := json.Marshal(item.Fields)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO pending_notarizations (
			id,
			target_kind,
			target_id,
			event_type,
			payload_hash,
			fields,
			attempts,
			next_attempt_at
		) VALUES (?, ?, ?, ?, ?, ?, 0, ?)
	`,
		item.ID,
		string(item.TargetKind),
		item.TargetID,
		item.EventType,
		item.PayloadHash,
		fields,
		item.NextAttemptAt,
	).Error
}

func (r *NotarizationRepository) ListDue(ctx context.Context, now time.Time, maxAttempts, limit int) ([]model.PendingNotarization, error) {
	var rows []notarizationRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			id, target_kind, target_id, event_type, payload_hash,
			fields, attempts, next_attempt_at, last_error, tx_ref,
			completed_at, created_at
		FROM pending_notarizations
		WHERE completed_at IS NULL
			AND next_attempt_at <= ?
			AND attempts < ?
		ORDER BY next_attempt_at ASC
		LIMIT ?
	`, now, maxAttempts, limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]model.PendingNotarization, 0, len(rows))
	for _, row := range rows {
		item, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, nil
}

// ListPending is the operational view of everything not yet anchored.
func (r *NotarizationRepository) ListPending(ctx context.Context) ([]model.PendingNotarization, error) {
	var rows []notarizationRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			id, target_kind, target_id, event_type, payload_hash,
			fields, attempts, next_attempt_at, last_error, tx_ref,
			completed_at, created_at
		FROM pending_notarizations
		WHERE completed_at IS NULL
		ORDER BY created_at ASC
	`).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]model.PendingNotarization, 0, len(rows))
	for _, row := range rows {
		item, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, nil
}

func (r *NotarizationRepository) MarkCompleted(ctx context.Context, id uuid.UUID, txRef string, completedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row notarizationRow
		if err := tx.Raw(`
			UPDATE pending_notarizations
			SET tx_ref = ?, completed_at = ?
			WHERE id = ? AND completed_at IS NULL
			RETURNING id, target_kind, target_id, event_type, payload_hash,
				fields, attempts, next_attempt_at, last_error, tx_ref,
				completed_at, created_at
		`, txRef, completedAt, id).Scan(&row).Error; err != nil {
			return err
		}
		if row.ID == uuid.Nil {
			return nil
		}
		if row.TargetKind == string(model.NotarizationTargetTransfer) {
			return tx.Exec(`
				UPDATE transfers
				SET ledger_tx_ref = ?
				WHERE id = ? AND status = 'CONFIRMED' AND ledger_tx_ref IS NULL
			`, txRef, row.TargetID).Error
		}
		return nil
	})
}

func (r *NotarizationRepository) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, nextAttempt time.Time, lastError string) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE pending_notarizations
		SET attempts = ?, next_attempt_at = ?, last_error = ?
		WHERE id = ? AND completed_at IS NULL
	`, attempts, nextAttempt, lastError, id).Error
}
