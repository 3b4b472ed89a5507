package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/samwel-gachiri/agribackup-sub003/internal/ledger"
	"github.com/samwel-gachiri/agribackup-sub003/internal/model"
)

type TransferStore interface {
	Create(ctx context.Context, t model.TransferRecord) (*model.TransferRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.TransferRecord, error)
	ApplyReceiverDecision(ctx context.Context, id uuid.UUID, status model.TransferStatus, receiverQuantityKg decimal.Decimal, receiverConfirmedAt time.Time, notes, disputeReason *string) (bool, error)
	MarkTerminal(ctx context.Context, id uuid.UUID, status model.TransferStatus, receiverConfirmedAt *time.Time, disputeReason *string) (bool, error)
	ListForSupplier(ctx context.Context, supplierID uuid.UUID, status *model.TransferStatus) ([]model.TransferRecord, error)
	ListForBatch(ctx context.Context, batchID uuid.UUID) ([]model.TransferRecord, error)
}

type SupplierStore interface {
	GetSupplier(ctx context.Context, id uuid.UUID) (*model.Supplier, error)
}

// LedgerSubmitter queues a ledger event and attempts it once. A nil
// returned reference means the write is deferred to the retry queue.
type LedgerSubmitter interface {
	Submit(ctx context.Context, item model.PendingNotarization) (*string, error)
}

// TransferService drives the two-party hand-off handshake. Nothing is
// anchored to the ledger until both sides agree on the quantity; a
// disagreement is preserved as a DISPUTED record carrying both figures.
type TransferService struct {
	transfers TransferStore
	suppliers SupplierStore
	notary    LedgerSubmitter
	log       zerolog.Logger
}

func NewTransferService(transfers TransferStore, suppliers SupplierStore, notary LedgerSubmitter, log zerolog.Logger) *TransferService {
	return &TransferService{
		transfers: transfers,
		suppliers: suppliers,
		notary:    notary,
		log:       log,
	}
}

type ProposeTransferInput struct {
	BatchID            *uuid.UUID
	FarmerID           *uuid.UUID
	SupplierID         *uuid.UUID
	ProductionUnitID   *uuid.UUID
	SenderName         string
	SenderType         string
	ReceiverSupplierID uuid.UUID
	CommodityType      string
	QualityGrade       *string
	SenderQuantityKg   decimal.Decimal
	Notes              *string
}

func (s *TransferService) Propose(ctx context.Context, input ProposeTransferInput) (*model.TransferRecord, error) {
	if !input.SenderQuantityKg.IsPositive() {
		return nil, fmt.Errorf("%w: sender quantity must be greater than zero", ErrInvalidInput)
	}
	if input.CommodityType == "" {
		return nil, fmt.Errorf("%w: commodity type is required", ErrInvalidInput)
	}

	origin, err := model.NewOriginRef(input.FarmerID, input.SupplierID, input.ProductionUnitID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	receiver, err := s.suppliers.GetSupplier(ctx, input.ReceiverSupplierID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: receiver supplier does not resolve", ErrInvalidInput)
		}
		return nil, err
	}

	record := model.TransferRecord{
		BatchID:            input.BatchID,
		Origin:             origin,
		SenderName:         input.SenderName,
		SenderType:         input.SenderType,
		ReceiverSupplierID: receiver.ID,
		ReceiverName:       receiver.Name,
		ReceiverType:       receiver.Type,
		CommodityType:      input.CommodityType,
		QualityGrade:       input.QualityGrade,
		SenderQuantityKg:   input.SenderQuantityKg,
		Status:             model.TransferStatusPending,
		SenderConfirmedAt:  time.Now().UTC(),
		SenderNotes:        input.Notes,
	}

	saved, err := s.transfers.Create(ctx, record)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("transfer_id", saved.ID.String()).
		Str("receiver", receiver.Name).
		Str("quantity_kg", saved.SenderQuantityKg.String()).
		Msg("transfer proposed")
	return saved, nil
}

type ConfirmTransferInput struct {
	TransferID         uuid.UUID
	ReceivedQuantityKg decimal.Decimal
	Notes              *string
}

// Confirm applies the single receiver action. Exact decimal equality of
// the quantities reconciles the record and anchors it on the ledger;
// anything else leaves both figures in place as a DISPUTED record with no
// ledger write. A ledger outage never fails the confirmation.
func (s *TransferService) Confirm(ctx context.Context, input ConfirmTransferInput) (*model.TransferRecord, error) {
	if !input.ReceivedQuantityKg.IsPositive() {
		return nil, fmt.Errorf("%w: received quantity must be greater than zero", ErrInvalidInput)
	}

	record, err := s.getTransfer(ctx, input.TransferID)
	if err != nil {
		return nil, err
	}
	if record.Status != model.TransferStatusPending {
		return nil, fmt.Errorf("%w: transfer is %s", ErrInvalidState, record.Status)
	}

	status := model.TransferStatusConfirmed
	var disputeReason *string
	if !input.ReceivedQuantityKg.Equal(record.SenderQuantityKg) {
		status = model.TransferStatusDisputed
		reason := fmt.Sprintf(
			"quantity mismatch: sender recorded %s kg, receiver recorded %s kg",
			record.SenderQuantityKg.String(), input.ReceivedQuantityKg.String(),
		)
		disputeReason = &reason
	}

	now := time.Now().UTC()
	applied, err := s.transfers.ApplyReceiverDecision(ctx, record.ID, status, input.ReceivedQuantityKg, now, input.Notes, disputeReason)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost the race: another decision landed first.
		return nil, s.concurrentStateError(ctx, record.ID)
	}

	if status == model.TransferStatusConfirmed {
		s.notarizeConfirmed(ctx, record, input.ReceivedQuantityKg, now)
	}

	return s.getTransfer(ctx, record.ID)
}

func (s *TransferService) Reject(ctx context.Context, transferID uuid.UUID, reason *string) (*model.TransferRecord, error) {
	record, err := s.getTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if record.Status != model.TransferStatusPending {
		return nil, fmt.Errorf("%w: transfer is %s", ErrInvalidState, record.Status)
	}

	now := time.Now().UTC()
	applied, err := s.transfers.MarkTerminal(ctx, transferID, model.TransferStatusRejected, &now, reason)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, s.concurrentStateError(ctx, transferID)
	}
	return s.getTransfer(ctx, transferID)
}

// Cancel withdraws a still-pending proposal. Only the sender may cancel.
func (s *TransferService) Cancel(ctx context.Context, transferID uuid.UUID, principal model.Principal) (*model.TransferRecord, error) {
	record, err := s.getTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if principal.OrgID != record.Origin.ID && principal.UserID != record.Origin.ID {
		return nil, ErrPermissionDenied
	}
	if record.Status != model.TransferStatusPending {
		return nil, fmt.Errorf("%w: transfer is %s", ErrInvalidState, record.Status)
	}

	applied, err := s.transfers.MarkTerminal(ctx, transferID, model.TransferStatusCancelled, nil, nil)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, s.concurrentStateError(ctx, transferID)
	}
	return s.getTransfer(ctx, transferID)
}

func (s *TransferService) Get(ctx context.Context, transferID uuid.UUID) (*model.TransferRecord, error) {
	return s.getTransfer(ctx, transferID)
}

func (s *TransferService) ListForSupplier(ctx context.Context, supplierID uuid.UUID, status *model.TransferStatus) ([]model.TransferRecord, error) {
	return s.transfers.ListForSupplier(ctx, supplierID, status)
}

func (s *TransferService) ListForBatch(ctx context.Context, batchID uuid.UUID) ([]model.TransferRecord, error) {
	return s.transfers.ListForBatch(ctx, batchID)
}

func (s *TransferService) getTransfer(ctx context.Context, id uuid.UUID) (*model.TransferRecord, error) {
	record, err := s.transfers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: transfer %s", ErrNotFound, id)
		}
		return nil, err
	}
	return record, nil
}

// concurrentStateError re-reads after a zero-row guarded update to tell a
// vanished record apart from one another writer already closed.
func (s *TransferService) concurrentStateError(ctx context.Context, id uuid.UUID) error {
	record, err := s.transfers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: transfer %s", ErrNotFound, id)
		}
		return err
	}
	return fmt.Errorf("%w: transfer is %s", ErrInvalidState, record.Status)
}

func (s *TransferService) notarizeConfirmed(ctx context.Context, record *model.TransferRecord, receivedKg decimal.Decimal, confirmedAt time.Time) {
	payload := map[string]any{
		"transfer_id":          record.ID.String(),
		"origin_kind":          string(record.Origin.Kind),
		"origin_id":            record.Origin.ID.String(),
		"receiver_supplier_id": record.ReceiverSupplierID.String(),
		"commodity_type":       record.CommodityType,
		"quantity_kg":          receivedKg.String(),
		"sender_confirmed_at":  record.SenderConfirmedAt.Format(time.RFC3339),
		"receiver_confirmed_at": confirmedAt.Format(time.RFC3339),
	}
	hash, err := ledger.PayloadHash(payload)
	if err != nil {
		s.log.Error().Err(err).Str("transfer_id", record.ID.String()).Msg("hashing transfer event failed")
		return
	}

	txRef, err := s.notary.Submit(ctx, model.PendingNotarization{
		TargetKind:  model.NotarizationTargetTransfer,
		TargetID:    record.ID,
		EventType:   "TRANSFER_CONFIRMED",
		PayloadHash: hash,
		Fields: datatypes.JSONMap{
			"transfer_id":   record.ID.String(),
			"commodity":     record.CommodityType,
			"quantity_kg":   receivedKg.String(),
			"receiver_name": record.ReceiverName,
		},
	})
	if err != nil {
		s.log.Error().Err(err).Str("transfer_id", record.ID.String()).Msg("queueing transfer notarization failed")
		return
	}
	if txRef == nil {
		s.log.Warn().Str("transfer_id", record.ID.String()).Msg("transfer confirmed; ledger reference pending retry")
	}
}
