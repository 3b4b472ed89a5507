package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "PENDING"
	TransferStatusConfirmed TransferStatus = "CONFIRMED"
	TransferStatusDisputed  TransferStatus = "DISPUTED"
	TransferStatusRejected  TransferStatus = "REJECTED"
	TransferStatusCancelled TransferStatus = "CANCELLED"
)

// IsTerminal reports whether no further mutation of the record is permitted.
func (s TransferStatus) IsTerminal() bool {
	switch s {
	case TransferStatusConfirmed, TransferStatusDisputed, TransferStatusRejected, TransferStatusCancelled:
		return true
	}
	return false
}

type OriginKind string

const (
	OriginFarmer         OriginKind = "FARMER"
	OriginSupplier       OriginKind = "SUPPLIER"
	OriginProductionUnit OriginKind = "PRODUCTION_UNIT"
)

// OriginRef identifies the sending side of a transfer. Exactly one origin
// kind is valid; the constructor collapses the three optional boundary
// fields so invalid combinations never reach the protocol logic.
type OriginRef struct {
	Kind OriginKind
	ID   uuid.UUID
}

var (
	ErrNoOrigin       = errors.New("no origin identifier supplied")
	ErrMultipleOrigin = errors.New("more than one origin identifier supplied")
)

func NewOriginRef(farmerID, supplierID, productionUnitID *uuid.UUID) (OriginRef, error) {
	var ref OriginRef
	count := 0
	if farmerID != nil {
		ref = OriginRef{Kind: OriginFarmer, ID: *farmerID}
		count++
	}
	if supplierID != nil {
		ref = OriginRef{Kind: OriginSupplier, ID: *supplierID}
		count++
	}
	if productionUnitID != nil {
		ref = OriginRef{Kind: OriginProductionUnit, ID: *productionUnitID}
		count++
	}
	switch {
	case count == 0:
		return OriginRef{}, ErrNoOrigin
	case count > 1:
		return OriginRef{}, ErrMultipleOrigin
	}
	return ref, nil
}

// TransferRecord is one proposed or reconciled physical hand-off between a
// sender and a receiving supplier. Both recorded quantities are preserved
// as written; a disputed record keeps the disagreement as evidence and is
// never corrected to match either side.
type TransferRecord struct {
	ID                  uuid.UUID
	BatchID             *uuid.UUID
	Origin              OriginRef
	SenderName          string
	SenderType          string
	ReceiverSupplierID  uuid.UUID
	ReceiverName        string
	ReceiverType        string
	CommodityType       string
	QualityGrade        *string
	SenderQuantityKg    decimal.Decimal
	ReceiverQuantityKg  *decimal.Decimal
	Status              TransferStatus
	SenderConfirmedAt   time.Time
	ReceiverConfirmedAt *time.Time
	SenderNotes         *string
	ReceiverNotes       *string
	DisputeReason       *string
	LedgerTxRef         *string
	CreatedAt           time.Time
}

func (t *TransferRecord) HasDiscrepancy() bool {
	return t.ReceiverQuantityKg != nil && !t.ReceiverQuantityKg.Equal(t.SenderQuantityKg)
}

// DiscrepancyKg is senderQuantity - receiverQuantity; positive means the
// receiver reported less than the sender claimed. Zero while no receiver
// quantity is recorded.
func (t *TransferRecord) DiscrepancyKg() decimal.Decimal {
	if t.ReceiverQuantityKg == nil {
		return decimal.Zero
	}
	return t.SenderQuantityKg.Sub(*t.ReceiverQuantityKg)
}
