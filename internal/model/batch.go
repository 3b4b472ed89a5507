package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Batch struct {
	ID            uuid.UUID
	SupplierID    uuid.UUID
	CommodityType string
	CountryCode   string
	QuantityKg    decimal.Decimal
	RiskLevel     *RiskLevel
	RiskRationale *string
	CreatedAt     time.Time
}

type Supplier struct {
	ID          uuid.UUID
	Name        string
	Type        string
	CountryCode string
}

// ProductionUnit is a geolocated plot of land, the ultimate origin of
// traceability for a batch.
type ProductionUnit struct {
	ID       uuid.UUID
	FarmerID uuid.UUID
	Name     string
	Verified bool
}

type DocumentType string

const (
	DocumentLandRightsCertificate DocumentType = "LAND_RIGHTS_CERTIFICATE"
	DocumentHarvestRecord         DocumentType = "HARVEST_RECORD"
	DocumentGeolocationData       DocumentType = "GEOLOCATION_DATA"
)

// RequiredDocumentTypes is the fixed set a batch must carry to score zero
// documentation risk.
var RequiredDocumentTypes = []DocumentType{
	DocumentLandRightsCertificate,
	DocumentHarvestRecord,
	DocumentGeolocationData,
}

// MitigationRecord attaches a documented mitigation to a high-risk batch so
// the due-diligence statement stage may proceed.
type MitigationRecord struct {
	ID          uuid.UUID
	BatchID     uuid.UUID
	Description string
	CreatedBy   uuid.UUID
	CreatedAt   time.Time
}
