package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type NotarizationTarget string

const (
	NotarizationTargetTransfer       NotarizationTarget = "TRANSFER"
	NotarizationTargetRiskAssessment NotarizationTarget = "RISK_ASSESSMENT"
)

// PendingNotarization is one ledger event waiting for a transaction
// reference. Rows stay queued through outages and are retried with backoff
// until the bounded attempt limit is reached.
type PendingNotarization struct {
	ID            uuid.UUID
	TargetKind    NotarizationTarget
	TargetID      uuid.UUID
	EventType     string
	PayloadHash   string
	Fields        datatypes.JSONMap
	Attempts      int
	NextAttemptAt time.Time
	LastError     *string
	TxRef         *string
	CompletedAt   *time.Time
	CreatedAt     time.Time
}
