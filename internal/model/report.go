package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DDSDocument carries everything rendered into the regulator-facing due
// diligence statement.
type DDSDocument struct {
	Batch       Batch
	Supplier    Supplier
	Assessment  RiskAssessmentResult
	GeneratedAt time.Time
}

// ReconciliationReport summarizes a supplier's transfers for a period,
// grouped by handshake outcome.
type ReconciliationReport struct {
	Supplier    Supplier
	PeriodStart time.Time
	PeriodEnd   time.Time
	Transfers   []TransferRecord
}

// TotalsByStatus sums sender-side quantities per outcome.
func (r ReconciliationReport) TotalsByStatus() map[TransferStatus]decimal.Decimal {
	totals := make(map[TransferStatus]decimal.Decimal)
	for _, t := range r.Transfers {
		totals[t.Status] = totals[t.Status].Add(t.SenderQuantityKg)
	}
	return totals
}

// TotalDiscrepancyKg sums the absolute discrepancy across disputed
// transfers in the report.
func (r ReconciliationReport) TotalDiscrepancyKg() decimal.Decimal {
	total := decimal.Zero
	for _, t := range r.Transfers {
		if t.HasDiscrepancy() {
			total = total.Add(t.DiscrepancyKg().Abs())
		}
	}
	return total
}
