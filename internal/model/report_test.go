package model

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestReconciliationTotals(t *testing.T) {
	qty := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }
	received420 := qty("420")
	received510 := qty("510")

	report := ReconciliationReport{
		Transfers: []TransferRecord{
			{Status: TransferStatusConfirmed, SenderQuantityKg: qty("100")},
			{Status: TransferStatusConfirmed, SenderQuantityKg: qty("250")},
			{Status: TransferStatusDisputed, SenderQuantityKg: qty("500"), ReceiverQuantityKg: &received420},
			{Status: TransferStatusDisputed, SenderQuantityKg: qty("500"), ReceiverQuantityKg: &received510},
			{Status: TransferStatusPending, SenderQuantityKg: qty("30")},
		},
	}

	totals := report.TotalsByStatus()
	if !totals[TransferStatusConfirmed].Equal(qty("350")) {
		t.Errorf("confirmed total = %s, want 350", totals[TransferStatusConfirmed])
	}
	if !totals[TransferStatusDisputed].Equal(qty("1000")) {
		t.Errorf("disputed total = %s, want 1000", totals[TransferStatusDisputed])
	}
	if !totals[TransferStatusPending].Equal(qty("30")) {
		t.Errorf("pending total = %s, want 30", totals[TransferStatusPending])
	}

	// 80 under plus 10 over, both counted as magnitude.
	if !report.TotalDiscrepancyKg().Equal(qty("90")) {
		t.Errorf("total discrepancy = %s, want 90", report.TotalDiscrepancyKg())
	}
}
