package excel

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/samwel-gachiri/agribackup-sub003/internal/model"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate builds the reconciliation workbook: a summary sheet of totals
// per outcome plus a detail sheet listing every transfer with both
// recorded quantities.
func (g *Generator) Generate(report model.ReconciliationReport) ([]byte, error) {
	file := excelize.NewFile()

	summarySheet := "Summary"
	file.SetSheetName("Sheet1", summarySheet)
	if err := g.writeSummary(file, summarySheet, report); err != nil {
		return nil, err
	}

	detailSheet := "Transfers"
	file.NewSheet(detailSheet)
	if err := g.writeDetail(file, detailSheet, report); err != nil {
		return nil, err
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, report model.ReconciliationReport) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Supplier")
	set("B1", report.Supplier.Name)
	set("A2", "Period start")
	set("B2", formatDate(report.PeriodStart))
	set("A3", "Period end")
	set("B3", formatDate(report.PeriodEnd))
	set("A4", "Transfers")
	set("B4", len(report.Transfers))
	set("A5", "Total disputed discrepancy, kg")
	set("B5", report.TotalDiscrepancyKg().String())

	totals := report.TotalsByStatus()
	order := []model.TransferStatus{
		model.TransferStatusConfirmed,
		model.TransferStatusDisputed,
		model.TransferStatusPending,
		model.TransferStatusRejected,
		model.TransferStatusCancelled,
	}

	tableRow := 7
	set(fmt.Sprintf("A%d", tableRow), "Outcome")
	set(fmt.Sprintf("B%d", tableRow), "Sender quantity, kg")
	for i, status := range order {
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), string(status))
		set(fmt.Sprintf("B%d", row), totals[status].String())
	}
	return nil
}

func (g *Generator) writeDetail(file *excelize.File, sheet string, report model.ReconciliationReport) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	headers := []string{
		"Transfer ID", "Sender", "Commodity", "Status",
		"Sender qty, kg", "Receiver qty, kg", "Discrepancy, kg",
		"Proposed at", "Resolved at", "Ledger ref",
	}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		set(cell, header)
	}

	for i, t := range report.Transfers {
		row := i + 2
		receiverQty := ""
		if t.ReceiverQuantityKg != nil {
			receiverQty = t.ReceiverQuantityKg.String()
		}
		discrepancy := ""
		if t.HasDiscrepancy() {
			discrepancy = t.DiscrepancyKg().String()
		}
		resolvedAt := ""
		if t.ReceiverConfirmedAt != nil {
			resolvedAt = t.ReceiverConfirmedAt.Format("2006-01-02 15:04")
		}
		ledgerRef := ""
		if t.LedgerTxRef != nil {
			ledgerRef = *t.LedgerTxRef
		}

		values := []interface{}{
			t.ID.String(),
			t.SenderName,
			t.CommodityType,
			string(t.Status),
			t.SenderQuantityKg.String(),
			receiverQty,
			discrepancy,
			t.SenderConfirmedAt.Format("2006-01-02 15:04"),
			resolvedAt,
			ledgerRef,
		}
		for j, value := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, row)
			if err != nil {
				return err
			}
			set(cell, value)
		}
	}
	return nil
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
