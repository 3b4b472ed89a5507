package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/samwel-gachiri/agribackup-sub003/internal/model"
)

type DDSGenerator interface {
	Generate(doc model.DDSDocument) ([]byte, error)
}

type ReconciliationGenerator interface {
	Generate(report model.ReconciliationReport) ([]byte, error)
}

// ReportService assembles the export artifacts: the due diligence
// statement PDF and the per-supplier reconciliation workbook.
type ReportService struct {
	batches     BatchStore
	suppliers   SupplierStore
	assessments AssessmentStore
	transfers   TransferStore
	pdf         DDSGenerator
	excel       ReconciliationGenerator
}

func NewReportService(batches BatchStore, suppliers SupplierStore, assessments AssessmentStore, transfers TransferStore, pdf DDSGenerator, excel ReconciliationGenerator) *ReportService {
	return &ReportService{
		batches:     batches,
		suppliers:   suppliers,
		assessments: assessments,
		transfers:   transfers,
		pdf:         pdf,
		excel:       excel,
	}
}

type GeneratedFile struct {
	FileName string
	Content  []byte
}

// GenerateDDS renders the statement from the batch's current assessment.
// A batch with no assessment yet cannot produce a statement.
func (s *ReportService) GenerateDDS(ctx context.Context, batchID uuid.UUID) (*GeneratedFile, error) {
	batch, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: batch %s", ErrNotFound, batchID)
		}
		return nil, err
	}

	supplier, err := s.suppliers.GetSupplier(ctx, batch.SupplierID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: supplier %s", ErrNotFound, batch.SupplierID)
		}
		return nil, err
	}

	assessment, err := s.assessments.GetCurrent(ctx, batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: batch has no risk assessment", ErrInvalidState)
		}
		return nil, err
	}

	content, err := s.pdf.Generate(model.DDSDocument{
		Batch:       *batch,
		Supplier:    *supplier,
		Assessment:  *assessment,
		GeneratedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	fileName := fmt.Sprintf("dds-%s-%s.pdf", sanitizeFileName(batch.CommodityType), batchID.String()[:8])
	return &GeneratedFile{FileName: fileName, Content: content}, nil
}

// GenerateReconciliationReport exports a supplier's transfers for a
// period as a workbook.
func (s *ReportService) GenerateReconciliationReport(ctx context.Context, supplierID uuid.UUID, periodStart, periodEnd time.Time) (*GeneratedFile, error) {
	if periodStart.IsZero() || periodEnd.IsZero() {
		return nil, fmt.Errorf("%w: period dates are required", ErrInvalidInput)
	}
	if periodStart.After(periodEnd) {
		return nil, fmt.Errorf("%w: period_start must be before or equal to period_end", ErrInvalidInput)
	}

	supplier, err := s.suppliers.GetSupplier(ctx, supplierID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: supplier %s", ErrNotFound, supplierID)
		}
		return nil, err
	}

	transfers, err := s.transfers.ListForSupplier(ctx, supplierID, nil)
	if err != nil {
		return nil, err
	}
	endExclusive := periodEnd.Add(24 * time.Hour)
	inPeriod := make([]model.TransferRecord, 0, len(transfers))
	for _, t := range transfers {
		if !t.CreatedAt.Before(periodStart) && t.CreatedAt.Before(endExclusive) {
			inPeriod = append(inPeriod, t)
		}
	}

	report := model.ReconciliationReport{
		Supplier:    *supplier,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Transfers:   inPeriod,
	}
	content, err := s.excel.Generate(report)
	if err != nil {
		return nil, err
	}

	target := sanitizeFileName(supplier.Name)
	if target == "" {
		target = supplier.ID.String()
	}
	period := fmt.Sprintf("%s-%s", periodStart.Format("20060102"), periodEnd.Format("20060102"))
	fileName := fmt.Sprintf("reconciliation-%s-%s.xlsx", target, period)
	return &GeneratedFile{FileName: fileName, Content: content}, nil
}

func sanitizeFileName(input string) string {
	result := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z':
			result = append(result, r)
		case r >= 'A' && r <= 'Z':
			result = append(result, r)
		case r >= '0' && r <= '9':
			result = append(result, r)
		case r == '-', r == '_':
			result = append(result, r)
		default:
			result = append(result, '-')
		}
	}
	return strings.Trim(string(result), "-")
}
