package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/samwel-gachiri/agribackup-sub003/internal/http/middleware"
	"github.com/samwel-gachiri/agribackup-sub003/internal/model"
	"github.com/samwel-gachiri/agribackup-sub003/internal/service"
)

type PendingNotarizationLister interface {
	ListPending(ctx context.Context) ([]model.PendingNotarization, error)
}

type Handler struct {
	transfers *service.TransferService
	risks     *service.RiskService
	pipelines *service.PipelineService
	reports   *service.ReportService
	pending   PendingNotarizationLister
	log       zerolog.Logger
}

func NewHandler(
	transfers *service.TransferService,
	risks *service.RiskService,
	pipelines *service.PipelineService,
	reports *service.ReportService,
	pending PendingNotarizationLister,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		transfers: transfers,
		risks:     risks,
		pipelines: pipelines,
		reports:   reports,
		pending:   pending,
		log:       log,
	}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	router.GET("/stages", h.listStages)

	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.POST("/transfers", h.proposeTransfer)
	protected.GET("/transfers/:id", h.getTransfer)
	protected.GET("/transfers", h.listTransfers)
	protected.POST("/transfers/:id/confirm", h.confirmTransfer)
	protected.POST("/transfers/:id/reject", h.rejectTransfer)
	protected.POST("/transfers/:id/cancel", h.cancelTransfer)

	protected.POST("/batches/:id/assessments", h.assessBatch)
	protected.GET("/batches/:id/assessments/current", h.currentAssessment)
	protected.GET("/batches/:id/assessments", h.assessmentHistory)

	protected.POST("/batches/:id/pipeline", h.startPipeline)
	protected.GET("/batches/:id/pipeline", h.getPipeline)
	protected.POST("/batches/:id/pipeline/actions", h.completeAction)
	protected.POST("/batches/:id/pipeline/complete", h.completeStage)
	protected.POST("/batches/:id/pipeline/advance", h.advancePipeline)
	protected.POST("/batches/:id/pipeline/rollback", h.rollbackPipeline)
	protected.POST("/batches/:id/mitigations", h.attachMitigation)

	protected.GET("/batches/:id/transfers", h.listBatchTransfers)
	protected.GET("/batches/:id/dds", h.exportDDS)
	protected.POST("/reports/reconciliation", h.exportReconciliation)

	protected.GET("/notarizations/pending", h.listPendingNotarizations)
}

type proposeTransferRequest struct {
	BatchID            *string `json:"batch_id"`
	FarmerID           *string `json:"farmer_id"`
	SupplierID         *string `json:"supplier_id"`
	ProductionUnitID   *string `json:"production_unit_id"`
	SenderName         string  `json:"sender_name" binding:"required"`
	SenderType         string  `json:"sender_type" binding:"required"`
	ReceiverSupplierID string  `json:"receiver_supplier_id" binding:"required"`
	CommodityType      string  `json:"commodity_type" binding:"required"`
	QualityGrade       *string `json:"quality_grade"`
	SenderQuantityKg   string  `json:"sender_quantity_kg" binding:"required"`
	Notes              *string `json:"notes"`
}

func (h *Handler) proposeTransfer(c *gin.Context) {
	var req proposeTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receiverID, err := uuid.Parse(strings.TrimSpace(req.ReceiverSupplierID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid receiver_supplier_id"})
		return
	}
	quantity, err := decimal.NewFromString(strings.TrimSpace(req.SenderQuantityKg))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sender_quantity_kg"})
		return
	}

	input := service.ProposeTransferInput{
		SenderName:         req.SenderName,
		SenderType:         req.SenderType,
		ReceiverSupplierID: receiverID,
		CommodityType:      req.CommodityType,
		QualityGrade:       req.QualityGrade,
		SenderQuantityKg:   quantity,
		Notes:              req.Notes,
	}
	if input.BatchID, err = parseOptionalUUID(req.BatchID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch_id"})
		return
	}
	if input.FarmerID, err = parseOptionalUUID(req.FarmerID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid farmer_id"})
		return
	}
	if input.SupplierID, err = parseOptionalUUID(req.SupplierID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid supplier_id"})
		return
	}
	if input.ProductionUnitID, err = parseOptionalUUID(req.ProductionUnitID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid production_unit_id"})
		return
	}

	record, err := h.transfers.Propose(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, transferResponse(record))
}

type confirmTransferRequest struct {
	ReceivedQuantityKg string  `json:"received_quantity_kg" binding:"required"`
	Notes              *string `json:"notes"`
}

func (h *Handler) confirmTransfer(c *gin.Context) {
	transferID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req confirmTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	quantity, err := decimal.NewFromString(strings.TrimSpace(req.ReceivedQuantityKg))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid received_quantity_kg"})
		return
	}

	record, err := h.transfers.Confirm(c.Request.Context(), service.ConfirmTransferInput{
		TransferID:         transferID,
		ReceivedQuantityKg: quantity,
		Notes:              req.Notes,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, transferResponse(record))
}

type rejectTransferRequest struct {
	Reason *string `json:"reason"`
}

func (h *Handler) rejectTransfer(c *gin.Context) {
	transferID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	// Body is optional for reject.
	var req rejectTransferRequest
	_ = c.ShouldBindJSON(&req)

	record, err := h.transfers.Reject(c.Request.Context(), transferID, req.Reason)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, transferResponse(record))
}

func (h *Handler) cancelTransfer(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	transferID, okID := pathUUID(c, "id")
	if !okID {
		return
	}

	record, err := h.transfers.Cancel(c.Request.Context(), transferID, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, transferResponse(record))
}

func (h *Handler) getTransfer(c *gin.Context) {
	transferID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	record, err := h.transfers.Get(c.Request.Context(), transferID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, transferResponse(record))
}

func (h *Handler) listTransfers(c *gin.Context) {
	supplierRaw := strings.TrimSpace(c.Query("supplier_id"))
	if supplierRaw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "supplier_id is required"})
		return
	}
	supplierID, err := uuid.Parse(supplierRaw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid supplier_id"})
		return
	}

	var status *model.TransferStatus
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		parsed := model.TransferStatus(strings.ToUpper(raw))
		status = &parsed
	}

	records, err := h.transfers.ListForSupplier(c.Request.Context(), supplierID, status)
	if err != nil {
		h.handleError(c, err)
		return
	}
	out := make([]gin.H, 0, len(records))
	for i := range records {
		out = append(out, transferResponse(&records[i]))
	}
	c.JSON(http.StatusOK, gin.H{"transfers": out})
}

func (h *Handler) listBatchTransfers(c *gin.Context) {
	batchID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	records, err := h.transfers.ListForBatch(c.Request.Context(), batchID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	out := make([]gin.H, 0, len(records))
	for i := range records {
		out = append(out, transferResponse(&records[i]))
	}
	c.JSON(http.StatusOK, gin.H{"transfers": out})
}

func (h *Handler) assessBatch(c *gin.Context) {
	batchID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	result, err := h.risks.Assess(c.Request.Context(), batchID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) currentAssessment(c *gin.Context) {
	batchID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	result, err := h.risks.GetCurrent(c.Request.Context(), batchID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) assessmentHistory(c *gin.Context) {
	batchID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	results, err := h.risks.ListHistory(c.Request.Context(), batchID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assessments": results})
}

func (h *Handler) startPipeline(c *gin.Context) {
	batchID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	state, err := h.pipelines.Start(c.Request.Context(), batchID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, state)
}

func (h *Handler) getPipeline(c *gin.Context) {
	batchID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	state, err := h.pipelines.Get(c.Request.Context(), batchID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

type completeActionRequest struct {
	Action string `json:"action" binding:"required"`
}

func (h *Handler) completeAction(c *gin.Context) {
	batchID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req completeActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	state, err := h.pipelines.CompleteAction(c.Request.Context(), batchID, req.Action)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *Handler) completeStage(c *gin.Context) {
	batchID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	state, err := h.pipelines.CompleteStage(c.Request.Context(), batchID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *Handler) advancePipeline(c *gin.Context) {
	batchID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	state, err := h.pipelines.Advance(c.Request.Context(), batchID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *Handler) rollbackPipeline(c *gin.Context) {
	batchID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	state, err := h.pipelines.Rollback(c.Request.Context(), batchID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

type attachMitigationRequest struct {
	Description string `json:"description" binding:"required"`
}

func (h *Handler) attachMitigation(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	batchID, okID := pathUUID(c, "id")
	if !okID {
		return
	}
	var req attachMitigationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	state, err := h.pipelines.AttachMitigation(c.Request.Context(), batchID, req.Description, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *Handler) exportDDS(c *gin.Context) {
	batchID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	result, err := h.reports.GenerateDDS(c.Request.Context(), batchID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, "application/pdf", result.Content)
}

type reconciliationReportRequest struct {
	SupplierID  string `json:"supplier_id" binding:"required"`
	PeriodStart string `json:"period_start" binding:"required"`
	PeriodEnd   string `json:"period_end" binding:"required"`
}

func (h *Handler) exportReconciliation(c *gin.Context) {
	var req reconciliationReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	supplierID, err := uuid.Parse(strings.TrimSpace(req.SupplierID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid supplier_id"})
		return
	}
	start, err := parseDate(req.PeriodStart)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid period_start"})
		return
	}
	end, err := parseDate(req.PeriodEnd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid period_end"})
		return
	}

	result, err := h.reports.GenerateReconciliationReport(c.Request.Context(), supplierID, start, end)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", result.Content)
}

func (h *Handler) listPendingNotarizations(c *gin.Context) {
	items, err := h.pending.ListPending(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": items})
}

func (h *Handler) listStages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stages": model.Stages()})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func transferResponse(t *model.TransferRecord) gin.H {
	out := gin.H{
		"id":                   t.ID.String(),
		"origin_kind":          string(t.Origin.Kind),
		"origin_id":            t.Origin.ID.String(),
		"sender_name":          t.SenderName,
		"sender_type":          t.SenderType,
		"receiver_supplier_id": t.ReceiverSupplierID.String(),
		"receiver_name":        t.ReceiverName,
		"receiver_type":        t.ReceiverType,
		"commodity_type":       t.CommodityType,
		"sender_quantity_kg":   t.SenderQuantityKg.String(),
		"status":               string(t.Status),
		"sender_confirmed_at":  t.SenderConfirmedAt,
		"created_at":           t.CreatedAt,
		"has_discrepancy":      t.HasDiscrepancy(),
	}
	if t.BatchID != nil {
		out["batch_id"] = t.BatchID.String()
	}
	if t.QualityGrade != nil {
		out["quality_grade"] = *t.QualityGrade
	}
	if t.ReceiverQuantityKg != nil {
		out["receiver_quantity_kg"] = t.ReceiverQuantityKg.String()
		out["discrepancy_kg"] = t.DiscrepancyKg().String()
	}
	if t.ReceiverConfirmedAt != nil {
		out["receiver_confirmed_at"] = *t.ReceiverConfirmedAt
	}
	if t.SenderNotes != nil {
		out["sender_notes"] = *t.SenderNotes
	}
	if t.ReceiverNotes != nil {
		out["receiver_notes"] = *t.ReceiverNotes
	}
	if t.DisputeReason != nil {
		out["dispute_reason"] = *t.DisputeReason
	}
	if t.LedgerTxRef != nil {
		out["ledger_tx_ref"] = *t.LedgerTxRef
	}
	return out
}

func parseOptionalUUID(raw *string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}
