package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bakery_ops_backend/internal/services"
)

// ReportHandler serves inventory reports.
type ReportHandler struct {
	ledgerService services.LedgerService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(ls services.LedgerService) *ReportHandler {
	return &ReportHandler{ledgerService: ls}
}

// GetInventoryReport returns stock, value and status for every ingredient of the bakery.
func (h *ReportHandler) GetInventoryReport(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	report, err := h.ledgerService.InventoryReport(c.Request.Context(), actor)
	if err != nil {
		respondServiceError(c, err, "GetInventoryReport", "Failed to build inventory report.")
		return
	}
	c.JSON(http.StatusOK, report)
}
