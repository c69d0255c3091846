package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"bakery_ops_backend/internal/models"
	"bakery_ops_backend/internal/services"
	"bakery_ops_backend/pkg/utils"
)

// DefaultReportDateLayout is the date format accepted by date_from/date_to filters.
const DefaultReportDateLayout = "2006-01-02"

// InventoryHandler exposes the lot ledger.
type InventoryHandler struct {
	ledgerService services.LedgerService
}

// NewInventoryHandler creates a new InventoryHandler.
func NewInventoryHandler(ls services.LedgerService) *InventoryHandler {
	return &InventoryHandler{ledgerService: ls}
}

// ReceiveStock records a purchase as a new lot of the ingredient.
func (h *InventoryHandler) ReceiveStock(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req services.ReceiveRequest
	if !bindJSON(c, &req, "ReceiveStock") {
		return
	}
	req.IngredientID = c.Param("id")

	res, err := h.ledgerService.Receive(c.Request.Context(), actor, req)
	if err != nil {
		respondServiceError(c, err, "ReceiveStock", "Failed to receive stock.")
		return
	}
	c.JSON(http.StatusCreated, res)
}

// ConsumeStock takes stock out of the oldest lots first.
func (h *InventoryHandler) ConsumeStock(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req services.ConsumeRequest
	if !bindJSON(c, &req, "ConsumeStock") {
		return
	}
	req.IngredientID = c.Param("id")

	res, err := h.ledgerService.Consume(c.Request.Context(), actor, req)
	if err != nil {
		respondServiceError(c, err, "ConsumeStock", "Failed to consume stock.")
		return
	}
	c.JSON(http.StatusOK, res)
}

// AdjustLot corrects a single lot by a signed delta.
func (h *InventoryHandler) AdjustLot(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req services.AdjustRequest
	if !bindJSON(c, &req, "AdjustLot") {
		return
	}

	res, err := h.ledgerService.Adjust(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		respondServiceError(c, err, "AdjustLot", "Failed to adjust lot.")
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetLot returns one lot.
func (h *InventoryHandler) GetLot(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	lot, err := h.ledgerService.GetLot(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondServiceError(c, err, "GetLot", "Failed to retrieve lot.")
		return
	}
	c.JSON(http.StatusOK, lot)
}

// GetIngredientLots lists an ingredient's lots in FIFO order.
func (h *InventoryHandler) GetIngredientLots(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	activeOnly, _ := strconv.ParseBool(c.DefaultQuery("active", "false"))

	lots, err := h.ledgerService.ListLots(c.Request.Context(), actor, c.Param("id"), activeOnly)
	if err != nil {
		respondServiceError(c, err, "GetIngredientLots", "Failed to retrieve lots.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": lots, "total": len(lots)})
}

// GetIngredientStock returns quantity on hand and remaining value.
func (h *InventoryHandler) GetIngredientStock(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	level, err := h.ledgerService.StockLevel(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondServiceError(c, err, "GetIngredientStock", "Failed to retrieve stock level.")
		return
	}
	c.JSON(http.StatusOK, level)
}

// GetTransactions lists ledger transactions with optional filters and paging.
func (h *InventoryHandler) GetTransactions(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	filters := models.TransactionFilters{
		IngredientID:      c.Query("ingredient_id"),
		LotID:             c.Query("lot_id"),
		ProductionSheetID: c.Query("production_sheet_id"),
		Type:              models.TransactionType(c.Query("type")),
		Page:              utils.StrToInt(c.Query("page"), 1),
		PageSize:          utils.StrToInt(c.Query("page_size"), 50),
	}
	for param, dst := range map[string]**time.Time{"date_from": &filters.DateFrom, "date_to": &filters.DateTo} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(DefaultReportDateLayout, raw)
		if err != nil {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeBadRequest,
				"Invalid "+param+" format. Use YYYY-MM-DD.", err.Error()))
			return
		}
		if param == "date_to" {
			parsed = parsed.Add(24*time.Hour - time.Nanosecond)
		}
		*dst = &parsed
	}

	txs, total, err := h.ledgerService.ListTransactions(c.Request.Context(), actor, filters)
	if err != nil {
		respondServiceError(c, err, "GetTransactions", "Failed to retrieve transactions.")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      txs,
		"total":     total,
		"page":      filters.Page,
		"page_size": filters.PageSize,
	})
}
