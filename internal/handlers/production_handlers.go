package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bakery_ops_backend/internal/services"
)

// ProductionHandler serves production sheets.
type ProductionHandler struct {
	productionService services.ProductionService
}

// NewProductionHandler creates a new ProductionHandler.
func NewProductionHandler(ps services.ProductionService) *ProductionHandler {
	return &ProductionHandler{productionService: ps}
}

// CreateProductionSheet plans a new pending sheet.
func (h *ProductionHandler) CreateProductionSheet(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req services.ProductionSheetRequest
	if !bindJSON(c, &req, "CreateProductionSheet") {
		return
	}
	sheet, err := h.productionService.CreateSheet(c.Request.Context(), actor, req)
	if err != nil {
		respondServiceError(c, err, "CreateProductionSheet", "Failed to create production sheet.")
		return
	}
	c.JSON(http.StatusCreated, sheet)
}

// GetProductionSheets lists sheets, optionally filtered by ?status=.
func (h *ProductionHandler) GetProductionSheets(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	filter := services.ProductionSheetFilter{Status: c.Query("status")}
	list, err := h.productionService.ListSheets(c.Request.Context(), actor, filter)
	if err != nil {
		respondServiceError(c, err, "GetProductionSheets", "Failed to retrieve production sheets.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": len(list)})
}

// GetProductionSheetByID returns one sheet with its recipe lines.
func (h *ProductionHandler) GetProductionSheetByID(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	sheet, err := h.productionService.GetSheet(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondServiceError(c, err, "GetProductionSheetByID", "Failed to retrieve production sheet.")
		return
	}
	c.JSON(http.StatusOK, sheet)
}

// UpdateProductionSheet replaces a pending sheet.
func (h *ProductionHandler) UpdateProductionSheet(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req services.ProductionSheetRequest
	if !bindJSON(c, &req, "UpdateProductionSheet") {
		return
	}
	sheet, err := h.productionService.UpdateSheet(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		respondServiceError(c, err, "UpdateProductionSheet", "Failed to update production sheet.")
		return
	}
	c.JSON(http.StatusOK, sheet)
}

// DeleteProductionSheet removes a pending sheet.
func (h *ProductionHandler) DeleteProductionSheet(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	if err := h.productionService.DeleteSheet(c.Request.Context(), actor, c.Param("id")); err != nil {
		respondServiceError(c, err, "DeleteProductionSheet", "Failed to delete production sheet.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Production sheet deleted successfully"})
}

// PreviewProductionSheet shows requirements and shortages, or the frozen
// snapshot once the sheet is completed.
func (h *ProductionHandler) PreviewProductionSheet(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	preview, err := h.productionService.Preview(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondServiceError(c, err, "PreviewProductionSheet", "Failed to preview production sheet.")
		return
	}
	c.JSON(http.StatusOK, preview)
}

// CompleteProductionSheet deducts inventory and freezes the sheet.
func (h *ProductionHandler) CompleteProductionSheet(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	res, err := h.productionService.Complete(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondServiceError(c, err, "CompleteProductionSheet", "Failed to complete production sheet.")
		return
	}
	c.JSON(http.StatusOK, res)
}
