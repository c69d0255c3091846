package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bakery_ops_backend/internal/services"
)

// UnitHandler serves the unit conversion table.
type UnitHandler struct {
	unitService services.UnitConversionService
}

// NewUnitHandler creates a new UnitHandler.
func NewUnitHandler(us services.UnitConversionService) *UnitHandler {
	return &UnitHandler{unitService: us}
}

// ListConversions returns every stored conversion and the known units per category.
func (h *UnitHandler) ListConversions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"conversions": h.unitService.List(),
		"units":       h.unitService.Units(),
	})
}

// UpsertConversion creates or replaces a directed conversion.
func (h *UnitHandler) UpsertConversion(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req services.UpsertConversionRequest
	if !bindJSON(c, &req, "UpsertConversion") {
		return
	}
	conv, err := h.unitService.Upsert(c.Request.Context(), actor, req)
	if err != nil {
		respondServiceError(c, err, "UpsertConversion", "Failed to save unit conversion.")
		return
	}
	c.JSON(http.StatusOK, conv)
}

// Convert expresses a quantity in another unit.
func (h *UnitHandler) Convert(c *gin.Context) {
	var req services.ConvertRequest
	if !bindJSON(c, &req, "Convert") {
		return
	}
	res, err := h.unitService.Convert(req)
	if err != nil {
		respondServiceError(c, err, "Convert", "Failed to convert quantity.")
		return
	}
	c.JSON(http.StatusOK, res)
}
