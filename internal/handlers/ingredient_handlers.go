package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bakery_ops_backend/internal/services"
)

// IngredientHandler holds the ingredient service.
type IngredientHandler struct {
	ingredientService services.IngredientService
}

// NewIngredientHandler creates a new IngredientHandler.
func NewIngredientHandler(is services.IngredientService) *IngredientHandler {
	return &IngredientHandler{ingredientService: is}
}

// CreateIngredient handles the creation of a new ingredient.
func (h *IngredientHandler) CreateIngredient(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req services.CreateIngredientRequest
	if !bindJSON(c, &req, "CreateIngredient") {
		return
	}
	ing, err := h.ingredientService.CreateIngredient(c.Request.Context(), actor, req)
	if err != nil {
		respondServiceError(c, err, "CreateIngredient", "Failed to create ingredient.")
		return
	}
	c.JSON(http.StatusCreated, ing)
}

// GetIngredients lists the bakery's ingredients.
func (h *IngredientHandler) GetIngredients(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	list, err := h.ingredientService.ListIngredients(c.Request.Context(), actor)
	if err != nil {
		respondServiceError(c, err, "GetIngredients", "Failed to retrieve ingredients.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": len(list)})
}

// GetIngredientByID returns one ingredient.
func (h *IngredientHandler) GetIngredientByID(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	ing, err := h.ingredientService.GetIngredient(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondServiceError(c, err, "GetIngredientByID", "Failed to retrieve ingredient.")
		return
	}
	c.JSON(http.StatusOK, ing)
}

// UpdateIngredient applies a partial update.
func (h *IngredientHandler) UpdateIngredient(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req services.UpdateIngredientRequest
	if !bindJSON(c, &req, "UpdateIngredient") {
		return
	}
	ing, err := h.ingredientService.UpdateIngredient(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		respondServiceError(c, err, "UpdateIngredient", "Failed to update ingredient.")
		return
	}
	c.JSON(http.StatusOK, ing)
}

// DeleteIngredient removes an ingredient nothing refers to.
func (h *IngredientHandler) DeleteIngredient(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	if err := h.ingredientService.DeleteIngredient(c.Request.Context(), actor, c.Param("id")); err != nil {
		respondServiceError(c, err, "DeleteIngredient", "Failed to delete ingredient.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Ingredient deleted successfully"})
}
