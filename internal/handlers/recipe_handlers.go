package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bakery_ops_backend/internal/services"
	"bakery_ops_backend/pkg/utils"
)

// RecipeHandler holds the recipe service.
type RecipeHandler struct {
	recipeService services.RecipeService
}

// NewRecipeHandler creates a new RecipeHandler.
func NewRecipeHandler(rs services.RecipeService) *RecipeHandler {
	return &RecipeHandler{recipeService: rs}
}

// CreateRecipe handles the creation of a recipe with its sections.
func (h *RecipeHandler) CreateRecipe(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req services.RecipeRequest
	if !bindJSON(c, &req, "CreateRecipe") {
		return
	}
	recipe, err := h.recipeService.CreateRecipe(c.Request.Context(), actor, req)
	if err != nil {
		respondServiceError(c, err, "CreateRecipe", "Failed to create recipe.")
		return
	}
	c.JSON(http.StatusCreated, recipe)
}

// GetRecipes lists the bakery's recipes.
func (h *RecipeHandler) GetRecipes(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	list, err := h.recipeService.ListRecipes(c.Request.Context(), actor)
	if err != nil {
		respondServiceError(c, err, "GetRecipes", "Failed to retrieve recipes.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": len(list)})
}

// GetRecipeByID returns one recipe with sections and lines.
func (h *RecipeHandler) GetRecipeByID(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	recipe, err := h.recipeService.GetRecipe(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondServiceError(c, err, "GetRecipeByID", "Failed to retrieve recipe.")
		return
	}
	c.JSON(http.StatusOK, recipe)
}

// UpdateRecipe replaces a recipe's header and sections.
func (h *RecipeHandler) UpdateRecipe(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req services.RecipeRequest
	if !bindJSON(c, &req, "UpdateRecipe") {
		return
	}
	recipe, err := h.recipeService.UpdateRecipe(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		respondServiceError(c, err, "UpdateRecipe", "Failed to update recipe.")
		return
	}
	c.JSON(http.StatusOK, recipe)
}

// DeleteRecipe removes a recipe no production sheet refers to.
func (h *RecipeHandler) DeleteRecipe(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	if err := h.recipeService.DeleteRecipe(c.Request.Context(), actor, c.Param("id")); err != nil {
		respondServiceError(c, err, "DeleteRecipe", "Failed to delete recipe.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Recipe deleted successfully"})
}

// ScaleRecipe previews a recipe multiplied by ?factor= (default 1).
func (h *RecipeHandler) ScaleRecipe(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	factor, err := utils.ParseDecimal(c.DefaultQuery("factor", "1"))
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeBadRequest, "Invalid factor: "+err.Error(), err.Error()))
		return
	}
	scaled, err := h.recipeService.Scale(c.Request.Context(), actor, c.Param("id"), factor)
	if err != nil {
		respondServiceError(c, err, "ScaleRecipe", "Failed to scale recipe.")
		return
	}
	c.JSON(http.StatusOK, scaled)
}

// AggregateRecipes sums the ingredient needs of several scaled recipes.
func (h *RecipeHandler) AggregateRecipes(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req services.AggregateRequest
	if !bindJSON(c, &req, "AggregateRecipes") {
		return
	}
	res, err := h.recipeService.Aggregate(c.Request.Context(), actor, req)
	if err != nil {
		respondServiceError(c, err, "AggregateRecipes", "Failed to aggregate recipes.")
		return
	}
	c.JSON(http.StatusOK, res)
}
