package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bakery_ops_backend/internal/middleware"
	"bakery_ops_backend/internal/models"
	"bakery_ops_backend/internal/services"
	"bakery_ops_backend/pkg/utils"
)

// actorOrAbort returns the authenticated caller or answers 401.
func actorOrAbort(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Authentication required", ""))
		return models.Actor{}, false
	}
	return actor, true
}

// bindJSON decodes the body into req or answers 400.
func bindJSON(c *gin.Context, req interface{}, op string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		utils.LogError(err, op+": Failed to bind JSON")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return false
	}
	return true
}

// respondServiceError maps a service error to the API error envelope.
// fallback is the message used for unexpected errors.
func respondServiceError(c *gin.Context, err error, op, fallback string) {
	switch {
	case errors.Is(err, services.ErrInsufficientStock):
		utils.LogWarn(op+": insufficient stock", map[string]interface{}{"error": err.Error()})
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeInsufficientStock, "Insufficient stock.", err.Error()).
			WithData(gin.H{"shortages": services.StockShortages(err)}))
	case errors.Is(err, services.ErrConversionUnavailable):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnprocessableEntity, utils.ErrCodeConversionUnavailable, "Unit conversion unavailable.", err.Error()))
	case errors.Is(err, services.ErrInvalidAdjustment):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeInvalidAdjustment, "Invalid adjustment.", err.Error()))
	case errors.Is(err, services.ErrValidation):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Validation failed: "+err.Error(), err.Error()))
	case errors.Is(err, services.ErrAlreadyCompleted):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeAlreadyCompleted, "Production sheet already completed.", err.Error()))
	case errors.Is(err, services.ErrIngredientInUse), errors.Is(err, services.ErrRecipeInUse), errors.Is(err, services.ErrDuplicateName):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, err.Error(), err.Error()))
	case errors.Is(err, services.ErrForbidden):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden, "Forbidden.", err.Error()))
	case errors.Is(err, services.ErrIngredientNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Ingredient not found.", err.Error()))
	case errors.Is(err, services.ErrLotNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Inventory lot not found.", err.Error()))
	case errors.Is(err, services.ErrRecipeNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Recipe not found.", err.Error()))
	case errors.Is(err, services.ErrProductionSheetNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Production sheet not found.", err.Error()))
	default:
		utils.LogError(err, op+": unexpected service error")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, fallback, "Internal error"))
	}
}
