package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"bakery_ops_backend/internal/models"
	"bakery_ops_backend/internal/units"
)

var (
	ErrValidation              = errors.New("validation failed")
	ErrIngredientNotFound      = errors.New("ingredient not found")
	ErrLotNotFound             = errors.New("inventory lot not found")
	ErrRecipeNotFound          = errors.New("recipe not found")
	ErrProductionSheetNotFound = errors.New("production sheet not found")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrInvalidAdjustment       = errors.New("invalid adjustment")
	ErrAlreadyCompleted        = errors.New("production sheet already completed")
	ErrIngredientInUse         = errors.New("ingredient is still in use")
	ErrRecipeInUse             = errors.New("recipe is used by a production sheet")
	ErrDuplicateName           = errors.New("name already exists")
	ErrForbidden               = errors.New("not allowed")

	// ErrConversionUnavailable is the units sentinel, re-exported so callers
	// of this package need only one import for error matching.
	ErrConversionUnavailable = units.ErrConversionUnavailable
)

// InsufficientStockError reports a single ingredient that cannot cover a
// consumption. All quantities are in Unit, the ingredient's stock unit.
type InsufficientStockError struct {
	IngredientID   string
	IngredientName string
	Requested      decimal.Decimal
	Available      decimal.Decimal
	Shortfall      decimal.Decimal
	Unit           string
}

func newInsufficientStock(ing *models.Ingredient, requested, available decimal.Decimal) *InsufficientStockError {
	return &InsufficientStockError{
		IngredientID:   ing.ID,
		IngredientName: ing.Name,
		Requested:      requested,
		Available:      available,
		Shortfall:      requested.Sub(available),
		Unit:           ing.Unit,
	}
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: need %s %s %s, have %s %s",
		e.Requested.String(), e.Unit, e.IngredientName, e.Available.String(), e.Unit)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// Shortage converts the error into its API representation.
func (e *InsufficientStockError) Shortage() models.StockShortage {
	return models.StockShortage{
		IngredientID:   e.IngredientID,
		IngredientName: e.IngredientName,
		Requested:      e.Requested,
		Available:      e.Available,
		Shortfall:      e.Shortfall,
		Unit:           e.Unit,
	}
}

// ShortageError collects every short ingredient of a production run.
type ShortageError struct {
	Shortages []InsufficientStockError
}

func (e *ShortageError) Error() string {
	parts := make([]string, len(e.Shortages))
	for i := range e.Shortages {
		s := e.Shortages[i]
		parts[i] = fmt.Sprintf("need %s %s %s, have %s %s", s.Requested, s.Unit, s.IngredientName, s.Available, s.Unit)
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

func (e *ShortageError) Is(target error) bool { return target == ErrInsufficientStock }

// List converts the shortages into their API representation.
func (e *ShortageError) List() []models.StockShortage {
	out := make([]models.StockShortage, len(e.Shortages))
	for i := range e.Shortages {
		out[i] = e.Shortages[i].Shortage()
	}
	return out
}

// StockShortages extracts the shortages carried by err, if any.
func StockShortages(err error) []models.StockShortage {
	var se *ShortageError
	if errors.As(err, &se) {
		return se.List()
	}
	var ie *InsufficientStockError
	if errors.As(err, &ie) {
		return []models.StockShortage{ie.Shortage()}
	}
	return nil
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// outcome labels an operation result for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrConversionUnavailable):
		return "conversion_unavailable"
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidAdjustment):
		return "invalid"
	case errors.Is(err, ErrAlreadyCompleted):
		return "already_completed"
	case errors.Is(err, ErrIngredientNotFound), errors.Is(err, ErrLotNotFound),
		errors.Is(err, ErrRecipeNotFound), errors.Is(err, ErrProductionSheetNotFound):
		return "not_found"
	default:
		return "error"
	}
}
