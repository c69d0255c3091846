package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"bakery_ops_backend/internal/costing"
	"bakery_ops_backend/internal/database"
	"bakery_ops_backend/internal/models"
	"bakery_ops_backend/internal/repositories"
	"bakery_ops_backend/internal/units"
	"bakery_ops_backend/pkg/utils"
)

// --- Ingredient DTOs ---
type CreateIngredientRequest struct {
	Name              string           `json:"name" binding:"required"`
	Unit              string           `json:"unit" binding:"required"`
	CostPerUnit       decimal.Decimal  `json:"cost_per_unit"`
	LowStockThreshold *decimal.Decimal `json:"low_stock_threshold"`
	Notes             *string          `json:"notes"`
}

// UpdateIngredientRequest changes only the fields that are set.
type UpdateIngredientRequest struct {
	Name              *string          `json:"name"`
	Unit              *string          `json:"unit"`
	CostPerUnit       *decimal.Decimal `json:"cost_per_unit"`
	LowStockThreshold *decimal.Decimal `json:"low_stock_threshold"`
	Notes             *string          `json:"notes"`
}

// --- IngredientService Interface ---
type IngredientService interface {
	CreateIngredient(ctx context.Context, actor models.Actor, req CreateIngredientRequest) (*models.Ingredient, error)
	GetIngredient(ctx context.Context, actor models.Actor, id string) (*models.Ingredient, error)
	ListIngredients(ctx context.Context, actor models.Actor) ([]models.Ingredient, error)
	UpdateIngredient(ctx context.Context, actor models.Actor, id string, req UpdateIngredientRequest) (*models.Ingredient, error)
	DeleteIngredient(ctx context.Context, actor models.Actor, id string) error
}

type ingredientService struct {
	db             *sql.DB
	retries        int
	ingredientRepo repositories.IngredientRepository
	recipes        RecipeService
	conversions    ConversionProvider
}

// NewIngredientService creates a new instance of IngredientService.
func NewIngredientService(db *sql.DB, retries int, repo repositories.IngredientRepository, recipes RecipeService, conversions ConversionProvider) IngredientService {
	return &ingredientService{
		db:             db,
		retries:        retries,
		ingredientRepo: repo,
		recipes:        recipes,
		conversions:    conversions,
	}
}

func (s *ingredientService) validateUnit(unit string) (string, error) {
	u := units.Normalize(unit)
	if u == "" {
		return "", validationError("unit cannot be empty")
	}
	if !s.conversions.Table().Known(u) {
		return "", validationError("unit %q is not in the conversion table", u)
	}
	return u, nil
}

func validateCosts(cost decimal.Decimal, threshold *decimal.Decimal) error {
	if cost.IsNegative() {
		return validationError("cost_per_unit must not be negative")
	}
	if threshold != nil && threshold.IsNegative() {
		return validationError("low_stock_threshold must not be negative")
	}
	return nil
}

func roundThreshold(t *decimal.Decimal) *decimal.Decimal {
	if t == nil {
		return nil
	}
	r := costing.RoundQuantity(*t)
	return &r
}

func (s *ingredientService) CreateIngredient(ctx context.Context, actor models.Actor, req CreateIngredientRequest) (*models.Ingredient, error) {
	name := utils.NewNullString(req.Name)
	if name == nil {
		return nil, validationError("ingredient name cannot be empty")
	}
	unit, err := s.validateUnit(req.Unit)
	if err != nil {
		return nil, err
	}
	req.CostPerUnit = costing.RoundPrice(req.CostPerUnit)
	req.LowStockThreshold = roundThreshold(req.LowStockThreshold)
	if err := validateCosts(req.CostPerUnit, req.LowStockThreshold); err != nil {
		return nil, err
	}

	ing := &models.Ingredient{
		ID:                utils.NewID(),
		BakeryID:          actor.BakeryID,
		Name:              *name,
		Unit:              unit,
		CostPerUnit:       req.CostPerUnit,
		CurrentQty:        decimal.Zero,
		LowStockThreshold: req.LowStockThreshold,
		Notes:             utils.TrimPtr(req.Notes),
	}
	if err := s.ingredientRepo.Create(ctx, s.db, ing); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: ingredient '%s'", ErrDuplicateName, ing.Name)
		}
		return nil, err
	}
	utils.LogInfo("Ingredient created", map[string]interface{}{"bakery_id": actor.BakeryID, "ingredient_id": ing.ID, "unit": ing.Unit})
	return ing, nil
}

func (s *ingredientService) getIngredient(ctx context.Context, ex repositories.SQLExecutor, actor models.Actor, id string, forUpdate bool) (*models.Ingredient, error) {
	ing, err := s.ingredientRepo.GetByID(ctx, ex, actor.BakeryID, id, forUpdate)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrIngredientNotFound, id)
		}
		return nil, err
	}
	return ing, nil
}

func (s *ingredientService) GetIngredient(ctx context.Context, actor models.Actor, id string) (*models.Ingredient, error) {
	return s.getIngredient(ctx, s.db, actor, id, false)
}

func (s *ingredientService) ListIngredients(ctx context.Context, actor models.Actor) ([]models.Ingredient, error) {
	return s.ingredientRepo.List(ctx, s.db, actor.BakeryID)
}

func (s *ingredientService) UpdateIngredient(ctx context.Context, actor models.Actor, id string, req UpdateIngredientRequest) (*models.Ingredient, error) {
	var (
		updated  *models.Ingredient
		repriced int
	)
	err := database.RunInTx(ctx, s.db, s.retries, func(tx *sql.Tx) error {
		ing, err := s.getIngredient(ctx, tx, actor, id, true)
		if err != nil {
			return err
		}

		if req.Name != nil {
			name := utils.NewNullString(*req.Name)
			if name == nil {
				return validationError("ingredient name cannot be empty")
			}
			ing.Name = *name
		}
		if req.Unit != nil {
			unit, err := s.validateUnit(*req.Unit)
			if err != nil {
				return err
			}
			if unit != ing.Unit {
				lots, _, err := s.ingredientRepo.CountReferences(ctx, tx, ing.ID)
				if err != nil {
					return err
				}
				if lots > 0 {
					return validationError("unit cannot change once stock has been received (%d lots)", lots)
				}
				ing.Unit = unit
			}
		}
		costChanged := false
		if req.CostPerUnit != nil && !costing.RoundPrice(*req.CostPerUnit).Equal(ing.CostPerUnit) {
			ing.CostPerUnit = costing.RoundPrice(*req.CostPerUnit)
			costChanged = true
		}
		if req.LowStockThreshold != nil {
			ing.LowStockThreshold = roundThreshold(req.LowStockThreshold)
		}
		if req.Notes != nil {
			ing.Notes = utils.TrimPtr(req.Notes)
		}
		if err := validateCosts(ing.CostPerUnit, ing.LowStockThreshold); err != nil {
			return err
		}

		if err := s.ingredientRepo.Update(ctx, tx, ing); err != nil {
			if errors.Is(err, repositories.ErrDuplicateKey) {
				return fmt.Errorf("%w: ingredient '%s'", ErrDuplicateName, ing.Name)
			}
			return err
		}
		// A unit change reprices recipe lines as much as a cost change does.
		if costChanged || req.Unit != nil {
			if repriced, err = s.recipes.RecomputeCosts(ctx, tx, actor, ing.ID); err != nil {
				return err
			}
		}
		updated = ing
		return nil
	})
	if err != nil {
		return nil, err
	}
	if repriced > 0 {
		utils.LogInfo("Recipe costs recomputed", map[string]interface{}{
			"bakery_id": actor.BakeryID, "ingredient_id": id, "recipes": repriced,
		})
	}
	return updated, nil
}

func (s *ingredientService) DeleteIngredient(ctx context.Context, actor models.Actor, id string) error {
	return database.RunInTx(ctx, s.db, s.retries, func(tx *sql.Tx) error {
		ing, err := s.getIngredient(ctx, tx, actor, id, true)
		if err != nil {
			return err
		}
		lots, lines, err := s.ingredientRepo.CountReferences(ctx, tx, ing.ID)
		if err != nil {
			return err
		}
		if lots > 0 || lines > 0 {
			return fmt.Errorf("%w: %d lots and %d recipe lines reference '%s'", ErrIngredientInUse, lots, lines, ing.Name)
		}
		if err := s.ingredientRepo.Delete(ctx, tx, actor.BakeryID, ing.ID); err != nil {
			if errors.Is(err, repositories.ErrForeignKey) {
				return fmt.Errorf("%w: '%s'", ErrIngredientInUse, ing.Name)
			}
			return err
		}
		return nil
	})
}
