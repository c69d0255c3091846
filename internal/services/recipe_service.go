package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"bakery_ops_backend/internal/aggregation"
	"bakery_ops_backend/internal/costing"
	"bakery_ops_backend/internal/database"
	"bakery_ops_backend/internal/models"
	"bakery_ops_backend/internal/repositories"
	"bakery_ops_backend/internal/units"
	"bakery_ops_backend/pkg/utils"
)

// --- Recipe DTOs ---
type RecipeLineInput struct {
	IngredientID string          `json:"ingredient_id" binding:"required"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit" binding:"required"`
	Preparation  *string         `json:"preparation"`
	Order        *int            `json:"order"`
}

type RecipeSectionInput struct {
	Name        string            `json:"name" binding:"required"`
	Order       *int              `json:"order"`
	Ingredients []RecipeLineInput `json:"ingredients"`
}

type RecipeRequest struct {
	Name        string               `json:"name" binding:"required"`
	Description *string              `json:"description"`
	YieldQty    decimal.Decimal      `json:"yield_qty"`
	YieldUnit   string               `json:"yield_unit" binding:"required"`
	Sections    []RecipeSectionInput `json:"sections"`
}

type RecipeScaleInput struct {
	RecipeID string          `json:"recipe_id" binding:"required"`
	Scale    decimal.Decimal `json:"scale"`
}

type AggregateRequest struct {
	Recipes []RecipeScaleInput `json:"recipes" binding:"required"`
}

type AggregateResult struct {
	Recipes     []models.ScaledRecipe         `json:"recipes"`
	Ingredients []models.AggregatedIngredient `json:"ingredients"`
	TotalCost   decimal.Decimal               `json:"total_cost"`
}

// --- RecipeService Interface ---
type RecipeService interface {
	CreateRecipe(ctx context.Context, actor models.Actor, req RecipeRequest) (*models.Recipe, error)
	GetRecipe(ctx context.Context, actor models.Actor, id string) (*models.Recipe, error)
	ListRecipes(ctx context.Context, actor models.Actor) ([]models.Recipe, error)
	UpdateRecipe(ctx context.Context, actor models.Actor, id string, req RecipeRequest) (*models.Recipe, error)
	DeleteRecipe(ctx context.Context, actor models.Actor, id string) error
	Scale(ctx context.Context, actor models.Actor, id string, factor decimal.Decimal) (*models.ScaledRecipe, error)
	Aggregate(ctx context.Context, actor models.Actor, req AggregateRequest) (*AggregateResult, error)
	// RecomputeCosts refreshes the cached total cost of every recipe using
	// ingredientID and archives the new versions. It runs in the caller's
	// transaction.
	RecomputeCosts(ctx context.Context, ex repositories.SQLExecutor, actor models.Actor, ingredientID string) (int, error)
}

type recipeService struct {
	db             *sql.DB
	retries        int
	recipeRepo     repositories.RecipeRepository
	ingredientRepo repositories.IngredientRepository
	archive        repositories.SnapshotArchive
	conversions    ConversionProvider
}

// NewRecipeService creates a new instance of RecipeService.
func NewRecipeService(
	db *sql.DB,
	retries int,
	rr repositories.RecipeRepository,
	ir repositories.IngredientRepository,
	archive repositories.SnapshotArchive,
	conversions ConversionProvider,
) RecipeService {
	return &recipeService{
		db:             db,
		retries:        retries,
		recipeRepo:     rr,
		ingredientRepo: ir,
		archive:        archive,
		conversions:    conversions,
	}
}

// buildRecipe validates req and turns it into a recipe owned by actor.
func (s *recipeService) buildRecipe(actor models.Actor, req RecipeRequest) (*models.Recipe, error) {
	if utils.IsEmpty(req.Name) {
		return nil, validationError("recipe name cannot be empty")
	}
	req.YieldQty = costing.RoundQuantity(req.YieldQty)
	if !req.YieldQty.IsPositive() {
		return nil, validationError("yield_qty must be greater than zero")
	}
	if utils.IsEmpty(req.YieldUnit) {
		return nil, validationError("yield_unit cannot be empty")
	}

	recipe := &models.Recipe{
		BakeryID:    actor.BakeryID,
		Name:        utils.DerefString(utils.NewNullString(req.Name)),
		Description: utils.TrimPtr(req.Description),
		YieldQty:    req.YieldQty,
		YieldUnit:   units.Normalize(req.YieldUnit),
		Sections:    make([]models.RecipeSection, 0, len(req.Sections)),
	}
	for si, sec := range req.Sections {
		if utils.IsEmpty(sec.Name) {
			return nil, validationError("section %d: name cannot be empty", si+1)
		}
		section := models.RecipeSection{
			Name:      utils.DerefString(utils.NewNullString(sec.Name)),
			SortOrder: si,
			Lines:     make([]models.RecipeSectionIngredient, 0, len(sec.Ingredients)),
		}
		if sec.Order != nil {
			section.SortOrder = *sec.Order
		}
		for li, line := range sec.Ingredients {
			if utils.IsEmpty(line.IngredientID) {
				return nil, validationError("section %q line %d: ingredient_id is required", section.Name, li+1)
			}
			line.Quantity = costing.RoundQuantity(line.Quantity)
			if !line.Quantity.IsPositive() {
				return nil, validationError("section %q line %d: quantity must be greater than zero", section.Name, li+1)
			}
			if utils.IsEmpty(line.Unit) {
				return nil, validationError("section %q line %d: unit is required", section.Name, li+1)
			}
			l := models.RecipeSectionIngredient{
				IngredientID: line.IngredientID,
				Quantity:     line.Quantity,
				Unit:         units.Normalize(line.Unit),
				Preparation:  utils.TrimPtr(line.Preparation),
				SortOrder:    li,
			}
			if line.Order != nil {
				l.SortOrder = *line.Order
			}
			section.Lines = append(section.Lines, l)
		}
		recipe.Sections = append(recipe.Sections, section)
	}
	return recipe, nil
}

// loadIngredients fetches the ingredients a recipe uses. A missing id means
// the recipe points at another bakery's ingredient or a deleted one.
func (s *recipeService) loadIngredients(ctx context.Context, ex repositories.SQLExecutor, actor models.Actor, ids []string) (map[string]models.Ingredient, error) {
	ingredients, err := s.ingredientRepo.GetByIDs(ctx, ex, actor.BakeryID, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := ingredients[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrIngredientNotFound, id)
		}
	}
	return ingredients, nil
}

// priceRecipe sets the cached total cost from current ingredient costs.
func (s *recipeService) priceRecipe(recipe *models.Recipe, ingredients map[string]models.Ingredient) error {
	scaled, err := aggregation.ScaleRecipe(s.conversions.Table(), *recipe, decimal.NewFromInt(1), ingredients)
	if err != nil {
		return err
	}
	total := costing.RoundPrice(scaled.EstimatedCost)
	recipe.TotalCost = &total
	return nil
}

func (s *recipeService) CreateRecipe(ctx context.Context, actor models.Actor, req RecipeRequest) (*models.Recipe, error) {
	recipe, err := s.buildRecipe(actor, req)
	if err != nil {
		return nil, err
	}
	recipe.ID = utils.NewID()

	err = database.RunInTx(ctx, s.db, s.retries, func(tx *sql.Tx) error {
		ingredients, err := s.loadIngredients(ctx, tx, actor, recipe.IngredientIDs())
		if err != nil {
			return err
		}
		if err := s.priceRecipe(recipe, ingredients); err != nil {
			return err
		}
		if err := s.recipeRepo.Create(ctx, tx, recipe); err != nil {
			return err
		}
		return archiveSnapshot(ctx, tx, s.archive, actor, models.SnapshotEntityRecipe, recipe.ID, recipe)
	})
	if err != nil {
		return nil, err
	}
	utils.LogInfo("Recipe created", map[string]interface{}{"bakery_id": actor.BakeryID, "recipe_id": recipe.ID})
	return recipe, nil
}

func (s *recipeService) getRecipe(ctx context.Context, ex repositories.SQLExecutor, actor models.Actor, id string) (*models.Recipe, error) {
	recipe, err := s.recipeRepo.GetByID(ctx, ex, actor.BakeryID, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRecipeNotFound, id)
		}
		return nil, err
	}
	return recipe, nil
}

func (s *recipeService) GetRecipe(ctx context.Context, actor models.Actor, id string) (*models.Recipe, error) {
	return s.getRecipe(ctx, s.db, actor, id)
}

func (s *recipeService) ListRecipes(ctx context.Context, actor models.Actor) ([]models.Recipe, error) {
	return s.recipeRepo.List(ctx, s.db, actor.BakeryID)
}

func (s *recipeService) UpdateRecipe(ctx context.Context, actor models.Actor, id string, req RecipeRequest) (*models.Recipe, error) {
	recipe, err := s.buildRecipe(actor, req)
	if err != nil {
		return nil, err
	}

	err = database.RunInTx(ctx, s.db, s.retries, func(tx *sql.Tx) error {
		existing, err := s.getRecipe(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		recipe.ID = existing.ID
		recipe.CreatedAt = existing.CreatedAt

		ingredients, err := s.loadIngredients(ctx, tx, actor, recipe.IngredientIDs())
		if err != nil {
			return err
		}
		if err := s.priceRecipe(recipe, ingredients); err != nil {
			return err
		}
		if err := s.recipeRepo.Update(ctx, tx, recipe); err != nil {
			return err
		}
		return archiveSnapshot(ctx, tx, s.archive, actor, models.SnapshotEntityRecipe, recipe.ID, recipe)
	})
	if err != nil {
		return nil, err
	}
	return recipe, nil
}

func (s *recipeService) DeleteRecipe(ctx context.Context, actor models.Actor, id string) error {
	return database.RunInTx(ctx, s.db, s.retries, func(tx *sql.Tx) error {
		if _, err := s.getRecipe(ctx, tx, actor, id); err != nil {
			return err
		}
		n, err := s.recipeRepo.CountProductionReferences(ctx, tx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: referenced by %d production sheet(s)", ErrRecipeInUse, n)
		}
		if err := s.recipeRepo.Delete(ctx, tx, actor.BakeryID, id); err != nil {
			if errors.Is(err, repositories.ErrForeignKey) {
				return ErrRecipeInUse
			}
			return err
		}
		return nil
	})
}

func (s *recipeService) Scale(ctx context.Context, actor models.Actor, id string, factor decimal.Decimal) (*models.ScaledRecipe, error) {
	factor = costing.RoundQuantity(factor)
	if !factor.IsPositive() {
		return nil, validationError("scale factor must be greater than zero")
	}
	recipe, err := s.getRecipe(ctx, s.db, actor, id)
	if err != nil {
		return nil, err
	}
	ingredients, err := s.loadIngredients(ctx, s.db, actor, recipe.IngredientIDs())
	if err != nil {
		return nil, err
	}
	scaled, err := aggregation.ScaleRecipe(s.conversions.Table(), *recipe, factor, ingredients)
	if err != nil {
		return nil, err
	}
	return &scaled, nil
}

func (s *recipeService) Aggregate(ctx context.Context, actor models.Actor, req AggregateRequest) (*AggregateResult, error) {
	if len(req.Recipes) == 0 {
		return nil, validationError("at least one recipe is required")
	}
	scaled := make([]models.ScaledRecipe, 0, len(req.Recipes))
	for i, in := range req.Recipes {
		if !in.Scale.IsPositive() {
			return nil, validationError("recipe %d: scale must be greater than zero", i+1)
		}
		sr, err := s.Scale(ctx, actor, in.RecipeID, in.Scale)
		if err != nil {
			return nil, err
		}
		scaled = append(scaled, *sr)
	}
	return &AggregateResult{
		Recipes:     scaled,
		Ingredients: aggregation.AggregateAcrossRecipes(s.conversions.Table(), scaled),
		TotalCost:   aggregation.TotalCost(scaled),
	}, nil
}

func (s *recipeService) RecomputeCosts(ctx context.Context, ex repositories.SQLExecutor, actor models.Actor, ingredientID string) (int, error) {
	ids, err := s.recipeRepo.ListIDsByIngredient(ctx, ex, actor.BakeryID, ingredientID)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		recipe, err := s.getRecipe(ctx, ex, actor, id)
		if err != nil {
			return 0, err
		}
		ingredients, err := s.loadIngredients(ctx, ex, actor, recipe.IngredientIDs())
		if err != nil {
			return 0, err
		}
		if err := s.priceRecipe(recipe, ingredients); err != nil {
			return 0, err
		}
		if err := s.recipeRepo.UpdateTotalCost(ctx, ex, actor.BakeryID, recipe.ID, recipe.TotalCost); err != nil {
			return 0, err
		}
		if err := archiveSnapshot(ctx, ex, s.archive, actor, models.SnapshotEntityRecipe, recipe.ID, recipe); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}
