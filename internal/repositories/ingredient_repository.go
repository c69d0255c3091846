package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"bakery_ops_backend/internal/database"
	"bakery_ops_backend/internal/models"
)

// IngredientRepository defines the interface for ingredient-related database operations.
// Every lookup is scoped by bakery id; a row of another bakery is ErrNotFound.
type IngredientRepository interface {
	Create(ctx context.Context, executor SQLExecutor, ingredient *models.Ingredient) error
	GetByID(ctx context.Context, executor SQLExecutor, bakeryID, id string, forUpdate bool) (*models.Ingredient, error)
	GetByIDs(ctx context.Context, executor SQLExecutor, bakeryID string, ids []string) (map[string]models.Ingredient, error)
	List(ctx context.Context, executor SQLExecutor, bakeryID string) ([]models.Ingredient, error)
	Update(ctx context.Context, executor SQLExecutor, ingredient *models.Ingredient) error
	UpdateCurrentQty(ctx context.Context, executor SQLExecutor, bakeryID, id string, qty decimal.Decimal) error
	Delete(ctx context.Context, executor SQLExecutor, bakeryID, id string) error
	CountReferences(ctx context.Context, executor SQLExecutor, id string) (lots int, recipeLines int, err error)
}

type ingredientRepository struct {
	dialect database.Dialect
}

// NewIngredientRepository creates a new instance of IngredientRepository.
func NewIngredientRepository(dialect database.Dialect) IngredientRepository {
	return &ingredientRepository{dialect: dialect}
}

const ingredientColumns = `id, bakery_id, name, unit, cost_per_unit, current_qty, low_stock_threshold, notes, created_at, updated_at`

func scanIngredient(s scanner) (*models.Ingredient, error) {
	var (
		ing       models.Ingredient
		threshold decimal.NullDecimal
		notes     sql.NullString
	)
	err := s.Scan(&ing.ID, &ing.BakeryID, &ing.Name, &ing.Unit, &ing.CostPerUnit, &ing.CurrentQty,
		&threshold, &notes, &ing.CreatedAt, &ing.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if threshold.Valid {
		t := threshold.Decimal
		ing.LowStockThreshold = &t
	}
	if notes.Valid {
		ing.Notes = &notes.String
	}
	return &ing, nil
}

func (r *ingredientRepository) Create(ctx context.Context, executor SQLExecutor, ingredient *models.Ingredient) error {
	query := `INSERT INTO ingredients (` + ingredientColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	ts := now()
	ingredient.CreatedAt, ingredient.UpdatedAt = ts, ts
	_, err := executor.ExecContext(ctx, r.dialect.Rebind(query),
		ingredient.ID, ingredient.BakeryID, ingredient.Name, ingredient.Unit, ingredient.CostPerUnit,
		ingredient.CurrentQty, ingredient.LowStockThreshold, ingredient.Notes, ingredient.CreatedAt, ingredient.UpdatedAt)
	if err != nil {
		if errors.Is(constraintError(err), ErrDuplicateKey) {
			return fmt.Errorf("%w: ingredient name '%s' already exists", ErrDuplicateKey, ingredient.Name)
		}
		return fmt.Errorf("%w: creating ingredient: %v", ErrDatabaseError, err)
	}
	return nil
}

func (r *ingredientRepository) GetByID(ctx context.Context, executor SQLExecutor, bakeryID, id string, forUpdate bool) (*models.Ingredient, error) {
	query := `SELECT ` + ingredientColumns + ` FROM ingredients WHERE id = $1 AND bakery_id = $2`
	if forUpdate {
		query += r.dialect.ForUpdate()
	}
	ing, err := scanIngredient(executor.QueryRowContext(ctx, r.dialect.Rebind(query), id, bakeryID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting ingredient by ID %s: %v", ErrDatabaseError, id, err)
	}
	return ing, nil
}

func (r *ingredientRepository) GetByIDs(ctx context.Context, executor SQLExecutor, bakeryID string, ids []string) (map[string]models.Ingredient, error) {
	result := make(map[string]models.Ingredient, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query := `SELECT ` + ingredientColumns + ` FROM ingredients WHERE bakery_id = $1 AND id IN (` + database.Placeholders(2, len(ids)) + `)`
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, bakeryID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := executor.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: getting ingredients by IDs: %v", ErrDatabaseError, err)
	}
	defer rows.Close()
	for rows.Next() {
		ing, err := scanIngredient(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning ingredient: %v", ErrDatabaseError, err)
		}
		result[ing.ID] = *ing
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating ingredients: %v", ErrDatabaseError, err)
	}
	return result, nil
}

func (r *ingredientRepository) List(ctx context.Context, executor SQLExecutor, bakeryID string) ([]models.Ingredient, error) {
	query := `SELECT ` + ingredientColumns + ` FROM ingredients WHERE bakery_id = $1 ORDER BY name, id`
	rows, err := executor.QueryContext(ctx, r.dialect.Rebind(query), bakeryID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing ingredients: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	ingredients := []models.Ingredient{}
	for rows.Next() {
		ing, err := scanIngredient(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning ingredient: %v", ErrDatabaseError, err)
		}
		ingredients = append(ingredients, *ing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating ingredients: %v", ErrDatabaseError, err)
	}
	return ingredients, nil
}

// Update writes the descriptive fields. current_qty is left alone; it only
// moves through UpdateCurrentQty inside a ledger transaction.
func (r *ingredientRepository) Update(ctx context.Context, executor SQLExecutor, ingredient *models.Ingredient) error {
	query := `UPDATE ingredients
	          SET name = $1, unit = $2, cost_per_unit = $3, low_stock_threshold = $4, notes = $5, updated_at = $6
	          WHERE id = $7 AND bakery_id = $8`
	ingredient.UpdatedAt = now()
	res, err := executor.ExecContext(ctx, r.dialect.Rebind(query),
		ingredient.Name, ingredient.Unit, ingredient.CostPerUnit, ingredient.LowStockThreshold, ingredient.Notes,
		ingredient.UpdatedAt, ingredient.ID, ingredient.BakeryID)
	if err != nil {
		if errors.Is(constraintError(err), ErrDuplicateKey) {
			return fmt.Errorf("%w: ingredient name '%s' already exists", ErrDuplicateKey, ingredient.Name)
		}
		return fmt.Errorf("%w: updating ingredient %s: %v", ErrDatabaseError, ingredient.ID, err)
	}
	return expectOneRow(res)
}

func (r *ingredientRepository) UpdateCurrentQty(ctx context.Context, executor SQLExecutor, bakeryID, id string, qty decimal.Decimal) error {
	query := `UPDATE ingredients SET current_qty = $1, updated_at = $2 WHERE id = $3 AND bakery_id = $4`
	res, err := executor.ExecContext(ctx, r.dialect.Rebind(query), qty, now(), id, bakeryID)
	if err != nil {
		return fmt.Errorf("%w: updating current quantity of ingredient %s: %v", ErrDatabaseError, id, err)
	}
	return expectOneRow(res)
}

func (r *ingredientRepository) Delete(ctx context.Context, executor SQLExecutor, bakeryID, id string) error {
	res, err := executor.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM ingredients WHERE id = $1 AND bakery_id = $2`), id, bakeryID)
	if err != nil {
		if errors.Is(constraintError(err), ErrForeignKey) {
			return fmt.Errorf("%w: ingredient %s is still referenced", ErrForeignKey, id)
		}
		return fmt.Errorf("%w: deleting ingredient %s: %v", ErrDatabaseError, id, err)
	}
	return expectOneRow(res)
}

func (r *ingredientRepository) CountReferences(ctx context.Context, executor SQLExecutor, id string) (int, int, error) {
	var lots, lines int
	if err := executor.QueryRowContext(ctx, r.dialect.Rebind(`SELECT COUNT(*) FROM inventory_lots WHERE ingredient_id = $1`), id).Scan(&lots); err != nil {
		return 0, 0, fmt.Errorf("%w: counting lots of ingredient %s: %v", ErrDatabaseError, id, err)
	}
	if err := executor.QueryRowContext(ctx, r.dialect.Rebind(`SELECT COUNT(*) FROM recipe_section_ingredients WHERE ingredient_id = $1`), id).Scan(&lines); err != nil {
		return 0, 0, fmt.Errorf("%w: counting recipe lines of ingredient %s: %v", ErrDatabaseError, id, err)
	}
	return lots, lines, nil
}
