package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"bakery_ops_backend/internal/database"
	"bakery_ops_backend/internal/models"
	"bakery_ops_backend/pkg/utils"
)

// RecipeRepository persists recipes with their sections and lines.
type RecipeRepository interface {
	Create(ctx context.Context, executor SQLExecutor, recipe *models.Recipe) error
	GetByID(ctx context.Context, executor SQLExecutor, bakeryID, id string) (*models.Recipe, error)
	List(ctx context.Context, executor SQLExecutor, bakeryID string) ([]models.Recipe, error)
	Update(ctx context.Context, executor SQLExecutor, recipe *models.Recipe) error
	UpdateTotalCost(ctx context.Context, executor SQLExecutor, bakeryID, id string, cost *decimal.Decimal) error
	Delete(ctx context.Context, executor SQLExecutor, bakeryID, id string) error
	ListIDsByIngredient(ctx context.Context, executor SQLExecutor, bakeryID, ingredientID string) ([]string, error)
	CountProductionReferences(ctx context.Context, executor SQLExecutor, id string) (int, error)
}

type recipeRepository struct {
	dialect database.Dialect
}

// NewRecipeRepository creates a new instance of RecipeRepository.
func NewRecipeRepository(dialect database.Dialect) RecipeRepository {
	return &recipeRepository{dialect: dialect}
}

const recipeColumns = `id, bakery_id, name, description, yield_qty, yield_unit, total_cost, created_at, updated_at`

func scanRecipe(s scanner) (*models.Recipe, error) {
	var (
		recipe      models.Recipe
		description sql.NullString
		totalCost   decimal.NullDecimal
	)
	err := s.Scan(&recipe.ID, &recipe.BakeryID, &recipe.Name, &description, &recipe.YieldQty, &recipe.YieldUnit,
		&totalCost, &recipe.CreatedAt, &recipe.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if description.Valid {
		recipe.Description = &description.String
	}
	if totalCost.Valid {
		c := totalCost.Decimal
		recipe.TotalCost = &c
	}
	return &recipe, nil
}

func (r *recipeRepository) Create(ctx context.Context, executor SQLExecutor, recipe *models.Recipe) error {
	query := `INSERT INTO recipes (` + recipeColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	ts := now()
	recipe.CreatedAt, recipe.UpdatedAt = ts, ts
	_, err := executor.ExecContext(ctx, r.dialect.Rebind(query),
		recipe.ID, recipe.BakeryID, recipe.Name, recipe.Description, recipe.YieldQty, recipe.YieldUnit,
		recipe.TotalCost, recipe.CreatedAt, recipe.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: creating recipe: %v", ErrDatabaseError, err)
	}
	return r.insertSections(ctx, executor, recipe)
}

// insertSections writes sections and lines, assigning ids where missing.
func (r *recipeRepository) insertSections(ctx context.Context, executor SQLExecutor, recipe *models.Recipe) error {
	sectionQuery := r.dialect.Rebind(`INSERT INTO recipe_sections (id, recipe_id, name, sort_order) VALUES ($1, $2, $3, $4)`)
	lineQuery := r.dialect.Rebind(`INSERT INTO recipe_section_ingredients
	    (id, section_id, ingredient_id, quantity, unit, preparation, sort_order)
	    VALUES ($1, $2, $3, $4, $5, $6, $7)`)

	for si := range recipe.Sections {
		section := &recipe.Sections[si]
		if section.ID == "" {
			section.ID = utils.NewID()
		}
		section.RecipeID = recipe.ID
		if _, err := executor.ExecContext(ctx, sectionQuery, section.ID, recipe.ID, section.Name, section.SortOrder); err != nil {
			return fmt.Errorf("%w: creating recipe section: %v", ErrDatabaseError, err)
		}
		for li := range section.Lines {
			line := &section.Lines[li]
			if line.ID == "" {
				line.ID = utils.NewID()
			}
			line.SectionID = section.ID
			_, err := executor.ExecContext(ctx, lineQuery,
				line.ID, section.ID, line.IngredientID, line.Quantity, line.Unit, line.Preparation, line.SortOrder)
			if err != nil {
				if errors.Is(constraintError(err), ErrForeignKey) {
					return fmt.Errorf("%w: ingredient %s does not exist", ErrForeignKey, line.IngredientID)
				}
				return fmt.Errorf("%w: creating recipe line: %v", ErrDatabaseError, err)
			}
		}
	}
	return nil
}

func (r *recipeRepository) GetByID(ctx context.Context, executor SQLExecutor, bakeryID, id string) (*models.Recipe, error) {
	query := `SELECT ` + recipeColumns + ` FROM recipes WHERE id = $1 AND bakery_id = $2`
	recipe, err := scanRecipe(executor.QueryRowContext(ctx, r.dialect.Rebind(query), id, bakeryID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting recipe by ID %s: %v", ErrDatabaseError, id, err)
	}
	if err := r.loadSections(ctx, executor, recipe); err != nil {
		return nil, err
	}
	return recipe, nil
}

func (r *recipeRepository) loadSections(ctx context.Context, executor SQLExecutor, recipe *models.Recipe) error {
	rows, err := executor.QueryContext(ctx,
		r.dialect.Rebind(`SELECT id, recipe_id, name, sort_order FROM recipe_sections WHERE recipe_id = $1 ORDER BY sort_order, id`),
		recipe.ID)
	if err != nil {
		return fmt.Errorf("%w: getting recipe sections: %v", ErrDatabaseError, err)
	}
	sections := []models.RecipeSection{}
	index := make(map[string]int)
	for rows.Next() {
		var s models.RecipeSection
		if err := rows.Scan(&s.ID, &s.RecipeID, &s.Name, &s.SortOrder); err != nil {
			rows.Close()
			return fmt.Errorf("%w: scanning recipe section: %v", ErrDatabaseError, err)
		}
		s.Lines = []models.RecipeSectionIngredient{}
		index[s.ID] = len(sections)
		sections = append(sections, s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("%w: iterating recipe sections: %v", ErrDatabaseError, err)
	}
	rows.Close()

	lineRows, err := executor.QueryContext(ctx, r.dialect.Rebind(`
	    SELECT l.id, l.section_id, l.ingredient_id, l.quantity, l.unit, l.preparation, l.sort_order
	    FROM recipe_section_ingredients l
	    JOIN recipe_sections s ON s.id = l.section_id
	    WHERE s.recipe_id = $1
	    ORDER BY l.sort_order, l.id`), recipe.ID)
	if err != nil {
		return fmt.Errorf("%w: getting recipe lines: %v", ErrDatabaseError, err)
	}
	defer lineRows.Close()
	for lineRows.Next() {
		var (
			l    models.RecipeSectionIngredient
			prep sql.NullString
		)
		if err := lineRows.Scan(&l.ID, &l.SectionID, &l.IngredientID, &l.Quantity, &l.Unit, &prep, &l.SortOrder); err != nil {
			return fmt.Errorf("%w: scanning recipe line: %v", ErrDatabaseError, err)
		}
		if prep.Valid {
			l.Preparation = &prep.String
		}
		if i, ok := index[l.SectionID]; ok {
			sections[i].Lines = append(sections[i].Lines, l)
		}
	}
	if err := lineRows.Err(); err != nil {
		return fmt.Errorf("%w: iterating recipe lines: %v", ErrDatabaseError, err)
	}
	for i := range sections {
		sort.SliceStable(sections[i].Lines, func(a, b int) bool {
			return sections[i].Lines[a].SortOrder < sections[i].Lines[b].SortOrder
		})
	}
	recipe.Sections = sections
	return nil
}

// List returns recipe headers without sections.
func (r *recipeRepository) List(ctx context.Context, executor SQLExecutor, bakeryID string) ([]models.Recipe, error) {
	query := `SELECT ` + recipeColumns + ` FROM recipes WHERE bakery_id = $1 ORDER BY name, id`
	rows, err := executor.QueryContext(ctx, r.dialect.Rebind(query), bakeryID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing recipes: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	recipes := []models.Recipe{}
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning recipe: %v", ErrDatabaseError, err)
		}
		recipes = append(recipes, *recipe)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating recipes: %v", ErrDatabaseError, err)
	}
	return recipes, nil
}

// Update rewrites the header and replaces all sections and lines.
func (r *recipeRepository) Update(ctx context.Context, executor SQLExecutor, recipe *models.Recipe) error {
	query := `UPDATE recipes SET name = $1, description = $2, yield_qty = $3, yield_unit = $4, total_cost = $5, updated_at = $6
	          WHERE id = $7 AND bakery_id = $8`
	recipe.UpdatedAt = now()
	res, err := executor.ExecContext(ctx, r.dialect.Rebind(query),
		recipe.Name, recipe.Description, recipe.YieldQty, recipe.YieldUnit, recipe.TotalCost, recipe.UpdatedAt,
		recipe.ID, recipe.BakeryID)
	if err != nil {
		return fmt.Errorf("%w: updating recipe %s: %v", ErrDatabaseError, recipe.ID, err)
	}
	if err := expectOneRow(res); err != nil {
		return err
	}
	if err := r.deleteSections(ctx, executor, recipe.ID); err != nil {
		return err
	}
	for si := range recipe.Sections {
		recipe.Sections[si].ID = ""
		for li := range recipe.Sections[si].Lines {
			recipe.Sections[si].Lines[li].ID = ""
		}
	}
	return r.insertSections(ctx, executor, recipe)
}

func (r *recipeRepository) deleteSections(ctx context.Context, executor SQLExecutor, recipeID string) error {
	_, err := executor.ExecContext(ctx, r.dialect.Rebind(`
	    DELETE FROM recipe_section_ingredients
	    WHERE section_id IN (SELECT id FROM recipe_sections WHERE recipe_id = $1)`), recipeID)
	if err != nil {
		return fmt.Errorf("%w: deleting recipe lines: %v", ErrDatabaseError, err)
	}
	if _, err := executor.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM recipe_sections WHERE recipe_id = $1`), recipeID); err != nil {
		return fmt.Errorf("%w: deleting recipe sections: %v", ErrDatabaseError, err)
	}
	return nil
}

func (r *recipeRepository) UpdateTotalCost(ctx context.Context, executor SQLExecutor, bakeryID, id string, cost *decimal.Decimal) error {
	res, err := executor.ExecContext(ctx,
		r.dialect.Rebind(`UPDATE recipes SET total_cost = $1, updated_at = $2 WHERE id = $3 AND bakery_id = $4`),
		cost, now(), id, bakeryID)
	if err != nil {
		return fmt.Errorf("%w: updating total cost of recipe %s: %v", ErrDatabaseError, id, err)
	}
	return expectOneRow(res)
}

func (r *recipeRepository) Delete(ctx context.Context, executor SQLExecutor, bakeryID, id string) error {
	var exists int
	err := executor.QueryRowContext(ctx, r.dialect.Rebind(`SELECT COUNT(*) FROM recipes WHERE id = $1 AND bakery_id = $2`), id, bakeryID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%w: checking recipe %s: %v", ErrDatabaseError, id, err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	if err := r.deleteSections(ctx, executor, id); err != nil {
		return err
	}
	if _, err := executor.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM recipes WHERE id = $1 AND bakery_id = $2`), id, bakeryID); err != nil {
		if errors.Is(constraintError(err), ErrForeignKey) {
			return fmt.Errorf("%w: recipe %s is used by a production sheet", ErrForeignKey, id)
		}
		return fmt.Errorf("%w: deleting recipe %s: %v", ErrDatabaseError, id, err)
	}
	return nil
}

func (r *recipeRepository) ListIDsByIngredient(ctx context.Context, executor SQLExecutor, bakeryID, ingredientID string) ([]string, error) {
	rows, err := executor.QueryContext(ctx, r.dialect.Rebind(`
	    SELECT DISTINCT r.id
	    FROM recipes r
	    JOIN recipe_sections s ON s.recipe_id = r.id
	    JOIN recipe_section_ingredients l ON l.section_id = s.id
	    WHERE r.bakery_id = $1 AND l.ingredient_id = $2
	    ORDER BY r.id`), bakeryID, ingredientID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing recipes using ingredient %s: %v", ErrDatabaseError, ingredientID, err)
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scanning recipe id: %v", ErrDatabaseError, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating recipe ids: %v", ErrDatabaseError, err)
	}
	return ids, nil
}

func (r *recipeRepository) CountProductionReferences(ctx context.Context, executor SQLExecutor, id string) (int, error) {
	var n int
	err := executor.QueryRowContext(ctx, r.dialect.Rebind(`SELECT COUNT(*) FROM production_sheet_recipes WHERE recipe_id = $1`), id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: counting production references of recipe %s: %v", ErrDatabaseError, id, err)
	}
	return n, nil
}
