package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"bakery_ops_backend/internal/database"
	"bakery_ops_backend/internal/models"
	"bakery_ops_backend/pkg/utils"
)

// ProductionSheetRepository persists production runs and their recipe lists.
type ProductionSheetRepository interface {
	Create(ctx context.Context, executor SQLExecutor, sheet *models.ProductionSheet) error
	GetByID(ctx context.Context, executor SQLExecutor, bakeryID, id string, forUpdate bool) (*models.ProductionSheet, error)
	List(ctx context.Context, executor SQLExecutor, bakeryID string, completed *bool) ([]models.ProductionSheet, error)
	Update(ctx context.Context, executor SQLExecutor, sheet *models.ProductionSheet) error
	// MarkCompleted flips a pending sheet to completed and stores the
	// snapshot. It returns ErrNotFound if the sheet is missing or already
	// completed.
	MarkCompleted(ctx context.Context, executor SQLExecutor, sheet *models.ProductionSheet) error
	Delete(ctx context.Context, executor SQLExecutor, bakeryID, id string) error
}

type productionSheetRepository struct {
	dialect database.Dialect
}

// NewProductionSheetRepository creates a new instance of ProductionSheetRepository.
func NewProductionSheetRepository(dialect database.Dialect) ProductionSheetRepository {
	return &productionSheetRepository{dialect: dialect}
}

const productionSheetColumns = `id, bakery_id, name, scheduled_for, notes, completed, completed_at, completed_by,
	snapshot_data, created_by, created_at, updated_at`

func scanProductionSheet(s scanner) (*models.ProductionSheet, error) {
	var (
		sheet        models.ProductionSheet
		scheduledFor sql.NullTime
		notes        sql.NullString
		completedAt  sql.NullTime
		completedBy  sql.NullString
		snapshot     sql.NullString
	)
	err := s.Scan(&sheet.ID, &sheet.BakeryID, &sheet.Name, &scheduledFor, &notes, &sheet.Completed, &completedAt,
		&completedBy, &snapshot, &sheet.CreatedBy, &sheet.CreatedAt, &sheet.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if scheduledFor.Valid {
		sheet.ScheduledFor = &scheduledFor.Time
	}
	if notes.Valid {
		sheet.Notes = &notes.String
	}
	if completedAt.Valid {
		sheet.CompletedAt = &completedAt.Time
	}
	if completedBy.Valid {
		sheet.CompletedBy = &completedBy.String
	}
	if snapshot.Valid && snapshot.String != "" {
		var snap models.ProductionSnapshot
		if err := json.Unmarshal([]byte(snapshot.String), &snap); err != nil {
			return nil, fmt.Errorf("decoding snapshot of production sheet %s: %w", sheet.ID, err)
		}
		sheet.SnapshotData = &snap
	}
	return &sheet, nil
}

func (r *productionSheetRepository) Create(ctx context.Context, executor SQLExecutor, sheet *models.ProductionSheet) error {
	query := `INSERT INTO production_sheets (` + productionSheetColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	ts := now()
	sheet.CreatedAt, sheet.UpdatedAt = ts, ts
	sheet.ScheduledFor = normalizeTimePtr(sheet.ScheduledFor)
	_, err := executor.ExecContext(ctx, r.dialect.Rebind(query),
		sheet.ID, sheet.BakeryID, sheet.Name, sheet.ScheduledFor, sheet.Notes, false, nil, nil, nil,
		sheet.CreatedBy, sheet.CreatedAt, sheet.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: creating production sheet: %v", ErrDatabaseError, err)
	}
	return r.insertRecipes(ctx, executor, sheet)
}

func (r *productionSheetRepository) insertRecipes(ctx context.Context, executor SQLExecutor, sheet *models.ProductionSheet) error {
	query := r.dialect.Rebind(`INSERT INTO production_sheet_recipes (id, sheet_id, recipe_id, scale, sort_order)
	                           VALUES ($1, $2, $3, $4, $5)`)
	for i := range sheet.Recipes {
		pr := &sheet.Recipes[i]
		pr.ID = utils.NewID()
		pr.SheetID = sheet.ID
		if _, err := executor.ExecContext(ctx, query, pr.ID, sheet.ID, pr.RecipeID, pr.Scale, pr.SortOrder); err != nil {
			if errors.Is(constraintError(err), ErrForeignKey) {
				return fmt.Errorf("%w: recipe %s does not exist", ErrForeignKey, pr.RecipeID)
			}
			return fmt.Errorf("%w: adding recipe to production sheet: %v", ErrDatabaseError, err)
		}
	}
	return nil
}

func (r *productionSheetRepository) GetByID(ctx context.Context, executor SQLExecutor, bakeryID, id string, forUpdate bool) (*models.ProductionSheet, error) {
	query := `SELECT ` + productionSheetColumns + ` FROM production_sheets WHERE id = $1 AND bakery_id = $2`
	if forUpdate {
		query += r.dialect.ForUpdate()
	}
	sheet, err := scanProductionSheet(executor.QueryRowContext(ctx, r.dialect.Rebind(query), id, bakeryID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting production sheet by ID %s: %v", ErrDatabaseError, id, err)
	}
	if err := r.loadRecipes(ctx, executor, sheet); err != nil {
		return nil, err
	}
	return sheet, nil
}

func (r *productionSheetRepository) loadRecipes(ctx context.Context, executor SQLExecutor, sheet *models.ProductionSheet) error {
	rows, err := executor.QueryContext(ctx, r.dialect.Rebind(`
	    SELECT pr.id, pr.sheet_id, pr.recipe_id, rc.name, pr.scale, pr.sort_order
	    FROM production_sheet_recipes pr
	    JOIN recipes rc ON rc.id = pr.recipe_id
	    WHERE pr.sheet_id = $1
	    ORDER BY pr.sort_order, pr.id`), sheet.ID)
	if err != nil {
		return fmt.Errorf("%w: getting production sheet recipes: %v", ErrDatabaseError, err)
	}
	defer rows.Close()
	sheet.Recipes = []models.ProductionSheetRecipe{}
	for rows.Next() {
		var pr models.ProductionSheetRecipe
		if err := rows.Scan(&pr.ID, &pr.SheetID, &pr.RecipeID, &pr.RecipeName, &pr.Scale, &pr.SortOrder); err != nil {
			return fmt.Errorf("%w: scanning production sheet recipe: %v", ErrDatabaseError, err)
		}
		sheet.Recipes = append(sheet.Recipes, pr)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: iterating production sheet recipes: %v", ErrDatabaseError, err)
	}
	return nil
}

// List returns sheet headers, newest first. completed filters by state when set.
func (r *productionSheetRepository) List(ctx context.Context, executor SQLExecutor, bakeryID string, completed *bool) ([]models.ProductionSheet, error) {
	query := `SELECT ` + productionSheetColumns + ` FROM production_sheets WHERE bakery_id = $1`
	args := []interface{}{bakeryID}
	if completed != nil {
		query += ` AND completed = $2`
		args = append(args, *completed)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := executor.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: listing production sheets: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	sheets := []models.ProductionSheet{}
	for rows.Next() {
		sheet, err := scanProductionSheet(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning production sheet: %v", ErrDatabaseError, err)
		}
		sheets = append(sheets, *sheet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating production sheets: %v", ErrDatabaseError, err)
	}
	return sheets, nil
}

// Update rewrites a pending sheet's header and recipe list.
func (r *productionSheetRepository) Update(ctx context.Context, executor SQLExecutor, sheet *models.ProductionSheet) error {
	query := `UPDATE production_sheets SET name = $1, scheduled_for = $2, notes = $3, updated_at = $4
	          WHERE id = $5 AND bakery_id = $6 AND completed = $7`
	sheet.UpdatedAt = now()
	sheet.ScheduledFor = normalizeTimePtr(sheet.ScheduledFor)
	res, err := executor.ExecContext(ctx, r.dialect.Rebind(query),
		sheet.Name, sheet.ScheduledFor, sheet.Notes, sheet.UpdatedAt, sheet.ID, sheet.BakeryID, false)
	if err != nil {
		return fmt.Errorf("%w: updating production sheet %s: %v", ErrDatabaseError, sheet.ID, err)
	}
	if err := expectOneRow(res); err != nil {
		return err
	}
	if _, err := executor.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM production_sheet_recipes WHERE sheet_id = $1`), sheet.ID); err != nil {
		return fmt.Errorf("%w: clearing production sheet recipes: %v", ErrDatabaseError, err)
	}
	return r.insertRecipes(ctx, executor, sheet)
}

func (r *productionSheetRepository) MarkCompleted(ctx context.Context, executor SQLExecutor, sheet *models.ProductionSheet) error {
	payload, err := json.Marshal(sheet.SnapshotData)
	if err != nil {
		return fmt.Errorf("encoding snapshot of production sheet %s: %w", sheet.ID, err)
	}
	query := `UPDATE production_sheets
	          SET completed = $1, completed_at = $2, completed_by = $3, snapshot_data = $4, updated_at = $5
	          WHERE id = $6 AND bakery_id = $7 AND completed = $8`
	sheet.UpdatedAt = now()
	sheet.CompletedAt = normalizeTimePtr(sheet.CompletedAt)
	res, err := executor.ExecContext(ctx, r.dialect.Rebind(query),
		true, sheet.CompletedAt, sheet.CompletedBy, string(payload), sheet.UpdatedAt, sheet.ID, sheet.BakeryID, false)
	if err != nil {
		return fmt.Errorf("%w: completing production sheet %s: %v", ErrDatabaseError, sheet.ID, err)
	}
	if err := expectOneRow(res); err != nil {
		return err
	}
	sheet.Completed = true
	return nil
}

// Delete removes a pending sheet. Completed sheets are kept.
func (r *productionSheetRepository) Delete(ctx context.Context, executor SQLExecutor, bakeryID, id string) error {
	var count int
	err := executor.QueryRowContext(ctx,
		r.dialect.Rebind(`SELECT COUNT(*) FROM production_sheets WHERE id = $1 AND bakery_id = $2 AND completed = $3`),
		id, bakeryID, false).Scan(&count)
	if err != nil {
		return fmt.Errorf("%w: checking production sheet %s: %v", ErrDatabaseError, id, err)
	}
	if count == 0 {
		return ErrNotFound
	}
	if _, err := executor.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM production_sheet_recipes WHERE sheet_id = $1`), id); err != nil {
		return fmt.Errorf("%w: deleting production sheet recipes: %v", ErrDatabaseError, err)
	}
	if _, err := executor.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM production_sheets WHERE id = $1 AND bakery_id = $2`), id, bakeryID); err != nil {
		return fmt.Errorf("%w: deleting production sheet %s: %v", ErrDatabaseError, id, err)
	}
	return nil
}
