package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bakery_ops_backend/internal/database"
	"bakery_ops_backend/internal/models"
	"bakery_ops_backend/pkg/utils"
)

// UnitConversionRepository stores the global conversion table.
type UnitConversionRepository interface {
	List(ctx context.Context, executor SQLExecutor) ([]models.UnitConversion, error)
	Upsert(ctx context.Context, executor SQLExecutor, conv *models.UnitConversion) error
	Count(ctx context.Context, executor SQLExecutor) (int, error)
}

type unitConversionRepository struct {
	dialect database.Dialect
}

// NewUnitConversionRepository creates a new instance of UnitConversionRepository.
func NewUnitConversionRepository(dialect database.Dialect) UnitConversionRepository {
	return &unitConversionRepository{dialect: dialect}
}

func (r *unitConversionRepository) List(ctx context.Context, executor SQLExecutor) ([]models.UnitConversion, error) {
	query := `SELECT id, from_unit, to_unit, factor, category, created_at, updated_at
	          FROM unit_conversions
	          ORDER BY category, from_unit, to_unit`
	rows, err := executor.QueryContext(ctx, r.dialect.Rebind(query))
	if err != nil {
		return nil, fmt.Errorf("%w: listing unit conversions: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	conversions := []models.UnitConversion{}
	for rows.Next() {
		var c models.UnitConversion
		if err := rows.Scan(&c.ID, &c.FromUnit, &c.ToUnit, &c.Factor, &c.Category, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning unit conversion: %v", ErrDatabaseError, err)
		}
		conversions = append(conversions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating unit conversions: %v", ErrDatabaseError, err)
	}
	return conversions, nil
}

// Upsert updates the factor and category of an existing pair or inserts it.
func (r *unitConversionRepository) Upsert(ctx context.Context, executor SQLExecutor, conv *models.UnitConversion) error {
	ts := now()
	var existingID string
	err := executor.QueryRowContext(ctx,
		r.dialect.Rebind(`SELECT id FROM unit_conversions WHERE from_unit = $1 AND to_unit = $2`),
		conv.FromUnit, conv.ToUnit,
	).Scan(&existingID)

	switch {
	case err == nil:
		_, err = executor.ExecContext(ctx,
			r.dialect.Rebind(`UPDATE unit_conversions SET factor = $1, category = $2, updated_at = $3 WHERE id = $4`),
			conv.Factor, conv.Category, ts, existingID)
		if err != nil {
			return fmt.Errorf("%w: updating unit conversion %s->%s: %v", ErrDatabaseError, conv.FromUnit, conv.ToUnit, err)
		}
		conv.ID = existingID
		conv.UpdatedAt = ts
		return nil
	case errors.Is(err, sql.ErrNoRows):
	default:
		return fmt.Errorf("%w: looking up unit conversion: %v", ErrDatabaseError, err)
	}

	conv.ID = utils.NewID()
	conv.CreatedAt, conv.UpdatedAt = ts, ts
	_, err = executor.ExecContext(ctx,
		r.dialect.Rebind(`INSERT INTO unit_conversions (id, from_unit, to_unit, factor, category, created_at, updated_at)
		                  VALUES ($1, $2, $3, $4, $5, $6, $7)`),
		conv.ID, conv.FromUnit, conv.ToUnit, conv.Factor, conv.Category, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		if ce := constraintError(err); errors.Is(ce, ErrDuplicateKey) {
			return fmt.Errorf("%w: unit conversion %s->%s already exists", ErrDuplicateKey, conv.FromUnit, conv.ToUnit)
		}
		return fmt.Errorf("%w: creating unit conversion: %v", ErrDatabaseError, err)
	}
	return nil
}

func (r *unitConversionRepository) Count(ctx context.Context, executor SQLExecutor) (int, error) {
	var n int
	if err := executor.QueryRowContext(ctx, `SELECT COUNT(*) FROM unit_conversions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: counting unit conversions: %v", ErrDatabaseError, err)
	}
	return n, nil
}

// SeedUnitConversions inserts defaults when the table is empty and returns
// how many rows were written.
func SeedUnitConversions(ctx context.Context, executor SQLExecutor, repo UnitConversionRepository, defaults []models.UnitConversion) (int, error) {
	n, err := repo.Count(ctx, executor)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	for i := range defaults {
		c := defaults[i]
		if err := repo.Upsert(ctx, executor, &c); err != nil {
			return i, err
		}
	}
	return len(defaults), nil
}
