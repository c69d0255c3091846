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
)

// LotRepository persists inventory lots. Lots are never deleted.
type LotRepository interface {
	Create(ctx context.Context, executor SQLExecutor, lot *models.InventoryLot) error
	GetByID(ctx context.Context, executor SQLExecutor, bakeryID, id string, forUpdate bool) (*models.InventoryLot, error)
	// ListByIngredient returns lots in FIFO order. activeOnly drops depleted lots.
	ListByIngredient(ctx context.Context, executor SQLExecutor, bakeryID, ingredientID string, activeOnly, forUpdate bool) ([]models.InventoryLot, error)
	ListByBakery(ctx context.Context, executor SQLExecutor, bakeryID string) ([]models.InventoryLot, error)
	UpdateRemaining(ctx context.Context, executor SQLExecutor, bakeryID, id string, remaining decimal.Decimal) error
}

type lotRepository struct {
	dialect database.Dialect
}

// NewLotRepository creates a new instance of LotRepository.
func NewLotRepository(dialect database.Dialect) LotRepository {
	return &lotRepository{dialect: dialect}
}

const lotColumns = `id, bakery_id, ingredient_id, purchase_qty, purchase_unit, stock_qty, remaining_qty, cost_per_unit,
	purchase_cost_per_unit, purchased_at, expires_at, vendor_id, notes, created_at, updated_at`

func scanLot(s scanner) (*models.InventoryLot, error) {
	var (
		lot       models.InventoryLot
		expiresAt sql.NullTime
		vendorID  sql.NullString
		notes     sql.NullString
	)
	err := s.Scan(&lot.ID, &lot.BakeryID, &lot.IngredientID, &lot.PurchaseQty, &lot.PurchaseUnit, &lot.StockQty,
		&lot.RemainingQty, &lot.CostPerUnit, &lot.PurchaseCostPerUnit, &lot.PurchasedAt, &expiresAt, &vendorID,
		&notes, &lot.CreatedAt, &lot.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		lot.ExpiresAt = &expiresAt.Time
	}
	if vendorID.Valid {
		lot.VendorID = &vendorID.String
	}
	if notes.Valid {
		lot.Notes = &notes.String
	}
	return &lot, nil
}

func fifoLess(a, b models.InventoryLot) bool {
	if !a.PurchasedAt.Equal(b.PurchasedAt) {
		return a.PurchasedAt.Before(b.PurchasedAt)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// SortFIFO orders lots by purchase time, then creation time, then id.
func SortFIFO(lots []models.InventoryLot) {
	sort.SliceStable(lots, func(i, j int) bool { return fifoLess(lots[i], lots[j]) })
}

// sortByIngredientFIFO groups lots by ingredient id, FIFO within a group.
func sortByIngredientFIFO(lots []models.InventoryLot) {
	sort.SliceStable(lots, func(i, j int) bool {
		if lots[i].IngredientID != lots[j].IngredientID {
			return lots[i].IngredientID < lots[j].IngredientID
		}
		return fifoLess(lots[i], lots[j])
	})
}

func (r *lotRepository) Create(ctx context.Context, executor SQLExecutor, lot *models.InventoryLot) error {
	query := `INSERT INTO inventory_lots (` + lotColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	ts := now()
	lot.CreatedAt, lot.UpdatedAt = ts, ts
	if lot.PurchasedAt.IsZero() {
		lot.PurchasedAt = ts
	} else {
		lot.PurchasedAt = normalizeTime(lot.PurchasedAt)
	}
	lot.ExpiresAt = normalizeTimePtr(lot.ExpiresAt)

	_, err := executor.ExecContext(ctx, r.dialect.Rebind(query),
		lot.ID, lot.BakeryID, lot.IngredientID, lot.PurchaseQty, lot.PurchaseUnit, lot.StockQty, lot.RemainingQty,
		lot.CostPerUnit, lot.PurchaseCostPerUnit, lot.PurchasedAt, lot.ExpiresAt, lot.VendorID, lot.Notes,
		lot.CreatedAt, lot.UpdatedAt)
	if err != nil {
		if errors.Is(constraintError(err), ErrForeignKey) {
			return fmt.Errorf("%w: ingredient %s does not exist", ErrForeignKey, lot.IngredientID)
		}
		return fmt.Errorf("%w: creating inventory lot: %v", ErrDatabaseError, err)
	}
	return nil
}

func (r *lotRepository) GetByID(ctx context.Context, executor SQLExecutor, bakeryID, id string, forUpdate bool) (*models.InventoryLot, error) {
	query := `SELECT ` + lotColumns + ` FROM inventory_lots WHERE id = $1 AND bakery_id = $2`
	if forUpdate {
		query += r.dialect.ForUpdate()
	}
	lot, err := scanLot(executor.QueryRowContext(ctx, r.dialect.Rebind(query), id, bakeryID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting inventory lot by ID %s: %v", ErrDatabaseError, id, err)
	}
	return lot, nil
}

func (r *lotRepository) ListByIngredient(ctx context.Context, executor SQLExecutor, bakeryID, ingredientID string, activeOnly, forUpdate bool) ([]models.InventoryLot, error) {
	query := `SELECT ` + lotColumns + ` FROM inventory_lots
	          WHERE ingredient_id = $1 AND bakery_id = $2
	          ORDER BY purchased_at, created_at, id`
	if forUpdate {
		query += r.dialect.ForUpdate()
	}
	lots, err := r.query(ctx, executor, query, ingredientID, bakeryID)
	if err != nil {
		return nil, err
	}
	// Decimal columns are TEXT on sqlite, so depletion and order are
	// decided here rather than in SQL.
	if activeOnly {
		active := lots[:0]
		for _, l := range lots {
			if !l.IsDepleted() {
				active = append(active, l)
			}
		}
		lots = active
	}
	SortFIFO(lots)
	return lots, nil
}

func (r *lotRepository) ListByBakery(ctx context.Context, executor SQLExecutor, bakeryID string) ([]models.InventoryLot, error) {
	query := `SELECT ` + lotColumns + ` FROM inventory_lots WHERE bakery_id = $1 ORDER BY ingredient_id, purchased_at, created_at, id`
	lots, err := r.query(ctx, executor, query, bakeryID)
	if err != nil {
		return nil, err
	}
	// Timestamps are TEXT on sqlite, so the SQL order is not trusted.
	sortByIngredientFIFO(lots)
	return lots, nil
}

func (r *lotRepository) query(ctx context.Context, executor SQLExecutor, query string, args ...interface{}) ([]models.InventoryLot, error) {
	rows, err := executor.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: listing inventory lots: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	lots := []models.InventoryLot{}
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning inventory lot: %v", ErrDatabaseError, err)
		}
		lots = append(lots, *lot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating inventory lots: %v", ErrDatabaseError, err)
	}
	return lots, nil
}

func (r *lotRepository) UpdateRemaining(ctx context.Context, executor SQLExecutor, bakeryID, id string, remaining decimal.Decimal) error {
	query := `UPDATE inventory_lots SET remaining_qty = $1, updated_at = $2 WHERE id = $3 AND bakery_id = $4`
	res, err := executor.ExecContext(ctx, r.dialect.Rebind(query), remaining, now(), id, bakeryID)
	if err != nil {
		return fmt.Errorf("%w: updating remaining quantity of lot %s: %v", ErrDatabaseError, id, err)
	}
	return expectOneRow(res)
}
