package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"bakery_ops_backend/internal/database"
	"bakery_ops_backend/internal/models"
)

// TransactionRepository is the append-only inventory ledger: rows are
// inserted and read, never updated or deleted.
type TransactionRepository interface {
	Create(ctx context.Context, executor SQLExecutor, txn *models.InventoryTransaction) error
	CreateLotConsumption(ctx context.Context, executor SQLExecutor, consumption *models.LotConsumption) error
	List(ctx context.Context, executor SQLExecutor, bakeryID string, filters models.TransactionFilters) ([]models.InventoryTransaction, int, error)
	ListConsumptions(ctx context.Context, executor SQLExecutor, transactionIDs []string) (map[string][]models.LotConsumption, error)
}

type transactionRepository struct {
	dialect database.Dialect
}

// NewTransactionRepository creates a new instance of TransactionRepository.
func NewTransactionRepository(dialect database.Dialect) TransactionRepository {
	return &transactionRepository{dialect: dialect}
}

func (r *transactionRepository) Create(ctx context.Context, executor SQLExecutor, txn *models.InventoryTransaction) error {
	query := `INSERT INTO inventory_transactions
	          (id, bakery_id, ingredient_id, lot_id, type, quantity, unit, production_sheet_id, notes, actor_id, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = now()
	}
	_, err := executor.ExecContext(ctx, r.dialect.Rebind(query),
		txn.ID, txn.BakeryID, txn.IngredientID, txn.LotID, string(txn.Type), txn.Quantity, txn.Unit,
		txn.ProductionSheetID, txn.Notes, txn.ActorID, txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: creating inventory transaction: %v", ErrDatabaseError, err)
	}
	return nil
}

func (r *transactionRepository) CreateLotConsumption(ctx context.Context, executor SQLExecutor, consumption *models.LotConsumption) error {
	query := `INSERT INTO lot_consumptions (id, transaction_id, lot_id, quantity, cost_per_unit, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	if consumption.CreatedAt.IsZero() {
		consumption.CreatedAt = now()
	}
	_, err := executor.ExecContext(ctx, r.dialect.Rebind(query),
		consumption.ID, consumption.TransactionID, consumption.LotID, consumption.Quantity,
		consumption.CostPerUnit, consumption.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: creating lot consumption: %v", ErrDatabaseError, err)
	}
	return nil
}

func (r *transactionRepository) List(ctx context.Context, executor SQLExecutor, bakeryID string, filters models.TransactionFilters) ([]models.InventoryTransaction, int, error) {
	transactions := []models.InventoryTransaction{}
	totalCount := 0

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT
	    t.id, t.bakery_id, t.ingredient_id, t.lot_id, t.type, t.quantity, t.unit,
	    t.production_sheet_id, t.notes, t.actor_id, t.created_at,
	    i.name AS ingredient_name,
	    COUNT(*) OVER() AS total_count
	  FROM inventory_transactions t
	  JOIN ingredients i ON t.ingredient_id = i.id`)

	conditions := []string{"t.bakery_id = $1"}
	args := []interface{}{bakeryID}
	argCount := 2

	if filters.IngredientID != "" {
		conditions = append(conditions, fmt.Sprintf("t.ingredient_id = $%d", argCount))
		args = append(args, filters.IngredientID)
		argCount++
	}
	if filters.LotID != "" {
		conditions = append(conditions, fmt.Sprintf("t.lot_id = $%d", argCount))
		args = append(args, filters.LotID)
		argCount++
	}
	if filters.ProductionSheetID != "" {
		conditions = append(conditions, fmt.Sprintf("t.production_sheet_id = $%d", argCount))
		args = append(args, filters.ProductionSheetID)
		argCount++
	}
	if filters.Type != "" {
		conditions = append(conditions, fmt.Sprintf("t.type = $%d", argCount))
		args = append(args, string(filters.Type))
		argCount++
	}
	if filters.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("t.created_at >= $%d", argCount))
		args = append(args, normalizeTime(*filters.DateFrom))
		argCount++
	}
	if filters.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("t.created_at <= $%d", argCount))
		args = append(args, normalizeTime(*filters.DateTo))
		argCount++
	}

	queryBuilder.WriteString(" WHERE ")
	queryBuilder.WriteString(strings.Join(conditions, " AND "))

	page, pageSize := filters.Page, filters.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	queryBuilder.WriteString(" ORDER BY t.created_at DESC, t.id DESC")
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1))
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := executor.QueryContext(ctx, r.dialect.Rebind(queryBuilder.String()), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: getting inventory transactions: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			txn     models.InventoryTransaction
			txnType string
			lotID   sql.NullString
			sheetID sql.NullString
			notes   sql.NullString
		)
		if err := rows.Scan(
			&txn.ID, &txn.BakeryID, &txn.IngredientID, &lotID, &txnType, &txn.Quantity, &txn.Unit,
			&sheetID, &notes, &txn.ActorID, &txn.CreatedAt,
			&txn.IngredientName,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("%w: scanning inventory transaction: %v", ErrDatabaseError, err)
		}
		txn.Type = models.TransactionType(txnType)
		if lotID.Valid {
			txn.LotID = &lotID.String
		}
		if sheetID.Valid {
			txn.ProductionSheetID = &sheetID.String
		}
		if notes.Valid {
			txn.Notes = &notes.String
		}
		transactions = append(transactions, txn)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterating inventory transactions: %v", ErrDatabaseError, err)
	}

	return transactions, totalCount, nil
}

func (r *transactionRepository) ListConsumptions(ctx context.Context, executor SQLExecutor, transactionIDs []string) (map[string][]models.LotConsumption, error) {
	result := make(map[string][]models.LotConsumption, len(transactionIDs))
	if len(transactionIDs) == 0 {
		return result, nil
	}
	query := `SELECT id, transaction_id, lot_id, quantity, cost_per_unit, created_at
	          FROM lot_consumptions
	          WHERE transaction_id IN (` + database.Placeholders(1, len(transactionIDs)) + `)
	          ORDER BY transaction_id, id`
	args := make([]interface{}, len(transactionIDs))
	for i, id := range transactionIDs {
		args[i] = id
	}

	rows, err := executor.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: getting lot consumptions: %v", ErrDatabaseError, err)
	}
	defer rows.Close()
	for rows.Next() {
		var c models.LotConsumption
		if err := rows.Scan(&c.ID, &c.TransactionID, &c.LotID, &c.Quantity, &c.CostPerUnit, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning lot consumption: %v", ErrDatabaseError, err)
		}
		result[c.TransactionID] = append(result[c.TransactionID], c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating lot consumptions: %v", ErrDatabaseError, err)
	}
	return result, nil
}
