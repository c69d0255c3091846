package models

import "github.com/shopspring/decimal"

// Stock status labels used by reports.
const (
	StockStatusInStock    = "In Stock"
	StockStatusLowStock   = "Low Stock"
	StockStatusOutOfStock = "Out of Stock"
)

// StockStatus classifies a quantity against an optional threshold.
func StockStatus(qty decimal.Decimal, threshold *decimal.Decimal) string {
	switch {
	case !qty.IsPositive():
		return StockStatusOutOfStock
	case threshold != nil && qty.LessThanOrEqual(*threshold):
		return StockStatusLowStock
	default:
		return StockStatusInStock
	}
}

// StockLevel summarises the stock of one ingredient.
type StockLevel struct {
	IngredientID      string           `json:"ingredient_id"`
	IngredientName    string           `json:"ingredient_name"`
	Unit              string           `json:"unit"`
	CurrentQty        decimal.Decimal  `json:"current_qty"`
	LotQty            decimal.Decimal  `json:"lot_qty"`
	RemainingValue    decimal.Decimal  `json:"remaining_value"`
	LowStockThreshold *decimal.Decimal `json:"low_stock_threshold,omitempty"`
	Status            string           `json:"status"`
	ActiveLots        int              `json:"active_lots"`
}

// InventoryReportItem represents one row of the inventory report.
type InventoryReportItem struct {
	StockLevel
	ExpiredLots   int             `json:"expired_lots"`
	ExpiredQty    decimal.Decimal `json:"expired_qty"`
	ReferenceCost decimal.Decimal `json:"reference_cost_per_unit"`
}

// InventoryReport is the report body with bakery-wide totals.
type InventoryReport struct {
	Items       []InventoryReportItem `json:"items"`
	TotalValue  decimal.Decimal       `json:"total_value"`
	LowStock    int                   `json:"low_stock_count"`
	OutOfStock  int                   `json:"out_of_stock_count"`
	ExpiredLots int                   `json:"expired_lot_count"`
}
