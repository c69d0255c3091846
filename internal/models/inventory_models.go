package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ingredient is a stock-keeping ingredient owned by one bakery.
// CurrentQty mirrors the sum of the remaining quantity of its lots and is
// only ever changed by ledger operations.
type Ingredient struct {
	ID                string           `json:"id" db:"id"`
	BakeryID          string           `json:"bakery_id" db:"bakery_id"`
	Name              string           `json:"name" db:"name"`
	Unit              string           `json:"unit" db:"unit"`
	CostPerUnit       decimal.Decimal  `json:"cost_per_unit" db:"cost_per_unit"`
	CurrentQty        decimal.Decimal  `json:"current_qty" db:"current_qty"`
	LowStockThreshold *decimal.Decimal `json:"low_stock_threshold,omitempty" db:"low_stock_threshold"`
	Notes             *string          `json:"notes,omitempty" db:"notes"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at" db:"updated_at"`
}

// InventoryLot represents one purchase of an ingredient.
// StockQty and RemainingQty are expressed in the ingredient's stock unit;
// PurchaseQty/PurchaseUnit keep the receipt as it was entered.
type InventoryLot struct {
	ID                  string          `json:"id" db:"id"`
	BakeryID            string          `json:"bakery_id" db:"bakery_id"`
	IngredientID        string          `json:"ingredient_id" db:"ingredient_id"`
	PurchaseQty         decimal.Decimal `json:"purchase_qty" db:"purchase_qty"`
	PurchaseUnit        string          `json:"purchase_unit" db:"purchase_unit"`
	StockQty            decimal.Decimal `json:"stock_qty" db:"stock_qty"`
	RemainingQty        decimal.Decimal `json:"remaining_qty" db:"remaining_qty"`
	CostPerUnit         decimal.Decimal `json:"cost_per_unit" db:"cost_per_unit"`
	PurchaseCostPerUnit decimal.Decimal `json:"purchase_cost_per_unit" db:"purchase_cost_per_unit"`
	PurchasedAt         time.Time       `json:"purchased_at" db:"purchased_at"`
	ExpiresAt           *time.Time      `json:"expires_at,omitempty" db:"expires_at"`
	VendorID            *string         `json:"vendor_id,omitempty" db:"vendor_id"`
	Notes               *string         `json:"notes,omitempty" db:"notes"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}

// IsDepleted reports whether nothing is left in the lot.
func (l InventoryLot) IsDepleted() bool {
	return !l.RemainingQty.IsPositive()
}

// IsExpired reports whether the lot has an expiry date at or before now.
func (l InventoryLot) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}

// Value is the remaining quantity priced at the lot's own cost.
func (l InventoryLot) Value() decimal.Decimal {
	return l.RemainingQty.Mul(l.CostPerUnit)
}

// TransactionType enumerates the ledger entry kinds.
type TransactionType string

const (
	TransactionReceive TransactionType = "RECEIVE"
	TransactionUse     TransactionType = "USE"
	TransactionAdjust  TransactionType = "ADJUST"
	TransactionWaste   TransactionType = "WASTE"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionReceive, TransactionUse, TransactionAdjust, TransactionWaste:
		return true
	}
	return false
}

// InventoryTransaction is an append-only ledger entry. Quantity is signed and
// in the ingredient's stock unit: receipts are positive, use and waste negative.
type InventoryTransaction struct {
	ID                string           `json:"id" db:"id"`
	BakeryID          string           `json:"bakery_id" db:"bakery_id"`
	IngredientID      string           `json:"ingredient_id" db:"ingredient_id"`
	LotID             *string          `json:"lot_id,omitempty" db:"lot_id"`
	Type              TransactionType  `json:"type" db:"type"`
	Quantity          decimal.Decimal  `json:"quantity" db:"quantity"`
	Unit              string           `json:"unit" db:"unit"`
	ProductionSheetID *string          `json:"production_sheet_id,omitempty" db:"production_sheet_id"`
	Notes             *string          `json:"notes,omitempty" db:"notes"`
	ActorID           string           `json:"actor_id" db:"actor_id"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
	IngredientName    string           `json:"ingredient_name,omitempty"` // joined for listings
	Consumptions      []LotConsumption `json:"consumptions,omitempty"`
}

// LotConsumption is the per-lot detail of a USE or WASTE transaction.
type LotConsumption struct {
	ID            string          `json:"id" db:"id"`
	TransactionID string          `json:"transaction_id" db:"transaction_id"`
	LotID         string          `json:"lot_id" db:"lot_id"`
	Quantity      decimal.Decimal `json:"quantity" db:"quantity"`
	CostPerUnit   decimal.Decimal `json:"cost_per_unit" db:"cost_per_unit"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// Cost is the FIFO cost of this slice of the consumption.
func (c LotConsumption) Cost() decimal.Decimal {
	return c.Quantity.Mul(c.CostPerUnit)
}

// TransactionFilters holds filter criteria for listing ledger entries.
type TransactionFilters struct {
	IngredientID      string
	LotID             string
	ProductionSheetID string
	Type              TransactionType
	DateFrom          *time.Time
	DateTo            *time.Time
	Page              int
	PageSize          int
}
