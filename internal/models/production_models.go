package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductionSheet is a planned production run. It is PENDING until Completed
// is set, after which SnapshotData is the permanent record of the run.
type ProductionSheet struct {
	ID           string                  `json:"id" db:"id"`
	BakeryID     string                  `json:"bakery_id" db:"bakery_id"`
	Name         string                  `json:"name" db:"name"`
	ScheduledFor *time.Time              `json:"scheduled_for,omitempty" db:"scheduled_for"`
	Notes        *string                 `json:"notes,omitempty" db:"notes"`
	Completed    bool                    `json:"completed" db:"completed"`
	CompletedAt  *time.Time              `json:"completed_at,omitempty" db:"completed_at"`
	CompletedBy  *string                 `json:"completed_by,omitempty" db:"completed_by"`
	SnapshotData *ProductionSnapshot     `json:"snapshot_data,omitempty" db:"snapshot_data"`
	CreatedBy    string                  `json:"created_by" db:"created_by"`
	Recipes      []ProductionSheetRecipe `json:"recipes"`
	CreatedAt    time.Time               `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at" db:"updated_at"`
}

// Status returns "COMPLETED" or "PENDING".
func (p ProductionSheet) Status() string {
	if p.Completed {
		return "COMPLETED"
	}
	return "PENDING"
}

// ProductionSheetRecipe is one recipe of a run with its own scale factor.
type ProductionSheetRecipe struct {
	ID         string          `json:"id" db:"id"`
	SheetID    string          `json:"sheet_id" db:"sheet_id"`
	RecipeID   string          `json:"recipe_id" db:"recipe_id"`
	RecipeName string          `json:"recipe_name,omitempty"`
	Scale      decimal.Decimal `json:"scale" db:"scale"`
	SortOrder  int             `json:"order" db:"sort_order"`
}

// SnapshotRecipe is the frozen per-recipe summary stored in a snapshot.
type SnapshotRecipe struct {
	RecipeID           string          `json:"recipe_id"`
	Name               string          `json:"name"`
	Scale              decimal.Decimal `json:"scale"`
	YieldQty           decimal.Decimal `json:"yield_qty"`
	YieldUnit          string          `json:"yield_unit"`
	ScaledYieldQty     decimal.Decimal `json:"scaled_yield_qty"`
	EstimatedCost      decimal.Decimal `json:"estimated_cost"`
	UnconvertibleLines []ScaledLine    `json:"unconvertible_lines,omitempty"`
}

// ProductionSnapshot freezes the figures of a completed run.
// TotalCost is the estimate at current ingredient costs; ConsumedCost is what
// the consumed lots actually cost under FIFO.
type ProductionSnapshot struct {
	CompletedAt  time.Time              `json:"completed_at"`
	CompletedBy  string                 `json:"completed_by"`
	Recipes      []SnapshotRecipe       `json:"recipes"`
	Ingredients  []AggregatedIngredient `json:"ingredients"`
	TotalCost    decimal.Decimal        `json:"total_cost"`
	ConsumedCost decimal.Decimal        `json:"consumed_cost"`
}

// ProductionPreview is what a sheet would consume (pending) or did consume
// (completed, taken from the snapshot).
type ProductionPreview struct {
	SheetID     string                 `json:"sheet_id"`
	Status      string                 `json:"status"`
	Recipes     []SnapshotRecipe       `json:"recipes"`
	Ingredients []AggregatedIngredient `json:"ingredients"`
	TotalCost   decimal.Decimal        `json:"total_cost"`
	Shortages   []StockShortage        `json:"shortages,omitempty"`
	Snapshot    *ProductionSnapshot    `json:"snapshot,omitempty"`
}

// StockShortage describes an ingredient that cannot cover a requested quantity.
type StockShortage struct {
	IngredientID   string          `json:"ingredient_id"`
	IngredientName string          `json:"ingredient_name"`
	Requested      decimal.Decimal `json:"requested"`
	Available      decimal.Decimal `json:"available"`
	Shortfall      decimal.Decimal `json:"shortfall"`
	Unit           string          `json:"unit"`
}
