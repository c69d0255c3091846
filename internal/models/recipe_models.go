package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Recipe is a multi-section formula. TotalCost is a cache derived from the
// lines and current ingredient costs, nil until first computed.
type Recipe struct {
	ID          string           `json:"id" db:"id"`
	BakeryID    string           `json:"bakery_id" db:"bakery_id"`
	Name        string           `json:"name" db:"name"`
	Description *string          `json:"description,omitempty" db:"description"`
	YieldQty    decimal.Decimal  `json:"yield_qty" db:"yield_qty"`
	YieldUnit   string           `json:"yield_unit" db:"yield_unit"`
	TotalCost   *decimal.Decimal `json:"total_cost,omitempty" db:"total_cost"`
	Sections    []RecipeSection  `json:"sections,omitempty"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
}

// RecipeSection is an ordered group of lines, e.g. "Dough" or "Glaze".
type RecipeSection struct {
	ID        string                    `json:"id" db:"id"`
	RecipeID  string                    `json:"recipe_id" db:"recipe_id"`
	Name      string                    `json:"name" db:"name"`
	SortOrder int                       `json:"order" db:"sort_order"`
	Lines     []RecipeSectionIngredient `json:"ingredients"`
}

// RecipeSectionIngredient is one ingredient line of a section.
type RecipeSectionIngredient struct {
	ID           string          `json:"id" db:"id"`
	SectionID    string          `json:"section_id" db:"section_id"`
	IngredientID string          `json:"ingredient_id" db:"ingredient_id"`
	Quantity     decimal.Decimal `json:"quantity" db:"quantity"`
	Unit         string          `json:"unit" db:"unit"`
	Preparation  *string         `json:"preparation,omitempty" db:"preparation"`
	SortOrder    int             `json:"order" db:"sort_order"`
}

// IngredientIDs returns the distinct ingredient ids used by the recipe, in
// first-use order.
func (r Recipe) IngredientIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, s := range r.Sections {
		for _, l := range s.Lines {
			if _, ok := seen[l.IngredientID]; ok {
				continue
			}
			seen[l.IngredientID] = struct{}{}
			ids = append(ids, l.IngredientID)
		}
	}
	return ids
}

// ScaledLine is a recipe line multiplied by a scale factor. Cost is nil when
// the line's unit cannot be converted to the ingredient's stock unit.
type ScaledLine struct {
	LineID           string           `json:"line_id"`
	SectionName      string           `json:"section_name"`
	IngredientID     string           `json:"ingredient_id"`
	IngredientName   string           `json:"ingredient_name"`
	OriginalQuantity decimal.Decimal  `json:"original_quantity"`
	ScaledQuantity   decimal.Decimal  `json:"scaled_quantity"`
	Unit             string           `json:"unit"`
	Preparation      *string          `json:"preparation,omitempty"`
	StockUnit        string           `json:"stock_unit"`
	CostPerUnit      decimal.Decimal  `json:"cost_per_unit"`
	Cost             *decimal.Decimal `json:"cost"`
}

// ScaledSection mirrors RecipeSection with scaled lines.
type ScaledSection struct {
	SectionID string       `json:"section_id"`
	Name      string       `json:"name"`
	Lines     []ScaledLine `json:"ingredients"`
}

// ScaledRecipe is the result of scaling one recipe.
type ScaledRecipe struct {
	RecipeID           string          `json:"recipe_id"`
	RecipeName         string          `json:"recipe_name"`
	Scale              decimal.Decimal `json:"scale"`
	YieldQty           decimal.Decimal `json:"yield_qty"`
	YieldUnit          string          `json:"yield_unit"`
	ScaledYieldQty     decimal.Decimal `json:"scaled_yield_qty"`
	Sections           []ScaledSection `json:"sections"`
	EstimatedCost      decimal.Decimal `json:"estimated_cost"`
	UnconvertibleLines []ScaledLine    `json:"unconvertible_lines,omitempty"`
}

// Contribution records how much of an ingredient one recipe asks for, in
// the unit the recipe was written in.
type Contribution struct {
	RecipeID   string          `json:"recipe_id"`
	RecipeName string          `json:"recipe_name"`
	Quantity   decimal.Decimal `json:"quantity"`
	Unit       string          `json:"unit"`
}

// AggregatedIngredient is the total demand for one ingredient across recipes,
// in the ingredient's stock unit. Unconvertible contributions are excluded
// from TotalQuantity and flag the entry.
type AggregatedIngredient struct {
	IngredientID   string          `json:"ingredient_id"`
	IngredientName string          `json:"ingredient_name"`
	TotalQuantity  decimal.Decimal `json:"total_quantity"`
	Unit           string          `json:"unit"`
	CostPerUnit    decimal.Decimal `json:"cost_per_unit"`
	EstimatedCost  decimal.Decimal `json:"estimated_cost"`
	Unconvertible  bool            `json:"unconvertible,omitempty"`
	Contributions  []Contribution  `json:"contributions"`
}
