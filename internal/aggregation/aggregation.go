// Package aggregation scales recipes and sums ingredient demand across the
// recipes of a production run.
package aggregation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"bakery_ops_backend/internal/costing"
	"bakery_ops_backend/internal/models"
	"bakery_ops_backend/internal/units"
)

var (
	ErrInvalidScale      = errors.New("scale factor must be greater than zero")
	ErrUnknownIngredient = errors.New("recipe references an unknown ingredient")
)

// ScaleRecipe multiplies every line and the yield by factor and prices each
// line. Lines whose unit cannot be converted to the ingredient stock unit
// add nothing to EstimatedCost and are listed in UnconvertibleLines.
func ScaleRecipe(conv costing.Converter, recipe models.Recipe, factor decimal.Decimal, ingredients map[string]models.Ingredient) (models.ScaledRecipe, error) {
	if !factor.IsPositive() {
		return models.ScaledRecipe{}, fmt.Errorf("%w: got %s", ErrInvalidScale, factor)
	}
	out := models.ScaledRecipe{
		RecipeID:       recipe.ID,
		RecipeName:     recipe.Name,
		Scale:          factor,
		YieldQty:       recipe.YieldQty,
		YieldUnit:      recipe.YieldUnit,
		ScaledYieldQty: recipe.YieldQty.Mul(factor),
		Sections:       make([]models.ScaledSection, 0, len(recipe.Sections)),
		EstimatedCost:  decimal.Zero,
	}

	sections := append([]models.RecipeSection(nil), recipe.Sections...)
	sort.SliceStable(sections, func(i, j int) bool { return sections[i].SortOrder < sections[j].SortOrder })

	for _, section := range sections {
		lines := append([]models.RecipeSectionIngredient(nil), section.Lines...)
		sort.SliceStable(lines, func(i, j int) bool { return lines[i].SortOrder < lines[j].SortOrder })

		scaled := models.ScaledSection{SectionID: section.ID, Name: section.Name, Lines: make([]models.ScaledLine, 0, len(lines))}
		for _, line := range lines {
			ing, ok := ingredients[line.IngredientID]
			if !ok {
				return models.ScaledRecipe{}, fmt.Errorf("%w: %s", ErrUnknownIngredient, line.IngredientID)
			}
			sl := models.ScaledLine{
				LineID:           line.ID,
				SectionName:      section.Name,
				IngredientID:     ing.ID,
				IngredientName:   ing.Name,
				OriginalQuantity: line.Quantity,
				ScaledQuantity:   line.Quantity.Mul(factor),
				Unit:             line.Unit,
				Preparation:      line.Preparation,
				StockUnit:        ing.Unit,
				CostPerUnit:      ing.CostPerUnit,
			}
			if cost, ok := costing.CostOf(conv, sl.ScaledQuantity, sl.Unit, ing.CostPerUnit, ing.Unit); ok {
				sl.Cost = &cost
				out.EstimatedCost = out.EstimatedCost.Add(cost)
			} else {
				out.UnconvertibleLines = append(out.UnconvertibleLines, sl)
			}
			scaled.Lines = append(scaled.Lines, sl)
		}
		out.Sections = append(out.Sections, scaled)
	}
	return out, nil
}

type contributionKey struct {
	recipeID string
	unit     string
}

type accumulator struct {
	entry models.AggregatedIngredient
	index map[contributionKey]int
}

// AggregateAcrossRecipes groups the lines of all scaled recipes by
// ingredient. Quantities are summed in the ingredient stock unit;
// contributions keep the unit they were written in, merged per recipe.
// The result is ordered by ingredient name, then id.
func AggregateAcrossRecipes(conv costing.Converter, scaled []models.ScaledRecipe) []models.AggregatedIngredient {
	byIngredient := make(map[string]*accumulator)
	for _, recipe := range scaled {
		for _, section := range recipe.Sections {
			for _, line := range section.Lines {
				acc, ok := byIngredient[line.IngredientID]
				if !ok {
					acc = &accumulator{
						entry: models.AggregatedIngredient{
							IngredientID:   line.IngredientID,
							IngredientName: line.IngredientName,
							TotalQuantity:  decimal.Zero,
							Unit:           line.StockUnit,
							CostPerUnit:    line.CostPerUnit,
						},
						index: make(map[contributionKey]int),
					}
					byIngredient[line.IngredientID] = acc
				}

				key := contributionKey{recipe.RecipeID, units.Normalize(line.Unit)}
				if i, ok := acc.index[key]; ok {
					c := &acc.entry.Contributions[i]
					c.Quantity = c.Quantity.Add(line.ScaledQuantity)
				} else {
					acc.index[key] = len(acc.entry.Contributions)
					acc.entry.Contributions = append(acc.entry.Contributions, models.Contribution{
						RecipeID:   recipe.RecipeID,
						RecipeName: recipe.RecipeName,
						Quantity:   line.ScaledQuantity,
						Unit:       line.Unit,
					})
				}

				inStock, err := toStockUnit(conv, line.ScaledQuantity, line.Unit, line.StockUnit)
				if err != nil {
					acc.entry.Unconvertible = true
					continue
				}
				acc.entry.TotalQuantity = acc.entry.TotalQuantity.Add(inStock)
			}
		}
	}

	out := make([]models.AggregatedIngredient, 0, len(byIngredient))
	for _, acc := range byIngredient {
		e := acc.entry
		// The ledger deducts at stored precision; the totals must say the same.
		e.TotalQuantity = costing.RoundQuantity(e.TotalQuantity)
		e.EstimatedCost = costing.RoundPrice(e.TotalQuantity.Mul(e.CostPerUnit))
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].IngredientName), strings.ToLower(out[j].IngredientName)
		if a != b {
			return a < b
		}
		return out[i].IngredientID < out[j].IngredientID
	})
	return out
}

func toStockUnit(conv costing.Converter, qty decimal.Decimal, unit, stockUnit string) (decimal.Decimal, error) {
	if units.Normalize(unit) == units.Normalize(stockUnit) {
		return qty, nil
	}
	if conv == nil {
		return decimal.Zero, &units.ConversionError{From: units.Normalize(unit), To: units.Normalize(stockUnit)}
	}
	return conv.Convert(qty, unit, stockUnit)
}

// TotalCost sums the estimated cost of the scaled recipes.
func TotalCost(scaled []models.ScaledRecipe) decimal.Decimal {
	total := decimal.Zero
	for _, r := range scaled {
		total = total.Add(r.EstimatedCost)
	}
	return total
}

// Summaries flattens scaled recipes into the per-recipe records kept in a
// production snapshot.
func Summaries(scaled []models.ScaledRecipe) []models.SnapshotRecipe {
	out := make([]models.SnapshotRecipe, 0, len(scaled))
	for _, r := range scaled {
		out = append(out, models.SnapshotRecipe{
			RecipeID:           r.RecipeID,
			Name:               r.RecipeName,
			Scale:              r.Scale,
			YieldQty:           r.YieldQty,
			YieldUnit:          r.YieldUnit,
			ScaledYieldQty:     r.ScaledYieldQty,
			EstimatedCost:      r.EstimatedCost,
			UnconvertibleLines: r.UnconvertibleLines,
		})
	}
	return out
}
