package aggregation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bakery_ops_backend/internal/models"
	"bakery_ops_backend/internal/units"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]interface{}{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

var (
	flour  = models.Ingredient{ID: "ing-flour", Name: "Flour", Unit: "g", CostPerUnit: dec("0.002")}
	butter = models.Ingredient{ID: "ing-butter", Name: "butter", Unit: "kg", CostPerUnit: dec("8")}
	milk   = models.Ingredient{ID: "ing-milk", Name: "Milk", Unit: "ml", CostPerUnit: dec("0.001")}
	eggs   = models.Ingredient{ID: "ing-eggs", Name: "Eggs", Unit: "dozen", CostPerUnit: dec("3.60")}
)

func ingredientMap(list ...models.Ingredient) map[string]models.Ingredient {
	m := make(map[string]models.Ingredient, len(list))
	for _, i := range list {
		m[i.ID] = i
	}
	return m
}

func line(id, ingredientID, qty, unit string, order int) models.RecipeSectionIngredient {
	return models.RecipeSectionIngredient{ID: id, IngredientID: ingredientID, Quantity: dec(qty), Unit: unit, SortOrder: order}
}

func croissant() models.Recipe {
	return models.Recipe{
		ID:        "rec-croissant",
		Name:      "Croissant",
		YieldQty:  dec("12"),
		YieldUnit: "each",
		Sections: []models.RecipeSection{
			{ID: "sec-lamination", Name: "Lamination", SortOrder: 2, Lines: []models.RecipeSectionIngredient{
				line("l3", butter.ID, "250", "g", 1),
			}},
			{ID: "sec-dough", Name: "Dough", SortOrder: 1, Lines: []models.RecipeSectionIngredient{
				line("l2", milk.ID, "1", "cup", 2),
				line("l1", flour.ID, "500", "g", 1),
			}},
		},
	}
}

func TestScaleRecipe_OrdersAndPrices(t *testing.T) {
	table := units.DefaultTable()

	got, err := ScaleRecipe(table, croissant(), dec("2"), ingredientMap(flour, butter, milk))
	require.NoError(t, err)

	require.Len(t, got.Sections, 2)
	assert.Equal(t, "Dough", got.Sections[0].Name)
	assert.Equal(t, "Lamination", got.Sections[1].Name)
	require.Len(t, got.Sections[0].Lines, 2)
	assert.Equal(t, "l1", got.Sections[0].Lines[0].LineID)

	assertDec(t, "24", got.ScaledYieldQty)
	assertDec(t, "1000", got.Sections[0].Lines[0].ScaledQuantity)
	assertDec(t, "2", *got.Sections[0].Lines[0].Cost)
	// 500 g butter = 0.5 kg at 8 per kg
	assertDec(t, "4", *got.Sections[1].Lines[0].Cost)

	// 2 cups = 473.176473 ml
	require.NotNil(t, got.Sections[0].Lines[1].Cost)
	assertDec(t, "0.473176473", *got.Sections[0].Lines[1].Cost)
	assertDec(t, "6.473176473", got.EstimatedCost)
	assert.Empty(t, got.UnconvertibleLines)
}

func TestScaleRecipe_UnconvertibleLinesAreListedNotZeroed(t *testing.T) {
	recipe := models.Recipe{
		ID: "rec-custard", Name: "Custard", YieldQty: dec("1"), YieldUnit: "l",
		Sections: []models.RecipeSection{{ID: "s", Name: "Main", Lines: []models.RecipeSectionIngredient{
			line("a", flour.ID, "2", "cup", 1),
			line("b", eggs.ID, "6", "each", 2),
			line("c", milk.ID, "500", "ml", 3),
		}}},
	}

	got, err := ScaleRecipe(units.DefaultTable(), recipe, dec("1"), ingredientMap(flour, eggs, milk))
	require.NoError(t, err)

	require.Len(t, got.UnconvertibleLines, 2)
	assert.Equal(t, "a", got.UnconvertibleLines[0].LineID)
	assert.Equal(t, "b", got.UnconvertibleLines[1].LineID)
	assert.Nil(t, got.Sections[0].Lines[0].Cost)
	assertDec(t, "0.5", got.EstimatedCost)
}

func TestScaleRecipe_Linearity(t *testing.T) {
	table := units.DefaultTable()
	ings := ingredientMap(flour, butter, milk)

	one, err := ScaleRecipe(table, croissant(), dec("1"), ings)
	require.NoError(t, err)
	for _, s := range one.Sections {
		for _, l := range s.Lines {
			assert.True(t, l.ScaledQuantity.Equal(l.OriginalQuantity), "scale 1 must be identity")
		}
	}
	assertDec(t, "12", one.ScaledYieldQty)

	for _, k := range []string{"0.5", "1.75", "3", "10"} {
		scaled, err := ScaleRecipe(table, croissant(), dec(k), ings)
		require.NoError(t, err)
		for si, s := range scaled.Sections {
			for li, l := range s.Lines {
				orig := one.Sections[si].Lines[li]
				assert.True(t, l.ScaledQuantity.Equal(orig.OriginalQuantity.Mul(dec(k))), "k=%s line %s", k, l.LineID)
			}
		}
		assert.True(t, scaled.EstimatedCost.Equal(one.EstimatedCost.Mul(dec(k))), "k=%s cost", k)
	}
}

func TestScaleRecipe_Errors(t *testing.T) {
	table := units.DefaultTable()

	for _, k := range []string{"0", "-1"} {
		_, err := ScaleRecipe(table, croissant(), dec(k), ingredientMap(flour, butter, milk))
		assert.ErrorIs(t, err, ErrInvalidScale)
	}

	_, err := ScaleRecipe(table, croissant(), dec("1"), ingredientMap(flour))
	assert.ErrorIs(t, err, ErrUnknownIngredient)
}

func TestAggregateAcrossRecipes_Additivity(t *testing.T) {
	table := units.DefaultTable()
	ings := ingredientMap(flour)
	r1 := models.Recipe{ID: "r1", Name: "Bread", YieldQty: dec("1"), YieldUnit: "loaf",
		Sections: []models.RecipeSection{{Name: "Main", Lines: []models.RecipeSectionIngredient{line("x", flour.ID, "100", "g", 1)}}}}
	r2 := models.Recipe{ID: "r2", Name: "Rolls", YieldQty: dec("6"), YieldUnit: "each",
		Sections: []models.RecipeSection{{Name: "Main", Lines: []models.RecipeSectionIngredient{line("y", flour.ID, "100", "g", 1)}}}}

	s1, err := ScaleRecipe(table, r1, dec("1"), ings)
	require.NoError(t, err)
	s2, err := ScaleRecipe(table, r2, dec("1"), ings)
	require.NoError(t, err)

	agg := AggregateAcrossRecipes(table, []models.ScaledRecipe{s1, s2})
	require.Len(t, agg, 1)
	assertDec(t, "200", agg[0].TotalQuantity)
	assert.Equal(t, "g", agg[0].Unit)
	assertDec(t, "0.4", agg[0].EstimatedCost)
	require.Len(t, agg[0].Contributions, 2)
	assert.Equal(t, "r1", agg[0].Contributions[0].RecipeID)
	assert.Equal(t, "r2", agg[0].Contributions[1].RecipeID)
	assertDec(t, "100", agg[0].Contributions[1].Quantity)
	assertDec(t, "0.4", TotalCost([]models.ScaledRecipe{s1, s2}))
}

func TestAggregateAcrossRecipes_ConvertsAndMerges(t *testing.T) {
	table := units.DefaultTable()
	ings := ingredientMap(flour, butter, eggs)
	recipe := models.Recipe{ID: "r1", Name: "Brioche", YieldQty: dec("2"), YieldUnit: "loaf",
		Sections: []models.RecipeSection{
			{Name: "Dough", SortOrder: 1, Lines: []models.RecipeSectionIngredient{
				line("a", flour.ID, "0.5", "kg", 1),
				line("b", eggs.ID, "6", "each", 2),
				line("c", butter.ID, "200", "g", 3),
			}},
			{Name: "Dusting", SortOrder: 2, Lines: []models.RecipeSectionIngredient{
				line("d", flour.ID, "20", "g", 1),
				line("e", flour.ID, "0.01", "kg", 2),
			}},
		}}

	scaled, err := ScaleRecipe(table, recipe, dec("2"), ings)
	require.NoError(t, err)
	agg := AggregateAcrossRecipes(table, []models.ScaledRecipe{scaled})

	require.Len(t, agg, 3)
	assert.Equal(t, []string{"butter", "Eggs", "Flour"}, []string{agg[0].IngredientName, agg[1].IngredientName, agg[2].IngredientName})

	assertDec(t, "0.4", agg[0].TotalQuantity)
	assert.Equal(t, "kg", agg[0].Unit)
	assertDec(t, "3.2", agg[0].EstimatedCost)

	assert.True(t, agg[1].Unconvertible)
	assertDec(t, "0", agg[1].TotalQuantity)
	require.Len(t, agg[1].Contributions, 1)
	assertDec(t, "12", agg[1].Contributions[0].Quantity)

	// 1 kg + 40 g + 0.02 kg, two contributions (kg and g) from one recipe
	assertDec(t, "1060", agg[2].TotalQuantity)
	require.Len(t, agg[2].Contributions, 2)
	assert.Equal(t, "kg", agg[2].Contributions[0].Unit)
	assertDec(t, "1.02", agg[2].Contributions[0].Quantity)
	assert.Equal(t, "g", agg[2].Contributions[1].Unit)
	assertDec(t, "40", agg[2].Contributions[1].Quantity)
}

func TestAggregateAcrossRecipes_Empty(t *testing.T) {
	assert.Empty(t, AggregateAcrossRecipes(units.DefaultTable(), nil))
	assert.True(t, TotalCost(nil).IsZero())
}

func TestSummaries(t *testing.T) {
	scaled, err := ScaleRecipe(units.DefaultTable(), croissant(), dec("3"), ingredientMap(flour, butter, milk))
	require.NoError(t, err)

	sums := Summaries([]models.ScaledRecipe{scaled})
	require.Len(t, sums, 1)
	assert.Equal(t, "Croissant", sums[0].Name)
	assertDec(t, "36", sums[0].ScaledYieldQty)
	assert.True(t, sums[0].EstimatedCost.Equal(scaled.EstimatedCost))
}

func TestAggregateAcrossRecipes_TotalsAtStoredPrecision(t *testing.T) {
	table := units.DefaultTable()
	recipe := models.Recipe{ID: "r1", Name: "Custard", YieldQty: dec("1"), YieldUnit: "l",
		Sections: []models.RecipeSection{{Name: "Base", Lines: []models.RecipeSectionIngredient{line("v", flour.ID, "0.3333333", "g", 1)}}}}

	scaled, err := ScaleRecipe(table, recipe, dec("3"), ingredientMap(flour))
	require.NoError(t, err)
	assertDec(t, "0.9999999", scaled.Sections[0].Lines[0].ScaledQuantity)

	agg := AggregateAcrossRecipes(table, []models.ScaledRecipe{scaled})
	require.Len(t, agg, 1)
	assertDec(t, "1", agg[0].TotalQuantity)
	assertDec(t, "0.9999999", agg[0].Contributions[0].Quantity)
	assertDec(t, "0.002", agg[0].EstimatedCost)
}
