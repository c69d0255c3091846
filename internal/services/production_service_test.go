package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bakery_ops_backend/internal/events"
	"bakery_ops_backend/internal/models"
	"bakery_ops_backend/internal/services"
	"bakery_ops_backend/internal/testutil"
	"bakery_ops_backend/internal/units"
)

type bakeryKit struct {
	flour, butter, eggs *models.Ingredient
	brioche, croissant  *models.Recipe
}

func line(ingredientID, qty, unit string) services.RecipeLineInput {
	return services.RecipeLineInput{IngredientID: ingredientID, Quantity: dec(qty), Unit: unit}
}

// newBakeryKit creates three ingredients and two recipes:
// Brioche = 500 g flour + 3 eggs + 0.25 kg butter, Croissant = 0.5 kg flour + 250 g butter.
func newBakeryKit(t *testing.T, f *fixture) *bakeryKit {
	t.Helper()
	ctx := context.Background()
	k := &bakeryKit{
		flour:  f.createIngredient(t, owner, "Flour", "g", "0.002"),
		butter: f.createIngredient(t, owner, "Butter", "g", "0.01"),
		eggs:   f.createIngredient(t, owner, "Eggs", "each", "0.3"),
	}
	var err error
	k.brioche, err = f.recipe.CreateRecipe(ctx, owner, services.RecipeRequest{
		Name:      "Brioche",
		YieldQty:  dec("1"),
		YieldUnit: "loaf",
		Sections: []services.RecipeSectionInput{
			{Name: "Dough", Ingredients: []services.RecipeLineInput{line(k.flour.ID, "500", "g"), line(k.eggs.ID, "3", "each")}},
			{Name: "Finish", Ingredients: []services.RecipeLineInput{line(k.butter.ID, "0.25", "kg")}},
		},
	})
	require.NoError(t, err)
	k.croissant, err = f.recipe.CreateRecipe(ctx, owner, services.RecipeRequest{
		Name:      "Croissant",
		YieldQty:  dec("12"),
		YieldUnit: "each",
		Sections: []services.RecipeSectionInput{
			{Name: "Dough", Ingredients: []services.RecipeLineInput{line(k.flour.ID, "0.5", "kg"), line(k.butter.ID, "250", "g")}},
		},
	})
	require.NoError(t, err)
	return k
}

func (k *bakeryKit) stock(t *testing.T, f *fixture) {
	f.receive(t, owner, k.flour.ID, "2", "kg", "2", 0)
	f.receive(t, owner, k.butter.ID, "1", "kg", "10", 0)
	f.receive(t, owner, k.eggs.ID, "1", "dozen", "3.6", 0)
}

func (k *bakeryKit) sheet(t *testing.T, f *fixture) *models.ProductionSheet {
	t.Helper()
	sheet, err := f.production.CreateSheet(context.Background(), owner, services.ProductionSheetRequest{
		Name: "Saturday",
		Recipes: []services.RecipeScaleInput{
			{RecipeID: k.brioche.ID, Scale: dec("2")},
			{RecipeID: k.croissant.ID, Scale: dec("1")},
		},
	})
	require.NoError(t, err)
	return sheet
}

func TestComplete_ConsumesAggregatedDemand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := newBakeryKit(t, f)
	k.stock(t, f)
	sheet := k.sheet(t, f)
	sub := f.hub.Subscribe(owner.BakeryID)
	defer f.hub.Unsubscribe(sub)

	res, err := f.production.Complete(ctx, owner, sheet.ID)
	require.NoError(t, err)
	assert.True(t, res.Sheet.Completed)
	assert.Equal(t, "COMPLETED", res.Sheet.Status())
	require.NotNil(t, res.Sheet.CompletedBy)
	assert.Equal(t, owner.UserID, *res.Sheet.CompletedBy)
	assert.Len(t, res.Consumption, 3)

	assert.Equal(t, []string{"500"}, f.remaining(t, owner, k.flour.ID))
	assert.Equal(t, []string{"250"}, f.remaining(t, owner, k.butter.ID))
	assert.Equal(t, []string{"6"}, f.remaining(t, owner, k.eggs.ID))
	for _, id := range []string{k.flour.ID, k.butter.ID, k.eggs.ID} {
		f.assertCacheConsistent(t, owner, id)
	}

	snap := res.Sheet.SnapshotData
	require.NotNil(t, snap)
	testutil.AssertDecimal(t, "12.3", snap.TotalCost)
	testutil.AssertDecimal(t, "12.3", snap.ConsumedCost)
	require.Len(t, snap.Ingredients, 3)
	assert.Equal(t, "Butter", snap.Ingredients[0].IngredientName)
	testutil.AssertDecimal(t, "750", snap.Ingredients[0].TotalQuantity)
	assert.Equal(t, "Flour", snap.Ingredients[2].IngredientName)
	testutil.AssertDecimal(t, "1500", snap.Ingredients[2].TotalQuantity)
	assert.Len(t, snap.Ingredients[2].Contributions, 2)

	txns, _, err := f.ledger.ListTransactions(ctx, owner, models.TransactionFilters{ProductionSheetID: sheet.ID})
	require.NoError(t, err)
	assert.Len(t, txns, 3)

	archived, err := f.snapshot.List(ctx, owner, models.SnapshotEntityProductionSheet, sheet.ID)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, 1, archived[0].Version)

	var types []string
	for len(sub.C) > 0 {
		types = append(types, (<-sub.C).Type)
	}
	assert.Equal(t, []string{events.TypeStockConsumed, events.TypeStockConsumed, events.TypeStockConsumed, events.TypeProductionCompleted}, types)
}

func TestComplete_Twice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := newBakeryKit(t, f)
	k.stock(t, f)
	sheet := k.sheet(t, f)

	_, err := f.production.Complete(ctx, owner, sheet.ID)
	require.NoError(t, err)
	_, err = f.production.Complete(ctx, owner, sheet.ID)
	assert.True(t, errors.Is(err, services.ErrAlreadyCompleted), "got %v", err)

	assert.Equal(t, []string{"500"}, f.remaining(t, owner, k.flour.ID))
	txns, _, err := f.ledger.ListTransactions(ctx, owner, models.TransactionFilters{ProductionSheetID: sheet.ID})
	require.NoError(t, err)
	assert.Len(t, txns, 3)

	_, err = f.production.UpdateSheet(ctx, owner, sheet.ID, services.ProductionSheetRequest{
		Name:    "Sunday",
		Recipes: []services.RecipeScaleInput{{RecipeID: k.brioche.ID, Scale: dec("1")}},
	})
	assert.True(t, errors.Is(err, services.ErrAlreadyCompleted))
	assert.True(t, errors.Is(f.production.DeleteSheet(ctx, owner, sheet.ID), services.ErrAlreadyCompleted))
}

func TestComplete_ReportsEveryShortageAndChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := newBakeryKit(t, f)
	f.receive(t, owner, k.flour.ID, "500", "g", "0.002", 0)
	f.receive(t, owner, k.butter.ID, "250", "g", "0.01", 0)
	f.receive(t, owner, k.eggs.ID, "6", "each", "0.3", 0)
	sheet := k.sheet(t, f)

	preview, err := f.production.Preview(ctx, owner, sheet.ID)
	require.NoError(t, err)
	assert.Equal(t, "PENDING", preview.Status)
	assert.Len(t, preview.Shortages, 2)

	_, err = f.production.Complete(ctx, owner, sheet.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrInsufficientStock))

	shortages := services.StockShortages(err)
	require.Len(t, shortages, 2)
	assert.Equal(t, "Butter", shortages[0].IngredientName)
	testutil.AssertDecimal(t, "500", shortages[0].Shortfall)
	assert.Equal(t, "Flour", shortages[1].IngredientName)
	testutil.AssertDecimal(t, "1000", shortages[1].Shortfall)

	assert.Equal(t, []string{"500"}, f.remaining(t, owner, k.flour.ID))
	assert.Equal(t, []string{"250"}, f.remaining(t, owner, k.butter.ID))
	assert.Equal(t, []string{"6"}, f.remaining(t, owner, k.eggs.ID))

	got, err := f.production.GetSheet(ctx, owner, sheet.ID)
	require.NoError(t, err)
	assert.False(t, got.Completed)
	assert.Nil(t, got.SnapshotData)
}

func TestComplete_UnconvertibleLineFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	salt := f.createIngredient(t, owner, "Salt", "g", "0.001")
	f.receive(t, owner, salt.ID, "100", "g", "0.001", 0)
	recipe, err := f.recipe.CreateRecipe(ctx, owner, services.RecipeRequest{
		Name: "Pretzel", YieldQty: dec("1"), YieldUnit: "each",
		Sections: []services.RecipeSectionInput{{Name: "Topping", Ingredients: []services.RecipeLineInput{line(salt.ID, "1", "pinch")}}},
	})
	require.NoError(t, err)
	sheet, err := f.production.CreateSheet(ctx, owner, services.ProductionSheetRequest{
		Name: "Pretzels", Recipes: []services.RecipeScaleInput{{RecipeID: recipe.ID, Scale: dec("1")}},
	})
	require.NoError(t, err)

	_, err = f.production.Complete(ctx, owner, sheet.ID)
	assert.True(t, errors.Is(err, services.ErrConversionUnavailable), "got %v", err)
	var convErr *units.ConversionError
	require.True(t, errors.As(err, &convErr), "got %v", err)
	assert.Equal(t, "pinch", convErr.From)
	assert.Equal(t, "g", convErr.To)
	assert.Contains(t, err.Error(), "Pretzel")
	assert.Equal(t, []string{"100"}, f.remaining(t, owner, salt.ID))
}

func TestComplete_SnapshotMatchesConsumptionAtStoredPrecision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vanilla := f.createIngredient(t, owner, "Vanilla", "g", "1")
	f.receive(t, owner, vanilla.ID, "10", "g", "1", 0)
	recipe, err := f.recipe.CreateRecipe(ctx, owner, services.RecipeRequest{
		Name: "Custard", YieldQty: dec("1"), YieldUnit: "l",
		Sections: []services.RecipeSectionInput{{Name: "Base", Ingredients: []services.RecipeLineInput{line(vanilla.ID, "0.3333333", "g")}}},
	})
	require.NoError(t, err)
	testutil.AssertDecimal(t, "0.333333", recipe.Sections[0].Lines[0].Quantity)

	stored, err := f.recipe.GetRecipe(ctx, owner, recipe.ID)
	require.NoError(t, err)
	testutil.AssertDecimal(t, "0.333333", stored.Sections[0].Lines[0].Quantity)

	sheet, err := f.production.CreateSheet(ctx, owner, services.ProductionSheetRequest{
		Name: "Custard run", Recipes: []services.RecipeScaleInput{{RecipeID: recipe.ID, Scale: dec("3")}},
	})
	require.NoError(t, err)

	res, err := f.production.Complete(ctx, owner, sheet.ID)
	require.NoError(t, err)
	require.Len(t, res.Consumption, 1)
	testutil.AssertDecimal(t, "0.999999", res.Consumption[0].Quantity)

	snap := res.Sheet.SnapshotData
	require.NotNil(t, snap)
	require.Len(t, snap.Ingredients, 1)
	testutil.AssertDecimal(t, "0.999999", snap.Ingredients[0].TotalQuantity)
	assert.True(t, snap.Ingredients[0].TotalQuantity.Equal(res.Consumption[0].Quantity))
	testutil.AssertDecimal(t, "0.999999", snap.TotalCost)
	testutil.AssertDecimal(t, "0.999999", snap.ConsumedCost)
	assert.Equal(t, []string{"9.000001"}, f.remaining(t, owner, vanilla.ID))
}

func TestSnapshotSurvivesCostChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := newBakeryKit(t, f)
	k.stock(t, f)
	sheet := k.sheet(t, f)
	_, err := f.production.Complete(ctx, owner, sheet.ID)
	require.NoError(t, err)

	_, err = f.ingredient.UpdateIngredient(ctx, owner, k.flour.ID, services.UpdateIngredientRequest{CostPerUnit: ptrDec("0.01")})
	require.NoError(t, err)

	preview, err := f.production.Preview(ctx, owner, sheet.ID)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", preview.Status)
	testutil.AssertDecimal(t, "12.3", preview.TotalCost)
	testutil.AssertDecimal(t, "0.002", preview.Ingredients[2].CostPerUnit)

	brioche, err := f.recipe.GetRecipe(ctx, owner, k.brioche.ID)
	require.NoError(t, err)
	require.NotNil(t, brioche.TotalCost)
	testutil.AssertDecimal(t, "8.4", *brioche.TotalCost)

	versions, err := f.snapshot.List(ctx, owner, models.SnapshotEntityRecipe, k.brioche.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}

func TestProductionSheet_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := newBakeryKit(t, f)
	sheet := k.sheet(t, f)

	updated, err := f.production.UpdateSheet(ctx, owner, sheet.ID, services.ProductionSheetRequest{
		Name:    "  Sunday  ",
		Recipes: []services.RecipeScaleInput{{RecipeID: k.croissant.ID, Scale: dec("3")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Sunday", updated.Name)

	got, err := f.production.GetSheet(ctx, owner, sheet.ID)
	require.NoError(t, err)
	require.Len(t, got.Recipes, 1)
	assert.Equal(t, "Croissant", got.Recipes[0].RecipeName)

	pending, err := f.production.ListSheets(ctx, owner, services.ProductionSheetFilter{Status: "pending"})
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	completed, err := f.production.ListSheets(ctx, owner, services.ProductionSheetFilter{Status: "completed"})
	require.NoError(t, err)
	assert.Empty(t, completed)

	err = f.recipe.DeleteRecipe(ctx, owner, k.croissant.ID)
	assert.True(t, errors.Is(err, services.ErrRecipeInUse))

	_, err = f.production.GetSheet(ctx, stranger, sheet.ID)
	assert.True(t, errors.Is(err, services.ErrProductionSheetNotFound))
	_, err = f.production.Complete(ctx, stranger, sheet.ID)
	assert.True(t, errors.Is(err, services.ErrProductionSheetNotFound))

	require.NoError(t, f.production.DeleteSheet(ctx, owner, sheet.ID))
	_, err = f.production.GetSheet(ctx, owner, sheet.ID)
	assert.True(t, errors.Is(err, services.ErrProductionSheetNotFound))
	require.NoError(t, f.recipe.DeleteRecipe(ctx, owner, k.croissant.ID))
}

func TestCreateSheet_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := newBakeryKit(t, f)

	tests := []struct {
		name string
		req  services.ProductionSheetRequest
		want error
	}{
		{"no name", services.ProductionSheetRequest{Recipes: []services.RecipeScaleInput{{RecipeID: k.brioche.ID, Scale: dec("1")}}}, services.ErrValidation},
		{"no recipes", services.ProductionSheetRequest{Name: "Empty"}, services.ErrValidation},
		{"zero scale", services.ProductionSheetRequest{Name: "Zero", Recipes: []services.RecipeScaleInput{{RecipeID: k.brioche.ID, Scale: dec("0")}}}, services.ErrValidation},
		{"unknown recipe", services.ProductionSheetRequest{Name: "Ghost", Recipes: []services.RecipeScaleInput{{RecipeID: "missing", Scale: dec("1")}}}, services.ErrRecipeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.production.CreateSheet(ctx, owner, tt.req)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
	_, err := f.production.CreateSheet(ctx, stranger, services.ProductionSheetRequest{
		Name: "Theirs", Recipes: []services.RecipeScaleInput{{RecipeID: k.brioche.ID, Scale: dec("1")}},
	})
	assert.True(t, errors.Is(err, services.ErrRecipeNotFound))
}
