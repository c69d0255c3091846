package services_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"bakery_ops_backend/internal/database"
	"bakery_ops_backend/internal/events"
	"bakery_ops_backend/internal/metrics"
	"bakery_ops_backend/internal/models"
	"bakery_ops_backend/internal/repositories"
	"bakery_ops_backend/internal/services"
	"bakery_ops_backend/internal/testutil"
)

var (
	owner    = models.Actor{UserID: "user-a", BakeryID: "bakery-a", Role: "owner"}
	stranger = models.Actor{UserID: "user-b", BakeryID: "bakery-b", Role: "owner"}
	admin    = models.Actor{UserID: "admin", BakeryID: "bakery-a", IsPlatformAdmin: true, Role: "admin"}
)

type fixture struct {
	db          *sql.DB
	lots        repositories.LotRepository
	ingredients repositories.IngredientRepository
	hub         *events.Hub
	metrics     *metrics.Metrics

	conversions services.UnitConversionService
	ledger      services.LedgerService
	ingredient  services.IngredientService
	recipe      services.RecipeService
	production  services.ProductionService
	snapshot    services.SnapshotService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	d := database.SQLite

	f := &fixture{
		db:          db,
		lots:        repositories.NewLotRepository(d),
		ingredients: repositories.NewIngredientRepository(d),
		hub:         events.NewHub(256),
		metrics:     metrics.New(),
	}
	conversions, err := services.NewUnitConversionService(context.Background(), repositories.NewUnitConversionRepository(d), db, database.DefaultTxRetries)
	require.NoError(t, err)
	f.conversions = conversions

	archive := repositories.NewSnapshotRepository(d)
	recipeRepo := repositories.NewRecipeRepository(d)
	f.ledger = services.NewLedgerService(db, database.DefaultTxRetries, f.ingredients, f.lots,
		repositories.NewTransactionRepository(d), conversions, f.metrics, f.hub)
	f.recipe = services.NewRecipeService(db, database.DefaultTxRetries, recipeRepo, f.ingredients, archive, conversions)
	f.ingredient = services.NewIngredientService(db, database.DefaultTxRetries, f.ingredients, f.recipe, conversions)
	f.production = services.NewProductionService(db, database.DefaultTxRetries, services.ProductionDeps{
		Sheets:      repositories.NewProductionSheetRepository(d),
		Recipes:     recipeRepo,
		Ingredients: f.ingredients,
		Lots:        f.lots,
		Archive:     archive,
		Ledger:      f.ledger,
		Conversions: conversions,
		Metrics:     f.metrics,
		Events:      f.hub,
	})
	f.snapshot = services.NewSnapshotService(archive, db)
	return f
}

func (f *fixture) createIngredient(t *testing.T, actor models.Actor, name, unit, cost string) *models.Ingredient {
	t.Helper()
	ing, err := f.ingredient.CreateIngredient(context.Background(), actor, services.CreateIngredientRequest{
		Name:        name,
		Unit:        unit,
		CostPerUnit: testutil.Dec(cost),
	})
	require.NoError(t, err)
	return ing
}

var baseTime = time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)

// receive records a lot purchased `order` hours after baseTime.
func (f *fixture) receive(t *testing.T, actor models.Actor, ingredientID, qty, unit, cost string, order int) *models.InventoryLot {
	t.Helper()
	purchased := baseTime.Add(time.Duration(order) * time.Hour)
	res, err := f.ledger.Receive(context.Background(), actor, services.ReceiveRequest{
		IngredientID: ingredientID,
		Quantity:     testutil.Dec(qty),
		Unit:         unit,
		CostPerUnit:  testutil.Dec(cost),
		PurchasedAt:  &purchased,
	})
	require.NoError(t, err)
	return &res.Lot
}

// remaining returns the remaining quantity of every lot in FIFO order.
func (f *fixture) remaining(t *testing.T, actor models.Actor, ingredientID string) []string {
	t.Helper()
	lots, err := f.ledger.ListLots(context.Background(), actor, ingredientID, false)
	require.NoError(t, err)
	out := make([]string, len(lots))
	for i, l := range lots {
		out[i] = l.RemainingQty.String()
	}
	return out
}

// assertCacheConsistent checks that current_qty equals the sum of lot remaining.
func (f *fixture) assertCacheConsistent(t *testing.T, actor models.Actor, ingredientID string) {
	t.Helper()
	level, err := f.ledger.StockLevel(context.Background(), actor, ingredientID)
	require.NoError(t, err)
	require.True(t, level.CurrentQty.Equal(level.LotQty),
		"current_qty %s != lot sum %s", level.CurrentQty, level.LotQty)
}

func dec(s string) decimal.Decimal { return testutil.Dec(s) }

func ptrDec(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}
