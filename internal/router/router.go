package router

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gin-gonic/gin"

	"bakery_ops_backend/internal/database"
	"bakery_ops_backend/internal/events"
	"bakery_ops_backend/internal/handlers"
	"bakery_ops_backend/internal/metrics"
	"bakery_ops_backend/internal/middleware"
	"bakery_ops_backend/internal/repositories"
	"bakery_ops_backend/internal/services"
)

// Dependencies are the process-wide objects the routes are built from.
type Dependencies struct {
	DB             *sql.DB
	Dialect        database.Dialect
	TxRetries      int
	Metrics        *metrics.Metrics
	Events         *events.Hub
	AllowedOrigins []string
}

// Setup initializes the routing for the application.
func Setup(ctx context.Context, engine *gin.Engine, deps Dependencies) error {
	db, d := deps.DB, deps.Dialect

	// Repositories
	ingredientRepo := repositories.NewIngredientRepository(d)
	lotRepo := repositories.NewLotRepository(d)
	transactionRepo := repositories.NewTransactionRepository(d)
	recipeRepo := repositories.NewRecipeRepository(d)
	sheetRepo := repositories.NewProductionSheetRepository(d)
	snapshotRepo := repositories.NewSnapshotRepository(d)
	unitRepo := repositories.NewUnitConversionRepository(d)

	// Services
	unitService, err := services.NewUnitConversionService(ctx, unitRepo, db, deps.TxRetries)
	if err != nil {
		return fmt.Errorf("load unit conversions: %w", err)
	}
	ledgerService := services.NewLedgerService(db, deps.TxRetries, ingredientRepo, lotRepo, transactionRepo,
		unitService, deps.Metrics, deps.Events)
	recipeService := services.NewRecipeService(db, deps.TxRetries, recipeRepo, ingredientRepo, snapshotRepo, unitService)
	ingredientService := services.NewIngredientService(db, deps.TxRetries, ingredientRepo, recipeService, unitService)
	productionService := services.NewProductionService(db, deps.TxRetries, services.ProductionDeps{
		Sheets:      sheetRepo,
		Recipes:     recipeRepo,
		Ingredients: ingredientRepo,
		Lots:        lotRepo,
		Archive:     snapshotRepo,
		Ledger:      ledgerService,
		Conversions: unitService,
		Metrics:     deps.Metrics,
		Events:      deps.Events,
	})
	snapshotService := services.NewSnapshotService(snapshotRepo, db)

	// Handlers
	unitHandler := handlers.NewUnitHandler(unitService)
	ingredientHandler := handlers.NewIngredientHandler(ingredientService)
	inventoryHandler := handlers.NewInventoryHandler(ledgerService)
	reportHandler := handlers.NewReportHandler(ledgerService)
	recipeHandler := handlers.NewRecipeHandler(recipeService)
	productionHandler := handlers.NewProductionHandler(productionService)
	snapshotHandler := handlers.NewSnapshotHandler(snapshotService)
	feedHandler := handlers.NewFeedHandler(deps.Events, deps.AllowedOrigins)

	apiV1 := engine.Group("/api/v1")
	authenticated := apiV1.Group("")
	authenticated.Use(middleware.AuthMiddleware())
	{
		SetupUnitRoutes(authenticated, unitHandler)
		SetupIngredientRoutes(authenticated, ingredientHandler, inventoryHandler)
		SetupInventoryRoutes(authenticated, inventoryHandler, reportHandler)
		SetupRecipeRoutes(authenticated, recipeHandler)
		SetupProductionRoutes(authenticated, productionHandler)
		SetupSnapshotRoutes(authenticated, snapshotHandler)
		SetupFeedRoutes(authenticated, feedHandler)
	}
	return nil
}
