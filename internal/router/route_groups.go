package router

import (
	"github.com/gin-gonic/gin"

	"bakery_ops_backend/internal/handlers"
	"bakery_ops_backend/internal/middleware"
)

// SetupUnitRoutes sets up the unit conversion routes.
func SetupUnitRoutes(authenticatedGroup *gin.RouterGroup, unitHandler *handlers.UnitHandler) {
	unitRoutes := authenticatedGroup.Group("/units")
	{
		unitRoutes.GET("/conversions", unitHandler.ListConversions)
		unitRoutes.POST("/conversions", middleware.PlatformAdminMiddleware(), unitHandler.UpsertConversion)
		unitRoutes.POST("/convert", unitHandler.Convert)
	}
}

// SetupIngredientRoutes sets up ingredient CRUD and the per-ingredient ledger routes.
func SetupIngredientRoutes(authenticatedGroup *gin.RouterGroup, ingredientHandler *handlers.IngredientHandler, inventoryHandler *handlers.InventoryHandler) {
	ingredientRoutes := authenticatedGroup.Group("/ingredients")
	{
		ingredientRoutes.POST("", ingredientHandler.CreateIngredient)
		ingredientRoutes.GET("", ingredientHandler.GetIngredients)
		ingredientRoutes.GET("/:id", ingredientHandler.GetIngredientByID)
		ingredientRoutes.PUT("/:id", ingredientHandler.UpdateIngredient)
		ingredientRoutes.DELETE("/:id", ingredientHandler.DeleteIngredient)

		ingredientRoutes.GET("/:id/lots", inventoryHandler.GetIngredientLots)
		ingredientRoutes.GET("/:id/stock", inventoryHandler.GetIngredientStock)
		ingredientRoutes.POST("/:id/receive", inventoryHandler.ReceiveStock)
		ingredientRoutes.POST("/:id/consume", inventoryHandler.ConsumeStock)
	}
}

// SetupInventoryRoutes sets up lot, transaction and report routes.
func SetupInventoryRoutes(authenticatedGroup *gin.RouterGroup, inventoryHandler *handlers.InventoryHandler, reportHandler *handlers.ReportHandler) {
	lotRoutes := authenticatedGroup.Group("/lots")
	{
		lotRoutes.GET("/:id", inventoryHandler.GetLot)
		lotRoutes.POST("/:id/adjust", inventoryHandler.AdjustLot)
	}

	inventoryRoutes := authenticatedGroup.Group("/inventory")
	{
		inventoryRoutes.GET("/transactions", inventoryHandler.GetTransactions)
		inventoryRoutes.GET("/report", reportHandler.GetInventoryReport)
	}
}

// SetupRecipeRoutes sets up the recipe routes.
func SetupRecipeRoutes(authenticatedGroup *gin.RouterGroup, recipeHandler *handlers.RecipeHandler) {
	recipeRoutes := authenticatedGroup.Group("/recipes")
	{
		recipeRoutes.POST("", recipeHandler.CreateRecipe)
		recipeRoutes.GET("", recipeHandler.GetRecipes)
		recipeRoutes.POST("/aggregate", recipeHandler.AggregateRecipes)
		recipeRoutes.GET("/:id", recipeHandler.GetRecipeByID)
		recipeRoutes.PUT("/:id", recipeHandler.UpdateRecipe)
		recipeRoutes.DELETE("/:id", recipeHandler.DeleteRecipe)
		recipeRoutes.GET("/:id/scale", recipeHandler.ScaleRecipe)
	}
}

// SetupProductionRoutes sets up the production sheet routes.
func SetupProductionRoutes(authenticatedGroup *gin.RouterGroup, productionHandler *handlers.ProductionHandler) {
	sheetRoutes := authenticatedGroup.Group("/production-sheets")
	{
		sheetRoutes.POST("", productionHandler.CreateProductionSheet)
		sheetRoutes.GET("", productionHandler.GetProductionSheets)
		sheetRoutes.GET("/:id", productionHandler.GetProductionSheetByID)
		sheetRoutes.PUT("/:id", productionHandler.UpdateProductionSheet)
		sheetRoutes.DELETE("/:id", productionHandler.DeleteProductionSheet)
		sheetRoutes.GET("/:id/preview", productionHandler.PreviewProductionSheet)
		sheetRoutes.POST("/:id/complete", productionHandler.CompleteProductionSheet)
	}
}

// SetupSnapshotRoutes sets up the snapshot archive routes.
func SetupSnapshotRoutes(authenticatedGroup *gin.RouterGroup, snapshotHandler *handlers.SnapshotHandler) {
	authenticatedGroup.GET("/snapshots", snapshotHandler.GetSnapshots)
}

// SetupFeedRoutes sets up the websocket feed.
func SetupFeedRoutes(authenticatedGroup *gin.RouterGroup, feedHandler *handlers.FeedHandler) {
	authenticatedGroup.GET("/ws/inventory", feedHandler.InventoryFeed)
}
