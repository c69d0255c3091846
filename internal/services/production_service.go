package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"bakery_ops_backend/internal/aggregation"
	"bakery_ops_backend/internal/costing"
	"bakery_ops_backend/internal/database"
	"bakery_ops_backend/internal/events"
	"bakery_ops_backend/internal/metrics"
	"bakery_ops_backend/internal/models"
	"bakery_ops_backend/internal/repositories"
	"bakery_ops_backend/internal/units"
	"bakery_ops_backend/pkg/utils"
)

// --- Production Sheet DTOs ---
type ProductionSheetRequest struct {
	Name         string             `json:"name" binding:"required"`
	ScheduledFor *time.Time         `json:"scheduled_for"`
	Notes        *string            `json:"notes"`
	Recipes      []RecipeScaleInput `json:"recipes" binding:"required"`
}

// ProductionSheetFilter selects sheets by status: "", "pending" or "completed".
type ProductionSheetFilter struct {
	Status string `form:"status"`
}

type CompleteResult struct {
	Sheet       models.ProductionSheet `json:"sheet"`
	Consumption []ConsumeResult        `json:"consumption"`
}

// --- ProductionService Interface ---
type ProductionService interface {
	CreateSheet(ctx context.Context, actor models.Actor, req ProductionSheetRequest) (*models.ProductionSheet, error)
	GetSheet(ctx context.Context, actor models.Actor, id string) (*models.ProductionSheet, error)
	ListSheets(ctx context.Context, actor models.Actor, filter ProductionSheetFilter) ([]models.ProductionSheet, error)
	UpdateSheet(ctx context.Context, actor models.Actor, id string, req ProductionSheetRequest) (*models.ProductionSheet, error)
	DeleteSheet(ctx context.Context, actor models.Actor, id string) error
	Preview(ctx context.Context, actor models.Actor, id string) (*models.ProductionPreview, error)
	Complete(ctx context.Context, actor models.Actor, id string) (*CompleteResult, error)
}

type productionService struct {
	db             *sql.DB
	retries        int
	sheetRepo      repositories.ProductionSheetRepository
	recipeRepo     repositories.RecipeRepository
	ingredientRepo repositories.IngredientRepository
	lotRepo        repositories.LotRepository
	archive        repositories.SnapshotArchive
	ledger         LedgerService
	conversions    ConversionProvider
	metrics        *metrics.Metrics
	events         events.Publisher
}

// ProductionDeps groups the collaborators of the production service.
type ProductionDeps struct {
	Sheets      repositories.ProductionSheetRepository
	Recipes     repositories.RecipeRepository
	Ingredients repositories.IngredientRepository
	Lots        repositories.LotRepository
	Archive     repositories.SnapshotArchive
	Ledger      LedgerService
	Conversions ConversionProvider
	Metrics     *metrics.Metrics
	Events      events.Publisher
}

// NewProductionService creates a new instance of ProductionService.
func NewProductionService(db *sql.DB, retries int, deps ProductionDeps) ProductionService {
	return &productionService{
		db:             db,
		retries:        retries,
		sheetRepo:      deps.Sheets,
		recipeRepo:     deps.Recipes,
		ingredientRepo: deps.Ingredients,
		lotRepo:        deps.Lots,
		archive:        deps.Archive,
		ledger:         deps.Ledger,
		conversions:    deps.Conversions,
		metrics:        deps.Metrics,
		events:         deps.Events,
	}
}

func buildSheet(actor models.Actor, req ProductionSheetRequest) (*models.ProductionSheet, error) {
	name := utils.NewNullString(req.Name)
	if name == nil {
		return nil, validationError("production sheet name cannot be empty")
	}
	if len(req.Recipes) == 0 {
		return nil, validationError("a production sheet needs at least one recipe")
	}
	sheet := &models.ProductionSheet{
		BakeryID:     actor.BakeryID,
		Name:         *name,
		ScheduledFor: req.ScheduledFor,
		Notes:        utils.TrimPtr(req.Notes),
		CreatedBy:    actor.UserID,
		Recipes:      make([]models.ProductionSheetRecipe, 0, len(req.Recipes)),
	}
	for i, r := range req.Recipes {
		if utils.IsEmpty(r.RecipeID) {
			return nil, validationError("recipe %d: recipe_id is required", i+1)
		}
		scale := costing.RoundQuantity(r.Scale)
		if !scale.IsPositive() {
			return nil, validationError("recipe %d: scale must be greater than zero", i+1)
		}
		sheet.Recipes = append(sheet.Recipes, models.ProductionSheetRecipe{RecipeID: r.RecipeID, Scale: scale, SortOrder: i})
	}
	return sheet, nil
}

// checkRecipes makes sure every recipe on the sheet belongs to the bakery.
func (s *productionService) checkRecipes(ctx context.Context, ex repositories.SQLExecutor, actor models.Actor, sheet *models.ProductionSheet) error {
	for i := range sheet.Recipes {
		recipe, err := s.recipeRepo.GetByID(ctx, ex, actor.BakeryID, sheet.Recipes[i].RecipeID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrRecipeNotFound, sheet.Recipes[i].RecipeID)
			}
			return err
		}
		sheet.Recipes[i].RecipeName = recipe.Name
	}
	return nil
}

func (s *productionService) CreateSheet(ctx context.Context, actor models.Actor, req ProductionSheetRequest) (*models.ProductionSheet, error) {
	sheet, err := buildSheet(actor, req)
	if err != nil {
		return nil, err
	}
	sheet.ID = utils.NewID()
	err = database.RunInTx(ctx, s.db, s.retries, func(tx *sql.Tx) error {
		if err := s.checkRecipes(ctx, tx, actor, sheet); err != nil {
			return err
		}
		return s.sheetRepo.Create(ctx, tx, sheet)
	})
	if err != nil {
		return nil, err
	}
	return sheet, nil
}

func (s *productionService) getSheet(ctx context.Context, ex repositories.SQLExecutor, actor models.Actor, id string, forUpdate bool) (*models.ProductionSheet, error) {
	sheet, err := s.sheetRepo.GetByID(ctx, ex, actor.BakeryID, id, forUpdate)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProductionSheetNotFound, id)
		}
		return nil, err
	}
	return sheet, nil
}

func (s *productionService) GetSheet(ctx context.Context, actor models.Actor, id string) (*models.ProductionSheet, error) {
	return s.getSheet(ctx, s.db, actor, id, false)
}

func (s *productionService) ListSheets(ctx context.Context, actor models.Actor, filter ProductionSheetFilter) ([]models.ProductionSheet, error) {
	var completed *bool
	switch filter.Status {
	case "":
	case "pending", "PENDING":
		v := false
		completed = &v
	case "completed", "COMPLETED":
		v := true
		completed = &v
	default:
		return nil, validationError("status must be pending or completed")
	}
	return s.sheetRepo.List(ctx, s.db, actor.BakeryID, completed)
}

func (s *productionService) UpdateSheet(ctx context.Context, actor models.Actor, id string, req ProductionSheetRequest) (*models.ProductionSheet, error) {
	sheet, err := buildSheet(actor, req)
	if err != nil {
		return nil, err
	}
	err = database.RunInTx(ctx, s.db, s.retries, func(tx *sql.Tx) error {
		existing, err := s.getSheet(ctx, tx, actor, id, true)
		if err != nil {
			return err
		}
		if existing.Completed {
			return fmt.Errorf("%w: %s", ErrAlreadyCompleted, id)
		}
		sheet.ID = existing.ID
		sheet.CreatedBy = existing.CreatedBy
		sheet.CreatedAt = existing.CreatedAt
		if err := s.checkRecipes(ctx, tx, actor, sheet); err != nil {
			return err
		}
		return s.sheetRepo.Update(ctx, tx, sheet)
	})
	if err != nil {
		return nil, err
	}
	return sheet, nil
}

func (s *productionService) DeleteSheet(ctx context.Context, actor models.Actor, id string) error {
	return database.RunInTx(ctx, s.db, s.retries, func(tx *sql.Tx) error {
		sheet, err := s.getSheet(ctx, tx, actor, id, true)
		if err != nil {
			return err
		}
		if sheet.Completed {
			return fmt.Errorf("%w: %s", ErrAlreadyCompleted, id)
		}
		return s.sheetRepo.Delete(ctx, tx, actor.BakeryID, id)
	})
}

// plan scales every recipe of the sheet with live data and aggregates the
// demand per ingredient.
func (s *productionService) plan(ctx context.Context, ex repositories.SQLExecutor, actor models.Actor, sheet *models.ProductionSheet) ([]models.ScaledRecipe, []models.AggregatedIngredient, error) {
	recipes := make([]models.Recipe, 0, len(sheet.Recipes))
	var ids []string
	seen := make(map[string]struct{})
	for _, pr := range sheet.Recipes {
		recipe, err := s.recipeRepo.GetByID(ctx, ex, actor.BakeryID, pr.RecipeID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, nil, fmt.Errorf("%w: %s", ErrRecipeNotFound, pr.RecipeID)
			}
			return nil, nil, err
		}
		recipes = append(recipes, *recipe)
		for _, id := range recipe.IngredientIDs() {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	ingredients, err := s.ingredientRepo.GetByIDs(ctx, ex, actor.BakeryID, ids)
	if err != nil {
		return nil, nil, err
	}

	table := s.conversions.Table()
	scaled := make([]models.ScaledRecipe, 0, len(recipes))
	for i, recipe := range recipes {
		sr, err := aggregation.ScaleRecipe(table, recipe, sheet.Recipes[i].Scale, ingredients)
		if err != nil {
			if errors.Is(err, aggregation.ErrUnknownIngredient) {
				return nil, nil, fmt.Errorf("%w: %v", ErrIngredientNotFound, err)
			}
			return nil, nil, err
		}
		scaled = append(scaled, sr)
	}
	return scaled, aggregation.AggregateAcrossRecipes(table, scaled), nil
}

// shortages checks every aggregated entry against the active lots. With lock
// set the ingredient rows and lots are locked, in ingredient id order.
func (s *productionService) shortages(ctx context.Context, ex repositories.SQLExecutor, actor models.Actor, entries []models.AggregatedIngredient, lock bool) ([]InsufficientStockError, error) {
	ordered := append([]models.AggregatedIngredient(nil), entries...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].IngredientID < ordered[j].IngredientID })

	var short []InsufficientStockError
	for _, e := range ordered {
		need := e.TotalQuantity
		if !need.IsPositive() {
			continue
		}
		ing, err := s.ingredientRepo.GetByID(ctx, ex, actor.BakeryID, e.IngredientID, lock)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrIngredientNotFound, e.IngredientID)
			}
			return nil, err
		}
		lots, err := s.lotRepo.ListByIngredient(ctx, ex, actor.BakeryID, e.IngredientID, true, lock)
		if err != nil {
			return nil, err
		}
		available := decimal.Zero
		for _, l := range lots {
			available = available.Add(l.RemainingQty)
		}
		if available.LessThan(need) {
			short = append(short, *newInsufficientStock(ing, need, available))
		}
	}
	sort.Slice(short, func(i, j int) bool { return short[i].IngredientName < short[j].IngredientName })
	return short, nil
}

func firstUnconvertible(entries []models.AggregatedIngredient) *models.AggregatedIngredient {
	for i := range entries {
		if entries[i].Unconvertible {
			return &entries[i]
		}
	}
	return nil
}

// unconvertibleError names the first contribution unit that has no path to
// the stock unit. If the table gained that path since aggregation, the first
// foreign unit is still reported.
func (s *productionService) unconvertibleError(e *models.AggregatedIngredient) error {
	table := s.conversions.Table()
	var foreign *models.Contribution
	for i, c := range e.Contributions {
		if units.Normalize(c.Unit) == units.Normalize(e.Unit) {
			continue
		}
		if foreign == nil {
			foreign = &e.Contributions[i]
		}
		if _, err := table.ResolveFactor(c.Unit, e.Unit); err != nil {
			return fmt.Errorf("%s (%s): %w", e.IngredientName, c.RecipeName, err)
		}
	}
	if foreign == nil {
		return fmt.Errorf("%s: marked unconvertible with every contribution in %s", e.IngredientName, e.Unit)
	}
	return fmt.Errorf("%s (%s): %w", e.IngredientName, foreign.RecipeName,
		&units.ConversionError{From: units.Normalize(foreign.Unit), To: units.Normalize(e.Unit)})
}

func (s *productionService) Preview(ctx context.Context, actor models.Actor, id string) (*models.ProductionPreview, error) {
	sheet, err := s.getSheet(ctx, s.db, actor, id, false)
	if err != nil {
		return nil, err
	}
	if sheet.Completed && sheet.SnapshotData != nil {
		snap := sheet.SnapshotData
		return &models.ProductionPreview{
			SheetID:     sheet.ID,
			Status:      sheet.Status(),
			Recipes:     snap.Recipes,
			Ingredients: snap.Ingredients,
			TotalCost:   snap.TotalCost,
			Snapshot:    snap,
		}, nil
	}

	scaled, aggregated, err := s.plan(ctx, s.db, actor, sheet)
	if err != nil {
		return nil, err
	}
	short, err := s.shortages(ctx, s.db, actor, aggregated, false)
	if err != nil {
		return nil, err
	}
	preview := &models.ProductionPreview{
		SheetID:     sheet.ID,
		Status:      sheet.Status(),
		Recipes:     aggregation.Summaries(scaled),
		Ingredients: aggregated,
		TotalCost:   aggregation.TotalCost(scaled),
	}
	for i := range short {
		preview.Shortages = append(preview.Shortages, short[i].Shortage())
	}
	return preview, nil
}

func (s *productionService) Complete(ctx context.Context, actor models.Actor, id string) (*CompleteResult, error) {
	start := time.Now()
	var result *CompleteResult
	err := database.RunInTx(ctx, s.db, s.retries, func(tx *sql.Tx) error {
		var txErr error
		result, txErr = s.complete(ctx, tx, actor, id)
		return txErr
	})
	s.metrics.ProductionCompleted(time.Since(start), outcome(err))
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			utils.LogWarn("Production sheet cannot be completed", map[string]interface{}{
				"bakery_id": actor.BakeryID, "sheet_id": id, "shortages": len(StockShortages(err)),
			})
		}
		return nil, err
	}

	for i := range result.Consumption {
		s.metrics.LedgerOperation("consume", outcome(nil))
		if s.events != nil {
			s.events.Publish(consumedEvent(actor, &result.Consumption[i]))
		}
	}
	if s.events != nil {
		s.events.Publish(events.Event{
			Type:              events.TypeProductionCompleted,
			BakeryID:          actor.BakeryID,
			ProductionSheetID: result.Sheet.ID,
			ActorID:           actor.UserID,
		})
	}
	snap := result.Sheet.SnapshotData
	utils.LogInfo("Production sheet completed", map[string]interface{}{
		"bakery_id": actor.BakeryID, "sheet_id": result.Sheet.ID, "ingredients": len(snap.Ingredients),
		"total_cost": snap.TotalCost.String(), "consumed_cost": snap.ConsumedCost.String(),
	})
	return result, nil
}

func (s *productionService) complete(ctx context.Context, tx *sql.Tx, actor models.Actor, id string) (*CompleteResult, error) {
	sheet, err := s.getSheet(ctx, tx, actor, id, true)
	if err != nil {
		return nil, err
	}
	if sheet.Completed {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyCompleted, id)
	}

	scaled, aggregated, err := s.plan(ctx, tx, actor, sheet)
	if err != nil {
		return nil, err
	}
	if e := firstUnconvertible(aggregated); e != nil {
		return nil, s.unconvertibleError(e)
	}
	short, err := s.shortages(ctx, tx, actor, aggregated, true)
	if err != nil {
		return nil, err
	}
	if len(short) > 0 {
		return nil, &ShortageError{Shortages: short}
	}

	ordered := append([]models.AggregatedIngredient(nil), aggregated...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].IngredientID < ordered[j].IngredientID })

	sheetID := sheet.ID
	consumed := decimal.Zero
	results := make([]ConsumeResult, 0, len(ordered))
	for _, e := range ordered {
		if !e.TotalQuantity.IsPositive() {
			continue
		}
		res, err := s.ledger.ConsumeInTx(ctx, tx, actor, ConsumeRequest{
			IngredientID:      e.IngredientID,
			Quantity:          e.TotalQuantity,
			Unit:              e.Unit,
			Reason:            models.TransactionUse,
			ProductionSheetID: &sheetID,
		})
		if err != nil {
			return nil, err
		}
		consumed = consumed.Add(res.Cost)
		results = append(results, *res)
	}

	completedAt := time.Now().UTC().Truncate(time.Microsecond)
	completedBy := actor.UserID
	sheet.CompletedAt = &completedAt
	sheet.CompletedBy = &completedBy
	sheet.SnapshotData = &models.ProductionSnapshot{
		CompletedAt:  completedAt,
		CompletedBy:  completedBy,
		Recipes:      aggregation.Summaries(scaled),
		Ingredients:  aggregated,
		TotalCost:    aggregation.TotalCost(scaled),
		ConsumedCost: consumed,
	}
	if err := s.sheetRepo.MarkCompleted(ctx, tx, sheet); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyCompleted, id)
		}
		return nil, err
	}
	if err := archiveSnapshot(ctx, tx, s.archive, actor, models.SnapshotEntityProductionSheet, sheet.ID, sheet.SnapshotData); err != nil {
		return nil, err
	}
	return &CompleteResult{Sheet: *sheet, Consumption: results}, nil
}
