package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bakery_ops_backend/internal/costing"
	"bakery_ops_backend/internal/database"
	"bakery_ops_backend/internal/events"
	"bakery_ops_backend/internal/metrics"
	"bakery_ops_backend/internal/models"
	"bakery_ops_backend/internal/repositories"
	"bakery_ops_backend/internal/units"
	"bakery_ops_backend/pkg/utils"
)

// --- Data Transfer Objects (DTOs) ---

// ReceiveRequest records a purchase. Quantity and CostPerUnit are in Unit,
// the unit the goods were bought in.
type ReceiveRequest struct {
	IngredientID string          `json:"-"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit" binding:"required"`
	CostPerUnit  decimal.Decimal `json:"cost_per_unit"`
	VendorID     *string         `json:"vendor_id"`
	PurchasedAt  *time.Time      `json:"purchased_at"`
	ExpiresAt    *time.Time      `json:"expires_at"`
	Notes        *string         `json:"notes"`
}

type ReceiveResult struct {
	Lot         models.InventoryLot         `json:"lot"`
	Transaction models.InventoryTransaction `json:"transaction"`
	CurrentQty  decimal.Decimal             `json:"current_qty"`
}

// ConsumeRequest draws stock down in FIFO order. An empty Unit means the
// ingredient's stock unit; an empty Reason means USE.
type ConsumeRequest struct {
	IngredientID      string                 `json:"-"`
	Quantity          decimal.Decimal        `json:"quantity"`
	Unit              string                 `json:"unit"`
	Reason            models.TransactionType `json:"reason"`
	ProductionSheetID *string                `json:"production_sheet_id"`
	Notes             *string                `json:"notes"`
}

// LotAllocation is the share of a consumption taken from one lot.
type LotAllocation struct {
	LotID       string          `json:"lot_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	CostPerUnit decimal.Decimal `json:"cost_per_unit"`
	Cost        decimal.Decimal `json:"cost"`
	Remaining   decimal.Decimal `json:"remaining_qty"`
}

type ConsumeResult struct {
	Transaction models.InventoryTransaction `json:"transaction"`
	Allocations []LotAllocation             `json:"allocations"`
	Quantity    decimal.Decimal             `json:"quantity"`
	Unit        string                      `json:"unit"`
	Cost        decimal.Decimal             `json:"cost"`
	CurrentQty  decimal.Decimal             `json:"current_qty"`
}

// AdjustRequest corrects a lot's remaining quantity by Delta. Delta is in the
// ingredient's stock unit unless Unit is given.
type AdjustRequest struct {
	Delta decimal.Decimal `json:"delta"`
	Unit  string          `json:"unit"`
	Notes *string         `json:"notes"`
}

type AdjustResult struct {
	Lot         models.InventoryLot         `json:"lot"`
	Transaction models.InventoryTransaction `json:"transaction"`
	CurrentQty  decimal.Decimal             `json:"current_qty"`
}

// --- End of DTOs ---

// LedgerService is the FIFO inventory ledger. Every mutation runs in one
// database transaction that locks the ingredient row before its lots.
type LedgerService interface {
	Receive(ctx context.Context, actor models.Actor, req ReceiveRequest) (*ReceiveResult, error)
	Consume(ctx context.Context, actor models.Actor, req ConsumeRequest) (*ConsumeResult, error)
	// ConsumeInTx runs a consumption inside the caller's transaction and
	// publishes nothing; the caller does that after commit.
	ConsumeInTx(ctx context.Context, executor repositories.SQLExecutor, actor models.Actor, req ConsumeRequest) (*ConsumeResult, error)
	Adjust(ctx context.Context, actor models.Actor, lotID string, req AdjustRequest) (*AdjustResult, error)
	RemainingValue(ctx context.Context, actor models.Actor, ingredientID string) (decimal.Decimal, error)
	StockLevel(ctx context.Context, actor models.Actor, ingredientID string) (*models.StockLevel, error)
	ListLots(ctx context.Context, actor models.Actor, ingredientID string, activeOnly bool) ([]models.InventoryLot, error)
	GetLot(ctx context.Context, actor models.Actor, lotID string) (*models.InventoryLot, error)
	ListTransactions(ctx context.Context, actor models.Actor, filters models.TransactionFilters) ([]models.InventoryTransaction, int, error)
	InventoryReport(ctx context.Context, actor models.Actor) (*models.InventoryReport, error)
}

type ledgerService struct {
	db             *sql.DB
	retries        int
	ingredientRepo repositories.IngredientRepository
	lotRepo        repositories.LotRepository
	txnRepo        repositories.TransactionRepository
	conversions    ConversionProvider
	metrics        *metrics.Metrics
	events         events.Publisher
}

// NewLedgerService creates a new instance of LedgerService. m and pub may be nil.
func NewLedgerService(
	db *sql.DB,
	retries int,
	ir repositories.IngredientRepository,
	lr repositories.LotRepository,
	tr repositories.TransactionRepository,
	conversions ConversionProvider,
	m *metrics.Metrics,
	pub events.Publisher,
) LedgerService {
	return &ledgerService{
		db:             db,
		retries:        retries,
		ingredientRepo: ir,
		lotRepo:        lr,
		txnRepo:        tr,
		conversions:    conversions,
		metrics:        m,
		events:         pub,
	}
}

func (s *ledgerService) publish(ev events.Event) {
	if s.events != nil {
		s.events.Publish(ev)
	}
}

// toStockUnit converts qty into the stock unit at stored precision.
func (s *ledgerService) toStockUnit(qty decimal.Decimal, unit, stockUnit string) (decimal.Decimal, error) {
	converted, err := s.conversions.Table().Convert(qty, unit, stockUnit)
	if err != nil {
		return decimal.Zero, err
	}
	return costing.RoundQuantity(converted), nil
}

func (s *ledgerService) lockIngredient(ctx context.Context, ex repositories.SQLExecutor, actor models.Actor, id string) (*models.Ingredient, error) {
	ing, err := s.ingredientRepo.GetByID(ctx, ex, actor.BakeryID, id, true)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrIngredientNotFound, id)
		}
		return nil, err
	}
	return ing, nil
}

func (s *ledgerService) Receive(ctx context.Context, actor models.Actor, req ReceiveRequest) (*ReceiveResult, error) {
	var result *ReceiveResult
	req.Quantity = costing.RoundQuantity(req.Quantity)
	req.CostPerUnit = costing.RoundPrice(req.CostPerUnit)
	err := s.validateReceive(req)
	if err == nil {
		err = database.RunInTx(ctx, s.db, s.retries, func(tx *sql.Tx) error {
			var txErr error
			result, txErr = s.receive(ctx, tx, actor, req)
			return txErr
		})
	}
	s.metrics.LedgerOperation("receive", outcome(err))
	if err != nil {
		return nil, err
	}

	qty, current := result.Lot.StockQty, result.CurrentQty
	s.publish(events.Event{
		Type:          events.TypeLotReceived,
		BakeryID:      actor.BakeryID,
		IngredientID:  result.Lot.IngredientID,
		LotID:         result.Lot.ID,
		TransactionID: result.Transaction.ID,
		Quantity:      &qty,
		Unit:          result.Transaction.Unit,
		CurrentQty:    &current,
		ActorID:       actor.UserID,
	})
	return result, nil
}

func (s *ledgerService) validateReceive(req ReceiveRequest) error {
	switch {
	case !req.Quantity.IsPositive():
		return validationError("quantity must be greater than zero")
	case req.CostPerUnit.IsNegative():
		return validationError("cost_per_unit must not be negative")
	case utils.IsEmpty(req.Unit):
		return validationError("unit is required")
	case req.ExpiresAt != nil && req.PurchasedAt != nil && req.ExpiresAt.Before(*req.PurchasedAt):
		return validationError("expires_at must not be before purchased_at")
	}
	return nil
}

func (s *ledgerService) receive(ctx context.Context, tx *sql.Tx, actor models.Actor, req ReceiveRequest) (*ReceiveResult, error) {
	ing, err := s.lockIngredient(ctx, tx, actor, req.IngredientID)
	if err != nil {
		return nil, err
	}

	stockQty, err := s.toStockUnit(req.Quantity, req.Unit, ing.Unit)
	if err != nil {
		return nil, fmt.Errorf("receiving %s into %s: %w", req.Unit, ing.Name, err)
	}
	if !stockQty.IsPositive() {
		return nil, validationError("quantity is too small to record in %s", ing.Unit)
	}
	costPerStockUnit, err := costing.PerStockUnit(s.conversions.Table(), req.CostPerUnit, req.Unit, ing.Unit)
	if err != nil {
		return nil, err
	}

	lot := models.InventoryLot{
		ID:                  utils.NewID(),
		BakeryID:            actor.BakeryID,
		IngredientID:        ing.ID,
		PurchaseQty:         req.Quantity,
		PurchaseUnit:        units.Normalize(req.Unit),
		StockQty:            stockQty,
		RemainingQty:        stockQty,
		CostPerUnit:         costPerStockUnit,
		PurchaseCostPerUnit: req.CostPerUnit,
		ExpiresAt:           req.ExpiresAt,
		VendorID:            utils.TrimPtr(req.VendorID),
		Notes:               utils.TrimPtr(req.Notes),
	}
	if req.PurchasedAt != nil {
		lot.PurchasedAt = *req.PurchasedAt
	}
	if err := s.lotRepo.Create(ctx, tx, &lot); err != nil {
		return nil, err
	}

	current := ing.CurrentQty.Add(stockQty)
	if err := s.ingredientRepo.UpdateCurrentQty(ctx, tx, actor.BakeryID, ing.ID, current); err != nil {
		return nil, err
	}

	lotID := lot.ID
	txn := models.InventoryTransaction{
		ID:           utils.NewID(),
		BakeryID:     actor.BakeryID,
		IngredientID: ing.ID,
		LotID:        &lotID,
		Type:         models.TransactionReceive,
		Quantity:     stockQty,
		Unit:         ing.Unit,
		Notes:        lot.Notes,
		ActorID:      actor.UserID,
	}
	if err := s.txnRepo.Create(ctx, tx, &txn); err != nil {
		return nil, err
	}

	utils.LogDebug("Lot received", map[string]interface{}{
		"bakery_id": actor.BakeryID, "ingredient_id": ing.ID, "lot_id": lot.ID,
		"quantity": stockQty.String(), "unit": ing.Unit,
	})
	txn.IngredientName = ing.Name
	return &ReceiveResult{Lot: lot, Transaction: txn, CurrentQty: current}, nil
}

func (s *ledgerService) Consume(ctx context.Context, actor models.Actor, req ConsumeRequest) (*ConsumeResult, error) {
	var result *ConsumeResult
	err := database.RunInTx(ctx, s.db, s.retries, func(tx *sql.Tx) error {
		var txErr error
		result, txErr = s.ConsumeInTx(ctx, tx, actor, req)
		return txErr
	})
	s.metrics.LedgerOperation("consume", outcome(err))
	if err != nil {
		return nil, err
	}
	s.publish(consumedEvent(actor, result))
	return result, nil
}

func consumedEvent(actor models.Actor, result *ConsumeResult) events.Event {
	qty, current := result.Quantity, result.CurrentQty
	ev := events.Event{
		Type:           events.TypeStockConsumed,
		BakeryID:       actor.BakeryID,
		IngredientID:   result.Transaction.IngredientID,
		IngredientName: result.Transaction.IngredientName,
		TransactionID:  result.Transaction.ID,
		Quantity:       &qty,
		Unit:           result.Unit,
		CurrentQty:     &current,
		ActorID:        actor.UserID,
	}
	if result.Transaction.ProductionSheetID != nil {
		ev.ProductionSheetID = *result.Transaction.ProductionSheetID
	}
	return ev
}

func (s *ledgerService) ConsumeInTx(ctx context.Context, ex repositories.SQLExecutor, actor models.Actor, req ConsumeRequest) (*ConsumeResult, error) {
	if !req.Quantity.IsPositive() {
		return nil, validationError("quantity must be greater than zero")
	}
	reason := req.Reason
	if reason == "" {
		reason = models.TransactionUse
	}
	if reason != models.TransactionUse && reason != models.TransactionWaste {
		return nil, validationError("reason must be USE or WASTE")
	}

	ing, err := s.lockIngredient(ctx, ex, actor, req.IngredientID)
	if err != nil {
		return nil, err
	}
	unit := req.Unit
	if utils.IsEmpty(unit) {
		unit = ing.Unit
	}
	need, err := s.toStockUnit(req.Quantity, unit, ing.Unit)
	if err != nil {
		return nil, fmt.Errorf("consuming %s of %s: %w", unit, ing.Name, err)
	}
	if !need.IsPositive() {
		return nil, validationError("quantity is too small to record in %s", ing.Unit)
	}

	lots, err := s.lotRepo.ListByIngredient(ctx, ex, actor.BakeryID, ing.ID, true, true)
	if err != nil {
		return nil, err
	}
	available := decimal.Zero
	for _, l := range lots {
		available = available.Add(l.RemainingQty)
	}
	if available.LessThan(need) {
		return nil, newInsufficientStock(ing, need, available)
	}

	result := &ConsumeResult{Quantity: need, Unit: ing.Unit, Cost: decimal.Zero}
	outstanding := need
	for _, lot := range lots {
		if !outstanding.IsPositive() {
			break
		}
		if lot.IsDepleted() {
			continue
		}
		take := decimal.Min(outstanding, lot.RemainingQty)
		remaining := lot.RemainingQty.Sub(take)
		if err := s.lotRepo.UpdateRemaining(ctx, ex, actor.BakeryID, lot.ID, remaining); err != nil {
			return nil, err
		}
		cost := take.Mul(lot.CostPerUnit)
		result.Allocations = append(result.Allocations, LotAllocation{
			LotID:       lot.ID,
			Quantity:    take,
			CostPerUnit: lot.CostPerUnit,
			Cost:        cost,
			Remaining:   remaining,
		})
		result.Cost = result.Cost.Add(cost)
		outstanding = outstanding.Sub(take)
	}

	txn := models.InventoryTransaction{
		ID:                utils.NewID(),
		BakeryID:          actor.BakeryID,
		IngredientID:      ing.ID,
		Type:              reason,
		Quantity:          need.Neg(),
		Unit:              ing.Unit,
		ProductionSheetID: req.ProductionSheetID,
		Notes:             utils.TrimPtr(req.Notes),
		ActorID:           actor.UserID,
	}
	if err := s.txnRepo.Create(ctx, ex, &txn); err != nil {
		return nil, err
	}
	for _, a := range result.Allocations {
		c := models.LotConsumption{
			ID:            utils.NewID(),
			TransactionID: txn.ID,
			LotID:         a.LotID,
			Quantity:      a.Quantity,
			CostPerUnit:   a.CostPerUnit,
		}
		if err := s.txnRepo.CreateLotConsumption(ctx, ex, &c); err != nil {
			return nil, err
		}
		txn.Consumptions = append(txn.Consumptions, c)
	}

	result.CurrentQty = ing.CurrentQty.Sub(need)
	if err := s.ingredientRepo.UpdateCurrentQty(ctx, ex, actor.BakeryID, ing.ID, result.CurrentQty); err != nil {
		return nil, err
	}

	utils.LogDebug("Stock consumed", map[string]interface{}{
		"bakery_id": actor.BakeryID, "ingredient_id": ing.ID, "type": string(reason),
		"quantity": need.String(), "unit": ing.Unit, "lots": len(result.Allocations),
	})
	txn.IngredientName = ing.Name
	result.Transaction = txn
	return result, nil
}

func (s *ledgerService) Adjust(ctx context.Context, actor models.Actor, lotID string, req AdjustRequest) (*AdjustResult, error) {
	var result *AdjustResult
	var err error
	req.Delta = costing.RoundQuantity(req.Delta)
	if req.Delta.IsZero() {
		err = fmt.Errorf("%w: delta must not be zero", ErrInvalidAdjustment)
	} else {
		err = database.RunInTx(ctx, s.db, s.retries, func(tx *sql.Tx) error {
			var txErr error
			result, txErr = s.adjust(ctx, tx, actor, lotID, req)
			return txErr
		})
	}
	s.metrics.LedgerOperation("adjust", outcome(err))
	if err != nil {
		return nil, err
	}

	delta, current := result.Transaction.Quantity, result.CurrentQty
	s.publish(events.Event{
		Type:          events.TypeLotAdjusted,
		BakeryID:      actor.BakeryID,
		IngredientID:  result.Lot.IngredientID,
		LotID:         result.Lot.ID,
		TransactionID: result.Transaction.ID,
		Quantity:      &delta,
		Unit:          result.Transaction.Unit,
		CurrentQty:    &current,
		ActorID:       actor.UserID,
	})
	return result, nil
}

func (s *ledgerService) adjust(ctx context.Context, tx *sql.Tx, actor models.Actor, lotID string, req AdjustRequest) (*AdjustResult, error) {
	// Resolve the ingredient first so the lock order matches Consume.
	lot, err := s.lotRepo.GetByID(ctx, tx, actor.BakeryID, lotID, false)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrLotNotFound, lotID)
		}
		return nil, err
	}
	ing, err := s.lockIngredient(ctx, tx, actor, lot.IngredientID)
	if err != nil {
		return nil, err
	}
	if lot, err = s.lotRepo.GetByID(ctx, tx, actor.BakeryID, lotID, true); err != nil {
		return nil, err
	}

	delta := req.Delta
	if !utils.IsEmpty(req.Unit) {
		if delta, err = s.toStockUnit(req.Delta, req.Unit, ing.Unit); err != nil {
			return nil, fmt.Errorf("adjusting lot %s: %w", lot.ID, err)
		}
		if delta.IsZero() {
			return nil, fmt.Errorf("%w: delta is too small to record in %s", ErrInvalidAdjustment, ing.Unit)
		}
	}

	remaining := lot.RemainingQty.Add(delta)
	if remaining.IsNegative() {
		return nil, fmt.Errorf("%w: lot %s has %s %s left, cannot remove %s",
			ErrInvalidAdjustment, lot.ID, lot.RemainingQty, ing.Unit, delta.Neg())
	}
	if remaining.GreaterThan(lot.StockQty) {
		return nil, fmt.Errorf("%w: lot %s would hold %s %s, more than the %s received",
			ErrInvalidAdjustment, lot.ID, remaining, ing.Unit, lot.StockQty)
	}

	if err := s.lotRepo.UpdateRemaining(ctx, tx, actor.BakeryID, lot.ID, remaining); err != nil {
		return nil, err
	}
	lot.RemainingQty = remaining

	current := ing.CurrentQty.Add(delta)
	if err := s.ingredientRepo.UpdateCurrentQty(ctx, tx, actor.BakeryID, ing.ID, current); err != nil {
		return nil, err
	}

	lotRef := lot.ID
	txn := models.InventoryTransaction{
		ID:           utils.NewID(),
		BakeryID:     actor.BakeryID,
		IngredientID: ing.ID,
		LotID:        &lotRef,
		Type:         models.TransactionAdjust,
		Quantity:     delta,
		Unit:         ing.Unit,
		Notes:        utils.TrimPtr(req.Notes),
		ActorID:      actor.UserID,
	}
	if err := s.txnRepo.Create(ctx, tx, &txn); err != nil {
		return nil, err
	}

	utils.LogDebug("Lot adjusted", map[string]interface{}{
		"bakery_id": actor.BakeryID, "lot_id": lot.ID, "delta": delta.String(), "unit": ing.Unit,
	})
	txn.IngredientName = ing.Name
	return &AdjustResult{Lot: *lot, Transaction: txn, CurrentQty: current}, nil
}

func (s *ledgerService) getIngredient(ctx context.Context, actor models.Actor, id string) (*models.Ingredient, error) {
	ing, err := s.ingredientRepo.GetByID(ctx, s.db, actor.BakeryID, id, false)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrIngredientNotFound, id)
		}
		return nil, err
	}
	return ing, nil
}

func (s *ledgerService) RemainingValue(ctx context.Context, actor models.Actor, ingredientID string) (decimal.Decimal, error) {
	if _, err := s.getIngredient(ctx, actor, ingredientID); err != nil {
		return decimal.Zero, err
	}
	lots, err := s.lotRepo.ListByIngredient(ctx, s.db, actor.BakeryID, ingredientID, true, false)
	if err != nil {
		return decimal.Zero, err
	}
	return lotsValue(lots), nil
}

func lotsValue(lots []models.InventoryLot) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lots {
		if !l.IsDepleted() {
			total = total.Add(l.Value())
		}
	}
	return total
}

func (s *ledgerService) StockLevel(ctx context.Context, actor models.Actor, ingredientID string) (*models.StockLevel, error) {
	ing, err := s.getIngredient(ctx, actor, ingredientID)
	if err != nil {
		return nil, err
	}
	lots, err := s.lotRepo.ListByIngredient(ctx, s.db, actor.BakeryID, ingredientID, true, false)
	if err != nil {
		return nil, err
	}
	level := stockLevel(*ing, lots)
	return &level, nil
}

// stockLevel summarises an ingredient from its lots.
func stockLevel(ing models.Ingredient, lots []models.InventoryLot) models.StockLevel {
	level := models.StockLevel{
		IngredientID:      ing.ID,
		IngredientName:    ing.Name,
		Unit:              ing.Unit,
		CurrentQty:        ing.CurrentQty,
		LotQty:            decimal.Zero,
		RemainingValue:    decimal.Zero,
		LowStockThreshold: ing.LowStockThreshold,
	}
	for _, l := range lots {
		if l.IsDepleted() {
			continue
		}
		level.ActiveLots++
		level.LotQty = level.LotQty.Add(l.RemainingQty)
		level.RemainingValue = level.RemainingValue.Add(l.Value())
	}
	level.Status = models.StockStatus(level.CurrentQty, ing.LowStockThreshold)
	return level
}

func (s *ledgerService) ListLots(ctx context.Context, actor models.Actor, ingredientID string, activeOnly bool) ([]models.InventoryLot, error) {
	if _, err := s.getIngredient(ctx, actor, ingredientID); err != nil {
		return nil, err
	}
	return s.lotRepo.ListByIngredient(ctx, s.db, actor.BakeryID, ingredientID, activeOnly, false)
}

func (s *ledgerService) GetLot(ctx context.Context, actor models.Actor, lotID string) (*models.InventoryLot, error) {
	lot, err := s.lotRepo.GetByID(ctx, s.db, actor.BakeryID, lotID, false)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrLotNotFound, lotID)
		}
		return nil, err
	}
	return lot, nil
}

func (s *ledgerService) ListTransactions(ctx context.Context, actor models.Actor, filters models.TransactionFilters) ([]models.InventoryTransaction, int, error) {
	if filters.Type != "" && !filters.Type.Valid() {
		return nil, 0, validationError("unknown transaction type %q", filters.Type)
	}
	if filters.PageSize > 500 {
		filters.PageSize = 500
	}
	txns, total, err := s.txnRepo.List(ctx, s.db, actor.BakeryID, filters)
	if err != nil {
		return nil, 0, err
	}

	var ids []string
	for _, t := range txns {
		if t.Type == models.TransactionUse || t.Type == models.TransactionWaste {
			ids = append(ids, t.ID)
		}
	}
	consumptions, err := s.txnRepo.ListConsumptions(ctx, s.db, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range txns {
		txns[i].Consumptions = consumptions[txns[i].ID]
	}
	return txns, total, nil
}

func (s *ledgerService) InventoryReport(ctx context.Context, actor models.Actor) (*models.InventoryReport, error) {
	ingredients, err := s.ingredientRepo.List(ctx, s.db, actor.BakeryID)
	if err != nil {
		return nil, err
	}
	lots, err := s.lotRepo.ListByBakery(ctx, s.db, actor.BakeryID)
	if err != nil {
		return nil, err
	}
	byIngredient := make(map[string][]models.InventoryLot)
	for _, l := range lots {
		byIngredient[l.IngredientID] = append(byIngredient[l.IngredientID], l)
	}

	nowTime := time.Now()
	report := &models.InventoryReport{Items: make([]models.InventoryReportItem, 0, len(ingredients)), TotalValue: decimal.Zero}
	for _, ing := range ingredients {
		item := models.InventoryReportItem{
			StockLevel:    stockLevel(ing, byIngredient[ing.ID]),
			ExpiredQty:    decimal.Zero,
			ReferenceCost: ing.CostPerUnit,
		}
		for _, l := range byIngredient[ing.ID] {
			if !l.IsDepleted() && l.IsExpired(nowTime) {
				item.ExpiredLots++
				item.ExpiredQty = item.ExpiredQty.Add(l.RemainingQty)
			}
		}
		switch item.Status {
		case models.StockStatusLowStock:
			report.LowStock++
		case models.StockStatusOutOfStock:
			report.OutOfStock++
		}
		report.ExpiredLots += item.ExpiredLots
		report.TotalValue = report.TotalValue.Add(item.RemainingValue)
		report.Items = append(report.Items, item)
	}
	return report, nil
}
