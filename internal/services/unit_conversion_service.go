package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"bakery_ops_backend/internal/database"
	"bakery_ops_backend/internal/models"
	"bakery_ops_backend/internal/repositories"
	"bakery_ops_backend/internal/units"
	"bakery_ops_backend/pkg/utils"
)

// ConversionProvider hands out the current conversion table.
type ConversionProvider interface {
	Table() *units.Table
}

// UpsertConversionRequest creates or replaces one directed pair.
type UpsertConversionRequest struct {
	FromUnit string              `json:"from_unit" binding:"required"`
	ToUnit   string              `json:"to_unit" binding:"required"`
	Factor   decimal.Decimal     `json:"factor"`
	Category models.UnitCategory `json:"category" binding:"required"`
}

// ConvertRequest asks for a quantity in another unit.
type ConvertRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
	FromUnit string          `json:"from_unit" binding:"required"`
	ToUnit   string          `json:"to_unit" binding:"required"`
}

// ConvertResult is the answer to a ConvertRequest.
type ConvertResult struct {
	Quantity decimal.Decimal `json:"quantity"`
	FromUnit string          `json:"from_unit"`
	Result   decimal.Decimal `json:"result"`
	ToUnit   string          `json:"to_unit"`
	Factor   decimal.Decimal `json:"factor"`
}

// UnitConversionService owns the in-memory conversion table and its admin surface.
type UnitConversionService interface {
	ConversionProvider
	Reload(ctx context.Context) error
	List() []models.UnitConversion
	Units() map[models.UnitCategory][]string
	Convert(req ConvertRequest) (*ConvertResult, error)
	Upsert(ctx context.Context, actor models.Actor, req UpsertConversionRequest) (*models.UnitConversion, error)
}

type unitConversionService struct {
	repo    repositories.UnitConversionRepository
	db      *sql.DB
	retries int
	table   atomic.Pointer[units.Table]
}

// NewUnitConversionService creates the service and loads the table.
func NewUnitConversionService(ctx context.Context, repo repositories.UnitConversionRepository, db *sql.DB, retries int) (UnitConversionService, error) {
	s := &unitConversionService{repo: repo, db: db, retries: retries}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *unitConversionService) Table() *units.Table {
	return s.table.Load()
}

// Reload rebuilds the table from storage and swaps it in atomically.
func (s *unitConversionService) Reload(ctx context.Context) error {
	rows, err := s.repo.List(ctx, s.db)
	if err != nil {
		return fmt.Errorf("loading unit conversions: %w", err)
	}
	table, err := units.NewTable(rows)
	if err != nil {
		return fmt.Errorf("building unit conversion table: %w", err)
	}
	s.table.Store(table)
	utils.LogDebug("Unit conversion table loaded", map[string]interface{}{"rows": len(rows)})
	return nil
}

func (s *unitConversionService) List() []models.UnitConversion {
	return s.Table().Conversions()
}

func (s *unitConversionService) Units() map[models.UnitCategory][]string {
	return s.Table().Units()
}

func (s *unitConversionService) Convert(req ConvertRequest) (*ConvertResult, error) {
	if utils.IsEmpty(req.FromUnit) || utils.IsEmpty(req.ToUnit) {
		return nil, validationError("from_unit and to_unit are required")
	}
	factor, err := s.Table().ResolveFactor(req.FromUnit, req.ToUnit)
	if err != nil {
		return nil, err
	}
	return &ConvertResult{
		Quantity: req.Quantity,
		FromUnit: units.Normalize(req.FromUnit),
		Result:   req.Quantity.Mul(factor),
		ToUnit:   units.Normalize(req.ToUnit),
		Factor:   factor,
	}, nil
}

// Upsert is restricted to platform administrators; the table is global.
func (s *unitConversionService) Upsert(ctx context.Context, actor models.Actor, req UpsertConversionRequest) (*models.UnitConversion, error) {
	if !actor.IsPlatformAdmin {
		return nil, fmt.Errorf("%w: only platform administrators can change unit conversions", ErrForbidden)
	}
	conv := &models.UnitConversion{
		FromUnit: units.Normalize(req.FromUnit),
		ToUnit:   units.Normalize(req.ToUnit),
		Factor:   req.Factor,
		Category: models.UnitCategory(strings.ToLower(string(req.Category))),
	}
	switch {
	case conv.FromUnit == "" || conv.ToUnit == "":
		return nil, validationError("from_unit and to_unit are required")
	case conv.FromUnit == conv.ToUnit:
		return nil, validationError("a unit always converts to itself with factor 1")
	case !conv.Factor.IsPositive():
		return nil, validationError("factor must be greater than zero")
	case !conv.Category.Valid():
		return nil, validationError("category must be one of weight, volume, count")
	}

	// Reject rows the table would refuse to load.
	if _, err := units.NewTable(append(s.List(), *conv)); err != nil {
		return nil, validationError("%v", err)
	}

	err := database.RunInTx(ctx, s.db, s.retries, func(tx *sql.Tx) error {
		return s.repo.Upsert(ctx, tx, conv)
	})
	if err != nil {
		return nil, err
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	utils.LogInfo("Unit conversion saved", map[string]interface{}{
		"from": conv.FromUnit, "to": conv.ToUnit, "factor": conv.Factor.String(), "by": actor.UserID,
	})
	return conv, nil
}
