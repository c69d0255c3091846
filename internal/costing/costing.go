// Package costing prices recipe quantities against an ingredient's stock
// unit cost.
package costing

import (
	"github.com/shopspring/decimal"

	"bakery_ops_backend/internal/units"
)

// PricePrecision is the number of decimal places kept when a purchase price
// is divided down to a per-stock-unit price.
const PricePrecision = 8

// QuantityPrecision is the number of decimal places stored for stock
// quantities after unit conversion.
const QuantityPrecision = 6

// RoundQuantity rounds q to the precision quantities are stored with.
func RoundQuantity(q decimal.Decimal) decimal.Decimal {
	return q.Round(QuantityPrecision)
}

// RoundPrice rounds p to the precision prices and costs are stored with.
func RoundPrice(p decimal.Decimal) decimal.Decimal {
	return p.Round(PricePrecision)
}

// Converter is satisfied by *units.Table.
type Converter interface {
	Convert(qty decimal.Decimal, from, to string) (decimal.Decimal, error)
	ResolveFactor(from, to string) (decimal.Decimal, error)
}

// CostOf prices qty (in recipeUnit) at costPerStockUnit. ok is false when
// the quantity cannot be expressed in stockUnit; the cost is then unknown,
// which callers must not read as zero.
func CostOf(conv Converter, qty decimal.Decimal, recipeUnit string, costPerStockUnit decimal.Decimal, stockUnit string) (cost decimal.Decimal, ok bool) {
	if units.Normalize(recipeUnit) == units.Normalize(stockUnit) {
		return qty.Mul(costPerStockUnit), true
	}
	if conv == nil {
		return decimal.Zero, false
	}
	inStock, err := conv.Convert(qty, recipeUnit, stockUnit)
	if err != nil {
		return decimal.Zero, false
	}
	return inStock.Mul(costPerStockUnit), true
}

// PerStockUnit turns a price per purchase unit into a price per stock unit.
// Buying 1 kg at 2.00 with a stock unit of g gives 0.002 per g.
func PerStockUnit(conv Converter, pricePerPurchaseUnit decimal.Decimal, purchaseUnit, stockUnit string) (decimal.Decimal, error) {
	if units.Normalize(purchaseUnit) == units.Normalize(stockUnit) {
		return pricePerPurchaseUnit, nil
	}
	factor, err := conv.ResolveFactor(purchaseUnit, stockUnit)
	if err != nil {
		return decimal.Zero, err
	}
	return pricePerPurchaseUnit.DivRound(factor, PricePrecision), nil
}
