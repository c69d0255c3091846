package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnitCategory groups units that measure the same dimension.
type UnitCategory string

const (
	UnitCategoryWeight UnitCategory = "weight"
	UnitCategoryVolume UnitCategory = "volume"
	UnitCategoryCount  UnitCategory = "count"
)

// Valid reports whether c is one of the known categories.
func (c UnitCategory) Valid() bool {
	switch c {
	case UnitCategoryWeight, UnitCategoryVolume, UnitCategoryCount:
		return true
	}
	return false
}

// UnitConversion is a directed edge: qty in ToUnit = qty in FromUnit * Factor.
type UnitConversion struct {
	ID        string          `json:"id" db:"id"`
	FromUnit  string          `json:"from_unit" db:"from_unit"`
	ToUnit    string          `json:"to_unit" db:"to_unit"`
	Factor    decimal.Decimal `json:"factor" db:"factor"`
	Category  UnitCategory    `json:"category" db:"category"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}
