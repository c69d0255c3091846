package units

import (
	"github.com/shopspring/decimal"

	"bakery_ops_backend/internal/models"
)

type defaultRow struct {
	from, to, factor string
	category         models.UnitCategory
}

// Reference data seeded into unit_conversions on first start. Both
// directions are listed explicitly where they make sense.
var defaultRows = []defaultRow{
	// weight
	{"kg", "g", "1000", models.UnitCategoryWeight},
	{"g", "kg", "0.001", models.UnitCategoryWeight},
	{"g", "mg", "1000", models.UnitCategoryWeight},
	{"mg", "g", "0.001", models.UnitCategoryWeight},
	{"lb", "g", "453.59237", models.UnitCategoryWeight},
	{"g", "lb", "0.00220462262", models.UnitCategoryWeight},
	{"oz", "g", "28.349523125", models.UnitCategoryWeight},
	{"g", "oz", "0.0352739619", models.UnitCategoryWeight},
	{"lb", "oz", "16", models.UnitCategoryWeight},
	{"oz", "lb", "0.0625", models.UnitCategoryWeight},
	{"kg", "lb", "2.20462262", models.UnitCategoryWeight},
	{"lb", "kg", "0.45359237", models.UnitCategoryWeight},

	// volume
	{"l", "ml", "1000", models.UnitCategoryVolume},
	{"ml", "l", "0.001", models.UnitCategoryVolume},
	{"tsp", "ml", "4.92892159375", models.UnitCategoryVolume},
	{"ml", "tsp", "0.202884136", models.UnitCategoryVolume},
	{"tbsp", "ml", "14.78676478125", models.UnitCategoryVolume},
	{"ml", "tbsp", "0.0676280454", models.UnitCategoryVolume},
	{"tbsp", "tsp", "3", models.UnitCategoryVolume},
	{"cup", "ml", "236.5882365", models.UnitCategoryVolume},
	{"ml", "cup", "0.00422675284", models.UnitCategoryVolume},
	{"cup", "tbsp", "16", models.UnitCategoryVolume},
	{"tbsp", "cup", "0.0625", models.UnitCategoryVolume},
	{"fl_oz", "ml", "29.5735295625", models.UnitCategoryVolume},
	{"ml", "fl_oz", "0.0338140227", models.UnitCategoryVolume},

	// count; only dozen -> each is stored
	{"dozen", "each", "12", models.UnitCategoryCount},
}

// DefaultConversions returns the built-in reference conversions.
func DefaultConversions() []models.UnitConversion {
	out := make([]models.UnitConversion, 0, len(defaultRows))
	for _, r := range defaultRows {
		out = append(out, models.UnitConversion{
			FromUnit: r.from,
			ToUnit:   r.to,
			Factor:   decimal.RequireFromString(r.factor),
			Category: r.category,
		})
	}
	return out
}

// DefaultTable is a table built from DefaultConversions.
func DefaultTable() *Table {
	t, err := NewTable(DefaultConversions())
	if err != nil {
		panic(err)
	}
	return t
}
