package units

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bakery_ops_backend/internal/models"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func conv(from, to, factor string, c models.UnitCategory) models.UnitConversion {
	return models.UnitConversion{FromUnit: from, ToUnit: to, Factor: dec(factor), Category: c}
}

func TestResolveFactor_SameUnitNeedsNoRow(t *testing.T) {
	table, err := NewTable(nil)
	require.NoError(t, err)

	f, err := table.ResolveFactor("g", " G ")
	require.NoError(t, err)
	assert.True(t, f.Equal(dec("1")))

	var nilTable *Table
	f, err = nilTable.ResolveFactor("cup", "cup")
	require.NoError(t, err)
	assert.True(t, f.Equal(dec("1")))
}

func TestResolveFactor_DirectedOnly(t *testing.T) {
	table, err := NewTable([]models.UnitConversion{
		conv("cup", "ml", "236.5882365", models.UnitCategoryVolume),
		conv("ml", "l", "0.001", models.UnitCategoryVolume),
	})
	require.NoError(t, err)

	f, err := table.ResolveFactor("cup", "ml")
	require.NoError(t, err)
	assert.True(t, f.Equal(dec("236.5882365")))

	tests := []struct {
		name     string
		from, to string
	}{
		{"no inferred inverse", "ml", "cup"},
		{"no transitive chain", "cup", "l"},
		{"unknown units", "g", "oz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := table.ResolveFactor(tt.from, tt.to)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConversionUnavailable))

			var ce *ConversionError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.from, ce.From)
			assert.Equal(t, tt.to, ce.To)
		})
	}
}

func TestConvert(t *testing.T) {
	table := DefaultTable()

	got, err := table.Convert(dec("2.5"), "kg", "g")
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("2500")), got.String())

	back, err := table.Convert(got, "g", "kg")
	require.NoError(t, err)
	assert.True(t, back.Equal(dec("2.5")), back.String())

	eggs, err := table.Convert(dec("3"), "dozen", "each")
	require.NoError(t, err)
	assert.True(t, eggs.Equal(dec("36")))

	_, err = table.Convert(dec("36"), "each", "dozen")
	assert.ErrorIs(t, err, ErrConversionUnavailable)

	_, err = table.Convert(dec("1"), "cup", "g")
	assert.ErrorIs(t, err, ErrConversionUnavailable)
}

func TestNewTable_RejectsBadRows(t *testing.T) {
	tests := []struct {
		name string
		row  models.UnitConversion
	}{
		{"zero factor", conv("g", "kg", "0", models.UnitCategoryWeight)},
		{"negative factor", conv("g", "kg", "-1", models.UnitCategoryWeight)},
		{"empty unit", conv("", "kg", "1", models.UnitCategoryWeight)},
		{"unknown category", conv("g", "kg", "0.001", models.UnitCategory("mass"))},
		{"same unit not one", conv("g", "g", "2", models.UnitCategoryWeight)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable([]models.UnitConversion{tt.row})
			assert.Error(t, err)
		})
	}
}

func TestNewTable_LaterRowWins(t *testing.T) {
	table, err := NewTable([]models.UnitConversion{
		conv("G", "kg", "0.01", models.UnitCategoryWeight),
		conv("g", "KG", "0.001", models.UnitCategoryWeight),
	})
	require.NoError(t, err)

	f, err := table.ResolveFactor("g", "kg")
	require.NoError(t, err)
	assert.True(t, f.Equal(dec("0.001")))
	assert.Len(t, table.Conversions(), 1)
	assert.Equal(t, "g", table.Conversions()[0].FromUnit)
}

func TestCategory(t *testing.T) {
	table := DefaultTable()

	c, ok := table.Category("KG")
	require.True(t, ok)
	assert.Equal(t, models.UnitCategoryWeight, c)

	c, ok = table.Category("tsp")
	require.True(t, ok)
	assert.Equal(t, models.UnitCategoryVolume, c)

	assert.True(t, table.Known("each"))
	assert.False(t, table.Known("pinch"))

	byCategory := table.Units()
	assert.Contains(t, byCategory[models.UnitCategoryCount], "dozen")
	assert.Contains(t, byCategory[models.UnitCategoryWeight], "g")
}
