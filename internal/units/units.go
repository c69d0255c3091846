// Package units resolves directed conversion factors between measurement
// units. A Table is immutable once built and safe for concurrent use.
package units

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"bakery_ops_backend/internal/models"
)

// ErrConversionUnavailable is returned when no directed pair is stored.
var ErrConversionUnavailable = errors.New("no conversion available")

// ConversionError names the missing pair.
type ConversionError struct {
	From string
	To   string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("no conversion available from %q to %q", e.From, e.To)
}

func (e *ConversionError) Unwrap() error { return ErrConversionUnavailable }

type pair struct {
	from, to string
}

// Table is a set of directed conversion factors. It never infers inverses
// or chains: only stored pairs resolve.
type Table struct {
	factors    map[pair]decimal.Decimal
	categories map[string]models.UnitCategory
	rows       []models.UnitConversion
}

// Normalize canonicalises a unit code ("  KG " -> "kg").
func Normalize(unit string) string {
	return strings.ToLower(strings.TrimSpace(unit))
}

// NewTable builds a table from conversion rows. Rows must have a positive
// factor and a known category; a same-unit row must have factor 1.
// A later row for the same pair replaces an earlier one.
func NewTable(rows []models.UnitConversion) (*Table, error) {
	t := &Table{
		factors:    make(map[pair]decimal.Decimal, len(rows)),
		categories: make(map[string]models.UnitCategory),
	}
	index := make(map[pair]int, len(rows))
	for _, r := range rows {
		from, to := Normalize(r.FromUnit), Normalize(r.ToUnit)
		if from == "" || to == "" {
			return nil, fmt.Errorf("conversion row has an empty unit")
		}
		if !r.Factor.IsPositive() {
			return nil, fmt.Errorf("conversion %s->%s: factor must be positive, got %s", from, to, r.Factor)
		}
		if !r.Category.Valid() {
			return nil, fmt.Errorf("conversion %s->%s: unknown category %q", from, to, r.Category)
		}
		if from == to && !r.Factor.Equal(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("conversion %s->%s: same-unit factor must be 1", from, to)
		}
		p := pair{from, to}
		t.factors[p] = r.Factor
		for _, u := range []string{from, to} {
			if _, ok := t.categories[u]; !ok {
				t.categories[u] = r.Category
			}
		}
		r.FromUnit, r.ToUnit = from, to
		if i, ok := index[p]; ok {
			t.rows[i] = r
			continue
		}
		index[p] = len(t.rows)
		t.rows = append(t.rows, r)
	}
	sort.Slice(t.rows, func(i, j int) bool {
		if t.rows[i].Category != t.rows[j].Category {
			return t.rows[i].Category < t.rows[j].Category
		}
		if t.rows[i].FromUnit != t.rows[j].FromUnit {
			return t.rows[i].FromUnit < t.rows[j].FromUnit
		}
		return t.rows[i].ToUnit < t.rows[j].ToUnit
	})
	return t, nil
}

// ResolveFactor returns the factor to multiply a quantity in from by to get
// a quantity in to. Identical units resolve to 1 without a lookup.
func (t *Table) ResolveFactor(from, to string) (decimal.Decimal, error) {
	from, to = Normalize(from), Normalize(to)
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	if t != nil {
		if f, ok := t.factors[pair{from, to}]; ok {
			return f, nil
		}
	}
	return decimal.Zero, &ConversionError{From: from, To: to}
}

// Convert expresses qty (in from) in to.
func (t *Table) Convert(qty decimal.Decimal, from, to string) (decimal.Decimal, error) {
	f, err := t.ResolveFactor(from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return qty.Mul(f), nil
}

// Category reports the category the unit was first seen with.
func (t *Table) Category(unit string) (models.UnitCategory, bool) {
	if t == nil {
		return "", false
	}
	c, ok := t.categories[Normalize(unit)]
	return c, ok
}

// Known reports whether the unit appears in any row.
func (t *Table) Known(unit string) bool {
	_, ok := t.Category(unit)
	return ok
}

// Conversions returns a copy of the rows, sorted by category then pair.
func (t *Table) Conversions() []models.UnitConversion {
	if t == nil {
		return nil
	}
	out := make([]models.UnitConversion, len(t.rows))
	copy(out, t.rows)
	return out
}

// Units lists every known unit grouped by category.
func (t *Table) Units() map[models.UnitCategory][]string {
	out := make(map[models.UnitCategory][]string)
	if t == nil {
		return out
	}
	for u, c := range t.categories {
		out[c] = append(out[c], u)
	}
	for c := range out {
		sort.Strings(out[c])
	}
	return out
}
