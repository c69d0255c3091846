package repositories

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"bakery_ops_backend/internal/models"
)

func TestSortFIFO(t *testing.T) {
	jan1 := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	jan5 := jan1.AddDate(0, 0, 4)
	lots := []models.InventoryLot{
		{ID: "c", PurchasedAt: jan5, CreatedAt: jan5},
		{ID: "b", PurchasedAt: jan1, CreatedAt: jan5},
		{ID: "z", PurchasedAt: jan1, CreatedAt: jan1},
		{ID: "a", PurchasedAt: jan1, CreatedAt: jan1},
	}
	SortFIFO(lots)

	ids := make([]string, len(lots))
	for i, l := range lots {
		ids[i] = l.ID
	}
	assert.Equal(t, []string{"a", "z", "b", "c"}, ids)
}

func TestSortByIngredientFIFO(t *testing.T) {
	jan1 := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	jan5 := jan1.AddDate(0, 0, 4)
	lots := []models.InventoryLot{
		{ID: "b2", IngredientID: "ing-b", PurchasedAt: jan5, CreatedAt: jan5},
		{ID: "a2", IngredientID: "ing-a", PurchasedAt: jan5, CreatedAt: jan1},
		{ID: "b1", IngredientID: "ing-b", PurchasedAt: jan1, CreatedAt: jan5},
		{ID: "a1", IngredientID: "ing-a", PurchasedAt: jan1, CreatedAt: jan5},
		{ID: "a0", IngredientID: "ing-a", PurchasedAt: jan1, CreatedAt: jan1},
	}
	sortByIngredientFIFO(lots)

	ids := make([]string, len(lots))
	for i, l := range lots {
		ids[i] = l.ID
	}
	assert.Equal(t, []string{"a0", "a1", "a2", "b1", "b2"}, ids)
}

func TestConstraintError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"postgres unique", &pq.Error{Code: "23505"}, ErrDuplicateKey},
		{"postgres foreign key", fmt.Errorf("insert: %w", &pq.Error{Code: "23503"}), ErrForeignKey},
		{"postgres other", &pq.Error{Code: "42P01"}, nil},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, ErrDuplicateKey},
		{"mysql parent row", &mysql.MySQLError{Number: 1451}, ErrForeignKey},
		{"mysql other", &mysql.MySQLError{Number: 1213}, nil},
		{"sqlite unique", errors.New("constraint failed: UNIQUE constraint failed: ingredients.name (2067)"), ErrDuplicateKey},
		{"sqlite foreign key", errors.New("constraint failed: FOREIGN KEY constraint failed (787)"), ErrForeignKey},
		{"unrelated", errors.New("connection reset"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, constraintError(tt.err))
		})
	}
}
