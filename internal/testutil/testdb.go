// Package testutil provides a throwaway SQLite database for package tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"bakery_ops_backend/internal/database"
	"bakery_ops_backend/internal/repositories"
	"bakery_ops_backend/internal/units"
)

var dbCounter atomic.Int64

// SQLiteDSN returns a DSN for a private shared-cache in-memory database.
func SQLiteDSN(name string) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared&_txlock=immediate&_time_format=sqlite"+
		"&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", name)
}

// NewDB opens an in-memory SQLite database with the schema applied and the
// default unit conversions seeded. It is closed when the test ends.
func NewDB(t testing.TB) *sql.DB {
	t.Helper()
	name := fmt.Sprintf("%s_%d", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()), dbCounter.Add(1))

	db, err := sql.Open("sqlite", SQLiteDSN(name))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, database.ApplySchema(ctx, db, database.SQLite))
	_, err = repositories.SeedUnitConversions(ctx, db, repositories.NewUnitConversionRepository(database.SQLite), units.DefaultConversions())
	require.NoError(t, err)
	return db
}

// Dec parses a decimal literal and panics on bad input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// AssertDecimal fails the test unless got equals want numerically.
func AssertDecimal(t testing.TB, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	if !Dec(want).Equal(got) {
		msg := fmt.Sprintf("expected %s, got %s", want, got.String())
		if len(msgAndArgs) > 0 {
			if format, ok := msgAndArgs[0].(string); ok {
				msg += ": " + fmt.Sprintf(format, msgAndArgs[1:]...)
			}
		}
		t.Errorf("%s", msg)
	}
}
