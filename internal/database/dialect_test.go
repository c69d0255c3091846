package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	q := "SELECT * FROM lots WHERE bakery_id = $1 AND id IN ($2, $3) LIMIT $10"
	assert.Equal(t, q, Postgres.Rebind(q))
	assert.Equal(t, "SELECT * FROM lots WHERE bakery_id = ? AND id IN (?, ?) LIMIT ?", SQLite.Rebind(q))
	assert.Equal(t, MySQL.Rebind(q), SQLite.Rebind(q))
}

func TestForUpdate(t *testing.T) {
	assert.Equal(t, " FOR UPDATE", Postgres.ForUpdate())
	assert.Equal(t, " FOR UPDATE", MySQL.ForUpdate())
	assert.Equal(t, "", SQLite.ForUpdate())
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{"postgres": Postgres, "PostgreSQL": Postgres, "mysql": MySQL, "sqlite3": SQLite} {
		got, err := ParseDialect(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseDialect("mssql")
	assert.Error(t, err)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$2, $3, $4", Placeholders(2, 3))
	assert.Equal(t, "", Placeholders(1, 0))
}

func TestSplitStatements(t *testing.T) {
	script := "-- header\nCREATE TABLE a (\n  id TEXT\n);\n\nCREATE INDEX i ON a (id);\n"
	stmts := splitStatements(script)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (\n  id TEXT\n)", stmts[0])
	assert.Equal(t, "CREATE INDEX i ON a (id)", stmts[1])
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"pg serialization", &pq.Error{Code: "40001"}, true},
		{"pg deadlock wrapped", fmt.Errorf("consume: %w", &pq.Error{Code: "40P01"}), true},
		{"pg unique", &pq.Error{Code: "23505"}, false},
		{"mysql deadlock", &mysql.MySQLError{Number: 1213}, true},
		{"mysql lock wait", &mysql.MySQLError{Number: 1205}, true},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, false},
		{"sqlite locked message", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec("CREATE TABLE counters (id INTEGER PRIMARY KEY, n INTEGER NOT NULL)")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO counters (id, n) VALUES (1, 0)")
	require.NoError(t, err)
	return db
}

func counter(t *testing.T, db *sql.DB) int {
	var n int
	require.NoError(t, db.QueryRow("SELECT n FROM counters WHERE id = 1").Scan(&n))
	return n
}

func TestRunInTx_CommitAndRollback(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	err := RunInTx(ctx, db, 0, func(tx *sql.Tx) error {
		_, err := tx.Exec("UPDATE counters SET n = n + 1 WHERE id = 1")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, counter(t, db))

	boom := errors.New("boom")
	err = RunInTx(ctx, db, 0, func(tx *sql.Tx) error {
		if _, err := tx.Exec("UPDATE counters SET n = n + 1 WHERE id = 1"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, counter(t, db))

	assert.Panics(t, func() {
		_ = RunInTx(ctx, db, 0, func(tx *sql.Tx) error {
			_, _ = tx.Exec("UPDATE counters SET n = n + 1 WHERE id = 1")
			panic("kaboom")
		})
	})
	assert.Equal(t, 1, counter(t, db))
}

func TestRunInTx_RetriesTransient(t *testing.T) {
	db := openSQLite(t)
	calls := 0

	err := RunInTx(context.Background(), db, 2, func(tx *sql.Tx) error {
		calls++
		if calls < 3 {
			return &pq.Error{Code: "40001"}
		}
		_, err := tx.Exec("UPDATE counters SET n = 42 WHERE id = 1")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 42, counter(t, db))

	calls = 0
	err = RunInTx(context.Background(), db, 1, func(tx *sql.Tx) error {
		calls++
		return &mysql.MySQLError{Number: 1213}
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, IsTransient(err))
}
