package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"

	"bakery_ops_backend/pkg/utils"
)

// DefaultTxRetries is used when RunInTx is given a negative retry count.
const DefaultTxRetries = 3

// RunInTx runs fn inside a transaction and commits it. The transaction is
// rolled back when fn returns an error or panics. Serialization failures and
// deadlocks are retried up to retries more times with a short backoff; fn
// must therefore be safe to run again from scratch.
func RunInTx(ctx context.Context, db *sql.DB, retries int, fn func(tx *sql.Tx) error) error {
	if retries < 0 {
		retries = DefaultTxRetries
	}
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * 10 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			utils.LogDebug("Retrying transaction", map[string]interface{}{"attempt": attempt, "error": err.Error()})
		}
		err = runOnce(ctx, db, fn)
		if err == nil || !IsTransient(err) {
			return err
		}
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", retries+1, err)
}

func runOnce(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SQLite primary result codes.
const (
	sqliteBusy   = 5
	sqliteLocked = 6
)

// IsTransient reports whether err is a serialization failure or deadlock
// that is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return true
		}
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1213, 1205: // deadlock, lock wait timeout
			return true
		}
		return false
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code() & 0xff
		return code == sqliteBusy || code == sqliteLocked
	}
	return strings.Contains(err.Error(), "database is locked")
}
