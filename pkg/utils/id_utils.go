package utils

import "github.com/google/uuid"

// NewID returns a time-ordered UUIDv7 string. Ids created later sort after
// earlier ones, which the ledger relies on as the final FIFO tie-break.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
