package database

import (
	"fmt"
	"regexp"
	"strings"
)

// Dialect captures the few SQL differences between the supported stores.
// Queries are written with postgres-style $N placeholders in argument order.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
)

// ParseDialect maps a configured driver name to a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	return string(d)
}

var placeholderRe = regexp.MustCompile(`\$\d+`)

// Rebind rewrites $N placeholders to ? for drivers that need it.
func (d Dialect) Rebind(query string) string {
	if d == Postgres {
		return query
	}
	return placeholderRe.ReplaceAllString(query, "?")
}

// ForUpdate is the row lock suffix for SELECTs inside a transaction. SQLite
// has no row locks; its writers are serialised by BEGIN IMMEDIATE instead.
func (d Dialect) ForUpdate() string {
	if d == SQLite {
		return ""
	}
	return " FOR UPDATE"
}

// Placeholders returns "$from, $from+1, ..." for n arguments.
func Placeholders(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(parts, ", ")
}
