package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"bakery_ops_backend/pkg/utils"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ApplySchema executes the embedded schema for the dialect. Every statement
// is idempotent (CREATE ... IF NOT EXISTS).
func ApplySchema(ctx context.Context, db *sql.DB, dialect Dialect) error {
	content, err := migrations.ReadFile(fmt.Sprintf("migrations/schema_%s.sql", dialect))
	if err != nil {
		return fmt.Errorf("could not read schema for %s: %w", dialect, err)
	}

	for _, stmt := range splitStatements(string(content)) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("could not execute schema statement %q: %w", firstLine(stmt), err)
		}
	}
	utils.LogInfo("Database schema applied successfully", map[string]interface{}{"driver": string(dialect)})
	return nil
}

// splitStatements splits on ";" at line ends and drops "--" comment lines.
// The schema files contain no semicolons inside literals.
func splitStatements(script string) []string {
	var (
		out []string
		cur strings.Builder
	)
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSuffix(strings.TrimSpace(cur.String()), ";")
			out = append(out, stmt)
			cur.Reset()
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
