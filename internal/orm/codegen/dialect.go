package codegen

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Dialect identifies the SQL flavour DDL is rendered for
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ParseDialect accepts a dialect name or a common alias
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pg", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported dialect %q", s)
	}
}

// String implements fmt.Stringer
func (d Dialect) String() string {
	return string(d)
}

// MaxIdentifierLength is the longest identifier the dialect keeps without
// truncation. Zero means no limit.
func (d Dialect) MaxIdentifierLength() int {
	switch d {
	case Postgres:
		return 63
	default:
		return 0
	}
}

// SupportsAlterConstraint reports whether constraints can be added to or
// dropped from an existing table
func (d Dialect) SupportsAlterConstraint() bool {
	return d == Postgres
}

// QuoteIdentifier wraps a SQL identifier in double quotes and escapes internal quotes
func QuoteIdentifier(identifier string) string {
	return pq.QuoteIdentifier(identifier)
}

// QuoteLiteral quotes a string literal for the dialect
func (d Dialect) QuoteLiteral(s string) string {
	if d == Postgres {
		return pq.QuoteLiteral(s)
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteColumns(columns []string) string {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = QuoteIdentifier(col)
	}
	return strings.Join(quoted, ", ")
}
