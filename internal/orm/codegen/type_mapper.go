// Package codegen renders registered tables as DDL text for a SQL dialect.
// The output is input for an external migration tool; nothing here talks to
// a database.
package codegen

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/sharedorm/pkg/orm/schema"
)

// TypeMapper maps column types to dialect column types
type TypeMapper struct {
	dialect Dialect
}

// NewTypeMapper creates a new TypeMapper
func NewTypeMapper(dialect Dialect) *TypeMapper {
	return &TypeMapper{dialect: dialect}
}

// MapType converts a column to its SQL type
func (tm *TypeMapper) MapType(col *schema.Column) (string, error) {
	if col == nil {
		return "", fmt.Errorf("column cannot be nil")
	}

	switch tm.dialect {
	case Postgres:
		return tm.mapPostgres(col)
	case SQLite:
		return tm.mapSQLite(col)
	default:
		return "", fmt.Errorf("unsupported dialect %q", tm.dialect)
	}
}

func (tm *TypeMapper) mapPostgres(col *schema.Column) (string, error) {
	switch col.Type {
	case schema.TypeString:
		if col.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", col.Length), nil
		}
		return "VARCHAR(255)", nil // Default length
	case schema.TypeText:
		return "TEXT", nil
	case schema.TypeInteger:
		return "INTEGER", nil
	case schema.TypeBigInt:
		return "BIGINT", nil
	case schema.TypeFloat:
		return "DOUBLE PRECISION", nil
	case schema.TypeDecimal:
		return numeric(col), nil
	case schema.TypeBool:
		return "BOOLEAN", nil
	case schema.TypeTimestamp:
		return "TIMESTAMP WITH TIME ZONE", nil
	case schema.TypeDate:
		return "DATE", nil
	case schema.TypeTime:
		return "TIME", nil
	case schema.TypeUUID:
		return "UUID", nil
	case schema.TypeJSON:
		return "JSONB", nil
	case schema.TypeBinary:
		return "BYTEA", nil
	default:
		return "", fmt.Errorf("unsupported type: %s", col.Type)
	}
}

// SQLite only has storage classes; the declared names below give the
// intended affinity and keep the DDL readable
func (tm *TypeMapper) mapSQLite(col *schema.Column) (string, error) {
	switch col.Type {
	case schema.TypeString:
		if col.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", col.Length), nil
		}
		return "TEXT", nil
	case schema.TypeText, schema.TypeUUID, schema.TypeJSON:
		return "TEXT", nil
	case schema.TypeInteger, schema.TypeBigInt:
		return "INTEGER", nil
	case schema.TypeFloat:
		return "REAL", nil
	case schema.TypeDecimal:
		return numeric(col), nil
	case schema.TypeBool:
		return "BOOLEAN", nil
	case schema.TypeTimestamp:
		return "TIMESTAMP", nil
	case schema.TypeDate:
		return "DATE", nil
	case schema.TypeTime:
		return "TIME", nil
	case schema.TypeBinary:
		return "BLOB", nil
	default:
		return "", fmt.Errorf("unsupported type: %s", col.Type)
	}
}

func numeric(col *schema.Column) string {
	if col.Precision > 0 {
		return fmt.Sprintf("NUMERIC(%d,%d)", col.Precision, col.Scale)
	}
	return "NUMERIC"
}

// MapNullability returns the NULL/NOT NULL clause for a column
func (tm *TypeMapper) MapNullability(col *schema.Column) string {
	if col.Nullable {
		return "NULL"
	}
	return "NOT NULL"
}

// MapDefault returns the DEFAULT expression for a column, or "" when the
// column has none. Defaults are SQL expressions; the portable spellings of
// the current time are normalised.
func (tm *TypeMapper) MapDefault(col *schema.Column) string {
	expr := strings.TrimSpace(col.Default)
	if expr == "" {
		return ""
	}

	switch strings.ToLower(expr) {
	case "now()", "current_timestamp":
		return "CURRENT_TIMESTAMP"
	case "today()", "current_date":
		return "CURRENT_DATE"
	case "current_time":
		return "CURRENT_TIME"
	case "true", "false":
		if tm.dialect == SQLite {
			if strings.EqualFold(expr, "true") {
				return "1"
			}
			return "0"
		}
		return strings.ToUpper(expr)
	}

	return expr
}
