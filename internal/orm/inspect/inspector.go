// Package inspect reads the constraint and index names that exist in a live
// database and compares them with the names a schema registry expects. The
// database handle is always owned by the caller.
package inspect

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/sharedorm/internal/orm/codegen"
	"github.com/conduit-lang/sharedorm/pkg/orm/naming"
)

// Object is a named constraint or index found in (or expected in) a database
type Object struct {
	Table string
	Name  string
	Kind  naming.Category
}

// String renders the object as table.name
func (o Object) String() string {
	return o.Table + "." + o.Name
}

// Catalog is what the inspector found: every user table and the named
// objects on them
type Catalog struct {
	Tables  []string
	Objects []Object
}

// Inspector queries a database catalog
type Inspector struct {
	db      *sql.DB
	dialect codegen.Dialect
	logger  *zap.Logger
}

// New creates an inspector over a caller-supplied database handle. A nil
// logger disables logging.
func New(db *sql.DB, dialect codegen.Dialect, logger *zap.Logger) *Inspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inspector{db: db, dialect: dialect, logger: logger}
}

// Inspect reads the catalog of the current schema
func (i *Inspector) Inspect(ctx context.Context) (*Catalog, error) {
	var (
		catalog *Catalog
		err     error
	)

	switch i.dialect {
	case codegen.Postgres:
		catalog, err = i.inspectPostgres(ctx)
	case codegen.SQLite:
		catalog, err = i.inspectSQLite(ctx)
	default:
		return nil, fmt.Errorf("unsupported dialect %q", i.dialect)
	}
	if err != nil {
		return nil, err
	}

	sort.Strings(catalog.Tables)
	sortObjects(catalog.Objects)

	i.logger.Debug("inspected database",
		zap.String("dialect", i.dialect.String()),
		zap.Int("tables", len(catalog.Tables)),
		zap.Int("objects", len(catalog.Objects)),
	)

	return catalog, nil
}

const (
	postgresTablesQuery = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'`

	postgresConstraintsQuery = `
SELECT table_name, constraint_name, constraint_type
FROM information_schema.table_constraints
WHERE table_schema = current_schema()
  AND constraint_type IN ('PRIMARY KEY', 'UNIQUE', 'CHECK', 'FOREIGN KEY')
  AND constraint_name NOT LIKE '%_not_null'`

	postgresIndexesQuery = `
SELECT tablename, indexname
FROM pg_indexes
WHERE schemaname = current_schema()`
)

var postgresConstraintKinds = map[string]naming.Category{
	"PRIMARY KEY": naming.CategoryPrimaryKey,
	"UNIQUE":      naming.CategoryUnique,
	"CHECK":       naming.CategoryCheck,
	"FOREIGN KEY": naming.CategoryForeignKey,
}

func (i *Inspector) inspectPostgres(ctx context.Context) (*Catalog, error) {
	catalog := &Catalog{}

	tables, err := queryStrings(ctx, i.db, postgresTablesQuery)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	catalog.Tables = tables

	rows, err := i.db.QueryContext(ctx, postgresConstraintsQuery)
	if err != nil {
		return nil, fmt.Errorf("listing constraints: %w", err)
	}
	defer rows.Close()

	// Indexes backing a primary key or unique constraint share its name
	constraintNames := make(map[string]bool)
	for rows.Next() {
		var table, name, kind string
		if err := rows.Scan(&table, &name, &kind); err != nil {
			return nil, fmt.Errorf("scanning constraint: %w", err)
		}
		catalog.Objects = append(catalog.Objects, Object{Table: table, Name: name, Kind: postgresConstraintKinds[kind]})
		constraintNames[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing constraints: %w", err)
	}

	idxRows, err := i.db.QueryContext(ctx, postgresIndexesQuery)
	if err != nil {
		return nil, fmt.Errorf("listing indexes: %w", err)
	}
	defer idxRows.Close()

	for idxRows.Next() {
		var table, name string
		if err := idxRows.Scan(&table, &name); err != nil {
			return nil, fmt.Errorf("scanning index: %w", err)
		}
		if constraintNames[name] {
			continue
		}
		catalog.Objects = append(catalog.Objects, Object{Table: table, Name: name, Kind: naming.CategoryIndex})
	}
	if err := idxRows.Err(); err != nil {
		return nil, fmt.Errorf("listing indexes: %w", err)
	}

	return catalog, nil
}

// SQLite keeps constraint names only in the CREATE TABLE text
var sqliteConstraintPattern = regexp.MustCompile(`(?i)CONSTRAINT\s+("(?:[^"]|"")+"|` + "`[^`]+`" + `|\[[^\]]+\]|\w+)\s+(PRIMARY\s+KEY|UNIQUE|CHECK|FOREIGN\s+KEY)`)

func (i *Inspector) inspectSQLite(ctx context.Context) (*Catalog, error) {
	catalog := &Catalog{}

	rows, err := i.db.QueryContext(ctx, `SELECT name, sql FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	ddl := make(map[string]string)
	for rows.Next() {
		var name string
		var createSQL sql.NullString
		if err := rows.Scan(&name, &createSQL); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning table: %w", err)
		}
		catalog.Tables = append(catalog.Tables, name)
		ddl[name] = createSQL.String
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	for _, table := range catalog.Tables {
		for _, m := range sqliteConstraintPattern.FindAllStringSubmatch(ddl[table], -1) {
			catalog.Objects = append(catalog.Objects, Object{
				Table: table,
				Name:  unquoteIdentifier(m[1]),
				Kind:  sqliteConstraintKind(m[2]),
			})
		}

		indexes, err := i.sqliteIndexes(ctx, table)
		if err != nil {
			return nil, err
		}
		catalog.Objects = append(catalog.Objects, indexes...)
	}

	return catalog, nil
}

// sqliteIndexes lists explicitly created indexes; automatic indexes behind
// UNIQUE and PRIMARY KEY constraints are skipped
func (i *Inspector) sqliteIndexes(ctx context.Context, table string) ([]Object, error) {
	rows, err := i.db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", codegen.QuoteIdentifier(table)))
	if err != nil {
		return nil, fmt.Errorf("listing indexes of %s: %w", table, err)
	}
	defer rows.Close()

	var objects []Object
	for rows.Next() {
		var (
			seq     int
			name    string
			unique  bool
			origin  string
			partial bool
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return nil, fmt.Errorf("scanning index of %s: %w", table, err)
		}
		if origin != "c" {
			continue
		}
		objects = append(objects, Object{Table: table, Name: name, Kind: naming.CategoryIndex})
	}
	return objects, rows.Err()
}

func sqliteConstraintKind(s string) naming.Category {
	switch strings.ToUpper(strings.Join(strings.Fields(s), " ")) {
	case "PRIMARY KEY":
		return naming.CategoryPrimaryKey
	case "UNIQUE":
		return naming.CategoryUnique
	case "CHECK":
		return naming.CategoryCheck
	default:
		return naming.CategoryForeignKey
	}
}

func unquoteIdentifier(s string) string {
	switch {
	case strings.HasPrefix(s, `"`):
		return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
	case strings.HasPrefix(s, "`"), strings.HasPrefix(s, "["):
		return s[1 : len(s)-1]
	default:
		return s
	}
}

func queryStrings(ctx context.Context, db *sql.DB, query string) ([]string, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func sortObjects(objects []Object) {
	sort.Slice(objects, func(i, j int) bool {
		if objects[i].Table != objects[j].Table {
			return objects[i].Table < objects[j].Table
		}
		return objects[i].Name < objects[j].Name
	})
}
