package codegen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/conduit-lang/sharedorm/pkg/orm/naming"
	"github.com/conduit-lang/sharedorm/pkg/orm/schema"
)

// DDLGenerator generates CREATE/DROP statements for registered tables
type DDLGenerator struct {
	dialect     Dialect
	typeMapper  *TypeMapper
	constraints *ConstraintGenerator
	indexes     *IndexGenerator
}

// NewDDLGenerator creates a new DDL generator
func NewDDLGenerator(dialect Dialect) *DDLGenerator {
	return &DDLGenerator{
		dialect:     dialect,
		typeMapper:  NewTypeMapper(dialect),
		constraints: NewConstraintGenerator(dialect),
		indexes:     NewIndexGenerator(),
	}
}

// Dialect returns the dialect the generator renders for
func (g *DDLGenerator) Dialect() Dialect {
	return g.dialect
}

// Constraints returns the generator's constraint renderer
func (g *DDLGenerator) Constraints() *ConstraintGenerator {
	return g.constraints
}

// Indexes returns the generator's index renderer
func (g *DDLGenerator) Indexes() *IndexGenerator {
	return g.indexes
}

// GenerateCreateTable generates a CREATE TABLE statement with every
// constraint declared inline under its registered name
func (g *DDLGenerator) GenerateCreateTable(t *schema.Table) (string, error) {
	return g.createTable(t, true)
}

func (g *DDLGenerator) createTable(t *schema.Table, withForeignKeys bool) (string, error) {
	if t == nil {
		return "", fmt.Errorf("table cannot be nil")
	}

	elements := make([]string, 0, len(t.Columns)+len(t.Constraints))

	// Columns keep their declaration order
	for _, col := range t.Columns {
		def, err := g.ColumnDefinition(col)
		if err != nil {
			return "", fmt.Errorf("column %s: %w", col.Name, err)
		}
		elements = append(elements, def)
	}

	for _, c := range t.Constraints {
		if c.Kind == naming.CategoryForeignKey && !withForeignKeys {
			continue
		}
		def, err := g.constraints.Definition(c)
		if err != nil {
			return "", fmt.Errorf("table %s: %w", t.Name, err)
		}
		elements = append(elements, def)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n", QuoteIdentifier(t.Name)))
	for i, el := range elements {
		b.WriteString("  ")
		b.WriteString(el)
		if i < len(elements)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(");")

	return b.String(), nil
}

// ColumnDefinition renders one column: name, type, nullability and default
func (g *DDLGenerator) ColumnDefinition(col *schema.Column) (string, error) {
	columnType, err := g.typeMapper.MapType(col)
	if err != nil {
		return "", fmt.Errorf("mapping type: %w", err)
	}

	parts := []string{QuoteIdentifier(col.Name), columnType, g.typeMapper.MapNullability(col)}
	if def := g.typeMapper.MapDefault(col); def != "" {
		parts = append(parts, "DEFAULT "+def)
	}

	return strings.Join(parts, " "), nil
}

// GenerateSchema generates the complete DDL for one table (table + indexes)
func (g *DDLGenerator) GenerateSchema(t *schema.Table) (string, error) {
	createTable, err := g.GenerateCreateTable(t)
	if err != nil {
		return "", err
	}

	indexes, err := g.indexes.GenerateIndexes(t)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(createTable)
	for _, idx := range indexes {
		b.WriteString("\n")
		b.WriteString(idx)
	}

	return b.String(), nil
}

// GenerateDropTable generates a DROP TABLE statement
func (g *DDLGenerator) GenerateDropTable(t *schema.Table) string {
	if g.dialect == Postgres {
		return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE;", QuoteIdentifier(t.Name))
	}
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", QuoteIdentifier(t.Name))
}

// GenerateAll renders every table of a registry, referenced tables first,
// followed by their indexes.
//
// When foreign keys form a cycle the tables are emitted by name. On
// PostgreSQL the foreign keys are then added afterwards with ALTER TABLE;
// SQLite resolves foreign key targets lazily and keeps them inline.
func (g *DDLGenerator) GenerateAll(md *schema.MetaData) ([]string, error) {
	tables, err := md.SortedTables()
	deferForeignKeys := false
	if err != nil {
		if !errors.Is(err, schema.ErrCircularDependency) {
			return nil, err
		}
		tables = tablesByName(md)
		deferForeignKeys = g.dialect.SupportsAlterConstraint()
	}

	var statements []string
	for _, t := range tables {
		stmt, err := g.createTable(t, !deferForeignKeys)
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmt)
	}

	for _, t := range tables {
		indexes, err := g.indexes.GenerateIndexes(t)
		if err != nil {
			return nil, err
		}
		statements = append(statements, indexes...)
	}

	if deferForeignKeys {
		for _, t := range tables {
			for _, fk := range t.ForeignKeys() {
				stmt, err := g.constraints.Add(t.Name, fk)
				if err != nil {
					return nil, err
				}
				statements = append(statements, stmt)
			}
		}
	}

	return statements, nil
}

// GenerateDropAll drops every table of a registry, dependents first
func (g *DDLGenerator) GenerateDropAll(md *schema.MetaData) ([]string, error) {
	tables, err := md.SortedTables()
	if err != nil {
		if !errors.Is(err, schema.ErrCircularDependency) {
			return nil, err
		}
		tables = tablesByName(md)
	}

	statements := make([]string, 0, len(tables))
	for i := len(tables) - 1; i >= 0; i-- {
		statements = append(statements, g.GenerateDropTable(tables[i]))
	}
	return statements, nil
}

func tablesByName(md *schema.MetaData) []*schema.Table {
	names := md.TableNames()
	tables := make([]*schema.Table, 0, len(names))
	for _, name := range names {
		if t, ok := md.Table(name); ok {
			tables = append(tables, t)
		}
	}
	return tables
}
