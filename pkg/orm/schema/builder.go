package schema

import "github.com/conduit-lang/sharedorm/pkg/orm/naming"

// TableOption configures a table built with NewTable
type TableOption func(*Table)

// ColumnOption configures a column built with NewColumn
type ColumnOption func(*Column)

// NewTable builds an unregistered table definition
func NewTable(name string, opts ...TableOption) *Table {
	t := &Table{
		Name:        name,
		Columns:     make([]*Column, 0),
		Constraints: make([]*Constraint, 0),
		Indexes:     make([]*Index, 0),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// WithColumns appends columns in order
func WithColumns(cols ...*Column) TableOption {
	return func(t *Table) {
		t.Columns = append(t.Columns, cols...)
	}
}

// WithComment sets the table comment
func WithComment(comment string) TableOption {
	return func(t *Table) {
		t.Comment = comment
	}
}

// WithPrimaryKey declares a (possibly composite) primary key
func WithPrimaryKey(columns ...string) TableOption {
	return func(t *Table) {
		t.Constraints = append(t.Constraints, &Constraint{
			Kind:    naming.CategoryPrimaryKey,
			Columns: columns,
		})
	}
}

// WithCheck declares a check constraint. identifier feeds the
// %(constraint_name)s token of the ck template.
func WithCheck(identifier, expression string) TableOption {
	return func(t *Table) {
		t.Constraints = append(t.Constraints, &Constraint{
			Kind:       naming.CategoryCheck,
			Identifier: identifier,
			Expression: expression,
		})
	}
}

// WithUnique declares a (possibly composite) unique constraint. The default
// uq template only uses the first column, so two composite uniques that start
// with the same column get the same name and registration fails. Name one of
// them with WithNamedConstraint, or use a convention whose uq template has
// %(column_0_N_name)s.
func WithUnique(columns ...string) TableOption {
	return func(t *Table) {
		t.Constraints = append(t.Constraints, &Constraint{
			Kind:    naming.CategoryUnique,
			Columns: columns,
		})
	}
}

// WithForeignKey declares a (possibly composite) foreign key
func WithForeignKey(columns []string, referredTable string, referredColumns []string, onDelete, onUpdate CascadeAction) TableOption {
	return func(t *Table) {
		t.Constraints = append(t.Constraints, &Constraint{
			Kind:            naming.CategoryForeignKey,
			Columns:         columns,
			ReferredTable:   referredTable,
			ReferredColumns: referredColumns,
			OnDelete:        onDelete,
			OnUpdate:        onUpdate,
		})
	}
}

// WithNamedConstraint appends a constraint whose name is fixed by the caller
func WithNamedConstraint(c *Constraint) TableOption {
	return func(t *Table) {
		t.Constraints = append(t.Constraints, c)
	}
}

// WithIndex declares a secondary index
func WithIndex(columns ...string) TableOption {
	return func(t *Table) {
		t.Indexes = append(t.Indexes, &Index{Columns: columns})
	}
}

// WithUniqueIndex declares a unique secondary index
func WithUniqueIndex(columns ...string) TableOption {
	return func(t *Table) {
		t.Indexes = append(t.Indexes, &Index{Columns: columns, Unique: true})
	}
}

// NewColumn builds a column. Columns are NOT NULL unless Nullable is given.
func NewColumn(name string, typ ColumnType, opts ...ColumnOption) *Column {
	c := &Column{Name: name, Type: typ}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PrimaryKey marks the column as (part of) the primary key
func PrimaryKey() ColumnOption {
	return func(c *Column) { c.PrimaryKey = true }
}

// Unique adds a single-column unique constraint
func Unique() ColumnOption {
	return func(c *Column) { c.Unique = true }
}

// Indexed adds a single-column index. Combined with Unique it becomes a unique index.
func Indexed() ColumnOption {
	return func(c *Column) { c.Index = true }
}

// Nullable allows NULL values
func Nullable() ColumnOption {
	return func(c *Column) { c.Nullable = true }
}

// Length sets the maximum length of a string column
func Length(n int) ColumnOption {
	return func(c *Column) { c.Length = n }
}

// Numeric sets decimal precision and scale
func Numeric(precision, scale int) ColumnOption {
	return func(c *Column) {
		c.Precision = precision
		c.Scale = scale
	}
}

// Default sets a SQL default expression
func Default(expr string) ColumnOption {
	return func(c *Column) { c.Default = expr }
}

// References adds a single-column foreign key to table.column
func References(table, column string) ColumnOption {
	return func(c *Column) {
		c.ForeignKey = &ForeignKey{Table: table, Column: column}
	}
}

// OnDelete sets the ON DELETE action; it must follow References
func OnDelete(action CascadeAction) ColumnOption {
	return func(c *Column) {
		if c.ForeignKey != nil {
			c.ForeignKey.OnDelete = action
		}
	}
}

// OnUpdate sets the ON UPDATE action; it must follow References
func OnUpdate(action CascadeAction) ColumnOption {
	return func(c *Column) {
		if c.ForeignKey != nil {
			c.ForeignKey.OnUpdate = action
		}
	}
}
