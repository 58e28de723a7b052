// Package schema provides the shared schema registry (MetaData) together with
// the table, column and constraint definitions registered into it.
//
// Every data-model type that belongs to the shared migration namespace is
// registered into one MetaData, either directly with Register or through a
// Base bound to that registry. Registration validates the definition, derives
// constraint objects from column flags and names every unnamed constraint
// with the registry's naming convention.
package schema

import (
	"fmt"

	"github.com/conduit-lang/sharedorm/pkg/orm/naming"
)

// ColumnType represents the portable column types a table may declare
type ColumnType int

const (
	TypeInteger ColumnType = iota
	TypeBigInt
	TypeString
	TypeText
	TypeFloat
	TypeDecimal
	TypeBool
	TypeTimestamp
	TypeDate
	TypeTime
	TypeUUID
	TypeJSON
	TypeBinary
)

// String returns the string representation of the column type
func (t ColumnType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeBigInt:
		return "bigint"
	case TypeString:
		return "string"
	case TypeText:
		return "text"
	case TypeFloat:
		return "float"
	case TypeDecimal:
		return "decimal"
	case TypeBool:
		return "bool"
	case TypeTimestamp:
		return "timestamp"
	case TypeDate:
		return "date"
	case TypeTime:
		return "time"
	case TypeUUID:
		return "uuid"
	case TypeJSON:
		return "json"
	case TypeBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Valid reports whether t is a known column type
func (t ColumnType) Valid() bool {
	return t >= TypeInteger && t <= TypeBinary
}

// IsNumeric returns true for integer, float and decimal types
func (t ColumnType) IsNumeric() bool {
	return t == TypeInteger || t == TypeBigInt || t == TypeFloat || t == TypeDecimal
}

// ParseColumnType converts a string to a ColumnType
func ParseColumnType(s string) (ColumnType, error) {
	switch s {
	case "integer", "int":
		return TypeInteger, nil
	case "bigint":
		return TypeBigInt, nil
	case "string", "varchar":
		return TypeString, nil
	case "text":
		return TypeText, nil
	case "float", "double":
		return TypeFloat, nil
	case "decimal", "numeric":
		return TypeDecimal, nil
	case "bool", "boolean":
		return TypeBool, nil
	case "timestamp", "datetime":
		return TypeTimestamp, nil
	case "date":
		return TypeDate, nil
	case "time":
		return TypeTime, nil
	case "uuid":
		return TypeUUID, nil
	case "json", "jsonb":
		return TypeJSON, nil
	case "binary", "bytes", "blob":
		return TypeBinary, nil
	default:
		return 0, fmt.Errorf("unknown column type: %s", s)
	}
}

// CascadeAction represents referential actions for foreign keys
type CascadeAction int

const (
	CascadeNoAction CascadeAction = iota
	CascadeRestrict
	CascadeCascade
	CascadeSetNull
)

// String returns the string representation of the cascade action
func (c CascadeAction) String() string {
	switch c {
	case CascadeNoAction:
		return "no_action"
	case CascadeRestrict:
		return "restrict"
	case CascadeCascade:
		return "cascade"
	case CascadeSetNull:
		return "set_null"
	default:
		return "unknown"
	}
}

// ParseCascadeAction converts a string to a CascadeAction
func ParseCascadeAction(s string) (CascadeAction, error) {
	switch s {
	case "", "no_action":
		return CascadeNoAction, nil
	case "restrict":
		return CascadeRestrict, nil
	case "cascade":
		return CascadeCascade, nil
	case "set_null":
		return CascadeSetNull, nil
	default:
		return 0, fmt.Errorf("unknown cascade action: %s", s)
	}
}

// ForeignKey is a column-level reference to another table's column
type ForeignKey struct {
	Table    string
	Column   string
	OnDelete CascadeAction
	OnUpdate CascadeAction
}

// Column represents one column of a table
type Column struct {
	Name      string
	Type      ColumnType
	Length    int // string(N); 0 means dialect default
	Precision int // decimal(P,S)
	Scale     int
	Nullable  bool

	PrimaryKey bool
	Unique     bool
	Index      bool

	// Default is a SQL default expression, emitted verbatim
	Default string

	ForeignKey *ForeignKey
}

// Constraint is a table-level constraint. Name is empty until the table is
// registered, at which point the naming convention fills it in.
type Constraint struct {
	Kind    naming.Category
	Name    string
	Columns []string

	// Identifier feeds the %(constraint_name)s token; required for checks
	Identifier string

	// Expression is the boolean SQL expression of a check constraint
	Expression string

	ReferredTable   string
	ReferredColumns []string
	OnDelete        CascadeAction
	OnUpdate        CascadeAction
}

// Index represents a secondary index
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Table represents the structure of one data-model type
type Table struct {
	Name        string
	Comment     string
	Columns     []*Column
	Constraints []*Constraint
	Indexes     []*Index
}

// Column returns the column with the given name
func (t *Table) Column(name string) (*Column, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return nil, false
}

// HasColumn returns true if the table declares the column
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// ColumnNames returns column names in declaration order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// ConstraintsOf returns the constraints of one category in declaration order
func (t *Table) ConstraintsOf(kind naming.Category) []*Constraint {
	var result []*Constraint
	for _, c := range t.Constraints {
		if c.Kind == kind {
			result = append(result, c)
		}
	}
	return result
}

// PrimaryKey returns the primary key constraint, if any
func (t *Table) PrimaryKey() (*Constraint, bool) {
	pks := t.ConstraintsOf(naming.CategoryPrimaryKey)
	if len(pks) == 0 {
		return nil, false
	}
	return pks[0], true
}

// ForeignKeys returns the foreign key constraints
func (t *Table) ForeignKeys() []*Constraint {
	return t.ConstraintsOf(naming.CategoryForeignKey)
}

// Constraint returns the constraint with the given name
func (t *Table) Constraint(name string) (*Constraint, bool) {
	for _, c := range t.Constraints {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Index returns the index with the given name
func (t *Table) Index(name string) (*Index, bool) {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return nil, false
}

// ObjectNames returns the names of every constraint and index of the table
func (t *Table) ObjectNames() []string {
	names := make([]string, 0, len(t.Constraints)+len(t.Indexes))
	for _, c := range t.Constraints {
		names = append(names, c.Name)
	}
	for _, idx := range t.Indexes {
		names = append(names, idx.Name)
	}
	return names
}

// Clone returns a deep copy of the table
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}

	clone := &Table{
		Name:        t.Name,
		Comment:     t.Comment,
		Columns:     make([]*Column, len(t.Columns)),
		Constraints: make([]*Constraint, len(t.Constraints)),
		Indexes:     make([]*Index, len(t.Indexes)),
	}

	// nil entries are kept so that validation can reject them
	for i, col := range t.Columns {
		if col == nil {
			continue
		}
		c := *col
		if col.ForeignKey != nil {
			fk := *col.ForeignKey
			c.ForeignKey = &fk
		}
		clone.Columns[i] = &c
	}

	for i, con := range t.Constraints {
		if con == nil {
			continue
		}
		c := *con
		c.Columns = cloneStrings(con.Columns)
		c.ReferredColumns = cloneStrings(con.ReferredColumns)
		clone.Constraints[i] = &c
	}

	for i, idx := range t.Indexes {
		if idx == nil {
			continue
		}
		x := *idx
		x.Columns = cloneStrings(idx.Columns)
		clone.Indexes[i] = &x
	}

	return clone
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
