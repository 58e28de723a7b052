package schema

import (
	"fmt"
	"regexp"

	"github.com/conduit-lang/sharedorm/pkg/orm/naming"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validateStructural checks a single table without looking at other tables.
// Foreign key targets are checked later by MetaData.Validate so that tables
// may reference tables registered after them.
func validateStructural(t *Table) error {
	if t.Name == "" {
		return conflict("", "table name is required")
	}
	if !identifierPattern.MatchString(t.Name) {
		return conflict(t.Name, "table name is not a valid identifier")
	}
	if len(t.Columns) == 0 {
		return conflict(t.Name, "table must declare at least one column")
	}

	if err := validateColumns(t); err != nil {
		return err
	}
	if err := validatePrimaryKey(t); err != nil {
		return err
	}
	if err := validateConstraints(t); err != nil {
		return err
	}
	return validateIndexes(t)
}

func validateColumns(t *Table) error {
	seen := make(map[string]bool, len(t.Columns))

	for _, col := range t.Columns {
		if col == nil {
			return conflict(t.Name, "nil column definition")
		}
		if col.Name == "" {
			return conflict(t.Name, "column name is required")
		}
		if !identifierPattern.MatchString(col.Name) {
			return columnConflict(t.Name, col.Name, "column name is not a valid identifier")
		}
		if seen[col.Name] {
			return columnConflict(t.Name, col.Name, "column declared twice")
		}
		seen[col.Name] = true

		if !col.Type.Valid() {
			return columnConflict(t.Name, col.Name, fmt.Sprintf("unknown column type %d", col.Type))
		}
		if col.Length < 0 {
			return columnConflict(t.Name, col.Name, "length must not be negative")
		}
		if col.Precision < 0 || col.Scale < 0 {
			return columnConflict(t.Name, col.Name, "precision and scale must not be negative")
		}
		if col.Scale > col.Precision && col.Precision > 0 {
			return columnConflict(t.Name, col.Name, fmt.Sprintf("scale %d exceeds precision %d", col.Scale, col.Precision))
		}
		if col.PrimaryKey && col.Nullable {
			return columnConflict(t.Name, col.Name, "primary key column cannot be nullable")
		}
		if col.ForeignKey != nil {
			if col.ForeignKey.Table == "" || col.ForeignKey.Column == "" {
				return columnConflict(t.Name, col.Name, "foreign key must name a table and a column")
			}
		}
	}

	return nil
}

func validatePrimaryKey(t *Table) error {
	var flagged []string
	for _, col := range t.Columns {
		if col.PrimaryKey {
			flagged = append(flagged, col.Name)
		}
	}

	declared := t.ConstraintsOf(naming.CategoryPrimaryKey)
	if len(declared) > 1 {
		return conflict(t.Name, "primary key declared more than once")
	}

	if len(declared) == 1 {
		if len(declared[0].Columns) == 0 {
			return conflict(t.Name, "primary key constraint has no columns")
		}
		if len(flagged) > 0 && !sameSet(flagged, declared[0].Columns) {
			return conflict(t.Name, "column-level and table-level primary keys disagree")
		}
		return nil
	}

	if len(flagged) == 0 {
		return conflict(t.Name, "table has no primary key column")
	}
	return nil
}

func validateConstraints(t *Table) error {
	for _, c := range t.Constraints {
		if c == nil {
			return conflict(t.Name, "nil constraint definition")
		}
		if !c.Kind.Valid() {
			return &SchemaConflictError{Table: t.Name, Constraint: c.Name, Reason: fmt.Sprintf("unsupported constraint category %q", c.Kind)}
		}

		for _, colName := range c.Columns {
			col, ok := t.Column(colName)
			if !ok {
				return &SchemaConflictError{Table: t.Name, Column: colName, Constraint: c.Name, Reason: fmt.Sprintf("%s constraint references unknown column", c.Kind.Description())}
			}
			if c.Kind == naming.CategoryPrimaryKey && col.Nullable {
				return columnConflict(t.Name, colName, "primary key column cannot be nullable")
			}
		}

		switch c.Kind {
		case naming.CategoryCheck:
			if c.Expression == "" {
				return &SchemaConflictError{Table: t.Name, Constraint: c.Name, Reason: "check constraint has no expression"}
			}
		case naming.CategoryUnique:
			if len(c.Columns) == 0 {
				return &SchemaConflictError{Table: t.Name, Constraint: c.Name, Reason: "unique constraint has no columns"}
			}
		case naming.CategoryForeignKey:
			if len(c.Columns) == 0 {
				return &SchemaConflictError{Table: t.Name, Constraint: c.Name, Reason: "foreign key has no columns"}
			}
			if c.ReferredTable == "" {
				return &SchemaConflictError{Table: t.Name, Constraint: c.Name, Reason: "foreign key has no referred table"}
			}
			if len(c.ReferredColumns) != len(c.Columns) {
				return &SchemaConflictError{Table: t.Name, Constraint: c.Name, Reason: "foreign key column count does not match referred columns"}
			}
		}
	}

	return nil
}

func validateIndexes(t *Table) error {
	for _, idx := range t.Indexes {
		if idx == nil {
			return conflict(t.Name, "nil index definition")
		}
		if len(idx.Columns) == 0 {
			return &SchemaConflictError{Table: t.Name, Constraint: idx.Name, Reason: "index has no columns"}
		}
		for _, colName := range idx.Columns {
			if !t.HasColumn(colName) {
				return &SchemaConflictError{Table: t.Name, Column: colName, Constraint: idx.Name, Reason: "index references unknown column"}
			}
		}
	}
	return nil
}

// materialize turns column flags into table-level constraints and indexes and
// names everything that has no explicit name. It runs on a private copy, so
// the caller's definition is never touched.
func materialize(t *Table, convention *naming.Convention) error {
	if _, ok := t.PrimaryKey(); !ok {
		var pkCols []string
		for _, col := range t.Columns {
			if col.PrimaryKey {
				pkCols = append(pkCols, col.Name)
			}
		}
		pk := &Constraint{Kind: naming.CategoryPrimaryKey, Columns: pkCols}
		t.Constraints = append([]*Constraint{pk}, t.Constraints...)
	}

	pk, _ := t.PrimaryKey()
	for _, name := range pk.Columns {
		col, _ := t.Column(name)
		col.PrimaryKey = true
		col.Nullable = false
	}

	for _, col := range t.Columns {
		switch {
		case col.Index:
			t.Indexes = append(t.Indexes, &Index{Columns: []string{col.Name}, Unique: col.Unique})
		case col.Unique:
			if !hasUniqueOn(t, col.Name) {
				t.Constraints = append(t.Constraints, &Constraint{
					Kind:    naming.CategoryUnique,
					Columns: []string{col.Name},
				})
			}
		}

		if col.ForeignKey != nil {
			t.Constraints = append(t.Constraints, &Constraint{
				Kind:            naming.CategoryForeignKey,
				Columns:         []string{col.Name},
				ReferredTable:   col.ForeignKey.Table,
				ReferredColumns: []string{col.ForeignKey.Column},
				OnDelete:        col.ForeignKey.OnDelete,
				OnUpdate:        col.ForeignKey.OnUpdate,
			})
		}
	}

	for _, c := range t.Constraints {
		if c.Name != "" {
			continue
		}
		name, err := convention.Name(naming.Input{
			Category:        c.Kind,
			Table:           t.Name,
			Columns:         c.Columns,
			ReferredTable:   c.ReferredTable,
			ReferredColumns: c.ReferredColumns,
			ConstraintName:  c.Identifier,
		})
		if err != nil {
			return &SchemaConflictError{Table: t.Name, Reason: fmt.Sprintf("cannot name %s constraint", c.Kind.Description()), Err: err}
		}
		c.Name = name
	}

	for _, idx := range t.Indexes {
		if idx.Name != "" {
			continue
		}
		name, err := convention.Name(naming.Input{
			Category: naming.CategoryIndex,
			Table:    t.Name,
			Columns:  idx.Columns,
		})
		if err != nil {
			return &SchemaConflictError{Table: t.Name, Reason: "cannot name index", Err: err}
		}
		idx.Name = name
	}

	seen := make(map[string]bool)
	for _, name := range t.ObjectNames() {
		if seen[name] {
			return &SchemaConflictError{Table: t.Name, Constraint: name, Reason: "constraint name used twice in table"}
		}
		seen[name] = true
	}

	return nil
}

func hasUniqueOn(t *Table, column string) bool {
	for _, c := range t.ConstraintsOf(naming.CategoryUnique) {
		if len(c.Columns) == 1 && c.Columns[0] == column {
			return true
		}
	}
	return false
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	m := make(map[string]bool, len(a))
	for _, x := range a {
		m[x] = true
	}
	for _, x := range b {
		if !m[x] {
			return false
		}
	}
	return true
}
