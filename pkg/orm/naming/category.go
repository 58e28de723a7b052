// Package naming provides the deterministic constraint naming convention shared
// by every table registered in a schema registry.
//
// A convention maps each constraint category to a template such as
// "uq_%(table_name)s_%(column_0_name)s". Expanding a template is a pure
// function of its inputs, so the names a migration tool derives from the
// registry are identical across runs and processes.
package naming

import "fmt"

// Category identifies the kind of constraint a name is generated for
type Category string

const (
	CategoryIndex      Category = "ix"
	CategoryUnique     Category = "uq"
	CategoryCheck      Category = "ck"
	CategoryForeignKey Category = "fk"
	CategoryPrimaryKey Category = "pk"
)

// Categories lists every supported category in a stable order
var Categories = []Category{
	CategoryIndex,
	CategoryUnique,
	CategoryCheck,
	CategoryForeignKey,
	CategoryPrimaryKey,
}

// String returns the short category key
func (c Category) String() string {
	return string(c)
}

// Description returns a human-readable description of the category
func (c Category) Description() string {
	switch c {
	case CategoryIndex:
		return "index"
	case CategoryUnique:
		return "unique"
	case CategoryCheck:
		return "check"
	case CategoryForeignKey:
		return "foreign key"
	case CategoryPrimaryKey:
		return "primary key"
	default:
		return "unknown"
	}
}

// Valid reports whether c is one of the supported categories
func (c Category) Valid() bool {
	switch c {
	case CategoryIndex, CategoryUnique, CategoryCheck, CategoryForeignKey, CategoryPrimaryKey:
		return true
	default:
		return false
	}
}

// requiresColumns reports whether names in this category need at least one column
func (c Category) requiresColumns() bool {
	return c == CategoryIndex || c == CategoryUnique || c == CategoryForeignKey
}

// ParseCategory converts a category key ("ix", "uq", ...) or its long form
// ("index", "unique", "check", "foreign_key", "primary_key") to a Category
func ParseCategory(s string) (Category, error) {
	switch s {
	case "ix", "index":
		return CategoryIndex, nil
	case "uq", "unique":
		return CategoryUnique, nil
	case "ck", "check":
		return CategoryCheck, nil
	case "fk", "foreign_key":
		return CategoryForeignKey, nil
	case "pk", "primary_key":
		return CategoryPrimaryKey, nil
	default:
		return "", &NamingInputError{Category: Category(s), Reason: fmt.Sprintf("unsupported category %q", s)}
	}
}
