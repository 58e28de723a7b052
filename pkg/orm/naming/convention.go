package naming

import (
	"fmt"
	"sort"
)

// DefaultTemplates are the templates of the shared convention
var defaultTemplates = map[Category]string{
	CategoryIndex:      "ix_%(column_0_label)s",
	CategoryUnique:     "uq_%(table_name)s_%(column_0_name)s",
	CategoryCheck:      "ck_%(table_name)s_%(constraint_name)s",
	CategoryForeignKey: "fk_%(table_name)s_%(column_0_name)s_%(referred_table_name)s",
	CategoryPrimaryKey: "pk_%(table_name)s",
}

var defaultConvention = mustConvention(defaultTemplates)

// Input holds everything a template may consume
type Input struct {
	Category        Category
	Table           string
	Columns         []string
	ReferredTable   string
	ReferredColumns []string

	// ConstraintName is the check identifier used by the ck template
	ConstraintName string
}

// Convention is an immutable mapping from constraint category to name template.
// A Convention is safe for concurrent use.
type Convention struct {
	templates map[Category]*compiledTemplate
}

// NewConvention builds a convention from category templates. Every template is
// validated up front; the input map is copied.
func NewConvention(templates map[Category]string) (*Convention, error) {
	c := &Convention{templates: make(map[Category]*compiledTemplate, len(templates))}

	for category, tmpl := range templates {
		if !category.Valid() {
			return nil, &NamingInputError{Category: category, Template: tmpl, Reason: fmt.Sprintf("unsupported category %q", category)}
		}
		ct, err := compileTemplate(category, tmpl)
		if err != nil {
			return nil, err
		}
		c.templates[category] = ct
	}

	return c, nil
}

// Default returns the shared convention
func Default() *Convention {
	return defaultConvention
}

// Templates returns a copy of the category templates
func (c *Convention) Templates() map[Category]string {
	result := make(map[Category]string, len(c.templates))
	for category, ct := range c.templates {
		result[category] = ct.source
	}
	return result
}

// Template returns the template for a category
func (c *Convention) Template(category Category) (string, bool) {
	ct, ok := c.templates[category]
	if !ok {
		return "", false
	}
	return ct.source, true
}

// Has reports whether the convention defines a template for the category
func (c *Convention) Has(category Category) bool {
	_, ok := c.templates[category]
	return ok
}

// Categories returns the categories the convention covers, sorted
func (c *Convention) Categories() []Category {
	categories := make([]Category, 0, len(c.templates))
	for category := range c.templates {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
	return categories
}

// Equal reports whether both conventions produce identical names
func (c *Convention) Equal(other *Convention) bool {
	if other == nil || len(c.templates) != len(other.templates) {
		return false
	}
	for category, ct := range c.templates {
		o, ok := other.templates[category]
		if !ok || o.source != ct.source {
			return false
		}
	}
	return true
}

// Name expands the template for in.Category. The result depends only on the
// input: there are no counters and no randomness.
func (c *Convention) Name(in Input) (string, error) {
	if !in.Category.Valid() {
		return "", &NamingInputError{Category: in.Category, Table: in.Table, Reason: fmt.Sprintf("unsupported category %q", in.Category)}
	}
	if in.Table == "" {
		return "", &NamingInputError{Category: in.Category, Reason: "table name is required"}
	}
	if in.Category.requiresColumns() && len(in.Columns) == 0 {
		return "", &NamingInputError{Category: in.Category, Table: in.Table, Reason: "at least one column name is required"}
	}
	for _, col := range in.Columns {
		if col == "" {
			return "", &NamingInputError{Category: in.Category, Table: in.Table, Reason: "column names must not be empty"}
		}
	}
	if in.Category == CategoryForeignKey && in.ReferredTable == "" {
		return "", &NamingInputError{Category: in.Category, Table: in.Table, Reason: "foreign key names require a referred table"}
	}
	if in.Category == CategoryCheck && in.ConstraintName == "" {
		return "", &NamingInputError{Category: in.Category, Table: in.Table, Reason: "check constraint names require an identifier"}
	}

	ct, ok := c.templates[in.Category]
	if !ok {
		return "", &NamingInputError{Category: in.Category, Table: in.Table, Reason: "convention has no template for category"}
	}

	return ct.expand(in)
}

// GenerateConstraintName builds a name from positional inputs. For check
// constraints the first element of columns is the check identifier.
func (c *Convention) GenerateConstraintName(category Category, table string, columns []string, referredTable string) (string, error) {
	in := Input{
		Category:      category,
		Table:         table,
		Columns:       columns,
		ReferredTable: referredTable,
	}
	if category == CategoryCheck {
		in.Columns = nil
		if len(columns) > 0 {
			in.ConstraintName = columns[0]
		}
	}
	return c.Name(in)
}

// GenerateConstraintName builds a name with the default convention
func GenerateConstraintName(category Category, table string, columns []string, referredTable string) (string, error) {
	return defaultConvention.GenerateConstraintName(category, table, columns, referredTable)
}

func mustConvention(templates map[Category]string) *Convention {
	c, err := NewConvention(templates)
	if err != nil {
		panic(err)
	}
	return c
}
