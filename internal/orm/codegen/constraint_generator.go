package codegen

import (
	"fmt"

	"github.com/conduit-lang/sharedorm/pkg/orm/naming"
	"github.com/conduit-lang/sharedorm/pkg/orm/schema"
)

// ConstraintGenerator renders named table constraints. Names always come from
// the registry; the generator never invents one.
type ConstraintGenerator struct {
	dialect Dialect
}

// NewConstraintGenerator creates a new constraint generator
func NewConstraintGenerator(dialect Dialect) *ConstraintGenerator {
	return &ConstraintGenerator{dialect: dialect}
}

// Definition renders a constraint as a table element:
//
//	CONSTRAINT "fk_orders_user_id_users" FOREIGN KEY ("user_id") REFERENCES "users" ("id") ON DELETE CASCADE
func (g *ConstraintGenerator) Definition(c *schema.Constraint) (string, error) {
	if c == nil {
		return "", fmt.Errorf("constraint cannot be nil")
	}
	if c.Name == "" {
		return "", fmt.Errorf("%s constraint has no name", c.Kind.Description())
	}

	prefix := "CONSTRAINT " + QuoteIdentifier(c.Name) + " "

	switch c.Kind {
	case naming.CategoryPrimaryKey:
		return prefix + fmt.Sprintf("PRIMARY KEY (%s)", quoteColumns(c.Columns)), nil

	case naming.CategoryUnique:
		return prefix + fmt.Sprintf("UNIQUE (%s)", quoteColumns(c.Columns)), nil

	case naming.CategoryCheck:
		return prefix + fmt.Sprintf("CHECK (%s)", c.Expression), nil

	case naming.CategoryForeignKey:
		fk := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			quoteColumns(c.Columns),
			QuoteIdentifier(c.ReferredTable),
			quoteColumns(c.ReferredColumns),
		)
		fk += formatCascadeAction("ON DELETE", c.OnDelete)
		fk += formatCascadeAction("ON UPDATE", c.OnUpdate)
		return prefix + fk, nil

	default:
		return "", fmt.Errorf("unsupported constraint category %q", c.Kind)
	}
}

// Add renders ALTER TABLE ... ADD CONSTRAINT
func (g *ConstraintGenerator) Add(table string, c *schema.Constraint) (string, error) {
	if !g.dialect.SupportsAlterConstraint() {
		return "", fmt.Errorf("%s cannot add constraints to an existing table", g.dialect)
	}

	def, err := g.Definition(c)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD %s;", QuoteIdentifier(table), def), nil
}

// Drop renders ALTER TABLE ... DROP CONSTRAINT
func (g *ConstraintGenerator) Drop(table, name string) (string, error) {
	if !g.dialect.SupportsAlterConstraint() {
		return "", fmt.Errorf("%s cannot drop constraints from an existing table", g.dialect)
	}
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s;", QuoteIdentifier(table), QuoteIdentifier(name)), nil
}

// formatCascadeAction renders a referential action. NO ACTION is the SQL
// default and is left out.
func formatCascadeAction(prefix string, action schema.CascadeAction) string {
	var actionStr string
	switch action {
	case schema.CascadeRestrict:
		actionStr = "RESTRICT"
	case schema.CascadeCascade:
		actionStr = "CASCADE"
	case schema.CascadeSetNull:
		actionStr = "SET NULL"
	default:
		return ""
	}

	return fmt.Sprintf(" %s %s", prefix, actionStr)
}
