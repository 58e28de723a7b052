package migrate

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/sharedorm/internal/orm/codegen"
	"github.com/conduit-lang/sharedorm/pkg/orm/schema"
)

// Plan is a rendered migration. It is handed to an external migration tool
// and never executed here.
type Plan struct {
	Version  int64  // Unix milliseconds, for ordering
	Name     string // Human-readable name
	Up       string // SQL to apply
	Down     string // SQL to roll back
	Breaking bool   // Requires manual review
	DataLoss bool   // May cause data loss
	Changes  []SchemaChange
}

// Generator renders migration plans for a dialect
type Generator struct {
	dialect    codegen.Dialect
	ddlGen     *codegen.DDLGenerator
	typeMapper *codegen.TypeMapper
	logger     *zap.Logger
	now        func() time.Time
}

// NewGenerator creates a new migration generator. A nil logger disables logging.
func NewGenerator(dialect codegen.Dialect, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		dialect:    dialect,
		ddlGen:     codegen.NewDDLGenerator(dialect),
		typeMapper: codegen.NewTypeMapper(dialect),
		logger:     logger,
		now:        time.Now,
	}
}

// GeneratePlan diffs two snapshots and renders the result. It returns nil
// when there is nothing to migrate. A nil old snapshot renders the whole new
// schema.
func (g *Generator) GeneratePlan(oldSnapshot, newSnapshot *Snapshot) (*Plan, error) {
	changes := NewDiffer(oldSnapshot, newSnapshot).ComputeDiff()
	if len(changes) == 0 {
		return nil, nil // No changes
	}

	now := g.now()
	plan := &Plan{
		Version: now.UnixMilli(),
		Name:    GenerateMigrationName(changes),
		Changes: changes,
	}

	// Check for breaking changes and data loss
	for _, change := range changes {
		if change.Breaking {
			plan.Breaking = true
		}
		if change.DataLoss {
			plan.DataLoss = true
		}
	}

	upSQL, err := g.generateUpSQL(changes, now)
	if err != nil {
		return nil, fmt.Errorf("generating up SQL: %w", err)
	}
	plan.Up = upSQL

	downSQL, err := g.generateDownSQL(changes, now)
	if err != nil {
		return nil, fmt.Errorf("generating down SQL: %w", err)
	}
	plan.Down = downSQL

	g.logger.Info("generated migration plan",
		zap.String("name", plan.Name),
		zap.Int("changes", len(changes)),
		zap.Bool("breaking", plan.Breaking),
		zap.Bool("data_loss", plan.DataLoss),
	)

	return plan, nil
}

// generateUpSQL generates forward migration SQL
func (g *Generator) generateUpSQL(changes []SchemaChange, now time.Time) (string, error) {
	var sql strings.Builder

	sql.WriteString("-- Auto-generated migration\n")
	sql.WriteString(fmt.Sprintf("-- Generated at: %s\n\n", now.UTC().Format(time.RFC3339)))

	for _, change := range changes {
		stmt, err := g.render(change, false)
		if err != nil {
			return "", fmt.Errorf("%s: %w", change, err)
		}
		sql.WriteString(stmt)
		sql.WriteString("\n")
	}

	return sql.String(), nil
}

// generateDownSQL generates reverse migration SQL
func (g *Generator) generateDownSQL(changes []SchemaChange, now time.Time) (string, error) {
	var sql strings.Builder

	sql.WriteString("-- Rollback migration\n")
	sql.WriteString(fmt.Sprintf("-- Generated at: %s\n\n", now.UTC().Format(time.RFC3339)))

	// Process changes in reverse order
	for i := len(changes) - 1; i >= 0; i-- {
		stmt, err := g.render(changes[i], true)
		if err != nil {
			return "", fmt.Errorf("reverting %s: %w", changes[i], err)
		}
		sql.WriteString(stmt)
		sql.WriteString("\n")
	}

	return sql.String(), nil
}

// render produces the SQL for one change, or for its inverse when reverse is set
func (g *Generator) render(change SchemaChange, reverse bool) (string, error) {
	switch change.Type {
	case ChangeAddTable:
		if reverse {
			return g.dropTable(change.Table), nil
		}
		return g.createTable(change.NewValue.(*TableSnapshot))

	case ChangeDropTable:
		if reverse {
			return g.createTable(change.OldValue.(*TableSnapshot))
		}
		return g.dropTable(change.Table), nil

	case ChangeAddColumn:
		if reverse {
			return g.dropColumn(change.Table, change.Name), nil
		}
		return g.addColumn(change.Table, change.NewValue.(*ColumnSnapshot))

	case ChangeDropColumn:
		if reverse {
			return g.addColumn(change.Table, change.OldValue.(*ColumnSnapshot))
		}
		return g.dropColumn(change.Table, change.Name), nil

	case ChangeModifyColumn:
		oldCol, newCol := change.OldValue.(*ColumnSnapshot), change.NewValue.(*ColumnSnapshot)
		if reverse {
			oldCol, newCol = newCol, oldCol
		}
		return g.modifyColumn(change.Table, oldCol, newCol)

	case ChangeAddConstraint:
		if reverse {
			return g.ddlGen.Constraints().Drop(change.Table, change.Name)
		}
		return g.addConstraint(change.Table, change.NewValue.(*ConstraintSnapshot))

	case ChangeDropConstraint:
		if reverse {
			return g.addConstraint(change.Table, change.OldValue.(*ConstraintSnapshot))
		}
		return g.ddlGen.Constraints().Drop(change.Table, change.Name)

	case ChangeAddIndex:
		if reverse {
			return g.ddlGen.Indexes().DropIndex(change.Name), nil
		}
		return g.createIndex(change.Table, change.NewValue.(*IndexSnapshot))

	case ChangeDropIndex:
		if reverse {
			return g.createIndex(change.Table, change.OldValue.(*IndexSnapshot))
		}
		return g.ddlGen.Indexes().DropIndex(change.Name), nil

	default:
		return "", fmt.Errorf("unsupported change type %s", change.Type)
	}
}

func (g *Generator) createTable(ts *TableSnapshot) (string, error) {
	t, err := ts.ToTable()
	if err != nil {
		return "", err
	}

	ddl, err := g.ddlGen.GenerateSchema(t)
	if err != nil {
		return "", fmt.Errorf("generating CREATE TABLE: %w", err)
	}
	return fmt.Sprintf("-- Add table: %s\n%s", ts.Name, ddl), nil
}

func (g *Generator) dropTable(table string) string {
	return fmt.Sprintf("-- Drop table: %s\n%s", table, g.ddlGen.GenerateDropTable(&schema.Table{Name: table}))
}

func (g *Generator) addColumn(table string, cs *ColumnSnapshot) (string, error) {
	col, err := cs.toColumn()
	if err != nil {
		return "", err
	}

	def, err := g.ddlGen.ColumnDefinition(col)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", codegen.QuoteIdentifier(table), def), nil
}

func (g *Generator) dropColumn(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", codegen.QuoteIdentifier(table), codegen.QuoteIdentifier(column))
}

// modifyColumn alters type, nullability and default of an existing column
func (g *Generator) modifyColumn(table string, oldCS, newCS *ColumnSnapshot) (string, error) {
	if g.dialect != codegen.Postgres {
		return "", fmt.Errorf("%s cannot alter column %s.%s; the table must be rebuilt", g.dialect, table, newCS.Name)
	}

	oldCol, err := oldCS.toColumn()
	if err != nil {
		return "", err
	}
	newCol, err := newCS.toColumn()
	if err != nil {
		return "", err
	}

	prefix := fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s", codegen.QuoteIdentifier(table), codegen.QuoteIdentifier(newCol.Name))
	var stmts []string

	oldType, err := g.typeMapper.MapType(oldCol)
	if err != nil {
		return "", err
	}
	newType, err := g.typeMapper.MapType(newCol)
	if err != nil {
		return "", err
	}
	if oldType != newType {
		stmts = append(stmts, fmt.Sprintf("%s TYPE %s;", prefix, newType))
	}

	if oldCol.Nullable != newCol.Nullable {
		if newCol.Nullable {
			stmts = append(stmts, prefix+" DROP NOT NULL;")
		} else {
			stmts = append(stmts, prefix+" SET NOT NULL;")
		}
	}

	oldDefault, newDefault := g.typeMapper.MapDefault(oldCol), g.typeMapper.MapDefault(newCol)
	if oldDefault != newDefault {
		if newDefault != "" {
			stmts = append(stmts, fmt.Sprintf("%s SET DEFAULT %s;", prefix, newDefault))
		} else {
			stmts = append(stmts, prefix+" DROP DEFAULT;")
		}
	}

	if len(stmts) == 0 {
		return fmt.Sprintf("-- %s.%s: no column DDL required", table, newCol.Name), nil
	}
	return strings.Join(stmts, "\n"), nil
}

func (g *Generator) addConstraint(table string, cs *ConstraintSnapshot) (string, error) {
	c, err := cs.toConstraint()
	if err != nil {
		return "", err
	}
	return g.ddlGen.Constraints().Add(table, c)
}

func (g *Generator) createIndex(table string, is *IndexSnapshot) (string, error) {
	return g.ddlGen.Indexes().CreateIndex(table, &schema.Index{
		Name:    is.Name,
		Columns: is.Columns,
		Unique:  is.Unique,
	})
}
