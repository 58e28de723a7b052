package migrate

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/conduit-lang/sharedorm/pkg/orm/naming"
	"github.com/conduit-lang/sharedorm/pkg/orm/schema"
)

// ChangeType represents the type of schema change
type ChangeType int

// The declaration order is also the order in which changes are applied
const (
	ChangeDropConstraint ChangeType = iota
	ChangeDropIndex
	ChangeDropTable
	ChangeAddTable
	ChangeAddColumn
	ChangeModifyColumn
	ChangeDropColumn
	ChangeAddConstraint
	ChangeAddIndex
)

// String returns the string representation of the change type
func (c ChangeType) String() string {
	switch c {
	case ChangeAddTable:
		return "add_table"
	case ChangeDropTable:
		return "drop_table"
	case ChangeAddColumn:
		return "add_column"
	case ChangeDropColumn:
		return "drop_column"
	case ChangeModifyColumn:
		return "modify_column"
	case ChangeAddConstraint:
		return "add_constraint"
	case ChangeDropConstraint:
		return "drop_constraint"
	case ChangeAddIndex:
		return "add_index"
	case ChangeDropIndex:
		return "drop_index"
	default:
		return "unknown"
	}
}

// SchemaChange represents a detected change between snapshots. Name holds
// the column, constraint or index the change applies to. OldValue and
// NewValue hold the matching *TableSnapshot, *ColumnSnapshot,
// *ConstraintSnapshot or *IndexSnapshot.
type SchemaChange struct {
	Type     ChangeType
	Table    string
	Name     string
	OldValue interface{}
	NewValue interface{}
	Breaking bool
	DataLoss bool
}

// String renders the change for humans, e.g. "add_constraint users.uq_users_email"
func (c SchemaChange) String() string {
	if c.Name == "" {
		return fmt.Sprintf("%s %s", c.Type, c.Table)
	}
	return fmt.Sprintf("%s %s.%s", c.Type, c.Table, c.Name)
}

// Differ compares an old and a new snapshot. A nil snapshot is empty.
type Differ struct {
	oldSnapshot *Snapshot
	newSnapshot *Snapshot
}

// NewDiffer creates a new snapshot differ
func NewDiffer(oldSnapshot, newSnapshot *Snapshot) *Differ {
	return &Differ{
		oldSnapshot: oldSnapshot,
		newSnapshot: newSnapshot,
	}
}

// ComputeDiff computes all changes between the snapshots. Changes are ordered
// so that applying them top to bottom is safe: constraints and indexes are
// dropped before their tables, new tables are created referenced tables
// first, and constraints are added once every column exists.
func (d *Differ) ComputeDiff() []SchemaChange {
	var changes []SchemaChange

	oldNames := d.oldSnapshot.TableNames()
	newNames := d.newSnapshot.TableNames()

	// Detect added tables
	added := setDifference(newNames, oldNames)
	for _, name := range d.creationOrder(added) {
		t, _ := d.newSnapshot.Table(name)
		changes = append(changes, SchemaChange{
			Type:     ChangeAddTable,
			Table:    name,
			NewValue: t,
		})
	}

	// Detect dropped tables, dependents first
	dropped := d.creationOrderOld(setDifference(oldNames, newNames))
	for i := len(dropped) - 1; i >= 0; i-- {
		t, _ := d.oldSnapshot.Table(dropped[i])
		changes = append(changes, SchemaChange{
			Type:     ChangeDropTable,
			Table:    dropped[i],
			OldValue: t,
			Breaking: true,
			DataLoss: true,
		})
	}

	// Detect changes in existing tables
	for _, name := range setIntersection(oldNames, newNames) {
		oldTable, _ := d.oldSnapshot.Table(name)
		newTable, _ := d.newSnapshot.Table(name)

		changes = append(changes, d.diffColumns(oldTable, newTable)...)
		changes = append(changes, d.diffConstraints(oldTable, newTable)...)
		changes = append(changes, d.diffIndexes(oldTable, newTable)...)
	}

	// Stable sort keeps table creation order and per-table order within a phase
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].Type < changes[j].Type
	})

	return changes
}

// diffColumns compares columns between old and new table
func (d *Differ) diffColumns(oldTable, newTable *TableSnapshot) []SchemaChange {
	var changes []SchemaChange

	for _, col := range newTable.Columns {
		if _, ok := oldTable.Column(col.Name); ok {
			continue
		}
		changes = append(changes, SchemaChange{
			Type:     ChangeAddColumn,
			Table:    newTable.Name,
			Name:     col.Name,
			NewValue: col,
			Breaking: !col.Nullable && col.Default == "",
		})
	}

	for _, col := range oldTable.Columns {
		if _, ok := newTable.Column(col.Name); ok {
			continue
		}
		changes = append(changes, SchemaChange{
			Type:     ChangeDropColumn,
			Table:    oldTable.Name,
			Name:     col.Name,
			OldValue: col,
			Breaking: true,
			DataLoss: true,
		})
	}

	for _, oldCol := range oldTable.Columns {
		newCol, ok := newTable.Column(oldCol.Name)
		if !ok || *oldCol == *newCol {
			continue
		}
		changes = append(changes, SchemaChange{
			Type:     ChangeModifyColumn,
			Table:    newTable.Name,
			Name:     oldCol.Name,
			OldValue: oldCol,
			NewValue: newCol,
			Breaking: isBreakingColumnChange(oldCol, newCol),
			DataLoss: causesDataLoss(oldCol, newCol),
		})
	}

	return changes
}

// diffConstraints compares constraints by name. A constraint whose name is
// kept but whose definition changed is dropped and re-added.
func (d *Differ) diffConstraints(oldTable, newTable *TableSnapshot) []SchemaChange {
	var changes []SchemaChange

	for _, oldC := range oldTable.Constraints {
		newC, ok := newTable.Constraint(oldC.Name)
		if ok && reflect.DeepEqual(oldC, newC) {
			continue
		}
		changes = append(changes, SchemaChange{
			Type:     ChangeDropConstraint,
			Table:    oldTable.Name,
			Name:     oldC.Name,
			OldValue: oldC,
			Breaking: oldC.Kind == naming.CategoryPrimaryKey.String(),
		})
	}

	for _, newC := range newTable.Constraints {
		oldC, ok := oldTable.Constraint(newC.Name)
		if ok && reflect.DeepEqual(oldC, newC) {
			continue
		}
		changes = append(changes, SchemaChange{
			Type:     ChangeAddConstraint,
			Table:    newTable.Name,
			Name:     newC.Name,
			NewValue: newC,
			// Existing rows may violate the new constraint
			Breaking: true,
		})
	}

	return changes
}

// diffIndexes compares indexes by name
func (d *Differ) diffIndexes(oldTable, newTable *TableSnapshot) []SchemaChange {
	var changes []SchemaChange

	for _, oldIdx := range oldTable.Indexes {
		newIdx, ok := newTable.Index(oldIdx.Name)
		if ok && reflect.DeepEqual(oldIdx, newIdx) {
			continue
		}
		changes = append(changes, SchemaChange{
			Type:     ChangeDropIndex,
			Table:    oldTable.Name,
			Name:     oldIdx.Name,
			OldValue: oldIdx,
		})
	}

	for _, newIdx := range newTable.Indexes {
		oldIdx, ok := oldTable.Index(newIdx.Name)
		if ok && reflect.DeepEqual(oldIdx, newIdx) {
			continue
		}
		changes = append(changes, SchemaChange{
			Type:     ChangeAddIndex,
			Table:    newTable.Name,
			Name:     newIdx.Name,
			NewValue: newIdx,
			Breaking: newIdx.Unique,
		})
	}

	return changes
}

// creationOrder sorts new tables so referenced tables come first. Cycles
// fall back to name order.
func (d *Differ) creationOrder(names []string) []string {
	return dependencyOrder(d.newSnapshot, names)
}

func (d *Differ) creationOrderOld(names []string) []string {
	return dependencyOrder(d.oldSnapshot, names)
}

func dependencyOrder(s *Snapshot, names []string) []string {
	tables := make(map[string]*schema.Table, len(names))
	for _, name := range names {
		ts, _ := s.Table(name)
		t, err := ts.ToTable()
		if err != nil {
			return names
		}
		tables[name] = t
	}

	order, err := schema.NewDependencyGraph(tables).TopologicalSort()
	if err != nil {
		return names
	}
	return order
}

// isBreakingColumnChange reports changes existing rows or readers may not survive
func isBreakingColumnChange(old, new *ColumnSnapshot) bool {
	if old.Type != new.Type {
		return true
	}
	if old.Nullable && !new.Nullable {
		return true
	}
	if new.Length > 0 && (old.Length == 0 || new.Length < old.Length) {
		return true
	}
	if new.Precision > 0 && (old.Precision == 0 || new.Precision < old.Precision || new.Scale < old.Scale) {
		return true
	}
	return old.PrimaryKey != new.PrimaryKey
}

// causesDataLoss reports changes that may truncate or discard stored values
func causesDataLoss(old, new *ColumnSnapshot) bool {
	if old.Type != new.Type {
		// Widening an integer keeps every value
		return !(old.Type == schema.TypeInteger.String() && new.Type == schema.TypeBigInt.String()) &&
			!(new.Type == schema.TypeText.String() && old.Type == schema.TypeString.String())
	}
	if new.Length > 0 && (old.Length == 0 || new.Length < old.Length) {
		return true
	}
	if new.Precision > 0 && (old.Precision == 0 || new.Precision < old.Precision || new.Scale < old.Scale) {
		return true
	}
	return false
}

// Set operations
func setDifference(a, b []string) []string {
	mb := make(map[string]bool)
	for _, x := range b {
		mb[x] = true
	}

	var diff []string
	for _, x := range a {
		if !mb[x] {
			diff = append(diff, x)
		}
	}
	return diff
}

func setIntersection(a, b []string) []string {
	mb := make(map[string]bool)
	for _, x := range b {
		mb[x] = true
	}

	var inter []string
	for _, x := range a {
		if mb[x] {
			inter = append(inter, x)
		}
	}
	return inter
}

// GenerateMigrationName creates a descriptive name for the migration
func GenerateMigrationName(changes []SchemaChange) string {
	if len(changes) == 0 {
		return "no_changes"
	}

	var added, dropped, modified []string

	for _, change := range changes {
		switch change.Type {
		case ChangeAddTable:
			added = append(added, "table_"+change.Table)
		case ChangeDropTable:
			dropped = append(dropped, "table_"+change.Table)
		case ChangeAddColumn:
			added = append(added, change.Table+"_"+change.Name)
		case ChangeDropColumn:
			dropped = append(dropped, change.Table+"_"+change.Name)
		case ChangeModifyColumn:
			modified = append(modified, change.Table+"_"+change.Name)
		case ChangeAddConstraint, ChangeAddIndex:
			added = append(added, change.Name)
		case ChangeDropConstraint, ChangeDropIndex:
			dropped = append(dropped, change.Name)
		}
	}

	var parts []string
	parts = appendNamePart(parts, "add", added)
	parts = appendNamePart(parts, "drop", dropped)
	parts = appendNamePart(parts, "modify", modified)

	name := strings.Join(parts, "_and_")

	// Limit name length
	if len(name) > 200 {
		return fmt.Sprintf("schema_changes_%d", len(changes))
	}

	return name
}

func appendNamePart(parts []string, verb string, items []string) []string {
	switch {
	case len(items) == 0:
		return parts
	case len(items) <= 3:
		return append(parts, verb+"_"+strings.Join(items, "_"))
	default:
		return append(parts, fmt.Sprintf("%s_%d_items", verb, len(items)))
	}
}
