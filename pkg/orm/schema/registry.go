package schema

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/conduit-lang/sharedorm/pkg/orm/naming"
)

// MetaData is the schema registry: the set of every table registered in one
// migration namespace. It is append-only. A table is either fully present or
// absent; readers never see one being built.
type MetaData struct {
	mu         sync.RWMutex
	tables     map[string]*Table
	owners     map[string]string // constraint or index name -> table
	convention *naming.Convention
	logger     *zap.Logger
}

// Option configures a MetaData
type Option func(*MetaData)

// WithConvention sets the naming convention (default: naming.Default())
func WithConvention(c *naming.Convention) Option {
	return func(m *MetaData) {
		if c != nil {
			m.convention = c
		}
	}
}

// WithLogger sets the logger used for registration events
func WithLogger(logger *zap.Logger) Option {
	return func(m *MetaData) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMetaData creates an empty schema registry
func NewMetaData(opts ...Option) *MetaData {
	m := &MetaData{
		tables:     make(map[string]*Table),
		owners:     make(map[string]string),
		convention: naming.Default(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Convention returns the naming convention of the registry
func (m *MetaData) Convention() *naming.Convention {
	return m.convention
}

// Register validates a table definition, names its constraints and adds it
// to the registry. The registry stores its own copy; the returned table is
// that copy and must be treated as read-only.
//
// A table whose name is already registered, or whose constraint names collide
// with another table's, fails with a *SchemaConflictError and leaves the
// registry unchanged.
func (m *MetaData) Register(t *Table) (*Table, error) {
	if t == nil {
		return nil, conflict("", "nil table definition")
	}

	// Build the complete table before taking the lock
	table := t.Clone()
	if err := validateStructural(table); err != nil {
		m.logger.Warn("rejected table definition", zap.String("table", t.Name), zap.Error(err))
		return nil, err
	}
	if err := materialize(table, m.convention); err != nil {
		m.logger.Warn("rejected table definition", zap.String("table", t.Name), zap.Error(err))
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tables[table.Name]; exists {
		m.logger.Warn("duplicate table registration", zap.String("table", table.Name))
		return nil, conflict(table.Name, "table is already registered")
	}

	names := table.ObjectNames()
	for _, name := range names {
		if owner, taken := m.owners[name]; taken {
			m.logger.Warn("constraint name collision",
				zap.String("table", table.Name),
				zap.String("constraint", name),
				zap.String("owner", owner))
			return nil, &SchemaConflictError{
				Table:      table.Name,
				Constraint: name,
				Reason:     fmt.Sprintf("name already used by table %s", owner),
			}
		}
	}

	m.tables[table.Name] = table
	for _, name := range names {
		m.owners[name] = table.Name
	}

	m.logger.Debug("registered table",
		zap.String("table", table.Name),
		zap.Int("columns", len(table.Columns)),
		zap.Strings("constraints", names))

	return table, nil
}

// MustRegister is like Register but panics on error. It is meant for
// package-level table definitions that must fail process startup.
func (m *MetaData) MustRegister(t *Table) *Table {
	table, err := m.Register(t)
	if err != nil {
		panic(err)
	}
	return table
}

// Table retrieves a registered table by name
func (m *MetaData) Table(name string) (*Table, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[name]
	return t, ok
}

// Contains reports whether a table is registered
func (m *MetaData) Contains(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.tables[name]
	return ok
}

// Len returns the number of registered tables
func (m *MetaData) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.tables)
}

// Tables returns a copy of the table collection
func (m *MetaData) Tables() map[string]*Table {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]*Table, len(m.tables))
	for k, v := range m.tables {
		result[k] = v
	}
	return result
}

// TableNames returns the registered table names, sorted
func (m *MetaData) TableNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.tables))
	for name := range m.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Owner returns the table that owns a constraint or index name
func (m *MetaData) Owner(constraintName string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	owner, ok := m.owners[constraintName]
	return owner, ok
}

// SortedTables returns tables in foreign key dependency order, referenced
// tables first. This is the safe creation order for a migration tool.
func (m *MetaData) SortedTables() ([]*Table, error) {
	tables := m.Tables()

	order, err := NewDependencyGraph(tables).TopologicalSort()
	if err != nil {
		return nil, err
	}

	result := make([]*Table, len(order))
	for i, name := range order {
		result[i] = tables[name]
	}
	return result, nil
}

// Validate performs cross-table validation: every foreign key must target a
// registered table and existing columns of the same type.
func (m *MetaData) Validate() error {
	tables := m.Tables()

	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		t := tables[name]
		for _, fk := range t.ForeignKeys() {
			target, ok := tables[fk.ReferredTable]
			if !ok {
				return &SchemaConflictError{
					Table:      t.Name,
					Constraint: fk.Name,
					Reason:     fmt.Sprintf("references unregistered table %s", fk.ReferredTable),
				}
			}
			for i, refCol := range fk.ReferredColumns {
				col, ok := target.Column(refCol)
				if !ok {
					return &SchemaConflictError{
						Table:      t.Name,
						Constraint: fk.Name,
						Reason:     fmt.Sprintf("references unknown column %s.%s", target.Name, refCol),
					}
				}
				local, _ := t.Column(fk.Columns[i])
				if !compatibleKeyTypes(local.Type, col.Type) {
					return &SchemaConflictError{
						Table:      t.Name,
						Column:     local.Name,
						Constraint: fk.Name,
						Reason:     fmt.Sprintf("type %s does not match %s.%s type %s", local.Type, target.Name, refCol, col.Type),
					}
				}
			}
		}
	}

	return nil
}

// compatibleKeyTypes allows integer keys to reference bigint keys and vice versa
func compatibleKeyTypes(a, b ColumnType) bool {
	if a == b {
		return true
	}
	isInt := func(t ColumnType) bool { return t == TypeInteger || t == TypeBigInt }
	return isInt(a) && isInt(b)
}

// RegistryStats summarizes the registry
type RegistryStats struct {
	TotalTables      int
	TotalColumns     int
	TotalConstraints int
	TotalIndexes     int
	TotalForeignKeys int
}

// Stats returns statistics about the registry
func (m *MetaData) Stats() *RegistryStats {
	stats := &RegistryStats{}
	for _, t := range m.Tables() {
		stats.TotalTables++
		stats.TotalColumns += len(t.Columns)
		stats.TotalConstraints += len(t.Constraints)
		stats.TotalIndexes += len(t.Indexes)
		stats.TotalForeignKeys += len(t.ForeignKeys())
	}
	return stats
}
