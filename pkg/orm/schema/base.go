package schema

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Model is implemented by every data-model type. TableName must not depend on
// field values; it is called on a zero value.
type Model interface {
	TableName() string
}

// Constrained is implemented by models that declare table-level constraints
// and indexes in addition to their struct tags
type Constrained interface {
	TableOptions() []TableOption
}

// Base is the declarative root data-model types attach to. Every model
// registered through one Base lands in the same MetaData.
type Base struct {
	metadata *MetaData

	mu       sync.RWMutex
	mappings map[reflect.Type]*Mapping
}

// NewBase binds a Base to a registry. A nil registry gets a fresh one.
func NewBase(md *MetaData) *Base {
	if md == nil {
		md = NewMetaData()
	}
	return &Base{
		metadata: md,
		mappings: make(map[reflect.Type]*Mapping),
	}
}

// MetaData returns the registry shared by every model of this base
func (b *Base) MetaData() *MetaData {
	return b.metadata
}

// Register maps a model's struct type to a table and registers it. Models are
// registered once; registering the same table name again fails with a
// *SchemaConflictError.
func (b *Base) Register(model Model) (*Mapping, error) {
	goType, model, err := resolveModel(model)
	if err != nil {
		return nil, err
	}

	def, fields, err := buildTable(goType, model)
	if err != nil {
		return nil, err
	}

	table, err := b.metadata.Register(def)
	if err != nil {
		return nil, err
	}

	mapping := &Mapping{
		GoType: goType,
		Table:  table,
		Fields: fields,
		base:   b,
	}

	b.mu.Lock()
	b.mappings[goType] = mapping
	b.mu.Unlock()

	return mapping, nil
}

// MustRegister is like Register but panics on error
func (b *Base) MustRegister(model Model) *Mapping {
	m, err := b.Register(model)
	if err != nil {
		panic(err)
	}
	return m
}

// Mapping returns the mapping of a registered model type
func (b *Base) Mapping(model Model) (*Mapping, bool) {
	goType, _, err := resolveModel(model)
	if err != nil {
		return nil, false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	m, ok := b.mappings[goType]
	return m, ok
}

// Mappings returns every mapping registered through this base, by table name
func (b *Base) Mappings() []*Mapping {
	b.mu.RLock()
	result := make([]*Mapping, 0, len(b.mappings))
	for _, m := range b.mappings {
		result = append(result, m)
	}
	b.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Table.Name < result[j].Table.Name })
	return result
}

// Register registers the model type T with a base
func Register[T Model](b *Base) (*Mapping, error) {
	var zero T
	return b.Register(zero)
}

// MustRegister registers T and panics on error, for use in package-level
// variable declarations:
//
//	var Users = schema.MustRegister[User](orm.Base())
func MustRegister[T Model](b *Base) *Mapping {
	m, err := Register[T](b)
	if err != nil {
		panic(err)
	}
	return m
}

// Mapping links a Go struct type to its registered table
type Mapping struct {
	GoType reflect.Type
	Table  *Table
	Fields []FieldMapping

	base *Base
}

// FieldMapping links one struct field to its column
type FieldMapping struct {
	GoName string
	Column string
	Index  []int // reflect field index path, for embedded structs
}

// Base returns the base the model was registered through
func (m *Mapping) Base() *Base {
	return m.base
}

// MetaData returns the shared registry the model's table lives in
func (m *Mapping) MetaData() *MetaData {
	return m.base.metadata
}

// TableName returns the registered table name
func (m *Mapping) TableName() string {
	return m.Table.Name
}

// Column returns the column name a struct field maps to
func (m *Mapping) Column(goName string) (string, bool) {
	for _, f := range m.Fields {
		if f.GoName == goName {
			return f.Column, true
		}
	}
	return "", false
}

// resolveModel returns the struct type behind a model and a usable (non-nil)
// model value to call TableName on
func resolveModel(model Model) (reflect.Type, Model, error) {
	if model == nil {
		return nil, nil, conflict("", "nil model")
	}

	v := reflect.ValueOf(model)
	t := v.Type()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
		if v.IsNil() {
			zero, ok := reflect.New(t).Interface().(Model)
			if !ok {
				return nil, nil, conflict("", fmt.Sprintf("%s does not implement Model", t))
			}
			model = zero
		}
	}

	if t.Kind() != reflect.Struct {
		return nil, nil, conflict("", fmt.Sprintf("model %s must be a struct", t))
	}

	return t, model, nil
}
