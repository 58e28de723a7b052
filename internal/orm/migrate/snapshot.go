// Package migrate produces read-only migration inputs from a schema
// registry: snapshots of the registered tables, the changes between two
// snapshots and the SQL text an external migration tool applies. Nothing in
// this package executes SQL.
package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/sharedorm/pkg/orm/naming"
	"github.com/conduit-lang/sharedorm/pkg/orm/schema"
)

// Format is a snapshot encoding
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat accepts a format name
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported snapshot format %q", s)
	}
}

// FormatFromPath picks the format from a file extension. Unknown extensions
// default to YAML.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Snapshot is a serialisable copy of a registry at a point in time
type Snapshot struct {
	ID         uuid.UUID         `json:"id" yaml:"id"`
	CreatedAt  time.Time         `json:"created_at" yaml:"created_at"`
	Convention map[string]string `json:"convention" yaml:"convention"`
	Tables     []*TableSnapshot  `json:"tables" yaml:"tables"`
}

// TableSnapshot is one registered table. Constraints and indexes carry their
// registered names; column flags have already been turned into constraints.
type TableSnapshot struct {
	Name        string                `json:"name" yaml:"name"`
	Comment     string                `json:"comment,omitempty" yaml:"comment,omitempty"`
	Columns     []*ColumnSnapshot     `json:"columns" yaml:"columns"`
	Constraints []*ConstraintSnapshot `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	Indexes     []*IndexSnapshot      `json:"indexes,omitempty" yaml:"indexes,omitempty"`
}

// ColumnSnapshot is one column
type ColumnSnapshot struct {
	Name       string `json:"name" yaml:"name"`
	Type       string `json:"type" yaml:"type"`
	Length     int    `json:"length,omitempty" yaml:"length,omitempty"`
	Precision  int    `json:"precision,omitempty" yaml:"precision,omitempty"`
	Scale      int    `json:"scale,omitempty" yaml:"scale,omitempty"`
	Nullable   bool   `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	PrimaryKey bool   `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	Default    string `json:"default,omitempty" yaml:"default,omitempty"`
}

// ConstraintSnapshot is one named constraint
type ConstraintSnapshot struct {
	Kind            string   `json:"kind" yaml:"kind"`
	Name            string   `json:"name" yaml:"name"`
	Columns         []string `json:"columns,omitempty" yaml:"columns,omitempty,flow"`
	Identifier      string   `json:"identifier,omitempty" yaml:"identifier,omitempty"`
	Expression      string   `json:"expression,omitempty" yaml:"expression,omitempty"`
	ReferredTable   string   `json:"referred_table,omitempty" yaml:"referred_table,omitempty"`
	ReferredColumns []string `json:"referred_columns,omitempty" yaml:"referred_columns,omitempty,flow"`
	OnDelete        string   `json:"on_delete,omitempty" yaml:"on_delete,omitempty"`
	OnUpdate        string   `json:"on_update,omitempty" yaml:"on_update,omitempty"`
}

// IndexSnapshot is one named index
type IndexSnapshot struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns,flow"`
	Unique  bool     `json:"unique,omitempty" yaml:"unique,omitempty"`
}

// Capture copies every table of a registry into a new snapshot. Tables are
// ordered by name.
func Capture(md *schema.MetaData) *Snapshot {
	s := &Snapshot{
		ID:         uuid.New(),
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
		Convention: make(map[string]string),
	}

	for category, tmpl := range md.Convention().Templates() {
		s.Convention[category.String()] = tmpl
	}

	for _, name := range md.TableNames() {
		t, _ := md.Table(name)
		s.Tables = append(s.Tables, snapshotTable(t))
	}

	return s
}

func snapshotTable(t *schema.Table) *TableSnapshot {
	ts := &TableSnapshot{Name: t.Name, Comment: t.Comment}

	for _, col := range t.Columns {
		ts.Columns = append(ts.Columns, &ColumnSnapshot{
			Name:       col.Name,
			Type:       col.Type.String(),
			Length:     col.Length,
			Precision:  col.Precision,
			Scale:      col.Scale,
			Nullable:   col.Nullable,
			PrimaryKey: col.PrimaryKey,
			Default:    col.Default,
		})
	}

	for _, c := range t.Constraints {
		cs := &ConstraintSnapshot{
			Kind:            c.Kind.String(),
			Name:            c.Name,
			Columns:         append([]string(nil), c.Columns...),
			Identifier:      c.Identifier,
			Expression:      c.Expression,
			ReferredTable:   c.ReferredTable,
			ReferredColumns: append([]string(nil), c.ReferredColumns...),
		}
		if c.Kind == naming.CategoryForeignKey {
			cs.OnDelete = c.OnDelete.String()
			cs.OnUpdate = c.OnUpdate.String()
		}
		ts.Constraints = append(ts.Constraints, cs)
	}

	for _, idx := range t.Indexes {
		ts.Indexes = append(ts.Indexes, &IndexSnapshot{
			Name:    idx.Name,
			Columns: append([]string(nil), idx.Columns...),
			Unique:  idx.Unique,
		})
	}

	return ts
}

// Table returns the snapshot of a table
func (s *Snapshot) Table(name string) (*TableSnapshot, bool) {
	if s == nil {
		return nil, false
	}
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// TableNames returns the table names of the snapshot, sorted
func (s *Snapshot) TableNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	sort.Strings(names)
	return names
}

// Restore rebuilds a registry from the snapshot. Every table goes through
// registration again, so a hand-edited snapshot with conflicting names is
// rejected with a *schema.SchemaConflictError.
func (s *Snapshot) Restore(opts ...schema.Option) (*schema.MetaData, error) {
	convention, err := s.convention()
	if err != nil {
		return nil, err
	}

	md := schema.NewMetaData(append([]schema.Option{schema.WithConvention(convention)}, opts...)...)
	for i, ts := range s.Tables {
		if ts == nil {
			return nil, fmt.Errorf("table %d: empty entry", i)
		}
		t, err := ts.ToTable()
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", ts.Name, err)
		}
		if _, err := md.Register(t); err != nil {
			return nil, err
		}
	}

	return md, nil
}

func (s *Snapshot) convention() (*naming.Convention, error) {
	if len(s.Convention) == 0 {
		return naming.Default(), nil
	}

	templates := make(map[naming.Category]string, len(s.Convention))
	for key, tmpl := range s.Convention {
		category, err := naming.ParseCategory(key)
		if err != nil {
			return nil, err
		}
		templates[category] = tmpl
	}
	return naming.NewConvention(templates)
}

// ToTable converts the snapshot back into an unregistered table definition
func (ts *TableSnapshot) ToTable() (*schema.Table, error) {
	t := schema.NewTable(ts.Name, schema.WithComment(ts.Comment))

	for i, cs := range ts.Columns {
		if cs == nil {
			return nil, fmt.Errorf("column %d: empty entry", i)
		}
		col, err := cs.toColumn()
		if err != nil {
			return nil, err
		}
		t.Columns = append(t.Columns, col)
	}

	for i, cs := range ts.Constraints {
		if cs == nil {
			return nil, fmt.Errorf("constraint %d: empty entry", i)
		}
		c, err := cs.toConstraint()
		if err != nil {
			return nil, err
		}
		t.Constraints = append(t.Constraints, c)
	}

	for i, is := range ts.Indexes {
		if is == nil {
			return nil, fmt.Errorf("index %d: empty entry", i)
		}
		t.Indexes = append(t.Indexes, &schema.Index{
			Name:    is.Name,
			Columns: append([]string(nil), is.Columns...),
			Unique:  is.Unique,
		})
	}

	return t, nil
}

// Column returns the snapshot of a column
func (ts *TableSnapshot) Column(name string) (*ColumnSnapshot, bool) {
	for _, c := range ts.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Constraint returns the snapshot of a named constraint
func (ts *TableSnapshot) Constraint(name string) (*ConstraintSnapshot, bool) {
	for _, c := range ts.Constraints {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Index returns the snapshot of a named index
func (ts *TableSnapshot) Index(name string) (*IndexSnapshot, bool) {
	for _, idx := range ts.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return nil, false
}

func (cs *ColumnSnapshot) toColumn() (*schema.Column, error) {
	typ, err := schema.ParseColumnType(cs.Type)
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", cs.Name, err)
	}
	return &schema.Column{
		Name:       cs.Name,
		Type:       typ,
		Length:     cs.Length,
		Precision:  cs.Precision,
		Scale:      cs.Scale,
		Nullable:   cs.Nullable,
		PrimaryKey: cs.PrimaryKey,
		Default:    cs.Default,
	}, nil
}

func (cs *ConstraintSnapshot) toConstraint() (*schema.Constraint, error) {
	kind, err := naming.ParseCategory(cs.Kind)
	if err != nil {
		return nil, err
	}
	onDelete, err := schema.ParseCascadeAction(cs.OnDelete)
	if err != nil {
		return nil, fmt.Errorf("constraint %s: %w", cs.Name, err)
	}
	onUpdate, err := schema.ParseCascadeAction(cs.OnUpdate)
	if err != nil {
		return nil, fmt.Errorf("constraint %s: %w", cs.Name, err)
	}

	return &schema.Constraint{
		Kind:            kind,
		Name:            cs.Name,
		Columns:         append([]string(nil), cs.Columns...),
		Identifier:      cs.Identifier,
		Expression:      cs.Expression,
		ReferredTable:   cs.ReferredTable,
		ReferredColumns: append([]string(nil), cs.ReferredColumns...),
		OnDelete:        onDelete,
		OnUpdate:        onUpdate,
	}, nil
}

// Marshal encodes the snapshot
func (s *Snapshot) Marshal(format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(s, "", "  ")
	case FormatYAML:
		return yaml.Marshal(s)
	default:
		return nil, fmt.Errorf("unsupported snapshot format %q", format)
	}
}

// Unmarshal decodes a snapshot
func Unmarshal(data []byte, format Format) (*Snapshot, error) {
	var s Snapshot

	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decoding json snapshot: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decoding yaml snapshot: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported snapshot format %q", format)
	}

	if err := s.checkEntries(); err != nil {
		return nil, err
	}
	return &s, nil
}

// checkEntries rejects null list entries left by hand edits
func (s *Snapshot) checkEntries() error {
	for i, ts := range s.Tables {
		if ts == nil {
			return fmt.Errorf("snapshot table %d: empty entry", i)
		}
		for j, cs := range ts.Columns {
			if cs == nil {
				return fmt.Errorf("snapshot table %s: column %d: empty entry", ts.Name, j)
			}
		}
		for j, cs := range ts.Constraints {
			if cs == nil {
				return fmt.Errorf("snapshot table %s: constraint %d: empty entry", ts.Name, j)
			}
		}
		for j, is := range ts.Indexes {
			if is == nil {
				return fmt.Errorf("snapshot table %s: index %d: empty entry", ts.Name, j)
			}
		}
	}
	return nil
}

// Save writes the snapshot to path; the extension picks the encoding
func (s *Snapshot) Save(path string) error {
	data, err := s.Marshal(FormatFromPath(path))
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating snapshot directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot from path; the extension picks the encoding
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	return Unmarshal(data, FormatFromPath(path))
}
