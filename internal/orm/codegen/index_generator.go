package codegen

import (
	"fmt"
	"sort"

	"github.com/conduit-lang/sharedorm/pkg/orm/schema"
)

// IndexGenerator generates CREATE INDEX statements
type IndexGenerator struct{}

// NewIndexGenerator creates a new index generator
func NewIndexGenerator() *IndexGenerator {
	return &IndexGenerator{}
}

// CreateIndex renders one index of a table
func (g *IndexGenerator) CreateIndex(table string, idx *schema.Index) (string, error) {
	if idx == nil {
		return "", fmt.Errorf("index cannot be nil")
	}
	if idx.Name == "" {
		return "", fmt.Errorf("index on %s has no name", table)
	}

	kind := "INDEX"
	if idx.Unique {
		kind = "UNIQUE INDEX"
	}

	return fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s);",
		kind, QuoteIdentifier(idx.Name), QuoteIdentifier(table), quoteColumns(idx.Columns)), nil
}

// DropIndex renders DROP INDEX for an index name
func (g *IndexGenerator) DropIndex(name string) string {
	return fmt.Sprintf("DROP INDEX IF EXISTS %s;", QuoteIdentifier(name))
}

// GenerateIndexes renders every index of a table, sorted by index name
func (g *IndexGenerator) GenerateIndexes(t *schema.Table) ([]string, error) {
	indexes := make([]*schema.Index, len(t.Indexes))
	copy(indexes, t.Indexes)

	// Sort for deterministic output
	sort.Slice(indexes, func(i, j int) bool { return indexes[i].Name < indexes[j].Name })

	statements := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		stmt, err := g.CreateIndex(t.Name, idx)
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmt)
	}
	return statements, nil
}

// GenerateDropIndexes renders DROP INDEX for every index of a table
func (g *IndexGenerator) GenerateDropIndexes(t *schema.Table) []string {
	names := make([]string, 0, len(t.Indexes))
	for _, idx := range t.Indexes {
		names = append(names, idx.Name)
	}
	sort.Strings(names)

	statements := make([]string, len(names))
	for i, name := range names {
		statements[i] = g.DropIndex(name)
	}
	return statements
}
