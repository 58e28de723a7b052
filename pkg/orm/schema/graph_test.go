package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/sharedorm/pkg/orm/naming"
)

func fkTable(name string, refs ...string) *Table {
	cols := []*Column{NewColumn("id", TypeBigInt, PrimaryKey())}
	for _, ref := range refs {
		cols = append(cols, NewColumn(ref+"_id", TypeBigInt, References(ref, "id")))
	}
	t := NewTable(name, WithColumns(cols...))
	if err := materialize(t, naming.Default()); err != nil {
		panic(err)
	}
	return t
}

func TestDependencyGraph(t *testing.T) {
	tables := map[string]*Table{
		"users":    fkTable("users"),
		"posts":    fkTable("posts", "users"),
		"comments": fkTable("comments", "posts", "users"),
		"external": fkTable("external", "not_registered"),
	}

	g := NewDependencyGraph(tables)

	assert.Equal(t, []string{"posts", "users"}, g.Dependencies("comments"))
	assert.Empty(t, g.Dependencies("external"))
	assert.Equal(t, []string{"comments", "posts"}, g.Dependents("users"))
	assert.Empty(t, g.DetectCycles())

	order, err := g.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"external", "users", "posts", "comments"}, order)
}

func TestDependencyGraphSelfReference(t *testing.T) {
	tables := map[string]*Table{
		"categories": fkTable("categories", "categories"),
	}

	g := NewDependencyGraph(tables)
	assert.Empty(t, g.DetectCycles())

	order, err := g.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"categories"}, order)
}

func TestDependencyGraphCycle(t *testing.T) {
	tables := map[string]*Table{
		"a": fkTable("a", "b"),
		"b": fkTable("b", "c"),
		"c": fkTable("c", "a"),
		"d": fkTable("d"),
	}

	g := NewDependencyGraph(tables)

	cycles := g.DetectCycles()
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "b", "c"}, cycles[0])

	_, err := g.TopologicalSort()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircularDependency)
	assert.Contains(t, err.Error(), "a -> b -> c -> a")
}
