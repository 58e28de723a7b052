package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrCircularDependency is returned when foreign keys form a cycle
var ErrCircularDependency = errors.New("circular foreign key dependency")

// DependencyGraph represents foreign key dependencies between tables
type DependencyGraph struct {
	nodes map[string]*Table
	edges map[string][]string // table -> referred tables
}

// NewDependencyGraph creates a dependency graph. Self references and
// references to tables outside the set are ignored.
func NewDependencyGraph(tables map[string]*Table) *DependencyGraph {
	g := &DependencyGraph{
		nodes: tables,
		edges: make(map[string][]string),
	}

	for name, t := range tables {
		seen := make(map[string]bool)
		for _, fk := range t.ForeignKeys() {
			target := fk.ReferredTable
			if target == name || seen[target] {
				continue
			}
			if _, ok := tables[target]; !ok {
				continue
			}
			seen[target] = true
			g.edges[name] = append(g.edges[name], target)
		}
		sort.Strings(g.edges[name])
	}

	return g
}

// Dependencies returns the tables a table references
func (g *DependencyGraph) Dependencies(table string) []string {
	return append([]string(nil), g.edges[table]...)
}

// Dependents returns the tables that reference a table, sorted
func (g *DependencyGraph) Dependents(table string) []string {
	var dependents []string
	for node, deps := range g.edges {
		for _, dep := range deps {
			if dep == table {
				dependents = append(dependents, node)
				break
			}
		}
	}
	sort.Strings(dependents)
	return dependents
}

// DetectCycles returns foreign key cycles between distinct tables
func (g *DependencyGraph) DetectCycles() [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var dfs func(node string, path []string)
	dfs = func(node string, path []string) {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, next := range g.edges[node] {
			if !visited[next] {
				dfs(next, path)
			} else if onStack[next] {
				for i, n := range path {
					if n == next {
						cycle := make([]string, len(path)-i)
						copy(cycle, path[i:])
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}

		onStack[node] = false
	}

	for _, node := range g.sortedNodes() {
		if !visited[node] {
			dfs(node, nil)
		}
	}

	return cycles
}

// TopologicalSort returns tables with dependencies first. Ties are broken by
// name so the order is stable across runs.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	remaining := make(map[string]int, len(g.nodes))
	reverse := make(map[string][]string)
	for node := range g.nodes {
		remaining[node] = len(g.edges[node])
		for _, dep := range g.edges[node] {
			reverse[dep] = append(reverse[dep], node)
		}
	}

	var ready []string
	for node, n := range remaining {
		if n == 0 {
			ready = append(ready, node)
		}
	}
	sort.Strings(ready)

	result := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		result = append(result, node)

		var unlocked []string
		for _, dependent := range reverse[node] {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				unlocked = append(unlocked, dependent)
			}
		}
		if len(unlocked) > 0 {
			ready = append(ready, unlocked...)
			sort.Strings(ready)
		}
	}

	if len(result) != len(g.nodes) {
		return nil, fmt.Errorf("%w: %s", ErrCircularDependency, formatCycles(g.DetectCycles()))
	}

	return result, nil
}

func (g *DependencyGraph) sortedNodes() []string {
	nodes := make([]string, 0, len(g.nodes))
	for node := range g.nodes {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	return nodes
}

func formatCycles(cycles [][]string) string {
	parts := make([]string, len(cycles))
	for i, cycle := range cycles {
		parts[i] = strings.Join(cycle, " -> ") + " -> " + cycle[0]
	}
	return strings.Join(parts, "; ")
}
