// Package depgraph resolves table copy/archive ordering from a
// table-to-dependencies map: cycle detection by depth-first search with
// on-stack marking, and a topological sort producing 1-indexed deps_order.
package depgraph

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Graph maps a table name to the set of tables it depends on (its foreign
// key targets). A table with no dependencies still needs an entry, even if
// its dependency set is empty or contains only itself.
type Graph map[string][]string

// CycleError reports every cycle found in a Graph. Resolve returns it
// instead of an order when the graph is not a DAG.
type CycleError struct {
	Cycles []string // each entry like "a -> b -> c -> a"
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("depgraph: %d dependency cycle(s) detected", len(e.Cycles))
}

// WriteJSON serializes the cycle list to path, matching the layout the CLI
// surfaces as tmp/<subsystem>-deps.json.
func (e *CycleError) WriteJSON(path string) error {
	data, err := json.MarshalIndent(map[string][]string{"cycles": e.Cycles}, "", "  ")
	if err != nil {
		return fmt.Errorf("depgraph: marshal cycle report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("depgraph: write cycle report: %w", err)
	}
	return nil
}

// DetectCycles runs DFS from every node, reporting each back-edge found as a
// human-readable "a -> b -> ... -> a" path. Self-loops (a node listing
// itself as a dependency) are not cycles.
func DetectCycles(g Graph) []string {
	visited := map[string]bool{}
	var cycles []string

	var dfs func(node string, path []string, onStack map[string]bool)
	dfs = func(node string, path []string, onStack map[string]bool) {
		if onStack[node] {
			start := 0
			for i, n := range path {
				if n == node {
					start = i
					break
				}
			}
			cycle := ""
			for i, n := range path[start:] {
				if i > 0 {
					cycle += " -> "
				}
				cycle += n
			}
			cycles = append(cycles, cycle)
			return
		}
		if visited[node] {
			return
		}
		visited[node] = true
		onStack[node] = true

		for _, dep := range g[node] {
			if dep == node {
				continue
			}
			dfs(dep, append(path, dep), onStack)
		}
		delete(onStack, node)
	}

	nodes := make([]string, 0, len(g))
	for n := range g {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	for _, n := range nodes {
		dfs(n, []string{n}, map[string]bool{})
	}
	return cycles
}

// Resolve topologically sorts g and returns each table paired with its
// 1-indexed deps_order (lowest first = create/copy first). If g contains a
// cycle, Resolve returns a *CycleError instead.
func Resolve(g Graph) ([]string, map[string]int, error) {
	if cycles := DetectCycles(g); len(cycles) > 0 {
		return nil, nil, &CycleError{Cycles: cycles}
	}

	visited := map[string]bool{}
	var order []string

	nodes := make([]string, 0, len(g))
	for n := range g {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	var visit func(node string)
	visit = func(node string) {
		if visited[node] {
			return
		}
		visited[node] = true
		deps := append([]string(nil), g[node]...)
		sort.Strings(deps)
		for _, dep := range deps {
			if dep == node {
				continue
			}
			if _, ok := g[dep]; !ok {
				continue
			}
			visit(dep)
		}
		order = append(order, node)
	}
	for _, n := range nodes {
		visit(n)
	}

	depsOrder := make(map[string]int, len(order))
	for i, table := range order {
		depsOrder[table] = i + 1
	}
	return order, depsOrder, nil
}
