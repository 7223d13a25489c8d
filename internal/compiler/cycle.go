package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/desflat/internal/ir"
)

// Cycle levels.
const (
	LevelError = "error"
	LevelInfo  = "info"
)

// CycleWarning represents a cycle in the component dependency graph.
//
// A component depends on every instance whose events it names: dotted
// instantiation arguments and dotted edges of inline automata. Cycles through
// an inline automaton are feedback loops the elaborator resolves in its final
// pass. A cycle made only of instantiations cannot be ordered and is an error.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["M1", "M2", "M1"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "error" or "info"
}

// AnalyzeCycles performs static cycle analysis on the component list.
//
// The algorithm:
//  1. Build component → referenced component graph
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 as a cycle
//
// References from a component to its own events are not dependencies.
// A DAG (no cycles) returns an empty warning list.
func AnalyzeCycles(m *ir.Model) []CycleWarning {
	if m == nil || len(m.Components) == 0 {
		return []CycleWarning{}
	}

	graph, order := buildDependencyGraph(m.Components)
	sccs := tarjanSCC(graph, order)

	inline := make(map[string]bool)
	rank := make(map[string]int, len(order))
	for i, c := range m.Components {
		if c.IsInline() {
			inline[c.Name] = true
		}
		if _, ok := rank[c.Name]; !ok {
			rank[c.Name] = i
		}
	}

	warnings := []CycleWarning{}
	for _, scc := range sccs {
		if len(scc) < 2 {
			continue
		}
		sort.Slice(scc, func(i, j int) bool { return rank[scc[i]] < rank[scc[j]] })
		warnings = append(warnings, cycleSCCToWarning(scc, graph, inline))
	}

	sort.SliceStable(warnings, func(i, j int) bool {
		return rank[warnings[i].Path[0]] < rank[warnings[j].Path[0]]
	})
	return warnings
}

// dependencyGraph maps instance name → instance names it references.
type dependencyGraph map[string][]string

// buildDependencyGraph constructs the component dependency graph. order lists
// the nodes in declaration order so traversal is deterministic.
func buildDependencyGraph(components []ir.Component) (dependencyGraph, []string) {
	graph := make(dependencyGraph)
	var order []string

	add := func(from string, ref ir.EventRef) {
		if ref.IsBare() || ref.Instance == from {
			return
		}
		for _, existing := range graph[from] {
			if existing == ref.Instance {
				return
			}
		}
		graph[from] = append(graph[from], ref.Instance)
	}

	for _, c := range components {
		if _, ok := graph[c.Name]; !ok {
			graph[c.Name] = []string{}
			order = append(order, c.Name)
		}
		if c.Body == nil {
			for _, a := range c.Args {
				add(c.Name, a)
			}
			continue
		}
		for _, loc := range c.Body.Locations {
			for _, e := range loc.Edges {
				add(c.Name, e.Event)
			}
		}
	}

	return graph, order
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of instance names.
// References to undeclared instances are ignored.
func tarjanSCC(graph dependencyGraph, order []string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, declared := graph[w]; !declared {
				continue
			}
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// If v is a root node, pop the stack and create an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
func cycleSCCToWarning(scc []string, graph dependencyGraph, inline map[string]bool) CycleWarning {
	path := reconstructCyclePath(scc, graph)
	pathStr := strings.Join(path, " → ")

	for _, name := range scc {
		if inline[name] {
			return CycleWarning{
				Path:    path,
				Message: fmt.Sprintf("feedback through inline automaton %s: %s", name, pathStr),
				Level:   LevelInfo,
			}
		}
	}
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("instantiation cycle: %s", pathStr),
		Level:   LevelError,
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: Start at first node in SCC, follow edges to other SCC members,
// continue until we return to start node.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}

		if next == "" {
			break
		}

		path = append(path, next)

		if next == start {
			break
		}

		current = next
	}

	return path
}
