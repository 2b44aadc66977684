package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/deduce/internal/ir"
)

// RecursionReport describes one recursive group of predicates.
//
// Recursion is reported, not rejected: tabled resolution terminates on any
// finite program. A group is raised to "warning" when one of its rules
// derives a head value through arithmetic, since such a group can produce
// unboundedly many answers and only the iteration limit stops it.
type RecursionReport struct {
	Path    []string `json:"path"`    // ["even/1", "odd/1", "even/1"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "info" or "warning"
}

// AnalyzeRecursion finds the recursive predicate groups of a rule set.
//
// The algorithm:
//  1. Build the head → body-goal dependency graph over predicate signatures
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop
//
// Reports are ordered by their first signature. A non-recursive rule set
// returns an empty list.
func AnalyzeRecursion(rules []ir.Rule) []RecursionReport {
	if len(rules) == 0 {
		return []RecursionReport{}
	}

	graph := buildDependencyGraph(rules)
	sccs := tarjanSCC(graph)

	reports := []RecursionReport{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			reports = append(reports, sccToReport(scc, graph, rules))
		}
	}
	slices.SortFunc(reports, func(a, b RecursionReport) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return reports
}

// RulesOf returns the declared rules of a statement list, minus those
// retracted later in it.
func RulesOf(stmts []ir.Statement) []ir.Rule {
	var rules []ir.Rule
	for _, st := range stmts {
		switch st.Kind {
		case ir.StmtRule:
			rules = append(rules, st.Rule())
		case ir.StmtRetractRule:
			r := st.Rule()
			rules = slices.DeleteFunc(rules, r.Equal)
		}
	}
	return rules
}

// dependencyGraph maps a head signature to the goal signatures its rules use.
type dependencyGraph map[string][]string

func buildDependencyGraph(rules []ir.Rule) dependencyGraph {
	graph := make(dependencyGraph)
	for _, r := range rules {
		head := r.Signature().String()

		// Initialize with empty slice if no edges (ensures node exists in graph)
		if graph[head] == nil {
			graph[head] = []string{}
		}
		for _, g := range r.Goals() {
			dep := g.Signature().String()
			if !slices.Contains(graph[head], dep) {
				graph[head] = append(graph[head], dep)
			}
		}
	}
	return graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Nodes are visited in sorted order so the output is deterministic.
// Single-node SCCs without self-loops are NOT recursive.
func tarjanSCC(graph dependencyGraph) [][]string {
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
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack and create an SCC
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
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

func sccToReport(scc []string, graph dependencyGraph, rules []ir.Rule) RecursionReport {
	level := "info"
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}
	for _, r := range rules {
		if members[r.Signature().String()] && derivesByArithmetic(r) {
			level = "warning"
			break
		}
	}

	if len(scc) == 1 {
		sig := scc[0]
		msg := fmt.Sprintf("Recursive predicate: %s → %s", sig, sig)
		if level == "warning" {
			msg += " (derives values by arithmetic; bounded only by the iteration limit)"
		}
		return RecursionReport{Path: []string{sig, sig}, Message: msg, Level: level}
	}

	path := reconstructCyclePath(scc, graph)
	msg := fmt.Sprintf("Mutually recursive predicates: %s", strings.Join(path, " → "))
	if level == "warning" {
		msg += " (derives values by arithmetic; bounded only by the iteration limit)"
	}
	return RecursionReport{Path: path, Message: msg, Level: level}
}

// derivesByArithmetic reports whether a head variable of r is bound only by
// an equality with an arithmetic expression, as in n(Y) <= n(X) & (Y == X+1).
func derivesByArithmetic(r ir.Rule) bool {
	inGoals := make(map[string]bool)
	for _, g := range r.Goals() {
		for _, v := range g.Vars() {
			inGoals[v] = true
		}
	}
	for _, c := range r.Constraints() {
		if c.Op != ir.OpEq {
			continue
		}
		for _, side := range [][2]ir.Expr{{c.Left, c.Right}, {c.Right, c.Left}} {
			t, ok := side[0].(ir.Term)
			if !ok || !t.IsVariable() || inGoals[t.Value()] {
				continue
			}
			if _, arith := side[1].(ir.Arith); !arith {
				continue
			}
			if slices.Contains(r.Head.Vars(), t.Value()) {
				return true
			}
		}
	}
	return false
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
