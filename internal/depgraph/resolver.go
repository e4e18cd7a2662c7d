package depgraph

import (
	"fmt"
	"sort"

	"github.com/compote-dev/compote/internal/manifest"
)

// CycleError reports a dependency cycle, naming a node from every cycle found (§8: "resolveStartupOrder
// fails with a cycle report including a node from every cycle").
type CycleError struct {
	Nodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected, involving: %v", e.Nodes)
}

// MissingDependencyError names the unknown dependency referenced by a service.
type MissingDependencyError struct {
	Service    string
	Dependency string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("service %q depends on unknown service %q", e.Service, e.Dependency)
}

// Graph is a resolved dependency graph over a manifest's services. Edges point from a service to
// the dependencies it requires (dependent -> dependency).
type Graph struct {
	forward Digraph[string]
	entries map[string]manifest.DependsOn
}

// Build constructs the dependency graph and runs cycle/missing-dependency detection at parse time
// (§4.2: "Cycle detection via DFS on parse and again on resolve").
func Build(cf *manifest.ComposeFile) (*Graph, error) {
	g := &Graph{
		forward: make(Digraph[string]),
		entries: make(map[string]manifest.DependsOn, len(cf.Services)),
	}

	for name, svc := range cf.Services {
		g.forward.AddNode(name)
		g.entries[name] = svc.DependsOn
	}

	for name, svc := range cf.Services {
		for _, dep := range svc.DependsOn.Names() {
			if _, ok := cf.Services[dep]; !ok {
				return nil, &MissingDependencyError{Service: name, Dependency: dep}
			}
			g.forward.AddEdge(name, dep)
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, &CycleError{Nodes: cycle}
	}

	return g, nil
}

// findCycle runs a full DFS with a recursion-stack marker; every back-edge it finds identifies a
// cycle, and the stack path from the repeated node back to itself is collected. It returns the
// sorted union of those paths (so every cycle contributes at least one node), or nil if acyclic.
func (g *Graph) findCycle() []string {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(g.forward))
	var stack []string
	found := make(Set[string])

	var visit func(node string)
	visit = func(node string) {
		state[node] = visiting
		stack = append(stack, node)

		for _, dep := range sortedNodes(g.forward[node]) {
			switch state[dep] {
			case visiting:
				start := 0
				for i, n := range stack {
					if n == dep {
						start = i
						break
					}
				}
				for _, n := range stack[start:] {
					found.Add(n)
				}
			case unvisited:
				visit(dep)
			}
		}

		stack = stack[:len(stack)-1]
		state[node] = done
	}

	for _, node := range sortedNodes(setFromKeys(g.forward)) {
		if state[node] == unvisited {
			visit(node)
		}
	}
	if found.Len() == 0 {
		return nil
	}
	return sortedNodes(found)
}

// ResolveBatches implements Kahn's algorithm: repeatedly drain every node with no unresolved
// dependency into the current batch, sorted ascending by name for deterministic ordering (§4.2).
func (g *Graph) ResolveBatches() ([][]string, error) {
	indegree := make(map[string]int, len(g.forward))
	dependents := make(Digraph[string])
	for node := range g.forward {
		dependents.AddNode(node)
	}
	for node, deps := range g.forward {
		indegree[node] = len(deps)
		for dep := range deps {
			dependents.AddEdge(dep, node)
		}
	}

	var batches [][]string
	remaining := len(indegree)
	for remaining > 0 {
		var batch []string
		for node, degree := range indegree {
			if degree == 0 {
				batch = append(batch, node)
			}
		}
		if len(batch) == 0 {
			return nil, &CycleError{Nodes: sortedNodes(setFromMapKeys(indegree))}
		}
		sort.Strings(batch)

		for _, node := range batch {
			delete(indegree, node)
			remaining--
			for dependent := range dependents[node] {
				if _, stillPending := indegree[dependent]; stillPending {
					indegree[dependent]--
				}
			}
		}
		batches = append(batches, batch)
	}

	return batches, nil
}

// GetHealthDependencies returns the inverse map dep -> {services requiring dep to be
// service_healthy before they start} (§4.2).
func (g *Graph) GetHealthDependencies() map[string]Set[string] {
	out := make(map[string]Set[string])
	for service, deps := range g.entries {
		for dep, entry := range deps.AsDictionary() {
			if entry.Condition != manifest.ConditionServiceHealthy {
				continue
			}
			if out[dep] == nil {
				out[dep] = make(Set[string])
			}
			out[dep].Add(service)
		}
	}
	return out
}

func sortedNodes(s Set[string]) []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func setFromKeys(g Digraph[string]) Set[string] {
	out := make(Set[string], len(g))
	for n := range g {
		out.Add(n)
	}
	return out
}

func setFromMapKeys(m map[string]int) Set[string] {
	out := make(Set[string], len(m))
	for n := range m {
		out.Add(n)
	}
	return out
}
