// Package depgraph implements the directed acyclic dependency graph over
// ContentTypes that the restoration orchestrator uses to order its work
// (spec §4.9). It has no teacher precedent (the teacher has no
// restoration-style dependency ordering); its DFS-based topological sort
// and cycle detection are standard, dependency-free graph algorithms, so
// this is implemented on the standard library alone.
package depgraph

import (
	"sort"

	"github.com/lookervault/lookervault/lverrors"
	"github.com/lookervault/lookervault/types"
)

// edges is the fixed dependency table from spec §4.9. FOLDER's
// self-reference (parent folder chain) is item-level, resolved by ID
// ordering inside the folder restorer, and is intentionally omitted from
// this type-level graph — it would otherwise register as a spurious
// cycle.
var edges = map[types.ContentType][]types.ContentType{
	types.ContentTypeDashboard:     {types.ContentTypeFolder, types.ContentTypeLook, types.ContentTypeUser},
	types.ContentTypeLook:          {types.ContentTypeFolder, types.ContentTypeUser, types.ContentTypeLookMLModel},
	types.ContentTypeFolder:        {types.ContentTypeUser},
	types.ContentTypeScheduledPlan: {types.ContentTypeDashboard, types.ContentTypeLook, types.ContentTypeUser},
	types.ContentTypeBoard:         {types.ContentTypeDashboard, types.ContentTypeLook, types.ContentTypeUser},
	types.ContentTypeGroup:         {types.ContentTypeUser},
	types.ContentTypeRole:          {types.ContentTypePermissionSet, types.ContentTypeModelSet},
}

// Graph is an immutable view of the ContentType dependency edges,
// validated acyclic at construction.
type Graph struct {
	edges map[types.ContentType][]types.ContentType
}

// New builds a Graph, returning a *lverrors.DependencyError if the edge
// table contains a cycle. The edge table is fixed, so this only fails if
// it is ever edited into an inconsistent state — callers still must check
// the error, since "raises DependencyError on construction" is a spec
// invariant for this component, not solely a defensive check.
func New() (*Graph, error) {
	g := &Graph{edges: edges}
	if cyclePath, ok := g.findCycle(); ok {
		return nil, &lverrors.DependencyError{Msg: "cycle detected: " + describeCycle(cyclePath)}
	}
	return g, nil
}

func describeCycle(path []types.ContentType) string {
	s := ""
	for i, t := range path {
		if i > 0 {
			s += " -> "
		}
		s += t.String()
	}
	return s
}

const (
	colorWhite = 0
	colorGray  = 1
	colorBlack = 2
)

func (g *Graph) findCycle() ([]types.ContentType, bool) {
	color := make(map[types.ContentType]int)
	var path []types.ContentType

	var visit func(t types.ContentType) bool
	visit = func(t types.ContentType) bool {
		color[t] = colorGray
		path = append(path, t)

		for _, dep := range g.edges[t] {
			switch color[dep] {
			case colorGray:
				path = append(path, dep)
				return true
			case colorWhite:
				if visit(dep) {
					return true
				}
			}
		}

		path = path[:len(path)-1]
		color[t] = colorBlack
		return false
	}

	for _, t := range types.AllContentTypes {
		if color[t] == colorWhite {
			if visit(t) {
				return path, true
			}
		}
	}
	return nil, false
}

// Dependencies returns the ContentTypes t directly depends on, per the
// spec §4.9 edge table.
func (g *Graph) Dependencies(t types.ContentType) []types.ContentType {
	deps := make([]types.ContentType, len(g.edges[t]))
	copy(deps, g.edges[t])
	return deps
}

// TopologicalOrder returns subset ordered so that every type appears
// after its dependencies, considering only edges whose target is also in
// subset. Types not present in subset are never referenced in the
// output. Ties are broken by ContentType's natural AllContentTypes order,
// for deterministic output.
func (g *Graph) TopologicalOrder(subset []types.ContentType) []types.ContentType {
	inSubset := make(map[types.ContentType]bool, len(subset))
	for _, t := range subset {
		inSubset[t] = true
	}

	visited := make(map[types.ContentType]bool)
	var order []types.ContentType

	ordered := make([]types.ContentType, len(subset))
	copy(ordered, subset)
	sort.Slice(ordered, func(i, j int) bool {
		return indexOf(ordered[i]) < indexOf(ordered[j])
	})

	var visit func(t types.ContentType)
	visit = func(t types.ContentType) {
		if visited[t] {
			return
		}
		visited[t] = true
		deps := make([]types.ContentType, len(g.edges[t]))
		copy(deps, g.edges[t])
		sort.Slice(deps, func(i, j int) bool { return indexOf(deps[i]) < indexOf(deps[j]) })
		for _, dep := range deps {
			if inSubset[dep] {
				visit(dep)
			}
		}
		order = append(order, t)
	}

	for _, t := range ordered {
		visit(t)
	}
	return order
}

func indexOf(t types.ContentType) int {
	for i, at := range types.AllContentTypes {
		if at == t {
			return i
		}
	}
	return len(types.AllContentTypes)
}
