// Package schedule computes the deterministic execution order for turn-phase
// hooks. Ordering constraints may be declared from either side of a
// dependency: A.after=[B] adds edge B→A, A.before=[C] adds edge A→C. Kahn's
// algorithm with lexicographic tie-breaking yields one stable order across
// runs and platforms; cycles are diagnosed with a concrete path.
package schedule

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cory-johannsen/fabula/internal/engine/registry"
)

// CycleError reports a dependency cycle among turn-phase hooks. Path holds
// one concrete cycle with the starting hook repeated at the end; Unresolved
// lists every hook left unscheduled, sorted.
type CycleError struct {
	Path       []string
	Unresolved []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("turn-phase hook dependency cycle: %s (unresolved hooks: %s)",
		strings.Join(e.Path, " → "), strings.Join(e.Unresolved, ", "))
}

// Compute filters defs to turn-phase hooks and returns their execution
// order. The result satisfies every after/before constraint and is identical
// for identical definitions regardless of registration order.
//
// Precondition: every after/before reference must name a defined turn-phase
// hook (the registry validator guarantees this).
// Postcondition: returns a complete order, or a *CycleError.
func Compute(defs []*registry.HookDef) ([]string, error) {
	nodes := make(map[string]bool)
	succ := make(map[string]map[string]bool)
	indegree := make(map[string]int)

	for _, def := range defs {
		if def.Kind != registry.KindTurnPhase {
			continue
		}
		nodes[def.ID] = true
		if succ[def.ID] == nil {
			succ[def.ID] = make(map[string]bool)
		}
	}

	addEdge := func(from, to string) {
		if !nodes[from] || !nodes[to] || succ[from][to] {
			return
		}
		succ[from][to] = true
		indegree[to]++
	}

	for _, def := range defs {
		if def.Kind != registry.KindTurnPhase {
			continue
		}
		for _, prereq := range def.After {
			addEdge(prereq, def.ID)
		}
		for _, follower := range def.Before {
			addEdge(def.ID, follower)
		}
	}

	var ready []string
	for id := range nodes {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]string, 0, len(nodes))
	for len(ready) > 0 {
		sort.Strings(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for s := range succ[next] {
			indegree[s]--
			if indegree[s] == 0 {
				ready = append(ready, s)
			}
		}
	}

	if len(order) < len(nodes) {
		unresolved := make(map[string]bool)
		for id := range nodes {
			unresolved[id] = true
		}
		for _, id := range order {
			delete(unresolved, id)
		}
		return nil, diagnoseCycle(succ, unresolved)
	}

	return order, nil
}

// diagnoseCycle walks the unresolved subgraph depth-first until it revisits
// a node on the current path, reconstructing one concrete cycle.
func diagnoseCycle(succ map[string]map[string]bool, unresolved map[string]bool) *CycleError {
	names := make([]string, 0, len(unresolved))
	for id := range unresolved {
		names = append(names, id)
	}
	sort.Strings(names)

	onPath := make(map[string]int) // node → index on the current path
	var path []string

	var walk func(id string) []string
	walk = func(id string) []string {
		if at, seen := onPath[id]; seen {
			cycle := append([]string{}, path[at:]...)
			return append(cycle, id)
		}
		onPath[id] = len(path)
		path = append(path, id)
		// Visit successors in sorted order so the reported cycle is stable.
		next := make([]string, 0, len(succ[id]))
		for s := range succ[id] {
			if unresolved[s] {
				next = append(next, s)
			}
		}
		sort.Strings(next)
		for _, s := range next {
			if cycle := walk(s); cycle != nil {
				return cycle
			}
		}
		delete(onPath, id)
		path = path[:len(path)-1]
		return nil
	}

	for _, id := range names {
		if cycle := walk(id); cycle != nil {
			return &CycleError{Path: cycle, Unresolved: names}
		}
	}

	// Unreachable for a well-formed unresolved set, but never return a nil
	// diagnosis to the caller.
	return &CycleError{Unresolved: names, Path: names}
}
