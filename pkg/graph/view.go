// Package graph provides a flow-scoped view over the shared node graph.
package graph

import (
	"slices"

	"github.com/subseq/zini/pkg/models"
)

// View intersects the global edge set with one flow's assigned nodes. An
// edge is visible only when both endpoints are assigned to the flow, which
// lets flows share common sub-paths without duplicating edge data while
// still preventing a task from jumping to a node outside its flow.
type View struct {
	assigned map[string]struct{}
	adjacent map[string][]string
}

// NewView builds a scoped view from a flow's assigned node IDs and the
// global edge set. Edges with an unassigned endpoint are discarded.
func NewView(assigned []string, edges []models.Edge) *View {
	view := &View{
		assigned: make(map[string]struct{}, len(assigned)),
		adjacent: make(map[string][]string),
	}

	for _, nodeID := range assigned {
		view.assigned[nodeID] = struct{}{}
	}

	for _, edge := range edges {
		if !view.Assigned(edge.FromNodeID) || !view.Assigned(edge.ToNodeID) {
			continue
		}

		view.adjacent[edge.FromNodeID] = append(view.adjacent[edge.FromNodeID], edge.ToNodeID)
	}

	return view
}

// Assigned reports whether the node belongs to the flow.
func (v *View) Assigned(nodeID string) bool {
	_, ok := v.assigned[nodeID]

	return ok
}

// HasEdge reports whether (from, to) is a scoped edge.
func (v *View) HasEdge(from, to string) bool {
	return slices.Contains(v.adjacent[from], to)
}

// Neighbors returns the scoped successors of a node.
func (v *View) Neighbors(nodeID string) []string {
	return v.adjacent[nodeID]
}

// Reachable returns the set of assigned nodes reachable from entry via a
// breadth-first traversal over the scoped edges, entry included.
func (v *View) Reachable(entry string) map[string]struct{} {
	reached := make(map[string]struct{})
	if !v.Assigned(entry) {
		return reached
	}

	reached[entry] = struct{}{}
	queue := []string{entry}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range v.adjacent[current] {
			if _, seen := reached[next]; seen {
				continue
			}

			reached[next] = struct{}{}
			queue = append(queue, next)
		}
	}

	return reached
}

// Unreachable returns the assigned nodes the entry cannot reach, sorted for
// stable output.
func (v *View) Unreachable(entry string) []string {
	reached := v.Reachable(entry)

	var missing []string

	for nodeID := range v.assigned {
		if _, ok := reached[nodeID]; !ok {
			missing = append(missing, nodeID)
		}
	}

	slices.Sort(missing)

	return missing
}
