package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/subseq/zini/pkg/graph"
	"github.com/subseq/zini/pkg/models"
)

func TestView_ScopesEdgesToAssignedNodes(t *testing.T) {
	t.Parallel()

	edges := []models.Edge{
		{FromNodeID: "a", ToNodeID: "b"},
		{FromNodeID: "b", ToNodeID: "c"},
		{FromNodeID: "b", ToNodeID: "outside"},
	}

	view := graph.NewView([]string{"a", "b", "c"}, edges)

	assert.True(t, view.HasEdge("a", "b"))
	assert.True(t, view.HasEdge("b", "c"))
	assert.False(t, view.HasEdge("b", "outside"), "edges to unassigned nodes are discarded")
	assert.False(t, view.HasEdge("a", "c"))

	assert.Equal(t, []string{"b"}, view.Neighbors("a"))
	assert.Empty(t, view.Neighbors("c"))
}

func TestView_Reachable(t *testing.T) {
	t.Parallel()

	edges := []models.Edge{
		{FromNodeID: "a", ToNodeID: "b"},
		{FromNodeID: "b", ToNodeID: "c"},
		{FromNodeID: "d", ToNodeID: "e"},
	}

	view := graph.NewView([]string{"a", "b", "c", "d", "e"}, edges)

	reached := view.Reachable("a")
	assert.Len(t, reached, 3)
	assert.Contains(t, reached, "a")
	assert.Contains(t, reached, "c")

	assert.Equal(t, []string{"d", "e"}, view.Unreachable("a"))
}

func TestView_ReachableHandlesCycles(t *testing.T) {
	t.Parallel()

	edges := []models.Edge{
		{FromNodeID: "a", ToNodeID: "b"},
		{FromNodeID: "b", ToNodeID: "a"},
	}

	view := graph.NewView([]string{"a", "b"}, edges)

	assert.Len(t, view.Reachable("a"), 2)
	assert.Empty(t, view.Unreachable("a"))
}

func TestView_UnassignedEntryReachesNothing(t *testing.T) {
	t.Parallel()

	view := graph.NewView([]string{"a"}, nil)

	assert.Empty(t, view.Reachable("ghost"))
	assert.Equal(t, []string{"a"}, view.Unreachable("ghost"))
}
