package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subseq/zini/pkg/models"
	"github.com/subseq/zini/pkg/persistence"
	"github.com/subseq/zini/pkg/persistence/memory"
)

func newTestStore() persistence.Persistence {
	return memory.NewPersistence()
}

// buildFlow creates a flow with the named nodes assigned and connected in a
// chain, entry at the first node and exit at the last.
func buildFlow(t *testing.T, store persistence.Persistence, names ...string) (*models.Flow, []*models.Node) {
	t.Helper()

	graphService := NewGraph(store)
	flowService := NewFlow(store, nil)

	flow, err := flowService.Create(t.Context(), CreateFlowRequest{
		Name:  "intake",
		Owner: "owner-1",
	})
	require.NoError(t, err)

	nodes := make([]*models.Node, 0, len(names))

	for _, name := range names {
		node, err := graphService.CreateNode(t.Context(), name)
		require.NoError(t, err)
		require.NoError(t, flowService.AssignNode(t.Context(), flow.ID, node.ID))

		nodes = append(nodes, node)
	}

	for i := 1; i < len(nodes); i++ {
		_, err := graphService.AddEdge(t.Context(), nodes[i-1].ID, nodes[i].ID)
		require.NoError(t, err)
	}

	require.NoError(t, flowService.SetEntry(t.Context(), flow.ID, nodes[0].ID))
	require.NoError(t, flowService.MarkExit(t.Context(), flow.ID, nodes[len(nodes)-1].ID))

	return flow, nodes
}

func TestFlowCreateUppercasesName(t *testing.T) {
	service := NewFlow(newTestStore(), nil)

	flow, err := service.Create(t.Context(), CreateFlowRequest{
		Name:        "code review",
		Description: "review pipeline",
		Owner:       "owner-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "CODE REVIEW", flow.Name)
	assert.NotEmpty(t, flow.ID)
	assert.False(t, flow.CreatedAt.IsZero())

	fetched, err := service.FetchByID(t.Context(), flow.ID)
	require.NoError(t, err)
	assert.Equal(t, "CODE REVIEW", fetched.Name)
}

func TestFlowCreateValidation(t *testing.T) {
	service := NewFlow(newTestStore(), nil)

	_, err := service.Create(t.Context(), CreateFlowRequest{Name: "  ", Owner: "owner-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFlowNameRequired)
	assert.True(t, IsValidationError(err))

	_, err = service.Create(t.Context(), CreateFlowRequest{Name: "ok", Owner: ""})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyOwner)
}

func TestFlowAssignNodeIsIdempotent(t *testing.T) {
	store := newTestStore()
	graphService := NewGraph(store)
	flowService := NewFlow(store, nil)

	flow, err := flowService.Create(t.Context(), CreateFlowRequest{Name: "intake", Owner: "owner-1"})
	require.NoError(t, err)

	node, err := graphService.CreateNode(t.Context(), "triage")
	require.NoError(t, err)

	require.NoError(t, flowService.AssignNode(t.Context(), flow.ID, node.ID))
	require.NoError(t, flowService.AssignNode(t.Context(), flow.ID, node.ID))

	assigned, err := store.FlowRepository().Assignments(t.Context(), flow.ID)
	require.NoError(t, err)
	assert.Len(t, assigned, 1)
}

func TestFlowAssignNodeUnknownNode(t *testing.T) {
	store := newTestStore()
	flowService := NewFlow(store, nil)

	flow, err := flowService.Create(t.Context(), CreateFlowRequest{Name: "intake", Owner: "owner-1"})
	require.NoError(t, err)

	err = flowService.AssignNode(t.Context(), flow.ID, "missing-node")
	assert.ErrorIs(t, err, persistence.ErrNodeNotFound)
}

func TestFlowSetEntryRequiresAssignment(t *testing.T) {
	store := newTestStore()
	graphService := NewGraph(store)
	flowService := NewFlow(store, nil)

	flow, err := flowService.Create(t.Context(), CreateFlowRequest{Name: "intake", Owner: "owner-1"})
	require.NoError(t, err)

	node, err := graphService.CreateNode(t.Context(), "triage")
	require.NoError(t, err)

	err = flowService.SetEntry(t.Context(), flow.ID, node.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNodeNotAssigned)
	assert.True(t, IsConflictError(err))
}

func TestFlowReplaceExits(t *testing.T) {
	store := newTestStore()
	flowService := NewFlow(store, nil)
	flow, nodes := buildFlow(t, store, "triage", "review", "done")

	err := flowService.ReplaceExits(t.Context(), flow.ID, []string{nodes[1].ID, nodes[2].ID})
	require.NoError(t, err)

	exits, err := store.FlowRepository().Exits(t.Context(), flow.ID)
	require.NoError(t, err)
	assert.Len(t, exits, 2)

	err = flowService.ReplaceExits(t.Context(), flow.ID, []string{"missing-node"})
	assert.ErrorIs(t, err, ErrNodeNotAssigned)
}

func TestFlowGraphSnapshot(t *testing.T) {
	store := newTestStore()
	flowService := NewFlow(store, nil)
	flow, nodes := buildFlow(t, store, "triage", "review", "done")

	snapshot, err := flowService.Graph(t.Context(), flow.ID)
	require.NoError(t, err)

	assert.Equal(t, flow.ID, snapshot.FlowID)
	require.NotNil(t, snapshot.Entry)
	assert.Equal(t, nodes[0].ID, snapshot.Entry.ID)
	require.Len(t, snapshot.Exits, 1)
	assert.Equal(t, nodes[2].ID, snapshot.Exits[0].ID)
	assert.Len(t, snapshot.Nodes, 3)
	assert.Len(t, snapshot.Edges, 2)
}

func TestFlowGraphExcludesUnassignedEdges(t *testing.T) {
	store := newTestStore()
	graphService := NewGraph(store)
	flowService := NewFlow(store, nil)
	flow, nodes := buildFlow(t, store, "triage", "done")

	// A node connected in the shared graph but not assigned to this flow
	// must not appear in the snapshot.
	outside, err := graphService.CreateNode(t.Context(), "outside")
	require.NoError(t, err)

	_, err = graphService.AddEdge(t.Context(), nodes[0].ID, outside.ID)
	require.NoError(t, err)

	snapshot, err := flowService.Graph(t.Context(), flow.ID)
	require.NoError(t, err)

	assert.Len(t, snapshot.Nodes, 2)
	assert.Len(t, snapshot.Edges, 1)
}

func TestFlowValidate(t *testing.T) {
	store := newTestStore()
	flowService := NewFlow(store, nil)
	flow, _ := buildFlow(t, store, "triage", "review", "done")

	validation, err := flowService.Validate(t.Context(), flow.ID)
	require.NoError(t, err)
	assert.True(t, validation.Valid)
	assert.Empty(t, validation.Unreachable)
}

func TestFlowValidateUnreachableExit(t *testing.T) {
	store := newTestStore()
	graphService := NewGraph(store)
	flowService := NewFlow(store, nil)
	flow, _ := buildFlow(t, store, "triage", "done")

	// Assign an island node and mark it as an exit: it is unreachable from
	// the entry, so validation must fail.
	island, err := graphService.CreateNode(t.Context(), "island")
	require.NoError(t, err)
	require.NoError(t, flowService.AssignNode(t.Context(), flow.ID, island.ID))
	require.NoError(t, flowService.MarkExit(t.Context(), flow.ID, island.ID))

	validation, err := flowService.Validate(t.Context(), flow.ID)
	require.NoError(t, err)
	assert.False(t, validation.Valid)
	assert.Equal(t, []string{island.ID}, validation.Unreachable)
}

func TestFlowValidateNoReachableExit(t *testing.T) {
	store := newTestStore()
	graphService := NewGraph(store)
	flowService := NewFlow(store, nil)
	flow, _ := buildFlow(t, store, "triage", "done")

	// Replace the exits with a single island node: nothing the entry can
	// reach leaves the flow anymore.
	island, err := graphService.CreateNode(t.Context(), "island")
	require.NoError(t, err)
	require.NoError(t, flowService.AssignNode(t.Context(), flow.ID, island.ID))
	require.NoError(t, flowService.ReplaceExits(t.Context(), flow.ID, []string{island.ID}))

	_, err = flowService.Validate(t.Context(), flow.ID)
	assert.ErrorIs(t, err, ErrUnreachableExit)
	assert.True(t, IsConflictError(err))
}

func TestFlowValidateNoEntry(t *testing.T) {
	store := newTestStore()
	flowService := NewFlow(store, nil)

	flow, err := flowService.Create(t.Context(), CreateFlowRequest{Name: "empty", Owner: "owner-1"})
	require.NoError(t, err)

	validation, err := flowService.Validate(t.Context(), flow.ID)
	require.NoError(t, err)
	assert.False(t, validation.Valid)
}

func TestFlowImportGraph(t *testing.T) {
	store := newTestStore()
	flowService := NewFlow(store, nil)

	flow, err := flowService.Create(t.Context(), CreateFlowRequest{Name: "imported", Owner: "owner-1"})
	require.NoError(t, err)

	snapshot, err := flowService.ImportGraph(t.Context(), flow.ID, ImportGraphRequest{
		Nodes: []ImportNode{{Name: "start"}, {Name: "work"}, {Name: "finish"}},
		Edges: []ImportEdge{{From: "start", To: "work"}, {From: "work", To: "finish"}},
		Entry: "start",
		Exits: []string{"finish"},
	})
	require.NoError(t, err)

	assert.Len(t, snapshot.Nodes, 3)
	assert.Len(t, snapshot.Edges, 2)
	require.NotNil(t, snapshot.Entry)
	assert.Equal(t, "start", snapshot.Entry.Name)
	assert.Len(t, snapshot.Exits, 1)

	validation, err := flowService.Validate(t.Context(), flow.ID)
	require.NoError(t, err)
	assert.True(t, validation.Valid)
}

func TestFlowImportGraphRejectsUnknownReferences(t *testing.T) {
	store := newTestStore()
	flowService := NewFlow(store, nil)

	flow, err := flowService.Create(t.Context(), CreateFlowRequest{Name: "imported", Owner: "owner-1"})
	require.NoError(t, err)

	_, err = flowService.ImportGraph(t.Context(), flow.ID, ImportGraphRequest{
		Nodes: []ImportNode{{Name: "start"}},
		Edges: []ImportEdge{{From: "start", To: "ghost"}},
		Entry: "start",
		Exits: []string{"start"},
	})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	_, err = flowService.ImportGraph(t.Context(), flow.ID, ImportGraphRequest{
		Nodes: []ImportNode{{Name: "start"}, {Name: "start"}},
		Entry: "start",
		Exits: []string{"start"},
	})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}
