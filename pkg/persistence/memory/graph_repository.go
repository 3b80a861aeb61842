package memory

import (
	"context"
	"slices"

	"github.com/subseq/zini/pkg/models"
	"github.com/subseq/zini/pkg/persistence"
)

type graphRepository struct {
	store *Persistence
}

func (gr *graphRepository) SaveNode(_ context.Context, node *models.Node) error {
	gr.store.mu.Lock()
	defer gr.store.mu.Unlock()

	saved := *node
	gr.store.nodes[node.ID] = &saved

	return nil
}

func (gr *graphRepository) NodeByID(_ context.Context, id string) (*models.Node, error) {
	gr.store.mu.RLock()
	defer gr.store.mu.RUnlock()

	node, ok := gr.store.nodes[id]
	if !ok {
		return nil, persistence.ErrNodeNotFound
	}

	found := *node

	return &found, nil
}

func (gr *graphRepository) Nodes(_ context.Context) ([]*models.Node, error) {
	gr.store.mu.RLock()
	defer gr.store.mu.RUnlock()

	nodes := make([]*models.Node, 0, len(gr.store.nodes))
	for _, node := range gr.store.nodes {
		found := *node
		nodes = append(nodes, &found)
	}

	slices.SortFunc(nodes, func(a, b *models.Node) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	return nodes, nil
}

func (gr *graphRepository) SaveEdge(_ context.Context, edge models.Edge) error {
	gr.store.mu.Lock()
	defer gr.store.mu.Unlock()

	if _, ok := gr.store.nodes[edge.FromNodeID]; !ok {
		return persistence.ErrNodeNotFound
	}

	if _, ok := gr.store.nodes[edge.ToNodeID]; !ok {
		return persistence.ErrNodeNotFound
	}

	if slices.Contains(gr.store.edges[edge.FromNodeID], edge.ToNodeID) {
		return persistence.ErrDuplicateEdge
	}

	gr.store.edges[edge.FromNodeID] = append(gr.store.edges[edge.FromNodeID], edge.ToNodeID)

	return nil
}

func (gr *graphRepository) Edges(_ context.Context) ([]models.Edge, error) {
	gr.store.mu.RLock()
	defer gr.store.mu.RUnlock()

	var edges []models.Edge

	for from, targets := range gr.store.edges {
		for _, to := range targets {
			edges = append(edges, models.Edge{FromNodeID: from, ToNodeID: to})
		}
	}

	return edges, nil
}

func (gr *graphRepository) Neighbors(_ context.Context, nodeID string) ([]string, error) {
	gr.store.mu.RLock()
	defer gr.store.mu.RUnlock()

	if _, ok := gr.store.nodes[nodeID]; !ok {
		return nil, persistence.ErrNodeNotFound
	}

	return slices.Clone(gr.store.edges[nodeID]), nil
}
