package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/subseq/zini/pkg/graph"
	"github.com/subseq/zini/pkg/models"
	"github.com/subseq/zini/pkg/persistence"
)

// Graph manages the globally shared node graph. Nodes and edges are
// append-only so flow definitions built on them never dangle.
type Graph struct {
	persistence persistence.Persistence
}

// NewGraph creates a new graph service.
func NewGraph(persistence persistence.Persistence) *Graph {
	return &Graph{
		persistence: persistence,
	}
}

// HealthCheck checks the health of the persistence layer.
func (g *Graph) HealthCheck(ctx context.Context) (string, bool) {
	if g.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := g.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateNode adds a named node to the shared graph.
func (g *Graph) CreateNode(ctx context.Context, name string) (*models.Node, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError("CreateNode", "NODE_NAME_REQUIRED", "node name is required", ErrNodeNameRequired)
	}

	node := &models.Node{
		ID:   uuid.New().String(),
		Name: name,
	}

	err := g.persistence.GraphRepository().SaveNode(ctx, node)
	if err != nil {
		return nil, fmt.Errorf("failed to create node: %w", err)
	}

	return node, nil
}

// FetchNode retrieves a node by its ID.
func (g *Graph) FetchNode(ctx context.Context, id string) (*models.Node, error) {
	return g.persistence.GraphRepository().NodeByID(ctx, id)
}

// ListNodes retrieves all nodes in the shared graph.
func (g *Graph) ListNodes(ctx context.Context) ([]*models.Node, error) {
	return g.persistence.GraphRepository().Nodes(ctx)
}

// AddEdge connects two existing nodes. Edges are directed and unique; a
// reversed pair is a distinct edge.
func (g *Graph) AddEdge(ctx context.Context, fromNodeID, toNodeID string) (*models.Edge, error) {
	if fromNodeID == toNodeID {
		return nil, NewValidationError("AddEdge", "SELF_EDGE", "edge endpoints must differ", ErrSelfEdge)
	}

	edge := models.Edge{
		FromNodeID: fromNodeID,
		ToNodeID:   toNodeID,
	}

	err := g.persistence.GraphRepository().SaveEdge(ctx, edge)
	if err != nil {
		return nil, err
	}

	return &edge, nil
}

// ListEdges retrieves all edges in the shared graph.
func (g *Graph) ListEdges(ctx context.Context) ([]models.Edge, error) {
	return g.persistence.GraphRepository().Edges(ctx)
}

// Neighbors returns the IDs of nodes reachable from nodeID over one edge.
func (g *Graph) Neighbors(ctx context.Context, nodeID string) ([]string, error) {
	return g.persistence.GraphRepository().Neighbors(ctx, nodeID)
}

// ScopedView builds a traversal view limited to the given assigned node
// set. Edges with an endpoint outside the set are excluded.
func (g *Graph) ScopedView(ctx context.Context, assigned []string) (*graph.View, error) {
	edges, err := g.persistence.GraphRepository().Edges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load edges: %w", err)
	}

	return graph.NewView(assigned, edges), nil
}
