package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/subseq/zini/pkg/models"
	"github.com/subseq/zini/pkg/persistence"
)

// GraphRepository handles shared node graph database operations.
type GraphRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewGraphRepository creates a new graph repository.
func NewGraphRepository(db *sql.DB, logger *slog.Logger) *GraphRepository {
	return &GraphRepository{db: db, logger: logger}
}

func (gr *GraphRepository) SaveNode(ctx context.Context, node *models.Node) error {
	query := `
		INSERT INTO flow_nodes (id, node_name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET node_name = EXCLUDED.node_name
	`

	_, err := gr.db.ExecContext(ctx, query, node.ID, node.Name)
	if err != nil {
		return fmt.Errorf("failed to save node: %w", err)
	}

	return nil
}

func (gr *GraphRepository) NodeByID(ctx context.Context, id string) (*models.Node, error) {
	query := `SELECT id, node_name FROM flow_nodes WHERE id = $1`

	node := &models.Node{}

	err := gr.db.QueryRowContext(ctx, query, id).Scan(&node.ID, &node.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrNodeNotFound
		}

		return nil, fmt.Errorf("failed to scan node: %w", err)
	}

	return node, nil
}

func (gr *GraphRepository) Nodes(ctx context.Context) ([]*models.Node, error) {
	query := `SELECT id, node_name FROM flow_nodes ORDER BY node_name`

	rows, err := gr.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			gr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var nodes []*models.Node

	for rows.Next() {
		node := &models.Node{}

		err := rows.Scan(&node.ID, &node.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}

		nodes = append(nodes, node)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	return nodes, nil
}

func (gr *GraphRepository) SaveEdge(ctx context.Context, edge models.Edge) error {
	query := `
		INSERT INTO flow_node_edges (from_node_id, to_node_id)
		VALUES ($1, $2)
	`

	_, err := gr.db.ExecContext(ctx, query, edge.FromNodeID, edge.ToNodeID)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.ErrDuplicateEdge
		}

		if isForeignKeyViolation(err) {
			return persistence.ErrNodeNotFound
		}

		return fmt.Errorf("failed to save edge: %w", err)
	}

	return nil
}

func (gr *GraphRepository) Edges(ctx context.Context) ([]models.Edge, error) {
	query := `SELECT from_node_id, to_node_id FROM flow_node_edges`

	rows, err := gr.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			gr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var edges []models.Edge

	for rows.Next() {
		var edge models.Edge

		err := rows.Scan(&edge.FromNodeID, &edge.ToNodeID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}

		edges = append(edges, edge)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}

	return edges, nil
}

func (gr *GraphRepository) Neighbors(ctx context.Context, nodeID string) ([]string, error) {
	_, err := gr.NodeByID(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	query := `SELECT to_node_id FROM flow_node_edges WHERE from_node_id = $1 ORDER BY created_at`

	rows, err := gr.db.QueryContext(ctx, query, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query neighbors: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			gr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var neighbors []string

	for rows.Next() {
		var neighbor string

		err := rows.Scan(&neighbor)
		if err != nil {
			return nil, fmt.Errorf("failed to scan neighbor: %w", err)
		}

		neighbors = append(neighbors, neighbor)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating neighbors: %w", err)
	}

	return neighbors, nil
}
