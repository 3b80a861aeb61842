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

// FlowRepository handles flow definition database operations.
type FlowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFlowRepository creates a new flow repository.
func NewFlowRepository(db *sql.DB, logger *slog.Logger) *FlowRepository {
	return &FlowRepository{db: db, logger: logger}
}

func (fr *FlowRepository) SaveFlow(ctx context.Context, flow *models.Flow) error {
	query := `
		INSERT INTO flows (id, flow_name, description, owner, entry_node_id, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5::text, '')::uuid, $6)
		ON CONFLICT (id) DO UPDATE SET
			flow_name = EXCLUDED.flow_name,
			description = EXCLUDED.description,
			entry_node_id = EXCLUDED.entry_node_id
	`

	_, err := fr.db.ExecContext(ctx, query,
		flow.ID,
		flow.Name,
		flow.Description,
		flow.Owner,
		flow.EntryNodeID,
		flow.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save flow: %w", err)
	}

	return nil
}

func (fr *FlowRepository) FlowByID(ctx context.Context, id string) (*models.Flow, error) {
	query := `
		SELECT id, flow_name, description, owner, COALESCE(entry_node_id::text, ''), created_at
		FROM flows
		WHERE id = $1
	`

	flow := &models.Flow{}

	err := fr.db.QueryRowContext(ctx, query, id).Scan(
		&flow.ID,
		&flow.Name,
		&flow.Description,
		&flow.Owner,
		&flow.EntryNodeID,
		&flow.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrFlowNotFound
		}

		return nil, fmt.Errorf("failed to scan flow: %w", err)
	}

	return flow, nil
}

func (fr *FlowRepository) Flows(ctx context.Context) ([]*models.Flow, error) {
	query := `
		SELECT id, flow_name, description, owner, COALESCE(entry_node_id::text, ''), created_at
		FROM flows
		ORDER BY created_at
	`

	rows, err := fr.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			fr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var flows []*models.Flow

	for rows.Next() {
		flow := &models.Flow{}

		err := rows.Scan(&flow.ID, &flow.Name, &flow.Description, &flow.Owner, &flow.EntryNodeID, &flow.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}

		flows = append(flows, flow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flows: %w", err)
	}

	return flows, nil
}

func (fr *FlowRepository) AssignNode(ctx context.Context, flowID, nodeID string) error {
	query := `
		INSERT INTO flow_assignments (flow_id, node_id)
		VALUES ($1, $2)
		ON CONFLICT (flow_id, node_id) DO NOTHING
	`

	_, err := fr.db.ExecContext(ctx, query, flowID, nodeID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return persistence.NewFlowError("AssignNode", flowID, nodeID, persistence.ErrNodeNotFound)
		}

		return fmt.Errorf("failed to assign node: %w", err)
	}

	return nil
}

func (fr *FlowRepository) Assignments(ctx context.Context, flowID string) ([]string, error) {
	_, err := fr.FlowByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	return fr.nodeIDs(ctx, `SELECT node_id FROM flow_assignments WHERE flow_id = $1 ORDER BY node_id`, flowID)
}

func (fr *FlowRepository) SetEntry(ctx context.Context, flowID, nodeID string) error {
	query := `UPDATE flows SET entry_node_id = $1 WHERE id = $2`

	result, err := fr.db.ExecContext(ctx, query, nodeID, flowID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return persistence.NewFlowError("SetEntry", flowID, nodeID, persistence.ErrNodeNotFound)
		}

		return fmt.Errorf("failed to set entry node: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}

	if affected == 0 {
		return persistence.NewFlowError("SetEntry", flowID, nodeID, persistence.ErrFlowNotFound)
	}

	return nil
}

func (fr *FlowRepository) MarkExit(ctx context.Context, flowID, nodeID string) error {
	query := `
		INSERT INTO flow_exits (flow_id, node_id)
		VALUES ($1, $2)
		ON CONFLICT (flow_id, node_id) DO NOTHING
	`

	_, err := fr.db.ExecContext(ctx, query, flowID, nodeID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return persistence.NewFlowError("MarkExit", flowID, nodeID, persistence.ErrNodeNotFound)
		}

		return fmt.Errorf("failed to mark exit node: %w", err)
	}

	return nil
}

// ReplaceExits clears and rewrites the flow's exit set in one transaction.
func (fr *FlowRepository) ReplaceExits(ctx context.Context, flowID string, nodeIDs []string) error {
	tx, err := fr.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM flow_exits WHERE flow_id = $1`, flowID)
	if err != nil {
		_ = tx.Rollback()

		return fmt.Errorf("failed to clear exits: %w", err)
	}

	for _, nodeID := range nodeIDs {
		_, err = tx.ExecContext(ctx, `INSERT INTO flow_exits (flow_id, node_id) VALUES ($1, $2)`, flowID, nodeID)
		if err != nil {
			_ = tx.Rollback()

			if isForeignKeyViolation(err) {
				return persistence.NewFlowError("ReplaceExits", flowID, nodeID, persistence.ErrNodeNotFound)
			}

			return fmt.Errorf("failed to insert exit: %w", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit exits: %w", err)
	}

	return nil
}

func (fr *FlowRepository) Exits(ctx context.Context, flowID string) ([]string, error) {
	_, err := fr.FlowByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	return fr.nodeIDs(ctx, `SELECT node_id FROM flow_exits WHERE flow_id = $1 ORDER BY node_id`, flowID)
}

func (fr *FlowRepository) nodeIDs(ctx context.Context, query, flowID string) ([]string, error) {
	rows, err := fr.db.QueryContext(ctx, query, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query node ids: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			fr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var nodeIDs []string

	for rows.Next() {
		var nodeID string

		err := rows.Scan(&nodeID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node id: %w", err)
		}

		nodeIDs = append(nodeIDs, nodeID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating node ids: %w", err)
	}

	return nodeIDs, nil
}
