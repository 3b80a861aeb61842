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

// PositionRepository handles task flow position database operations.
type PositionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPositionRepository creates a new position repository.
func NewPositionRepository(db *sql.DB, logger *slog.Logger) *PositionRepository {
	return &PositionRepository{db: db, logger: logger}
}

func (pr *PositionRepository) CreatePosition(ctx context.Context, position *models.TaskFlowPosition) error {
	query := `
		INSERT INTO task_flow_positions (task_id, flow_id, current_node_id)
		VALUES ($1, $2, $3)
		RETURNING order_added
	`

	err := pr.db.QueryRowContext(ctx, query,
		position.TaskID,
		position.FlowID,
		position.CurrentNodeID,
	).Scan(&position.OrderAdded)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.NewPositionError("CreatePosition", position.TaskID, position.FlowID, persistence.ErrAlreadyEnrolled)
		}

		if isForeignKeyViolation(err) {
			return persistence.NewPositionError("CreatePosition", position.TaskID, position.FlowID, persistence.ErrNodeNotFound)
		}

		return fmt.Errorf("failed to create position: %w", err)
	}

	return nil
}

func (pr *PositionRepository) PositionByTaskFlow(ctx context.Context, taskID, flowID string) (*models.TaskFlowPosition, error) {
	query := `
		SELECT task_id, flow_id, current_node_id, order_added
		FROM task_flow_positions
		WHERE task_id = $1 AND flow_id = $2
	`

	position := &models.TaskFlowPosition{}

	err := pr.db.QueryRowContext(ctx, query, taskID, flowID).Scan(
		&position.TaskID,
		&position.FlowID,
		&position.CurrentNodeID,
		&position.OrderAdded,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewPositionError("PositionByTaskFlow", taskID, flowID, persistence.ErrPositionNotFound)
		}

		return nil, fmt.Errorf("failed to scan position: %w", err)
	}

	return position, nil
}

func (pr *PositionRepository) PositionsByTask(ctx context.Context, taskID string) ([]*models.TaskFlowPosition, error) {
	query := `
		SELECT task_id, flow_id, current_node_id, order_added
		FROM task_flow_positions
		WHERE task_id = $1
		ORDER BY order_added
	`

	rows, err := pr.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			pr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var positions []*models.TaskFlowPosition

	for rows.Next() {
		position := &models.TaskFlowPosition{}

		err := rows.Scan(&position.TaskID, &position.FlowID, &position.CurrentNodeID, &position.OrderAdded)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}

		positions = append(positions, position)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

// AdvancePosition moves the position only if it still sits on fromNodeID.
// A zero-row update means either the position is gone or another writer
// advanced it first; the follow-up read distinguishes the two.
func (pr *PositionRepository) AdvancePosition(ctx context.Context, taskID, flowID, fromNodeID, toNodeID string) error {
	query := `
		UPDATE task_flow_positions
		SET current_node_id = $1
		WHERE task_id = $2 AND flow_id = $3 AND current_node_id = $4
	`

	result, err := pr.db.ExecContext(ctx, query, toNodeID, taskID, flowID, fromNodeID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return persistence.NewPositionError("AdvancePosition", taskID, flowID, persistence.ErrNodeNotFound)
		}

		return fmt.Errorf("failed to advance position: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}

	if affected == 0 {
		_, lookupErr := pr.PositionByTaskFlow(ctx, taskID, flowID)
		if lookupErr != nil {
			return persistence.NewPositionError("AdvancePosition", taskID, flowID, persistence.ErrPositionNotFound)
		}

		return persistence.NewPositionError("AdvancePosition", taskID, flowID, persistence.ErrConcurrentUpdate)
	}

	return nil
}
