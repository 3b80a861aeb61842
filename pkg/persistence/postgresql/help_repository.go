package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/subseq/zini/pkg/models"
	"github.com/subseq/zini/pkg/persistence"
)

// HelpRepository handles the escalation chain database operations: help
// requests, resolutions, actions, and attached files.
type HelpRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewHelpRepository creates a new help repository.
func NewHelpRepository(db *sql.DB, logger *slog.Logger) *HelpRepository {
	return &HelpRepository{db: db, logger: logger}
}

func (hr *HelpRepository) SaveHelp(ctx context.Context, help *models.HelpRequest) error {
	query := `
		INSERT INTO help_requests (id, job_id, request, created_at)
		VALUES ($1, $2, $3, NOW())
	`

	_, err := hr.db.ExecContext(ctx, query, help.ID, help.JobID, help.Request)
	if err != nil {
		if isForeignKeyViolation(err) {
			return persistence.NewJobError("SaveHelp", help.JobID, persistence.ErrJobNotFound)
		}

		return fmt.Errorf("failed to save help request: %w", err)
	}

	return nil
}

func (hr *HelpRepository) HelpByID(ctx context.Context, id string) (*models.HelpRequest, error) {
	query := `SELECT id, job_id, request FROM help_requests WHERE id = $1`

	help := &models.HelpRequest{}

	err := hr.db.QueryRowContext(ctx, query, id).Scan(&help.ID, &help.JobID, &help.Request)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrHelpNotFound
		}

		return nil, fmt.Errorf("failed to scan help request: %w", err)
	}

	return help, nil
}

func (hr *HelpRepository) OpenHelpCount(ctx context.Context, jobID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM help_requests h
		LEFT JOIN help_resolutions r ON r.help_id = h.id
		WHERE h.job_id = $1 AND r.help_id IS NULL
	`

	var count int

	err := hr.db.QueryRowContext(ctx, query, jobID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count open help requests: %w", err)
	}

	return count, nil
}

// NextOpenHelp returns the oldest help request for the job that has no
// resolution yet.
func (hr *HelpRepository) NextOpenHelp(ctx context.Context, jobID string) (*models.HelpRequest, error) {
	query := `
		SELECT h.id, h.job_id, h.request
		FROM help_requests h
		LEFT JOIN help_resolutions r ON r.help_id = h.id
		WHERE h.job_id = $1 AND r.help_id IS NULL
		ORDER BY h.created_at
		LIMIT 1
	`

	help := &models.HelpRequest{}

	err := hr.db.QueryRowContext(ctx, query, jobID).Scan(&help.ID, &help.JobID, &help.Request)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrHelpNotFound
		}

		return nil, fmt.Errorf("failed to scan open help request: %w", err)
	}

	return help, nil
}

func (hr *HelpRepository) SaveResolution(ctx context.Context, resolution *models.HelpResolution) error {
	query := `INSERT INTO help_resolutions (help_id, result) VALUES ($1, $2)`

	_, err := hr.db.ExecContext(ctx, query, resolution.HelpID, resolution.Result)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.ErrHelpAlreadyResolved
		}

		if isForeignKeyViolation(err) {
			return persistence.ErrHelpNotFound
		}

		return fmt.Errorf("failed to save help resolution: %w", err)
	}

	return nil
}

func (hr *HelpRepository) ResolutionByHelpID(ctx context.Context, helpID string) (*models.HelpResolution, error) {
	query := `SELECT help_id, result FROM help_resolutions WHERE help_id = $1`

	resolution := &models.HelpResolution{}

	err := hr.db.QueryRowContext(ctx, query, helpID).Scan(&resolution.HelpID, &resolution.Result)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrHelpNotFound
		}

		return nil, fmt.Errorf("failed to scan help resolution: %w", err)
	}

	return resolution, nil
}

func (hr *HelpRepository) SaveAction(ctx context.Context, action *models.ResolutionAction) error {
	query := `
		INSERT INTO resolution_actions (id, help_id, action_taken, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := hr.db.ExecContext(ctx, query, action.ID, action.HelpID, action.ActionTaken, action.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return persistence.ErrHelpNotFound
		}

		return fmt.Errorf("failed to save resolution action: %w", err)
	}

	return nil
}

func (hr *HelpRepository) ActionByID(ctx context.Context, id string) (*models.ResolutionAction, error) {
	query := `SELECT id, help_id, action_taken, created_at FROM resolution_actions WHERE id = $1`

	action := &models.ResolutionAction{}

	err := hr.db.QueryRowContext(ctx, query, id).Scan(&action.ID, &action.HelpID, &action.ActionTaken, &action.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrActionNotFound
		}

		return nil, fmt.Errorf("failed to scan resolution action: %w", err)
	}

	return action, nil
}

func (hr *HelpRepository) UpdateAction(ctx context.Context, action *models.ResolutionAction) error {
	query := `UPDATE resolution_actions SET action_taken = $1 WHERE id = $2`

	result, err := hr.db.ExecContext(ctx, query, action.ActionTaken, action.ID)
	if err != nil {
		return fmt.Errorf("failed to update resolution action: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}

	if affected == 0 {
		return persistence.ErrActionNotFound
	}

	return nil
}

// DeleteAction removes the action; attached files go with it via the
// ON DELETE CASCADE constraint.
func (hr *HelpRepository) DeleteAction(ctx context.Context, id string) error {
	query := `DELETE FROM resolution_actions WHERE id = $1`

	result, err := hr.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete resolution action: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}

	if affected == 0 {
		return persistence.ErrActionNotFound
	}

	return nil
}

func (hr *HelpRepository) ActionsByHelpID(ctx context.Context, helpID string) ([]*models.ActionWithFiles, error) {
	query := `
		SELECT a.id, a.help_id, a.action_taken, a.created_at, f.file_name
		FROM resolution_actions a
		LEFT JOIN resolution_files f ON f.action_id = a.id
		WHERE a.help_id = $1
		ORDER BY a.created_at, a.id, f.file_name
	`

	rows, err := hr.db.QueryContext(ctx, query, helpID)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolution actions: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			hr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var actions []*models.ActionWithFiles

	for rows.Next() {
		action := &models.ResolutionAction{}

		var fileName sql.NullString

		err := rows.Scan(&action.ID, &action.HelpID, &action.ActionTaken, &action.CreatedAt, &fileName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resolution action: %w", err)
		}

		if len(actions) == 0 || actions[len(actions)-1].Action.ID != action.ID {
			actions = append(actions, &models.ActionWithFiles{Action: action, Files: []string{}})
		}

		if fileName.Valid {
			last := actions[len(actions)-1]
			last.Files = append(last.Files, fileName.String)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating resolution actions: %w", err)
	}

	return actions, nil
}

func (hr *HelpRepository) SaveFile(ctx context.Context, file *models.ResolutionFile) error {
	query := `INSERT INTO resolution_files (id, action_id, file_name) VALUES ($1, $2, $3)`

	_, err := hr.db.ExecContext(ctx, query, file.ID, file.ActionID, file.FileName)
	if err != nil {
		if isForeignKeyViolation(err) {
			return persistence.ErrActionNotFound
		}

		return fmt.Errorf("failed to save resolution file: %w", err)
	}

	return nil
}

// ReplaceFiles clears and rewrites the action's file list in one transaction.
func (hr *HelpRepository) ReplaceFiles(ctx context.Context, actionID string, fileNames []string) error {
	tx, err := hr.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM resolution_files WHERE action_id = $1`, actionID)
	if err != nil {
		_ = tx.Rollback()

		return fmt.Errorf("failed to clear resolution files: %w", err)
	}

	for _, fileName := range fileNames {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO resolution_files (id, action_id, file_name) VALUES ($1, $2, $3)`,
			uuid.New().String(), actionID, fileName,
		)
		if err != nil {
			_ = tx.Rollback()

			if isForeignKeyViolation(err) {
				return persistence.ErrActionNotFound
			}

			return fmt.Errorf("failed to insert resolution file: %w", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit resolution files: %w", err)
	}

	return nil
}
