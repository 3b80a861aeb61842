package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/subseq/zini/pkg/models"
	"github.com/subseq/zini/pkg/persistence"
)

// JobRepository handles job and job result database operations.
type JobRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *sql.DB, logger *slog.Logger) *JobRepository {
	return &JobRepository{db: db, logger: logger}
}

func (jr *JobRepository) SaveJob(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (id, project_id, task_id, name, created_by, assignee, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := jr.db.ExecContext(ctx, query,
		job.ID,
		job.ProjectID,
		job.TaskID,
		job.Name,
		job.CreatedBy,
		job.Assignee,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	return nil
}

func (jr *JobRepository) JobByID(ctx context.Context, id string) (*models.Job, error) {
	query := `
		SELECT id, project_id, task_id, name, created_by, assignee, created_at
		FROM jobs
		WHERE id = $1
	`

	job := &models.Job{}

	err := jr.db.QueryRowContext(ctx, query, id).Scan(
		&job.ID,
		&job.ProjectID,
		&job.TaskID,
		&job.Name,
		&job.CreatedBy,
		&job.Assignee,
		&job.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewJobError("JobByID", id, persistence.ErrJobNotFound)
		}

		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	return job, nil
}

// QueryJobs filters over the job table joined with results so running-state
// filters and the result payload come back in one round trip.
func (jr *JobRepository) QueryJobs(ctx context.Context, opts persistence.JobQueryOptions) ([]*persistence.JobListItem, error) {
	var (
		conditions []string
		args       []any
	)

	addCondition := func(clause string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if opts.ProjectID != "" {
		addCondition("j.project_id = $%d", opts.ProjectID)
	}

	if opts.TaskID != "" {
		addCondition("j.task_id = $%d", opts.TaskID)
	}

	if opts.CreatedBy != "" {
		addCondition("j.created_by = $%d", opts.CreatedBy)
	}

	if opts.Assignee != "" {
		addCondition("j.assignee = $%d", opts.Assignee)
	}

	if opts.Name != "" {
		addCondition("j.name ILIKE $%d", "%"+opts.Name+"%")
	}

	if opts.Running != nil {
		if *opts.Running {
			conditions = append(conditions, "r.job_id IS NULL")
		} else {
			conditions = append(conditions, "r.job_id IS NOT NULL")
		}
	}

	query := `
		SELECT j.id, j.project_id, j.task_id, j.name, j.created_by, j.assignee, j.created_at,
			r.job_id, r.completion_time, r.succeeded, r.job_log
		FROM jobs j
		LEFT JOIN job_results r ON r.job_id = j.id
	`

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY j.created_at"

	if opts.PageSize > 0 {
		page := opts.Page
		if page < 1 {
			page = 1
		}

		args = append(args, opts.PageSize, (page-1)*opts.PageSize)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := jr.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			jr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var items []*persistence.JobListItem

	for rows.Next() {
		item := &persistence.JobListItem{Job: &models.Job{}}

		var (
			resultJobID    sql.NullString
			completionTime sql.NullTime
			succeeded      sql.NullBool
			jobLog         sql.NullString
		)

		err := rows.Scan(
			&item.Job.ID,
			&item.Job.ProjectID,
			&item.Job.TaskID,
			&item.Job.Name,
			&item.Job.CreatedBy,
			&item.Job.Assignee,
			&item.Job.CreatedAt,
			&resultJobID,
			&completionTime,
			&succeeded,
			&jobLog,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}

		if resultJobID.Valid {
			item.Result = &models.JobResult{
				JobID:          resultJobID.String,
				CompletionTime: completionTime.Time,
				Succeeded:      succeeded.Bool,
				Log:            jobLog.String,
			}
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}

	return items, nil
}

func (jr *JobRepository) SaveResult(ctx context.Context, result *models.JobResult) error {
	query := `
		INSERT INTO job_results (job_id, completion_time, succeeded, job_log)
		VALUES ($1, $2, $3, $4)
	`

	_, err := jr.db.ExecContext(ctx, query,
		result.JobID,
		result.CompletionTime,
		result.Succeeded,
		result.Log,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.NewJobError("SaveResult", result.JobID, persistence.ErrJobAlreadyCompleted)
		}

		if isForeignKeyViolation(err) {
			return persistence.NewJobError("SaveResult", result.JobID, persistence.ErrJobNotFound)
		}

		return fmt.Errorf("failed to save job result: %w", err)
	}

	return nil
}

func (jr *JobRepository) ResultByJobID(ctx context.Context, jobID string) (*models.JobResult, error) {
	query := `
		SELECT job_id, completion_time, succeeded, job_log
		FROM job_results
		WHERE job_id = $1
	`

	result := &models.JobResult{}

	err := jr.db.QueryRowContext(ctx, query, jobID).Scan(
		&result.JobID,
		&result.CompletionTime,
		&result.Succeeded,
		&result.Log,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewJobError("ResultByJobID", jobID, persistence.ErrJobResultNotFound)
		}

		return nil, fmt.Errorf("failed to scan job result: %w", err)
	}

	return result, nil
}
