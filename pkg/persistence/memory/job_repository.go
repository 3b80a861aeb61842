package memory

import (
	"context"
	"strings"

	"github.com/subseq/zini/pkg/models"
	"github.com/subseq/zini/pkg/persistence"
)

type jobRepository struct {
	store *Persistence
}

func (jr *jobRepository) SaveJob(_ context.Context, job *models.Job) error {
	jr.store.mu.Lock()
	defer jr.store.mu.Unlock()

	if _, exists := jr.store.jobs[job.ID]; !exists {
		jr.store.jobOrder = append(jr.store.jobOrder, job.ID)
	}

	saved := *job
	jr.store.jobs[job.ID] = &saved

	return nil
}

func (jr *jobRepository) JobByID(_ context.Context, id string) (*models.Job, error) {
	jr.store.mu.RLock()
	defer jr.store.mu.RUnlock()

	job, ok := jr.store.jobs[id]
	if !ok {
		return nil, persistence.ErrJobNotFound
	}

	found := *job

	return &found, nil
}

func (jr *jobRepository) QueryJobs(_ context.Context, opts persistence.JobQueryOptions) ([]*persistence.JobListItem, error) {
	jr.store.mu.RLock()
	defer jr.store.mu.RUnlock()

	var matched []*persistence.JobListItem

	for _, jobID := range jr.store.jobOrder {
		job := jr.store.jobs[jobID]
		result := jr.store.results[jobID]

		if !jobMatches(job, result, opts) {
			continue
		}

		jobCopy := *job
		item := &persistence.JobListItem{Job: &jobCopy}

		if result != nil {
			resultCopy := *result
			item.Result = &resultCopy
		}

		matched = append(matched, item)
	}

	return paginate(matched, opts.Page, opts.PageSize), nil
}

func jobMatches(job *models.Job, result *models.JobResult, opts persistence.JobQueryOptions) bool {
	if opts.ProjectID != "" && job.ProjectID != opts.ProjectID {
		return false
	}

	if opts.TaskID != "" && job.TaskID != opts.TaskID {
		return false
	}

	if opts.CreatedBy != "" && job.CreatedBy != opts.CreatedBy {
		return false
	}

	if opts.Assignee != "" && job.Assignee != opts.Assignee {
		return false
	}

	if opts.Name != "" && !strings.Contains(strings.ToLower(job.Name), strings.ToLower(opts.Name)) {
		return false
	}

	if opts.Running != nil {
		running := result == nil
		if running != *opts.Running {
			return false
		}
	}

	return true
}

func paginate(items []*persistence.JobListItem, page, pageSize int) []*persistence.JobListItem {
	if pageSize <= 0 {
		return items
	}

	if page < 1 {
		page = 1
	}

	offset := (page - 1) * pageSize
	if offset >= len(items) {
		return nil
	}

	end := offset + pageSize
	if end > len(items) {
		end = len(items)
	}

	return items[offset:end]
}

func (jr *jobRepository) SaveResult(_ context.Context, result *models.JobResult) error {
	jr.store.mu.Lock()
	defer jr.store.mu.Unlock()

	if _, ok := jr.store.jobs[result.JobID]; !ok {
		return persistence.NewJobError("SaveResult", result.JobID, persistence.ErrJobNotFound)
	}

	if _, exists := jr.store.results[result.JobID]; exists {
		return persistence.NewJobError("SaveResult", result.JobID, persistence.ErrJobAlreadyCompleted)
	}

	saved := *result
	jr.store.results[result.JobID] = &saved

	return nil
}

func (jr *jobRepository) ResultByJobID(_ context.Context, jobID string) (*models.JobResult, error) {
	jr.store.mu.RLock()
	defer jr.store.mu.RUnlock()

	result, ok := jr.store.results[jobID]
	if !ok {
		return nil, persistence.ErrJobResultNotFound
	}

	found := *result

	return &found, nil
}
