package services

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subseq/zini/pkg/models"
	"github.com/subseq/zini/pkg/persistence"
)

type jobFixture struct {
	store   persistence.Persistence
	tracker *Tracker
	jobs    *Job
	flowID  string
	nodes   []*models.Node
}

func newJobFixture(t *testing.T) *jobFixture {
	t.Helper()

	store := newTestStore()
	tracker := NewTracker(store, nil)
	flow, nodes := buildFlow(t, store, "triage", "review", "done")

	_, err := tracker.Enroll(t.Context(), "task-1", flow.ID)
	require.NoError(t, err)

	return &jobFixture{
		store:   store,
		tracker: tracker,
		jobs:    NewJob(store, tracker, nil),
		flowID:  flow.ID,
		nodes:   nodes,
	}
}

func (f *jobFixture) dispatch(t *testing.T) *models.Job {
	t.Helper()

	job, err := f.jobs.Dispatch(t.Context(), DispatchJobRequest{
		ProjectID: "project-1",
		TaskID:    "task-1",
		Name:      "run checks",
		CreatedBy: "user-1",
		Assignee:  "user-2",
	})
	require.NoError(t, err)

	return job
}

func TestJobDispatch(t *testing.T) {
	fixture := newJobFixture(t)

	job := fixture.dispatch(t)
	assert.NotEmpty(t, job.ID)
	assert.False(t, job.CreatedAt.IsZero())

	view, err := fixture.jobs.FetchByID(t.Context(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, view.Status)
	assert.Nil(t, view.Result)
	assert.Zero(t, view.OpenHelp)
}

func TestJobDispatchRequiresEnrollment(t *testing.T) {
	store := newTestStore()
	jobs := NewJob(store, NewTracker(store, nil), nil)

	_, err := jobs.Dispatch(t.Context(), DispatchJobRequest{
		ProjectID: "project-1",
		TaskID:    "task-unenrolled",
		Name:      "run checks",
		CreatedBy: "user-1",
		Assignee:  "user-2",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTaskNotEnrolled)
	assert.True(t, IsConflictError(err))
}

func TestJobDispatchRequiresName(t *testing.T) {
	fixture := newJobFixture(t)

	_, err := fixture.jobs.Dispatch(t.Context(), DispatchJobRequest{
		ProjectID: "project-1",
		TaskID:    "task-1",
		Name:      "  ",
		CreatedBy: "user-1",
		Assignee:  "user-2",
	})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestJobComplete(t *testing.T) {
	fixture := newJobFixture(t)
	job := fixture.dispatch(t)

	view, err := fixture.jobs.Complete(t.Context(), CompleteJobRequest{
		JobID:     job.ID,
		Succeeded: true,
		Log:       "all checks passed",
	})
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusSucceeded, view.Status)
	require.NotNil(t, view.Result)
	assert.True(t, view.Result.Succeeded)
	assert.Equal(t, "all checks passed", view.Result.Log)
}

func TestJobCompleteIsWriteOnce(t *testing.T) {
	fixture := newJobFixture(t)
	job := fixture.dispatch(t)

	_, err := fixture.jobs.Complete(t.Context(), CompleteJobRequest{JobID: job.ID, Succeeded: true})
	require.NoError(t, err)

	_, err = fixture.jobs.Complete(t.Context(), CompleteJobRequest{JobID: job.ID, Succeeded: false})
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrJobAlreadyCompleted)
	assert.True(t, IsConflictError(err))
}

func TestJobCompleteSingleWinner(t *testing.T) {
	fixture := newJobFixture(t)
	job := fixture.dispatch(t)

	// Race completion from several goroutines: the result is write-once, so
	// exactly one wins and its log is what sticks.
	const attempts = 16

	errs := make([]error, attempts)

	var wg sync.WaitGroup

	wg.Add(attempts)

	for i := range attempts {
		go func() {
			defer wg.Done()

			_, errs[i] = fixture.jobs.Complete(t.Context(), CompleteJobRequest{
				JobID:     job.ID,
				Succeeded: true,
				Log:       fmt.Sprintf("attempt %d", i),
			})
		}()
	}

	wg.Wait()

	winner := -1

	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "more than one completion landed")

			winner = i

			continue
		}

		assert.ErrorIs(t, err, persistence.ErrJobAlreadyCompleted)
	}

	require.NotEqual(t, -1, winner)

	view, err := fixture.jobs.FetchByID(t.Context(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Result)
	assert.Equal(t, fmt.Sprintf("attempt %d", winner), view.Result.Log)
	assert.Equal(t, models.JobStatusSucceeded, view.Status)
}

func TestJobCompleteAdvancesPosition(t *testing.T) {
	fixture := newJobFixture(t)
	job := fixture.dispatch(t)

	_, err := fixture.jobs.Complete(t.Context(), CompleteJobRequest{
		JobID:     job.ID,
		Succeeded: true,
		Advance:   &AdvanceTarget{FlowID: fixture.flowID, ToNodeID: fixture.nodes[1].ID},
	})
	require.NoError(t, err)

	position, err := fixture.tracker.Position(t.Context(), "task-1", fixture.flowID)
	require.NoError(t, err)
	assert.Equal(t, fixture.nodes[1].ID, position.CurrentNodeID)
}

func TestJobCompleteFailureDoesNotAdvance(t *testing.T) {
	fixture := newJobFixture(t)
	job := fixture.dispatch(t)

	_, err := fixture.jobs.Complete(t.Context(), CompleteJobRequest{
		JobID:     job.ID,
		Succeeded: false,
		Advance:   &AdvanceTarget{FlowID: fixture.flowID, ToNodeID: fixture.nodes[1].ID},
	})
	require.NoError(t, err)

	position, err := fixture.tracker.Position(t.Context(), "task-1", fixture.flowID)
	require.NoError(t, err)
	assert.Equal(t, fixture.nodes[0].ID, position.CurrentNodeID)
}

func TestJobCompleteBlockedByOpenHelp(t *testing.T) {
	fixture := newJobFixture(t)
	job := fixture.dispatch(t)

	escalation := NewEscalation(fixture.store, nil)

	_, err := escalation.RaiseHelp(t.Context(), job.ID, "stuck on merge conflict")
	require.NoError(t, err)

	_, err = fixture.jobs.Complete(t.Context(), CompleteJobRequest{JobID: job.ID, Succeeded: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHelpStillOpen)

	view, err := fixture.jobs.FetchByID(t.Context(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusAwaitingHelp, view.Status)
	assert.Equal(t, 1, view.OpenHelp)
	require.NotNil(t, view.NextHelp)
	assert.Equal(t, "stuck on merge conflict", view.NextHelp.Request)
}

func TestJobQueryFilters(t *testing.T) {
	fixture := newJobFixture(t)

	first := fixture.dispatch(t)

	second, err := fixture.jobs.Dispatch(t.Context(), DispatchJobRequest{
		ProjectID: "project-2",
		TaskID:    "task-1",
		Name:      "deploy artifact",
		CreatedBy: "user-1",
		Assignee:  "user-3",
	})
	require.NoError(t, err)

	_, err = fixture.jobs.Complete(t.Context(), CompleteJobRequest{JobID: second.ID, Succeeded: true})
	require.NoError(t, err)

	running := true

	items, err := fixture.jobs.Query(t.Context(), persistence.JobQueryOptions{Running: &running})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, first.ID, items[0].Job.ID)
	assert.Equal(t, models.JobStatusRunning, items[0].Status)

	items, err = fixture.jobs.Query(t.Context(), persistence.JobQueryOptions{ProjectID: "project-2"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.JobStatusSucceeded, items[0].Status)

	items, err = fixture.jobs.Query(t.Context(), persistence.JobQueryOptions{Name: "DEPLOY"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, second.ID, items[0].Job.ID)
}

func TestJobQueryPagination(t *testing.T) {
	fixture := newJobFixture(t)

	for range 5 {
		fixture.dispatch(t)
	}

	items, err := fixture.jobs.Query(t.Context(), persistence.JobQueryOptions{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = fixture.jobs.Query(t.Context(), persistence.JobQueryOptions{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	items, err = fixture.jobs.Query(t.Context(), persistence.JobQueryOptions{Page: 4, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestJobFetchUnknown(t *testing.T) {
	fixture := newJobFixture(t)

	_, err := fixture.jobs.FetchByID(t.Context(), "missing-job")
	assert.ErrorIs(t, err, persistence.ErrJobNotFound)
}
