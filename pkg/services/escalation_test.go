package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subseq/zini/pkg/models"
	"github.com/subseq/zini/pkg/persistence"
)

type escalationFixture struct {
	*jobFixture

	escalation *Escalation
	job        *models.Job
}

func newEscalationFixture(t *testing.T) *escalationFixture {
	t.Helper()

	jobs := newJobFixture(t)

	return &escalationFixture{
		jobFixture: jobs,
		escalation: NewEscalation(jobs.store, nil),
		job:        jobs.dispatch(t),
	}
}

func TestEscalationRaiseHelp(t *testing.T) {
	fixture := newEscalationFixture(t)

	help, err := fixture.escalation.RaiseHelp(t.Context(), fixture.job.ID, "stuck on migration")
	require.NoError(t, err)
	assert.NotEmpty(t, help.ID)

	count, err := fixture.escalation.OpenHelpCount(t.Context(), fixture.job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEscalationRaiseHelpValidation(t *testing.T) {
	fixture := newEscalationFixture(t)

	_, err := fixture.escalation.RaiseHelp(t.Context(), fixture.job.ID, "  ")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	_, err = fixture.escalation.RaiseHelp(t.Context(), "missing-job", "anything")
	assert.ErrorIs(t, err, persistence.ErrJobNotFound)
}

func TestEscalationRaiseHelpRejectsCompletedJob(t *testing.T) {
	fixture := newEscalationFixture(t)

	_, err := fixture.jobs.Complete(t.Context(), CompleteJobRequest{JobID: fixture.job.ID, Succeeded: true})
	require.NoError(t, err)

	_, err = fixture.escalation.RaiseHelp(t.Context(), fixture.job.ID, "too late")
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrJobAlreadyCompleted)
}

func TestEscalationNextOpenHelpIsOldest(t *testing.T) {
	fixture := newEscalationFixture(t)

	first, err := fixture.escalation.RaiseHelp(t.Context(), fixture.job.ID, "first problem")
	require.NoError(t, err)

	second, err := fixture.escalation.RaiseHelp(t.Context(), fixture.job.ID, "second problem")
	require.NoError(t, err)

	next, err := fixture.escalation.NextOpenHelp(t.Context(), fixture.job.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, next.ID)

	_, err = fixture.escalation.Resolve(t.Context(), first.ID, "fixed")
	require.NoError(t, err)

	next, err = fixture.escalation.NextOpenHelp(t.Context(), fixture.job.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, next.ID)

	_, err = fixture.escalation.Resolve(t.Context(), second.ID, "fixed too")
	require.NoError(t, err)

	_, err = fixture.escalation.NextOpenHelp(t.Context(), fixture.job.ID)
	assert.ErrorIs(t, err, persistence.ErrHelpNotFound)
}

func TestEscalationResolveIsWriteOnce(t *testing.T) {
	fixture := newEscalationFixture(t)

	help, err := fixture.escalation.RaiseHelp(t.Context(), fixture.job.ID, "problem")
	require.NoError(t, err)

	_, err = fixture.escalation.Resolve(t.Context(), help.ID, "first verdict")
	require.NoError(t, err)

	_, err = fixture.escalation.Resolve(t.Context(), help.ID, "second verdict")
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrHelpAlreadyResolved)
	assert.True(t, IsConflictError(err))
}

func TestEscalationRecordAction(t *testing.T) {
	fixture := newEscalationFixture(t)

	help, err := fixture.escalation.RaiseHelp(t.Context(), fixture.job.ID, "problem")
	require.NoError(t, err)

	recorded, err := fixture.escalation.RecordAction(t.Context(), help.ID, "restarted worker", []string{"worker.log"})
	require.NoError(t, err)
	assert.Equal(t, []string{"worker.log"}, recorded.Files)

	view, err := fixture.escalation.FetchHelp(t.Context(), help.ID)
	require.NoError(t, err)
	require.Len(t, view.Actions, 1)
	assert.Equal(t, "restarted worker", view.Actions[0].Action.ActionTaken)
	assert.Equal(t, []string{"worker.log"}, view.Actions[0].Files)
	assert.Nil(t, view.Resolution)
}

func TestEscalationActionsFrozenAfterResolution(t *testing.T) {
	fixture := newEscalationFixture(t)

	help, err := fixture.escalation.RaiseHelp(t.Context(), fixture.job.ID, "problem")
	require.NoError(t, err)

	recorded, err := fixture.escalation.RecordAction(t.Context(), help.ID, "first try", nil)
	require.NoError(t, err)

	_, err = fixture.escalation.Resolve(t.Context(), help.ID, "done")
	require.NoError(t, err)

	_, err = fixture.escalation.RecordAction(t.Context(), help.ID, "late action", nil)
	assert.ErrorIs(t, err, persistence.ErrHelpAlreadyResolved)

	_, err = fixture.escalation.UpdateAction(t.Context(), recorded.Action.ID, "rewrite", nil)
	assert.ErrorIs(t, err, persistence.ErrHelpAlreadyResolved)

	err = fixture.escalation.DeleteAction(t.Context(), recorded.Action.ID)
	assert.ErrorIs(t, err, persistence.ErrHelpAlreadyResolved)
}

func TestEscalationUpdateActionReplacesFiles(t *testing.T) {
	fixture := newEscalationFixture(t)

	help, err := fixture.escalation.RaiseHelp(t.Context(), fixture.job.ID, "problem")
	require.NoError(t, err)

	recorded, err := fixture.escalation.RecordAction(t.Context(), help.ID, "collected logs", []string{"a.log", "b.log"})
	require.NoError(t, err)

	updated, err := fixture.escalation.UpdateAction(t.Context(), recorded.Action.ID, "collected fresh logs", []string{"c.log"})
	require.NoError(t, err)
	assert.Equal(t, "collected fresh logs", updated.ActionTaken)

	view, err := fixture.escalation.FetchHelp(t.Context(), help.ID)
	require.NoError(t, err)
	require.Len(t, view.Actions, 1)
	assert.Equal(t, []string{"c.log"}, view.Actions[0].Files)
}

func TestEscalationUpdateActionKeepsFilesWhenNil(t *testing.T) {
	fixture := newEscalationFixture(t)

	help, err := fixture.escalation.RaiseHelp(t.Context(), fixture.job.ID, "problem")
	require.NoError(t, err)

	recorded, err := fixture.escalation.RecordAction(t.Context(), help.ID, "collected logs", []string{"a.log"})
	require.NoError(t, err)

	_, err = fixture.escalation.UpdateAction(t.Context(), recorded.Action.ID, "better description", nil)
	require.NoError(t, err)

	view, err := fixture.escalation.FetchHelp(t.Context(), help.ID)
	require.NoError(t, err)
	require.Len(t, view.Actions, 1)
	assert.Equal(t, "better description", view.Actions[0].Action.ActionTaken)
	assert.Equal(t, []string{"a.log"}, view.Actions[0].Files)
}

func TestEscalationAttachFileAppends(t *testing.T) {
	fixture := newEscalationFixture(t)

	help, err := fixture.escalation.RaiseHelp(t.Context(), fixture.job.ID, "problem")
	require.NoError(t, err)

	recorded, err := fixture.escalation.RecordAction(t.Context(), help.ID, "collected logs", []string{"a.log"})
	require.NoError(t, err)

	file, err := fixture.escalation.AttachFile(t.Context(), recorded.Action.ID, "b.log")
	require.NoError(t, err)
	assert.Equal(t, recorded.Action.ID, file.ActionID)
	assert.Equal(t, "b.log", file.FileName)

	view, err := fixture.escalation.FetchHelp(t.Context(), help.ID)
	require.NoError(t, err)
	require.Len(t, view.Actions, 1)
	assert.ElementsMatch(t, []string{"a.log", "b.log"}, view.Actions[0].Files)
}

func TestEscalationAttachFileErrors(t *testing.T) {
	fixture := newEscalationFixture(t)

	help, err := fixture.escalation.RaiseHelp(t.Context(), fixture.job.ID, "problem")
	require.NoError(t, err)

	recorded, err := fixture.escalation.RecordAction(t.Context(), help.ID, "attempt", nil)
	require.NoError(t, err)

	_, err = fixture.escalation.AttachFile(t.Context(), recorded.Action.ID, "  ")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	_, err = fixture.escalation.AttachFile(t.Context(), "missing-action", "x.log")
	assert.ErrorIs(t, err, persistence.ErrActionNotFound)

	_, err = fixture.escalation.Resolve(t.Context(), help.ID, "done")
	require.NoError(t, err)

	_, err = fixture.escalation.AttachFile(t.Context(), recorded.Action.ID, "late.log")
	assert.ErrorIs(t, err, persistence.ErrHelpAlreadyResolved)
}

func TestEscalationDeleteActionCascadesFiles(t *testing.T) {
	fixture := newEscalationFixture(t)

	help, err := fixture.escalation.RaiseHelp(t.Context(), fixture.job.ID, "problem")
	require.NoError(t, err)

	recorded, err := fixture.escalation.RecordAction(t.Context(), help.ID, "attempt", []string{"trace.log"})
	require.NoError(t, err)

	err = fixture.escalation.DeleteAction(t.Context(), recorded.Action.ID)
	require.NoError(t, err)

	view, err := fixture.escalation.FetchHelp(t.Context(), help.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Actions)

	err = fixture.escalation.DeleteAction(t.Context(), recorded.Action.ID)
	assert.ErrorIs(t, err, persistence.ErrActionNotFound)
}

func TestEscalationFetchHelpWithResolution(t *testing.T) {
	fixture := newEscalationFixture(t)

	help, err := fixture.escalation.RaiseHelp(t.Context(), fixture.job.ID, "problem")
	require.NoError(t, err)

	_, err = fixture.escalation.Resolve(t.Context(), help.ID, "root cause found")
	require.NoError(t, err)

	view, err := fixture.escalation.FetchHelp(t.Context(), help.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Resolution)
	assert.Equal(t, "root cause found", view.Resolution.Result)
}
